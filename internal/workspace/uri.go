package workspace

import (
	"path/filepath"
	"strings"

	"github.com/cargo-bsp/cargo-bsp-go/internal/bsp"
)

// fileURI converts an absolute filesystem path into a file:// URL,
// lowercasing a Windows drive letter for stable string comparison —
// the same convention the diagnostic translator applies.
func fileURI(path string) bsp.URI {
	abs := filepath.ToSlash(path)
	if len(abs) >= 2 && abs[1] == ':' {
		abs = strings.ToLower(abs[:1]) + abs[1:]
		return bsp.URI("file:///" + abs)
	}
	if !strings.HasPrefix(abs, "/") {
		abs = "/" + abs
	}
	return bsp.URI("file://" + abs)
}
