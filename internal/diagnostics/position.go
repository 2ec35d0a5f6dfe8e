package diagnostics

import (
	"path/filepath"
	"strings"

	"github.com/cargo-bsp/cargo-bsp-go/internal/bsp"
)

// isDummyFile reports whether name is rustc's pseudo-filename for macro
// expansions and similar synthetic locations, e.g. "<::core::macros::panic macros>".
func isDummyFile(name string) bool {
	return strings.HasPrefix(name, "<") && strings.HasSuffix(name, ">")
}

// fileURL converts an absolute or workspace-relative path to a file://
// URL, joining against root when the path is relative, and lowercasing a
// Windows drive letter for stable string comparison downstream.
func fileURL(root, path string) bsp.URI {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(root, path)
	}
	abs = filepath.ToSlash(abs)
	if len(abs) >= 2 && abs[1] == ':' {
		abs = strings.ToLower(abs[:1]) + abs[1:]
		return bsp.URI("file:///" + abs)
	}
	if !strings.HasPrefix(abs, "/") {
		abs = "/" + abs
	}
	return bsp.URI("file://" + abs)
}

// utf16Column converts a 1-based character column within lineText into a
// 0-based UTF-16 code-unit offset, counting surrogate pairs as two units,
// so clients that index positions in UTF-16 (the common case) land on the
// right column regardless of non-BMP characters earlier on the line.
func utf16Column(lineText string, column1Based int) int {
	if column1Based <= 1 {
		return 0
	}
	units := 0
	chars := 0
	for _, r := range lineText {
		if chars >= column1Based-1 {
			break
		}
		if r > 0xFFFF {
			units += 2
		} else {
			units++
		}
		chars++
	}
	return units
}

// spanRange converts a rustc span's 1-based line/column pair into a
// zero-based bsp.Range, adjusting for UTF-16 width when source text was
// included in the diagnostic.
func spanRange(span RustcSpan) bsp.Range {
	var startText, endText string
	if len(span.Text) > 0 {
		startText = span.Text[0].Text
		endText = span.Text[len(span.Text)-1].Text
	}
	startChar := span.ColumnStart - 1
	if startText != "" {
		startChar = utf16Column(startText, span.ColumnStart)
	}
	endChar := span.ColumnEnd - 1
	if endText != "" {
		endChar = utf16Column(endText, span.ColumnEnd)
	}
	return bsp.Range{
		Start: bsp.Position{Line: span.LineStart - 1, Character: startChar},
		End:   bsp.Position{Line: span.LineEnd - 1, Character: endChar},
	}
}

func sameLocation(a, b RustcSpan) bool {
	return a.FileName == b.FileName && a.LineStart == b.LineStart && a.ColumnStart == b.ColumnStart &&
		a.LineEnd == b.LineEnd && a.ColumnEnd == b.ColumnEnd
}
