package diagnostics

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cargo-bsp/cargo-bsp-go/internal/bsp"
)

var (
	rustcErrorCode = regexp.MustCompile(`^E\d{4}$`)

	unnecessaryCodes = map[string]bool{
		"dead_code":          true,
		"unknown_lints":      true,
		"unreachable_code":   true,
		"unused_attributes":  true,
		"unused_imports":     true,
		"unused_macros":      true,
		"unused_variables":   true,
	}
)

// GlobalMessage is emitted in place of a diagnostic publication when the
// rustc diagnostic carries no primary span (link errors, crate-level
// notes) — these must not be dropped, only re-routed to the log stream.
type GlobalMessage struct {
	Type    bsp.MessageType
	Message string
}

// severity maps a rustc diagnostic level to a BSP severity. The boolean
// result is false for levels that should be dropped entirely.
func severity(level string) (bsp.DiagnosticSeverity, bool) {
	switch level {
	case "error", "error: internal compiler error":
		return bsp.SeverityError, true
	case "warning":
		return bsp.SeverityWarning, true
	case "note", "failure-note":
		return bsp.SeverityInformation, true
	case "help":
		return bsp.SeverityHint, true
	default:
		return 0, false
	}
}

func severityToMessageType(sev bsp.DiagnosticSeverity) bsp.MessageType {
	switch sev {
	case bsp.SeverityError:
		return bsp.MessageError
	case bsp.SeverityWarning:
		return bsp.MessageWarning
	case bsp.SeverityInformation:
		return bsp.MessageInfo
	default:
		return bsp.MessageLog
	}
}

// codeInfo derives the displayed code string and, where recognized, a
// code-description URL: rustc error codes link to the error index,
// clippy lints link to the clippy lint list (with the clippy:: prefix
// stripped from the displayed code).
func codeInfo(code *RustcCode) (string, *bsp.CodeDescription) {
	if code == nil || code.Code == "" {
		return "", nil
	}
	c := code.Code
	if rustcErrorCode.MatchString(c) {
		return c, &bsp.CodeDescription{Href: fmt.Sprintf("https://doc.rust-lang.org/error-index.html#%s", c)}
	}
	if strings.HasPrefix(c, "clippy::") {
		name := strings.TrimPrefix(c, "clippy::")
		return name, &bsp.CodeDescription{Href: fmt.Sprintf("https://rust-lang.github.io/rust-clippy/master/index.html#%s", c)}
	}
	return c, nil
}

func tagsForCode(code string) []bsp.DiagnosticTag {
	var tags []bsp.DiagnosticTag
	if unnecessaryCodes[code] {
		tags = append(tags, bsp.TagUnnecessary)
	}
	if code == "deprecated" {
		tags = append(tags, bsp.TagDeprecated)
	}
	return tags
}

// macroChain walks a primary span's expansion chain (the site a macro was
// invoked from, and the site that invoked it, and so on) collecting every
// non-dummy span distinct from the primary location. Mirrors the
// successors-style walk used to flatten rustc's macro-backtrace.
func macroChain(primary RustcSpan) []RustcSpan {
	var chain []RustcSpan
	cur := primary.Expansion
	for cur != nil && cur.Span != nil {
		s := *cur.Span
		if !isDummyFile(s.FileName) && !sameLocation(s, primary) {
			chain = append(chain, s)
		}
		cur = s.Expansion
	}
	return chain
}

// Translate converts one rustc diagnostic into per-document publications,
// or into a GlobalMessage when the diagnostic has no primary span.
func Translate(diag RustcDiagnostic, originId string, target bsp.BuildTargetIdentifier, rootPath string) ([]bsp.PublishDiagnosticsParams, *GlobalMessage) {
	sev, ok := severity(diag.Level)
	if !ok {
		return nil, nil
	}

	var primarySpans []RustcSpan
	for _, s := range diag.Spans {
		if s.IsPrimary {
			primarySpans = append(primarySpans, s)
		}
	}

	message := diag.Message
	var baseRelated []bsp.DiagnosticRelatedInformation
	var childHints []bsp.Diagnostic

	for _, s := range diag.Spans {
		if !s.IsPrimary && s.Label != nil && *s.Label != "" {
			baseRelated = append(baseRelated, bsp.DiagnosticRelatedInformation{
				Location: bsp.Location{URI: fileURL(rootPath, s.FileName), Range: spanRange(s)},
				Message:  *s.Label,
			})
		}
	}

	for _, child := range diag.Children {
		var childPrimary []RustcSpan
		for _, s := range child.Spans {
			if s.IsPrimary {
				childPrimary = append(childPrimary, s)
			}
		}
		if len(childPrimary) == 0 {
			if child.Message != "" {
				message += "\n" + child.Message
			}
			continue
		}
		for _, s := range childPrimary {
			text := child.Message
			if s.SuggestedReplacement != nil {
				text = fmt.Sprintf("%s: `%s`", child.Message, *s.SuggestedReplacement)
			}
			loc := bsp.Location{URI: fileURL(rootPath, s.FileName), Range: spanRange(s)}
			baseRelated = append(baseRelated, bsp.DiagnosticRelatedInformation{Location: loc, Message: text})
			childHints = append(childHints, bsp.Diagnostic{
				Range:    loc.Range,
				Severity: bsp.SeverityHint,
				Source:   "cargo",
				Message:  "original diagnostic",
				RelatedInformation: []bsp.DiagnosticRelatedInformation{
					{Location: loc, Message: "original diagnostic"},
				},
			})
		}
	}

	if len(primarySpans) == 0 {
		return nil, &GlobalMessage{Type: severityToMessageType(sev), Message: message}
	}

	code, codeDesc := codeInfo(diag.Code)
	tags := tagsForCode(code)

	byURI := make(map[bsp.URI][]bsp.Diagnostic)
	var order []bsp.URI
	appendDiag := func(uri bsp.URI, d bsp.Diagnostic) {
		if _, seen := byURI[uri]; !seen {
			order = append(order, uri)
		}
		byURI[uri] = append(byURI[uri], d)
	}

	for _, primary := range primarySpans {
		primaryURI := fileURL(rootPath, primary.FileName)
		related := append([]bsp.DiagnosticRelatedInformation{}, baseRelated...)

		chain := macroChain(primary)
		for i, expSpan := range chain {
			expURI := fileURL(rootPath, expSpan.FileName)
			expLoc := bsp.Location{URI: expURI, Range: spanRange(expSpan)}
			primaryLoc := bsp.Location{URI: primaryURI, Range: spanRange(primary)}

			originMessage := "Error originated from macro call here"
			if i == len(chain)-1 {
				originMessage = "Actual error occurred here"
			}
			related = append(related, bsp.DiagnosticRelatedInformation{Location: expLoc, Message: originMessage})

			appendDiag(expURI, bsp.Diagnostic{
				Range:    expLoc.Range,
				Severity: bsp.SeverityHint,
				Source:   "cargo",
				Message:  "Exact error occurred here",
				RelatedInformation: []bsp.DiagnosticRelatedInformation{
					{Location: primaryLoc, Message: "Exact error occurred here"},
				},
			})
		}

		appendDiag(primaryURI, bsp.Diagnostic{
			Range:               spanRange(primary),
			Severity:            sev,
			Code:                code,
			CodeDescription:     codeDesc,
			Source:              "cargo",
			Message:             message,
			Tags:                tags,
			RelatedInformation:  related,
		})
	}

	for _, hint := range childHints {
		appendDiag(hint.RelatedInformation[0].Location.URI, hint)
	}

	publications := make([]bsp.PublishDiagnosticsParams, 0, len(order))
	for _, uri := range order {
		publications = append(publications, bsp.PublishDiagnosticsParams{
			TextDocument: bsp.TextDocumentIdentifier{URI: uri},
			BuildTarget:  target,
			OriginId:     originId,
			Diagnostics:  byURI[uri],
			Reset:        false,
		})
	}
	return publications, nil
}
