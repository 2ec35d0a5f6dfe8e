// Package diagnostics translates a single rustc JSON diagnostic object
// into zero or more per-document BSP diagnostic publications, flattening
// macro-expansion spans and child notes/suggestions the way rustc's own
// --message-format=json rendering does internally.
package diagnostics

// RustcDiagnostic is the JSON shape of one compiler-message diagnostic, as
// embedded in a `cargo build --message-format=json` CompilerMessage.
type RustcDiagnostic struct {
	Message  string            `json:"message"`
	Code     *RustcCode        `json:"code"`
	Level    string            `json:"level"`
	Spans    []RustcSpan       `json:"spans"`
	Children []RustcDiagnostic `json:"children"`
	Rendered string            `json:"rendered,omitempty"`
}

// RustcCode is a diagnostic's short code, e.g. "E0308" or "clippy::needless_return".
type RustcCode struct {
	Code        string `json:"code"`
	Explanation string `json:"explanation,omitempty"`
}

// RustcSpan is one source location rustc attaches to a diagnostic.
type RustcSpan struct {
	FileName             string           `json:"file_name"`
	ByteStart            int              `json:"byte_start"`
	ByteEnd              int              `json:"byte_end"`
	LineStart            int              `json:"line_start"`
	LineEnd              int              `json:"line_end"`
	ColumnStart          int              `json:"column_start"`
	ColumnEnd            int              `json:"column_end"`
	IsPrimary            bool             `json:"is_primary"`
	Text                 []RustcSpanText  `json:"text"`
	Label                *string          `json:"label"`
	SuggestedReplacement *string          `json:"suggested_replacement"`
	Expansion            *RustcExpansion  `json:"expansion"`
}

// RustcSpanText is one line of source text covered by a span, with
// highlight offsets into that line (1-based, char-counted).
type RustcSpanText struct {
	Text           string `json:"text"`
	HighlightStart int    `json:"highlight_start"`
	HighlightEnd   int    `json:"highlight_end"`
}

// RustcExpansion links a macro-generated span back to its invocation site.
type RustcExpansion struct {
	Span          *RustcSpan `json:"span"`
	MacroDeclName string     `json:"macro_decl_name"`
}
