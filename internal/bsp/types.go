// Package bsp defines the wire types of the Build Server Protocol surface
// this server implements: identifiers, the task-id tree, build targets,
// diagnostics, and the status/severity/tag enumerations, plus the request,
// response and notification payloads for every method the core handles.
//
// Field names follow the protocol's camelCase convention; zero-value
// optional fields are tagged omitempty so absent values drop out of the
// serialized JSON rather than round-tripping as null.
package bsp

// URI is an RFC 3986 string, serialized transparently.
type URI string

// BuildTargetIdentifier wraps a URI that uniquely (and, to the client,
// opaquely) identifies a build target within the workspace.
type BuildTargetIdentifier struct {
	URI URI `json:"uri"`
}

// RequestId is either a JSON number or a JSON string; it is preserved
// bit-exact between a request and its response.
type RequestId struct {
	value any
}

// NewRequestId wraps an int or string request id.
func NewRequestId(v any) RequestId {
	return RequestId{value: v}
}

// Value returns the underlying value. An id decoded from JSON is an int64
// or a string, or a float64 for a non-integer number.
func (r RequestId) Value() any { return r.value }

// MarshalJSON preserves whichever underlying type the id was built from.
func (r RequestId) MarshalJSON() ([]byte, error) {
	return marshalAny(r.value)
}

// UnmarshalJSON accepts either a JSON number or a JSON string.
func (r *RequestId) UnmarshalJSON(data []byte) error {
	v, err := unmarshalNumberOrString(data)
	if err != nil {
		return err
	}
	r.value = v
	return nil
}

// TaskId carries a fresh unique id plus the ordered list of enclosing
// task ids, forming an explicit tree per request rather than relying on
// stream nesting.
type TaskId struct {
	Id      string   `json:"id"`
	Parents []string `json:"parents,omitempty"`
}

// StatusCode is the BSP result status, numerically tagged starting at 1.
type StatusCode int

const (
	StatusOk        StatusCode = 1
	StatusError     StatusCode = 2
	StatusCancelled StatusCode = 3
)

// MessageType mirrors LSP's log-message severities.
type MessageType int

const (
	MessageError   MessageType = 1
	MessageWarning MessageType = 2
	MessageInfo    MessageType = 3
	MessageLog     MessageType = 4
)

// DiagnosticSeverity is the BSP diagnostic severity, numerically tagged.
type DiagnosticSeverity int

const (
	SeverityError       DiagnosticSeverity = 1
	SeverityWarning     DiagnosticSeverity = 2
	SeverityInformation DiagnosticSeverity = 3
	SeverityHint        DiagnosticSeverity = 4
)

// DiagnosticTag is an auxiliary hint rendered by the client (e.g. a
// strikethrough for Unnecessary).
type DiagnosticTag int

const (
	TagUnnecessary DiagnosticTag = 1
	TagDeprecated  DiagnosticTag = 2
)

// Position is a zero-based line/character pair.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a half-open [Start, End) span of positions.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Location pairs a document URI with a range inside it.
type Location struct {
	URI   URI   `json:"uri"`
	Range Range `json:"range"`
}

// DiagnosticRelatedInformation attaches a secondary location and message
// to a diagnostic, e.g. a macro expansion site.
type DiagnosticRelatedInformation struct {
	Location Location `json:"location"`
	Message  string   `json:"message"`
}

// Diagnostic is a single per-document diagnostic, modeled closely on LSP's
// Diagnostic but carrying source="cargo" and an optional typed data payload.
type Diagnostic struct {
	Range              Range                          `json:"range"`
	Severity           DiagnosticSeverity             `json:"severity,omitempty"`
	Code               string                         `json:"code,omitempty"`
	CodeDescription    *CodeDescription               `json:"codeDescription,omitempty"`
	Source             string                         `json:"source,omitempty"`
	Message            string                         `json:"message"`
	Tags               []DiagnosticTag                `json:"tags,omitempty"`
	RelatedInformation []DiagnosticRelatedInformation `json:"relatedInformation,omitempty"`
	Data               any                            `json:"data,omitempty"`
}

// CodeDescription links a diagnostic code to an explanatory URL.
type CodeDescription struct {
	Href string `json:"href"`
}

// PublishDiagnosticsParams reports the full set of diagnostics the server
// currently holds for one document; reset indicates whether the client
// should discard any diagnostics it previously held for that document.
type PublishDiagnosticsParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	BuildTarget  BuildTargetIdentifier  `json:"buildTarget"`
	OriginId     string                 `json:"originId,omitempty"`
	Diagnostics  []Diagnostic           `json:"diagnostics"`
	Reset        bool                   `json:"reset"`
}

// TextDocumentIdentifier names a single source document by URI.
type TextDocumentIdentifier struct {
	URI URI `json:"uri"`
}

// BuildTargetTag classifies a build target's purpose.
type BuildTargetTag string

const (
	TagLibrary     BuildTargetTag = "library"
	TagApplication BuildTargetTag = "application"
	TagTest        BuildTargetTag = "test"
	TagBenchmark   BuildTargetTag = "benchmark"
)

// BuildTargetCapabilities advertises which request kinds a target supports.
type BuildTargetCapabilities struct {
	CanCompile bool `json:"canCompile"`
	CanTest    bool `json:"canTest"`
	CanRun     bool `json:"canRun"`
	CanDebug   bool `json:"canDebug"`
}

// BuildTarget describes one Cargo-produced artifact: a library, binary,
// example, test or benchmark.
type BuildTarget struct {
	Id                   BuildTargetIdentifier    `json:"id"`
	DisplayName          string                   `json:"displayName,omitempty"`
	BaseDirectory        URI                      `json:"baseDirectory,omitempty"`
	Tags                 []BuildTargetTag         `json:"tags,omitempty"`
	LanguageIds          []string                 `json:"languageIds"`
	Dependencies         []BuildTargetIdentifier  `json:"dependencies"`
	Capabilities         BuildTargetCapabilities  `json:"capabilities"`
	DataKind             string                   `json:"dataKind,omitempty"`
	Data                 any                      `json:"data,omitempty"`
}

// RustBuildTarget is the Rust-specific data payload of a BuildTarget.
type RustBuildTarget struct {
	Edition          string   `json:"edition"`
	RequiredFeatures []string `json:"requiredFeatures,omitempty"`
	CrateTypes       []string `json:"crateTypes,omitempty"`
	Kind             string   `json:"kind"`
	Doctest          bool     `json:"doctest"`
}

// CargoBuildTarget is the Cargo-specific data payload of a BuildTarget.
type CargoBuildTarget struct {
	PackageId string `json:"packageId"`
	TargetKind string `json:"targetKind"`
}
