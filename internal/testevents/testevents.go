// Package testevents parses the JSON event stream produced by
// `cargo +nightly test -- --show-output -Z unstable-options --format=json`
// and turns it into a structured, typed model the request actor can fold
// into BSP task notifications.
package testevents

import (
	"encoding/json"
	"strings"
)

// Event is one decoded libtest JSON line, tagged by Type.
type Event struct {
	Type  string `json:"type"`
	Event string `json:"event"`

	// Suite fields.
	TestCount int `json:"test_count"`
	Passed    int `json:"passed"`
	Failed    int `json:"failed"`
	Ignored   int `json:"ignored"`
	Measured  int `json:"measured"`
	FilteredOut int `json:"filtered_out"`
	ExecTime  float64 `json:"exec_time"`

	// Test fields.
	Name   string `json:"name"`
	Stdout string `json:"stdout"`
}

// Parse attempts to decode one line of cargo test's JSON test-event
// stream. Unparseable lines (compiler noise interleaved with test
// output) are reported via ok=false, never an error: the caller falls
// back to treating the line as a plain log line.
func Parse(line string) (Event, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || trimmed[0] != '{' {
		return Event{}, false
	}
	var ev Event
	if err := json.Unmarshal([]byte(trimmed), &ev); err != nil {
		return Event{}, false
	}
	if ev.Type != "suite" && ev.Type != "test" {
		return Event{}, false
	}
	return ev, true
}

// SuiteResults is the passed/failed/ignored/measured/filtered_out/time
// summary carried on a suite.ok or suite.failed event.
type SuiteResults struct {
	Passed      int
	Failed      int
	Ignored     int
	Measured    int
	FilteredOut int
	ExecTimeMs  int64
}

// Results extracts a SuiteResults from a suite.ok/suite.failed event.
func (e Event) Results() SuiteResults {
	return SuiteResults{
		Passed:      e.Passed,
		Failed:      e.Failed,
		Ignored:     e.Ignored,
		Measured:    e.Measured,
		FilteredOut: e.FilteredOut,
		ExecTimeMs:  int64(e.ExecTime * 1000),
	}
}

// PassedCount is the BSP-reported passed count for a finished suite:
// libtest's "measured" (benchmark) outcomes count as passed.
func (r SuiteResults) PassedCount() int { return r.Passed + r.Measured }

// SkippedCount is the BSP-reported skipped count: libtest's
// filtered-out tests never ran at all.
func (r SuiteResults) SkippedCount() int { return r.FilteredOut }

// SplitStdout separates a finished test's captured stdout from the
// panic-message tail libtest appends, splitting on the first
// `thread '` boundary the way libtest's own harness renders it.
func SplitStdout(stdout string) (captured, tail string) {
	idx := strings.Index(stdout, "thread '")
	if idx < 0 {
		return stdout, ""
	}
	return stdout[:idx], stdout[idx:]
}

// Status is the normalized outcome of a single test event.
type Status int

const (
	StatusPassed Status = iota
	StatusFailed
	StatusIgnored
	StatusTimeout
)

// ParseTestStatus maps a test.* event name to a Status.
func ParseTestStatus(event string) Status {
	switch event {
	case "ok":
		return StatusPassed
	case "ignored":
		return StatusIgnored
	case "timeout":
		return StatusTimeout
	default:
		return StatusFailed
	}
}
