package testevents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSuiteStarted(t *testing.T) {
	ev, ok := Parse(`{"type":"suite","event":"started","test_count":2}`)
	require.True(t, ok)
	assert.Equal(t, "suite", ev.Type)
	assert.Equal(t, "started", ev.Event)
	assert.Equal(t, 2, ev.TestCount)
}

func TestParseNonJSONLineIsNotAnEvent(t *testing.T) {
	_, ok := Parse("warning: unused import: `foo`")
	assert.False(t, ok)
}

func TestParseUnrelatedJSONIsNotAnEvent(t *testing.T) {
	_, ok := Parse(`{"reason":"compiler-artifact"}`)
	assert.False(t, ok)
}

func TestSuiteResultsPassedCountIncludesMeasured(t *testing.T) {
	ev, ok := Parse(`{"type":"suite","event":"ok","passed":3,"failed":0,"ignored":1,"measured":2,"filtered_out":4,"exec_time":0.125}`)
	require.True(t, ok)
	r := ev.Results()
	assert.Equal(t, 5, r.PassedCount())
	assert.Equal(t, 4, r.SkippedCount())
	assert.Equal(t, int64(125), r.ExecTimeMs)
}

func TestSplitStdoutSeparatesPanicTail(t *testing.T) {
	stdout := "captured output line\nthread 'main' panicked at 'boom'"
	captured, tail := SplitStdout(stdout)
	assert.Equal(t, "captured output line\n", captured)
	assert.Equal(t, "thread 'main' panicked at 'boom'", tail)
}

func TestSplitStdoutWithNoPanicReturnsWholeAsCaptured(t *testing.T) {
	captured, tail := SplitStdout("just output, no panic")
	assert.Equal(t, "just output, no panic", captured)
	assert.Equal(t, "", tail)
}

func TestParseTestStatus(t *testing.T) {
	assert.Equal(t, StatusPassed, ParseTestStatus("ok"))
	assert.Equal(t, StatusFailed, ParseTestStatus("failed"))
	assert.Equal(t, StatusIgnored, ParseTestStatus("ignored"))
	assert.Equal(t, StatusTimeout, ParseTestStatus("timeout"))
}
