package cargoproc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSpawnCapturesStdoutAndStderr(t *testing.T) {
	h, err := Spawn(nil, "", nil, "sh", "-c", "echo out-line; echo err-line 1>&2")
	require.NoError(t, err)

	var stdout, stderr []string
	for msg := range h.Receiver() {
		switch msg.Kind {
		case Stdout:
			stdout = append(stdout, msg.Line)
		case Stderr:
			stderr = append(stderr, msg.Line)
		}
	}

	status, err := h.Join(context.Background())
	require.NoError(t, err)
	require.True(t, status.Success)
	require.Equal(t, []string{"out-line"}, stdout)
	require.Equal(t, []string{"err-line"}, stderr)
}

func TestJoinFailsOnSilentNonZeroExit(t *testing.T) {
	h, err := Spawn(nil, "", nil, "sh", "-c", "exit 1")
	require.NoError(t, err)
	for range h.Receiver() {
	}
	_, err = h.Join(context.Background())
	require.Error(t, err)
}

func TestCancelIsIdempotentAndKillsProcessGroup(t *testing.T) {
	h, err := Spawn(nil, "", nil, "sh", "-c", "sleep 30")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		for range h.Receiver() {
		}
		close(done)
	}()

	h.Cancel()
	h.Cancel() // must not block or panic a second time

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("receiver channel did not close after cancel")
	}

	// The killed process wrote no stdout and exited non-successfully, so
	// Join reports it as a silent failure.
	_, err = h.Join(context.Background())
	require.Error(t, err)

	// Cancel after Join must also be a no-op.
	h.Cancel()
}
