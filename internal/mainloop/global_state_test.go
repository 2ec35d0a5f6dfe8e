package mainloop

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cargo-bsp/cargo-bsp-go/internal/bsp"
	"github.com/cargo-bsp/cargo-bsp-go/internal/config"
	"github.com/cargo-bsp/cargo-bsp-go/internal/metrics"
	"github.com/cargo-bsp/cargo-bsp-go/internal/rpc"
	"github.com/cargo-bsp/cargo-bsp-go/internal/workspace"
)

// collector records every outbound message under a mutex so test
// goroutines can inspect it safely while the main loop is still running.
type collector struct {
	mu       sync.Mutex
	messages []rpc.Message
}

func (c *collector) send(m rpc.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, m)
}

func (c *collector) snapshot() []rpc.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]rpc.Message(nil), c.messages...)
}

func newTestGlobalState() (*GlobalState, *collector) {
	col := &collector{}
	ws := workspace.New(nil, "/repo")
	gs := New(nil, config.DefaultConfig(), ws, metrics.New(), col.send)
	return gs, col
}

func runWithTimeout(t *testing.T, gs *GlobalState, inbox <-chan rpc.Message) (error, bool) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- gs.Run(inbox) }()
	select {
	case err := <-done:
		return err, true
	case <-time.After(2 * time.Second):
		return nil, false
	}
}

func TestProperShutdownOrderExitsCleanly(t *testing.T) {
	gs, _ := newTestGlobalState()
	inbox := make(chan rpc.Message, 8)

	inbox <- rpc.Message{Request: &rpc.Request{Id: bsp.NewRequestId(int64(1)), Method: bsp.MethodBuildInitialize}}
	inbox <- rpc.Message{Notification: &rpc.Notification{Method: bsp.MethodBuildInitialized}}
	inbox <- rpc.Message{Request: &rpc.Request{Id: bsp.NewRequestId(int64(234)), Method: bsp.MethodBuildShutdown}}
	inbox <- rpc.Message{Notification: &rpc.Notification{Method: bsp.MethodBuildExit}}

	err, completed := runWithTimeout(t, gs, inbox)
	require.True(t, completed, "loop did not exit in time")
	assert.NoError(t, err)
}

func TestExitNotificationWithoutShutdownFails(t *testing.T) {
	gs, _ := newTestGlobalState()
	inbox := make(chan rpc.Message, 4)

	inbox <- rpc.Message{Request: &rpc.Request{Id: bsp.NewRequestId(int64(1)), Method: bsp.MethodBuildInitialize}}
	inbox <- rpc.Message{Notification: &rpc.Notification{Method: bsp.MethodBuildExit}}

	err, completed := runWithTimeout(t, gs, inbox)
	require.True(t, completed)
	assert.Error(t, err)
}

func TestExitBeforeInitializeFails(t *testing.T) {
	gs, _ := newTestGlobalState()
	inbox := make(chan rpc.Message, 2)

	inbox <- rpc.Message{Notification: &rpc.Notification{Method: bsp.MethodBuildExit}}

	err, completed := runWithTimeout(t, gs, inbox)
	require.True(t, completed)
	assert.Error(t, err)
}

func TestChannelDisconnectBeforeExitIsAnError(t *testing.T) {
	gs, _ := newTestGlobalState()
	inbox := make(chan rpc.Message, 2)
	inbox <- rpc.Message{Request: &rpc.Request{Id: bsp.NewRequestId(int64(1)), Method: bsp.MethodBuildInitialize}}
	close(inbox)

	err, completed := runWithTimeout(t, gs, inbox)
	require.True(t, completed)
	assert.Error(t, err)
}

func TestRequestBeforeInitializeGetsServerNotInitialized(t *testing.T) {
	gs, col := newTestGlobalState()
	inbox := make(chan rpc.Message, 2)
	inbox <- rpc.Message{Request: &rpc.Request{Id: bsp.NewRequestId(int64(1)), Method: bsp.MethodWorkspaceBuildTargets}}
	inbox <- rpc.Message{Notification: &rpc.Notification{Method: bsp.MethodBuildExit}}

	_, completed := runWithTimeout(t, gs, inbox)
	require.True(t, completed)

	msgs := col.snapshot()
	require.NotEmpty(t, msgs)
	require.NotNil(t, msgs[0].Response)
	require.NotNil(t, msgs[0].Response.Error)
	assert.EqualValues(t, -32002, msgs[0].Response.Error.Code)
}

func TestRequestAfterShutdownGetsInvalidRequest(t *testing.T) {
	gs, col := newTestGlobalState()
	inbox := make(chan rpc.Message, 8)
	inbox <- rpc.Message{Request: &rpc.Request{Id: bsp.NewRequestId(int64(1)), Method: bsp.MethodBuildInitialize}}
	inbox <- rpc.Message{Request: &rpc.Request{Id: bsp.NewRequestId(int64(2)), Method: bsp.MethodBuildShutdown}}
	inbox <- rpc.Message{Request: &rpc.Request{Id: bsp.NewRequestId(int64(3)), Method: bsp.MethodWorkspaceBuildTargets}}
	inbox <- rpc.Message{Notification: &rpc.Notification{Method: bsp.MethodBuildExit}}

	_, completed := runWithTimeout(t, gs, inbox)
	require.True(t, completed)

	msgs := col.snapshot()
	var lastReqResponse *rpc.Response
	for _, m := range msgs {
		if m.Response != nil && m.Response.Id.Value() == int64(3) {
			lastReqResponse = m.Response
		}
	}
	require.NotNil(t, lastReqResponse)
	require.NotNil(t, lastReqResponse.Error)
	assert.EqualValues(t, -32600, lastReqResponse.Error.Code)
}

func TestCancelRequestWithNoMatchingHandleIsIgnored(t *testing.T) {
	gs, _ := newTestGlobalState()
	inbox := make(chan rpc.Message, 8)
	inbox <- rpc.Message{Request: &rpc.Request{Id: bsp.NewRequestId(int64(1)), Method: bsp.MethodBuildInitialize}}
	raw, _ := json.Marshal(bsp.CancelParams{Id: bsp.NewRequestId(int64(999))})
	inbox <- rpc.Message{Notification: &rpc.Notification{Method: bsp.NotificationCancelRequest, Params: raw}}
	inbox <- rpc.Message{Request: &rpc.Request{Id: bsp.NewRequestId(int64(2)), Method: bsp.MethodBuildShutdown}}
	inbox <- rpc.Message{Notification: &rpc.Notification{Method: bsp.MethodBuildExit}}

	err, completed := runWithTimeout(t, gs, inbox)
	require.True(t, completed)
	assert.NoError(t, err)
}
