// Package mainloop owns the server's mutable state and the single
// event loop that multiplexes inbound transport frames with outbound
// notifications/responses coming back from in-flight Cargo-backed
// request actors. It enforces the initialize/shutdown/exit protocol
// ordering and tracks in-flight request handles for cancellation.
package mainloop

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cargo-bsp/cargo-bsp-go/internal/bsp"
	"github.com/cargo-bsp/cargo-bsp-go/internal/config"
	"github.com/cargo-bsp/cargo-bsp-go/internal/dispatch"
	"github.com/cargo-bsp/cargo-bsp-go/internal/metrics"
	"github.com/cargo-bsp/cargo-bsp-go/internal/rpc"
	"github.com/cargo-bsp/cargo-bsp-go/internal/rpcerr"
	"github.com/cargo-bsp/cargo-bsp-go/internal/workspace"
)

// requestHandle is what the global state keeps per in-flight spawn-cargo
// request: a cancel signal the worker goroutine observes, closed at most
// once.
type requestHandle struct {
	cancel chan struct{}
	once   sync.Once
}

func newRequestHandle() *requestHandle {
	return &requestHandle{cancel: make(chan struct{})}
}

func (h *requestHandle) Cancel() {
	h.once.Do(func() { close(h.cancel) })
}

type pendingMetric struct {
	method string
	start  time.Time
}

// GlobalState is the single owner of mutable server state: the shutdown
// flag, the workspace model, and the map of in-flight request handles.
// Every field here is touched only from the Run goroutine — the worker
// goroutines spawned per request only ever write to fromWorker.
type GlobalState struct {
	logger  *slog.Logger
	cfg     *config.Config
	ws      *workspace.Workspace
	metrics *metrics.Collectors

	send func(rpc.Message)

	initialized       bool
	shutdownRequested bool

	handles map[string]*requestHandle
	pending map[string]pendingMetric

	fromWorker chan rpc.Message

	reqTable   dispatch.Table
	notifTable dispatch.NotificationTable
}

// New builds a GlobalState ready to Run. send is the transport's single
// outbound path; every response and notification the server emits goes
// through it.
func New(logger *slog.Logger, cfg *config.Config, ws *workspace.Workspace, m *metrics.Collectors, send func(rpc.Message)) *GlobalState {
	if logger == nil {
		logger = slog.Default()
	}
	gs := &GlobalState{
		logger:     logger,
		cfg:        cfg,
		ws:         ws,
		metrics:    m,
		send:       send,
		handles:    make(map[string]*requestHandle),
		pending:    make(map[string]pendingMetric),
		fromWorker: make(chan rpc.Message, 64),
	}
	gs.reqTable = gs.buildRequestTable()
	gs.notifTable = gs.buildNotificationTable()
	return gs
}

func requestIdKey(id bsp.RequestId) string {
	return fmt.Sprintf("%T:%v", id.Value(), id.Value())
}

// Run drives the event loop until build/exit is observed or the inbox
// closes. It returns nil on a clean exit (shutdown seen before exit) and
// an error otherwise — either a transport disconnect or an exit without
// a prior shutdown.
func (gs *GlobalState) Run(inbox <-chan rpc.Message) error {
	for {
		select {
		case msg, ok := <-inbox:
			if !ok {
				return fmt.Errorf("mainloop: transport closed before build/exit")
			}
			exit, err := gs.handleInbound(msg)
			if exit {
				return err
			}
		case msg := <-gs.fromWorker:
			gs.handleWorkerMessage(msg)
		}
	}
}

func (gs *GlobalState) handleInbound(msg rpc.Message) (bool, error) {
	switch {
	case msg.Request != nil:
		gs.handleRequest(*msg.Request)
		return false, nil
	case msg.Notification != nil:
		return gs.handleNotification(*msg.Notification)
	default:
		return false, nil
	}
}

func (gs *GlobalState) handleRequest(req rpc.Request) {
	if !gs.initialized && req.Method != bsp.MethodBuildInitialize {
		gs.send(rpc.NewError(req.Id, rpcerr.New(rpcerr.ServerNotInitialized, "server not initialized")))
		return
	}
	if gs.shutdownRequested {
		gs.send(rpc.NewError(req.Id, rpcerr.New(rpcerr.InvalidRequest, "Shutdown already requested.")))
		return
	}

	if gs.metrics != nil {
		gs.metrics.RequestsInFlight.Inc()
	}
	start := time.Now()

	msg := dispatch.Dispatch(gs.reqTable, req)
	if msg == nil {
		// spawn-cargo shape: the actor answers asynchronously through
		// fromWorker; remember the start time so the duration metric
		// still gets recorded against the right method.
		gs.pending[requestIdKey(req.Id)] = pendingMetric{method: req.Method, start: start}
		return
	}

	gs.finishRequest(req.Method, start, *msg)
}

func (gs *GlobalState) finishRequest(method string, start time.Time, msg rpc.Message) {
	if gs.metrics != nil {
		gs.metrics.RequestsInFlight.Dec()
		gs.metrics.ObserveRequest(method, start)
	}
	gs.send(msg)
}

func (gs *GlobalState) handleNotification(not rpc.Notification) (bool, error) {
	if not.Method == bsp.MethodBuildExit {
		if gs.shutdownRequested {
			return true, nil
		}
		return true, fmt.Errorf("mainloop: client exited without a proper shutdown sequence")
	}

	if !gs.initialized {
		gs.logger.Debug("mainloop: dropping notification received before initialize", slog.String("method", not.Method))
		return false, nil
	}

	if not.Method == bsp.NotificationCancelRequest {
		gs.handleCancel(not.Params)
		return false, nil
	}

	if err := dispatch.DispatchNotification(gs.notifTable, not, gs.logger); err != nil {
		gs.logger.Warn("mainloop: notification handler error", slog.String("method", not.Method), slog.Any("error", err))
	}
	return false, nil
}

func (gs *GlobalState) handleCancel(raw json.RawMessage) {
	var params bsp.CancelParams
	if err := json.Unmarshal(raw, &params); err != nil {
		gs.logger.Warn("mainloop: cancelRequest: invalid params", slog.Any("error", err))
		return
	}
	key := requestIdKey(params.Id)
	h, ok := gs.handles[key]
	if !ok {
		gs.logger.Warn("mainloop: cancelRequest: no in-flight request with this id", slog.Any("id", params.Id.Value()))
		return
	}
	h.Cancel()
}

// handleWorkerMessage runs on the main loop goroutine: notifications are
// forwarded verbatim, and a response additionally retires the handle and
// pending-metric entries keyed by its request id.
func (gs *GlobalState) handleWorkerMessage(msg rpc.Message) {
	if msg.Response != nil {
		key := requestIdKey(msg.Response.Id)
		delete(gs.handles, key)
		if p, ok := gs.pending[key]; ok {
			delete(gs.pending, key)
			if gs.metrics != nil {
				gs.metrics.RequestsInFlight.Dec()
				gs.metrics.ObserveRequest(p.method, p.start)
			}
			gs.recordCargoExit(p.method, msg)
		}
	}
	gs.send(msg)
}

// recordCargoExit pulls the terminal statusCode out of a compile/run/test
// response to feed the Cargo exit-status counter; every one of those
// result types carries the field under the same name.
func (gs *GlobalState) recordCargoExit(method string, msg rpc.Message) {
	if gs.metrics == nil || msg.Response == nil || msg.Response.Error != nil {
		return
	}
	kind := cargoKindForMethod(method)
	if kind == "" {
		return
	}
	var result struct {
		StatusCode bsp.StatusCode `json:"statusCode"`
	}
	if err := json.Unmarshal(msg.Response.Result, &result); err != nil {
		return
	}
	gs.metrics.ObserveCargoExit(kind, result.StatusCode == bsp.StatusOk)
}

func cargoKindForMethod(method string) string {
	switch method {
	case bsp.MethodBuildTargetCompile:
		return "compile"
	case bsp.MethodBuildTargetRun:
		return "run"
	case bsp.MethodBuildTargetTest:
		return "test"
	default:
		return ""
	}
}
