package requestactor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cargo-bsp/cargo-bsp-go/internal/bsp"
	"github.com/cargo-bsp/cargo-bsp-go/internal/cargoproc"
	"github.com/cargo-bsp/cargo-bsp-go/internal/diagnostics"
	"github.com/cargo-bsp/cargo-bsp-go/internal/rpc"
	"github.com/cargo-bsp/cargo-bsp-go/internal/rpcerr"
	"github.com/cargo-bsp/cargo-bsp-go/internal/testevents"
	"github.com/cargo-bsp/cargo-bsp-go/internal/workspace"
)

// spawnFunc matches cargoproc.Spawn's signature; tests substitute a fake
// to drive the actor without a real cargo binary.
type spawnFunc func(logger *slog.Logger, dir string, env []string, argv ...string) (*cargoproc.Handle, error)

// Actor drives a single compile/run/test request from root-start through
// root-finish and the terminal response, per the ordering guarantee in
// the request lifecycle contract.
type Actor struct {
	logger *slog.Logger

	ReqId      bsp.RequestId
	Kind       Kind
	OriginId   string
	Targets    []bsp.BuildTargetIdentifier // compile/test: N targets; run: exactly 1
	ClientArgs []string

	Root     string
	CargoBin string
	Ws       *workspace.Workspace

	send     Sender
	cancelCh <-chan struct{}
	spawn    spawnFunc

	notif *notifier
	state *State
	open  []bsp.TaskId
}

// New builds an actor ready to Run. cancelCh is closed (or receives a
// value on) cancellation; it is read-only from the actor's perspective.
func New(logger *slog.Logger, reqId bsp.RequestId, kind Kind, originId string, targets []bsp.BuildTargetIdentifier, clientArgs []string, root, cargoBin string, ws *workspace.Workspace, send Sender, cancelCh <-chan struct{}) *Actor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Actor{
		logger:     logger,
		ReqId:      reqId,
		Kind:       kind,
		OriginId:   originId,
		Targets:    targets,
		ClientArgs: clientArgs,
		Root:       root,
		CargoBin:   cargoBin,
		Ws:         ws,
		send:       send,
		cancelCh:   cancelCh,
		spawn: func(logger *slog.Logger, dir string, env []string, argv ...string) (*cargoproc.Handle, error) {
			return cargoproc.Spawn(logger, dir, env, argv...)
		},
	}
}

func (a *Actor) isOpen(id bsp.TaskId) bool {
	for _, o := range a.open {
		if o.Id == id.Id {
			return true
		}
	}
	return false
}

func (a *Actor) push(id bsp.TaskId)  { a.open = append(a.open, id) }
func (a *Actor) pop(id bsp.TaskId) {
	for i := len(a.open) - 1; i >= 0; i-- {
		if a.open[i].Id == id.Id {
			a.open = append(a.open[:i], a.open[i+1:]...)
			return
		}
	}
}

func (a *Actor) start(id bsp.TaskId, message, dataKind string, data any) {
	a.notif.taskStart(id, message, dataKind, data)
	a.push(id)
}

func (a *Actor) finish(id bsp.TaskId, status bsp.StatusCode, message, dataKind string, data any) {
	a.notif.taskFinish(id, status, message, dataKind, data)
	a.pop(id)
}

// cancelled runs after a cancel signal was observed: it kills the cargo
// process group (if one is still running), finishes every still-open
// task with Cancelled, finishes the root, and returns the RequestCancelled
// response. It is idempotent at the caller's level — the dispatcher only
// invokes Run once per request.
func (a *Actor) cancelled(handle *cargoproc.Handle) rpc.Message {
	if handle != nil {
		handle.Cancel()
	}
	for i := len(a.open) - 1; i >= 0; i-- {
		if a.open[i].Id == a.state.RootTaskId.Id {
			continue
		}
		a.notif.taskFinish(a.open[i], bsp.StatusCancelled, "", "", nil)
	}
	a.open = nil
	a.notif.taskFinish(a.state.RootTaskId, bsp.StatusCancelled, "", "", nil)
	return rpc.NewError(a.ReqId, rpcerr.New(rpcerr.RequestCancelled, "canceled by client"))
}

func (a *Actor) internalError(handle *cargoproc.Handle, err error) rpc.Message {
	if handle != nil {
		handle.Cancel()
	}
	for i := len(a.open) - 1; i >= 0; i-- {
		if a.open[i].Id == a.state.RootTaskId.Id {
			continue
		}
		a.notif.taskFinish(a.open[i], bsp.StatusError, "", "", nil)
	}
	a.open = nil
	a.notif.taskFinish(a.state.RootTaskId, bsp.StatusError, err.Error(), "", nil)
	return rpc.NewError(a.ReqId, rpcerr.New(rpcerr.InternalError, err.Error()))
}

// Run executes the full lifecycle and returns the terminal response.
// Every notification it emits along the way goes out through a.send
// before Run returns, satisfying the "response only after all of that
// request's notifications" guarantee.
func (a *Actor) Run(ctx context.Context) rpc.Message {
	a.notif = &notifier{send: a.send, originId: a.OriginId, logger: a.logger}
	a.state = NewState(a.Kind, a.OriginId)

	a.start(a.state.RootTaskId, "", "", nil)

	select {
	case <-a.cancelCh:
		return a.cancelled(nil)
	default:
	}

	a.runUnitGraphPhase(ctx)

	status, handle, err := a.runCompilePhase(ctx)
	if err != nil {
		return a.internalError(handle, err)
	}
	if status == bsp.StatusCancelled {
		return a.cancelled(nil)
	}

	if status == bsp.StatusOk && a.Kind != KindCompile {
		execStatus, err := a.runExecutePhase(ctx)
		if err != nil {
			return a.internalError(nil, err)
		}
		if execStatus == bsp.StatusCancelled {
			return a.cancelled(nil)
		}
		status = execStatus
	}

	a.finish(a.state.RootTaskId, bsp.StatusOk, "", "", nil)

	return a.finalResponse(status)
}

func (a *Actor) finalResponse(status bsp.StatusCode) rpc.Message {
	switch a.Kind {
	case KindRun:
		return rpc.NewResult(a.ReqId, bsp.RunResult{OriginId: a.OriginId, StatusCode: status})
	case KindTest:
		return rpc.NewResult(a.ReqId, bsp.TestResult{OriginId: a.OriginId, StatusCode: status})
	default:
		return rpc.NewResult(a.ReqId, bsp.CompileResult{OriginId: a.OriginId, StatusCode: status})
	}
}

// targetDetails resolves one build target's package, target and enabled
// features, used to build the Cargo argv.
func (a *Actor) targetDetails(id bsp.BuildTargetIdentifier) (*workspace.TargetDetails, error) {
	if a.Ws == nil {
		return nil, fmt.Errorf("requestactor: no workspace model available")
	}
	return a.Ws.TargetDetails(id)
}

// --- unit-graph phase -------------------------------------------------

func (a *Actor) runUnitGraphPhase(ctx context.Context) {
	a.start(a.state.UnitGraphTaskId, "unit-graph", "", nil)

	handle, err := a.spawnForUnitGraph()
	if err != nil {
		a.finish(a.state.UnitGraphTaskId, bsp.StatusError, err.Error(), "", nil)
		return
	}

	sawTotal := false
loop:
	for {
		select {
		case <-a.cancelCh:
			handle.Cancel()
			break loop
		case msg, ok := <-handle.Receiver():
			if !ok {
				break loop
			}
			if msg.Kind != cargoproc.Stdout {
				continue
			}
			if parseUnitCount(msg.Line) {
				sawTotal = true
			}
		}
	}
	_, _ = handle.Join(ctx)

	if sawTotal {
		a.finish(a.state.UnitGraphTaskId, bsp.StatusOk, "", "", nil)
	} else {
		a.finish(a.state.UnitGraphTaskId, bsp.StatusError, "", "", nil)
	}
}

func (a *Actor) spawnForUnitGraph() (*cargoproc.Handle, error) {
	det, target, err := a.firstTargetDetails()
	if err != nil {
		return nil, err
	}
	spec := a.buildArgv(det, target, true)
	return a.spawn(a.logger, a.Root, spec.Env, spec.Argv...)
}

func (a *Actor) firstTargetDetails() (*workspace.TargetDetails, *bsp.BuildTargetIdentifier, error) {
	if len(a.Targets) == 0 {
		return nil, nil, fmt.Errorf("requestactor: no targets specified")
	}
	t := a.Targets[0]
	det, err := a.targetDetails(t)
	if err != nil {
		return nil, nil, err
	}
	return det, &t, nil
}

func (a *Actor) buildArgv(det *workspace.TargetDetails, _ *bsp.BuildTargetIdentifier, unitGraph bool) commandSpec {
	defaultDisabled := det.Package.DefaultFeaturesDisabled
	switch a.Kind {
	case KindRun:
		return runArgs(det.Package.Name, det.Target, det.EnabledFeatures, defaultDisabled, a.ClientArgs, unitGraph)
	case KindTest:
		return testArgs(det.Package.Name, det.EnabledFeatures, defaultDisabled, a.ClientArgs, unitGraph)
	default:
		return compileArgs(det.Package.Name, det.Target, det.EnabledFeatures, defaultDisabled, a.ClientArgs, unitGraph)
	}
}

// unit-graph JSON has shape {"units": [...]}; only the count matters here.
func parseUnitCount(line string) bool {
	var payload struct {
		Units []json.RawMessage `json:"units"`
	}
	if err := json.Unmarshal([]byte(line), &payload); err != nil {
		return false
	}
	return payload.Units != nil
}

// --- compile phase ------------------------------------------------------

type cargoStreamMessage struct {
	Reason  string                       `json:"reason"`
	Message *diagnostics.RustcDiagnostic `json:"message"`
	Success *bool                        `json:"success"`
	Fresh   *bool                        `json:"fresh"`
}

func (a *Actor) runCompilePhase(ctx context.Context) (bsp.StatusCode, *cargoproc.Handle, error) {
	a.start(a.state.CompileTaskId, "", "", nil)

	det, target, err := a.firstTargetDetails()
	if err != nil {
		return bsp.StatusError, nil, err
	}

	subtaskIds := make(map[string]bsp.TaskId, len(a.Targets))
	for _, t := range a.Targets {
		id := a.state.CompileSubtaskId()
		subtaskIds[string(t.URI)] = id
		a.start(id, "", "compile-task", bsp.CompileTaskData{Target: t})
	}

	spec := a.buildArgv(det, target, false)
	start := time.Now()
	handle, err := a.spawn(a.logger, a.Root, spec.Env, spec.Argv...)
	if err != nil {
		return bsp.StatusError, nil, fmt.Errorf("requestactor: spawn compile: %w", err)
	}

	success := false
	finished := false
	noOp := true
loop:
	for {
		select {
		case <-a.cancelCh:
			handle.Cancel()
			return bsp.StatusCancelled, handle, nil
		case msg, ok := <-handle.Receiver():
			if !ok {
				break loop
			}
			if msg.Kind == cargoproc.Stderr {
				a.notif.logMessage(bsp.MessageError, msg.Line, &a.state.CompileTaskId)
				continue
			}
			done := a.handleCompileLine(msg.Line, subtaskIds, &success, &noOp)
			if done {
				finished = true
			}
		}
	}

	status, err := handle.Join(ctx)
	if err != nil {
		return bsp.StatusError, handle, err
	}
	if !finished {
		success = status.Success
	}

	elapsed := time.Since(start).Milliseconds()
	for _, t := range a.Targets {
		id := subtaskIds[string(t.URI)]
		a.finish(id, statusFrom(success), "", "compile-report", bsp.CompileReportData{
			Target:   t,
			OriginId: a.OriginId,
			Errors:   a.state.CompileErrors,
			Warnings: a.state.CompileWarnings,
			Time:     elapsed,
			NoOp:     noOp,
		})
	}
	a.finish(a.state.CompileTaskId, bsp.StatusOk, "", "", nil)

	if success {
		return bsp.StatusOk, handle, nil
	}
	return bsp.StatusError, handle, nil
}

func statusFrom(success bool) bsp.StatusCode {
	if success {
		return bsp.StatusOk
	}
	return bsp.StatusError
}

// handleCompileLine processes one stdout line during the compile phase
// and reports whether a build-finished event was observed. noOp stays
// true only while every compiler-artifact and build-script-executed
// message seen so far was marked fresh (one without a fresh field counts
// as not fresh), feeding the per-target compile-report.
func (a *Actor) handleCompileLine(line string, subtaskIds map[string]bsp.TaskId, success, noOp *bool) bool {
	var msg cargoStreamMessage
	if err := json.Unmarshal([]byte(line), &msg); err != nil || msg.Reason == "" {
		if a.Kind == KindTest {
			if ev, ok := testevents.Parse(line); ok {
				a.handleEarlyTestEvent(ev)
				return false
			}
		}
		a.notif.logMessage(bsp.MessageLog, line, &a.state.CompileTaskId)
		return false
	}

	switch msg.Reason {
	case "compiler-artifact", "build-script-executed":
		if msg.Fresh == nil || !*msg.Fresh {
			*noOp = false
		}
		for _, id := range subtaskIds {
			a.notif.taskProgress(id, line, nil, nil, "compilation_steps")
		}
	case "compiler-message":
		if msg.Message == nil {
			return false
		}
		a.reportDiagnostic(*msg.Message)
	case "build-finished":
		if msg.Success != nil {
			*success = *msg.Success
		}
		return true
	}
	return false
}

func (a *Actor) reportDiagnostic(diag diagnostics.RustcDiagnostic) {
	sev, ok := diagnosticSeverity(diag.Level)
	if ok {
		switch sev {
		case bspSeverityError:
			a.state.CompileErrors++
		case bspSeverityWarning:
			a.state.CompileWarnings++
		}
	}

	var target bsp.BuildTargetIdentifier
	if len(a.Targets) > 0 {
		target = a.Targets[0]
	}
	pubs, global := diagnostics.Translate(diag, a.OriginId, target, a.Root)
	for _, p := range pubs {
		a.notif.publishDiagnostics(p)
	}
	if global != nil {
		a.notif.logMessage(global.Type, global.Message, &a.state.CompileTaskId)
	}
}

type bspSeverity int

const (
	bspSeverityError bspSeverity = iota
	bspSeverityWarning
	bspSeverityOther
)

func diagnosticSeverity(level string) (bspSeverity, bool) {
	switch level {
	case "error", "error: internal compiler error":
		return bspSeverityError, true
	case "warning":
		return bspSeverityWarning, true
	case "note", "failure-note", "help":
		return bspSeverityOther, true
	default:
		return bspSeverityOther, false
	}
}

// --- execute phase --------------------------------------------------

func (a *Actor) runExecutePhase(ctx context.Context) (bsp.StatusCode, error) {
	a.start(a.state.ExecutionTaskId, "", "", nil)

	det, target, err := a.firstTargetDetails()
	if err != nil {
		return bsp.StatusError, err
	}
	spec := a.buildArgv(det, target, false)
	handle, err := a.spawn(a.logger, a.Root, spec.Env, spec.Argv...)
	if err != nil {
		return bsp.StatusError, fmt.Errorf("requestactor: spawn execute: %w", err)
	}

	if a.Kind == KindTest {
		a.start(a.state.SuiteTaskId, "", "test-task", bsp.TestTaskData{Target: a.Targets[0]})
	}

loop:
	for {
		select {
		case <-a.cancelCh:
			handle.Cancel()
			return bsp.StatusCancelled, nil
		case msg, ok := <-handle.Receiver():
			if !ok {
				break loop
			}
			a.handleExecuteMessage(msg)
		}
	}

	status, err := handle.Join(ctx)
	if err != nil {
		return bsp.StatusError, err
	}

	if a.Kind == KindTest && a.isOpen(a.state.SuiteTaskId) {
		a.finish(a.state.SuiteTaskId, bsp.StatusOk, "", "test-report", nil)
	}
	a.finish(a.state.ExecutionTaskId, bsp.StatusOk, "", "", nil)

	return statusFrom(status.Success), nil
}

func (a *Actor) handleExecuteMessage(msg cargoproc.Message) {
	if msg.Kind == cargoproc.Stderr {
		a.notif.logMessage(bsp.MessageError, msg.Line, &a.state.ExecutionTaskId)
		return
	}
	if a.Kind == KindRun {
		a.notif.logMessage(bsp.MessageLog, msg.Line, &a.state.ExecutionTaskId)
		return
	}
	// Test: every stdout line is either a libtest JSON event or
	// compiler noise from an interleaved rebuild.
	if ev, ok := testevents.Parse(msg.Line); ok {
		a.handleTestEvent(ev)
		return
	}
	a.notif.logMessage(bsp.MessageLog, msg.Line, &a.state.ExecutionTaskId)
}

// handleEarlyTestEvent covers the (rare) case a libtest JSON line arrives
// while the compile phase's reader is still draining interleaved output.
func (a *Actor) handleEarlyTestEvent(ev testevents.Event) {
	a.handleTestEvent(ev)
}

func (a *Actor) handleTestEvent(ev testevents.Event) {
	switch ev.Type {
	case "suite":
		a.handleSuiteEvent(ev)
	case "test":
		a.handleSingleTestEvent(ev)
	}
}

func (a *Actor) handleSuiteEvent(ev testevents.Event) {
	switch ev.Event {
	case "started":
		a.state.SuiteProgress = TestSuiteProgress{Total: int64(ev.TestCount)}
	case "ok", "failed":
		results := ev.Results()
		a.notif.taskFinish(a.state.SuiteTaskId, bsp.StatusOk, "", "test-report", bsp.TestReportData{
			Target:  firstOrZero(a.Targets),
			OriginId: a.OriginId,
			Passed:  results.PassedCount(),
			Failed:  results.Failed,
			Ignored: results.Ignored,
			Skipped: results.SkippedCount(),
			Time:    results.ExecTimeMs,
		})
		a.pop(a.state.SuiteTaskId)
	}
}

func firstOrZero(targets []bsp.BuildTargetIdentifier) bsp.BuildTargetIdentifier {
	if len(targets) == 0 {
		return bsp.BuildTargetIdentifier{}
	}
	return targets[0]
}

func (a *Actor) handleSingleTestEvent(ev testevents.Event) {
	switch ev.Event {
	case "started":
		id := a.state.TestTaskId(ev.Name)
		a.notif.taskStart(id, "", "test-start", bsp.TestStartData{DisplayName: ev.Name})
	default:
		id, ok := a.state.SingleTestTaskIds[ev.Name]
		if !ok {
			return
		}
		captured, tail := testevents.SplitStdout(ev.Stdout)
		if strings.TrimSpace(captured) != "" {
			a.notif.logMessage(bsp.MessageLog, captured, &id)
		}
		status := testStatus(ev.Event)
		a.notif.taskFinish(id, bsp.StatusOk, "", "test-finish", bsp.TestFinishData{
			DisplayName: ev.Name,
			Message:     tail,
			Status:      status,
		})
		delete(a.state.SingleTestTaskIds, ev.Name)

		a.state.SuiteProgress.Progress++
		progress := a.state.SuiteProgress.Progress
		total := a.state.SuiteProgress.Total
		a.notif.taskProgress(a.state.SuiteTaskId, "", int64Ptr(total), int64Ptr(progress), "tests")
	}
}

func testStatus(event string) bsp.TestStatus {
	switch testevents.ParseTestStatus(event) {
	case testevents.StatusPassed:
		return bsp.TestPassed
	case testevents.StatusIgnored:
		return bsp.TestIgnored
	default:
		return bsp.TestFailed
	}
}
