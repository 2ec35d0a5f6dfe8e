// Package dispatch routes an inbound JSON-RPC request or notification to
// its registered handler by method name. It knows nothing about the
// server's mutable state — callers build a Table of closures already
// bound to whatever state each handler needs, mirroring the three
// dispatch shapes from the original request dispatcher: a handler that
// mutates state synchronously, one that reads a consistent snapshot, and
// one that only kicks off asynchronous work and replies later through
// its own channel.
package dispatch

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cargo-bsp/cargo-bsp-go/internal/bsp"
	"github.com/cargo-bsp/cargo-bsp-go/internal/rpc"
	"github.com/cargo-bsp/cargo-bsp-go/internal/rpcerr"
)

// Entry is one method's registered request handler.
type Entry struct {
	Invoke func(id bsp.RequestId, params json.RawMessage) *rpc.Message
}

// Table maps BSP method names to their registered Entry.
type Table map[string]Entry

// Dispatch looks up req.Method in table and invokes it. A nil return
// means the handler replies asynchronously through its own Sender (the
// spawn-cargo shape); the caller must not send a response itself in that
// case. An unmatched method yields MethodNotFound.
func Dispatch(table Table, req rpc.Request) *rpc.Message {
	entry, ok := table[req.Method]
	if !ok {
		msg := rpc.NewError(req.Id, rpcerr.New(rpcerr.MethodNotFound, fmt.Sprintf("unknown request: %s", req.Method)))
		return &msg
	}
	return entry.Invoke(req.Id, req.Params)
}

func parseParams[P any](raw json.RawMessage) (P, error) {
	var p P
	if len(raw) == 0 {
		return p, nil
	}
	err := json.Unmarshal(raw, &p)
	return p, err
}

// OnSyncMut registers a handler that answers synchronously from mutable
// global state, e.g. recording the shutdown flag or applying a feature
// toggle.
func OnSyncMut[P any, R any](f func(P) (R, *rpcerr.Error)) Entry {
	return syncEntry[P, R](f)
}

// OnSync registers a handler that answers synchronously from a read-only
// snapshot of global state, e.g. a workspace-shape query.
func OnSync[P any, R any](f func(P) (R, *rpcerr.Error)) Entry {
	return syncEntry[P, R](f)
}

func syncEntry[P any, R any](f func(P) (R, *rpcerr.Error)) Entry {
	return Entry{Invoke: func(id bsp.RequestId, raw json.RawMessage) *rpc.Message {
		params, err := parseParams[P](raw)
		if err != nil {
			msg := rpc.NewError(id, rpcerr.New(rpcerr.InvalidParams, err.Error()))
			return &msg
		}
		result, rpcErr := f(params)
		if rpcErr != nil {
			msg := rpc.NewError(id, rpcErr)
			return &msg
		}
		msg := rpc.NewResult(id, result)
		return &msg
	}}
}

// OnSpawnCargo registers a handler that only launches asynchronous work
// (a request-actor driving a Cargo subprocess); it never returns a
// Message here, since the actor answers the request itself once its
// phases complete.
func OnSpawnCargo[P any](f func(id bsp.RequestId, params P)) Entry {
	return Entry{Invoke: func(id bsp.RequestId, raw json.RawMessage) *rpc.Message {
		params, err := parseParams[P](raw)
		if err != nil {
			msg := rpc.NewError(id, rpcerr.New(rpcerr.InvalidParams, err.Error()))
			return &msg
		}
		f(id, params)
		return nil
	}}
}

// NotificationEntry is one method's registered notification handler.
type NotificationEntry struct {
	Invoke func(params json.RawMessage) error
}

// NotificationTable maps BSP notification method names to their handler.
type NotificationTable map[string]NotificationEntry

// OnNotification registers a notification handler.
func OnNotification[P any](f func(P) error) NotificationEntry {
	return NotificationEntry{Invoke: func(raw json.RawMessage) error {
		params, err := parseParams[P](raw)
		if err != nil {
			return fmt.Errorf("invalid notification params: %w", err)
		}
		return f(params)
	}}
}

// DispatchNotification routes not to its registered handler. Unmatched
// notifications are logged unless they use the "$/" (protocol-internal,
// safe-to-ignore) method prefix.
func DispatchNotification(table NotificationTable, not rpc.Notification, logger *slog.Logger) error {
	entry, ok := table[not.Method]
	if !ok {
		if !strings.HasPrefix(not.Method, "$/") {
			logger.Warn("unhandled notification", slog.String("method", not.Method))
		}
		return nil
	}
	return entry.Invoke(not.Params)
}
