package dispatch

import (
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cargo-bsp/cargo-bsp-go/internal/bsp"
	"github.com/cargo-bsp/cargo-bsp-go/internal/rpc"
	"github.com/cargo-bsp/cargo-bsp-go/internal/rpcerr"
)

type echoParams struct {
	Name string `json:"name"`
}

func TestDispatchUnknownMethodIsMethodNotFound(t *testing.T) {
	table := Table{}
	req := rpc.Request{Id: bsp.NewRequestId(int64(1)), Method: "nope"}

	msg := Dispatch(table, req)
	require.NotNil(t, msg)
	require.NotNil(t, msg.Response)
	require.NotNil(t, msg.Response.Error)
	assert.EqualValues(t, rpcerr.MethodNotFound, msg.Response.Error.Code)
}

func TestDispatchSyncMutReturnsResult(t *testing.T) {
	table := Table{
		"echo": OnSyncMut(func(p echoParams) (string, *rpcerr.Error) {
			return "hello " + p.Name, nil
		}),
	}
	raw, _ := json.Marshal(echoParams{Name: "cargo"})
	req := rpc.Request{Id: bsp.NewRequestId(int64(2)), Method: "echo", Params: raw}

	msg := Dispatch(table, req)
	require.NotNil(t, msg)
	require.Nil(t, msg.Response.Error)
	var result string
	require.NoError(t, json.Unmarshal(msg.Response.Result, &result))
	assert.Equal(t, "hello cargo", result)
}

func TestDispatchInvalidParamsYieldsInvalidParamsError(t *testing.T) {
	table := Table{
		"echo": OnSync(func(p echoParams) (string, *rpcerr.Error) {
			return p.Name, nil
		}),
	}
	req := rpc.Request{Id: bsp.NewRequestId(int64(3)), Method: "echo", Params: json.RawMessage(`{"name": 5}`)}

	msg := Dispatch(table, req)
	require.NotNil(t, msg.Response.Error)
	assert.EqualValues(t, rpcerr.InvalidParams, msg.Response.Error.Code)
}

func TestDispatchHandlerErrorIsPropagated(t *testing.T) {
	table := Table{
		"fail": OnSync(func(p echoParams) (string, *rpcerr.Error) {
			return "", rpcerr.New(rpcerr.InternalError, "boom")
		}),
	}
	req := rpc.Request{Id: bsp.NewRequestId(int64(4)), Method: "fail"}

	msg := Dispatch(table, req)
	require.NotNil(t, msg.Response.Error)
	assert.EqualValues(t, rpcerr.InternalError, msg.Response.Error.Code)
	assert.Equal(t, "boom", msg.Response.Error.Message)
}

func TestDispatchSpawnCargoReturnsNilAndInvokesFunc(t *testing.T) {
	var gotId bsp.RequestId
	var gotParams echoParams
	table := Table{
		"compile": OnSpawnCargo(func(id bsp.RequestId, p echoParams) {
			gotId = id
			gotParams = p
		}),
	}
	raw, _ := json.Marshal(echoParams{Name: "app"})
	req := rpc.Request{Id: bsp.NewRequestId(int64(5)), Method: "compile", Params: raw}

	msg := Dispatch(table, req)
	assert.Nil(t, msg)
	assert.Equal(t, bsp.NewRequestId(int64(5)), gotId)
	assert.Equal(t, "app", gotParams.Name)
}

func TestDispatchNotificationUnhandledDollarPrefixIsSilent(t *testing.T) {
	table := NotificationTable{}
	err := DispatchNotification(table, rpc.Notification{Method: "$/setTrace"}, slog.Default())
	assert.NoError(t, err)
}

func TestDispatchNotificationInvokesRegisteredHandler(t *testing.T) {
	var called bool
	table := NotificationTable{
		"build/initialized": OnNotification(func(p struct{}) error {
			called = true
			return nil
		}),
	}
	err := DispatchNotification(table, rpc.Notification{Method: "build/initialized"}, slog.Default())
	require.NoError(t, err)
	assert.True(t, called)
}
