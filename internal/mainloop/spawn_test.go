package mainloop

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cargo-bsp/cargo-bsp-go/internal/bsp"
	"github.com/cargo-bsp/cargo-bsp-go/internal/config"
	"github.com/cargo-bsp/cargo-bsp-go/internal/metrics"
	"github.com/cargo-bsp/cargo-bsp-go/internal/rpc"
	"github.com/cargo-bsp/cargo-bsp-go/internal/workspace"
)

func TestCompileRequestIsHandledAsynchronouslyThroughFromWorker(t *testing.T) {
	col := &collector{}
	ws := workspace.New(nil, "/repo")
	ws.AddPackage(&workspace.CargoPackage{
		Name:         "app",
		ManifestPath: "/repo/Cargo.toml",
		Targets: []workspace.Target{
			{Name: "app", Kind: workspace.KindBin, SrcPath: "/repo/src/main.rs"},
		},
	})
	gs := New(nil, config.DefaultConfig(), ws, metrics.New(), col.send)

	target := ws.AllBuildTargets()[0].Id

	raw, _ := json.Marshal(bsp.CompileParams{Targets: []bsp.BuildTargetIdentifier{target}, OriginId: "o1"})
	inbox := make(chan rpc.Message, 8)
	inbox <- rpc.Message{Request: &rpc.Request{Id: bsp.NewRequestId(int64(1)), Method: bsp.MethodBuildInitialize}}
	inbox <- rpc.Message{Request: &rpc.Request{Id: bsp.NewRequestId(int64(2)), Method: bsp.MethodBuildTargetCompile, Params: raw}}

	gs.handleInbound(<-inbox)
	gs.handleInbound(<-inbox)

	require.Len(t, gs.handles, 1)

	var sawResponse bool
	for !sawResponse {
		m := <-gs.fromWorker
		gs.handleWorkerMessage(m)
		if m.Response != nil && m.Response.Id.Value() == int64(2) {
			sawResponse = true
		}
	}
	assert.Empty(t, gs.handles)
	assert.True(t, sawResponse)

	msgs := col.snapshot()
	assert.NotEmpty(t, msgs)
}
