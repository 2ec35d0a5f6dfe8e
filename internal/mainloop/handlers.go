package mainloop

import (
	"context"

	"github.com/cargo-bsp/cargo-bsp-go/internal/bsp"
	"github.com/cargo-bsp/cargo-bsp-go/internal/cargoproc"
	"github.com/cargo-bsp/cargo-bsp-go/internal/dispatch"
	"github.com/cargo-bsp/cargo-bsp-go/internal/requestactor"
	"github.com/cargo-bsp/cargo-bsp-go/internal/rpc"
	"github.com/cargo-bsp/cargo-bsp-go/internal/rpcerr"
	"github.com/cargo-bsp/cargo-bsp-go/internal/workspace"
)

func (gs *GlobalState) buildRequestTable() dispatch.Table {
	return dispatch.Table{
		bsp.MethodBuildInitialize: dispatch.OnSyncMut(func(p bsp.InitializeBuildParams) (bsp.InitializeBuildResult, *rpcerr.Error) {
			gs.initialized = true
			return bsp.InitializeBuildResult{
				DisplayName: "cargo-bsp-go",
				Version:     "0.1.0",
				BspVersion:  bsp.BspVersion,
				Capabilities: bsp.BuildServerCapabilities{
					CompileProvider:           &bsp.CompileProvider{LanguageIds: []string{"rust"}},
					RunProvider:               &bsp.RunProvider{LanguageIds: []string{"rust"}},
					TestProvider:              &bsp.TestProvider{LanguageIds: []string{"rust"}},
					DebugProvider:             &bsp.DebugProvider{LanguageIds: []string{"rust"}},
					InverseSourcesProvider:    true,
					DependencySourcesProvider: true,
					DependencyModulesProvider: true,
					ResourcesProvider:         true,
					OutputPathsProvider:       true,
					CanReload:                 true,
				},
			}, nil
		}),

		bsp.MethodBuildShutdown: dispatch.OnSyncMut(func(_ struct{}) (*struct{}, *rpcerr.Error) {
			gs.shutdownRequested = true
			return nil, nil
		}),

		bsp.MethodWorkspaceBuildTargets: dispatch.OnSync(func(_ struct{}) (bsp.WorkspaceBuildTargetsResult, *rpcerr.Error) {
			return bsp.WorkspaceBuildTargetsResult{Targets: gs.ws.AllBuildTargets()}, nil
		}),

		bsp.MethodWorkspaceReload: dispatch.OnSyncMut(func(_ struct{}) (*struct{}, *rpcerr.Error) {
			reloaded, err := workspace.Load(gs.logger, gs.cfg.Cargo.Bin, gs.ws.Root)
			if err != nil {
				return nil, rpcerr.New(rpcerr.InternalError, err.Error())
			}
			*gs.ws = *reloaded
			return nil, nil
		}),

		bsp.MethodBuildTargetSources: dispatch.OnSync(func(p bsp.SourcesParams) (bsp.SourcesResult, *rpcerr.Error) {
			return gs.ws.Sources(p.Targets), nil
		}),

		bsp.MethodBuildTargetResources: dispatch.OnSync(func(p bsp.BuildTargetRequest) (bsp.ResourcesResult, *rpcerr.Error) {
			return gs.ws.Resources(p.Targets), nil
		}),

		bsp.MethodBuildTargetOutputPaths: dispatch.OnSync(func(p bsp.BuildTargetRequest) (bsp.OutputPathsResult, *rpcerr.Error) {
			return gs.ws.OutputPaths(p.Targets), nil
		}),

		bsp.MethodBuildTargetDepSources: dispatch.OnSync(func(p bsp.BuildTargetRequest) (bsp.DependencySourcesResult, *rpcerr.Error) {
			return gs.ws.DependencySources(p.Targets), nil
		}),

		bsp.MethodBuildTargetDepModules: dispatch.OnSync(func(p bsp.BuildTargetRequest) (bsp.DependencyModulesResult, *rpcerr.Error) {
			return gs.ws.DependencyModules(p.Targets), nil
		}),

		bsp.MethodBuildTargetInverseSources: dispatch.OnSync(func(p bsp.InverseSourcesParams) (bsp.InverseSourcesResult, *rpcerr.Error) {
			return gs.ws.InverseSources(p.TextDocument), nil
		}),

		bsp.MethodBuildTargetCleanCache: dispatch.OnSyncMut(func(p bsp.BuildTargetRequest) (bsp.CleanCacheResult, *rpcerr.Error) {
			return gs.ws.CleanCache(gs.cfg.Cargo.Bin, p.Targets), nil
		}),

		bsp.MethodDebugSessionStart: dispatch.OnSync(func(_ bsp.DebugSessionParams) (bsp.DebugSessionAddress, *rpcerr.Error) {
			return bsp.DebugSessionAddress{}, nil
		}),

		bsp.MethodBuildTargetRustWorkspace: dispatch.OnSpawnCargo(func(id bsp.RequestId, p bsp.RustWorkspaceParams) {
			gs.spawnRustWorkspaceCheck(id, p.Targets)
		}),

		bsp.MethodBuildTargetRustToolchain: dispatch.OnSync(func(_ bsp.RustToolchainParams) (bsp.RustToolchainResult, *rpcerr.Error) {
			result, err := workspace.RustToolchainResult("")
			if err != nil {
				return bsp.RustToolchainResult{}, rpcerr.New(rpcerr.InternalError, err.Error())
			}
			return result, nil
		}),

		bsp.MethodWorkspaceCargoFeatures: dispatch.OnSync(func(_ struct{}) (bsp.CargoFeaturesStateResult, *rpcerr.Error) {
			return gs.ws.CargoFeaturesState(), nil
		}),

		bsp.MethodEnableCargoFeatures: dispatch.OnSyncMut(func(p bsp.SetCargoFeaturesParams) (bsp.SetCargoFeaturesResult, *rpcerr.Error) {
			if err := gs.ws.EnableFeatures(p.PackageId, p.Features); err != nil {
				return bsp.SetCargoFeaturesResult{}, rpcerr.New(rpcerr.InvalidParams, err.Error())
			}
			return bsp.SetCargoFeaturesResult{StatusCode: bsp.StatusOk}, nil
		}),

		bsp.MethodDisableCargoFeatures: dispatch.OnSyncMut(func(p bsp.SetCargoFeaturesParams) (bsp.SetCargoFeaturesResult, *rpcerr.Error) {
			if err := gs.ws.DisableFeatures(p.PackageId, p.Features); err != nil {
				return bsp.SetCargoFeaturesResult{}, rpcerr.New(rpcerr.InvalidParams, err.Error())
			}
			return bsp.SetCargoFeaturesResult{StatusCode: bsp.StatusOk}, nil
		}),

		bsp.MethodBuildTargetCompile: dispatch.OnSpawnCargo(func(id bsp.RequestId, p bsp.CompileParams) {
			gs.spawnActor(id, requestactor.KindCompile, p.OriginId, p.Targets, p.Arguments)
		}),

		bsp.MethodBuildTargetRun: dispatch.OnSpawnCargo(func(id bsp.RequestId, p bsp.RunParams) {
			gs.spawnActor(id, requestactor.KindRun, p.OriginId, []bsp.BuildTargetIdentifier{p.Target}, p.Arguments)
		}),

		bsp.MethodBuildTargetTest: dispatch.OnSpawnCargo(func(id bsp.RequestId, p bsp.TestParams) {
			gs.spawnActor(id, requestactor.KindTest, p.OriginId, gs.ws.SortTestTargets(p.Targets), p.Arguments)
		}),
	}
}

func (gs *GlobalState) buildNotificationTable() dispatch.NotificationTable {
	return dispatch.NotificationTable{
		bsp.MethodBuildInitialized: dispatch.OnNotification(func(_ struct{}) error {
			gs.logger.Debug("mainloop: client acknowledged initialize")
			return nil
		}),
	}
}

// spawnActor registers a cancellable handle for id and runs a request
// actor on its own goroutine; every notification and the terminal
// response it produces funnel through fromWorker, exactly like a worker
// thread's output channel in the original design.
func (gs *GlobalState) spawnActor(id bsp.RequestId, kind requestactor.Kind, originId string, targets []bsp.BuildTargetIdentifier, args []string) {
	handle := newRequestHandle()
	gs.handles[requestIdKey(id)] = handle

	cargoBin := "cargo"
	root := ""
	if gs.cfg != nil {
		cargoBin = gs.cfg.Cargo.Bin
	}
	if gs.ws != nil {
		root = gs.ws.Root
	}

	send := requestactor.Sender(func(m rpc.Message) { gs.fromWorker <- m })
	act := requestactor.New(gs.logger, id, kind, originId, targets, args, root, cargoBin, gs.ws, send, handle.cancel)

	go func() {
		resp := act.Run(context.Background())
		gs.fromWorker <- resp
	}()
}

// spawnRustWorkspaceCheck runs buildTarget/rustWorkspace's backing
// `cargo check` off the main-loop goroutine, the same way spawnActor runs
// compile/run/test: the cargo invocation can take as long as a full
// workspace build, so it must never block the event loop's select.
func (gs *GlobalState) spawnRustWorkspaceCheck(id bsp.RequestId, ids []bsp.BuildTargetIdentifier) {
	handle := newRequestHandle()
	gs.handles[requestIdKey(id)] = handle

	root := ""
	if gs.ws != nil {
		root = gs.ws.Root
	}

	logger := gs.logger
	ws := gs.ws

	go func() {
		checkInfo, err := requestactor.RunWorkspaceCheck(context.Background(), logger, root, cargoproc.Spawn, handle.cancel)
		if err != nil {
			gs.fromWorker <- rpc.NewError(id, rpcerr.New(rpcerr.InternalError, err.Error()))
			return
		}
		result := ws.RustWorkspaceResultWithCheck(ids, checkInfo)
		gs.fromWorker <- rpc.NewResult(id, result)
	}()
}
