package requestactor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cargo-bsp/cargo-bsp-go/internal/bsp"
	"github.com/cargo-bsp/cargo-bsp-go/internal/cargoproc"
	"github.com/cargo-bsp/cargo-bsp-go/internal/workspace"
)

// buildScriptExecutedMessage is the subset of a `build-script-executed`
// Cargo message this package reads, keyed back onto a RustPackage by
// package_id.
type buildScriptExecutedMessage struct {
	Reason    string      `json:"reason"`
	PackageId string      `json:"package_id"`
	Cfgs      []string    `json:"cfgs"`
	Env       [][2]string `json:"env"`
	OutDir    string      `json:"out_dir"`
}

// compilerArtifactMessage is the subset of a `compiler-artifact` Cargo
// message needed to recognize a proc-macro crate's shared-library output.
type compilerArtifactMessage struct {
	Reason    string `json:"reason"`
	PackageId string `json:"package_id"`
	Target    struct {
		Kind       []string `json:"kind"`
		CrateTypes []string `json:"crate_types"`
	} `json:"target"`
	Filenames []string `json:"filenames"`
}

const procMacroKind = "proc-macro"

var dynamicLibExtensions = map[string]bool{"so": true, "dylib": true, "dll": true}

// RunWorkspaceCheck spawns the workspace-wide `cargo check` invocation
// backing buildTarget/rustWorkspace and folds its build-script-executed
// and compiler-artifact messages into a per-package RustCheckInfo map,
// the detail a bare `cargo metadata` snapshot never carries: cfg options,
// build-script environment, generated out-dir, and proc-macro artifact.
func RunWorkspaceCheck(ctx context.Context, logger *slog.Logger, root string, spawn spawnFunc, cancelCh <-chan struct{}) (map[string]workspace.RustCheckInfo, error) {
	if logger == nil {
		logger = slog.Default()
	}

	spec := workspaceCheckArgs()
	handle, err := spawn(logger, root, spec.Env, spec.Argv...)
	if err != nil {
		return nil, fmt.Errorf("requestactor: spawn workspace check: %w", err)
	}

	scripts := make(map[string]buildScriptExecutedMessage)
	procMacros := make(map[string]bsp.URI)

loop:
	for {
		select {
		case <-cancelCh:
			handle.Cancel()
			return nil, fmt.Errorf("requestactor: workspace check cancelled")
		case msg, ok := <-handle.Receiver():
			if !ok {
				break loop
			}
			if msg.Kind == cargoproc.Stderr {
				continue
			}
			handleCheckLine(msg.Line, scripts, procMacros)
		}
	}

	if _, err := handle.Join(ctx); err != nil {
		logger.Warn("requestactor: workspace check exited with error", slog.String("error", err.Error()))
	}

	info := make(map[string]workspace.RustCheckInfo, len(scripts)+len(procMacros))
	for id, script := range scripts {
		info[id] = workspace.RustCheckInfo{
			CfgOptions: cfgOptionsFromScript(script),
			Env:        envFromScript(script),
			OutDirUrl:  fileURICheck(script.OutDir),
		}
	}
	for id, artifact := range procMacros {
		entry := info[id]
		entry.ProcMacroArtifact = artifact
		info[id] = entry
	}
	return info, nil
}

func handleCheckLine(line string, scripts map[string]buildScriptExecutedMessage, procMacros map[string]bsp.URI) {
	var probe struct {
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(line), &probe); err != nil {
		return
	}
	switch probe.Reason {
	case "build-script-executed":
		var msg buildScriptExecutedMessage
		if err := json.Unmarshal([]byte(line), &msg); err == nil {
			scripts[msg.PackageId] = msg
		}
	case "compiler-artifact":
		var msg compilerArtifactMessage
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			return
		}
		if !containsStr(msg.Target.Kind, procMacroKind) || !containsStr(msg.Target.CrateTypes, procMacroKind) {
			return
		}
		for _, f := range msg.Filenames {
			if dynamicLibExtensions[strings.TrimPrefix(extOf(f), ".")] {
				procMacros[msg.PackageId] = fileURICheck(f)
				break
			}
		}
	}
}

func cfgOptionsFromScript(script buildScriptExecutedMessage) *bsp.RustCfgOptions {
	keyValue := make(map[string][]string)
	var names []string
	for _, cfg := range script.Cfgs {
		key, value, hasValue := strings.Cut(cfg, "=")
		if !hasValue {
			names = append(names, key)
			continue
		}
		keyValue[key] = append(keyValue[key], strings.Trim(value, `"`))
	}
	return &bsp.RustCfgOptions{KeyValueOptions: keyValue, NameOptions: names}
}

func envFromScript(script buildScriptExecutedMessage) map[string]string {
	env := make(map[string]string, len(script.Env))
	for _, kv := range script.Env {
		env[kv[0]] = kv[1]
	}
	return env
}

func containsStr(items []string, want string) bool {
	for _, it := range items {
		if it == want {
			return true
		}
	}
	return false
}

func extOf(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[i:]
	}
	return ""
}

// fileURICheck is a simpler form of workspace's own fileURI conversion:
// it neither converts path separators nor lowercases a Windows drive
// letter. Kept here rather than exported since it's a one-line
// path-to-URI rule, not shared workspace state.
func fileURICheck(path string) bsp.URI {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "/") {
		return bsp.URI("file://" + path)
	}
	return bsp.URI("file:///" + path)
}
