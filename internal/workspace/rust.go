package workspace

import (
	"sort"

	"github.com/cargo-bsp/cargo-bsp-go/internal/bsp"
)

// RustCheckInfo is what a `cargo check` pass over the workspace adds to a
// package beyond what `cargo metadata` alone can report: the cfg options
// and environment its build script set, where its build script wrote
// generated sources, and the shared-library artifact if it is a proc
// macro crate. Zero value means the check pass reported nothing for this
// package (no build script, nothing built yet).
type RustCheckInfo struct {
	CfgOptions        *bsp.RustCfgOptions
	Env               map[string]string
	OutDirUrl         bsp.URI
	ProcMacroArtifact bsp.URI
}

// RustWorkspaceResult answers buildTarget/rustWorkspace from the
// `cargo metadata` snapshot alone, without the cfg/env/out-dir/proc-macro
// detail only a `cargo check` pass can supply.
func (w *Workspace) RustWorkspaceResult(ids []bsp.BuildTargetIdentifier) bsp.RustWorkspaceResult {
	return w.RustWorkspaceResultWithCheck(ids, nil)
}

// RustWorkspaceResultWithCheck is RustWorkspaceResult enriched with a
// `cargo check` pass's findings, keyed by CargoPackage.Id. A nil or
// incomplete checkInfo just leaves the corresponding fields unset, same
// as RustWorkspaceResult on its own.
func (w *Workspace) RustWorkspaceResultWithCheck(ids []bsp.BuildTargetIdentifier, checkInfo map[string]RustCheckInfo) bsp.RustWorkspaceResult {
	resolved := ids
	if len(resolved) == 0 {
		for _, t := range w.AllBuildTargets() {
			resolved = append(resolved, t.Id)
		}
	}

	result := bsp.RustWorkspaceResult{ResolvedTargets: resolved}

	for _, pkg := range w.Packages() {
		effective := pkg.effectiveEnabledFeatures()
		enabled := make([]string, 0, len(effective))
		for f := range effective {
			enabled = append(enabled, f)
		}
		sort.Strings(enabled)

		rp := bsp.RustPackage{
			Id:              pkg.Name,
			Version:         pkg.Version,
			Edition:         pkg.Edition,
			Source:          pkg.Source,
			Features:        pkg.PackageFeatures,
			EnabledFeatures: enabled,
		}
		if info, ok := checkInfo[pkg.Id]; ok {
			rp.CfgOptions = info.CfgOptions
			rp.Env = info.Env
			rp.OutDirUrl = info.OutDirUrl
			rp.ProcMacroArtifact = info.ProcMacroArtifact
		}
		result.Packages = append(result.Packages, rp)

		for _, dep := range pkg.Dependencies {
			result.RawDependencies = append(result.RawDependencies, bsp.RustRawDependency{
				Name:                dep.Name,
				Optional:            dep.Optional,
				UsesDefaultFeatures: true,
			})
			if !pkg.IsDependencyEnabled(dep) {
				continue
			}
			result.Dependencies = append(result.Dependencies, bsp.RustDependency{
				Source: pkg.Name,
				Target: dep.Name,
			})
		}
	}

	return result
}
