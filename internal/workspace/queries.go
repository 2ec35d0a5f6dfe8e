package workspace

import (
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/cargo-bsp/cargo-bsp-go/internal/bsp"
)

// itemKindFile/itemKindDirectory mirror the BSP SourceItemKind/OutputPathItemKind
// enumerations: 1 is a plain file, 2 is a directory.
const (
	itemKindFile      = 1
	itemKindDirectory = 2
)

// Sources answers buildTarget/sources: one SourcesItem per requested
// target, pointing at the target's entry source file.
func (w *Workspace) Sources(ids []bsp.BuildTargetIdentifier) bsp.SourcesResult {
	var result bsp.SourcesResult
	for _, id := range ids {
		t, ok := w.targetToTarget[id.URI]
		if !ok {
			continue
		}
		pkgName := w.targetToPackage[id.URI]
		pkg := w.packages[pkgName]
		result.Items = append(result.Items, bsp.SourcesItem{
			Target: id,
			Sources: []bsp.SourceItem{
				{URI: fileURI(t.SrcPath), Kind: itemKindFile, Generated: false},
			},
			Roots: []bsp.URI{manifestURI(filepath.Dir(pkg.ManifestPath))},
		})
	}
	return result
}

// Resources answers buildTarget/resources. Cargo does not model non-code
// resource files as part of a target's manifest description, so every
// target reports an empty resource set.
func (w *Workspace) Resources(ids []bsp.BuildTargetIdentifier) bsp.ResourcesResult {
	var result bsp.ResourcesResult
	for _, id := range ids {
		if _, ok := w.targetToTarget[id.URI]; !ok {
			continue
		}
		result.Items = append(result.Items, bsp.ResourcesItem{Target: id, Resources: nil})
	}
	return result
}

// OutputPaths answers buildTarget/outputPaths: <root>/target/debug for
// every known target; other profiles and per-package output directories
// are not reported.
func (w *Workspace) OutputPaths(ids []bsp.BuildTargetIdentifier) bsp.OutputPathsResult {
	var result bsp.OutputPathsResult
	for _, id := range ids {
		if _, ok := w.targetToTarget[id.URI]; !ok {
			continue
		}
		outDir := filepath.Join(w.Root, "target", "debug")
		result.Items = append(result.Items, bsp.OutputPathsItem{
			Target: id,
			OutputPaths: []bsp.OutputPathItem{
				{URI: fileURI(outDir), Kind: itemKindDirectory},
			},
		})
	}
	return result
}

// DependencySources answers buildTarget/dependencySources: the manifest
// directory of every enabled dependency that is itself a workspace
// package (other dependencies are not listed), since the workspace model
// does not itself parse or vendor dependency crate sources.
func (w *Workspace) DependencySources(ids []bsp.BuildTargetIdentifier) bsp.DependencySourcesResult {
	var result bsp.DependencySourcesResult
	for _, id := range ids {
		pkgName, ok := w.targetToPackage[id.URI]
		if !ok {
			continue
		}
		pkg := w.packages[pkgName]
		item := bsp.DependencySourcesItem{Target: id}
		for _, dep := range pkg.Dependencies {
			if !pkg.IsDependencyEnabled(dep) {
				continue
			}
			if depPkg, ok := w.packages[dep.Name]; ok {
				item.Sources = append(item.Sources, manifestURI(filepath.Dir(depPkg.ManifestPath)))
			}
		}
		result.Items = append(result.Items, item)
	}
	return result
}

// DependencyModules answers buildTarget/dependencyModules: name/version
// pairs for every enabled dependency, resolved from the workspace's own
// package index (dependencies outside the workspace carry no version
// here, since this model only indexes workspace-member packages).
func (w *Workspace) DependencyModules(ids []bsp.BuildTargetIdentifier) bsp.DependencyModulesResult {
	var result bsp.DependencyModulesResult
	for _, id := range ids {
		pkgName, ok := w.targetToPackage[id.URI]
		if !ok {
			continue
		}
		pkg := w.packages[pkgName]
		item := bsp.DependencyModulesItem{Target: id}
		for _, dep := range pkg.Dependencies {
			if !pkg.IsDependencyEnabled(dep) {
				continue
			}
			version := ""
			if depPkg, ok := w.packages[dep.Name]; ok {
				version = depPkg.Version
			}
			item.Modules = append(item.Modules, bsp.DependencyModule{Name: dep.Name, Version: version})
		}
		result.Items = append(result.Items, item)
	}
	return result
}

// InverseSources answers buildTarget/inverseSources: every build target
// whose source file matches the given document.
func (w *Workspace) InverseSources(doc bsp.TextDocumentIdentifier) bsp.InverseSourcesResult {
	var result bsp.InverseSourcesResult
	for id, t := range w.targetToTarget {
		if fileURI(t.SrcPath) == doc.URI {
			result.Targets = append(result.Targets, bsp.BuildTargetIdentifier{URI: id})
		}
	}
	sort.Slice(result.Targets, func(i, j int) bool { return result.Targets[i].URI < result.Targets[j].URI })
	return result
}

// CleanCache answers buildTarget/cleanCache by invoking `cargo clean`
// for the whole workspace; Cargo has no per-target clean, so the
// requested target set is ignored.
func (w *Workspace) CleanCache(cargoBin string, ids []bsp.BuildTargetIdentifier) bsp.CleanCacheResult {
	if cargoBin == "" {
		cargoBin = "cargo"
	}
	cmd := exec.Command(cargoBin, "clean")
	cmd.Dir = w.Root
	if err := cmd.Run(); err != nil {
		return bsp.CleanCacheResult{Cleaned: false, Message: err.Error()}
	}
	return bsp.CleanCacheResult{Cleaned: true, Message: "cargo clean"}
}
