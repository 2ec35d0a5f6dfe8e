// Package workspace holds the in-memory snapshot of a Cargo workspace —
// packages, targets, and their feature-dependency graphs — built once
// from `cargo metadata --all-features` and mutated only by explicit
// feature-toggle requests.
package workspace

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"

	"github.com/cargo-bsp/cargo-bsp-go/internal/bsp"
)

// TargetKind is the Cargo target kind, as reported by `cargo metadata`.
type TargetKind string

const (
	KindLib         TargetKind = "lib"
	KindBin         TargetKind = "bin"
	KindExample     TargetKind = "example"
	KindTest        TargetKind = "test"
	KindBench       TargetKind = "bench"
	KindCustomBuild TargetKind = "custom-build"
)

// Target is one Cargo build target within a package.
type Target struct {
	Name             string
	Kind             TargetKind
	SrcPath          string
	Edition          string
	CrateTypes       []string
	RequiredFeatures []string
	Doctest          bool
}

// CargoPackage is a single workspace-member package: its targets,
// dependencies, and feature graph.
type CargoPackage struct {
	Name                    string
	Id                      string
	Version                 string
	Edition                 string
	Source                  string
	ManifestPath            string
	Dependencies            []Dependency
	Targets                 []Target
	EnabledFeatures         map[string]bool
	DefaultFeaturesDisabled bool
	PackageFeatures         map[string][]string
}

// EnableFeatures enables each named feature; a feature absent from
// PackageFeatures is a no-op (logged, not fatal), matching Cargo's own
// tolerance for redundant --features flags.
func (p *CargoPackage) EnableFeatures(logger *slog.Logger, features []string) {
	for _, f := range features {
		if !p.IsDefinedFeature(f) {
			logger.Warn("workspace: enabling unknown feature is a no-op", slog.String("package", p.Name), slog.String("feature", f))
			continue
		}
		if p.EnabledFeatures == nil {
			p.EnabledFeatures = make(map[string]bool)
		}
		p.EnabledFeatures[f] = true
	}
}

// DisableFeatures disables each named feature; disabling a feature that
// isn't currently enabled is a no-op.
func (p *CargoPackage) DisableFeatures(logger *slog.Logger, features []string) {
	for _, f := range features {
		if !p.EnabledFeatures[f] {
			logger.Warn("workspace: disabling a non-enabled feature is a no-op", slog.String("package", p.Name), slog.String("feature", f))
			continue
		}
		delete(p.EnabledFeatures, f)
	}
}

// targetID derives a stable opaque build-target id from the target's
// owning package, name and source path; clients never introspect it.
func targetID(pkg, name, srcPath string) bsp.URI {
	sum := sha256.Sum256([]byte(pkg + "::" + name + "::" + srcPath))
	return bsp.URI("cargo-target://" + hex.EncodeToString(sum[:16]))
}

func manifestURI(path string) bsp.URI {
	return fileURI(path)
}

// Workspace is the queryable snapshot backing workspace/buildTargets and
// the Rust workspace extension.
type Workspace struct {
	logger   *slog.Logger
	Root     string
	packages map[string]*CargoPackage

	targetToPackage map[bsp.URI]string
	targetToTarget  map[bsp.URI]*Target
	targetID        map[bsp.URI]struct{ pkg, name string }
}

// New builds an empty workspace ready to have packages added via AddPackage.
func New(logger *slog.Logger, root string) *Workspace {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workspace{
		logger:          logger,
		Root:            root,
		packages:        make(map[string]*CargoPackage),
		targetToPackage: make(map[bsp.URI]string),
		targetToTarget:  make(map[bsp.URI]*Target),
	}
}

// AddPackage registers a package and indexes each of its targets.
func (w *Workspace) AddPackage(pkg *CargoPackage) {
	w.packages[pkg.Name] = pkg
	for i := range pkg.Targets {
		t := &pkg.Targets[i]
		id := targetID(pkg.Name, t.Name, t.SrcPath)
		w.targetToPackage[id] = pkg.Name
		w.targetToTarget[id] = t
	}
}

// Package looks up a package by name.
func (w *Workspace) Package(name string) (*CargoPackage, bool) {
	p, ok := w.packages[name]
	return p, ok
}

// Packages returns every workspace-member package.
func (w *Workspace) Packages() []*CargoPackage {
	out := make([]*CargoPackage, 0, len(w.packages))
	for _, p := range w.packages {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func tagsForKind(kind TargetKind) []bsp.BuildTargetTag {
	switch kind {
	case KindLib:
		return []bsp.BuildTargetTag{bsp.TagLibrary}
	case KindBin, KindExample:
		return []bsp.BuildTargetTag{bsp.TagApplication}
	case KindTest:
		return []bsp.BuildTargetTag{bsp.TagTest}
	case KindBench:
		return []bsp.BuildTargetTag{bsp.TagBenchmark}
	default:
		return nil
	}
}

func capabilitiesForKind(kind TargetKind) bsp.BuildTargetCapabilities {
	switch kind {
	case KindLib:
		return bsp.BuildTargetCapabilities{CanCompile: true, CanTest: true, CanDebug: true}
	case KindBin:
		return bsp.BuildTargetCapabilities{CanCompile: true, CanTest: true, CanRun: true, CanDebug: true}
	case KindExample:
		return bsp.BuildTargetCapabilities{CanCompile: true, CanRun: true, CanDebug: true}
	case KindTest, KindBench:
		return bsp.BuildTargetCapabilities{CanCompile: true, CanRun: true, CanDebug: true}
	default:
		return bsp.BuildTargetCapabilities{}
	}
}

// enabledDependencyTargets resolves pkg's enabled dependencies to the
// build-target ids of their library targets.
func (w *Workspace) enabledDependencyTargets(pkg *CargoPackage) []bsp.BuildTargetIdentifier {
	var deps []bsp.BuildTargetIdentifier
	for _, dep := range pkg.Dependencies {
		if !pkg.IsDependencyEnabled(dep) {
			continue
		}
		depPkg, ok := w.packages[dep.Name]
		if !ok {
			continue
		}
		for i := range depPkg.Targets {
			if depPkg.Targets[i].Kind == KindLib {
				deps = append(deps, bsp.BuildTargetIdentifier{URI: targetID(depPkg.Name, depPkg.Targets[i].Name, depPkg.Targets[i].SrcPath)})
			}
		}
	}
	return deps
}

// buildTarget materializes a single bsp.BuildTarget for t within pkg.
func (w *Workspace) buildTarget(pkg *CargoPackage, t *Target) bsp.BuildTarget {
	id := targetID(pkg.Name, t.Name, t.SrcPath)
	rust := bsp.RustBuildTarget{
		Edition:          t.Edition,
		RequiredFeatures: t.RequiredFeatures,
		CrateTypes:       t.CrateTypes,
		Kind:             string(t.Kind),
		Doctest:          t.Doctest,
	}
	return bsp.BuildTarget{
		Id:            bsp.BuildTargetIdentifier{URI: id},
		DisplayName:   fmt.Sprintf("%s (%s)", t.Name, t.Kind),
		BaseDirectory: manifestURI(pkg.ManifestPath),
		Tags:          tagsForKind(t.Kind),
		LanguageIds:   []string{"rust"},
		Dependencies:  w.enabledDependencyTargets(pkg),
		Capabilities:  capabilitiesForKind(t.Kind),
		DataKind:      "rust",
		Data:          rust,
	}
}

// AllBuildTargets flattens every non-custom-build target across every
// package into the workspace/buildTargets response.
func (w *Workspace) AllBuildTargets() []bsp.BuildTarget {
	var out []bsp.BuildTarget
	for _, pkg := range w.Packages() {
		for i := range pkg.Targets {
			if pkg.Targets[i].Kind == KindCustomBuild {
				continue
			}
			out = append(out, w.buildTarget(pkg, &pkg.Targets[i]))
		}
	}
	return out
}

// TargetDetails resolves a build-target id to its owning package and
// target, returning the enabled-feature set needed by command
// construction along with the manifest path.
type TargetDetails struct {
	Package         *CargoPackage
	Target          *Target
	EnabledFeatures []string
}

var errTargetNotFound = fmt.Errorf("workspace: unknown build target")

// TargetDetails looks up a build target by id.
func (w *Workspace) TargetDetails(id bsp.BuildTargetIdentifier) (*TargetDetails, error) {
	pkgName, ok := w.targetToPackage[id.URI]
	if !ok {
		return nil, errTargetNotFound
	}
	pkg := w.packages[pkgName]
	t := w.targetToTarget[id.URI]

	effective := pkg.effectiveEnabledFeatures()
	features := make([]string, 0, len(effective))
	for f := range effective {
		features = append(features, f)
	}
	sort.Strings(features)

	return &TargetDetails{Package: pkg, Target: t, EnabledFeatures: features}, nil
}

// SortTestTargets orders build-target ids by (package name, kind, target
// name); sequential test execution follows this order.
func (w *Workspace) SortTestTargets(ids []bsp.BuildTargetIdentifier) []bsp.BuildTargetIdentifier {
	out := append([]bsp.BuildTargetIdentifier{}, ids...)
	sort.Slice(out, func(i, j int) bool {
		pi, ti := w.targetToPackage[out[i].URI], w.targetToTarget[out[i].URI]
		pj, tj := w.targetToPackage[out[j].URI], w.targetToTarget[out[j].URI]
		if pi != pj {
			return pi < pj
		}
		if ti.Kind != tj.Kind {
			return ti.Kind < tj.Kind
		}
		return ti.Name < tj.Name
	})
	return out
}

// CargoFeaturesState reports every package's available and currently
// enabled features, for workspace/cargoFeaturesState.
func (w *Workspace) CargoFeaturesState() bsp.CargoFeaturesStateResult {
	var out bsp.CargoFeaturesStateResult
	for _, pkg := range w.Packages() {
		enabled := make([]string, 0, len(pkg.EnabledFeatures))
		for f := range pkg.EnabledFeatures {
			enabled = append(enabled, f)
		}
		sort.Strings(enabled)

		var targetIDs []bsp.BuildTargetIdentifier
		for i := range pkg.Targets {
			targetIDs = append(targetIDs, bsp.BuildTargetIdentifier{URI: targetID(pkg.Name, pkg.Targets[i].Name, pkg.Targets[i].SrcPath)})
		}

		out.PackagesFeatures = append(out.PackagesFeatures, bsp.PackagesFeatures{
			PackageId:         pkg.Name,
			TargetIds:         targetIDs,
			AvailableFeatures: pkg.PackageFeatures,
			EnabledFeatures:   enabled,
		})
	}
	return out
}

// EnableFeatures toggles features on for a package.
func (w *Workspace) EnableFeatures(packageId string, features []string) error {
	pkg, ok := w.packages[packageId]
	if !ok {
		return fmt.Errorf("workspace: unknown package %q", packageId)
	}
	pkg.EnableFeatures(w.logger, features)
	return nil
}

// DisableFeatures toggles features off for a package.
func (w *Workspace) DisableFeatures(packageId string, features []string) error {
	pkg, ok := w.packages[packageId]
	if !ok {
		return fmt.Errorf("workspace: unknown package %q", packageId)
	}
	pkg.DisableFeatures(w.logger, features)
	return nil
}
