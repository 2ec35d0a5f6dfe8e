package workspace

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
)

// cargoMetadata is the slice of `cargo metadata --all-features` JSON this
// package actually consumes; Cargo's real output carries many more
// fields, all ignored here.
type cargoMetadata struct {
	Packages         []metaPackage `json:"packages"`
	WorkspaceMembers []string      `json:"workspace_members"`
}

type metaPackage struct {
	Name     string                `json:"name"`
	Id       string                `json:"id"`
	Version  string                `json:"version"`
	Edition  string                `json:"edition"`
	Source   string                `json:"source"`
	Manifest string                `json:"manifest_path"`
	Targets  []metaTarget          `json:"targets"`
	Features map[string][]string   `json:"features"`
	Dependencies []metaDependency  `json:"dependencies"`
}

type metaTarget struct {
	Name             string   `json:"name"`
	Kind             []string `json:"kind"`
	SrcPath          string   `json:"src_path"`
	Edition          string   `json:"edition"`
	CrateTypes       []string `json:"crate_types"`
	RequiredFeatures []string `json:"required-features"`
	Doctest          bool     `json:"doctest"`
}

type metaDependency struct {
	Name     string `json:"name"`
	Optional bool   `json:"optional"`
}

// Load runs `cargo metadata --all-features` in root and builds a
// Workspace from its output. --all-features only widens discovery so
// feature-gated targets and dependencies aren't hidden from the graph;
// every package's EnabledFeatures starts empty regardless, since BSP's
// "enabled" set is owned entirely by enableCargoFeatures/disableCargoFeatures,
// never by what Cargo's resolver happened to activate for this one query.
func Load(logger *slog.Logger, cargoBin, root string) (*Workspace, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cargoBin == "" {
		cargoBin = "cargo"
	}
	cmd := exec.Command(cargoBin, "metadata", "--all-features", "--format-version=1")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("workspace: cargo metadata: %w", err)
	}

	return buildWorkspaceFromMetadata(logger, root, out)
}

// buildWorkspaceFromMetadata parses a `cargo metadata --format-version=1`
// payload into a *Workspace; split out from Load so the parsing/building
// logic is testable without a real cargo binary.
func buildWorkspaceFromMetadata(logger *slog.Logger, root string, out []byte) (*Workspace, error) {
	var meta cargoMetadata
	if err := json.Unmarshal(out, &meta); err != nil {
		return nil, fmt.Errorf("workspace: parse cargo metadata: %w", err)
	}

	members := make(map[string]bool, len(meta.WorkspaceMembers))
	for _, id := range meta.WorkspaceMembers {
		members[id] = true
	}

	nameToId := make(map[string]string, len(meta.Packages))
	for _, mp := range meta.Packages {
		nameToId[mp.Name] = mp.Id
	}

	ws := New(logger, root)
	for _, mp := range meta.Packages {
		if len(members) > 0 && !members[mp.Id] {
			continue
		}
		pkg := &CargoPackage{
			Name:            mp.Name,
			Id:              mp.Id,
			Version:         mp.Version,
			Edition:         mp.Edition,
			Source:          mp.Source,
			ManifestPath:    mp.Manifest,
			PackageFeatures: mp.Features,
			EnabledFeatures: make(map[string]bool),
		}
		for _, dep := range mp.Dependencies {
			pkg.Dependencies = append(pkg.Dependencies, Dependency{Name: dep.Name, PackageId: nameToId[dep.Name], Optional: dep.Optional})
		}
		for _, t := range mp.Targets {
			kind := KindLib
			if len(t.Kind) > 0 {
				kind = TargetKind(t.Kind[0])
			}
			pkg.Targets = append(pkg.Targets, Target{
				Name:             t.Name,
				Kind:             kind,
				SrcPath:          t.SrcPath,
				Edition:          t.Edition,
				CrateTypes:       t.CrateTypes,
				RequiredFeatures: t.RequiredFeatures,
				Doctest:          t.Doctest,
			})
		}
		ws.AddPackage(pkg)
	}
	return ws, nil
}
