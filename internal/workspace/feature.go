package workspace

import "strings"

// Dependency is one (possibly optional, possibly feature-gated) edge from
// a package to another crate it depends on.
type Dependency struct {
	Name      string
	PackageId string
	Optional  bool
}

// checkIfFeatureEnablesDependency reports whether a single feature token
// activates the named optional dependency. Cargo's three token shapes
// must not be conflated:
//   - "dep:NAME"   activates the optional dependency NAME.
//   - "NAME/f"     activates NAME (and its feature f).
//   - "NAME?/f"    activates feature f of NAME only if NAME is already
//     enabled some other way — it never activates NAME by itself.
func checkIfFeatureEnablesDependency(token, dep string) bool {
	if token == "dep:"+dep {
		return true
	}
	if strings.HasPrefix(token, dep+"?/") {
		return false
	}
	if strings.HasPrefix(token, dep+"/") {
		return true
	}
	return false
}

// isFeatureReferenceToken reports whether a token names another feature
// directly, as opposed to a dependency activation (`dep:x`, `x/y`, `x?/y`).
func isFeatureReferenceToken(token string) bool {
	return !strings.Contains(token, "/") && !strings.HasPrefix(token, "dep:")
}

// effectiveEnabledFeatures computes the transitive closure of the
// package's enabled-features set: the explicitly enabled features plus,
// unless default features are disabled, the "default" feature, closed
// over package_features via BFS with a visited set so cycles terminate.
func (p *CargoPackage) effectiveEnabledFeatures() map[string]bool {
	visited := make(map[string]bool)
	queue := make([]string, 0, len(p.EnabledFeatures)+1)
	for f := range p.EnabledFeatures {
		queue = append(queue, f)
	}
	if !p.DefaultFeaturesDisabled {
		if _, ok := p.PackageFeatures["default"]; ok {
			queue = append(queue, "default")
		}
	}

	for len(queue) > 0 {
		f := queue[0]
		queue = queue[1:]
		if visited[f] {
			continue
		}
		visited[f] = true
		for _, token := range p.PackageFeatures[f] {
			if isFeatureReferenceToken(token) {
				if _, ok := p.PackageFeatures[token]; ok && !visited[token] {
					queue = append(queue, token)
				}
			}
		}
	}
	return visited
}

// IsDependencyEnabled reports whether dep is activated given the
// package's current feature selection. Non-optional dependencies are
// always enabled. Optional dependencies are enabled iff some feature in
// the effective enabled set (which is itself already a closed, cycle-safe
// set) carries a token matching dep:D or D/anything.
func (p *CargoPackage) IsDependencyEnabled(dep Dependency) bool {
	if !dep.Optional {
		return true
	}
	effective := p.effectiveEnabledFeatures()
	for f := range effective {
		for _, token := range p.PackageFeatures[f] {
			if checkIfFeatureEnablesDependency(token, dep.Name) {
				return true
			}
		}
	}
	return false
}

// IsDefinedFeature reports whether feature appears in package_features.
func (p *CargoPackage) IsDefinedFeature(feature string) bool {
	_, ok := p.PackageFeatures[feature]
	return ok
}
