package workspace

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckIfFeatureEnablesDependency(t *testing.T) {
	assert.True(t, checkIfFeatureEnablesDependency("dep:serde", "serde"))
	assert.True(t, checkIfFeatureEnablesDependency("serde/derive", "serde"))
	assert.False(t, checkIfFeatureEnablesDependency("serde?/derive", "serde"))
	assert.False(t, checkIfFeatureEnablesDependency("other", "serde"))
	assert.False(t, checkIfFeatureEnablesDependency("dep:other", "serde"))
}

func TestIsDefinedFeature(t *testing.T) {
	p := &CargoPackage{PackageFeatures: map[string][]string{"json": {"dep:serde_json"}}}
	assert.True(t, p.IsDefinedFeature("json"))
	assert.False(t, p.IsDefinedFeature("xml"))
}

func TestIsDependencyEnabledNonOptionalAlwaysTrue(t *testing.T) {
	p := &CargoPackage{}
	assert.True(t, p.IsDependencyEnabled(Dependency{Name: "libc", Optional: false}))
}

func TestIsDependencyEnabledViaDepToken(t *testing.T) {
	p := &CargoPackage{
		PackageFeatures: map[string][]string{"json": {"dep:serde_json"}},
		EnabledFeatures: map[string]bool{"json": true},
	}
	assert.True(t, p.IsDependencyEnabled(Dependency{Name: "serde_json", Optional: true}))
	assert.False(t, p.IsDependencyEnabled(Dependency{Name: "other", Optional: true}))
}

func TestIsDependencyEnabledViaSlashToken(t *testing.T) {
	p := &CargoPackage{
		PackageFeatures: map[string][]string{"extra": {"serde/derive"}},
		EnabledFeatures: map[string]bool{"extra": true},
	}
	assert.True(t, p.IsDependencyEnabled(Dependency{Name: "serde", Optional: true}))
}

func TestIsDependencyEnabledWeakTokenAloneDoesNotEnable(t *testing.T) {
	p := &CargoPackage{
		PackageFeatures: map[string][]string{"extra": {"serde?/derive"}},
		EnabledFeatures: map[string]bool{"extra": true},
	}
	assert.False(t, p.IsDependencyEnabled(Dependency{Name: "serde", Optional: true}))
}

func TestEffectiveEnabledFeaturesClosesOverDefault(t *testing.T) {
	p := &CargoPackage{
		PackageFeatures: map[string][]string{
			"default": {"std"},
			"std":     {"dep:alloc"},
		},
	}
	effective := p.effectiveEnabledFeatures()
	assert.True(t, effective["default"])
	assert.True(t, effective["std"])
}

func TestEffectiveEnabledFeaturesHonorsDefaultFeaturesDisabled(t *testing.T) {
	p := &CargoPackage{
		PackageFeatures:         map[string][]string{"default": {"std"}, "std": {}},
		DefaultFeaturesDisabled: true,
	}
	effective := p.effectiveEnabledFeatures()
	assert.False(t, effective["default"])
	assert.False(t, effective["std"])
}

// TestIsDependencyEnabledTerminatesOnCycle guards against the BFS
// regressing into an infinite loop when two features enable each other.
func TestIsDependencyEnabledTerminatesOnCycle(t *testing.T) {
	p := &CargoPackage{
		PackageFeatures: map[string][]string{
			"a": {"b", "dep:x"},
			"b": {"a"},
		},
		EnabledFeatures: map[string]bool{"a": true},
	}

	done := make(chan bool, 1)
	go func() {
		done <- p.IsDependencyEnabled(Dependency{Name: "x", Optional: true})
	}()

	select {
	case enabled := <-done:
		assert.True(t, enabled)
	case <-time.After(10 * time.Second):
		t.Fatal("IsDependencyEnabled did not terminate on a cyclic feature graph")
	}
}

func TestEnableFeaturesUnknownFeatureIsNoOp(t *testing.T) {
	p := &CargoPackage{PackageFeatures: map[string][]string{"json": {}}}
	p.EnableFeatures(slog.Default(), []string{"bogus"})
	assert.False(t, p.EnabledFeatures["bogus"])
}

func TestDisableFeaturesNonEnabledIsNoOp(t *testing.T) {
	p := &CargoPackage{EnabledFeatures: map[string]bool{}}
	p.DisableFeatures(slog.Default(), []string{"json"})
	assert.Empty(t, p.EnabledFeatures)
}

func TestEnableThenDisableFeaturesIsNoOpOnState(t *testing.T) {
	p := &CargoPackage{PackageFeatures: map[string][]string{"json": {"dep:serde_json"}}, EnabledFeatures: map[string]bool{}}
	p.EnableFeatures(slog.Default(), []string{"json"})
	require.True(t, p.EnabledFeatures["json"])
	p.DisableFeatures(slog.Default(), []string{"json"})
	assert.Empty(t, p.EnabledFeatures)
}
