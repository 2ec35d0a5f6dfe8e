package workspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMetadataJSON = `{
	"packages": [
		{
			"name": "app",
			"id": "app 0.1.0",
			"version": "0.1.0",
			"edition": "2021",
			"source": null,
			"manifest_path": "/repo/Cargo.toml",
			"features": {
				"default": ["std"],
				"std": [],
				"extra": []
			},
			"dependencies": [
				{"name": "core-lib", "optional": true}
			],
			"targets": [
				{"name": "app", "kind": ["bin"], "src_path": "/repo/src/main.rs", "edition": "2021", "crate_types": ["bin"], "doctest": false}
			]
		},
		{
			"name": "core-lib",
			"id": "core-lib 0.1.0",
			"version": "0.1.0",
			"edition": "2021",
			"source": null,
			"manifest_path": "/repo/core-lib/Cargo.toml",
			"features": {},
			"dependencies": [],
			"targets": [
				{"name": "core-lib", "kind": ["lib"], "src_path": "/repo/core-lib/src/lib.rs", "edition": "2021", "crate_types": ["lib"], "doctest": true}
			]
		}
	],
	"workspace_members": ["app 0.1.0", "core-lib 0.1.0"]
}`

func TestBuildWorkspaceFromMetadataPopulatesPackageFields(t *testing.T) {
	ws, err := buildWorkspaceFromMetadata(nil, "/repo", []byte(sampleMetadataJSON))
	require.NoError(t, err)

	app, ok := ws.Package("app")
	require.True(t, ok)
	assert.Equal(t, "app 0.1.0", app.Id)
	assert.Equal(t, "0.1.0", app.Version)
	assert.Equal(t, "2021", app.Edition)
	assert.Equal(t, "/repo/Cargo.toml", app.ManifestPath)
	require.Len(t, app.Dependencies, 1)
	assert.Equal(t, "core-lib", app.Dependencies[0].Name)
	assert.Equal(t, "core-lib 0.1.0", app.Dependencies[0].PackageId)
	assert.True(t, app.Dependencies[0].Optional)
}

// TestBuildWorkspaceFromMetadataStartsWithNoEnabledFeatures guards
// against seeding EnabledFeatures from --all-features's forced resolve:
// every package must start with an empty enabled set, mutated only by
// EnableFeatures/DisableFeatures.
func TestBuildWorkspaceFromMetadataStartsWithNoEnabledFeatures(t *testing.T) {
	ws, err := buildWorkspaceFromMetadata(nil, "/repo", []byte(sampleMetadataJSON))
	require.NoError(t, err)

	app, ok := ws.Package("app")
	require.True(t, ok)
	assert.Empty(t, app.EnabledFeatures)

	coreLib, ok := ws.Package("core-lib")
	require.True(t, ok)
	assert.Empty(t, coreLib.EnabledFeatures)
}

func TestBuildWorkspaceFromMetadataFiltersNonMembers(t *testing.T) {
	const withExternalDep = `{
		"packages": [
			{"name": "app", "id": "app 0.1.0", "manifest_path": "/repo/Cargo.toml", "features": {}, "dependencies": [], "targets": []},
			{"name": "serde", "id": "serde 1.0.0", "manifest_path": "/cargo/registry/serde/Cargo.toml", "features": {}, "dependencies": [], "targets": []}
		],
		"workspace_members": ["app 0.1.0"]
	}`

	ws, err := buildWorkspaceFromMetadata(nil, "/repo", []byte(withExternalDep))
	require.NoError(t, err)

	_, ok := ws.Package("app")
	assert.True(t, ok)
	_, ok = ws.Package("serde")
	assert.False(t, ok, "a non-member package must not be added to the workspace")
}
