package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Cargo.Bin != "cargo" {
		t.Errorf("expected default cargo bin \"cargo\", got %s", cfg.Cargo.Bin)
	}
	if cfg.Cargo.NightlyToolchain != "nightly" {
		t.Errorf("expected default nightly toolchain \"nightly\", got %s", cfg.Cargo.NightlyToolchain)
	}
	if !cfg.Workspace.WatchManifests {
		t.Error("expected manifest watching enabled by default")
	}
	if cfg.Server.RequestBufferSize != 64 {
		t.Errorf("expected default request buffer size 64, got %d", cfg.Server.RequestBufferSize)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing cargo bin",
			modify:  func(c *Config) { c.Cargo.Bin = "" },
			wantErr: true,
		},
		{
			name:    "zero request buffer size",
			modify:  func(c *Config) { c.Server.RequestBufferSize = 0 },
			wantErr: true,
		},
		{
			name:    "negative max concurrent invocations",
			modify:  func(c *Config) { c.Server.MaxConcurrentCargoInvocations = -1 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
cargo:
  bin: "/opt/rust/bin/cargo"
  nightly_toolchain: "nightly-2026-01-01"
  metadata_timeout: 45s
workspace:
  root: "/test/path"
  watch_manifests: false
server:
  request_buffer_size: 128
  max_concurrent_cargo_invocations: 2
  metrics_addr: "127.0.0.1:9090"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Cargo.Bin != "/opt/rust/bin/cargo" {
		t.Errorf("expected cargo bin /opt/rust/bin/cargo, got %s", cfg.Cargo.Bin)
	}
	if cfg.Cargo.MetadataTimeout != 45*time.Second {
		t.Errorf("expected metadata timeout 45s, got %v", cfg.Cargo.MetadataTimeout)
	}
	if cfg.Workspace.Root != "/test/path" {
		t.Errorf("expected workspace root /test/path, got %s", cfg.Workspace.Root)
	}
	if cfg.Server.RequestBufferSize != 128 {
		t.Errorf("expected request buffer size 128, got %d", cfg.Server.RequestBufferSize)
	}
	if cfg.Server.MetricsAddr != "127.0.0.1:9090" {
		t.Errorf("expected metrics addr 127.0.0.1:9090, got %s", cfg.Server.MetricsAddr)
	}
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	override := &Config{
		Cargo: CargoConfig{
			Bin: "cargo-custom",
		},
		Workspace: WorkspaceConfig{
			Root: "/override/path",
		},
	}

	base.Merge(override)

	if base.Cargo.Bin != "cargo-custom" {
		t.Errorf("expected cargo bin cargo-custom, got %s", base.Cargo.Bin)
	}
	// NightlyToolchain should remain from base since override didn't set it.
	if base.Cargo.NightlyToolchain != "nightly" {
		t.Errorf("expected nightly toolchain to remain default, got %s", base.Cargo.NightlyToolchain)
	}
	if base.Workspace.Root != "/override/path" {
		t.Errorf("expected workspace root /override/path, got %s", base.Workspace.Root)
	}
}

func TestConfigSaveToFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "subdir", "config.yaml")

	cfg := DefaultConfig()
	cfg.Cargo.Bin = "/usr/local/bin/cargo"

	if err := cfg.SaveToFile(configPath); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("config file was not created")
	}

	loaded, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("failed to load saved config: %v", err)
	}
	if loaded.Cargo.Bin != "/usr/local/bin/cargo" {
		t.Errorf("expected cargo bin /usr/local/bin/cargo, got %s", loaded.Cargo.Bin)
	}
}
