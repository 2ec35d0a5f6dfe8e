// Package config provides configuration loading and management for the
// Cargo BSP server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete server configuration.
type Config struct {
	Cargo     CargoConfig     `yaml:"cargo"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Server    ServerConfig    `yaml:"server"`
}

// CargoConfig configures how the server invokes the Cargo toolchain.
type CargoConfig struct {
	// Bin is the cargo binary to invoke (default: "cargo").
	Bin string `yaml:"bin"`
	// NightlyToolchain is a toolchain name such as "nightly". It is loaded
	// and merged but not read when commands are built: test runs always
	// pass `+nightly`.
	NightlyToolchain string `yaml:"nightly_toolchain"`
	// MetadataTimeout is loaded and merged; `cargo metadata` runs are not
	// bounded by it.
	MetadataTimeout time.Duration `yaml:"metadata_timeout"`
}

// WorkspaceConfig configures the workspace root and manifest watching.
type WorkspaceConfig struct {
	// Root is the workspace root path. When it is empty, Loader.Load fills
	// it with the git repository root or the current directory; the
	// initialize request's rootUri is not consulted.
	Root string `yaml:"root"`
	// WatchManifests enables the fsnotify-based Cargo.toml/Cargo.lock
	// watcher. Detected changes are logged; no notification is sent to
	// the client.
	WatchManifests bool `yaml:"watch_manifests"`
}

// ServerConfig configures the BSP server's concurrency and I/O surface.
type ServerConfig struct {
	// RequestBufferSize bounds the inbound request channel depth.
	RequestBufferSize int `yaml:"request_buffer_size"`
	// MaxConcurrentCargoInvocations must be positive to pass Validate; the
	// number of simultaneous cargo subprocesses is not limited by it.
	MaxConcurrentCargoInvocations int `yaml:"max_concurrent_cargo_invocations"`
	// MetricsAddr is the listen address for the Prometheus /metrics
	// endpoint (empty disables it).
	MetricsAddr string `yaml:"metrics_addr"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Cargo: CargoConfig{
			Bin:              "cargo",
			NightlyToolchain: "nightly",
			MetadataTimeout:  30 * time.Second,
		},
		Workspace: WorkspaceConfig{
			Root:           "",
			WatchManifests: true,
		},
		Server: ServerConfig{
			RequestBufferSize:             64,
			MaxConcurrentCargoInvocations: 4,
			MetricsAddr:                   "",
		},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Cargo.Bin == "" {
		return fmt.Errorf("cargo.bin is required")
	}
	if c.Server.RequestBufferSize <= 0 {
		return fmt.Errorf("server.request_buffer_size must be positive")
	}
	if c.Server.MaxConcurrentCargoInvocations <= 0 {
		return fmt.Errorf("server.max_concurrent_cargo_invocations must be positive")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one; other takes precedence for
// non-zero values.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Cargo.Bin != "" {
		c.Cargo.Bin = other.Cargo.Bin
	}
	if other.Cargo.NightlyToolchain != "" {
		c.Cargo.NightlyToolchain = other.Cargo.NightlyToolchain
	}
	if other.Cargo.MetadataTimeout != 0 {
		c.Cargo.MetadataTimeout = other.Cargo.MetadataTimeout
	}

	if other.Workspace.Root != "" {
		c.Workspace.Root = other.Workspace.Root
	}

	if other.Server.RequestBufferSize != 0 {
		c.Server.RequestBufferSize = other.Server.RequestBufferSize
	}
	if other.Server.MaxConcurrentCargoInvocations != 0 {
		c.Server.MaxConcurrentCargoInvocations = other.Server.MaxConcurrentCargoInvocations
	}
	if other.Server.MetricsAddr != "" {
		c.Server.MetricsAddr = other.Server.MetricsAddr
	}
}
