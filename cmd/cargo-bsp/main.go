// Package main implements the cargo-bsp CLI - a Build Server Protocol
// server fronting Cargo.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/cargo-bsp/cargo-bsp-go/internal/config"
	"github.com/cargo-bsp/cargo-bsp-go/internal/mainloop"
	"github.com/cargo-bsp/cargo-bsp-go/internal/metrics"
	"github.com/cargo-bsp/cargo-bsp-go/internal/rpc"
	"github.com/cargo-bsp/cargo-bsp-go/internal/transport"
	"github.com/cargo-bsp/cargo-bsp-go/internal/workspace"
)

// Build information (set via ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		root       string
		cargoBin   string
		logLevel   string
	)

	rootCmd := &cobra.Command{
		Use:     "cargo-bsp",
		Short:   "Build Server Protocol server for Cargo workspaces",
		Version: fmt.Sprintf("%s (built %s)", Version, BuildTime),
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configPath, root, cargoBin, logLevel)
		},
	}

	rootCmd.Flags().StringVar(&configPath, "config", "", "path to config file, overriding the layered default/user/project lookup")
	rootCmd.Flags().StringVar(&root, "root", "", "workspace root (default: the configured root, else the git repository root or the current directory)")
	rootCmd.Flags().StringVar(&cargoBin, "cargo-bin", "", "cargo binary to invoke (default: \"cargo\")")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

func serve(ctx context.Context, configPath, root, cargoBin, logLevel string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(logLevel)}))

	cfg, err := loadConfig(logger, configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if root != "" {
		cfg.Workspace.Root = root
	}
	if cargoBin != "" {
		cfg.Cargo.Bin = cargoBin
	}
	if cfg.Workspace.Root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolve working directory: %w", err)
		}
		cfg.Workspace.Root = wd
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ws, err := workspace.Load(logger, cfg.Cargo.Bin, cfg.Workspace.Root)
	if err != nil {
		return fmt.Errorf("load workspace at %s: %w", cfg.Workspace.Root, err)
	}

	m := metrics.New()
	if cfg.Server.MetricsAddr != "" {
		go serveMetrics(logger, cfg.Server.MetricsAddr, m)
	}

	var watcher *workspace.ManifestWatcher
	if cfg.Workspace.WatchManifests {
		watcher, err = workspace.NewManifestWatcher(logger, cfg.Workspace.Root)
		if err != nil {
			logger.Warn("manifest watcher unavailable, workspace/reload must be triggered manually", slog.String("error", err.Error()))
		} else {
			defer watcher.Close()
		}
	}

	tp := transport.NewStdio(logger, os.Stdin, os.Stdout)
	inbox := make(chan rpc.Message, cfg.Server.RequestBufferSize)

	gs := mainloop.New(logger, cfg, ws, m, func(msg rpc.Message) {
		if err := tp.Send(msg); err != nil {
			logger.Error("transport: send failed", slog.String("error", err.Error()))
		}
	})

	go pumpInbox(logger, tp, inbox)
	if watcher != nil {
		go logManifestChanges(ctx, logger, watcher)
	}

	done := make(chan error, 1)
	go func() { done <- gs.Run(inbox) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return nil
	}
}

// pumpInbox reads frames off the transport until it closes or errors,
// handing each one to the main loop's inbox; closing inbox signals Run
// to treat the stream as disconnected.
func pumpInbox(logger *slog.Logger, tp *transport.Stdio, inbox chan<- rpc.Message) {
	defer close(inbox)
	for {
		msg, err := tp.Recv()
		if err != nil {
			logger.Debug("transport: recv ended", slog.String("error", err.Error()))
			return
		}
		inbox <- msg
	}
}

// logManifestChanges surfaces Cargo.toml/Cargo.lock edits made outside
// the client's own editing session; the client is expected to issue its
// own workspace/reload once it notices, per the BSP contract.
func logManifestChanges(ctx context.Context, logger *slog.Logger, watcher *workspace.ManifestWatcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case path, ok := <-watcher.Changed:
			if !ok {
				return
			}
			logger.Info("manifest changed on disk, client should workspace/reload", slog.String("path", path))
		}
	}
}

func serveMetrics(logger *slog.Logger, addr string, m *metrics.Collectors) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	logger.Info("metrics endpoint listening", slog.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics endpoint stopped", slog.String("error", err.Error()))
	}
}

func loadConfig(logger *slog.Logger, configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.NewLoader(logger).Load()
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
