package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bookmarkd/api/internal/app"
	"github.com/bookmarkd/api/internal/config"
	"github.com/bookmarkd/api/internal/logging"
	"github.com/bookmarkd/api/internal/preview"
	"github.com/bookmarkd/api/internal/telemetry"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Check for subcommands before flag parsing
	if len(os.Args) > 1 && os.Args[1] == "resolve" {
		os.Exit(runResolve(os.Args[2:]))
	}

	cfg := loadConfig(os.Args[1:])

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownTelemetry := setupObservability(ctx, cfg)

	// Create application
	application, err := app.New(cfg)
	if err != nil {
		slog.Error("error creating application", "error", err)
		os.Exit(1)
	}

	// Handle graceful shutdown
	go func() {
		<-ctx.Done()
		slog.Info("received shutdown signal")

		// Give server time to shutdown gracefully
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := application.Shutdown(shutdownCtx); err != nil {
			slog.Error("error during shutdown", "error", err)
		}
	}()

	// Start application
	if err := application.Start(ctx); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer flushCancel()
	if err := shutdownTelemetry(flushCtx); err != nil {
		slog.Warn("flushing telemetry", "error", err)
	}

	slog.Info("server stopped")
}

// loadConfig parses flags (supports --config, --storage.mode, etc.) and
// exits on error.
func loadConfig(args []string) *config.Config {
	flags := config.SetupFlags()
	if err := flags.Parse(args); err != nil {
		slog.Error("error parsing flags", "error", err)
		os.Exit(2)
	}

	configPath, _ := flags.GetString("config")

	cfg, err := config.Load(configPath, flags)
	if err != nil {
		slog.Error("error loading config", "error", err)
		os.Exit(1)
	}
	return cfg
}

// setupObservability installs telemetry providers and the slog default.
// Telemetry failures are logged and the service runs without it.
func setupObservability(ctx context.Context, cfg *config.Config) telemetry.Shutdown {
	providers, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		Endpoint:       cfg.Telemetry.Endpoint,
		Protocol:       cfg.Telemetry.Protocol,
		Insecure:       cfg.Telemetry.Insecure,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		Logs:           cfg.Telemetry.Logs,
	})
	if err != nil {
		logging.Setup(cfg.Log)
		slog.Error("telemetry disabled", "error", err)
		return func(context.Context) error { return nil }
	}

	if providers.LogHandler != nil {
		logging.Setup(cfg.Log, providers.LogHandler)
	} else {
		logging.Setup(cfg.Log)
	}
	return providers.Shutdown
}

// runResolve resolves each URL argument through the full pipeline and
// prints one JSON result per line.
func runResolve(args []string) int {
	flags := config.SetupFlags()
	title := flags.String("title", "", "known page title for every URL")
	if err := flags.Parse(args); err != nil {
		slog.Error("error parsing flags", "error", err)
		return 2
	}
	urls := flags.Args()
	if len(urls) == 0 {
		fmt.Fprintln(os.Stderr, "usage: bookmarkd resolve [flags] URL...")
		return 2
	}

	configPath, _ := flags.GetString("config")
	cfg, err := config.Load(configPath, flags)
	if err != nil {
		slog.Error("error loading config", "error", err)
		return 1
	}
	logging.Setup(cfg.Log)

	p, err := app.NewPipeline(cfg)
	if err != nil {
		slog.Error("error building preview pipeline", "error", err)
		return 1
	}
	defer p.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	enc := json.NewEncoder(os.Stdout)
	for _, u := range urls {
		res := p.Resolver.Resolve(ctx, preview.Request{URL: u, KnownTitle: *title})
		if err := enc.Encode(struct {
			URL string `json:"url"`
			preview.Result
		}{u, res}); err != nil {
			slog.Error("writing result", "error", err)
			return 1
		}
		if ctx.Err() != nil {
			return 1
		}
	}
	return 0
}
