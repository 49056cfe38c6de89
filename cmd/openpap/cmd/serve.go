package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/openpap/openpap/internal/adapter/inbound/http"
	"github.com/openpap/openpap/internal/adapter/outbound/memory"
	"github.com/openpap/openpap/internal/adapter/outbound/opa"
	"github.com/openpap/openpap/internal/adapter/outbound/sqlite"
	"github.com/openpap/openpap/internal/config"
	"github.com/openpap/openpap/internal/domain/policy"
	"github.com/openpap/openpap/internal/port/outbound"
	"github.com/openpap/openpap/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the policy administration server",
	Long: `Start the openpap HTTP server.

The server exposes the policy administration API under /policies, a
health endpoint at /health, and Prometheus metrics at /metrics. Rego
policies are pushed to the configured OPA decision engine on every
create, update, rollback, and delete.

Examples:
  # Start with config file settings
  openpap serve

  # Start with a specific config file
  openpap --config /path/to/openpap.yaml serve

  # Start in dev mode (in-memory store, no decision engine)
  openpap serve --dev`,
	RunE: runServe,
}

var devMode bool

func init() {
	serveCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (in-memory store, no decision engine, debug logging)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Override dev mode from CLI flag.
	if devMode {
		cfg.DevMode = true
	}
	if cfg.DevMode {
		cfg.Store.Driver = "memory"
		cfg.Store.Path = ""
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// Create signal context for graceful shutdown.
	// stop() restores default signal handling so a second Ctrl+C does a hard kill.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()

	// DevMode always forces debug logging.
	logLevel := parseLogLevel(cfg.Server.LogLevel)
	if cfg.DevMode {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	if err := run(ctx, cfg, logger); err != nil {
		return err
	}

	logger.Info("openpap stopped")
	return nil
}

// run wires all components together and starts the HTTP transport.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.DevMode {
		logger.Warn("DEV MODE ENABLED - in-memory store, no decision engine; policies are lost on restart")
	}

	// Policy store.
	var store policy.Store
	switch cfg.Store.Driver {
	case "sqlite":
		sqlStore, err := sqlite.New(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("failed to open policy store: %w", err)
		}
		defer func() { _ = sqlStore.Close() }()
		store = sqlStore
		logger.Info("policy store ready", "driver", "sqlite", "path", cfg.Store.Path)
	case "memory":
		store = memory.NewPolicyStore()
		logger.Info("policy store ready", "driver", "memory")
	default:
		return fmt.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}

	// Decision engine.
	var engine outbound.DecisionEngine
	if cfg.DevMode || cfg.Engine.URL == "" {
		engine = memory.NewNopEngine()
		logger.Info("decision engine: none (no-op)")
	} else {
		engine = opa.New(cfg.Engine.URL)
		logger.Info("decision engine: OPA", "url", cfg.Engine.URL)
	}

	synchronizer := service.NewSynchronizer(engine, logger)
	policyService := service.NewPolicyService(store, synchronizer, policy.NewTokenClock(), logger)

	// HTTP transport with metrics and health.
	registry := prometheus.NewRegistry()
	metrics := http.NewMetrics(registry)
	apiHandler := http.NewPolicyAPIHandler(policyService, metrics, logger)
	healthChecker := http.NewHealthChecker(store, Version)

	transport := http.NewTransport(apiHandler, registry,
		http.WithAddr(cfg.Server.HTTPAddr),
		http.WithHealthChecker(healthChecker),
		http.WithLogger(logger),
	)

	logger.Info("openpap starting",
		"version", Version,
		"dev_mode", cfg.DevMode,
		"http_addr", cfg.Server.HTTPAddr,
		"store_driver", cfg.Store.Driver,
	)

	return transport.Start(ctx)
}

// parseLogLevel converts a string log level to slog.Level.
// Returns slog.LevelInfo for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
