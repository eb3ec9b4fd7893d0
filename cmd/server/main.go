/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the kitchen stock server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration from the environment (config.Load)
  2. Configure the root zerolog logger
  3. Open the store selected by STORE_DRIVER
  4. Install the tracer provider (OTLP export only when configured)
  5. Connect the Redis event publisher when REDIS_URL is set
  6. Open the kitchen (catalog load + ledger replay)
  7. Start the integrity scheduler and the HTTP server

ENVIRONMENT:
  PORT                         HTTP port (default: 8080)
  STORE_DRIVER                 sqlite | postgres | memory (default: sqlite)
  SQLITE_PATH                  SQLite database path (default: kitchen.db)
  DATABASE_URL                 Postgres DSN, required for STORE_DRIVER=postgres
  REDIS_URL                    Event publisher; empty disables it
  LOG_LEVEL, LOG_FORMAT        zerolog level and console | json output
  OTEL_EXPORTER_OTLP_ENDPOINT  OTLP/HTTP collector host:port
  INTEGRITY_CHECK_INTERVAL     Ledger replay check period, 0 disables

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the scheduler, flush spans, close Redis and the store
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Environment variables
  - stock/kitchen.go: Engine startup
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/warp/kitchen-stock/api"
	"github.com/warp/kitchen-stock/config"
	"github.com/warp/kitchen-stock/events"
	"github.com/warp/kitchen-stock/stock"
	"github.com/warp/kitchen-stock/stock/store"
	"github.com/warp/kitchen-stock/store/postgres"
	"github.com/warp/kitchen-stock/store/sqlite"
	"github.com/warp/kitchen-stock/telemetry"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger := newLogger(cfg)
	log.Logger = logger

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}

// run owns every resource it opens, so its defers always close them before
// main decides the exit code.
func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx := context.Background()

	// Store
	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	defer closeStore()

	// Tracing
	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Version:     version,
		Insecure:    true,
	})
	if err != nil {
		return fmt.Errorf("set up tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("tracer shutdown failed")
		}
	}()

	opts := []stock.Option{stock.WithLogger(logger)}

	// Events
	if cfg.RedisURL != "" {
		rdb, err := events.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer rdb.Close()
		opts = append(opts, stock.WithPublisher(events.NewRedisPublisher(rdb, "")))
		logger.Info().Msg("redis event publisher enabled")
	}

	kitchen, err := stock.Open(ctx, st, opts...)
	if err != nil {
		return fmt.Errorf("open kitchen: %w", err)
	}

	scheduler := api.NewIntegrityScheduler(kitchen, cfg.IntegrityCheckInterval, logger.With().Str("component", "integrity").Logger())
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(kitchen, logger)
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.AllowedOrigins(),
		Integrity:      scheduler,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Int("port", cfg.Port).Str("driver", cfg.StoreDriver).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	// Wait for interrupt signal or a listener failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return fmt.Errorf("serve: %w", err)
	case <-quit:
	}

	logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
	return nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogFormat == "json" {
		return zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
}

// openStore returns the configured stock.Store and its close func.
func openStore(ctx context.Context, cfg *config.Config) (stock.Store, func(), error) {
	switch cfg.StoreDriver {
	case "postgres":
		pg, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	case "memory":
		return store.NewMemory(), func() {}, nil
	default:
		lite, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return lite, func() { _ = lite.Close() }, nil
	}
}
