/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the fuel quota server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (defaults, YAML, .env, environment, flags)
  2. Build the zap logger
  3. Initialize SQLite store
  4. Create API handler, metrics and router
  5. Start the monthly reconciliation scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Optional YAML config file
  -port    HTTP server port (overrides config)
  -db      SQLite database path (overrides config)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

ENVIRONMENT:
  FUELQUOTA_PORT, FUELQUOTA_DB, FUELQUOTA_LOG_LEVEL, FUELQUOTA_LOG_FORMAT,
  FUELQUOTA_SCHEDULER_ENABLED, FUELQUOTA_SCHEDULER_INTERVAL,
  FUELQUOTA_CORS_ORIGINS. See config/config.go.

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Reconciliation scheduler
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/warp/fuel-quota/api"
	"github.com/warp/fuel-quota/config"
	"github.com/warp/fuel-quota/logging"
	"github.com/warp/fuel-quota/quota"
	"github.com/warp/fuel-quota/store/sqlite"
	"go.uber.org/zap"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "YAML config file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, "fuel-quota")
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.String("path", cfg.Database.Path), zap.Error(err))
	}
	defer store.Close()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := quota.NewMetrics(registry)

	// Handler and router
	handler := api.NewHandler(store, logger, metrics)
	router := api.NewRouter(handler, api.RouterOptions{
		CORSOrigins: cfg.Server.CORSOrigins,
		Gatherer:    registry,
	})

	// Scheduler
	scheduler, err := newScheduler(cfg, store, handler)
	if err != nil {
		logger.Fatal("failed to configure scheduler", zap.Error(err))
	}
	scheduler.Start()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("db", cfg.Database.Path),
			zap.Bool("scheduler", cfg.Scheduler.Enabled),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
		return
	}

	logger.Info("server stopped")
}

func newScheduler(cfg config.Config, store *sqlite.Store, handler *api.Handler) (*api.ReconciliationScheduler, error) {
	interval, err := cfg.SchedulerInterval()
	if err != nil {
		return nil, err
	}
	scheduler := api.NewReconciliationScheduler(store, handler)
	scheduler.CheckInterval = interval
	scheduler.Enabled = cfg.Scheduler.Enabled
	return scheduler, nil
}
