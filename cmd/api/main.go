// Command api is the Bluemoon grooming data service: the reconcile and audit
// schedulers plus the ops HTTP API.
//
// Usage:
//
//	bluemoon-api
//	API_PORT=8080 bluemoon-api

// @title Bluemoon Grooming Data API
// @version 1.0.0
// @description Rare-run detection and notification eligibility for ski resort grooming reports.
// @host localhost:8000
// @BasePath /
// @schemes http https
// @license.name MIT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/bluemoonski/bluemoon-data/internal/api"
	"github.com/bluemoonski/bluemoon-data/internal/config"
	"github.com/bluemoonski/bluemoon-data/internal/db"
	"github.com/bluemoonski/bluemoon-data/internal/fetch"
	"github.com/bluemoonski/bluemoon-data/internal/notify"
	"github.com/bluemoonski/bluemoon-data/internal/observability"
	"github.com/bluemoonski/bluemoon-data/internal/report"
	"github.com/bluemoonski/bluemoon-data/internal/scheduler"
	"github.com/bluemoonski/bluemoon-data/internal/store"
	"github.com/bluemoonski/bluemoon-data/internal/store/memory"
	"github.com/bluemoonski/bluemoon-data/internal/store/postgres"

	_ "github.com/bluemoonski/bluemoon-data/docs" // swagger docs
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Load .env if present
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Select the store: Postgres when configured, in-memory otherwise
	var st store.Store
	var pool *db.Pool
	if cfg.DatabaseURL != "" {
		logger.Info("Connecting to database...")
		pool, err = db.New(ctx, cfg)
		if err != nil {
			logger.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		logger.Info("Database connected",
			"min_conns", cfg.DBPoolMinConns,
			"max_conns", cfg.DBPoolMaxConns)
		st = postgres.New(pool.Pool)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory store")
		st = memory.New()
	}

	// Rare-run engine
	engine, err := report.NewEngine(st, report.Config{
		Threshold:   cfg.RarityThreshold,
		NoRunsHour:  cfg.NoRunsNotifHour,
		AlertMinute: cfg.AlertNotifMin,
	}, logger)
	if err != nil {
		logger.Error("Failed to create engine", "error", err)
		os.Exit(1)
	}

	// Delivery bus
	publisher := notify.NewKafkaPublisher(cfg, logger)
	defer publisher.Close()

	// Schedulers: periodic reconcile cycles and audit sweeps
	metrics := observability.NewMetrics()
	fetcher := fetch.NewClient(cfg.FetchTimeout, cfg.FetchPerMinute, logger)
	sched := scheduler.New(st, engine, fetcher, publisher,
		clockwork.NewRealClock(), metrics, cfg.CycleWorkers, logger)
	go sched.Start(ctx, scheduler.Config{
		ReconcileEvery: cfg.ReconcileEvery,
		AuditEvery:     cfg.AuditSweepEvery,
		Workers:        cfg.CycleWorkers,
	})

	// Create router
	router := api.NewRouter(st, pool, cfg)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info("Starting Bluemoon Grooming Data API",
			"addr", addr,
			"environment", cfg.Environment,
			"docs", fmt.Sprintf("http://localhost:%d/docs/", cfg.APIPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}
