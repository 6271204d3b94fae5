package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fatture/internal/amqp"
	"fatture/internal/backend"
	"fatture/internal/config"
	"fatture/internal/core"
	applog "fatture/internal/log"
	"fatture/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := applog.New(applog.Config{Component: "billing-worker"})
	applog.SetDefault(logger)

	logger.Info("Starting billing-worker")

	// Load configuration
	cfg := config.Load()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	// Initialize storage backend
	result, err := backend.NewFactory(logger.Logger).CreateRepository(cfg)
	if err != nil {
		logger.Error("Failed to initialize storage backend", "error", err)
		os.Exit(1)
	}
	repo := result.Repo
	if result.Cleanup != nil {
		defer result.Cleanup()
	}

	// Initialize AMQP client for publishing entry created messages.
	// The export-worker consumes these and mirrors entries to Google Sheets.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without export notifications", "error", err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
			logger.Info("AMQP client initialized - entries will export via export-worker")
		}
	} else {
		logger.Info("AMQP disabled - entries will not be announced to the export pipeline")
	}

	// Initialize the materialization pipeline
	generator := services.NewGenerator(cfg.OccurrenceCap)
	var publisher services.EntryPublisher
	if amqpClient != nil {
		publisher = amqpClient
	}
	materializer := services.NewMaterializer(repo, generator, publisher, cfg.OrgParallelism)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Materializer configured",
		"interval", cfg.MaterializeInterval,
		"parallelism", cfg.OrgParallelism,
		"occurrence_cap", cfg.OccurrenceCap)

	// Setup periodic materialization ticker
	ticker := time.NewTicker(cfg.MaterializeInterval)
	defer ticker.Stop()

	runOnce := func(now time.Time) {
		summary, err := materializer.Materialize(ctx, core.DateOf(now))
		if err != nil {
			logger.Error("Materialization run failed", "error", err)
			return
		}
		logger.Info("Materialization run finished",
			"entries_created", summary.EntriesCreated,
			"rules_ended", summary.RulesEnded,
			"overdue_marked", summary.OverdueMarked,
			"failed_rules", len(summary.Failures))
	}

	// Run initial materialization on startup
	logger.Info("Running initial materialization...")
	runOnce(time.Now())

	// Start periodic materialization
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				runOnce(now)
			}
		}
	}()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info("Shutting down billing-worker...")
	cancel()

	// Wait for shutdown or timeout
	select {
	case <-shutdownCtx.Done():
		logger.Warn("Shutdown timeout reached")
	case <-time.After(2 * time.Second):
		logger.Info("Billing-worker shutdown complete")
	}
}
