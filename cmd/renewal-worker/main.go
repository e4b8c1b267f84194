package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"bilancio/internal/amqp"
	"bilancio/internal/config"
	"bilancio/internal/core"
	"bilancio/internal/services"
	"bilancio/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting renewal-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	sqliteRepo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer sqliteRepo.Close()

	// AMQP is optional: renewals still happen without it, the statistics
	// worker just never hears about them.
	var events *amqp.Client
	if cfg.AMQPURL != "" {
		events, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
			events = nil
		} else {
			defer events.Close()
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange)
		}
	}

	clock := core.SystemClock{}
	service := services.NewBudgetService(sqliteRepo, sqliteRepo, sqliteRepo, events, clock)
	processor := services.NewRenewalProcessor(sqliteRepo, service)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Budget renewal processor configured",
		"interval", cfg.RenewInterval,
		"sqlite_db", cfg.SQLiteDBPath)

	// Run an initial pass on startup so restarts never delay a rollover
	if count, err := processor.ProcessElapsedBudgets(ctx, clock.Now()); err != nil {
		logger.Error("Initial renewal pass failed", "error", err)
	} else {
		logger.Info("Initial renewal pass complete", "budgets_renewed", count)
	}

	ticker := time.NewTicker(cfg.RenewInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Renewal-worker shutdown complete")
			return
		case now := <-ticker.C:
			count, err := processor.ProcessElapsedBudgets(ctx, now.UTC())
			if err != nil {
				logger.Error("Periodic renewal pass failed", "error", err)
				continue
			}
			logger.Info("Periodic renewal pass complete",
				"budgets_renewed", count,
				"next_check", now.Add(cfg.RenewInterval).Format("15:04:05"))
		}
	}
}
