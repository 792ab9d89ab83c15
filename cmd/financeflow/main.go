package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"financeflow/internal/config"
	"financeflow/internal/currency"
	"financeflow/internal/events"
	apphttp "financeflow/internal/http"
	applog "financeflow/internal/log"
	"financeflow/internal/persist"
	"financeflow/internal/persist/sqlite"
	"financeflow/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	applog.Setup(cfg.LogLevel, cfg.LogFormat)

	var snapshots persist.SnapshotStore
	switch cfg.DataBackend {
	case "sqlite":
		store, err := sqlite.NewStore(cfg.SQLiteDBPath)
		if err != nil {
			slog.Error("Failed to open SQLite store", applog.FieldError, err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		defer store.Close()
		snapshots = store
		slog.Info("Initialized sqlite backend", "path", cfg.SQLiteDBPath)
	default:
		store, err := persist.NewFileStore(cfg.DataFile)
		if err != nil {
			slog.Error("Failed to open file store", applog.FieldError, err, "path", cfg.DataFile)
			os.Exit(1)
		}
		snapshots = store
		slog.Info("Initialized file backend", "path", cfg.DataFile)
	}

	// Event publishing is optional: without an AMQP URL the tracker runs
	// standalone.
	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			slog.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		publisher = client
		slog.Info("Event publishing enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		slog.Info("Event publishing disabled - no AMQP_URL provided")
	}

	tracker := services.NewTracker(snapshots, publisher)
	if err := tracker.Init(context.Background()); err != nil {
		slog.Error("Failed to load ledger", applog.FieldError, err)
		os.Exit(1)
	}

	rates := currency.NewService(cfg.CurrencyAPIBase, cfg.CurrencyCacheTTL)
	defer rates.Close()

	srv := apphttp.NewServer(":"+cfg.Port, tracker, rates)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		slog.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", applog.FieldError, err)
		}
		cancel()
	}()

	slog.Info("Starting financeflow server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	slog.Info("Server stopped gracefully")
}
