package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"financeflow/internal/config"
	"financeflow/internal/events"
	"financeflow/internal/export/gsheets"
	applog "financeflow/internal/log"
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

	slog.Info("Starting financeflow-worker")

	if cfg.AMQPURL == "" {
		slog.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	// The Sheets exporter is optional: without a spreadsheet the worker
	// still drains the queue and logs each event.
	var sheets *gsheets.Client
	if os.Getenv("GOOGLE_SPREADSHEET_ID") != "" {
		var err error
		sheets, err = gsheets.NewFromEnv(context.Background())
		if err != nil {
			slog.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
			os.Exit(1)
		}
		slog.Info("Google Sheets export enabled")
	} else {
		slog.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := func(event *events.ExpenseEvent) error {
		slog.InfoContext(ctx, "Processing expense event",
			applog.FieldEventID, event.EventID,
			applog.FieldEventKind, event.Kind,
			applog.FieldExpenseID, event.ExpenseID,
			applog.FieldVendor, event.Vendor)
		if sheets == nil {
			return nil
		}
		return sheets.AppendEvent(ctx, event)
	}

	go func() {
		err := events.ConsumeWithReconnect(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, handler)
		if err != nil && err != context.Canceled {
			slog.Error("Message consumption failed", applog.FieldError, err)
		}
		cancel()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		slog.Info("Context cancelled")
	}

	cancel()

	// Give the consumer a moment to ack in-flight deliveries.
	time.Sleep(2 * time.Second)
	slog.Info("Worker shutdown complete")
}
