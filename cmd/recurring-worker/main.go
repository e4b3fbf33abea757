package main

import (
	"os"
	"time"

	"saldo/internal/amqp"
	"saldo/internal/cli"
	applog "saldo/internal/log"
	"saldo/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentRecurring)
	cfg := cli.LoadAndValidateConfig(logger)

	logger.Info("Starting recurring-worker")

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// The saldo-worker consumes these messages and mirrors the new rows.
	var publisher services.Publisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing in SQLite-only mode", applog.FieldError, err)
		} else {
			defer client.Close()
			publisher = client
			logger.Info("AMQP client initialized - occurrences will sync via saldo-worker")
		}
	} else {
		logger.Info("AMQP disabled - occurrences will only be picked up by the sync sweep")
	}

	processor := services.NewRecurringProcessor(repo, publisher)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	logger.Info("Recurring processor configured",
		"interval", cfg.RecurringInterval,
		"sqlite_db", cfg.SQLiteDBPath)

	run := func(now time.Time) {
		count, err := processor.ProcessDue(ctx, now)
		if err != nil {
			logger.Error("Recurring processing failed", applog.FieldError, err)
			return
		}
		logger.Info("Recurring processing complete",
			"created", count,
			"next_check", now.Add(cfg.RecurringInterval).Format("15:04:05"))
	}

	run(time.Now())

	ticker := time.NewTicker(cfg.RecurringInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("Recurring-worker shutdown complete")
			return
		case now := <-ticker.C:
			run(now)
		}
	}
}
