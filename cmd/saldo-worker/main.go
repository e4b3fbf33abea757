package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"saldo/internal/amqp"
	"saldo/internal/backend"
	"saldo/internal/cli"
	applog "saldo/internal/log"
	"saldo/internal/services"
	"saldo/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	logger.Info("Starting saldo-worker")

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	mirrorCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid mirror configuration", applog.FieldError, err)
		os.Exit(1)
	}
	mirror, err := backend.NewFactory(logger.Logger, nil).CreateMirror(ctx, mirrorCfg)
	if err != nil {
		logger.Error("Failed to create mirror", applog.FieldError, err)
		os.Exit(1)
	}
	syncWorker := worker.NewSyncWorker(repo, mirror)

	processor := services.NewSyncProcessor(repo, syncWorker, services.SyncProcessorConfig{
		PollInterval: cfg.SyncInterval,
		BatchSize:    cfg.SyncBatchSize,
		MaxRetries:   cfg.SyncMaxRetries,
	})
	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start sync processor", applog.FieldError, err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			// The sweep alone still converges, only slower.
			logger.Warn("Failed to initialize AMQP client, relying on periodic sync", applog.FieldError, err)
		} else {
			defer client.Close()
			g.Go(func() error {
				err := client.ConsumeTransactionSync(gctx, func(msg *amqp.TransactionSyncMessage) error {
					return syncWorker.HandleMessage(gctx, msg)
				})
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		}
	}

	g.Go(func() error {
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return processor.Stop(stopCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
