package main

import (
	"context"
	"errors"
	"os"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/cli"
	"bilancio/internal/services"
	"bilancio/internal/storage"
	"bilancio/internal/store/google"
	"bilancio/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap()
	if err := cfg.ValidateSync(); err != nil {
		logger.Error("Sync configuration invalid", "error", err)
		os.Exit(1)
	}
	logger.Info("Starting bilancio-worker")

	// The queue spans every owner; records keep their own owner when mirrored.
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, cfg.User)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()
	if version, dirty, err := storage.SchemaVersion(cfg.SQLiteDBPath); err != nil {
		logger.Warn("Could not read schema version", "error", err)
	} else {
		logger.Info("SQLite schema ready", "version", version, "dirty", dirty)
	}

	creds, err := google.LoadCredentials(cfg.GoogleServiceAccountJSON, cfg.GoogleServiceAccountFile)
	if err != nil {
		logger.Error("Failed to load Google credentials", "error", err)
		os.Exit(1)
	}
	sheets, err := google.New(context.Background(), google.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: creds,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	processor := services.NewSyncProcessor(repo, sheets, services.SyncProcessorConfig{
		PollInterval: cfg.SyncInterval,
		BatchSize:    cfg.SyncBatchSize,
	})
	syncWorker := worker.NewSyncWorker(repo, processor, cfg.SyncBatchSize)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := processor.Stop(ctx); err != nil {
			logger.Warn("Sync processor did not stop cleanly", "error", err)
		}
	})

	// Retry what earlier runs gave up on, then catch up on anything missed
	// while the worker was down.
	if n, err := processor.RetryFailed(ctx); err != nil {
		logger.Error("Failed to reset failed syncs", "error", err)
	} else if n > 0 {
		logger.Info("Reset failed syncs for retry", "count", n)
	}
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", "error", err)
	}

	// Polling covers messages lost while the broker was unreachable.
	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start sync processor", "error", err)
		os.Exit(1)
	}

	go func() {
		err := amqpClient.ConsumeTransactionSync(ctx, syncWorker.HandleSyncMessage)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed, relying on polling", "error", err)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
