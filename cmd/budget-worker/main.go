package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"budget/internal/amqp"
	"budget/internal/cli"
	"budget/internal/config"
	"budget/internal/log"
	gsheet "budget/internal/sheets/google"
	"budget/internal/sheets/xlsx"
	"budget/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL")).WithComponent(log.ComponentWorker)
	logger.Info("Starting budget-worker")

	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateWorker)

	sqliteRepo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer sqliteRepo.Close()

	sheetsClient, err := gsheet.New(context.Background(), gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		TransactionsSheet:  cfg.GoogleTransactionsSheet,
		CategoriesSheet:    cfg.GoogleCategoriesSheet,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	}, logger)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	mirror := xlsx.NewCategoryFile(cfg.CategoriesPath())
	syncWorker := worker.NewSyncWorker(sqliteRepo, sheetsClient, sheetsClient, mirror, cfg.SyncBatchSize, logger)

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, nil)

	// Rows written while the worker was down are picked up before consuming.
	if err := syncWorker.SyncCategories(ctx); err != nil {
		logger.Error("Initial category sync failed", log.FieldError, err)
	}
	if synced, failed, err := syncWorker.ProcessPending(ctx); err != nil {
		logger.Error("Startup sync check failed", log.FieldError, err)
	} else {
		logger.Info("Startup sync check complete", "synced", synced, "failed", failed)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return amqpClient.ConsumeTransactionSync(gctx, syncWorker.HandleSyncMessage)
	})

	g.Go(func() error {
		every(gctx, cfg.SyncInterval, func() {
			if _, _, err := syncWorker.ProcessPending(gctx); err != nil {
				logger.Error("Periodic sync failed", log.FieldError, err)
			}
		})
		return nil
	})

	g.Go(func() error {
		every(gctx, cfg.CategorySyncInterval, func() {
			if err := syncWorker.SyncCategories(gctx); err != nil {
				logger.Error("Periodic category refresh failed", log.FieldError, err)
			}
		})
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}

func every(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
