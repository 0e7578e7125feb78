package backend

import (
	"context"
	"fmt"

	"budget/internal/adapters"
	"budget/internal/amqp"
	"budget/internal/cache"
	"budget/internal/log"
	"budget/internal/services"
	"budget/internal/sheets"
	gsheet "budget/internal/sheets/google"
	"budget/internal/sheets/memory"
	"budget/internal/sheets/xlsx"
	"budget/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Nop()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		res *Result
		err error
	)
	switch config.Type {
	case XLSXBackend:
		res, err = f.createXLSXBackend(config)
	case MemoryBackend:
		res, err = f.createMemoryBackend(config)
	case SheetsBackend:
		res, err = f.createSheetsBackend(ctx, config)
	case SQLiteBackend:
		res, err = f.createSQLiteBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}
	if res.Ping == nil {
		res.Ping = func(context.Context) error { return nil }
	}
	return res, nil
}

func (f *DefaultFactory) cached(config Config, next sheets.CategoryReader) *cache.CategoryReader {
	return cache.NewCategoryReader(next, config.CategoryCacheTTL, f.logger)
}

func (f *DefaultFactory) createXLSXBackend(config Config) (*Result, error) {
	transactions := xlsx.NewTransactionFile(config.TransactionsPath, f.logger)
	categories := xlsx.NewCategoryFile(config.CategoriesPath)

	f.logger.Info("Initialized xlsx backend",
		log.FieldFile, config.TransactionsPath,
		"categories_file", config.CategoriesPath)

	return &Result{
		Transactions: transactions,
		Categories:   f.cached(config, categories),
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*Result, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}

	store := memory.NewFromFiles(dataDir)

	f.logger.Info("Initialized memory backend", "data_directory", dataDir)

	return &Result{
		Transactions: store,
		Categories:   f.cached(config, store),
	}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*Result, error) {
	cli, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:      config.GoogleSpreadsheetID,
		TransactionsSheet:  config.GoogleTransactionsSheet,
		CategoriesSheet:    config.GoogleCategoriesSheet,
		ServiceAccountJSON: config.GoogleServiceAccountJSON,
		ServiceAccountFile: config.GoogleServiceAccountFile,
	}, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets backend", "spreadsheet_id", config.GoogleSpreadsheetID)

	return &Result{
		Transactions: cli,
		Categories:   f.cached(config, cli),
	}, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*Result, error) {
	sqliteRepo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	// AMQP is optional; without it rows stay pending until the worker sweeps.
	var (
		publisher services.SyncPublisher
		broker    adapters.Broker
	)
	if config.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without sync", log.FieldError, err)
		} else {
			publisher, broker = amqpClient, amqpClient
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	service := services.NewTransactionService(sqliteRepo, publisher, f.logger)
	adapter := adapters.NewSQLiteAdapter(sqliteRepo, service, broker)

	// The worker mirrors the Google category sheet into this file.
	categories := xlsx.NewCategoryFile(config.CategoriesPath)

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", broker != nil)

	return &Result{
		Transactions: adapter,
		Categories:   f.cached(config, categories),
		Ping:         adapter.Ping,
		Cleanup:      adapter.Close,
	}, nil
}
