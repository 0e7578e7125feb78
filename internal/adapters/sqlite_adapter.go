package adapters

import (
	"context"
	"errors"
	"fmt"

	"budget/internal/core"
	"budget/internal/services"
	"budget/internal/sheets"
	"budget/internal/storage"
)

var _ sheets.TransactionStore = (*SQLiteAdapter)(nil)

// Broker is the part of the AMQP client the adapter checks and closes.
type Broker interface {
	Ping() error
	Close() error
}

// SQLiteAdapter serves the sheets ports from SQLite: writes go through the
// TransactionService (save then publish), reads hit the repository directly.
type SQLiteAdapter struct {
	storage *storage.SQLiteRepository
	service *services.TransactionService
	broker  Broker
}

// NewSQLiteAdapter accepts a nil broker when AMQP is disabled.
func NewSQLiteAdapter(storage *storage.SQLiteRepository, service *services.TransactionService, broker Broker) *SQLiteAdapter {
	return &SQLiteAdapter{
		storage: storage,
		service: service,
		broker:  broker,
	}
}

// Append implements sheets.TransactionWriter
func (a *SQLiteAdapter) Append(ctx context.Context, t core.Transaction) (string, error) {
	return a.service.Append(ctx, t)
}

// ListTransactions implements sheets.TransactionLister
func (a *SQLiteAdapter) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	return a.storage.ListTransactions(ctx)
}

// Ping reports whether the database answers. A broken broker connection is
// not fatal: rows stay pending until the worker sweeps them.
func (a *SQLiteAdapter) Ping(ctx context.Context) error {
	if err := a.storage.Ping(ctx); err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	return nil
}

// BrokerHealthy is false when AMQP is disabled or unreachable.
func (a *SQLiteAdapter) BrokerHealthy() bool {
	return a.broker != nil && a.broker.Ping() == nil
}

// Close releases the broker connection and the database.
func (a *SQLiteAdapter) Close() error {
	var errs []error
	if a.broker != nil {
		if err := a.broker.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close amqp: %w", err))
		}
	}
	if err := a.storage.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close sqlite: %w", err))
	}
	return errors.Join(errs...)
}
