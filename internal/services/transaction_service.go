package services

import (
	"context"
	"fmt"
	"strconv"

	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/sheets"
)

// SyncPublisher enqueues a stored transaction for copying to the sheet.
type SyncPublisher interface {
	PublishTransactionSync(ctx context.Context, id int64) error
}

var _ sheets.TransactionStore = (*TransactionService)(nil)

// TransactionService saves transactions locally and publishes a sync
// message so the worker can mirror them to Google Sheets.
type TransactionService struct {
	storage   sheets.TransactionStore
	publisher SyncPublisher
	logger    *log.Logger
}

// NewTransactionService accepts a nil publisher; rows then stay pending
// until the worker's startup sweep picks them up.
func NewTransactionService(storage sheets.TransactionStore, publisher SyncPublisher, logger *log.Logger) *TransactionService {
	if logger == nil {
		logger = log.Nop()
	}
	return &TransactionService{
		storage:   storage,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentStorage),
	}
}

// Append saves t and publishes its sync message. A publish failure is
// logged and does not fail the request.
func (s *TransactionService) Append(ctx context.Context, t core.Transaction) (string, error) {
	ref, err := s.storage.Append(ctx, t)
	if err != nil {
		return "", fmt.Errorf("save transaction: %w", err)
	}

	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to parse transaction ID", log.FieldRef, ref, log.FieldError, err)
		return ref, nil
	}

	if s.publisher == nil {
		s.logger.WarnContext(ctx, "AMQP client not available, skipping sync message", "id", id)
		return ref, nil
	}
	if err := s.publisher.PublishTransactionSync(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish sync message", "id", id, log.FieldError, err)
	}
	return ref, nil
}

func (s *TransactionService) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	return s.storage.ListTransactions(ctx)
}
