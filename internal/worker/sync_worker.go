package worker

import (
	"context"
	"errors"
	"fmt"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/sheets"
	"budget/internal/storage"
)

// Repository is the slice of the SQLite repository the worker needs.
type Repository interface {
	GetTransaction(ctx context.Context, id int64) (*storage.Record, error)
	GetPendingSync(ctx context.Context, limit int) ([]storage.PendingSync, error)
	MarkSynced(ctx context.Context, id int64, ref string) error
	MarkSyncError(ctx context.Context, id int64) error
}

// CategoryWriter replaces the local category reference.
type CategoryWriter interface {
	WriteCategories(ctx context.Context, rows []core.CategoryRow) error
}

// SyncWorker mirrors locally stored transactions to Google Sheets and
// refreshes the local category reference from the sheet.
type SyncWorker struct {
	storage    Repository
	sheets     sheets.TransactionWriter
	categories sheets.CategoryReader
	mirror     CategoryWriter
	batchSize  int
	logger     *log.Logger
}

func NewSyncWorker(storage Repository, writer sheets.TransactionWriter, categories sheets.CategoryReader, mirror CategoryWriter, batchSize int, logger *log.Logger) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &SyncWorker{
		storage:    storage,
		sheets:     writer,
		categories: categories,
		mirror:     mirror,
		batchSize:  batchSize,
		logger:     logger.WithComponent(log.ComponentWorker),
	}
}

// HandleSyncMessage copies the transaction named by msg to the sheet.
// Already synced rows are skipped so redelivery does not duplicate them.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.TransactionSyncMessage) error {
	w.logger.InfoContext(ctx, "Processing sync message", "id", msg.ID, "queued_at", msg.Timestamp)

	rec, err := w.storage.GetTransaction(ctx, msg.ID)
	if errors.Is(err, storage.ErrNotFound) {
		// Nothing to retry: ack and move on.
		w.logger.WarnContext(ctx, "Sync message for unknown transaction", "id", msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get transaction from storage: %w", err)
	}
	return w.sync(ctx, rec)
}

// ProcessPending syncs up to one batch of rows still marked pending.
// It backs up AMQP when messages were lost or the worker was down.
func (w *SyncWorker) ProcessPending(ctx context.Context) (synced, failed int, err error) {
	pending, err := w.storage.GetPendingSync(ctx, w.batchSize)
	if err != nil {
		return 0, 0, fmt.Errorf("get pending transactions: %w", err)
	}
	if len(pending) == 0 {
		return 0, 0, nil
	}

	w.logger.InfoContext(ctx, "Processing pending transactions", log.FieldCount, len(pending))
	for _, p := range pending {
		rec, err := w.storage.GetTransaction(ctx, p.ID)
		if err != nil {
			w.logger.ErrorContext(ctx, "Failed to get transaction", "id", p.ID, log.FieldError, err)
			if err := w.storage.MarkSyncError(ctx, p.ID); err != nil {
				w.logger.ErrorContext(ctx, "Failed to mark sync error", "id", p.ID, log.FieldError, err)
			}
			failed++
			continue
		}
		if err := w.sync(ctx, rec); err != nil {
			w.logger.ErrorContext(ctx, "Failed to sync transaction", "id", p.ID, log.FieldError, err)
			failed++
			continue
		}
		synced++
	}
	w.logger.InfoContext(ctx, "Pending sync completed",
		"total", len(pending),
		"synced", synced,
		"errors", failed)
	return synced, failed, nil
}

// SyncCategories refreshes the local category reference from the sheet.
// An empty sheet leaves the local reference untouched.
func (w *SyncWorker) SyncCategories(ctx context.Context) error {
	if w.categories == nil || w.mirror == nil {
		return nil
	}
	rows, err := w.categories.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("load categories from Google Sheets: %w", err)
	}
	if len(rows) == 0 {
		w.logger.WarnContext(ctx, "Category sheet is empty, keeping local reference")
		return nil
	}
	if err := w.mirror.WriteCategories(ctx, rows); err != nil {
		return fmt.Errorf("write category reference: %w", err)
	}
	w.logger.InfoContext(ctx, "Categories successfully mirrored", log.FieldCount, len(rows))
	return nil
}

func (w *SyncWorker) sync(ctx context.Context, rec *storage.Record) error {
	if rec.SyncStatus == storage.SyncSynced {
		w.logger.DebugContext(ctx, "Transaction already synced", "id", rec.ID, log.FieldRef, rec.SheetRef)
		return nil
	}
	ref, err := w.sheets.Append(ctx, rec.Transaction)
	if err != nil {
		if errors.Is(err, core.ErrValidation) {
			// A row the sheet will never accept: park it instead of requeueing.
			if merr := w.storage.MarkSyncError(ctx, rec.ID); merr != nil {
				return errors.Join(err, merr)
			}
			return nil
		}
		return fmt.Errorf("append to sheet: %w", err)
	}
	if err := w.storage.MarkSynced(ctx, rec.ID, ref); err != nil {
		return err
	}
	w.logger.InfoContext(ctx, "Transaction synced to Google Sheets",
		"id", rec.ID,
		log.FieldRef, ref,
		log.FieldDepartment, rec.Transaction.Department)
	return nil
}
