package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/sheets"
)

// Sync states of a stored transaction.
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncError   = "error"
)

var _ sheets.TransactionStore = (*SQLiteRepository)(nil)

// ErrNotFound is returned when a transaction id does not exist.
var ErrNotFound = errors.New("transaction not found")

type SQLiteRepository struct {
	db     *sql.DB
	logger *log.Logger
	now    func() time.Time
}

// Record is a stored transaction with its bookkeeping columns.
type Record struct {
	ID          int64
	Transaction core.Transaction
	CreatedAt   time.Time
	SyncStatus  string
	SheetRef    string
}

// PendingSync is the minimal data needed to enqueue a sync.
type PendingSync struct {
	ID        int64
	CreatedAt time.Time
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY between concurrent requests.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:     db,
		logger: logger.WithComponent(log.ComponentStorage),
		now:    time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Append stores t as pending sync and returns its id.
func (r *SQLiteRepository) Append(ctx context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (period, category, article, sub_article, amount, type, department, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Period.String(), t.Category, t.Article, t.SubArticle,
		core.FormatAmount(t.Amount), string(t.Type), t.Department, r.now().Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: insert transaction: %v", core.ErrStorageIO, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("%w: last insert id: %v", core.ErrStorageIO, err)
	}

	r.logger.InfoContext(ctx, "Transaction saved to SQLite",
		"id", id,
		log.FieldDepartment, t.Department,
		log.FieldPeriod, t.Period.String(),
		log.FieldAmount, core.FormatAmount(t.Amount))

	return strconv.FormatInt(id, 10), nil
}

// ListTransactions returns every stored row in insertion order.
func (r *SQLiteRepository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, selectRecord+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: list transactions: %v", core.ErrStorageIO, err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec.Transaction)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list transactions: %v", core.ErrStorageIO, err)
	}
	return out, nil
}

// GetTransaction retrieves a single record by id.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (*Record, error) {
	row := r.db.QueryRowContext(ctx, selectRecord+` WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetPendingSync returns up to limit records not yet copied to the sheet.
func (r *SQLiteRepository) GetPendingSync(ctx context.Context, limit int) ([]PendingSync, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, created_at FROM transactions WHERE sync_status = ? ORDER BY id LIMIT ?`,
		SyncPending, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync: %w", err)
	}
	defer rows.Close()

	var out []PendingSync
	for rows.Next() {
		var p PendingSync
		var created int64
		if err := rows.Scan(&p.ID, &created); err != nil {
			return nil, fmt.Errorf("scan pending sync: %w", err)
		}
		p.CreatedAt = time.Unix(created, 0)
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkSynced records the sheet range a transaction was copied to.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64, ref string) error {
	if err := r.setStatus(ctx, id, SyncSynced, ref); err != nil {
		return fmt.Errorf("mark transaction synced: %w", err)
	}
	r.logger.InfoContext(ctx, "Transaction marked as synced", "id", id, log.FieldRef, ref)
	return nil
}

// MarkSyncError flags a transaction whose sync failed permanently.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	if err := r.setStatus(ctx, id, SyncError, ""); err != nil {
		return fmt.Errorf("mark transaction sync error: %w", err)
	}
	r.logger.WarnContext(ctx, "Transaction marked with sync error", "id", id)
	return nil
}

func (r *SQLiteRepository) setStatus(ctx context.Context, id int64, status, ref string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET sync_status = ?, sheet_ref = ? WHERE id = ?`, status, ref, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return nil
}

const selectRecord = `SELECT id, period, category, article, sub_article, amount, type, department, created_at, sync_status, sheet_ref FROM transactions`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (Record, error) {
	var (
		rec            Record
		period, amount string
		typ            string
		created        int64
	)
	err := s.Scan(&rec.ID, &period, &rec.Transaction.Category, &rec.Transaction.Article,
		&rec.Transaction.SubArticle, &amount, &typ, &rec.Transaction.Department,
		&created, &rec.SyncStatus, &rec.SheetRef)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("%w: scan transaction: %v", core.ErrStorageIO, err)
	}
	p, err := core.ParsePeriod(period)
	if err != nil {
		return rec, fmt.Errorf("%w: transaction %d: %v", core.ErrStorageCorruption, rec.ID, err)
	}
	a, err := decimal.NewFromString(amount)
	if err != nil {
		return rec, fmt.Errorf("%w: transaction %d amount %q: %v", core.ErrStorageCorruption, rec.ID, amount, err)
	}
	rec.Transaction.Period = p
	rec.Transaction.Amount = a
	rec.Transaction.Type = core.TransactionType(typ)
	rec.CreatedAt = time.Unix(created, 0)
	return rec, nil
}
