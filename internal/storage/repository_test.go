package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budget/internal/core"
	"budget/internal/log"
)

func newRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	r, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "db", "budget.db"), log.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	r.now = func() time.Time { return time.Unix(1700000000, 0) }
	return r
}

func sample(dept string) core.Transaction {
	return core.Transaction{
		Period:     core.Period{Year: 2024, Month: 3},
		Category:   "Расходы",
		Article:    "Аренда",
		SubArticle: "Офис",
		Amount:     decimal.RequireFromString("1234.50"),
		Type:       core.Expense,
		Department: dept,
	}
}

func TestAppendAndList(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	ref, err := r.Append(ctx, sample("dept1"))
	require.NoError(t, err)
	assert.Equal(t, "1", ref)
	ref, err = r.Append(ctx, sample("dept2"))
	require.NoError(t, err)
	assert.Equal(t, "2", ref)

	rows, err := r.ListTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "dept1", rows[0].Department)
	assert.Equal(t, core.Period{Year: 2024, Month: 3}, rows[0].Period)
	assert.True(t, rows[0].Amount.Equal(decimal.RequireFromString("1234.5")))
	assert.Equal(t, core.Expense, rows[1].Type)
}

func TestAppendRejectsInvalid(t *testing.T) {
	r := newRepo(t)
	_, err := r.Append(context.Background(), core.Transaction{})
	assert.True(t, errors.Is(err, core.ErrValidation))
}

func TestSyncLifecycle(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	for _, d := range []string{"a", "b", "c"} {
		_, err := r.Append(ctx, sample(d))
		require.NoError(t, err)
	}

	pending, err := r.GetPendingSync(ctx, 2)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, int64(1), pending[0].ID)
	assert.Equal(t, time.Unix(1700000000, 0), pending[0].CreatedAt)

	require.NoError(t, r.MarkSynced(ctx, 1, "'Бюджет'!A2:G2"))
	require.NoError(t, r.MarkSyncError(ctx, 2))

	rec, err := r.GetTransaction(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, SyncSynced, rec.SyncStatus)
	assert.Equal(t, "'Бюджет'!A2:G2", rec.SheetRef)
	assert.Equal(t, "a", rec.Transaction.Department)

	pending, err = r.GetPendingSync(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, int64(3), pending[0].ID)
}

func TestGetTransactionNotFound(t *testing.T) {
	r := newRepo(t)
	_, err := r.GetTransaction(context.Background(), 42)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(r.MarkSynced(context.Background(), 42, "x"), ErrNotFound))
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "budget.db")
	require.NoError(t, RunMigrations(path))
	require.NoError(t, RunMigrations(path))
}
