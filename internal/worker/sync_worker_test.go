package worker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/sheets/memory"
	"budget/internal/sheets/xlsx"
	"budget/internal/storage"
)

type fakeSheet struct {
	rows []core.Transaction
	err  error
}

func (f *fakeSheet) Append(_ context.Context, t core.Transaction) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.rows = append(f.rows, t)
	return fmt.Sprintf("'Бюджет'!A%d:G%d", len(f.rows)+1, len(f.rows)+1), nil
}

func newRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	r, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "budget.db"), log.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func store(t *testing.T, r *storage.SQLiteRepository, dept string) int64 {
	t.Helper()
	_, err := r.Append(context.Background(), core.Transaction{
		Period:     core.Period{Year: 2024, Month: 5},
		Category:   "Доходы",
		Amount:     decimal.NewFromInt(100),
		Type:       core.Income,
		Department: dept,
	})
	require.NoError(t, err)
	pending, err := r.GetPendingSync(context.Background(), 100)
	require.NoError(t, err)
	return pending[len(pending)-1].ID
}

func TestHandleSyncMessageIsIdempotent(t *testing.T) {
	repo := newRepo(t)
	sheet := &fakeSheet{}
	w := NewSyncWorker(repo, sheet, nil, nil, 0, log.Nop())
	id := store(t, repo, "dept1")

	msg := &amqp.TransactionSyncMessage{ID: id}
	require.NoError(t, w.HandleSyncMessage(context.Background(), msg))
	require.NoError(t, w.HandleSyncMessage(context.Background(), msg))
	assert.Len(t, sheet.rows, 1)

	rec, err := repo.GetTransaction(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, storage.SyncSynced, rec.SyncStatus)
	assert.Equal(t, "'Бюджет'!A2:G2", rec.SheetRef)
}

func TestHandleSyncMessageUnknownIDIsAcked(t *testing.T) {
	w := NewSyncWorker(newRepo(t), &fakeSheet{}, nil, nil, 0, log.Nop())
	assert.NoError(t, w.HandleSyncMessage(context.Background(), &amqp.TransactionSyncMessage{ID: 99}))
}

func TestHandleSyncMessageSheetFailureRequeues(t *testing.T) {
	repo := newRepo(t)
	w := NewSyncWorker(repo, &fakeSheet{err: core.ErrStorageIO}, nil, nil, 0, log.Nop())
	id := store(t, repo, "dept1")

	err := w.HandleSyncMessage(context.Background(), &amqp.TransactionSyncMessage{ID: id})
	assert.True(t, errors.Is(err, core.ErrStorageIO))
	rec, _ := repo.GetTransaction(context.Background(), id)
	assert.Equal(t, storage.SyncPending, rec.SyncStatus)
}

func TestProcessPending(t *testing.T) {
	repo := newRepo(t)
	sheet := &fakeSheet{}
	w := NewSyncWorker(repo, sheet, nil, nil, 2, log.Nop())
	for _, d := range []string{"a", "b", "c"} {
		store(t, repo, d)
	}

	synced, failed, err := w.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, synced)
	assert.Equal(t, 0, failed)

	synced, _, err = w.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, synced)
	assert.Len(t, sheet.rows, 3)

	synced, _, err = w.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, synced)
}

func TestSyncCategoriesMirrorsToWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spravochnik.xlsx")
	src := memory.New([]core.CategoryRow{{Category: "Доходы", Account: "90", Article: "Выручка", SubArticle: "Опт"}})
	w := NewSyncWorker(newRepo(t), &fakeSheet{}, src, xlsx.NewCategoryFile(path), 0, log.Nop())

	require.NoError(t, w.SyncCategories(context.Background()))
	got, err := xlsx.NewCategoryFile(path).ListCategories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []core.CategoryRow{{Category: "Доходы", Account: "90", Article: "Выручка", SubArticle: "Опт"}}, got)

	// An empty sheet keeps what is already there.
	w = NewSyncWorker(newRepo(t), &fakeSheet{}, memory.New(nil), xlsx.NewCategoryFile(path), 0, log.Nop())
	require.NoError(t, w.SyncCategories(context.Background()))
	got, _ = xlsx.NewCategoryFile(path).ListCategories(context.Background())
	assert.Len(t, got, 1)
}
