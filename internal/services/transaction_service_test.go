package services

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/sheets/memory"
)

// idStore returns numeric refs like the SQLite repository.
type idStore struct {
	*memory.Store
	fail error
}

func (s *idStore) Append(ctx context.Context, t core.Transaction) (string, error) {
	if s.fail != nil {
		return "", s.fail
	}
	ref, err := s.Store.Append(ctx, t)
	if err != nil {
		return "", err
	}
	return ref[len("mem:"):], nil
}

type fakePublisher struct {
	ids []int64
	err error
}

func (p *fakePublisher) PublishTransactionSync(_ context.Context, id int64) error {
	p.ids = append(p.ids, id)
	return p.err
}

func validTx() core.Transaction {
	return core.Transaction{
		Period:     core.Period{Year: 2024, Month: 1},
		Category:   "Доходы",
		Amount:     decimal.NewFromInt(10),
		Type:       core.Income,
		Department: "dept1",
	}
}

func TestTransactionServicePublishesAfterSave(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewTransactionService(&idStore{Store: memory.New(nil)}, pub, log.Nop())

	ref, err := svc.Append(context.Background(), validTx())
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if ref != "1" || len(pub.ids) != 1 || pub.ids[0] != 1 {
		t.Fatalf("unexpected ref=%q published=%v", ref, pub.ids)
	}
	rows, _ := svc.ListTransactions(context.Background())
	if len(rows) != 1 {
		t.Fatalf("expected one stored row, got %d", len(rows))
	}
}

func TestTransactionServiceToleratesPublishFailure(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := NewTransactionService(&idStore{Store: memory.New(nil)}, pub, log.Nop())
	if _, err := svc.Append(context.Background(), validTx()); err != nil {
		t.Fatalf("publish failure must not fail the save: %v", err)
	}

	svc = NewTransactionService(&idStore{Store: memory.New(nil)}, nil, nil)
	if _, err := svc.Append(context.Background(), validTx()); err != nil {
		t.Fatalf("nil publisher: %v", err)
	}
}

func TestTransactionServiceStorageError(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewTransactionService(&idStore{Store: memory.New(nil), fail: core.ErrStorageIO}, pub, log.Nop())
	_, err := svc.Append(context.Background(), validTx())
	if !errors.Is(err, core.ErrStorageIO) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if len(pub.ids) != 0 {
		t.Fatal("nothing should be published when the save fails")
	}
}
