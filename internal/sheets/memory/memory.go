package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"budget/internal/core"
	ports "budget/internal/sheets"
)

// SeedFile holds category reference lines "Категория;Счет;Статья;Подстатья".
const SeedFile = "seed_categories.txt"

var (
	_ ports.TransactionStore = (*Store)(nil)
	_ ports.CategoryReader   = (*Store)(nil)
)

type Store struct {
	mu    sync.Mutex
	cats  []core.CategoryRow
	items []core.Transaction
}

func New(cats []core.CategoryRow) *Store {
	return &Store{cats: append([]core.CategoryRow(nil), cats...)}
}

// NewFromFiles seeds the category reference from base/seed_categories.txt,
// falling back to a small demo reference.
func NewFromFiles(base string) *Store {
	cats := readSeed(filepath.Join(base, SeedFile))
	if len(cats) == 0 {
		cats = []core.CategoryRow{
			{Category: "Доходы", Account: "90", Article: "Выручка", SubArticle: "Опт"},
			{Category: "Доходы", Account: "90", Article: "Выручка", SubArticle: "Розница"},
			{Category: "Расходы", Account: "26", Article: "Аренда", SubArticle: "Офис"},
			{Category: "Расходы", Account: "26", Article: "Зарплата", SubArticle: "Оклад"},
		}
	}
	return New(cats)
}

// Append stores the transaction and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, t)
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

func (s *Store) ListTransactions(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.items...), nil
}

func (s *Store) ListCategories(_ context.Context) ([]core.CategoryRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.CategoryRow(nil), s.cats...), nil
}

func readSeed(path string) []core.CategoryRow {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []core.CategoryRow
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ";")
		for len(parts) < 4 {
			parts = append(parts, "")
		}
		row := core.CategoryRow{
			Category:   strings.TrimSpace(parts[0]),
			Account:    strings.TrimSpace(parts[1]),
			Article:    strings.TrimSpace(parts[2]),
			SubArticle: strings.TrimSpace(parts[3]),
		}
		if row.Category == "" {
			continue
		}
		out = append(out, row)
	}
	return out
}
