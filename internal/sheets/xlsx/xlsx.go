// Package xlsx keeps the transaction and category tables in local Excel
// workbooks. Only the first worksheet of each workbook is used.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/xuri/excelize/v2"

	"budget/internal/core"
	"budget/internal/log"
	ports "budget/internal/sheets"
)

const defaultSheet = "Sheet1"

var (
	_ ports.TransactionStore = (*TransactionFile)(nil)
	_ ports.CategoryReader   = (*CategoryFile)(nil)
)

// TransactionFile is the transaction table stored in one workbook.
type TransactionFile struct {
	mu     sync.Mutex
	path   string
	logger *log.Logger
}

func NewTransactionFile(path string, logger *log.Logger) *TransactionFile {
	if logger == nil {
		logger = log.Nop()
	}
	return &TransactionFile{path: path, logger: logger.WithComponent(log.ComponentStorage)}
}

// ListTransactions returns every row; a missing workbook is an empty table.
func (s *TransactionFile) ListTransactions(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := readRows(s.path)
	if err != nil {
		return nil, err
	}
	return ports.DecodeTransactions(rows)
}

// Append writes t after the last used row, in the column order of the
// sheet's own header, and returns "<sheet>!A<n>:<last><n>". Missing
// columns are added to the header first.
func (s *TransactionFile) Append(ctx context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := openOrCreate(s.path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", core.ErrStorageCorruption, s.path, err)
	}
	var current []string
	if len(rows) > 0 {
		current = rows[0]
	}
	header, added := ports.AlignTransactionHeader(current)
	if added {
		cols := toRow(header)
		if err := f.SetSheetRow(sheet, "A1", &cols); err != nil {
			return "", fmt.Errorf("%w: write header: %v", core.ErrStorageIO, err)
		}
		s.logger.InfoContext(ctx, "Transaction header extended", log.FieldFile, s.path, "columns", len(header))
	}

	n := len(rows) + 1
	if n < 2 {
		n = 2
	}
	row := toRow(ports.EncodeTransactionAs(header, t))
	if i := ports.ColumnIndex(header, ports.ColAmount); i >= 0 {
		row[i] = t.Amount.InexactFloat64()
	}
	if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", n), &row); err != nil {
		return "", fmt.Errorf("%w: write row %d: %v", core.ErrStorageIO, n, err)
	}
	if err := writeAtomic(f, s.path); err != nil {
		return "", err
	}

	ref := fmt.Sprintf("%s!A%d:%s%d", sheet, n, ports.ColumnName(len(header)), n)
	s.logger.InfoContext(ctx, "Transaction appended to workbook",
		log.FieldFile, s.path,
		log.FieldRef, ref,
		log.FieldDepartment, t.Department)
	return ref, nil
}

// CategoryFile is the read-only category reference workbook.
type CategoryFile struct {
	path string
}

func NewCategoryFile(path string) *CategoryFile { return &CategoryFile{path: path} }

// ListCategories returns the reference rows; a missing workbook is empty.
func (c *CategoryFile) ListCategories(_ context.Context) ([]core.CategoryRow, error) {
	rows, err := readRows(c.path)
	if err != nil {
		return nil, err
	}
	return ports.DecodeCategories(rows)
}

// WriteCategories replaces the workbook contents with rows.
func (c *CategoryFile) WriteCategories(_ context.Context, rows []core.CategoryRow) error {
	return WriteCategories(c.path, rows)
}

// WriteCategories replaces the reference workbook at path with rows.
func WriteCategories(path string, rows []core.CategoryRow) error {
	f := excelize.NewFile()
	defer f.Close()
	header := toRow(ports.CategoryHeader)
	if err := f.SetSheetRow(defaultSheet, "A1", &header); err != nil {
		return err
	}
	for i, r := range rows {
		vals := toRow(ports.EncodeCategory(r))
		if err := f.SetSheetRow(defaultSheet, fmt.Sprintf("A%d", i+2), &vals); err != nil {
			return err
		}
	}
	return writeAtomic(f, path)
}

func readRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path, excelize.Options{RawCellValue: true})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: open %s: %v", core.ErrStorageCorruption, path, err)
	}
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", core.ErrStorageCorruption, path, err)
	}
	return rows, nil
}

func openOrCreate(path string) (*excelize.File, error) {
	f, err := excelize.OpenFile(path, excelize.Options{RawCellValue: true})
	if err == nil {
		return f, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return excelize.NewFile(), nil
	}
	return nil, fmt.Errorf("%w: open %s: %v", core.ErrStorageCorruption, path, err)
}

// writeAtomic saves the workbook to a temp file and renames it over path.
func writeAtomic(f *excelize.File, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", core.ErrStorageIO, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrStorageIO, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := f.WriteTo(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write %s: %v", core.ErrStorageIO, path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrStorageIO, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("%w: %v", core.ErrStorageIO, err)
	}
	return nil
}

func toRow(cols []string) []interface{} {
	out := make([]interface{}, len(cols))
	for i, v := range cols {
		out[i] = v
	}
	return out
}
