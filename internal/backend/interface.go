package backend

import (
	"context"
	"time"

	"budget/internal/cache"
	"budget/internal/sheets"
)

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// PingFunc reports backend readiness.
type PingFunc func(ctx context.Context) error

// Result is what the HTTP server needs from a backend.
type Result struct {
	Transactions sheets.TransactionStore
	// Categories is the cached reference reader.
	Categories *cache.CategoryReader
	Ping       PingFunc
	Cleanup    CleanupFunc
}

// Close runs Cleanup when present.
func (r *Result) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// xlsx
	TransactionsPath string
	CategoriesPath   string

	// sqlite
	SQLiteDBPath string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleTransactionsSheet  string
	GoogleCategoriesSheet    string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// memory
	DataDirectory string

	CategoryCacheTTL time.Duration
}

// BackendType represents the type of backend
type BackendType string

const (
	XLSXBackend   BackendType = "xlsx"
	MemoryBackend BackendType = "memory"
	SheetsBackend BackendType = "sheets"
	SQLiteBackend BackendType = "sqlite"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case XLSXBackend, MemoryBackend, SheetsBackend, SQLiteBackend:
		return true
	default:
		return false
	}
}
