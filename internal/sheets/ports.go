package sheets

import (
	"context"

	"budget/internal/core"
)

// Ports for outbound adapters.
type (
	// TransactionWriter appends one row to the transaction table.
	TransactionWriter interface {
		Append(ctx context.Context, t core.Transaction) (rowRef string, err error)
	}

	// TransactionLister returns every row of the transaction table.
	TransactionLister interface {
		ListTransactions(ctx context.Context) ([]core.Transaction, error)
	}

	// CategoryReader returns the category reference table.
	CategoryReader interface {
		ListCategories(ctx context.Context) ([]core.CategoryRow, error)
	}

	// TransactionStore is a full transaction table backend.
	TransactionStore interface {
		TransactionWriter
		TransactionLister
	}
)
