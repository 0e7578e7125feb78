package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"budget/internal/core"
	"budget/internal/log"
	ports "budget/internal/sheets"
)

// Config selects the spreadsheet and the two tabs the client works with.
type Config struct {
	SpreadsheetID      string
	TransactionsSheet  string
	CategoriesSheet    string
	ServiceAccountJSON string
	ServiceAccountFile string
}

type Client struct {
	svc               *gsheet.Service
	spreadsheetID     string
	transactionsSheet string
	categoriesSheet   string
	logger            *log.Logger
}

// Ensure interface conformance
var (
	_ ports.TransactionWriter = (*Client)(nil)
	_ ports.TransactionLister = (*Client)(nil)
	_ ports.CategoryReader    = (*Client)(nil)
)

// New creates a Sheets client authenticated with a service account.
// Extra options replace credential resolution; tests use them to point the
// client at a local server.
func New(ctx context.Context, cfg Config, logger *log.Logger, extra ...goption.ClientOption) (*Client, error) {
	if logger == nil {
		logger = log.Nop()
	}
	logger = logger.WithComponent(log.ComponentSheets)

	id := strings.TrimSpace(cfg.SpreadsheetID)
	if id == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	txSheet := strings.TrimSpace(cfg.TransactionsSheet)
	if txSheet == "" {
		txSheet = "Бюджет"
	}
	catSheet := strings.TrimSpace(cfg.CategoriesSheet)
	if catSheet == "" {
		catSheet = "Справочник"
	}

	opts := extra
	if len(opts) == 0 {
		creds, err := credentialsJSON(cfg)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	logger.InfoContext(ctx, "Google Sheets service created",
		"spreadsheet_id", id,
		"transactions_sheet", txSheet,
		"categories_sheet", catSheet)

	return &Client{
		svc:               svc,
		spreadsheetID:     id,
		transactionsSheet: txSheet,
		categoriesSheet:   catSheet,
		logger:            logger,
	}, nil
}

// credentialsJSON reads inline JSON first, then the key file, then
// GOOGLE_APPLICATION_CREDENTIALS.
func credentialsJSON(cfg Config) ([]byte, error) {
	if js := strings.TrimSpace(cfg.ServiceAccountJSON); js != "" {
		return []byte(js), nil
	}
	file := strings.TrimSpace(cfg.ServiceAccountFile)
	if file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if file == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return b, nil
}

// Append adds t below the last row of the transactions tab, in the column
// order of the tab's own header, and returns the updated A1 range. An empty
// tab gets the full header first; a header missing columns is extended.
// Values are sent RAW so cell text is never evaluated as a formula.
func (c *Client) Append(ctx context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}

	head, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, a1(c.transactionsSheet, "1:1")).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("%w: read header of %s: %v", core.ErrStorageIO, c.transactionsSheet, err)
	}
	var current []string
	if rows := ports.ToStrings(head.Values); len(rows) > 0 {
		current = rows[0]
	}
	header, added := ports.AlignTransactionHeader(current)

	var values [][]any
	switch {
	case len(current) == 0:
		values = append(values, toRow(header))
	case added:
		_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, a1(c.transactionsSheet, "1:1"), &gsheet.ValueRange{Values: [][]any{toRow(header)}}).
			ValueInputOption("RAW").
			Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("%w: extend header of %s: %v", core.ErrStorageIO, c.transactionsSheet, err)
		}
		c.logger.InfoContext(ctx, "Transaction header extended", "columns", len(header))
	}
	row := toRow(ports.EncodeTransactionAs(header, t))
	// Amount goes in as a number so sheet formulas can sum it.
	if i := ports.ColumnIndex(header, ports.ColAmount); i >= 0 {
		row[i] = t.Amount.InexactFloat64()
	}
	values = append(values, row)

	rng := a1(c.transactionsSheet, "A:"+ports.ColumnName(len(header)))
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("%w: append to %s: %v", core.ErrStorageIO, c.transactionsSheet, err)
	}
	ref := ""
	if resp.Updates != nil {
		ref = resp.Updates.UpdatedRange
	}
	c.logger.InfoContext(ctx, "Transaction appended to sheet", log.FieldRef, ref, log.FieldDepartment, t.Department)
	return ref, nil
}

// ListTransactions reads the whole transactions tab.
func (c *Client) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	values, err := c.read(ctx, c.transactionsSheet, "A:Z")
	if err != nil {
		return nil, err
	}
	return ports.DecodeTransactions(values)
}

// ListCategories reads the category reference tab.
func (c *Client) ListCategories(ctx context.Context) ([]core.CategoryRow, error) {
	values, err := c.read(ctx, c.categoriesSheet, "A:Z")
	if err != nil {
		return nil, err
	}
	return ports.DecodeCategories(values)
}

func (c *Client) read(ctx context.Context, sheet, rng string) ([][]string, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, a1(sheet, rng)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", core.ErrStorageIO, sheet, err)
	}
	return ports.ToStrings(resp.Values), nil
}

// a1 builds a quoted A1 range so sheet names with spaces or Cyrillic work.
func a1(sheet, rng string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(sheet, "'", "''"), rng)
}

func toRow(cols []string) []any {
	out := make([]any, len(cols))
	for i, v := range cols {
		out[i] = v
	}
	return out
}
