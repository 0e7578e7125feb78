package sheets

import (
	"fmt"
	"strings"

	"budget/internal/core"
)

// Column headers of the transaction table.
const (
	ColDate       = "Дата"
	ColCategory   = "Категория"
	ColArticle    = "Статья"
	ColSubArticle = "Подстатья"
	ColAmount     = "Сумма"
	ColType       = "Тип"
	ColDepartment = "Отдел"
	ColAccount    = "Счет"
)

// TransactionHeader is the column order written by every backend.
var TransactionHeader = []string{ColDate, ColCategory, ColArticle, ColSubArticle, ColAmount, ColType, ColDepartment}

// CategoryHeader is the column order of the category reference table.
var CategoryHeader = []string{ColCategory, ColAccount, ColArticle, ColSubArticle}

var requiredTransactionCols = []string{ColDate, ColCategory, ColAmount, ColType, ColDepartment}

// EncodeTransaction renders t in TransactionHeader order.
func EncodeTransaction(t core.Transaction) []string {
	return []string{
		t.Period.String(),
		t.Category,
		t.Article,
		t.SubArticle,
		core.FormatAmount(t.Amount),
		string(t.Type),
		t.Department,
	}
}

// AlignTransactionHeader returns header with every TransactionHeader column
// it lacks appended after the existing ones, so rows already in the table
// keep their positions. added reports whether header had to grow. An empty
// header becomes TransactionHeader.
func AlignTransactionHeader(header []string) (aligned []string, added bool) {
	if blank(header) {
		return append([]string(nil), TransactionHeader...), true
	}
	idx := headerIndex(header)
	aligned = append([]string(nil), header...)
	for _, col := range TransactionHeader {
		if _, ok := idx[col]; !ok {
			aligned = append(aligned, col)
			added = true
		}
	}
	return aligned, added
}

// EncodeTransactionAs renders t in the column order of header. Columns the
// table has but a transaction does not fill stay empty.
func EncodeTransactionAs(header []string, t core.Transaction) []string {
	idx := headerIndex(header)
	out := make([]string, len(header))
	for i, v := range EncodeTransaction(t) {
		if j, ok := idx[TransactionHeader[i]]; ok {
			out[j] = v
		}
	}
	return out
}

// ColumnIndex returns the position of col in header, or -1.
func ColumnIndex(header []string, col string) int {
	if i, ok := headerIndex(header)[col]; ok {
		return i
	}
	return -1
}

// ColumnName returns the A1 letters of the 1-based column n.
func ColumnName(n int) string {
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}

// DecodeTransactions maps rows by the header in the first row. Article and
// Sub-article columns may be absent and are back-filled with "". Blank rows
// are skipped. A missing required column or an unparsable cell yields an
// error wrapping core.ErrStorageCorruption.
func DecodeTransactions(rows [][]string) ([]core.Transaction, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	idx := headerIndex(rows[0])
	var missing []string
	for _, c := range requiredTransactionCols {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: transaction table missing columns %s", core.ErrStorageCorruption, strings.Join(missing, ", "))
	}

	out := make([]core.Transaction, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		line := i + 2
		get := func(col string) string { return cell(row, idx, col) }

		period, err := core.ParsePeriod(get(ColDate))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", core.ErrStorageCorruption, line, err)
		}
		amount, err := core.ParseAmount(get(ColAmount))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: amount %q: %v", core.ErrStorageCorruption, line, get(ColAmount), err)
		}
		typ := core.TransactionType(get(ColType))
		if !typ.Valid() {
			return nil, fmt.Errorf("%w: row %d: unknown type %q", core.ErrStorageCorruption, line, typ)
		}
		out = append(out, core.Transaction{
			Period:     period,
			Category:   get(ColCategory),
			Article:    get(ColArticle),
			SubArticle: get(ColSubArticle),
			Amount:     amount,
			Type:       typ,
			Department: get(ColDepartment),
		})
	}
	return out, nil
}

// EncodeCategory renders r in CategoryHeader order.
func EncodeCategory(r core.CategoryRow) []string {
	return []string{r.Category, r.Account, r.Article, r.SubArticle}
}

// DecodeCategories maps reference rows by header. Rows without a category
// are skipped; any other column may be absent.
func DecodeCategories(rows [][]string) ([]core.CategoryRow, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	idx := headerIndex(rows[0])
	if _, ok := idx[ColCategory]; !ok {
		return nil, fmt.Errorf("%w: category reference missing column %s", core.ErrStorageCorruption, ColCategory)
	}
	out := make([]core.CategoryRow, 0, len(rows)-1)
	for _, row := range rows[1:] {
		r := core.CategoryRow{
			Category:   cell(row, idx, ColCategory),
			Account:    cell(row, idx, ColAccount),
			Article:    cell(row, idx, ColArticle),
			SubArticle: cell(row, idx, ColSubArticle),
		}
		if r.Category == "" {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// ToStrings converts a values matrix of any cell type to strings.
func ToStrings(values [][]any) [][]string {
	out := make([][]string, len(values))
	for i, row := range values {
		cols := make([]string, len(row))
		for j, v := range row {
			if v == nil {
				continue
			}
			cols[j] = strings.TrimSpace(fmt.Sprint(v))
		}
		out[i] = cols
	}
	return out
}

func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if _, dup := idx[h]; !dup && h != "" {
			idx[h] = i
		}
	}
	return idx
}

func cell(row []string, idx map[string]int, col string) string {
	i, ok := idx[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
