package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// GroupKey selects one grouping column of a pivot.
type GroupKey string

const (
	KeyCategory   GroupKey = "Категория"
	KeyArticle    GroupKey = "Статья"
	KeySubArticle GroupKey = "Подстатья"
	KeyDepartment GroupKey = "Отдел"
)

// Pivot layouts used by the budget views.
var (
	EditorPivotKeys    = []GroupKey{KeyCategory, KeySubArticle}
	ViewerPivotKeys    = []GroupKey{KeyCategory, KeyArticle, KeySubArticle}
	ViewerAllPivotKeys = []GroupKey{KeyCategory, KeySubArticle, KeyDepartment}
)

// Pivot is summed Amount cross-tabulated by grouping keys and period columns.
// Every row has one cell per column; absent combinations hold zero.
type Pivot struct {
	Keys    []GroupKey
	Columns []Period
	Rows    []PivotRow
}

type PivotRow struct {
	Keys  []string
	Cells []decimal.Decimal
}

func (p Pivot) Empty() bool { return len(p.Rows) == 0 }

func (k GroupKey) valueOf(t Transaction) string {
	switch k {
	case KeyCategory:
		return t.Category
	case KeyArticle:
		return t.Article
	case KeySubArticle:
		return t.SubArticle
	case KeyDepartment:
		return t.Department
	}
	return ""
}

// BuildPivot groups rows by keys and sums Amount per period. Row groups are
// sorted lexicographically, columns chronologically. Amounts are summed
// regardless of Type.
func BuildPivot(rows []Transaction, keys []GroupKey) Pivot {
	p := Pivot{Keys: append([]GroupKey(nil), keys...)}
	if len(rows) == 0 {
		return p
	}

	cols := map[Period]int{}
	for _, t := range rows {
		if _, ok := cols[t.Period]; !ok {
			cols[t.Period] = 0
			p.Columns = append(p.Columns, t.Period)
		}
	}
	sort.Slice(p.Columns, func(i, j int) bool {
		a, b := p.Columns[i], p.Columns[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.Month < b.Month
	})
	for i, c := range p.Columns {
		cols[c] = i
	}

	index := map[string]int{}
	for _, t := range rows {
		vals := make([]string, len(keys))
		for i, k := range keys {
			vals[i] = k.valueOf(t)
		}
		id := groupID(vals)
		ri, ok := index[id]
		if !ok {
			cells := make([]decimal.Decimal, len(p.Columns))
			for i := range cells {
				cells[i] = decimal.Zero
			}
			p.Rows = append(p.Rows, PivotRow{Keys: vals, Cells: cells})
			ri = len(p.Rows) - 1
			index[id] = ri
		}
		ci := cols[t.Period]
		p.Rows[ri].Cells[ci] = p.Rows[ri].Cells[ci].Add(t.Amount)
	}

	sort.SliceStable(p.Rows, func(i, j int) bool {
		a, b := p.Rows[i].Keys, p.Rows[j].Keys
		for k := range a {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return false
	})
	return p
}

func groupID(vals []string) string {
	n := 0
	for _, v := range vals {
		n += len(v) + 1
	}
	b := make([]byte, 0, n)
	for _, v := range vals {
		b = append(b, v...)
		b = append(b, 0)
	}
	return string(b)
}

// OwnedBy returns the rows recorded by department.
func OwnedBy(rows []Transaction, department string) []Transaction {
	var out []Transaction
	for _, t := range rows {
		if t.Department == department {
			out = append(out, t)
		}
	}
	return out
}
