package core

import "github.com/shopspring/decimal"

// Balance is income, expense and their difference over a set of rows.
type Balance struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
}

func (b Balance) Remainder() decimal.Decimal { return b.Income.Sub(b.Expense) }

// DepartmentBalance is the balance of one department.
type DepartmentBalance struct {
	Department string
	Balance
}

// BalanceOf sums income and expense rows.
func BalanceOf(rows []Transaction) Balance {
	b := Balance{Income: decimal.Zero, Expense: decimal.Zero}
	for _, t := range rows {
		switch t.Type {
		case Income:
			b.Income = b.Income.Add(t.Amount)
		case Expense:
			b.Expense = b.Expense.Add(t.Amount)
		}
	}
	return b
}

// DepartmentBalances breaks rows down per department in first-seen order.
// Rows of the built-in admin account are left out of the breakdown.
func DepartmentBalances(rows []Transaction) []DepartmentBalance {
	var order []string
	byDept := map[string][]Transaction{}
	for _, t := range rows {
		if t.Department == AdminUser {
			continue
		}
		if _, ok := byDept[t.Department]; !ok {
			order = append(order, t.Department)
		}
		byDept[t.Department] = append(byDept[t.Department], t)
	}
	out := make([]DepartmentBalance, 0, len(order))
	for _, d := range order {
		out = append(out, DepartmentBalance{Department: d, Balance: BalanceOf(byDept[d])})
	}
	return out
}
