package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestPeriodStringAndParse(t *testing.T) {
	p := Period{Year: 2024, Month: 1}
	if p.String() != "2024-Январь" {
		t.Fatalf("unexpected period string %q", p.String())
	}
	got, err := ParsePeriod("2024-Январь")
	if err != nil || got != p {
		t.Fatalf("parse: got %+v err=%v", got, err)
	}
	for _, bad := range []string{"", "2024", "x-Январь", "2024-Jan"} {
		if _, err := ParsePeriod(bad); err == nil {
			t.Fatalf("%q expected error", bad)
		}
	}
}

func TestYears(t *testing.T) {
	ys := Years(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	if ys[0] != 2020 || ys[len(ys)-1] != 2025 {
		t.Fatalf("unexpected years %v", ys)
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Period:     Period{Year: 2024, Month: 1},
		Category:   "Продажи",
		Amount:     decimal.NewFromInt(1000),
		Type:       Income,
		Department: "dept1",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []func(*Transaction){
		func(tx *Transaction) { tx.Period.Month = 13 },
		func(tx *Transaction) { tx.Category = " " },
		func(tx *Transaction) { tx.Type = "Перевод" },
		func(tx *Transaction) { tx.Amount = decimal.Zero },
		func(tx *Transaction) { tx.Department = "" },
	}
	for i, mutate := range bads {
		tx := good
		mutate(&tx)
		err := tx.Validate()
		if err == nil {
			t.Fatalf("case %d expected error", i)
		}
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d expected validation error, got %v", i, err)
		}
	}
}

func TestCredentialsRenameAndClone(t *testing.T) {
	c := BootstrapCredentials("a", "s")
	c.Users["dept1"] = "p"
	c.Roles["dept1"] = RoleCustom
	c.Permissions["dept1"] = map[Module]PermissionLevel{ModuleBudget: PermEditor}

	cp := c.Clone()
	cp.Rename("dept1", "dept2")

	if !c.Has("dept1") || c.Has("dept2") {
		t.Fatalf("clone mutated the original")
	}
	if cp.Has("dept1") || cp.Users["dept2"] != "p" || cp.Roles["dept2"] != RoleCustom {
		t.Fatalf("rename incomplete: %+v", cp)
	}
	if cp.Permissions["dept2"][ModuleBudget] != PermEditor {
		t.Fatalf("permissions not moved: %+v", cp.Permissions)
	}
}

func TestPasswordMatches(t *testing.T) {
	c := Credentials{Users: map[string]string{"u": " pw ", "empty": ""}}
	if !c.PasswordMatches("u", "pw") {
		t.Fatal("trimmed passwords should match")
	}
	if c.PasswordMatches("u", "PW") || c.PasswordMatches("nobody", "pw") || c.PasswordMatches("empty", "") {
		t.Fatal("unexpected match")
	}
}

func TestBalances(t *testing.T) {
	rows := []Transaction{
		{Amount: decimal.NewFromInt(1000), Type: Income, Department: "d1"},
		{Amount: decimal.NewFromInt(300), Type: Expense, Department: "d1"},
		{Amount: decimal.NewFromInt(50), Type: Expense, Department: AdminUser},
		{Amount: decimal.NewFromInt(200), Type: Income, Department: "d2"},
	}
	b := BalanceOf(rows)
	if !b.Income.Equal(decimal.NewFromInt(1200)) || !b.Expense.Equal(decimal.NewFromInt(350)) {
		t.Fatalf("unexpected balance %+v", b)
	}
	if !b.Remainder().Equal(decimal.NewFromInt(850)) {
		t.Fatalf("unexpected remainder %s", b.Remainder())
	}
	depts := DepartmentBalances(rows)
	if len(depts) != 2 || depts[0].Department != "d1" || depts[1].Department != "d2" {
		t.Fatalf("unexpected departments %+v", depts)
	}
	if !depts[0].Remainder().Equal(decimal.NewFromInt(700)) {
		t.Fatalf("unexpected d1 remainder %s", depts[0].Remainder())
	}
}
