package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budget/internal/core"
	"budget/internal/credentials"
	"budget/internal/log"
	"budget/internal/sheets/memory"
)

var testRef = []core.CategoryRow{
	{Category: "Доходы", Account: "90", Article: "Выручка", SubArticle: "Опт"},
	{Category: "Доходы", Account: "90", Article: "Выручка", SubArticle: "Розница"},
	{Category: "Расходы", Account: "26", Article: "Аренда", SubArticle: "Офис"},
}

func testCreds() core.Credentials {
	c := core.BootstrapCredentials("a", "s")
	c.Users["dept1"] = "pass1"
	c.Roles["dept1"] = core.RoleCustom
	c.Permissions["dept1"] = map[core.Module]core.PermissionLevel{
		core.ModuleBudget:  core.PermEditor,
		core.ModuleSales:   core.PermViewer,
		core.ModuleReports: core.PermViewer,
	}
	c.Users["dept2"] = "pass2"
	c.Roles["dept2"] = core.RoleCustom
	c.Permissions["dept2"] = map[core.Module]core.PermissionLevel{core.ModuleBudget: core.PermViewer}
	c.Users["boss"] = "x"
	c.Roles["boss"] = core.RoleAdmin
	c.Permissions["boss"] = map[core.Module]core.PermissionLevel{}
	c.Users["guest"] = "x"
	c.Roles["guest"] = core.RoleCustom
	return c
}

func viewer(user string) Viewer {
	c := testCreds()
	return Viewer{User: user, Role: c.Roles[user], Credentials: c}
}

func newBudget(t *testing.T) (*BudgetService, *memory.Store) {
	t.Helper()
	store := memory.New(testRef)
	svc := NewBudgetService(store, store, log.Nop())
	svc.now = func() time.Time { return time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC) }
	return svc, store
}

func entry(amount string, typ core.TransactionType) EntryInput {
	return EntryInput{Year: 2024, Month: 1, Category: "Доходы", Article: "Выручка", SubArticle: "Опт", Amount: amount, Type: typ}
}

func TestModeFor(t *testing.T) {
	tests := []struct {
		level core.PermissionLevel
		role  core.Role
		want  BudgetMode
	}{
		{core.PermEditor, core.RoleCustom, BudgetEditor},
		{core.PermViewer, core.RoleCustom, BudgetViewer},
		{core.PermViewerAll, core.RoleSupervisor, BudgetViewerAll},
		{core.PermissionLevel("admin"), core.RoleAdmin, BudgetAdmin},
		{core.PermissionLevel("custom"), core.RoleCustom, BudgetNone},
	}
	for _, tt := range tests {
		if got := ModeFor(tt.level, tt.role); got != tt.want {
			t.Errorf("ModeFor(%q, %q) = %q, want %q", tt.level, tt.role, got, tt.want)
		}
	}
}

func TestRecordForcesDepartmentAndShowsInSupervisorPivot(t *testing.T) {
	svc, store := newBudget(t)
	ctx := context.Background()

	_, err := svc.Record(ctx, viewer("dept1"), entry("1000", core.Income))
	require.NoError(t, err)

	rows, _ := store.ListTransactions(ctx)
	require.Len(t, rows, 1)
	assert.Equal(t, "dept1", rows[0].Department)
	assert.Equal(t, "2024-Январь", rows[0].Period.String())

	sup, err := svc.Page(ctx, viewer("supervisor"), core.Filter{})
	require.NoError(t, err)
	assert.Equal(t, BudgetViewerAll, sup.Mode)
	require.Len(t, sup.Pivot.Rows, 1)
	assert.Equal(t, []string{"Доходы", "Опт", "dept1"}, sup.Pivot.Rows[0].Keys)
	assert.True(t, sup.Pivot.Rows[0].Cells[0].Equal(decimal.NewFromInt(1000)))
	assert.Nil(t, sup.Form)
}

func TestRecordRejects(t *testing.T) {
	svc, store := newBudget(t)
	ctx := context.Background()

	_, err := svc.Record(ctx, viewer("dept2"), entry("10", core.Income))
	assert.True(t, errors.Is(err, core.ErrForbidden))

	_, err = svc.Record(ctx, viewer("dept1"), entry("abc", core.Income))
	assert.True(t, errors.Is(err, core.ErrValidation))

	_, err = svc.Record(ctx, viewer("dept1"), entry("-5", core.Expense))
	assert.True(t, errors.Is(err, core.ErrValidation))

	in := entry("5", core.Income)
	in.Category = " "
	_, err = svc.Record(ctx, viewer("dept1"), in)
	assert.True(t, errors.Is(err, core.ErrValidation))

	rows, _ := store.ListTransactions(ctx)
	assert.Empty(t, rows)
}

func TestEditorPageShowsOnlyOwnRowsAndForm(t *testing.T) {
	svc, _ := newBudget(t)
	ctx := context.Background()
	_, err := svc.Record(ctx, viewer("dept1"), entry("1000", core.Income))
	require.NoError(t, err)
	_, err = svc.Record(ctx, viewer("admin"), entry("7", core.Expense))
	require.NoError(t, err)

	page, err := svc.Page(ctx, viewer("dept1"), core.Filter{Category: "Расходы"})
	require.NoError(t, err)
	assert.Equal(t, BudgetEditor, page.Mode)
	require.NotNil(t, page.Form)
	assert.Equal(t, 2024, page.Form.Year)
	assert.Equal(t, 3, page.Form.Month)
	assert.Equal(t, core.Filter{Category: "Расходы", Article: "Аренда", SubArticle: "Офис"}, page.Form.Selection)
	require.Len(t, page.Pivot.Rows, 1)
	assert.Equal(t, []string{"Доходы", "Опт"}, page.Pivot.Rows[0].Keys)
}

func TestViewerPageFiltersOwnRows(t *testing.T) {
	svc, store := newBudget(t)
	ctx := context.Background()
	for _, tx := range []core.Transaction{
		{Period: core.Period{Year: 2024, Month: 1}, Category: "Доходы", Article: "Выручка", SubArticle: "Опт", Amount: decimal.NewFromInt(1), Type: core.Income, Department: "dept2"},
		{Period: core.Period{Year: 2024, Month: 2}, Category: "Расходы", Article: "Аренда", SubArticle: "Офис", Amount: decimal.NewFromInt(2), Type: core.Expense, Department: "dept2"},
		{Period: core.Period{Year: 2024, Month: 2}, Category: "Расходы", Article: "Аренда", SubArticle: "Офис", Amount: decimal.NewFromInt(3), Type: core.Expense, Department: "dept1"},
	} {
		_, err := store.Append(ctx, tx)
		require.NoError(t, err)
	}

	page, err := svc.Page(ctx, viewer("dept2"), core.Filter{Category: "Расходы", Article: "Выручка"})
	require.NoError(t, err)
	assert.Equal(t, BudgetViewer, page.Mode)
	assert.Equal(t, core.Filter{Category: "Расходы", Article: core.All, SubArticle: core.All}, page.Filter)
	assert.Equal(t, []string{"Аренда"}, page.FilterOptions.Articles)
	require.Len(t, page.Pivot.Rows, 1)
	assert.Equal(t, []string{"Расходы", "Аренда", "Офис"}, page.Pivot.Rows[0].Keys)
	assert.True(t, page.Pivot.Rows[0].Cells[0].Equal(decimal.NewFromInt(2)))
}

func TestAdminFallbackAndNoAccess(t *testing.T) {
	svc, store := newBudget(t)
	ctx := context.Background()
	for _, tx := range []core.Transaction{
		{Period: core.Period{Year: 2024, Month: 1}, Category: "Доходы", Amount: decimal.NewFromInt(1000), Type: core.Income, Department: "dept1"},
		{Period: core.Period{Year: 2024, Month: 1}, Category: "Расходы", Amount: decimal.NewFromInt(300), Type: core.Expense, Department: "admin"},
	} {
		_, err := store.Append(ctx, tx)
		require.NoError(t, err)
	}

	page, err := svc.Page(ctx, viewer("boss"), core.Filter{})
	require.NoError(t, err)
	assert.Equal(t, BudgetAdmin, page.Mode)
	assert.Len(t, page.Rows, 2)
	assert.True(t, page.Company.Remainder().Equal(decimal.NewFromInt(700)))
	require.Len(t, page.Departments, 1)
	assert.Equal(t, "dept1", page.Departments[0].Department)

	page, err = svc.Page(ctx, viewer("guest"), core.Filter{})
	require.NoError(t, err)
	assert.Equal(t, BudgetNone, page.Mode)
	assert.Nil(t, page.Rows)
}

func TestUserServiceCreate(t *testing.T) {
	store := credentials.NewFileStore(filepath.Join(t.TempDir(), "users.json"), core.BootstrapCredentials("a", "s"), log.Nop())
	svc := NewUserService(store, log.Nop())
	ctx := context.Background()
	admin := Viewer{User: "admin", Role: core.RoleAdmin}

	fresh, err := svc.Create(ctx, admin, NewUser{
		Username:    " dept1 ",
		Password:    "pass1",
		Permissions: map[core.Module]core.PermissionLevel{core.ModuleBudget: core.PermViewer},
	})
	require.NoError(t, err)
	assert.Equal(t, "pass1", fresh.Users["dept1"])
	assert.Equal(t, core.RoleCustom, fresh.Roles["dept1"])
	assert.Equal(t, map[core.Module]core.PermissionLevel{
		core.ModuleBudget:  core.PermViewer,
		core.ModuleSales:   core.PermEditor,
		core.ModuleReports: core.PermEditor,
	}, fresh.Permissions["dept1"])

	_, err = svc.Create(ctx, admin, NewUser{Username: "dept1", Password: "x"})
	assert.True(t, errors.Is(err, core.ErrConflict))

	_, err = svc.Create(ctx, admin, NewUser{Username: "dept3", Password: " "})
	assert.True(t, errors.Is(err, core.ErrValidation))

	_, err = svc.Create(ctx, admin, NewUser{Username: "dept3", Password: "p",
		Permissions: map[core.Module]core.PermissionLevel{core.ModuleSales: core.PermViewerAll}})
	assert.True(t, errors.Is(err, core.ErrValidation))

	_, err = svc.Create(ctx, Viewer{User: "dept1", Role: core.RoleCustom}, NewUser{Username: "x", Password: "y"})
	assert.True(t, errors.Is(err, core.ErrForbidden))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, loaded.Has("dept3"))
	assert.False(t, loaded.Has("x"))
}

func TestUserServiceTable(t *testing.T) {
	svc := NewUserService(nil, nil)
	v := viewer("admin")
	v.Role = core.RoleAdmin
	rows, err := svc.Table(v)
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, "admin", rows[0].User)
	assert.Equal(t, "boss", rows[1].User)
	assert.Equal(t, "dept1", rows[2].User)
	assert.Equal(t, []core.PermissionLevel{core.PermEditor, core.PermViewer, core.PermViewer}, rows[2].Levels)

	_, err = svc.Table(viewer("dept1"))
	assert.True(t, errors.Is(err, core.ErrForbidden))
}

func TestReportsPage(t *testing.T) {
	store := memory.New(nil)
	ctx := context.Background()
	for _, tx := range []core.Transaction{
		{Period: core.Period{Year: 2024, Month: 1}, Category: "Доходы", Amount: decimal.NewFromInt(1000), Type: core.Income, Department: "dept1"},
		{Period: core.Period{Year: 2024, Month: 1}, Category: "Расходы", Amount: decimal.NewFromInt(400), Type: core.Expense, Department: "dept2"},
	} {
		_, err := store.Append(ctx, tx)
		require.NoError(t, err)
	}
	svc := NewReportsService(store, log.Nop())

	own, err := svc.Page(ctx, viewer("dept1"))
	require.NoError(t, err)
	assert.Equal(t, ReportOwn, own.Scope)
	assert.True(t, own.Balance.Remainder().Equal(decimal.NewFromInt(1000)))

	company, err := svc.Page(ctx, viewer("supervisor"))
	require.NoError(t, err)
	assert.Equal(t, ReportCompany, company.Scope)
	assert.True(t, company.Balance.Remainder().Equal(decimal.NewFromInt(600)))
	assert.Len(t, company.Departments, 2)

	none, err := svc.Page(ctx, viewer("guest"))
	require.NoError(t, err)
	assert.Equal(t, ReportNone, none.Scope)
}

func TestSalesPage(t *testing.T) {
	assert.Equal(t, BudgetViewer, SalesPage(viewer("dept1")).Mode)
	assert.Equal(t, BudgetViewerAll, SalesPage(viewer("supervisor")).Mode)
	assert.Equal(t, BudgetEditor, SalesPage(viewer("admin")).Mode)
}

func TestFiltersNarrowAndNormalize(t *testing.T) {
	svc, _ := newBudget(t)
	f, opts, err := svc.Filters(context.Background(), core.Filter{Category: "Доходы", Article: "Аренда"})
	require.NoError(t, err)
	assert.Equal(t, core.Filter{Category: "Доходы", Article: core.All, SubArticle: core.All}, f)
	assert.Equal(t, []string{"Выручка"}, opts.Articles)
	assert.Equal(t, []string{"Опт", "Розница"}, opts.SubArticles)
}
