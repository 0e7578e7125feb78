// Package services builds the module pages from the stores and a
// credential snapshot, and applies the few write operations they offer.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"budget/internal/access"
	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/sheets"
)

// BudgetMode selects which Budget page is rendered.
type BudgetMode string

const (
	BudgetEditor    BudgetMode = "editor"
	BudgetViewer    BudgetMode = "viewer"
	BudgetViewerAll BudgetMode = "viewer_all"
	BudgetAdmin     BudgetMode = "admin"
	BudgetNone      BudgetMode = "none"
)

// Viewer identifies who is looking at a page.
type Viewer struct {
	User        string
	Role        core.Role
	Credentials core.Credentials
}

// Level resolves the viewer's level on module.
func (v Viewer) Level(module core.Module) core.PermissionLevel {
	return access.Resolve(v.Credentials, v.User, module)
}

// EntryForm is the editor's record form with its cascading choices.
type EntryForm struct {
	Years     []int
	Months    []string
	Year      int
	Month     int
	Types     []core.TransactionType
	Selection core.Filter
	Options   core.FilterOptions
}

// BudgetView is everything the Budget page needs for one render.
type BudgetView struct {
	Mode  BudgetMode
	Level core.PermissionLevel

	Form          *EntryForm
	Filter        core.Filter
	FilterOptions core.FilterOptions
	Pivot         core.Pivot

	Rows        []core.Transaction
	Company     core.Balance
	Departments []core.DepartmentBalance
}

// EntryInput is the raw record form submission.
type EntryInput struct {
	Year       int
	Month      int
	Category   string
	Article    string
	SubArticle string
	Amount     string
	Type       core.TransactionType
}

type BudgetService struct {
	transactions sheets.TransactionStore
	categories   sheets.CategoryReader
	logger       *log.Logger
	now          func() time.Time
}

func NewBudgetService(transactions sheets.TransactionStore, categories sheets.CategoryReader, logger *log.Logger) *BudgetService {
	if logger == nil {
		logger = log.Nop()
	}
	return &BudgetService{
		transactions: transactions,
		categories:   categories,
		logger:       logger.WithComponent(log.ComponentBudget),
		now:          time.Now,
	}
}

// ModeFor maps the resolved Budget level to a page mode. A user whose level
// is not one of the three falls back to the admin table only with role admin.
func ModeFor(level core.PermissionLevel, role core.Role) BudgetMode {
	switch level {
	case core.PermEditor:
		return BudgetEditor
	case core.PermViewer:
		return BudgetViewer
	case core.PermViewerAll:
		return BudgetViewerAll
	}
	if role == core.RoleAdmin {
		return BudgetAdmin
	}
	return BudgetNone
}

// Page builds the Budget page for v. filter carries the viewer's filter
// choices or the editor's form selection.
func (s *BudgetService) Page(ctx context.Context, v Viewer, filter core.Filter) (BudgetView, error) {
	level := v.Level(core.ModuleBudget)
	view := BudgetView{Mode: ModeFor(level, v.Role), Level: level}
	if view.Mode == BudgetNone {
		return view, nil
	}

	rows, err := s.transactions.ListTransactions(ctx)
	if err != nil {
		return view, fmt.Errorf("load transactions: %w", err)
	}

	switch view.Mode {
	case BudgetEditor:
		form, err := s.Form(ctx, filter)
		if err != nil {
			return view, err
		}
		view.Form = &form
		view.Pivot = core.BuildPivot(core.OwnedBy(rows, v.User), core.EditorPivotKeys)

	case BudgetViewer:
		view.Filter, view.FilterOptions, err = s.Filters(ctx, filter)
		if err != nil {
			return view, err
		}
		own := view.Filter.Apply(core.OwnedBy(rows, v.User))
		view.Pivot = core.BuildPivot(own, core.ViewerPivotKeys)

	case BudgetViewerAll:
		view.Pivot = core.BuildPivot(rows, core.ViewerAllPivotKeys)

	case BudgetAdmin:
		view.Rows = rows
		view.Company = core.BalanceOf(rows)
		view.Departments = core.DepartmentBalances(rows)
	}
	return view, nil
}

// Filters normalizes the viewer's filter against the category reference and
// returns the candidates for each level.
func (s *BudgetService) Filters(ctx context.Context, filter core.Filter) (core.Filter, core.FilterOptions, error) {
	ref, err := s.categories.ListCategories(ctx)
	if err != nil {
		return core.Filter{}, core.FilterOptions{}, fmt.Errorf("load categories: %w", err)
	}
	f := filter.Normalize(ref)
	return f, core.Options(ref, f), nil
}

// Form returns the record form with selection defaulted to the first
// candidate at every level that has no valid choice.
func (s *BudgetService) Form(ctx context.Context, selection core.Filter) (EntryForm, error) {
	ref, err := s.categories.ListCategories(ctx)
	if err != nil {
		return EntryForm{}, fmt.Errorf("load categories: %w", err)
	}
	sel, opts := core.Selection(ref, selection)
	now := core.NewPeriod(s.now())
	return EntryForm{
		Years:     core.Years(s.now()),
		Months:    core.MonthNames,
		Year:      now.Year,
		Month:     now.Month,
		Types:     []core.TransactionType{core.Income, core.Expense},
		Selection: sel,
		Options:   opts,
	}, nil
}

// Record appends one transaction for v. Only Budget editors may record and
// the department is always v.User.
func (s *BudgetService) Record(ctx context.Context, v Viewer, in EntryInput) (string, error) {
	if v.Level(core.ModuleBudget) != core.PermEditor {
		return "", fmt.Errorf("%w: %s cannot record transactions", core.ErrForbidden, v.User)
	}
	amount, err := core.ParseAmount(in.Amount)
	if err != nil {
		return "", err
	}
	t := core.Transaction{
		Period:     core.Period{Year: in.Year, Month: in.Month},
		Category:   strings.TrimSpace(in.Category),
		Article:    strings.TrimSpace(in.Article),
		SubArticle: strings.TrimSpace(in.SubArticle),
		Amount:     amount,
		Type:       in.Type,
		Department: v.User,
	}
	if err := t.Validate(); err != nil {
		return "", err
	}

	ref, err := s.transactions.Append(ctx, t)
	if err != nil {
		s.logger.LogError(ctx, "Failed to record transaction", err, log.OpAppend,
			log.NewFields().WithUser(v.User).WithTransaction(t.Period.String(), t.Category, t.Article,
				t.SubArticle, core.FormatAmount(t.Amount), string(t.Type), t.Department))
		return "", err
	}
	s.logger.InfoContext(ctx, "Transaction recorded",
		log.NewFields().
			WithUser(v.User).
			WithOperation(log.OpAppend).
			WithTransaction(t.Period.String(), t.Category, t.Article, t.SubArticle,
				core.FormatAmount(t.Amount), string(t.Type), t.Department).
			ToSlice()...)
	return ref, nil
}
