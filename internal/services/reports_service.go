package services

import (
	"context"
	"fmt"

	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/sheets"
)

// ReportScope says whose rows a report covers.
type ReportScope string

const (
	ReportNone    ReportScope = "none"
	ReportOwn     ReportScope = "own"
	ReportCompany ReportScope = "company"
)

// ReportView is the balance report.
type ReportView struct {
	Scope       ReportScope
	Level       core.PermissionLevel
	Balance     core.Balance
	Departments []core.DepartmentBalance
}

type ReportsService struct {
	transactions sheets.TransactionLister
	logger       *log.Logger
}

func NewReportsService(transactions sheets.TransactionLister, logger *log.Logger) *ReportsService {
	if logger == nil {
		logger = log.Nop()
	}
	return &ReportsService{transactions: transactions, logger: logger.WithComponent(log.ComponentReports)}
}

// Page computes the balance report. Editors and viewers see their own
// department; viewer_all and administrators see the company with a
// per-department breakdown.
func (s *ReportsService) Page(ctx context.Context, v Viewer) (ReportView, error) {
	level := v.Level(core.ModuleReports)
	view := ReportView{Scope: ReportNone, Level: level}
	switch {
	case level == core.PermEditor || level == core.PermViewer:
		view.Scope = ReportOwn
	case level == core.PermViewerAll || v.Role == core.RoleAdmin:
		view.Scope = ReportCompany
	default:
		return view, nil
	}

	rows, err := s.transactions.ListTransactions(ctx)
	if err != nil {
		return view, fmt.Errorf("load transactions: %w", err)
	}
	if view.Scope == ReportOwn {
		view.Balance = core.BalanceOf(core.OwnedBy(rows, v.User))
		return view, nil
	}
	view.Balance = core.BalanceOf(rows)
	view.Departments = core.DepartmentBalances(rows)
	s.logger.DebugContext(ctx, "Company report built", log.FieldUser, v.User, log.FieldCount, len(rows))
	return view, nil
}

// SalesView is the placeholder Sales page.
type SalesView struct {
	Level core.PermissionLevel
	Mode  BudgetMode
}

// SalesPage resolves which Sales notice v sees. The module stores nothing.
func SalesPage(v Viewer) SalesView {
	level := v.Level(core.ModuleSales)
	return SalesView{Level: level, Mode: ModeFor(level, v.Role)}
}
