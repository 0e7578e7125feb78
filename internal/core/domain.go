package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	RoleAdmin      Role = "admin"
	RoleSupervisor Role = "supervisor"
	RoleCustom     Role = "custom"
)

const (
	PermEditor    PermissionLevel = "editor"
	PermViewer    PermissionLevel = "viewer"
	PermViewerAll PermissionLevel = "viewer_all"
)

// Module names double as keys of the stored permissions table, so they keep
// the labels used by existing credential documents.
const (
	ModuleBudget         Module = "Бюджет"
	ModuleSales          Module = "Продажи"
	ModuleReports        Module = "Отчёты"
	ModuleSettings       Module = "Настройки пользователя"
	ModuleUserManagement Module = "Управление пользователями"
)

const (
	Income  TransactionType = "Доход"
	Expense TransactionType = "Расход"
)

// Built-in account names. Their permission levels are fixed by the resolver.
const (
	AdminUser      = "admin"
	SupervisorUser = "supervisor"
)

type (
	Role            string
	PermissionLevel string
	Module          string
	TransactionType string

	// Transaction is one budget line. Department is always the username of
	// the editor who recorded it.
	Transaction struct {
		Period     Period
		Category   string
		Article    string
		SubArticle string
		Amount     decimal.Decimal
		Type       TransactionType
		Department string
	}

	// CategoryRow is one row of the category reference table. Account is
	// carried for round-tripping only.
	CategoryRow struct {
		Category   string
		Account    string
		Article    string
		SubArticle string
	}
)

// PermissionModules are the modules a user can be granted a level for.
var PermissionModules = []Module{ModuleBudget, ModuleSales, ModuleReports}

// AssignableLevels are the levels an administrator can grant per module.
var AssignableLevels = []PermissionLevel{PermEditor, PermViewer}

func (p PermissionLevel) Valid() bool {
	switch p {
	case PermEditor, PermViewer, PermViewerAll:
		return true
	}
	return false
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (t Transaction) Validate() error {
	if err := t.Period.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Category) == "" {
		return &ValidationError{Field: "category", Msg: "категория не выбрана"}
	}
	if !t.Type.Valid() {
		return &ValidationError{Field: "type", Msg: "неизвестный тип записи"}
	}
	if !t.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Msg: "сумма должна быть больше нуля"}
	}
	if strings.TrimSpace(t.Department) == "" {
		return &ValidationError{Field: "department", Msg: "отдел не определён"}
	}
	return nil
}

var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("invalid login or password")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("already exists")
	ErrStorageCorruption  = errors.New("storage document is corrupt")
	ErrStorageIO          = errors.New("storage i/o failed")
)

// ValidationError carries a user-facing message for a rejected input.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
