package services

import (
	"context"
	"time"

	"finbook/internal/core"
)

// Store is the persistence port the services depend on. The SQLite
// implementation lives in internal/storage; tests use an in-memory fake.
//
// Every multi-step mutation runs through InTx so that ledger rows and their
// balance deltas commit or roll back together. When fn returns an error the
// transaction is rolled back and no side effect persists.
type Store interface {
	InTx(ctx context.Context, fn func(tx StoreTx) error) error

	// MonthOverview aggregates an owner's ledger for one month. Read-only,
	// runs outside any transaction.
	MonthOverview(ctx context.Context, ownerID string, month core.MonthKey) (core.MonthOverview, error)
}

// StoreTx is the set of row operations available inside a transaction.
// Lookups are ownership-scoped: a row owned by someone else is reported as
// core.ErrNotFound, indistinguishable from a missing row.
type StoreTx interface {
	// Accounts. ApplyBalanceDelta is the only way any component mutates a
	// balance: a single atomic increment, never read-modify-write.
	GetAccount(ctx context.Context, ownerID string, id int64) (core.Account, error)
	ApplyBalanceDelta(ctx context.Context, ownerID string, accountID, delta int64) error

	// Categories.
	GetCategory(ctx context.Context, ownerID string, id int64) (core.Category, error)
	FindCategoryByName(ctx context.Context, ownerID, name string) (core.Category, error)

	// Ledger entries.
	InsertTransaction(ctx context.Context, t *core.Transaction) error
	InsertTransactions(ctx context.Context, ts []core.Transaction) error
	GetTransaction(ctx context.Context, ownerID string, id int64) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, t core.Transaction) error
	DeleteTransaction(ctx context.Context, ownerID string, id int64) error
	SumTransactionsInPeriod(ctx context.Context, accountID int64, start, end time.Time) (int64, error)
	ListPlanTransactions(ctx context.Context, planID int64) ([]core.Transaction, error)
	DeletePlanTransactions(ctx context.Context, planID int64) error

	// Budget periods, rules, allocations.
	GetBudgetPeriod(ctx context.Context, ownerID string, id int64) (core.BudgetPeriod, error)
	FindBudgetPeriodByMonth(ctx context.Context, ownerID string, month core.MonthKey) (core.BudgetPeriod, error)
	InsertBudgetPeriod(ctx context.Context, p *core.BudgetPeriod) error
	ListActiveRules(ctx context.Context, ownerID string, month core.MonthKey) ([]core.BudgetRule, error)
	SumIncomePlanItems(ctx context.Context, periodID int64) (int64, error)
	ListAllocations(ctx context.Context, periodID int64) ([]core.BudgetAllocation, error)
	UpsertAllocation(ctx context.Context, a *core.BudgetAllocation) error

	// Installment plans.
	GetInstallmentPlan(ctx context.Context, ownerID string, id int64) (core.InstallmentPlan, error)
	InsertInstallmentPlan(ctx context.Context, p *core.InstallmentPlan) error
	UpdateInstallmentPlan(ctx context.Context, p core.InstallmentPlan) error

	// Statements, payments, transfers.
	GetStatement(ctx context.Context, ownerID string, id int64) (core.Statement, error)
	FindStatement(ctx context.Context, accountID int64, periodStart, periodEnd time.Time) (core.Statement, error)
	InsertStatement(ctx context.Context, s *core.Statement) error
	UpdateStatement(ctx context.Context, s core.Statement) error
	AttachTransactionsToStatement(ctx context.Context, accountID, statementID int64, start, end time.Time) (int64, error)
	InsertTransfer(ctx context.Context, t *core.Transfer) error
	InsertStatementPayment(ctx context.Context, p *core.StatementPayment) error
}
