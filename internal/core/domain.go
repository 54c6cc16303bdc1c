package core

import (
	"strings"
	"time"
)

// Account types. Credit-type accounts carry statements and installment plans.
const (
	AccountCash       AccountType = "cash"
	AccountDebit      AccountType = "debit"
	AccountCredit     AccountType = "credit"
	AccountCreditCard AccountType = "credit_card"
	AccountInvestment AccountType = "investment"
	AccountSavings    AccountType = "savings"
)

// Category kinds. The kind constrains the sign of ledger entries tagged with
// the category (see ValidateTransactionAmount).
const (
	KindExpense  CategoryKind = "expense"
	KindIncome   CategoryKind = "income"
	KindTransfer CategoryKind = "transfer"
	KindSavings  CategoryKind = "savings"
	KindDebt     CategoryKind = "debt"
)

// Installment plan statuses.
const (
	PlanActive    PlanStatus = "active"
	PlanCompleted PlanStatus = "completed"
	PlanCancelled PlanStatus = "cancelled"
)

// Statement statuses. A statement never reopens: once closed its balance is
// frozen, and payments move it between partial and paid.
const (
	StatementClosed  StatementStatus = "closed"
	StatementPartial StatementStatus = "partial"
	StatementPaid    StatementStatus = "paid"
)

// BufferCategoryName is the category that receives leftover income after all
// budget rules ran. Matching by name is fragile under renames but preserved
// from the observed behavior.
const BufferCategoryName = "Buffer"

type (
	AccountType     string
	CategoryKind    string
	PlanStatus      string
	StatementStatus string

	// Account is the balance-carrying ledger scope. CurrentBalance always
	// equals the sum of signed amounts of the account's ledger entries; it is
	// maintained by atomic increments, never recomputed in the hot path.
	Account struct {
		ID             int64
		OwnerID        string
		Name           string
		Type           AccountType
		Currency       string
		CurrentBalance int64
	}

	// Category tags ledger entries, rules and allocations. The parent link
	// forms a tree that is not validated against cycles.
	Category struct {
		ID       int64
		OwnerID  string
		Name     string
		Kind     CategoryKind
		ParentID *int64
	}

	// Transaction is a single ledger entry, the atomic unit of balance
	// change. Negative amount = expense, positive = income/credit.
	Transaction struct {
		ID                int64
		OwnerID           string
		AccountID         int64
		CategoryID        int64
		Description       string
		Amount            int64
		Date              time.Time
		StatementID       *int64
		InstallmentPlanID *int64
		InstallmentNumber *int64 // 1-based within the plan
	}

	// BudgetPeriod scopes rule evaluation to one month per owner.
	// ExpectedIncome of 0 means "derive from income plan items".
	BudgetPeriod struct {
		ID             int64
		OwnerID        string
		Month          MonthKey
		Currency       string
		ExpectedIncome int64
	}

	// IncomePlanItem is a planned income line for a budget period, summed as
	// the fallback income source.
	IncomePlanItem struct {
		ID       int64
		OwnerID  string
		PeriodID int64
		Name     string
		Amount   int64
	}

	// BudgetAllocation is a planned-spend row, one per (period, category).
	// Rows with IsOverride set are user edits that regeneration never touches.
	BudgetAllocation struct {
		ID                  int64
		OwnerID             string
		PeriodID            int64
		CategoryID          int64
		Planned             int64
		IsOverride          bool
		GeneratedFromRuleID *int64
	}

	// InstallmentPlan splits a purchase on a credit account into monthly
	// ledger entries. The interest rate is informational and never compounded
	// into the generated amounts.
	InstallmentPlan struct {
		ID              int64
		OwnerID         string
		AccountID       int64
		CategoryID      int64
		Description     string
		TotalAmount     int64
		Currency        string
		Months          int
		InterestRateBps int64
		StartDate       time.Time
		Status          PlanStatus
	}

	// Statement is a frozen snapshot of a credit account's spending over a
	// closed period. Balance is computed once at close time.
	Statement struct {
		ID              int64
		OwnerID         string
		AccountID       int64
		PeriodStart     time.Time
		PeriodEnd       time.Time
		ClosingDate     time.Time
		DueDate         time.Time
		Balance         int64
		PaymentsApplied int64
		Status          StatementStatus
		PaidAt          *time.Time
	}

	// Transfer is a cross-account money movement.
	Transfer struct {
		ID            int64
		OwnerID       string
		FromAccountID int64
		ToAccountID   int64
		Amount        int64
		Currency      string
		Date          time.Time
		Notes         string
	}

	// StatementPayment links a payment transfer to the statement it reduces.
	// Append-only.
	StatementPayment struct {
		ID            int64
		StatementID   int64
		TransferID    int64
		AmountApplied int64
	}
)

// IsCreditType reports whether the account type carries debt that statements
// and installment plans apply to.
func (t AccountType) IsCreditType() bool {
	return t == AccountCredit || t == AccountCreditCard
}

// ValidateTransactionAmount enforces the sign-vs-kind invariant of ledger
// entries: expense categories forbid positive amounts, income categories
// forbid negative ones, zero is never allowed. Other kinds are unconstrained.
func ValidateTransactionAmount(kind CategoryKind, amount int64) error {
	if amount == 0 {
		return ErrZeroAmount
	}
	switch kind {
	case KindExpense:
		if amount > 0 {
			return ErrAmountSignMismatch
		}
	case KindIncome:
		if amount < 0 {
			return ErrAmountSignMismatch
		}
	}
	return nil
}

// ValidateDescription rejects blank or oversized descriptions.
func ValidateDescription(s string) error {
	if len(strings.TrimSpace(s)) == 0 {
		return ErrEmptyDescription
	}
	if len(s) > 200 {
		return ErrDescriptionTooLong
	}
	return nil
}
