package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"finbook/internal/core"
)

// sqliteTx is the transactional face of the repository. One instance lives
// exactly as long as the enclosing database transaction.
type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) GetAccount(ctx context.Context, ownerID string, id int64) (core.Account, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT id, owner_id, name, type, currency, current_balance
		FROM accounts WHERE id = ? AND owner_id = ?`, id, ownerID)
	return scanAccount(row)
}

// ApplyBalanceDelta is the single balance mutation path: an atomic increment
// guarded by ownership, never read-modify-write.
func (t *sqliteTx) ApplyBalanceDelta(ctx context.Context, ownerID string, accountID, delta int64) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE accounts SET current_balance = current_balance + ?
		WHERE id = ? AND owner_id = ?`,
		delta, accountID, ownerID)
	if err != nil {
		return fmt.Errorf("apply balance delta: %w", err)
	}
	return requireRow(res)
}

func (t *sqliteTx) GetCategory(ctx context.Context, ownerID string, id int64) (core.Category, error) {
	return t.scanCategoryRow(t.tx.QueryRowContext(ctx, `
		SELECT id, owner_id, name, kind, parent_id
		FROM categories WHERE id = ? AND owner_id = ?`, id, ownerID))
}

func (t *sqliteTx) FindCategoryByName(ctx context.Context, ownerID, name string) (core.Category, error) {
	return t.scanCategoryRow(t.tx.QueryRowContext(ctx, `
		SELECT id, owner_id, name, kind, parent_id
		FROM categories WHERE owner_id = ? AND name = ?
		ORDER BY id LIMIT 1`, ownerID, name))
}

func (t *sqliteTx) scanCategoryRow(row *sql.Row) (core.Category, error) {
	var c core.Category
	var kind string
	var parent sql.NullInt64
	if err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &kind, &parent); err != nil {
		return core.Category{}, mapScanErr("category", err)
	}
	c.Kind = core.CategoryKind(kind)
	if parent.Valid {
		c.ParentID = &parent.Int64
	}
	return c, nil
}

func (t *sqliteTx) InsertTransaction(ctx context.Context, tr *core.Transaction) error {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO transactions
			(owner_id, account_id, category_id, description, amount, date,
			 statement_id, installment_plan_id, installment_number)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tr.OwnerID, tr.AccountID, tr.CategoryID, tr.Description, tr.Amount, tr.Date,
		tr.StatementID, tr.InstallmentPlanID, tr.InstallmentNumber)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	tr.ID, err = res.LastInsertId()
	return err
}

func (t *sqliteTx) InsertTransactions(ctx context.Context, ts []core.Transaction) error {
	for i := range ts {
		if err := t.InsertTransaction(ctx, &ts[i]); err != nil {
			return err
		}
	}
	return nil
}

func (t *sqliteTx) GetTransaction(ctx context.Context, ownerID string, id int64) (core.Transaction, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT id, owner_id, account_id, category_id, description, amount, date,
		       statement_id, installment_plan_id, installment_number
		FROM transactions WHERE id = ? AND owner_id = ?`, id, ownerID)
	return scanTransaction(row)
}

func (t *sqliteTx) UpdateTransaction(ctx context.Context, tr core.Transaction) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE transactions
		SET account_id = ?, category_id = ?, description = ?, amount = ?, date = ?
		WHERE id = ? AND owner_id = ?`,
		tr.AccountID, tr.CategoryID, tr.Description, tr.Amount, tr.Date, tr.ID, tr.OwnerID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return requireRow(res)
}

func (t *sqliteTx) DeleteTransaction(ctx context.Context, ownerID string, id int64) error {
	res, err := t.tx.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return requireRow(res)
}

func (t *sqliteTx) SumTransactionsInPeriod(ctx context.Context, accountID int64, start, end time.Time) (int64, error) {
	var sum int64
	err := t.tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM transactions
		WHERE account_id = ? AND date >= ? AND date <= ?`,
		accountID, start, end).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum period transactions: %w", err)
	}
	return sum, nil
}

func (t *sqliteTx) ListPlanTransactions(ctx context.Context, planID int64) ([]core.Transaction, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, owner_id, account_id, category_id, description, amount, date,
		       statement_id, installment_plan_id, installment_number
		FROM transactions WHERE installment_plan_id = ? ORDER BY installment_number`, planID)
	if err != nil {
		return nil, fmt.Errorf("list plan transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tr, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

func (t *sqliteTx) DeletePlanTransactions(ctx context.Context, planID int64) error {
	_, err := t.tx.ExecContext(ctx,
		`DELETE FROM transactions WHERE installment_plan_id = ?`, planID)
	if err != nil {
		return fmt.Errorf("delete plan transactions: %w", err)
	}
	return nil
}

func (t *sqliteTx) GetBudgetPeriod(ctx context.Context, ownerID string, id int64) (core.BudgetPeriod, error) {
	return t.scanPeriodRow(t.tx.QueryRowContext(ctx, `
		SELECT id, owner_id, month, currency, expected_income
		FROM budget_periods WHERE id = ? AND owner_id = ?`, id, ownerID))
}

func (t *sqliteTx) FindBudgetPeriodByMonth(ctx context.Context, ownerID string, month core.MonthKey) (core.BudgetPeriod, error) {
	return t.scanPeriodRow(t.tx.QueryRowContext(ctx, `
		SELECT id, owner_id, month, currency, expected_income
		FROM budget_periods WHERE owner_id = ? AND month = ?`, ownerID, string(month)))
}

func (t *sqliteTx) scanPeriodRow(row *sql.Row) (core.BudgetPeriod, error) {
	var p core.BudgetPeriod
	var month string
	if err := row.Scan(&p.ID, &p.OwnerID, &month, &p.Currency, &p.ExpectedIncome); err != nil {
		return core.BudgetPeriod{}, mapScanErr("budget period", err)
	}
	p.Month = core.MonthKey(month)
	return p, nil
}

func (t *sqliteTx) InsertBudgetPeriod(ctx context.Context, p *core.BudgetPeriod) error {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO budget_periods (owner_id, month, currency, expected_income)
		VALUES (?, ?, ?, ?)`,
		p.OwnerID, string(p.Month), p.Currency, p.ExpectedIncome)
	if err != nil {
		if conflict := mapConflict(err); conflict == core.ErrConflict {
			return conflict
		}
		return fmt.Errorf("insert budget period: %w", err)
	}
	p.ID, err = res.LastInsertId()
	return err
}

// ListActiveRules filters by the rule's activity window in SQL; the empty
// string means unbounded on that side. Ordering by id preserves creation
// order for the engine's stable sort.
func (t *sqliteTx) ListActiveRules(ctx context.Context, ownerID string, month core.MonthKey) ([]core.BudgetRule, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, owner_id, name, category_id, type, value, apply_order,
		       min_amount, cap_amount, active_from, active_to
		FROM budget_rules
		WHERE owner_id = ?
		  AND (active_from = '' OR active_from <= ?)
		  AND (active_to = '' OR active_to >= ?)
		ORDER BY id`,
		ownerID, string(month), string(month))
	if err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}
	defer rows.Close()
	return collectRules(rows)
}

func (t *sqliteTx) SumIncomePlanItems(ctx context.Context, periodID int64) (int64, error) {
	var sum int64
	err := t.tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM income_plan_items WHERE period_id = ?`,
		periodID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum income plan items: %w", err)
	}
	return sum, nil
}

func (t *sqliteTx) ListAllocations(ctx context.Context, periodID int64) ([]core.BudgetAllocation, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, owner_id, period_id, category_id, planned, is_override, generated_from_rule_id
		FROM budget_allocations WHERE period_id = ? ORDER BY category_id`, periodID)
	if err != nil {
		return nil, fmt.Errorf("list allocations: %w", err)
	}
	defer rows.Close()
	return collectAllocations(rows)
}

func (t *sqliteTx) UpsertAllocation(ctx context.Context, a *core.BudgetAllocation) error {
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO budget_allocations
			(owner_id, period_id, category_id, planned, is_override, generated_from_rule_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (period_id, category_id) DO UPDATE SET
			planned = excluded.planned,
			is_override = excluded.is_override,
			generated_from_rule_id = excluded.generated_from_rule_id,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id`,
		a.OwnerID, a.PeriodID, a.CategoryID, a.Planned, a.IsOverride, a.GeneratedFromRuleID).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("upsert allocation: %w", err)
	}
	return nil
}

func (t *sqliteTx) GetInstallmentPlan(ctx context.Context, ownerID string, id int64) (core.InstallmentPlan, error) {
	var p core.InstallmentPlan
	var status string
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, owner_id, account_id, category_id, description, total_amount,
		       currency, months, interest_rate_bps, start_date, status
		FROM installment_plans WHERE id = ? AND owner_id = ?`, id, ownerID).
		Scan(&p.ID, &p.OwnerID, &p.AccountID, &p.CategoryID, &p.Description,
			&p.TotalAmount, &p.Currency, &p.Months, &p.InterestRateBps, &p.StartDate, &status)
	if err != nil {
		return core.InstallmentPlan{}, mapScanErr("installment plan", err)
	}
	p.Status = core.PlanStatus(status)
	return p, nil
}

func (t *sqliteTx) InsertInstallmentPlan(ctx context.Context, p *core.InstallmentPlan) error {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO installment_plans
			(owner_id, account_id, category_id, description, total_amount,
			 currency, months, interest_rate_bps, start_date, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.OwnerID, p.AccountID, p.CategoryID, p.Description, p.TotalAmount,
		p.Currency, p.Months, p.InterestRateBps, p.StartDate, string(p.Status))
	if err != nil {
		return fmt.Errorf("insert installment plan: %w", err)
	}
	p.ID, err = res.LastInsertId()
	return err
}

func (t *sqliteTx) UpdateInstallmentPlan(ctx context.Context, p core.InstallmentPlan) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE installment_plans
		SET account_id = ?, category_id = ?, description = ?, total_amount = ?,
		    currency = ?, months = ?, interest_rate_bps = ?, start_date = ?, status = ?
		WHERE id = ? AND owner_id = ?`,
		p.AccountID, p.CategoryID, p.Description, p.TotalAmount,
		p.Currency, p.Months, p.InterestRateBps, p.StartDate, string(p.Status),
		p.ID, p.OwnerID)
	if err != nil {
		return fmt.Errorf("update installment plan: %w", err)
	}
	return requireRow(res)
}

func (t *sqliteTx) GetStatement(ctx context.Context, ownerID string, id int64) (core.Statement, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT id, owner_id, account_id, period_start, period_end, closing_date,
		       due_date, balance, payments_applied, status, paid_at
		FROM statements WHERE id = ? AND owner_id = ?`, id, ownerID)
	return scanStatement(row)
}

func (t *sqliteTx) FindStatement(ctx context.Context, accountID int64, periodStart, periodEnd time.Time) (core.Statement, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT id, owner_id, account_id, period_start, period_end, closing_date,
		       due_date, balance, payments_applied, status, paid_at
		FROM statements WHERE account_id = ? AND period_start = ? AND period_end = ?`,
		accountID, periodStart, periodEnd)
	return scanStatement(row)
}

func (t *sqliteTx) InsertStatement(ctx context.Context, s *core.Statement) error {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO statements
			(owner_id, account_id, period_start, period_end, closing_date,
			 due_date, balance, payments_applied, status, paid_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.OwnerID, s.AccountID, s.PeriodStart, s.PeriodEnd, s.ClosingDate,
		s.DueDate, s.Balance, s.PaymentsApplied, string(s.Status), s.PaidAt)
	if err != nil {
		if conflict := mapConflict(err); conflict == core.ErrConflict {
			return conflict
		}
		return fmt.Errorf("insert statement: %w", err)
	}
	s.ID, err = res.LastInsertId()
	return err
}

func (t *sqliteTx) UpdateStatement(ctx context.Context, s core.Statement) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE statements
		SET payments_applied = ?, status = ?, paid_at = ?
		WHERE id = ? AND owner_id = ?`,
		s.PaymentsApplied, string(s.Status), s.PaidAt, s.ID, s.OwnerID)
	if err != nil {
		return fmt.Errorf("update statement: %w", err)
	}
	return requireRow(res)
}

// AttachTransactionsToStatement claims unclaimed in-period entries for the
// statement. One-directional: entries already claimed by another statement
// are left untouched.
func (t *sqliteTx) AttachTransactionsToStatement(ctx context.Context, accountID, statementID int64, start, end time.Time) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE transactions SET statement_id = ?
		WHERE account_id = ? AND statement_id IS NULL AND date >= ? AND date <= ?`,
		statementID, accountID, start, end)
	if err != nil {
		return 0, fmt.Errorf("attach transactions to statement: %w", err)
	}
	return res.RowsAffected()
}

func (t *sqliteTx) InsertTransfer(ctx context.Context, tr *core.Transfer) error {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO transfers (owner_id, from_account_id, to_account_id, amount, currency, date, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tr.OwnerID, tr.FromAccountID, tr.ToAccountID, tr.Amount, tr.Currency, tr.Date, tr.Notes)
	if err != nil {
		return fmt.Errorf("insert transfer: %w", err)
	}
	tr.ID, err = res.LastInsertId()
	return err
}

func (t *sqliteTx) InsertStatementPayment(ctx context.Context, p *core.StatementPayment) error {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO statement_payments (statement_id, transfer_id, amount_applied)
		VALUES (?, ?, ?)`,
		p.StatementID, p.TransferID, p.AmountApplied)
	if err != nil {
		return fmt.Errorf("insert statement payment: %w", err)
	}
	p.ID, err = res.LastInsertId()
	return err
}
