package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"finbook/internal/core"
	"finbook/internal/services"

	_ "modernc.org/sqlite"
)

// SQLiteRepository implements the services.Store port on a single SQLite
// database. All multi-step mutations go through InTx; the CRUD methods below
// are single-statement and autocommit.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Pragmas go in the DSN so every pooled connection gets them, not just
	// the one that happens to run an Exec at startup.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// InTx runs fn inside one database transaction. Any error from fn rolls the
// whole transaction back, so no partial mutation is ever visible.
func (r *SQLiteRepository) InTx(ctx context.Context, fn func(tx services.StoreTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(&sqliteTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// MonthOverview aggregates an owner's ledger over one calendar month.
func (r *SQLiteRepository) MonthOverview(ctx context.Context, ownerID string, month core.MonthKey) (core.MonthOverview, error) {
	overview := core.MonthOverview{OwnerID: ownerID, Month: month}
	start := month.Start()
	end := month.Next().Start()

	row := r.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN amount > 0 THEN amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN amount < 0 THEN amount ELSE 0 END), 0)
		FROM transactions
		WHERE owner_id = ? AND date >= ? AND date < ?`,
		ownerID, start, end)
	if err := row.Scan(&overview.Income, &overview.Expense); err != nil {
		return overview, fmt.Errorf("sum month totals: %w", err)
	}
	overview.Net = overview.Income + overview.Expense

	rows, err := r.db.QueryContext(ctx, `
		SELECT category_id, SUM(amount)
		FROM transactions
		WHERE owner_id = ? AND date >= ? AND date < ?
		GROUP BY category_id
		ORDER BY category_id`,
		ownerID, start, end)
	if err != nil {
		return overview, fmt.Errorf("sum month categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ca core.CategoryAmount
		if err := rows.Scan(&ca.CategoryID, &ca.Amount); err != nil {
			return overview, fmt.Errorf("scan category sum: %w", err)
		}
		overview.ByCategory = append(overview.ByCategory, ca)
	}
	return overview, rows.Err()
}

// ListActiveOwners returns every owner with ledger activity in the month.
// The export worker uses it to resync a whole month without tracking state.
func (r *SQLiteRepository) ListActiveOwners(ctx context.Context, month core.MonthKey) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT owner_id FROM transactions
		WHERE date >= ? AND date < ? ORDER BY owner_id`,
		month.Start(), month.Next().Start())
	if err != nil {
		return nil, fmt.Errorf("list active owners: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, fmt.Errorf("scan owner: %w", err)
		}
		out = append(out, owner)
	}
	return out, rows.Err()
}

// CreateAccount inserts an account and fills in its id.
func (r *SQLiteRepository) CreateAccount(ctx context.Context, a *core.Account) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (owner_id, name, type, currency, current_balance)
		VALUES (?, ?, ?, ?, ?)`,
		a.OwnerID, a.Name, string(a.Type), a.Currency, a.CurrentBalance)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	a.ID, err = res.LastInsertId()
	return err
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, ownerID string, id int64) (core.Account, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, name, type, currency, current_balance
		FROM accounts WHERE id = ? AND owner_id = ?`, id, ownerID)
	return scanAccount(row)
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context, ownerID string) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, name, type, currency, current_balance
		FROM accounts WHERE owner_id = ? ORDER BY id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c *core.Category) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (owner_id, name, kind, parent_id)
		VALUES (?, ?, ?, ?)`,
		c.OwnerID, c.Name, string(c.Kind), c.ParentID)
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	c.ID, err = res.LastInsertId()
	return err
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, ownerID string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, name, kind, parent_id
		FROM categories WHERE owner_id = ? ORDER BY id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		var kind string
		var parent sql.NullInt64
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &kind, &parent); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Kind = core.CategoryKind(kind)
		if parent.Valid {
			c.ParentID = &parent.Int64
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetBudgetPeriod(ctx context.Context, ownerID string, id int64) (core.BudgetPeriod, error) {
	var p core.BudgetPeriod
	var month string
	row := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, month, currency, expected_income
		FROM budget_periods WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err := row.Scan(&p.ID, &p.OwnerID, &month, &p.Currency, &p.ExpectedIncome); err != nil {
		return core.BudgetPeriod{}, mapScanErr("budget period", err)
	}
	p.Month = core.MonthKey(month)
	return p, nil
}

func (r *SQLiteRepository) CreateBudgetRule(ctx context.Context, rule *core.BudgetRule) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO budget_rules
			(owner_id, name, category_id, type, value, apply_order, min_amount, cap_amount, active_from, active_to)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.OwnerID, rule.Name, rule.CategoryID, string(rule.Type), rule.Value,
		rule.ApplyOrder, rule.MinAmount, rule.CapAmount, string(rule.ActiveFrom), string(rule.ActiveTo))
	if err != nil {
		return fmt.Errorf("insert budget rule: %w", err)
	}
	rule.ID, err = res.LastInsertId()
	return err
}

func (r *SQLiteRepository) ListBudgetRules(ctx context.Context, ownerID string) ([]core.BudgetRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, name, category_id, type, value, apply_order,
		       min_amount, cap_amount, active_from, active_to
		FROM budget_rules WHERE owner_id = ? ORDER BY id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list budget rules: %w", err)
	}
	defer rows.Close()
	return collectRules(rows)
}

func (r *SQLiteRepository) DeleteBudgetRule(ctx context.Context, ownerID string, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM budget_rules WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete budget rule: %w", err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) AddIncomePlanItem(ctx context.Context, item *core.IncomePlanItem) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO income_plan_items (owner_id, period_id, name, amount)
		VALUES (?, ?, ?, ?)`,
		item.OwnerID, item.PeriodID, item.Name, item.Amount)
	if err != nil {
		return fmt.Errorf("insert income plan item: %w", err)
	}
	item.ID, err = res.LastInsertId()
	return err
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, ownerID string, month core.MonthKey) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, account_id, category_id, description, amount, date,
		       statement_id, installment_plan_id, installment_number
		FROM transactions
		WHERE owner_id = ? AND date >= ? AND date < ?
		ORDER BY date, id`,
		ownerID, month.Start(), month.Next().Start())
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListStatements(ctx context.Context, ownerID string, accountID int64) ([]core.Statement, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, account_id, period_start, period_end, closing_date,
		       due_date, balance, payments_applied, status, paid_at
		FROM statements
		WHERE owner_id = ? AND account_id = ?
		ORDER BY period_start`, ownerID, accountID)
	if err != nil {
		return nil, fmt.Errorf("list statements: %w", err)
	}
	defer rows.Close()

	var out []core.Statement
	for rows.Next() {
		s, err := scanStatement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListAllocations(ctx context.Context, ownerID string, periodID int64) ([]core.BudgetAllocation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, period_id, category_id, planned, is_override, generated_from_rule_id
		FROM budget_allocations
		WHERE owner_id = ? AND period_id = ?
		ORDER BY category_id`, ownerID, periodID)
	if err != nil {
		return nil, fmt.Errorf("list allocations: %w", err)
	}
	defer rows.Close()
	return collectAllocations(rows)
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(s scanner) (core.Account, error) {
	var a core.Account
	var typ string
	err := s.Scan(&a.ID, &a.OwnerID, &a.Name, &typ, &a.Currency, &a.CurrentBalance)
	if err != nil {
		return core.Account{}, mapScanErr("account", err)
	}
	a.Type = core.AccountType(typ)
	return a, nil
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var t core.Transaction
	var stmtID, planID, number sql.NullInt64
	err := s.Scan(&t.ID, &t.OwnerID, &t.AccountID, &t.CategoryID, &t.Description,
		&t.Amount, &t.Date, &stmtID, &planID, &number)
	if err != nil {
		return core.Transaction{}, mapScanErr("transaction", err)
	}
	if stmtID.Valid {
		t.StatementID = &stmtID.Int64
	}
	if planID.Valid {
		t.InstallmentPlanID = &planID.Int64
	}
	if number.Valid {
		t.InstallmentNumber = &number.Int64
	}
	return t, nil
}

func scanStatement(s scanner) (core.Statement, error) {
	var st core.Statement
	var status string
	var closing, due, paidAt sql.NullTime
	err := s.Scan(&st.ID, &st.OwnerID, &st.AccountID, &st.PeriodStart, &st.PeriodEnd,
		&closing, &due, &st.Balance, &st.PaymentsApplied, &status, &paidAt)
	if err != nil {
		return core.Statement{}, mapScanErr("statement", err)
	}
	st.Status = core.StatementStatus(status)
	st.ClosingDate = closing.Time
	st.DueDate = due.Time
	if paidAt.Valid {
		t := paidAt.Time
		st.PaidAt = &t
	}
	return st, nil
}

func collectRules(rows *sql.Rows) ([]core.BudgetRule, error) {
	var out []core.BudgetRule
	for rows.Next() {
		var r core.BudgetRule
		var typ, from, to string
		var minAmount, capAmount sql.NullInt64
		if err := rows.Scan(&r.ID, &r.OwnerID, &r.Name, &r.CategoryID, &typ, &r.Value,
			&r.ApplyOrder, &minAmount, &capAmount, &from, &to); err != nil {
			return nil, fmt.Errorf("scan budget rule: %w", err)
		}
		r.Type = core.RuleType(typ)
		r.ActiveFrom = core.MonthKey(from)
		r.ActiveTo = core.MonthKey(to)
		if minAmount.Valid {
			r.MinAmount = &minAmount.Int64
		}
		if capAmount.Valid {
			r.CapAmount = &capAmount.Int64
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func collectAllocations(rows *sql.Rows) ([]core.BudgetAllocation, error) {
	var out []core.BudgetAllocation
	for rows.Next() {
		var a core.BudgetAllocation
		var ruleID sql.NullInt64
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.PeriodID, &a.CategoryID,
			&a.Planned, &a.IsOverride, &ruleID); err != nil {
			return nil, fmt.Errorf("scan allocation: %w", err)
		}
		if ruleID.Valid {
			a.GeneratedFromRuleID = &ruleID.Int64
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func mapScanErr(entity string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	return fmt.Errorf("scan %s: %w", entity, err)
}

// requireRow maps "zero rows affected" onto ErrNotFound for owner-guarded
// updates and deletes.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// mapConflict turns SQLite uniqueness violations into core.ErrConflict.
func mapConflict(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return core.ErrConflict
	}
	return err
}
