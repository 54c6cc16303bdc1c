package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"finbook/internal/core"
	"finbook/internal/services"
)

type stubLedger struct {
	create        func(context.Context, string, services.TransactionInput) (core.Transaction, error)
	update        func(context.Context, string, int64, services.TransactionInput) (core.Transaction, error)
	remove        func(context.Context, string, int64) error
	overview      func(context.Context, string, core.MonthKey) (core.MonthOverview, error)
	overviewCalls int
}

func (s *stubLedger) CreateTransaction(ctx context.Context, owner string, in services.TransactionInput) (core.Transaction, error) {
	return s.create(ctx, owner, in)
}

func (s *stubLedger) UpdateTransaction(ctx context.Context, owner string, id int64, in services.TransactionInput) (core.Transaction, error) {
	return s.update(ctx, owner, id, in)
}

func (s *stubLedger) DeleteTransaction(ctx context.Context, owner string, id int64) error {
	return s.remove(ctx, owner, id)
}

func (s *stubLedger) MonthOverview(ctx context.Context, owner string, month core.MonthKey) (core.MonthOverview, error) {
	s.overviewCalls++
	return s.overview(ctx, owner, month)
}

type stubBudget struct {
	setOverride func(context.Context, string, int64, int64, int64) (core.BudgetAllocation, error)
}

func (s *stubBudget) GetOrCreatePeriod(_ context.Context, owner string, month core.MonthKey, currency string) (core.BudgetPeriod, error) {
	return core.BudgetPeriod{ID: 1, OwnerID: owner, Month: month, Currency: currency}, nil
}

func (s *stubBudget) GenerateAllocations(context.Context, string, int64) ([]core.BudgetAllocation, error) {
	return nil, nil
}

func (s *stubBudget) SetOverride(ctx context.Context, owner string, periodID, categoryID, amount int64) (core.BudgetAllocation, error) {
	if s.setOverride != nil {
		return s.setOverride(ctx, owner, periodID, categoryID, amount)
	}
	return core.BudgetAllocation{}, errors.New("not stubbed")
}

type stubInstallments struct{}

func (stubInstallments) CreatePlan(context.Context, string, services.PlanInput) (core.InstallmentPlan, error) {
	return core.InstallmentPlan{}, errors.New("not stubbed")
}

func (stubInstallments) UpdatePlan(context.Context, string, int64, services.PlanInput) (core.InstallmentPlan, error) {
	return core.InstallmentPlan{}, errors.New("not stubbed")
}

func (stubInstallments) CancelPlan(context.Context, string, int64) error { return nil }

func (stubInstallments) CompletePlan(context.Context, string, int64) error { return nil }

type stubStatements struct {
	close func(context.Context, string, services.CloseInput) (core.Statement, error)
	pay   func(context.Context, string, services.PaymentInput) (core.Statement, error)
}

func (s *stubStatements) CloseStatement(ctx context.Context, owner string, in services.CloseInput) (core.Statement, error) {
	return s.close(ctx, owner, in)
}

func (s *stubStatements) RecordPayment(ctx context.Context, owner string, in services.PaymentInput) (core.Statement, error) {
	return s.pay(ctx, owner, in)
}

type stubDirectory struct {
	accounts []core.Account
	period   *core.BudgetPeriod
}

func (d *stubDirectory) CreateAccount(_ context.Context, a *core.Account) error {
	a.ID = int64(len(d.accounts) + 1)
	d.accounts = append(d.accounts, *a)
	return nil
}

func (d *stubDirectory) GetAccount(_ context.Context, owner string, id int64) (core.Account, error) {
	for _, a := range d.accounts {
		if a.ID == id && a.OwnerID == owner {
			return a, nil
		}
	}
	return core.Account{}, core.ErrNotFound
}

func (d *stubDirectory) ListAccounts(_ context.Context, owner string) ([]core.Account, error) {
	var out []core.Account
	for _, a := range d.accounts {
		if a.OwnerID == owner {
			out = append(out, a)
		}
	}
	return out, nil
}

func (d *stubDirectory) CreateCategory(context.Context, *core.Category) error { return nil }

func (d *stubDirectory) ListCategories(context.Context, string) ([]core.Category, error) {
	return nil, nil
}

func (d *stubDirectory) GetBudgetPeriod(_ context.Context, owner string, id int64) (core.BudgetPeriod, error) {
	if d.period != nil && d.period.ID == id && d.period.OwnerID == owner {
		return *d.period, nil
	}
	return core.BudgetPeriod{}, core.ErrNotFound
}

func (d *stubDirectory) CreateBudgetRule(context.Context, *core.BudgetRule) error { return nil }

func (d *stubDirectory) ListBudgetRules(context.Context, string) ([]core.BudgetRule, error) {
	return nil, nil
}

func (d *stubDirectory) DeleteBudgetRule(context.Context, string, int64) error { return nil }

func (d *stubDirectory) AddIncomePlanItem(_ context.Context, item *core.IncomePlanItem) error {
	item.ID = 1
	return nil
}

func (d *stubDirectory) ListTransactions(context.Context, string, core.MonthKey) ([]core.Transaction, error) {
	return nil, nil
}

func (d *stubDirectory) ListStatements(context.Context, string, int64) ([]core.Statement, error) {
	return nil, nil
}

func (d *stubDirectory) ListAllocations(context.Context, string, int64) ([]core.BudgetAllocation, error) {
	return nil, nil
}

type testDeps struct {
	ledger     *stubLedger
	budget     *stubBudget
	statements *stubStatements
	directory  *stubDirectory
}

func newTestServer(t *testing.T, cfg Config) (*Server, *testDeps) {
	t.Helper()
	deps := &testDeps{
		ledger: &stubLedger{
			overview: func(_ context.Context, owner string, month core.MonthKey) (core.MonthOverview, error) {
				return core.MonthOverview{OwnerID: owner, Month: month}, nil
			},
		},
		budget:     &stubBudget{},
		statements: &stubStatements{},
		directory:  &stubDirectory{},
	}
	s := NewServer(cfg, deps.ledger, deps.budget, stubInstallments{}, deps.statements, deps.directory)
	t.Cleanup(func() { s.limiter.Stop() })
	return s, deps
}

func doRequest(s *Server, method, target, owner string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	if owner != "" {
		req.Header.Set("X-Owner-ID", owner)
	}
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	s, _ := newTestServer(t, Config{})

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doRequest(s, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}

func TestMissingOwnerHeaderIsBadRequest(t *testing.T) {
	s, _ := newTestServer(t, Config{})

	rec := doRequest(s, http.MethodGet, "/accounts", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCreateTransaction(t *testing.T) {
	s, deps := newTestServer(t, Config{})
	deps.ledger.create = func(_ context.Context, owner string, in services.TransactionInput) (core.Transaction, error) {
		return core.Transaction{
			ID:          7,
			OwnerID:     owner,
			AccountID:   in.AccountID,
			CategoryID:  in.CategoryID,
			Description: in.Description,
			Amount:      in.Amount,
			Date:        in.Date,
		}, nil
	}

	rec := doRequest(s, http.MethodPost, "/transactions", "u1", map[string]any{
		"account_id":  1,
		"category_id": 2,
		"description": "Groceries",
		"amount":      -4250,
		"date":        "2025-03-10",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp transactionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID != 7 || resp.Amount != -4250 || resp.Date != "2025-03-10" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestCreateTransactionRejectsBadDate(t *testing.T) {
	s, _ := newTestServer(t, Config{})

	rec := doRequest(s, http.MethodPost, "/transactions", "u1", map[string]any{
		"account_id": 1, "category_id": 2, "description": "x", "amount": -100, "date": "10/03/2025",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDomainErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", fmt.Errorf("transaction 5: %w", core.ErrNotFound), http.StatusNotFound},
		{"conflict", core.ErrConflict, http.StatusConflict},
		{"validation", core.ErrAmountSignMismatch, http.StatusUnprocessableEntity},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, deps := newTestServer(t, Config{})
			deps.ledger.remove = func(context.Context, string, int64) error { return tt.err }

			rec := doRequest(s, http.MethodDelete, "/transactions/5", "u1", nil)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestMonthOverviewIsCachedPerOwner(t *testing.T) {
	s, deps := newTestServer(t, Config{CacheSize: 10, CacheTTL: time.Minute})
	deps.ledger.overview = func(_ context.Context, owner string, month core.MonthKey) (core.MonthOverview, error) {
		return core.MonthOverview{OwnerID: owner, Month: month, Net: 1000}, nil
	}

	for range 2 {
		rec := doRequest(s, http.MethodGet, "/reports/month?month=2025-03", "u1", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	}
	if deps.ledger.overviewCalls != 1 {
		t.Errorf("overview reads = %d, want 1 (second served from cache)", deps.ledger.overviewCalls)
	}

	// Another owner never sees a cached entry that is not theirs.
	doRequest(s, http.MethodGet, "/reports/month?month=2025-03", "u2", nil)
	if deps.ledger.overviewCalls != 2 {
		t.Errorf("overview reads = %d, want 2 after a different owner asked", deps.ledger.overviewCalls)
	}
}

func TestMutationInvalidatesOverviewCache(t *testing.T) {
	s, deps := newTestServer(t, Config{CacheSize: 10, CacheTTL: time.Minute})
	deps.ledger.overview = func(_ context.Context, owner string, month core.MonthKey) (core.MonthOverview, error) {
		return core.MonthOverview{OwnerID: owner, Month: month}, nil
	}
	deps.ledger.remove = func(context.Context, string, int64) error { return nil }

	doRequest(s, http.MethodGet, "/reports/month?month=2025-03", "u1", nil)
	doRequest(s, http.MethodDelete, "/transactions/1", "u1", nil)
	doRequest(s, http.MethodGet, "/reports/month?month=2025-03", "u1", nil)

	if deps.ledger.overviewCalls != 2 {
		t.Errorf("overview reads = %d, want 2 (cache dropped by the delete)", deps.ledger.overviewCalls)
	}
}

func TestRateLimitExceeded(t *testing.T) {
	s, _ := newTestServer(t, Config{RequestsPerMinute: 2})

	var last int
	for i := 0; i < 3; i++ {
		rec := doRequest(s, http.MethodGet, "/healthz", "", nil)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", last)
	}
}

func TestAccountsRoundTrip(t *testing.T) {
	s, _ := newTestServer(t, Config{})

	rec := doRequest(s, http.MethodPost, "/accounts", "u1", map[string]any{
		"name": "Main", "type": "debit", "currency": "EUR", "opening_balance": 50000,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(s, http.MethodGet, "/accounts/1", "u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var got accountResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Name != "Main" || got.CurrentBalance != 50000 {
		t.Errorf("unexpected account: %+v", got)
	}

	// A different owner cannot see it.
	rec = doRequest(s, http.MethodGet, "/accounts/1", "u2", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("cross-owner get status = %d, want 404", rec.Code)
	}
}

func TestAddIncomePlanItemChecksPeriodOwnership(t *testing.T) {
	s, deps := newTestServer(t, Config{})
	deps.directory.period = &core.BudgetPeriod{ID: 3, OwnerID: "u1", Month: "2025-03"}

	rec := doRequest(s, http.MethodPost, "/budget-periods/3/income-items", "u2", map[string]any{
		"name": "Salary", "amount": 250000,
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign period status = %d, want 404", rec.Code)
	}

	rec = doRequest(s, http.MethodPost, "/budget-periods/3/income-items", "u1", map[string]any{
		"name": "Salary", "amount": 250000,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestRecordPaymentResponse(t *testing.T) {
	s, deps := newTestServer(t, Config{})
	paidAt := time.Date(2025, 4, 12, 0, 0, 0, 0, time.UTC)
	deps.statements.pay = func(_ context.Context, owner string, in services.PaymentInput) (core.Statement, error) {
		return core.Statement{
			ID:              in.StatementID,
			OwnerID:         owner,
			AccountID:       2,
			Balance:         10000,
			PaymentsApplied: 10000,
			Status:          core.StatementPaid,
			PaidAt:          &paidAt,
		}, nil
	}

	rec := doRequest(s, http.MethodPost, "/statements/9/payments", "u1", map[string]any{
		"from_account_id": 1, "amount": 6000, "date": "2025-04-12",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var got statementResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != "paid" || got.PaidAt != "2025-04-12" {
		t.Errorf("unexpected statement: %+v", got)
	}
}
