package services

import (
	"context"
	"sort"
	"time"

	"finbook/internal/core"
)

// fakeStore is an in-memory Store with copy-on-write transactions: InTx runs
// the callback against a clone of the state and swaps it in only on success,
// so a failed operation leaves no observable side effects, matching the
// all-or-nothing contract the SQLite store provides.
type fakeStore struct {
	state *fakeState
}

type fakeState struct {
	accounts     map[int64]core.Account
	categories   map[int64]core.Category
	transactions map[int64]core.Transaction
	periods      map[int64]core.BudgetPeriod
	rules        []core.BudgetRule
	incomeItems  []core.IncomePlanItem
	allocations  map[int64]core.BudgetAllocation
	plans        map[int64]core.InstallmentPlan
	statements   map[int64]core.Statement
	transfers    map[int64]core.Transfer
	payments     map[int64]core.StatementPayment
	nextID       int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{state: &fakeState{
		accounts:     map[int64]core.Account{},
		categories:   map[int64]core.Category{},
		transactions: map[int64]core.Transaction{},
		periods:      map[int64]core.BudgetPeriod{},
		allocations:  map[int64]core.BudgetAllocation{},
		plans:        map[int64]core.InstallmentPlan{},
		statements:   map[int64]core.Statement{},
		transfers:    map[int64]core.Transfer{},
		payments:     map[int64]core.StatementPayment{},
	}}
}

func (st *fakeState) clone() *fakeState {
	c := &fakeState{
		accounts:     make(map[int64]core.Account, len(st.accounts)),
		categories:   make(map[int64]core.Category, len(st.categories)),
		transactions: make(map[int64]core.Transaction, len(st.transactions)),
		periods:      make(map[int64]core.BudgetPeriod, len(st.periods)),
		rules:        append([]core.BudgetRule(nil), st.rules...),
		incomeItems:  append([]core.IncomePlanItem(nil), st.incomeItems...),
		allocations:  make(map[int64]core.BudgetAllocation, len(st.allocations)),
		plans:        make(map[int64]core.InstallmentPlan, len(st.plans)),
		statements:   make(map[int64]core.Statement, len(st.statements)),
		transfers:    make(map[int64]core.Transfer, len(st.transfers)),
		payments:     make(map[int64]core.StatementPayment, len(st.payments)),
		nextID:       st.nextID,
	}
	for k, v := range st.accounts {
		c.accounts[k] = v
	}
	for k, v := range st.categories {
		c.categories[k] = v
	}
	for k, v := range st.transactions {
		c.transactions[k] = v
	}
	for k, v := range st.periods {
		c.periods[k] = v
	}
	for k, v := range st.allocations {
		c.allocations[k] = v
	}
	for k, v := range st.plans {
		c.plans[k] = v
	}
	for k, v := range st.statements {
		c.statements[k] = v
	}
	for k, v := range st.transfers {
		c.transfers[k] = v
	}
	for k, v := range st.payments {
		c.payments[k] = v
	}
	return c
}

func (st *fakeState) id() int64 {
	st.nextID++
	return st.nextID
}

func (f *fakeStore) InTx(ctx context.Context, fn func(tx StoreTx) error) error {
	work := f.state.clone()
	if err := fn(&fakeTx{state: work}); err != nil {
		return err
	}
	f.state = work
	return nil
}

func (f *fakeStore) MonthOverview(ctx context.Context, ownerID string, month core.MonthKey) (core.MonthOverview, error) {
	ov := core.MonthOverview{OwnerID: ownerID, Month: month}
	byCat := map[int64]int64{}
	for _, t := range f.state.transactions {
		if t.OwnerID != ownerID || !month.Contains(t.Date) {
			continue
		}
		if t.Amount > 0 {
			ov.Income += t.Amount
		} else {
			ov.Expense += t.Amount
		}
		byCat[t.CategoryID] += t.Amount
	}
	ov.Net = ov.Income + ov.Expense
	for cat, amount := range byCat {
		ov.ByCategory = append(ov.ByCategory, core.CategoryAmount{CategoryID: cat, Amount: amount})
	}
	sort.Slice(ov.ByCategory, func(i, j int) bool { return ov.ByCategory[i].CategoryID < ov.ByCategory[j].CategoryID })
	return ov, nil
}

// Seeding helpers used by the tests.

func (f *fakeStore) addAccount(owner string, typ core.AccountType, balance int64) int64 {
	id := f.state.id()
	f.state.accounts[id] = core.Account{ID: id, OwnerID: owner, Name: "acct", Type: typ, Currency: "EUR", CurrentBalance: balance}
	return id
}

func (f *fakeStore) addCategory(owner, name string, kind core.CategoryKind) int64 {
	id := f.state.id()
	f.state.categories[id] = core.Category{ID: id, OwnerID: owner, Name: name, Kind: kind}
	return id
}

func (f *fakeStore) addPeriod(owner string, month core.MonthKey, expectedIncome int64) int64 {
	id := f.state.id()
	f.state.periods[id] = core.BudgetPeriod{ID: id, OwnerID: owner, Month: month, Currency: "EUR", ExpectedIncome: expectedIncome}
	return id
}

func (f *fakeStore) addRule(r core.BudgetRule) int64 {
	r.ID = f.state.id()
	f.state.rules = append(f.state.rules, r)
	return r.ID
}

func (f *fakeStore) addIncomeItem(owner string, periodID, amount int64) {
	f.state.incomeItems = append(f.state.incomeItems, core.IncomePlanItem{
		ID: f.state.id(), OwnerID: owner, PeriodID: periodID, Name: "salary", Amount: amount,
	})
}

func (f *fakeStore) balance(accountID int64) int64 {
	return f.state.accounts[accountID].CurrentBalance
}

func (f *fakeStore) ledgerSum(accountID int64) int64 {
	var sum int64
	for _, t := range f.state.transactions {
		if t.AccountID == accountID {
			sum += t.Amount
		}
	}
	return sum
}

// fakeTx implements StoreTx against the working state of one transaction.
type fakeTx struct {
	state *fakeState
}

func (t *fakeTx) GetAccount(_ context.Context, ownerID string, id int64) (core.Account, error) {
	a, ok := t.state.accounts[id]
	if !ok || a.OwnerID != ownerID {
		return core.Account{}, core.ErrNotFound
	}
	return a, nil
}

func (t *fakeTx) ApplyBalanceDelta(_ context.Context, ownerID string, accountID, delta int64) error {
	a, ok := t.state.accounts[accountID]
	if !ok || a.OwnerID != ownerID {
		return core.ErrNotFound
	}
	a.CurrentBalance += delta
	t.state.accounts[accountID] = a
	return nil
}

func (t *fakeTx) GetCategory(_ context.Context, ownerID string, id int64) (core.Category, error) {
	c, ok := t.state.categories[id]
	if !ok || c.OwnerID != ownerID {
		return core.Category{}, core.ErrNotFound
	}
	return c, nil
}

func (t *fakeTx) FindCategoryByName(_ context.Context, ownerID, name string) (core.Category, error) {
	for _, c := range t.state.categories {
		if c.OwnerID == ownerID && c.Name == name {
			return c, nil
		}
	}
	return core.Category{}, core.ErrNotFound
}

func (t *fakeTx) InsertTransaction(_ context.Context, tr *core.Transaction) error {
	tr.ID = t.state.id()
	t.state.transactions[tr.ID] = *tr
	return nil
}

func (t *fakeTx) InsertTransactions(ctx context.Context, ts []core.Transaction) error {
	for i := range ts {
		if err := t.InsertTransaction(ctx, &ts[i]); err != nil {
			return err
		}
	}
	return nil
}

func (t *fakeTx) GetTransaction(_ context.Context, ownerID string, id int64) (core.Transaction, error) {
	tr, ok := t.state.transactions[id]
	if !ok || tr.OwnerID != ownerID {
		return core.Transaction{}, core.ErrNotFound
	}
	return tr, nil
}

func (t *fakeTx) UpdateTransaction(_ context.Context, tr core.Transaction) error {
	if _, ok := t.state.transactions[tr.ID]; !ok {
		return core.ErrNotFound
	}
	t.state.transactions[tr.ID] = tr
	return nil
}

func (t *fakeTx) DeleteTransaction(_ context.Context, ownerID string, id int64) error {
	tr, ok := t.state.transactions[id]
	if !ok || tr.OwnerID != ownerID {
		return core.ErrNotFound
	}
	delete(t.state.transactions, id)
	return nil
}

func (t *fakeTx) SumTransactionsInPeriod(_ context.Context, accountID int64, start, end time.Time) (int64, error) {
	var sum int64
	for _, tr := range t.state.transactions {
		if tr.AccountID == accountID && !tr.Date.Before(start) && !tr.Date.After(end) {
			sum += tr.Amount
		}
	}
	return sum, nil
}

func (t *fakeTx) ListPlanTransactions(_ context.Context, planID int64) ([]core.Transaction, error) {
	var out []core.Transaction
	for _, tr := range t.state.transactions {
		if tr.InstallmentPlanID != nil && *tr.InstallmentPlanID == planID {
			out = append(out, tr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *fakeTx) DeletePlanTransactions(_ context.Context, planID int64) error {
	for id, tr := range t.state.transactions {
		if tr.InstallmentPlanID != nil && *tr.InstallmentPlanID == planID {
			delete(t.state.transactions, id)
		}
	}
	return nil
}

func (t *fakeTx) GetBudgetPeriod(_ context.Context, ownerID string, id int64) (core.BudgetPeriod, error) {
	p, ok := t.state.periods[id]
	if !ok || p.OwnerID != ownerID {
		return core.BudgetPeriod{}, core.ErrNotFound
	}
	return p, nil
}

func (t *fakeTx) FindBudgetPeriodByMonth(_ context.Context, ownerID string, month core.MonthKey) (core.BudgetPeriod, error) {
	for _, p := range t.state.periods {
		if p.OwnerID == ownerID && p.Month == month {
			return p, nil
		}
	}
	return core.BudgetPeriod{}, core.ErrNotFound
}

func (t *fakeTx) InsertBudgetPeriod(_ context.Context, p *core.BudgetPeriod) error {
	p.ID = t.state.id()
	t.state.periods[p.ID] = *p
	return nil
}

func (t *fakeTx) ListActiveRules(_ context.Context, ownerID string, month core.MonthKey) ([]core.BudgetRule, error) {
	var out []core.BudgetRule
	for _, r := range t.state.rules {
		if r.OwnerID == ownerID && r.ActiveIn(month) {
			out = append(out, r)
		}
	}
	// Creation order, like the SQL store's ORDER BY id.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *fakeTx) SumIncomePlanItems(_ context.Context, periodID int64) (int64, error) {
	var sum int64
	for _, it := range t.state.incomeItems {
		if it.PeriodID == periodID {
			sum += it.Amount
		}
	}
	return sum, nil
}

func (t *fakeTx) ListAllocations(_ context.Context, periodID int64) ([]core.BudgetAllocation, error) {
	var out []core.BudgetAllocation
	for _, a := range t.state.allocations {
		if a.PeriodID == periodID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CategoryID < out[j].CategoryID })
	return out, nil
}

func (t *fakeTx) UpsertAllocation(_ context.Context, a *core.BudgetAllocation) error {
	for id, existing := range t.state.allocations {
		if existing.PeriodID == a.PeriodID && existing.CategoryID == a.CategoryID {
			a.ID = id
			t.state.allocations[id] = *a
			return nil
		}
	}
	a.ID = t.state.id()
	t.state.allocations[a.ID] = *a
	return nil
}

func (t *fakeTx) GetInstallmentPlan(_ context.Context, ownerID string, id int64) (core.InstallmentPlan, error) {
	p, ok := t.state.plans[id]
	if !ok || p.OwnerID != ownerID {
		return core.InstallmentPlan{}, core.ErrNotFound
	}
	return p, nil
}

func (t *fakeTx) InsertInstallmentPlan(_ context.Context, p *core.InstallmentPlan) error {
	p.ID = t.state.id()
	t.state.plans[p.ID] = *p
	return nil
}

func (t *fakeTx) UpdateInstallmentPlan(_ context.Context, p core.InstallmentPlan) error {
	if _, ok := t.state.plans[p.ID]; !ok {
		return core.ErrNotFound
	}
	t.state.plans[p.ID] = p
	return nil
}

func (t *fakeTx) GetStatement(_ context.Context, ownerID string, id int64) (core.Statement, error) {
	s, ok := t.state.statements[id]
	if !ok || s.OwnerID != ownerID {
		return core.Statement{}, core.ErrNotFound
	}
	return s, nil
}

func (t *fakeTx) FindStatement(_ context.Context, accountID int64, periodStart, periodEnd time.Time) (core.Statement, error) {
	for _, s := range t.state.statements {
		if s.AccountID == accountID && s.PeriodStart.Equal(periodStart) && s.PeriodEnd.Equal(periodEnd) {
			return s, nil
		}
	}
	return core.Statement{}, core.ErrNotFound
}

func (t *fakeTx) InsertStatement(_ context.Context, s *core.Statement) error {
	s.ID = t.state.id()
	t.state.statements[s.ID] = *s
	return nil
}

func (t *fakeTx) UpdateStatement(_ context.Context, s core.Statement) error {
	if _, ok := t.state.statements[s.ID]; !ok {
		return core.ErrNotFound
	}
	t.state.statements[s.ID] = s
	return nil
}

func (t *fakeTx) AttachTransactionsToStatement(_ context.Context, accountID, statementID int64, start, end time.Time) (int64, error) {
	var n int64
	for id, tr := range t.state.transactions {
		if tr.AccountID != accountID || tr.StatementID != nil {
			continue
		}
		if tr.Date.Before(start) || tr.Date.After(end) {
			continue
		}
		sid := statementID
		tr.StatementID = &sid
		t.state.transactions[id] = tr
		n++
	}
	return n, nil
}

func (t *fakeTx) InsertTransfer(_ context.Context, tr *core.Transfer) error {
	tr.ID = t.state.id()
	t.state.transfers[tr.ID] = *tr
	return nil
}

func (t *fakeTx) InsertStatementPayment(_ context.Context, p *core.StatementPayment) error {
	p.ID = t.state.id()
	t.state.payments[p.ID] = *p
	return nil
}
