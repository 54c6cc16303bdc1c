package http

import (
	"context"
	"net/http"

	"finbook/internal/core"
	"finbook/internal/services"
)

// --- accounts ---

type createAccountRequest struct {
	Name           string `json:"name"`
	Type           string `json:"type"`
	Currency       string `json:"currency"`
	OpeningBalance int64  `json:"opening_balance"`
}

type accountResponse struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	Currency       string `json:"currency"`
	CurrentBalance int64  `json:"current_balance"`
}

func toAccountResponse(a core.Account) accountResponse {
	return accountResponse{
		ID:             a.ID,
		Name:           a.Name,
		Type:           string(a.Type),
		Currency:       a.Currency,
		CurrentBalance: a.CurrentBalance,
	}
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request, owner string) {
	var req createAccountRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Name == "" || req.Type == "" || req.Currency == "" {
		writeError(w, r, http.StatusBadRequest, "name, type and currency are required")
		return
	}

	account := core.Account{
		OwnerID:        owner,
		Name:           req.Name,
		Type:           core.AccountType(req.Type),
		Currency:       req.Currency,
		CurrentBalance: req.OpeningBalance,
	}
	if err := s.directory.CreateAccount(r.Context(), &account); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountResponse(account))
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request, owner string) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	account, err := s.directory.GetAccount(r.Context(), owner, id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(account))
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request, owner string) {
	accounts, err := s.directory.ListAccounts(r.Context(), owner)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountResponse(a))
	}
	writeJSON(w, http.StatusOK, out)
}

// --- categories ---

type createCategoryRequest struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	ParentID *int64 `json:"parent_id,omitempty"`
}

type categoryResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	ParentID *int64 `json:"parent_id,omitempty"`
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request, owner string) {
	var req createCategoryRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Name == "" || req.Kind == "" {
		writeError(w, r, http.StatusBadRequest, "name and kind are required")
		return
	}

	category := core.Category{
		OwnerID:  owner,
		Name:     req.Name,
		Kind:     core.CategoryKind(req.Kind),
		ParentID: req.ParentID,
	}
	if err := s.directory.CreateCategory(r.Context(), &category); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, categoryResponse{
		ID: category.ID, Name: category.Name, Kind: string(category.Kind), ParentID: category.ParentID,
	})
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request, owner string) {
	categories, err := s.directory.ListCategories(r.Context(), owner)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]categoryResponse, 0, len(categories))
	for _, c := range categories {
		out = append(out, categoryResponse{
			ID: c.ID, Name: c.Name, Kind: string(c.Kind), ParentID: c.ParentID,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// --- budget rules ---

type budgetRuleRequest struct {
	Name       string `json:"name"`
	CategoryID int64  `json:"category_id"`
	Type       string `json:"type"`
	Value      int64  `json:"value"`
	ApplyOrder int64  `json:"apply_order"`
	MinAmount  *int64 `json:"min_amount,omitempty"`
	CapAmount  *int64 `json:"cap_amount,omitempty"`
	ActiveFrom string `json:"active_from,omitempty"`
	ActiveTo   string `json:"active_to,omitempty"`
}

type budgetRuleResponse struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	CategoryID int64  `json:"category_id"`
	Type       string `json:"type"`
	Value      int64  `json:"value"`
	ApplyOrder int64  `json:"apply_order"`
	MinAmount  *int64 `json:"min_amount,omitempty"`
	CapAmount  *int64 `json:"cap_amount,omitempty"`
	ActiveFrom string `json:"active_from,omitempty"`
	ActiveTo   string `json:"active_to,omitempty"`
}

func toBudgetRuleResponse(rule core.BudgetRule) budgetRuleResponse {
	return budgetRuleResponse{
		ID:         rule.ID,
		Name:       rule.Name,
		CategoryID: rule.CategoryID,
		Type:       string(rule.Type),
		Value:      rule.Value,
		ApplyOrder: rule.ApplyOrder,
		MinAmount:  rule.MinAmount,
		CapAmount:  rule.CapAmount,
		ActiveFrom: string(rule.ActiveFrom),
		ActiveTo:   string(rule.ActiveTo),
	}
}

func (s *Server) handleCreateBudgetRule(w http.ResponseWriter, r *http.Request, owner string) {
	var req budgetRuleRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Name == "" || req.CategoryID <= 0 {
		writeError(w, r, http.StatusBadRequest, "name and category_id are required")
		return
	}
	if t := core.RuleType(req.Type); t != core.RuleFixed && t != core.RulePercentOfIncome {
		writeError(w, r, http.StatusBadRequest, "type must be fixed or percent_of_income")
		return
	}
	for _, bound := range []string{req.ActiveFrom, req.ActiveTo} {
		if bound == "" {
			continue
		}
		if _, err := core.ParseMonthKey(bound); err != nil {
			writeError(w, r, http.StatusBadRequest, "active bounds must be YYYY-MM")
			return
		}
	}

	rule := core.BudgetRule{
		OwnerID:    owner,
		Name:       req.Name,
		CategoryID: req.CategoryID,
		Type:       core.RuleType(req.Type),
		Value:      req.Value,
		ApplyOrder: req.ApplyOrder,
		MinAmount:  req.MinAmount,
		CapAmount:  req.CapAmount,
		ActiveFrom: core.MonthKey(req.ActiveFrom),
		ActiveTo:   core.MonthKey(req.ActiveTo),
	}
	if err := s.directory.CreateBudgetRule(r.Context(), &rule); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBudgetRuleResponse(rule))
}

func (s *Server) handleListBudgetRules(w http.ResponseWriter, r *http.Request, owner string) {
	rules, err := s.directory.ListBudgetRules(r.Context(), owner)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]budgetRuleResponse, 0, len(rules))
	for _, rule := range rules {
		out = append(out, toBudgetRuleResponse(rule))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteBudgetRule(w http.ResponseWriter, r *http.Request, owner string) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.directory.DeleteBudgetRule(r.Context(), owner, id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- transactions ---

type transactionRequest struct {
	AccountID   int64  `json:"account_id"`
	CategoryID  int64  `json:"category_id"`
	Description string `json:"description"`
	Amount      int64  `json:"amount"`
	Date        string `json:"date"`
}

type transactionResponse struct {
	ID                int64  `json:"id"`
	AccountID         int64  `json:"account_id"`
	CategoryID        int64  `json:"category_id"`
	Description       string `json:"description"`
	Amount            int64  `json:"amount"`
	Date              string `json:"date"`
	StatementID       *int64 `json:"statement_id,omitempty"`
	InstallmentPlanID *int64 `json:"installment_plan_id,omitempty"`
	InstallmentNumber *int64 `json:"installment_number,omitempty"`
}

func toTransactionResponse(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:                t.ID,
		AccountID:         t.AccountID,
		CategoryID:        t.CategoryID,
		Description:       t.Description,
		Amount:            t.Amount,
		Date:              t.Date.Format(dateLayout),
		StatementID:       t.StatementID,
		InstallmentPlanID: t.InstallmentPlanID,
		InstallmentNumber: t.InstallmentNumber,
	}
}

func (s *Server) transactionInput(w http.ResponseWriter, r *http.Request) (services.TransactionInput, bool) {
	var req transactionRequest
	if !readJSON(w, r, &req) {
		return services.TransactionInput{}, false
	}
	date, ok := parseDate(w, r, "date", req.Date)
	if !ok {
		return services.TransactionInput{}, false
	}
	return services.TransactionInput{
		AccountID:   req.AccountID,
		CategoryID:  req.CategoryID,
		Description: req.Description,
		Amount:      req.Amount,
		Date:        date,
	}, true
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request, owner string) {
	in, ok := s.transactionInput(w, r)
	if !ok {
		return
	}
	created, err := s.ledger.CreateTransaction(r.Context(), owner, in)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	s.invalidateOverviews(owner)
	writeJSON(w, http.StatusCreated, toTransactionResponse(created))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request, owner string) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	in, ok := s.transactionInput(w, r)
	if !ok {
		return
	}
	updated, err := s.ledger.UpdateTransaction(r.Context(), owner, id, in)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	s.invalidateOverviews(owner)
	writeJSON(w, http.StatusOK, toTransactionResponse(updated))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request, owner string) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.ledger.DeleteTransaction(r.Context(), owner, id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	s.invalidateOverviews(owner)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request, owner string) {
	month, ok := queryMonth(w, r)
	if !ok {
		return
	}
	entries, err := s.directory.ListTransactions(r.Context(), owner, month)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]transactionResponse, 0, len(entries))
	for _, t := range entries {
		out = append(out, toTransactionResponse(t))
	}
	writeJSON(w, http.StatusOK, out)
}

// --- budget periods and allocations ---

type createPeriodRequest struct {
	Month    string `json:"month"`
	Currency string `json:"currency"`
}

type periodResponse struct {
	ID             int64  `json:"id"`
	Month          string `json:"month"`
	Currency       string `json:"currency"`
	ExpectedIncome int64  `json:"expected_income"`
}

func (s *Server) handleGetOrCreatePeriod(w http.ResponseWriter, r *http.Request, owner string) {
	var req createPeriodRequest
	if !readJSON(w, r, &req) {
		return
	}
	month, err := core.ParseMonthKey(req.Month)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid month, want YYYY-MM")
		return
	}

	period, err := s.budget.GetOrCreatePeriod(r.Context(), owner, month, req.Currency)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, periodResponse{
		ID:             period.ID,
		Month:          string(period.Month),
		Currency:       period.Currency,
		ExpectedIncome: period.ExpectedIncome,
	})
}

type allocationResponse struct {
	ID                  int64  `json:"id"`
	PeriodID            int64  `json:"period_id"`
	CategoryID          int64  `json:"category_id"`
	Planned             int64  `json:"planned"`
	IsOverride          bool   `json:"is_override"`
	GeneratedFromRuleID *int64 `json:"generated_from_rule_id,omitempty"`
}

func toAllocationResponse(a core.BudgetAllocation) allocationResponse {
	return allocationResponse{
		ID:                  a.ID,
		PeriodID:            a.PeriodID,
		CategoryID:          a.CategoryID,
		Planned:             a.Planned,
		IsOverride:          a.IsOverride,
		GeneratedFromRuleID: a.GeneratedFromRuleID,
	}
}

func (s *Server) handleGenerateAllocations(w http.ResponseWriter, r *http.Request, owner string) {
	periodID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	allocations, err := s.budget.GenerateAllocations(r.Context(), owner, periodID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]allocationResponse, 0, len(allocations))
	for _, a := range allocations {
		out = append(out, toAllocationResponse(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListAllocations(w http.ResponseWriter, r *http.Request, owner string) {
	periodID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	allocations, err := s.directory.ListAllocations(r.Context(), owner, periodID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]allocationResponse, 0, len(allocations))
	for _, a := range allocations {
		out = append(out, toAllocationResponse(a))
	}
	writeJSON(w, http.StatusOK, out)
}

type overrideRequest struct {
	Amount int64 `json:"amount"`
}

func (s *Server) handleSetOverride(w http.ResponseWriter, r *http.Request, owner string) {
	periodID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	categoryID, ok := pathID(w, r, "categoryID")
	if !ok {
		return
	}
	var req overrideRequest
	if !readJSON(w, r, &req) {
		return
	}
	alloc, err := s.budget.SetOverride(r.Context(), owner, periodID, categoryID, req.Amount)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAllocationResponse(alloc))
}

type incomeItemRequest struct {
	Name   string `json:"name"`
	Amount int64  `json:"amount"`
}

type incomeItemResponse struct {
	ID       int64  `json:"id"`
	PeriodID int64  `json:"period_id"`
	Name     string `json:"name"`
	Amount   int64  `json:"amount"`
}

func (s *Server) handleAddIncomePlanItem(w http.ResponseWriter, r *http.Request, owner string) {
	periodID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req incomeItemRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, r, http.StatusBadRequest, "name is required")
		return
	}
	if req.Amount < 0 {
		writeDomainError(w, r, core.ErrInvalidAmount)
		return
	}

	// Ownership gate; a foreign period must not accumulate income items.
	if _, err := s.directory.GetBudgetPeriod(r.Context(), owner, periodID); err != nil {
		writeDomainError(w, r, err)
		return
	}

	item := core.IncomePlanItem{
		OwnerID:  owner,
		PeriodID: periodID,
		Name:     req.Name,
		Amount:   req.Amount,
	}
	if err := s.directory.AddIncomePlanItem(r.Context(), &item); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, incomeItemResponse{
		ID: item.ID, PeriodID: item.PeriodID, Name: item.Name, Amount: item.Amount,
	})
}

// --- installment plans ---

type planRequest struct {
	AccountID       int64  `json:"account_id"`
	CategoryID      int64  `json:"category_id"`
	Description     string `json:"description"`
	TotalAmount     int64  `json:"total_amount"`
	Currency        string `json:"currency"`
	Months          int    `json:"months"`
	InterestRateBps int64  `json:"interest_rate_bps"`
	StartDate       string `json:"start_date"`
}

type planResponse struct {
	ID              int64  `json:"id"`
	AccountID       int64  `json:"account_id"`
	CategoryID      int64  `json:"category_id"`
	Description     string `json:"description"`
	TotalAmount     int64  `json:"total_amount"`
	Currency        string `json:"currency"`
	Months          int    `json:"months"`
	InterestRateBps int64  `json:"interest_rate_bps"`
	StartDate       string `json:"start_date"`
	Status          string `json:"status"`
}

func toPlanResponse(p core.InstallmentPlan) planResponse {
	return planResponse{
		ID:              p.ID,
		AccountID:       p.AccountID,
		CategoryID:      p.CategoryID,
		Description:     p.Description,
		TotalAmount:     p.TotalAmount,
		Currency:        p.Currency,
		Months:          p.Months,
		InterestRateBps: p.InterestRateBps,
		StartDate:       p.StartDate.Format(dateLayout),
		Status:          string(p.Status),
	}
}

func (s *Server) planInput(w http.ResponseWriter, r *http.Request) (services.PlanInput, bool) {
	var req planRequest
	if !readJSON(w, r, &req) {
		return services.PlanInput{}, false
	}
	start, ok := parseDate(w, r, "start_date", req.StartDate)
	if !ok {
		return services.PlanInput{}, false
	}
	return services.PlanInput{
		AccountID:       req.AccountID,
		CategoryID:      req.CategoryID,
		Description:     req.Description,
		TotalAmount:     req.TotalAmount,
		Currency:        req.Currency,
		Months:          req.Months,
		InterestRateBps: req.InterestRateBps,
		StartDate:       start,
	}, true
}

func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request, owner string) {
	in, ok := s.planInput(w, r)
	if !ok {
		return
	}
	plan, err := s.installments.CreatePlan(r.Context(), owner, in)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	s.invalidateOverviews(owner)
	writeJSON(w, http.StatusCreated, toPlanResponse(plan))
}

func (s *Server) handleUpdatePlan(w http.ResponseWriter, r *http.Request, owner string) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	in, ok := s.planInput(w, r)
	if !ok {
		return
	}
	plan, err := s.installments.UpdatePlan(r.Context(), owner, id, in)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	s.invalidateOverviews(owner)
	writeJSON(w, http.StatusOK, toPlanResponse(plan))
}

func (s *Server) handleCancelPlan(w http.ResponseWriter, r *http.Request, owner string) {
	s.deactivatePlan(w, r, owner, s.installments.CancelPlan)
}

func (s *Server) handleCompletePlan(w http.ResponseWriter, r *http.Request, owner string) {
	s.deactivatePlan(w, r, owner, s.installments.CompletePlan)
}

func (s *Server) deactivatePlan(w http.ResponseWriter, r *http.Request, owner string, op func(ctx context.Context, ownerID string, id int64) error) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := op(r.Context(), owner, id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	s.invalidateOverviews(owner)
	w.WriteHeader(http.StatusNoContent)
}

// --- statements ---

type closeStatementRequest struct {
	AccountID   int64  `json:"account_id"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
	ClosingDate string `json:"closing_date"`
	DueDate     string `json:"due_date"`
}

type statementResponse struct {
	ID              int64  `json:"id"`
	AccountID       int64  `json:"account_id"`
	PeriodStart     string `json:"period_start"`
	PeriodEnd       string `json:"period_end"`
	ClosingDate     string `json:"closing_date"`
	DueDate         string `json:"due_date"`
	Balance         int64  `json:"balance"`
	PaymentsApplied int64  `json:"payments_applied"`
	Status          string `json:"status"`
	PaidAt          string `json:"paid_at,omitempty"`
}

func toStatementResponse(st core.Statement) statementResponse {
	resp := statementResponse{
		ID:              st.ID,
		AccountID:       st.AccountID,
		PeriodStart:     st.PeriodStart.Format(dateLayout),
		PeriodEnd:       st.PeriodEnd.Format(dateLayout),
		ClosingDate:     st.ClosingDate.Format(dateLayout),
		DueDate:         st.DueDate.Format(dateLayout),
		Balance:         st.Balance,
		PaymentsApplied: st.PaymentsApplied,
		Status:          string(st.Status),
	}
	if st.PaidAt != nil {
		resp.PaidAt = st.PaidAt.Format(dateLayout)
	}
	return resp
}

func (s *Server) handleCloseStatement(w http.ResponseWriter, r *http.Request, owner string) {
	var req closeStatementRequest
	if !readJSON(w, r, &req) {
		return
	}
	start, ok := parseDate(w, r, "period_start", req.PeriodStart)
	if !ok {
		return
	}
	end, ok := parseDate(w, r, "period_end", req.PeriodEnd)
	if !ok {
		return
	}
	closing, ok := parseDate(w, r, "closing_date", req.ClosingDate)
	if !ok {
		return
	}
	due, ok := parseDate(w, r, "due_date", req.DueDate)
	if !ok {
		return
	}

	stmt, err := s.statements.CloseStatement(r.Context(), owner, services.CloseInput{
		AccountID:   req.AccountID,
		PeriodStart: start,
		PeriodEnd:   end,
		ClosingDate: closing,
		DueDate:     due,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toStatementResponse(stmt))
}

type paymentRequest struct {
	FromAccountID int64  `json:"from_account_id"`
	Amount        int64  `json:"amount"`
	Date          string `json:"date"`
	Notes         string `json:"notes,omitempty"`
}

func (s *Server) handleRecordPayment(w http.ResponseWriter, r *http.Request, owner string) {
	statementID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req paymentRequest
	if !readJSON(w, r, &req) {
		return
	}
	date, ok := parseDate(w, r, "date", req.Date)
	if !ok {
		return
	}

	stmt, err := s.statements.RecordPayment(r.Context(), owner, services.PaymentInput{
		StatementID:   statementID,
		FromAccountID: req.FromAccountID,
		Amount:        req.Amount,
		Date:          date,
		Notes:         req.Notes,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	s.invalidateOverviews(owner)
	writeJSON(w, http.StatusOK, toStatementResponse(stmt))
}

func (s *Server) handleListStatements(w http.ResponseWriter, r *http.Request, owner string) {
	accountID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	statements, err := s.directory.ListStatements(r.Context(), owner, accountID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]statementResponse, 0, len(statements))
	for _, st := range statements {
		out = append(out, toStatementResponse(st))
	}
	writeJSON(w, http.StatusOK, out)
}

// --- reports ---

type categoryAmountResponse struct {
	CategoryID int64 `json:"category_id"`
	Amount     int64 `json:"amount"`
}

type overviewResponse struct {
	Month      string                   `json:"month"`
	Income     int64                    `json:"income"`
	Expense    int64                    `json:"expense"`
	Net        int64                    `json:"net"`
	ByCategory []categoryAmountResponse `json:"by_category"`
}

func (s *Server) handleMonthOverview(w http.ResponseWriter, r *http.Request, owner string) {
	month, ok := queryMonth(w, r)
	if !ok {
		return
	}

	overview, hit := s.cachedOverview(owner, month)
	if !hit {
		var err error
		overview, err = s.ledger.MonthOverview(r.Context(), owner, month)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		s.storeOverview(owner, month, overview)
	}

	byCategory := make([]categoryAmountResponse, 0, len(overview.ByCategory))
	for _, c := range overview.ByCategory {
		byCategory = append(byCategory, categoryAmountResponse{CategoryID: c.CategoryID, Amount: c.Amount})
	}
	writeJSON(w, http.StatusOK, overviewResponse{
		Month:      string(overview.Month),
		Income:     overview.Income,
		Expense:    overview.Expense,
		Net:        overview.Net,
		ByCategory: byCategory,
	})
}
