package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"finbook/internal/cache"
	"finbook/internal/core"
	"finbook/internal/log"
	"finbook/internal/middleware/ratelimit"
	"finbook/internal/middleware/trace"
	"finbook/internal/services"
)

// Service ports the handlers call into. The concrete implementations live in
// internal/services; tests substitute stubs.
type (
	LedgerAPI interface {
		CreateTransaction(ctx context.Context, ownerID string, in services.TransactionInput) (core.Transaction, error)
		UpdateTransaction(ctx context.Context, ownerID string, id int64, in services.TransactionInput) (core.Transaction, error)
		DeleteTransaction(ctx context.Context, ownerID string, id int64) error
		MonthOverview(ctx context.Context, ownerID string, month core.MonthKey) (core.MonthOverview, error)
	}

	BudgetAPI interface {
		GetOrCreatePeriod(ctx context.Context, ownerID string, month core.MonthKey, currency string) (core.BudgetPeriod, error)
		GenerateAllocations(ctx context.Context, ownerID string, periodID int64) ([]core.BudgetAllocation, error)
		SetOverride(ctx context.Context, ownerID string, periodID, categoryID, amount int64) (core.BudgetAllocation, error)
	}

	InstallmentAPI interface {
		CreatePlan(ctx context.Context, ownerID string, in services.PlanInput) (core.InstallmentPlan, error)
		UpdatePlan(ctx context.Context, ownerID string, id int64, in services.PlanInput) (core.InstallmentPlan, error)
		CancelPlan(ctx context.Context, ownerID string, id int64) error
		CompletePlan(ctx context.Context, ownerID string, id int64) error
	}

	StatementAPI interface {
		CloseStatement(ctx context.Context, ownerID string, in services.CloseInput) (core.Statement, error)
		RecordPayment(ctx context.Context, ownerID string, in services.PaymentInput) (core.Statement, error)
	}

	// Directory covers the thin ownership-scoped CRUD the API exposes
	// alongside the money-moving operations. Implemented by the SQLite
	// repository.
	Directory interface {
		CreateAccount(ctx context.Context, a *core.Account) error
		GetAccount(ctx context.Context, ownerID string, id int64) (core.Account, error)
		ListAccounts(ctx context.Context, ownerID string) ([]core.Account, error)
		CreateCategory(ctx context.Context, c *core.Category) error
		ListCategories(ctx context.Context, ownerID string) ([]core.Category, error)
		GetBudgetPeriod(ctx context.Context, ownerID string, id int64) (core.BudgetPeriod, error)
		CreateBudgetRule(ctx context.Context, r *core.BudgetRule) error
		ListBudgetRules(ctx context.Context, ownerID string) ([]core.BudgetRule, error)
		DeleteBudgetRule(ctx context.Context, ownerID string, id int64) error
		AddIncomePlanItem(ctx context.Context, item *core.IncomePlanItem) error
		ListTransactions(ctx context.Context, ownerID string, month core.MonthKey) ([]core.Transaction, error)
		ListStatements(ctx context.Context, ownerID string, accountID int64) ([]core.Statement, error)
		ListAllocations(ctx context.Context, ownerID string, periodID int64) ([]core.BudgetAllocation, error)
	}
)

// Config carries the HTTP layer's tunables.
type Config struct {
	Addr              string
	OwnerHeader       string
	CacheSize         int
	CacheTTL          time.Duration
	RequestsPerMinute int
}

type Server struct {
	http.Server

	ownerHeader  string
	ledger       LedgerAPI
	budget       BudgetAPI
	installments InstallmentAPI
	statements   StatementAPI
	directory    Directory

	overviewCache *cache.LRUCache[core.MonthOverview]
	limiter       *ratelimit.Limiter
	shutdownOnce  sync.Once

	// Cached month keys per owner, so a mutation can drop every overview the
	// owner has cached regardless of which month it touched.
	cacheKeysMu sync.Mutex
	cacheKeys   map[string][]string
}

// NewServer wires routes and middleware and returns a ready-to-run server.
func NewServer(cfg Config, ledger LedgerAPI, budget BudgetAPI, installments InstallmentAPI, statements StatementAPI, directory Directory) *Server {
	if cfg.OwnerHeader == "" {
		cfg.OwnerHeader = "X-Owner-ID"
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 100
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	s := &Server{
		ownerHeader:  cfg.OwnerHeader,
		ledger:       ledger,
		budget:       budget,
		installments: installments,
		statements:   statements,
		directory:    directory,
		overviewCache: cache.NewLRUCache[core.MonthOverview](
			cfg.CacheSize, cfg.CacheTTL),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: cfg.RequestsPerMinute,
		}),
		cacheKeys: make(map[string][]string),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /accounts", s.requireOwner(s.handleCreateAccount))
	mux.HandleFunc("GET /accounts", s.requireOwner(s.handleListAccounts))
	mux.HandleFunc("GET /accounts/{id}", s.requireOwner(s.handleGetAccount))
	mux.HandleFunc("GET /accounts/{id}/statements", s.requireOwner(s.handleListStatements))

	mux.HandleFunc("POST /categories", s.requireOwner(s.handleCreateCategory))
	mux.HandleFunc("GET /categories", s.requireOwner(s.handleListCategories))

	mux.HandleFunc("POST /budget-rules", s.requireOwner(s.handleCreateBudgetRule))
	mux.HandleFunc("GET /budget-rules", s.requireOwner(s.handleListBudgetRules))
	mux.HandleFunc("DELETE /budget-rules/{id}", s.requireOwner(s.handleDeleteBudgetRule))

	mux.HandleFunc("POST /transactions", s.requireOwner(s.handleCreateTransaction))
	mux.HandleFunc("GET /transactions", s.requireOwner(s.handleListTransactions))
	mux.HandleFunc("PUT /transactions/{id}", s.requireOwner(s.handleUpdateTransaction))
	mux.HandleFunc("DELETE /transactions/{id}", s.requireOwner(s.handleDeleteTransaction))

	mux.HandleFunc("POST /budget-periods", s.requireOwner(s.handleGetOrCreatePeriod))
	mux.HandleFunc("POST /budget-periods/{id}/allocations", s.requireOwner(s.handleGenerateAllocations))
	mux.HandleFunc("GET /budget-periods/{id}/allocations", s.requireOwner(s.handleListAllocations))
	mux.HandleFunc("PUT /budget-periods/{id}/allocations/{categoryID}", s.requireOwner(s.handleSetOverride))
	mux.HandleFunc("POST /budget-periods/{id}/income-items", s.requireOwner(s.handleAddIncomePlanItem))

	mux.HandleFunc("POST /installment-plans", s.requireOwner(s.handleCreatePlan))
	mux.HandleFunc("PUT /installment-plans/{id}", s.requireOwner(s.handleUpdatePlan))
	mux.HandleFunc("POST /installment-plans/{id}/cancel", s.requireOwner(s.handleCancelPlan))
	mux.HandleFunc("POST /installment-plans/{id}/complete", s.requireOwner(s.handleCompletePlan))

	mux.HandleFunc("POST /statements", s.requireOwner(s.handleCloseStatement))
	mux.HandleFunc("POST /statements/{id}/payments", s.requireOwner(s.handleRecordPayment))

	mux.HandleFunc("GET /reports/month", s.requireOwner(s.handleMonthOverview))

	traceMW := trace.NewMiddleware(clientIP)
	limitMW := s.limiter.Middleware(clientIP, nil)
	logMW := log.Middleware(log.New(log.DefaultConfig()).WithComponent("http"))

	s.Server = http.Server{
		Addr:    cfg.Addr,
		Handler: traceMW.Middleware(limitMW(logMW(mux))),
	}
	return s
}

// Shutdown stops the HTTP listener and the limiter's cleanup goroutine.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// requireOwner resolves the calling owner from the configured header.
// Identity is established upstream; an absent header is a bad request, not
// an auth failure.
func (s *Server) requireOwner(next func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := r.Header.Get(s.ownerHeader)
		if owner == "" {
			writeError(w, r, http.StatusBadRequest, "missing owner header")
			return
		}
		next(w, r, owner)
	}
}

func overviewCacheKey(owner string, month core.MonthKey) string {
	return owner + "/" + string(month)
}

func (s *Server) cachedOverview(owner string, month core.MonthKey) (core.MonthOverview, bool) {
	return s.overviewCache.Get(overviewCacheKey(owner, month))
}

func (s *Server) storeOverview(owner string, month core.MonthKey, overview core.MonthOverview) {
	key := overviewCacheKey(owner, month)
	s.overviewCache.Set(key, overview)

	s.cacheKeysMu.Lock()
	defer s.cacheKeysMu.Unlock()
	for _, k := range s.cacheKeys[owner] {
		if k == key {
			return
		}
	}
	s.cacheKeys[owner] = append(s.cacheKeys[owner], key)
}

// invalidateOverviews drops every cached overview of the owner. Mutations do
// not know which months an edit moved an entry between, so the whole owner
// scope is flushed.
func (s *Server) invalidateOverviews(owner string) {
	s.cacheKeysMu.Lock()
	keys := s.cacheKeys[owner]
	delete(s.cacheKeys, owner)
	s.cacheKeysMu.Unlock()

	for _, key := range keys {
		s.overviewCache.Delete(key)
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}
