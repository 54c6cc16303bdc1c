package memory

import (
	"context"
	"fmt"
	"sync"

	"finbook/internal/core"
	"finbook/internal/sheets"
)

// Adapter keeps exported overviews in memory. Used in tests and when no
// sheets backend is configured.
type Adapter struct {
	mu        sync.Mutex
	overviews map[string]core.MonthOverview
}

var _ sheets.ReportWriter = (*Adapter)(nil)

func New() *Adapter {
	return &Adapter{overviews: make(map[string]core.MonthOverview)}
}

func (a *Adapter) WriteMonthOverview(_ context.Context, overview core.MonthOverview) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.overviews[key(overview.OwnerID, overview.Month)] = overview
	return nil
}

// Overview returns the last snapshot written for an owner's month.
func (a *Adapter) Overview(ownerID string, month core.MonthKey) (core.MonthOverview, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ov, ok := a.overviews[key(ownerID, month)]
	return ov, ok
}

func (a *Adapter) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.overviews)
}

func key(ownerID string, month core.MonthKey) string {
	return fmt.Sprintf("%s/%s", ownerID, month)
}
