package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"finbook/internal/core"
)

// BudgetService evaluates budget rules into planned allocations. It only
// reads the ledger (through aggregation) and writes planning rows; it never
// touches account balances.
type BudgetService struct {
	store Store
}

func NewBudgetService(store Store) *BudgetService {
	return &BudgetService{store: store}
}

// GetOrCreatePeriod returns the owner's budget period for a month, creating
// it on first use. Periods are never regenerated once created.
func (s *BudgetService) GetOrCreatePeriod(ctx context.Context, ownerID string, month core.MonthKey, currency string) (core.BudgetPeriod, error) {
	var period core.BudgetPeriod
	err := s.store.InTx(ctx, func(tx StoreTx) error {
		existing, err := tx.FindBudgetPeriodByMonth(ctx, ownerID, month)
		if err == nil {
			period = existing
			return nil
		}
		if !errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("find period %s: %w", month, err)
		}
		period = core.BudgetPeriod{OwnerID: ownerID, Month: month, Currency: currency}
		return tx.InsertBudgetPeriod(ctx, &period)
	})
	if err != nil {
		return core.BudgetPeriod{}, err
	}
	return period, nil
}

// GenerateAllocations runs the rule engine for a period and persists one
// allocation row per computed category. Rows the user overrode are skipped
// entirely; everything else is upserted, so re-running with unchanged rules
// and income is idempotent.
func (s *BudgetService) GenerateAllocations(ctx context.Context, ownerID string, periodID int64) ([]core.BudgetAllocation, error) {
	var result []core.BudgetAllocation
	err := s.store.InTx(ctx, func(tx StoreTx) error {
		period, err := tx.GetBudgetPeriod(ctx, ownerID, periodID)
		if err != nil {
			return fmt.Errorf("period %d: %w", periodID, err)
		}

		income := period.ExpectedIncome
		if income <= 0 {
			income, err = tx.SumIncomePlanItems(ctx, period.ID)
			if err != nil {
				return fmt.Errorf("sum income plan: %w", err)
			}
		}

		rules, err := tx.ListActiveRules(ctx, ownerID, period.Month)
		if err != nil {
			return fmt.Errorf("list rules: %w", err)
		}

		plan := core.EvaluateRules(rules, income)

		// Leftover income goes to the Buffer category, if the owner has one
		// and no rule already wrote to it in this pass.
		if plan.Remaining > 0 {
			buffer, err := tx.FindCategoryByName(ctx, ownerID, core.BufferCategoryName)
			switch {
			case err == nil:
				if _, taken := plan.Planned[buffer.ID]; !taken {
					plan.Planned[buffer.ID] = core.PlannedAmount{Amount: plan.Remaining}
				}
			case !errors.Is(err, core.ErrNotFound):
				return fmt.Errorf("find buffer category: %w", err)
			}
		}

		existing, err := tx.ListAllocations(ctx, period.ID)
		if err != nil {
			return fmt.Errorf("list allocations: %w", err)
		}
		overridden := make(map[int64]bool, len(existing))
		for _, a := range existing {
			if a.IsOverride {
				overridden[a.CategoryID] = true
			}
		}

		// Deterministic write order.
		categories := make([]int64, 0, len(plan.Planned))
		for cat := range plan.Planned {
			categories = append(categories, cat)
		}
		sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })

		for _, cat := range categories {
			if overridden[cat] {
				continue
			}
			planned := plan.Planned[cat]
			alloc := core.BudgetAllocation{
				OwnerID:    ownerID,
				PeriodID:   period.ID,
				CategoryID: cat,
				Planned:    planned.Amount,
			}
			if planned.RuleID != 0 {
				ruleID := planned.RuleID
				alloc.GeneratedFromRuleID = &ruleID
			}
			if err := tx.UpsertAllocation(ctx, &alloc); err != nil {
				return fmt.Errorf("upsert allocation for category %d: %w", cat, err)
			}
		}

		result, err = tx.ListAllocations(ctx, period.ID)
		if err != nil {
			return fmt.Errorf("reload allocations: %w", err)
		}

		slog.InfoContext(ctx, "Budget allocations generated",
			"period_id", period.ID,
			"month", string(period.Month),
			"rules", len(rules),
			"income_cents", income,
			"remaining_cents", plan.Remaining)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SetOverride pins a category's planned amount for a period. Overrides
// survive any later regeneration until explicitly replaced.
func (s *BudgetService) SetOverride(ctx context.Context, ownerID string, periodID, categoryID, amount int64) (core.BudgetAllocation, error) {
	if amount < 0 {
		return core.BudgetAllocation{}, core.ErrInvalidAmount
	}

	var alloc core.BudgetAllocation
	err := s.store.InTx(ctx, func(tx StoreTx) error {
		if _, err := tx.GetBudgetPeriod(ctx, ownerID, periodID); err != nil {
			return fmt.Errorf("period %d: %w", periodID, err)
		}
		if _, err := tx.GetCategory(ctx, ownerID, categoryID); err != nil {
			return fmt.Errorf("category %d: %w", categoryID, err)
		}
		alloc = core.BudgetAllocation{
			OwnerID:    ownerID,
			PeriodID:   periodID,
			CategoryID: categoryID,
			Planned:    amount,
			IsOverride: true,
		}
		return tx.UpsertAllocation(ctx, &alloc)
	})
	if err != nil {
		return core.BudgetAllocation{}, err
	}

	slog.InfoContext(ctx, "Budget override set",
		"period_id", periodID, "category_id", categoryID, "amount_cents", amount)
	return alloc, nil
}
