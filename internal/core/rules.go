package core

import "sort"

// Budget rule types. Fixed rules allocate a constant amount; percent rules
// take basis points of whatever income is still unallocated when they run.
const (
	RuleFixed           RuleType = "fixed"
	RulePercentOfIncome RuleType = "percent_of_income"
)

// BasisPointsWhole is 100% expressed in basis points.
const BasisPointsWhole = 10000

type (
	RuleType string

	// BudgetRule is one step in a budget period's allocation sequence.
	// Value is cents for fixed rules and basis points for percent rules.
	// ActiveFrom/ActiveTo bound the months the rule applies to; the empty
	// key means unbounded on that side.
	BudgetRule struct {
		ID         int64
		OwnerID    string
		Name       string
		CategoryID int64
		Type       RuleType
		Value      int64
		ApplyOrder int64
		MinAmount  *int64
		CapAmount  *int64
		ActiveFrom MonthKey
		ActiveTo   MonthKey
	}

	// PlannedAmount is one computed allocation and the rule that produced it.
	PlannedAmount struct {
		Amount int64
		RuleID int64
	}

	// PlanResult is the outcome of one rule evaluation pass. Planned is
	// keyed by category id. Remaining is the income left after every rule
	// ran; it may be negative when fixed rules overcommit, which suppresses
	// the buffer fallback without failing the pass.
	PlanResult struct {
		Planned   map[int64]PlannedAmount
		Remaining int64
	}
)

// ActiveIn reports whether the rule applies to the given month.
func (r BudgetRule) ActiveIn(month MonthKey) bool {
	if r.ActiveFrom != "" && r.ActiveFrom > month {
		return false
	}
	if r.ActiveTo != "" && r.ActiveTo < month {
		return false
	}
	return true
}

// EvaluateRules runs the ordered allocation fold over the expected income.
//
// Rules are applied in ApplyOrder, ties broken by the order they arrive in
// (callers pass them in creation order, so the sort must be stable). Each
// rule's candidate amount is clamped to [MinAmount, CapAmount], floored at
// zero, recorded against its category and subtracted from the remaining
// income. Percent rules always take their share of the remaining balance at
// that point in the sequence, not of the original income.
//
// When several rules target the same category the later one overwrites the
// earlier one's recorded amount, but every rule still consumes from the
// remaining balance. The function is pure: same rules and income always
// produce the same result.
func EvaluateRules(rules []BudgetRule, income int64) PlanResult {
	ordered := make([]BudgetRule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ApplyOrder < ordered[j].ApplyOrder
	})

	res := PlanResult{
		Planned:   make(map[int64]PlannedAmount, len(ordered)),
		Remaining: income,
	}

	for _, r := range ordered {
		var candidate int64
		switch r.Type {
		case RulePercentOfIncome:
			base := res.Remaining
			if base < 0 {
				base = 0
			}
			// Half-up rounding of base * bps / 10000.
			candidate = (base*r.Value + BasisPointsWhole/2) / BasisPointsWhole
		default:
			candidate = r.Value
		}

		if r.MinAmount != nil && candidate < *r.MinAmount {
			candidate = *r.MinAmount
		}
		if r.CapAmount != nil && candidate > *r.CapAmount {
			candidate = *r.CapAmount
		}
		if candidate < 0 {
			candidate = 0
		}

		// Remaining is deliberately not floored: a negative value signals
		// overcommitment to the caller instead of aborting the pass.
		res.Remaining -= candidate
		res.Planned[r.CategoryID] = PlannedAmount{Amount: candidate, RuleID: r.ID}
	}

	return res
}
