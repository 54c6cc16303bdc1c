package core

import "testing"

func int64p(v int64) *int64 { return &v }

func TestEvaluateRulesFixedThenPercent(t *testing.T) {
	// One fixed rule, then a percent rule taking 10% of what is left.
	rules := []BudgetRule{
		{ID: 1, CategoryID: 10, Type: RuleFixed, Value: 18000, ApplyOrder: 1},
		{ID: 2, CategoryID: 20, Type: RulePercentOfIncome, Value: 1000, ApplyOrder: 2},
	}

	res := EvaluateRules(rules, 100000)

	if got := res.Planned[10].Amount; got != 18000 {
		t.Fatalf("fixed allocation = %d, want 18000", got)
	}
	// 10% of the remaining 82000, not of the original 100000.
	if got := res.Planned[20].Amount; got != 8200 {
		t.Fatalf("percent allocation = %d, want 8200", got)
	}
	if res.Remaining != 73800 {
		t.Fatalf("remaining = %d, want 73800", res.Remaining)
	}
	if res.Planned[10].RuleID != 1 || res.Planned[20].RuleID != 2 {
		t.Fatalf("rule ids not recorded: %+v", res.Planned)
	}
}

func TestEvaluateRulesClamping(t *testing.T) {
	cases := []struct {
		name string
		rule BudgetRule
		want int64
	}{
		{
			name: "min raises the floor",
			rule: BudgetRule{ID: 1, CategoryID: 1, Type: RulePercentOfIncome, Value: 100, MinAmount: int64p(5000)},
			want: 5000, // 1% of 100000 = 1000, raised to 5000
		},
		{
			name: "cap lowers the ceiling",
			rule: BudgetRule{ID: 1, CategoryID: 1, Type: RuleFixed, Value: 90000, CapAmount: int64p(30000)},
			want: 30000,
		},
		{
			name: "negative fixed value floors at zero",
			rule: BudgetRule{ID: 1, CategoryID: 1, Type: RuleFixed, Value: -500},
			want: 0,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := EvaluateRules([]BudgetRule{tc.rule}, 100000)
			if got := res.Planned[1].Amount; got != tc.want {
				t.Fatalf("allocation = %d, want %d", got, tc.want)
			}
			if res.Remaining != 100000-tc.want {
				t.Fatalf("remaining = %d, want %d", res.Remaining, 100000-tc.want)
			}
		})
	}
}

func TestEvaluateRulesOvercommit(t *testing.T) {
	rules := []BudgetRule{
		{ID: 1, CategoryID: 1, Type: RuleFixed, Value: 80000, ApplyOrder: 1},
		{ID: 2, CategoryID: 2, Type: RuleFixed, Value: 50000, ApplyOrder: 2},
		{ID: 3, CategoryID: 3, Type: RulePercentOfIncome, Value: 2000, ApplyOrder: 3},
	}

	res := EvaluateRules(rules, 100000)

	// Remaining goes negative and stays negative.
	if res.Remaining != -30000 {
		t.Fatalf("remaining = %d, want -30000", res.Remaining)
	}
	// A percent rule against a negative remaining allocates nothing.
	if got := res.Planned[3].Amount; got != 0 {
		t.Fatalf("percent allocation after overcommit = %d, want 0", got)
	}
}

func TestEvaluateRulesLastWriteWinsPerCategory(t *testing.T) {
	rules := []BudgetRule{
		{ID: 1, CategoryID: 7, Type: RuleFixed, Value: 10000, ApplyOrder: 1},
		{ID: 2, CategoryID: 7, Type: RuleFixed, Value: 4000, ApplyOrder: 2},
	}

	res := EvaluateRules(rules, 100000)

	// The later rule's amount is recorded for the category...
	if got := res.Planned[7]; got.Amount != 4000 || got.RuleID != 2 {
		t.Fatalf("planned = %+v, want amount 4000 from rule 2", got)
	}
	// ...but both rules consumed from the remaining balance.
	if res.Remaining != 86000 {
		t.Fatalf("remaining = %d, want 86000", res.Remaining)
	}
}

func TestEvaluateRulesStableOrder(t *testing.T) {
	// Equal ApplyOrder: creation order (slice order) decides, so the second
	// percent rule sees the first one's deduction.
	rules := []BudgetRule{
		{ID: 1, CategoryID: 1, Type: RulePercentOfIncome, Value: 5000, ApplyOrder: 1},
		{ID: 2, CategoryID: 2, Type: RulePercentOfIncome, Value: 5000, ApplyOrder: 1},
	}

	res := EvaluateRules(rules, 100000)

	if got := res.Planned[1].Amount; got != 50000 {
		t.Fatalf("first rule allocation = %d, want 50000", got)
	}
	if got := res.Planned[2].Amount; got != 25000 {
		t.Fatalf("second rule allocation = %d, want 25000", got)
	}
}

func TestEvaluateRulesDeterministic(t *testing.T) {
	rules := []BudgetRule{
		{ID: 1, CategoryID: 1, Type: RuleFixed, Value: 12345, ApplyOrder: 3},
		{ID: 2, CategoryID: 2, Type: RulePercentOfIncome, Value: 3333, ApplyOrder: 1},
		{ID: 3, CategoryID: 3, Type: RulePercentOfIncome, Value: 1500, ApplyOrder: 2, CapAmount: int64p(9000)},
	}

	first := EvaluateRules(rules, 250000)
	second := EvaluateRules(rules, 250000)

	if first.Remaining != second.Remaining {
		t.Fatalf("remaining differs between runs: %d vs %d", first.Remaining, second.Remaining)
	}
	for cat, want := range first.Planned {
		if got := second.Planned[cat]; got != want {
			t.Fatalf("category %d: %+v vs %+v", cat, want, got)
		}
	}
}

func TestEvaluateRulesNoRules(t *testing.T) {
	res := EvaluateRules(nil, 55000)
	if len(res.Planned) != 0 {
		t.Fatalf("planned = %+v, want empty", res.Planned)
	}
	if res.Remaining != 55000 {
		t.Fatalf("remaining = %d, want 55000", res.Remaining)
	}
}

func TestBudgetRuleActiveIn(t *testing.T) {
	cases := []struct {
		name  string
		rule  BudgetRule
		month MonthKey
		want  bool
	}{
		{"unbounded", BudgetRule{}, "2025-06", true},
		{"from inclusive", BudgetRule{ActiveFrom: "2025-06"}, "2025-06", true},
		{"before from", BudgetRule{ActiveFrom: "2025-07"}, "2025-06", false},
		{"to inclusive", BudgetRule{ActiveTo: "2025-06"}, "2025-06", true},
		{"after to", BudgetRule{ActiveTo: "2025-05"}, "2025-06", false},
		{"inside window", BudgetRule{ActiveFrom: "2025-01", ActiveTo: "2025-12"}, "2025-06", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.rule.ActiveIn(tc.month); got != tc.want {
				t.Fatalf("ActiveIn(%s) = %v, want %v", tc.month, got, tc.want)
			}
		})
	}
}
