package core

// CategoryAmount is an amount aggregated under one category.
type CategoryAmount struct {
	CategoryID int64
	Name       string
	Amount     int64
}

// MonthOverview is a compact report for one owner and month: signed totals
// plus a per-category breakdown. It feeds the dashboard endpoint and the
// spreadsheet export.
type MonthOverview struct {
	OwnerID    string
	Month      MonthKey
	Income     int64
	Expense    int64 // negative or zero
	Net        int64
	ByCategory []CategoryAmount
}
