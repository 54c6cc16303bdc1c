package core

import "time"

// SplitInstallmentAmounts divides a total into near-equal monthly parts.
//
// The remainder after integer division is distributed one cent at a time to
// the earliest installments, so the parts always sum to the total exactly and
// no two parts differ by more than one cent.
//
//	SplitInstallmentAmounts(1000, 3) -> [334, 333, 333]
func SplitInstallmentAmounts(total int64, months int) ([]int64, error) {
	if months < 1 {
		return nil, ErrInvalidMonths
	}
	if total < 0 {
		return nil, ErrInvalidAmount
	}

	base := total / int64(months)
	remainder := total - base*int64(months)

	amounts := make([]int64, months)
	for i := range amounts {
		amounts[i] = base
		if int64(i) < remainder {
			amounts[i]++
		}
	}
	return amounts, nil
}

// AddCalendarMonths advances t by n calendar months with end-of-month
// clamping: Jan 31 + 1 month is Feb 28 (or 29), never Mar 3. The time of day
// and location are preserved.
func AddCalendarMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	firstOfTarget := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if d > lastDay {
		d = lastDay
	}
	hh, mm, ss := t.Clock()
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), d, hh, mm, ss, t.Nanosecond(), t.Location())
}
