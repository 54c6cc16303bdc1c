package core

import (
	"time"
)

// MonthKey identifies a budget month as "YYYY-MM". The format sorts
// lexicographically in chronological order, so plain string comparison is
// enough for range checks.
type MonthKey string

// ParseMonthKey validates a "YYYY-MM" string.
func ParseMonthKey(s string) (MonthKey, error) {
	if _, err := time.Parse("2006-01", s); err != nil {
		return "", ErrInvalidMonthKey
	}
	return MonthKey(s), nil
}

// MonthKeyOf returns the month key for a point in time (UTC).
func MonthKeyOf(t time.Time) MonthKey {
	return MonthKey(t.UTC().Format("2006-01"))
}

// Start returns midnight UTC on the first day of the month.
func (m MonthKey) Start() time.Time {
	t, err := time.Parse("2006-01", string(m))
	if err != nil {
		return time.Time{}
	}
	return t
}

// Next returns the key of the following month.
func (m MonthKey) Next() MonthKey {
	return MonthKeyOf(m.Start().AddDate(0, 1, 0))
}

// Contains reports whether t falls inside the month.
func (m MonthKey) Contains(t time.Time) bool {
	return MonthKeyOf(t) == m
}
