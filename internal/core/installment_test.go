package core

import (
	"testing"
	"time"
)

func TestSplitInstallmentAmounts(t *testing.T) {
	cases := []struct {
		total  int64
		months int
		want   []int64
	}{
		{1000, 3, []int64{334, 333, 333}},
		{1000, 1, []int64{1000}},
		{1001, 2, []int64{501, 500}},
		{0, 4, []int64{0, 0, 0, 0}},
		{5, 3, []int64{2, 2, 1}},
		{120000, 12, []int64{10000, 10000, 10000, 10000, 10000, 10000, 10000, 10000, 10000, 10000, 10000, 10000}},
	}

	for _, tc := range cases {
		got, err := SplitInstallmentAmounts(tc.total, tc.months)
		if err != nil {
			t.Fatalf("SplitInstallmentAmounts(%d, %d): %v", tc.total, tc.months, err)
		}
		if len(got) != len(tc.want) {
			t.Fatalf("SplitInstallmentAmounts(%d, %d) = %v, want %v", tc.total, tc.months, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("SplitInstallmentAmounts(%d, %d) = %v, want %v", tc.total, tc.months, got, tc.want)
			}
		}
	}
}

func TestSplitInstallmentAmountsProperties(t *testing.T) {
	for total := int64(0); total <= 500; total += 7 {
		for months := 1; months <= 13; months++ {
			got, err := SplitInstallmentAmounts(total, months)
			if err != nil {
				t.Fatalf("SplitInstallmentAmounts(%d, %d): %v", total, months, err)
			}

			var sum int64
			min, max := got[0], got[0]
			for _, v := range got {
				sum += v
				if v < min {
					min = v
				}
				if v > max {
					max = v
				}
			}
			if sum != total {
				t.Fatalf("sum of parts = %d, want %d (months=%d)", sum, total, months)
			}
			if max-min > 1 {
				t.Fatalf("parts differ by more than one cent: %v", got)
			}
		}
	}
}

func TestSplitInstallmentAmountsInvalid(t *testing.T) {
	if _, err := SplitInstallmentAmounts(1000, 0); err != ErrInvalidMonths {
		t.Fatalf("months=0: err = %v, want ErrInvalidMonths", err)
	}
	if _, err := SplitInstallmentAmounts(-1, 3); err != ErrInvalidAmount {
		t.Fatalf("negative total: err = %v, want ErrInvalidAmount", err)
	}
}

func TestAddCalendarMonths(t *testing.T) {
	day := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}

	cases := []struct {
		name string
		in   time.Time
		n    int
		want time.Time
	}{
		{"regular mid-month", day(2025, time.March, 15), 1, day(2025, time.April, 15)},
		{"jan 31 clamps to feb 28", day(2025, time.January, 31), 1, day(2025, time.February, 28)},
		{"jan 31 leap year clamps to feb 29", day(2024, time.January, 31), 1, day(2024, time.February, 29)},
		{"may 31 clamps to jun 30", day(2025, time.May, 31), 1, day(2025, time.June, 30)},
		{"year rollover", day(2025, time.November, 20), 3, day(2026, time.February, 20)},
		{"zero months", day(2025, time.July, 4), 0, day(2025, time.July, 4)},
		{"many months keeps day", day(2025, time.January, 15), 11, day(2025, time.December, 15)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := AddCalendarMonths(tc.in, tc.n); !got.Equal(tc.want) {
				t.Fatalf("AddCalendarMonths(%s, %d) = %s, want %s",
					tc.in.Format("2006-01-02"), tc.n, got.Format("2006-01-02"), tc.want.Format("2006-01-02"))
			}
		})
	}
}
