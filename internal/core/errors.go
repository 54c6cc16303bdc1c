package core

import "errors"

// Domain errors. Services wrap these with context; callers match with
// errors.Is to map them onto their own failure taxonomy (HTTP status codes,
// retry policy and so on).
var (
	// ErrNotFound covers both "does not exist" and "exists but belongs to a
	// different owner"; the two are indistinguishable on purpose.
	ErrNotFound = errors.New("not found")

	// ErrConflict signals a uniqueness violation, e.g. closing the same
	// statement period twice.
	ErrConflict = errors.New("already exists")

	ErrInvalidAmount      = errors.New("invalid amount")
	ErrZeroAmount         = errors.New("amount must not be zero")
	ErrAmountSignMismatch = errors.New("amount sign not allowed for category kind")
	ErrInvalidPeriod      = errors.New("period end before period start")
	ErrInvalidMonths      = errors.New("months must be at least 1")
	ErrInvalidMonthKey    = errors.New("invalid month key, want YYYY-MM")
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
	ErrPlanNotActive      = errors.New("installment plan is not active")
	ErrNotCreditAccount   = errors.New("account is not a credit account")
	ErrPaymentNotPositive = errors.New("payment amount must be positive")
)
