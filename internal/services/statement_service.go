package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"finbook/internal/amqp"
	"finbook/internal/core"
)

// StatementService drives the credit-card statement lifecycle:
// (none) -> closed -> {partial <-> paid}. A statement never reopens and its
// balance is frozen at close time; payments only move paymentsApplied and
// the status.
type StatementService struct {
	store  Store
	events *amqp.Client
}

func NewStatementService(store Store, events *amqp.Client) *StatementService {
	return &StatementService{store: store, events: events}
}

// CloseInput describes the period being closed.
type CloseInput struct {
	AccountID   int64
	PeriodStart time.Time
	PeriodEnd   time.Time
	ClosingDate time.Time
	DueDate     time.Time
}

// PaymentInput describes a payment applied against a statement.
type PaymentInput struct {
	StatementID   int64
	FromAccountID int64
	Amount        int64
	Date          time.Time
	Notes         string
}

// CloseStatement freezes a credit account's spending over the given period
// into a new statement. Closing the same (account, periodStart, periodEnd)
// twice is a conflict. In-period ledger entries not yet claimed by an earlier
// statement are attached to the new one; entries already claimed stay put.
func (s *StatementService) CloseStatement(ctx context.Context, ownerID string, in CloseInput) (core.Statement, error) {
	if in.PeriodEnd.Before(in.PeriodStart) {
		return core.Statement{}, core.ErrInvalidPeriod
	}

	var stmt core.Statement
	err := s.store.InTx(ctx, func(tx StoreTx) error {
		account, err := tx.GetAccount(ctx, ownerID, in.AccountID)
		if err != nil {
			return fmt.Errorf("account %d: %w", in.AccountID, err)
		}
		if !account.Type.IsCreditType() {
			return fmt.Errorf("account %d: %w", in.AccountID, core.ErrNotCreditAccount)
		}

		if _, err := tx.FindStatement(ctx, in.AccountID, in.PeriodStart, in.PeriodEnd); err == nil {
			return core.ErrConflict
		} else if !errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("find statement: %w", err)
		}

		// Frozen at close time, never recomputed.
		balance, err := tx.SumTransactionsInPeriod(ctx, in.AccountID, in.PeriodStart, in.PeriodEnd)
		if err != nil {
			return fmt.Errorf("sum period transactions: %w", err)
		}

		stmt = core.Statement{
			OwnerID:     ownerID,
			AccountID:   in.AccountID,
			PeriodStart: in.PeriodStart,
			PeriodEnd:   in.PeriodEnd,
			ClosingDate: in.ClosingDate,
			DueDate:     in.DueDate,
			Balance:     balance,
			Status:      core.StatementClosed,
		}
		if err := tx.InsertStatement(ctx, &stmt); err != nil {
			return fmt.Errorf("insert statement: %w", err)
		}

		attached, err := tx.AttachTransactionsToStatement(ctx, in.AccountID, stmt.ID, in.PeriodStart, in.PeriodEnd)
		if err != nil {
			return fmt.Errorf("attach transactions: %w", err)
		}

		slog.InfoContext(ctx, "Statement closed",
			"statement_id", stmt.ID,
			"account_id", in.AccountID,
			"balance_cents", balance,
			"attached", attached)
		return nil
	})
	if err != nil {
		return core.Statement{}, err
	}

	s.publishEvent(ctx, amqp.EventStatementClosed, ownerID, stmt.PeriodEnd)
	return stmt, nil
}

// RecordPayment applies a payment against a statement: one transfer moves
// money from the funding account to the credit account (reducing debt), a
// payment row links the transfer to the statement, and the statement's
// paymentsApplied and status are updated. Overpayment is allowed and left
// uncorrected.
func (s *StatementService) RecordPayment(ctx context.Context, ownerID string, in PaymentInput) (core.Statement, error) {
	if in.Amount <= 0 {
		return core.Statement{}, core.ErrPaymentNotPositive
	}

	var stmt core.Statement
	err := s.store.InTx(ctx, func(tx StoreTx) error {
		var err error
		stmt, err = tx.GetStatement(ctx, ownerID, in.StatementID)
		if err != nil {
			return fmt.Errorf("statement %d: %w", in.StatementID, err)
		}
		from, err := tx.GetAccount(ctx, ownerID, in.FromAccountID)
		if err != nil {
			return fmt.Errorf("account %d: %w", in.FromAccountID, err)
		}

		transfer := core.Transfer{
			OwnerID:       ownerID,
			FromAccountID: from.ID,
			ToAccountID:   stmt.AccountID,
			Amount:        in.Amount,
			Currency:      from.Currency,
			Date:          in.Date,
			Notes:         in.Notes,
		}
		if err := tx.InsertTransfer(ctx, &transfer); err != nil {
			return fmt.Errorf("insert transfer: %w", err)
		}
		if err := tx.ApplyBalanceDelta(ctx, ownerID, from.ID, -in.Amount); err != nil {
			return err
		}
		if err := tx.ApplyBalanceDelta(ctx, ownerID, stmt.AccountID, in.Amount); err != nil {
			return err
		}

		payment := core.StatementPayment{
			StatementID:   stmt.ID,
			TransferID:    transfer.ID,
			AmountApplied: in.Amount,
		}
		if err := tx.InsertStatementPayment(ctx, &payment); err != nil {
			return fmt.Errorf("insert statement payment: %w", err)
		}

		stmt.PaymentsApplied += in.Amount
		wasPaid := stmt.Status == core.StatementPaid
		if stmt.PaymentsApplied >= stmt.Balance {
			stmt.Status = core.StatementPaid
			if !wasPaid {
				paidAt := in.Date
				stmt.PaidAt = &paidAt
			}
		} else {
			stmt.Status = core.StatementPartial
		}
		return tx.UpdateStatement(ctx, stmt)
	})
	if err != nil {
		return core.Statement{}, err
	}

	slog.InfoContext(ctx, "Statement payment recorded",
		"statement_id", stmt.ID,
		"amount_cents", in.Amount,
		"payments_applied_cents", stmt.PaymentsApplied,
		"status", string(stmt.Status))

	s.publishEvent(ctx, amqp.EventStatementPayment, ownerID, in.Date)
	return stmt, nil
}

func (s *StatementService) publishEvent(ctx context.Context, kind, ownerID string, date time.Time) {
	if s.events == nil {
		return
	}
	month := string(core.MonthKeyOf(date))
	if err := s.events.PublishLedgerEvent(ctx, kind, ownerID, month); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"kind", kind, "month", month, "error", err)
	}
}
