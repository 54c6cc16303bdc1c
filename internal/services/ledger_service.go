package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"finbook/internal/amqp"
	"finbook/internal/core"
)

// LedgerService writes ledger entries and keeps account balances consistent
// with them. Every mutation pairs the row write with a matching balance
// increment inside one transaction; the account balance is never recomputed
// from scratch on the write path.
type LedgerService struct {
	store  Store
	events *amqp.Client
}

func NewLedgerService(store Store, events *amqp.Client) *LedgerService {
	return &LedgerService{store: store, events: events}
}

// TransactionInput carries the caller-supplied fields of a ledger entry.
type TransactionInput struct {
	AccountID   int64
	CategoryID  int64
	Description string
	Amount      int64
	Date        time.Time
}

// CreateTransaction validates the input against the target category's kind,
// inserts the ledger entry and applies its amount to the account balance.
func (s *LedgerService) CreateTransaction(ctx context.Context, ownerID string, in TransactionInput) (core.Transaction, error) {
	if err := core.ValidateDescription(in.Description); err != nil {
		return core.Transaction{}, err
	}

	var created core.Transaction
	err := s.store.InTx(ctx, func(tx StoreTx) error {
		if _, err := tx.GetAccount(ctx, ownerID, in.AccountID); err != nil {
			return fmt.Errorf("account %d: %w", in.AccountID, err)
		}
		cat, err := tx.GetCategory(ctx, ownerID, in.CategoryID)
		if err != nil {
			return fmt.Errorf("category %d: %w", in.CategoryID, err)
		}
		if err := core.ValidateTransactionAmount(cat.Kind, in.Amount); err != nil {
			return err
		}

		created = core.Transaction{
			OwnerID:     ownerID,
			AccountID:   in.AccountID,
			CategoryID:  in.CategoryID,
			Description: in.Description,
			Amount:      in.Amount,
			Date:        in.Date,
		}
		if err := tx.InsertTransaction(ctx, &created); err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		return tx.ApplyBalanceDelta(ctx, ownerID, in.AccountID, in.Amount)
	})
	if err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Transaction created",
		"id", created.ID,
		"account_id", created.AccountID,
		"amount_cents", created.Amount)

	s.publishEvent(ctx, amqp.EventTransactionCreated, ownerID, created.Date)
	return created, nil
}

// UpdateTransaction re-derives the balance impact of an edit. If the account
// is unchanged only the amount difference is applied; if the entry moved
// between accounts the old amount is reversed on the old account and the new
// amount applied to the new one, both inside the same transaction.
func (s *LedgerService) UpdateTransaction(ctx context.Context, ownerID string, id int64, in TransactionInput) (core.Transaction, error) {
	if err := core.ValidateDescription(in.Description); err != nil {
		return core.Transaction{}, err
	}

	var updated core.Transaction
	err := s.store.InTx(ctx, func(tx StoreTx) error {
		old, err := tx.GetTransaction(ctx, ownerID, id)
		if err != nil {
			return fmt.Errorf("transaction %d: %w", id, err)
		}
		if _, err := tx.GetAccount(ctx, ownerID, in.AccountID); err != nil {
			return fmt.Errorf("account %d: %w", in.AccountID, err)
		}
		cat, err := tx.GetCategory(ctx, ownerID, in.CategoryID)
		if err != nil {
			return fmt.Errorf("category %d: %w", in.CategoryID, err)
		}
		if err := core.ValidateTransactionAmount(cat.Kind, in.Amount); err != nil {
			return err
		}

		if old.AccountID == in.AccountID {
			if delta := in.Amount - old.Amount; delta != 0 {
				if err := tx.ApplyBalanceDelta(ctx, ownerID, in.AccountID, delta); err != nil {
					return err
				}
			}
		} else {
			if err := tx.ApplyBalanceDelta(ctx, ownerID, old.AccountID, -old.Amount); err != nil {
				return err
			}
			if err := tx.ApplyBalanceDelta(ctx, ownerID, in.AccountID, in.Amount); err != nil {
				return err
			}
		}

		updated = old
		updated.AccountID = in.AccountID
		updated.CategoryID = in.CategoryID
		updated.Description = in.Description
		updated.Amount = in.Amount
		updated.Date = in.Date
		return tx.UpdateTransaction(ctx, updated)
	})
	if err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Transaction updated", "id", id, "amount_cents", updated.Amount)
	s.publishEvent(ctx, amqp.EventTransactionUpdated, ownerID, updated.Date)
	return updated, nil
}

// DeleteTransaction reverses the stored amount from the entry's account and
// removes the row.
func (s *LedgerService) DeleteTransaction(ctx context.Context, ownerID string, id int64) error {
	var deleted core.Transaction
	err := s.store.InTx(ctx, func(tx StoreTx) error {
		old, err := tx.GetTransaction(ctx, ownerID, id)
		if err != nil {
			return fmt.Errorf("transaction %d: %w", id, err)
		}
		if err := tx.ApplyBalanceDelta(ctx, ownerID, old.AccountID, -old.Amount); err != nil {
			return err
		}
		deleted = old
		return tx.DeleteTransaction(ctx, ownerID, id)
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Transaction deleted", "id", id)
	s.publishEvent(ctx, amqp.EventTransactionDeleted, ownerID, deleted.Date)
	return nil
}

// MonthOverview returns the aggregated ledger report for one month.
func (s *LedgerService) MonthOverview(ctx context.Context, ownerID string, month core.MonthKey) (core.MonthOverview, error) {
	return s.store.MonthOverview(ctx, ownerID, month)
}

// publishEvent notifies the export pipeline. Best-effort: the mutation is
// already committed, so a publish failure is logged and swallowed.
func (s *LedgerService) publishEvent(ctx context.Context, kind, ownerID string, date time.Time) {
	if s.events == nil {
		return
	}
	month := string(core.MonthKeyOf(date))
	if err := s.events.PublishLedgerEvent(ctx, kind, ownerID, month); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"kind", kind, "month", month, "error", err)
	}
}
