package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"finbook/internal/amqp"
	"finbook/internal/core"
)

// InstallmentService manages installment purchase plans on credit accounts.
// A plan owns a generated set of ledger entries, one per installment.
// Materialization is a destructive replace: all previously generated entries
// are deleted and rebuilt inside one transaction. Two concurrent
// materializations of the same plan are not serialized beyond that single
// transaction; this is a known limitation.
type InstallmentService struct {
	store  Store
	events *amqp.Client
}

func NewInstallmentService(store Store, events *amqp.Client) *InstallmentService {
	return &InstallmentService{store: store, events: events}
}

// PlanInput carries the caller-supplied fields of an installment plan.
type PlanInput struct {
	AccountID       int64
	CategoryID      int64
	Description     string
	TotalAmount     int64
	Currency        string
	Months          int
	InterestRateBps int64
	StartDate       time.Time
}

func (in PlanInput) validate() error {
	if err := core.ValidateDescription(in.Description); err != nil {
		return err
	}
	if in.Months < 1 {
		return core.ErrInvalidMonths
	}
	if in.TotalAmount < 0 {
		return core.ErrInvalidAmount
	}
	return nil
}

// CreatePlan stores a new active plan and materializes its ledger entries.
func (s *InstallmentService) CreatePlan(ctx context.Context, ownerID string, in PlanInput) (core.InstallmentPlan, error) {
	if err := in.validate(); err != nil {
		return core.InstallmentPlan{}, err
	}

	var plan core.InstallmentPlan
	err := s.store.InTx(ctx, func(tx StoreTx) error {
		account, err := tx.GetAccount(ctx, ownerID, in.AccountID)
		if err != nil {
			return fmt.Errorf("account %d: %w", in.AccountID, err)
		}
		if !account.Type.IsCreditType() {
			return fmt.Errorf("account %d: %w", in.AccountID, core.ErrNotCreditAccount)
		}
		category, err := tx.GetCategory(ctx, ownerID, in.CategoryID)
		if err != nil {
			return fmt.Errorf("category %d: %w", in.CategoryID, err)
		}

		plan = core.InstallmentPlan{
			OwnerID:         ownerID,
			AccountID:       in.AccountID,
			CategoryID:      in.CategoryID,
			Description:     in.Description,
			TotalAmount:     in.TotalAmount,
			Currency:        in.Currency,
			Months:          in.Months,
			InterestRateBps: in.InterestRateBps,
			StartDate:       in.StartDate,
			Status:          core.PlanActive,
		}
		if err := tx.InsertInstallmentPlan(ctx, &plan); err != nil {
			return fmt.Errorf("insert plan: %w", err)
		}
		return s.materialize(ctx, tx, plan, category.Kind)
	})
	if err != nil {
		return core.InstallmentPlan{}, err
	}

	slog.InfoContext(ctx, "Installment plan created",
		"plan_id", plan.ID, "months", plan.Months, "total_cents", plan.TotalAmount)
	s.publishEvent(ctx, ownerID, plan.StartDate)
	return plan, nil
}

// UpdatePlan edits an active plan and regenerates all of its entries.
func (s *InstallmentService) UpdatePlan(ctx context.Context, ownerID string, id int64, in PlanInput) (core.InstallmentPlan, error) {
	if err := in.validate(); err != nil {
		return core.InstallmentPlan{}, err
	}

	var plan core.InstallmentPlan
	err := s.store.InTx(ctx, func(tx StoreTx) error {
		existing, err := tx.GetInstallmentPlan(ctx, ownerID, id)
		if err != nil {
			return fmt.Errorf("plan %d: %w", id, err)
		}
		if existing.Status != core.PlanActive {
			return core.ErrPlanNotActive
		}
		account, err := tx.GetAccount(ctx, ownerID, in.AccountID)
		if err != nil {
			return fmt.Errorf("account %d: %w", in.AccountID, err)
		}
		if !account.Type.IsCreditType() {
			return fmt.Errorf("account %d: %w", in.AccountID, core.ErrNotCreditAccount)
		}
		category, err := tx.GetCategory(ctx, ownerID, in.CategoryID)
		if err != nil {
			return fmt.Errorf("category %d: %w", in.CategoryID, err)
		}

		plan = existing
		plan.AccountID = in.AccountID
		plan.CategoryID = in.CategoryID
		plan.Description = in.Description
		plan.TotalAmount = in.TotalAmount
		plan.Currency = in.Currency
		plan.Months = in.Months
		plan.InterestRateBps = in.InterestRateBps
		plan.StartDate = in.StartDate
		if err := tx.UpdateInstallmentPlan(ctx, plan); err != nil {
			return fmt.Errorf("update plan: %w", err)
		}
		return s.materialize(ctx, tx, plan, category.Kind)
	})
	if err != nil {
		return core.InstallmentPlan{}, err
	}

	slog.InfoContext(ctx, "Installment plan updated", "plan_id", id)
	s.publishEvent(ctx, ownerID, plan.StartDate)
	return plan, nil
}

// CancelPlan flips the status to cancelled and deletes all generated entries.
func (s *InstallmentService) CancelPlan(ctx context.Context, ownerID string, id int64) error {
	return s.deactivate(ctx, ownerID, id, core.PlanCancelled)
}

// CompletePlan flips the status to completed and deletes all generated
// entries; regeneration stops once the plan leaves the active status.
func (s *InstallmentService) CompletePlan(ctx context.Context, ownerID string, id int64) error {
	return s.deactivate(ctx, ownerID, id, core.PlanCompleted)
}

func (s *InstallmentService) deactivate(ctx context.Context, ownerID string, id int64, status core.PlanStatus) error {
	var start time.Time
	err := s.store.InTx(ctx, func(tx StoreTx) error {
		plan, err := tx.GetInstallmentPlan(ctx, ownerID, id)
		if err != nil {
			return fmt.Errorf("plan %d: %w", id, err)
		}
		plan.Status = status
		if err := tx.UpdateInstallmentPlan(ctx, plan); err != nil {
			return fmt.Errorf("update plan: %w", err)
		}
		start = plan.StartDate
		return s.removeGeneratedEntries(ctx, tx, plan)
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Installment plan deactivated", "plan_id", id, "status", string(status))
	s.publishEvent(ctx, ownerID, start)
	return nil
}

// materialize replaces every generated entry of the plan: the old entries'
// balance impact is reversed, then the split amounts are inserted as dated
// expense entries, one per month with end-of-month clamping on the due date.
// Each entry honors the sign-vs-kind invariant of its category, and zero
// installments left over from rounding splits produce no entry at all.
func (s *InstallmentService) materialize(ctx context.Context, tx StoreTx, plan core.InstallmentPlan, kind core.CategoryKind) error {
	if err := s.removeGeneratedEntries(ctx, tx, plan); err != nil {
		return err
	}

	amounts, err := core.SplitInstallmentAmounts(plan.TotalAmount, plan.Months)
	if err != nil {
		return err
	}

	entries := make([]core.Transaction, 0, len(amounts))
	var total int64
	for i, amount := range amounts {
		if amount == 0 {
			continue
		}
		if err := core.ValidateTransactionAmount(kind, -amount); err != nil {
			return fmt.Errorf("installment %d: %w", i+1, err)
		}
		number := int64(i + 1)
		planID := plan.ID
		entries = append(entries, core.Transaction{
			OwnerID:           plan.OwnerID,
			AccountID:         plan.AccountID,
			CategoryID:        plan.CategoryID,
			Description:       fmt.Sprintf("%s (%d/%d)", plan.Description, number, plan.Months),
			Amount:            -amount,
			Date:              core.AddCalendarMonths(plan.StartDate, i),
			InstallmentPlanID: &planID,
			InstallmentNumber: &number,
		})
		total += amount
	}

	if err := tx.InsertTransactions(ctx, entries); err != nil {
		return fmt.Errorf("insert installment entries: %w", err)
	}
	if total != 0 {
		if err := tx.ApplyBalanceDelta(ctx, plan.OwnerID, plan.AccountID, -total); err != nil {
			return err
		}
	}
	return nil
}

// removeGeneratedEntries deletes the plan's entries and reverses their
// balance impact per account (an updated plan may have moved accounts since
// the last materialization).
func (s *InstallmentService) removeGeneratedEntries(ctx context.Context, tx StoreTx, plan core.InstallmentPlan) error {
	old, err := tx.ListPlanTransactions(ctx, plan.ID)
	if err != nil {
		return fmt.Errorf("list plan entries: %w", err)
	}
	if len(old) == 0 {
		return nil
	}

	byAccount := make(map[int64]int64)
	for _, t := range old {
		byAccount[t.AccountID] += t.Amount
	}
	for accountID, sum := range byAccount {
		if sum == 0 {
			continue
		}
		if err := tx.ApplyBalanceDelta(ctx, plan.OwnerID, accountID, -sum); err != nil {
			return err
		}
	}
	if err := tx.DeletePlanTransactions(ctx, plan.ID); err != nil {
		return fmt.Errorf("delete plan entries: %w", err)
	}
	return nil
}

func (s *InstallmentService) publishEvent(ctx context.Context, ownerID string, date time.Time) {
	if s.events == nil {
		return
	}
	month := string(core.MonthKeyOf(date))
	if err := s.events.PublishLedgerEvent(ctx, amqp.EventPlanMaterialized, ownerID, month); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"kind", amqp.EventPlanMaterialized, "month", month, "error", err)
	}
}
