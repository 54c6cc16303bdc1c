package worker

import (
	"context"
	"fmt"
	"log/slog"

	"finbook/internal/amqp"
	"finbook/internal/core"
	"finbook/internal/sheets"
)

// OverviewReader is the slice of storage the export worker needs.
type OverviewReader interface {
	MonthOverview(ctx context.Context, ownerID string, month core.MonthKey) (core.MonthOverview, error)
	ListActiveOwners(ctx context.Context, month core.MonthKey) ([]string, error)
}

// ExportWorker keeps the external report in sync with the ledger. Events only
// carry (owner, month); the worker re-reads the aggregate from storage so a
// late or duplicated event still converges on the correct snapshot.
type ExportWorker struct {
	storage OverviewReader
	writer  sheets.ReportWriter
}

func NewExportWorker(storage OverviewReader, writer sheets.ReportWriter) *ExportWorker {
	return &ExportWorker{storage: storage, writer: writer}
}

// HandleLedgerEvent re-exports the month named by one ledger event.
func (w *ExportWorker) HandleLedgerEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error {
	month, err := core.ParseMonthKey(msg.Month)
	if err != nil {
		return fmt.Errorf("event %s: %w", msg.EventID, err)
	}

	slog.InfoContext(ctx, "Processing ledger event",
		"event_id", msg.EventID,
		"kind", msg.Kind,
		"owner_id", msg.OwnerID,
		"month", msg.Month)

	return w.export(ctx, msg.OwnerID, month)
}

// ResyncMonth re-exports the month for every owner with activity in it.
// Backup path for lost events; runs on a timer and at startup.
func (w *ExportWorker) ResyncMonth(ctx context.Context, month core.MonthKey) error {
	owners, err := w.storage.ListActiveOwners(ctx, month)
	if err != nil {
		return fmt.Errorf("list active owners: %w", err)
	}
	if len(owners) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Resyncing month", "month", string(month), "owners", len(owners))

	var failed int
	for _, owner := range owners {
		if err := w.export(ctx, owner, month); err != nil {
			slog.ErrorContext(ctx, "Failed to export overview",
				"owner_id", owner, "month", string(month), "error", err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("resync month %s: %d of %d exports failed", month, failed, len(owners))
	}
	return nil
}

func (w *ExportWorker) export(ctx context.Context, ownerID string, month core.MonthKey) error {
	overview, err := w.storage.MonthOverview(ctx, ownerID, month)
	if err != nil {
		return fmt.Errorf("read month overview: %w", err)
	}
	if err := w.writer.WriteMonthOverview(ctx, overview); err != nil {
		return fmt.Errorf("write month overview: %w", err)
	}
	return nil
}
