package sheets

import (
	"context"

	"finbook/internal/core"
)

// Ports for outbound report adapters.
type (
	// ReportWriter publishes one owner's month overview to the export target.
	// Writing the same (owner, month) twice replaces the previous snapshot.
	ReportWriter interface {
		WriteMonthOverview(ctx context.Context, overview core.MonthOverview) error
	}
)
