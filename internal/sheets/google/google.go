package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"finbook/internal/core"
	ports "finbook/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Client exports month overviews to a Google Sheets spreadsheet, one row per
// (owner, month). Re-exporting an existing key overwrites its row.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var _ ports.ReportWriter = (*Client)(nil)

type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsFile string
	CredentialsJSON string
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if cfg.SheetName == "" {
		return nil, errors.New("missing sheet name")
	}

	credentialsJSON := []byte(cfg.CredentialsJSON)
	if len(credentialsJSON) == 0 {
		if cfg.CredentialsFile == "" {
			return nil, errors.New("missing service account credentials")
		}
		var err error
		credentialsJSON, err = os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read credentials file: %w", err)
		}
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     cfg.SheetName,
	}, nil
}

// WriteMonthOverview upserts the overview row keyed by "owner/month" in
// column A. Columns: key, income, expense, net.
func (c *Client) WriteMonthOverview(ctx context.Context, overview core.MonthOverview) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	key := fmt.Sprintf("%s/%s", overview.OwnerID, overview.Month)
	row := []any{
		key,
		core.FormatCents(overview.Income),
		core.FormatCents(overview.Expense),
		core.FormatCents(overview.Net),
	}
	values := &gsheet.ValueRange{Values: [][]any{row}}

	rowIndex, err := c.findRow(ctx, key)
	if err != nil {
		return err
	}

	if rowIndex > 0 {
		rng := fmt.Sprintf("%s!A%d:D%d", c.sheetName, rowIndex, rowIndex)
		_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, values).
			ValueInputOption("USER_ENTERED").
			Context(ctx).
			Do()
		if err != nil {
			return fmt.Errorf("update overview row: %w", err)
		}
	} else {
		rng := fmt.Sprintf("%s!A:D", c.sheetName)
		_, err = c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, values).
			ValueInputOption("USER_ENTERED").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).
			Do()
		if err != nil {
			return fmt.Errorf("append overview row: %w", err)
		}
	}

	slog.InfoContext(ctx, "Month overview exported",
		"owner_id", overview.OwnerID,
		"month", string(overview.Month),
		"net_cents", overview.Net,
		"replaced", rowIndex > 0)
	return nil
}

// findRow returns the 1-based row holding the key in column A, or 0 when the
// key is not present yet.
func (c *Client) findRow(ctx context.Context, key string) (int, error) {
	rng := fmt.Sprintf("%s!A:A", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read key column: %w", err)
	}
	for i, row := range resp.Values {
		if len(row) > 0 {
			if s, ok := row[0].(string); ok && s == key {
				return i + 1, nil
			}
		}
	}
	return 0, nil
}
