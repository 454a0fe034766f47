package delivery

import (
	"context"
	"fmt"

	"github.com/boddenberg/ynab-shared-report/internal/domain"
	"github.com/boddenberg/ynab-shared-report/internal/service"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// SheetsSender appends one settlement line per report to a spreadsheet,
// giving the two holders a running history of past settlements.
type SheetsSender struct {
	svc           *gsheet.Service
	spreadsheetID string
	rng           string
}

// NewSheetsSender creates a Sheets client from a service-account or OAuth
// credentials file. An empty file falls back to Application Default Credentials.
func NewSheetsSender(ctx context.Context, spreadsheetID, rng, credentialsFile string) (*SheetsSender, error) {
	opts := []goption.ClientOption{goption.WithScopes(gsheet.SpreadsheetsScope)}
	if credentialsFile != "" {
		opts = append(opts, goption.WithCredentialsFile(credentialsFile))
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &SheetsSender{svc: svc, spreadsheetID: spreadsheetID, rng: rng}, nil
}

func (s *SheetsSender) Name() string { return "sheets" }

// DefaultSheetsRange spans exactly the columns of SettlementRow.
const DefaultSheetsRange = "Settlements!A:G"

// SettlementRow is the spreadsheet row recorded for a report:
// start, end, owed, owing, amount, outcome, run id.
func SettlementRow(r *domain.Report) []interface{} {
	return []interface{}{
		r.Window.Start.Format(domain.DateLayout),
		r.Window.End.Format(domain.DateLayout),
		r.Summary.Owed,
		r.Summary.Owing,
		fmt.Sprintf("%.2f", r.Summary.Amount),
		service.SettlementLine(r.Summary),
		r.RunID,
	}
}

// Send appends the settlement row below the existing data in the range.
func (s *SheetsSender) Send(ctx context.Context, r *domain.Report) (*domain.DeliveryReceipt, error) {
	vr := &gsheet.ValueRange{Values: [][]interface{}{SettlementRow(r)}}

	resp, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, s.rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("append settlement row: %w", err)
	}

	location := s.rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		location = resp.Updates.UpdatedRange
	}
	return &domain.DeliveryReceipt{Sink: s.Name(), Location: location}, nil
}
