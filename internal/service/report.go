package service

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/boddenberg/ynab-shared-report/internal/domain"
)

// SubjectDateLayout formats window bounds in titles: "Monday 03/04/2024".
const SubjectDateLayout = "Monday 01/02/2006"

//go:embed templates/report.html
var templatesFS embed.FS

var reportTemplate = template.Must(
	template.New("report.html").
		Funcs(template.FuncMap{
			"amount": FormatMilliunits,
			"date":   func(t time.Time) string { return t.Format(domain.DateLayout) },
		}).
		ParseFS(templatesFS, "templates/report.html"),
)

type reportView struct {
	SettlementLine string
	Ambiguous      bool
	HolderTotals   []domain.HolderTotal
	Categorized    []domain.NormalizedRow
	Uncategorized  []domain.NormalizedRow
	AccountTotals  []domain.AccountTotal
}

// RenderReport projects normalized rows into the HTML report document.
// Sections are, in order: shared summary, per-holder totals, categorized
// shared expenses, uncategorized expenses, uncategorized summary.
func RenderReport(rows []domain.NormalizedRow, window domain.DateWindow, subjectPrefix string) (*domain.Report, error) {
	summary := Settle(rows)
	categorized, uncategorized := SplitRows(rows)

	view := reportView{
		SettlementLine: SettlementLine(summary),
		Ambiguous:      summary.Ambiguity != nil,
		HolderTotals:   summary.Totals,
		Categorized:    categorized,
		Uncategorized:  uncategorized,
		AccountTotals:  AccountTotals(uncategorized),
	}

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}

	return &domain.Report{
		Window:  window,
		Subject: FormatSubject(subjectPrefix, window),
		HTML:    buf.String(),
		Rows:    rows,
		Summary: summary,
	}, nil
}

// FormatSubject builds "<prefix><start> -> <end>" with long weekday dates.
func FormatSubject(prefix string, window domain.DateWindow) string {
	return prefix + window.Start.Format(SubjectDateLayout) + " -> " + window.End.Format(SubjectDateLayout)
}

// FormatMilliunits renders an amount with two decimals, or three when the
// milliunit value is not a whole number of cents.
func FormatMilliunits(m int64) string {
	if m%10 != 0 {
		return fmt.Sprintf("%.3f", float64(m)/1000)
	}
	return fmt.Sprintf("%.2f", float64(m)/1000)
}
