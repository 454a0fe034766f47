// Package delivery sends rendered reports through the configured channels:
// email, local file, message queue, object storage and spreadsheet.
package delivery

import (
	"fmt"
	"strings"

	"github.com/boddenberg/ynab-shared-report/internal/domain"
	"github.com/boddenberg/ynab-shared-report/internal/service"
)

// PlainText builds the text fallback body sent next to the HTML report.
func PlainText(r *domain.Report) string {
	var b strings.Builder
	b.WriteString(r.Subject)
	b.WriteString("\n\n")
	b.WriteString(service.SettlementLine(r.Summary))
	b.WriteString("\n")
	for _, t := range r.Summary.Totals {
		fmt.Fprintf(&b, "  %s: %s\n", t.Holder, service.FormatMilliunits(t.Milliunits))
	}
	b.WriteString("\nOpen the HTML version of this message for the full breakdown.\n")
	return b.String()
}
