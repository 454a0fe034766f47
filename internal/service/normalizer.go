package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/boddenberg/ynab-shared-report/internal/domain"
)

// Normalize flattens raw transactions into report rows and keeps the shared
// ones inside the window, attributed to an account holder and sorted by date.
// Any malformed record fails the whole call; no partial result is returned.
func Normalize(
	raw []domain.RawTransaction,
	shares domain.CategoryShareMap,
	holders domain.AccountHolders,
	window domain.DateWindow,
) ([]domain.NormalizedRow, error) {
	rows, err := flatten(raw)
	if err != nil {
		return nil, err
	}
	rows = filterShared(rows, shares)
	rows = scaleAmounts(rows)
	rows = filterWindow(rows, window)
	rows = attributeHolders(rows, holders)
	sortByDate(rows)
	return rows, nil
}

// flatten emits one row per subtransaction of a split, or one row for a
// plain transaction. Split parents never appear as rows themselves.
func flatten(raw []domain.RawTransaction) ([]domain.NormalizedRow, error) {
	rows := make([]domain.NormalizedRow, 0, len(raw))

	for i, tx := range raw {
		ref := recordRef(tx.ID, i)

		if tx.Date == nil {
			return nil, &domain.ErrDataShape{Record: ref, Field: "date"}
		}
		date, err := time.Parse(domain.DateLayout, *tx.Date)
		if err != nil {
			return nil, &domain.ErrDataShape{Record: ref, Field: "date", Reason: fmt.Sprintf("is not a %s date: %q", domain.DateLayout, *tx.Date)}
		}
		if tx.AccountName == nil {
			return nil, &domain.ErrDataShape{Record: ref, Field: "account_name"}
		}
		if tx.Approved == nil {
			return nil, &domain.ErrDataShape{Record: ref, Field: "approved"}
		}

		parent := domain.NormalizedRow{
			Date:            date,
			AccountName:     *tx.AccountName,
			Approved:        *tx.Approved,
			ImportPayeeName: deref(tx.ImportPayeeName),
		}

		if len(tx.Subtransactions) == 0 {
			if tx.Amount == nil {
				return nil, &domain.ErrDataShape{Record: ref, Field: "amount"}
			}
			row := parent
			row.CategoryID = deref(tx.CategoryID)
			row.CategoryName = deref(tx.CategoryName)
			row.Memo = deref(tx.Memo)
			row.Milliunits = *tx.Amount
			rows = append(rows, row)
			continue
		}

		for j, sub := range tx.Subtransactions {
			if sub.Amount == nil {
				return nil, &domain.ErrDataShape{Record: fmt.Sprintf("%s/sub[%d]", ref, j), Field: "amount"}
			}
			row := parent
			row.CategoryID = deref(sub.CategoryID)
			row.CategoryName = deref(sub.CategoryName)
			row.Memo = deref(sub.Memo)
			row.Milliunits = *sub.Amount
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// filterShared drops rows whose category is explicitly not shared.
// Categories missing from the map are kept.
func filterShared(rows []domain.NormalizedRow, shares domain.CategoryShareMap) []domain.NormalizedRow {
	out := make([]domain.NormalizedRow, 0, len(rows))
	for _, r := range rows {
		if shared, known := shares.Lookup(r.CategoryID); known && !shared {
			continue
		}
		out = append(out, r)
	}
	return out
}

// scaleAmounts converts milliunits to display currency.
func scaleAmounts(rows []domain.NormalizedRow) []domain.NormalizedRow {
	out := make([]domain.NormalizedRow, len(rows))
	for i, r := range rows {
		r.Amount = float64(r.Milliunits) / 1000
		out[i] = r
	}
	return out
}

func filterWindow(rows []domain.NormalizedRow, window domain.DateWindow) []domain.NormalizedRow {
	out := make([]domain.NormalizedRow, 0, len(rows))
	for _, r := range rows {
		if window.Contains(r.Date) {
			out = append(out, r)
		}
	}
	return out
}

// attributeHolders sets AccountHolder to the first holder whose identifier
// appears in the account name. Rows matching neither stay unattributed.
func attributeHolders(rows []domain.NormalizedRow, holders domain.AccountHolders) []domain.NormalizedRow {
	out := make([]domain.NormalizedRow, len(rows))
	for i, r := range rows {
		r.AccountHolder = ""
		for _, h := range holders {
			if h != "" && strings.Contains(r.AccountName, h) {
				r.AccountHolder = h
				break
			}
		}
		out[i] = r
	}
	return out
}

func sortByDate(rows []domain.NormalizedRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Date.Before(rows[j].Date)
	})
}

func recordRef(id string, index int) string {
	if id != "" {
		return id
	}
	return fmt.Sprintf("#%d", index)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
