package service

import (
	"fmt"
	"math"
	"sort"

	"github.com/boddenberg/ynab-shared-report/internal/domain"
)

// SettledMessage is shown when both holders contributed the same amount.
const SettledMessage = "Settled already!"

// SplitRows partitions rows into the categorized shared set and the
// uncategorized set (Uncategorized category or not approved).
func SplitRows(rows []domain.NormalizedRow) (categorized, uncategorized []domain.NormalizedRow) {
	for _, r := range rows {
		if r.Uncategorized() {
			uncategorized = append(uncategorized, r)
		} else {
			categorized = append(categorized, r)
		}
	}
	return categorized, uncategorized
}

// Settle computes who owes whom over the categorized shared rows.
// The holder with the larger total is owed half the difference, rounded
// to cents. Anything other than exactly two holders yields an ambiguity
// instead of a settlement.
func Settle(rows []domain.NormalizedRow) domain.SettlementSummary {
	categorized, _ := SplitRows(rows)
	totals := holderTotals(categorized)

	summary := domain.SettlementSummary{Totals: totals}
	if len(totals) != 2 {
		names := make([]string, len(totals))
		for i, t := range totals {
			names[i] = t.Holder
		}
		summary.Ambiguity = &domain.ErrSettlementAmbiguity{Holders: names}
		return summary
	}

	a, b := totals[0], totals[1]
	if a.Milliunits == b.Milliunits {
		summary.Settled = true
		return summary
	}

	owed, owing := a, b
	if b.Milliunits > a.Milliunits {
		owed, owing = b, a
	}
	summary.Owed = owed.Holder
	summary.Owing = owing.Holder
	summary.Amount = halfToCents(owed.Milliunits - owing.Milliunits)
	return summary
}

// SettlementLine is the human-readable outcome of a settlement.
func SettlementLine(s domain.SettlementSummary) string {
	switch {
	case s.Ambiguity != nil:
		return s.Ambiguity.Error()
	case s.Settled:
		return SettledMessage
	}
	return fmt.Sprintf("%s is owed $%.2f by %s", s.Owed, s.Amount, s.Owing)
}

// AccountTotals sums rows per account name, ordered by account name.
func AccountTotals(rows []domain.NormalizedRow) []domain.AccountTotal {
	sums := make(map[string]int64)
	for _, r := range rows {
		sums[r.AccountName] += r.Milliunits
	}

	out := make([]domain.AccountTotal, 0, len(sums))
	for name, m := range sums {
		out = append(out, domain.AccountTotal{AccountName: name, Milliunits: m, Total: float64(m) / 1000})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountName < out[j].AccountName })
	return out
}

// holderTotals sums rows per attributed holder, ordered by holder.
// Unattributed rows are left out.
func holderTotals(rows []domain.NormalizedRow) []domain.HolderTotal {
	sums := make(map[string]int64)
	for _, r := range rows {
		if r.AccountHolder == "" {
			continue
		}
		sums[r.AccountHolder] += r.Milliunits
	}

	out := make([]domain.HolderTotal, 0, len(sums))
	for h, m := range sums {
		out = append(out, domain.HolderTotal{Holder: h, Milliunits: m, Total: float64(m) / 1000})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Holder < out[j].Holder })
	return out
}

// halfToCents halves a milliunit difference and rounds half away from zero
// to two decimal places.
func halfToCents(diff int64) float64 {
	return math.Round(float64(diff)/20) / 100
}
