package service_test

import (
	"testing"

	"github.com/boddenberg/ynab-shared-report/internal/domain"
	"github.com/boddenberg/ynab-shared-report/internal/service"
)

func TestSettle_HigherTotalIsOwed(t *testing.T) {
	rows := []domain.NormalizedRow{
		row("Alice", "Alice Checking", "Groceries", true, 100000),
		row("Bob", "Bob Visa", "Groceries", true, 40000),
		row("Bob", "Bob Visa", "Rent", true, 20000),
	}

	s := service.Settle(rows)
	if s.Owed != "Alice" || s.Owing != "Bob" {
		t.Fatalf("expected Alice owed by Bob, got %+v", s)
	}
	if s.Amount != 20 {
		t.Errorf("expected 20.00, got %v", s.Amount)
	}
	if got := service.SettlementLine(s); got != "Alice is owed $20.00 by Bob" {
		t.Errorf("unexpected line: %q", got)
	}
}

func TestSettle_SignsAreTakenLiterally(t *testing.T) {
	// Outflows are negative, so the holder who spent less has the larger total.
	rows := []domain.NormalizedRow{
		row("Alice", "Alice Checking", "Groceries", true, -100000),
		row("Bob", "Bob Visa", "Groceries", true, -50000),
	}

	s := service.Settle(rows)
	if s.Owed != "Bob" || s.Owing != "Alice" || s.Amount != 25 {
		t.Errorf("expected Bob owed 25 by Alice, got %+v", s)
	}
}

func TestSettle_EqualTotals(t *testing.T) {
	rows := []domain.NormalizedRow{
		row("Alice", "Alice Checking", "Groceries", true, -30000),
		row("Bob", "Bob Visa", "Rent", true, -30000),
	}

	s := service.Settle(rows)
	if !s.Settled {
		t.Fatalf("expected settled, got %+v", s)
	}
	if got := service.SettlementLine(s); got != "Settled already!" {
		t.Errorf("expected %q, got %q", "Settled already!", got)
	}
}

func TestSettle_NotTwoHolders(t *testing.T) {
	tests := []struct {
		name string
		rows []domain.NormalizedRow
		want string
	}{
		{
			name: "one holder",
			rows: []domain.NormalizedRow{row("Alice", "Alice", "Groceries", true, -1000)},
			want: "error: Not 2 account holders. Found [Alice]",
		},
		{
			name: "three holders",
			rows: []domain.NormalizedRow{
				row("Carol", "Carol", "Groceries", true, -1000),
				row("Alice", "Alice", "Groceries", true, -1000),
				row("Bob", "Bob", "Groceries", true, -1000),
			},
			want: "error: Not 2 account holders. Found [Alice Bob Carol]",
		},
		{
			name: "none",
			rows: nil,
			want: "error: Not 2 account holders. Found []",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := service.Settle(tt.rows)
			if s.Ambiguity == nil {
				t.Fatalf("expected ambiguity, got %+v", s)
			}
			if got := service.SettlementLine(s); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestSettle_IgnoresUncategorizedAndUnattributed(t *testing.T) {
	rows := []domain.NormalizedRow{
		row("Alice", "Alice", "Groceries", true, -10000),
		row("Bob", "Bob", "Groceries", true, -4000),
		row("Bob", "Bob", domain.UncategorizedCategory, true, -99000),
		row("Alice", "Alice", "Groceries", false, -99000),
		row("", "Joint", "Groceries", true, -99000),
	}

	s := service.Settle(rows)
	if len(s.Totals) != 2 {
		t.Fatalf("expected 2 holder totals, got %d", len(s.Totals))
	}
	if s.Totals[0].Total != -10 || s.Totals[1].Total != -4 {
		t.Errorf("unexpected totals: %+v", s.Totals)
	}
	if s.Owed != "Bob" || s.Amount != 3 {
		t.Errorf("expected Bob owed 3, got %+v", s)
	}
}

func TestSettle_RoundsToCents(t *testing.T) {
	tests := []struct {
		alice, bob int64
		want       float64
	}{
		{10000, 0, 5},
		{10010, 0, 5.01}, // 5.005 rounds away from zero
		{10030, 0, 5.02}, // 5.015
		{1, 0, 0},
		{12345, 0, 6.17}, // 6.1725
	}

	for _, tt := range tests {
		s := service.Settle([]domain.NormalizedRow{
			row("Alice", "Alice", "Rent", true, tt.alice),
			row("Bob", "Bob", "Rent", true, tt.bob),
		})
		if s.Amount != tt.want {
			t.Errorf("alice=%d bob=%d: expected %v, got %v", tt.alice, tt.bob, tt.want, s.Amount)
		}
	}
}

func TestSplitRows(t *testing.T) {
	rows := []domain.NormalizedRow{
		row("Alice", "A", "Groceries", true, 1),
		row("Alice", "A", domain.UncategorizedCategory, true, 2),
		row("Alice", "A", "Groceries", false, 3),
		row("Alice", "A", domain.UncategorizedCategory, false, 4),
	}

	categorized, uncategorized := service.SplitRows(rows)
	if len(categorized) != 1 || categorized[0].Milliunits != 1 {
		t.Errorf("unexpected categorized rows: %+v", categorized)
	}
	if len(uncategorized) != 3 {
		t.Errorf("expected 3 uncategorized rows, got %d", len(uncategorized))
	}
}

func TestAccountTotals(t *testing.T) {
	rows := []domain.NormalizedRow{
		row("Bob", "Visa", domain.UncategorizedCategory, true, -1500),
		row("Alice", "Checking", "Rent", false, -2500),
		row("Bob", "Visa", domain.UncategorizedCategory, true, -500),
	}

	totals := service.AccountTotals(rows)
	if len(totals) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(totals))
	}
	if totals[0].AccountName != "Checking" || totals[0].Total != -2.5 {
		t.Errorf("unexpected first total: %+v", totals[0])
	}
	if totals[1].AccountName != "Visa" || totals[1].Milliunits != -2000 {
		t.Errorf("unexpected second total: %+v", totals[1])
	}
}
