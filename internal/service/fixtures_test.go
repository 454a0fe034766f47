package service_test

import "github.com/boddenberg/ynab-shared-report/internal/domain"

func str(s string) *string { return &s }
func amt(m int64) *int64   { return &m }
func flag(b bool) *bool    { return &b }

// plainTx builds an approved, non-split raw transaction.
func plainTx(id, date, account, categoryID, categoryName string, milliunits int64) domain.RawTransaction {
	return domain.RawTransaction{
		ID:              id,
		Date:            str(date),
		AccountName:     str(account),
		Approved:        flag(true),
		ImportPayeeName: str("Payee " + id),
		CategoryID:      str(categoryID),
		CategoryName:    str(categoryName),
		Memo:            str("memo " + id),
		Amount:          amt(milliunits),
	}
}

func sub(id, categoryID, categoryName string, milliunits int64) domain.RawSubtransaction {
	return domain.RawSubtransaction{
		ID:           id,
		CategoryID:   str(categoryID),
		CategoryName: str(categoryName),
		Memo:         str("sub " + id),
		Amount:       amt(milliunits),
	}
}

func row(holder, account, category string, approved bool, milliunits int64) domain.NormalizedRow {
	return domain.NormalizedRow{
		Date:          day(2024, 3, 5),
		AccountName:   account,
		AccountHolder: holder,
		Approved:      approved,
		CategoryName:  category,
		Milliunits:    milliunits,
		Amount:        float64(milliunits) / 1000,
	}
}

var (
	testHolders = domain.AccountHolders{"Alice", "Bob"}
	marchWeek   = domain.DateWindow{Start: day(2024, 3, 4), End: day(2024, 3, 10)}
	testShares  = domain.CategoryShareMap{
		"groceries": true,
		"rent":      true,
		"hobby":     false,
	}
)
