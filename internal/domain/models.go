// Package domain defines the core entities of the shared-expense report.
// These models are independent of the budgeting API and the delivery
// channels, and represent the canonical data flowing through one run.
package domain

import "time"

// DateLayout is the wire format of dates in the budgeting API and in config.
const DateLayout = "2006-01-02"

// UncategorizedCategory is the category name the budgeting service assigns
// to transactions nobody has categorized yet.
const UncategorizedCategory = "Uncategorized"

// ============================================================
// Reporting window
// ============================================================

// Period is a named reporting window.
type Period string

const (
	PeriodLastMonth Period = "last_month"
	PeriodLastWeek  Period = "last_week"
)

// WindowIntent is the configured way of choosing a reporting window.
// An explicit Start/End pair always wins over Period.
type WindowIntent struct {
	Period Period
	Start  *time.Time
	End    *time.Time
}

// DateWindow is an inclusive range of calendar dates (UTC midnight).
type DateWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether d falls within [Start, End].
func (w DateWindow) Contains(d time.Time) bool {
	return !d.Before(w.Start) && !d.After(w.End)
}

// Key identifies the window for caching and request dedup.
func (w DateWindow) Key() string {
	return w.Start.Format(DateLayout) + ".." + w.End.Format(DateLayout)
}

// ============================================================
// Categories
// ============================================================

// Category is a single budget category.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CategoryGroup is a named group of categories, as returned by the source.
type CategoryGroup struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Hidden     bool       `json:"hidden"`
	Deleted    bool       `json:"deleted"`
	Categories []Category `json:"categories"`
}

// CategoryShareMap maps a category id to whether it is a shared expense.
type CategoryShareMap map[string]bool

// Lookup returns the shared flag and whether the category is known at all.
func (m CategoryShareMap) Lookup(categoryID string) (shared, known bool) {
	shared, known = m[categoryID]
	return shared, known
}

// ============================================================
// Transactions
// ============================================================

// RawTransaction is a transaction as received from the budgeting API.
// Pointer fields are required by the normalizer; a nil value means the
// source omitted the field. Nullable string fields use *string as well.
type RawTransaction struct {
	ID              string              `json:"id"`
	Date            *string             `json:"date"`
	AccountName     *string             `json:"account_name"`
	Approved        *bool               `json:"approved"`
	ImportPayeeName *string             `json:"import_payee_name"`
	CategoryID      *string             `json:"category_id"`
	CategoryName    *string             `json:"category_name"`
	Memo            *string             `json:"memo"`
	Amount          *int64              `json:"amount"` // milliunits
	Subtransactions []RawSubtransaction `json:"subtransactions"`
}

// RawSubtransaction is one child of a split transaction.
type RawSubtransaction struct {
	ID           string  `json:"id"`
	CategoryID   *string `json:"category_id"`
	CategoryName *string `json:"category_name"`
	Memo         *string `json:"memo"`
	Amount       *int64  `json:"amount"` // milliunits
}

// AccountHolders are the two identities shared expenses are settled between.
type AccountHolders [2]string

// NormalizedRow is the uniform row model the reporter consumes.
// AccountHolder is empty when no holder matched the account name.
type NormalizedRow struct {
	Date            time.Time `json:"date"`
	AccountName     string    `json:"account_name"`
	AccountHolder   string    `json:"account_holder,omitempty"`
	Approved        bool      `json:"approved"`
	ImportPayeeName string    `json:"import_payee_name"`
	CategoryID      string    `json:"category_id,omitempty"`
	CategoryName    string    `json:"category_name"`
	Memo            string    `json:"memo"`
	Milliunits      int64     `json:"milliunits"`
	Amount          float64   `json:"amount"`
}

// Uncategorized reports whether the row belongs in the uncategorized
// sections: either its category is Uncategorized or it is not approved.
func (r NormalizedRow) Uncategorized() bool {
	return r.CategoryName == UncategorizedCategory || !r.Approved
}

// ============================================================
// Settlement & report
// ============================================================

// HolderTotal is the summed shared spend of one account holder.
type HolderTotal struct {
	Holder     string  `json:"holder"`
	Milliunits int64   `json:"milliunits"`
	Total      float64 `json:"total"`
}

// AccountTotal is the summed uncategorized spend of one account.
type AccountTotal struct {
	AccountName string  `json:"account_name"`
	Milliunits  int64   `json:"milliunits"`
	Total       float64 `json:"total"`
}

// SettlementSummary says who owes whom over the categorized shared rows.
// When Ambiguity is set, Owing/Owed/Amount are empty and the report shows
// the ambiguity message instead of a settlement line.
type SettlementSummary struct {
	Totals    []HolderTotal           `json:"totals"`
	Owing     string                  `json:"owing,omitempty"`
	Owed      string                  `json:"owed,omitempty"`
	Amount    float64                 `json:"amount"`
	Settled   bool                    `json:"settled"`
	Ambiguity *ErrSettlementAmbiguity `json:"-"`
}

// Report is the rendered output of one run.
type Report struct {
	RunID       string            `json:"run_id"`
	Window      DateWindow        `json:"window"`
	Subject     string            `json:"subject"`
	HTML        string            `json:"-"`
	Rows        []NormalizedRow   `json:"-"`
	Summary     SettlementSummary `json:"summary"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// DeliveryReceipt records what a sink did with a report.
type DeliveryReceipt struct {
	Sink      string `json:"sink"`
	MessageID string `json:"message_id,omitempty"`
	Location  string `json:"location,omitempty"`
}
