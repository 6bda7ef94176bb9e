package expense

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Expense is a committed, persisted expense record.
//
// Invariants: Amount > 0; ID is assigned once and never reused; Date is always
// anchored at 12:00:00 UTC of the intended calendar day and serializes as an
// ISO-8601 timestamp.
type Expense struct {
	ID            string          `json:"id"`
	Amount        decimal.Decimal `json:"amount"`
	Category      Category        `json:"category"`
	Date          time.Time       `json:"date"`
	Merchant      string          `json:"merchant"`
	Notes         string          `json:"notes"`
	ReceiptImage  string          `json:"receiptImage,omitempty"`
	UTR           string          `json:"utr,omitempty"`
	PaymentMethod string          `json:"paymentMethod,omitempty"`
}

// Candidate is a partial expense extracted from an external source, not yet
// committed. Any field may be absent: nil for Amount and Date, empty string
// for the rest. A candidate missing amount, date, or merchant cannot be
// imported.
type Candidate struct {
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	Category      Category         `json:"category,omitempty"`
	Date          *time.Time       `json:"date,omitempty"`
	Merchant      string           `json:"merchant,omitempty"`
	Notes         string           `json:"notes,omitempty"`
	UTR           string           `json:"utr,omitempty"`
	PaymentMethod string           `json:"paymentMethod,omitempty"`
	ReceiptImage  string           `json:"receiptImage,omitempty"`
}

// Importable reports whether the candidate carries the fields required for
// import: a positive amount, a date, and a merchant.
func (c Candidate) Importable() bool {
	return c.Amount != nil && c.Amount.IsPositive() && c.Date != nil && c.Merchant != ""
}

// MissingFieldReason returns a human-readable reason the candidate cannot be
// imported, or "" when it can.
func (c Candidate) MissingFieldReason() string {
	switch {
	case c.Amount == nil:
		return "missing amount"
	case !c.Amount.IsPositive():
		return "amount must be greater than zero"
	case c.Date == nil:
		return "missing or unreadable date"
	case c.Merchant == "":
		return "missing merchant"
	}
	return ""
}

// New validates and builds a persisted Expense from explicit field values,
// assigning a fresh ID and canonicalizing the date.
func New(amount decimal.Decimal, category Category, day time.Time, merchant, notes string) (Expense, error) {
	if !amount.IsPositive() {
		return Expense{}, fmt.Errorf("expense amount must be positive, got %s", amount)
	}
	if !category.IsValid() {
		category = CategoryOther
	}
	return Expense{
		ID:       uuid.NewString(),
		Amount:   amount,
		Category: category,
		Date:     MiddayUTC(day),
		Merchant: merchant,
		Notes:    notes,
	}, nil
}

// SortByDateDesc orders expenses newest first, the order the history views
// expect and the store persists.
func SortByDateDesc(expenses []Expense) {
	sort.SliceStable(expenses, func(i, j int) bool {
		return expenses[i].Date.After(expenses[j].Date)
	})
}
