// Package dedup classifies candidate expenses as duplicates of already
// stored records or of records accepted earlier in the same import batch.
package dedup

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/expense-ingest/internal/expense"
)

// Match locations reported in Result.MatchedAgainst.
const (
	MatchStore = "store"
	MatchBatch = "batch"
)

// Result is the outcome of one duplicate check. MatchedAgainst is empty when
// IsDuplicate is false.
type Result struct {
	IsDuplicate    bool
	MatchedAgainst string
}

// Key is the derived identity of an expense record: the (UTR, payment method)
// pair when both are present, otherwise the (calendar day, amount, normalized
// merchant) composite. Keys are copied by value; the detector never holds a
// reference into another component's records.
type Key struct {
	UTR           string
	PaymentMethod string
	Day           string
	Amount        decimal.Decimal
	Merchant      string
	hasRef        bool
	hasComposite  bool
}

// KeyOf derives the duplicate key for a candidate.
func KeyOf(c expense.Candidate) Key {
	k := Key{
		UTR:           strings.TrimSpace(c.UTR),
		PaymentMethod: strings.TrimSpace(c.PaymentMethod),
		Merchant:      normalizeMerchant(c.Merchant),
	}
	k.hasRef = k.UTR != "" && k.PaymentMethod != ""
	if c.Amount != nil && c.Date != nil && k.Merchant != "" {
		k.Day = expense.DayKey(*c.Date)
		// The amount is kept exact; the epsilon comparison in match handles
		// sub-cent noise. Rounding first would push amounts 0.009 apart into
		// different cents and defeat the tolerance.
		k.Amount = *c.Amount
		k.hasComposite = true
	}
	return k
}

func keyOfExpense(e expense.Expense) Key {
	k := Key{
		UTR:           strings.TrimSpace(e.UTR),
		PaymentMethod: strings.TrimSpace(e.PaymentMethod),
		Day:           expense.DayKey(e.Date),
		Amount:        e.Amount,
		Merchant:      normalizeMerchant(e.Merchant),
	}
	k.hasRef = k.UTR != "" && k.PaymentMethod != ""
	k.hasComposite = k.Merchant != ""
	return k
}

func normalizeMerchant(m string) string {
	return strings.ToLower(strings.TrimSpace(m))
}

// Options tune the matching heuristics. The defaults reflect product
// behavior, not a protocol requirement, which is why they are configurable.
type Options struct {
	// AmountEpsilon is the maximum absolute amount difference still treated
	// as "the same amount" by the composite rule. Zero selects the default
	// of 0.01: amounts within a cent of each other.
	AmountEpsilon decimal.Decimal
}

// Detector classifies candidates against a snapshot of the persisted store
// and a growing set of keys accepted earlier in the current batch. It is not
// safe for concurrent use; the pipeline drives it from a single goroutine.
type Detector struct {
	stored   []Key
	accepted []Key
	epsilon  decimal.Decimal
}

// NewDetector snapshots the stored expenses' keys. The detector keeps copies
// only; later mutation of the store does not affect an open batch.
func NewDetector(stored []expense.Expense, opts Options) *Detector {
	epsilon := opts.AmountEpsilon
	if epsilon.IsZero() {
		epsilon = decimal.New(1, -2) // 0.01
	}
	keys := make([]Key, 0, len(stored))
	for _, e := range stored {
		keys = append(keys, keyOfExpense(e))
	}
	return &Detector{stored: keys, epsilon: epsilon}
}

// Check classifies one candidate. A candidate whose key cannot be derived
// (no UTR/payment-method pair and an incomplete composite) is treated as
// unique. Check never fails and never mutates detector state.
func (d *Detector) Check(c expense.Candidate) Result {
	key := KeyOf(c)
	if !key.hasRef && !key.hasComposite {
		return Result{}
	}
	for _, s := range d.stored {
		if d.match(key, s) {
			return Result{IsDuplicate: true, MatchedAgainst: MatchStore}
		}
	}
	for _, b := range d.accepted {
		if d.match(key, b) {
			return Result{IsDuplicate: true, MatchedAgainst: MatchBatch}
		}
	}
	return Result{}
}

// Accept records a candidate's key so later items in the same batch are
// checked against it. Only items the pipeline has marked accepted belong
// here; pending or rejected items must not be registered.
func (d *Detector) Accept(c expense.Candidate) {
	d.accepted = append(d.accepted, KeyOf(c))
}

// match applies the two-rule equality: identical non-empty (UTR, payment
// method) pairs match regardless of any other field; otherwise same calendar
// day, amounts within epsilon, and equal normalized merchants.
func (d *Detector) match(a, b Key) bool {
	if a.hasRef && b.hasRef && a.UTR == b.UTR && a.PaymentMethod == b.PaymentMethod {
		return true
	}
	if a.hasComposite && b.hasComposite &&
		a.Day == b.Day &&
		a.Amount.Sub(b.Amount).Abs().LessThan(d.epsilon) &&
		a.Merchant == b.Merchant {
		return true
	}
	return false
}
