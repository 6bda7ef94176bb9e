package dedup

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/expense-ingest/internal/expense"
)

func day(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	t = expense.MiddayUTC(t)
	return &t
}

func amt(s string) *decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return &d
}

func stored(utr, pm, dateStr, amount, merchant string) expense.Expense {
	return expense.Expense{
		ID:            "x",
		Amount:        *amt(amount),
		Date:          *day(dateStr),
		Merchant:      merchant,
		UTR:           utr,
		PaymentMethod: pm,
	}
}

func TestCheckUTRRule(t *testing.T) {
	d := NewDetector([]expense.Expense{
		stored("UTR1", "UPI", "2024-03-01", "100", "Cafe"),
	}, Options{})

	// Same reference pair matches even with a different amount and day.
	res := d.Check(expense.Candidate{
		Amount: amt("999"), Date: day("2024-06-15"), Merchant: "Somewhere Else",
		UTR: "UTR1", PaymentMethod: "UPI",
	})
	if !res.IsDuplicate || res.MatchedAgainst != MatchStore {
		t.Errorf("Expected store duplicate by UTR, got %+v", res)
	}

	// Same UTR but a different payment method is not a reference match, and
	// the composite fields differ too.
	res = d.Check(expense.Candidate{
		Amount: amt("999"), Date: day("2024-06-15"), Merchant: "Somewhere Else",
		UTR: "UTR1", PaymentMethod: "Card",
	})
	if res.IsDuplicate {
		t.Errorf("Expected unique for mismatched payment method, got %+v", res)
	}
}

func TestCheckCompositeRule(t *testing.T) {
	d := NewDetector([]expense.Expense{
		stored("", "", "2024-03-01", "100.00", "Cafe Coffee"),
	}, Options{})

	tests := []struct {
		name string
		c    expense.Candidate
		dup  bool
	}{
		{
			"exact match",
			expense.Candidate{Amount: amt("100.00"), Date: day("2024-03-01"), Merchant: "Cafe Coffee"},
			true,
		},
		{
			"merchant case and spacing ignored",
			expense.Candidate{Amount: amt("100.00"), Date: day("2024-03-01"), Merchant: "  CAFE COFFEE "},
			true,
		},
		{
			"amount within epsilon",
			expense.Candidate{Amount: amt("100.009"), Date: day("2024-03-01"), Merchant: "Cafe Coffee"},
			true,
		},
		{
			"amount outside epsilon",
			expense.Candidate{Amount: amt("100.02"), Date: day("2024-03-01"), Merchant: "Cafe Coffee"},
			false,
		},
		{
			"different day",
			expense.Candidate{Amount: amt("100.00"), Date: day("2024-03-02"), Merchant: "Cafe Coffee"},
			false,
		},
		{
			"different merchant",
			expense.Candidate{Amount: amt("100.00"), Date: day("2024-03-01"), Merchant: "Cafe Mocha"},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := d.Check(tt.c)
			if res.IsDuplicate != tt.dup {
				t.Errorf("Check(%+v).IsDuplicate = %v, want %v", tt.c, res.IsDuplicate, tt.dup)
			}
		})
	}
}

func TestCheckCustomEpsilon(t *testing.T) {
	d := NewDetector([]expense.Expense{
		stored("", "", "2024-03-01", "100.00", "Cafe"),
	}, Options{AmountEpsilon: decimal.NewFromFloat(0.5)})

	res := d.Check(expense.Candidate{Amount: amt("100.40"), Date: day("2024-03-01"), Merchant: "Cafe"})
	if !res.IsDuplicate {
		t.Error("Expected duplicate within widened epsilon")
	}
}

func TestCheckInBatch(t *testing.T) {
	d := NewDetector(nil, Options{})

	first := expense.Candidate{Amount: amt("50"), Date: day("2024-03-01"), Merchant: "Cafe"}
	if res := d.Check(first); res.IsDuplicate {
		t.Fatalf("First candidate should be unique, got %+v", res)
	}
	d.Accept(first)

	res := d.Check(expense.Candidate{Amount: amt("50"), Date: day("2024-03-01"), Merchant: "cafe"})
	if !res.IsDuplicate || res.MatchedAgainst != MatchBatch {
		t.Errorf("Expected batch duplicate, got %+v", res)
	}
}

func TestStoreMatchTakesPrecedenceOverBatch(t *testing.T) {
	d := NewDetector([]expense.Expense{
		stored("", "", "2024-03-01", "50", "Cafe"),
	}, Options{})

	c := expense.Candidate{Amount: amt("50"), Date: day("2024-03-01"), Merchant: "Cafe"}
	d.Accept(c)

	if res := d.Check(c); res.MatchedAgainst != MatchStore {
		t.Errorf("MatchedAgainst = %q, want %q", res.MatchedAgainst, MatchStore)
	}
}

func TestCheckUnderivableKey(t *testing.T) {
	d := NewDetector([]expense.Expense{
		stored("", "", "2024-03-01", "50", "Cafe"),
	}, Options{})

	// No reference pair and no complete composite: treated as unique.
	res := d.Check(expense.Candidate{Amount: amt("50"), Date: day("2024-03-01")})
	if res.IsDuplicate {
		t.Errorf("Expected unique for underivable key, got %+v", res)
	}
}

func TestCheckDoesNotMutateState(t *testing.T) {
	d := NewDetector(nil, Options{})
	c := expense.Candidate{Amount: amt("50"), Date: day("2024-03-01"), Merchant: "Cafe"}

	// Checking twice without Accept must stay unique both times.
	if d.Check(c).IsDuplicate || d.Check(c).IsDuplicate {
		t.Error("Check must not register the candidate")
	}
}
