package expense

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNew(t *testing.T) {
	day := time.Date(2024, 3, 1, 18, 45, 0, 0, time.UTC)

	e, err := New(decimal.NewFromFloat(45.00), CategoryFood, day, "Cafe", "lunch")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if e.ID == "" {
		t.Error("Expected a generated ID")
	}
	if !e.Amount.Equal(decimal.NewFromFloat(45.00)) {
		t.Errorf("Amount = %s, want 45", e.Amount)
	}
	if e.Date.Hour() != 12 || DayKey(e.Date) != "2024-03-01" {
		t.Errorf("Date not canonicalized: %s", e.Date)
	}
}

func TestNewRejectsNonPositiveAmount(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	if _, err := New(decimal.Zero, CategoryFood, day, "Cafe", ""); err == nil {
		t.Error("Expected error for zero amount")
	}
	if _, err := New(decimal.NewFromInt(-5), CategoryFood, day, "Cafe", ""); err == nil {
		t.Error("Expected error for negative amount")
	}
}

func TestNewSubstitutesInvalidCategory(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	e, err := New(decimal.NewFromInt(10), Category("Rocket Fuel"), day, "Cafe", "")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if e.Category != CategoryOther {
		t.Errorf("Category = %q, want %q", e.Category, CategoryOther)
	}
}

func TestMissingFieldReason(t *testing.T) {
	amount := decimal.NewFromInt(10)
	zero := decimal.Zero
	day := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		c    Candidate
		want string
	}{
		{"complete", Candidate{Amount: &amount, Date: &day, Merchant: "Cafe"}, ""},
		{"no amount", Candidate{Date: &day, Merchant: "Cafe"}, "missing amount"},
		{"zero amount", Candidate{Amount: &zero, Date: &day, Merchant: "Cafe"}, "amount must be greater than zero"},
		{"no date", Candidate{Amount: &amount, Merchant: "Cafe"}, "missing or unreadable date"},
		{"no merchant", Candidate{Amount: &amount, Date: &day}, "missing merchant"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.MissingFieldReason(); got != tt.want {
				t.Errorf("MissingFieldReason() = %q, want %q", got, tt.want)
			}
			if (tt.want == "") != tt.c.Importable() {
				t.Errorf("Importable() disagrees with MissingFieldReason()")
			}
		})
	}
}

func TestSortByDateDesc(t *testing.T) {
	older := Expense{ID: "a", Date: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	newer := Expense{ID: "b", Date: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	middle := Expense{ID: "c", Date: time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)}

	expenses := []Expense{older, newer, middle}
	SortByDateDesc(expenses)

	if expenses[0].ID != "b" || expenses[1].ID != "c" || expenses[2].ID != "a" {
		t.Errorf("Unexpected order: %s %s %s", expenses[0].ID, expenses[1].ID, expenses[2].ID)
	}
}
