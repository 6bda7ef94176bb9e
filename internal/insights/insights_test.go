package insights

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/expense-ingest/internal/expense"
)

// fakeModel implements Model with a function field.
type fakeModel struct {
	fn func(ctx context.Context, prompt string) (string, error)
}

func (f *fakeModel) GenerateText(ctx context.Context, prompt string) (string, error) {
	return f.fn(ctx, prompt)
}

func spent(t *testing.T, amount string, category expense.Category) expense.Expense {
	t.Helper()
	a, err := decimal.NewFromString(amount)
	if err != nil {
		t.Fatal(err)
	}
	e, err := expense.New(a, category, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "Somewhere", "")
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestTotals(t *testing.T) {
	expenses := []expense.Expense{
		spent(t, "10", expense.CategoryFood),
		spent(t, "25", expense.CategoryFood),
		spent(t, "5", expense.CategoryTransport),
	}

	totals := Totals(expenses)
	if len(totals) != 2 {
		t.Fatalf("Expected 2 categories, got %d", len(totals))
	}
	// Largest first.
	if totals[0].Category != expense.CategoryFood || !totals[0].Total.Equal(decimal.NewFromInt(35)) {
		t.Errorf("totals[0] = %+v, want Food 35", totals[0])
	}
	if totals[1].Category != expense.CategoryTransport || !totals[1].Total.Equal(decimal.NewFromInt(5)) {
		t.Errorf("totals[1] = %+v, want Transport 5", totals[1])
	}
}

func TestCompare(t *testing.T) {
	current := []expense.Expense{
		spent(t, "150", expense.CategoryFood),
		spent(t, "30", expense.CategoryShopping),
	}
	previous := []expense.Expense{
		spent(t, "100", expense.CategoryFood),
	}

	changes := Compare(current, previous)
	if len(changes) != 2 {
		t.Fatalf("Expected 2 changes, got %d", len(changes))
	}

	food := changes[0]
	if food.Category != expense.CategoryFood {
		t.Fatalf("changes[0] = %s, want Food (display order)", food.Category)
	}
	if food.Percent == nil || !food.Percent.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Food percent = %v, want 50", food.Percent)
	}

	shopping := changes[1]
	if shopping.Category != expense.CategoryShopping {
		t.Fatalf("changes[1] = %s, want Shopping", shopping.Category)
	}
	if shopping.Percent != nil {
		t.Errorf("Shopping percent = %v, want nil for a new category", shopping.Percent)
	}
}

func TestReportComputesLocallyAndAsksModelForProse(t *testing.T) {
	var seenPrompt string
	model := &fakeModel{fn: func(ctx context.Context, prompt string) (string, error) {
		seenPrompt = prompt
		return "  Spending went up, mostly on food.  ", nil
	}}
	s := NewService(model, zerolog.Nop())

	current := []expense.Expense{spent(t, "150", expense.CategoryFood)}
	previous := []expense.Expense{spent(t, "100", expense.CategoryFood)}

	report, err := s.Report(context.Background(), current, previous)
	if err != nil {
		t.Fatalf("Report returned error: %v", err)
	}
	if !report.CurrentTotal.Equal(decimal.NewFromInt(150)) || !report.PreviousTotal.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Totals = %s/%s, want 150/100", report.CurrentTotal, report.PreviousTotal)
	}
	if report.Summary != "Spending went up, mostly on food." {
		t.Errorf("Summary = %q, want trimmed model output", report.Summary)
	}
	// The model must receive the numbers, not compute them.
	if !strings.Contains(seenPrompt, "150") || !strings.Contains(seenPrompt, "50%") {
		t.Errorf("Prompt missing computed figures: %q", seenPrompt)
	}
}

func TestReportSurvivesModelFailure(t *testing.T) {
	model := &fakeModel{fn: func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("model down")
	}}
	s := NewService(model, zerolog.Nop())

	report, err := s.Report(context.Background(), []expense.Expense{spent(t, "10", expense.CategoryFood)}, nil)
	if err != nil {
		t.Fatalf("Report returned error: %v", err)
	}
	if report.Summary != "" {
		t.Errorf("Summary = %q, want empty on model failure", report.Summary)
	}
	if !report.CurrentTotal.Equal(decimal.NewFromInt(10)) {
		t.Errorf("CurrentTotal = %s, want 10", report.CurrentTotal)
	}
}

func TestReportWithoutModel(t *testing.T) {
	s := NewService(nil, zerolog.Nop())

	report, err := s.Report(context.Background(), []expense.Expense{spent(t, "10", expense.CategoryFood)}, nil)
	if err != nil {
		t.Fatalf("Report returned error: %v", err)
	}
	if report.Summary != "" {
		t.Error("Expected no summary without a model")
	}
}

func TestSavingsSuggestions(t *testing.T) {
	model := &fakeModel{fn: func(ctx context.Context, prompt string) (string, error) {
		if !strings.Contains(prompt, "Food") {
			t.Errorf("Prompt missing category breakdown: %q", prompt)
		}
		return "Cook at home more often.", nil
	}}
	s := NewService(model, zerolog.Nop())

	got, err := s.SavingsSuggestions(context.Background(), []expense.Expense{spent(t, "100", expense.CategoryFood)})
	if err != nil {
		t.Fatalf("SavingsSuggestions returned error: %v", err)
	}
	if got != "Cook at home more often." {
		t.Errorf("Suggestions = %q", got)
	}
}

func TestSavingsSuggestionsErrors(t *testing.T) {
	s := NewService(nil, zerolog.Nop())
	if _, err := s.SavingsSuggestions(context.Background(), []expense.Expense{spent(t, "1", expense.CategoryFood)}); err == nil {
		t.Error("Expected configuration error without a model")
	}

	model := &fakeModel{fn: func(ctx context.Context, prompt string) (string, error) {
		return "anything", nil
	}}
	s = NewService(model, zerolog.Nop())
	if _, err := s.SavingsSuggestions(context.Background(), nil); err == nil {
		t.Error("Expected error for empty expense list")
	}
}
