// Package insights produces spending analysis: AI-written savings
// suggestions and period-over-period reports. Aggregates and change
// percentages are computed locally; the model only turns numbers into prose.
package insights

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/expense-ingest/internal/expense"
)

// Model is the text-generation capability. *extract.Gemini and test fakes
// satisfy it.
type Model interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// CategoryTotal is one category's share of a period's spending.
type CategoryTotal struct {
	Category expense.Category `json:"category"`
	Total    decimal.Decimal  `json:"total"`
}

// Change is one category's movement between two periods. Percent is nil when
// the previous period had no spending in the category, since there is no base
// to compare against.
type Change struct {
	Category expense.Category `json:"category"`
	Current  decimal.Decimal  `json:"current"`
	Previous decimal.Decimal  `json:"previous"`
	Percent  *decimal.Decimal `json:"percent,omitempty"`
}

// Report is a period-over-period analysis.
type Report struct {
	CurrentTotal  decimal.Decimal `json:"currentTotal"`
	PreviousTotal decimal.Decimal `json:"previousTotal"`
	Changes       []Change        `json:"changes"`
	Summary       string          `json:"summary,omitempty"`
}

// Service computes insights. model may be nil, in which case reports carry
// numbers only and suggestions fail with a configuration error.
type Service struct {
	model Model
	log   zerolog.Logger
}

// NewService wires the insight generator.
func NewService(model Model, log zerolog.Logger) *Service {
	return &Service{model: model, log: log}
}

// Totals sums spending per category, largest first. Categories with no
// spending are omitted.
func Totals(expenses []expense.Expense) []CategoryTotal {
	byCategory := map[expense.Category]decimal.Decimal{}
	for _, e := range expenses {
		byCategory[e.Category] = byCategory[e.Category].Add(e.Amount)
	}

	totals := make([]CategoryTotal, 0, len(byCategory))
	for category, total := range byCategory {
		totals = append(totals, CategoryTotal{Category: category, Total: total})
	}
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].Total.Equal(totals[j].Total) {
			return totals[i].Category < totals[j].Category
		}
		return totals[i].Total.GreaterThan(totals[j].Total)
	})
	return totals
}

// Sum totals all spending in the period.
func Sum(expenses []expense.Expense) decimal.Decimal {
	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}

// Compare computes per-category movement from previous to current. The
// percentage is rounded to one decimal place.
func Compare(current, previous []expense.Expense) []Change {
	currentTotals := map[expense.Category]decimal.Decimal{}
	for _, t := range Totals(current) {
		currentTotals[t.Category] = t.Total
	}
	previousTotals := map[expense.Category]decimal.Decimal{}
	for _, t := range Totals(previous) {
		previousTotals[t.Category] = t.Total
	}

	var changes []Change
	for _, category := range expense.Categories() {
		cur, inCurrent := currentTotals[category]
		prev, inPrevious := previousTotals[category]
		if !inCurrent && !inPrevious {
			continue
		}
		change := Change{Category: category, Current: cur, Previous: prev}
		if prev.IsPositive() {
			pct := cur.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100)).Round(1)
			change.Percent = &pct
		}
		changes = append(changes, change)
	}
	return changes
}

// Report builds the period-over-period report. The AI summary is best-effort:
// if the model call fails, the numeric report is still returned and the
// failure only logged.
func (s *Service) Report(ctx context.Context, current, previous []expense.Expense) (Report, error) {
	report := Report{
		CurrentTotal:  Sum(current),
		PreviousTotal: Sum(previous),
		Changes:       Compare(current, previous),
	}
	if s.model == nil {
		return report, nil
	}

	summary, err := s.model.GenerateText(ctx, reportPrompt(report))
	if err != nil {
		s.log.Warn().Err(err).Msg("report summary generation failed")
		return report, nil
	}
	report.Summary = strings.TrimSpace(summary)
	return report, nil
}

// SavingsSuggestions asks the model for concrete savings advice grounded in
// the category totals.
func (s *Service) SavingsSuggestions(ctx context.Context, expenses []expense.Expense) (string, error) {
	if s.model == nil {
		return "", fmt.Errorf("insights require the AI capability, which is not configured")
	}
	if len(expenses) == 0 {
		return "", fmt.Errorf("no expenses to analyze")
	}

	suggestions, err := s.model.GenerateText(ctx, suggestionsPrompt(expenses))
	if err != nil {
		return "", fmt.Errorf("generate savings suggestions: %w", err)
	}
	return strings.TrimSpace(suggestions), nil
}

func suggestionsPrompt(expenses []expense.Expense) string {
	var b strings.Builder
	b.WriteString("You are a personal finance assistant. Based on the spending breakdown below, ")
	b.WriteString("give 3 short, concrete suggestions for reducing spending. Plain text, one suggestion per line.\n\n")
	fmt.Fprintf(&b, "Total spent: %s\n", Sum(expenses))
	for _, t := range Totals(expenses) {
		fmt.Fprintf(&b, "- %s: %s\n", t.Category, t.Total)
	}
	return b.String()
}

func reportPrompt(r Report) string {
	var b strings.Builder
	b.WriteString("Summarize this spending comparison in 2-3 plain sentences for the user. ")
	b.WriteString("Mention the biggest movers. Do not invent numbers.\n\n")
	fmt.Fprintf(&b, "Current period total: %s\nPrevious period total: %s\n", r.CurrentTotal, r.PreviousTotal)
	for _, c := range r.Changes {
		if c.Percent != nil {
			fmt.Fprintf(&b, "- %s: %s (was %s, %s%%)\n", c.Category, c.Current, c.Previous, c.Percent)
		} else {
			fmt.Fprintf(&b, "- %s: %s (new this period)\n", c.Category, c.Current)
		}
	}
	return b.String()
}
