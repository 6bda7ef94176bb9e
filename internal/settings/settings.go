// Package settings holds user preferences: budgets, default category and
// payment method, and display currency. Each concern is exposed through a
// narrow capability interface instead of one monolithic shared object, so a
// component that needs the currency cannot touch the budgets.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/expense-ingest/internal/expense"
	"github.com/ledgerline/expense-ingest/internal/store"
)

// Currency is the display currency selection.
type Currency struct {
	Code   string `json:"code"`
	Symbol string `json:"symbol"`
}

// Settings is the persisted preference set.
type Settings struct {
	DefaultBudget        decimal.Decimal  `json:"defaultBudget"`
	DefaultCategory      expense.Category `json:"defaultCategory"`
	DefaultPaymentMethod string           `json:"defaultPaymentMethod"`
	Currency             Currency         `json:"currency"`
}

// Defaults returns the settings used before the user has saved any.
func Defaults() Settings {
	return Settings{
		DefaultBudget:   decimal.NewFromInt(2000),
		DefaultCategory: expense.CategoryFood,
		Currency:        Currency{Code: "INR", Symbol: "₹"},
	}
}

// BudgetSettings is the budget capability consumed by reporting components.
type BudgetSettings interface {
	BudgetForMonth(ctx context.Context, month time.Time) (decimal.Decimal, error)
	SetBudgetForMonth(ctx context.Context, month time.Time, amount decimal.Decimal) error
}

// CurrencySettings is the currency capability.
type CurrencySettings interface {
	Currency(ctx context.Context) (Currency, error)
	SetCurrency(ctx context.Context, c Currency) error
}

// Service persists settings and per-month budgets in the collection store.
type Service struct {
	mu          sync.Mutex
	collections store.Collections
}

// NewService wraps a collection backend.
func NewService(collections store.Collections) *Service {
	return &Service{collections: collections}
}

// Load returns the stored settings, falling back to defaults when nothing
// has been saved or the stored category is no longer valid.
func (s *Service) Load(ctx context.Context) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

func (s *Service) loadLocked(ctx context.Context) (Settings, error) {
	settings := Defaults()
	data, err := s.collections.Get(ctx, store.CollectionSettings)
	if err != nil {
		return settings, fmt.Errorf("load settings: %w", err)
	}
	if len(data) == 0 {
		return settings, nil
	}
	if err := json.Unmarshal(data, &settings); err != nil {
		return Defaults(), fmt.Errorf("load settings: corrupt collection: %w", err)
	}
	if !settings.DefaultCategory.IsValid() {
		settings.DefaultCategory = Defaults().DefaultCategory
	}
	if !settings.DefaultBudget.IsPositive() {
		settings.DefaultBudget = Defaults().DefaultBudget
	}
	return settings, nil
}

// Save replaces the stored settings.
func (s *Service) Save(ctx context.Context, settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !settings.DefaultCategory.IsValid() {
		return fmt.Errorf("save settings: invalid default category %q", settings.DefaultCategory)
	}
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return s.collections.Set(ctx, store.CollectionSettings, data)
}

// monthKey formats a month as the budget map key.
func monthKey(month time.Time) string {
	return month.UTC().Format("2006-01")
}

// BudgetForMonth returns the explicit budget for the month, or the default
// budget when none is set.
func (s *Service) BudgetForMonth(ctx context.Context, month time.Time) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	budgets, err := s.loadBudgetsLocked(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	if amount, ok := budgets[monthKey(month)]; ok && amount.IsPositive() {
		return amount, nil
	}
	settings, err := s.loadLocked(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return settings.DefaultBudget, nil
}

// SetBudgetForMonth stores an explicit budget for one month.
func (s *Service) SetBudgetForMonth(ctx context.Context, month time.Time, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !amount.IsPositive() {
		return fmt.Errorf("set budget: amount must be positive, got %s", amount)
	}
	budgets, err := s.loadBudgetsLocked(ctx)
	if err != nil {
		return err
	}
	budgets[monthKey(month)] = amount
	data, err := json.Marshal(budgets)
	if err != nil {
		return fmt.Errorf("save budgets: %w", err)
	}
	return s.collections.Set(ctx, store.CollectionMonthlyBudgets, data)
}

func (s *Service) loadBudgetsLocked(ctx context.Context) (map[string]decimal.Decimal, error) {
	budgets := map[string]decimal.Decimal{}
	data, err := s.collections.Get(ctx, store.CollectionMonthlyBudgets)
	if err != nil {
		return nil, fmt.Errorf("load budgets: %w", err)
	}
	if len(data) == 0 {
		return budgets, nil
	}
	if err := json.Unmarshal(data, &budgets); err != nil {
		return nil, fmt.Errorf("load budgets: corrupt collection: %w", err)
	}
	return budgets, nil
}

// Currency returns the stored display currency.
func (s *Service) Currency(ctx context.Context) (Currency, error) {
	settings, err := s.Load(ctx)
	if err != nil {
		return Currency{}, err
	}
	return settings.Currency, nil
}

// SetCurrency updates only the currency selection.
func (s *Service) SetCurrency(ctx context.Context, c Currency) error {
	settings, err := s.Load(ctx)
	if err != nil {
		return err
	}
	settings.Currency = c
	return s.Save(ctx, settings)
}

var (
	_ BudgetSettings   = (*Service)(nil)
	_ CurrencySettings = (*Service)(nil)
)
