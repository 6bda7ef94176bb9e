// Package store persists application data as whole named collections, the
// way the original client kept them in browser-local storage. Two backends
// are provided: a JSON file directory and Redis.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ledgerline/expense-ingest/internal/expense"
)

// Collection names.
const (
	CollectionExpenses       = "expenses"
	CollectionSettings       = "settings"
	CollectionMonthlyBudgets = "monthlyBudgets"
)

// Collections is a minimal named-collection byte store. Get returns (nil,
// nil) when the collection has never been written.
type Collections interface {
	Get(ctx context.Context, name string) ([]byte, error)
	Set(ctx context.Context, name string, data []byte) error
}

// Adapter is the durable record keeper the ingestion pipeline consumes:
// whole-collection load and save of the expense list. Implementations
// serialize read-modify-write internally so overlapping import sessions
// cannot lose updates.
type Adapter interface {
	LoadExpenses(ctx context.Context) ([]expense.Expense, error)
	SaveExpenses(ctx context.Context, expenses []expense.Expense) error
}

// Store implements Adapter over any Collections backend, serializing access
// with a single critical section because the collection is read-modify-written
// as a whole rather than appended per record.
type Store struct {
	mu          sync.Mutex
	collections Collections
}

// New wraps a Collections backend in an expense store.
func New(collections Collections) *Store {
	return &Store{collections: collections}
}

// LoadExpenses returns the persisted expense collection, newest first. A
// collection that has never been written yields an empty slice.
func (s *Store) LoadExpenses(ctx context.Context) ([]expense.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

// SaveExpenses replaces the persisted expense collection.
func (s *Store) SaveExpenses(ctx context.Context, expenses []expense.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx, expenses)
}

// Append adds records to the collection under one critical section,
// re-sorting newest first. This is the commit path's read-modify-write.
func (s *Store) Append(ctx context.Context, records ...expense.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.loadLocked(ctx)
	if err != nil {
		return err
	}
	existing = append(existing, records...)
	expense.SortByDateDesc(existing)
	return s.saveLocked(ctx, existing)
}

// Update replaces the record with a matching ID. Unknown IDs are an error.
func (s *Store) Update(ctx context.Context, record expense.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.loadLocked(ctx)
	if err != nil {
		return err
	}
	for i := range existing {
		if existing[i].ID == record.ID {
			existing[i] = record
			expense.SortByDateDesc(existing)
			return s.saveLocked(ctx, existing)
		}
	}
	return fmt.Errorf("expense %s not found", record.ID)
}

// Delete removes the record with the given ID, if present.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.loadLocked(ctx)
	if err != nil {
		return err
	}
	kept := existing[:0]
	for _, e := range existing {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	return s.saveLocked(ctx, kept)
}

func (s *Store) loadLocked(ctx context.Context) ([]expense.Expense, error) {
	data, err := s.collections.Get(ctx, CollectionExpenses)
	if err != nil {
		return nil, fmt.Errorf("load expenses: %w", err)
	}
	if len(data) == 0 {
		return []expense.Expense{}, nil
	}
	var expenses []expense.Expense
	if err := json.Unmarshal(data, &expenses); err != nil {
		return nil, fmt.Errorf("load expenses: corrupt collection: %w", err)
	}
	return expenses, nil
}

func (s *Store) saveLocked(ctx context.Context, expenses []expense.Expense) error {
	if expenses == nil {
		expenses = []expense.Expense{}
	}
	data, err := json.Marshal(expenses)
	if err != nil {
		return fmt.Errorf("save expenses: %w", err)
	}
	if err := s.collections.Set(ctx, CollectionExpenses, data); err != nil {
		return fmt.Errorf("save expenses: %w", err)
	}
	return nil
}
