// Package memory provides an in-memory record store used as the default
// backend for local development and as the test double in handler and
// service tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"aidflow/internal/core"
)

type Store struct {
	mu            sync.Mutex
	transactions  []core.TransactionRecord
	budgets       []core.BudgetRecord
	disbursements []core.PlannedDisbursementRecord
	customYears   map[string]core.CustomYearDefinition
}

func New() *Store {
	return &Store{customYears: make(map[string]core.CustomYearDefinition)}
}

// NewWithCalendars seeds the store with custom year definitions, rejecting
// invalid ones up front the same way the persistent store does.
func NewWithCalendars(defs ...core.CustomYearDefinition) (*Store, error) {
	s := New()
	for _, def := range defs {
		if err := s.SaveCustomYear(context.Background(), def); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// AppendTransaction stores the transaction and returns a synthetic ID.
func (s *Store) AppendTransaction(_ context.Context, tx core.TransactionRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.ID == "" {
		tx.ID = fmt.Sprintf("mem-tx:%d", len(s.transactions)+1)
	}
	s.transactions = append(s.transactions, tx)
	return tx.ID, nil
}

// AppendBudget stores the budget and returns a synthetic ID.
func (s *Store) AppendBudget(_ context.Context, b core.BudgetRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == "" {
		b.ID = fmt.Sprintf("mem-b:%d", len(s.budgets)+1)
	}
	s.budgets = append(s.budgets, b)
	return b.ID, nil
}

// AppendPlannedDisbursement stores the planned disbursement and returns a
// synthetic ID.
func (s *Store) AppendPlannedDisbursement(_ context.Context, pd core.PlannedDisbursementRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pd.ID == "" {
		pd.ID = fmt.Sprintf("mem-pd:%d", len(s.disbursements)+1)
	}
	s.disbursements = append(s.disbursements, pd)
	return pd.ID, nil
}

// ListTransactions returns stored transactions, optionally filtered by
// activity.
func (s *Store) ListTransactions(_ context.Context, activityID string) ([]core.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.TransactionRecord, 0, len(s.transactions))
	for _, tx := range s.transactions {
		if activityID == "" || tx.ActivityID == activityID {
			out = append(out, tx)
		}
	}
	return out, nil
}

// ListBudgets returns stored budgets, optionally filtered by activity.
func (s *Store) ListBudgets(_ context.Context, activityID string) ([]core.BudgetRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.BudgetRecord, 0, len(s.budgets))
	for _, b := range s.budgets {
		if activityID == "" || b.ActivityID == activityID {
			out = append(out, b)
		}
	}
	return out, nil
}

// ListPlannedDisbursements returns stored planned disbursements, optionally
// filtered by activity.
func (s *Store) ListPlannedDisbursements(_ context.Context, activityID string) ([]core.PlannedDisbursementRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.PlannedDisbursementRecord, 0, len(s.disbursements))
	for _, pd := range s.disbursements {
		if activityID == "" || pd.ActivityID == activityID {
			out = append(out, pd)
		}
	}
	return out, nil
}

// ListCustomYears returns definitions sorted by ID for stable output.
func (s *Store) ListCustomYears(_ context.Context) ([]core.CustomYearDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.CustomYearDefinition, 0, len(s.customYears))
	for _, def := range s.customYears {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetCustomYear returns the definition with the given ID.
func (s *Store) GetCustomYear(_ context.Context, id string) (core.CustomYearDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	def, ok := s.customYears[id]
	if !ok {
		return core.CustomYearDefinition{}, fmt.Errorf("custom year %q not found", id)
	}
	return def, nil
}

// SaveCustomYear validates and stores a definition.
func (s *Store) SaveCustomYear(_ context.Context, def core.CustomYearDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customYears[def.ID] = def
	return nil
}

// ListActivityIDs returns the distinct activity IDs present in the store.
func (s *Store) ListActivityIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]struct{}{}
	var out []string
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, tx := range s.transactions {
		add(tx.ActivityID)
	}
	for _, b := range s.budgets {
		add(b.ActivityID)
	}
	for _, pd := range s.disbursements {
		add(pd.ActivityID)
	}
	sort.Strings(out)
	return out, nil
}
