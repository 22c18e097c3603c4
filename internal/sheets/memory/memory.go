package memory

import (
	"context"
	"sync"

	"aidflow/internal/core"
	ports "aidflow/internal/sheets"
)

// Source is an in-memory stand-in for the spreadsheet adapters, used in
// tests and local development.
type Source struct {
	mu           sync.RWMutex
	transactions []core.TransactionRecord
	budgets      []core.BudgetRecord
}

var (
	_ ports.TransactionSource = (*Source)(nil)
	_ ports.BudgetSource      = (*Source)(nil)
)

func New() *Source {
	return &Source{}
}

func (s *Source) AddTransactions(records ...core.TransactionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = append(s.transactions, records...)
}

func (s *Source) AddBudgets(records ...core.BudgetRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgets = append(s.budgets, records...)
}

func (s *Source) ListTransactionRows(ctx context.Context) ([]core.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.TransactionRecord, len(s.transactions))
	copy(out, s.transactions)
	return out, nil
}

func (s *Source) ListBudgetRows(ctx context.Context) ([]core.BudgetRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.BudgetRecord, len(s.budgets))
	copy(out, s.budgets)
	return out, nil
}
