package services

import (
	"context"
	"fmt"
	"log/slog"

	"aidflow/internal/sheets"
)

// ImportResult summarizes one import run.
type ImportResult struct {
	TransactionsRead     int
	TransactionsImported int
	BudgetsRead          int
	BudgetsImported      int
}

// ImportService pulls partner-reported rows from a spreadsheet source and
// stores them through the record service, so imported rows publish change
// notifications and invalidate memoized series like API writes do.
type ImportService struct {
	transactions sheets.TransactionSource
	budgets      sheets.BudgetSource
	records      *RecordService
}

func NewImportService(transactions sheets.TransactionSource, budgets sheets.BudgetSource, records *RecordService) *ImportService {
	return &ImportService{
		transactions: transactions,
		budgets:      budgets,
		records:      records,
	}
}

// Run imports all transaction and budget rows. Rows that fail to store are
// logged and skipped; a failure to read a sheet aborts the run.
func (s *ImportService) Run(ctx context.Context) (ImportResult, error) {
	var result ImportResult

	txs, err := s.transactions.ListTransactionRows(ctx)
	if err != nil {
		return result, fmt.Errorf("read transaction rows: %w", err)
	}
	result.TransactionsRead = len(txs)

	for _, tx := range txs {
		if _, err := s.records.CreateTransaction(ctx, tx); err != nil {
			slog.ErrorContext(ctx, "Failed to import transaction",
				"activity_id", tx.ActivityID, "error", err)
			continue
		}
		result.TransactionsImported++
	}

	budgets, err := s.budgets.ListBudgetRows(ctx)
	if err != nil {
		return result, fmt.Errorf("read budget rows: %w", err)
	}
	result.BudgetsRead = len(budgets)

	for _, b := range budgets {
		if _, err := s.records.CreateBudget(ctx, b); err != nil {
			slog.ErrorContext(ctx, "Failed to import budget",
				"activity_id", b.ActivityID, "error", err)
			continue
		}
		result.BudgetsImported++
	}

	return result, nil
}
