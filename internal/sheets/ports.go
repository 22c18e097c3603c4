package sheets

import (
	"context"

	"aidflow/internal/core"
)

// Ports for inbound spreadsheet adapters. Partners that do not publish
// machine-readable activity files report transactions through a shared
// spreadsheet; the import command pulls rows through these ports.
type (
	TransactionSource interface {
		ListTransactionRows(ctx context.Context) ([]core.TransactionRecord, error)
	}

	BudgetSource interface {
		ListBudgetRows(ctx context.Context) ([]core.BudgetRecord, error)
	}
)
