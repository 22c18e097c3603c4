package data

import (
	"context"

	"aidflow/internal/core"
)

// Ports for outbound adapters.
type (
	// RecordWriter persists financial records from the write path and the
	// spreadsheet importer.
	RecordWriter interface {
		AppendTransaction(ctx context.Context, tx core.TransactionRecord) (id string, err error)
		AppendBudget(ctx context.Context, b core.BudgetRecord) (id string, err error)
		AppendPlannedDisbursement(ctx context.Context, pd core.PlannedDisbursementRecord) (id string, err error)
	}

	// RecordReader supplies the raw rows the allocation engine runs over.
	// An empty activityID means all activities.
	RecordReader interface {
		ListTransactions(ctx context.Context, activityID string) ([]core.TransactionRecord, error)
		ListBudgets(ctx context.Context, activityID string) ([]core.BudgetRecord, error)
		ListPlannedDisbursements(ctx context.Context, activityID string) ([]core.PlannedDisbursementRecord, error)
	}

	// CalendarStore holds the site-configurable custom year definitions,
	// persisted configuration fetched once per session by dashboards.
	CalendarStore interface {
		ListCustomYears(ctx context.Context) ([]core.CustomYearDefinition, error)
		GetCustomYear(ctx context.Context, id string) (core.CustomYearDefinition, error)
		SaveCustomYear(ctx context.Context, def core.CustomYearDefinition) error
	}

	// ActivityLister enumerates activity IDs, used by the worker to refresh
	// materialized series per activity.
	ActivityLister interface {
		ListActivityIDs(ctx context.Context) ([]string, error)
	}
)
