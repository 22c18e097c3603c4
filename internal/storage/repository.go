package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"aidflow/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository persists financial records, custom year definitions, and
// the materialized yearly series the worker maintains.
type SQLiteRepository struct {
	db *sql.DB
}

// YearlySeriesRow is one materialized point of a per-year series.
type YearlySeriesRow struct {
	CalendarID  string
	RecordKind  string
	Year        int
	Label       string
	Amount      decimal.Decimal
	RefreshedAt time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// AppendTransaction implements data.RecordWriter.
func (r *SQLiteRepository) AppendTransaction(ctx context.Context, tx core.TransactionRecord) (string, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, activity_id, transaction_type, transaction_date,
			period_start, period_end, value, usd_value, currency, flow_type, finance_type, aid_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.ActivityID, tx.TransactionType, tx.TransactionDate.String(),
		tx.PeriodStart.String(), tx.PeriodEnd.String(),
		tx.Value.String(), tx.USDValue.String(), tx.Currency,
		tx.FlowType, tx.FinanceType, tx.AidType)
	if err != nil {
		return "", fmt.Errorf("insert transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", tx.ID,
		"activity_id", tx.ActivityID,
		"transaction_type", tx.TransactionType,
		"currency", tx.Currency)

	return tx.ID, nil
}

// AppendBudget implements data.RecordWriter.
func (r *SQLiteRepository) AppendBudget(ctx context.Context, b core.BudgetRecord) (string, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO budgets (id, activity_id, period_start, period_end, value, usd_value, currency)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.ActivityID, b.PeriodStart.String(), b.PeriodEnd.String(),
		b.Value.String(), b.USDValue.String(), b.Currency)
	if err != nil {
		return "", fmt.Errorf("insert budget: %w", err)
	}

	slog.InfoContext(ctx, "Budget saved",
		"id", b.ID,
		"activity_id", b.ActivityID,
		"period_start", b.PeriodStart.String(),
		"period_end", b.PeriodEnd.String())

	return b.ID, nil
}

// AppendPlannedDisbursement implements data.RecordWriter.
func (r *SQLiteRepository) AppendPlannedDisbursement(ctx context.Context, pd core.PlannedDisbursementRecord) (string, error) {
	if pd.ID == "" {
		pd.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO planned_disbursements (id, activity_id, period_start, period_end, value, usd_value, currency)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		pd.ID, pd.ActivityID, pd.PeriodStart.String(), pd.PeriodEnd.String(),
		pd.Value.String(), pd.USDValue.String(), pd.Currency)
	if err != nil {
		return "", fmt.Errorf("insert planned disbursement: %w", err)
	}

	return pd.ID, nil
}

// ListTransactions implements data.RecordReader.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, activityID string) ([]core.TransactionRecord, error) {
	query := `
		SELECT id, activity_id, transaction_type, transaction_date,
			period_start, period_end, value, usd_value, currency,
			flow_type, finance_type, aid_type
		FROM transactions`
	args := []any{}
	if activityID != "" {
		query += ` WHERE activity_id = ?`
		args = append(args, activityID)
	}
	query += ` ORDER BY transaction_date, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.TransactionRecord
	for rows.Next() {
		var tx core.TransactionRecord
		var txDate, pStart, pEnd, value, usdValue string
		if err := rows.Scan(&tx.ID, &tx.ActivityID, &tx.TransactionType, &txDate,
			&pStart, &pEnd, &value, &usdValue, &tx.Currency,
			&tx.FlowType, &tx.FinanceType, &tx.AidType); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.TransactionDate = core.ParseDate(txDate)
		tx.PeriodStart = core.ParseDate(pStart)
		tx.PeriodEnd = core.ParseDate(pEnd)
		tx.Value = parseAmount(value)
		tx.USDValue = parseAmount(usdValue)
		out = append(out, tx)
	}
	return out, rows.Err()
}

// ListBudgets implements data.RecordReader.
func (r *SQLiteRepository) ListBudgets(ctx context.Context, activityID string) ([]core.BudgetRecord, error) {
	query := `
		SELECT id, activity_id, period_start, period_end, value, usd_value, currency
		FROM budgets`
	args := []any{}
	if activityID != "" {
		query += ` WHERE activity_id = ?`
		args = append(args, activityID)
	}
	query += ` ORDER BY period_start, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.BudgetRecord
	for rows.Next() {
		var b core.BudgetRecord
		var pStart, pEnd, value, usdValue string
		if err := rows.Scan(&b.ID, &b.ActivityID, &pStart, &pEnd, &value, &usdValue, &b.Currency); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		b.PeriodStart = core.ParseDate(pStart)
		b.PeriodEnd = core.ParseDate(pEnd)
		b.Value = parseAmount(value)
		b.USDValue = parseAmount(usdValue)
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListPlannedDisbursements implements data.RecordReader.
func (r *SQLiteRepository) ListPlannedDisbursements(ctx context.Context, activityID string) ([]core.PlannedDisbursementRecord, error) {
	query := `
		SELECT id, activity_id, period_start, period_end, value, usd_value, currency
		FROM planned_disbursements`
	args := []any{}
	if activityID != "" {
		query += ` WHERE activity_id = ?`
		args = append(args, activityID)
	}
	query += ` ORDER BY period_start, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list planned disbursements: %w", err)
	}
	defer rows.Close()

	var out []core.PlannedDisbursementRecord
	for rows.Next() {
		var pd core.PlannedDisbursementRecord
		var pStart, pEnd, value, usdValue string
		if err := rows.Scan(&pd.ID, &pd.ActivityID, &pStart, &pEnd, &value, &usdValue, &pd.Currency); err != nil {
			return nil, fmt.Errorf("scan planned disbursement: %w", err)
		}
		pd.PeriodStart = core.ParseDate(pStart)
		pd.PeriodEnd = core.ParseDate(pEnd)
		pd.Value = parseAmount(value)
		pd.USDValue = parseAmount(usdValue)
		out = append(out, pd)
	}
	return out, rows.Err()
}

// ListCustomYears implements data.CalendarStore.
func (r *SQLiteRepository) ListCustomYears(ctx context.Context) ([]core.CustomYearDefinition, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, start_month, start_day FROM custom_years ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list custom years: %w", err)
	}
	defer rows.Close()

	var out []core.CustomYearDefinition
	for rows.Next() {
		var def core.CustomYearDefinition
		if err := rows.Scan(&def.ID, &def.Name, &def.StartMonth, &def.StartDay); err != nil {
			return nil, fmt.Errorf("scan custom year: %w", err)
		}
		out = append(out, def)
	}
	return out, rows.Err()
}

// GetCustomYear implements data.CalendarStore.
func (r *SQLiteRepository) GetCustomYear(ctx context.Context, id string) (core.CustomYearDefinition, error) {
	var def core.CustomYearDefinition
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, start_month, start_day FROM custom_years WHERE id = ?`, id).
		Scan(&def.ID, &def.Name, &def.StartMonth, &def.StartDay)
	if err != nil {
		return core.CustomYearDefinition{}, fmt.Errorf("get custom year %s: %w", id, err)
	}
	return def, nil
}

// SaveCustomYear implements data.CalendarStore. Definitions are validated
// before they ever reach the table; allocation never sees a bad calendar.
func (r *SQLiteRepository) SaveCustomYear(ctx context.Context, def core.CustomYearDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO custom_years (id, name, start_month, start_day)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name,
			start_month = excluded.start_month, start_day = excluded.start_day`,
		def.ID, def.Name, def.StartMonth, def.StartDay)
	if err != nil {
		return fmt.Errorf("save custom year: %w", err)
	}
	return nil
}

// ListActivityIDs implements data.ActivityLister.
func (r *SQLiteRepository) ListActivityIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT activity_id FROM transactions
		UNION SELECT activity_id FROM budgets
		UNION SELECT activity_id FROM planned_disbursements
		ORDER BY activity_id`)
	if err != nil {
		return nil, fmt.Errorf("list activity ids: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan activity id: %w", err)
		}
		if id != "" {
			out = append(out, id)
		}
	}
	return out, rows.Err()
}

// ReplaceYearlySeries swaps the materialized series for one calendar and
// record kind in a single transaction so readers never see a half-written
// refresh.
func (r *SQLiteRepository) ReplaceYearlySeries(ctx context.Context, calendarID, recordKind string, points []YearlySeriesRow) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin series refresh: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM yearly_series WHERE calendar_id = ? AND record_kind = ?`,
		calendarID, recordKind); err != nil {
		return fmt.Errorf("clear yearly series: %w", err)
	}

	for _, p := range points {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO yearly_series (calendar_id, record_kind, year, label, amount, refreshed_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			calendarID, recordKind, p.Year, p.Label, p.Amount.String(),
			time.Now().UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("insert yearly series point: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit series refresh: %w", err)
	}
	return nil
}

// GetYearlySeries returns the materialized series for one calendar and
// record kind, ascending by year.
func (r *SQLiteRepository) GetYearlySeries(ctx context.Context, calendarID, recordKind string) ([]YearlySeriesRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT calendar_id, record_kind, year, label, amount, refreshed_at
		FROM yearly_series
		WHERE calendar_id = ? AND record_kind = ?
		ORDER BY year`, calendarID, recordKind)
	if err != nil {
		return nil, fmt.Errorf("get yearly series: %w", err)
	}
	defer rows.Close()

	var out []YearlySeriesRow
	for rows.Next() {
		var p YearlySeriesRow
		var amount, refreshedAt string
		if err := rows.Scan(&p.CalendarID, &p.RecordKind, &p.Year, &p.Label, &amount, &refreshedAt); err != nil {
			return nil, fmt.Errorf("scan yearly series point: %w", err)
		}
		p.Amount = parseAmount(amount)
		if t, err := time.Parse(time.RFC3339, refreshedAt); err == nil {
			p.RefreshedAt = t
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// parseAmount reads a stored decimal, defaulting dirty values to zero in
// line with the skip-silently handling of unconvertible records.
func parseAmount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
