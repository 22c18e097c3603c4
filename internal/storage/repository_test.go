package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"aidflow/internal/core"
)

func newTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "aidflow.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func amt(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", s, err)
	}
	return d
}

func TestTransactionRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	id, err := repo.AppendTransaction(ctx, core.TransactionRecord{
		ActivityID:      "XM-DAC-41114-PROJECT-1",
		TransactionType: "3",
		TransactionDate: core.NewDate(2023, 5, 10),
		USDValue:        amt(t, "1190.47"),
		Currency:        "USD",
		FlowType:        "10",
	})
	if err != nil {
		t.Fatalf("AppendTransaction() error = %v", err)
	}
	if id == "" {
		t.Fatal("AppendTransaction() returned empty ID")
	}

	got, err := repo.ListTransactions(ctx, "")
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("ListTransactions() returned %d records, want 1", len(got))
	}
	tx := got[0]
	if tx.ID != id {
		t.Errorf("ID = %q, want %q", tx.ID, id)
	}
	if tx.TransactionDate.String() != "2023-05-10" {
		t.Errorf("TransactionDate = %q, want 2023-05-10", tx.TransactionDate.String())
	}
	if !tx.USDValue.Equal(amt(t, "1190.47")) {
		t.Errorf("USDValue = %s, want 1190.47", tx.USDValue)
	}
	if !tx.PeriodStart.IsZero() || !tx.PeriodEnd.IsZero() {
		t.Error("expected empty period on a point transaction")
	}
}

func TestListTransactionsFiltersByActivity(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for _, activity := range []string{"A-1", "A-2", "A-1"} {
		if _, err := repo.AppendTransaction(ctx, core.TransactionRecord{
			ActivityID:      activity,
			TransactionDate: core.NewDate(2023, 1, 1),
			USDValue:        amt(t, "10.00"),
			Currency:        "USD",
		}); err != nil {
			t.Fatalf("AppendTransaction() error = %v", err)
		}
	}

	got, err := repo.ListTransactions(ctx, "A-1")
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("filtered list returned %d records, want 2", len(got))
	}
}

func TestBudgetAndDisbursementRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	if _, err := repo.AppendBudget(ctx, core.BudgetRecord{
		ActivityID:  "A-1",
		PeriodStart: core.NewDate(2024, 1, 1),
		PeriodEnd:   core.NewDate(2024, 12, 31),
		USDValue:    amt(t, "500.00"),
		Currency:    "USD",
	}); err != nil {
		t.Fatalf("AppendBudget() error = %v", err)
	}

	if _, err := repo.AppendPlannedDisbursement(ctx, core.PlannedDisbursementRecord{
		ActivityID:  "A-2",
		PeriodStart: core.NewDate(2024, 6, 1),
		USDValue:    amt(t, "250.00"),
		Currency:    "USD",
	}); err != nil {
		t.Fatalf("AppendPlannedDisbursement() error = %v", err)
	}

	budgets, err := repo.ListBudgets(ctx, "A-1")
	if err != nil {
		t.Fatalf("ListBudgets() error = %v", err)
	}
	if len(budgets) != 1 || !budgets[0].USDValue.Equal(amt(t, "500.00")) {
		t.Errorf("ListBudgets() = %+v, want one 500.00 budget", budgets)
	}

	pds, err := repo.ListPlannedDisbursements(ctx, "A-2")
	if err != nil {
		t.Fatalf("ListPlannedDisbursements() error = %v", err)
	}
	if len(pds) != 1 {
		t.Fatalf("ListPlannedDisbursements() returned %d records, want 1", len(pds))
	}
	if !pds[0].PeriodEnd.IsZero() {
		t.Error("expected missing period end to round-trip as zero Date")
	}
}

func TestCustomYearSaveAndList(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	def := core.CustomYearDefinition{ID: "fy-apr", Name: "April fiscal year", StartMonth: 4, StartDay: 1}
	if err := repo.SaveCustomYear(ctx, def); err != nil {
		t.Fatalf("SaveCustomYear() error = %v", err)
	}

	// Saving again with new values upserts rather than duplicating.
	def.Name = "FY starting April"
	if err := repo.SaveCustomYear(ctx, def); err != nil {
		t.Fatalf("SaveCustomYear() upsert error = %v", err)
	}

	defs, err := repo.ListCustomYears(ctx)
	if err != nil {
		t.Fatalf("ListCustomYears() error = %v", err)
	}
	if len(defs) != 1 || defs[0].Name != "FY starting April" {
		t.Errorf("ListCustomYears() = %+v, want single updated definition", defs)
	}

	got, err := repo.GetCustomYear(ctx, "fy-apr")
	if err != nil {
		t.Fatalf("GetCustomYear() error = %v", err)
	}
	if got.StartMonth != 4 || got.StartDay != 1 {
		t.Errorf("GetCustomYear() = %+v, want month 4 day 1", got)
	}
}

func TestSaveCustomYearRejectsInvalidDefinition(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	if err := repo.SaveCustomYear(ctx, core.CustomYearDefinition{ID: "bad", StartMonth: 13, StartDay: 1}); err == nil {
		t.Fatal("SaveCustomYear() expected error for month 13")
	}

	defs, err := repo.ListCustomYears(ctx)
	if err != nil {
		t.Fatalf("ListCustomYears() error = %v", err)
	}
	if len(defs) != 0 {
		t.Errorf("invalid definition was persisted: %+v", defs)
	}
}

func TestListActivityIDsAcrossTables(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	if _, err := repo.AppendTransaction(ctx, core.TransactionRecord{
		ActivityID: "A-1", TransactionDate: core.NewDate(2023, 1, 1),
		USDValue: amt(t, "1.00"), Currency: "USD",
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.AppendBudget(ctx, core.BudgetRecord{
		ActivityID:  "A-2",
		PeriodStart: core.NewDate(2024, 1, 1), PeriodEnd: core.NewDate(2024, 12, 31),
		USDValue: amt(t, "1.00"), Currency: "USD",
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.AppendPlannedDisbursement(ctx, core.PlannedDisbursementRecord{
		ActivityID:  "A-1",
		PeriodStart: core.NewDate(2024, 6, 1),
		USDValue:    amt(t, "1.00"), Currency: "USD",
	}); err != nil {
		t.Fatal(err)
	}

	ids, err := repo.ListActivityIDs(ctx)
	if err != nil {
		t.Fatalf("ListActivityIDs() error = %v", err)
	}
	want := []string{"A-1", "A-2"}
	if len(ids) != len(want) {
		t.Fatalf("ListActivityIDs() = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ListActivityIDs()[%d] = %q, want %q", i, ids[i], want[i])
		}
	}
}

func TestReplaceYearlySeriesSwapsAtomically(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	first := []YearlySeriesRow{
		{Year: 2022, Label: "2022/23", Amount: amt(t, "365.00")},
		{Year: 2023, Label: "2023/24", Amount: amt(t, "366.00")},
	}
	if err := repo.ReplaceYearlySeries(ctx, "fy-apr", "transactions", first); err != nil {
		t.Fatalf("ReplaceYearlySeries() error = %v", err)
	}

	second := []YearlySeriesRow{
		{Year: 2023, Label: "2023/24", Amount: amt(t, "731.00")},
	}
	if err := repo.ReplaceYearlySeries(ctx, "fy-apr", "transactions", second); err != nil {
		t.Fatalf("ReplaceYearlySeries() refresh error = %v", err)
	}

	got, err := repo.GetYearlySeries(ctx, "fy-apr", "transactions")
	if err != nil {
		t.Fatalf("GetYearlySeries() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("GetYearlySeries() returned %d points, want 1 after refresh", len(got))
	}
	p := got[0]
	if p.Year != 2023 || p.Label != "2023/24" || !p.Amount.Equal(amt(t, "731.00")) {
		t.Errorf("GetYearlySeries()[0] = %+v, want 2023/731.00", p)
	}
	if p.RefreshedAt.IsZero() {
		t.Error("RefreshedAt not recorded")
	}

	// Other kinds under the same calendar are untouched.
	if err := repo.ReplaceYearlySeries(ctx, "fy-apr", "budgets", first); err != nil {
		t.Fatalf("ReplaceYearlySeries() budgets error = %v", err)
	}
	budgets, err := repo.GetYearlySeries(ctx, "fy-apr", "budgets")
	if err != nil {
		t.Fatalf("GetYearlySeries() budgets error = %v", err)
	}
	if len(budgets) != 2 {
		t.Errorf("budgets series has %d points, want 2", len(budgets))
	}
}
