package services

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"aidflow/internal/core"
	"aidflow/internal/data/memory"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", s, err)
	}
	return d
}

func seedStore(t *testing.T) *memory.Store {
	t.Helper()
	store, err := memory.NewWithCalendars(core.CustomYearDefinition{
		ID:         "fy-apr",
		Name:       "April fiscal year",
		StartMonth: 4,
		StartDay:   1,
	})
	if err != nil {
		t.Fatalf("NewWithCalendars() error = %v", err)
	}

	ctx := context.Background()
	records := []core.TransactionRecord{
		{
			ActivityID:      "XM-DAC-41114-PROJECT-1",
			TransactionType: "3",
			TransactionDate: core.NewDate(2023, 5, 10),
			USDValue:        dec(t, "100.00"),
			Currency:        "USD",
			FlowType:        "10",
		},
		{
			ActivityID:      "XM-DAC-41114-PROJECT-2",
			TransactionType: "2",
			PeriodStart:     core.NewDate(2023, 1, 1),
			PeriodEnd:       core.NewDate(2024, 12, 31),
			USDValue:        dec(t, "731.00"),
			Currency:        "USD",
			FlowType:        "20",
		},
		{
			// Unconvertible, must not contribute
			ActivityID:      "XM-DAC-41114-PROJECT-3",
			TransactionDate: core.NewDate(2023, 6, 1),
			Value:           dec(t, "5000"),
			Currency:        "MMK",
		},
	}
	for _, tx := range records {
		if _, err := store.AppendTransaction(ctx, tx); err != nil {
			t.Fatalf("AppendTransaction() error = %v", err)
		}
	}
	return store
}

func TestTransactionSeriesCalendarYear(t *testing.T) {
	store := seedStore(t)
	svc := NewAllocationService(store, store)
	ctx := context.Background()

	series, err := svc.TransactionSeries(ctx, "", "")
	if err != nil {
		t.Fatalf("TransactionSeries() error = %v", err)
	}

	// 100 in 2023 plus 731 split 365/366 over 2023-2024.
	if len(series) != 2 {
		t.Fatalf("len(series) = %d, want 2", len(series))
	}
	if series[0].Year != 2023 || series[1].Year != 2024 {
		t.Errorf("years = %d, %d, want 2023, 2024", series[0].Year, series[1].Year)
	}
	if series[0].Label != "2023" {
		t.Errorf("Label = %q, want plain year for calendar years", series[0].Label)
	}

	total := series[0].Total.Add(series[1].Total)
	if !total.Equal(dec(t, "831.00")) {
		t.Errorf("sum of series = %s, want 831.00", total)
	}
	if !series[0].Total.Equal(dec(t, "465.00")) {
		// 365/731 of 731 is exactly 365, plus the point-dated 100.
		t.Errorf("2023 total = %s, want 465.00", series[0].Total)
	}
}

func TestTransactionSeriesGroupsByFlowType(t *testing.T) {
	store := seedStore(t)
	svc := NewAllocationService(store, store)

	series, err := svc.TransactionSeries(context.Background(), "", "")
	if err != nil {
		t.Fatalf("TransactionSeries() error = %v", err)
	}

	groups := series[0].ByGroup
	if len(groups) != 2 {
		t.Fatalf("len(ByGroup) = %d, want 2", len(groups))
	}
	if groups[0].Name != "10" || groups[1].Name != "20" {
		t.Errorf("group names = %q, %q, want 10, 20", groups[0].Name, groups[1].Name)
	}
	if !groups[0].Amount.Equal(dec(t, "100.00")) {
		t.Errorf("flow type 10 amount = %s, want 100.00", groups[0].Amount)
	}
}

func TestTransactionSeriesCustomCalendar(t *testing.T) {
	store := seedStore(t)
	svc := NewAllocationService(store, store)
	ctx := context.Background()

	series, err := svc.TransactionSeries(ctx, "fy-apr", "")
	if err != nil {
		t.Fatalf("TransactionSeries(fy-apr) error = %v", err)
	}

	// The multi-year transaction starts 2023-01-01, inside fiscal 2022.
	if series[0].Year != 2022 {
		t.Errorf("first year = %d, want 2022", series[0].Year)
	}
	if series[0].Label != "2022/23" {
		t.Errorf("Label = %q, want 2022/23", series[0].Label)
	}

	var total decimal.Decimal
	for _, ov := range series {
		total = total.Add(ov.Total)
	}
	if !total.Equal(dec(t, "831.00")) {
		t.Errorf("sum of series = %s, want 831.00", total)
	}
}

func TestTransactionSeriesActivityFilter(t *testing.T) {
	store := seedStore(t)
	svc := NewAllocationService(store, store)

	series, err := svc.TransactionSeries(context.Background(), "", "XM-DAC-41114-PROJECT-1")
	if err != nil {
		t.Fatalf("TransactionSeries() error = %v", err)
	}
	if len(series) != 1 {
		t.Fatalf("len(series) = %d, want 1", len(series))
	}
	if !series[0].Total.Equal(dec(t, "100.00")) {
		t.Errorf("total = %s, want 100.00", series[0].Total)
	}
}

func TestTransactionSeriesUnknownCalendar(t *testing.T) {
	store := seedStore(t)
	svc := NewAllocationService(store, store)

	_, err := svc.TransactionSeries(context.Background(), "nope", "")
	if err == nil {
		t.Fatal("expected error for unknown calendar")
	}
	if !errors.Is(err, ErrUnknownCalendar) {
		t.Errorf("error = %v, want ErrUnknownCalendar", err)
	}
}

func TestDefaultCalendarAppliedWhenNoneNamed(t *testing.T) {
	store := seedStore(t)
	svc, err := NewAllocationServiceWithDefault(store, store, 4, 1)
	if err != nil {
		t.Fatalf("NewAllocationServiceWithDefault() error = %v", err)
	}
	ctx := context.Background()

	if got := svc.DefaultCalendarID(); got != "default" {
		t.Errorf("DefaultCalendarID() = %q, want default", got)
	}

	// An unnamed calendar uses the April-start default, so the multi-year
	// transaction starting 2023-01-01 lands in fiscal 2022.
	series, err := svc.TransactionSeries(ctx, "", "")
	if err != nil {
		t.Fatalf("TransactionSeries() error = %v", err)
	}
	if series[0].Year != 2022 || series[0].Label != "2022/23" {
		t.Errorf("first year = %d %q, want 2022 2022/23", series[0].Year, series[0].Label)
	}

	// Naming "calendar" still selects the plain calendar year.
	plain, err := svc.TransactionSeries(ctx, "calendar", "")
	if err != nil {
		t.Fatalf("TransactionSeries(calendar) error = %v", err)
	}
	if plain[0].Year != 2023 || plain[0].Label != "2023" {
		t.Errorf("plain first year = %d %q, want 2023 2023", plain[0].Year, plain[0].Label)
	}
}

func TestNewAllocationServiceWithDefaultRejectsBadStart(t *testing.T) {
	store := seedStore(t)
	if _, err := NewAllocationServiceWithDefault(store, store, 13, 1); err == nil {
		t.Fatal("expected error for month 13")
	}
}

func TestSeriesMemoizationAndInvalidation(t *testing.T) {
	store := seedStore(t)
	svc := NewAllocationService(store, store)
	ctx := context.Background()

	first, err := svc.TransactionSeries(ctx, "", "")
	if err != nil {
		t.Fatalf("TransactionSeries() error = %v", err)
	}

	// A write behind the cache's back is invisible until invalidation.
	if _, err := store.AppendTransaction(ctx, core.TransactionRecord{
		ActivityID:      "XM-DAC-41114-PROJECT-9",
		TransactionDate: core.NewDate(2023, 8, 1),
		USDValue:        dec(t, "50.00"),
		Currency:        "USD",
	}); err != nil {
		t.Fatalf("AppendTransaction() error = %v", err)
	}

	cached, err := svc.TransactionSeries(ctx, "", "")
	if err != nil {
		t.Fatalf("TransactionSeries() error = %v", err)
	}
	if !cached[0].Total.Equal(first[0].Total) {
		t.Error("cached series should not reflect new writes")
	}

	if dropped := svc.InvalidateKind(KindTransactions); dropped == 0 {
		t.Error("InvalidateKind() should drop the memoized entry")
	}

	fresh, err := svc.TransactionSeries(ctx, "", "")
	if err != nil {
		t.Fatalf("TransactionSeries() error = %v", err)
	}
	want := first[0].Total.Add(dec(t, "50.00"))
	if !fresh[0].Total.Equal(want) {
		t.Errorf("2023 total after invalidation = %s, want %s", fresh[0].Total, want)
	}
}

func TestBudgetAndPlannedDisbursementSeries(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	if _, err := store.AppendBudget(ctx, core.BudgetRecord{
		ActivityID:  "XM-DAC-41114-PROJECT-1",
		PeriodStart: core.NewDate(2023, 7, 1),
		PeriodEnd:   core.NewDate(2024, 6, 30),
		USDValue:    dec(t, "1200.00"),
		Currency:    "USD",
	}); err != nil {
		t.Fatalf("AppendBudget() error = %v", err)
	}
	if _, err := store.AppendPlannedDisbursement(ctx, core.PlannedDisbursementRecord{
		ActivityID:  "XM-DAC-41114-PROJECT-1",
		PeriodStart: core.NewDate(2024, 1, 1),
		USDValue:    dec(t, "300.00"),
		Currency:    "USD",
	}); err != nil {
		t.Fatalf("AppendPlannedDisbursement() error = %v", err)
	}

	svc := NewAllocationService(store, store)

	budgets, err := svc.BudgetSeries(ctx, "", "")
	if err != nil {
		t.Fatalf("BudgetSeries() error = %v", err)
	}
	if len(budgets) != 2 {
		t.Fatalf("len(budgets) = %d, want 2", len(budgets))
	}
	sum := budgets[0].Total.Add(budgets[1].Total)
	if !sum.Equal(dec(t, "1200.00")) {
		t.Errorf("budget sum = %s, want 1200.00", sum)
	}
	if len(budgets[0].ByGroup) != 0 {
		t.Error("budget series should have no group breakdown")
	}

	pds, err := svc.PlannedDisbursementSeries(ctx, "", "")
	if err != nil {
		t.Fatalf("PlannedDisbursementSeries() error = %v", err)
	}
	// Missing end date collapses to the start date.
	if len(pds) != 1 || pds[0].Year != 2024 {
		t.Fatalf("pds = %+v, want single 2024 entry", pds)
	}
	if !pds[0].Total.Equal(dec(t, "300.00")) {
		t.Errorf("planned disbursement total = %s, want 300.00", pds[0].Total)
	}
}

func TestSeriesUnknownKind(t *testing.T) {
	store := memory.New()
	svc := NewAllocationService(store, store)

	if _, err := svc.Series(context.Background(), "expenses", "", ""); err == nil {
		t.Error("expected error for unknown series kind")
	}
}
