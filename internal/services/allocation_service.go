package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"aidflow/internal/cache"
	"aidflow/internal/core"
	"aidflow/internal/data"
)

// Series kinds served by the chart endpoints.
const (
	KindTransactions         = "transactions"
	KindBudgets              = "budgets"
	KindPlannedDisbursements = "planned_disbursements"
)

// ErrUnknownCalendar marks a series request naming a calendar no definition
// exists for.
var ErrUnknownCalendar = errors.New("unknown calendar")

// AllocationService turns raw financial records into per-year series for a
// chosen calendar. Results are memoized per (kind, activity, calendar); a
// record write invalidates the affected kind.
type AllocationService struct {
	reader    data.RecordReader
	calendars data.CalendarStore
	series    *cache.LRUCache[[]core.YearOverview]

	// Calendar applied when a request names none.
	defaultCal *core.Calendar
}

func NewAllocationService(reader data.RecordReader, calendars data.CalendarStore) *AllocationService {
	return &AllocationService{
		reader:     reader,
		calendars:  calendars,
		series:     cache.NewLRUCache[[]core.YearOverview](500, 5*time.Minute),
		defaultCal: core.CalendarYear(),
	}
}

// NewAllocationServiceWithDefault builds a service whose unnamed-calendar
// requests use a year starting at the given month and day instead of the
// plain calendar year. Month/day 1/1 is the plain calendar year.
func NewAllocationServiceWithDefault(reader data.RecordReader, calendars data.CalendarStore, startMonth, startDay int) (*AllocationService, error) {
	s := NewAllocationService(reader, calendars)
	if startMonth == 1 && startDay == 1 {
		return s, nil
	}
	cal, err := core.NewCalendar(core.CustomYearDefinition{
		ID:         "default",
		Name:       "Default fiscal year",
		StartMonth: startMonth,
		StartDay:   startDay,
	})
	if err != nil {
		return nil, err
	}
	s.defaultCal = cal
	return s, nil
}

// DefaultCalendarID returns the ID of the calendar applied when a request
// names none.
func (s *AllocationService) DefaultCalendarID() string {
	return s.defaultCal.Definition().ID
}

// SeriesCache exposes the memoization cache for cleanup registration.
func (s *AllocationService) SeriesCache() *cache.LRUCache[[]core.YearOverview] {
	return s.series
}

// ResolveCalendar maps a calendar ID to a validated calendar. An empty ID
// selects the configured default, "calendar" always the plain calendar year.
func (s *AllocationService) ResolveCalendar(ctx context.Context, calendarID string) (*core.Calendar, error) {
	if calendarID == "" {
		return s.defaultCal, nil
	}
	if calendarID == "calendar" {
		return core.CalendarYear(), nil
	}
	def, err := s.calendars.GetCustomYear(ctx, calendarID)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrUnknownCalendar, calendarID, err)
	}
	return core.NewCalendar(def)
}

// TransactionSeries returns commitment and disbursement amounts per year for
// the given calendar, grouped by flow type. An empty activityID covers all
// activities.
func (s *AllocationService) TransactionSeries(ctx context.Context, calendarID, activityID string) ([]core.YearOverview, error) {
	key := seriesKey(KindTransactions, activityID, calendarID)
	if cached, ok := s.series.Get(key); ok {
		return cached, nil
	}

	cal, err := s.ResolveCalendar(ctx, calendarID)
	if err != nil {
		return nil, err
	}

	records, err := s.reader.ListTransactions(ctx, activityID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	agg := newYearAggregator(cal)
	for _, tx := range records {
		for _, a := range core.AllocateTransactionAcrossFiscalYears(tx, cal) {
			agg.add(a.FiscalYear, a.Amount, tx.FlowType)
		}
	}

	overviews := agg.overviews()
	s.series.Set(key, overviews)
	return overviews, nil
}

// BudgetSeries returns budgeted amounts per year for the given calendar.
func (s *AllocationService) BudgetSeries(ctx context.Context, calendarID, activityID string) ([]core.YearOverview, error) {
	key := seriesKey(KindBudgets, activityID, calendarID)
	if cached, ok := s.series.Get(key); ok {
		return cached, nil
	}

	cal, err := s.ResolveCalendar(ctx, calendarID)
	if err != nil {
		return nil, err
	}

	records, err := s.reader.ListBudgets(ctx, activityID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}

	agg := newYearAggregator(cal)
	for _, b := range records {
		for _, a := range core.AllocateBudgetAcrossFiscalYears(b, cal) {
			agg.add(a.FiscalYear, a.Amount, "")
		}
	}

	overviews := agg.overviews()
	s.series.Set(key, overviews)
	return overviews, nil
}

// PlannedDisbursementSeries returns planned disbursement amounts per year for
// the given calendar.
func (s *AllocationService) PlannedDisbursementSeries(ctx context.Context, calendarID, activityID string) ([]core.YearOverview, error) {
	key := seriesKey(KindPlannedDisbursements, activityID, calendarID)
	if cached, ok := s.series.Get(key); ok {
		return cached, nil
	}

	cal, err := s.ResolveCalendar(ctx, calendarID)
	if err != nil {
		return nil, err
	}

	records, err := s.reader.ListPlannedDisbursements(ctx, activityID)
	if err != nil {
		return nil, fmt.Errorf("list planned disbursements: %w", err)
	}

	agg := newYearAggregator(cal)
	for _, pd := range records {
		for _, a := range core.AllocatePlannedDisbursementAcrossFiscalYears(pd, cal) {
			agg.add(a.FiscalYear, a.Amount, "")
		}
	}

	overviews := agg.overviews()
	s.series.Set(key, overviews)
	return overviews, nil
}

// Series dispatches to the kind-specific series method.
func (s *AllocationService) Series(ctx context.Context, kind, calendarID, activityID string) ([]core.YearOverview, error) {
	switch kind {
	case KindTransactions:
		return s.TransactionSeries(ctx, calendarID, activityID)
	case KindBudgets:
		return s.BudgetSeries(ctx, calendarID, activityID)
	case KindPlannedDisbursements:
		return s.PlannedDisbursementSeries(ctx, calendarID, activityID)
	default:
		return nil, fmt.Errorf("unknown series kind: %s", kind)
	}
}

// InvalidateKind drops memoized series for one record kind across all
// activities and calendars. Returns the number of entries dropped.
func (s *AllocationService) InvalidateKind(kind string) int {
	return s.series.DeletePrefix(kind + "|")
}

// InvalidateAll drops every memoized series, used when a calendar definition
// changes.
func (s *AllocationService) InvalidateAll() int {
	n := 0
	for _, kind := range []string{KindTransactions, KindBudgets, KindPlannedDisbursements} {
		n += s.InvalidateKind(kind)
	}
	return n
}

func seriesKey(kind, activityID, calendarID string) string {
	return cache.Key(kind+"|"+activityID, calendarID)
}

// yearAggregator accumulates allocations into per-year totals and per-group
// breakdowns, emitting overviews in ascending year order.
type yearAggregator struct {
	cal    *core.Calendar
	totals map[int]decimal.Decimal
	groups map[int]map[string]decimal.Decimal
}

func newYearAggregator(cal *core.Calendar) *yearAggregator {
	return &yearAggregator{
		cal:    cal,
		totals: make(map[int]decimal.Decimal),
		groups: make(map[int]map[string]decimal.Decimal),
	}
}

func (a *yearAggregator) add(year int, amount decimal.Decimal, group string) {
	a.totals[year] = a.totals[year].Add(amount)
	if group == "" {
		return
	}
	byGroup, ok := a.groups[year]
	if !ok {
		byGroup = make(map[string]decimal.Decimal)
		a.groups[year] = byGroup
	}
	byGroup[group] = byGroup[group].Add(amount)
}

func (a *yearAggregator) overviews() []core.YearOverview {
	years := make([]int, 0, len(a.totals))
	for y := range a.totals {
		years = append(years, y)
	}
	sort.Ints(years)

	out := make([]core.YearOverview, 0, len(years))
	for _, y := range years {
		ov := core.YearOverview{
			Year:  y,
			Label: a.cal.Label(y),
			Total: a.totals[y],
		}
		if byGroup := a.groups[y]; len(byGroup) > 0 {
			names := make([]string, 0, len(byGroup))
			for name := range byGroup {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				ov.ByGroup = append(ov.ByGroup, core.GroupAmount{Name: name, Amount: byGroup[name]})
			}
		}
		out = append(out, ov)
	}
	return out
}
