// Package core provides the aid-financial domain types and the temporal
// allocation engine: calendar resolution, day-overlap splitting, and the
// record adapters that normalize transactions, budgets, and planned
// disbursements into year-keyed allocations.
package core

import (
	"fmt"
	"time"
)

// Calendar resolves a validated CustomYearDefinition to concrete date
// ranges, labels, and date-to-year lookups. It is read-only once built and
// safe for concurrent use.
type Calendar struct {
	def CustomYearDefinition
}

// NewCalendar validates def and returns the resolved calendar. Invalid
// month/day pairs are rejected here, not at allocation time.
func NewCalendar(def CustomYearDefinition) (*Calendar, error) {
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("resolve calendar %q: %w", def.Name, err)
	}
	return &Calendar{def: def}, nil
}

// CalendarYear returns the plain January-to-December calendar.
func CalendarYear() *Calendar {
	return &Calendar{def: CustomYearDefinition{
		ID:         "calendar",
		Name:       "Calendar year",
		StartMonth: 1,
		StartDay:   1,
	}}
}

// Definition returns the definition the calendar was resolved from.
func (c *Calendar) Definition() CustomYearDefinition {
	return c.def
}

// ID returns the definition's identifier, used as a memoization key
// component by callers.
func (c *Calendar) ID() string {
	return c.def.ID
}

// CrossesCalendarYear reports whether fiscal years straddle two calendar
// years.
func (c *Calendar) CrossesCalendarYear() bool {
	return c.def.CrossesCalendarYear()
}

// YearRange returns the inclusive date range of the fiscal year labeled by
// the calendar year it starts in: [start(year), start(year+1) - 1 day].
func (c *Calendar) YearRange(year int) Period {
	return Period{
		Start: c.startOfYear(year),
		End:   c.startOfYear(year + 1).AddDays(-1),
	}
}

// FiscalYearForDate returns the unique year y with d inside YearRange(y).
// It is the exact inverse of YearRange.
func (c *Calendar) FiscalYearForDate(d Date) int {
	y := d.Year()
	if d.Before(c.startOfYear(y).Time) {
		return y - 1
	}
	return y
}

// Label formats the human label for a fiscal year: "2024/25" for a
// cross-boundary calendar, "2024" otherwise.
func (c *Calendar) Label(year int) string {
	if c.CrossesCalendarYear() {
		return fmt.Sprintf("%d/%02d", year, (year+1)%100)
	}
	return fmt.Sprintf("%d", year)
}

// startOfYear returns the first day of the fiscal year starting in the
// given calendar year, clamping the start day to the month's last valid day
// (Feb 29 becomes Feb 28 outside leap years).
func (c *Calendar) startOfYear(year int) Date {
	day := c.def.StartDay
	if last := daysInMonth(year, time.Month(c.def.StartMonth)); day > last {
		day = last
	}
	return NewDate(year, c.def.StartMonth, day)
}
