package core

import (
	"github.com/shopspring/decimal"
)

// yearBounds supplies the year boundaries the splitter partitions against.
// calendarBounds uses plain Jan 1 - Dec 31 years; Calendar supplies fiscal
// ranges. Same algorithm either way.
type yearBounds interface {
	yearFor(d Date) int
	rangeFor(year int) Period
}

type calendarBounds struct{}

func (calendarBounds) yearFor(d Date) int {
	return d.Year()
}

func (calendarBounds) rangeFor(year int) Period {
	return Period{Start: NewDate(year, 1, 1), End: NewDate(year, 12, 31)}
}

func (c *Calendar) yearFor(d Date) int {
	return c.FiscalYearForDate(d)
}

func (c *Calendar) rangeFor(year int) Period {
	return c.YearRange(year)
}

// yearPortion is one bucket of the generic splitter before it is shaped
// into a YearAllocation or FiscalYearAllocation.
type yearPortion struct {
	year   int
	amount decimal.Decimal
}

// allocate partitions v across the year boundaries intersected by
// [start, end], in proportion to inclusive day overlap.
//
// A missing start date yields no allocations: dirty records degrade to "no
// allocation" so rendering stays resilient. A missing end, end equal to
// start, or an inverted interval all collapse to a point allocation of the
// full amount at the year containing start.
//
// Rounding must not break the sum invariant: every bucket but the last is
// the rounded proportion, and the last chronological bucket is the exact
// remainder v - sum(previous).
func allocate(start, end Date, v decimal.Decimal, bounds yearBounds) []yearPortion {
	if start.IsEmpty() {
		return nil
	}
	if end.IsEmpty() || !end.After(start.Time) {
		return []yearPortion{{year: bounds.yearFor(start), amount: v}}
	}

	totalDays := decimal.NewFromInt(int64(Period{Start: start, End: end}.Days()))
	firstYear := bounds.yearFor(start)
	lastYear := bounds.yearFor(end)

	portions := make([]yearPortion, 0, lastYear-firstYear+1)
	allocated := decimal.Zero
	for year := firstYear; year <= lastYear; year++ {
		if year == lastYear {
			portions = append(portions, yearPortion{year: year, amount: v.Sub(allocated)})
			break
		}
		yr := bounds.rangeFor(year)
		overlap := Period{Start: maxDate(start, yr.Start), End: minDate(end, yr.End)}
		amount := v.Mul(decimal.NewFromInt(int64(overlap.Days()))).Div(totalDays).Round(2)
		portions = append(portions, yearPortion{year: year, amount: amount})
		allocated = allocated.Add(amount)
	}
	return portions
}

// SplitAcrossYears partitions v across plain calendar years by day-overlap
// proportion. Output is sorted ascending by year and sums to v exactly.
func SplitAcrossYears(start, end Date, v decimal.Decimal) []YearAllocation {
	portions := allocate(start, end, v, calendarBounds{})
	if portions == nil {
		return nil
	}
	out := make([]YearAllocation, len(portions))
	for i, p := range portions {
		out[i] = YearAllocation{Year: p.year, Amount: p.amount}
	}
	return out
}

// AllocateAcrossFiscalYears partitions v across the fiscal years of cal by
// day-overlap proportion. Fiscal years are keyed by the calendar year they
// start in. Output is sorted ascending and sums to v exactly.
func AllocateAcrossFiscalYears(start, end Date, v decimal.Decimal, cal *Calendar) []FiscalYearAllocation {
	portions := allocate(start, end, v, cal)
	if portions == nil {
		return nil
	}
	out := make([]FiscalYearAllocation, len(portions))
	for i, p := range portions {
		out[i] = FiscalYearAllocation{FiscalYear: p.year, Amount: p.amount}
	}
	return out
}

func maxDate(a, b Date) Date {
	if a.Before(b.Time) {
		return b
	}
	return a
}

func minDate(a, b Date) Date {
	if a.After(b.Time) {
		return b
	}
	return a
}
