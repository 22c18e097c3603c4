package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CurrencyUSD is the single reporting currency. Records in any other
// currency must carry a pre-converted USDValue to participate in allocation.
const CurrencyUSD = "USD"

// IATI transaction type codes carried by stored transactions. Consumed only
// by downstream grouping, never by the allocation algorithm.
const (
	TransactionDisbursement  = "disbursement"
	TransactionExpenditure   = "expenditure"
	TransactionIncomingFunds = "incoming_funds"
	TransactionLoanRepayment = "loan_repayment"
)

type (
	// Date is a day-precision date at UTC midnight. The zero value means
	// "missing" and is a valid input everywhere in the allocation engine.
	Date struct {
		time.Time
	}

	// Period is a date interval, inclusive on both ends. Start > End and a
	// missing End are valid inputs with defined fallbacks, not errors.
	Period struct {
		Start Date
		End   Date
	}

	// YearAllocation is one partition of a record's amount, keyed by
	// calendar year.
	YearAllocation struct {
		Year   int
		Amount decimal.Decimal
	}

	// FiscalYearAllocation is one partition of a record's amount, keyed by
	// the calendar year in which the fiscal year starts.
	FiscalYearAllocation struct {
		FiscalYear int
		Amount     decimal.Decimal
	}

	// CustomYearDefinition describes a fiscal year beginning on the same
	// month/day each calendar year. StartMonth 1 / StartDay 1 is the plain
	// calendar year.
	CustomYearDefinition struct {
		ID         string
		Name       string
		StartMonth int // 1-12
		StartDay   int // 1-31
	}

	// TransactionRecord is a dated financial transaction. It normally
	// allocates as a point record at TransactionDate; the rare transaction
	// that also carries an explicit period is day-weighted instead.
	TransactionRecord struct {
		ID              string
		ActivityID      string
		TransactionType string
		TransactionDate Date
		PeriodStart     Date
		PeriodEnd       Date
		Value           decimal.Decimal
		USDValue        decimal.Decimal
		Currency        string
		FlowType        string
		FinanceType     string
		AidType         string
	}

	// BudgetRecord covers a mandatory reporting period.
	BudgetRecord struct {
		ID          string
		ActivityID  string
		PeriodStart Date
		PeriodEnd   Date
		Value       decimal.Decimal
		USDValue    decimal.Decimal
		Currency    string
	}

	// PlannedDisbursementRecord covers a period whose end is optional; a
	// missing end makes it a point record at PeriodStart.
	PlannedDisbursementRecord struct {
		ID          string
		ActivityID  string
		PeriodStart Date
		PeriodEnd   Date
		Value       decimal.Decimal
		USDValue    decimal.Decimal
		Currency    string
	}
)

var (
	ErrInvalidStartMonth = errors.New("custom year: start month out of range")
	ErrInvalidStartDay   = errors.New("custom year: start day out of range")
	ErrEmptyCalendarName = errors.New("custom year: empty name")
)

// NewDate creates a Date at UTC midnight.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string. Dirty input yields the zero Date:
// the engine skips records with missing dates instead of failing a render.
func ParseDate(s string) Date {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}
	}
	return Date{Time: t}
}

// IsEmpty reports whether the date is missing.
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// AddDays returns the date shifted by n days.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// Year returns the calendar year.
func (d Date) Year() int {
	return d.Time.Year()
}

// String formats the date as YYYY-MM-DD, or "" when missing.
func (d Date) String() string {
	if d.IsEmpty() {
		return ""
	}
	return d.Format("2006-01-02")
}

// Days returns the inclusive day count of the period. Both bounds are UTC
// midnights, so the subtraction is exact.
func (p Period) Days() int {
	return int(p.End.Sub(p.Start.Time)/(24*time.Hour)) + 1
}

// Contains reports whether d falls within the period, bounds included.
func (p Period) Contains(d Date) bool {
	return !d.Before(p.Start.Time) && !d.After(p.End.Time)
}

// Validate rejects out-of-range month/day pairs. Calendar construction is
// the one place the engine fails hard on bad input.
func (def CustomYearDefinition) Validate() error {
	if strings.TrimSpace(def.Name) == "" {
		return ErrEmptyCalendarName
	}
	if def.StartMonth < 1 || def.StartMonth > 12 {
		return ErrInvalidStartMonth
	}
	if def.StartDay < 1 || def.StartDay > 31 {
		return ErrInvalidStartDay
	}
	// Reject days no year can realize for the month (Apr 31). Feb 29 stays
	// valid and clamps to Feb 28 in non-leap years.
	if def.StartDay > daysInMonth(2024, time.Month(def.StartMonth)) {
		return ErrInvalidStartDay
	}
	return nil
}

// CrossesCalendarYear reports whether the fiscal year straddles two
// calendar years, i.e. the definition does not start on January 1.
func (def CustomYearDefinition) CrossesCalendarYear() bool {
	return def.StartMonth != 1 || def.StartDay != 1
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
