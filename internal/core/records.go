package core

import (
	"github.com/shopspring/decimal"
)

// ConvertibleAmount applies the single value-fallback rule shared by every
// record adapter: prefer the pre-converted USD value when present and
// nonzero, else the raw value when it is already in the reporting currency.
// Records with no convertible amount contribute nothing; that is not an
// error, just "no convertible amount".
func ConvertibleAmount(value, usdValue decimal.Decimal, currency string) (decimal.Decimal, bool) {
	if !usdValue.IsZero() {
		return usdValue, true
	}
	if currency == CurrencyUSD {
		return value, true
	}
	return decimal.Decimal{}, false
}

// period returns the allocation interval for a transaction: the explicit
// period when the record carries one, else the point transaction date.
func (tx TransactionRecord) period() (start, end Date) {
	if !tx.PeriodStart.IsEmpty() && !tx.PeriodEnd.IsEmpty() {
		return tx.PeriodStart, tx.PeriodEnd
	}
	return tx.TransactionDate, Date{}
}

// SplitTransactionAcrossYears allocates a transaction across calendar
// years. Transactions are point records at their transaction date unless
// they explicitly carry a period.
func SplitTransactionAcrossYears(tx TransactionRecord) []YearAllocation {
	v, ok := ConvertibleAmount(tx.Value, tx.USDValue, tx.Currency)
	if !ok {
		return nil
	}
	start, end := tx.period()
	return SplitAcrossYears(start, end, v)
}

// SplitBudgetAcrossYears allocates a budget across calendar years by
// day-overlap proportion over its reporting period.
func SplitBudgetAcrossYears(b BudgetRecord) []YearAllocation {
	v, ok := ConvertibleAmount(b.Value, b.USDValue, b.Currency)
	if !ok {
		return nil
	}
	return SplitAcrossYears(b.PeriodStart, b.PeriodEnd, v)
}

// SplitPlannedDisbursementAcrossYears allocates a planned disbursement
// across calendar years. A missing period end degrades to a point
// allocation at the period start.
func SplitPlannedDisbursementAcrossYears(pd PlannedDisbursementRecord) []YearAllocation {
	v, ok := ConvertibleAmount(pd.Value, pd.USDValue, pd.Currency)
	if !ok {
		return nil
	}
	return SplitAcrossYears(pd.PeriodStart, pd.PeriodEnd, v)
}

// AllocateTransactionAcrossFiscalYears is the fiscal-calendar counterpart
// of SplitTransactionAcrossYears.
func AllocateTransactionAcrossFiscalYears(tx TransactionRecord, cal *Calendar) []FiscalYearAllocation {
	v, ok := ConvertibleAmount(tx.Value, tx.USDValue, tx.Currency)
	if !ok {
		return nil
	}
	start, end := tx.period()
	return AllocateAcrossFiscalYears(start, end, v, cal)
}

// AllocateBudgetAcrossFiscalYears is the fiscal-calendar counterpart of
// SplitBudgetAcrossYears.
func AllocateBudgetAcrossFiscalYears(b BudgetRecord, cal *Calendar) []FiscalYearAllocation {
	v, ok := ConvertibleAmount(b.Value, b.USDValue, b.Currency)
	if !ok {
		return nil
	}
	return AllocateAcrossFiscalYears(b.PeriodStart, b.PeriodEnd, v, cal)
}

// AllocatePlannedDisbursementAcrossFiscalYears is the fiscal-calendar
// counterpart of SplitPlannedDisbursementAcrossYears.
func AllocatePlannedDisbursementAcrossFiscalYears(pd PlannedDisbursementRecord, cal *Calendar) []FiscalYearAllocation {
	v, ok := ConvertibleAmount(pd.Value, pd.USDValue, pd.Currency)
	if !ok {
		return nil
	}
	return AllocateAcrossFiscalYears(pd.PeriodStart, pd.PeriodEnd, v, cal)
}
