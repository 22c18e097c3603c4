package google

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"aidflow/internal/core"
)

// parseTransactionRows converts a values matrix (as returned by the Sheets
// API) into transaction records. The first row must be a header; recognized
// columns are matched by name so partners can reorder them. Rows missing an
// activity ID or a usable value are counted as skipped, never fatal.
func parseTransactionRows(values [][]interface{}) ([]core.TransactionRecord, int) {
	if len(values) < 2 {
		return nil, 0
	}

	headers := toStrings(values[0])
	colActivity := indexOf(headers, "Activity ID")
	colType := indexOf(headers, "Transaction Type")
	colDate := indexOf(headers, "Transaction Date")
	colStart := indexOf(headers, "Period Start")
	colEnd := indexOf(headers, "Period End")
	colValue := indexOf(headers, "Value")
	colUSD := indexOf(headers, "USD Value")
	colCurrency := indexOf(headers, "Currency")
	colFlow := indexOf(headers, "Flow Type")
	colFinance := indexOf(headers, "Finance Type")
	colAid := indexOf(headers, "Aid Type")

	var out []core.TransactionRecord
	skipped := 0
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])

		activityID := safeGet(row, colActivity)
		if activityID == "" {
			skipped++
			continue
		}

		value, okValue := parseAmount(safeGet(row, colValue))
		usdValue, okUSD := parseAmount(safeGet(row, colUSD))
		if !okValue && !okUSD {
			skipped++
			continue
		}

		currency := strings.ToUpper(safeGet(row, colCurrency))
		if currency == "" {
			currency = core.CurrencyUSD
		}

		out = append(out, core.TransactionRecord{
			ActivityID:      activityID,
			TransactionType: safeGet(row, colType),
			TransactionDate: core.ParseDate(safeGet(row, colDate)),
			PeriodStart:     core.ParseDate(safeGet(row, colStart)),
			PeriodEnd:       core.ParseDate(safeGet(row, colEnd)),
			Value:           value,
			USDValue:        usdValue,
			Currency:        currency,
			FlowType:        safeGet(row, colFlow),
			FinanceType:     safeGet(row, colFinance),
			AidType:         safeGet(row, colAid),
		})
	}
	return out, skipped
}

// parseBudgetRows converts a values matrix into budget records. Header
// columns: Activity ID, Period Start, Period End, Value, USD Value, Currency.
func parseBudgetRows(values [][]interface{}) ([]core.BudgetRecord, int) {
	if len(values) < 2 {
		return nil, 0
	}

	headers := toStrings(values[0])
	colActivity := indexOf(headers, "Activity ID")
	colStart := indexOf(headers, "Period Start")
	colEnd := indexOf(headers, "Period End")
	colValue := indexOf(headers, "Value")
	colUSD := indexOf(headers, "USD Value")
	colCurrency := indexOf(headers, "Currency")

	var out []core.BudgetRecord
	skipped := 0
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])

		activityID := safeGet(row, colActivity)
		if activityID == "" {
			skipped++
			continue
		}

		value, okValue := parseAmount(safeGet(row, colValue))
		usdValue, okUSD := parseAmount(safeGet(row, colUSD))
		if !okValue && !okUSD {
			skipped++
			continue
		}

		currency := strings.ToUpper(safeGet(row, colCurrency))
		if currency == "" {
			currency = core.CurrencyUSD
		}

		out = append(out, core.BudgetRecord{
			ActivityID:  activityID,
			PeriodStart: core.ParseDate(safeGet(row, colStart)),
			PeriodEnd:   core.ParseDate(safeGet(row, colEnd)),
			Value:       value,
			USDValue:    usdValue,
			Currency:    currency,
		})
	}
	return out, skipped
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

// parseAmount reads a spreadsheet cell as a decimal amount, accepting a
// decimal comma and thousands separators.
func parseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	if strings.Contains(s, ",") && strings.Contains(s, ".") {
		// "1,234.56" style: commas are thousands separators
		s = strings.ReplaceAll(s, ",", "")
	} else {
		// "1234,56" style: comma is the decimal separator
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
