package http

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"aidflow/internal/core"
)

// TransactionRequest is the JSON write payload for a transaction record.
// Amounts travel as strings so partners never lose precision to float
// encoders.
type TransactionRequest struct {
	ActivityID      string `json:"activity_id"`
	TransactionType string `json:"transaction_type"`
	TransactionDate string `json:"transaction_date"`
	PeriodStart     string `json:"period_start"`
	PeriodEnd       string `json:"period_end"`
	Value           string `json:"value"`
	USDValue        string `json:"usd_value"`
	Currency        string `json:"currency"`
	FlowType        string `json:"flow_type"`
	FinanceType     string `json:"finance_type"`
	AidType         string `json:"aid_type"`
}

// ToRecord validates the payload and converts it to a domain record.
func (req TransactionRequest) ToRecord() (core.TransactionRecord, error) {
	activityID := sanitizeInput(req.ActivityID)
	if activityID == "" {
		return core.TransactionRecord{}, fmt.Errorf("activity_id is required")
	}

	value, usdValue, currency, err := parseAmounts(req.Value, req.USDValue, req.Currency)
	if err != nil {
		return core.TransactionRecord{}, err
	}

	return core.TransactionRecord{
		ActivityID:      activityID,
		TransactionType: sanitizeInput(req.TransactionType),
		TransactionDate: core.ParseDate(req.TransactionDate),
		PeriodStart:     core.ParseDate(req.PeriodStart),
		PeriodEnd:       core.ParseDate(req.PeriodEnd),
		Value:           value,
		USDValue:        usdValue,
		Currency:        currency,
		FlowType:        sanitizeInput(req.FlowType),
		FinanceType:     sanitizeInput(req.FinanceType),
		AidType:         sanitizeInput(req.AidType),
	}, nil
}

// BudgetRequest is the JSON write payload for a budget record.
type BudgetRequest struct {
	ActivityID  string `json:"activity_id"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
	Value       string `json:"value"`
	USDValue    string `json:"usd_value"`
	Currency    string `json:"currency"`
}

func (req BudgetRequest) ToRecord() (core.BudgetRecord, error) {
	activityID := sanitizeInput(req.ActivityID)
	if activityID == "" {
		return core.BudgetRecord{}, fmt.Errorf("activity_id is required")
	}

	value, usdValue, currency, err := parseAmounts(req.Value, req.USDValue, req.Currency)
	if err != nil {
		return core.BudgetRecord{}, err
	}

	return core.BudgetRecord{
		ActivityID:  activityID,
		PeriodStart: core.ParseDate(req.PeriodStart),
		PeriodEnd:   core.ParseDate(req.PeriodEnd),
		Value:       value,
		USDValue:    usdValue,
		Currency:    currency,
	}, nil
}

// PlannedDisbursementRequest is the JSON write payload for a planned
// disbursement record.
type PlannedDisbursementRequest struct {
	ActivityID  string `json:"activity_id"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
	Value       string `json:"value"`
	USDValue    string `json:"usd_value"`
	Currency    string `json:"currency"`
}

func (req PlannedDisbursementRequest) ToRecord() (core.PlannedDisbursementRecord, error) {
	activityID := sanitizeInput(req.ActivityID)
	if activityID == "" {
		return core.PlannedDisbursementRecord{}, fmt.Errorf("activity_id is required")
	}

	value, usdValue, currency, err := parseAmounts(req.Value, req.USDValue, req.Currency)
	if err != nil {
		return core.PlannedDisbursementRecord{}, err
	}

	return core.PlannedDisbursementRecord{
		ActivityID:  activityID,
		PeriodStart: core.ParseDate(req.PeriodStart),
		PeriodEnd:   core.ParseDate(req.PeriodEnd),
		Value:       value,
		USDValue:    usdValue,
		Currency:    currency,
	}, nil
}

// CustomYearRequest is the JSON payload for a custom year definition.
type CustomYearRequest struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	StartMonth int    `json:"start_month"`
	StartDay   int    `json:"start_day"`
}

func (req CustomYearRequest) ToDefinition() core.CustomYearDefinition {
	return core.CustomYearDefinition{
		ID:         sanitizeInput(req.ID),
		Name:       sanitizeInput(req.Name),
		StartMonth: req.StartMonth,
		StartDay:   req.StartDay,
	}
}

// parseAmounts reads the value fields of a write payload. At least one of
// value and usd_value must be a valid decimal; missing currency defaults to
// USD.
func parseAmounts(valueStr, usdValueStr, currencyStr string) (value, usdValue decimal.Decimal, currency string, err error) {
	value, errValue := parseOptionalDecimal(valueStr)
	if errValue != nil {
		return decimal.Zero, decimal.Zero, "", fmt.Errorf("invalid value: %q", valueStr)
	}
	usdValue, errUSD := parseOptionalDecimal(usdValueStr)
	if errUSD != nil {
		return decimal.Zero, decimal.Zero, "", fmt.Errorf("invalid usd_value: %q", usdValueStr)
	}
	if strings.TrimSpace(valueStr) == "" && strings.TrimSpace(usdValueStr) == "" {
		return decimal.Zero, decimal.Zero, "", fmt.Errorf("value or usd_value is required")
	}

	currency = strings.ToUpper(sanitizeInput(currencyStr))
	if currency == "" {
		currency = core.CurrencyUSD
	}

	return value, usdValue, currency, nil
}

func parseOptionalDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
