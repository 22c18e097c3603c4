package core

import "github.com/shopspring/decimal"

// GroupAmount represents an amount aggregated by a grouping dimension
// (flow type, finance type, transaction type).
type GroupAmount struct {
	Name   string
	Amount decimal.Decimal
}

// YearOverview is a compact per-year summary consumed by chart endpoints.
// Label carries the calendar's fiscal formatting ("2024/25") when a
// cross-boundary calendar is active.
type YearOverview struct {
	Year    int
	Label   string
	Total   decimal.Decimal
	ByGroup []GroupAmount
}
