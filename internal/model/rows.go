package model

import "github.com/shopspring/decimal"

// Rows as delivered by source collaborators, already relabelled to canonical field names.
// Codes are raw vendor spellings; dates are raw strings parsed by Calendar.

type RosterRow struct {
	Code     string
	Name     string
	ListDate string
	Board    string
}

type FundamentalsRow struct {
	Code             string
	Profit           decimal.NullDecimal
	TotalMarketValue decimal.NullDecimal
	FlowMarketValue  decimal.NullDecimal
	PE               decimal.NullDecimal
	PB               decimal.NullDecimal
	ROE              decimal.NullDecimal
	GrossProfitRatio decimal.NullDecimal
	NetProfitRatio   decimal.NullDecimal
	Industry         string
	SectorID         string
}

type HierarchyRow struct {
	IndexCode     string
	IndustryName  string
	Count         int
	PE            decimal.NullDecimal
	PETTM         decimal.NullDecimal
	PB            decimal.NullDecimal
	DividendYield decimal.NullDecimal
	Src           string
	Level         string
}

type MembershipRow struct {
	Code    string
	Name    string
	InDate  string
	OutDate string // empty while the membership is open
	SW1     string
	SW2     string
	SW3     string

	Price           decimal.NullDecimal
	PE              decimal.NullDecimal
	PETTM           decimal.NullDecimal
	PB              decimal.NullDecimal
	DividendRate    decimal.NullDecimal
	MarketValue     decimal.NullDecimal
	ProfitGrowthQ3  decimal.NullDecimal
	ProfitGrowthH1  decimal.NullDecimal
	RevenueGrowthQ3 decimal.NullDecimal
	RevenueGrowthH1 decimal.NullDecimal
}
