package config

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/nyepaul/retireplan/internal/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// builtinBracketTables holds the shipped federal bracket sets keyed by ID.
// Amounts are nominal for the table year; callers wanting another regime supply
// their own table in the scenario document.
var builtinBracketTables = map[string]*domain.BracketTable{
	"us_federal_2025": {
		ID:   "us_federal_2025",
		Year: 2025,
		Ordinary: map[domain.FilingStatus][]domain.TaxBracket{
			domain.FilingSingle: {
				{Threshold: d("0"), Rate: d("0.10")},
				{Threshold: d("11925"), Rate: d("0.12")},
				{Threshold: d("48475"), Rate: d("0.22")},
				{Threshold: d("103350"), Rate: d("0.24")},
				{Threshold: d("197300"), Rate: d("0.32")},
				{Threshold: d("250525"), Rate: d("0.35")},
				{Threshold: d("626350"), Rate: d("0.37")},
			},
			domain.FilingMarriedJoint: {
				{Threshold: d("0"), Rate: d("0.10")},
				{Threshold: d("23850"), Rate: d("0.12")},
				{Threshold: d("96950"), Rate: d("0.22")},
				{Threshold: d("206700"), Rate: d("0.24")},
				{Threshold: d("394600"), Rate: d("0.32")},
				{Threshold: d("501050"), Rate: d("0.35")},
				{Threshold: d("751600"), Rate: d("0.37")},
			},
		},
		CapitalGains: map[domain.FilingStatus][]domain.TaxBracket{
			domain.FilingSingle: {
				{Threshold: d("0"), Rate: d("0.00")},
				{Threshold: d("48350"), Rate: d("0.15")},
				{Threshold: d("533400"), Rate: d("0.20")},
			},
			domain.FilingMarriedJoint: {
				{Threshold: d("0"), Rate: d("0.00")},
				{Threshold: d("96700"), Rate: d("0.15")},
				{Threshold: d("600050"), Rate: d("0.20")},
			},
		},
		StandardDeduction: map[domain.FilingStatus]decimal.Decimal{
			domain.FilingSingle:       d("15000"),
			domain.FilingMarriedJoint: d("30000"),
		},
	},
}

// uniformLifetime is the IRS Uniform Lifetime divisor table used for RMDs.
var uniformLifetime = &domain.RMDTable{
	ID: "uniform_lifetime",
	Divisors: map[int]decimal.Decimal{
		72: d("27.4"), 73: d("26.5"), 74: d("25.5"), 75: d("24.6"),
		76: d("23.7"), 77: d("22.9"), 78: d("22.0"), 79: d("21.1"),
		80: d("20.2"), 81: d("19.4"), 82: d("18.5"), 83: d("17.7"),
		84: d("16.8"), 85: d("16.0"), 86: d("15.2"), 87: d("14.4"),
		88: d("13.7"), 89: d("12.9"), 90: d("12.2"), 91: d("11.5"),
		92: d("10.8"), 93: d("10.1"), 94: d("9.5"), 95: d("8.9"),
		96: d("8.4"), 97: d("7.8"), 98: d("7.3"), 99: d("6.8"),
		100: d("6.4"),
	},
	TerminalDivisor: d("6.0"),
}

// ssaPeriodLife is a condensed unisex period life table. Annual death
// probabilities below age 60 are treated as zero for projection purposes.
var ssaPeriodLife = &domain.MortalityTable{
	ID:     "ssa_period_2022",
	MaxAge: 120,
	Qx: map[int]float64{
		60: 0.008, 61: 0.009, 62: 0.010, 63: 0.010, 64: 0.011,
		65: 0.012, 66: 0.013, 67: 0.014, 68: 0.015, 69: 0.017,
		70: 0.018, 71: 0.020, 72: 0.022, 73: 0.024, 74: 0.027,
		75: 0.030, 76: 0.033, 77: 0.037, 78: 0.041, 79: 0.045,
		80: 0.050, 81: 0.056, 82: 0.062, 83: 0.069, 84: 0.077,
		85: 0.086, 86: 0.096, 87: 0.108, 88: 0.121, 89: 0.135,
		90: 0.151, 91: 0.168, 92: 0.186, 93: 0.206, 94: 0.228,
		95: 0.250, 96: 0.273, 97: 0.297, 98: 0.321, 99: 0.345,
		100: 0.370, 101: 0.395, 102: 0.421, 103: 0.447, 104: 0.473,
		105: 0.500, 106: 0.527, 107: 0.553, 108: 0.580, 109: 0.606,
		110: 0.631, 111: 0.656, 112: 0.680, 113: 0.703, 114: 0.725,
		115: 0.746, 116: 0.766, 117: 0.785, 118: 0.803, 119: 0.820,
	},
}

// builtinMarketProfiles holds the shipped return-distribution presets.
var builtinMarketProfiles = map[string]*domain.MarketProfile{
	"historical": {
		ID:        "historical",
		Stock:     domain.AssetClassParams{Mean: d("0.10"), StdDev: d("0.16")},
		Bond:      domain.AssetClassParams{Mean: d("0.045"), StdDev: d("0.055")},
		Inflation: domain.AssetClassParams{Mean: d("0.029"), StdDev: d("0.014")},
		CashYield: d("0.025"),
		// Long-run series show mildly negative stock/bond comovement and a
		// modest bond/inflation drag.
		StockBondCorr:     -0.10,
		BondInflationCorr: -0.20,
	},
	"bear_market": {
		ID:        "bear_market",
		Stock:     domain.AssetClassParams{Mean: d("0.045"), StdDev: d("0.20")},
		Bond:      domain.AssetClassParams{Mean: d("0.03"), StdDev: d("0.07")},
		Inflation: domain.AssetClassParams{Mean: d("0.04"), StdDev: d("0.02")},
		CashYield: d("0.02"),
	},
	"low_growth": {
		ID:        "low_growth",
		Stock:     domain.AssetClassParams{Mean: d("0.065"), StdDev: d("0.14")},
		Bond:      domain.AssetClassParams{Mean: d("0.035"), StdDev: d("0.05")},
		Inflation: domain.AssetClassParams{Mean: d("0.025"), StdDev: d("0.012")},
		CashYield: d("0.015"),
	},
}

// DefaultBracketTableID is used when a scenario does not name a bracket table.
const DefaultBracketTableID = "us_federal_2025"

// DefaultMarketProfileID is used when a scenario does not name a market profile.
const DefaultMarketProfileID = "historical"

// BracketTable returns a builtin bracket table by ID.
func BracketTable(id string) (*domain.BracketTable, error) {
	if id == "" {
		id = DefaultBracketTableID
	}
	t, ok := builtinBracketTables[id]
	if !ok {
		return nil, fmt.Errorf("unknown bracket table %q", id)
	}
	return t, nil
}

// MarketProfile returns a builtin market profile by ID.
func MarketProfile(id string) (*domain.MarketProfile, error) {
	if id == "" {
		id = DefaultMarketProfileID
	}
	p, ok := builtinMarketProfiles[id]
	if !ok {
		return nil, fmt.Errorf("unknown market profile %q", id)
	}
	return p, nil
}

// RMDTable returns the shipped Uniform Lifetime table.
func RMDTable() *domain.RMDTable { return uniformLifetime }

// MortalityTable returns the shipped period life table.
func MortalityTable() *domain.MortalityTable { return ssaPeriodLife }

// MarketProfileIDs lists the available presets.
func MarketProfileIDs() []string {
	return []string{"historical", "bear_market", "low_growth"}
}
