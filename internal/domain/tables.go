package domain

import (
	"github.com/shopspring/decimal"
)

// TaxBracket is one progressive bracket: the rate applied to income above Threshold
// up to the next bracket's threshold.
type TaxBracket struct {
	Threshold decimal.Decimal `yaml:"threshold" json:"threshold"`
	Rate      decimal.Decimal `yaml:"rate" json:"rate"`
}

// BracketTable holds the full bracket and deduction set for one tax regime and year.
// Ordinary and capital-gains brackets are separate ladders; the calculator stacks
// gains on top of ordinary income when walking the gains ladder.
type BracketTable struct {
	ID                string                           `yaml:"id" json:"id"`
	Year              int                              `yaml:"year" json:"year"`
	Ordinary          map[FilingStatus][]TaxBracket    `yaml:"ordinary" json:"ordinary"`
	CapitalGains      map[FilingStatus][]TaxBracket    `yaml:"capital_gains" json:"capital_gains"`
	StandardDeduction map[FilingStatus]decimal.Decimal `yaml:"standard_deduction" json:"standard_deduction"`
}

// RMDTable maps attained age to the life-expectancy divisor used for required
// minimum distributions.
type RMDTable struct {
	ID       string                  `yaml:"id" json:"id"`
	Divisors map[int]decimal.Decimal `yaml:"divisors" json:"divisors"`
	// Divisor applied at ages beyond the last table entry.
	TerminalDivisor decimal.Decimal `yaml:"terminal_divisor" json:"terminal_divisor"`
}

// Divisor returns the life-expectancy divisor for an age, falling back to the
// terminal divisor past the end of the table. Zero means no entry applies.
func (t *RMDTable) Divisor(age int) decimal.Decimal {
	if d, ok := t.Divisors[age]; ok {
		return d
	}
	maxAge := 0
	for a := range t.Divisors {
		if a > maxAge {
			maxAge = a
		}
	}
	if age > maxAge && maxAge > 0 {
		return t.TerminalDivisor
	}
	return decimal.Zero
}

// MortalityTable maps attained age to the probability of dying within the year.
type MortalityTable struct {
	ID     string          `yaml:"id" json:"id"`
	Qx     map[int]float64 `yaml:"qx" json:"qx"`
	MaxAge int             `yaml:"max_age" json:"max_age"`
}

// DeathProbability returns qx for an age; 1.0 at or beyond the table maximum.
func (t *MortalityTable) DeathProbability(age int) float64 {
	if age >= t.MaxAge {
		return 1.0
	}
	if q, ok := t.Qx[age]; ok {
		return q
	}
	return 0.0
}

// SurvivalTo returns the probability that a person of fromAge survives to toAge.
func (t *MortalityTable) SurvivalTo(fromAge, toAge int) float64 {
	if toAge <= fromAge {
		return 1.0
	}
	p := 1.0
	for age := fromAge; age < toAge; age++ {
		p *= 1.0 - t.DeathProbability(age)
	}
	return p
}

// AssetClassParams is the annual return distribution for one asset class.
type AssetClassParams struct {
	Mean   decimal.Decimal `yaml:"mean" json:"mean"`
	StdDev decimal.Decimal `yaml:"std_dev" json:"std_dev"`
}

// MarketProfile parameterizes the return sampler: per-class distributions plus a
// deterministic cash yield and optional pairwise correlations.
type MarketProfile struct {
	ID        string           `yaml:"id" json:"id"`
	Stock     AssetClassParams `yaml:"stock" json:"stock"`
	Bond      AssetClassParams `yaml:"bond" json:"bond"`
	Inflation AssetClassParams `yaml:"inflation" json:"inflation"`
	CashYield decimal.Decimal  `yaml:"cash_yield" json:"cash_yield"`

	// Pairwise correlations in [-1, 1]. All zero means independent draws.
	StockBondCorr      float64 `yaml:"stock_bond_corr,omitempty" json:"stock_bond_corr,omitempty"`
	StockInflationCorr float64 `yaml:"stock_inflation_corr,omitempty" json:"stock_inflation_corr,omitempty"`
	BondInflationCorr  float64 `yaml:"bond_inflation_corr,omitempty" json:"bond_inflation_corr,omitempty"`
}

// Correlated reports whether any pairwise correlation is set.
func (m *MarketProfile) Correlated() bool {
	return m.StockBondCorr != 0 || m.StockInflationCorr != 0 || m.BondInflationCorr != 0
}
