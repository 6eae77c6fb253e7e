package simulation

import (
	"github.com/shopspring/decimal"

	"github.com/nyepaul/retireplan/internal/domain"
)

// TaxCalculator computes federal tax and required minimum distributions. It is
// pure: same inputs, same outputs, no clock or RNG.
type TaxCalculator struct {
	brackets *domain.BracketTable
	rmd      *domain.RMDTable
}

// NewTaxCalculator builds a calculator over the given bracket and RMD tables.
func NewTaxCalculator(brackets *domain.BracketTable, rmd *domain.RMDTable) *TaxCalculator {
	return &TaxCalculator{brackets: brackets, rmd: rmd}
}

// CalculateTax returns total federal tax on a year's ordinary income and realized
// capital gains. Ordinary income is reduced by the standard deduction, then walked
// through the ordinary ladder; gains are walked through the gains ladder starting
// at the taxable ordinary income level, so ordinary income fills the lower gains
// brackets first. Tax is never negative.
func (c *TaxCalculator) CalculateTax(ordinaryIncome, capitalGains decimal.Decimal, status domain.FilingStatus) decimal.Decimal {
	deduction := c.brackets.StandardDeduction[status]
	taxableOrdinary := ordinaryIncome.Sub(deduction)
	if taxableOrdinary.IsNegative() {
		taxableOrdinary = decimal.Zero
	}

	tax := walkBrackets(c.brackets.Ordinary[status], decimal.Zero, taxableOrdinary)

	if capitalGains.IsPositive() {
		tax = tax.Add(walkBrackets(c.brackets.CapitalGains[status], taxableOrdinary, capitalGains))
	}

	if tax.IsNegative() {
		return decimal.Zero
	}
	return tax
}

// MarginalRate returns the ordinary-income marginal rate at a given taxable
// ordinary income level (after deduction).
func (c *TaxCalculator) MarginalRate(taxableOrdinary decimal.Decimal, status domain.FilingStatus) decimal.Decimal {
	ladder := c.brackets.Ordinary[status]
	rate := decimal.Zero
	for _, b := range ladder {
		if taxableOrdinary.GreaterThanOrEqual(b.Threshold) {
			rate = b.Rate
		}
	}
	return rate
}

// BracketCeiling returns the top of the bracket whose rate is at most maxRate, for
// the given filing status. The Roth optimizer fills ordinary income up to this
// level. Zero when even the bottom bracket exceeds maxRate.
func (c *TaxCalculator) BracketCeiling(maxRate decimal.Decimal, status domain.FilingStatus) decimal.Decimal {
	ladder := c.brackets.Ordinary[status]
	ceiling := decimal.Zero
	for i, b := range ladder {
		if b.Rate.GreaterThan(maxRate) {
			break
		}
		if i+1 < len(ladder) {
			ceiling = ladder[i+1].Threshold
		} else {
			// Top bracket is unbounded; cap at a level no realistic conversion
			// reaches.
			ceiling = decimal.NewFromInt(100_000_000)
		}
	}
	return ceiling
}

// StandardDeduction returns the deduction for a filing status.
func (c *TaxCalculator) StandardDeduction(status domain.FilingStatus) decimal.Decimal {
	return c.brackets.StandardDeduction[status]
}

// CalculateRMD returns the required minimum distribution for one person-year:
// prior-year-end deferred balance divided by the age divisor. Zero below the
// person's RMD trigger age or when no divisor applies.
func (c *TaxCalculator) CalculateRMD(priorYearEndBalance decimal.Decimal, age, rmdAge int) decimal.Decimal {
	if age < rmdAge || !priorYearEndBalance.IsPositive() {
		return decimal.Zero
	}
	divisor := c.rmd.Divisor(age)
	if !divisor.IsPositive() {
		return decimal.Zero
	}
	return priorYearEndBalance.Div(divisor)
}

// walkBrackets applies a progressive ladder to an amount stacked on top of floor
// income: each slice of the amount is taxed at the rate of the bracket it lands in.
func walkBrackets(ladder []domain.TaxBracket, floor, amount decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() {
		return decimal.Zero
	}
	top := floor.Add(amount)
	tax := decimal.Zero

	for i, b := range ladder {
		bracketTop := top
		if i+1 < len(ladder) {
			next := ladder[i+1].Threshold
			if next.LessThan(bracketTop) {
				bracketTop = next
			}
		}
		bracketFloor := b.Threshold
		if floor.GreaterThan(bracketFloor) {
			bracketFloor = floor
		}
		if bracketTop.GreaterThan(bracketFloor) {
			tax = tax.Add(bracketTop.Sub(bracketFloor).Mul(b.Rate))
		}
	}
	return tax
}
