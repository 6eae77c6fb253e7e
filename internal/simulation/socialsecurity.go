package simulation

import (
	"github.com/shopspring/decimal"

	"github.com/nyepaul/retireplan/internal/domain"
	"github.com/nyepaul/retireplan/pkg/dateutil"
)

// ClaimAdjustedBenefit returns the monthly Social Security benefit for claiming at
// claimAge, given the benefit at Full Retirement Age. Early claims are reduced by
// 5/9 of 1% per month for the first 36 months before FRA and 5/12 of 1% per month
// beyond that; delayed claims earn 2/3 of 1% per month, with no credit past 70.
func ClaimAdjustedBenefit(benefitAtFRA decimal.Decimal, claimAge, fra int) decimal.Decimal {
	if claimAge > dateutil.LatestClaimAge {
		claimAge = dateutil.LatestClaimAge
	}
	monthsFromFRA := (claimAge - fra) * 12

	switch {
	case monthsFromFRA < 0:
		early := -monthsFromFRA
		first := early
		if first > 36 {
			first = 36
		}
		rest := early - first
		reduction := decimal.NewFromInt(int64(first)).Mul(decimal.NewFromInt(5)).Div(decimal.NewFromInt(900)).
			Add(decimal.NewFromInt(int64(rest)).Mul(decimal.NewFromInt(5)).Div(decimal.NewFromInt(1200)))
		return benefitAtFRA.Mul(decimal.NewFromInt(1).Sub(reduction))
	case monthsFromFRA > 0:
		credit := decimal.NewFromInt(int64(monthsFromFRA)).Mul(decimal.NewFromInt(2)).Div(decimal.NewFromInt(300))
		return benefitAtFRA.Mul(decimal.NewFromInt(1).Add(credit))
	default:
		return benefitAtFRA
	}
}

// AnnualBenefit returns twelve months of the claim-adjusted benefit.
func AnnualBenefit(p *domain.Person, claimAge int) decimal.Decimal {
	monthly := ClaimAdjustedBenefit(p.SSBenefitFRA, claimAge, p.FullRetirementAge())
	return monthly.Mul(decimal.NewFromInt(12))
}
