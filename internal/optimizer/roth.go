package optimizer

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/nyepaul/retireplan/internal/domain"
	"github.com/nyepaul/retireplan/internal/simulation"
	"github.com/nyepaul/retireplan/pkg/dateutil"
)

// RothOptimizer builds a conversion ladder: each year between retirement and the
// RMD trigger it converts just enough deferred money to fill ordinary-income
// brackets up to a target marginal rate. Growth is projected at the market
// profile's mean returns; each year is filled greedily rather than jointly
// optimized, which keeps the schedule explainable at a small cost in optimality.
type RothOptimizer struct {
	scenario *domain.Scenario
	tax      *simulation.TaxCalculator
	profile  *domain.MarketProfile
	logger   simulation.Logger
}

// NewRothOptimizer builds an optimizer over a scenario and tax regime.
func NewRothOptimizer(scenario *domain.Scenario, tax *simulation.TaxCalculator,
	profile *domain.MarketProfile, logger simulation.Logger) *RothOptimizer {
	if logger == nil {
		logger = simulation.NopLogger{}
	}
	return &RothOptimizer{scenario: scenario, tax: tax, profile: profile, logger: logger}
}

// Optimize returns the conversion schedule filling brackets up to targetRate.
// The window opens at the first year every person has retired and closes the year
// before the earliest RMD age is reached. An empty window yields an explicit
// no-opportunity plan.
func (o *RothOptimizer) Optimize(targetRate decimal.Decimal) (*domain.RothConversionPlan, error) {
	if !targetRate.IsPositive() {
		return nil, fmt.Errorf("target bracket rate must be positive, got %s", targetRate)
	}

	plan := &domain.RothConversionPlan{TargetBracketRate: targetRate}

	windowStart := o.scenario.StartYear
	windowEnd := 1<<31 - 1
	for i := range o.scenario.Persons {
		p := &o.scenario.Persons[i]
		if y := p.RetirementDate.Year(); y > windowStart {
			windowStart = y
		}
		if y := p.BirthDate.Year() + p.RMDAge(); y < windowEnd {
			windowEnd = y
		}
	}
	if windowStart >= windowEnd {
		o.logger.Infof("no conversion window between retirement and RMD age")
		return plan, nil
	}
	plan.WindowStart = windowStart
	plan.WindowEnd = windowEnd

	deferred := decimal.Zero
	growthRate := decimal.Zero
	weight := decimal.Zero
	for _, a := range o.scenario.AllAccounts() {
		if !a.Kind.GrowsTaxDeferred() {
			continue
		}
		deferred = deferred.Add(a.Balance)
		r := a.Allocation.Stock.Mul(o.profile.Stock.Mean).
			Add(a.Allocation.Bond.Mul(o.profile.Bond.Mean)).
			Add(a.Allocation.EffectiveCash().Mul(o.profile.CashYield))
		growthRate = growthRate.Add(r.Mul(a.Balance))
		weight = weight.Add(a.Balance)
	}
	if !deferred.IsPositive() {
		o.logger.Infof("no tax-deferred balance to convert")
		return plan, nil
	}
	growthRate = growthRate.Div(weight)

	deduction := o.tax.StandardDeduction(o.scenario.FilingStatus)
	ceiling := o.tax.BracketCeiling(targetRate, o.scenario.FilingStatus)
	if !ceiling.IsPositive() {
		return nil, fmt.Errorf("no ordinary bracket at or below rate %s", targetRate)
	}
	one := decimal.NewFromInt(1)
	inflationFactor := one

	// Grow the deferred balance from the start year up to the window.
	for year := o.scenario.StartYear; year < windowStart; year++ {
		deferred = deferred.Mul(one.Add(growthRate))
		inflationFactor = inflationFactor.Mul(one.Add(o.profile.Inflation.Mean))
	}

	for year := windowStart; year < windowEnd && deferred.IsPositive(); year++ {
		baseline := o.baselineOrdinaryIncome(year, inflationFactor)
		// Headroom is measured in taxable income: the bracket ceiling plus the
		// deduction, minus income already on the return.
		headroom := ceiling.Add(deduction).Sub(baseline)
		if headroom.IsPositive() {
			amount := decimal.Min(headroom, deferred)
			withConv := o.tax.CalculateTax(baseline.Add(amount), decimal.Zero, o.scenario.FilingStatus)
			without := o.tax.CalculateTax(baseline, decimal.Zero, o.scenario.FilingStatus)
			cost := withConv.Sub(without)

			fillFrom := baseline.Sub(deduction)
			if fillFrom.IsNegative() {
				fillFrom = decimal.Zero
			}
			o.logger.Debugf("year %d: converting %s, filling from the %s marginal rate",
				year, amount.StringFixed(0), o.tax.MarginalRate(fillFrom, o.scenario.FilingStatus))

			plan.Conversions = append(plan.Conversions, domain.AnnualConversion{
				Year:    year,
				Amount:  amount.Round(2),
				TaxCost: cost.Round(2),
			})
			plan.TotalConverted = plan.TotalConverted.Add(amount)
			plan.TotalTaxCost = plan.TotalTaxCost.Add(cost)
			deferred = deferred.Sub(amount)
		}
		deferred = deferred.Mul(one.Add(growthRate))
		inflationFactor = inflationFactor.Mul(one.Add(o.profile.Inflation.Mean))
	}

	o.logger.Infof("conversion ladder: %d years, %s converted at %s tax cost",
		len(plan.Conversions), plan.TotalConverted.StringFixed(0), plan.TotalTaxCost.StringFixed(0))
	return plan, nil
}

// baselineOrdinaryIncome estimates the household's ordinary income for a window
// year absent conversions: active income streams plus the taxable share of any
// claimed Social Security.
func (o *RothOptimizer) baselineOrdinaryIncome(year int, inflationFactor decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for i := range o.scenario.IncomeStreams {
		stream := &o.scenario.IncomeStreams[i]
		if stream.StartYear != nil && year < *stream.StartYear {
			continue
		}
		if stream.Owner != "" && stream.StartAge != nil {
			p := o.scenario.PersonByName(stream.Owner)
			if p != nil && dateutil.AgeAtYearEnd(p.BirthDate, year) < *stream.StartAge {
				continue
			}
		}
		amount := stream.AnnualAmount
		if stream.Scope == domain.ScopePerPerson {
			amount = amount.Mul(decimal.NewFromInt(int64(len(o.scenario.Persons))))
		}
		if stream.InflationAdjusted {
			amount = amount.Mul(inflationFactor)
		}
		total = total.Add(amount)
	}

	taxableShare := decimal.RequireFromString("0.85")
	for i := range o.scenario.Persons {
		p := &o.scenario.Persons[i]
		claimAge := p.ClaimAge()
		if dateutil.AgeAtYearEnd(p.BirthDate, year) >= claimAge {
			ss := simulation.AnnualBenefit(p, claimAge).Mul(inflationFactor)
			total = total.Add(ss.Mul(taxableShare))
		}
	}
	return total
}
