package optimizer

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/nyepaul/retireplan/internal/domain"
	"github.com/nyepaul/retireplan/internal/simulation"
	"github.com/nyepaul/retireplan/pkg/dateutil"
)

// SSOptimizer searches claim-age combinations for the household strategy with the
// highest survival-weighted present value of lifetime benefits.
type SSOptimizer struct {
	scenario     *domain.Scenario
	mortality    *domain.MortalityTable
	discountRate decimal.Decimal
	logger       simulation.Logger
}

// NewSSOptimizer builds an optimizer. discountRate is the real annual rate used
// to discount future benefits.
func NewSSOptimizer(scenario *domain.Scenario, mortality *domain.MortalityTable,
	discountRate decimal.Decimal, logger simulation.Logger) *SSOptimizer {
	if logger == nil {
		logger = simulation.NopLogger{}
	}
	return &SSOptimizer{
		scenario:     scenario,
		mortality:    mortality,
		discountRate: discountRate,
		logger:       logger,
	}
}

// Optimize evaluates every claim-age combination in [minAge, maxAge] for each
// person and returns them ranked by NPV, best first. Ties go to the earlier claim
// ages. An inverted or out-of-bounds range yields an empty (not nil) result.
func (o *SSOptimizer) Optimize(minAge, maxAge int) (*domain.SSOptimization, error) {
	if minAge < dateutil.EarliestClaimAge {
		minAge = dateutil.EarliestClaimAge
	}
	if maxAge > dateutil.LatestClaimAge {
		maxAge = dateutil.LatestClaimAge
	}

	result := &domain.SSOptimization{DiscountRate: o.discountRate}
	if minAge > maxAge {
		o.logger.Warnf("empty claim-age range [%d, %d], nothing to optimize", minAge, maxAge)
		return result, nil
	}
	if len(o.scenario.Persons) == 0 {
		return nil, fmt.Errorf("scenario has no persons")
	}

	combos := claimAgeCombinations(len(o.scenario.Persons), minAge, maxAge)
	for _, ages := range combos {
		combo := o.evaluate(ages)
		result.Combinations = append(result.Combinations, combo)
	}

	sort.SliceStable(result.Combinations, func(i, j int) bool {
		a, b := result.Combinations[i], result.Combinations[j]
		if !a.NPV.Equal(b.NPV) {
			return a.NPV.GreaterThan(b.NPV)
		}
		// Tie: prefer claiming earlier.
		return sumAges(a.ClaimAges) < sumAges(b.ClaimAges)
	})

	if best := result.Best(); best != nil {
		o.logger.Infof("best claim strategy %v with NPV %s", best.ClaimAges, best.NPV.StringFixed(0))
	}
	return result, nil
}

// evaluate computes the survival-weighted NPV of one claim-age assignment. For a
// couple the expected annual benefit accounts for the survivor stepping up to the
// larger of the two benefits after the first death.
func (o *SSOptimizer) evaluate(ages []int) domain.ClaimCombination {
	combo := domain.ClaimCombination{
		ClaimAges:       make(map[string]int),
		MonthlyBenefits: make(map[string]decimal.Decimal),
	}
	persons := o.scenario.Persons
	annual := make([]decimal.Decimal, len(persons))
	for i := range persons {
		combo.ClaimAges[persons[i].Name] = ages[i]
		monthly := simulation.ClaimAdjustedBenefit(persons[i].SSBenefitFRA, ages[i], persons[i].FullRetirementAge())
		combo.MonthlyBenefits[persons[i].Name] = monthly
		annual[i] = monthly.Mul(decimal.NewFromInt(12))
	}

	startYear := o.scenario.StartYear
	endYear := 0
	for i := range persons {
		if y := persons[i].BirthDate.Year() + o.mortality.MaxAge; y > endYear {
			endYear = y
		}
	}

	one := decimal.NewFromInt(1)
	discount := one
	npv := decimal.Zero

	for year := startYear; year <= endYear; year++ {
		expected := o.expectedBenefit(annual, ages, year)
		npv = npv.Add(expected.Mul(discount))
		discount = discount.Div(one.Add(o.discountRate))
	}
	combo.NPV = npv
	return combo
}

// expectedBenefit is the probability-weighted household benefit for one calendar
// year, summed over the alive/dead states of the household.
func (o *SSOptimizer) expectedBenefit(annual []decimal.Decimal, claimAges []int, year int) decimal.Decimal {
	persons := o.scenario.Persons

	// Per-person benefit actually payable this year (zero before claim age) and
	// survival probability from the start year to this year.
	payable := make([]decimal.Decimal, len(persons))
	pAlive := make([]float64, len(persons))
	for i := range persons {
		age := dateutil.AgeAtYearEnd(persons[i].BirthDate, year)
		if age >= claimAges[i] {
			payable[i] = annual[i]
		}
		startAge := dateutil.AgeAtYearEnd(persons[i].BirthDate, o.scenario.StartYear)
		pAlive[i] = o.mortality.SurvivalTo(startAge, age)
	}

	if len(persons) == 1 {
		return payable[0].Mul(decimal.NewFromFloat(pAlive[0]))
	}

	bothAlive := pAlive[0] * pAlive[1]
	oneAlive := pAlive[0]*(1-pAlive[1]) + (1-pAlive[0])*pAlive[1]
	survivorBenefit := decimal.Max(payable[0], payable[1])

	expected := payable[0].Add(payable[1]).Mul(decimal.NewFromFloat(bothAlive))
	return expected.Add(survivorBenefit.Mul(decimal.NewFromFloat(oneAlive)))
}

// claimAgeCombinations enumerates the cartesian product of claim ages for n
// persons over [minAge, maxAge].
func claimAgeCombinations(n, minAge, maxAge int) [][]int {
	if n == 1 {
		var out [][]int
		for a := minAge; a <= maxAge; a++ {
			out = append(out, []int{a})
		}
		return out
	}
	var out [][]int
	for a := minAge; a <= maxAge; a++ {
		for b := minAge; b <= maxAge; b++ {
			out = append(out, []int{a, b})
		}
	}
	return out
}

func sumAges(ages map[string]int) int {
	total := 0
	for _, a := range ages {
		total += a
	}
	return total
}
