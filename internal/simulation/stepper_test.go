package simulation

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyepaul/retireplan/internal/config"
	"github.com/nyepaul/retireplan/internal/domain"
)

func newTestStepper(t *testing.T, scenario *domain.Scenario) *Stepper {
	t.Helper()
	profile, err := config.MarketProfile(scenario.MarketProfileID)
	require.NoError(t, err)
	sampler, err := NewReturnSampler(profile)
	require.NoError(t, err)
	brackets, err := config.BracketTable("")
	require.NoError(t, err)
	policy, err := PolicyByName(scenario.WithdrawalPolicy)
	require.NoError(t, err)
	return NewStepper(scenario, sampler, NewTaxCalculator(brackets, config.RMDTable()),
		policy, config.MortalityTable(), nil)
}

func rmdScenario() *domain.Scenario {
	return &domain.Scenario{
		Name:      "rmd-check",
		StartYear: 2026,
		Persons: []domain.Person{
			{
				Name:           "ray",
				BirthDate:      time.Date(1950, 5, 1, 0, 0, 0, 0, time.UTC),
				RetirementDate: time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC),
			},
		},
		Accounts: map[string][]domain.Account{
			"retirement": {
				{
					Name:    "ira",
					Kind:    domain.AccountTaxDeferred,
					Owner:   "ray",
					Balance: decimal.NewFromInt(500000),
					Allocation: domain.AssetAllocation{
						Stock: decimal.RequireFromString("0.4"),
						Bond:  decimal.RequireFromString("0.6"),
					},
				},
			},
		},
		TargetAnnualSpending: decimal.Zero,
		FilingStatus:         domain.FilingSingle,
		Mortality:            domain.MortalityFixedHorizon,
		HorizonAge:           90,
		MarketProfileID:      "historical",
	}
}

func TestStepperTakesRMDEvenWithoutSpendingNeed(t *testing.T) {
	scenario := rmdScenario()
	stepper := newTestStepper(t, scenario)

	trial := stepper.RunDeterministic()
	require.NotEmpty(t, trial.Years)

	// Ray turns 76 in 2026; divisor 23.7 on the prior-year-end 500k balance.
	first := trial.Years[0]
	want := decimal.NewFromInt(500000).Div(decimal.RequireFromString("23.7"))
	assert.True(t, first.RMD.Equal(want), "got RMD %s, want %s", first.RMD, want)
	assert.True(t, first.OrdinaryIncome.GreaterThanOrEqual(first.RMD),
		"RMD counts as ordinary income")

	// Every year with a deferred balance produces a positive RMD.
	for _, ys := range trial.Years {
		if ys.EndingBalances["ira"].IsPositive() {
			assert.True(t, ys.RMD.IsPositive(), "year %d missing RMD", ys.Year)
		}
	}
}

func TestStepperRMDSweptNotSpent(t *testing.T) {
	scenario := rmdScenario()
	stepper := newTestStepper(t, scenario)

	trial := stepper.RunDeterministic()
	first := trial.Years[0]

	// With no spending target the RMD (less tax) lands in the sweep account.
	assert.True(t, first.EndingBalances[sweepAccountName].IsPositive(),
		"surplus RMD should be swept to cash")
	assert.True(t, trial.Succeeded)
}

func TestStepperGuaranteedIncomeAloneSucceeds(t *testing.T) {
	scenario := &domain.Scenario{
		Name:      "pension-only",
		StartYear: 2026,
		Persons: []domain.Person{
			{
				Name:           "gail",
				BirthDate:      time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC),
				RetirementDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			},
		},
		IncomeStreams: []domain.IncomeStream{
			{
				Name:              "pension",
				AnnualAmount:      decimal.NewFromInt(120000),
				InflationAdjusted: true,
				Scope:             domain.ScopeHousehold,
			},
		},
		TargetAnnualSpending: decimal.NewFromInt(40000),
		FilingStatus:         domain.FilingSingle,
		Mortality:            domain.MortalityFixedHorizon,
		HorizonAge:           95,
		MarketProfileID:      "historical",
	}
	stepper := newTestStepper(t, scenario)

	trial := stepper.RunDeterministic()
	assert.True(t, trial.Succeeded, "income covers spending and tax every year")
	for _, ys := range trial.Years {
		assert.False(t, ys.Failed, "year %d", ys.Year)
		assert.True(t, ys.Tax.IsPositive(), "pension income is taxed")
	}
}

func TestStepperFailurePinsNetWorthAtZero(t *testing.T) {
	scenario := &domain.Scenario{
		Name:      "broke",
		StartYear: 2026,
		Persons: []domain.Person{
			{
				Name:           "flo",
				BirthDate:      time.Date(1961, 1, 1, 0, 0, 0, 0, time.UTC),
				RetirementDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			},
		},
		TargetAnnualSpending: decimal.NewFromInt(50000),
		FilingStatus:         domain.FilingSingle,
		Mortality:            domain.MortalityFixedHorizon,
		HorizonAge:           90,
		MarketProfileID:      "historical",
	}
	stepper := newTestStepper(t, scenario)

	trial := stepper.RunDeterministic()
	require.False(t, trial.Succeeded)
	assert.Equal(t, 2026, trial.FailureYear)
	assert.True(t, trial.EndingNetWorth.IsZero())

	// Years keep being recorded through the horizon so percentile timelines stay
	// aligned, all pinned at zero.
	assert.Len(t, trial.Years, 2051-2026+1)
	for _, ys := range trial.Years {
		assert.True(t, ys.NetWorth.IsZero(), "year %d", ys.Year)
	}
	assert.True(t, trial.Years[0].Shortfall.IsPositive())
}

func TestStepperPropertySaleCreditsEquity(t *testing.T) {
	saleYear := 2028
	scenario := rmdScenario()
	scenario.Properties = []domain.Property{
		{
			Name:            "rental",
			MarketValue:     decimal.NewFromInt(300000),
			MortgageBalance: decimal.NewFromInt(100000),
			SaleYear:        &saleYear,
		},
	}
	stepper := newTestStepper(t, scenario)

	trial := stepper.RunDeterministic()
	var saleYS *domain.YearState
	for i := range trial.Years {
		if trial.Years[i].Year == saleYear {
			saleYS = &trial.Years[i]
		}
	}
	require.NotNil(t, saleYS)
	assert.True(t, saleYS.PropertyProceeds.Equal(decimal.NewFromInt(200000)),
		"got proceeds %s", saleYS.PropertyProceeds)

	// After the sale the property no longer contributes to net worth.
	for _, ys := range trial.Years {
		if ys.Year > saleYear {
			total := decimal.Zero
			for _, b := range ys.EndingBalances {
				total = total.Add(b)
			}
			assert.True(t, ys.NetWorth.Equal(total), "year %d net worth is accounts only", ys.Year)
		}
	}
}

func TestStepperContributionsWhileWorking(t *testing.T) {
	scenario := &domain.Scenario{
		Name:      "accumulator",
		StartYear: 2026,
		Persons: []domain.Person{
			{
				Name:           "wes",
				BirthDate:      time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC),
				RetirementDate: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
			},
		},
		Accounts: map[string][]domain.Account{
			"retirement": {
				{
					Name:               "401k",
					Kind:               domain.AccountTaxDeferred,
					Owner:              "wes",
					Balance:            decimal.NewFromInt(100000),
					AnnualContribution: decimal.NewFromInt(20000),
				},
			},
		},
		TargetAnnualSpending: decimal.Zero,
		FilingStatus:         domain.FilingSingle,
		Mortality:            domain.MortalityFixedHorizon,
		HorizonAge:           60,
		MarketProfileID:      "historical",
	}
	stepper := newTestStepper(t, scenario)

	trial := stepper.RunDeterministic()
	require.True(t, trial.Succeeded)

	// Contributions flow in 2026-2029 and stop at retirement in 2030. With cash
	// growth only (no allocation) the pre-retirement balances are strictly
	// increasing by more than the contribution alone.
	var pre, post decimal.Decimal
	for _, ys := range trial.Years {
		switch ys.Year {
		case 2029:
			pre = ys.EndingBalances["401k"]
		case 2030:
			post = ys.EndingBalances["401k"]
		}
	}
	growth := decimal.NewFromInt(1).Add(decimal.RequireFromString("0.025"))
	wantPost := pre.Mul(growth)
	assert.True(t, post.Sub(wantPost).Abs().LessThan(decimal.NewFromInt(1)),
		"2030 should grow without a contribution: got %s, want ~%s", post, wantPost)
}

func TestStepperStochasticMortalityEndsHousehold(t *testing.T) {
	scenario := &domain.Scenario{
		Name:      "mortal",
		StartYear: 2026,
		Persons: []domain.Person{
			{
				Name:           "max",
				BirthDate:      time.Date(1940, 1, 1, 0, 0, 0, 0, time.UTC),
				RetirementDate: time.Date(2005, 1, 1, 0, 0, 0, 0, time.UTC),
			},
		},
		IncomeStreams: []domain.IncomeStream{
			{Name: "annuity", AnnualAmount: decimal.NewFromInt(80000), Scope: domain.ScopeHousehold},
		},
		TargetAnnualSpending: decimal.NewFromInt(30000),
		FilingStatus:         domain.FilingSingle,
		Mortality:            domain.MortalityStochastic,
		HorizonAge:           100,
		MarketProfileID:      "historical",
	}
	stepper := newTestStepper(t, scenario)
	// A table that guarantees death at 90 makes the draw deterministic.
	stepper.mortality = &domain.MortalityTable{MaxAge: 90, Qx: map[int]float64{}}

	trial := stepper.RunTrial(0, rand.New(rand.NewSource(1)))
	require.True(t, trial.Succeeded)

	for _, ys := range trial.Years {
		if ys.Year < 2030 {
			assert.True(t, ys.Spending.IsPositive(), "year %d: alive and spending", ys.Year)
		}
		if ys.Year > 2030 {
			assert.True(t, ys.Spending.IsZero(), "year %d: household ended at age 90", ys.Year)
			assert.True(t, ys.GuaranteedIncome.IsZero())
		}
	}
}

func TestStepperRothConversionMovesBalance(t *testing.T) {
	scenario := rmdScenario()
	// Move the owner below RMD age so conversions are the only deferred outflow.
	scenario.Persons[0].BirthDate = time.Date(1964, 5, 1, 0, 0, 0, 0, time.UTC)
	scenario.HorizonAge = 80
	scenario.RothConversions = []domain.AnnualConversion{
		{Year: 2026, Amount: decimal.NewFromInt(50000)},
	}
	stepper := newTestStepper(t, scenario)

	trial := stepper.RunDeterministic()
	first := trial.Years[0]
	assert.True(t, first.RothConversion.Equal(decimal.NewFromInt(50000)))
	assert.True(t, first.OrdinaryIncome.GreaterThanOrEqual(decimal.NewFromInt(50000)),
		"conversion is ordinary income")
	assert.True(t, first.EndingBalances["roth-conversion"].IsPositive(),
		"converted funds land in a tax-free account")
}
