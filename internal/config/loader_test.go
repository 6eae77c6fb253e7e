package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyepaul/retireplan/internal/domain"
)

func pinNow(t *testing.T, year int) {
	t.Helper()
	orig := nowFunc
	nowFunc = func() time.Time { return time.Date(year, 6, 1, 0, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { nowFunc = orig })
}

const validScenarioYAML = `
name: base-case
persons:
  - name: alice
    birth_date: 1962-04-15T00:00:00Z
    retirement_date: 2027-01-01T00:00:00Z
    ss_benefit_fra: 2800
    ss_claim_age: 67
accounts:
  retirement:
    - name: 401k
      kind: tax_deferred
      owner: alice
      balance: 600000
      allocation: {stock: 0.6, bond: 0.4}
    - name: roth
      kind: tax_free
      owner: alice
      balance: 150000
      allocation: {stock: 0.8, bond: 0.2}
  liquid:
    - name: brokerage
      kind: taxable
      balance: 250000
      cost_basis: 180000
      allocation: {stock: 0.7, bond: 0.2}
income_streams:
  - name: pension
    owner: alice
    annual_amount: 12000
    inflation_adjusted: true
    start_age: 65
    pension: true
target_annual_spending: 60000
horizon_age: 95
num_simulations: 500
seed: 42
`

func TestParseScenarioValid(t *testing.T) {
	pinNow(t, 2026)
	s, err := ParseScenario([]byte(validScenarioYAML))
	require.NoError(t, err)

	assert.Equal(t, "base-case", s.Name)
	assert.Equal(t, 2026, s.StartYear, "defaults to current year")
	assert.Equal(t, domain.FilingSingle, s.FilingStatus, "single person defaults to single filing")
	assert.Equal(t, domain.MortalityFixedHorizon, s.Mortality)
	assert.Equal(t, 500, s.NumSimulations)
	assert.Equal(t, int64(42), s.Seed)
	assert.True(t, s.StartingPortfolio().Equal(decimal.NewFromInt(1000000)))

	acct := s.Accounts["retirement"][0]
	assert.Equal(t, domain.AccountTaxDeferred, acct.Kind)
	assert.True(t, acct.Kind.SubjectToRMD())
}

func TestParseScenarioDefaults(t *testing.T) {
	pinNow(t, 2026)
	s, err := ParseScenario([]byte(`
name: minimal
persons:
  - name: bob
    birth_date: 1970-01-01T00:00:00Z
    retirement_date: 2035-01-01T00:00:00Z
    ss_benefit_fra: 2000
accounts:
  retirement:
    - name: ira
      kind: tax_deferred
      balance: 100000
      allocation: {stock: 0.5, bond: 0.5}
target_annual_spending: 30000
horizon_age: 90
`))
	require.NoError(t, err)
	assert.Equal(t, DefaultNumSimulations, s.NumSimulations)
	assert.NotZero(t, s.Seed, "seed defaults to wall clock")
	assert.Equal(t, DefaultBracketTableID, s.BracketTableID)
	assert.Equal(t, DefaultMarketProfileID, s.MarketProfileID)
}

func TestValidateScenarioRejections(t *testing.T) {
	pinNow(t, 2026)
	base := func() string { return validScenarioYAML }

	tests := []struct {
		name    string
		mutate  func(s *domain.Scenario)
		wantErr string
	}{
		{
			name:    "no persons",
			mutate:  func(s *domain.Scenario) { s.Persons = nil },
			wantErr: "1 or 2 persons",
		},
		{
			name: "three persons",
			mutate: func(s *domain.Scenario) {
				s.Persons = append(s.Persons, domain.Person{Name: "b"}, domain.Person{Name: "c"})
			},
			wantErr: "1 or 2 persons",
		},
		{
			name: "birth date in the future",
			mutate: func(s *domain.Scenario) {
				s.Persons[0].BirthDate = time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC)
			},
			wantErr: "in the future",
		},
		{
			name:    "claim age out of range",
			mutate:  func(s *domain.Scenario) { s.Persons[0].SSClaimAge = 59 },
			wantErr: "ss_claim_age",
		},
		{
			name:    "missing horizon",
			mutate:  func(s *domain.Scenario) { s.HorizonAge = 0 },
			wantErr: "horizon_age",
		},
		{
			name:    "past horizon already",
			mutate:  func(s *domain.Scenario) { s.HorizonAge = 60 },
			wantErr: "past horizon_age",
		},
		{
			name:    "negative spending",
			mutate:  func(s *domain.Scenario) { s.TargetAnnualSpending = decimal.NewFromInt(-1) },
			wantErr: "target_annual_spending",
		},
		{
			name: "allocation over one",
			mutate: func(s *domain.Scenario) {
				s.Accounts["retirement"][0].Allocation.Stock = decimal.RequireFromString("0.9")
				s.Accounts["retirement"][0].Allocation.Bond = decimal.RequireFromString("0.5")
			},
			wantErr: "allocation weights sum",
		},
		{
			name: "basis exceeds balance",
			mutate: func(s *domain.Scenario) {
				s.Accounts["liquid"][0].CostBasis = decimal.NewFromInt(999999)
			},
			wantErr: "cost_basis",
		},
		{
			name: "unknown account owner",
			mutate: func(s *domain.Scenario) {
				s.Accounts["retirement"][0].Owner = "nobody"
			},
			wantErr: "unknown owner",
		},
		{
			name:    "unknown market profile",
			mutate:  func(s *domain.Scenario) { s.MarketProfileID = "roaring-twenties" },
			wantErr: "unknown market profile",
		},
		{
			name:    "unknown bracket table",
			mutate:  func(s *domain.Scenario) { s.BracketTableID = "us_federal_1913" },
			wantErr: "unknown bracket table",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ParseScenario([]byte(base()))
			require.NoError(t, err)
			tt.mutate(s)
			err = ValidateScenario(s)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidatePensionScopeAmbiguity(t *testing.T) {
	pinNow(t, 2026)
	s, err := ParseScenario([]byte(validScenarioYAML))
	require.NoError(t, err)

	// A second person makes an unscoped pension ambiguous.
	s.Persons = append(s.Persons, domain.Person{
		Name:           "pat",
		BirthDate:      time.Date(1964, 8, 1, 0, 0, 0, 0, time.UTC),
		RetirementDate: time.Date(2029, 1, 1, 0, 0, 0, 0, time.UTC),
		SSBenefitFRA:   decimal.NewFromInt(1800),
	})
	s.IncomeStreams[0].Scope = ""
	err = ValidateScenario(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires explicit scope")

	s.IncomeStreams[0].Scope = domain.ScopeHousehold
	assert.NoError(t, ValidateScenario(s))
}

func TestBuiltinTables(t *testing.T) {
	for _, id := range MarketProfileIDs() {
		p, err := MarketProfile(id)
		require.NoError(t, err)
		assert.True(t, p.Stock.StdDev.IsPositive(), "%s stock stddev", id)
		assert.True(t, p.Bond.StdDev.IsPositive(), "%s bond stddev", id)
		assert.True(t, p.Inflation.StdDev.IsPositive(), "%s inflation stddev", id)
	}

	brackets, err := BracketTable("")
	require.NoError(t, err)
	for _, status := range []domain.FilingStatus{domain.FilingSingle, domain.FilingMarriedJoint} {
		ladder := brackets.Ordinary[status]
		require.NotEmpty(t, ladder)
		for i := 1; i < len(ladder); i++ {
			assert.True(t, ladder[i].Threshold.GreaterThan(ladder[i-1].Threshold),
				"%s ordinary thresholds ascending", status)
			assert.True(t, ladder[i].Rate.GreaterThan(ladder[i-1].Rate),
				"%s ordinary rates ascending", status)
		}
		assert.True(t, brackets.StandardDeduction[status].IsPositive())
	}

	rmd := RMDTable()
	assert.True(t, rmd.Divisor(72).Equal(decimal.RequireFromString("27.4")))
	assert.True(t, rmd.Divisor(110).Equal(decimal.RequireFromString("6.0")))

	mort := MortalityTable()
	assert.Greater(t, mort.DeathProbability(90), mort.DeathProbability(70),
		"mortality increases with age")
}
