package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/nyepaul/retireplan/pkg/dateutil"
)

// FilingStatus selects the bracket and deduction set used for tax calculations.
type FilingStatus string

const (
	FilingSingle       FilingStatus = "single"
	FilingMarriedJoint FilingStatus = "married_joint"
)

// Person represents one member of the household. Immutable for the duration of a run.
type Person struct {
	Name             string          `yaml:"name" json:"name"`
	BirthDate        time.Time       `yaml:"birth_date" json:"birth_date"`
	RetirementDate   time.Time       `yaml:"retirement_date" json:"retirement_date"`
	SSBenefitFRA     decimal.Decimal `yaml:"ss_benefit_fra" json:"ss_benefit_fra"` // Monthly at Full Retirement Age
	SSClaimAge       int             `yaml:"ss_claim_age,omitempty" json:"ss_claim_age,omitempty"`
	MortalityTableID string          `yaml:"mortality_table,omitempty" json:"mortality_table,omitempty"`
}

// Age calculates the age of the person at a given date
func (p *Person) Age(atDate time.Time) int {
	return dateutil.Age(p.BirthDate, atDate)
}

// FullRetirementAge returns the Social Security Full Retirement Age for this person
func (p *Person) FullRetirementAge() int {
	return dateutil.FullRetirementAge(p.BirthDate)
}

// RMDAge returns the age at which required minimum distributions begin for this person
func (p *Person) RMDAge() int {
	return dateutil.GetRMDAge(p.BirthDate.Year())
}

// ClaimAge returns the configured Social Security claim age, defaulting to FRA.
func (p *Person) ClaimAge() int {
	if p.SSClaimAge == 0 {
		return p.FullRetirementAge()
	}
	return p.SSClaimAge
}

// AccountKind is a tagged variant describing how an account grows and how
// withdrawals from it are taxed. All engine dispatch goes through the capability
// methods below rather than string comparison.
type AccountKind int

const (
	AccountTaxDeferred AccountKind = iota // traditional IRA/401k style
	AccountTaxFree                        // Roth style
	AccountTaxable                        // brokerage with cost basis
	AccountCashEquivalent                 // savings, money market
)

var accountKindNames = map[AccountKind]string{
	AccountTaxDeferred:    "tax_deferred",
	AccountTaxFree:        "tax_free",
	AccountTaxable:        "taxable",
	AccountCashEquivalent: "cash",
}

var accountKindValues = map[string]AccountKind{
	"tax_deferred": AccountTaxDeferred,
	"tax_free":     AccountTaxFree,
	"taxable":      AccountTaxable,
	"cash":         AccountCashEquivalent,
}

func (k AccountKind) String() string { return accountKindNames[k] }

// GrowsTaxDeferred reports whether growth in the account is untaxed until withdrawal.
func (k AccountKind) GrowsTaxDeferred() bool { return k == AccountTaxDeferred }

// GrowsTaxFree reports whether both growth and withdrawals escape taxation.
func (k AccountKind) GrowsTaxFree() bool { return k == AccountTaxFree }

// OrdinaryIncomeOnWithdrawal reports whether withdrawals are taxed as ordinary income.
func (k AccountKind) OrdinaryIncomeOnWithdrawal() bool { return k == AccountTaxDeferred }

// CapitalGainOnWithdrawal reports whether withdrawals realize capital gains.
func (k AccountKind) CapitalGainOnWithdrawal() bool { return k == AccountTaxable }

// SubjectToRMD reports whether the account requires minimum distributions by age.
func (k AccountKind) SubjectToRMD() bool { return k == AccountTaxDeferred }

// HasBasis reports whether the account tracks a cost basis.
func (k AccountKind) HasBasis() bool { return k == AccountTaxable }

// MarshalYAML implements yaml.Marshaler
func (k AccountKind) MarshalYAML() (interface{}, error) { return k.String(), nil }

// UnmarshalYAML implements custom YAML unmarshaling for AccountKind
func (k *AccountKind) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	kind, ok := accountKindValues[s]
	if !ok {
		return fmt.Errorf("unknown account kind %q (want tax_deferred, tax_free, taxable, or cash)", s)
	}
	*k = kind
	return nil
}

// MarshalJSON implements json.Marshaler
func (k AccountKind) MarshalJSON() ([]byte, error) {
	return []byte(`"` + k.String() + `"`), nil
}

// AssetAllocation is the stock/bond/cash weighting of an account. Weights must sum
// to at most 1; any remainder is implicitly held as cash.
type AssetAllocation struct {
	Stock decimal.Decimal `yaml:"stock" json:"stock"`
	Bond  decimal.Decimal `yaml:"bond" json:"bond"`
	Cash  decimal.Decimal `yaml:"cash,omitempty" json:"cash,omitempty"`
}

// Sum returns the total of the explicit weights.
func (a AssetAllocation) Sum() decimal.Decimal {
	return a.Stock.Add(a.Bond).Add(a.Cash)
}

// EffectiveCash returns the explicit cash weight plus the implicit remainder.
func (a AssetAllocation) EffectiveCash() decimal.Decimal {
	return decimal.NewFromInt(1).Sub(a.Stock).Sub(a.Bond)
}

// Account is a typed container of investable money.
type Account struct {
	Name               string          `yaml:"name" json:"name"`
	Kind               AccountKind     `yaml:"kind" json:"kind"`
	Owner              string          `yaml:"owner,omitempty" json:"owner,omitempty"`
	Balance            decimal.Decimal `yaml:"balance" json:"balance"`
	CostBasis          decimal.Decimal `yaml:"cost_basis,omitempty" json:"cost_basis,omitempty"`
	AnnualContribution decimal.Decimal `yaml:"annual_contribution,omitempty" json:"annual_contribution,omitempty"`
	Allocation         AssetAllocation `yaml:"allocation" json:"allocation"`
}

// Property is a real-estate holding.
type Property struct {
	Name                string          `yaml:"name" json:"name"`
	MarketValue         decimal.Decimal `yaml:"market_value" json:"market_value"`
	MortgageBalance     decimal.Decimal `yaml:"mortgage_balance,omitempty" json:"mortgage_balance,omitempty"`
	AppreciationRate    decimal.Decimal `yaml:"appreciation_rate,omitempty" json:"appreciation_rate,omitempty"`
	AnnualRentalIncome  decimal.Decimal `yaml:"annual_rental_income,omitempty" json:"annual_rental_income,omitempty"`
	AnnualRentalExpense decimal.Decimal `yaml:"annual_rental_expense,omitempty" json:"annual_rental_expense,omitempty"`
	SaleYear            *int            `yaml:"sale_year,omitempty" json:"sale_year,omitempty"`
	ReplacementCost     decimal.Decimal `yaml:"replacement_cost,omitempty" json:"replacement_cost,omitempty"`
}

// Equity returns market value minus mortgage balance. A sale can realize negative
// proceeds, so the result is deliberately not clamped at zero.
func (p *Property) Equity() decimal.Decimal {
	return p.MarketValue.Sub(p.MortgageBalance)
}

// NetRental returns rental income net of expenses for one year.
func (p *Property) NetRental() decimal.Decimal {
	return p.AnnualRentalIncome.Sub(p.AnnualRentalExpense)
}

// StreamScope says whether a stream's amount covers the whole household or is paid
// once per person. The distinction matters for pensions in two-person scenarios and
// must be supplied explicitly by the caller; the engine never infers it.
type StreamScope string

const (
	ScopeHousehold StreamScope = "household"
	ScopePerPerson StreamScope = "per_person"
)

// IncomeStream is periodic guaranteed income: pension, annuity, rental, part-time work.
type IncomeStream struct {
	Name              string          `yaml:"name" json:"name"`
	Owner             string          `yaml:"owner,omitempty" json:"owner,omitempty"`
	AnnualAmount      decimal.Decimal `yaml:"annual_amount" json:"annual_amount"`
	InflationAdjusted bool            `yaml:"inflation_adjusted,omitempty" json:"inflation_adjusted,omitempty"`
	StartYear         *int            `yaml:"start_year,omitempty" json:"start_year,omitempty"`
	StartAge          *int            `yaml:"start_age,omitempty" json:"start_age,omitempty"`
	SurvivorPercent   decimal.Decimal `yaml:"survivor_percent,omitempty" json:"survivor_percent,omitempty"`
	Pension           bool            `yaml:"pension,omitempty" json:"pension,omitempty"`
	Scope             StreamScope     `yaml:"scope,omitempty" json:"scope,omitempty"`
}

// MortalityModel selects how deaths are simulated.
type MortalityModel string

const (
	MortalityFixedHorizon MortalityModel = "fixed_horizon"
	MortalityStochastic   MortalityModel = "stochastic"
)

// Scenario is the complete engine input: the household plus assumptions.
type Scenario struct {
	Name                 string               `yaml:"name" json:"name"`
	StartYear            int                  `yaml:"start_year,omitempty" json:"start_year,omitempty"`
	Persons              []Person             `yaml:"persons" json:"persons"`
	Accounts             map[string][]Account `yaml:"accounts" json:"accounts"`
	Properties           []Property           `yaml:"properties,omitempty" json:"properties,omitempty"`
	IncomeStreams        []IncomeStream       `yaml:"income_streams,omitempty" json:"income_streams,omitempty"`
	TargetAnnualSpending decimal.Decimal      `yaml:"target_annual_spending" json:"target_annual_spending"`
	FilingStatus         FilingStatus         `yaml:"filing_status" json:"filing_status"`
	BracketTableID       string               `yaml:"bracket_table,omitempty" json:"bracket_table,omitempty"`
	MarketProfileID      string               `yaml:"market_profile,omitempty" json:"market_profile,omitempty"`
	WithdrawalPolicy     string               `yaml:"withdrawal_policy,omitempty" json:"withdrawal_policy,omitempty"`
	Mortality            MortalityModel       `yaml:"mortality,omitempty" json:"mortality,omitempty"`
	HorizonAge           int                  `yaml:"horizon_age" json:"horizon_age"`
	NumSimulations       int                  `yaml:"num_simulations,omitempty" json:"num_simulations,omitempty"`
	Seed                 int64                `yaml:"seed,omitempty" json:"seed,omitempty"`

	// Optional per-year Roth conversion schedule applied by the stepper as an
	// additional transaction (typically produced by the conversion optimizer).
	RothConversions []AnnualConversion `yaml:"roth_conversions,omitempty" json:"roth_conversions,omitempty"`
}

// AllAccounts flattens the category-keyed account map into a single slice.
// Category keys are labels from the scenario store; behavior comes from Kind.
func (s *Scenario) AllAccounts() []Account {
	var out []Account
	for _, group := range s.Accounts {
		out = append(out, group...)
	}
	return out
}

// StartingPortfolio is the sum of all account balances as supplied. The engine must
// report exactly this value in its results.
func (s *Scenario) StartingPortfolio() decimal.Decimal {
	total := decimal.Zero
	for _, a := range s.AllAccounts() {
		total = total.Add(a.Balance)
	}
	return total
}

// PersonByName looks up a person by name; nil if absent.
func (s *Scenario) PersonByName(name string) *Person {
	for i := range s.Persons {
		if s.Persons[i].Name == name {
			return &s.Persons[i]
		}
	}
	return nil
}
