package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/nyepaul/retireplan/internal/domain"
	"github.com/nyepaul/retireplan/pkg/dateutil"
)

// nowFunc allows tests to pin the current time.
var nowFunc = time.Now

// DefaultNumSimulations is used when the scenario does not set a simulation count.
const DefaultNumSimulations = 1000

// LoadScenario reads and validates a scenario document from a YAML file.
func LoadScenario(path string) (*domain.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes a scenario document and validates it. The returned
// scenario has defaults applied and is safe to hand to the engine.
func ParseScenario(data []byte) (*domain.Scenario, error) {
	var scenario domain.Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}

	applyDefaults(&scenario)

	if err := ValidateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("scenario validation failed: %w", err)
	}

	return &scenario, nil
}

func applyDefaults(s *domain.Scenario) {
	if s.StartYear == 0 {
		s.StartYear = nowFunc().Year()
	}
	if s.NumSimulations == 0 {
		s.NumSimulations = DefaultNumSimulations
	}
	if s.Seed == 0 {
		s.Seed = nowFunc().UnixNano()
	}
	if s.FilingStatus == "" {
		if len(s.Persons) > 1 {
			s.FilingStatus = domain.FilingMarriedJoint
		} else {
			s.FilingStatus = domain.FilingSingle
		}
	}
	if s.Mortality == "" {
		s.Mortality = domain.MortalityFixedHorizon
	}
	if s.BracketTableID == "" {
		s.BracketTableID = DefaultBracketTableID
	}
	if s.MarketProfileID == "" {
		s.MarketProfileID = DefaultMarketProfileID
	}
	// Single-person scenarios have no scope ambiguity.
	if len(s.Persons) == 1 {
		for i := range s.IncomeStreams {
			if s.IncomeStreams[i].Scope == "" {
				s.IncomeStreams[i].Scope = domain.ScopeHousehold
			}
		}
	}
}

// ValidateScenario rejects inputs the engine cannot simulate meaningfully.
// Everything here fails before any simulation work begins.
func ValidateScenario(s *domain.Scenario) error {
	if len(s.Persons) == 0 || len(s.Persons) > 2 {
		return fmt.Errorf("scenario must have 1 or 2 persons, got %d", len(s.Persons))
	}

	for i, p := range s.Persons {
		if p.Name == "" {
			return fmt.Errorf("person %d: name is required", i)
		}
		if p.BirthDate.IsZero() {
			return fmt.Errorf("person %s: birth_date is required", p.Name)
		}
		if p.Age(nowFunc()) < 0 {
			return fmt.Errorf("person %s: birth_date %s is in the future",
				p.Name, p.BirthDate.Format("2006-01-02"))
		}
		if p.SSClaimAge != 0 && (p.SSClaimAge < dateutil.EarliestClaimAge || p.SSClaimAge > dateutil.LatestClaimAge) {
			return fmt.Errorf("person %s: ss_claim_age %d outside valid range %d-%d",
				p.Name, p.SSClaimAge, dateutil.EarliestClaimAge, dateutil.LatestClaimAge)
		}
		if p.SSBenefitFRA.IsNegative() {
			return fmt.Errorf("person %s: ss_benefit_fra cannot be negative", p.Name)
		}
	}
	if len(s.Persons) == 2 && s.Persons[0].Name == s.Persons[1].Name {
		return fmt.Errorf("persons must have distinct names")
	}

	if s.HorizonAge <= 0 {
		return fmt.Errorf("horizon_age is required")
	}
	for _, p := range s.Persons {
		if dateutil.AgeAtYearEnd(p.BirthDate, s.StartYear) >= s.HorizonAge {
			return fmt.Errorf("person %s is already at or past horizon_age %d in start year %d",
				p.Name, s.HorizonAge, s.StartYear)
		}
	}

	if s.TargetAnnualSpending.IsNegative() {
		return fmt.Errorf("target_annual_spending cannot be negative")
	}
	if s.NumSimulations < 1 {
		return fmt.Errorf("num_simulations must be at least 1, got %d", s.NumSimulations)
	}

	switch s.FilingStatus {
	case domain.FilingSingle, domain.FilingMarriedJoint:
	default:
		return fmt.Errorf("unknown filing_status %q", s.FilingStatus)
	}
	switch s.Mortality {
	case domain.MortalityFixedHorizon, domain.MortalityStochastic:
	default:
		return fmt.Errorf("unknown mortality model %q", s.Mortality)
	}

	if _, err := BracketTable(s.BracketTableID); err != nil {
		return err
	}
	if _, err := MarketProfile(s.MarketProfileID); err != nil {
		return err
	}

	one := decimal.NewFromInt(1)
	for category, group := range s.Accounts {
		for _, a := range group {
			if a.Name == "" {
				return fmt.Errorf("account in category %q: name is required", category)
			}
			if a.Balance.IsNegative() {
				return fmt.Errorf("account %s: balance cannot be negative", a.Name)
			}
			if a.Allocation.Stock.IsNegative() || a.Allocation.Bond.IsNegative() || a.Allocation.Cash.IsNegative() {
				return fmt.Errorf("account %s: allocation weights cannot be negative", a.Name)
			}
			if a.Allocation.Sum().GreaterThan(one) {
				return fmt.Errorf("account %s: allocation weights sum to %s, must not exceed 1",
					a.Name, a.Allocation.Sum())
			}
			if a.Kind.HasBasis() && a.CostBasis.GreaterThan(a.Balance) {
				return fmt.Errorf("account %s: cost_basis %s exceeds balance %s",
					a.Name, a.CostBasis, a.Balance)
			}
			if a.Owner != "" && s.PersonByName(a.Owner) == nil {
				return fmt.Errorf("account %s: unknown owner %q", a.Name, a.Owner)
			}
		}
	}

	for _, stream := range s.IncomeStreams {
		if stream.Name == "" {
			return fmt.Errorf("income stream: name is required")
		}
		if stream.AnnualAmount.IsNegative() {
			return fmt.Errorf("income stream %s: annual_amount cannot be negative", stream.Name)
		}
		if stream.Owner != "" && s.PersonByName(stream.Owner) == nil {
			return fmt.Errorf("income stream %s: unknown owner %q", stream.Name, stream.Owner)
		}
		if stream.StartAge != nil && stream.Owner == "" {
			return fmt.Errorf("income stream %s: start_age requires an owner", stream.Name)
		}
		switch stream.Scope {
		case domain.ScopeHousehold, domain.ScopePerPerson:
		case "":
			// A pension in a two-person scenario is ambiguous without an explicit
			// scope; refuse to guess.
			if stream.Pension && len(s.Persons) == 2 {
				return fmt.Errorf("income stream %s: pension in a two-person scenario requires explicit scope (household or per_person)",
					stream.Name)
			}
		default:
			return fmt.Errorf("income stream %s: unknown scope %q", stream.Name, stream.Scope)
		}
	}

	for _, prop := range s.Properties {
		if prop.Name == "" {
			return fmt.Errorf("property: name is required")
		}
		if prop.MarketValue.IsNegative() {
			return fmt.Errorf("property %s: market_value cannot be negative", prop.Name)
		}
		if prop.SaleYear != nil && *prop.SaleYear < s.StartYear {
			return fmt.Errorf("property %s: sale_year %d precedes start year %d",
				prop.Name, *prop.SaleYear, s.StartYear)
		}
	}

	for _, c := range s.RothConversions {
		if c.Amount.IsNegative() {
			return fmt.Errorf("roth conversion for year %d: amount cannot be negative", c.Year)
		}
	}

	return nil
}
