package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// YearReturns is one year's sampled market outcome.
type YearReturns struct {
	Stock     decimal.Decimal `json:"stock"`
	Bond      decimal.Decimal `json:"bond"`
	Cash      decimal.Decimal `json:"cash"`
	Inflation decimal.Decimal `json:"inflation"`
}

// YearState is the full accounting record for one simulated calendar year.
type YearState struct {
	Year             int                        `json:"year"`
	Ages             map[string]int             `json:"ages"`
	Returns          YearReturns                `json:"returns"`
	GuaranteedIncome decimal.Decimal            `json:"guaranteed_income"`
	SSIncome         decimal.Decimal            `json:"ss_income"`
	PropertyProceeds decimal.Decimal            `json:"property_proceeds,omitempty"`
	Spending         decimal.Decimal            `json:"spending"`
	RMD              decimal.Decimal            `json:"rmd"`
	Withdrawals      map[string]decimal.Decimal `json:"withdrawals"`
	RothConversion   decimal.Decimal            `json:"roth_conversion,omitempty"`
	OrdinaryIncome   decimal.Decimal            `json:"ordinary_income"`
	CapitalGains     decimal.Decimal            `json:"capital_gains"`
	Tax              decimal.Decimal            `json:"tax"`
	EndingBalances   map[string]decimal.Decimal `json:"ending_balances"`
	NetWorth         decimal.Decimal            `json:"net_worth"`
	Shortfall        decimal.Decimal            `json:"shortfall,omitempty"`
	Failed           bool                       `json:"failed,omitempty"`
}

// Trial is one complete Monte Carlo path from start year to horizon.
type Trial struct {
	Index     int         `json:"index"`
	Years     []YearState `json:"years"`
	Succeeded bool        `json:"succeeded"`
	// FailureYear is the first year the portfolio could not meet spending; zero when
	// the trial succeeded.
	FailureYear int `json:"failure_year,omitempty"`
	// EndingNetWorth is the final-year net worth (zero for failed trials).
	EndingNetWorth decimal.Decimal `json:"ending_net_worth"`
}

// TimelinePoint is the cross-trial net-worth distribution for one calendar year.
type TimelinePoint struct {
	Year int             `json:"year"`
	P5   decimal.Decimal `json:"p5"`
	P50  decimal.Decimal `json:"p50"`
	P95  decimal.Decimal `json:"p95"`
}

// AnalysisResult is the aggregate of a full Monte Carlo run.
type AnalysisResult struct {
	RunID             uuid.UUID       `json:"run_id"`
	ScenarioName      string          `json:"scenario_name"`
	GeneratedAt       time.Time       `json:"generated_at"`
	NumSimulations    int             `json:"num_simulations"`
	Seed              int64           `json:"seed"`
	StartingPortfolio decimal.Decimal `json:"starting_portfolio"`
	// AnnualWithdrawalNeed is the scenario's target spending in start-year dollars.
	AnnualWithdrawalNeed decimal.Decimal `json:"annual_withdrawal_need"`
	// SuccessRate is the percentage (0-100) of trials whose portfolio met every
	// year's spending through the horizon.
	SuccessRate         decimal.Decimal `json:"success_rate"`
	MedianEndingBalance decimal.Decimal `json:"median_ending_balance"`
	Timeline            []TimelinePoint `json:"timeline"`
	FailedTrials        int             `json:"failed_trials"`

	// Optimizer attachments, populated only when the caller requests them.
	SSOptimization *SSOptimization     `json:"social_security_optimization,omitempty"`
	RothConversion *RothConversionPlan `json:"roth_conversion,omitempty"`
}

// ClaimCombination is one Social Security claiming strategy and its value.
type ClaimCombination struct {
	// ClaimAges maps person name to claim age.
	ClaimAges map[string]int `json:"claim_ages"`
	// NPV is the survival-weighted present value of all household benefits.
	NPV decimal.Decimal `json:"npv"`
	// MonthlyBenefits maps person name to the adjusted monthly benefit at claim.
	MonthlyBenefits map[string]decimal.Decimal `json:"monthly_benefits"`
}

// SSOptimization ranks claiming strategies by NPV, best first.
type SSOptimization struct {
	Combinations []ClaimCombination `json:"combinations"`
	DiscountRate decimal.Decimal    `json:"discount_rate"`
}

// Best returns the top-ranked combination, or nil when the search space was empty.
func (o *SSOptimization) Best() *ClaimCombination {
	if len(o.Combinations) == 0 {
		return nil
	}
	return &o.Combinations[0]
}

// AnnualConversion is one year's Roth conversion: the amount moved from deferred to
// tax-free and the ordinary tax it triggers.
type AnnualConversion struct {
	Year    int             `yaml:"year" json:"year"`
	Amount  decimal.Decimal `yaml:"amount" json:"amount"`
	TaxCost decimal.Decimal `yaml:"tax_cost,omitempty" json:"tax_cost,omitempty"`
}

// RothConversionPlan is the optimizer's recommended conversion ladder.
type RothConversionPlan struct {
	Conversions    []AnnualConversion `json:"conversions"`
	TotalConverted decimal.Decimal    `json:"total_converted"`
	TotalTaxCost   decimal.Decimal    `json:"total_tax_cost"`
	// TargetBracketRate is the marginal rate the ladder fills up to.
	TargetBracketRate decimal.Decimal `json:"target_bracket_rate"`
	// Window is the inclusive-exclusive [first, last) conversion years; both zero
	// when no opportunity exists.
	WindowStart int `json:"window_start,omitempty"`
	WindowEnd   int `json:"window_end,omitempty"`
}

// HasOpportunity reports whether any conversion year exists.
func (p *RothConversionPlan) HasOpportunity() bool {
	return len(p.Conversions) > 0
}
