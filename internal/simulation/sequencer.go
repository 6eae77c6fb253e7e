package simulation

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/nyepaul/retireplan/internal/domain"
)

// AccountState is the mutable per-trial view of one account. The scenario's
// Account values are never modified; each trial works on its own states.
type AccountState struct {
	Name         string
	Kind         domain.AccountKind
	Owner        string
	Balance      decimal.Decimal
	Basis        decimal.Decimal
	Contribution decimal.Decimal
	Allocation   domain.AssetAllocation
}

// NewAccountStates builds fresh per-trial states from a scenario, sorted by name
// so iteration order is deterministic regardless of map ordering.
func NewAccountStates(s *domain.Scenario) []*AccountState {
	var states []*AccountState
	for _, a := range s.AllAccounts() {
		states = append(states, &AccountState{
			Name:         a.Name,
			Kind:         a.Kind,
			Owner:        a.Owner,
			Balance:      a.Balance,
			Basis:        a.CostBasis,
			Contribution: a.AnnualContribution,
			Allocation:   a.Allocation,
		})
	}
	sort.Slice(states, func(i, j int) bool { return states[i].Name < states[j].Name })
	return states
}

// Withdraw removes up to amount from the account and returns what was actually
// taken plus the ordinary income and capital gain it realizes. Taxable accounts
// realize gains in proportion to the unrealized fraction of the balance; basis is
// consumed proportionally.
func (a *AccountState) Withdraw(amount decimal.Decimal) (taken, ordinary, gains decimal.Decimal) {
	if !amount.IsPositive() || !a.Balance.IsPositive() {
		return decimal.Zero, decimal.Zero, decimal.Zero
	}
	taken = amount
	if taken.GreaterThan(a.Balance) {
		taken = a.Balance
	}

	switch {
	case a.Kind.OrdinaryIncomeOnWithdrawal():
		ordinary = taken
	case a.Kind.CapitalGainOnWithdrawal():
		gainFraction := decimal.Zero
		if a.Balance.IsPositive() {
			gainFraction = a.Balance.Sub(a.Basis).Div(a.Balance)
		}
		if gainFraction.IsNegative() {
			gainFraction = decimal.Zero
		}
		gains = taken.Mul(gainFraction)
		a.Basis = a.Basis.Sub(taken.Sub(gains))
		if a.Basis.IsNegative() {
			a.Basis = decimal.Zero
		}
	}

	a.Balance = a.Balance.Sub(taken)
	return taken, ordinary, gains
}

// WithdrawalResult is what one policy pass produced.
type WithdrawalResult struct {
	ByAccount      map[string]decimal.Decimal
	Total          decimal.Decimal
	OrdinaryIncome decimal.Decimal
	CapitalGains   decimal.Decimal
	// Unmet is the portion of the request no account could cover.
	Unmet decimal.Decimal
}

// WithdrawalPolicy decides which accounts fund a spending shortfall. Policies
// mutate the supplied states and report what they took.
type WithdrawalPolicy interface {
	Name() string
	Withdraw(need decimal.Decimal, accounts []*AccountState) WithdrawalResult
}

// PolicyByName resolves a policy identifier from a scenario document. The empty
// string selects the tax-efficient default.
func PolicyByName(name string) (WithdrawalPolicy, error) {
	switch name {
	case "", "tax_efficient":
		return TaxEfficientPolicy{}, nil
	case "proportional":
		return ProportionalPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown withdrawal policy %q", name)
	}
}

// TaxEfficientPolicy drains cash and taxable accounts first, then tax-deferred,
// then tax-free, preserving tax-advantaged growth as long as possible.
type TaxEfficientPolicy struct{}

func (TaxEfficientPolicy) Name() string { return "tax_efficient" }

// kindOrder ranks account kinds for tax-efficient draining.
func kindOrder(k domain.AccountKind) int {
	switch {
	case k == domain.AccountCashEquivalent:
		return 0
	case k.CapitalGainOnWithdrawal():
		return 1
	case k.OrdinaryIncomeOnWithdrawal():
		return 2
	default: // tax-free last
		return 3
	}
}

func (TaxEfficientPolicy) Withdraw(need decimal.Decimal, accounts []*AccountState) WithdrawalResult {
	result := WithdrawalResult{ByAccount: make(map[string]decimal.Decimal)}
	if !need.IsPositive() {
		return result
	}

	ordered := make([]*AccountState, len(accounts))
	copy(ordered, accounts)
	sort.SliceStable(ordered, func(i, j int) bool {
		return kindOrder(ordered[i].Kind) < kindOrder(ordered[j].Kind)
	})

	remaining := need
	for _, acct := range ordered {
		if !remaining.IsPositive() {
			break
		}
		taken, ordinary, gains := acct.Withdraw(remaining)
		if taken.IsPositive() {
			result.ByAccount[acct.Name] = result.ByAccount[acct.Name].Add(taken)
			result.Total = result.Total.Add(taken)
			result.OrdinaryIncome = result.OrdinaryIncome.Add(ordinary)
			result.CapitalGains = result.CapitalGains.Add(gains)
			remaining = remaining.Sub(taken)
		}
	}
	result.Unmet = remaining
	return result
}

// ProportionalPolicy withdraws pro-rata across all accounts by current balance,
// keeping the asset mix roughly constant.
type ProportionalPolicy struct{}

func (ProportionalPolicy) Name() string { return "proportional" }

func (ProportionalPolicy) Withdraw(need decimal.Decimal, accounts []*AccountState) WithdrawalResult {
	result := WithdrawalResult{ByAccount: make(map[string]decimal.Decimal)}
	if !need.IsPositive() {
		return result
	}

	total := decimal.Zero
	for _, acct := range accounts {
		total = total.Add(acct.Balance)
	}
	if !total.IsPositive() {
		result.Unmet = need
		return result
	}

	capped := need
	if capped.GreaterThan(total) {
		capped = total
	}

	remaining := capped
	for i, acct := range accounts {
		if !remaining.IsPositive() {
			break
		}
		var share decimal.Decimal
		if i == len(accounts)-1 {
			// Last account absorbs rounding residue.
			share = remaining
		} else {
			share = capped.Mul(acct.Balance).Div(total)
			if share.GreaterThan(remaining) {
				share = remaining
			}
		}
		taken, ordinary, gains := acct.Withdraw(share)
		if taken.IsPositive() {
			result.ByAccount[acct.Name] = result.ByAccount[acct.Name].Add(taken)
			result.Total = result.Total.Add(taken)
			result.OrdinaryIncome = result.OrdinaryIncome.Add(ordinary)
			result.CapitalGains = result.CapitalGains.Add(gains)
			remaining = remaining.Sub(taken)
		}
	}
	result.Unmet = need.Sub(result.Total)
	if result.Unmet.IsNegative() {
		result.Unmet = decimal.Zero
	}
	return result
}
