package simulation

import (
	"math/rand"

	"github.com/shopspring/decimal"

	"github.com/nyepaul/retireplan/internal/domain"
	"github.com/nyepaul/retireplan/pkg/dateutil"
)

// ssTaxableShare is the fraction of Social Security benefits treated as ordinary
// income. Retirees drawing on a portfolio almost always sit above the combined-
// income threshold where 85% of benefits are taxable.
var ssTaxableShare = decimal.RequireFromString("0.85")

// sweepAccountName is the synthetic cash account created when a scenario has no
// cash account to receive surplus income or sale proceeds. It starts at zero so
// the reported starting portfolio stays exactly the sum of supplied balances.
const sweepAccountName = "cash-sweep"

// Stepper advances one household through simulated years. One Stepper is shared
// across trials; all mutable state lives in the per-trial trialState.
type Stepper struct {
	scenario  *domain.Scenario
	sampler   *ReturnSampler
	tax       *TaxCalculator
	policy    WithdrawalPolicy
	mortality *domain.MortalityTable
	logger    Logger
}

// NewStepper wires a stepper from its collaborators. A nil logger is replaced
// with NopLogger.
func NewStepper(scenario *domain.Scenario, sampler *ReturnSampler, tax *TaxCalculator,
	policy WithdrawalPolicy, mortality *domain.MortalityTable, logger Logger) *Stepper {
	if logger == nil {
		logger = NopLogger{}
	}
	return &Stepper{
		scenario:  scenario,
		sampler:   sampler,
		tax:       tax,
		policy:    policy,
		mortality: mortality,
		logger:    logger,
	}
}

type trialState struct {
	accounts []*AccountState
	cash     *AccountState // sweep target, one of accounts

	// properties still held, parallel to scenario order; nil once sold
	properties []*domain.Property

	alive []bool

	// cumulative inflation factor applied to spending and COLA'd income
	inflationFactor decimal.Decimal

	// prior-year-end balances of RMD-subject accounts, by account name
	priorDeferred map[string]decimal.Decimal

	failed      bool
	failureYear int
}

func (s *Stepper) newTrialState() *trialState {
	st := &trialState{
		accounts:        NewAccountStates(s.scenario),
		alive:           make([]bool, len(s.scenario.Persons)),
		inflationFactor: decimal.NewFromInt(1),
		priorDeferred:   make(map[string]decimal.Decimal),
	}
	for i := range st.alive {
		st.alive[i] = true
	}
	for _, a := range st.accounts {
		if a.Kind == domain.AccountCashEquivalent && st.cash == nil {
			st.cash = a
		}
		if a.Kind.SubjectToRMD() {
			st.priorDeferred[a.Name] = a.Balance
		}
	}
	if st.cash == nil {
		st.cash = &AccountState{Name: sweepAccountName, Kind: domain.AccountCashEquivalent}
		st.accounts = append(st.accounts, st.cash)
	}
	for i := range s.scenario.Properties {
		st.properties = append(st.properties, &s.scenario.Properties[i])
	}
	return st
}

// horizonYear is the calendar year in which the youngest person attains the
// scenario's horizon age.
func (s *Stepper) horizonYear() int {
	year := 0
	for _, p := range s.scenario.Persons {
		y := p.BirthDate.Year() + s.scenario.HorizonAge
		if y > year {
			year = y
		}
	}
	return year
}

// RunTrial simulates one complete path from the start year to the horizon. The
// supplied generator is the trial's only source of randomness.
func (s *Stepper) RunTrial(index int, rng *rand.Rand) domain.Trial {
	trial := domain.Trial{Index: index, Succeeded: true}
	st := s.newTrialState()

	for year := s.scenario.StartYear; year <= s.horizonYear(); year++ {
		// Sampling happens every year, even after failure, so each trial consumes
		// an identical stream of draws.
		returns := s.sampler.Sample(rng)
		s.drawMortality(st, year, rng)

		ys := s.stepYear(st, year, returns)
		trial.Years = append(trial.Years, ys)
		if st.failed && trial.Succeeded {
			trial.Succeeded = false
			trial.FailureYear = st.failureYear
		}
	}

	if n := len(trial.Years); n > 0 {
		trial.EndingNetWorth = trial.Years[n-1].NetWorth
	}
	return trial
}

// RunDeterministic simulates a single path at the profile's mean returns with no
// mortality draws. Used for deterministic projections and by the conversion
// optimizer.
func (s *Stepper) RunDeterministic() domain.Trial {
	trial := domain.Trial{Index: 0, Succeeded: true}
	st := s.newTrialState()
	returns := s.sampler.Mean()

	for year := s.scenario.StartYear; year <= s.horizonYear(); year++ {
		ys := s.stepYear(st, year, returns)
		trial.Years = append(trial.Years, ys)
		if st.failed && trial.Succeeded {
			trial.Succeeded = false
			trial.FailureYear = st.failureYear
		}
	}
	if n := len(trial.Years); n > 0 {
		trial.EndingNetWorth = trial.Years[n-1].NetWorth
	}
	return trial
}

// drawMortality flips each person's survival for the year. Draws happen for every
// person every year, dead or alive, to keep the consumption pattern fixed.
func (s *Stepper) drawMortality(st *trialState, year int, rng *rand.Rand) {
	if s.scenario.Mortality != domain.MortalityStochastic || s.mortality == nil {
		return
	}
	for i, p := range s.scenario.Persons {
		u := rng.Float64()
		if !st.alive[i] {
			continue
		}
		age := dateutil.AgeAtYearEnd(p.BirthDate, year)
		if u < s.mortality.DeathProbability(age) {
			st.alive[i] = false
			s.logger.Debugf("year %d: %s dies at age %d", year, p.Name, age)
		}
	}
}

func (s *Stepper) anyAlive(st *trialState) bool {
	for _, a := range st.alive {
		if a {
			return true
		}
	}
	return false
}

func (s *Stepper) filingStatus(st *trialState) domain.FilingStatus {
	if s.scenario.FilingStatus == domain.FilingMarriedJoint {
		living := 0
		for _, a := range st.alive {
			if a {
				living++
			}
		}
		if living < 2 {
			return domain.FilingSingle
		}
	}
	return s.scenario.FilingStatus
}

// stepYear runs the seven-phase annual cycle: income, contributions, RMDs,
// conversions, withdrawals, tax, growth.
func (s *Stepper) stepYear(st *trialState, year int, returns domain.YearReturns) domain.YearState {
	ys := domain.YearState{
		Year:           year,
		Ages:           make(map[string]int),
		Returns:        returns,
		Withdrawals:    make(map[string]decimal.Decimal),
		EndingBalances: make(map[string]decimal.Decimal),
	}
	for _, p := range s.scenario.Persons {
		ys.Ages[p.Name] = dateutil.AgeAtYearEnd(p.BirthDate, year)
	}

	if st.failed || !s.anyAlive(st) {
		ys.Failed = st.failed
		ys.NetWorth = decimal.Zero
		if !st.failed {
			ys.NetWorth = s.netWorth(st)
			for _, a := range st.accounts {
				ys.EndingBalances[a.Name] = a.Balance
			}
		}
		return ys
	}

	// 1. Guaranteed income.
	ys.SSIncome = s.socialSecurityIncome(st, year)
	ys.GuaranteedIncome = s.streamIncome(st, year)
	ys.PropertyProceeds = s.propertyEvents(st, year)
	income := ys.SSIncome.Add(ys.GuaranteedIncome).Add(ys.PropertyProceeds)

	// 2. Contributions while still working.
	s.applyContributions(st, year)

	// 3. Inflation-adjusted spending target.
	ys.Spending = s.scenario.TargetAnnualSpending.Mul(st.inflationFactor)

	// 4. Required minimum distributions, taken unconditionally.
	rmdCash := s.withdrawRMDs(st, year, &ys)
	income = income.Add(rmdCash)

	// 5. Scheduled Roth conversion for the year.
	s.applyConversion(st, year, &ys)

	// 6. Policy withdrawals for whatever income did not cover.
	surplus := income.Sub(ys.Spending)
	if surplus.IsNegative() {
		res := s.policy.Withdraw(surplus.Neg(), st.accounts)
		mergeWithdrawals(&ys, res)
		surplus = decimal.Zero
		if res.Unmet.IsPositive() {
			s.fail(st, year, &ys, res.Unmet)
			return ys
		}
	}

	// 7. Tax on the year's ordinary income and realized gains, paid from surplus
	// first, then a single top-up pass through the policy. Second-order tax on the
	// top-up itself is deliberately not chased.
	taxableSS := ys.SSIncome.Mul(ssTaxableShare)
	ys.OrdinaryIncome = ys.OrdinaryIncome.Add(ys.GuaranteedIncome).Add(taxableSS)
	ys.Tax = s.tax.CalculateTax(ys.OrdinaryIncome, ys.CapitalGains, s.filingStatus(st))
	taxDue := ys.Tax
	if surplus.IsPositive() {
		paid := decimal.Min(surplus, taxDue)
		surplus = surplus.Sub(paid)
		taxDue = taxDue.Sub(paid)
	}
	if taxDue.IsPositive() {
		res := s.policy.Withdraw(taxDue, st.accounts)
		mergeWithdrawals(&ys, res)
		if res.Unmet.IsPositive() {
			s.fail(st, year, &ys, res.Unmet)
			return ys
		}
	}

	// Remaining surplus is saved, not spent.
	if surplus.IsPositive() {
		st.cash.Balance = st.cash.Balance.Add(surplus)
	}

	// 8. Growth on post-withdrawal balances.
	s.applyGrowth(st, returns)

	// Record and roll state forward.
	for _, a := range st.accounts {
		ys.EndingBalances[a.Name] = a.Balance
		if a.Kind.SubjectToRMD() {
			st.priorDeferred[a.Name] = a.Balance
		}
	}
	ys.NetWorth = s.netWorth(st)
	st.inflationFactor = st.inflationFactor.Mul(decimal.NewFromInt(1).Add(returns.Inflation))
	return ys
}

func (s *Stepper) fail(st *trialState, year int, ys *domain.YearState, unmet decimal.Decimal) {
	st.failed = true
	st.failureYear = year
	ys.Failed = true
	ys.Shortfall = unmet
	ys.NetWorth = decimal.Zero
	for _, a := range st.accounts {
		a.Balance = decimal.Zero
		ys.EndingBalances[a.Name] = decimal.Zero
	}
	s.logger.Debugf("year %d: portfolio exhausted, unmet need %s", year, unmet)
}

func (s *Stepper) netWorth(st *trialState) decimal.Decimal {
	total := decimal.Zero
	for _, a := range st.accounts {
		total = total.Add(a.Balance)
	}
	for _, p := range st.properties {
		if p != nil {
			total = total.Add(p.Equity())
		}
	}
	return total
}

// socialSecurityIncome pays each living claimant their COLA-adjusted benefit. After
// a death the survivor steps up to the larger of the two benefits.
func (s *Stepper) socialSecurityIncome(st *trialState, year int) decimal.Decimal {
	benefits := make([]decimal.Decimal, len(s.scenario.Persons))
	for i, p := range s.scenario.Persons {
		claimAge := p.ClaimAge()
		if dateutil.AgeAtYearEnd(p.BirthDate, year) >= claimAge {
			benefits[i] = AnnualBenefit(&s.scenario.Persons[i], claimAge)
		}
	}

	total := decimal.Zero
	for i := range s.scenario.Persons {
		if !st.alive[i] {
			continue
		}
		b := benefits[i]
		for j := range s.scenario.Persons {
			if j != i && !st.alive[j] && benefits[j].GreaterThan(b) {
				b = benefits[j]
			}
		}
		total = total.Add(b)
	}
	return total.Mul(st.inflationFactor)
}

// streamIncome sums all active income streams for the year.
func (s *Stepper) streamIncome(st *trialState, year int) decimal.Decimal {
	total := decimal.Zero
	living := 0
	for _, a := range st.alive {
		if a {
			living++
		}
	}

	for i := range s.scenario.IncomeStreams {
		stream := &s.scenario.IncomeStreams[i]
		if stream.StartYear != nil && year < *stream.StartYear {
			continue
		}

		amount := stream.AnnualAmount
		if stream.Owner != "" {
			idx := s.personIndex(stream.Owner)
			if idx < 0 {
				continue
			}
			p := &s.scenario.Persons[idx]
			if stream.StartAge != nil && dateutil.AgeAtYearEnd(p.BirthDate, year) < *stream.StartAge {
				continue
			}
			if !st.alive[idx] {
				if !stream.SurvivorPercent.IsPositive() || living == 0 {
					continue
				}
				amount = amount.Mul(stream.SurvivorPercent)
			}
		}

		if stream.Scope == domain.ScopePerPerson {
			amount = amount.Mul(decimal.NewFromInt(int64(living)))
		}
		if stream.InflationAdjusted {
			amount = amount.Mul(st.inflationFactor)
		}
		total = total.Add(amount)
	}

	// Rental income from properties still held.
	for _, p := range st.properties {
		if p != nil {
			total = total.Add(p.NetRental().Mul(st.inflationFactor))
		}
	}
	return total
}

// propertyEvents appreciates held properties and executes scheduled sales. Sale
// proceeds (equity minus replacement cost, possibly negative) flow into the year's
// income; the sold property drops out of net worth.
func (s *Stepper) propertyEvents(st *trialState, year int) decimal.Decimal {
	proceeds := decimal.Zero
	for i, p := range st.properties {
		if p == nil {
			continue
		}
		if p.SaleYear != nil && *p.SaleYear == year {
			net := p.Equity().Sub(p.ReplacementCost)
			proceeds = proceeds.Add(net)
			st.properties[i] = nil
			if net.IsNegative() {
				s.logger.Warnf("year %d: sale of %s nets %s after replacement", year, p.Name, net)
			}
			continue
		}
		growth := decimal.NewFromInt(1).Add(p.AppreciationRate)
		// Appreciate a trial-local copy so other trials see the original value.
		appreciated := *p
		appreciated.MarketValue = p.MarketValue.Mul(growth)
		st.properties[i] = &appreciated
	}
	return proceeds
}

func (s *Stepper) applyContributions(st *trialState, year int) {
	for _, a := range st.accounts {
		if !a.Contribution.IsPositive() {
			continue
		}
		if !s.ownerWorking(st, a.Owner, year) {
			continue
		}
		a.Balance = a.Balance.Add(a.Contribution)
		if a.Kind.HasBasis() {
			a.Basis = a.Basis.Add(a.Contribution)
		}
	}
}

// ownerWorking reports whether contributions to an account continue this year: the
// owner (or, for unowned accounts, anyone) is alive and not yet retired.
func (s *Stepper) ownerWorking(st *trialState, owner string, year int) bool {
	for i, p := range s.scenario.Persons {
		if owner != "" && p.Name != owner {
			continue
		}
		if st.alive[i] && year < p.RetirementDate.Year() {
			return true
		}
	}
	return false
}

// withdrawRMDs takes each living owner's required distribution from RMD-subject
// accounts. The cash is available for spending; any excess stays in the pool via
// the surplus sweep.
func (s *Stepper) withdrawRMDs(st *trialState, year int, ys *domain.YearState) decimal.Decimal {
	cash := decimal.Zero
	for _, a := range st.accounts {
		if !a.Kind.SubjectToRMD() {
			continue
		}
		idx := s.personIndex(a.Owner)
		if idx < 0 {
			idx = 0
		}
		if !st.alive[idx] {
			continue
		}
		p := &s.scenario.Persons[idx]
		rmd := s.tax.CalculateRMD(st.priorDeferred[a.Name], dateutil.AgeAtYearEnd(p.BirthDate, year), p.RMDAge())
		if !rmd.IsPositive() {
			continue
		}
		taken, ordinary, _ := a.Withdraw(rmd)
		if taken.IsPositive() {
			ys.RMD = ys.RMD.Add(taken)
			ys.OrdinaryIncome = ys.OrdinaryIncome.Add(ordinary)
			ys.Withdrawals[a.Name] = ys.Withdrawals[a.Name].Add(taken)
			cash = cash.Add(taken)
		}
	}
	return cash
}

// applyConversion moves the year's scheduled Roth conversion from deferred to
// tax-free accounts. Conversions are ordinary income but not spendable cash.
func (s *Stepper) applyConversion(st *trialState, year int, ys *domain.YearState) {
	var scheduled decimal.Decimal
	for _, c := range s.scenario.RothConversions {
		if c.Year == year {
			scheduled = scheduled.Add(c.Amount)
		}
	}
	if !scheduled.IsPositive() {
		return
	}

	var target *AccountState
	for _, a := range st.accounts {
		if a.Kind.GrowsTaxFree() {
			target = a
			break
		}
	}
	if target == nil {
		target = &AccountState{Name: "roth-conversion", Kind: domain.AccountTaxFree}
		st.accounts = append(st.accounts, target)
	}

	remaining := scheduled
	for _, a := range st.accounts {
		if !remaining.IsPositive() {
			break
		}
		if !a.Kind.GrowsTaxDeferred() {
			continue
		}
		taken, ordinary, _ := a.Withdraw(remaining)
		if taken.IsPositive() {
			target.Balance = target.Balance.Add(taken)
			ys.RothConversion = ys.RothConversion.Add(taken)
			ys.OrdinaryIncome = ys.OrdinaryIncome.Add(ordinary)
			remaining = remaining.Sub(taken)
		}
	}
}

// applyGrowth compounds each account by its allocation-weighted return.
func (s *Stepper) applyGrowth(st *trialState, returns domain.YearReturns) {
	for _, a := range st.accounts {
		if !a.Balance.IsPositive() {
			continue
		}
		r := a.Allocation.Stock.Mul(returns.Stock).
			Add(a.Allocation.Bond.Mul(returns.Bond)).
			Add(a.Allocation.EffectiveCash().Mul(returns.Cash))
		a.Balance = a.Balance.Mul(decimal.NewFromInt(1).Add(r))
		if a.Balance.IsNegative() {
			a.Balance = decimal.Zero
		}
	}
}

func (s *Stepper) personIndex(name string) int {
	for i := range s.scenario.Persons {
		if s.scenario.Persons[i].Name == name {
			return i
		}
	}
	return -1
}

func mergeWithdrawals(ys *domain.YearState, res WithdrawalResult) {
	for name, amt := range res.ByAccount {
		ys.Withdrawals[name] = ys.Withdrawals[name].Add(amt)
	}
	ys.OrdinaryIncome = ys.OrdinaryIncome.Add(res.OrdinaryIncome)
	ys.CapitalGains = ys.CapitalGains.Add(res.CapitalGains)
}
