package simulation

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nyepaul/retireplan/internal/domain"
)

// maxConcurrentTrials bounds the worker pool.
const maxConcurrentTrials = 10

// nowFunc allows tests to pin result timestamps.
var nowFunc = time.Now

// Engine runs Monte Carlo analyses over one scenario.
type Engine struct {
	scenario *domain.Scenario
	stepper  *Stepper
	logger   Logger
}

// NewEngine validates the scenario's references and assembles the simulation
// pipeline: sampler, tax calculator, withdrawal policy, stepper.
func NewEngine(scenario *domain.Scenario, profile *domain.MarketProfile,
	brackets *domain.BracketTable, rmd *domain.RMDTable,
	mortality *domain.MortalityTable, logger Logger) (*Engine, error) {
	if logger == nil {
		logger = NopLogger{}
	}

	sampler, err := NewReturnSampler(profile)
	if err != nil {
		return nil, fmt.Errorf("failed to build return sampler: %w", err)
	}
	policy, err := PolicyByName(scenario.WithdrawalPolicy)
	if err != nil {
		return nil, err
	}
	tax := NewTaxCalculator(brackets, rmd)

	return &Engine{
		scenario: scenario,
		stepper:  NewStepper(scenario, sampler, tax, policy, mortality, logger),
		logger:   logger,
	}, nil
}

// RunMonteCarlo executes the scenario's configured number of trials and
// aggregates them. Trials run on a bounded pool; each trial gets its own
// generator seeded from the scenario seed plus the trial index, so a given seed
// reproduces results bit for bit regardless of scheduling. A panicking trial is
// recorded as failed without aborting the batch; context cancellation stops
// launching new trials.
func (e *Engine) RunMonteCarlo(ctx context.Context) (*domain.AnalysisResult, error) {
	n := e.scenario.NumSimulations
	e.logger.Infof("running %d simulations for scenario %q (seed %d)",
		n, e.scenario.Name, e.scenario.Seed)

	trials := make([]domain.Trial, n)
	var wg sync.WaitGroup
	sem := make(chan struct{}, maxConcurrentTrials)

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("simulation cancelled after %d trials: %w", i, err)
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					e.logger.Errorf("trial %d panicked: %v", idx, r)
					trials[idx] = domain.Trial{Index: idx, Succeeded: false}
				}
			}()
			rng := rand.New(rand.NewSource(e.scenario.Seed + int64(idx)))
			trials[idx] = e.stepper.RunTrial(idx, rng)
		}(i)
	}
	wg.Wait()

	return e.aggregate(trials), nil
}

// RunDeterministic produces a single projection at the market profile's mean
// returns, packaged as a one-trial result.
func (e *Engine) RunDeterministic() *domain.AnalysisResult {
	trial := e.stepper.RunDeterministic()
	return e.aggregate([]domain.Trial{trial})
}

func (e *Engine) aggregate(trials []domain.Trial) *domain.AnalysisResult {
	result := &domain.AnalysisResult{
		RunID:                uuid.New(),
		ScenarioName:         e.scenario.Name,
		GeneratedAt:          nowFunc(),
		NumSimulations:       len(trials),
		Seed:                 e.scenario.Seed,
		StartingPortfolio:    e.scenario.StartingPortfolio(),
		AnnualWithdrawalNeed: e.scenario.TargetAnnualSpending,
	}

	// Zero trials: report an empty result rather than dividing by zero.
	if len(trials) == 0 {
		result.SuccessRate = decimal.Zero
		result.MedianEndingBalance = decimal.Zero
		return result
	}

	succeeded := 0
	var endings []decimal.Decimal
	for _, t := range trials {
		if t.Succeeded {
			succeeded++
		} else {
			result.FailedTrials++
		}
		endings = append(endings, t.EndingNetWorth)
	}
	result.SuccessRate = decimal.NewFromInt(int64(succeeded)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(len(trials))))
	result.MedianEndingBalance = percentile(endings, 50)

	// Per-calendar-year distribution across trials. Failed trials report zero net
	// worth from their failure year on, so every trial contributes a value for
	// every year.
	years := 0
	for _, t := range trials {
		if len(t.Years) > years {
			years = len(t.Years)
		}
	}
	for y := 0; y < years; y++ {
		var values []decimal.Decimal
		year := 0
		for _, t := range trials {
			if y < len(t.Years) {
				values = append(values, t.Years[y].NetWorth)
				year = t.Years[y].Year
			}
		}
		result.Timeline = append(result.Timeline, domain.TimelinePoint{
			Year: year,
			P5:   percentile(values, 5),
			P50:  percentile(values, 50),
			P95:  percentile(values, 95),
		})
	}

	e.logger.Infof("success rate %s%%, median ending balance %s",
		result.SuccessRate.StringFixed(1), result.MedianEndingBalance.StringFixed(0))
	return result
}

// percentile returns the p-th percentile of values using nearest-rank on a sorted
// copy. Zero for an empty slice.
func percentile(values []decimal.Decimal, p int) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	sorted := make([]decimal.Decimal, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	idx := (p * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
