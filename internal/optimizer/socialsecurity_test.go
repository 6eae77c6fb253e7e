package optimizer

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyepaul/retireplan/internal/config"
	"github.com/nyepaul/retireplan/internal/domain"
)

func singleScenario() *domain.Scenario {
	return &domain.Scenario{
		Name:      "single",
		StartYear: 2026,
		Persons: []domain.Person{
			{
				Name:         "sam",
				BirthDate:    time.Date(1964, 2, 1, 0, 0, 0, 0, time.UTC),
				SSBenefitFRA: decimal.NewFromInt(2400),
			},
		},
	}
}

func coupleScenario() *domain.Scenario {
	s := singleScenario()
	s.Persons = append(s.Persons, domain.Person{
		Name:         "jo",
		BirthDate:    time.Date(1966, 9, 1, 0, 0, 0, 0, time.UTC),
		SSBenefitFRA: decimal.NewFromInt(1500),
	})
	return s
}

func TestSSOptimizeSingleRanksAllAges(t *testing.T) {
	opt := NewSSOptimizer(singleScenario(), config.MortalityTable(),
		decimal.RequireFromString("0.03"), nil)

	result, err := opt.Optimize(62, 70)
	require.NoError(t, err)
	require.Len(t, result.Combinations, 9)

	// Ranked best-first.
	for i := 1; i < len(result.Combinations); i++ {
		assert.True(t, result.Combinations[i-1].NPV.GreaterThanOrEqual(result.Combinations[i].NPV),
			"combination %d out of order", i)
	}

	best := result.Best()
	require.NotNil(t, best)
	assert.True(t, best.NPV.IsPositive())
	assert.Contains(t, best.ClaimAges, "sam")
}

func TestSSOptimizeCoupleEnumeratesPairs(t *testing.T) {
	opt := NewSSOptimizer(coupleScenario(), config.MortalityTable(),
		decimal.RequireFromString("0.03"), nil)

	result, err := opt.Optimize(62, 70)
	require.NoError(t, err)
	assert.Len(t, result.Combinations, 81)

	best := result.Best()
	require.NotNil(t, best)
	assert.Len(t, best.ClaimAges, 2)
	assert.True(t, best.MonthlyBenefits["sam"].IsPositive())
	assert.True(t, best.MonthlyBenefits["jo"].IsPositive())
}

func TestSSOptimizeEmptyRange(t *testing.T) {
	opt := NewSSOptimizer(singleScenario(), config.MortalityTable(),
		decimal.RequireFromString("0.03"), nil)

	result, err := opt.Optimize(68, 65)
	require.NoError(t, err)
	assert.Empty(t, result.Combinations)
	assert.Nil(t, result.Best())
}

func TestSSOptimizeRangeClampedToStatutoryBounds(t *testing.T) {
	opt := NewSSOptimizer(singleScenario(), config.MortalityTable(),
		decimal.RequireFromString("0.03"), nil)

	result, err := opt.Optimize(50, 99)
	require.NoError(t, err)
	assert.Len(t, result.Combinations, 9, "clamped to 62-70")
}

func TestSSOptimizeDiscountRateDirection(t *testing.T) {
	// A very high discount rate makes money now worth far more than money later,
	// so claiming early must come out ahead.
	opt := NewSSOptimizer(singleScenario(), config.MortalityTable(),
		decimal.RequireFromString("0.15"), nil)

	result, err := opt.Optimize(62, 70)
	require.NoError(t, err)
	best := result.Best()
	require.NotNil(t, best)
	assert.Equal(t, 62, best.ClaimAges["sam"])
}

func TestSSOptimizeZeroDiscountFavorsDelay(t *testing.T) {
	// With no time preference, the 24% delayed credit outweighs the eight fewer
	// survival-weighted benefit years.
	opt := NewSSOptimizer(singleScenario(), config.MortalityTable(), decimal.Zero, nil)

	result, err := opt.Optimize(62, 70)
	require.NoError(t, err)
	best := result.Best()
	require.NotNil(t, best)
	assert.Equal(t, 70, best.ClaimAges["sam"])
}

func TestSSOptimizeZeroBenefitTiesGoEarlier(t *testing.T) {
	s := singleScenario()
	s.Persons[0].SSBenefitFRA = decimal.Zero
	opt := NewSSOptimizer(s, config.MortalityTable(), decimal.RequireFromString("0.03"), nil)

	result, err := opt.Optimize(62, 70)
	require.NoError(t, err)
	best := result.Best()
	require.NotNil(t, best)
	assert.True(t, best.NPV.IsZero())
	assert.Equal(t, 62, best.ClaimAges["sam"], "all-zero NPVs tie, earlier age wins")
}
