package simulation

import (
	"math"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyepaul/retireplan/internal/domain"
)

func testProfile() *domain.MarketProfile {
	return &domain.MarketProfile{
		ID:        "test",
		Stock:     domain.AssetClassParams{Mean: decimal.RequireFromString("0.08"), StdDev: decimal.RequireFromString("0.15")},
		Bond:      domain.AssetClassParams{Mean: decimal.RequireFromString("0.04"), StdDev: decimal.RequireFromString("0.05")},
		Inflation: domain.AssetClassParams{Mean: decimal.RequireFromString("0.03"), StdDev: decimal.RequireFromString("0.01")},
		CashYield: decimal.RequireFromString("0.02"),
	}
}

func TestSamplerRejectsNonPositiveStdDev(t *testing.T) {
	p := testProfile()
	p.Bond.StdDev = decimal.Zero
	_, err := NewReturnSampler(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bond std_dev must be positive")
}

func TestSamplerRejectsNonPositiveDefiniteCorrelation(t *testing.T) {
	p := testProfile()
	// Mutually inconsistent correlations: strongly positive with both legs of a
	// strongly negative pair.
	p.StockBondCorr = 0.9
	p.StockInflationCorr = 0.9
	p.BondInflationCorr = -0.9
	_, err := NewReturnSampler(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not positive definite")
}

func TestSamplerReproducible(t *testing.T) {
	s, err := NewReturnSampler(testProfile())
	require.NoError(t, err)

	a := rand.New(rand.NewSource(7))
	b := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		ra := s.Sample(a)
		rb := s.Sample(b)
		assert.True(t, ra.Stock.Equal(rb.Stock))
		assert.True(t, ra.Bond.Equal(rb.Bond))
		assert.True(t, ra.Inflation.Equal(rb.Inflation))
	}
}

func TestSamplerCashIsDeterministic(t *testing.T) {
	s, err := NewReturnSampler(testProfile())
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 10; i++ {
		assert.True(t, s.Sample(rng).Cash.Equal(decimal.RequireFromString("0.02")))
	}
}

func TestSamplerDistributionMoments(t *testing.T) {
	s, err := NewReturnSampler(testProfile())
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(99))
	const n = 20000
	var sum, sumSq float64
	for i := 0; i < n; i++ {
		v := s.Sample(rng).Stock.InexactFloat64()
		sum += v
		sumSq += v * v
	}
	mean := sum / n
	sd := math.Sqrt(sumSq/n - mean*mean)

	assert.InDelta(t, 0.08, mean, 0.005)
	assert.InDelta(t, 0.15, sd, 0.005)
}

func TestSamplerCorrelationSign(t *testing.T) {
	p := testProfile()
	p.StockBondCorr = -0.8
	s, err := NewReturnSampler(p)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(3))
	const n = 20000
	var sumX, sumY, sumXY, sumXX, sumYY float64
	for i := 0; i < n; i++ {
		r := s.Sample(rng)
		x := r.Stock.InexactFloat64()
		y := r.Bond.InexactFloat64()
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
		sumYY += y * y
	}
	cov := sumXY/n - (sumX/n)*(sumY/n)
	corr := cov / math.Sqrt((sumXX/n-(sumX/n)*(sumX/n))*(sumYY/n-(sumY/n)*(sumY/n)))

	assert.InDelta(t, -0.8, corr, 0.05)
}

func TestSamplerMean(t *testing.T) {
	s, err := NewReturnSampler(testProfile())
	require.NoError(t, err)

	m := s.Mean()
	assert.True(t, m.Stock.Equal(decimal.RequireFromString("0.08")))
	assert.True(t, m.Bond.Equal(decimal.RequireFromString("0.04")))
	assert.True(t, m.Inflation.Equal(decimal.RequireFromString("0.03")))
	assert.True(t, m.Cash.Equal(decimal.RequireFromString("0.02")))
}
