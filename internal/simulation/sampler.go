package simulation

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/shopspring/decimal"

	"github.com/nyepaul/retireplan/internal/domain"
)

// ReturnSampler draws one YearReturns per simulated year from a market profile.
// Construction validates the profile; Sample never fails.
type ReturnSampler struct {
	profile *domain.MarketProfile

	stockMean, stockSD float64
	bondMean, bondSD   float64
	inflMean, inflSD   float64
	cashYield          decimal.Decimal

	// Lower-triangular Cholesky factor of the stock/bond/inflation correlation
	// matrix; nil when draws are independent.
	chol *[3][3]float64
}

// NewReturnSampler builds a sampler for the given market profile. It rejects
// non-positive standard deviations and correlation matrices that are not
// positive definite.
func NewReturnSampler(profile *domain.MarketProfile) (*ReturnSampler, error) {
	s := &ReturnSampler{
		profile:   profile,
		stockMean: profile.Stock.Mean.InexactFloat64(),
		stockSD:   profile.Stock.StdDev.InexactFloat64(),
		bondMean:  profile.Bond.Mean.InexactFloat64(),
		bondSD:    profile.Bond.StdDev.InexactFloat64(),
		inflMean:  profile.Inflation.Mean.InexactFloat64(),
		inflSD:    profile.Inflation.StdDev.InexactFloat64(),
		cashYield: profile.CashYield,
	}

	for _, check := range []struct {
		name string
		sd   float64
	}{
		{"stock", s.stockSD},
		{"bond", s.bondSD},
		{"inflation", s.inflSD},
	} {
		if check.sd <= 0 {
			return nil, fmt.Errorf("market profile %s: %s std_dev must be positive, got %v",
				profile.ID, check.name, check.sd)
		}
	}

	if profile.Correlated() {
		corr := [3][3]float64{
			{1, profile.StockBondCorr, profile.StockInflationCorr},
			{profile.StockBondCorr, 1, profile.BondInflationCorr},
			{profile.StockInflationCorr, profile.BondInflationCorr, 1},
		}
		chol, err := cholesky3(corr)
		if err != nil {
			return nil, fmt.Errorf("market profile %s: %w", profile.ID, err)
		}
		s.chol = &chol
	}

	return s, nil
}

// Sample draws one year of returns from the supplied generator. Exactly three
// normal variates are consumed per call regardless of correlation settings, so
// downstream consumption patterns stay stable across profiles.
func (s *ReturnSampler) Sample(rng *rand.Rand) domain.YearReturns {
	z := [3]float64{normalDraw(rng), normalDraw(rng), normalDraw(rng)}

	if s.chol != nil {
		z = applyCholesky(*s.chol, z)
	}

	return domain.YearReturns{
		Stock:     decimal.NewFromFloat(s.stockMean + s.stockSD*z[0]),
		Bond:      decimal.NewFromFloat(s.bondMean + s.bondSD*z[1]),
		Cash:      s.cashYield,
		Inflation: decimal.NewFromFloat(s.inflMean + s.inflSD*z[2]),
	}
}

// Mean returns the profile's expected returns with no noise, used for
// deterministic projections.
func (s *ReturnSampler) Mean() domain.YearReturns {
	return domain.YearReturns{
		Stock:     s.profile.Stock.Mean,
		Bond:      s.profile.Bond.Mean,
		Cash:      s.cashYield,
		Inflation: s.profile.Inflation.Mean,
	}
}

// normalDraw generates a standard normal variate using the Box-Muller transform.
func normalDraw(rng *rand.Rand) float64 {
	u1 := rng.Float64()
	u2 := rng.Float64()
	// Guard against log(0).
	if u1 < 1e-300 {
		u1 = 1e-300
	}
	return math.Sqrt(-2.0*math.Log(u1)) * math.Cos(2.0*math.Pi*u2)
}

// cholesky3 factors a 3x3 correlation matrix into its lower-triangular root.
func cholesky3(m [3][3]float64) ([3][3]float64, error) {
	var l [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j <= i; j++ {
			sum := m[i][j]
			for k := 0; k < j; k++ {
				sum -= l[i][k] * l[j][k]
			}
			if i == j {
				if sum <= 0 {
					return l, fmt.Errorf("correlation matrix is not positive definite")
				}
				l[i][j] = math.Sqrt(sum)
			} else {
				l[i][j] = sum / l[j][j]
			}
		}
	}
	return l, nil
}

func applyCholesky(l [3][3]float64, z [3]float64) [3]float64 {
	var out [3]float64
	for i := 0; i < 3; i++ {
		for k := 0; k <= i; k++ {
			out[i] += l[i][k] * z[k]
		}
	}
	return out
}
