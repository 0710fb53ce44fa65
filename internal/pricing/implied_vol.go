package pricing

import (
	"fmt"
	"math"

	"github.com/eddiefleurent/strategy_lab/internal/models"
)

const (
	ivMaxIterations = 100
	ivTolerance     = 1e-6
	ivInitialGuess  = 0.5
	ivMinVol        = 1e-4
	ivMaxVol        = models.MaxVolatility
	ivMinVega       = 1e-10
)

// IVResult is the outcome of an implied volatility search. When Converged is
// false, Volatility holds the last iterate and should be treated as approximate.
type IVResult struct {
	Volatility float64 `json:"volatility"`
	Iterations int     `json:"iterations"`
	Converged  bool    `json:"converged"`
}

// ImpliedVolatility inverts Black-Scholes with Newton-Raphson. It stops when
// the model price is within 1e-6 of marketPrice or after 100 iterations.
func ImpliedVolatility(marketPrice, spot, strike, yearsToExpiry, riskFreeRate float64,
	kind models.OptionKind) (IVResult, error) {
	if err := checkInputs(spot, strike, yearsToExpiry, riskFreeRate, ivInitialGuess, kind); err != nil {
		return IVResult{}, err
	}
	if yearsToExpiry <= 0 {
		return IVResult{}, fmt.Errorf("%w: implied volatility needs time to expiry", ErrInvalidInput)
	}
	if !finite(marketPrice) || marketPrice < 0 {
		return IVResult{}, fmt.Errorf("%w: market price must be >= 0 (current: %v)", ErrInvalidInput, marketPrice)
	}

	discount := math.Exp(-riskFreeRate * yearsToExpiry)
	lower, upper := spot-strike*discount, spot
	if kind == models.Put {
		lower, upper = strike*discount-spot, strike*discount
	}
	if marketPrice < math.Max(0, lower)-ivTolerance || marketPrice > upper+ivTolerance {
		return IVResult{}, fmt.Errorf("%w: market price %.4f outside no-arbitrage bounds [%.4f, %.4f]",
			ErrInvalidInput, marketPrice, math.Max(0, lower), upper)
	}

	sigma := ivInitialGuess
	for i := 1; i <= ivMaxIterations; i++ {
		res, err := Price(spot, strike, yearsToExpiry, riskFreeRate, sigma, kind)
		if err != nil {
			return IVResult{}, err
		}
		diff := res.Price - marketPrice
		if math.Abs(diff) < ivTolerance {
			return IVResult{Volatility: sigma, Iterations: i, Converged: true}, nil
		}

		// Result.Vega is scaled per volatility point
		vega := res.Vega * 100
		if vega < ivMinVega {
			return IVResult{Volatility: sigma, Iterations: i}, nil
		}
		sigma = math.Min(ivMaxVol, math.Max(ivMinVol, sigma-diff/vega))
	}
	return IVResult{Volatility: sigma, Iterations: ivMaxIterations}, nil
}
