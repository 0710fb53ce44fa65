// Package pricing implements closed-form European option pricing and the
// per-option Greeks used by the P&L calculator and strategy aggregator.
package pricing

import (
	"fmt"
	"math"

	"github.com/eddiefleurent/strategy_lab/internal/models"
)

const daysPerYear = 365.0

// Result is the theoretical value and per-share sensitivities of one option.
type Result struct {
	Price          float64 `json:"price"`
	Delta          float64 `json:"delta"`
	Gamma          float64 `json:"gamma"`
	Theta          float64 `json:"theta"` // per calendar day
	Vega           float64 `json:"vega"`  // per 1 point of volatility
	IntrinsicValue float64 `json:"intrinsic_value"`
	TimeValue      float64 `json:"time_value"`
}

// PriceOption prices an option with expiry expressed in calendar days.
func PriceOption(spot, strike float64, daysToExpiry int, riskFreeRate, volatility float64,
	kind models.OptionKind) (Result, error) {
	return Price(spot, strike, float64(daysToExpiry)/daysPerYear, riskFreeRate, volatility, kind)
}

// Price returns the Black-Scholes value and Greeks of a European option.
// When yearsToExpiry <= 0 the option is worth its intrinsic value only.
func Price(spot, strike, yearsToExpiry, riskFreeRate, volatility float64,
	kind models.OptionKind) (Result, error) {
	if err := checkInputs(spot, strike, yearsToExpiry, riskFreeRate, volatility, kind); err != nil {
		return Result{}, err
	}

	intrinsic := Intrinsic(spot, strike, kind)
	if yearsToExpiry <= 0 {
		return Result{
			Price:          intrinsic,
			Delta:          expiryDelta(spot, strike, kind),
			IntrinsicValue: intrinsic,
		}, nil
	}

	sqrtT := math.Sqrt(yearsToExpiry)
	volSqrtT := volatility * sqrtT
	d1 := (math.Log(spot/strike) + (riskFreeRate+0.5*volatility*volatility)*yearsToExpiry) / volSqrtT
	d2 := d1 - volSqrtT
	discount := math.Exp(-riskFreeRate * yearsToExpiry)
	pdf := NormPDF(d1)

	var price, delta, theta float64
	decay := -(spot * pdf * volatility) / (2 * sqrtT)
	switch kind {
	case models.Call:
		price = spot*NormCDF(d1) - strike*discount*NormCDF(d2)
		delta = NormCDF(d1)
		theta = (decay - riskFreeRate*strike*discount*NormCDF(d2)) / daysPerYear
	default:
		price = strike*discount*NormCDF(-d2) - spot*NormCDF(-d1)
		delta = -NormCDF(-d1)
		theta = (decay + riskFreeRate*strike*discount*NormCDF(-d2)) / daysPerYear
	}

	price = math.Max(0, price)
	return Result{
		Price:          price,
		Delta:          delta,
		Gamma:          pdf / (spot * volSqrtT),
		Theta:          theta,
		Vega:           spot * pdf * sqrtT / 100,
		IntrinsicValue: intrinsic,
		TimeValue:      math.Max(0, price-intrinsic),
	}, nil
}

// Intrinsic returns the exercise value of an option.
func Intrinsic(spot, strike float64, kind models.OptionKind) float64 {
	if kind == models.Put {
		return math.Max(strike-spot, 0)
	}
	return math.Max(spot-strike, 0)
}

// expiryDelta is the step delta of an expired option.
func expiryDelta(spot, strike float64, kind models.OptionKind) float64 {
	if kind == models.Put {
		if spot < strike {
			return -1
		}
		return 0
	}
	if spot > strike {
		return 1
	}
	return 0
}

func checkInputs(spot, strike, years, rate, vol float64, kind models.OptionKind) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown option kind %q", ErrInvalidInput, kind)
	}
	if !finite(spot) || spot <= 0 {
		return fmt.Errorf("%w: spot must be positive (current: %v)", ErrInvalidInput, spot)
	}
	if !finite(strike) || strike <= 0 {
		return fmt.Errorf("%w: strike must be positive (current: %v)", ErrInvalidInput, strike)
	}
	if !finite(years) {
		return fmt.Errorf("%w: years to expiry must be finite", ErrInvalidInput)
	}
	if !finite(rate) {
		return fmt.Errorf("%w: risk free rate must be finite", ErrInvalidInput)
	}
	if years > 0 && (!finite(vol) || vol <= 0) {
		return fmt.Errorf("%w: volatility must be positive before expiry (current: %v)", ErrInvalidInput, vol)
	}
	return nil
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
