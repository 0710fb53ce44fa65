package analysis

import (
	"math"
	"sort"

	"github.com/eddiefleurent/strategy_lab/internal/models"
	"github.com/eddiefleurent/strategy_lab/internal/pricing"
)

// breakevenTolerance merges roots found on both sides of a shared strike.
const breakevenTolerance = 1e-9

// Payoff is the total P&L of legs at expiration with the underlying at price.
func Payoff(legs []models.StrategyLeg, price float64) float64 {
	total := 0.0
	for _, leg := range legs {
		value := pricing.Intrinsic(price, leg.Strike, leg.OptionKind)
		total += leg.Action.Sign() * (value - leg.EntryPrice) * float64(leg.Quantity) * models.SharesPerContract
	}
	return total
}

// upperSlope is the change in expiry P&L per $1 above the highest strike:
// only calls have value there.
func upperSlope(legs []models.StrategyLeg) float64 {
	slope := 0.0
	for _, leg := range legs {
		if leg.OptionKind == models.Call {
			slope += leg.Action.Sign() * float64(leg.Quantity) * models.SharesPerContract
		}
	}
	return slope
}

// sortedStrikes returns the distinct strikes of legs in ascending order.
func sortedStrikes(legs []models.StrategyLeg) []float64 {
	strikes := make([]float64, 0, len(legs))
	for _, leg := range legs {
		strikes = append(strikes, leg.Strike)
	}
	sort.Float64s(strikes)
	out := strikes[:0]
	for i, s := range strikes {
		if i == 0 || s != strikes[i-1] {
			out = append(out, s)
		}
	}
	return out
}

// Breakevens returns the underlying prices where expiry P&L is zero. The
// payoff is linear between strikes, so each segment's root is exact.
// Non-positive prices are discarded.
func Breakevens(legs []models.StrategyLeg) []float64 {
	if len(legs) == 0 {
		return nil
	}
	knots := append([]float64{0}, sortedStrikes(legs)...)

	var roots []float64
	add := func(x float64) {
		if x <= 0 {
			return
		}
		for _, r := range roots {
			if math.Abs(r-x) < breakevenTolerance {
				return
			}
		}
		roots = append(roots, x)
	}

	for i := 1; i < len(knots); i++ {
		a, b := knots[i-1], knots[i]
		fa, fb := Payoff(legs, a), Payoff(legs, b)
		switch {
		case fa == 0:
			add(a)
		case fa*fb < 0:
			add(a + (b-a)*fa/(fa-fb))
		}
	}

	last := knots[len(knots)-1]
	fLast := Payoff(legs, last)
	if fLast == 0 {
		add(last)
	} else if slope := upperSlope(legs); slope != 0 {
		if root := last - fLast/slope; root > last {
			add(root)
		}
	}

	sort.Float64s(roots)
	return roots
}
