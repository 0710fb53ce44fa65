// Package analysis aggregates leg level P&L into strategy level reports:
// totals, Greeks, breakevens, payoff extremes and a profit probability.
package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/eddiefleurent/strategy_lab/internal/models"
	"github.com/eddiefleurent/strategy_lab/internal/pnl"
	"github.com/eddiefleurent/strategy_lab/internal/pricing"
)

// Options tune the expiry scenario sweep.
type Options struct {
	GridPoints    int     // evenly spaced sweep prices
	ExpectedMoves float64 // sweep half-width in expected moves
}

// DefaultOptions sweeps 101 prices across spot ± 3 expected moves.
var DefaultOptions = Options{GridPoints: 101, ExpectedMoves: 3}

func (o Options) normalized() Options {
	if o.GridPoints < 2 {
		o.GridPoints = DefaultOptions.GridPoints
	}
	if o.ExpectedMoves <= 0 {
		o.ExpectedMoves = DefaultOptions.ExpectedMoves
	}
	return o
}

// Extreme is the best or worst expiry outcome found by the sweep. When
// IsUnlimited is set, Amount is the largest magnitude seen on the grid and
// the true payoff keeps growing past the highest strike.
type Extreme struct {
	Amount      float64 `json:"amount"`
	AtPrice     float64 `json:"at_price"`
	IsUnlimited bool    `json:"is_unlimited"`
}

// Scenario is the expiry P&L at one underlying price.
type Scenario struct {
	Price float64 `json:"price"`
	PnL   float64 `json:"pnl"`
}

// Report is the strategy level view of a set of legs against one snapshot.
type Report struct {
	Legs              []pnl.LegResult `json:"legs"`
	TotalPnL          float64         `json:"total_pnl"`
	TotalValue        float64         `json:"total_value"`
	NetPremium        float64         `json:"net_premium"`
	Greeks            pnl.Greeks      `json:"greeks"`
	Breakevens        []float64       `json:"breakevens"`
	MaxProfit         Extreme         `json:"max_profit"`
	MaxLoss           Extreme         `json:"max_loss"`
	ProfitProbability float64         `json:"profit_probability"`
	ExpectedMove      float64         `json:"expected_move"`
	Scenarios         []Scenario      `json:"scenarios"`
}

// Aggregate marks every leg to market and derives the strategy totals.
func Aggregate(legs []models.StrategyLeg, snapshot models.MarketSnapshot, opts Options) (Report, error) {
	if len(legs) == 0 {
		return Report{}, ErrNoLegs
	}
	opts = opts.normalized()
	snap := snapshot.WithDefaults()

	report := Report{Legs: make([]pnl.LegResult, 0, len(legs))}
	maxDays := 0
	for i, leg := range legs {
		res, err := pnl.LegPnL(leg, snap)
		if err != nil {
			return Report{}, fmt.Errorf("leg %d: %w", i+1, err)
		}
		report.Legs = append(report.Legs, res)
		report.TotalPnL += res.TotalPnL
		report.TotalValue += res.TotalNotionalValue
		report.Greeks = report.Greeks.Add(res.Greeks)
		report.NetPremium += -leg.Action.Sign() * leg.EntryPrice * float64(leg.Quantity) * models.SharesPerContract
		if leg.DaysToExpiry > maxDays {
			maxDays = leg.DaysToExpiry
		}
	}

	report.ExpectedMove = ExpectedMove(snap.CurrentPrice, snap.ImpliedVolatility, maxDays)
	report.Breakevens = Breakevens(legs)
	report.Scenarios = sweep(legs, snap.CurrentPrice, report.ExpectedMove, opts)
	report.MaxProfit, report.MaxLoss = extremes(legs, report.Scenarios)
	report.ProfitProbability = ProfitProbability(legs, snap.CurrentPrice, report.ExpectedMove, report.Breakevens)
	return report, nil
}

// ExpectedMove is the one standard deviation price move over days.
func ExpectedMove(spot, volatility float64, days int) float64 {
	if days <= 0 {
		return 0
	}
	return spot * volatility * math.Sqrt(float64(days)/365)
}

// sweep evaluates expiry P&L across spot ± k expected moves, at zero and at
// every strike. Including the knots makes the bounded extremes exact.
func sweep(legs []models.StrategyLeg, spot, move float64, opts Options) []Scenario {
	strikes := sortedStrikes(legs)
	half := opts.ExpectedMoves * move
	lo := math.Max(0, spot-half)
	hi := math.Max(spot+half, strikes[len(strikes)-1]*1.1)
	if lo == hi {
		hi = lo + 1
	}

	prices := make([]float64, 0, opts.GridPoints+len(strikes)+1)
	prices = append(prices, 0)
	step := (hi - lo) / float64(opts.GridPoints-1)
	for i := 0; i < opts.GridPoints; i++ {
		prices = append(prices, lo+step*float64(i))
	}
	prices = append(prices, strikes...)
	sort.Float64s(prices)

	scenarios := make([]Scenario, 0, len(prices))
	for i, p := range prices {
		if i > 0 && p == prices[i-1] {
			continue
		}
		scenarios = append(scenarios, Scenario{Price: p, PnL: Payoff(legs, p)})
	}
	return scenarios
}

// extremes picks the best and worst scenario. Unlimited payoff is detected
// from the slope above the highest strike rather than a magnitude threshold.
func extremes(legs []models.StrategyLeg, scenarios []Scenario) (best, worst Extreme) {
	best = Extreme{Amount: math.Inf(-1)}
	worst = Extreme{Amount: math.Inf(1)}
	for _, s := range scenarios {
		if s.PnL > best.Amount {
			best = Extreme{Amount: s.PnL, AtPrice: s.Price}
		}
		if s.PnL < worst.Amount {
			worst = Extreme{Amount: s.PnL, AtPrice: s.Price}
		}
	}
	slope := upperSlope(legs)
	best.IsUnlimited = slope > 0
	worst.IsUnlimited = slope < 0
	return best, worst
}

// ProfitProbability is a heuristic chance of finishing profitable, not a
// risk-neutral probability. One breakeven uses the Gaussian tail of the
// breakeven distance in expected moves; two breakevens score 0.7 when spot
// already sits in the profitable region and 0.3 otherwise; anything else
// scores 1 or 0 by the P&L at spot.
func ProfitProbability(legs []models.StrategyLeg, spot, move float64, breakevens []float64) float64 {
	profitableAt := func(price float64) bool { return Payoff(legs, price) > 0 }

	var p float64
	switch {
	case len(breakevens) == 1 && move > 0:
		be := breakevens[0]
		z := (be - spot) / move
		step := math.Max(0.01, be*0.001)
		if profitableAt(be + step) {
			p = 1 - pricing.NormCDF(z)
		} else {
			p = pricing.NormCDF(z)
		}
	case len(breakevens) == 2:
		lo, hi := breakevens[0], breakevens[1]
		insideProfits := profitableAt((lo + hi) / 2)
		spotInside := spot > lo && spot < hi
		if insideProfits == spotInside {
			p = 0.7
		} else {
			p = 0.3
		}
	default:
		if profitableAt(spot) {
			p = 1
		}
	}
	return math.Min(1, math.Max(0, p))
}
