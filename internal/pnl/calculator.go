// Package pnl marks individual strategy legs to market.
package pnl

import (
	"fmt"

	"github.com/eddiefleurent/strategy_lab/internal/models"
	"github.com/eddiefleurent/strategy_lab/internal/pricing"
)

// Greeks are position-scaled sensitivities: per-share values multiplied by
// quantity, the contract multiplier and the side of the leg.
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
}

// Add returns the element-wise sum of two Greeks.
func (g Greeks) Add(o Greeks) Greeks {
	return Greeks{
		Delta: g.Delta + o.Delta,
		Gamma: g.Gamma + o.Gamma,
		Theta: g.Theta + o.Theta,
		Vega:  g.Vega + o.Vega,
	}
}

// LegResult is the mark-to-market state of one leg.
type LegResult struct {
	Leg                models.StrategyLeg `json:"leg"`
	CurrentValue       float64            `json:"current_value"`
	PnLPerContract     float64            `json:"pnl_per_contract"`
	TotalPnL           float64            `json:"total_pnl"`
	TotalNotionalValue float64            `json:"total_notional_value"`
	PercentChange      float64            `json:"percent_change"`
	Greeks             Greeks             `json:"greeks"`
	IntrinsicValue     float64            `json:"intrinsic_value"`
	TimeValue          float64            `json:"time_value"`
}

// LegPnL prices a leg against snapshot and computes its P&L relative to the
// leg's entry price. Missing volatility and rate fall back to model defaults.
func LegPnL(leg models.StrategyLeg, snapshot models.MarketSnapshot) (LegResult, error) {
	if err := leg.Validate(); err != nil {
		return LegResult{}, err
	}
	snap := snapshot.WithDefaults()
	if err := snap.Validate(); err != nil {
		return LegResult{}, err
	}

	res, err := pricing.Price(snap.CurrentPrice, leg.Strike, leg.YearsToExpiry(),
		snap.Rate(), snap.ImpliedVolatility, leg.OptionKind)
	if err != nil {
		return LegResult{}, fmt.Errorf("pricing %s: %w", leg, err)
	}

	sign := leg.Action.Sign()
	units := float64(leg.Quantity) * models.SharesPerContract

	// a short leg profits when the option loses value
	pnlPerContract := sign * (res.Price - leg.EntryPrice)
	percent := 0.0
	if leg.EntryPrice != 0 {
		percent = pnlPerContract / leg.EntryPrice * 100
	}

	scale := units * sign
	return LegResult{
		Leg:                leg,
		CurrentValue:       res.Price,
		PnLPerContract:     pnlPerContract,
		TotalPnL:           pnlPerContract * units,
		TotalNotionalValue: sign * res.Price * units,
		PercentChange:      percent,
		Greeks: Greeks{
			Delta: res.Delta * scale,
			Gamma: res.Gamma * scale,
			Theta: res.Theta * scale,
			Vega:  res.Vega * scale,
		},
		IntrinsicValue: res.IntrinsicValue,
		TimeValue:      res.TimeValue,
	}, nil
}

// MarkEntries returns copies of legs whose entry price is the current
// theoretical value, for building a strategy "at market".
func MarkEntries(legs []models.StrategyLeg, snapshot models.MarketSnapshot) ([]models.StrategyLeg, error) {
	marked := make([]models.StrategyLeg, len(legs))
	for i, leg := range legs {
		res, err := LegPnL(leg, snapshot)
		if err != nil {
			return nil, fmt.Errorf("leg %d: %w", i, err)
		}
		leg.EntryPrice = res.CurrentValue
		marked[i] = leg
	}
	return marked, nil
}
