package strategy

import (
	"fmt"
	"math"
)

// VerticalMetrics are the per-share expiry outcomes of a credit vertical spread.
type VerticalMetrics struct {
	MaxProfit       float64 `json:"max_profit"`
	MaxLoss         float64 `json:"max_loss"` // negative
	Breakeven       float64 `json:"breakeven"`
	Width           float64 `json:"width"`
	RiskRewardRatio float64 `json:"risk_reward_ratio"`
}

// CalculateVerticalMetrics computes max profit, max loss and breakeven for a
// credit vertical. A short strike above the long strike is a put credit
// spread; below it is a call credit spread.
func CalculateVerticalMetrics(shortStrike, longStrike, premium float64) (VerticalMetrics, error) {
	if !(shortStrike > 0) || !(longStrike > 0) {
		return VerticalMetrics{}, fmt.Errorf("%w: strikes must be positive", ErrInvalidParams)
	}
	width := math.Abs(shortStrike - longStrike)
	if width == 0 {
		return VerticalMetrics{}, fmt.Errorf("%w: short and long strike are equal (%v)",
			ErrPreconditionViolation, shortStrike)
	}
	if !(premium > 0) || premium >= width {
		return VerticalMetrics{}, fmt.Errorf("%w: premium must be in (0, %v), got %v",
			ErrInvalidParams, width, premium)
	}

	breakeven := shortStrike + premium
	if shortStrike > longStrike {
		breakeven = shortStrike - premium
	}
	maxLoss := -(width - premium)
	return VerticalMetrics{
		MaxProfit:       premium,
		MaxLoss:         maxLoss,
		Breakeven:       breakeven,
		Width:           width,
		RiskRewardRatio: premium / -maxLoss,
	}, nil
}
