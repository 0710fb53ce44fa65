package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// DefaultRiskFreeRate is used when a snapshot carries no rate
	DefaultRiskFreeRate = 0.05
	// DefaultVolatility is used when a snapshot carries no implied volatility estimate
	DefaultVolatility = 0.25
	// MaxVolatility bounds the implied volatility a snapshot may carry (500%)
	MaxVolatility = 5.0

	daysPerYear = 365.0
)

// MarketSnapshot is the market state a leg is priced against. It is supplied
// per call by the quote layer and never persisted.
type MarketSnapshot struct {
	CurrentPrice      float64  `json:"current_price"`
	ImpliedVolatility float64  `json:"implied_volatility,omitempty"` // decimal, 0.20 = 20%
	RiskFreeRate      *float64 `json:"risk_free_rate,omitempty"`     // nil when absent; zero and negative rates are priced as given
}

// Float64 returns a pointer to v, for optional rate fields.
func Float64(v float64) *float64 {
	return &v
}

// Rate returns the risk free rate, or DefaultRiskFreeRate when none is set.
func (s MarketSnapshot) Rate() float64 {
	if s.RiskFreeRate == nil {
		return DefaultRiskFreeRate
	}
	return *s.RiskFreeRate
}

// WithDefaults fills a missing volatility or rate with the package defaults.
// Volatility must be positive, so zero counts as missing.
func (s MarketSnapshot) WithDefaults() MarketSnapshot {
	if s.ImpliedVolatility == 0 {
		s.ImpliedVolatility = DefaultVolatility
	}
	if s.RiskFreeRate == nil {
		s.RiskFreeRate = Float64(DefaultRiskFreeRate)
	}
	return s
}

// Validate checks the snapshot after defaults have been applied.
func (s MarketSnapshot) Validate() error {
	if !(s.CurrentPrice > 0) || math.IsInf(s.CurrentPrice, 0) {
		return fmt.Errorf("%w: current price must be positive (current: %v)", ErrInvalidSnapshot, s.CurrentPrice)
	}
	if !(s.ImpliedVolatility > 0) || s.ImpliedVolatility > MaxVolatility {
		return fmt.Errorf("%w: implied volatility must be in (0, %.0f] (current: %v)",
			ErrInvalidSnapshot, MaxVolatility, s.ImpliedVolatility)
	}
	if r := s.Rate(); math.IsNaN(r) || math.IsInf(r, 0) {
		return fmt.Errorf("%w: risk free rate must be finite", ErrInvalidSnapshot)
	}
	return nil
}

// StrategyLeg is one option in a multi-leg strategy.
type StrategyLeg struct {
	Action       ActionKind `json:"action"`
	OptionKind   OptionKind `json:"option_kind"`
	Strike       float64    `json:"strike"`
	Quantity     int        `json:"quantity"`
	DaysToExpiry int        `json:"days_to_expiry"`
	EntryPrice   float64    `json:"entry_price"`
}

// YearsToExpiry converts DaysToExpiry to a year fraction.
func (l StrategyLeg) YearsToExpiry() float64 {
	return float64(l.DaysToExpiry) / daysPerYear
}

// Validate checks the leg's field constraints.
func (l StrategyLeg) Validate() error {
	if !l.Action.Valid() {
		return fmt.Errorf("%w: unknown action %q", ErrInvalidLeg, l.Action)
	}
	if !l.OptionKind.Valid() {
		return fmt.Errorf("%w: unknown option kind %q", ErrInvalidLeg, l.OptionKind)
	}
	if !(l.Strike > 0) || math.IsInf(l.Strike, 0) {
		return fmt.Errorf("%w: strike must be positive (current: %v)", ErrInvalidLeg, l.Strike)
	}
	if l.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be > 0 (current: %d)", ErrInvalidLeg, l.Quantity)
	}
	if l.DaysToExpiry < 0 {
		return fmt.Errorf("%w: days to expiry must be >= 0 (current: %d)", ErrInvalidLeg, l.DaysToExpiry)
	}
	if l.EntryPrice < 0 || math.IsNaN(l.EntryPrice) || math.IsInf(l.EntryPrice, 0) {
		return fmt.Errorf("%w: entry price must be >= 0 (current: %v)", ErrInvalidLeg, l.EntryPrice)
	}
	return nil
}

// String renders the leg as "SELL 180 PUT".
func (l StrategyLeg) String() string {
	return fmt.Sprintf("%s %s %s", strings.ToUpper(string(l.Action)), FormatStrike(l.Strike), strings.ToUpper(string(l.OptionKind)))
}

// Describe renders the leg as "Sell 180 Put".
func (l StrategyLeg) Describe() string {
	return fmt.Sprintf("%s %s %s", l.Action.Title(), FormatStrike(l.Strike), l.OptionKind.Title())
}

// FormatStrike prints a strike without trailing zeros (180, 177.5).
func FormatStrike(strike float64) string {
	return strconv.FormatFloat(strike, 'f', -1, 64)
}
