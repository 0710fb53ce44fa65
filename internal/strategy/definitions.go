// Package strategy builds the legs of named multi-leg option strategies and
// renders trade setups from those same legs.
package strategy

import (
	"fmt"
	"strings"

	"github.com/eddiefleurent/strategy_lab/internal/models"
)

// Kind is the closed set of supported strategy families.
type Kind string

const (
	BullCallSpread Kind = "bull_call_spread"
	BullPutSpread  Kind = "bull_put_spread"
	BearCallSpread Kind = "bear_call_spread"
	BearPutSpread  Kind = "bear_put_spread"
	IronCondor     Kind = "iron_condor"
	IronButterfly  Kind = "iron_butterfly"
	ShortStrangle  Kind = "short_strangle"
	LongStraddle   Kind = "long_straddle"
)

// Definition is the static description of a strategy. Definitions are never
// mutated at runtime.
type Definition struct {
	Kind              Kind              `json:"kind"`
	Name              string            `json:"name"`
	Description       string            `json:"description"`
	MarketBias        models.MarketBias `json:"market_bias"`
	RiskLevel         models.RiskLevel  `json:"risk_level"`
	HistoricalWinRate float64           `json:"historical_win_rate"` // percent
}

var definitions = []Definition{
	{
		Kind:              BullCallSpread,
		Name:              "Bull Call Spread",
		Description:       "Buy a call and sell a higher strike call for a net debit; profits from a moderate rise.",
		MarketBias:        models.BiasBullish,
		RiskLevel:         models.RiskModerate,
		HistoricalWinRate: 55,
	},
	{
		Kind:              BullPutSpread,
		Name:              "Bull Put Spread",
		Description:       "Sell a put and buy a lower strike put for a net credit; profits if price stays above the short strike.",
		MarketBias:        models.BiasBullish,
		RiskLevel:         models.RiskModerate,
		HistoricalWinRate: 70,
	},
	{
		Kind:              BearCallSpread,
		Name:              "Bear Call Spread",
		Description:       "Sell a call and buy a higher strike call for a net credit; profits if price stays below the short strike.",
		MarketBias:        models.BiasBearish,
		RiskLevel:         models.RiskModerate,
		HistoricalWinRate: 68,
	},
	{
		Kind:              BearPutSpread,
		Name:              "Bear Put Spread",
		Description:       "Buy a put and sell a lower strike put for a net debit; profits from a moderate decline.",
		MarketBias:        models.BiasBearish,
		RiskLevel:         models.RiskModerate,
		HistoricalWinRate: 52,
	},
	{
		Kind:              IronCondor,
		Name:              "Iron Condor",
		Description:       "Sell an OTM put spread and an OTM call spread; profits while price stays between the short strikes.",
		MarketBias:        models.BiasNeutral,
		RiskLevel:         models.RiskLow,
		HistoricalWinRate: 65,
	},
	{
		Kind:              IronButterfly,
		Name:              "Iron Butterfly",
		Description:       "Sell an ATM straddle protected by OTM wings; profits when price pins near the center strike.",
		MarketBias:        models.BiasNeutral,
		RiskLevel:         models.RiskModerate,
		HistoricalWinRate: 45,
	},
	{
		Kind:              ShortStrangle,
		Name:              "Short Strangle",
		Description:       "Sell an OTM put and an OTM call; collects premium with undefined risk on both sides.",
		MarketBias:        models.BiasNeutral,
		RiskLevel:         models.RiskHigh,
		HistoricalWinRate: 75,
	},
	{
		Kind:              LongStraddle,
		Name:              "Long Straddle",
		Description:       "Buy a call and a put at the same strike; profits from a large move in either direction.",
		MarketBias:        models.BiasNeutral,
		RiskLevel:         models.RiskModerate,
		HistoricalWinRate: 40,
	},
}

// Definitions returns every registered strategy in display order.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// Lookup finds a definition by display name or kind, ignoring case and
// separators ("Bull Put Spread", "bull_put_spread", "bull-put-spread").
func Lookup(name string) (Definition, error) {
	key := normalizeName(name)
	for _, def := range definitions {
		if normalizeName(def.Name) == key || normalizeName(string(def.Kind)) == key {
			return def, nil
		}
	}
	return Definition{}, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}

func normalizeName(name string) string {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return r == ' ' || r == '_' || r == '-' || r == '\t'
	})
	return strings.Join(fields, " ")
}
