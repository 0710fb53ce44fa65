package strategy

import (
	"strings"

	"github.com/eddiefleurent/strategy_lab/internal/models"
)

// TradeSetup is the human readable form of a strategy shown to users.
type TradeSetup struct {
	Strategy  string   `json:"strategy,omitempty"`
	Action    string   `json:"action"`
	Expiry    string   `json:"expiry"`
	Contracts int      `json:"contracts"`
	Legs      []string `json:"legs"`
}

// LegsText joins the leg lines for display.
func (s TradeSetup) LegsText() string {
	return strings.Join(s.Legs, ", ")
}

// FormatTradeSetup renders the trade setup from the legs GenerateLegs
// produces for p, so the text can never disagree with the legs.
func (d Definition) FormatTradeSetup(p Params) (TradeSetup, error) {
	legs, err := d.GenerateLegs(p)
	if err != nil {
		return TradeSetup{}, err
	}
	return renderSetup(d, legs, p.withDefaults()), nil
}

func renderSetup(d Definition, legs []models.StrategyLeg, p Params) TradeSetup {
	actions := make([]string, len(legs))
	lines := make([]string, len(legs))
	for i, leg := range legs {
		actions[i] = leg.Describe()
		lines[i] = leg.String()
	}
	return TradeSetup{
		Strategy:  d.Name,
		Action:    strings.Join(actions, " / "),
		Expiry:    p.Expiry,
		Contracts: p.Contracts,
		Legs:      lines,
	}
}
