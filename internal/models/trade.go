package models

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// TradeState is the lifecycle state of a journal entry.
type TradeState string

const (
	TradeOpen   TradeState = "open"
	TradeClosed TradeState = "closed"
)

// Valid returns true if the TradeState is one of the defined constants
func (s TradeState) Valid() bool {
	return s == TradeOpen || s == TradeClosed
}

// Trade is a journal record of a strategy that was put on.
type Trade struct {
	OpenedAt    time.Time     `json:"opened_at"`
	ClosedAt    time.Time     `json:"closed_at,omitempty"`
	ID          string        `json:"id"`
	Symbol      string        `json:"symbol"`
	Strategy    string        `json:"strategy"`
	State       TradeState    `json:"state"`
	ExitReason  string        `json:"exit_reason,omitempty"`
	Notes       string        `json:"notes,omitempty"`
	Legs        []StrategyLeg `json:"legs"`
	EntrySpot   float64       `json:"entry_spot"`
	RealizedPnL float64       `json:"realized_pnl"`
}

// NetPremium is the cash flow of opening every leg: premium received is
// positive, premium paid is negative.
func (t *Trade) NetPremium() float64 {
	total := 0.0
	for _, leg := range t.Legs {
		total += -leg.Action.Sign() * leg.EntryPrice * float64(leg.Quantity) * SharesPerContract
	}
	return total
}

// ProfitPercent returns realized P&L as a percentage of the absolute net premium.
func (t *Trade) ProfitPercent() float64 {
	denom := math.Abs(t.NetPremium())
	if denom == 0 {
		return 0
	}
	return t.RealizedPnL / denom * 100
}

// Validate ensures the trade data is consistent with its state.
func (t *Trade) Validate() error {
	if strings.TrimSpace(t.Symbol) == "" {
		return fmt.Errorf("trade %s: symbol is required", t.ID)
	}
	if strings.TrimSpace(t.Strategy) == "" {
		return fmt.Errorf("trade %s: strategy is required", t.ID)
	}
	if len(t.Legs) == 0 {
		return fmt.Errorf("trade %s: at least one leg is required", t.ID)
	}
	for i, leg := range t.Legs {
		if err := leg.Validate(); err != nil {
			return fmt.Errorf("trade %s leg %d: %w", t.ID, i, err)
		}
	}

	switch t.State {
	case TradeOpen:
		if !t.ClosedAt.IsZero() {
			return fmt.Errorf("trade %s in state %s: ClosedAt must be zero for open trades (current: %v)",
				t.ID, t.State, t.ClosedAt)
		}
		if strings.TrimSpace(t.ExitReason) != "" {
			return fmt.Errorf("trade %s in state %s: ExitReason must be empty for open trades", t.ID, t.State)
		}
		if t.RealizedPnL != 0 {
			return fmt.Errorf("trade %s in state %s: RealizedPnL must be zero for open trades (current: %.2f)",
				t.ID, t.State, t.RealizedPnL)
		}
	case TradeClosed:
		if t.ClosedAt.IsZero() {
			return fmt.Errorf("trade %s in state %s: ClosedAt must be set for closed trades", t.ID, t.State)
		}
		if !t.OpenedAt.IsZero() && t.ClosedAt.Before(t.OpenedAt) {
			return fmt.Errorf("trade %s in state %s: OpenedAt (%v) must not be after ClosedAt (%v)",
				t.ID, t.State, t.OpenedAt, t.ClosedAt)
		}
	default:
		return fmt.Errorf("trade %s: unknown state %q", t.ID, t.State)
	}
	return nil
}
