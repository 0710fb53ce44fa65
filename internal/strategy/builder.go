package strategy

import (
	"fmt"

	"github.com/eddiefleurent/strategy_lab/internal/models"
	"github.com/eddiefleurent/strategy_lab/internal/util"
)

const (
	// DefaultExpiry is the expiry label used when none is given
	DefaultExpiry = "30-45 DTE"
	// DefaultContracts is the leg quantity used when none is given
	DefaultContracts = 1
	// DefaultDaysToExpiry is the leg expiry used when none is given
	DefaultDaysToExpiry = 30
)

// Params carries the strike and sizing inputs for leg generation. Each family
// reads only its own strike fields.
type Params struct {
	// Vertical spreads
	LongStrike  float64 `json:"long_strike,omitempty"`
	ShortStrike float64 `json:"short_strike,omitempty"`

	// Iron condor, short strangle (sell strikes only)
	PutBuyStrike   float64 `json:"put_buy_strike,omitempty"`
	PutSellStrike  float64 `json:"put_sell_strike,omitempty"`
	CallSellStrike float64 `json:"call_sell_strike,omitempty"`
	CallBuyStrike  float64 `json:"call_buy_strike,omitempty"`

	// Iron butterfly wings and center; long straddle uses Center only
	LowerWing float64 `json:"lower_wing,omitempty"`
	Center    float64 `json:"center,omitempty"`
	UpperWing float64 `json:"upper_wing,omitempty"`

	Contracts    int    `json:"contracts,omitempty"`
	DaysToExpiry int    `json:"days_to_expiry,omitempty"`
	Expiry       string `json:"expiry,omitempty"`

	// Premiums are per-share entry prices in leg template order. Empty means
	// zero entry prices.
	Premiums []float64 `json:"premiums,omitempty"`
}

func (p Params) withDefaults() Params {
	if p.Contracts == 0 {
		p.Contracts = DefaultContracts
	}
	if p.DaysToExpiry == 0 {
		p.DaysToExpiry = DefaultDaysToExpiry
	}
	if p.Expiry == "" {
		p.Expiry = DefaultExpiry
	}
	return p
}

// legSpec is one entry of a strategy template before sizing.
type legSpec struct {
	action models.ActionKind
	kind   models.OptionKind
	strike float64
}

// GenerateLegs returns the ordered legs of the strategy. Strike ordering
// rules are checked first and fail with ErrPreconditionViolation.
func (d Definition) GenerateLegs(p Params) ([]models.StrategyLeg, error) {
	p = p.withDefaults()
	if p.Contracts < 0 {
		return nil, fmt.Errorf("%w: contracts must be > 0 (current: %d)", ErrInvalidParams, p.Contracts)
	}
	if p.DaysToExpiry < 0 {
		return nil, fmt.Errorf("%w: days to expiry must be >= 0 (current: %d)", ErrInvalidParams, p.DaysToExpiry)
	}

	specs, err := d.template(p)
	if err != nil {
		return nil, err
	}
	if len(p.Premiums) != 0 && len(p.Premiums) != len(specs) {
		return nil, fmt.Errorf("%w: %s takes %d premiums, got %d",
			ErrInvalidParams, d.Name, len(specs), len(p.Premiums))
	}

	legs := make([]models.StrategyLeg, len(specs))
	for i, spec := range specs {
		leg := models.StrategyLeg{
			Action:       spec.action,
			OptionKind:   spec.kind,
			Strike:       spec.strike,
			Quantity:     p.Contracts,
			DaysToExpiry: p.DaysToExpiry,
		}
		if len(p.Premiums) != 0 {
			leg.EntryPrice = p.Premiums[i]
		}
		if err := leg.Validate(); err != nil {
			return nil, fmt.Errorf("%s leg %d: %w", d.Name, i+1, err)
		}
		legs[i] = leg
	}
	return legs, nil
}

func (d Definition) template(p Params) ([]legSpec, error) {
	buy, sell := models.Buy, models.Sell
	call, put := models.Call, models.Put

	switch d.Kind {
	case BullCallSpread:
		if err := d.ordered("long strike < short strike", p.LongStrike, p.ShortStrike); err != nil {
			return nil, err
		}
		return []legSpec{{buy, call, p.LongStrike}, {sell, call, p.ShortStrike}}, nil
	case BullPutSpread:
		if err := d.ordered("long strike < short strike", p.LongStrike, p.ShortStrike); err != nil {
			return nil, err
		}
		return []legSpec{{sell, put, p.ShortStrike}, {buy, put, p.LongStrike}}, nil
	case BearCallSpread:
		if err := d.ordered("short strike < long strike", p.ShortStrike, p.LongStrike); err != nil {
			return nil, err
		}
		return []legSpec{{sell, call, p.ShortStrike}, {buy, call, p.LongStrike}}, nil
	case BearPutSpread:
		if err := d.ordered("short strike < long strike", p.ShortStrike, p.LongStrike); err != nil {
			return nil, err
		}
		return []legSpec{{buy, put, p.LongStrike}, {sell, put, p.ShortStrike}}, nil
	case IronCondor:
		if err := d.ordered("put buy < put sell < call sell < call buy",
			p.PutBuyStrike, p.PutSellStrike, p.CallSellStrike, p.CallBuyStrike); err != nil {
			return nil, err
		}
		return []legSpec{
			{sell, put, p.PutSellStrike},
			{buy, put, p.PutBuyStrike},
			{sell, call, p.CallSellStrike},
			{buy, call, p.CallBuyStrike},
		}, nil
	case IronButterfly:
		if err := d.ordered("lower wing < center < upper wing", p.LowerWing, p.Center, p.UpperWing); err != nil {
			return nil, err
		}
		return []legSpec{
			{buy, put, p.LowerWing},
			{sell, put, p.Center},
			{sell, call, p.Center},
			{buy, call, p.UpperWing},
		}, nil
	case ShortStrangle:
		if err := d.ordered("put sell < call sell", p.PutSellStrike, p.CallSellStrike); err != nil {
			return nil, err
		}
		return []legSpec{{sell, put, p.PutSellStrike}, {sell, call, p.CallSellStrike}}, nil
	case LongStraddle:
		if err := d.ordered("center strike", p.Center); err != nil {
			return nil, err
		}
		return []legSpec{{buy, call, p.Center}, {buy, put, p.Center}}, nil
	default:
		return nil, fmt.Errorf("%w: kind %q", ErrUnknownStrategy, d.Kind)
	}
}

// ordered checks that every strike is positive and strictly increasing.
func (d Definition) ordered(rule string, strikes ...float64) error {
	for i, s := range strikes {
		if !(s > 0) {
			return fmt.Errorf("%w: %s requires positive strikes (%s), got %v",
				ErrInvalidParams, d.Name, rule, strikes)
		}
		if i > 0 && !(strikes[i-1] < s) {
			return fmt.Errorf("%w: %s requires %s, got %v", ErrPreconditionViolation, d.Name, rule, strikes)
		}
	}
	return nil
}

// GenerateLegs looks up a strategy by name and generates its legs.
func GenerateLegs(name string, p Params) ([]models.StrategyLeg, error) {
	def, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	return def.GenerateLegs(p)
}

// Built is a strategy with its legs and the trade setup rendered from them.
type Built struct {
	Definition Definition           `json:"definition"`
	Legs       []models.StrategyLeg `json:"legs"`
	Setup      TradeSetup           `json:"setup"`
}

// BuildStrategy generates the legs of a named strategy and renders its trade setup.
func BuildStrategy(name string, p Params) (Built, error) {
	def, err := Lookup(name)
	if err != nil {
		return Built{}, err
	}
	legs, err := def.GenerateLegs(p)
	if err != nil {
		return Built{}, err
	}
	return Built{
		Definition: def,
		Legs:       legs,
		Setup:      renderSetup(def, legs, p.withDefaults()),
	}, nil
}

// CanonicalParams returns fixed reference strikes around 100 that satisfy
// the strategy's ordering rule.
func CanonicalParams(kind Kind) Params {
	p := Params{Contracts: 1, DaysToExpiry: DefaultDaysToExpiry}
	switch kind {
	case BullCallSpread:
		p.LongStrike, p.ShortStrike = 95, 105
	case BullPutSpread:
		p.ShortStrike, p.LongStrike = 100, 95
	case BearCallSpread:
		p.ShortStrike, p.LongStrike = 100, 105
	case BearPutSpread:
		p.LongStrike, p.ShortStrike = 105, 95
	case IronCondor:
		p.PutBuyStrike, p.PutSellStrike, p.CallSellStrike, p.CallBuyStrike = 90, 95, 105, 110
	case IronButterfly:
		p.LowerWing, p.Center, p.UpperWing = 90, 100, 110
	case ShortStrangle:
		p.PutSellStrike, p.CallSellStrike = 90, 110
	case LongStraddle:
		p.Center = 100
	}
	return p
}

// ParamsAround scales the canonical strikes of kind to an underlying trading
// at spot, snapped to the listed strike increment for that price. Put strikes
// snap down and call strikes snap up, so an off-grid strike moves out of the
// money; straddle and butterfly centers snap to the nearest strike.
func ParamsAround(kind Kind, spot float64, daysToExpiry int) Params {
	p := CanonicalParams(kind)
	p.DaysToExpiry = daysToExpiry
	tick := util.StrikeIncrement(spot)
	scale := func(ref float64, snap func(x, tick float64) float64) float64 {
		if ref == 0 {
			return 0
		}
		return snap(ref/100*spot, tick)
	}

	vertical := util.FloorToTick
	if kind == BullCallSpread || kind == BearCallSpread {
		vertical = util.CeilToTick
	}
	p.LongStrike, p.ShortStrike = scale(p.LongStrike, vertical), scale(p.ShortStrike, vertical)
	p.PutBuyStrike, p.PutSellStrike = scale(p.PutBuyStrike, util.FloorToTick), scale(p.PutSellStrike, util.FloorToTick)
	p.CallSellStrike, p.CallBuyStrike = scale(p.CallSellStrike, util.CeilToTick), scale(p.CallBuyStrike, util.CeilToTick)
	p.LowerWing = scale(p.LowerWing, util.FloorToTick)
	p.Center = scale(p.Center, util.RoundToTick)
	p.UpperWing = scale(p.UpperWing, util.CeilToTick)
	return p
}
