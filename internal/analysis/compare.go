package analysis

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/eddiefleurent/strategy_lab/internal/models"
	"github.com/eddiefleurent/strategy_lab/internal/pnl"
	"github.com/eddiefleurent/strategy_lab/internal/strategy"
)

// maxCompareWorkers bounds the goroutines Compare runs at once.
const maxCompareWorkers = 4

// Comparison is one strategy built at market around the snapshot price.
type Comparison struct {
	Definition strategy.Definition `json:"definition"`
	Setup      strategy.TradeSetup `json:"setup"`
	Report     Report              `json:"report"`
}

// Compare builds each definition around the current spot, marks the legs at
// their theoretical value and aggregates them. Results keep input order.
func Compare(ctx context.Context, defs []strategy.Definition, snapshot models.MarketSnapshot,
	daysToExpiry int, opts Options) ([]Comparison, error) {
	snap := snapshot.WithDefaults()
	if err := snap.Validate(); err != nil {
		return nil, err
	}

	results := make([]Comparison, len(defs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxCompareWorkers)

	for i, def := range defs {
		i, def := i, def
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			params := strategy.ParamsAround(def.Kind, snap.CurrentPrice, daysToExpiry)
			legs, err := def.GenerateLegs(params)
			if err != nil {
				return fmt.Errorf("%s: %w", def.Name, err)
			}
			legs, err = pnl.MarkEntries(legs, snap)
			if err != nil {
				return fmt.Errorf("%s: %w", def.Name, err)
			}
			report, err := Aggregate(legs, snap, opts)
			if err != nil {
				return fmt.Errorf("%s: %w", def.Name, err)
			}
			setup, err := def.FormatTradeSetup(params)
			if err != nil {
				return fmt.Errorf("%s: %w", def.Name, err)
			}
			results[i] = Comparison{Definition: def, Setup: setup, Report: report}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
