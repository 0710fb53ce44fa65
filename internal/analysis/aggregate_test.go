package analysis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddiefleurent/strategy_lab/internal/models"
	"github.com/eddiefleurent/strategy_lab/internal/strategy"
)

func build(t *testing.T, name string, p strategy.Params) []models.StrategyLeg {
	t.Helper()
	legs, err := strategy.GenerateLegs(name, p)
	require.NoError(t, err)
	return legs
}

func bullPutSpread(t *testing.T) []models.StrategyLeg {
	return build(t, "Bull Put Spread", strategy.Params{
		ShortStrike: 180, LongStrike: 175, Premiums: []float64{3.0, 0.5},
	})
}

func ironCondor(t *testing.T) []models.StrategyLeg {
	return build(t, "Iron Condor", strategy.Params{
		PutBuyStrike: 165, PutSellStrike: 170, CallSellStrike: 185, CallBuyStrike: 190,
		Premiums: []float64{2, 1, 2, 1},
	})
}

func TestPayoff(t *testing.T) {
	legs := bullPutSpread(t)

	tests := []struct {
		price float64
		want  float64
	}{
		{0, -250},
		{175, -250},
		{177.5, 0},
		{180, 250},
		{500, 250},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Payoff(legs, tt.price), 1e-9, "price %v", tt.price)
	}
	assert.Zero(t, Payoff(nil, 100))
}

func TestBreakevens(t *testing.T) {
	tests := []struct {
		name string
		legs []models.StrategyLeg
		want []float64
	}{
		{
			name: "bull put spread is short strike minus credit",
			legs: bullPutSpread(t),
			want: []float64{177.5},
		},
		{
			name: "iron condor brackets the short strikes",
			legs: ironCondor(t),
			want: []float64{168, 187},
		},
		{
			name: "bull call spread is long strike plus debit",
			legs: build(t, "Bull Call Spread", strategy.Params{
				LongStrike: 100, ShortStrike: 110, Premiums: []float64{5, 2},
			}),
			want: []float64{103},
		},
		{
			name: "short strangle solves the unbounded call tail",
			legs: build(t, "Short Strangle", strategy.Params{
				PutSellStrike: 90, CallSellStrike: 110, Premiums: []float64{1.5, 1.5},
			}),
			want: []float64{87, 113},
		},
		{
			name: "long straddle",
			legs: build(t, "Long Straddle", strategy.Params{
				Center: 100, Premiums: []float64{3, 3},
			}),
			want: []float64{94, 106},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Breakevens(tt.legs)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.InDelta(t, tt.want[i], got[i], 1e-9)
			}
		})
	}

	assert.Empty(t, Breakevens(nil))
}

func TestBreakevens_DiscardsNonPositive(t *testing.T) {
	// a put bought for more than its strike can never break even
	legs := []models.StrategyLeg{{
		Action: models.Buy, OptionKind: models.Put, Strike: 5, Quantity: 1, EntryPrice: 6,
	}}
	assert.Empty(t, Breakevens(legs))
}

func TestAggregate_BullPutSpread(t *testing.T) {
	legs := bullPutSpread(t)
	snap := models.MarketSnapshot{CurrentPrice: 185, ImpliedVolatility: 0.2, RiskFreeRate: models.Float64(0.05)}

	report, err := Aggregate(legs, snap, Options{})
	require.NoError(t, err)

	require.Len(t, report.Legs, 2)
	assert.InDelta(t, 250, report.NetPremium, 1e-9)
	assert.Equal(t, []float64{177.5}, report.Breakevens)

	assert.InDelta(t, 250, report.MaxProfit.Amount, 1e-9)
	assert.False(t, report.MaxProfit.IsUnlimited)
	assert.InDelta(t, -250, report.MaxLoss.Amount, 1e-9)
	assert.False(t, report.MaxLoss.IsUnlimited)

	var pnlSum, deltaSum, valueSum float64
	for _, leg := range report.Legs {
		pnlSum += leg.TotalPnL
		deltaSum += leg.Greeks.Delta
		valueSum += leg.TotalNotionalValue
	}
	assert.InDelta(t, pnlSum, report.TotalPnL, 1e-9)
	assert.InDelta(t, deltaSum, report.Greeks.Delta, 1e-9)
	assert.InDelta(t, valueSum, report.TotalValue, 1e-9)
	assert.Greater(t, report.Greeks.Delta, 0.0, "bull put spread is long delta")

	assert.InDelta(t, 10.6075, report.ExpectedMove, 1e-3)
	// breakeven sits 0.707 expected moves below spot and the spread profits above it
	assert.InDelta(t, 0.760, report.ProfitProbability, 0.005)

	assert.GreaterOrEqual(t, len(report.Scenarios), DefaultOptions.GridPoints)
	for i := 1; i < len(report.Scenarios); i++ {
		assert.Less(t, report.Scenarios[i-1].Price, report.Scenarios[i].Price)
	}
}

func TestAggregate_IronCondorRangeProbability(t *testing.T) {
	legs := ironCondor(t)

	inside, err := Aggregate(legs, models.MarketSnapshot{CurrentPrice: 177.5, ImpliedVolatility: 0.2}, Options{})
	require.NoError(t, err)
	assert.InDelta(t, 200, inside.MaxProfit.Amount, 1e-9)
	assert.InDelta(t, -300, inside.MaxLoss.Amount, 1e-9)
	assert.InDelta(t, 0.7, inside.ProfitProbability, 1e-12)

	outside, err := Aggregate(legs, models.MarketSnapshot{CurrentPrice: 200, ImpliedVolatility: 0.2}, Options{})
	require.NoError(t, err)
	assert.InDelta(t, 0.3, outside.ProfitProbability, 1e-12)
}

func TestAggregate_UnlimitedDetection(t *testing.T) {
	snap := models.MarketSnapshot{CurrentPrice: 100, ImpliedVolatility: 0.3}

	strangle, err := Aggregate(build(t, "Short Strangle", strategy.Params{
		PutSellStrike: 90, CallSellStrike: 110, Premiums: []float64{1.5, 1.5},
	}), snap, Options{})
	require.NoError(t, err)
	assert.True(t, strangle.MaxLoss.IsUnlimited)
	assert.False(t, strangle.MaxProfit.IsUnlimited)
	assert.InDelta(t, 300, strangle.MaxProfit.Amount, 1e-9)

	straddle, err := Aggregate(build(t, "Long Straddle", strategy.Params{
		Center: 100, Premiums: []float64{3, 3},
	}), snap, Options{})
	require.NoError(t, err)
	assert.True(t, straddle.MaxProfit.IsUnlimited)
	assert.False(t, straddle.MaxLoss.IsUnlimited)
	assert.InDelta(t, -600, straddle.MaxLoss.Amount, 1e-9)
	assert.InDelta(t, 100, straddle.MaxLoss.AtPrice, 1e-9)
	// spot sits between the breakevens, where a long straddle loses
	assert.InDelta(t, 0.3, straddle.ProfitProbability, 1e-12)
}

func TestAggregate_LargeBoundedPayoffIsNotUnlimited(t *testing.T) {
	legs := build(t, "Bull Call Spread", strategy.Params{
		LongStrike: 100, ShortStrike: 400, Contracts: 10, Premiums: []float64{5, 1},
	})
	report, err := Aggregate(legs, models.MarketSnapshot{CurrentPrice: 100, ImpliedVolatility: 0.2}, Options{})
	require.NoError(t, err)
	assert.Greater(t, report.MaxProfit.Amount, 10000.0)
	assert.False(t, report.MaxProfit.IsUnlimited)
}

func TestAggregate_Errors(t *testing.T) {
	_, err := Aggregate(nil, models.MarketSnapshot{CurrentPrice: 100}, Options{})
	assert.ErrorIs(t, err, ErrNoLegs)

	legs := bullPutSpread(t)
	_, err = Aggregate(legs, models.MarketSnapshot{}, Options{})
	assert.ErrorIs(t, err, models.ErrInvalidSnapshot)

	legs[1].Quantity = 0
	_, err = Aggregate(legs, models.MarketSnapshot{CurrentPrice: 100}, Options{})
	assert.ErrorIs(t, err, models.ErrInvalidLeg)
}

func TestExpectedMove(t *testing.T) {
	assert.InDelta(t, 20, ExpectedMove(100, 0.2, 365), 1e-12)
	assert.Zero(t, ExpectedMove(100, 0.2, 0))
}

func TestCompare(t *testing.T) {
	defs := strategy.Definitions()
	snap := models.MarketSnapshot{CurrentPrice: 450, ImpliedVolatility: 0.2}

	results, err := Compare(context.Background(), defs, snap, 30, DefaultOptions)
	require.NoError(t, err)
	require.Len(t, results, len(defs))

	for i, res := range results {
		assert.Equal(t, defs[i].Kind, res.Definition.Kind)
		assert.NotEmpty(t, res.Report.Legs)
		assert.Len(t, res.Setup.Legs, len(res.Report.Legs))
		// legs are marked at their theoretical value
		assert.InDelta(t, 0, res.Report.TotalPnL, 1e-6, res.Definition.Name)
	}
}

func TestCompare_Errors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Compare(ctx, strategy.Definitions(), models.MarketSnapshot{CurrentPrice: 100}, 30, Options{})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = Compare(context.Background(), strategy.Definitions(), models.MarketSnapshot{}, 30, Options{})
	assert.ErrorIs(t, err, models.ErrInvalidSnapshot)
}
