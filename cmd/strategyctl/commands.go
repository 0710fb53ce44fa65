package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/eddiefleurent/strategy_lab/internal/analysis"
	"github.com/eddiefleurent/strategy_lab/internal/marketdata"
	"github.com/eddiefleurent/strategy_lab/internal/models"
	"github.com/eddiefleurent/strategy_lab/internal/pnl"
	"github.com/eddiefleurent/strategy_lab/internal/pricing"
	"github.com/eddiefleurent/strategy_lab/internal/strategy"
	"github.com/eddiefleurent/strategy_lab/internal/validation"
)

const quoteTimeout = 30 * time.Second

func newPriceCmd(app *App) *cobra.Command {
	var (
		spot, strike, rate, vol float64
		days                    int
		kind                    string
	)
	cmd := &cobra.Command{
		Use:   "price",
		Short: "Price an option with Black-Scholes",
		Example: `  strategyctl price --spot 100 --strike 105 --days 30 --vol 0.2 --kind call
  strategyctl price --spot 450 --strike 440 --days 45 --kind put --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if !cmd.Flags().Changed("rate") {
				rate = app.Config.Pricing.Rate()
			}
			if !cmd.Flags().Changed("vol") {
				vol = app.Config.Pricing.DefaultVolatility
			}
			res, err := pricing.PriceOption(spot, strike, days, rate, vol, models.OptionKind(strings.ToLower(kind)))
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(res)
			}

			table := NewTable(output, "Price", "Delta", "Gamma", "Theta", "Vega", "Intrinsic", "Time Value")
			table.AddRow(
				fmt.Sprintf("%.4f", res.Price), fmt.Sprintf("%.4f", res.Delta), fmt.Sprintf("%.4f", res.Gamma),
				fmt.Sprintf("%.4f", res.Theta), fmt.Sprintf("%.4f", res.Vega),
				fmt.Sprintf("%.4f", res.IntrinsicValue), fmt.Sprintf("%.4f", res.TimeValue),
			)
			table.Render()
			return nil
		},
	}
	cmd.Flags().Float64Var(&spot, "spot", 0, "underlying price")
	cmd.Flags().Float64Var(&strike, "strike", 0, "strike price")
	cmd.Flags().IntVar(&days, "days", strategy.DefaultDaysToExpiry, "calendar days to expiry")
	cmd.Flags().Float64Var(&rate, "rate", 0, "annual risk free rate (default from config)")
	cmd.Flags().Float64Var(&vol, "vol", 0, "annual volatility as a decimal (default from config)")
	cmd.Flags().StringVar(&kind, "kind", "call", "call or put")
	_ = cmd.MarkFlagRequired("spot")
	_ = cmd.MarkFlagRequired("strike")
	return cmd
}

func newIVCmd(app *App) *cobra.Command {
	var (
		price, spot, strike, rate float64
		days                      int
		kind                      string
	)
	cmd := &cobra.Command{
		Use:     "iv",
		Short:   "Solve the implied volatility of an option price",
		Example: `  strategyctl iv --price 2.15 --spot 100 --strike 105 --days 30 --kind call`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if !cmd.Flags().Changed("rate") {
				rate = app.Config.Pricing.Rate()
			}
			res, err := pricing.ImpliedVolatility(price, spot, strike, float64(days)/365, rate,
				models.OptionKind(strings.ToLower(kind)))
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(res)
			}
			output.Printf("Implied volatility: %.2f%% (%d iterations, converged: %t)\n",
				res.Volatility*100, res.Iterations, res.Converged)
			return nil
		},
	}
	cmd.Flags().Float64Var(&price, "price", 0, "observed option price")
	cmd.Flags().Float64Var(&spot, "spot", 0, "underlying price")
	cmd.Flags().Float64Var(&strike, "strike", 0, "strike price")
	cmd.Flags().IntVar(&days, "days", strategy.DefaultDaysToExpiry, "calendar days to expiry")
	cmd.Flags().Float64Var(&rate, "rate", 0, "annual risk free rate (default from config)")
	cmd.Flags().StringVar(&kind, "kind", "call", "call or put")
	_ = cmd.MarkFlagRequired("price")
	_ = cmd.MarkFlagRequired("spot")
	_ = cmd.MarkFlagRequired("strike")
	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the supported strategies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			defs := strategy.Definitions()
			if output.IsJSON() {
				return output.JSON(defs)
			}
			table := NewTable(output, "Kind", "Name", "Bias", "Risk", "Win Rate")
			for _, d := range defs {
				table.AddRow(string(d.Kind), d.Name, string(d.MarketBias), string(d.RiskLevel),
					fmt.Sprintf("%.0f%%", d.HistoricalWinRate))
			}
			table.Render()
			return nil
		},
	}
}

// addParamFlags binds the strike and sizing flags shared by build and analyze.
func addParamFlags(cmd *cobra.Command, p *strategy.Params) {
	f := cmd.Flags()
	f.Float64Var(&p.LongStrike, "long", 0, "long strike of a vertical spread")
	f.Float64Var(&p.ShortStrike, "short", 0, "short strike of a vertical spread")
	f.Float64Var(&p.PutBuyStrike, "put-buy", 0, "bought put strike")
	f.Float64Var(&p.PutSellStrike, "put-sell", 0, "sold put strike")
	f.Float64Var(&p.CallSellStrike, "call-sell", 0, "sold call strike")
	f.Float64Var(&p.CallBuyStrike, "call-buy", 0, "bought call strike")
	f.Float64Var(&p.LowerWing, "lower", 0, "lower wing strike")
	f.Float64Var(&p.Center, "center", 0, "center strike")
	f.Float64Var(&p.UpperWing, "upper", 0, "upper wing strike")
	f.IntVar(&p.Contracts, "contracts", strategy.DefaultContracts, "contracts per leg")
	f.IntVar(&p.DaysToExpiry, "days", strategy.DefaultDaysToExpiry, "calendar days to expiry")
	f.StringVar(&p.Expiry, "expiry", "", "expiry label shown in the trade setup")
	f.Float64SliceVar(&p.Premiums, "premiums", nil, "per-share entry prices in leg order")
}

func newBuildCmd() *cobra.Command {
	var params strategy.Params
	cmd := &cobra.Command{
		Use:   "build <strategy>",
		Short: "Generate the legs and trade setup of a strategy",
		Example: `  strategyctl build "bull put spread" --short 180 --long 175
  strategyctl build iron_condor --put-buy 165 --put-sell 170 --call-sell 185 --call-buy 190`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			built, err := strategy.BuildStrategy(args[0], params)
			if err != nil {
				return err
			}
			report := validation.ValidateBuilt(built)
			if output.IsJSON() {
				return output.JSON(struct {
					strategy.Built
					Validation validation.Report `json:"validation"`
				}{built, report})
			}

			output.Printf("%s (%s, %s risk)\n", built.Definition.Name, built.Definition.MarketBias, built.Definition.RiskLevel)
			output.Printf("Action:    %s\n", built.Setup.Action)
			output.Printf("Expiry:    %s\n", built.Setup.Expiry)
			output.Printf("Contracts: %d\n", built.Setup.Contracts)
			printLegs(output, built.Legs)
			printValidation(output, report)
			return nil
		},
	}
	addParamFlags(cmd, &params)
	return cmd
}

func newAnalyzeCmd(app *App) *cobra.Command {
	var (
		params    strategy.Params
		spot, vol float64
		symbol    string
		mark      bool
	)
	cmd := &cobra.Command{
		Use:   "analyze <strategy>",
		Short: "Aggregate P&L, Greeks and expiry risk of a strategy",
		Example: `  strategyctl analyze "bull put spread" --short 180 --long 175 --premiums 3.5,1 --spot 185
  strategyctl analyze long_straddle --center 450 --mark --symbol SPY`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			legs, err := strategy.GenerateLegs(args[0], params)
			if err != nil {
				return err
			}
			snap, err := app.snapshot(cmd.Context(), spot, vol, symbol)
			if err != nil {
				return err
			}
			if mark {
				if legs, err = pnl.MarkEntries(legs, snap); err != nil {
					return err
				}
			}
			report, err := analysis.Aggregate(legs, snap, app.Config.AnalysisOptions())
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(report)
			}
			printReport(output, snap, report)
			return nil
		},
	}
	addParamFlags(cmd, &params)
	cmd.Flags().Float64Var(&spot, "spot", 0, "underlying price (default: live quote)")
	cmd.Flags().Float64Var(&vol, "vol", 0, "implied volatility as a decimal")
	cmd.Flags().StringVar(&symbol, "symbol", "", "underlying to quote when --spot is not set")
	cmd.Flags().BoolVar(&mark, "mark", false, "use model prices as entry prices")
	return cmd
}

func newValidateCmd() *cobra.Command {
	var (
		action string
		legs   []string
	)
	cmd := &cobra.Command{
		Use:   "validate <strategy>",
		Short: "Check a trade setup against its strategy",
		Example: `  strategyctl validate "bull put spread" --action "Sell 180 Put / Buy 175 Put"
  strategyctl validate iron_condor --leg "SELL 170 PUT" --leg "BUY 165 PUT" --leg "SELL 185 CALL" --leg "BUY 190 CALL"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			def, err := strategy.Lookup(args[0])
			if err != nil {
				return err
			}
			if len(legs) == 0 {
				legs = legsFromAction(action)
			}
			report := validation.Validate(def, strategy.TradeSetup{Strategy: def.Name, Action: action, Legs: legs})
			if output.IsJSON() {
				if err := output.JSON(report); err != nil {
					return err
				}
			} else {
				printValidation(output, report)
			}
			if !report.IsValid {
				return fmt.Errorf("%s setup is inconsistent (%d errors)", def.Name, len(report.Errors))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&action, "action", "", "trade action text")
	cmd.Flags().StringArrayVar(&legs, "leg", nil, "leg line, repeatable (default: the action split on '/')")
	return cmd
}

func newCompareCmd(app *App) *cobra.Command {
	var (
		spot, vol float64
		days      int
		symbol    string
	)
	cmd := &cobra.Command{
		Use:     "compare",
		Short:   "Build and analyze every strategy around the current price",
		Example: `  strategyctl compare --spot 450 --vol 0.18 --days 45`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			snap, err := app.snapshot(cmd.Context(), spot, vol, symbol)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("days") {
				days = app.Config.Analysis.DaysToExpiry
			}
			results, err := analysis.Compare(cmd.Context(), strategy.Definitions(), snap, days, app.Config.AnalysisOptions())
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(results)
			}

			table := NewTable(output, "Strategy", "Setup", "Net Premium", "Max Profit", "Max Loss", "P(Profit)")
			for _, r := range results {
				table.AddRow(r.Definition.Name, r.Setup.Action, money(r.Report.NetPremium),
					extreme(r.Report.MaxProfit), extreme(r.Report.MaxLoss),
					fmt.Sprintf("%.0f%%", r.Report.ProfitProbability*100))
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().Float64Var(&spot, "spot", 0, "underlying price (default: live quote)")
	cmd.Flags().Float64Var(&vol, "vol", 0, "implied volatility as a decimal")
	cmd.Flags().IntVar(&days, "days", 0, "calendar days to expiry (default from config)")
	cmd.Flags().StringVar(&symbol, "symbol", "", "underlying to quote when --spot is not set")
	return cmd
}

func newQuoteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "quote <symbol>",
		Short: "Fetch a quote through the configured sources",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			quotes, err := app.quotes()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), quoteTimeout)
			defer cancel()
			q, err := quotes.GetQuote(ctx, args[0])
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(q)
			}
			table := NewTable(output, "Symbol", "Last", "Bid", "Ask", "IV", "Source")
			table.AddRow(q.Symbol, fmt.Sprintf("%.2f", q.Last), fmt.Sprintf("%.2f", q.Bid),
				fmt.Sprintf("%.2f", q.Ask), fmt.Sprintf("%.1f%%", q.ImpliedVolatility*100), q.Source)
			table.Render()
			return nil
		},
	}
}

// snapshot uses spot when given, otherwise a live quote of symbol.
func (a *App) snapshot(ctx context.Context, spot, vol float64, symbol string) (models.MarketSnapshot, error) {
	snap := models.MarketSnapshot{
		CurrentPrice:      spot,
		ImpliedVolatility: vol,
		RiskFreeRate:      models.Float64(a.Config.Pricing.Rate()),
	}
	if spot == 0 {
		quotes, err := a.quotes()
		if err != nil {
			return models.MarketSnapshot{}, err
		}
		if symbol == "" {
			symbol = a.Config.MarketData.Symbol
		}
		ctx, cancel := context.WithTimeout(ctx, quoteTimeout)
		defer cancel()
		q, err := quotes.GetQuote(ctx, symbol)
		if err != nil {
			return models.MarketSnapshot{}, err
		}
		live, err := marketdata.Snapshot(q, a.Config.Pricing.Rate(), a.Config.Pricing.DefaultVolatility)
		if err != nil {
			return models.MarketSnapshot{}, err
		}
		snap.CurrentPrice = live.CurrentPrice
		if snap.ImpliedVolatility == 0 {
			snap.ImpliedVolatility = live.ImpliedVolatility
		}
	}
	if snap.ImpliedVolatility == 0 {
		snap.ImpliedVolatility = a.Config.Pricing.DefaultVolatility
	}
	return snap.WithDefaults(), nil
}

// legsFromAction splits "Sell 180 Put / Buy 175 Put" into leg lines.
func legsFromAction(action string) []string {
	var legs []string
	for _, part := range strings.Split(action, "/") {
		if part = strings.TrimSpace(part); part != "" {
			legs = append(legs, strings.ToUpper(part))
		}
	}
	return legs
}

func printLegs(output *Output, legs []models.StrategyLeg) {
	table := NewTable(output, "Action", "Type", "Strike", "Qty", "DTE", "Entry")
	for _, l := range legs {
		table.AddRow(l.Action.Title(), l.OptionKind.Title(), models.FormatStrike(l.Strike),
			fmt.Sprint(l.Quantity), fmt.Sprint(l.DaysToExpiry), fmt.Sprintf("%.2f", l.EntryPrice))
	}
	table.Render()
}

func printValidation(output *Output, report validation.Report) {
	if report.IsValid {
		output.Printf("Validation: OK\n")
		return
	}
	output.Printf("Validation: FAILED (%s)\n", report.HighestSeverity())
	for _, e := range report.Errors {
		output.Printf("  [%s] %s: %s\n", e.Severity, e.Kind, e.Message)
	}
	for _, r := range report.Recommendations {
		output.Printf("  -> %s\n", r)
	}
}

func extreme(e analysis.Extreme) string {
	if e.IsUnlimited {
		return "unlimited"
	}
	return money(e.Amount)
}

func printReport(output *Output, snap models.MarketSnapshot, r analysis.Report) {
	output.Printf("Spot %.2f, IV %.1f%%, expected move +/-%.2f\n",
		snap.CurrentPrice, snap.ImpliedVolatility*100, r.ExpectedMove)

	table := NewTable(output, "Leg", "Entry", "Value", "P&L", "Delta", "Theta")
	for _, l := range r.Legs {
		table.AddRow(l.Leg.String(), fmt.Sprintf("%.2f", l.Leg.EntryPrice), fmt.Sprintf("%.2f", l.CurrentValue),
			money(l.TotalPnL), fmt.Sprintf("%.2f", l.Greeks.Delta), fmt.Sprintf("%.2f", l.Greeks.Theta))
	}
	table.Render()

	breakevens := make([]string, len(r.Breakevens))
	for i, b := range r.Breakevens {
		breakevens[i] = fmt.Sprintf("%.2f", b)
	}
	output.Printf("Net premium:  %s\n", money(r.NetPremium))
	output.Printf("Current P&L:  %s\n", money(r.TotalPnL))
	output.Printf("Max profit:   %s\n", extreme(r.MaxProfit))
	output.Printf("Max loss:     %s\n", extreme(r.MaxLoss))
	output.Printf("Breakevens:   %s\n", strings.Join(breakevens, ", "))
	output.Printf("P(profit):    %.0f%%\n", r.ProfitProbability*100)
	output.Printf("Greeks:       delta %.2f gamma %.4f theta %.2f vega %.2f\n",
		r.Greeks.Delta, r.Greeks.Gamma, r.Greeks.Theta, r.Greeks.Vega)
}
