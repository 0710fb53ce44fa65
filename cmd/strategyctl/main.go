// Command strategyctl prices options and builds, analyzes and validates
// multi-leg strategies from the command line.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/eddiefleurent/strategy_lab/internal/config"
	"github.com/eddiefleurent/strategy_lab/internal/marketdata"
)

// App holds what the commands share.
type App struct {
	Config *config.Config
	Logger *logrus.Logger
	Quotes marketdata.Provider
}

func main() {
	if err := NewRootCmd(os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// NewRootCmd creates the root command. Logs go to logOut.
func NewRootCmd(logOut io.Writer) *cobra.Command {
	logger := logrus.New()
	logger.SetOutput(logOut)
	logger.SetLevel(logrus.WarnLevel)
	app := &App{Config: config.Default(), Logger: logger}

	rootCmd := &cobra.Command{
		Use:   "strategyctl",
		Short: "Options strategy pricing and analysis",
		Long: `strategyctl prices options with Black-Scholes, builds multi-leg strategies,
analyzes their P&L at expiry and checks trade setups for consistency.

Commands that need a spot price take --spot, or fetch a quote through the
market data sources in --config.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				logger.SetLevel(logrus.DebugLevel)
			}
			if path, _ := cmd.Flags().GetString("config"); path != "" {
				cfg, err := config.Load(path)
				if err != nil {
					return err
				}
				app.Config = cfg
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config file with pricing defaults and quote sources")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newPriceCmd(app))
	rootCmd.AddCommand(newIVCmd(app))
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newBuildCmd())
	rootCmd.AddCommand(newAnalyzeCmd(app))
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newCompareCmd(app))
	rootCmd.AddCommand(newQuoteCmd(app))

	return rootCmd
}

// quotes builds the configured quote chain on first use.
func (a *App) quotes() (marketdata.Provider, error) {
	if a.Quotes != nil {
		return a.Quotes, nil
	}
	p, err := marketdata.FromConfig(a.Config.MarketData, a.Logger)
	if err != nil {
		return nil, err
	}
	a.Quotes = p
	return p, nil
}
