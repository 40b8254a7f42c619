package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "trendbot",
	Short: "A market-trend-aware pivot supertrend trading bot for OANDA",
	Long: `Trendbot trades a single FX instrument on OANDA using the Pivot Point
SuperTrend indicator, with position sizing and reward targets biased by the
higher-timeframe market trend.

It provides commands for:
  - Running the live trading loop against a practice or live account
  - Evaluating the current signal without trading
  - Inspecting account and configuration state`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
