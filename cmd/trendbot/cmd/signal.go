package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/trendbot/broker/oanda"
	"github.com/rustyeddy/trendbot/config"
	"github.com/rustyeddy/trendbot/indicators"
	"github.com/rustyeddy/trendbot/market"
)

var signalCmd = &cobra.Command{
	Use:   "signal",
	Short: "Evaluate the current signal without trading",
	Long: `Fetch candles, run the pivot supertrend and print the current trend
state and signal. No orders are placed.

Example:
  trendbot signal --config configs/trendbot.yaml --account practice`,
	RunE: runSignal,
}

var (
	signalConfigPath string
	signalAccount    string
)

func init() {
	rootCmd.AddCommand(signalCmd)

	signalCmd.Flags().StringVarP(&signalConfigPath, "config", "f", "", "path to config file (YAML) (required)")
	signalCmd.Flags().StringVarP(&signalAccount, "account", "a", "", "account name from the config (required)")
	signalCmd.MarkFlagRequired("config")
	signalCmd.MarkFlagRequired("account")
}

func runSignal(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(signalConfigPath, "")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	acct, err := cfg.SelectAccount(signalAccount)
	if err != nil {
		return err
	}

	gw := oanda.NewClient(acct.Token(), acct.AccountID, acct.Practice)
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	candles, err := gw.GetCandles(ctx, cfg.Trading.Instrument,
		market.Granularity(cfg.Trading.Granularity), cfg.Trading.LookbackCandles)
	if err != nil {
		return fmt.Errorf("fetch candles: %w", err)
	}
	if cfg.Trading.ClosedOnly {
		candles = market.ClosedOnly(candles)
	}

	ind := indicators.NewPivotSuperTrend(
		cfg.Trading.PivotPeriod, cfg.Trading.ATRPeriod, cfg.Trading.ATRFactor)
	res, err := ind.Compute(candles)
	if err != nil {
		return fmt.Errorf("compute: %w", err)
	}
	st, sig := res.Last()
	last := candles[len(candles)-1]

	fmt.Printf("%s %s @ %s\n", cfg.Trading.Instrument, cfg.Trading.Granularity,
		last.Time.Format(time.RFC3339))
	fmt.Printf("  Close:        %.5f\n", last.Close)
	fmt.Printf("  Signal:       %s\n", sig)
	fmt.Printf("  Trend:        %+d\n", st.Trend)
	fmt.Printf("  SuperTrend:   %.5f\n", st.SuperTrend)
	fmt.Printf("  TrailingUp:   %.5f\n", st.TrailingUp)
	fmt.Printf("  TrailingDown: %.5f\n", st.TrailingDown)
	fmt.Printf("  ATR:          %.5f\n", st.ATR)
	return nil
}
