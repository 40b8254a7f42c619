package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/trendbot/broker/oanda"
	"github.com/rustyeddy/trendbot/config"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Print the broker account summary and open trades",
	RunE:  runAccount,
}

var (
	accountConfigPath string
	accountName       string
)

func init() {
	rootCmd.AddCommand(accountCmd)

	accountCmd.Flags().StringVarP(&accountConfigPath, "config", "f", "", "path to config file (YAML) (required)")
	accountCmd.Flags().StringVarP(&accountName, "account", "a", "", "account name from the config (required)")
	accountCmd.MarkFlagRequired("config")
	accountCmd.MarkFlagRequired("account")
}

func runAccount(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(accountConfigPath, "")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	acct, err := cfg.SelectAccount(accountName)
	if err != nil {
		return err
	}

	gw := oanda.NewClient(acct.Token(), acct.AccountID, acct.Practice)
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	summary, err := gw.GetAccount(ctx)
	if err != nil {
		return fmt.Errorf("fetch account: %w", err)
	}
	fmt.Printf("Account %s (%s)\n", summary.ID, summary.Currency)
	fmt.Printf("  Balance:          %.2f\n", summary.Balance)
	fmt.Printf("  Equity:           %.2f\n", summary.Equity)
	fmt.Printf("  Margin Used:      %.2f\n", summary.MarginUsed)
	fmt.Printf("  Margin Available: %.2f\n", summary.MarginAvail)

	trades, err := gw.GetOpenTrades(ctx, cfg.Trading.Instrument)
	if err != nil {
		return fmt.Errorf("fetch open trades: %w", err)
	}
	if len(trades) == 0 {
		fmt.Printf("\nNo open %s trades.\n", cfg.Trading.Instrument)
		return nil
	}
	fmt.Printf("\nOpen %s trades:\n", cfg.Trading.Instrument)
	for _, t := range trades {
		fmt.Printf("  %s  units=%.0f entry=%.5f sl=%.5f tp=%.5f upl=%.2f\n",
			t.ID, t.Units, t.EntryPrice, t.StopLossPrice, t.TakeProfitPrice, t.UnrealizedPL)
	}
	return nil
}
