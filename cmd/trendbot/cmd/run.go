package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/trendbot/bot"
	"github.com/rustyeddy/trendbot/broker/oanda"
	"github.com/rustyeddy/trendbot/config"
	"github.com/rustyeddy/trendbot/journal"
	"github.com/rustyeddy/trendbot/logging"
	"github.com/rustyeddy/trendbot/metrics"
	"github.com/rustyeddy/trendbot/state"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the live trading loop",
	Long: `Run the trading loop against the configured broker account until
interrupted. SIGINT and SIGTERM stop the loop cleanly; an open position is
left in place with its stop-loss and take-profit orders resting at the broker.

Example:
  trendbot run --config configs/trendbot.yaml --account practice`,
	RunE: runRun,
}

var (
	runConfigPath   string
	runOverridePath string
	runAccountName  string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to base config file (YAML) (required)")
	runCmd.Flags().StringVar(&runOverridePath, "override", "", "optional per-account override file (YAML)")
	runCmd.Flags().StringVarP(&runAccountName, "account", "a", "", "account name from the config (required)")
	runCmd.MarkFlagRequired("config")
	runCmd.MarkFlagRequired("account")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(runConfigPath, runOverridePath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	acct, err := cfg.SelectAccount(runAccountName)
	if err != nil {
		return err
	}

	name := fmt.Sprintf("%s.%s", cfg.Trading.Instrument, cfg.Trading.Granularity)
	log, err := logging.New(cfg.Logging, name)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync()

	gw := oanda.NewClient(acct.Token(), acct.AccountID, acct.Practice)

	store, err := state.NewSQLite(cfg.State.DBPath)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	defer store.Close()

	jrnl, err := openJournal(cfg.Journal)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer jrnl.Close()

	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(cfg.Metrics.Listen); err != nil {
				log.Errorw("metrics server stopped", "error", err)
			}
		}()
	}

	b, err := bot.New(cfg, acct.AccountID, gw, store, jrnl, log)
	if err != nil {
		return fmt.Errorf("build bot: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := b.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func openJournal(cfg config.Journal) (journal.Journal, error) {
	switch cfg.Type {
	case "csv":
		return journal.NewCSV(cfg.Path)
	case "sqlite":
		return journal.NewSQLite(cfg.Path)
	default:
		return journal.Nop{}, nil
	}
}
