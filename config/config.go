// Package config loads the bot configuration from YAML with a two-level
// hierarchy: a base file provides defaults, an optional per-account file
// overrides individual fields.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/trendbot/market"
	"github.com/rustyeddy/trendbot/risk"
)

// Config is the complete bot configuration.
type Config struct {
	Accounts map[string]Account `yaml:"accounts"`
	Trading  Trading            `yaml:"trading"`
	Market   MarketTrend        `yaml:"market"`
	Risk     Risk               `yaml:"risk"`
	StopLoss StopLoss           `yaml:"stoploss"`
	Signals  Signals            `yaml:"signals"`
	API      API                `yaml:"api"`
	Journal  Journal            `yaml:"journal"`
	State    State              `yaml:"state"`
	Logging  Logging            `yaml:"logging"`
	Metrics  Metrics            `yaml:"metrics"`
}

// Account holds broker credentials. The API key may also come from the
// environment variable named in APIKeyEnv, which wins over the literal.
type Account struct {
	APIKey    string `yaml:"api_key"`
	APIKeyEnv string `yaml:"api_key_env"`
	AccountID string `yaml:"account_id"`
	Practice  bool   `yaml:"practice"`
}

// Token resolves the API key for this account.
func (a Account) Token() string {
	if a.APIKeyEnv != "" {
		if v := os.Getenv(a.APIKeyEnv); v != "" {
			return v
		}
	}
	return a.APIKey
}

type Trading struct {
	Instrument      string  `yaml:"instrument"`
	Granularity     string  `yaml:"granularity"`
	LookbackCandles int     `yaml:"lookback_candles"`
	CheckIntervalS  int     `yaml:"check_interval"`
	ClosedOnly      bool    `yaml:"closed_only"`
	PivotPeriod     int     `yaml:"pivot_period"`
	ATRPeriod       int     `yaml:"atr_period"`
	ATRFactor       float64 `yaml:"atr_factor"`
}

func (t Trading) CheckInterval() time.Duration {
	return time.Duration(t.CheckIntervalS) * time.Second
}

// MarketTrend configures the higher-timeframe trend classification.
type MarketTrend struct {
	Timeframe      string `yaml:"timeframe"`
	Candles        int    `yaml:"candles"`
	CheckIntervalS int    `yaml:"check_interval"`
}

func (m MarketTrend) CheckInterval() time.Duration {
	return time.Duration(m.CheckIntervalS) * time.Second
}

type Risk struct {
	Amounts  risk.Table `yaml:"amounts"`
	Rewards  risk.Table `yaml:"risk_reward"`
	MinUnits float64    `yaml:"min_units"`
	MaxUnits float64    `yaml:"max_units"`

	// TPCorrectionTolerancePips bounds the one-shot post-fill take-profit
	// correction: deltas below this skip the broker update.
	TPCorrectionTolerancePips float64 `yaml:"tp_correction_tolerance_pips"`
}

type StopLoss struct {
	SpreadBufferPips float64 `yaml:"spread_buffer_pips"`
	TrailingEnabled  bool    `yaml:"trailing_enabled"`
	MinUpdatePips    float64 `yaml:"min_update_pips"`
	SafetyMarginPips float64 `yaml:"safety_margin_pips"`
}

type Signals struct {
	FilterCounterTrend bool `yaml:"filter_counter_trend"`
	MaxSignalAgeS      int  `yaml:"max_signal_age"`
}

func (s Signals) MaxSignalAge() time.Duration {
	return time.Duration(s.MaxSignalAgeS) * time.Second
}

type API struct {
	TimeoutS    int `yaml:"timeout"`
	MaxRetries  int `yaml:"max_retries"`
	RetryDelayS int `yaml:"retry_delay"`
}

func (a API) Timeout() time.Duration    { return time.Duration(a.TimeoutS) * time.Second }
func (a API) RetryDelay() time.Duration { return time.Duration(a.RetryDelayS) * time.Second }

type Journal struct {
	Type string `yaml:"type"` // "csv", "sqlite" or "none"
	Path string `yaml:"path"`
}

type State struct {
	DBPath string `yaml:"db_path"`
}

type Logging struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type Metrics struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// Default returns the stock configuration.
func Default() *Config {
	return &Config{
		Trading: Trading{
			Instrument:      "EUR_USD",
			Granularity:     "M15",
			LookbackCandles: 100,
			CheckIntervalS:  60,
			ClosedOnly:      false,
			PivotPeriod:     2,
			ATRPeriod:       10,
			ATRFactor:       3.0,
		},
		Market: MarketTrend{
			Timeframe:      "H3",
			Candles:        100,
			CheckIntervalS: 180,
		},
		Risk: Risk{
			Amounts:                   risk.DefaultAmounts(),
			Rewards:                   risk.DefaultRewards(),
			MinUnits:                  1000,
			MaxUnits:                  10_000_000,
			TPCorrectionTolerancePips: 0.5,
		},
		StopLoss: StopLoss{
			SpreadBufferPips: 3,
			TrailingEnabled:  true,
			MinUpdatePips:    1,
			SafetyMarginPips: 2,
		},
		Signals: Signals{
			FilterCounterTrend: true,
			MaxSignalAgeS:      180,
		},
		API: API{
			TimeoutS:    5,
			MaxRetries:  3,
			RetryDelayS: 1,
		},
		Journal: Journal{
			Type: "csv",
			Path: "trades.csv",
		},
		State: State{
			DBPath: "trendbot.db",
		},
		Logging: Logging{
			Level:      "info",
			File:       "",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// Load reads the base config file and, when overridePath names an existing
// file, merges the account-specific overrides on top. Fields absent from a
// file keep their prior values, so the override file only needs the keys it
// changes.
func Load(path, overridePath string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := mergeFile(cfg, path); err != nil {
			return nil, err
		}
	}
	if overridePath != "" {
		if _, err := os.Stat(overridePath); err == nil {
			if err := mergeFile(cfg, overridePath); err != nil {
				return nil, err
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate checks the configuration for values the bot cannot run with.
func (c *Config) Validate() error {
	if c.Trading.Instrument == "" {
		return fmt.Errorf("trading.instrument is required")
	}
	if _, err := market.Lookup(c.Trading.Instrument); err != nil {
		return err
	}
	if _, err := market.Granularity(c.Trading.Granularity).Seconds(); err != nil {
		return fmt.Errorf("trading.granularity: %w", err)
	}
	if _, err := market.Granularity(c.Market.Timeframe).Seconds(); err != nil {
		return fmt.Errorf("market.timeframe: %w", err)
	}
	if c.Trading.PivotPeriod <= 0 || c.Trading.ATRPeriod <= 0 || c.Trading.ATRFactor <= 0 {
		return fmt.Errorf("trading indicator parameters must be positive")
	}
	warmup := 2*c.Trading.PivotPeriod + c.Trading.ATRPeriod
	if c.Trading.LookbackCandles < warmup {
		return fmt.Errorf("trading.lookback_candles %d below indicator warmup %d",
			c.Trading.LookbackCandles, warmup)
	}
	if c.Trading.CheckIntervalS <= 0 {
		return fmt.Errorf("trading.check_interval must be positive")
	}
	if c.Risk.MinUnits <= 0 || c.Risk.MaxUnits < c.Risk.MinUnits {
		return fmt.Errorf("risk.min_units/max_units out of range")
	}
	if c.StopLoss.SpreadBufferPips < 0 || c.StopLoss.SafetyMarginPips < 0 {
		return fmt.Errorf("stoploss pips values must be non-negative")
	}
	switch c.Journal.Type {
	case "csv", "sqlite":
		if c.Journal.Path == "" {
			return fmt.Errorf("journal.path required for type %q", c.Journal.Type)
		}
	case "none", "":
	default:
		return fmt.Errorf("journal.type must be csv, sqlite or none")
	}
	if c.State.DBPath == "" {
		return fmt.Errorf("state.db_path is required")
	}
	return nil
}

// SelectAccount returns the named account or an error listing what exists.
func (c *Config) SelectAccount(name string) (Account, error) {
	acct, ok := c.Accounts[name]
	if !ok {
		names := make([]string, 0, len(c.Accounts))
		for n := range c.Accounts {
			names = append(names, n)
		}
		return Account{}, fmt.Errorf("account %q not found (have %v)", name, names)
	}
	if acct.Token() == "" {
		return Account{}, fmt.Errorf("account %q has no API key configured", name)
	}
	if acct.AccountID == "" {
		return Account{}, fmt.Errorf("account %q has no account_id", name)
	}
	return acct, nil
}
