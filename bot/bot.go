// Package bot wires the signal engine, risk calculations and broker gateway
// into the polling trade loop. One Bot instance trades one instrument on one
// timeframe against one account.
package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/trendbot/broker"
	"github.com/rustyeddy/trendbot/config"
	"github.com/rustyeddy/trendbot/indicators"
	"github.com/rustyeddy/trendbot/journal"
	"github.com/rustyeddy/trendbot/market"
	"github.com/rustyeddy/trendbot/metrics"
	"github.com/rustyeddy/trendbot/signal"
	"github.com/rustyeddy/trendbot/state"
)

// Bot owns all cross-cycle state: the tracked position, the cached market
// trend and the signal tracker. It is not safe for concurrent EvaluateCycle
// calls; Run serializes them and Status may be read from other goroutines.
type Bot struct {
	cfg  *config.Config
	meta market.InstrumentMeta
	gw   broker.Gateway
	st   state.Store
	jrnl journal.Journal
	log  *zap.SugaredLogger

	retry    broker.RetryPolicy
	stateKey state.Key
	tracker  signal.Tracker
	ind      *indicators.PivotSuperTrend

	// now is swapped in tests to control time.
	now func() time.Time

	mu       sync.Mutex
	pos      *position
	trend    signal.MarketTrend
	trendAt  time.Time
	lastSig  signal.Signal
	lastEval time.Time
}

// position is the bot's view of its open trade. The broker snapshot from
// reconciliation is authoritative for order ids and unrealized P/L.
type position struct {
	TradeID     string
	Side        signal.Side
	Units       float64
	EntryPrice  float64
	StopLoss    float64
	TakeProfit  float64
	StopOrderID string
	TPOrderID   string
	TargetRR    float64
	RiskAmount  float64
	Trend       signal.MarketTrend
	OpenTime    time.Time
	JournalID   string

	// TPCorrected marks the one-shot post-fill take-profit correction done,
	// whether or not it resulted in a broker update.
	TPCorrected bool

	HighestPL float64
	LowestPL  float64
}

// New builds a bot from config and its collaborators. It restores persisted
// signal state so a restart cannot re-trade the last signal candle.
func New(cfg *config.Config, accountID string, gw broker.Gateway, st state.Store, jrnl journal.Journal, log *zap.SugaredLogger) (*Bot, error) {
	meta, err := market.Lookup(cfg.Trading.Instrument)
	if err != nil {
		return nil, err
	}
	if jrnl == nil {
		jrnl = journal.Nop{}
	}

	b := &Bot{
		cfg:  cfg,
		meta: meta,
		gw:   gw,
		st:   st,
		jrnl: jrnl,
		log:  log,
		retry: broker.RetryPolicy{
			Attempts: cfg.API.MaxRetries,
			Delay:    cfg.API.RetryDelay(),
		},
		stateKey: state.Key{
			AccountID:  accountID,
			Instrument: cfg.Trading.Instrument,
			Timeframe:  cfg.Trading.Granularity,
		},
		tracker: signal.Tracker{
			FilterCounterTrend: cfg.Signals.FilterCounterTrend,
			MaxSignalAge:       cfg.Signals.MaxSignalAge(),
		},
		ind: indicators.NewPivotSuperTrend(
			cfg.Trading.PivotPeriod, cfg.Trading.ATRPeriod, cfg.Trading.ATRFactor),
		now: time.Now,
	}

	rec, ok, err := st.Get(b.stateKey)
	if err != nil {
		return nil, fmt.Errorf("restore signal state: %w", err)
	}
	if ok {
		b.tracker.Restore(rec.LastTradedSignal)
		log.Infow("restored signal state", "last_traded", rec.LastTradedSignal)
	}
	return b, nil
}

// Run polls EvaluateCycle every check interval until ctx is cancelled.
// Cycle errors are logged and the loop continues; only ctx ends it.
func (b *Bot) Run(ctx context.Context) error {
	interval := b.cfg.Trading.CheckInterval()
	b.log.Infow("bot started",
		"instrument", b.cfg.Trading.Instrument,
		"granularity", b.cfg.Trading.Granularity,
		"interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := b.EvaluateCycle(ctx); err != nil {
			metrics.CycleErrors.Inc()
			b.log.Errorw("cycle failed", "error", err)
		}
		select {
		case <-ctx.Done():
			b.log.Infow("bot stopping", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Status is a point-in-time snapshot for the CLI and logs.
type Status struct {
	Instrument  string
	Granularity string
	MarketTrend signal.MarketTrend
	LastSignal  signal.Signal
	LastEval    time.Time
	LastTraded  time.Time
	HasPosition bool
	TradeID     string
	Side        signal.Side
	Units       float64
	EntryPrice  float64
	StopLoss    float64
	TakeProfit  float64
}

func (b *Bot) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := Status{
		Instrument:  b.cfg.Trading.Instrument,
		Granularity: b.cfg.Trading.Granularity,
		MarketTrend: b.trend,
		LastSignal:  b.lastSig,
		LastEval:    b.lastEval,
		LastTraded:  b.tracker.LastTraded(),
	}
	if b.pos != nil {
		s.HasPosition = true
		s.TradeID = b.pos.TradeID
		s.Side = b.pos.Side
		s.Units = b.pos.Units
		s.EntryPrice = b.pos.EntryPrice
		s.StopLoss = b.pos.StopLoss
		s.TakeProfit = b.pos.TakeProfit
	}
	return s
}

// pip converts a pip count to a price delta for this instrument.
func (b *Bot) pip(pips float64) float64 {
	return pips * b.meta.PipSize()
}

func (b *Bot) side() signal.Side {
	if b.pos == nil {
		return signal.Flat
	}
	return b.pos.Side
}
