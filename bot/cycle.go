package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/trendbot/broker"
	"github.com/rustyeddy/trendbot/indicators"
	"github.com/rustyeddy/trendbot/market"
	"github.com/rustyeddy/trendbot/metrics"
	"github.com/rustyeddy/trendbot/signal"
)

// EvaluateCycle runs one full decision cycle: refresh the market trend,
// recompute signals from the candle series, reconcile the tracked position
// against the broker, decide and execute. Insufficient candle history is
// "no signal", not an error.
func (b *Bot) EvaluateCycle(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	metrics.CyclesTotal.Inc()
	now := b.now()
	b.lastEval = now

	b.refreshMarketTrend(ctx, now)

	candles, err := b.fetchCandles(ctx, market.Granularity(b.cfg.Trading.Granularity), b.cfg.Trading.LookbackCandles)
	if err != nil {
		return fmt.Errorf("fetch candles: %w", err)
	}
	if b.cfg.Trading.ClosedOnly {
		candles = market.ClosedOnly(candles)
	}

	res, err := b.ind.Compute(candles)
	if err != nil {
		if errors.Is(err, indicators.ErrInsufficientData) {
			b.log.Debugw("not enough candles for a signal", "have", len(candles))
			return nil
		}
		return fmt.Errorf("compute signals: %w", err)
	}
	st, sig := res.Last()
	candleTime := candles[len(candles)-1].Time
	b.lastSig = sig

	trade, err := b.reconcile(ctx)
	if err != nil {
		return fmt.Errorf("reconcile position: %w", err)
	}

	tick, err := b.fetchTick(ctx)
	if err != nil {
		return fmt.Errorf("fetch tick: %w", err)
	}

	action, skip := b.tracker.Decide(now, sig, candleTime, b.trend, b.side())
	if sig.Actual() {
		b.log.Infow("signal",
			"signal", sig, "candle", candleTime,
			"market_trend", b.trend, "side", b.side(),
			"action", action, "skip", skip)
	}
	if skip != signal.SkipNone {
		metrics.SignalsSkipped.WithLabelValues(string(skip)).Inc()
	}

	switch action {
	case signal.ActionOpenLong:
		return b.open(ctx, signal.Long, st, tick, candleTime, sig)
	case signal.ActionOpenShort:
		return b.open(ctx, signal.Short, st, tick, candleTime, sig)

	case signal.ActionCloseThenOpenLong, signal.ActionCloseThenOpenShort:
		// The open is skipped when the close fails: never risk holding the
		// old position while a new opposite one is live.
		if err := b.close(ctx, "signal reversal"); err != nil {
			return fmt.Errorf("close before reversal: %w", err)
		}
		next := signal.Long
		if action == signal.ActionCloseThenOpenShort {
			next = signal.Short
		}
		return b.open(ctx, next, st, tick, candleTime, sig)

	case signal.ActionCloseOnly:
		if err := b.close(ctx, "counter-trend reversal"); err != nil {
			return err
		}
		b.tracker.MarkTraded(candleTime, sig)
		if err := b.st.Put(b.stateKey, candleTime); err != nil {
			b.log.Errorw("persist signal state", "error", err)
		}
		return nil
	}

	if b.pos != nil {
		b.maintain(ctx, st, tick, trade)
	}
	return nil
}

// fetchCandles wraps GetCandles in the retry policy.
func (b *Bot) fetchCandles(ctx context.Context, g market.Granularity, count int) ([]market.Candle, error) {
	var candles []market.Candle
	err := b.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		candles, err = b.gw.GetCandles(ctx, b.cfg.Trading.Instrument, g, count)
		return err
	})
	return candles, err
}

func (b *Bot) fetchTick(ctx context.Context) (market.Tick, error) {
	var tick market.Tick
	err := b.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		tick, err = b.gw.GetTick(ctx, b.cfg.Trading.Instrument)
		return err
	})
	return tick, err
}

// refreshMarketTrend classifies the higher timeframe when the cached value
// is stale. Failures keep the cached classification; a bot that has never
// classified stays NEUTRAL, which risk tables treat as the middle ground.
func (b *Bot) refreshMarketTrend(ctx context.Context, now time.Time) {
	if !b.trendAt.IsZero() && now.Sub(b.trendAt) < b.cfg.Market.CheckInterval() {
		return
	}

	candles, err := b.fetchCandles(ctx, market.Granularity(b.cfg.Market.Timeframe), b.cfg.Market.Candles)
	if err != nil {
		b.log.Warnw("market trend refresh failed, keeping cached",
			"cached", b.trend, "error", err)
		return
	}
	res, err := b.ind.Compute(market.ClosedOnly(candles))
	if err != nil {
		b.log.Warnw("market trend compute failed, keeping cached",
			"cached", b.trend, "error", err)
		return
	}
	_, sig := res.Last()

	prev := b.trend
	switch sig {
	case signal.Buy, signal.HoldLong:
		b.trend = signal.Bull
	case signal.Sell, signal.HoldShort:
		b.trend = signal.Bear
	default:
		b.trend = signal.Neutral
	}
	b.trendAt = now
	if b.trend != prev {
		b.log.Infow("market trend changed", "from", prev, "to", b.trend,
			"timeframe", b.cfg.Market.Timeframe)
	}
}

// reconcile syncs the tracked position with the broker's open trades. It
// detects external closures (stop, take-profit, manual) and recovers an
// untracked open trade after a restart. The returned trade is the broker
// snapshot for the tracked position, nil when flat.
func (b *Bot) reconcile(ctx context.Context) (*broker.Trade, error) {
	var trades []broker.Trade
	err := b.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		trades, err = b.gw.GetOpenTrades(ctx, b.cfg.Trading.Instrument)
		return err
	})
	if err != nil {
		return nil, err
	}

	if b.pos == nil {
		if len(trades) == 0 {
			return nil, nil
		}
		b.adopt(trades[0])
		return &trades[0], nil
	}

	for i := range trades {
		if trades[i].ID == b.pos.TradeID {
			t := &trades[i]
			// Order ids are refreshed on every cycle: any broker-side
			// modification replaces them.
			b.pos.StopOrderID = t.StopLossOrderID
			b.pos.TPOrderID = t.TakeProfitOrderID
			if t.StopLossPrice != 0 {
				b.pos.StopLoss = t.StopLossPrice
			}
			if t.TakeProfitPrice != 0 {
				b.pos.TakeProfit = t.TakeProfitPrice
			}
			if t.UnrealizedPL > b.pos.HighestPL {
				b.pos.HighestPL = t.UnrealizedPL
			}
			if t.UnrealizedPL < b.pos.LowestPL {
				b.pos.LowestPL = t.UnrealizedPL
			}
			return t, nil
		}
	}

	// The trade is gone: stop, take-profit or a manual close hit while we
	// were not looking. Record it and free the tracker for the next signal.
	b.log.Infow("position closed externally", "trade_id", b.pos.TradeID,
		"highest_pl", b.pos.HighestPL, "lowest_pl", b.pos.LowestPL)
	metrics.PositionsClosed.WithLabelValues("external").Inc()
	b.journalClose(journalCloseArgs{reason: "EXTERNAL"})
	b.pos = nil
	b.tracker.ClearTraded()
	if err := b.st.Clear(b.stateKey); err != nil {
		b.log.Errorw("clear signal state", "error", err)
	}
	return nil, nil
}

// adopt takes over an open trade found at the broker with no local record,
// typically after a restart. Risk amount is unknown and the take-profit
// correction is considered done; trailing resumes normally.
func (b *Bot) adopt(t broker.Trade) {
	side := signal.Long
	if t.Units < 0 {
		side = signal.Short
	}
	b.pos = &position{
		TradeID:     t.ID,
		Side:        side,
		Units:       t.Units,
		EntryPrice:  t.EntryPrice,
		StopLoss:    t.StopLossPrice,
		TakeProfit:  t.TakeProfitPrice,
		StopOrderID: t.StopLossOrderID,
		TPOrderID:   t.TakeProfitOrderID,
		Trend:       b.trend,
		OpenTime:    t.OpenTime,
		TPCorrected: true,
	}
	b.log.Infow("adopted open trade", "trade_id", t.ID, "side", side,
		"units", t.Units, "entry", t.EntryPrice)
}
