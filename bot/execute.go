package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/trendbot/broker"
	"github.com/rustyeddy/trendbot/indicators"
	"github.com/rustyeddy/trendbot/journal"
	"github.com/rustyeddy/trendbot/market"
	"github.com/rustyeddy/trendbot/metrics"
	"github.com/rustyeddy/trendbot/pkg/id"
	"github.com/rustyeddy/trendbot/risk"
	"github.com/rustyeddy/trendbot/signal"
)

// open sizes and submits a market order for the signal candle. Only a
// confirmed fill commits the tracker and the persisted signal state; any
// failure leaves both untouched so the signal retries next cycle.
func (b *Bot) open(ctx context.Context, side signal.Side, st indicators.TrendState, tick market.Tick, candleTime time.Time, sig signal.Signal) error {
	if b.pos != nil {
		b.log.Errorw("refusing to open a second position",
			"side", side, "tracked_trade", b.pos.TradeID)
		return fmt.Errorf("open %s: trade %s already tracked", side, b.pos.TradeID)
	}

	line := st.TrailingUp
	entry := tick.Ask
	if side == signal.Short {
		line = st.TrailingDown
		entry = tick.Bid
	}

	stop := risk.StopLoss(line, side, tick.Spread(), b.pip(b.cfg.StopLoss.SpreadBufferPips))
	if (side == signal.Long && stop >= entry) || (side == signal.Short && stop <= entry) {
		b.log.Warnw("stop on wrong side of entry, skipping",
			"side", side, "entry", entry, "stop", stop, "line", line)
		return nil
	}

	amount := b.cfg.Risk.Amounts.For(b.trend, side)
	rr := b.cfg.Risk.Rewards.For(b.trend, side)

	size, err := risk.Size(risk.SizeInputs{
		RiskAmount: amount,
		Entry:      entry,
		Stop:       stop,
		MinUnits:   b.cfg.Risk.MinUnits,
		MaxUnits:   b.cfg.Risk.MaxUnits,
	})
	if err != nil {
		return fmt.Errorf("size position: %w", err)
	}

	tp := risk.TakeProfit(entry, stop, side, rr)
	units := size.Units
	if side == signal.Short {
		units = -units
	}

	req := broker.OrderRequest{
		Instrument: b.cfg.Trading.Instrument,
		Units:      units,
		StopLoss:   &stop,
		TakeProfit: &tp,
	}

	var fill broker.OrderFill
	err = b.retry.Do(ctx, func(ctx context.Context) error {
		// Submission must not be torn mid-flight by loop shutdown: a
		// cancelled HTTP request can still have reached the broker.
		subCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.cfg.API.Timeout())
		defer cancel()
		var err error
		fill, err = b.gw.PlaceOrder(subCtx, req)
		return err
	})
	if err != nil {
		metrics.OrderFailures.Inc()
		return fmt.Errorf("place order: %w", err)
	}

	b.tracker.MarkTraded(candleTime, sig)
	if err := b.st.Put(b.stateKey, candleTime); err != nil {
		b.log.Errorw("persist signal state", "error", err)
	}

	b.pos = &position{
		TradeID:     fill.TradeID,
		Side:        side,
		Units:       fill.Units,
		EntryPrice:  fill.FillPrice,
		StopLoss:    stop,
		TakeProfit:  tp,
		StopOrderID: fill.StopLossOrderID,
		TPOrderID:   fill.TakeProfitOrderID,
		TargetRR:    rr,
		RiskAmount:  amount,
		Trend:       b.trend,
		OpenTime:    fill.Time,
		JournalID:   id.New(),
	}
	if fill.StopLossPrice != 0 {
		b.pos.StopLoss = fill.StopLossPrice
	}
	if fill.TakeProfitPrice != 0 {
		b.pos.TakeProfit = fill.TakeProfitPrice
	}

	metrics.OrdersPlaced.WithLabelValues(side.String()).Inc()
	b.log.Infow("position opened",
		"trade_id", fill.TradeID, "side", side, "units", fill.Units,
		"fill", fill.FillPrice, "stop", b.pos.StopLoss, "tp", b.pos.TakeProfit,
		"rr", rr, "risk", size.ActualRisk, "market_trend", b.trend)

	if err := b.jrnl.RecordOpen(journal.Entry{
		ID:          b.pos.JournalID,
		TradeID:     fill.TradeID,
		Instrument:  b.cfg.Trading.Instrument,
		Side:        side.String(),
		Units:       fill.Units,
		EntryPrice:  fill.FillPrice,
		StopLoss:    b.pos.StopLoss,
		TakeProfit:  b.pos.TakeProfit,
		MarketTrend: b.trend.String(),
		TargetRR:    rr,
		RiskAmount:  amount,
		OpenTime:    fill.Time,
	}); err != nil {
		b.log.Errorw("journal open", "error", err)
	}
	return nil
}

// close flattens the tracked position. On success the position record is
// dropped; the caller decides whether signal state is committed or cleared.
func (b *Bot) close(ctx context.Context, why string) error {
	if b.pos == nil {
		return nil
	}

	var result broker.CloseResult
	err := b.retry.Do(ctx, func(ctx context.Context) error {
		subCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.cfg.API.Timeout())
		defer cancel()
		var err error
		result, err = b.gw.ClosePosition(subCtx, b.cfg.Trading.Instrument)
		return err
	})
	if err != nil {
		metrics.OrderFailures.Inc()
		return fmt.Errorf("close position: %w", err)
	}

	reason := result.Reason
	if reason == "" {
		reason = why
	}
	metrics.PositionsClosed.WithLabelValues("signal").Inc()
	b.log.Infow("position closed", "trade_id", b.pos.TradeID, "why", why,
		"price", result.Price, "realized_pl", result.RealizedPL,
		"highest_pl", b.pos.HighestPL, "lowest_pl", b.pos.LowestPL)

	b.journalClose(journalCloseArgs{
		exitPrice:  result.Price,
		realizedPL: result.RealizedPL,
		reason:     reason,
		closeTime:  result.Time,
	})
	b.pos = nil
	return nil
}

type journalCloseArgs struct {
	exitPrice  float64
	realizedPL float64
	reason     string
	closeTime  time.Time
}

func (b *Bot) journalClose(a journalCloseArgs) {
	if b.pos == nil {
		return
	}
	closeTime := a.closeTime
	if closeTime.IsZero() {
		closeTime = b.now()
	}
	if err := b.jrnl.RecordClose(journal.Entry{
		ID:          b.pos.JournalID,
		TradeID:     b.pos.TradeID,
		Instrument:  b.cfg.Trading.Instrument,
		Side:        b.pos.Side.String(),
		Units:       b.pos.Units,
		EntryPrice:  b.pos.EntryPrice,
		StopLoss:    b.pos.StopLoss,
		TakeProfit:  b.pos.TakeProfit,
		MarketTrend: b.pos.Trend.String(),
		TargetRR:    b.pos.TargetRR,
		RiskAmount:  b.pos.RiskAmount,
		OpenTime:    b.pos.OpenTime,
		Closed:      true,
		ExitPrice:   a.exitPrice,
		RealizedPL:  a.realizedPL,
		HighestPL:   b.pos.HighestPL,
		LowestPL:    b.pos.LowestPL,
		Reason:      a.reason,
		CloseTime:   closeTime,
	}); err != nil {
		b.log.Errorw("journal close", "error", err)
	}
}

// maintain runs the per-cycle upkeep on an open position: the one-shot
// post-fill take-profit correction, then the trailing stop.
func (b *Bot) maintain(ctx context.Context, st indicators.TrendState, tick market.Tick, trade *broker.Trade) {
	if b.pos == nil || trade == nil {
		return
	}
	b.correctTakeProfit(ctx)
	if b.cfg.StopLoss.TrailingEnabled {
		b.trail(ctx, st, tick)
	}
}

// correctTakeProfit re-derives the target from the actual fill price once.
// Slippage between the signal-time entry reference and the fill can leave
// the resting take-profit at the wrong reward distance. A transient broker
// failure leaves the one-shot unconsumed: the corrected price comes from the
// fill and stop, so the next cycle retries the same update.
func (b *Bot) correctTakeProfit(ctx context.Context) {
	if b.pos.TPCorrected {
		return
	}
	if b.pos.TPOrderID == "" || b.pos.TargetRR <= 0 {
		b.pos.TPCorrected = true
		return
	}
	tol := b.pip(b.cfg.Risk.TPCorrectionTolerancePips)
	corrected, update := risk.CorrectTakeProfit(
		b.pos.EntryPrice, b.pos.StopLoss, b.pos.Side, b.pos.TargetRR, b.pos.TakeProfit, tol)
	if !update {
		b.pos.TPCorrected = true
		return
	}

	newID, err := b.modifyTakeProfit(ctx, corrected)
	if err != nil {
		if !broker.IsTransient(err) {
			b.pos.TPCorrected = true
		}
		b.log.Warnw("take-profit correction failed", "error", err,
			"current", b.pos.TakeProfit, "corrected", corrected)
		return
	}
	b.pos.TPCorrected = true
	b.log.Infow("take-profit corrected", "from", b.pos.TakeProfit,
		"to", corrected, "fill", b.pos.EntryPrice, "rr", b.pos.TargetRR)
	b.pos.TakeProfit = corrected
	b.pos.TPOrderID = newID
}

// trail moves the stop to the fresh trailing line when the risk checks pass.
// Rejections are routine; only broker failures are logged as warnings.
func (b *Bot) trail(ctx context.Context, st indicators.TrendState, tick market.Tick) {
	line := st.TrailingUp
	if b.pos.Side == signal.Short {
		line = st.TrailingDown
	}
	candidate := risk.StopLoss(line, b.pos.Side, tick.Spread(), b.pip(b.cfg.StopLoss.SpreadBufferPips))

	verdict := risk.TrailStop(candidate, b.pos.StopLoss, b.pos.Side,
		tick.Bid, tick.Ask,
		b.pip(b.cfg.StopLoss.MinUpdatePips),
		b.pip(b.cfg.StopLoss.SafetyMarginPips))
	if verdict != risk.TrailAccept {
		b.log.Debugw("trailing stop skipped", "verdict", verdict,
			"candidate", candidate, "current", b.pos.StopLoss)
		return
	}

	newID, err := b.modifyStopLoss(ctx, candidate)
	if err != nil {
		b.log.Warnw("trailing stop update failed", "error", err,
			"candidate", candidate)
		return
	}
	metrics.TrailingUpdates.Inc()
	b.log.Infow("trailing stop moved", "from", b.pos.StopLoss, "to", candidate)
	b.pos.StopLoss = candidate
	b.pos.StopOrderID = newID
}

// modifyStopLoss replaces the stop order, refreshing the order id once on a
// not-found: a broker-side replacement can stale the cached id between the
// reconcile snapshot and this call.
func (b *Bot) modifyStopLoss(ctx context.Context, price float64) (string, error) {
	newID, err := b.gw.ModifyStopLoss(ctx, b.pos.TradeID, b.pos.StopOrderID, price)
	if errors.Is(err, broker.ErrOrderNotFound) {
		if rerr := b.refreshOrderIDs(ctx); rerr != nil {
			return "", rerr
		}
		newID, err = b.gw.ModifyStopLoss(ctx, b.pos.TradeID, b.pos.StopOrderID, price)
	}
	return newID, err
}

func (b *Bot) modifyTakeProfit(ctx context.Context, price float64) (string, error) {
	newID, err := b.gw.ModifyTakeProfit(ctx, b.pos.TradeID, b.pos.TPOrderID, price)
	if errors.Is(err, broker.ErrOrderNotFound) {
		if rerr := b.refreshOrderIDs(ctx); rerr != nil {
			return "", rerr
		}
		newID, err = b.gw.ModifyTakeProfit(ctx, b.pos.TradeID, b.pos.TPOrderID, price)
	}
	return newID, err
}

func (b *Bot) refreshOrderIDs(ctx context.Context) error {
	trades, err := b.gw.GetOpenTrades(ctx, b.cfg.Trading.Instrument)
	if err != nil {
		return err
	}
	for _, t := range trades {
		if t.ID == b.pos.TradeID {
			b.pos.StopOrderID = t.StopLossOrderID
			b.pos.TPOrderID = t.TakeProfitOrderID
			return nil
		}
	}
	return fmt.Errorf("trade %s no longer open", b.pos.TradeID)
}
