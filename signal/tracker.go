package signal

import "time"

// Tracker enforces the at-most-one-trade-per-signal invariant.
//
// Decide is pure: it never mutates tracker state. The controller commits a
// trade with MarkTraded only after the broker confirms the order, so a
// failed order leaves the tracker untouched and the same signal is retried
// on the next cycle. ClearTraded is called when a position fully closes so
// the next genuine signal can trade freely.
type Tracker struct {
	// FilterCounterTrend rejects entries against the higher-timeframe
	// market trend: a reversal against the trend closes only, a fresh
	// counter-trend entry is skipped.
	FilterCounterTrend bool

	// MaxSignalAge skips BUY/SELL candles older than this (0 disables).
	// Prevents acting on stale edges after downtime.
	MaxSignalAge time.Duration

	prevActual Signal    // last BUY/SELL committed; HOLD_* never overwrites
	lastTraded time.Time // open time of the last candle that produced an order
}

// Restore seeds persisted state after a process restart.
func (t *Tracker) Restore(lastTraded time.Time) {
	t.lastTraded = lastTraded
}

// LastTraded returns the signal-candle time of the last committed trade
// (zero when no signal has traded yet).
func (t *Tracker) LastTraded() time.Time {
	return t.lastTraded
}

// MarkTraded commits a successful order for the given signal candle.
// Call only after the broker operation succeeded.
func (t *Tracker) MarkTraded(candleTime time.Time, sig Signal) {
	t.lastTraded = candleTime
	if sig.Actual() {
		t.prevActual = sig
	}
}

// ClearTraded resets signal tracking after a position fully closes.
func (t *Tracker) ClearTraded() {
	t.lastTraded = time.Time{}
	t.prevActual = Hold
}

// SkipReason labels why an actual BUY/SELL produced no action. SkipNone
// covers continuation signals and decisions that did act.
type SkipReason string

const (
	SkipNone      SkipReason = ""
	SkipStale     SkipReason = "stale"     // candle older than MaxSignalAge
	SkipDuplicate SkipReason = "duplicate" // signal candle already traded
	SkipRepeat    SkipReason = "repeat"    // same direction as the last actual signal
	SkipFiltered  SkipReason = "filtered"  // counter-trend entry rejected
)

// Decide maps the current signal onto a trade action given the open
// position and the higher-timeframe market trend, with the skip reason
// when an actual signal produced no action.
//
// The duplicate-candle guard runs before anything else: a signal candle
// that already produced an order never produces a second one, even across
// restarts (state is persisted). This is the primary phantom-trade guard.
func (t *Tracker) Decide(now time.Time, sig Signal, candleTime time.Time, trend MarketTrend, side Side) (Action, SkipReason) {
	if !sig.Actual() {
		return ActionHold, SkipNone
	}
	if t.MaxSignalAge > 0 && now.Sub(candleTime) > t.MaxSignalAge {
		return ActionHold, SkipStale
	}
	if !t.lastTraded.IsZero() && candleTime.Equal(t.lastTraded) {
		return ActionHold, SkipDuplicate
	}
	if sig == t.prevActual {
		return ActionHold, SkipRepeat
	}

	counter := t.FilterCounterTrend &&
		((sig == Buy && trend == Bear) || (sig == Sell && trend == Bull))

	switch side {
	case Flat:
		if counter {
			return ActionHold, SkipFiltered
		}
		if sig == Buy {
			return ActionOpenLong, SkipNone
		}
		return ActionOpenShort, SkipNone

	case Long:
		if sig != Sell {
			return ActionHold, SkipRepeat
		}
		if counter {
			return ActionCloseOnly, SkipNone
		}
		return ActionCloseThenOpenShort, SkipNone

	case Short:
		if sig != Buy {
			return ActionHold, SkipRepeat
		}
		if counter {
			return ActionCloseOnly, SkipNone
		}
		return ActionCloseThenOpenLong, SkipNone
	}
	return ActionHold, SkipNone
}
