// Package signal defines the discrete trading signals emitted by the
// indicator engine and the tracker that turns them into at-most-one
// trade action per signal candle.
package signal

// Signal is the per-candle output of the trend indicator. Buy and Sell are
// edge-triggered: they fire only on the candle where the trend flips.
// HoldLong/HoldShort are level-triggered continuations and must never
// re-fire a trade.
type Signal int

const (
	Hold Signal = iota
	Buy
	Sell
	HoldLong
	HoldShort
)

func (s Signal) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	case HoldLong:
		return "HOLD_LONG"
	case HoldShort:
		return "HOLD_SHORT"
	default:
		return "HOLD"
	}
}

// Actual reports whether s is a tradeable trend-change signal rather than
// a continuation state.
func (s Signal) Actual() bool {
	return s == Buy || s == Sell
}

// Action is what the tracker tells the position controller to do this cycle.
type Action int

const (
	ActionHold Action = iota
	ActionOpenLong
	ActionOpenShort
	ActionCloseThenOpenLong
	ActionCloseThenOpenShort
	ActionCloseOnly
)

func (a Action) String() string {
	switch a {
	case ActionOpenLong:
		return "OPEN_LONG"
	case ActionOpenShort:
		return "OPEN_SHORT"
	case ActionCloseThenOpenLong:
		return "CLOSE_THEN_OPEN_LONG"
	case ActionCloseThenOpenShort:
		return "CLOSE_THEN_OPEN_SHORT"
	case ActionCloseOnly:
		return "CLOSE_ONLY"
	default:
		return "HOLD"
	}
}

// MarketTrend is the higher-timeframe market classification used to bias
// risk/reward selection and filter counter-trend entries.
type MarketTrend int

const (
	Neutral MarketTrend = iota
	Bull
	Bear
)

func (m MarketTrend) String() string {
	switch m {
	case Bull:
		return "BULL"
	case Bear:
		return "BEAR"
	default:
		return "NEUTRAL"
	}
}

// Side is the direction of an open position.
type Side int

const (
	Flat Side = iota
	Long
	Short
)

func (s Side) String() string {
	switch s {
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	default:
		return "FLAT"
	}
}
