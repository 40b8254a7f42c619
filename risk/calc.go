// Package risk computes position sizes, stop-loss and take-profit prices.
//
// The sizing invariant is constant dollar risk: units * stop_distance equals
// the configured risk amount regardless of how wide the stop is. Everything
// here is pure math; the bot decides when to apply it.
package risk

import (
	"fmt"
	"math"

	"github.com/rustyeddy/trendbot/signal"
)

// SizeInputs feed the position-size calculation.
type SizeInputs struct {
	RiskAmount float64 // account-currency dollars at risk if the stop is hit
	Entry      float64 // entry reference price
	Stop       float64 // stop-loss price
	MinUnits   float64 // lot-size floor (e.g. 1000)
	MaxUnits   float64 // safety ceiling
}

// SizeResult reports the computed size and the risk actually taken after
// clamping.
type SizeResult struct {
	Units        float64
	StopDistance float64
	ActualRisk   float64
}

// Size computes units = riskAmount / |entry - stop|, clamped to
// [MinUnits, MaxUnits] and floored to whole units.
func Size(in SizeInputs) (SizeResult, error) {
	dist := math.Abs(in.Entry - in.Stop)
	if dist <= 0 {
		return SizeResult{}, fmt.Errorf("risk: zero stop distance (entry=%v stop=%v)", in.Entry, in.Stop)
	}
	if in.RiskAmount <= 0 {
		return SizeResult{}, fmt.Errorf("risk: non-positive risk amount %v", in.RiskAmount)
	}

	units := math.Floor(in.RiskAmount / dist)
	if in.MinUnits > 0 && units < in.MinUnits {
		units = in.MinUnits
	}
	if in.MaxUnits > 0 && units > in.MaxUnits {
		units = in.MaxUnits
	}

	return SizeResult{
		Units:        units,
		StopDistance: dist,
		ActualRisk:   units * dist,
	}, nil
}

// StopLoss places the protective stop at the trend line, shifted by half the
// spread plus a configured buffer so the stop triggers when the mid price --
// not just one side of the spread -- reaches the line.
//
// The indicator runs on mid prices, but broker-side stops trigger on bid
// (long) or ask (short). Long stops shift down, short stops shift up.
func StopLoss(line float64, side signal.Side, spread, bufferPrice float64) float64 {
	adj := spread/2 + bufferPrice
	if side == signal.Short {
		return line + adj
	}
	return line - adj
}

// TakeProfit places the target at entry +/- stop distance * rr, direction
// per side. It is computed once from the best available entry reference at
// submission time and never recalculated against a moving market price.
func TakeProfit(entry, stop float64, side signal.Side, rr float64) float64 {
	reward := math.Abs(entry-stop) * rr
	if side == signal.Long {
		return entry + reward
	}
	return entry - reward
}

// CorrectTakeProfit re-derives the target after fill confirmation: slippage
// can make the actual fill differ from the signal-time reference the initial
// TP was computed from. The corrected TP comes from (fill, stop) with the
// same configured rr -- never from unrealized P/L. Returns the corrected
// price and whether the delta exceeds tolerance and is worth one broker
// update. Idempotent: applying it twice yields the same TP.
func CorrectTakeProfit(fill, stop float64, side signal.Side, rr, currentTP, tolerance float64) (float64, bool) {
	tp := TakeProfit(fill, stop, side, rr)
	return tp, math.Abs(tp-currentTP) > tolerance
}

// RR returns the reward:risk ratio of a planned trade.
func RR(entry, stop, takeProfit float64) float64 {
	risk := math.Abs(entry - stop)
	if risk == 0 {
		return 0
	}
	return math.Abs(takeProfit-entry) / risk
}
