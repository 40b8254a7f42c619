package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/trendbot/market"
)

// ATR is a streaming Average True Range indicator.
//
// The smoothing method is a simple rolling mean of the last `period` true
// ranges. This is deliberate: the supertrend values derived from it feed
// money-denominated stop distances, so the method is a fixed contract for
// golden-output regression tests. (Wilder's exponential smoothing gives
// slightly different values and is NOT used here.)
type ATR struct {
	period int

	prev    market.Candle
	hasPrev bool
	trs     []float64
	sum     float64
}

func NewATR(period int) *ATR {
	return &ATR{period: period, trs: make([]float64, 0, period)}
}

func (a *ATR) Name() string {
	return fmt.Sprintf("ATR(%d)", a.period)
}

func (a *ATR) Warmup() int {
	// TR needs a previous candle, so period+1 candles total.
	return a.period + 1
}

func (a *ATR) Reset() {
	a.hasPrev = false
	a.trs = a.trs[:0]
	a.sum = 0
}

func (a *ATR) Update(c market.Candle) {
	if !a.hasPrev {
		a.prev = c
		a.hasPrev = true
		return
	}

	tr := trueRange(c, a.prev)
	a.prev = c

	a.trs = append(a.trs, tr)
	a.sum += tr
	if len(a.trs) > a.period {
		a.sum -= a.trs[0]
		a.trs = a.trs[1:]
	}
}

func (a *ATR) Ready() bool {
	return len(a.trs) >= a.period
}

func (a *ATR) Value() float64 {
	if !a.Ready() {
		return 0
	}
	return a.sum / float64(a.period)
}

// ATRSeries returns the rolling-mean ATR for every bar; entries before the
// warmup is complete are NaN.
func ATRSeries(candles []market.Candle, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("atr: period must be positive, got %d", period)
	}

	out := make([]float64, len(candles))
	atr := NewATR(period)
	for i, c := range candles {
		atr.Update(c)
		if atr.Ready() {
			out[i] = atr.Value()
		} else {
			out[i] = math.NaN()
		}
	}
	return out, nil
}

// trueRange is max(high-low, |high-prevClose|, |low-prevClose|).
func trueRange(current, previous market.Candle) float64 {
	hl := current.High - current.Low
	hc := math.Abs(current.High - previous.Close)
	lc := math.Abs(current.Low - previous.Close)
	return math.Max(hl, math.Max(hc, lc))
}
