package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/trendbot/market"
	"github.com/rustyeddy/trendbot/signal"
)

// TrendState is the per-bar output of the pivot supertrend.
//
// Exactly one of TrailingUp/TrailingDown is the active SuperTrend value,
// selected by Trend: the trailing lines are monotonic ratchets (TrailingUp
// never moves down while the uptrend holds, TrailingDown never moves up
// while the downtrend holds) anchored to ATR bands around Center.
type TrendState struct {
	Trend        int // +1 up, -1 down, 0 undefined (warming up)
	TrailingUp   float64
	TrailingDown float64
	Center       float64
	ATR          float64
	SuperTrend   float64
}

// PivotSuperTrend computes the Pivot Point SuperTrend over a closed candle
// series. Parameters follow the common charting defaults: pivot period 2,
// ATR period 10, ATR factor 3.0.
type PivotSuperTrend struct {
	PivotPeriod int
	ATRPeriod   int
	ATRFactor   float64
}

func NewPivotSuperTrend(pivotPeriod, atrPeriod int, atrFactor float64) *PivotSuperTrend {
	return &PivotSuperTrend{
		PivotPeriod: pivotPeriod,
		ATRPeriod:   atrPeriod,
		ATRFactor:   atrFactor,
	}
}

func (p *PivotSuperTrend) Name() string {
	return fmt.Sprintf("PPSuperTrend(%d,%d,%.1f)", p.PivotPeriod, p.ATRPeriod, p.ATRFactor)
}

// Warmup returns the minimum candle count before a defined trend can exist:
// one confirmed pivot (2*pivotPeriod+1 bars) plus the ATR window.
func (p *PivotSuperTrend) Warmup() int {
	return 2*p.PivotPeriod + p.ATRPeriod
}

// Result holds the full per-bar series. The last entry is the current state.
type Result struct {
	States  []TrendState
	Signals []signal.Signal
}

// Last returns the most recent state and signal.
func (r *Result) Last() (TrendState, signal.Signal) {
	n := len(r.States)
	return r.States[n-1], r.Signals[n-1]
}

// Compute runs the indicator over the whole candle series. It returns
// ErrInsufficientData when the series is shorter than the warmup window;
// the caller must treat that as "no signal", never guess a trend.
func (p *PivotSuperTrend) Compute(candles []market.Candle) (*Result, error) {
	if p.PivotPeriod <= 0 || p.ATRPeriod <= 0 || p.ATRFactor <= 0 {
		return nil, fmt.Errorf("supertrend: invalid parameters %+v", *p)
	}
	if len(candles) < p.Warmup() {
		return nil, fmt.Errorf("%w: need %d, got %d", ErrInsufficientData, p.Warmup(), len(candles))
	}

	n := len(candles)
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
		closes[i] = c.Close
	}

	atr, err := ATRSeries(candles, p.ATRPeriod)
	if err != nil {
		return nil, err
	}

	phVals, phOK := PivotHighs(highs, p.PivotPeriod)
	plVals, plOK := PivotLows(lows, p.PivotPeriod)

	states := make([]TrendState, n)
	sigs := make([]signal.Signal, n)

	// Running smoothed midpoint of confirmed pivots: the first pivot seeds
	// the center, each later one pulls it by a third, otherwise it holds flat.
	center := math.NaN()

	trailUp := math.NaN()
	trailDown := math.NaN()
	trend := 0

	for i := 0; i < n; i++ {
		if phOK[i] {
			center = blendCenter(center, phVals[i])
		} else if plOK[i] {
			center = blendCenter(center, plVals[i])
		}

		st := TrendState{
			Trend:        trend,
			TrailingUp:   trailUp,
			TrailingDown: trailDown,
			Center:       center,
			ATR:          atr[i],
			SuperTrend:   math.NaN(),
		}

		if math.IsNaN(center) || math.IsNaN(atr[i]) || i == 0 {
			states[i] = st
			sigs[i] = holdSignal(trend)
			continue
		}

		upper := center + p.ATRFactor*atr[i]
		lower := center - p.ATRFactor*atr[i]

		prevTrailUp := trailUp
		prevTrailDown := trailDown
		prevTrend := trend
		prevClose := closes[i-1]

		// Ratchet the trailing lines against the fresh bands.
		if !math.IsNaN(prevTrailUp) && prevClose > prevTrailUp {
			trailUp = math.Max(lower, prevTrailUp)
		} else {
			trailUp = lower
		}
		if !math.IsNaN(prevTrailDown) && prevClose < prevTrailDown {
			trailDown = math.Min(upper, prevTrailDown)
		} else {
			trailDown = upper
		}

		// Trend flips when the close crosses the opposite trailing line.
		switch {
		case !math.IsNaN(prevTrailDown) && closes[i] > prevTrailDown:
			trend = 1
		case !math.IsNaN(prevTrailUp) && closes[i] < prevTrailUp:
			trend = -1
		case prevTrend != 0:
			trend = prevTrend
		default:
			trend = 1
		}

		st.Trend = trend
		st.TrailingUp = trailUp
		st.TrailingDown = trailDown
		if trend == 1 {
			st.SuperTrend = trailUp
		} else {
			st.SuperTrend = trailDown
		}
		states[i] = st

		switch {
		case trend == 1 && prevTrend == -1:
			sigs[i] = signal.Buy
		case trend == -1 && prevTrend == 1:
			sigs[i] = signal.Sell
		default:
			sigs[i] = holdSignal(trend)
		}
	}

	return &Result{States: states, Signals: sigs}, nil
}

func blendCenter(center, pivot float64) float64 {
	if math.IsNaN(center) {
		return pivot
	}
	return (center*2 + pivot) / 3
}

func holdSignal(trend int) signal.Signal {
	switch trend {
	case 1:
		return signal.HoldLong
	case -1:
		return signal.HoldShort
	default:
		return signal.Hold
	}
}
