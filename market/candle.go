// Package market defines instrument metadata and the basic price types
// shared by every other package: candles, ticks and pip math.
package market

import "time"

// Candle represents OHLC data for one fixed-duration bar. Time is the
// candle open time (UTC). A candle is immutable once Complete is true;
// the most recent candle from a live feed may still be forming.
type Candle struct {
	Time     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	Complete bool
}

// ClosedOnly returns the candles with any trailing incomplete bar removed.
// Signal evaluation in closed-only mode must never act on a forming candle.
func ClosedOnly(candles []Candle) []Candle {
	n := len(candles)
	for n > 0 && !candles[n-1].Complete {
		n--
	}
	return candles[:n]
}
