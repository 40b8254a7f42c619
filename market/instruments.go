package market

import (
	"fmt"
	"math"
)

// InstrumentMeta describes the trading characteristics of one FX pair.
type InstrumentMeta struct {
	Name                string
	BaseCurrency        string
	QuoteCurrency       string
	PipLocation         int // e.g. -4 for EUR_USD, -2 for USD_JPY
	TradeUnitsPrecision int
	MinimumTradeSize    float64
	MarginRate          float64
}

// PipSize returns the size of one pip in price units (0.0001 for EUR_USD).
func (m InstrumentMeta) PipSize() float64 {
	return math.Pow(10, float64(m.PipLocation))
}

var Instruments = map[string]InstrumentMeta{
	"EUR_USD": {
		Name:                "EUR_USD",
		BaseCurrency:        "EUR",
		QuoteCurrency:       "USD",
		PipLocation:         -4,
		TradeUnitsPrecision: 0,
		MinimumTradeSize:    1,
		MarginRate:          0.02,
	},
	"GBP_USD": {
		Name:                "GBP_USD",
		BaseCurrency:        "GBP",
		QuoteCurrency:       "USD",
		PipLocation:         -4,
		TradeUnitsPrecision: 0,
		MinimumTradeSize:    1,
		MarginRate:          0.05,
	},
	"USD_JPY": {
		Name:                "USD_JPY",
		BaseCurrency:        "USD",
		QuoteCurrency:       "JPY",
		PipLocation:         -2,
		TradeUnitsPrecision: 0,
		MinimumTradeSize:    1,
		MarginRate:          0.02,
	},
}

// Lookup returns the metadata for an instrument or an error naming it.
func Lookup(instrument string) (InstrumentMeta, error) {
	meta, ok := Instruments[instrument]
	if !ok {
		return InstrumentMeta{}, fmt.Errorf("unknown instrument %q", instrument)
	}
	return meta, nil
}

// Granularity is an OANDA-style candle timeframe string (M5, M15, H3, ...).
type Granularity string

const (
	M1  Granularity = "M1"
	M5  Granularity = "M5"
	M15 Granularity = "M15"
	M30 Granularity = "M30"
	H1  Granularity = "H1"
	H3  Granularity = "H3"
	H4  Granularity = "H4"
	D   Granularity = "D"
)

var granularitySeconds = map[Granularity]int64{
	M1: 60, M5: 300, M15: 900, M30: 1800,
	H1: 3600, H3: 10800, H4: 14400, D: 86400,
}

// Seconds returns the bar duration, or an error for unsupported values.
func (g Granularity) Seconds() (int64, error) {
	s, ok := granularitySeconds[g]
	if !ok {
		return 0, fmt.Errorf("unsupported granularity %q", string(g))
	}
	return s, nil
}
