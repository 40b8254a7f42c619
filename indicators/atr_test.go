package indicators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/trendbot/market"
)

func TestTrueRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		prev market.Candle
		cur  market.Candle
		want float64
	}{
		{
			"plain range",
			market.Candle{Close: 1.15},
			market.Candle{High: 1.20, Low: 1.10},
			0.10,
		},
		{
			"gap up",
			market.Candle{Close: 1.10},
			market.Candle{High: 1.25, Low: 1.20},
			0.15,
		},
		{
			"gap down",
			market.Candle{Close: 1.30},
			market.Candle{High: 1.25, Low: 1.24},
			0.06,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, trueRange(tt.cur, tt.prev), 1e-12)
		})
	}
}

func TestATR_RollingMean(t *testing.T) {
	t.Parallel()

	candles := []market.Candle{
		{High: 1.20, Low: 1.00, Close: 1.10},
		{High: 1.30, Low: 1.10, Close: 1.20}, // TR 0.20
		{High: 1.25, Low: 1.15, Close: 1.20}, // TR 0.10
		{High: 1.40, Low: 1.20, Close: 1.30}, // TR 0.20
	}

	atr := NewATR(2)
	assert.Equal(t, 3, atr.Warmup())

	atr.Update(candles[0])
	assert.False(t, atr.Ready())
	atr.Update(candles[1])
	assert.False(t, atr.Ready())
	atr.Update(candles[2])
	require.True(t, atr.Ready())
	assert.InDelta(t, 0.15, atr.Value(), 1e-12)
	atr.Update(candles[3])
	assert.InDelta(t, 0.15, atr.Value(), 1e-12)

	atr.Reset()
	assert.False(t, atr.Ready())
}

func TestATRSeries(t *testing.T) {
	t.Parallel()

	candles := []market.Candle{
		{High: 1.20, Low: 1.00, Close: 1.10},
		{High: 1.30, Low: 1.10, Close: 1.20},
		{High: 1.25, Low: 1.15, Close: 1.20},
		{High: 1.40, Low: 1.20, Close: 1.30},
	}

	series, err := ATRSeries(candles, 2)
	require.NoError(t, err)
	require.Len(t, series, 4)

	assert.True(t, math.IsNaN(series[0]))
	assert.True(t, math.IsNaN(series[1]))
	assert.InDelta(t, 0.15, series[2], 1e-12)
	assert.InDelta(t, 0.15, series[3], 1e-12)
}

func TestATRSeries_BadPeriod(t *testing.T) {
	t.Parallel()

	_, err := ATRSeries(nil, 0)
	assert.Error(t, err)
}
