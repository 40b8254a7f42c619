package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClosedOnly(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	mk := func(complete bool, i int) Candle {
		return Candle{Time: base.Add(time.Duration(i) * 15 * time.Minute), Complete: complete}
	}

	tests := []struct {
		name    string
		candles []Candle
		want    int
	}{
		{"empty", nil, 0},
		{"all complete", []Candle{mk(true, 0), mk(true, 1)}, 2},
		{"trailing forming", []Candle{mk(true, 0), mk(true, 1), mk(false, 2)}, 2},
		{"only forming", []Candle{mk(false, 0)}, 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ClosedOnly(tt.candles)
			assert.Len(t, got, tt.want)
			for _, c := range got {
				assert.True(t, c.Complete)
			}
		})
	}
}

func TestTickMidSpread(t *testing.T) {
	t.Parallel()

	tick := Tick{Bid: 1.1660, Ask: 1.1662}
	assert.InDelta(t, 1.1661, tick.Mid(), 1e-9)
	assert.InDelta(t, 0.0002, tick.Spread(), 1e-9)
}

func TestPipSize(t *testing.T) {
	t.Parallel()

	eur, err := Lookup("EUR_USD")
	require.NoError(t, err)
	assert.InDelta(t, 0.0001, eur.PipSize(), 1e-12)

	jpy, err := Lookup("USD_JPY")
	require.NoError(t, err)
	assert.InDelta(t, 0.01, jpy.PipSize(), 1e-12)
}

func TestLookupUnknown(t *testing.T) {
	t.Parallel()

	_, err := Lookup("XAU_XAG")
	assert.Error(t, err)
}

func TestGranularitySeconds(t *testing.T) {
	t.Parallel()

	s, err := M15.Seconds()
	require.NoError(t, err)
	assert.Equal(t, int64(900), s)

	s, err = H3.Seconds()
	require.NoError(t, err)
	assert.Equal(t, int64(10800), s)

	_, err = Granularity("M7").Seconds()
	assert.Error(t, err)
}
