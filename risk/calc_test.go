package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/trendbot/signal"
)

func TestSize_ConstantRiskAcrossStopWidths(t *testing.T) {
	t.Parallel()

	// The whole point of the sizing rule: a tighter stop means a bigger
	// position, but the dollars at risk stay put.
	entry := 1.16500
	for _, pips := range []float64{5, 10, 20, 50} {
		dist := pips * 0.0001
		got, err := Size(SizeInputs{
			RiskAmount: 100,
			Entry:      entry,
			Stop:       entry - dist,
			MinUnits:   1000,
			MaxUnits:   10_000_000,
		})
		require.NoError(t, err)
		assert.InDelta(t, 100.0, got.ActualRisk, 0.01, "stop width %v pips", pips)
		assert.InDelta(t, dist, got.StopDistance, 1e-9)
	}
}

func TestSize_Clamps(t *testing.T) {
	t.Parallel()

	t.Run("floor", func(t *testing.T) {
		t.Parallel()
		got, err := Size(SizeInputs{
			RiskAmount: 1,
			Entry:      1.2000,
			Stop:       1.1900,
			MinUnits:   1000,
			MaxUnits:   10_000_000,
		})
		require.NoError(t, err)
		assert.InDelta(t, 1000.0, got.Units, 1e-9)
		assert.InDelta(t, 10.0, got.ActualRisk, 1e-9, "clamped size risks more than asked")
	})

	t.Run("ceiling", func(t *testing.T) {
		t.Parallel()
		got, err := Size(SizeInputs{
			RiskAmount: 1_000_000_000,
			Entry:      1.20,
			Stop:       1.10,
			MinUnits:   1000,
			MaxUnits:   10_000_000,
		})
		require.NoError(t, err)
		assert.InDelta(t, 10_000_000.0, got.Units, 1e-3)
	})
}

func TestSize_Errors(t *testing.T) {
	t.Parallel()

	_, err := Size(SizeInputs{RiskAmount: 100, Entry: 1.2, Stop: 1.2})
	assert.Error(t, err, "zero stop distance")

	_, err = Size(SizeInputs{RiskAmount: 0, Entry: 1.2, Stop: 1.19})
	assert.Error(t, err, "non-positive risk amount")
}

func TestStopLoss_SpreadAndBuffer(t *testing.T) {
	t.Parallel()

	line := 1.16000
	spread := 0.0002
	buffer := 0.0003

	long := StopLoss(line, signal.Long, spread, buffer)
	short := StopLoss(line, signal.Short, spread, buffer)

	assert.InDelta(t, 1.15960, long, 1e-9, "long stop shifts below the line")
	assert.InDelta(t, 1.16040, short, 1e-9, "short stop shifts above the line")
	assert.Less(t, long, line)
	assert.Greater(t, short, line)
}

func TestTakeProfit(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.16680, TakeProfit(1.16200, 1.15800, signal.Long, 1.2), 1e-9)
	assert.InDelta(t, 1.15720, TakeProfit(1.16200, 1.16600, signal.Short, 1.2), 1e-9)
}

func TestCorrectTakeProfit(t *testing.T) {
	t.Parallel()

	// Planned: entry 1.16200, stop 1.16000, rr 1.0 -> TP 1.16400.
	// Slipped fill at 1.16260 moves the right TP to 1.16520.
	stop := 1.16000
	plannedTP := 1.16400
	tol := 0.00005

	corrected, update := CorrectTakeProfit(1.16260, stop, signal.Long, 1.0, plannedTP, tol)
	assert.True(t, update)
	assert.InDelta(t, 1.16520, corrected, 1e-9)

	// Idempotent: once the broker holds the corrected TP, a second pass
	// computes the same price and asks for no update.
	again, update := CorrectTakeProfit(1.16260, stop, signal.Long, 1.0, corrected, tol)
	assert.False(t, update)
	assert.InDelta(t, corrected, again, 1e-12)
}

func TestCorrectTakeProfit_WithinTolerance(t *testing.T) {
	t.Parallel()

	// Fill matched the plan to the pipette; not worth a broker round trip.
	_, update := CorrectTakeProfit(1.16201, 1.16000, signal.Long, 1.0, 1.16400, 0.00005)
	assert.False(t, update)
}

func TestRR(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.2, RR(1.16200, 1.15800, 1.16680), 1e-9)
	assert.InDelta(t, 0.0, RR(1.16200, 1.16200, 1.16680), 1e-12)
}
