package indicators

// PivotHighs returns, for each bar, the pivot-high value confirmed at that
// bar, or NaN-free semantics via the ok slice.
//
// A bar at index i is a pivot high iff its high strictly exceeds the highs
// of the `period` bars on each side. Because confirmation requires `period`
// bars after i, the value is recorded at index i+period, not i. Recording it
// at i would leak future bars into past signals and desync the supertrend
// from its reference series.
func PivotHighs(highs []float64, period int) ([]float64, []bool) {
	vals := make([]float64, len(highs))
	ok := make([]bool, len(highs))

	for i := period; i < len(highs)-period; i++ {
		if isPivot(highs, i, period, func(center, side float64) bool { return center > side }) {
			vals[i+period] = highs[i]
			ok[i+period] = true
		}
	}
	return vals, ok
}

// PivotLows is the mirror of PivotHighs for lows.
func PivotLows(lows []float64, period int) ([]float64, []bool) {
	vals := make([]float64, len(lows))
	ok := make([]bool, len(lows))

	for i := period; i < len(lows)-period; i++ {
		if isPivot(lows, i, period, func(center, side float64) bool { return center < side }) {
			vals[i+period] = lows[i]
			ok[i+period] = true
		}
	}
	return vals, ok
}

func isPivot(xs []float64, i, period int, beats func(center, side float64) bool) bool {
	for j := 1; j <= period; j++ {
		if !beats(xs[i], xs[i-j]) || !beats(xs[i], xs[i+j]) {
			return false
		}
	}
	return true
}
