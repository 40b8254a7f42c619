package risk

import "github.com/rustyeddy/trendbot/signal"

// Pair holds per-direction values for one market regime.
type Pair struct {
	Long  float64 `yaml:"long"`
	Short float64 `yaml:"short"`
}

// Table selects a value by (market trend, position side). The favorable
// direction in each regime carries the larger value; NEUTRAL or unknown
// regimes fall back to Default.
type Table struct {
	Bull    Pair    `yaml:"bull_market"`
	Bear    Pair    `yaml:"bear_market"`
	Default float64 `yaml:"neutral"`
}

func (t Table) For(trend signal.MarketTrend, side signal.Side) float64 {
	var p Pair
	switch trend {
	case signal.Bull:
		p = t.Bull
	case signal.Bear:
		p = t.Bear
	default:
		return t.Default
	}

	if side == signal.Short {
		if p.Short > 0 {
			return p.Short
		}
	} else {
		if p.Long > 0 {
			return p.Long
		}
	}
	return t.Default
}

// DefaultRewards mirrors the stock configuration: trend-following trades
// get the higher risk/reward target, counter-trend trades the lower one.
func DefaultRewards() Table {
	return Table{
		Bull:    Pair{Long: 1.2, Short: 0.6},
		Bear:    Pair{Long: 0.6, Short: 1.2},
		Default: 1.0,
	}
}

// DefaultAmounts risks a flat $100 in every cell; accounts override per
// regime and direction in config.
func DefaultAmounts() Table {
	return Table{
		Bull:    Pair{Long: 100, Short: 100},
		Bear:    Pair{Long: 100, Short: 100},
		Default: 100,
	}
}
