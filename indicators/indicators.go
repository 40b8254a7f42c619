// Package indicators provides the technical indicators the bot trades on.
// All indicators are deterministic and operate on closed candles only.
package indicators

import (
	"errors"

	"github.com/rustyeddy/trendbot/market"
)

// ErrInsufficientData is returned when a computation is asked for before
// enough candles exist to warm the indicator up. Callers treat this as
// "no signal", not a failure; it is normal during startup.
var ErrInsufficientData = errors.New("indicators: not enough candles")

// Indicator computes a single streaming value from candles.
type Indicator interface {
	// Name returns a stable identifier like "ATR(10)".
	Name() string

	// Warmup returns how many updates are needed before Ready() can be true.
	Warmup() int

	// Reset clears all internal state.
	Reset()

	// Update consumes the next closed candle.
	Update(c market.Candle)

	// Ready reports whether Value() is meaningful.
	Ready() bool

	// Value returns the current indicator value; callers must check Ready().
	Value() float64
}
