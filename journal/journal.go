// Package journal records opened and closed trades for later analysis.
package journal

import "time"

// Entry is one journal row. Open rows carry the entry fields; close rows
// additionally carry exit price, realized P/L and the close reason
// (STOP_LOSS_ORDER, TAKE_PROFIT_ORDER, MARKET_ORDER_TRADE_CLOSE, ...).
type Entry struct {
	ID          string // journal record id (ULID, time-sortable)
	TradeID     string // broker trade id
	Instrument  string
	Side        string
	Units       float64
	EntryPrice  float64
	StopLoss    float64
	TakeProfit  float64
	MarketTrend string  // higher-timeframe trend at entry
	TargetRR    float64 // configured risk/reward target
	RiskAmount  float64
	OpenTime    time.Time

	Closed     bool
	ExitPrice  float64
	RealizedPL float64
	HighestPL  float64
	LowestPL   float64
	Reason     string
	CloseTime  time.Time
}

// Journal persists trade entries. Implementations must be safe for the
// single-writer polling loop; they are not required to be goroutine-safe.
type Journal interface {
	RecordOpen(Entry) error
	RecordClose(Entry) error
	Close() error
}

// Nop discards every record; used when journaling is disabled.
type Nop struct{}

func (Nop) RecordOpen(Entry) error  { return nil }
func (Nop) RecordClose(Entry) error { return nil }
func (Nop) Close() error            { return nil }
