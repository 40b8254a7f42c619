// Package state persists the signal-tracking record that must survive
// process restarts: the open time of the last candle whose signal produced
// an order. Its absence is a valid initial state meaning "no signal traded
// yet".
package state

import "time"

// Key identifies one bot instance's record. Instances never share records.
type Key struct {
	AccountID  string
	Instrument string
	Timeframe  string
}

// Record is the persisted signal state. LastTradedSignal is the signal
// candle open time; zero means no signal has traded.
type Record struct {
	LastTradedSignal time.Time
	UpdatedAt        time.Time
}

// Store reads and writes signal-state records idempotently. Writes happen
// only after a confirmed broker operation; Clear runs when a position fully
// closes.
type Store interface {
	Get(key Key) (Record, bool, error)
	Put(key Key, lastTradedSignal time.Time) error
	Clear(key Key) error
	Close() error
}
