// Package broker defines the gateway interface the bot trades through.
// Implementations live in subpackages (oanda) and in test fakes.
package broker

import (
	"context"
	"time"

	"github.com/rustyeddy/trendbot/market"
)

// Gateway is the narrow surface the decision engine needs from a broker.
// All calls block; implementations must honor ctx deadlines.
type Gateway interface {
	GetCandles(ctx context.Context, instrument string, granularity market.Granularity, count int) ([]market.Candle, error)
	GetTick(ctx context.Context, instrument string) (market.Tick, error)
	GetAccount(ctx context.Context) (Account, error)

	// PlaceOrder submits a market order with attached stop-loss and
	// take-profit orders. Units < 0 opens a short.
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderFill, error)

	// GetOpenTrades returns the broker's view of open trades for the
	// instrument. This is the source of truth for reconciliation; order
	// ids in the result supersede anything cached locally.
	GetOpenTrades(ctx context.Context, instrument string) ([]Trade, error)

	ModifyStopLoss(ctx context.Context, tradeID, orderID string, price float64) (string, error)
	ModifyTakeProfit(ctx context.Context, tradeID, orderID string, price float64) (string, error)

	// ClosePosition closes the whole position for the instrument.
	ClosePosition(ctx context.Context, instrument string) (CloseResult, error)
}

type Account struct {
	ID          string
	Currency    string
	Balance     float64
	Equity      float64
	MarginUsed  float64
	MarginAvail float64
}

type OrderRequest struct {
	Instrument string
	Units      float64
	StopLoss   *float64
	TakeProfit *float64
}

type OrderFill struct {
	TradeID           string
	FillPrice         float64
	Units             float64
	StopLossOrderID   string
	StopLossPrice     float64
	TakeProfitOrderID string
	TakeProfitPrice   float64
	Time              time.Time
}

// Trade is an open trade as reported by the broker. A modified stop or
// take-profit order receives a NEW order id, so these ids must be
// re-fetched immediately before any modify call.
type Trade struct {
	ID                string
	Instrument        string
	Units             float64 // <0 short
	EntryPrice        float64
	OpenTime          time.Time
	StopLossOrderID   string
	StopLossPrice     float64
	TakeProfitOrderID string
	TakeProfitPrice   float64
	UnrealizedPL      float64
}

type CloseResult struct {
	Price      float64
	RealizedPL float64
	Reason     string
	Time       time.Time
}
