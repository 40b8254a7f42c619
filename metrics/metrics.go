// Package metrics exposes prometheus counters for the trading loop.
// They are informational only; no decision logic reads them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trendbot_cycles_total",
		Help: "Evaluation cycles completed.",
	})

	CycleErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trendbot_cycle_errors_total",
		Help: "Evaluation cycles that ended in an error.",
	})

	OrdersPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trendbot_orders_total",
		Help: "Orders placed, by side.",
	}, []string{"side"})

	OrderFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trendbot_order_failures_total",
		Help: "Order submissions rejected or failed after retries.",
	})

	PositionsClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trendbot_positions_closed_total",
		Help: "Positions closed, by reason.",
	}, []string{"reason"})

	TrailingUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trendbot_trailing_updates_total",
		Help: "Accepted trailing stop-loss updates.",
	})

	SignalsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trendbot_signals_skipped_total",
		Help: "Tradeable signals skipped, by reason (stale, duplicate, repeat, filtered).",
	}, []string{"reason"})
)

// Serve exposes /metrics on addr. It blocks; run it in its own goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
