// Package metrics exposes the engine's prometheus instruments. Counters are
// registered on the default registry; the run command serves them when a
// listen address is configured.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScanCycles = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ampyfin",
		Name:      "scan_cycles_total",
		Help:      "Completed OPEN-phase scan cycles.",
	})

	TickersSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ampyfin",
		Name:      "tickers_skipped_total",
		Help:      "Tickers skipped after exhausting price/history retries.",
	})

	OrdersSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ampyfin",
		Name:      "orders_submitted_total",
		Help:      "Market orders submitted through the broker gateway.",
	}, []string{"side"})

	ForcedLiquidations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ampyfin",
		Name:      "forced_liquidations_total",
		Help:      "Sells triggered by stop-loss/take-profit limits.",
	})

	RankRebuilds = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ampyfin",
		Name:      "rank_rebuilds_total",
		Help:      "Full rank table rebuilds.",
	})

	PendingOrders = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ampyfin",
		Name:      "pending_orders",
		Help:      "Orders awaiting fill confirmation at last poll.",
	})
)
