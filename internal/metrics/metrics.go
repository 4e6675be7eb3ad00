package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	LedgerEntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_entries_total",
			Help: "Ledger entries recorded, by kind and flow",
		},
		[]string{"kind", "flow"},
	)

	TransfersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transfers_total",
			Help: "Outbound transfers by terminal status",
		},
		[]string{"status"},
	)

	RefundsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refunds_total",
			Help: "Refunds by outcome",
		},
		[]string{"status"},
	)

	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Webhook deliveries by event and outcome",
		},
		[]string{"event", "outcome"},
	)

	SettlementsReleased = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "settlements_released_total",
			Help: "Settlements paid out to merchants",
		},
	)

	ReconcileSweeps = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reconcile_sweeps_total",
			Help: "Reconciliation sweeps executed",
		},
	)

	WorkerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Current worker queue depth",
		},
	)
)

var Handler = promhttp.Handler

func Init() {
	prometheus.MustRegister(LedgerEntriesTotal)
	prometheus.MustRegister(TransfersTotal)
	prometheus.MustRegister(RefundsTotal)
	prometheus.MustRegister(WebhookEventsTotal)
	prometheus.MustRegister(SettlementsReleased)
	prometheus.MustRegister(ReconcileSweeps)
	prometheus.MustRegister(WorkerQueueDepth)
}
