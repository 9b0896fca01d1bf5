package pipeline

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups the Prometheus collectors the pipeline exposes. No HTTP
// server is started anywhere in this package — the CLI layer may dump the
// registry to a file at shutdown (SPEC_FULL.md §6 `--metrics.out`), which
// keeps the network-transport Non-goal intact.
type Metrics struct {
	Registry *prometheus.Registry

	TransactionsProcessed *prometheus.CounterVec
	RejectedTransactions  *prometheus.CounterVec
	DispatcherHeapDepth   prometheus.Gauge
}

// NewMetrics builds a fresh, independent registry so concurrent tests don't
// collide on Prometheus's global default registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		TransactionsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transactions_processed_total",
			Help: "Transactions handed to the dispatcher after parsing, by kind, including ones an account later rejects.",
		}, []string{"kind"}),
		RejectedTransactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rejected_transactions_total",
			Help: "Transactions rejected by an account's state machine, by error kind.",
		}, []string{"kind"}),
		DispatcherHeapDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dispatcher_reorder_heap_depth",
			Help: "Number of out-of-order transactions currently held in the re-ordering heap.",
		}),
	}

	reg.MustRegister(m.TransactionsProcessed, m.RejectedTransactions, m.DispatcherHeapDepth)
	return m
}
