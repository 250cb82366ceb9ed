package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the ledger's Prometheus collectors.
	Registry = prometheus.NewRegistry()

	operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "custodian",
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Total number of ledger operations by outcome code.",
		},
		[]string{"program", "op", "code"},
	)

	operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "custodian",
			Subsystem: "ledger",
			Name:      "operation_duration_seconds",
			Help:      "Duration of ledger operations including lock waits and retries.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14), // 100us to ~1.6s
		},
		[]string{"program", "op"},
	)

	operationRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "custodian",
			Subsystem: "ledger",
			Name:      "operation_retries_total",
			Help:      "Total number of operations retried after a storage conflict.",
		},
		[]string{"program", "op"},
	)

	batchInstructions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "custodian",
			Subsystem: "batch",
			Name:      "instructions_total",
			Help:      "Total number of batch instructions dispatched.",
		},
	)
)

func init() {
	Registry.MustRegister(
		operations,
		operationDuration,
		operationRetries,
		batchInstructions,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveOperation records the outcome and duration of a ledger operation.
func ObserveOperation(program, op, code string, d time.Duration) {
	operations.WithLabelValues(program, op, code).Inc()
	operationDuration.WithLabelValues(program, op).Observe(d.Seconds())
}

// ObserveRetry records a conflict retry.
func ObserveRetry(program, op string) {
	operationRetries.WithLabelValues(program, op).Inc()
}

// ObserveInstruction records a dispatched batch instruction.
func ObserveInstruction() {
	batchInstructions.Inc()
}
