package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// `ProcessMetrics` exposes a small set of Prometheus gauges/counters over a
// local /metrics endpoint — a pull-based complement to the OTLP push path in
// setup.go, for operators who scrape rather than run a collector.
type ProcessMetrics struct {
	registry        *prometheus.Registry
	inFlight        prometheus.Gauge
	simulatedTotal  prometheus.Counter
	operationsTotal *prometheus.CounterVec
}

// `NewProcessMetrics` builds a fresh registry with the completion layer's
// process-level instruments registered.
func NewProcessMetrics() *ProcessMetrics {
	registry := prometheus.NewRegistry()

	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "completion",
		Name:      "operations_in_flight",
		Help:      "Completion layer operations currently executing.",
	})
	simulatedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "completion",
		Name:      "simulated_operations_total",
		Help:      "Operations served by simulation rather than a native backend call.",
	})
	operationsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "completion",
		Name:      "operations_total",
		Help:      "Completion layer operations by name and outcome.",
	}, []string{"operation", "status"})

	registry.MustRegister(inFlight, simulatedTotal, operationsTotal, prometheus.NewGoCollector())

	return &ProcessMetrics{
		registry:        registry,
		inFlight:        inFlight,
		simulatedTotal:  simulatedTotal,
		operationsTotal: operationsTotal,
	}
}

// `BeginOperation` marks the start of one completion-layer call and returns
// a function to call with its outcome when it finishes.
func (m *ProcessMetrics) BeginOperation(operation string) func(status string) {
	m.inFlight.Inc()
	return func(status string) {
		m.inFlight.Dec()
		m.operationsTotal.WithLabelValues(operation, status).Inc()
	}
}

func (m *ProcessMetrics) RecordSimulated() {
	m.simulatedTotal.Inc()
}

// `Handler` returns the http.Handler to mount at e.g. "/metrics".
func (m *ProcessMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
