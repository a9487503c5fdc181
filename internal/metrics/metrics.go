// Package metrics holds the Prometheus collectors shared by the binaries.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "altcredit"

// Metrics groups the collectors registered on one registry.
type Metrics struct {
	Registry *prometheus.Registry

	ScoresComputed    *prometheus.CounterVec
	ScoreValues       prometheus.Histogram
	SyntheticFallback *prometheus.CounterVec
	BridgeCalls       *prometheus.CounterVec
	RowsLoaded        *prometheus.CounterVec
	HTTPRequests      *prometheus.CounterVec
}

// New creates the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		ScoresComputed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scores_computed_total",
			Help:      "Credit scores computed, by endpoint.",
		}, []string{"endpoint"}),
		ScoreValues: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "score_value",
			Help:      "Distribution of computed credit scores.",
			Buckets:   prometheus.LinearBuckets(300, 50, 12),
		}),
		SyntheticFallback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthetic_fallback_total",
			Help:      "Times the synthetic transaction set replaced the primary source.",
		}, []string{"reason"}),
		BridgeCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bridge_llm_calls_total",
			Help:      "Model runner calls made by the chatbot bridge.",
		}, []string{"operation", "outcome"}),
		RowsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warehouse_rows_loaded_total",
			Help:      "Rows inserted into the warehouse, by table.",
		}, []string{"table"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by method and status code.",
		}, []string{"method", "code"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ScoresComputed,
		m.ScoreValues,
		m.SyntheticFallback,
		m.BridgeCalls,
		m.RowsLoaded,
		m.HTTPRequests,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// ObserveScore records one computed score.
func (m *Metrics) ObserveScore(endpoint string, score int) {
	if m == nil {
		return
	}
	m.ScoresComputed.WithLabelValues(endpoint).Inc()
	m.ScoreValues.Observe(float64(score))
}

// Fallback records one switch to the synthetic transaction set.
func (m *Metrics) Fallback(reason string) {
	if m == nil {
		return
	}
	m.SyntheticFallback.WithLabelValues(reason).Inc()
}

// BridgeCall records one model runner call.
func (m *Metrics) BridgeCall(operation string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.BridgeCalls.WithLabelValues(operation, outcome).Inc()
}

// RowsInserted adds n rows to table's load counter.
func (m *Metrics) RowsInserted(table string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RowsLoaded.WithLabelValues(table).Add(float64(n))
}
