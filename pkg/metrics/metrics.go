// Package metrics defines the Prometheus collectors for the coordinator and
// its workers and exposes them for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for a process group.
type Metrics struct {
	QueriesTotal        *prometheus.CounterVec
	QueryLatency        prometheus.Histogram
	PhaseLatency        *prometheus.HistogramVec
	ResultsCount        prometheus.Histogram
	DocumentsDispatched *prometheus.CounterVec
	DocumentsScored     *prometheus.CounterVec
	DocumentsSkipped    *prometheus.CounterVec
	WorkersConnected    prometheus.Gauge
}

// New creates all collectors and registers them with reg. Each process owns
// its registry, so several workers can share one in local mode.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scatter_queries_total",
				Help: "Total queries processed by outcome (ok, error).",
			},
			[]string{"outcome"},
		),
		QueryLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scatter_query_duration_seconds",
				Help:    "End-to-end latency of a query round in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),
		PhaseLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scatter_phase_duration_seconds",
				Help:    "Latency of each coordinator phase (broadcast, dispatch, collect).",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"phase"},
		),
		ResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scatter_results_count",
				Help:    "Number of ranked results returned per query.",
				Buckets: []float64{0, 1, 2, 3, 4, 5, 10},
			},
		),
		DocumentsDispatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scatter_documents_dispatched_total",
				Help: "Documents routed to each worker by the coordinator.",
			},
			[]string{"worker"},
		),
		DocumentsScored: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scatter_documents_scored_total",
				Help: "Documents scored by each worker.",
			},
			[]string{"worker"},
		),
		DocumentsSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scatter_documents_skipped_total",
				Help: "Documents excluded from ranking by worker and reason (empty, unreadable).",
			},
			[]string{"worker", "reason"},
		),
		WorkersConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "scatter_workers_connected",
				Help: "Number of workers currently linked to the coordinator.",
			},
		),
	}

	reg.MustRegister(
		m.QueriesTotal,
		m.QueryLatency,
		m.PhaseLatency,
		m.ResultsCount,
		m.DocumentsDispatched,
		m.DocumentsScored,
		m.DocumentsSkipped,
		m.WorkersConnected,
	)

	return m
}

// Handler returns the scrape handler for g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
