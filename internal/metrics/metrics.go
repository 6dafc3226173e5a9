// Package metrics defines the Prometheus collectors for queries and
// integrity verification.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Verification outcomes.
const (
	OutcomeValid   = "valid"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"
)

// Query statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics holds the contentq collectors. A nil *Metrics records nothing.
type Metrics struct {
	// Verifications counts integrity verifications by collection and outcome.
	Verifications *prometheus.CounterVec
	// Queries counts executed queries by collection and status.
	Queries *prometheus.CounterVec
	// QueryDuration is the latency of executed queries.
	QueryDuration *prometheus.HistogramVec
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer to
// expose them on the default /metrics handler, or a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Verifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contentq_integrity_verifications_total",
				Help: "Total number of collection integrity verifications",
			},
			[]string{"collection", "outcome"},
		),
		Queries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contentq_queries_total",
				Help: "Total number of executed collection queries",
			},
			[]string{"collection", "status"},
		),
		QueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "contentq_query_duration_seconds",
				Help:    "Collection query latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"collection"},
		),
	}
}

// ObserveVerification records one verification outcome.
func (m *Metrics) ObserveVerification(collection, outcome string) {
	if m == nil {
		return
	}
	m.Verifications.WithLabelValues(collection, outcome).Inc()
}

// ObserveQuery records one executed query.
func (m *Metrics) ObserveQuery(collection string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	m.Queries.WithLabelValues(collection, status).Inc()
	m.QueryDuration.WithLabelValues(collection).Observe(elapsed.Seconds())
}
