// Package metrics defines the Prometheus collectors of the query engine
// and HTTP adapter.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Query phases.
const (
	PhaseAncestor = "ancestor"
	PhaseFSL      = "fsl"
	PhaseCount    = "count"
	PhaseLeaf     = "leaf"
)

// Metrics holds the collectors. A nil *Metrics records nothing.
type Metrics struct {
	// QueriesTotal counts executed statements by phase and outcome.
	QueriesTotal *prometheus.CounterVec

	// QueryDuration is the latency of executed statements.
	QueryDuration *prometheus.HistogramVec

	// RequestsTotal counts API responses by status code.
	RequestsTotal *prometheus.CounterVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		QueriesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bandmap_queries_total",
				Help: "Total number of SQL statements executed",
			},
			[]string{"phase", "status"},
		),
		QueryDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bandmap_query_duration_seconds",
				Help:    "SQL statement latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"phase"},
		),
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bandmap_requests_total",
				Help: "Total number of API responses",
			},
			[]string{"status"},
		),
	}
}

var (
	defaultOnce sync.Once
	defaultM    *Metrics
)

// Default returns collectors registered with the default registry.
func Default() *Metrics {
	defaultOnce.Do(func() { defaultM = New(prometheus.DefaultRegisterer) })
	return defaultM
}

// ObserveQuery records one statement of phase.
func (m *Metrics) ObserveQuery(phase string, started time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.QueriesTotal.WithLabelValues(phase, status).Inc()
	m.QueryDuration.WithLabelValues(phase).Observe(time.Since(started).Seconds())
}

// ObserveRequest records one API response.
func (m *Metrics) ObserveRequest(status int) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
}
