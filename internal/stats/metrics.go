package stats

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request types and outcomes used as metric labels.
const (
	TypeComputation = "computation"
	TypeStat        = "stat"
	TypeQuit        = "quit"
	TypeInvalid     = "invalid"

	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics holds the Prometheus collectors for the server.
type Metrics struct {
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	connsActive prometheus.Gauge
	connsTotal  prometheus.Counter
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// yields unregistered collectors, which is convenient in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gridcalc_requests_total",
			Help: "Requests handled, by request type and outcome",
		}, []string{"type", "outcome"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gridcalc_request_duration_seconds",
			Help:    "Request processing time",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"type"}),
		connsActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "gridcalc_connections_active",
			Help: "Connections currently being served",
		}),
		connsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "gridcalc_connections_total",
			Help: "Connections accepted since start",
		}),
	}
}

// ObserveRequest records one handled request.
func (m *Metrics) ObserveRequest(typ, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(typ, outcome).Inc()
	m.duration.WithLabelValues(typ).Observe(d.Seconds())
}

// ConnOpened records a new connection.
func (m *Metrics) ConnOpened() {
	if m == nil {
		return
	}
	m.connsTotal.Inc()
	m.connsActive.Inc()
}

// ConnClosed records the end of a connection.
func (m *Metrics) ConnClosed() {
	if m == nil {
		return
	}
	m.connsActive.Dec()
}
