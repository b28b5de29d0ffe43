package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the marketplace backend. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	// Verification decisions by resulting status
	Decisions *prometheus.CounterVec

	// Refused decisions by reason: permission, status, transition
	DecisionsRefused *prometheus.CounterVec

	// Marker reconciliation passes and the markers they touched
	Reconciliations prometheus.Counter
	MarkerChanges   *prometheus.CounterVec

	// Geolocation requests by outcome: success, failure, superseded
	Locates *prometheus.CounterVec

	// Open live map sessions
	LiveSessions prometheus.Gauge

	// Pending products per region, refreshed by the moderation digest
	PendingProducts *prometheus.GaugeVec

	// HTTP request latency by method, route and status
	RequestDuration *prometheus.HistogramVec
}

// New registers every metric on reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "farmtrace_verification_decisions_total",
			Help: "Verification decisions applied, by resulting status",
		}, []string{"status"}),

		DecisionsRefused: f.NewCounterVec(prometheus.CounterOpts{
			Name: "farmtrace_verification_refused_total",
			Help: "Verification decisions refused, by reason",
		}, []string{"reason"}),

		Reconciliations: f.NewCounter(prometheus.CounterOpts{
			Name: "farmtrace_map_reconciliations_total",
			Help: "Marker reconciliation passes",
		}),

		MarkerChanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "farmtrace_map_marker_changes_total",
			Help: "Markers added or removed by reconciliation",
		}, []string{"op"}), // op: "add", "remove"

		Locates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "farmtrace_map_locate_total",
			Help: "Geolocation requests by outcome",
		}, []string{"outcome"}),

		LiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "farmtrace_livemap_sessions",
			Help: "Open live map sessions",
		}),

		PendingProducts: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "farmtrace_pending_products",
			Help: "Products awaiting verification, by region code",
		}, []string{"region"}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "farmtrace_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) IncrementDecision(status string) {
	if m != nil {
		m.Decisions.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) IncrementRefused(reason string) {
	if m != nil {
		m.DecisionsRefused.WithLabelValues(reason).Inc()
	}
}

// ObserveReconcile records one reconciliation pass
func (m *Metrics) ObserveReconcile(added, removed int) {
	if m == nil {
		return
	}
	m.Reconciliations.Inc()
	m.MarkerChanges.WithLabelValues("add").Add(float64(added))
	m.MarkerChanges.WithLabelValues("remove").Add(float64(removed))
}

func (m *Metrics) IncrementLocate(outcome string) {
	if m != nil {
		m.Locates.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) SessionOpened() {
	if m != nil {
		m.LiveSessions.Inc()
	}
}

func (m *Metrics) SessionClosed() {
	if m != nil {
		m.LiveSessions.Dec()
	}
}

// SetPending replaces the pending-per-region gauge with counts
func (m *Metrics) SetPending(counts map[string]int) {
	if m == nil {
		return
	}
	m.PendingProducts.Reset()
	for region, n := range counts {
		m.PendingProducts.WithLabelValues(region).Set(float64(n))
	}
}

func (m *Metrics) ObserveRequest(method, route, status string, d time.Duration) {
	if m != nil {
		m.RequestDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
	}
}
