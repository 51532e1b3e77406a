package callguard

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics implements the Metrics interface using Prometheus.
//
// This implementation provides observability for call admission with
// detailed metrics including:
// - Admission counters (allowed/denied) by connection and field
// - Settlement counters (committed/rolled_back) per reservation
// - Eviction counters for expired history entries
// - Committed and reserved weight gauges per field
// - Guard duration histograms covering the wrapped operation
//
// All metrics use a custom registry for better testability and isolation.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	// admissionsTotal tracks admission checks by connection, field, and status.
	// Labels:
	//   - connection: owning connection name
	//   - field: call field consulted
	//   - status: "allowed" or "denied"
	admissionsTotal *prometheus.CounterVec

	// settlementsTotal tracks how reservations settled.
	// Labels:
	//   - connection: owning connection name
	//   - field: call field consulted
	//   - outcome: "committed" or "rolled_back"
	settlementsTotal *prometheus.CounterVec

	// evictionsTotal tracks history entries purged by window refreshes.
	// Labels:
	//   - connection: owning connection name
	//   - field: call field refreshed
	evictionsTotal *prometheus.CounterVec

	// fieldWeight tracks the current weight of a field split by kind.
	// Labels:
	//   - connection: owning connection name
	//   - field: call field
	//   - kind: "committed" or "reserved"
	fieldWeight *prometheus.GaugeVec

	// guardDuration tracks the wall time of one envelope invocation,
	// including the wrapped operation.
	// Labels:
	//   - connection: owning connection name
	//   - field: call field consulted
	//
	// Buckets span fast in-memory calls through slow remote operations:
	// - 1ms, 5ms, 10ms, 25ms (local or cached work)
	// - 50ms, 100ms, 250ms, 500ms (typical remote calls)
	// - 1s, 2.5s, 5s, 10s (slow endpoints, retries in flight)
	guardDuration *prometheus.HistogramVec
}

// NewPrometheusMetrics creates a new PrometheusMetrics instance with a custom registry.
//
// Using a custom registry (instead of the global prometheus.DefaultRegisterer) provides:
// - Better testability (isolated metrics per test)
// - No metric conflicts when running multiple instances
// - Explicit metric lifecycle management
//
// The registry can be passed to promhttp.HandlerFor() to expose metrics.
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	admissionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callguard_admissions_total",
			Help: "Total admission checks by connection, field, and status",
		},
		[]string{"connection", "field", "status"},
	)

	settlementsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callguard_settlements_total",
			Help: "Total reservation settlements by connection, field, and outcome",
		},
		[]string{"connection", "field", "outcome"},
	)

	evictionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callguard_evictions_total",
			Help: "Total expired history entries purged by window refreshes",
		},
		[]string{"connection", "field"},
	)

	fieldWeight := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "callguard_field_weight",
			Help: "Current field weight by connection, field, and kind (committed/reserved)",
		},
		[]string{"connection", "field", "kind"},
	)

	guardDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "callguard_guard_duration_seconds",
			Help:    "Duration of guarded operations including admission and settlement",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"connection", "field"},
	)

	// Register all metrics with the custom registry
	registry.MustRegister(
		admissionsTotal,
		settlementsTotal,
		evictionsTotal,
		fieldWeight,
		guardDuration,
	)

	return &PrometheusMetrics{
		registry:         registry,
		admissionsTotal:  admissionsTotal,
		settlementsTotal: settlementsTotal,
		evictionsTotal:   evictionsTotal,
		fieldWeight:      fieldWeight,
		guardDuration:    guardDuration,
	}
}

// Registry returns the Prometheus registry containing all call admission metrics.
//
// This can be used with promhttp.HandlerFor() to expose metrics:
//
//	metrics := NewPrometheusMetrics()
//	http.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordAdmission records the outcome of one admission check.
func (m *PrometheusMetrics) RecordAdmission(connection, field string, allowed bool) {
	status := "allowed"
	if !allowed {
		status = "denied"
	}
	m.admissionsTotal.WithLabelValues(connection, field, status).Inc()
}

// RecordSettlement records how a reservation was settled.
func (m *PrometheusMetrics) RecordSettlement(connection, field, outcome string) {
	m.settlementsTotal.WithLabelValues(connection, field, outcome).Inc()
}

// RecordEviction records expired history entries purged during a refresh pass.
func (m *PrometheusMetrics) RecordEviction(connection, field string, evicted int) {
	m.evictionsTotal.WithLabelValues(connection, field).Add(float64(evicted))
}

// SetFieldWeight records the committed and reserved weight of a field.
//
// This metric is useful for dashboards showing how close a connection runs to
// its capacity and for alerting before sustained denials begin.
func (m *PrometheusMetrics) SetFieldWeight(connection, field string, committed, reserved int64) {
	m.fieldWeight.WithLabelValues(connection, field, "committed").Set(float64(committed))
	m.fieldWeight.WithLabelValues(connection, field, "reserved").Set(float64(reserved))
}

// RecordGuardDuration records the wall time one envelope invocation took.
//
// The duration includes the wrapped operation, so slow endpoints dominate
// this histogram rather than admission overhead.
func (m *PrometheusMetrics) RecordGuardDuration(connection, field string, d time.Duration) {
	m.guardDuration.WithLabelValues(connection, field).Observe(d.Seconds())
}
