package digest

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DigestMetricsRecorder records the outcome of digest provider calls.
// The interface decouples the providers from Prometheus so unit tests can
// inject a plain recorder and assert what was observed.
type DigestMetricsRecorder interface {
	// RecordLength records the length of a generated digest in characters.
	RecordLength(length int)

	// RecordLimitExceeded increments the counter when a digest exceeds the
	// configured character limit.
	RecordLimitExceeded()

	// RecordCompliance records whether a digest is within the configured
	// character limit.
	RecordCompliance(withinLimit bool)

	// RecordDuration records the time taken by one provider API call.
	RecordDuration(duration time.Duration)
}

// PrometheusDigestMetrics implements DigestMetricsRecorder on Prometheus.
// This is the production implementation.
type PrometheusDigestMetrics struct {
	lengthHistogram   prometheus.Histogram
	exceededCounter   prometheus.Counter
	complianceGauge   prometheus.Gauge
	durationHistogram prometheus.Histogram
}

var (
	digestMetricsInstance *PrometheusDigestMetrics
	digestMetricsOnce     sync.Once
)

// getOrCreateHistogram gets an existing histogram or creates a new one if it doesn't exist
func getOrCreateHistogram(opts prometheus.HistogramOpts) prometheus.Histogram {
	h := prometheus.NewHistogram(opts)
	if err := prometheus.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(prometheus.Histogram)
		}
		// If it's not an AlreadyRegisteredError, use promauto which handles this gracefully
		return promauto.NewHistogram(opts)
	}
	return h
}

// getOrCreateCounter gets an existing counter or creates a new one if it doesn't exist
func getOrCreateCounter(opts prometheus.CounterOpts) prometheus.Counter {
	c := prometheus.NewCounter(opts)
	if err := prometheus.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(prometheus.Counter)
		}
		return promauto.NewCounter(opts)
	}
	return c
}

// getOrCreateGauge gets an existing gauge or creates a new one if it doesn't exist
func getOrCreateGauge(opts prometheus.GaugeOpts) prometheus.Gauge {
	g := prometheus.NewGauge(opts)
	if err := prometheus.Register(g); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(prometheus.Gauge)
		}
		return promauto.NewGauge(opts)
	}
	return g
}

// NewPrometheusDigestMetrics creates a new Prometheus-based metrics recorder.
// Uses a singleton to avoid duplicate metric registration when several
// providers are constructed in one process.
func NewPrometheusDigestMetrics() *PrometheusDigestMetrics {
	digestMetricsOnce.Do(func() {
		digestMetricsInstance = &PrometheusDigestMetrics{
			lengthHistogram: getOrCreateHistogram(prometheus.HistogramOpts{
				Name:    "digest_length_characters",
				Help:    "Distribution of digest lengths in characters (Unicode runes)",
				Buckets: []float64{100, 300, 500, 700, 900, 1100, 1500, 2000},
			}),
			exceededCounter: getOrCreateCounter(prometheus.CounterOpts{
				Name: "digest_limit_exceeded_total",
				Help: "Total number of digests exceeding the configured character limit",
			}),
			complianceGauge: getOrCreateGauge(prometheus.GaugeOpts{
				Name: "digest_limit_compliance_ratio",
				Help: "Ratio of digests within the character limit (0.0-1.0)",
			}),
			durationHistogram: getOrCreateHistogram(prometheus.HistogramOpts{
				Name:    "digest_api_duration_seconds",
				Help:    "Time for one digest completion call to the AI provider",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
			}),
		}
	})
	return digestMetricsInstance
}

// RecordLength implements DigestMetricsRecorder.RecordLength
func (p *PrometheusDigestMetrics) RecordLength(length int) {
	p.lengthHistogram.Observe(float64(length))
}

// RecordLimitExceeded implements DigestMetricsRecorder.RecordLimitExceeded
func (p *PrometheusDigestMetrics) RecordLimitExceeded() {
	p.exceededCounter.Inc()
}

// RecordCompliance implements DigestMetricsRecorder.RecordCompliance
func (p *PrometheusDigestMetrics) RecordCompliance(withinLimit bool) {
	if withinLimit {
		p.complianceGauge.Set(1.0)
	} else {
		p.complianceGauge.Set(0.0)
	}
}

// RecordDuration implements DigestMetricsRecorder.RecordDuration
func (p *PrometheusDigestMetrics) RecordDuration(duration time.Duration) {
	p.durationHistogram.Observe(duration.Seconds())
}
