// Package metrics provides centralized Prometheus metrics for the application.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collection metrics track candle ingest from market data providers
var (
	// CandlesFetchedTotal counts OHLCV bars returned by the provider per market
	CandlesFetchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "candles_fetched_total",
			Help: "Total number of candles fetched from market data providers",
		},
		[]string{"market"},
	)

	// CandlesWrittenTotal counts bars persisted per market and store
	CandlesWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "candles_written_total",
			Help: "Total number of candles written to a price store",
		},
		[]string{"market", "store"}, // store: postgres, sqlite
	)

	// CollectDuration measures time to collect one market
	CollectDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "collect_duration_seconds",
			Help:    "Time taken to collect candles for one market",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"market"},
	)

	// CollectErrors counts errors during candle collection
	CollectErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collect_errors_total",
			Help: "Total number of candle collection errors",
		},
		[]string{"market", "error_type"},
	)

	// CollectLagSeconds tracks the age of the newest stored bar per market
	CollectLagSeconds = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "collect_lag_seconds",
			Help: "Seconds between now and the newest stored bar",
		},
		[]string{"market"},
	)
)

// Watch metrics track news source crawling
var (
	// HeadlinesFetchedTotal counts headlines fetched from each source
	HeadlinesFetchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "headlines_fetched_total",
			Help: "Total number of headlines fetched from sources",
		},
		[]string{"source", "source_id"},
	)

	// HeadlinesMatchedTotal counts headlines that matched a watch keyword
	HeadlinesMatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "headlines_matched_total",
			Help: "Total number of headlines matching watch keywords",
		},
		[]string{"source"},
	)

	// WatchCrawlDuration measures time to crawl a news source
	WatchCrawlDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "watch_crawl_duration_seconds",
			Help:    "Time taken to crawl a news source",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"source_id"},
	)

	// WatchCrawlErrors counts errors during news crawling
	WatchCrawlErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watch_crawl_errors_total",
			Help: "Total number of news crawl errors",
		},
		[]string{"source_id", "error_type"},
	)
)

// Digest metrics track daily digest generation
var (
	// DigestsGeneratedTotal counts digest runs by status
	DigestsGeneratedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digests_generated_total",
			Help: "Total number of digest generations",
		},
		[]string{"status"},
	)

	// DigestDuration measures time to generate a digest
	DigestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "digest_duration_seconds",
			Help:    "Time taken to generate a daily digest",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)
)

// Storage gauges reflect current database state
var (
	// HeadlinesTotal tracks total number of headlines in database
	HeadlinesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "headlines_total",
			Help: "Total number of headlines in the database",
		},
	)

	// SourcesTotal tracks total number of sources in database
	SourcesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sources_total",
			Help: "Total number of sources in the database",
		},
	)

	// MarketsTotal tracks the number of per-market price tables
	MarketsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "markets_total",
			Help: "Total number of per-market price tables",
		},
	)
)

// Database metrics track database performance
var (
	// DBQueryDuration measures database query duration
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		},
		[]string{"operation"},
	)

	// DBConnectionsActive tracks active database connections
	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	// DBConnectionsIdle tracks idle database connections
	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		},
	)
)

// RecordOperationDuration records the duration of a named operation
func RecordOperationDuration(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
