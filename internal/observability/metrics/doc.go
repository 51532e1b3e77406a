// Package metrics provides Prometheus metrics registry and recording utilities.
//
// This package centralizes all application metrics including:
//   - Candle collection metrics (bars fetched, bars written, freshness lag)
//   - News watch metrics (headlines, crawl duration, errors)
//   - Digest generation metrics
//   - Database query metrics
//
// All metrics are automatically registered with the Prometheus default registry
// and exposed via the worker's /metrics endpoint.
//
// Example usage:
//
//	import "autotrade/internal/observability/metrics"
//
//	func collectMarket(market entity.Market) {
//	    start := time.Now()
//	    // ... fetch and store candles ...
//	    count := 120
//
//	    metrics.RecordCandlesFetched(market.String(), count)
//	    metrics.RecordCollect(market.String(), time.Since(start))
//	}
package metrics
