// Package resilience provides reliability and fault tolerance patterns for the application.
// It includes implementations of circuit breakers and retry logic to keep the
// collector, the news watch, and the digest providers healthy when their
// upstreams misbehave.
//
// The package supports:
//   - Circuit breakers for outbound calls (market data feed, exchange driver,
//     news scraping, digest providers) and the database readiness probe
//   - Retry logic with exponential backoff and jitter that refuses to retry
//     denied admissions and open breakers
//
// Usage Example:
//
//	cb := circuitbreaker.New(circuitbreaker.MarketDataConfig())
//	result, err := cb.Execute(func() (interface{}, error) {
//	    return fetchCandles()
//	})
//
//	err := retry.WithBackoff(ctx, retry.MarketDataConfig(), func() error {
//	    return fetchWindow()
//	})
package resilience
