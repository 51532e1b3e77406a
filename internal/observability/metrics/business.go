package metrics

import (
	"fmt"
	"time"
)

// RecordCandlesFetched records the number of bars a market data provider
// returned for one market.
func RecordCandlesFetched(market string, count int) {
	CandlesFetchedTotal.WithLabelValues(market).Add(float64(count))
}

// RecordCandlesWritten records the number of bars persisted to a price store.
// Store should be "postgres" or "sqlite".
func RecordCandlesWritten(market, store string, count int64) {
	CandlesWrittenTotal.WithLabelValues(market, store).Add(float64(count))
}

// RecordCollect records the duration of one collection pass for a market.
func RecordCollect(market string, duration time.Duration) {
	CollectDuration.WithLabelValues(market).Observe(duration.Seconds())
}

// RecordCollectError records an error during candle collection.
func RecordCollectError(market, errorType string) {
	CollectErrors.WithLabelValues(market, errorType).Inc()
}

// UpdateCollectLag updates the age of the newest stored bar for a market.
// This is the primary freshness signal for alerting.
//
// Example:
//
//	latest, err := repo.GetLatest(ctx, market)
//	if err == nil {
//	    UpdateCollectLag(market.String(), time.Since(latest.OpenTime))
//	}
func UpdateCollectLag(market string, lag time.Duration) {
	CollectLagSeconds.WithLabelValues(market).Set(lag.Seconds())
}

// RecordHeadlinesFetched records the number of headlines fetched from a source.
// This metric helps track crawling performance and source activity.
func RecordHeadlinesFetched(sourceName string, sourceID int64, count int) {
	HeadlinesFetchedTotal.WithLabelValues(
		sourceName,
		fmt.Sprintf("%d", sourceID),
	).Add(float64(count))
}

// RecordHeadlineMatched records a headline that matched a watch keyword.
func RecordHeadlineMatched(sourceName string) {
	HeadlinesMatchedTotal.WithLabelValues(sourceName).Inc()
}

// RecordWatchCrawl records the duration of one crawl of a news source.
func RecordWatchCrawl(sourceID int64, duration time.Duration) {
	WatchCrawlDuration.WithLabelValues(
		fmt.Sprintf("%d", sourceID),
	).Observe(duration.Seconds())
}

// RecordWatchCrawlError records an error during news crawling.
func RecordWatchCrawlError(sourceID int64, errorType string) {
	WatchCrawlErrors.WithLabelValues(
		fmt.Sprintf("%d", sourceID),
		errorType,
	).Inc()
}

// RecordDigestGenerated records the result of a digest generation.
// Status should be either "success" or "failure".
func RecordDigestGenerated(success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	DigestsGeneratedTotal.WithLabelValues(status).Inc()
}

// RecordDigestDuration records the time taken to generate a daily digest.
// This helps identify performance issues with the AI provider.
func RecordDigestDuration(duration time.Duration) {
	DigestDuration.Observe(duration.Seconds())
}

// UpdateHeadlinesTotal updates the total count of headlines in the database.
// This gauge should be updated periodically to reflect the current state.
func UpdateHeadlinesTotal(count int) {
	HeadlinesTotal.Set(float64(count))
}

// UpdateSourcesTotal updates the total count of sources in the database.
// This gauge should be updated periodically to reflect the current state.
func UpdateSourcesTotal(count int) {
	SourcesTotal.Set(float64(count))
}

// UpdateMarketsTotal updates the count of per-market price tables.
func UpdateMarketsTotal(count int) {
	MarketsTotal.Set(float64(count))
}

// RecordDBQuery records the duration of a database query operation.
// Operation should describe the query type (e.g., "list_range", "upsert_candles").
func RecordDBQuery(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateDBConnectionStats updates database connection pool statistics.
func UpdateDBConnectionStats(active, idle int) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}
