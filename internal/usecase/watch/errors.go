// Package watch provides the news watch use case: crawling configured news
// sources, deduplicating headlines against the store, and raising alerts
// when a new headline mentions a watched symbol.
package watch

import "errors"

// Sentinel errors for watch use case operations.
var (
	// ErrSourceFetchFailed indicates that fetching items from a source failed.
	// This can occur due to network issues, invalid URLs, or server errors.
	ErrSourceFetchFailed = errors.New("failed to fetch items from source")

	// ErrInvalidFeedFormat indicates that the feed content could not be parsed.
	// This typically happens when the feed is not valid RSS or Atom format.
	ErrInvalidFeedFormat = errors.New("invalid feed format")
)
