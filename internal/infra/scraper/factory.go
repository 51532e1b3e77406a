package scraper

import (
	"net/http"

	"github.com/sony/gobreaker"

	"autotrade/internal/connection"
	"autotrade/internal/usecase/watch"
	"autotrade/pkg/callguard"
	"autotrade/pkg/config"
)

// Call fields of the shared news watch connection. The keys must match the
// limits returned by config.LoadWatchFieldLimits.
const (
	fieldRSS          = "rss"
	fieldAnnouncement = "announcement"
)

// ScraperFactory creates the news watch scrapers. All scrapers share one
// connection so RSS and announcement fetches draw from the same per-field
// budgets regardless of how many sources use each type.
type ScraperFactory struct {
	conn   *connection.Connection
	client *http.Client
}

// NewScraperFactory builds the shared news watch connection and registers
// its call fields. The HTTP client should be configured with appropriate
// timeouts and security settings.
//
// Circuit breaker rejections are added to the connection's tolerated set: a
// rejected call never reached the wire, so its reservation is rolled back
// instead of counting against the budget.
func NewScraperFactory(client *http.Client, metrics callguard.Metrics) (*ScraperFactory, error) {
	conn, err := connection.New(connection.Config{
		Name:       "NewsWatch",
		CallLimits: config.LoadWatchFieldLimits(),
		Metrics:    metrics,
	})
	if err != nil {
		return nil, err
	}

	_ = conn.Tolerated().Add(gobreaker.ErrOpenState)
	_ = conn.Tolerated().Add(gobreaker.ErrTooManyRequests)

	return &ScraperFactory{conn: conn, client: client}, nil
}

// CreateFeedScraper returns the RSS/Atom reader used for sources without a
// more specific type.
func (f *ScraperFactory) CreateFeedScraper() watch.Scraper {
	return NewRSSScraper(f.conn, f.client)
}

// CreateScrapers creates and returns a map of all page scrapers.
// The keys are source type names and the values are the corresponding
// watch.Scraper implementations.
//
// This map is used by the watch service to route sources to the appropriate
// scraper.
func (f *ScraperFactory) CreateScrapers() map[string]watch.Scraper {
	return map[string]watch.Scraper{
		"Announcement": NewAnnouncementScraper(f.conn, f.client),
	}
}

// Connection exposes the shared connection so callers can close it on
// shutdown or inspect its remaining budgets.
func (f *ScraperFactory) Connection() *connection.Connection {
	return f.conn
}
