package fetcher

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-shiori/go-readability"

	"autotrade/internal/resilience/circuitbreaker"
	"autotrade/internal/usecase/watch"
)

// ReadabilityFetcher implements watch.ContentFetcher: it downloads an
// article page and reduces it to clean text with go-shiori/go-readability.
// Every URL, including each redirect target, goes through validateURL, the
// body is read under a hard size cap, and all requests share one circuit
// breaker. Safe for concurrent use.
type ReadabilityFetcher struct {
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	config         ContentFetchConfig
}

// NewReadabilityFetcher builds a fetcher over its own HTTP client with
// TLS 1.2+, pooled connections, and redirect checking per config.
func NewReadabilityFetcher(config ContentFetchConfig) *ReadabilityFetcher {
	f := &ReadabilityFetcher{
		circuitBreaker: circuitbreaker.New(circuitbreaker.PageFetchConfig()),
		config:         config,
	}

	f.client = &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
		CheckRedirect: f.checkRedirect,
	}

	return f
}

// checkRedirect enforces the redirect budget and revalidates every hop, so
// a public page cannot bounce the fetch onto a private address.
func (f *ReadabilityFetcher) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= f.config.MaxRedirects {
		return fmt.Errorf("%w: %d redirects", watch.ErrTooManyRedirects, len(via))
	}

	if err := validateURL(req.URL.String(), f.config.DenyPrivateIPs); err != nil {
		return fmt.Errorf("redirect target validation failed: %w", err)
	}

	return nil
}

// FetchContent downloads urlStr and returns the extracted article text.
// Callers fall back to the feed-provided text on any error, so a partial
// result is never returned.
func (f *ReadabilityFetcher) FetchContent(ctx context.Context, urlStr string) (string, error) {
	if err := validateURL(urlStr, f.config.DenyPrivateIPs); err != nil {
		return "", err
	}

	result, err := f.circuitBreaker.Execute(func() (interface{}, error) {
		text, fetchErr := f.fetch(ctx, urlStr)
		return text, fetchErr
	})
	if err != nil {
		return "", err
	}

	return result.(string), nil
}

// fetch runs one guarded fetch: download under the size cap, then
// extraction.
func (f *ReadabilityFetcher) fetch(ctx context.Context, urlStr string) (string, error) {
	page, pageURL, err := f.download(ctx, urlStr)
	if err != nil {
		return "", err
	}
	return extractText(page, pageURL, urlStr)
}

// download performs the HTTP request and returns the raw page bytes along
// with the final URL after redirects, which extraction needs to resolve
// relative links.
func (f *ReadabilityFetcher) download(ctx context.Context, urlStr string) ([]byte, *url.URL, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to create request: %v", watch.ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", "autotrade-watch/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return nil, nil, fmt.Errorf("%w: request exceeded %v", watch.ErrTimeout, f.config.Timeout)
		}
		// Redirect policy failures arrive wrapped in *url.Error; surface
		// the inner error so sentinel checks keep working.
		if urlErr, ok := err.(*url.Error); ok && urlErr.Err != nil {
			return nil, nil, urlErr.Err
		}
		return nil, nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	// Read one byte past the cap to tell an oversized response from one
	// that fits exactly.
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodySize+1))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > f.config.MaxBodySize {
		return nil, nil, fmt.Errorf("%w: response size %d bytes exceeds limit %d bytes",
			watch.ErrBodyTooLarge, len(body), f.config.MaxBodySize)
	}

	pageURL, _ := url.Parse(urlStr)
	if resp.Request != nil && resp.Request.URL != nil {
		pageURL = resp.Request.URL
	}

	return body, pageURL, nil
}

// extractText runs Readability over the page. TextContent is preferred;
// some pages only yield the HTML Content field, which still beats the bare
// feed snippet for keyword matching.
func extractText(page []byte, pageURL *url.URL, urlStr string) (string, error) {
	article, err := readability.FromReader(bytes.NewReader(page), pageURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", watch.ErrExtractionFailed, err)
	}

	if article.TextContent != "" {
		return article.TextContent, nil
	}
	if article.Content == "" {
		return "", fmt.Errorf("%w: no readable content found", watch.ErrExtractionFailed)
	}

	slog.Debug("falling back to HTML content for extraction",
		slog.String("url", urlStr),
		slog.Int("content_length", len(article.Content)))
	return article.Content, nil
}
