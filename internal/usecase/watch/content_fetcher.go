package watch

import (
	"context"
	"errors"
)

// ContentFetcher fetches the full article text behind a headline URL.
// Implementations extract clean article text from web pages, and are used
// when a feed only carries a short teaser instead of the article body.
//
// Implementations must prevent server-side request forgery: validate the
// URL scheme, reject private address ranges, cap redirects, and bound the
// response body size.
type ContentFetcher interface {
	// FetchContent fetches and extracts article text from the given URL.
	// The caller is expected to handle any error by falling back to the
	// feed summary.
	FetchContent(ctx context.Context, url string) (string, error)
}

// Sentinel errors for content fetching operations. They let callers
// distinguish failure modes when deciding how to fall back.
var (
	// ErrInvalidURL indicates the URL is malformed or uses a scheme other
	// than http or https.
	ErrInvalidURL = errors.New("invalid URL or unsupported scheme")

	// ErrPrivateIP indicates the URL resolves to a private or loopback
	// address and was refused.
	ErrPrivateIP = errors.New("private IP access denied")

	// ErrTooManyRedirects indicates the redirect chain exceeded the
	// configured maximum.
	ErrTooManyRedirects = errors.New("too many redirects")

	// ErrBodyTooLarge indicates the response body exceeded the size limit.
	ErrBodyTooLarge = errors.New("response body too large")

	// ErrTimeout indicates the request exceeded the configured timeout.
	ErrTimeout = errors.New("request timeout")

	// ErrExtractionFailed indicates no readable article text could be
	// extracted from the page.
	ErrExtractionFailed = errors.New("content extraction failed")
)
