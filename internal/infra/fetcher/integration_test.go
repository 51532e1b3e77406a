//go:build integration

package fetcher_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"autotrade/internal/infra/fetcher"
	"autotrade/internal/usecase/watch"
)

// A full announcement page the way exchanges actually serve them, with
// navigation and footer chrome around the article.
const fullAnnouncementPage = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Margin trading parameters updated | Exchange Blog</title>
</head>
<body>
    <header>
        <nav>
            <a href="/">Markets</a>
            <a href="/fees">Fees</a>
            <a href="/status">Status</a>
        </nav>
    </header>

    <main>
        <article>
            <h1>Margin trading parameters updated</h1>
            <div class="metadata">
                <span class="author">Trading Desk</span>
                <time datetime="2026-08-20">August 20, 2026</time>
            </div>

            <div class="content">
                <p>Initial margin for BTC/USD rises from 20% to 25% effective next Monday.</p>
                <p>Maintenance margin is unchanged. Open positions are not affected until they are next modified.</p>
                <p>The change follows a review of recent volatility in the underlying spot markets.</p>
                <h2>Affected pairs</h2>
                <p>BTC/USD, ETH/USD and all perpetual contracts quoted in USD.</p>
            </div>
        </article>
    </main>

    <footer>
        <p>&copy; 2026 Example Exchange</p>
    </footer>
</body>
</html>`

func TestContentFetchIntegration_StripsPageChrome(t *testing.T) {
	server := serveHTML(t, fullAnnouncementPage)

	contentFetcher := newTestFetcher(nil)

	content, err := contentFetcher.FetchContent(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("FetchContent() error = %v", err)
	}

	if !strings.Contains(content, "Initial margin for BTC/USD") {
		t.Errorf("expected article body in content, got: %q", content)
	}
	if !strings.Contains(content, "Affected pairs") {
		t.Errorf("expected section header in content, got: %q", content)
	}
	if strings.Contains(content, "Fees") && strings.Contains(content, "Status") {
		t.Error("navigation should be stripped from extracted content")
	}
	if strings.Contains(content, "2026 Example Exchange") {
		t.Error("footer should be stripped from extracted content")
	}
}

func TestContentFetchIntegration_RedirectChain(t *testing.T) {
	var redirectCount int32
	chainLength := 3

	finalServer := serveHTML(t, fullAnnouncementPage)

	currentURL := finalServer.URL
	for i := 0; i < chainLength; i++ {
		nextURL := currentURL
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&redirectCount, 1)
			http.Redirect(w, r, nextURL, http.StatusFound)
		}))
		t.Cleanup(server.Close)
		currentURL = server.URL
	}

	contentFetcher := newTestFetcher(func(c *fetcher.ContentFetchConfig) {
		c.MaxRedirects = 5
	})

	content, err := contentFetcher.FetchContent(context.Background(), currentURL)
	if err != nil {
		t.Fatalf("FetchContent() error = %v", err)
	}

	if got := atomic.LoadInt32(&redirectCount); int(got) != chainLength {
		t.Errorf("expected %d redirect hops, got %d", chainLength, got)
	}
	if !strings.Contains(content, "Margin trading parameters updated") {
		t.Errorf("expected content from the final destination, got: %q", content)
	}
}

func TestContentFetchIntegration_SiteLayouts(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "status page incident",
			html: `<!DOCTYPE html>
<html>
<head><title>Incident: delayed order matching</title></head>
<body>
	<div id="page">
		<div id="incident">
			<h1>Delayed order matching on BTC pairs</h1>
			<div class="updates">
				<p>Investigating: Order acknowledgements are delayed by up to 30 seconds.</p>
				<p>Identified: A degraded matching engine node has been removed from rotation.</p>
				<p>Resolved: Matching latency has returned to normal levels.</p>
			</div>
		</div>
	</div>
</body>
</html>`,
			want: "Delayed order matching",
		},
		{
			name: "blog style announcement",
			html: `<!DOCTYPE html>
<html>
<head><title>Introducing USD settlement</title></head>
<body>
	<article>
		<header>
			<h1>Introducing same-day USD settlement</h1>
			<div class="meta">
				<span class="author">Product Team</span>
				<time>2026-08-18</time>
			</div>
		</header>
		<section>
			<p>Withdrawals initiated before 14:00 UTC now settle the same business day.</p>
			<p>The existing next-day schedule remains the default for larger amounts.</p>
			<p>No action is required; eligible withdrawals are routed automatically.</p>
		</section>
	</article>
</body>
</html>`,
			want: "same-day USD settlement",
		},
		{
			name: "news article with asides",
			html: `<!DOCTYPE html>
<html>
<head><title>Market wrap</title></head>
<body>
	<main>
		<article>
			<h1>Bitcoin holds range as volume thins</h1>
			<p class="lead">Spot volume fell for the third straight session.</p>
			<aside class="related">Related coverage sidebar</aside>
			<p>Dealers report two-way flow with no directional conviction.</p>
			<p>Funding rates stayed near flat across major venues.</p>
			<aside class="ad">Advertisement</aside>
			<p>Options markets price a quiet week ahead.</p>
		</article>
	</main>
</body>
</html>`,
			want: "Bitcoin holds range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := serveHTML(t, tt.html)

			contentFetcher := newTestFetcher(nil)

			content, err := contentFetcher.FetchContent(context.Background(), server.URL)
			if err != nil {
				t.Fatalf("FetchContent() error = %v", err)
			}
			if !strings.Contains(content, tt.want) {
				t.Errorf("expected content to contain %q, got: %q", tt.want, content)
			}
		})
	}
}

// Scattered failures below the breaker threshold must not trip it; every
// request keeps reaching the upstream.
func TestCircuitBreakerIntegration_ScatteredFailures(t *testing.T) {
	var requestCount int32
	failurePattern := []bool{false, true, false, true, false, false, false, true, false, false}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count := atomic.AddInt32(&requestCount, 1)
		if failurePattern[min(int(count)-1, len(failurePattern)-1)] {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if _, err := w.Write([]byte(fullAnnouncementPage)); err != nil {
			t.Errorf("failed to write response: %v", err)
		}
	}))
	defer server.Close()

	contentFetcher := newTestFetcher(nil)

	successCount := 0
	for i := 0; i < len(failurePattern); i++ {
		_, err := contentFetcher.FetchContent(context.Background(), server.URL)
		if errors.Is(err, watch.ErrPrivateIP) {
			t.Fatalf("unexpected validation error: %v", err)
		}
		if err == nil {
			successCount++
		}
	}

	if successCount != 7 {
		t.Errorf("expected 7 successes from the failure pattern, got %d", successCount)
	}
	if got := atomic.LoadInt32(&requestCount); got != 10 {
		t.Errorf("expected all 10 requests to reach the upstream, got %d", got)
	}

	// 3 failures in 10 requests sits under the 0.6 threshold.
	if _, err := contentFetcher.FetchContent(context.Background(), server.URL); err != nil {
		t.Errorf("expected the breaker to stay closed, got: %v", err)
	}
}
