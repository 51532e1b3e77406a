package fetcher_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"autotrade/internal/infra/fetcher"
)

// benchPage builds an announcement-shaped page carrying roughly
// contentSize bytes of body text.
func benchPage(contentSize int) string {
	paragraph := "The exchange will enable deposits ahead of the listing and open " +
		"limit order books once liquidity providers are connected. Trading " +
		"incentives follow the standard maker-taker schedule for USD pairs. "

	count := contentSize / len(paragraph)
	if count < 1 {
		count = 1
	}

	var body strings.Builder
	for i := 0; i < count; i++ {
		fmt.Fprintf(&body, "\t\t<p>%s</p>\n", paragraph)
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><title>New listing announced</title></head>
<body>
	<article>
		<h1>New trading pair announced</h1>
%s	</article>
</body>
</html>`, body.String())
}

func benchFetcher(b *testing.B, contentSize int) (*fetcher.ReadabilityFetcher, string) {
	b.Helper()

	page := benchPage(contentSize)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(page)); err != nil {
			b.Errorf("failed to write response: %v", err)
		}
	}))
	b.Cleanup(server.Close)

	config := fetcher.DefaultConfig()
	config.DenyPrivateIPs = false // loopback benchmark server
	return fetcher.NewReadabilityFetcher(config), server.URL
}

// BenchmarkFetchContent measures fetch plus extraction across typical
// announcement page sizes.
func BenchmarkFetchContent(b *testing.B) {
	for _, size := range []int{3000, 50000} {
		b.Run(fmt.Sprintf("%dKB", size/1000), func(b *testing.B) {
			contentFetcher, url := benchFetcher(b, size)
			ctx := context.Background()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := contentFetcher.FetchContent(ctx, url); err != nil {
					b.Fatalf("FetchContent() error = %v", err)
				}
			}
		})
	}
}

// BenchmarkFetchContent_Parallel exercises the shared client and breaker
// under the same concurrency the watch pipeline uses.
func BenchmarkFetchContent_Parallel(b *testing.B) {
	contentFetcher, url := benchFetcher(b, 5000)
	ctx := context.Background()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := contentFetcher.FetchContent(ctx, url); err != nil {
				b.Errorf("FetchContent() error = %v", err)
			}
		}
	})
}
