// Package digest renders the daily market digest from collected headlines.
// It provides Claude and OpenAI backed digesters with circuit breaker and
// retry protection for the API calls, and a no-op digester for running
// without an API key.
package digest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"autotrade/internal/utils/text"
)

// maxInputBytes caps the headline block sent to a provider. Both providers
// truncate identically so switching DIGEST_TYPE does not change what the
// model sees.
const maxInputBytes = 10000

// truncatedSuffix marks a clipped headline block.
const truncatedSuffix = "...\n(input truncated)"

// truncateInput clips the headline block to maxInputBytes to stay well
// inside every provider's token window.
func truncateInput(headlines string) string {
	if len(headlines) <= maxInputBytes {
		return headlines
	}
	clipped := headlines[:maxInputBytes] + truncatedSuffix
	slog.Warn("headline block truncated for digest provider",
		slog.Int("original_length", len(headlines)),
		slog.Int("truncated_length", len(clipped)))
	return clipped
}

// buildPrompt constructs the digest prompt with the configured length
// budget. The same prompt is used for every provider.
func buildPrompt(limit int, headlines string) string {
	return fmt.Sprintf("Write a daily market digest of at most %d characters from the headlines below. Lead with the most market-moving items and group related stories together:\n%s",
		limit, headlines)
}

// observeDigest logs the outcome of one provider call and records the
// digest metrics. The character limit is a soft budget: an overlong digest
// is delivered anyway, but logged and counted.
func observeDigest(ctx context.Context, rec DigestMetricsRecorder, requestID, digest string, limit int, duration time.Duration) {
	length := text.CountRunes(digest)
	withinLimit := length <= limit

	slog.InfoContext(ctx, "digest completed",
		slog.String("request_id", requestID),
		slog.Int("digest_length", length),
		slog.Int("character_limit", limit),
		slog.Bool("within_limit", withinLimit),
		slog.Duration("duration", duration))

	if !withinLimit {
		slog.WarnContext(ctx, "digest exceeds character limit",
			slog.String("request_id", requestID),
			slog.Int("digest_length", length),
			slog.Int("limit", limit),
			slog.Int("excess", length-limit))
	}

	rec.RecordLength(length)
	rec.RecordDuration(duration)
	rec.RecordCompliance(withinLimit)
	if !withinLimit {
		rec.RecordLimitExceeded()
	}
}
