// Package notify fans toolkit notifications (headline alerts, daily digests,
// collector failures) out to the configured delivery channels. It owns the
// dispatch policy: per-channel circuit breakers, a bounded worker pool, and
// fire-and-forget semantics so a stuck webhook never stalls a job.
package notify

import (
	"context"

	"autotrade/internal/infra/notifier"
)

// Channel is one delivery target (Discord webhook, Slack webhook, ...).
// Implementations must be safe for concurrent use and must own their transport
// policy: honor ctx cancellation, pace outbound requests, retry transient
// failures (5xx, network errors) once, sleep out a 429's retry_after before
// retrying, and fail fast on other 4xx. Webhook URLs and tokens must never
// appear in returned errors or logs.
type Channel interface {
	// Name identifies the channel in logs, metrics, and the health report.
	// Lowercase, stable across restarts.
	Name() string

	// IsEnabled reports whether configuration turned this channel on.
	// The dispatcher skips disabled channels without calling Send.
	IsEnabled() bool

	// Send delivers msg, blocking until it is accepted or definitively
	// failed. Returns ErrChannelDisabled when called on a disabled channel
	// and ErrInvalidMessage for a nil or empty message; transport failures
	// come back wrapped after the retry budget is spent.
	Send(ctx context.Context, msg *notifier.Message) error
}
