// Package notifier delivers toolkit notifications to webhook channels.
// It defines the Notifier interface which allows different delivery
// mechanisms (Discord, Slack, etc.) to be used interchangeably through
// dependency injection.
//
// The package includes implementations for Discord and Slack webhooks and a
// no-op notifier for when notifications are disabled.
package notifier

import (
	"context"
	"time"
)

// Message is one notification payload. The watch sends headline alerts, the
// digester sends the daily digest, and the collector sends failure notices,
// all through the same shape.
type Message struct {
	// Title is the headline of the notification.
	Title string

	// Body is the main text: matched symbols and summary for alerts, the
	// rendered digest, or an error description.
	Body string

	// URL links to the underlying item. Optional.
	URL string

	// Footer names the origin, e.g. the news source or "collector".
	Footer string

	// Timestamp is the event time. Zero omits the timestamp.
	Timestamp time.Time
}

// Notifier is an interface for sending toolkit notifications.
// Implementations should handle rate limiting, retries, and error logging internally.
type Notifier interface {
	// Notify sends one notification message.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - msg: The message to deliver (must not be nil)
	//
	// Returns:
	//   - error: Non-nil if the notification failed after all retry attempts
	//
	// Implementations should:
	//   - Generate a unique request ID for tracing
	//   - Apply rate limiting to prevent API abuse
	//   - Retry transient failures with exponential backoff
	//   - Log all attempts with the request ID for debugging
	//   - Respect context cancellation
	Notify(ctx context.Context, msg *Message) error
}
