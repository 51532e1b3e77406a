package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// SlackConfig contains configuration for Slack webhook notifications.
type SlackConfig struct {
	// Enabled indicates whether Slack notifications are enabled
	Enabled bool

	// WebhookURL is the Slack Incoming Webhook URL (includes authentication token)
	WebhookURL string

	// Timeout is the HTTP request timeout for Slack API calls
	Timeout time.Duration
}

// SlackNotifier sends notifications to Slack via Incoming Webhook.
type SlackNotifier struct {
	config     SlackConfig
	httpClient *http.Client
	pacer      *Pacer
}

// NewSlackNotifier creates a new SlackNotifier with the specified
// configuration. Sends are paced to the Slack incoming-webhook limit of
// one message per second, with no burst.
func NewSlackNotifier(config SlackConfig) *SlackNotifier {
	return &SlackNotifier{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		pacer: NewPacer(1.0, 1), // 1 msg/s
	}
}

// SlackWebhookPayload represents the JSON payload sent to Slack webhook using Block Kit.
type SlackWebhookPayload struct {
	Text   string       `json:"text"`   // Fallback text (required)
	Blocks []SlackBlock `json:"blocks"` // Rich formatting blocks
}

// SlackBlock represents a Slack Block Kit block.
type SlackBlock struct {
	Type     string            `json:"type"`               // "section", "context", "divider"
	Text     *SlackTextObject  `json:"text,omitempty"`     // Text content (for section)
	Elements []SlackTextObject `json:"elements,omitempty"` // Elements (for context)
}

// SlackTextObject represents a text object in Slack Block Kit.
type SlackTextObject struct {
	Type string `json:"type"` // "mrkdwn" or "plain_text"
	Text string `json:"text"` // Actual text content
}

// SlackErrorResponse represents the error response from Slack API.
type SlackErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

const (
	// Slack Block Kit limits
	maxSectionTextLength = 3000
	maxContextTextLength = 2000
	maxFallbackLength    = 150

	// Truncation suffix
	slackTruncationSuffix = "..."
)

// buildBlockKitPayload renders msg into a section block (linked title
// plus body) and a context block (origin plus event time), with a short
// fallback text for OS-level notifications. Text is truncated to the
// Block Kit limits.
func (s *SlackNotifier) buildBlockKitPayload(msg *Message) SlackWebhookPayload {
	fallbackText := msg.Title
	if msg.Footer != "" {
		fallbackText = fmt.Sprintf("%s - %s", msg.Title, msg.Footer)
	}
	fallbackText = truncateText(fallbackText, maxFallbackLength, slackTruncationSuffix)

	// Section format: *<url|title>*\n\nbody
	titleLine := fmt.Sprintf("*%s*", msg.Title)
	if msg.URL != "" {
		titleLine = fmt.Sprintf("*<%s|%s>*", msg.URL, msg.Title)
	}
	sectionText := truncateText(fmt.Sprintf("%s\n\n%s", titleLine, msg.Body), maxSectionTextLength, slackTruncationSuffix)

	contextText := msg.Footer
	if !msg.Timestamp.IsZero() {
		contextText = fmt.Sprintf("%s • %s", msg.Footer, msg.Timestamp.Format(time.RFC3339))
	}

	sectionBlock := SlackBlock{
		Type: "section",
		Text: &SlackTextObject{
			Type: "mrkdwn",
			Text: sectionText,
		},
	}

	contextBlock := SlackBlock{
		Type: "context",
		Elements: []SlackTextObject{
			{
				Type: "mrkdwn",
				Text: contextText,
			},
		},
	}

	return SlackWebhookPayload{
		Text:   fallbackText,
		Blocks: []SlackBlock{sectionBlock, contextBlock},
	}
}

// sendWebhookRequest posts msg once and classifies the response the
// same way the Discord sender does: 429 to RateLimitError, other 4xx to
// ClientError, 5xx to ServerError. Slack replies "ok" in plain text on
// success.
func (s *SlackNotifier) sendWebhookRequest(ctx context.Context, msg *Message) error {
	payload := s.buildBlockKitPayload(msg)

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.WebhookURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create http request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{
			Message:    "Slack rate limit exceeded",
			RetryAfter: extractRetryAfter(resp, body),
		}
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return &ClientError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("Slack API client error: %s", string(body)),
		}
	}

	if resp.StatusCode >= 500 {
		return &ServerError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("Slack API server error: %s", string(body)),
		}
	}

	return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
}

// sendWebhookRequestWithRetry drives up to two attempts with the same
// policy as the Discord sender: honor retry_after on 429, back off 5s
// then 10s on server and network errors, fail fast on client errors.
func (s *SlackNotifier) sendWebhookRequestWithRetry(ctx context.Context, msg *Message) error {
	const (
		maxAttempts = 2
		baseDelay   = 5 * time.Second
	)

	requestID, _ := ctx.Value(requestIDKey).(string)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := s.sendWebhookRequest(ctx, msg)
		if err == nil {
			slog.Info("Slack notification successful",
				slog.String("request_id", requestID),
				slog.String("title", msg.Title),
				slog.Int("attempt", attempt))
			return nil
		}

		lastErr = err

		if rateLimitErr, ok := is429Error(err); ok {
			recordRemoteThrottle("slack")
			slog.Warn("Slack rate limit hit, backing off",
				slog.String("request_id", requestID),
				slog.String("title", msg.Title),
				slog.Duration("retry_after", rateLimitErr.RetryAfter),
				slog.Int("attempt", attempt))

			select {
			case <-time.After(rateLimitErr.RetryAfter):
				continue
			case <-ctx.Done():
				return fmt.Errorf("context canceled during rate limit backoff: %w", ctx.Err())
			}
		}

		if !isRetryableError(err) {
			slog.Error("Slack notification failed with non-retryable error",
				slog.String("request_id", requestID),
				slog.String("title", msg.Title),
				slog.Any("error", err),
				slog.Int("attempt", attempt))
			return err
		}

		if attempt < maxAttempts {
			delay := baseDelay * time.Duration(attempt)
			slog.Warn("Slack API request failed, retrying",
				slog.String("request_id", requestID),
				slog.String("title", msg.Title),
				slog.Any("error", err),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay))

			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return fmt.Errorf("context canceled during retry backoff: %w", ctx.Err())
			}
		}
	}

	slog.Error("Slack notification failed after all retries",
		slog.String("request_id", requestID),
		slog.String("title", msg.Title),
		slog.Any("error", lastErr),
		slog.Int("max_attempts", maxAttempts))

	return fmt.Errorf("slack notification failed after %d attempts: %w", maxAttempts, lastErr)
}

// Notify sends a Slack notification for one message.
// This method implements the Notifier interface.
//
// Each send gets a request ID for tracing, waits its turn with the
// webhook pacer, and then goes out through the retry loop.
func (s *SlackNotifier) Notify(ctx context.Context, msg *Message) error {
	requestID := uuid.New().String()
	ctx = context.WithValue(ctx, requestIDKey, requestID)

	slog.Info("Starting Slack notification",
		slog.String("request_id", requestID),
		slog.String("title", msg.Title),
		slog.String("url", msg.URL))

	held, err := s.pacer.Wait(ctx)
	recordPaceWait("slack", held)
	if err != nil {
		slog.Error("webhook pacing interrupted",
			slog.String("request_id", requestID),
			slog.String("title", msg.Title),
			slog.Any("error", err))
		return fmt.Errorf("webhook pacing: %w", err)
	}

	return s.sendWebhookRequestWithRetry(ctx, msg)
}
