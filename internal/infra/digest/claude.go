package digest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"autotrade/internal/resilience/circuitbreaker"
	"autotrade/internal/resilience/retry"
	"autotrade/internal/utils/text"
)

// defaultClaudeModel is used when the configured model is empty.
const defaultClaudeModel = string(anthropic.ModelClaudeSonnet4_5_20250929)

// Claude renders digests using Anthropic's Claude API. API calls run
// through a circuit breaker and retry with backoff.
type Claude struct {
	client          anthropic.Client
	circuitBreaker  *circuitbreaker.CircuitBreaker
	retryConfig     retry.Config
	config          ProviderConfig
	metricsRecorder DigestMetricsRecorder
}

// NewClaude creates a Claude digester with the given API key and provider
// settings. An empty config.Model selects the default Claude model.
func NewClaude(apiKey string, config ProviderConfig) *Claude {
	if config.Model == "" {
		config.Model = defaultClaudeModel
	}

	slog.Info("initialized claude digester",
		slog.Int("character_limit", config.CharacterLimit),
		slog.String("model", config.Model))

	return &Claude{
		client:          anthropic.NewClient(option.WithAPIKey(apiKey)),
		circuitBreaker:  circuitbreaker.New(circuitbreaker.ClaudeAPIConfig()),
		retryConfig:     retry.AIAPIConfig(),
		config:          config,
		metricsRecorder: NewPrometheusDigestMetrics(),
	}
}

// Digest renders a digest of the given headline block using Claude.
// It uses circuit breaker and retry logic for improved reliability.
func (c *Claude) Digest(ctx context.Context, headlines string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var result string

	retryErr := retry.WithBackoff(ctx, c.retryConfig, func() error {
		cbResult, err := c.circuitBreaker.Execute(func() (interface{}, error) {
			return c.doDigest(ctx, headlines)
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("claude api circuit breaker open, request rejected",
					slog.String("service", "claude-api"),
					slog.String("state", c.circuitBreaker.State().String()))
				return fmt.Errorf("claude api unavailable: circuit breaker open")
			}
			return err
		}

		result = cbResult.(string)
		return nil
	})

	if retryErr != nil {
		return "", fmt.Errorf("claude digest failed after retries: %w", retryErr)
	}

	return result, nil
}

// doDigest performs the actual API call without retry or circuit breaker.
func (c *Claude) doDigest(ctx context.Context, headlines string) (string, error) {
	requestID := uuid.New().String()

	input := truncateInput(headlines)
	prompt := buildPrompt(c.config.CharacterLimit, input)

	slog.InfoContext(ctx, "starting digest",
		slog.String("request_id", requestID),
		slog.String("provider", "claude"),
		slog.Int("input_length", text.CountRunes(input)),
		slog.Int("character_limit", c.config.CharacterLimit))

	start := time.Now()

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.config.Model),
		MaxTokens: int64(c.config.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewTextBlock(prompt),
			),
		},
	})

	duration := time.Since(start)

	if err != nil {
		slog.ErrorContext(ctx, "digest request failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return "", fmt.Errorf("claude api error: %w", err)
	}

	if len(message.Content) == 0 {
		slog.ErrorContext(ctx, "claude api returned empty response",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration))
		return "", fmt.Errorf("claude api returned empty response")
	}

	textBlock, ok := message.Content[0].AsAny().(anthropic.TextBlock)
	if !ok {
		slog.ErrorContext(ctx, "claude api returned unexpected response type",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration))
		return "", fmt.Errorf("claude api returned unexpected response type")
	}

	digest := textBlock.Text
	observeDigest(ctx, c.metricsRecorder, requestID, digest, c.config.CharacterLimit, duration)

	return digest, nil
}
