package digest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"autotrade/internal/resilience/circuitbreaker"
	"autotrade/internal/resilience/retry"
	"autotrade/internal/utils/text"
)

// defaultOpenAIModel is used when the configured model is empty.
const defaultOpenAIModel = openai.GPT3Dot5Turbo

// OpenAI renders digests using OpenAI's chat completion API. API calls run
// through a circuit breaker and retry with backoff.
type OpenAI struct {
	client          *openai.Client
	circuitBreaker  *circuitbreaker.CircuitBreaker
	retryConfig     retry.Config
	config          ProviderConfig
	metricsRecorder DigestMetricsRecorder
}

// NewOpenAI creates an OpenAI digester with the given API key and provider
// settings. An empty config.Model selects the default OpenAI model.
func NewOpenAI(apiKey string, config ProviderConfig) *OpenAI {
	if config.Model == "" {
		config.Model = defaultOpenAIModel
	}

	slog.Info("initialized openai digester",
		slog.Int("character_limit", config.CharacterLimit),
		slog.String("model", config.Model))

	return &OpenAI{
		client:          openai.NewClient(apiKey),
		circuitBreaker:  circuitbreaker.New(circuitbreaker.OpenAIAPIConfig()),
		retryConfig:     retry.AIAPIConfig(),
		config:          config,
		metricsRecorder: NewPrometheusDigestMetrics(),
	}
}

// Digest renders a digest of the given headline block using OpenAI.
// It uses circuit breaker and retry logic for improved reliability.
func (o *OpenAI) Digest(ctx context.Context, headlines string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	var result string

	retryErr := retry.WithBackoff(ctx, o.retryConfig, func() error {
		cbResult, err := o.circuitBreaker.Execute(func() (interface{}, error) {
			return o.doDigest(ctx, headlines)
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("openai api circuit breaker open, request rejected",
					slog.String("service", "openai-api"),
					slog.String("state", o.circuitBreaker.State().String()))
				return fmt.Errorf("openai api unavailable: circuit breaker open")
			}
			return err
		}

		result = cbResult.(string)
		return nil
	})

	if retryErr != nil {
		return "", fmt.Errorf("openai digest failed after retries: %w", retryErr)
	}

	return result, nil
}

// doDigest performs the actual API call without retry or circuit breaker.
func (o *OpenAI) doDigest(ctx context.Context, headlines string) (string, error) {
	requestID := uuid.New().String()

	input := truncateInput(headlines)
	prompt := buildPrompt(o.config.CharacterLimit, input)

	slog.InfoContext(ctx, "starting digest",
		slog.String("request_id", requestID),
		slog.String("provider", "openai"),
		slog.Int("input_length", text.CountRunes(input)),
		slog.Int("character_limit", o.config.CharacterLimit))

	start := time.Now()

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     o.config.Model,
		MaxTokens: o.config.MaxTokens,
		Messages: []openai.ChatCompletionMessage{{
			Role:    "user",
			Content: prompt,
		}},
	})

	duration := time.Since(start)

	if err != nil {
		slog.ErrorContext(ctx, "digest request failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return "", fmt.Errorf("openai api error: %w", err)
	}

	// Guard the array access: a malformed response must not panic the worker.
	if len(resp.Choices) == 0 {
		slog.ErrorContext(ctx, "openai api returned empty response",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration))
		return "", fmt.Errorf("openai api returned empty response")
	}

	digest := resp.Choices[0].Message.Content
	observeDigest(ctx, o.metricsRecorder, requestID, digest, o.config.CharacterLimit, duration)

	return digest, nil
}
