// Package main provides a CLI command for rendering the daily digest.
// Usage: autotrade-digest [--window 24h] [--max 50] [--publish]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	pgRepo "autotrade/internal/infra/adapter/persistence/postgres"
	"autotrade/internal/infra/db"
	digestProv "autotrade/internal/infra/digest"
	"autotrade/internal/infra/notifier"
	"autotrade/internal/observability/logging"
	digestUC "autotrade/internal/usecase/digest"
	"autotrade/internal/usecase/notify"
	pkgconfig "autotrade/pkg/config"
)

func main() {
	var (
		window  time.Duration
		max     int
		publish bool
		timeout time.Duration
	)

	flag.DurationVar(&window, "window", 24*time.Hour, "How far back to gather headlines")
	flag.IntVar(&max, "max", 50, "Maximum number of headlines in the digest")
	flag.BoolVar(&publish, "publish", false, "Dispatch to the configured channels instead of printing")
	flag.DurationVar(&timeout, "timeout", 5*time.Minute, "Overall run timeout")
	flag.Parse()

	// .env values may include LOG_LEVEL, so load before the logger exists.
	dotenvErr := pkgconfig.LoadDotEnv()
	logger := initLogger()
	if dotenvErr != nil {
		logger.Warn("failed to load .env file", slog.Any("error", dotenvErr))
	}

	database := db.Open()
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	headlineRepo := pgRepo.NewHeadlineRepo(database)
	digester := createDigester(logger)

	var notifyService notify.Service
	if publish {
		var channels []notify.Channel
		if cfg := notifier.LoadDiscordConfigFromEnv(logger); cfg.Enabled {
			channels = append(channels, notify.NewDiscordChannel(cfg))
		}
		if cfg := notifier.LoadSlackConfigFromEnv(logger); cfg.Enabled {
			channels = append(channels, notify.NewSlackChannel(cfg))
		}
		if len(channels) == 0 {
			logger.Warn("no notification channel enabled, digest will only be logged")
		}
		notifyService = notify.NewService(channels, pkgconfig.GetEnvInt("NOTIFY_MAX_CONCURRENT", 10))
	}

	service := digestUC.NewService(headlineRepo, digester, notifyService, digestUC.Config{
		Window:       window,
		MaxHeadlines: max,
	})

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if publish {
		if err := service.Publish(ctx); err != nil {
			logger.Error("digest publish failed", slog.String("error", logging.SanitizeError(err)))
			fmt.Fprintf(os.Stderr, "Error: Publish failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	body, err := service.Render(ctx)
	if errors.Is(err, digestUC.ErrNoHeadlines) {
		fmt.Fprintf(os.Stderr, "No headlines in the last %s\n", window)
		return
	}
	if err != nil {
		logger.Error("digest render failed", slog.String("error", logging.SanitizeError(err)))
		fmt.Fprintf(os.Stderr, "Error: Render failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(body)
}

// createDigester selects the digest provider from the DIGEST_TYPE
// environment variable. The default renders without an LLM.
func createDigester(logger *slog.Logger) digestUC.Digester {
	digestType := os.Getenv("DIGEST_TYPE")
	if digestType == "" {
		digestType = "noop"
	}

	switch digestType {
	case "noop":
		return digestProv.NewNoOp()
	case "claude":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			fmt.Fprintln(os.Stderr, "Error: ANTHROPIC_API_KEY is required when DIGEST_TYPE=claude")
			os.Exit(1)
		}
		providerConfig, err := digestProv.LoadProviderConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: Invalid digest configuration: %v\n", err)
			os.Exit(1)
		}
		return digestProv.NewClaude(apiKey, *providerConfig)
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			fmt.Fprintln(os.Stderr, "Error: OPENAI_API_KEY is required when DIGEST_TYPE=openai")
			os.Exit(1)
		}
		providerConfig, err := digestProv.LoadProviderConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: Invalid digest configuration: %v\n", err)
			os.Exit(1)
		}
		return digestProv.NewOpenAI(apiKey, *providerConfig)
	default:
		logger.Error("Invalid DIGEST_TYPE",
			slog.String("type", digestType),
			slog.String("expected", "noop, claude or openai"))
		os.Exit(1)
		return nil
	}
}

// initLogger initializes and returns a structured logger. CLI logs go to
// stderr so stdout carries only the rendered digest.
func initLogger() *slog.Logger {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	return logger
}
