// Package worker provides the runtime scaffolding for the scheduled
// jobs: environment-driven configuration, health endpoints, and
// Prometheus metrics. The worker binary wires these around the collect,
// watch, and digest use cases.
package worker

import (
	"fmt"
	"log/slog"
	"time"

	"autotrade/internal/pkg/config"
)

// WorkerConfig holds the operational settings for the worker process:
// one cron schedule and one timeout per job, the scheduler timezone,
// notification concurrency, and the health server port.
//
// Configuration is loaded from environment variables via
// LoadConfigFromEnv with fail-open semantics: an invalid value falls
// back to its default with a warning instead of aborting startup, so a
// bad deploy degrades the schedule rather than stopping data
// collection entirely.
type WorkerConfig struct {
	// CollectSchedule is the cron expression for market data collection.
	// Default: "*/15 * * * *" (every 15 minutes)
	CollectSchedule string

	// WatchSchedule is the cron expression for the headline watch pass.
	// Default: "*/10 * * * *" (every 10 minutes)
	WatchSchedule string

	// DigestSchedule is the cron expression for the daily digest.
	// Default: "0 7 * * *" (daily at 07:00)
	DigestSchedule string

	// Timezone is the IANA timezone the cron scheduler evaluates
	// schedules in. Default: "Asia/Tokyo"
	Timezone string

	// NotifyMaxConcurrent caps concurrent notification deliveries.
	// Range: 1-50. Default: 10
	NotifyMaxConcurrent int

	// CollectTimeout bounds a single collect run across all markets.
	// Default: 10 minutes
	CollectTimeout time.Duration

	// WatchTimeout bounds a single watch run, including scraping and
	// content fetching for every source. Default: 30 minutes
	WatchTimeout time.Duration

	// DigestTimeout bounds a single digest run, dominated by one AI
	// call. Default: 5 minutes
	DigestTimeout time.Duration

	// HealthPort is the port for the health check HTTP server.
	// Range: 1024-65535. Default: 9091
	HealthPort int
}

// DefaultConfig returns a WorkerConfig with production defaults: candle
// collection every 15 minutes, headline watch every 10, the digest once
// a day at 07:00 JST, and the health server on the conventional
// exporter port.
func DefaultConfig() WorkerConfig {
	return WorkerConfig{
		CollectSchedule:     "*/15 * * * *",
		WatchSchedule:       "*/10 * * * *",
		DigestSchedule:      "0 7 * * *",
		Timezone:            "Asia/Tokyo",
		NotifyMaxConcurrent: 10,
		CollectTimeout:      10 * time.Minute,
		WatchTimeout:        30 * time.Minute,
		DigestTimeout:       5 * time.Minute,
		HealthPort:          9091,
	}
}

// Validate checks every field using the shared validators and returns
// all failures aggregated into one error.
//
// Rules:
//   - the three schedules must be valid five-field cron expressions
//   - Timezone must be a loadable IANA name
//   - NotifyMaxConcurrent must be within 1-50
//   - the three timeouts must be positive
//   - HealthPort must be within 1024-65535
//
// Timeouts only need to be positive here; the env loader additionally
// enforces operational ranges so that a programmatically constructed
// config (as in tests) can use short timeouts.
func (c *WorkerConfig) Validate() error {
	var errs []error

	schedules := []struct {
		name  string
		value string
	}{
		{"collect schedule", c.CollectSchedule},
		{"watch schedule", c.WatchSchedule},
		{"digest schedule", c.DigestSchedule},
	}
	for _, s := range schedules {
		if err := config.ValidateCronSchedule(s.value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}

	if err := config.ValidateTimezone(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}

	if err := config.ValidateIntRange(c.NotifyMaxConcurrent, 1, 50); err != nil {
		errs = append(errs, fmt.Errorf("notify max concurrent: %w", err))
	}

	timeouts := []struct {
		name  string
		value time.Duration
	}{
		{"collect timeout", c.CollectTimeout},
		{"watch timeout", c.WatchTimeout},
		{"digest timeout", c.DigestTimeout},
	}
	for _, tt := range timeouts {
		if err := config.ValidatePositiveDuration(tt.value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", tt.name, err))
		}
	}

	if err := config.ValidateIntRange(c.HealthPort, 1024, 65535); err != nil {
		errs = append(errs, fmt.Errorf("health port: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}

	return nil
}

// LoadConfigFromEnv loads worker configuration from environment
// variables with validation and automatic fallback to defaults.
//
// Fail-open strategy: start from DefaultConfig, overlay each field from
// its environment variable, and on any parse or validation failure keep
// the default, log a warning, and record it in metrics. The function
// never returns a non-nil error; the error return exists so callers
// keep the conventional load signature.
//
// Environment variables:
//   - COLLECT_SCHEDULE: cron expression (default "*/15 * * * *")
//   - WATCH_SCHEDULE: cron expression (default "*/10 * * * *")
//   - DIGEST_SCHEDULE: cron expression (default "0 7 * * *")
//   - WORKER_TIMEZONE: IANA timezone name (default "Asia/Tokyo")
//   - NOTIFY_MAX_CONCURRENT: integer 1-50 (default 10)
//   - COLLECT_TIMEOUT: duration 1m-1h (default 10m)
//   - WATCH_TIMEOUT: duration 1m-4h (default 30m)
//   - DIGEST_TIMEOUT: duration 30s-1h (default 5m)
//   - WORKER_HEALTH_PORT: integer 1024-65535 (default 9091)
func LoadConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) (*WorkerConfig, error) {
	cfg := DefaultConfig()
	fallbackApplied := false

	// note records the fallback bookkeeping for one field: metrics by
	// the snake_case field label and a warning per message.
	note := func(field, label string, result config.ConfigLoadResult) {
		if !result.FallbackApplied {
			return
		}
		fallbackApplied = true
		metrics.RecordValidationError(label)
		metrics.RecordFallback(label, "default")
		for _, warning := range result.Warnings {
			logger.Warn("Configuration fallback applied",
				slog.String("field", field),
				slog.String("warning", warning))
		}
	}

	schedules := []struct {
		field  string
		label  string
		envKey string
		dst    *string
	}{
		{"CollectSchedule", "collect_schedule", "COLLECT_SCHEDULE", &cfg.CollectSchedule},
		{"WatchSchedule", "watch_schedule", "WATCH_SCHEDULE", &cfg.WatchSchedule},
		{"DigestSchedule", "digest_schedule", "DIGEST_SCHEDULE", &cfg.DigestSchedule},
	}
	for _, s := range schedules {
		result := config.LoadEnvWithFallback(s.envKey, *s.dst, config.ValidateCronSchedule)
		*s.dst = result.Value.(string)
		note(s.field, s.label, result)
	}

	result := config.LoadEnvWithFallback("WORKER_TIMEZONE", cfg.Timezone, config.ValidateTimezone)
	cfg.Timezone = result.Value.(string)
	note("Timezone", "timezone", result)

	result = config.LoadEnvInt("NOTIFY_MAX_CONCURRENT", cfg.NotifyMaxConcurrent, func(v int) error {
		return config.ValidateIntRange(v, 1, 50)
	})
	cfg.NotifyMaxConcurrent = result.Value.(int)
	note("NotifyMaxConcurrent", "notify_max_concurrent", result)

	timeouts := []struct {
		field  string
		label  string
		envKey string
		min    time.Duration
		max    time.Duration
		dst    *time.Duration
	}{
		{"CollectTimeout", "collect_timeout", "COLLECT_TIMEOUT", 1 * time.Minute, 1 * time.Hour, &cfg.CollectTimeout},
		{"WatchTimeout", "watch_timeout", "WATCH_TIMEOUT", 1 * time.Minute, 4 * time.Hour, &cfg.WatchTimeout},
		{"DigestTimeout", "digest_timeout", "DIGEST_TIMEOUT", 30 * time.Second, 1 * time.Hour, &cfg.DigestTimeout},
	}
	for _, tt := range timeouts {
		result := config.LoadEnvDuration(tt.envKey, *tt.dst, func(d time.Duration) error {
			return config.ValidateDuration(d, tt.min, tt.max)
		})
		*tt.dst = result.Value.(time.Duration)
		note(tt.field, tt.label, result)
	}

	result = config.LoadEnvInt("WORKER_HEALTH_PORT", cfg.HealthPort, func(v int) error {
		return config.ValidateIntRange(v, 1024, 65535)
	})
	cfg.HealthPort = result.Value.(int)
	note("HealthPort", "health_port", result)

	metrics.SetFallbackActive("", fallbackApplied)
	metrics.RecordLoadTimestamp()

	return &cfg, nil
}
