package worker

import (
	"bytes"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.CollectSchedule != "*/15 * * * *" {
		t.Errorf("Expected CollectSchedule '*/15 * * * *', got '%s'", config.CollectSchedule)
	}

	if config.WatchSchedule != "*/10 * * * *" {
		t.Errorf("Expected WatchSchedule '*/10 * * * *', got '%s'", config.WatchSchedule)
	}

	if config.DigestSchedule != "0 7 * * *" {
		t.Errorf("Expected DigestSchedule '0 7 * * *', got '%s'", config.DigestSchedule)
	}

	if config.Timezone != "Asia/Tokyo" {
		t.Errorf("Expected Timezone 'Asia/Tokyo', got '%s'", config.Timezone)
	}

	if config.NotifyMaxConcurrent != 10 {
		t.Errorf("Expected NotifyMaxConcurrent 10, got %d", config.NotifyMaxConcurrent)
	}

	if config.CollectTimeout != 10*time.Minute {
		t.Errorf("Expected CollectTimeout 10m, got %v", config.CollectTimeout)
	}

	if config.WatchTimeout != 30*time.Minute {
		t.Errorf("Expected WatchTimeout 30m, got %v", config.WatchTimeout)
	}

	if config.DigestTimeout != 5*time.Minute {
		t.Errorf("Expected DigestTimeout 5m, got %v", config.DigestTimeout)
	}

	if config.HealthPort != 9091 {
		t.Errorf("Expected HealthPort 9091, got %d", config.HealthPort)
	}
}

func TestDefaultConfig_Immutability(t *testing.T) {
	// Each call to DefaultConfig should return a new instance
	config1 := DefaultConfig()
	config2 := DefaultConfig()

	config1.CollectSchedule = "0 6 * * *"
	config1.NotifyMaxConcurrent = 20

	if config2.CollectSchedule != "*/15 * * * *" {
		t.Error("DefaultConfig returned a shared instance instead of a new one")
	}

	if config2.NotifyMaxConcurrent != 10 {
		t.Error("DefaultConfig returned a shared instance instead of a new one")
	}
}

func TestWorkerConfig_Validate_ValidConfig(t *testing.T) {
	config := DefaultConfig()

	err := config.Validate()
	if err != nil {
		t.Errorf("DefaultConfig should be valid, got error: %v", err)
	}
}

func TestWorkerConfig_Validate_InvalidSchedules(t *testing.T) {
	tests := []struct {
		name string
		set  func(*WorkerConfig)
	}{
		{"invalid collect schedule", func(c *WorkerConfig) { c.CollectSchedule = "invalid cron" }},
		{"empty collect schedule", func(c *WorkerConfig) { c.CollectSchedule = "" }},
		{"invalid watch schedule", func(c *WorkerConfig) { c.WatchSchedule = "not a schedule" }},
		{"empty watch schedule", func(c *WorkerConfig) { c.WatchSchedule = "" }},
		{"invalid digest schedule", func(c *WorkerConfig) { c.DigestSchedule = "61 * * * *" }},
		{"empty digest schedule", func(c *WorkerConfig) { c.DigestSchedule = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.set(&config)

			if err := config.Validate(); err == nil {
				t.Error("Expected validation error for invalid schedule")
			}
		})
	}
}

func TestWorkerConfig_Validate_InvalidTimezone(t *testing.T) {
	config := DefaultConfig()
	config.Timezone = "Invalid/Timezone"

	if err := config.Validate(); err == nil {
		t.Error("Expected validation error for invalid timezone")
	}
}

func TestWorkerConfig_Validate_EmptyTimezone(t *testing.T) {
	config := DefaultConfig()
	config.Timezone = ""

	if err := config.Validate(); err == nil {
		t.Error("Expected validation error for empty timezone")
	}
}

func TestWorkerConfig_Validate_NotifyMaxConcurrentBoundary(t *testing.T) {
	tests := []struct {
		name  string
		value int
		valid bool
	}{
		{"Min valid (1)", 1, true},
		{"Max valid (50)", 50, true},
		{"Below min (0)", 0, false},
		{"Negative", -1, false},
		{"Above max (51)", 51, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			config.NotifyMaxConcurrent = tt.value

			err := config.Validate()
			if tt.valid && err != nil {
				t.Errorf("Expected valid config, got error: %v", err)
			}
			if !tt.valid && err == nil {
				t.Errorf("Expected validation error for value %d", tt.value)
			}
		})
	}
}

func TestWorkerConfig_Validate_NonPositiveTimeouts(t *testing.T) {
	tests := []struct {
		name string
		set  func(*WorkerConfig)
	}{
		{"zero collect timeout", func(c *WorkerConfig) { c.CollectTimeout = 0 }},
		{"negative collect timeout", func(c *WorkerConfig) { c.CollectTimeout = -1 * time.Minute }},
		{"zero watch timeout", func(c *WorkerConfig) { c.WatchTimeout = 0 }},
		{"negative watch timeout", func(c *WorkerConfig) { c.WatchTimeout = -1 * time.Second }},
		{"zero digest timeout", func(c *WorkerConfig) { c.DigestTimeout = 0 }},
		{"negative digest timeout", func(c *WorkerConfig) { c.DigestTimeout = -5 * time.Minute }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.set(&config)

			if err := config.Validate(); err == nil {
				t.Error("Expected validation error for non-positive timeout")
			}
		})
	}
}

func TestWorkerConfig_Validate_ShortTimeoutsAllowed(t *testing.T) {
	// Validate only requires positive timeouts; operational ranges are
	// the env loader's job. Programmatically built configs may use
	// short timeouts.
	config := DefaultConfig()
	config.CollectTimeout = 1 * time.Second
	config.WatchTimeout = 1 * time.Second
	config.DigestTimeout = 1 * time.Second

	if err := config.Validate(); err != nil {
		t.Errorf("Expected short positive timeouts to be valid, got error: %v", err)
	}
}

func TestWorkerConfig_Validate_HealthPortBoundary(t *testing.T) {
	tests := []struct {
		name  string
		port  int
		valid bool
	}{
		{"Min valid (1024)", 1024, true},
		{"Max valid (65535)", 65535, true},
		{"Below min (1023)", 1023, false},
		{"Above max (65536)", 65536, false},
		{"Zero", 0, false},
		{"Negative", -1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			config.HealthPort = tt.port

			err := config.Validate()
			if tt.valid && err != nil {
				t.Errorf("Expected valid port %d, got error: %v", tt.port, err)
			}
			if !tt.valid && err == nil {
				t.Errorf("Expected validation error for port %d", tt.port)
			}
		})
	}
}

func TestWorkerConfig_Validate_MultipleErrors(t *testing.T) {
	config := WorkerConfig{
		CollectSchedule:     "invalid",
		WatchSchedule:       "also invalid",
		DigestSchedule:      "",
		Timezone:            "Invalid/Zone",
		NotifyMaxConcurrent: 0,
		CollectTimeout:      0,
		WatchTimeout:        -1 * time.Minute,
		DigestTimeout:       0,
		HealthPort:          100,
	}

	err := config.Validate()
	if err == nil {
		t.Fatal("Expected validation errors for multiple invalid fields")
	}

	if !strings.Contains(err.Error(), "validation failed") {
		t.Errorf("Expected aggregated validation error, got: %v", err)
	}
}

func TestWorkerConfig_Validate_ValidCustomConfig(t *testing.T) {
	config := WorkerConfig{
		CollectSchedule:     "0 * * * *",
		WatchSchedule:       "*/5 * * * *",
		DigestSchedule:      "30 6 * * 1-5",
		Timezone:            "UTC",
		NotifyMaxConcurrent: 20,
		CollectTimeout:      20 * time.Minute,
		WatchTimeout:        1 * time.Hour,
		DigestTimeout:       10 * time.Minute,
		HealthPort:          8080,
	}

	if err := config.Validate(); err != nil {
		t.Errorf("Expected valid custom config, got error: %v", err)
	}
}

// globalTestMetrics is a shared metrics instance for tests to avoid
// duplicate Prometheus registration errors. In production, metrics are
// created once at startup, so this simulates that behavior.
var globalTestMetrics = NewWorkerMetrics()

// workerEnvKeys lists every environment variable LoadConfigFromEnv reads.
var workerEnvKeys = []string{
	"COLLECT_SCHEDULE",
	"WATCH_SCHEDULE",
	"DIGEST_SCHEDULE",
	"WORKER_TIMEZONE",
	"NOTIFY_MAX_CONCURRENT",
	"COLLECT_TIMEOUT",
	"WATCH_TIMEOUT",
	"DIGEST_TIMEOUT",
	"WORKER_HEALTH_PORT",
}

// setEnv is a test helper that sets an environment variable and fails the test if it errors
func setEnv(t *testing.T, key, value string) {
	t.Helper()
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("Failed to set %s: %v", key, err)
	}
}

// unsetEnv is a test helper that unsets an environment variable and fails the test if it errors
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("Failed to unset %s: %v", key, err)
	}
}

// clearWorkerEnv removes every worker environment variable.
func clearWorkerEnv(t *testing.T) {
	t.Helper()
	for _, key := range workerEnvKeys {
		unsetEnv(t, key)
	}
}

func TestLoadConfigFromEnv_AllEnvVarsValid(t *testing.T) {
	setEnv(t, "COLLECT_SCHEDULE", "0 * * * *")
	setEnv(t, "WATCH_SCHEDULE", "*/5 * * * *")
	setEnv(t, "DIGEST_SCHEDULE", "0 6 * * *")
	setEnv(t, "WORKER_TIMEZONE", "UTC")
	setEnv(t, "NOTIFY_MAX_CONCURRENT", "20")
	setEnv(t, "COLLECT_TIMEOUT", "20m")
	setEnv(t, "WATCH_TIMEOUT", "1h")
	setEnv(t, "DIGEST_TIMEOUT", "10m")
	setEnv(t, "WORKER_HEALTH_PORT", "8080")
	defer clearWorkerEnv(t)

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	config, err := LoadConfigFromEnv(logger, globalTestMetrics)

	// Should not return error (fail-open strategy)
	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}

	if config.CollectSchedule != "0 * * * *" {
		t.Errorf("Expected CollectSchedule '0 * * * *', got '%s'", config.CollectSchedule)
	}
	if config.WatchSchedule != "*/5 * * * *" {
		t.Errorf("Expected WatchSchedule '*/5 * * * *', got '%s'", config.WatchSchedule)
	}
	if config.DigestSchedule != "0 6 * * *" {
		t.Errorf("Expected DigestSchedule '0 6 * * *', got '%s'", config.DigestSchedule)
	}
	if config.Timezone != "UTC" {
		t.Errorf("Expected Timezone 'UTC', got '%s'", config.Timezone)
	}
	if config.NotifyMaxConcurrent != 20 {
		t.Errorf("Expected NotifyMaxConcurrent 20, got %d", config.NotifyMaxConcurrent)
	}
	if config.CollectTimeout != 20*time.Minute {
		t.Errorf("Expected CollectTimeout 20m, got %v", config.CollectTimeout)
	}
	if config.WatchTimeout != 1*time.Hour {
		t.Errorf("Expected WatchTimeout 1h, got %v", config.WatchTimeout)
	}
	if config.DigestTimeout != 10*time.Minute {
		t.Errorf("Expected DigestTimeout 10m, got %v", config.DigestTimeout)
	}
	if config.HealthPort != 8080 {
		t.Errorf("Expected HealthPort 8080, got %d", config.HealthPort)
	}

	// No warnings should be logged
	if buf.Len() > 0 {
		t.Errorf("Expected no warnings, got: %s", buf.String())
	}
}

func TestLoadConfigFromEnv_MissingEnvVars(t *testing.T) {
	clearWorkerEnv(t)

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	config, err := LoadConfigFromEnv(logger, globalTestMetrics)

	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}

	// Should use default values
	defaults := DefaultConfig()
	if *config != defaults {
		t.Errorf("Expected default config %+v, got %+v", defaults, *config)
	}

	// No warnings should be logged (missing env vars don't trigger fallback)
	if buf.Len() > 0 {
		t.Errorf("Expected no warnings, got: %s", buf.String())
	}
}

func TestLoadConfigFromEnv_InvalidSchedules(t *testing.T) {
	tests := []struct {
		name   string
		envKey string
		field  string
	}{
		{"collect", "COLLECT_SCHEDULE", "CollectSchedule"},
		{"watch", "WATCH_SCHEDULE", "WatchSchedule"},
		{"digest", "DIGEST_SCHEDULE", "DigestSchedule"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnv(t, tt.envKey, "invalid cron")
			defer unsetEnv(t, tt.envKey)

			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))

			config, err := LoadConfigFromEnv(logger, globalTestMetrics)

			if err != nil {
				t.Errorf("Expected no error, got: %v", err)
			}

			// The invalid field falls back, everything else keeps defaults
			defaults := DefaultConfig()
			if *config != defaults {
				t.Errorf("Expected default config, got %+v", *config)
			}

			logOutput := buf.String()
			if !strings.Contains(logOutput, "Configuration fallback applied") {
				t.Error("Expected fallback warning in logs")
			}
			if !strings.Contains(logOutput, tt.field) {
				t.Errorf("Expected %s field in warning", tt.field)
			}
		})
	}
}

func TestLoadConfigFromEnv_InvalidTimezone(t *testing.T) {
	setEnv(t, "WORKER_TIMEZONE", "Invalid/Timezone")
	defer unsetEnv(t, "WORKER_TIMEZONE")

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	config, err := LoadConfigFromEnv(logger, globalTestMetrics)

	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}

	if config.Timezone != DefaultConfig().Timezone {
		t.Errorf("Expected default Timezone, got '%s'", config.Timezone)
	}

	logOutput := buf.String()
	if !strings.Contains(logOutput, "Configuration fallback applied") {
		t.Error("Expected fallback warning in logs")
	}
	if !strings.Contains(logOutput, "Timezone") {
		t.Error("Expected Timezone field in warning")
	}
}

func TestLoadConfigFromEnv_InvalidNotifyMaxConcurrent(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"Zero", "0"},
		{"Negative", "-1"},
		{"Too high", "51"},
		{"Invalid format", "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnv(t, "NOTIFY_MAX_CONCURRENT", tt.value)
			defer unsetEnv(t, "NOTIFY_MAX_CONCURRENT")

			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))

			config, err := LoadConfigFromEnv(logger, globalTestMetrics)

			if err != nil {
				t.Errorf("Expected no error, got: %v", err)
			}

			if config.NotifyMaxConcurrent != DefaultConfig().NotifyMaxConcurrent {
				t.Errorf("Expected default NotifyMaxConcurrent, got %d", config.NotifyMaxConcurrent)
			}

			if !strings.Contains(buf.String(), "Configuration fallback applied") {
				t.Error("Expected fallback warning in logs")
			}
		})
	}
}

func TestLoadConfigFromEnv_TimeoutRanges(t *testing.T) {
	// The loader enforces operational ranges per timeout: collect
	// 1m to 1h, watch 1m to 4h, digest 30s to 1h.
	tests := []struct {
		name     string
		envKey   string
		value    string
		fallback bool
	}{
		{"collect in range", "COLLECT_TIMEOUT", "30m", false},
		{"collect too short", "COLLECT_TIMEOUT", "10s", true},
		{"collect too long", "COLLECT_TIMEOUT", "2h", true},
		{"watch in range", "WATCH_TIMEOUT", "2h", false},
		{"watch too short", "WATCH_TIMEOUT", "30s", true},
		{"watch too long", "WATCH_TIMEOUT", "5h", true},
		{"digest in range", "DIGEST_TIMEOUT", "1m", false},
		{"digest too short", "DIGEST_TIMEOUT", "10s", true},
		{"digest too long", "DIGEST_TIMEOUT", "2h", true},
		{"invalid format", "WATCH_TIMEOUT", "invalid", true},
		{"negative", "COLLECT_TIMEOUT", "-5m", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnv(t, tt.envKey, tt.value)
			defer unsetEnv(t, tt.envKey)

			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))

			_, err := LoadConfigFromEnv(logger, globalTestMetrics)

			if err != nil {
				t.Errorf("Expected no error, got: %v", err)
			}

			hasWarning := strings.Contains(buf.String(), "Configuration fallback applied")
			if tt.fallback && !hasWarning {
				t.Errorf("Expected fallback warning for %s=%s", tt.envKey, tt.value)
			}
			if !tt.fallback && hasWarning {
				t.Errorf("Expected no fallback for %s=%s, got: %s", tt.envKey, tt.value, buf.String())
			}
		})
	}
}

func TestLoadConfigFromEnv_InvalidHealthPort(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"Too low", "1023"},
		{"Too high", "65536"},
		{"Zero", "0"},
		{"Invalid format", "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnv(t, "WORKER_HEALTH_PORT", tt.value)
			defer unsetEnv(t, "WORKER_HEALTH_PORT")

			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))

			config, err := LoadConfigFromEnv(logger, globalTestMetrics)

			if err != nil {
				t.Errorf("Expected no error, got: %v", err)
			}

			if config.HealthPort != DefaultConfig().HealthPort {
				t.Errorf("Expected default HealthPort, got %d", config.HealthPort)
			}

			if !strings.Contains(buf.String(), "Configuration fallback applied") {
				t.Error("Expected fallback warning in logs")
			}
		})
	}
}

func TestLoadConfigFromEnv_MultipleInvalidFields(t *testing.T) {
	setEnv(t, "COLLECT_SCHEDULE", "invalid")
	setEnv(t, "WATCH_SCHEDULE", "invalid")
	setEnv(t, "DIGEST_SCHEDULE", "invalid")
	setEnv(t, "WORKER_TIMEZONE", "Invalid/Zone")
	setEnv(t, "NOTIFY_MAX_CONCURRENT", "0")
	setEnv(t, "COLLECT_TIMEOUT", "invalid")
	setEnv(t, "WATCH_TIMEOUT", "invalid")
	setEnv(t, "DIGEST_TIMEOUT", "invalid")
	setEnv(t, "WORKER_HEALTH_PORT", "100")
	defer clearWorkerEnv(t)

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	config, err := LoadConfigFromEnv(logger, globalTestMetrics)

	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}

	// All fields should use default values
	defaults := DefaultConfig()
	if *config != defaults {
		t.Errorf("Expected default config %+v, got %+v", defaults, *config)
	}

	// One warning per invalid field
	warningCount := strings.Count(buf.String(), "Configuration fallback applied")
	if warningCount != 9 {
		t.Errorf("Expected 9 warnings, got %d", warningCount)
	}
}

func TestLoadConfigFromEnv_PartiallyValid(t *testing.T) {
	setEnv(t, "COLLECT_SCHEDULE", "0 * * * *") // Valid
	setEnv(t, "WATCH_SCHEDULE", "invalid")     // Invalid
	setEnv(t, "WORKER_TIMEZONE", "UTC")        // Valid
	setEnv(t, "WATCH_TIMEOUT", "invalid")      // Invalid
	setEnv(t, "WORKER_HEALTH_PORT", "8080")    // Valid
	defer clearWorkerEnv(t)

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	config, err := LoadConfigFromEnv(logger, globalTestMetrics)

	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}

	// Valid fields should use environment values
	if config.CollectSchedule != "0 * * * *" {
		t.Errorf("Expected CollectSchedule '0 * * * *', got '%s'", config.CollectSchedule)
	}
	if config.Timezone != "UTC" {
		t.Errorf("Expected Timezone 'UTC', got '%s'", config.Timezone)
	}
	if config.HealthPort != 8080 {
		t.Errorf("Expected HealthPort 8080, got %d", config.HealthPort)
	}

	// Invalid fields should use defaults
	if config.WatchSchedule != DefaultConfig().WatchSchedule {
		t.Errorf("Expected default WatchSchedule, got '%s'", config.WatchSchedule)
	}
	if config.WatchTimeout != DefaultConfig().WatchTimeout {
		t.Errorf("Expected default WatchTimeout, got %v", config.WatchTimeout)
	}

	// Only the two invalid fields should warn
	warningCount := strings.Count(buf.String(), "Configuration fallback applied")
	if warningCount != 2 {
		t.Errorf("Expected 2 warnings, got %d", warningCount)
	}
}

func TestLoadConfigFromEnv_ResultIsValid(t *testing.T) {
	// Whatever the environment contains, the loaded config must pass
	// Validate. Fail-open only works if the fallbacks are themselves
	// valid.
	setEnv(t, "COLLECT_SCHEDULE", "garbage")
	setEnv(t, "NOTIFY_MAX_CONCURRENT", "-3")
	defer clearWorkerEnv(t)

	logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))

	config, err := LoadConfigFromEnv(logger, globalTestMetrics)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if err := config.Validate(); err != nil {
		t.Errorf("Loaded config should always validate, got: %v", err)
	}
}
