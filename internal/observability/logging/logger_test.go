package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"autotrade/internal/common/runid"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decode parses the single JSON log line written to buf.
func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "log output should be valid JSON")
	return entry
}

func newBufferLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
		want     slog.Level
	}{
		{"unset defaults to info", "", slog.LevelInfo},
		{"debug", "debug", slog.LevelDebug},
		{"warn", "warn", slog.LevelWarn},
		{"error", "error", slog.LevelError},
		{"case insensitive", "DEBUG", slog.LevelDebug},
		{"unknown value defaults to info", "verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tt.logLevel)

			logger := NewLogger()
			require.NotNil(t, logger)

			ctx := context.Background()
			assert.True(t, logger.Enabled(ctx, tt.want), "configured level should be enabled")
			assert.False(t, logger.Enabled(ctx, tt.want-1), "levels below the configured one should be filtered")
		})
	}
}

func TestNewTextLogger(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")

	logger := NewTextLogger()
	require.NotNil(t, logger)

	assert.True(t, logger.Enabled(context.Background(), slog.LevelWarn))
	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo), "text logger should honor LOG_LEVEL too")
}

func TestWithRunID(t *testing.T) {
	var buf bytes.Buffer
	ctx := runid.WithRunID(context.Background(), "550e8400-e29b-41d4-a716-446655440000")

	logger := WithRunID(ctx, newBufferLogger(&buf))
	logger.Info("watch pass started")

	entry := decode(t, &buf)
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", entry["run_id"])
}

func TestWithRunID_NoRunID(t *testing.T) {
	var buf bytes.Buffer

	logger := WithRunID(context.Background(), newBufferLogger(&buf))
	logger.Info("no run context")

	entry := decode(t, &buf)
	assert.NotContains(t, entry, "run_id", "bare contexts should not grow a run_id field")
}

func TestWithFields(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]interface{}
	}{
		{"single field", map[string]interface{}{"market": "Bitstamp_BTC_USD_1mins"}},
		{"mixed types", map[string]interface{}{
			"market":  "Kraken_ETH_EUR_5mins",
			"job":     "collect",
			"bars":    120,
			"partial": true,
		}},
		{"numeric fields", map[string]interface{}{"count": 42, "duration": 123.45}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer

			logger := WithFields(newBufferLogger(&buf), tt.fields)
			logger.Info("test message")

			entry := decode(t, &buf)
			for key, want := range tt.fields {
				require.Contains(t, entry, key)
				// encoding/json decodes every number as float64.
				if i, ok := want.(int); ok {
					want = float64(i)
				}
				assert.Equal(t, want, entry[key], "field %s", key)
			}
		})
	}
}

func TestWithFields_EmptyFields(t *testing.T) {
	var buf bytes.Buffer

	logger := WithFields(newBufferLogger(&buf), map[string]interface{}{})
	logger.Info("test message")

	entry := decode(t, &buf)
	assert.Equal(t, "test message", entry["msg"])
}

func TestFromContext(t *testing.T) {
	stored := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))

	tests := []struct {
		name string
		ctx  context.Context
		want *slog.Logger
	}{
		{"logger in context", WithLogger(context.Background(), stored), stored},
		{"no logger", context.Background(), slog.Default()},
		{"wrong type under the key", context.WithValue(context.Background(), loggerContextKey, "not a logger"), slog.Default()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Same(t, tt.want, FromContext(tt.ctx))
		})
	}
}

func TestWithLogger_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	ctx := WithLogger(context.Background(), logger)
	FromContext(ctx).Info("round trip")

	assert.Contains(t, buf.String(), "round trip")
}

// TestLogger_Integration chains run ID and field enrichment the way the
// job runners do before handing the logger to a use case.
func TestLogger_Integration(t *testing.T) {
	var buf bytes.Buffer
	ctx, id := runid.NewContext(context.Background())

	logger := WithRunID(ctx, newBufferLogger(&buf))
	logger = WithFields(logger, map[string]interface{}{
		"job":    "collect",
		"market": "Bitstamp_BTC_USD_1mins",
	})
	logger.Info("collected candles")

	entry := decode(t, &buf)
	assert.Equal(t, "collected candles", entry["msg"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, id, entry["run_id"])
	assert.Equal(t, "collect", entry["job"])
	assert.Equal(t, "Bitstamp_BTC_USD_1mins", entry["market"])
	assert.NotEmpty(t, entry["time"])
}

func BenchmarkLogger_WithFields(b *testing.B) {
	var buf bytes.Buffer
	baseLogger := newBufferLogger(&buf)

	fields := map[string]interface{}{
		"market": "Bitstamp_BTC_USD_1mins",
		"job":    "collect",
		"bars":   100,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger := WithFields(baseLogger, fields)
		logger.Info("benchmark message")
	}
}
