package fetcher_test

import (
	"testing"
	"time"

	"autotrade/internal/infra/fetcher"
)

func TestDefaultConfig(t *testing.T) {
	cfg := fetcher.DefaultConfig()

	want := fetcher.ContentFetchConfig{
		Enabled:        true,
		Threshold:      1500,
		Timeout:        10 * time.Second,
		Parallelism:    10,
		MaxBodySize:    10 * 1024 * 1024,
		MaxRedirects:   5,
		DenyPrivateIPs: true,
	}
	if cfg != want {
		t.Errorf("DefaultConfig() = %+v, want %+v", cfg, want)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid, got error: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*fetcher.ContentFetchConfig)
		wantErr bool
	}{
		{
			name:    "defaults",
			mutate:  func(c *fetcher.ContentFetchConfig) {},
			wantErr: false,
		},
		{
			name:    "zero threshold means always fetch",
			mutate:  func(c *fetcher.ContentFetchConfig) { c.Threshold = 0 },
			wantErr: false,
		},
		{
			name:    "negative threshold",
			mutate:  func(c *fetcher.ContentFetchConfig) { c.Threshold = -1 },
			wantErr: true,
		},
		{
			name:    "zero timeout",
			mutate:  func(c *fetcher.ContentFetchConfig) { c.Timeout = 0 },
			wantErr: true,
		},
		{
			name:    "negative timeout",
			mutate:  func(c *fetcher.ContentFetchConfig) { c.Timeout = -1 * time.Second },
			wantErr: true,
		},
		{
			name:    "zero parallelism",
			mutate:  func(c *fetcher.ContentFetchConfig) { c.Parallelism = 0 },
			wantErr: true,
		},
		{
			name:    "parallelism at bounds",
			mutate:  func(c *fetcher.ContentFetchConfig) { c.Parallelism = 50 },
			wantErr: false,
		},
		{
			name:    "parallelism above bounds",
			mutate:  func(c *fetcher.ContentFetchConfig) { c.Parallelism = 51 },
			wantErr: true,
		},
		{
			name:    "body size below 1KB",
			mutate:  func(c *fetcher.ContentFetchConfig) { c.MaxBodySize = 500 },
			wantErr: true,
		},
		{
			name:    "body size at bounds",
			mutate:  func(c *fetcher.ContentFetchConfig) { c.MaxBodySize = 100 * 1024 * 1024 },
			wantErr: false,
		},
		{
			name:    "body size above 100MB",
			mutate:  func(c *fetcher.ContentFetchConfig) { c.MaxBodySize = 200 * 1024 * 1024 },
			wantErr: true,
		},
		{
			name:    "negative redirects",
			mutate:  func(c *fetcher.ContentFetchConfig) { c.MaxRedirects = -1 },
			wantErr: true,
		},
		{
			name:    "zero redirects disables following",
			mutate:  func(c *fetcher.ContentFetchConfig) { c.MaxRedirects = 0 },
			wantErr: false,
		},
		{
			name:    "redirects above bounds",
			mutate:  func(c *fetcher.ContentFetchConfig) { c.MaxRedirects = 11 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := fetcher.DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Run("defaults when unset", func(t *testing.T) {
		// Empty values count as unset, so this also shields the test
		// from variables leaking in from the host environment.
		for _, envVar := range []string{
			"CONTENT_FETCH_ENABLED",
			"CONTENT_FETCH_THRESHOLD",
			"CONTENT_FETCH_TIMEOUT",
			"CONTENT_FETCH_PARALLELISM",
			"CONTENT_FETCH_MAX_BODY_SIZE",
			"CONTENT_FETCH_MAX_REDIRECTS",
			"CONTENT_FETCH_DENY_PRIVATE_IPS",
		} {
			t.Setenv(envVar, "")
		}

		cfg, err := fetcher.LoadConfigFromEnv()
		if err != nil {
			t.Fatalf("LoadConfigFromEnv() error = %v", err)
		}
		if cfg != fetcher.DefaultConfig() {
			t.Errorf("expected defaults, got %+v", cfg)
		}
	})

	t.Run("overrides from environment", func(t *testing.T) {
		t.Setenv("CONTENT_FETCH_ENABLED", "false")
		t.Setenv("CONTENT_FETCH_THRESHOLD", "2000")
		t.Setenv("CONTENT_FETCH_TIMEOUT", "20s")
		t.Setenv("CONTENT_FETCH_PARALLELISM", "15")
		t.Setenv("CONTENT_FETCH_MAX_BODY_SIZE", "20971520")
		t.Setenv("CONTENT_FETCH_MAX_REDIRECTS", "3")
		t.Setenv("CONTENT_FETCH_DENY_PRIVATE_IPS", "false")

		cfg, err := fetcher.LoadConfigFromEnv()
		if err != nil {
			t.Fatalf("LoadConfigFromEnv() error = %v", err)
		}

		want := fetcher.ContentFetchConfig{
			Enabled:        false,
			Threshold:      2000,
			Timeout:        20 * time.Second,
			Parallelism:    15,
			MaxBodySize:    20 * 1024 * 1024,
			MaxRedirects:   3,
			DenyPrivateIPs: false,
		}
		if cfg != want {
			t.Errorf("LoadConfigFromEnv() = %+v, want %+v", cfg, want)
		}
	})

	t.Run("partial overrides keep remaining defaults", func(t *testing.T) {
		t.Setenv("CONTENT_FETCH_THRESHOLD", "3000")
		t.Setenv("CONTENT_FETCH_PARALLELISM", "20")

		cfg, err := fetcher.LoadConfigFromEnv()
		if err != nil {
			t.Fatalf("LoadConfigFromEnv() error = %v", err)
		}

		want := fetcher.DefaultConfig()
		want.Threshold = 3000
		want.Parallelism = 20
		if cfg != want {
			t.Errorf("LoadConfigFromEnv() = %+v, want %+v", cfg, want)
		}
	})
}

// Malformed values must surface as errors so the worker disables the
// feature instead of fetching with a half-applied configuration.
func TestLoadConfigFromEnv_InvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		envVar string
		value  string
	}{
		{name: "threshold not a number", envVar: "CONTENT_FETCH_THRESHOLD", value: "abc"},
		{name: "timeout without unit", envVar: "CONTENT_FETCH_TIMEOUT", value: "10"},
		{name: "parallelism not a number", envVar: "CONTENT_FETCH_PARALLELISM", value: "many"},
		{name: "body size not a number", envVar: "CONTENT_FETCH_MAX_BODY_SIZE", value: "huge"},
		{name: "redirects not a number", envVar: "CONTENT_FETCH_MAX_REDIRECTS", value: "few"},
		{name: "threshold fails validation", envVar: "CONTENT_FETCH_THRESHOLD", value: "-100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.envVar, tt.value)

			if _, err := fetcher.LoadConfigFromEnv(); err == nil {
				t.Errorf("expected error for %s=%q, got nil", tt.envVar, tt.value)
			}
		})
	}
}
