package fetcher

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"autotrade/internal/pkg/config"
)

// ContentFetchConfig controls the full-article fetch that enriches short
// feed items before keyword matching. The limits keep a hostile or
// broken page from hurting the watch run: private addresses are refused,
// bodies are capped, and redirect chains are bounded.
type ContentFetchConfig struct {
	// Enabled toggles page fetching. When false the watch pipeline
	// matches against feed-provided text only. Default: true
	Enabled bool

	// Threshold is the feed content length (in characters) below which
	// the page is fetched; items already carrying this much text skip
	// the fetch. Zero always fetches. Default: 1500
	Threshold int

	// Timeout bounds a single page request. Default: 10s
	Timeout time.Duration

	// Parallelism caps concurrent page fetches. Range: 1-50. Default: 10
	Parallelism int

	// MaxBodySize caps the response body in bytes, enforced while
	// reading rather than trusted from the Content-Length header.
	// Range: 1KB-100MB. Default: 10MB
	MaxBodySize int64

	// MaxRedirects bounds the redirect chain; every hop is revalidated
	// against the private-address rules. Range: 0-10. Default: 5
	MaxRedirects int

	// DenyPrivateIPs refuses loopback, RFC 1918, and link-local
	// targets. Only tests against httptest fixtures turn this off.
	// Default: true
	DenyPrivateIPs bool
}

// DefaultConfig returns the production defaults: fetching on, private
// addresses denied, a 10MB body cap, and five redirects.
func DefaultConfig() ContentFetchConfig {
	return ContentFetchConfig{
		Enabled:        true,
		Threshold:      1500,
		Timeout:        10 * time.Second,
		Parallelism:    10,
		MaxBodySize:    10 * 1024 * 1024,
		MaxRedirects:   5,
		DenyPrivateIPs: true,
	}
}

// Validate checks every field and aggregates all failures into one
// error. Zero Threshold and zero MaxRedirects are legal: the former
// always fetches, the latter refuses any redirect.
func (c *ContentFetchConfig) Validate() error {
	var errs []error

	if c.Threshold < 0 {
		errs = append(errs, fmt.Errorf("threshold: must be non-negative, got %d", c.Threshold))
	}

	if err := config.ValidatePositiveDuration(c.Timeout); err != nil {
		errs = append(errs, fmt.Errorf("timeout: %w", err))
	}

	if err := config.ValidateIntRange(c.Parallelism, 1, 50); err != nil {
		errs = append(errs, fmt.Errorf("parallelism: %w", err))
	}

	const minBody, maxBody = int64(1024), int64(100 * 1024 * 1024)
	if c.MaxBodySize < minBody || c.MaxBodySize > maxBody {
		errs = append(errs, fmt.Errorf("max body size: must be between %d and %d bytes, got %d",
			minBody, maxBody, c.MaxBodySize))
	}

	if err := config.ValidateIntRange(c.MaxRedirects, 0, 10); err != nil {
		errs = append(errs, fmt.Errorf("max redirects: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}

	return nil
}

// LoadConfigFromEnv reads the CONTENT_FETCH_* variables on top of the
// defaults; empty variables count as unset. Unlike the worker config
// this loader fails closed: any malformed or out-of-range value is an
// error, and the caller disables the feature instead of fetching with a
// half-applied configuration.
//
// Variables: CONTENT_FETCH_ENABLED, CONTENT_FETCH_THRESHOLD,
// CONTENT_FETCH_TIMEOUT, CONTENT_FETCH_PARALLELISM,
// CONTENT_FETCH_MAX_BODY_SIZE, CONTENT_FETCH_MAX_REDIRECTS,
// CONTENT_FETCH_DENY_PRIVATE_IPS.
func LoadConfigFromEnv() (ContentFetchConfig, error) {
	cfg := DefaultConfig()

	if val := os.Getenv("CONTENT_FETCH_ENABLED"); val != "" {
		cfg.Enabled = val == "true"
	}
	if val := os.Getenv("CONTENT_FETCH_DENY_PRIVATE_IPS"); val != "" {
		cfg.DenyPrivateIPs = val == "true"
	}

	intFields := []struct {
		envKey string
		dst    *int
	}{
		{"CONTENT_FETCH_THRESHOLD", &cfg.Threshold},
		{"CONTENT_FETCH_PARALLELISM", &cfg.Parallelism},
		{"CONTENT_FETCH_MAX_REDIRECTS", &cfg.MaxRedirects},
	}
	for _, f := range intFields {
		val := os.Getenv(f.envKey)
		if val == "" {
			continue
		}
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return cfg, fmt.Errorf("invalid %s: %v", f.envKey, err)
		}
		*f.dst = parsed
	}

	if val := os.Getenv("CONTENT_FETCH_TIMEOUT"); val != "" {
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return cfg, fmt.Errorf("invalid CONTENT_FETCH_TIMEOUT: %v (expected a duration like \"10s\")", err)
		}
		cfg.Timeout = parsed
	}

	if val := os.Getenv("CONTENT_FETCH_MAX_BODY_SIZE"); val != "" {
		parsed, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid CONTENT_FETCH_MAX_BODY_SIZE: %v", err)
		}
		cfg.MaxBodySize = parsed
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("content fetch configuration: %w", err)
	}

	return cfg, nil
}
