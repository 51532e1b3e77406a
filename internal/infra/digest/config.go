package digest

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	// defaultCharLimit is the digest length budget when DIGEST_CHAR_LIMIT
	// is unset.
	defaultCharLimit = 900

	// minCharLimit is the minimum allowed character limit for digests.
	minCharLimit = 100

	// maxCharLimit is the maximum allowed character limit for digests.
	maxCharLimit = 5000
)

// ProviderConfig holds the settings shared by every digest provider.
// Claude and OpenAI read the same configuration, so switching providers
// never changes the digest contract.
type ProviderConfig struct {
	// CharacterLimit is the maximum number of characters in a digest.
	// Loaded from DIGEST_CHAR_LIMIT. Valid range: 100-5000. Default: 900.
	CharacterLimit int

	// Model is the provider model identifier. Empty selects the
	// provider's default model.
	Model string

	// MaxTokens is the maximum number of tokens for the API response.
	MaxTokens int

	// Timeout is the maximum duration for a single digest API call.
	Timeout time.Duration
}

// Validate checks the configuration and returns an error if invalid.
// Model may be empty: the provider fills in its own default.
func (c *ProviderConfig) Validate() error {
	if err := ValidateCharacterLimit(c.CharacterLimit); err != nil {
		return fmt.Errorf("invalid character limit: %w", err)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", c.MaxTokens)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	return nil
}

// LoadProviderConfig loads provider settings from environment variables.
// A malformed or out-of-range DIGEST_CHAR_LIMIT is an error rather than a
// silent fallback, so a typo cannot quietly change the digest length.
//
// Environment variables:
//   - DIGEST_CHAR_LIMIT: digest length budget (default: 900, range: 100-5000)
//   - DIGEST_MODEL: provider model override (default: provider-specific)
func LoadProviderConfig() (*ProviderConfig, error) {
	charLimit := defaultCharLimit

	if envLimit := os.Getenv("DIGEST_CHAR_LIMIT"); envLimit != "" {
		parsed, err := strconv.Atoi(envLimit)
		if err != nil {
			return nil, fmt.Errorf("invalid DIGEST_CHAR_LIMIT format: %s: %w", envLimit, err)
		}
		if err := ValidateCharacterLimit(parsed); err != nil {
			return nil, fmt.Errorf("DIGEST_CHAR_LIMIT out of valid range: %w", err)
		}
		charLimit = parsed
	}

	config := &ProviderConfig{
		CharacterLimit: charLimit,
		Model:          os.Getenv("DIGEST_MODEL"),
		MaxTokens:      1024,
		Timeout:        60 * time.Second,
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid digest configuration: %w", err)
	}

	return config, nil
}

// ValidateCharacterLimit validates that the character limit is within the
// valid range (100-5000). Returns a descriptive error when out of range.
func ValidateCharacterLimit(limit int) error {
	if limit < minCharLimit {
		return fmt.Errorf("character limit %d is below minimum %d", limit, minCharLimit)
	}
	if limit > maxCharLimit {
		return fmt.Errorf("character limit %d exceeds maximum %d", limit, maxCharLimit)
	}
	return nil
}
