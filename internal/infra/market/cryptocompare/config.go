package cryptocompare

import (
	"time"

	"autotrade/pkg/callguard"
	"autotrade/pkg/config"
)

// DefaultBaseURL is the production endpoint root of the min-api service.
const DefaultBaseURL = "https://min-api.cryptocompare.com"

// Config holds the construction-time settings of a Client.
type Config struct {
	// APIKey authorizes requests. Empty is accepted: the service answers
	// unauthenticated calls under a reduced budget.
	APIKey string

	// BaseURL overrides the endpoint root. Defaults to DefaultBaseURL.
	BaseURL string

	// Timeout is the per-request timeout. Zero uses the connection
	// layer's default.
	Timeout time.Duration

	// CallLimits overrides the registered call fields. Defaults to
	// config.LoadMarketDataFieldLimits.
	CallLimits map[string]callguard.FieldLimit

	// Clock overrides the limiter's clock. Defaults to the system clock.
	Clock callguard.Clock

	// Metrics receives the limiter's admission events. Defaults to noop.
	Metrics callguard.Metrics
}

// withDefaults fills the zero-valued fields.
func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.CallLimits == nil {
		c.CallLimits = config.LoadMarketDataFieldLimits()
	}
	return c
}

// LoadConfigFromEnv builds a Config from the environment.
//
// Environment variables:
//   - CRYPTOCOMPARE_API_KEY: API key (default: none)
//   - MARKETDATA_HISTOMINUTE_MAX_WEIGHT / _WINDOW: histominute call budget
//   - MARKETDATA_DEFAULT_MAX_WEIGHT / _WINDOW: budget of all other calls
func LoadConfigFromEnv() Config {
	return Config{
		APIKey:     config.GetEnvString("CRYPTOCOMPARE_API_KEY", ""),
		CallLimits: config.LoadMarketDataFieldLimits(),
	}
}
