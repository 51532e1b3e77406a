package coinbase

import (
	"strings"
	"time"

	"autotrade/pkg/callguard"
	"autotrade/pkg/config"
)

// DefaultBaseURL is the production endpoint root of the Advanced Trade API.
const DefaultBaseURL = "https://api.coinbase.com"

// Config holds the construction-time settings of a Client.
type Config struct {
	// KeyName is the CDP API key name, e.g.
	// "organizations/{org}/apiKeys/{key}". It doubles as the JWT subject
	// and key ID.
	KeyName string

	// PrivateKey is the key's EC private key in PEM form.
	PrivateKey string

	// BaseURL overrides the endpoint root. Defaults to DefaultBaseURL.
	BaseURL string

	// Timeout is the per-request timeout. Zero uses the connection
	// layer's default.
	Timeout time.Duration

	// CallLimits overrides the registered call fields. Defaults to
	// config.LoadExchangeFieldLimits.
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
		c.CallLimits = config.LoadExchangeFieldLimits()
	}
	return c
}

// LoadConfigFromEnv builds a Config from the environment.
//
// Environment variables:
//   - COINBASE_KEY_NAME: CDP API key name (required)
//   - COINBASE_PRIVATE_KEY: EC private key PEM; literal \n sequences are
//     unfolded so the key can live on one env line
//   - EXCHANGE_ORDERS_MAX_WEIGHT / _WINDOW: order call budget
//   - EXCHANGE_MARKET_DATA_MAX_WEIGHT / _WINDOW: orderbook call budget
//   - EXCHANGE_ACCOUNT_MAX_WEIGHT / _WINDOW: balance and listing budget
func LoadConfigFromEnv() Config {
	pem := config.GetEnvString("COINBASE_PRIVATE_KEY", "")
	return Config{
		KeyName:    config.GetEnvString("COINBASE_KEY_NAME", ""),
		PrivateKey: strings.ReplaceAll(pem, `\n`, "\n"),
		CallLimits: config.LoadExchangeFieldLimits(),
	}
}
