package config

import (
	"log/slog"
	"time"

	"autotrade/pkg/callguard"
)

// LoadMarketDataFieldLimits loads the call field limits for the market data
// provider connection from environment variables.
//
// This function reads the weight budgets for each CryptoCompare call field
// and returns a map suitable for callguard.Limiter.RegisterFields. If any
// values are invalid, it logs warnings and uses safe defaults instead of
// failing.
//
// Environment variables:
//   - MARKETDATA_HISTOMINUTE_MAX_WEIGHT: histominute weight budget (default: 300)
//   - MARKETDATA_HISTOMINUTE_WINDOW: histominute window (default: 1m)
//   - MARKETDATA_DEFAULT_MAX_WEIGHT: budget for all other endpoints (default: 50)
//   - MARKETDATA_DEFAULT_WINDOW: window for all other endpoints (default: 1m)
//
// Returns:
//   - map[string]callguard.FieldLimit: Validated field limits
//
// Example:
//
//	limiter := callguard.NewLimiter(cfg)
//	if err := limiter.RegisterFields(config.LoadMarketDataFieldLimits()); err != nil {
//	    return err
//	}
func LoadMarketDataFieldLimits() map[string]callguard.FieldLimit {
	return map[string]callguard.FieldLimit{
		"histominute": loadFieldLimit("MARKETDATA_HISTOMINUTE", 300, 1*time.Minute),
		"default":     loadFieldLimit("MARKETDATA_DEFAULT", 50, 1*time.Minute),
	}
}

// LoadExchangeFieldLimits loads the call field limits for the exchange
// binding from environment variables.
//
// Each trading operation class gets its own field so a burst of market data
// polling can never starve order placement.
//
// Environment variables:
//   - EXCHANGE_ORDERS_MAX_WEIGHT: order create/cancel budget (default: 60)
//   - EXCHANGE_ORDERS_WINDOW: order window (default: 1m)
//   - EXCHANGE_MARKET_DATA_MAX_WEIGHT: orderbook/ticker budget (default: 600)
//   - EXCHANGE_MARKET_DATA_WINDOW: market data window (default: 1m)
//   - EXCHANGE_ACCOUNT_MAX_WEIGHT: balance/order listing budget (default: 120)
//   - EXCHANGE_ACCOUNT_WINDOW: account window (default: 1m)
//
// Returns:
//   - map[string]callguard.FieldLimit: Validated field limits
func LoadExchangeFieldLimits() map[string]callguard.FieldLimit {
	return map[string]callguard.FieldLimit{
		"orders":      loadFieldLimit("EXCHANGE_ORDERS", 60, 1*time.Minute),
		"market_data": loadFieldLimit("EXCHANGE_MARKET_DATA", 600, 1*time.Minute),
		"account":     loadFieldLimit("EXCHANGE_ACCOUNT", 120, 1*time.Minute),
	}
}

// LoadWatchFieldLimits loads the call field limits for the news watch
// connection from environment variables.
//
// RSS feeds tolerate frequent polling; announcement pages sit behind
// aggressive anti-bot frontends, so their budget defaults lower.
//
// Environment variables:
//   - WATCH_RSS_MAX_WEIGHT: RSS feed fetch budget (default: 60)
//   - WATCH_RSS_WINDOW: RSS window (default: 1m)
//   - WATCH_ANNOUNCEMENT_MAX_WEIGHT: announcement page budget (default: 30)
//   - WATCH_ANNOUNCEMENT_WINDOW: announcement window (default: 1m)
//
// Returns:
//   - map[string]callguard.FieldLimit: Validated field limits
func LoadWatchFieldLimits() map[string]callguard.FieldLimit {
	return map[string]callguard.FieldLimit{
		"rss":          loadFieldLimit("WATCH_RSS", 60, 1*time.Minute),
		"announcement": loadFieldLimit("WATCH_ANNOUNCEMENT", 30, 1*time.Minute),
	}
}

// loadFieldLimit reads one field's weight budget and window, falling back to
// the given defaults with a warning when the environment holds junk.
func loadFieldLimit(prefix string, defaultWeight int64, defaultWindow time.Duration) callguard.FieldLimit {
	weight := int64(GetEnvInt(prefix+"_MAX_WEIGHT", int(defaultWeight)))
	if weight <= 0 {
		slog.Warn("invalid call field weight, using default",
			slog.String("key", prefix+"_MAX_WEIGHT"),
			slog.Int64("value", weight),
			slog.Int64("default", defaultWeight))
		weight = defaultWeight
	}

	window := GetEnvDuration(prefix+"_WINDOW", defaultWindow)
	if err := ValidatePositiveDuration(window); err != nil {
		slog.Warn("invalid call field window, using default",
			slog.String("key", prefix+"_WINDOW"),
			slog.String("value", window.String()),
			slog.String("default", defaultWindow.String()),
			slog.String("error", err.Error()))
		window = defaultWindow
	}

	return callguard.FieldLimit{Interval: window, MaxWeight: weight}
}
