// Package entity defines the core domain entities and validation logic for
// the toolkit. It contains the fundamental business objects such as Candle,
// Market, Order, and Headline, along with their validation rules and
// domain-specific errors.
package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle represents one OHLCV bar of one market.
//
// Prices and volume are fixed-point decimals: float arithmetic on price data
// accumulates rounding drift that corrupts backtests, so values stay decimal
// from ingestion to storage (NUMERIC(24,8) columns).
type Candle struct {
	Market   Market
	OpenTime time.Time
	Open     decimal.Decimal
	High     decimal.Decimal
	Low      decimal.Decimal
	Close    decimal.Decimal
	Volume   decimal.Decimal
}

// Validate validates the Candle fields. A zero-volume bar is rejected: the
// data sources emit those for gaps, and storing them skews aggregates.
func (c *Candle) Validate() error {
	if err := c.Market.Validate(); err != nil {
		return err
	}
	if c.OpenTime.IsZero() {
		return &ValidationError{Field: "open_time", Message: "open time is required"}
	}
	if !c.Volume.IsPositive() {
		return &ValidationError{Field: "volume", Message: "volume must be positive"}
	}
	if c.Open.IsNegative() || c.High.IsNegative() || c.Low.IsNegative() || c.Close.IsNegative() {
		return &ValidationError{Field: "price", Message: "prices must not be negative"}
	}
	if c.High.Cmp(c.Low) < 0 {
		return &ValidationError{Field: "high", Message: "high must not be below low"}
	}
	if c.Open.Cmp(c.High) > 0 || c.Open.Cmp(c.Low) < 0 {
		return &ValidationError{Field: "open", Message: "open must lie between low and high"}
	}
	if c.Close.Cmp(c.High) > 0 || c.Close.Cmp(c.Low) < 0 {
		return &ValidationError{Field: "close", Message: "close must lie between low and high"}
	}
	return nil
}
