package entity

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func validCandle() Candle {
	return Candle{
		Market:   Market{Exchange: "Bitstamp", Base: "BTC", Quote: "USD", Resolution: 1},
		OpenTime: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Open:     decimal.RequireFromString("50000.5"),
		High:     decimal.RequireFromString("50100.25"),
		Low:      decimal.RequireFromString("49900.75"),
		Close:    decimal.RequireFromString("50050.0"),
		Volume:   decimal.RequireFromString("12.34567890"),
	}
}

func TestCandle_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Candle)
		wantErr bool
	}{
		{
			name:    "valid candle",
			mutate:  func(c *Candle) {},
			wantErr: false,
		},
		{
			name:    "zero open time",
			mutate:  func(c *Candle) { c.OpenTime = time.Time{} },
			wantErr: true,
		},
		{
			name:    "zero volume",
			mutate:  func(c *Candle) { c.Volume = decimal.Zero },
			wantErr: true,
		},
		{
			name:    "negative volume",
			mutate:  func(c *Candle) { c.Volume = decimal.RequireFromString("-1") },
			wantErr: true,
		},
		{
			name:    "negative price",
			mutate:  func(c *Candle) { c.Low = decimal.RequireFromString("-0.01") },
			wantErr: true,
		},
		{
			name:    "high below low",
			mutate:  func(c *Candle) { c.High, c.Low = c.Low, c.High },
			wantErr: true,
		},
		{
			name:    "open above high",
			mutate:  func(c *Candle) { c.Open = c.High.Add(decimal.NewFromInt(1)) },
			wantErr: true,
		},
		{
			name:    "close below low",
			mutate:  func(c *Candle) { c.Close = c.Low.Sub(decimal.NewFromInt(1)) },
			wantErr: true,
		},
		{
			name:    "missing market",
			mutate:  func(c *Candle) { c.Market.Exchange = "" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validCandle()
			tt.mutate(&c)

			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrValidationFailed) {
				t.Errorf("Validate() error = %v, want ErrValidationFailed kind", err)
			}
		})
	}
}
