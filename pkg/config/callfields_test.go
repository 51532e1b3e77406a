package config

import (
	"testing"
	"time"
)

func TestLoadMarketDataFieldLimits_Defaults(t *testing.T) {
	limits := LoadMarketDataFieldLimits()

	histo := limits["histominute"]
	if histo.MaxWeight != 300 || histo.Interval != time.Minute {
		t.Errorf("histominute = %+v, want 300 per 1m", histo)
	}
	def := limits["default"]
	if def.MaxWeight != 50 || def.Interval != time.Minute {
		t.Errorf("default = %+v, want 50 per 1m", def)
	}
}

func TestLoadExchangeFieldLimits_Overrides(t *testing.T) {
	t.Setenv("EXCHANGE_ORDERS_MAX_WEIGHT", "10")
	t.Setenv("EXCHANGE_ORDERS_WINDOW", "30s")

	limits := LoadExchangeFieldLimits()

	orders := limits["orders"]
	if orders.MaxWeight != 10 || orders.Interval != 30*time.Second {
		t.Errorf("orders = %+v, want 10 per 30s", orders)
	}
	// Untouched fields keep their defaults.
	if limits["market_data"].MaxWeight != 600 {
		t.Errorf("market_data weight = %d, want 600", limits["market_data"].MaxWeight)
	}
}

func TestLoadWatchFieldLimits_Defaults(t *testing.T) {
	limits := LoadWatchFieldLimits()

	rss := limits["rss"]
	if rss.MaxWeight != 60 || rss.Interval != time.Minute {
		t.Errorf("rss = %+v, want 60 per 1m", rss)
	}
	ann := limits["announcement"]
	if ann.MaxWeight != 30 || ann.Interval != time.Minute {
		t.Errorf("announcement = %+v, want 30 per 1m", ann)
	}
}

func TestLoadFieldLimits_JunkFallsBackToDefaults(t *testing.T) {
	t.Setenv("MARKETDATA_HISTOMINUTE_MAX_WEIGHT", "-5")
	t.Setenv("MARKETDATA_HISTOMINUTE_WINDOW", "-1m")

	limits := LoadMarketDataFieldLimits()

	histo := limits["histominute"]
	if histo.MaxWeight != 300 || histo.Interval != time.Minute {
		t.Errorf("histominute = %+v, want defaults restored", histo)
	}
}

func TestLoadFieldLimits_AllValid(t *testing.T) {
	for name, limit := range LoadMarketDataFieldLimits() {
		if err := limit.Validate(); err != nil {
			t.Errorf("market data field %q: %v", name, err)
		}
	}
	for name, limit := range LoadExchangeFieldLimits() {
		if err := limit.Validate(); err != nil {
			t.Errorf("exchange field %q: %v", name, err)
		}
	}
	for name, limit := range LoadWatchFieldLimits() {
		if err := limit.Validate(); err != nil {
			t.Errorf("watch field %q: %v", name, err)
		}
	}
}
