// Package cryptocompare implements the historical OHLCV source over the
// min-api.cryptocompare.com service. It is the toolkit's backfill feed: the
// collector walks a market's history in minute bars through HistoMinute and
// checks the account's server-side quota through RateLimitStatus.
//
// Every request runs under the connection's admission envelope. HistoMinute
// draws on the "histominute" call field, everything else on "default", so a
// backfill burst is throttled locally before the service ever sees it.
package cryptocompare

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"autotrade/internal/connection"
	"autotrade/internal/domain/entity"
	"autotrade/internal/resilience/circuitbreaker"
)

// MaxBars is the widest window one HistoMinute call may request, in minute
// bars. The service truncates larger windows, which would silently punch
// holes into a backfill, so wider windows are rejected before sending.
const MaxBars = 2000

// DefaultExchange is the service's volume-weighted aggregate across
// exchanges, used when no explicit exchange is requested.
const DefaultExchange = "CCCAGG"

// Call fields registered on the connection.
const (
	FieldHistoMinute = "histominute"
	FieldDefault     = "default"
)

const connectionName = "CryptoCompare"

// Client is the CryptoCompare market data connection.
type Client struct {
	conn *connection.HTTPConnection
}

// New creates a Client with its call fields registered.
func New(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()

	headers := map[string]string{}
	if cfg.APIKey != "" {
		// The service's own scheme: the key goes inside literal braces.
		headers["authorization"] = "Apikey{" + cfg.APIKey + "}"
	}

	conn, err := connection.NewHTTP(connection.HTTPConfig{
		Config: connection.Config{
			Name:       connectionName,
			CallLimits: cfg.CallLimits,
			Clock:      cfg.Clock,
			Metrics:    cfg.Metrics,
		},
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
		Headers: headers,
		Breaker: circuitbreaker.MarketDataConfig(),
	})
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Bar is one minute OHLCV row as the service reports it. VolumeFrom counts
// base currency, VolumeTo quote currency. The service pads gaps in a
// market's history with all-zero rows; Empty identifies those.
type Bar struct {
	Time       int64           `json:"time"`
	Open       decimal.Decimal `json:"open"`
	High       decimal.Decimal `json:"high"`
	Low        decimal.Decimal `json:"low"`
	Close      decimal.Decimal `json:"close"`
	VolumeFrom decimal.Decimal `json:"volumefrom"`
	VolumeTo   decimal.Decimal `json:"volumeto"`
}

// Empty reports whether the bar is a gap marker.
func (b Bar) Empty() bool {
	return b.Open.IsZero() && b.High.IsZero() && b.Low.IsZero() &&
		b.Close.IsZero() && b.VolumeFrom.IsZero()
}

// Candle converts the bar to a domain candle of the given market. Volume is
// the base-currency volume.
func (b Bar) Candle(market entity.Market) entity.Candle {
	return entity.Candle{
		Market:   market,
		OpenTime: time.Unix(b.Time, 0).UTC(),
		Open:     b.Open,
		High:     b.High,
		Low:      b.Low,
		Close:    b.Close,
		Volume:   b.VolumeFrom,
	}
}

// HistoMinute fetches the minute bars of fsym/tsym on the given exchange
// covering [start, end]. The window is rounded inward to whole minutes; a
// window holding no whole minute, or more than MaxBars of them, fails with
// ErrInvalidRequest without a request being sent. Pass an empty exchange for
// the service's aggregate index.
func (c *Client) HistoMinute(ctx context.Context, fsym, tsym string, start, end time.Time, exchange string) ([]Bar, error) {
	if fsym == "" || tsym == "" {
		return nil, fmt.Errorf("%w: fsym and tsym must not be empty", connection.ErrInvalidRequest)
	}
	if exchange == "" {
		exchange = DefaultExchange
	}

	// The service indexes bars on whole minutes.
	startTS := start.Unix()
	if rem := startTS % 60; rem != 0 {
		startTS += 60 - rem
	}
	endTS := end.Unix()
	endTS -= endTS % 60

	if endTS < startTS {
		return nil, fmt.Errorf("%w: window [%s, %s] holds no whole minute",
			connection.ErrInvalidRequest,
			start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
	}
	bars := (endTS-startTS)/60 + 1
	if bars > MaxBars {
		return nil, fmt.Errorf("%w: window spans %d bars, the service caps one call at %d",
			connection.ErrInvalidRequest, bars, MaxBars)
	}

	query := url.Values{}
	query.Set("tryConversion", "false")
	query.Set("fsym", fsym)
	query.Set("tsym", tsym)
	query.Set("limit", strconv.FormatInt(bars, 10))
	query.Set("e", exchange)
	query.Set("toTs", strconv.FormatInt(endTS, 10))

	resp, err := c.conn.Request(ctx, connection.Request{
		Method:   http.MethodGet,
		Endpoint: "data/histominute",
		Query:    query,
		Field:    FieldHistoMinute,
		Weight:   1,
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Response string `json:"Response"`
		Message  string `json:"Message"`
		Data     []Bar  `json:"Data"`
	}
	if err := resp.DecodeJSON(&payload); err != nil {
		return nil, err
	}
	if payload.Response != "Success" {
		return nil, fmt.Errorf("%w: histominute: %s", connection.ErrServiceError, payload.Message)
	}
	return payload.Data, nil
}

// CallBudget counts calls per rolling window, as the service reports them.
type CallBudget struct {
	Second int64 `json:"second"`
	Minute int64 `json:"minute"`
	Hour   int64 `json:"hour"`
	Day    int64 `json:"day"`
	Month  int64 `json:"month"`
}

// RateLimitStatus is the account's server-side quota usage. The local call
// fields are tuned against MaxCalls; a drift between the two shows up here
// before it shows up as 429s.
type RateLimitStatus struct {
	CallsMade CallBudget `json:"calls_made"`
	MaxCalls  CallBudget `json:"max_calls"`
}

// RateLimitStatus fetches the account's current server-side quota usage.
func (c *Client) RateLimitStatus(ctx context.Context) (*RateLimitStatus, error) {
	resp, err := c.conn.Request(ctx, connection.Request{
		Method:   http.MethodGet,
		Endpoint: "stats/rate/limit",
		Field:    FieldDefault,
		Weight:   1,
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Response string          `json:"Response"`
		Message  string          `json:"Message"`
		Data     RateLimitStatus `json:"Data"`
	}
	if err := resp.DecodeJSON(&payload); err != nil {
		return nil, err
	}
	if payload.Response != "Success" {
		return nil, fmt.Errorf("%w: rate limit status: %s", connection.ErrServiceError, payload.Message)
	}
	return &payload.Data, nil
}
