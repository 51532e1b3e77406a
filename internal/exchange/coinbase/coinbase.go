// Package coinbase implements the exchange driver for the Coinbase Advanced
// Trade API. Authentication is per-request: every call carries a fresh ES256
// JWT scoped to its own method and path.
//
// Calls draw on three fields. Order placement and cancellation run on
// "orders", book snapshots and product listings on "market_data", balances
// and order listings on "account", so polling traffic and order traffic are
// budgeted apart.
package coinbase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"autotrade/internal/connection"
	"autotrade/internal/domain/entity"
	"autotrade/internal/exchange"
	"autotrade/internal/resilience/circuitbreaker"
	"autotrade/pkg/callguard"
)

// Name is the exchange name the driver registers under.
const Name = "Coinbase"

// apiPrefix roots every Advanced Trade endpoint.
const apiPrefix = "/api/v3/brokerage"

// pageSize is the page size for cursor-paginated listings; 250 is the API's
// maximum.
const pageSize = "250"

// Call fields registered on the connection.
const (
	FieldOrders     = "orders"
	FieldMarketData = "market_data"
	FieldAccount    = "account"
)

// Client is the Coinbase exchange driver.
type Client struct {
	conn   *connection.HTTPConnection
	signer *signer
	host   string
}

// New creates a Client with its call fields registered. The key pair is
// required: every Advanced Trade endpoint is authenticated.
func New(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()

	if cfg.KeyName == "" || cfg.PrivateKey == "" {
		return nil, &callguard.ConfigError{Field: "key_name", Reason: "key name and private key are required"}
	}
	sgn, err := newSigner(cfg.KeyName, cfg.PrivateKey)
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: base URL: %v", connection.ErrInvalidRequest, err)
	}

	conn, err := connection.NewHTTP(connection.HTTPConfig{
		Config: connection.Config{
			Name:       Name,
			CallLimits: cfg.CallLimits,
			Clock:      cfg.Clock,
			Metrics:    cfg.Metrics,
		},
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
		Breaker: circuitbreaker.ExchangeConfig(),
	})
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, signer: sgn, host: base.Host}, nil
}

// Name returns the exchange name.
func (c *Client) Name() string { return Name }

// Close releases the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

// call signs one request and performs it. The token's uri claim covers the
// path only, never the query string.
func (c *Client) call(ctx context.Context, req connection.Request) (*connection.Response, error) {
	authz, err := c.signer.bearer(req.Method, c.host, req.Endpoint)
	if err != nil {
		return nil, err
	}
	req.Headers = map[string]string{"Authorization": authz}
	return c.conn.Request(ctx, req)
}

// productID renders the market in the API's BASE-QUOTE notation.
func productID(m entity.Market) string {
	return m.Base + "-" + m.Quote
}

// FetchMarkets lists the tradable spot pairs. Products the exchange has
// suspended are left out.
func (c *Client) FetchMarkets(ctx context.Context) ([]entity.Market, error) {
	resp, err := c.call(ctx, connection.Request{
		Method:   http.MethodGet,
		Endpoint: apiPrefix + "/products",
		Field:    FieldMarketData,
		Weight:   1,
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Products []struct {
			BaseCurrencyID  string `json:"base_currency_id"`
			QuoteCurrencyID string `json:"quote_currency_id"`
			TradingDisabled bool   `json:"trading_disabled"`
		} `json:"products"`
	}
	if err := resp.DecodeJSON(&payload); err != nil {
		return nil, err
	}

	markets := make([]entity.Market, 0, len(payload.Products))
	for _, p := range payload.Products {
		if p.TradingDisabled {
			continue
		}
		markets = append(markets, entity.Market{Base: p.BaseCurrencyID, Quote: p.QuoteCurrencyID})
	}
	return markets, nil
}

// balanceValue is the API's money shape, an amount with its currency.
type balanceValue struct {
	Value decimal.Decimal `json:"value"`
}

// FetchBalances returns holdings by currency, walking the cursor-paginated
// account listing to the end. Each page is one guarded call.
func (c *Client) FetchBalances(ctx context.Context) (map[string]exchange.Balance, error) {
	balances := make(map[string]exchange.Balance)
	cursor := ""
	for {
		query := url.Values{}
		query.Set("limit", pageSize)
		if cursor != "" {
			query.Set("cursor", cursor)
		}

		resp, err := c.call(ctx, connection.Request{
			Method:   http.MethodGet,
			Endpoint: apiPrefix + "/accounts",
			Query:    query,
			Field:    FieldAccount,
			Weight:   1,
		})
		if err != nil {
			return nil, err
		}

		var payload struct {
			Accounts []struct {
				Currency         string       `json:"currency"`
				AvailableBalance balanceValue `json:"available_balance"`
				Hold             balanceValue `json:"hold"`
			} `json:"accounts"`
			HasNext bool   `json:"has_next"`
			Cursor  string `json:"cursor"`
		}
		if err := resp.DecodeJSON(&payload); err != nil {
			return nil, err
		}

		for _, acct := range payload.Accounts {
			free := acct.AvailableBalance.Value
			used := acct.Hold.Value
			balances[acct.Currency] = exchange.Balance{
				Free:  free,
				Used:  used,
				Total: free.Add(used),
			}
		}
		if !payload.HasNext {
			return balances, nil
		}
		cursor = payload.Cursor
	}
}

// bookLevel is one resting price level as the API reports it.
type bookLevel struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// FetchOrderBook returns the current book of one listed pair. The API
// reports both sides best-first, which is the OrderBook convention.
func (c *Client) FetchOrderBook(ctx context.Context, market entity.Market) (*exchange.OrderBook, error) {
	query := url.Values{}
	query.Set("product_id", productID(market))

	resp, err := c.call(ctx, connection.Request{
		Method:   http.MethodGet,
		Endpoint: apiPrefix + "/product_book",
		Query:    query,
		Field:    FieldMarketData,
		Weight:   1,
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Pricebook struct {
			Bids []bookLevel `json:"bids"`
			Asks []bookLevel `json:"asks"`
		} `json:"pricebook"`
	}
	if err := resp.DecodeJSON(&payload); err != nil {
		return nil, err
	}

	book := &exchange.OrderBook{
		Bids: make([]exchange.Level, 0, len(payload.Pricebook.Bids)),
		Asks: make([]exchange.Level, 0, len(payload.Pricebook.Asks)),
	}
	for _, l := range payload.Pricebook.Bids {
		book.Bids = append(book.Bids, exchange.Level{Price: l.Price, Amount: l.Size})
	}
	for _, l := range payload.Pricebook.Asks {
		book.Asks = append(book.Asks, exchange.Level{Price: l.Price, Amount: l.Size})
	}
	return book, nil
}

// orderRow is one order as the listing endpoint reports it.
type orderRow struct {
	OrderID            string          `json:"order_id"`
	ProductID          string          `json:"product_id"`
	Side               string          `json:"side"`
	Status             string          `json:"status"`
	CreatedTime        time.Time       `json:"created_time"`
	FilledSize         decimal.Decimal `json:"filled_size"`
	OrderConfiguration struct {
		LimitLimitGTC *struct {
			BaseSize   decimal.Decimal `json:"base_size"`
			LimitPrice decimal.Decimal `json:"limit_price"`
		} `json:"limit_limit_gtc"`
	} `json:"order_configuration"`
}

// order converts the row to a domain order. Rows without a limit
// configuration carry no resting price and are reported as not convertible.
func (r orderRow) order() (entity.Order, bool) {
	limit := r.OrderConfiguration.LimitLimitGTC
	if limit == nil {
		return entity.Order{}, false
	}
	base, quote, _ := strings.Cut(r.ProductID, "-")
	return entity.Order{
		ID:        r.OrderID,
		Market:    entity.Market{Exchange: Name, Base: base, Quote: quote},
		Side:      orderSide(r.Side),
		Price:     limit.LimitPrice,
		Amount:    limit.BaseSize,
		Filled:    r.FilledSize,
		Status:    orderStatus(r.Status),
		CreatedAt: r.CreatedTime,
	}, true
}

func orderSide(side string) entity.OrderSide {
	if strings.EqualFold(side, "SELL") {
		return entity.OrderSideSell
	}
	return entity.OrderSideBuy
}

func orderStatus(status string) entity.OrderStatus {
	switch status {
	case "OPEN", "PENDING", "QUEUED":
		return entity.OrderStatusOpen
	case "CANCELLED", "CANCEL_QUEUED":
		return entity.OrderStatusCanceled
	default:
		return entity.OrderStatusClosed
	}
}

// FetchOpenOrders lists open orders, all of them when market is nil. The
// listing is cursor-paginated like the account listing.
func (c *Client) FetchOpenOrders(ctx context.Context, market *entity.Market) ([]entity.Order, error) {
	var orders []entity.Order
	cursor := ""
	for {
		query := url.Values{}
		query.Set("order_status", "OPEN")
		query.Set("limit", pageSize)
		if market != nil {
			query.Set("product_id", productID(*market))
		}
		if cursor != "" {
			query.Set("cursor", cursor)
		}

		resp, err := c.call(ctx, connection.Request{
			Method:   http.MethodGet,
			Endpoint: apiPrefix + "/orders/historical/batch",
			Query:    query,
			Field:    FieldAccount,
			Weight:   1,
		})
		if err != nil {
			return nil, err
		}

		var payload struct {
			Orders  []orderRow `json:"orders"`
			HasNext bool       `json:"has_next"`
			Cursor  string     `json:"cursor"`
		}
		if err := resp.DecodeJSON(&payload); err != nil {
			return nil, err
		}

		for _, row := range payload.Orders {
			order, ok := row.order()
			if !ok {
				continue
			}
			orders = append(orders, order)
		}
		if !payload.HasNext {
			return orders, nil
		}
		cursor = payload.Cursor
	}
}

// limitOrderConfig is the limit order shape the API accepts. Amounts go out
// as strings.
type limitOrderConfig struct {
	BaseSize   string `json:"base_size"`
	LimitPrice string `json:"limit_price"`
}

type orderConfiguration struct {
	LimitLimitGTC limitOrderConfig `json:"limit_limit_gtc"`
}

type createOrderRequest struct {
	ClientOrderID      string             `json:"client_order_id"`
	ProductID          string             `json:"product_id"`
	Side               string             `json:"side"`
	OrderConfiguration orderConfiguration `json:"order_configuration"`
}

// CreateOrder places a good-till-canceled limit order and returns the
// exchange's order ID. The client order ID is a fresh UUID per call, so a
// retried placement can be recognized server-side as a duplicate.
func (c *Client) CreateOrder(ctx context.Context, order entity.Order) (string, error) {
	if err := order.Validate(); err != nil {
		return "", err
	}

	body := createOrderRequest{
		ClientOrderID: uuid.NewString(),
		ProductID:     productID(order.Market),
		Side:          strings.ToUpper(string(order.Side)),
		OrderConfiguration: orderConfiguration{
			LimitLimitGTC: limitOrderConfig{
				BaseSize:   order.Amount.String(),
				LimitPrice: order.Price.String(),
			},
		},
	}

	resp, err := c.call(ctx, connection.Request{
		Method:   http.MethodPost,
		Endpoint: apiPrefix + "/orders",
		JSON:     body,
		Field:    FieldOrders,
		Weight:   1,
	})
	if err != nil {
		return "", err
	}

	var payload struct {
		Success         bool `json:"success"`
		SuccessResponse struct {
			OrderID string `json:"order_id"`
		} `json:"success_response"`
		ErrorResponse struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		} `json:"error_response"`
	}
	if err := resp.DecodeJSON(&payload); err != nil {
		return "", err
	}
	if !payload.Success {
		reason := payload.ErrorResponse.Message
		if reason == "" {
			reason = payload.ErrorResponse.Error
		}
		return "", fmt.Errorf("%w: create order: %s", connection.ErrServiceError, reason)
	}
	return payload.SuccessResponse.OrderID, nil
}

// CancelOrder cancels by order ID. The API keys cancellation on the ID
// alone; the market hint other exchanges need is ignored.
func (c *Client) CancelOrder(ctx context.Context, orderID string, _ *entity.Market) error {
	body := struct {
		OrderIDs []string `json:"order_ids"`
	}{OrderIDs: []string{orderID}}

	resp, err := c.call(ctx, connection.Request{
		Method:   http.MethodPost,
		Endpoint: apiPrefix + "/orders/batch_cancel",
		JSON:     body,
		Field:    FieldOrders,
		Weight:   1,
	})
	if err != nil {
		return err
	}

	var payload struct {
		Results []struct {
			Success       bool   `json:"success"`
			FailureReason string `json:"failure_reason"`
		} `json:"results"`
	}
	if err := resp.DecodeJSON(&payload); err != nil {
		return err
	}
	if len(payload.Results) == 0 {
		return fmt.Errorf("%w: cancel order %s: empty result", connection.ErrServiceError, orderID)
	}
	if r := payload.Results[0]; !r.Success {
		return fmt.Errorf("%w: cancel order %s: %s", connection.ErrServiceError, orderID, r.FailureReason)
	}
	return nil
}
