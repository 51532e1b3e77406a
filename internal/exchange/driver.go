package exchange

import (
	"context"

	"github.com/shopspring/decimal"

	"autotrade/internal/domain/entity"
)

// Quantize normalizes a decimal to the toolkit's eight fractional digits
// using banker's rounding. Every value crossing an exchange boundary goes
// through it, so cached balances and book levels compare exactly.
func Quantize(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(8)
}

// Balance is one currency's holdings on one exchange.
type Balance struct {
	Free  decimal.Decimal
	Used  decimal.Decimal
	Total decimal.Decimal
}

// Zero reports whether all holdings are zero.
func (b Balance) Zero() bool {
	return b.Free.IsZero() && b.Used.IsZero() && b.Total.IsZero()
}

// Driver is the raw per-exchange API surface the Binding orchestrates.
// Implementations own their transport and route every call through its
// admission envelope under the operation's call field, so the Binding never
// talks to an exchange unguarded.
type Driver interface {
	// Name returns the exchange name, e.g. "Coinbase".
	Name() string

	// FetchMarkets lists the pairs the exchange trades, in the exchange's
	// own orientation. Resolution is left zero.
	FetchMarkets(ctx context.Context) ([]entity.Market, error)

	// FetchBalances returns holdings by currency code, zero rows included.
	FetchBalances(ctx context.Context) (map[string]Balance, error)

	// FetchOrderBook returns the resting orders of one listed pair.
	FetchOrderBook(ctx context.Context, market entity.Market) (*OrderBook, error)

	// FetchOpenOrders lists open orders, all of them when market is nil.
	FetchOpenOrders(ctx context.Context, market *entity.Market) ([]entity.Order, error)

	// CreateOrder places a limit order and returns the exchange's order ID.
	CreateOrder(ctx context.Context, order entity.Order) (string, error)

	// CancelOrder cancels by order ID. Market may be nil when unknown;
	// exchanges that key cancellation by pair need it.
	CancelOrder(ctx context.Context, orderID string, market *entity.Market) error

	// Close releases the driver's transport.
	Close() error
}
