// Package exchange binds per-exchange drivers into one trading session. The
// Binding keeps the session caches a trading loop needs (listed markets,
// account balances, order placement records) and translates between the
// requested orientation of a pair and the one the exchange actually lists:
// reversed order books, reversed open-order lookups, and reversed order
// placement all collapse into the listed market's terms.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"autotrade/internal/connection"
	"autotrade/internal/domain/entity"
)

// orderKey identifies one placed order across exchanges.
type orderKey struct {
	exchange string
	orderID  string
}

// Binding couples exchange drivers with the session caches. The driver set
// is fixed at construction; the caches refresh on demand and are safe for
// concurrent use. Driver calls never run under the cache lock.
type Binding struct {
	drivers map[string]Driver

	mu           sync.RWMutex
	markets      map[string]map[string]map[string]entity.Market // exchange -> base -> quote
	balances     map[string]map[string]Balance
	orderMarkets map[orderKey]entity.Market
}

// NewBinding registers the given drivers. Caches start empty; call Refresh
// before trading.
func NewBinding(drivers ...Driver) (*Binding, error) {
	b := &Binding{
		drivers:      make(map[string]Driver, len(drivers)),
		markets:      make(map[string]map[string]map[string]entity.Market),
		balances:     make(map[string]map[string]Balance),
		orderMarkets: make(map[orderKey]entity.Market),
	}
	for _, d := range drivers {
		name := d.Name()
		if name == "" {
			return nil, fmt.Errorf("%w: driver with empty name", connection.ErrInvalidRequest)
		}
		if _, dup := b.drivers[name]; dup {
			return nil, fmt.Errorf("%w: duplicate driver %q", connection.ErrInvalidRequest, name)
		}
		b.drivers[name] = d
	}
	return b, nil
}

// Exchanges returns the bound exchange names, sorted.
func (b *Binding) Exchanges() []string {
	names := make([]string, 0, len(b.drivers))
	for name := range b.drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// resolveNames expands an empty selection to every bound exchange and
// rejects names without a driver.
func (b *Binding) resolveNames(names []string) ([]string, error) {
	if len(names) == 0 {
		return b.Exchanges(), nil
	}
	for _, name := range names {
		if _, ok := b.drivers[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownExchange, name)
		}
	}
	return names, nil
}

// Refresh loads markets and balances for every bound exchange.
func (b *Binding) Refresh(ctx context.Context) error {
	if err := b.RefreshMarkets(ctx); err != nil {
		return err
	}
	return b.RefreshBalances(ctx)
}

// RefreshMarkets reloads the listed-markets cache. With no names given it
// covers every bound exchange.
func (b *Binding) RefreshMarkets(ctx context.Context, exchanges ...string) error {
	names, err := b.resolveNames(exchanges)
	if err != nil {
		return err
	}
	for _, name := range names {
		listed, err := b.drivers[name].FetchMarkets(ctx)
		if err != nil {
			return fmt.Errorf("refresh markets for %s: %w", name, err)
		}
		table := make(map[string]map[string]entity.Market)
		for _, m := range listed {
			m.Exchange = name
			byQuote := table[m.Base]
			if byQuote == nil {
				byQuote = make(map[string]entity.Market)
				table[m.Base] = byQuote
			}
			if _, dup := byQuote[m.Quote]; dup {
				return fmt.Errorf("%w: %s lists %s twice", connection.ErrServiceError, name, m.Symbol())
			}
			byQuote[m.Quote] = m
		}
		b.mu.Lock()
		b.markets[name] = table
		b.mu.Unlock()
	}
	return nil
}

// RefreshBalances reloads the balance cache. Zero rows are pruned: the
// exchanges report a row for every listable currency.
func (b *Binding) RefreshBalances(ctx context.Context, exchanges ...string) error {
	names, err := b.resolveNames(exchanges)
	if err != nil {
		return err
	}
	for _, name := range names {
		raw, err := b.drivers[name].FetchBalances(ctx)
		if err != nil {
			return fmt.Errorf("refresh balances for %s: %w", name, err)
		}
		held := make(map[string]Balance, len(raw))
		for currency, bal := range raw {
			bal.Free = Quantize(bal.Free)
			bal.Used = Quantize(bal.Used)
			bal.Total = Quantize(bal.Total)
			if bal.Zero() {
				continue
			}
			held[currency] = bal
		}
		b.mu.Lock()
		b.balances[name] = held
		b.mu.Unlock()
	}
	return nil
}

// market resolves the cached listing of base/quote as given.
func (b *Binding) market(exchange, base, quote string) (entity.Market, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	m, ok := b.markets[exchange][base][quote]
	return m, ok
}

// Market returns the cached listing of base/quote as given.
func (b *Binding) Market(exchange, base, quote string) (entity.Market, bool) {
	return b.market(exchange, base, quote)
}

// IsSupported reports whether the exchange lists base/quote as given.
func (b *Binding) IsSupported(exchange, base, quote string) bool {
	_, ok := b.market(exchange, base, quote)
	return ok
}

// Balances returns a copy of the exchange's held balances.
func (b *Binding) Balances(exchange string) map[string]Balance {
	b.mu.RLock()
	defer b.mu.RUnlock()
	held := make(map[string]Balance, len(b.balances[exchange]))
	for currency, bal := range b.balances[exchange] {
		held[currency] = bal
	}
	return held
}

// OrderBook fetches the book of base/quote on the exchange. When the pair
// is listed only in the opposite orientation and allowReversed is set, the
// listed book is fetched and transformed; the result then carries Reversed
// true.
func (b *Binding) OrderBook(ctx context.Context, exchange, base, quote string, allowReversed bool) (*OrderBook, error) {
	driver, ok := b.drivers[exchange]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownExchange, exchange)
	}

	if market, listed := b.market(exchange, base, quote); listed {
		return driver.FetchOrderBook(ctx, market)
	}
	if allowReversed {
		if market, listed := b.market(exchange, quote, base); listed {
			book, err := driver.FetchOrderBook(ctx, market)
			if err != nil {
				return nil, err
			}
			return book.Reverse(), nil
		}
	}
	return nil, &MarketNotSupportedError{Exchange: exchange, Base: base, Quote: quote}
}

// OpenOrders lists the open orders of base/quote, falling back to the
// reversed orientation when allowed. With an empty base or quote it lists
// every open order on the exchange.
func (b *Binding) OpenOrders(ctx context.Context, exchange, base, quote string, allowReversed bool) ([]entity.Order, error) {
	driver, ok := b.drivers[exchange]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownExchange, exchange)
	}

	if base == "" || quote == "" {
		return driver.FetchOpenOrders(ctx, nil)
	}
	if market, listed := b.market(exchange, base, quote); listed {
		return driver.FetchOpenOrders(ctx, &market)
	}
	if allowReversed {
		if market, listed := b.market(exchange, quote, base); listed {
			return driver.FetchOpenOrders(ctx, &market)
		}
	}
	return nil, &MarketNotSupportedError{Exchange: exchange, Base: base, Quote: quote}
}

// CreateOrder places a limit order for base/quote. Price means one unit of
// base costs price units of quote; amount is in base units. When only the
/// reversed orientation is listed, the order is translated into its terms:
// price inverts, amount becomes the quote-side volume, and the side flips.
// Returns the exchange's order ID and records which market the order was
// placed on for later cancellation.
func (b *Binding) CreateOrder(ctx context.Context, exchange, base, quote string, side entity.OrderSide, price, amount decimal.Decimal) (string, error) {
	driver, ok := b.drivers[exchange]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownExchange, exchange)
	}
	if !price.IsPositive() {
		return "", fmt.Errorf("%w: cannot create orders with non-positive (%s) price",
			connection.ErrInvalidRequest, price)
	}

	market, listed := b.market(exchange, base, quote)
	if !listed {
		reversed, revListed := b.market(exchange, quote, base)
		if !revListed {
			return "", &MarketNotSupportedError{Exchange: exchange, Base: base, Quote: quote}
		}
		market = reversed
		amount = Quantize(price.Mul(amount))
		price = Quantize(decimal.New(1, 0).Div(price))
		side = side.Opposite()
	}

	order := entity.Order{Market: market, Side: side, Price: price, Amount: amount}
	if err := order.Validate(); err != nil {
		return "", err
	}

	orderID, err := driver.CreateOrder(ctx, order)
	if err != nil {
		return "", err
	}

	b.mu.Lock()
	b.orderMarkets[orderKey{exchange, orderID}] = market
	b.mu.Unlock()
	return orderID, nil
}

// OrderMarket returns the recorded placement market of an order.
func (b *Binding) OrderMarket(exchange, orderID string) (entity.Market, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	m, ok := b.orderMarkets[orderKey{exchange, orderID}]
	return m, ok
}

// CancelOrder cancels by order ID. An explicitly given market wins over the
// recorded placement market; with neither, the bare ID goes to the driver.
// A successful cancel drops the order's placement record.
func (b *Binding) CancelOrder(ctx context.Context, exchange, orderID string, explicit *entity.Market) error {
	driver, ok := b.drivers[exchange]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownExchange, exchange)
	}

	market := explicit
	if market == nil {
		b.mu.RLock()
		if recorded, recOK := b.orderMarkets[orderKey{exchange, orderID}]; recOK {
			market = &recorded
		}
		b.mu.RUnlock()
	}

	if err := driver.CancelOrder(ctx, orderID, market); err != nil {
		return err
	}

	b.mu.Lock()
	delete(b.orderMarkets, orderKey{exchange, orderID})
	b.mu.Unlock()
	return nil
}

// Close releases every bound driver.
func (b *Binding) Close() error {
	var errs []error
	for _, name := range b.Exchanges() {
		if err := b.drivers[name].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
