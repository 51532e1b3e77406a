package exchange

import (
	"fmt"

	"autotrade/internal/connection"
)

// Sentinel errors of the exchange layer. Both are connection kinds, so
// callers classify them together with transport faults.
var (
	// ErrMarketNotSupported indicates a pair the exchange lists in neither
	// orientation.
	ErrMarketNotSupported = fmt.Errorf("%w: market not supported", connection.ErrConnection)

	// ErrUnknownExchange indicates an operation against an exchange name
	// with no bound driver.
	ErrUnknownExchange = fmt.Errorf("%w: unknown exchange", connection.ErrInvalidRequest)
)

// MarketNotSupportedError reports the exchange and pair that failed the
// markets-cache lookup.
type MarketNotSupportedError struct {
	Exchange string
	Base     string
	Quote    string
}

func (e *MarketNotSupportedError) Error() string {
	return fmt.Sprintf("exchange [%s] does not list %s/%s in either orientation",
		e.Exchange, e.Base, e.Quote)
}

// Unwrap exposes the kind for errors.Is chains.
func (e *MarketNotSupportedError) Unwrap() error {
	return ErrMarketNotSupported
}
