package entity

import (
	"fmt"
	"strconv"
	"strings"
)

// Market identifies one tradable pair on one exchange at one bar resolution.
// Resolution is the bar length in minutes; zero means tick data.
type Market struct {
	Exchange   string
	Base       string
	Quote      string
	Resolution int
}

// Symbol returns the pair in exchange notation, e.g. "BTC/USD".
func (m Market) Symbol() string {
	return m.Base + "/" + m.Quote
}

// Reversed returns the market with base and quote swapped. Used when an
// exchange lists only the opposite orientation of a requested pair.
func (m Market) Reversed() Market {
	m.Base, m.Quote = m.Quote, m.Base
	return m
}

// String returns a human-readable identifier like "Bitstamp:BTC/USD@1m".
func (m Market) String() string {
	if m.Resolution == 0 {
		return fmt.Sprintf("%s:%s@tick", m.Exchange, m.Symbol())
	}
	return fmt.Sprintf("%s:%s@%dm", m.Exchange, m.Symbol(), m.Resolution)
}

// ParseMarket parses the identifier format String produces, e.g.
// "Bitstamp:BTC/USD@1m" or "Coinbase:ETH/USD@tick". Omitting the
// resolution suffix selects one-minute bars.
func ParseMarket(s string) (Market, error) {
	spec := strings.TrimSpace(s)
	resolution := 1

	if at := strings.LastIndex(spec, "@"); at >= 0 {
		suffix := spec[at+1:]
		spec = spec[:at]
		switch {
		case suffix == "tick":
			resolution = 0
		case strings.HasSuffix(suffix, "m"):
			n, err := strconv.Atoi(strings.TrimSuffix(suffix, "m"))
			if err != nil || n < 1 {
				return Market{}, fmt.Errorf("invalid market %q: bad resolution %q", s, suffix)
			}
			resolution = n
		default:
			return Market{}, fmt.Errorf("invalid market %q: bad resolution %q", s, suffix)
		}
	}

	colon := strings.Index(spec, ":")
	slash := strings.Index(spec, "/")
	if colon < 0 || slash < colon {
		return Market{}, fmt.Errorf("invalid market %q: want EXCHANGE:BASE/QUOTE@RESOLUTION", s)
	}

	m := Market{
		Exchange:   spec[:colon],
		Base:       strings.ToUpper(spec[colon+1 : slash]),
		Quote:      strings.ToUpper(spec[slash+1:]),
		Resolution: resolution,
	}
	if err := m.Validate(); err != nil {
		return Market{}, fmt.Errorf("invalid market %q: %w", s, err)
	}
	return m, nil
}

// Validate validates the Market fields.
func (m Market) Validate() error {
	if strings.TrimSpace(m.Exchange) == "" {
		return &ValidationError{Field: "exchange", Message: "exchange is required"}
	}
	if strings.TrimSpace(m.Base) == "" {
		return &ValidationError{Field: "base", Message: "base currency is required"}
	}
	if strings.TrimSpace(m.Quote) == "" {
		return &ValidationError{Field: "quote", Message: "quote currency is required"}
	}
	if strings.EqualFold(m.Base, m.Quote) {
		return &ValidationError{Field: "quote", Message: "base and quote must differ"}
	}
	if m.Resolution < 0 {
		return &ValidationError{Field: "resolution", Message: "resolution must not be negative"}
	}
	return nil
}
