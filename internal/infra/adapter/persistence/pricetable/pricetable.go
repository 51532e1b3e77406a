// Package pricetable derives per-market price table names and parses them
// back into markets. Both the PostgreSQL and SQLite candle repositories
// share this convention, so stores written by one can be discovered by the
// other.
package pricetable

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"autotrade/internal/domain/entity"
)

const prefix = "PriceData_"

// segmentPattern keeps table name segments safe to splice into DDL as
// quoted identifiers and unambiguous to split back apart.
var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// Name returns the price table name for the market, e.g.
// "PriceData_Bitstamp_BTC_USD_1mins". A zero resolution names the tick
// table "PriceData_Bitstamp_BTC_USD_tick".
func Name(market entity.Market) (string, error) {
	for _, segment := range []string{market.Exchange, market.Base, market.Quote} {
		if !segmentPattern.MatchString(segment) {
			return "", fmt.Errorf("pricetable: segment %q must be alphanumeric", segment)
		}
	}
	if market.Resolution < 0 {
		return "", fmt.Errorf("pricetable: negative resolution %d", market.Resolution)
	}
	if market.Resolution == 0 {
		return fmt.Sprintf("%s%s_%s_%s_tick", prefix, market.Exchange, market.Base, market.Quote), nil
	}
	return fmt.Sprintf("%s%s_%s_%s_%dmins", prefix, market.Exchange, market.Base, market.Quote, market.Resolution), nil
}

// Parse recovers the market from a table name produced by Name. It reports
// false for names that do not follow the convention.
func Parse(name string) (entity.Market, bool) {
	if !strings.HasPrefix(name, prefix) {
		return entity.Market{}, false
	}
	parts := strings.Split(name, "_")
	if len(parts) != 5 {
		return entity.Market{}, false
	}
	for _, segment := range parts[1:4] {
		if !segmentPattern.MatchString(segment) {
			return entity.Market{}, false
		}
	}

	market := entity.Market{Exchange: parts[1], Base: parts[2], Quote: parts[3]}
	switch {
	case parts[4] == "tick":
		market.Resolution = 0
	case strings.HasSuffix(parts[4], "mins"):
		n, err := strconv.Atoi(strings.TrimSuffix(parts[4], "mins"))
		if err != nil || n <= 0 {
			return entity.Market{}, false
		}
		market.Resolution = n
	default:
		return entity.Market{}, false
	}
	return market, true
}
