package cryptocompare

import (
	"context"
	"fmt"
	"time"

	"autotrade/internal/connection"
	"autotrade/internal/domain/entity"
)

// Source adapts the client to the collector's per-window fetch. It serves
// minute markets only: that is the resolution HistoMinute reports, and
// coarser bars are aggregated from stored minute data instead of fetched.
type Source struct {
	Client *Client
}

// Fetch returns the market's bars covering the closed window [start, end].
// The venue is the market's own exchange; "CCCAGG" selects the service's
// aggregate index. Gap markers the service pads a sparse history with are
// dropped here, so every returned bar is a real trade bar.
func (s *Source) Fetch(ctx context.Context, market entity.Market, start, end time.Time) ([]entity.Candle, error) {
	if market.Resolution != 1 {
		return nil, fmt.Errorf("%w: %s: the historical feed serves minute bars only",
			connection.ErrInvalidRequest, market)
	}

	bars, err := s.Client.HistoMinute(ctx, market.Base, market.Quote, start, end, market.Exchange)
	if err != nil {
		return nil, err
	}

	candles := make([]entity.Candle, 0, len(bars))
	for _, bar := range bars {
		if bar.Empty() {
			continue
		}
		candles = append(candles, bar.Candle(market))
	}
	return candles, nil
}
