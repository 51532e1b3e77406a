package repository

import (
	"context"
	"time"

	"autotrade/internal/domain/entity"
)

// CandleRepository stores OHLCV bars, one backing table per market.
//
// Tables are created lazily through EnsureMarket, and ListMarkets rediscovers
// them from storage, so a fresh process resumes on whatever markets earlier
// runs collected.
type CandleRepository interface {
	// EnsureMarket creates the market's backing table if it does not exist.
	EnsureMarket(ctx context.Context, market entity.Market) error
	// ListMarkets discovers all markets that have a backing table.
	ListMarkets(ctx context.Context) ([]entity.Market, error)
	// UpsertCandles writes candles for their markets.
	// Parameters:
	//   - candles: bars to write, each carrying its own market
	//   - replace: overwrite stored bars that collide on open time; when
	//     false, colliding bars are skipped
	// Returns the number of rows written.
	UpsertCandles(ctx context.Context, candles []*entity.Candle, replace bool) (int64, error)
	// ListRange retrieves the market's bars with open time in [from, to],
	// ordered by open time ascending.
	ListRange(ctx context.Context, market entity.Market, from, to time.Time) ([]*entity.Candle, error)
	// GetAt retrieves the market's bar with the exact open time.
	// Returns entity.ErrNotFound when no bar opens at ts.
	GetAt(ctx context.Context, market entity.Market, ts time.Time) (*entity.Candle, error)
	// GetLatest retrieves the market's most recent bar.
	// Returns entity.ErrNotFound when the market holds no bars.
	GetLatest(ctx context.Context, market entity.Market) (*entity.Candle, error)
	CountCandles(ctx context.Context, market entity.Market) (int64, error)
	// Aggregate builds bars of a coarser resolution from the stored bars
	// over [from, to]. resolution is in minutes and must be a positive
	// multiple of the market's own resolution.
	Aggregate(ctx context.Context, market entity.Market, resolution int, from, to time.Time) ([]*entity.Candle, error)
	// DeleteRange removes the market's bars with open time in [from, to]
	// and returns the number removed.
	DeleteRange(ctx context.Context, market entity.Market, from, to time.Time) (int64, error)
}
