// Package sqlite implements the candle repository on a local SQLite file,
// for offline work against the same table-per-market layout as the
// PostgreSQL store.
//
// Timestamps are stored as unix seconds and OHLCV values as decimal
// strings: SQLite's NUMERIC affinity is floating point and would destroy
// the 8-decimal-place fixed-point values.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"autotrade/internal/domain/entity"
	"autotrade/internal/infra/adapter/persistence/pricetable"
	"autotrade/internal/repository"
)

type CandleRepo struct{ db *sql.DB }

func NewCandleRepo(db *sql.DB) repository.CandleRepository {
	return &CandleRepo{db: db}
}

// barTable resolves the market's OHLCV table name. Tick markets store
// trades, not bars, so bar operations reject them.
func barTable(market entity.Market) (string, error) {
	if market.Resolution <= 0 {
		return "", fmt.Errorf("%w: market %s holds no OHLCV bars", entity.ErrInvalidInput, market)
	}
	return pricetable.Name(market)
}

func aligned(ts time.Time, resolution int) bool {
	return ts.Unix()%(int64(resolution)*60) == 0
}

// scanBar decodes one stored row into a candle of the market.
func scanBar(rows *sql.Rows, market entity.Market) (*entity.Candle, error) {
	var epoch int64
	var open, high, low, close, volume string
	if err := rows.Scan(&epoch, &open, &high, &low, &close, &volume); err != nil {
		return nil, err
	}
	return decodeBar(market, epoch, open, high, low, close, volume)
}

func decodeBar(market entity.Market, epoch int64, open, high, low, close, volume string) (*entity.Candle, error) {
	candle := entity.Candle{Market: market, OpenTime: time.Unix(epoch, 0).UTC()}
	for _, field := range []struct {
		dst *decimal.Decimal
		raw string
	}{
		{&candle.Open, open}, {&candle.High, high}, {&candle.Low, low},
		{&candle.Close, close}, {&candle.Volume, volume},
	} {
		value, err := decimal.NewFromString(field.raw)
		if err != nil {
			return nil, fmt.Errorf("decode stored value %q: %w", field.raw, err)
		}
		*field.dst = value
	}
	return &candle, nil
}

func (repo *CandleRepo) EnsureMarket(ctx context.Context, market entity.Market) error {
	if err := market.Validate(); err != nil {
		return fmt.Errorf("EnsureMarket: %w", err)
	}
	table, err := pricetable.Name(market)
	if err != nil {
		return fmt.Errorf("EnsureMarket: %w", err)
	}

	var ddl string
	if market.Resolution == 0 {
		ddl = fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %q (
    timestamp INTEGER PRIMARY KEY,
    price     TEXT NOT NULL,
    volume    TEXT NOT NULL,
    CHECK (CAST(volume AS REAL) > 0)
)`, table)
	} else {
		ddl = fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %q (
    timestamp INTEGER PRIMARY KEY,
    open      TEXT NOT NULL,
    high      TEXT NOT NULL,
    low       TEXT NOT NULL,
    close     TEXT NOT NULL,
    volume    TEXT NOT NULL,
    CHECK (CAST(volume AS REAL) > 0),
    CHECK (timestamp %% %d = 0)
)`, table, market.Resolution*60)
	}

	if _, err := repo.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("EnsureMarket: %w", err)
	}
	return nil
}

func (repo *CandleRepo) ListMarkets(ctx context.Context) ([]entity.Market, error) {
	const query = `
SELECT name
FROM sqlite_master
WHERE type = 'table'`
	rows, err := repo.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ListMarkets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	markets := make([]entity.Market, 0, 50)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("ListMarkets: Scan: %w", err)
		}
		if market, ok := pricetable.Parse(name); ok {
			markets = append(markets, market)
		}
	}
	return markets, rows.Err()
}

func (repo *CandleRepo) UpsertCandles(ctx context.Context, candles []*entity.Candle, replace bool) (int64, error) {
	if len(candles) == 0 {
		return 0, nil
	}

	// Validate the whole batch before touching the store.
	tables := make([]string, len(candles))
	for i, candle := range candles {
		if err := candle.Validate(); err != nil {
			return 0, fmt.Errorf("UpsertCandles: %w", err)
		}
		table, err := barTable(candle.Market)
		if err != nil {
			return 0, fmt.Errorf("UpsertCandles: %w", err)
		}
		if !aligned(candle.OpenTime, candle.Market.Resolution) {
			return 0, fmt.Errorf("UpsertCandles: %w: open time %s is off the %dm bar grid",
				entity.ErrInvalidInput, candle.OpenTime.Format(time.RFC3339), candle.Market.Resolution)
		}
		tables[i] = table
	}

	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("UpsertCandles: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var written int64
	for i, candle := range candles {
		var query string
		if replace {
			query = fmt.Sprintf(`
INSERT INTO %q (timestamp, open, high, low, close, volume)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (timestamp) DO UPDATE SET
    open = excluded.open, high = excluded.high, low = excluded.low,
    close = excluded.close, volume = excluded.volume`, tables[i])
		} else {
			query = fmt.Sprintf(`
INSERT INTO %q (timestamp, open, high, low, close, volume)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (timestamp) DO NOTHING`, tables[i])
		}

		res, err := tx.ExecContext(ctx, query,
			candle.OpenTime.UTC().Unix(), candle.Open.String(), candle.High.String(),
			candle.Low.String(), candle.Close.String(), candle.Volume.String())
		if err != nil {
			return 0, fmt.Errorf("UpsertCandles: %w", err)
		}
		n, _ := res.RowsAffected()
		written += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("UpsertCandles: %w", err)
	}
	return written, nil
}

func (repo *CandleRepo) ListRange(ctx context.Context, market entity.Market, from, to time.Time) ([]*entity.Candle, error) {
	table, err := barTable(market)
	if err != nil {
		return nil, fmt.Errorf("ListRange: %w", err)
	}
	query := fmt.Sprintf(`
SELECT timestamp, open, high, low, close, volume
FROM %q
WHERE timestamp BETWEEN ? AND ?
ORDER BY timestamp ASC`, table)

	rows, err := repo.db.QueryContext(ctx, query, from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("ListRange: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candles := make([]*entity.Candle, 0, 256)
	for rows.Next() {
		candle, err := scanBar(rows, market)
		if err != nil {
			return nil, fmt.Errorf("ListRange: %w", err)
		}
		candles = append(candles, candle)
	}
	return candles, rows.Err()
}

func (repo *CandleRepo) GetAt(ctx context.Context, market entity.Market, ts time.Time) (*entity.Candle, error) {
	table, err := barTable(market)
	if err != nil {
		return nil, fmt.Errorf("GetAt: %w", err)
	}
	query := fmt.Sprintf(`
SELECT timestamp, open, high, low, close, volume
FROM %q
WHERE timestamp = ?
LIMIT 1`, table)

	var epoch int64
	var open, high, low, close, volume string
	err = repo.db.QueryRowContext(ctx, query, ts.Unix()).Scan(
		&epoch, &open, &high, &low, &close, &volume)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("GetAt: %w", entity.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetAt: %w", err)
	}

	candle, err := decodeBar(market, epoch, open, high, low, close, volume)
	if err != nil {
		return nil, fmt.Errorf("GetAt: %w", err)
	}
	return candle, nil
}

func (repo *CandleRepo) GetLatest(ctx context.Context, market entity.Market) (*entity.Candle, error) {
	table, err := barTable(market)
	if err != nil {
		return nil, fmt.Errorf("GetLatest: %w", err)
	}
	query := fmt.Sprintf(`
SELECT timestamp, open, high, low, close, volume
FROM %q
ORDER BY timestamp DESC
LIMIT 1`, table)

	var epoch int64
	var open, high, low, close, volume string
	err = repo.db.QueryRowContext(ctx, query).Scan(
		&epoch, &open, &high, &low, &close, &volume)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("GetLatest: %w", entity.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetLatest: %w", err)
	}

	candle, err := decodeBar(market, epoch, open, high, low, close, volume)
	if err != nil {
		return nil, fmt.Errorf("GetLatest: %w", err)
	}
	return candle, nil
}

func (repo *CandleRepo) CountCandles(ctx context.Context, market entity.Market) (int64, error) {
	table, err := barTable(market)
	if err != nil {
		return 0, fmt.Errorf("CountCandles: %w", err)
	}
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %q`, table)

	var count int64
	if err := repo.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("CountCandles: %w", err)
	}
	return count, nil
}

func (repo *CandleRepo) Aggregate(ctx context.Context, market entity.Market, resolution int, from, to time.Time) ([]*entity.Candle, error) {
	if market.Resolution <= 0 || resolution <= 0 || resolution%market.Resolution != 0 {
		return nil, fmt.Errorf("Aggregate: %w: target resolution %dm does not divide into %s bars",
			entity.ErrInvalidInput, resolution, market)
	}

	bars, err := repo.ListRange(ctx, market, from, to)
	if err != nil {
		return nil, fmt.Errorf("Aggregate: %w", err)
	}
	out, err := entity.AggregateCandles(bars, resolution)
	if err != nil {
		return nil, fmt.Errorf("Aggregate: %w", err)
	}
	return out, nil
}

func (repo *CandleRepo) DeleteRange(ctx context.Context, market entity.Market, from, to time.Time) (int64, error) {
	table, err := barTable(market)
	if err != nil {
		return 0, fmt.Errorf("DeleteRange: %w", err)
	}
	query := fmt.Sprintf(`DELETE FROM %q WHERE timestamp BETWEEN ? AND ?`, table)

	res, err := repo.db.ExecContext(ctx, query, from.Unix(), to.Unix())
	if err != nil {
		return 0, fmt.Errorf("DeleteRange: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("DeleteRange: %w", err)
	}
	return n, nil
}
