// Package main provides a CLI command for inspecting the stored candles.
// Usage: autotrade-candles MARKET [--from T] [--to T] [--resolution N] [--output json]
//
// With --list it prints every market the store holds instead.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"autotrade/internal/domain/entity"
	pgRepo "autotrade/internal/infra/adapter/persistence/postgres"
	sqliteRepo "autotrade/internal/infra/adapter/persistence/sqlite"
	"autotrade/internal/infra/db"
	"autotrade/internal/repository"
	pkgconfig "autotrade/pkg/config"
)

// MarketOutput represents one market row in --list output.
type MarketOutput struct {
	Market string `json:"market"`
	Bars   int64  `json:"bars"`
	Latest string `json:"latest,omitempty"`
}

// CandleOutput represents a single bar in the JSON output. Prices stay
// strings so the fixed-point values survive any JSON consumer.
type CandleOutput struct {
	OpenTime string `json:"open_time"`
	Open     string `json:"open"`
	High     string `json:"high"`
	Low      string `json:"low"`
	Close    string `json:"close"`
	Volume   string `json:"volume"`
}

// RangeOutput represents the JSON output for a range query.
type RangeOutput struct {
	Market     string         `json:"market"`
	Resolution int            `json:"resolution"`
	From       string         `json:"from"`
	To         string         `json:"to"`
	Count      int            `json:"count"`
	Candles    []CandleOutput `json:"candles"`
}

func main() {
	var (
		list         bool
		fromFlag     string
		toFlag       string
		resolution   int
		outputFormat string
		sqlitePath   string
		timeout      time.Duration
	)

	flag.BoolVar(&list, "list", false, "List the markets the store holds")
	flag.StringVar(&fromFlag, "from", "", "Range start (default 24h before --to)")
	flag.StringVar(&toFlag, "to", "", "Range end (default now)")
	flag.IntVar(&resolution, "resolution", 0, "Aggregate to this resolution in minutes (default native)")
	flag.StringVar(&outputFormat, "output", "text", "Output format: text or json")
	flag.StringVar(&sqlitePath, "sqlite", "", "Read a local SQLite store instead of PostgreSQL")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "Query timeout")
	flag.Parse()

	args := flag.Args()
	if !list && len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Error: MARKET argument is required (or use --list)")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Usage: autotrade-candles MARKET [--from T] [--to T] [--resolution N] [--output json] [--sqlite FILE]")
		fmt.Fprintln(os.Stderr, "       autotrade-candles --list [--sqlite FILE]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Times accept 2006-01-02, \"2006-01-02 15:04\" or RFC3339.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Examples:")
		fmt.Fprintln(os.Stderr, "  autotrade-candles --list")
		fmt.Fprintln(os.Stderr, "  autotrade-candles CCCAGG:BTC/USD@1m --from 2026-08-24")
		fmt.Fprintln(os.Stderr, "  autotrade-candles CCCAGG:BTC/USD@1m --from 2026-08-01 --to 2026-08-07 --resolution 60")
		fmt.Fprintln(os.Stderr, "  autotrade-candles coinbase:ETH/USD --sqlite research.db --output json")
		os.Exit(1)
	}

	// .env values may include LOG_LEVEL, so load before the logger exists.
	dotenvErr := pkgconfig.LoadDotEnv()
	logger := initLogger()
	if dotenvErr != nil {
		logger.Warn("failed to load .env file", slog.Any("error", dotenvErr))
	}

	candleRepo, database := openStore(logger, sqlitePath)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close store", slog.Any("error", err))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if list {
		listMarkets(ctx, logger, candleRepo, outputFormat)
		return
	}

	market, err := entity.ParseMarket(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	from, to, err := resolveRange(fromFlag, toFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	candles, barResolution, err := queryRange(ctx, candleRepo, market, resolution, from, to)
	if err != nil {
		logger.Error("range query failed", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if outputFormat == "json" {
		outputRangeJSON(market, barResolution, from, to, candles)
	} else {
		outputRangeText(market, barResolution, from, to, candles)
	}
}

// queryRange reads the market's bars over [from, to], aggregating to the
// requested resolution when it is coarser than the stored one.
func queryRange(ctx context.Context, candleRepo repository.CandleRepository, market entity.Market, resolution int, from, to time.Time) ([]*entity.Candle, int, error) {
	if resolution == 0 || resolution == market.Resolution {
		candles, err := candleRepo.ListRange(ctx, market, from, to)
		return candles, market.Resolution, err
	}
	if market.Resolution < 1 || resolution < market.Resolution || resolution%market.Resolution != 0 {
		return nil, 0, fmt.Errorf("resolution %dm does not aggregate %s bars", resolution, market)
	}
	candles, err := candleRepo.Aggregate(ctx, market, resolution, from, to)
	return candles, resolution, err
}

// listMarkets prints every stored market with its bar count and newest bar.
func listMarkets(ctx context.Context, logger *slog.Logger, candleRepo repository.CandleRepository, outputFormat string) {
	markets, err := candleRepo.ListMarkets(ctx)
	if err != nil {
		logger.Error("failed to list markets", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	rows := make([]MarketOutput, 0, len(markets))
	for _, market := range markets {
		row := MarketOutput{Market: market.String()}
		if row.Bars, err = candleRepo.CountCandles(ctx, market); err != nil {
			logger.Warn("failed to count bars",
				slog.String("market", market.String()), slog.Any("error", err))
		}
		latest, err := candleRepo.GetLatest(ctx, market)
		switch {
		case err == nil:
			row.Latest = latest.OpenTime.UTC().Format(time.RFC3339)
		case !errors.Is(err, entity.ErrNotFound):
			logger.Warn("failed to read newest bar",
				slog.String("market", market.String()), slog.Any("error", err))
		}
		rows = append(rows, row)
	}

	if outputFormat == "json" {
		encodeJSON(rows)
		return
	}

	if len(rows) == 0 {
		fmt.Println("The store holds no markets.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MARKET\tBARS\tLATEST")
	for _, row := range rows {
		latest := row.Latest
		if latest == "" {
			latest = "-"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", row.Market, row.Bars, latest)
	}
	_ = w.Flush()
}

// outputRangeText prints the bars in a fixed-width table.
func outputRangeText(market entity.Market, resolution int, from, to time.Time, candles []*entity.Candle) {
	fmt.Printf("Market: %s\n", market)
	fmt.Printf("Range: %s .. %s @ %dm\n", from.Format(time.RFC3339), to.Format(time.RFC3339), resolution)
	fmt.Printf("Bars: %d\n\n", len(candles))

	if len(candles) == 0 {
		fmt.Println("No bars stored in this range.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "OPEN TIME\tOPEN\tHIGH\tLOW\tCLOSE\tVOLUME")
	for _, c := range candles {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			c.OpenTime.UTC().Format(time.RFC3339),
			c.Open, c.High, c.Low, c.Close, c.Volume)
	}
	_ = w.Flush()
}

// outputRangeJSON prints the bars in JSON format.
func outputRangeJSON(market entity.Market, resolution int, from, to time.Time, candles []*entity.Candle) {
	out := RangeOutput{
		Market:     market.String(),
		Resolution: resolution,
		From:       from.Format(time.RFC3339),
		To:         to.Format(time.RFC3339),
		Count:      len(candles),
		Candles:    make([]CandleOutput, len(candles)),
	}
	for i, c := range candles {
		out.Candles[i] = CandleOutput{
			OpenTime: c.OpenTime.UTC().Format(time.RFC3339),
			Open:     c.Open.String(),
			High:     c.High.String(),
			Low:      c.Low.String(),
			Close:    c.Close.String(),
			Volume:   c.Volume.String(),
		}
	}
	encodeJSON(out)
}

func encodeJSON(v any) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to encode JSON: %v\n", err)
		os.Exit(1)
	}
}

// resolveRange turns the --from/--to flags into a UTC range, defaulting to
// the 24 hours up to now.
func resolveRange(fromFlag, toFlag string) (time.Time, time.Time, error) {
	to := time.Now().UTC()
	if toFlag != "" {
		parsed, err := parseTime(toFlag)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = parsed
	}
	from := to.Add(-24 * time.Hour)
	if fromFlag != "" {
		parsed, err := parseTime(fromFlag)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = parsed
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("--from %s is not before --to %s", from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	return from, to, nil
}

func parseTime(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q (want 2006-01-02 or RFC3339)", value)
}

// openStore opens the PostgreSQL pool, or a local SQLite file with --sqlite.
func openStore(logger *slog.Logger, sqlitePath string) (repository.CandleRepository, *sql.DB) {
	if sqlitePath != "" {
		database := db.OpenSQLite(sqlitePath)
		logger.Info("using SQLite store", slog.String("path", sqlitePath))
		return sqliteRepo.NewCandleRepo(database), database
	}
	database := db.Open()
	return pgRepo.NewCandleRepo(database), database
}

// initLogger initializes and returns a structured logger. CLI logs go to
// stderr so stdout carries only the query results.
func initLogger() *slog.Logger {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	return logger
}
