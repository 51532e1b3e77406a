// Package main provides a CLI command for backfilling market history.
// Usage: autotrade-backfill --from 2026-01-01 [--to 2026-02-01] [--market Bitstamp:BTC/USD@1m] [--sqlite FILE] [--replace]
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"autotrade/internal/config"
	"autotrade/internal/domain/entity"
	pgRepo "autotrade/internal/infra/adapter/persistence/postgres"
	sqliteRepo "autotrade/internal/infra/adapter/persistence/sqlite"
	"autotrade/internal/infra/db"
	"autotrade/internal/infra/market/cryptocompare"
	"autotrade/internal/observability/logging"
	"autotrade/internal/repository"
	collectUC "autotrade/internal/usecase/collect"
	pkgconfig "autotrade/pkg/config"
)

func main() {
	var (
		marketSpec string
		fromFlag   string
		toFlag     string
		days       int
		replace    bool
		sqlitePath string
		timeout    time.Duration
	)

	flag.StringVar(&marketSpec, "market", "", "Market to backfill, e.g. Bitstamp:BTC/USD@1m (default: every configured market)")
	flag.StringVar(&fromFlag, "from", "", "Range start, 2006-01-02 or RFC3339")
	flag.StringVar(&toFlag, "to", "", "Range end (default: now)")
	flag.IntVar(&days, "days", 0, "Backfill the last N days instead of --from")
	flag.BoolVar(&replace, "replace", false, "Overwrite stored bars instead of skipping collisions")
	flag.StringVar(&sqlitePath, "sqlite", "", "Write to this SQLite file instead of DATABASE_URL")
	flag.DurationVar(&timeout, "timeout", 30*time.Minute, "Overall run timeout")
	flag.Parse()

	// .env values may include LOG_LEVEL, so load before the logger exists.
	dotenvErr := pkgconfig.LoadDotEnv()
	logger := initLogger()
	if dotenvErr != nil {
		logger.Warn("failed to load .env file", slog.Any("error", dotenvErr))
	}

	from, to, err := resolveRange(fromFlag, toFlag, days)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Usage: autotrade-backfill --from 2026-01-01 [--to 2026-02-01] [--market Bitstamp:BTC/USD@1m]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Examples:")
		fmt.Fprintln(os.Stderr, "  autotrade-backfill --days 30")
		fmt.Fprintln(os.Stderr, "  autotrade-backfill --from 2026-01-01 --to 2026-02-01 --market Bitstamp:BTC/USD@1m")
		fmt.Fprintln(os.Stderr, "  autotrade-backfill --days 7 --sqlite research.db --replace")
		os.Exit(1)
	}

	markets, err := resolveMarkets(marketSpec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	candleRepo, store, database := openStore(logger, sqlitePath)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	client, err := cryptocompare.New(cryptocompare.LoadConfigFromEnv())
	if err != nil {
		logger.Error("failed to create market data client", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Error: Failed to create market data client: %v\n", err)
		os.Exit(1)
	}

	service := collectUC.NewService(candleRepo, &cryptocompare.Source{Client: client}, nil, collectUC.Config{
		Replace: replace,
		Store:   store,
	})

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logger.Info("backfill started",
		slog.Int("markets", len(markets)),
		slog.Time("from", from),
		slog.Time("to", to),
		slog.String("store", store))

	failed := 0
	for _, market := range markets {
		stats, err := service.BackfillMarket(ctx, market, from, to)
		if err != nil {
			logger.Error("backfill failed",
				slog.String("market", market.String()),
				slog.String("error", logging.SanitizeError(err)))
			fmt.Printf("%s: FAILED: %v\n", market, err)
			failed++
			continue
		}
		fmt.Printf("%s: %d windows, %d fetched, %d written, %d rejected (%s)\n",
			market, stats.Windows, stats.Fetched, stats.Written, stats.Rejected,
			stats.Duration.Round(time.Millisecond))
	}

	if failed > 0 {
		fmt.Printf("%d of %d markets failed\n", failed, len(markets))
		os.Exit(1)
	}
}

// resolveRange turns the --from/--to/--days flags into a concrete range.
func resolveRange(fromFlag, toFlag string, days int) (from, to time.Time, err error) {
	switch {
	case fromFlag != "" && days > 0:
		return from, to, fmt.Errorf("--from and --days are mutually exclusive")
	case fromFlag == "" && days <= 0:
		return from, to, fmt.Errorf("either --from or --days is required")
	}

	to = time.Now().UTC()
	if toFlag != "" {
		if to, err = parseTime(toFlag); err != nil {
			return from, to, err
		}
	}

	if days > 0 {
		from = to.AddDate(0, 0, -days)
	} else {
		if from, err = parseTime(fromFlag); err != nil {
			return from, to, err
		}
	}

	if !from.Before(to) {
		return from, to, fmt.Errorf("range start %s is not before end %s", from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	return from, to, nil
}

// parseTime accepts a date or an RFC3339 timestamp.
func parseTime(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q (want 2006-01-02 or RFC3339)", value)
}

// resolveMarkets parses the --market flag, or falls back to every market
// in the toolkit configuration.
func resolveMarkets(marketSpec string) ([]entity.Market, error) {
	if marketSpec != "" {
		market, err := entity.ParseMarket(marketSpec)
		if err != nil {
			return nil, err
		}
		return []entity.Market{market}, nil
	}

	path := pkgconfig.GetEnvString("TOOLKIT_CONFIG", "toolkit.yaml")
	toolkit, err := config.LoadToolkit(path)
	if err != nil {
		return nil, fmt.Errorf("no --market given and toolkit config failed: %w", err)
	}
	markets, err := toolkit.EntityMarkets()
	if err != nil {
		return nil, err
	}
	if len(markets) == 0 {
		return nil, fmt.Errorf("no --market given and %s lists no markets", path)
	}
	return markets, nil
}

// openStore opens the configured price store. The SQLite path serves
// local research runs; the default is the shared PostgreSQL store.
func openStore(logger *slog.Logger, sqlitePath string) (repository.CandleRepository, string, *sql.DB) {
	if sqlitePath != "" {
		database := db.OpenSQLite(sqlitePath)
		logger.Info("using SQLite store", slog.String("path", sqlitePath))
		return sqliteRepo.NewCandleRepo(database), "sqlite", database
	}
	database := db.Open()
	return pgRepo.NewCandleRepo(database), "postgres", database
}

// initLogger initializes and returns a structured logger. CLI logs go to
// stderr so stdout carries only the per-market results.
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
