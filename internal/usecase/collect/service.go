// Package collect implements candle ingestion: walking a market's history
// through the historical feed in admissible windows and upserting the bars
// into the price store. The worker runs it on a schedule to keep every known
// market current; the backfill CLI runs it once over an explicit range.
package collect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"autotrade/internal/common/window"
	"autotrade/internal/domain/entity"
	"autotrade/internal/infra/notifier"
	"autotrade/internal/observability/metrics"
	"autotrade/internal/observability/tracing"
	"autotrade/internal/repository"
	"autotrade/internal/resilience/retry"
	"autotrade/internal/usecase/notify"
)

const (
	// defaultMaxBars mirrors the historical feed's per-call cap.
	defaultMaxBars = 2000
	// defaultParallelism caps how many markets collect concurrently.
	defaultParallelism = 3
	// defaultLookback bounds the first fetch of a market with no stored
	// bars. Deeper history is an explicit BackfillMarket call.
	defaultLookback = 24 * time.Hour
)

// Source fetches a market's bars over one window. The window is sized by the
// caller to fit one admissible feed call; implementations return bars at the
// market's own resolution and drop the feed's gap padding.
type Source interface {
	Fetch(ctx context.Context, market entity.Market, start, end time.Time) ([]entity.Candle, error)
}

// Config holds configuration for collection behavior.
type Config struct {
	// MaxBars caps the bars requested per feed call. Zero uses the
	// historical feed's documented limit.
	MaxBars int
	// Parallelism caps concurrent per-market collection.
	Parallelism int
	// Lookback is how far back a market with no stored bars starts.
	Lookback time.Duration
	// Replace overwrites stored bars that collide on open time. When
	// false, collisions are skipped and the stored bar wins.
	Replace bool
	// Store is the metrics label naming the backing price store,
	// "postgres" or "sqlite".
	Store string
	// Retry governs fetch retries. Zero value uses the market data
	// preset.
	Retry retry.Config
}

// Service provides the candle collection use cases.
type Service struct {
	CandleRepo    repository.CandleRepository
	Source        Source
	NotifyService notify.Service // optional failure notices
	config        Config
}

// NewService creates a collect Service with the provided dependencies.
//
// Parameters:
//   - candleRepo: the price store
//   - source: per-window bar fetch, typically the CryptoCompare client
//   - notifyService: failure notice dispatcher (can be nil to disable)
//   - config: window sizing, fan-out, and retry behavior
func NewService(
	candleRepo repository.CandleRepository,
	source Source,
	notifyService notify.Service,
	config Config,
) Service {
	if config.MaxBars <= 0 {
		config.MaxBars = defaultMaxBars
	}
	if config.Parallelism <= 0 {
		config.Parallelism = defaultParallelism
	}
	if config.Lookback <= 0 {
		config.Lookback = defaultLookback
	}
	if config.Store == "" {
		config.Store = "unknown"
	}
	if config.Retry.MaxAttempts <= 0 {
		config.Retry = retry.MarketDataConfig()
	}
	return Service{
		CandleRepo:    candleRepo,
		Source:        source,
		NotifyService: notifyService,
		config:        config,
	}
}

// MarketStats describes one market's collection pass.
type MarketStats struct {
	Market   entity.Market
	Windows  int
	Fetched  int64
	Rejected int64
	Written  int64
	Duration time.Duration
}

// CollectStats aggregates one collect pass over all markets.
type CollectStats struct {
	Markets  int
	Failed   int64
	Fetched  int64
	Written  int64
	Duration time.Duration
}

// BackfillMarket collects the market's bars over the closed range [from, to]
// and writes them to the price store. The range is cut into feed-sized
// windows walked oldest first and upserted window by window, so a run cut
// short by its deadline has persisted every window it completed and the next
// run resumes behind the newest stored bar.
func (s *Service) BackfillMarket(ctx context.Context, market entity.Market, from, to time.Time) (stats *MarketStats, err error) {
	ctx, span := tracing.StartStep(ctx, "collect", market.String())
	defer func() { tracing.EndJob(span, err) }()

	if err := market.Validate(); err != nil {
		return nil, err
	}
	if market.Resolution < 1 {
		return nil, fmt.Errorf("market %s carries no bar resolution to collect at", market)
	}

	logger := slog.Default()
	start := time.Now()
	stats = &MarketStats{Market: market}

	resolution := time.Duration(market.Resolution) * time.Minute
	windows, err := window.Split(from, to, resolution, s.config.MaxBars)
	if err != nil {
		return nil, fmt.Errorf("split range: %w", err)
	}
	stats.Windows = len(windows)
	if len(windows) == 0 {
		logger.Info("range holds no whole bar, nothing to collect",
			slog.String("market", market.String()),
			slog.Time("from", from),
			slog.Time("to", to))
		return stats, nil
	}

	if err := s.CandleRepo.EnsureMarket(ctx, market); err != nil {
		metrics.RecordCollectError(market.String(), "ensure_market_failed")
		return stats, fmt.Errorf("ensure market table: %w", err)
	}

	for _, w := range windows {
		var bars []entity.Candle
		fetchErr := retry.WithBackoff(ctx, s.config.Retry, func() error {
			var ferr error
			bars, ferr = s.Source.Fetch(ctx, market, w.Start, w.End)
			return ferr
		})
		if fetchErr != nil {
			metrics.RecordCollectError(market.String(), "fetch_failed")
			return stats, fmt.Errorf("fetch %s [%s, %s]: %w", market,
				w.Start.UTC().Format(time.RFC3339), w.End.UTC().Format(time.RFC3339), fetchErr)
		}
		metrics.RecordCandlesFetched(market.String(), len(bars))
		stats.Fetched += int64(len(bars))

		batch := make([]*entity.Candle, 0, len(bars))
		for i := range bars {
			c := bars[i]
			if err := c.Validate(); err != nil {
				stats.Rejected++
				logger.Warn("dropping invalid bar",
					slog.String("market", market.String()),
					slog.Time("open_time", c.OpenTime),
					slog.Any("error", err))
				continue
			}
			batch = append(batch, &c)
		}
		if len(batch) == 0 {
			continue
		}

		written, err := s.CandleRepo.UpsertCandles(ctx, batch, s.config.Replace)
		if err != nil {
			metrics.RecordCollectError(market.String(), "upsert_failed")
			return stats, fmt.Errorf("upsert candles: %w", err)
		}
		metrics.RecordCandlesWritten(market.String(), s.config.Store, written)
		stats.Written += written
	}

	stats.Duration = time.Since(start)
	metrics.RecordCollect(market.String(), stats.Duration)

	logger.Info("market collection completed",
		slog.String("market", market.String()),
		slog.Int("windows", stats.Windows),
		slog.Int64("fetched", stats.Fetched),
		slog.Int64("rejected", stats.Rejected),
		slog.Int64("written", stats.Written),
		slog.Duration("duration", stats.Duration))

	return stats, nil
}

// CollectAll brings every known market up to date in one pass. Markets are
// rediscovered from the price store, so whatever earlier runs collected
// keeps updating without configuration. Markets collect concurrently under
// the parallelism cap; a failing market is logged, counted, and reported in
// one summary notice so one stale feed cannot stall the rest.
func (s *Service) CollectAll(ctx context.Context) (stats *CollectStats, err error) {
	ctx, span := tracing.StartJob(ctx, "collect")
	defer func() { tracing.EndJob(span, err) }()

	logger := slog.Default()
	start := time.Now()
	stats = &CollectStats{}

	markets, err := s.CandleRepo.ListMarkets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list markets: %w", err)
	}
	stats.Markets = len(markets)
	metrics.UpdateMarketsTotal(len(markets))

	if len(markets) == 0 {
		logger.Info("no markets to collect")
		return stats, nil
	}

	now := time.Now().UTC()

	var mu sync.Mutex
	var failed []string

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.config.Parallelism)
	for _, m := range markets {
		market := m
		eg.Go(func() error {
			mstats, err := s.updateMarket(egCtx, market, now)
			if mstats != nil {
				atomic.AddInt64(&stats.Fetched, mstats.Fetched)
				atomic.AddInt64(&stats.Written, mstats.Written)
			}
			if err != nil {
				logger.Warn("market collection failed",
					slog.String("market", market.String()),
					slog.Any("error", err))
				atomic.AddInt64(&stats.Failed, 1)
				mu.Lock()
				failed = append(failed, fmt.Sprintf("%s: %v", market, err))
				mu.Unlock()
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return stats, err
	}

	// An interrupted pass leaves the remaining markets failed on context
	// errors; surface the interruption instead of a failure notice.
	if err := ctx.Err(); err != nil {
		return stats, fmt.Errorf("collect pass interrupted: %w", err)
	}

	stats.Duration = time.Since(start)
	logger.Info("collect pass completed",
		slog.Int("markets", stats.Markets),
		slog.Int64("failed", stats.Failed),
		slog.Int64("fetched", stats.Fetched),
		slog.Int64("written", stats.Written),
		slog.Duration("duration", stats.Duration))

	if len(failed) > 0 {
		s.notifyFailures(failed)
	}

	return stats, nil
}

// updateMarket advances one market from its newest stored bar to now. A
// market with no stored bars starts Lookback ago rather than at the dawn of
// its history.
func (s *Service) updateMarket(ctx context.Context, market entity.Market, now time.Time) (*MarketStats, error) {
	var from time.Time
	latest, err := s.CandleRepo.GetLatest(ctx, market)
	switch {
	case err == nil:
		from = latest.OpenTime.Add(time.Duration(market.Resolution) * time.Minute)
	case errors.Is(err, entity.ErrNotFound):
		from = now.Add(-s.config.Lookback)
	default:
		return nil, fmt.Errorf("latest stored bar: %w", err)
	}

	stats, err := s.BackfillMarket(ctx, market, from, now)
	if err != nil {
		return stats, err
	}

	if latest, err := s.CandleRepo.GetLatest(ctx, market); err == nil {
		metrics.UpdateCollectLag(market.String(), time.Since(latest.OpenTime))
	}
	return stats, nil
}

// notifyFailures raises one notice summarizing the pass's failed markets.
// Delivery is fire-and-forget like the watch alerts: a delivery problem
// only logs.
func (s *Service) notifyFailures(failed []string) {
	if s.NotifyService == nil {
		return
	}
	msg := &notifier.Message{
		Title:     fmt.Sprintf("Collect failed for %d market(s)", len(failed)),
		Body:      strings.Join(failed, "\n"),
		Footer:    "collector",
		Timestamp: time.Now(),
	}
	if err := s.NotifyService.Dispatch(context.Background(), msg); err != nil {
		slog.Warn("failed to dispatch collect failure notice",
			slog.Any("error", err))
	}
}
