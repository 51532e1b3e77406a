package watch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"autotrade/internal/domain/entity"
	"autotrade/internal/infra/notifier"
	"autotrade/internal/observability/metrics"
	"autotrade/internal/observability/tracing"
	"autotrade/internal/repository"
	"autotrade/internal/usecase/notify"
)

// defaultParallelism is used when Config.Parallelism is unset.
const defaultParallelism = 4

// Scraper fetches news items from one source. Implementations exist for
// RSS/Atom feeds and for exchange announcement pages, and are selected by
// the source's type.
type Scraper interface {
	Fetch(ctx context.Context, src *entity.Source) ([]Item, error)
}

// Item represents a single news item returned by a Scraper before it is
// stored as a headline.
type Item struct {
	Title       string
	URL         string
	Content     string
	PublishedAt time.Time
}

// Config holds configuration for crawl behavior.
type Config struct {
	// Parallelism caps concurrent per-item processing within one source.
	Parallelism int
	// Threshold is the minimum feed summary length, in bytes, below which
	// the full article page is fetched for a better stored summary. Zero
	// disables page fetching even when a ContentFetcher is configured.
	Threshold int
}

// Service provides the news watch use cases. It orchestrates crawling the
// sources, storing new headlines, and raising alerts for headlines that
// mention a watched symbol.
type Service struct {
	SourceRepo     repository.SourceRepository
	HeadlineRepo   repository.HeadlineRepository
	FeedScraper    Scraper            // RSS/Atom reader, also the fallback
	PageScrapers   map[string]Scraper // announcement scrapers keyed by source type
	ContentFetcher ContentFetcher     // optional full-article extraction
	NotifyService  notify.Service     // optional alert fan-out
	keywords       map[string][]string
	config         Config
}

// NewService creates a new watch Service with the provided dependencies.
//
// Parameters:
//   - sourceRepo: store for watched sources and their crawl state
//   - headlineRepo: store for collected headlines
//   - feedScraper: RSS/Atom scraper, used for RSS sources and as the fallback
//   - pageScrapers: scrapers for non-feed source types (can be nil)
//   - contentFetcher: full-article text extraction (can be nil to disable)
//   - notifyService: alert dispatcher (can be nil to disable alerts)
//   - keywords: watched symbols mapped to their lowercased match terms
//   - config: crawl parallelism and content fetch threshold
func NewService(
	sourceRepo repository.SourceRepository,
	headlineRepo repository.HeadlineRepository,
	feedScraper Scraper,
	pageScrapers map[string]Scraper,
	contentFetcher ContentFetcher,
	notifyService notify.Service,
	keywords map[string][]string,
	config Config,
) Service {
	if config.Parallelism <= 0 {
		config.Parallelism = defaultParallelism
	}
	return Service{
		SourceRepo:     sourceRepo,
		HeadlineRepo:   headlineRepo,
		FeedScraper:    feedScraper,
		PageScrapers:   pageScrapers,
		ContentFetcher: contentFetcher,
		NotifyService:  notifyService,
		keywords:       keywords,
		config:         config,
	}
}

// WatchStats contains statistics about one watch pass.
type WatchStats struct {
	Sources    int
	Items      int64
	Inserted   int64
	Duplicated int64
	Rejected   int64
	Matched    int64
	Duration   time.Duration
}

// WatchAllSources crawls every active source once. For each source it
// fetches the items, filters out headlines already in the store with one
// batch URL check, stores the new ones, and dispatches an alert for every
// stored headline that mentions a watched symbol. A source that fails to
// fetch is logged and skipped so one broken feed cannot stall the rest of
// the watch.
func (s *Service) WatchAllSources(ctx context.Context) (stats *WatchStats, err error) {
	ctx, span := tracing.StartJob(ctx, "watch")
	defer func() { tracing.EndJob(span, err) }()

	logger := slog.Default()
	startAll := time.Now()
	stats = &WatchStats{}

	srcs, err := s.SourceRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active sources: %w", err)
	}
	stats.Sources = len(srcs)

	for _, src := range srcs {
		stepCtx, stepSpan := tracing.StartStep(ctx, "crawl", src.Name)
		err = s.processSource(stepCtx, src, stats)
		tracing.EndJob(stepSpan, err)
		if err != nil {
			return stats, err
		}
	}

	stats.Duration = time.Since(startAll)
	logger.Info("watch pass completed",
		slog.Int("sources", stats.Sources),
		slog.Int64("items", stats.Items),
		slog.Int64("inserted", stats.Inserted),
		slog.Int64("duplicated", stats.Duplicated),
		slog.Int64("rejected", stats.Rejected),
		slog.Int64("matched", stats.Matched),
		slog.Duration("duration", stats.Duration),
	)

	return stats, nil
}

// selectScraper chooses the scraper for a source based on its type.
// Unknown types fall back to the feed scraper with a warning.
func (s *Service) selectScraper(src *entity.Source) Scraper {
	// Empty type means RSS for rows that predate source types.
	if src.SourceType == "" || src.SourceType == "RSS" {
		return s.FeedScraper
	}

	if s.PageScrapers != nil {
		if scraper, exists := s.PageScrapers[src.SourceType]; exists {
			return scraper
		}
	}

	slog.Warn("unknown source type, falling back to feed scraper",
		slog.String("source_type", src.SourceType),
		slog.Int64("source_id", src.ID),
		slog.String("source_name", src.Name))
	return s.FeedScraper
}

// processSource crawls a single source: fetch, dedupe, store, alert, and
// touch the crawl timestamp. It updates the provided stats atomically.
// Fetch and batch-check failures are logged and skipped so the pass can
// continue with the other sources; storage failures abort the pass.
func (s *Service) processSource(ctx context.Context, src *entity.Source, stats *WatchStats) error {
	logger := slog.Default()
	sourceStart := time.Now()

	scraper := s.selectScraper(src)

	items, err := scraper.Fetch(ctx, src)
	if err != nil {
		logger.Warn("failed to fetch source",
			slog.Int64("source_id", src.ID),
			slog.String("feed_url", src.FeedURL),
			slog.Any("error", err))
		metrics.RecordWatchCrawlError(src.ID, "fetch_failed")
		// Continue with other sources even if one fails.
		return nil
	}

	if len(items) == 0 {
		logger.Info("source returned no items",
			slog.Int64("source_id", src.ID),
			slog.String("feed_url", src.FeedURL))
		return nil
	}

	metrics.RecordHeadlinesFetched(src.Name, src.ID, len(items))

	// One batch existence check instead of one query per item.
	urls := make([]string, 0, len(items))
	for _, item := range items {
		urls = append(urls, item.URL)
	}
	existsMap, err := s.HeadlineRepo.ExistsByURLBatch(ctx, urls)
	if err != nil {
		logger.Warn("failed to batch check URLs",
			slog.Int64("source_id", src.ID),
			slog.Any("error", err))
		metrics.RecordWatchCrawlError(src.ID, "batch_check_failed")
		return nil
	}

	beforeInserted := atomic.LoadInt64(&stats.Inserted)
	beforeDuplicated := atomic.LoadInt64(&stats.Duplicated)

	if err := s.processItems(ctx, src, items, existsMap, stats); err != nil {
		metrics.RecordWatchCrawlError(src.ID, "process_items_failed")
		return fmt.Errorf("process source items: %w", err)
	}

	safeCtx := context.WithoutCancel(ctx)
	if err := s.SourceRepo.TouchCrawledAt(safeCtx, src.ID, time.Now()); err != nil {
		return fmt.Errorf("update source crawled timestamp: %w", err)
	}

	sourceDuration := time.Since(sourceStart)
	metrics.RecordWatchCrawl(src.ID, sourceDuration)

	logger.Info("source crawl completed",
		slog.Int64("source_id", src.ID),
		slog.Int("items", len(items)),
		slog.Int64("inserted", atomic.LoadInt64(&stats.Inserted)-beforeInserted),
		slog.Int64("duplicated", atomic.LoadInt64(&stats.Duplicated)-beforeDuplicated),
		slog.Duration("duration", sourceDuration),
	)

	return nil
}

// processItems stores the new items from one source in parallel and raises
// alerts for watched-symbol matches.
//
// Error Handling:
//   - Context cancellation (context.Canceled, context.DeadlineExceeded): propagates immediately (aborts the pass)
//   - Storage errors: propagate (abort the pass for this source)
//   - Invalid items: logged, counted in stats.Rejected, processing continues with other items
func (s *Service) processItems(
	ctx context.Context,
	src *entity.Source,
	items []Item,
	existsMap map[string]bool,
	stats *WatchStats,
) error {
	sem := make(chan struct{}, s.config.Parallelism)
	eg, egCtx := errgroup.WithContext(ctx)

	for _, it := range items {
		item := it

		atomic.AddInt64(&stats.Items, 1)

		if existsMap[item.URL] {
			atomic.AddInt64(&stats.Duplicated, 1)
			continue
		}

		eg.Go(func() error {
			sem <- struct{}{}
			summary := s.enhanceSummary(egCtx, item)
			<-sem

			head := &entity.Headline{
				SourceID:    src.ID,
				Title:       item.Title,
				URL:         item.URL,
				Summary:     summary,
				PublishedAt: item.PublishedAt,
				CreatedAt:   time.Now(),
			}
			if err := head.Validate(); err != nil {
				atomic.AddInt64(&stats.Rejected, 1)
				slog.Warn("dropping invalid item",
					slog.Int64("source_id", src.ID),
					slog.String("url", item.URL),
					slog.Any("error", err))
				return nil
			}

			if err := s.HeadlineRepo.Create(egCtx, head); err != nil {
				return fmt.Errorf("create headline: %w", err)
			}
			atomic.AddInt64(&stats.Inserted, 1)

			symbols := s.matchedSymbols(head.Title)
			if len(symbols) == 0 {
				return nil
			}
			atomic.AddInt64(&stats.Matched, 1)
			metrics.RecordHeadlineMatched(src.Name)

			if s.NotifyService == nil {
				return nil
			}
			// Dispatch is fire-and-forget; Background keeps the alert alive
			// after the crawl context ends.
			if err := s.NotifyService.Dispatch(context.Background(), buildAlert(src, head, symbols)); err != nil {
				slog.Warn("failed to dispatch alert",
					slog.Int64("headline_id", head.ID),
					slog.String("url", head.URL),
					slog.Any("error", err))
			}
			return nil
		})
	}

	return eg.Wait()
}

// matchedSymbols returns the watched symbols whose terms appear in the
// title, sorted. Matching is a case-insensitive substring check against
// the configured terms.
func (s *Service) matchedSymbols(title string) []string {
	if len(s.keywords) == 0 {
		return nil
	}

	lower := strings.ToLower(title)
	var matched []string
	for symbol, terms := range s.keywords {
		for _, term := range terms {
			if term != "" && strings.Contains(lower, term) {
				matched = append(matched, symbol)
				break
			}
		}
	}
	if len(matched) == 0 {
		return nil
	}
	sort.Strings(matched)
	return matched
}

// buildAlert renders the notification for a headline that matched one or
// more watched symbols.
func buildAlert(src *entity.Source, head *entity.Headline, symbols []string) *notifier.Message {
	return &notifier.Message{
		Title:     fmt.Sprintf("%s: %s", strings.Join(symbols, ", "), head.Title),
		Body:      head.Summary,
		URL:       head.URL,
		Footer:    src.Name,
		Timestamp: head.PublishedAt,
	}
}

// enhanceSummary upgrades a short feed summary by fetching the article
// page. It never returns an error: on any failure the feed summary is
// kept, so page problems cannot break the crawl.
//
// Behavior:
//   - ContentFetcher == nil → keep the feed summary (feature disabled)
//   - summary length >= Threshold → keep the feed summary (skip fetch)
//   - fetch error → keep the feed summary
//   - fetched text shorter than the feed summary → keep the feed summary
func (s *Service) enhanceSummary(ctx context.Context, item Item) string {
	if s.ContentFetcher == nil {
		return item.Content
	}

	feedLength := len(item.Content)
	if feedLength >= s.config.Threshold {
		return item.Content
	}

	fullText, err := s.ContentFetcher.FetchContent(ctx, item.URL)
	if err != nil {
		slog.Warn("content fetch failed, keeping feed summary",
			slog.String("url", item.URL),
			slog.Any("error", err))
		return item.Content
	}

	// A shorter extraction usually means the reader only got navigation
	// chrome rather than the article body.
	if len(fullText) > feedLength {
		return fullText
	}
	return item.Content
}
