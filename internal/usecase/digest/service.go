// Package digest builds and publishes the daily market digest: the day's
// stored headlines rendered into a short narrative by an AI digester and
// delivered through the notification channels.
package digest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"autotrade/internal/infra/notifier"
	"autotrade/internal/observability/metrics"
	"autotrade/internal/observability/tracing"
	"autotrade/internal/repository"
	"autotrade/internal/usecase/notify"
)

const (
	// defaultWindow is how far back headlines are gathered when
	// Config.Window is unset.
	defaultWindow = 24 * time.Hour

	// defaultMaxHeadlines caps the block fed to the digester when
	// Config.MaxHeadlines is unset.
	defaultMaxHeadlines = 50
)

// ErrNoHeadlines is returned by Render when the window holds no headlines.
var ErrNoHeadlines = errors.New("no headlines in digest window")

// Digester renders a bounded-length digest from a block of headline lines.
// Implementations live in internal/infra/digest.
type Digester interface {
	Digest(ctx context.Context, headlines string) (string, error)
}

// Config holds configuration for digest generation.
type Config struct {
	// Window is how far back headlines are gathered. Zero means 24 hours.
	Window time.Duration
	// MaxHeadlines caps how many headlines feed one digest, newest first.
	// Zero means 50.
	MaxHeadlines int
}

// Service provides the daily digest use cases.
type Service struct {
	HeadlineRepo  repository.HeadlineRepository
	Digester      Digester
	NotifyService notify.Service // optional delivery fan-out
	config        Config
}

// NewService creates a digest Service with the provided dependencies.
//
// Parameters:
//   - headlineRepo: store holding the collected headlines
//   - digester: renders the digest text (Claude, OpenAI, or NoOp)
//   - notifyService: delivery fan-out (can be nil; Publish then only logs)
//   - config: gathering window and headline cap
func NewService(
	headlineRepo repository.HeadlineRepository,
	digester Digester,
	notifyService notify.Service,
	config Config,
) Service {
	if config.Window <= 0 {
		config.Window = defaultWindow
	}
	if config.MaxHeadlines <= 0 {
		config.MaxHeadlines = defaultMaxHeadlines
	}
	return Service{
		HeadlineRepo:  headlineRepo,
		Digester:      digester,
		NotifyService: notifyService,
		config:        config,
	}
}

// Render gathers the window's headlines newest first and has the digester
// turn them into the digest text. Returns ErrNoHeadlines when the window
// is empty.
func (s *Service) Render(ctx context.Context) (string, error) {
	since := time.Now().Add(-s.config.Window)
	rows, err := s.HeadlineRepo.ListWithSource(ctx, repository.HeadlineRangeFilters{From: &since}, s.config.MaxHeadlines)
	if err != nil {
		return "", fmt.Errorf("list headlines: %w", err)
	}
	if len(rows) == 0 {
		return "", ErrNoHeadlines
	}

	slog.InfoContext(ctx, "rendering digest",
		slog.Int("headlines", len(rows)),
		slog.Duration("window", s.config.Window))

	digest, err := s.Digester.Digest(ctx, buildHeadlineBlock(rows))
	if err != nil {
		return "", fmt.Errorf("render digest: %w", err)
	}
	return digest, nil
}

// Publish renders the digest and dispatches it to the notification
// channels. An empty window is not a failure: the run logs and skips
// delivery.
func (s *Service) Publish(ctx context.Context) (err error) {
	ctx, span := tracing.StartJob(ctx, "digest")
	defer func() { tracing.EndJob(span, err) }()

	start := time.Now()

	body, err := s.Render(ctx)
	if errors.Is(err, ErrNoHeadlines) {
		slog.InfoContext(ctx, "no headlines in window, skipping digest")
		return nil
	}
	if err != nil {
		metrics.RecordDigestGenerated(false)
		return err
	}

	metrics.RecordDigestGenerated(true)
	metrics.RecordDigestDuration(time.Since(start))

	if s.NotifyService == nil {
		slog.Info("digest rendered, no notification channels configured",
			slog.Int("length", len(body)))
		return nil
	}

	if err = s.NotifyService.Dispatch(ctx, &notifier.Message{
		Title:     "Daily market digest",
		Body:      body,
		Footer:    "digest",
		Timestamp: time.Now(),
	}); err != nil {
		return fmt.Errorf("dispatch digest: %w", err)
	}

	slog.Info("digest published",
		slog.Int("length", len(body)),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// buildHeadlineBlock renders the headlines one line each, newest first,
// in the shape the digest prompt expects.
func buildHeadlineBlock(rows []repository.HeadlineWithSource) string {
	var b strings.Builder
	for _, row := range rows {
		fmt.Fprintf(&b, "- [%s] %s (%s)\n",
			row.SourceName,
			row.Headline.Title,
			row.Headline.PublishedAt.UTC().Format("Jan 2 15:04"))
	}
	return b.String()
}
