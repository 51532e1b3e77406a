package watch

import (
	"context"
	"fmt"
	"log/slog"

	"autotrade/internal/domain/entity"
)

// SyncStats reports the outcome of one configuration sync.
type SyncStats struct {
	Created     int
	Updated     int
	Deactivated int
}

// SyncSources reconciles the source store with the declared watch sources.
// The configuration file is the system of record: each declared source is
// created or updated by feed URL, and stored sources absent from the
// declaration are deactivated rather than deleted so their crawl history
// survives a config edit. Crawl timestamps are owned by the store and are
// carried over on update.
func (s *Service) SyncSources(ctx context.Context, declared []*entity.Source) (*SyncStats, error) {
	logger := slog.Default()
	stats := &SyncStats{}

	existing, err := s.SourceRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	byURL := make(map[string]*entity.Source, len(existing))
	for _, src := range existing {
		byURL[src.FeedURL] = src
	}

	declaredURLs := make(map[string]bool, len(declared))
	for _, want := range declared {
		declaredURLs[want.FeedURL] = true

		have, exists := byURL[want.FeedURL]
		if !exists {
			if err := s.SourceRepo.Create(ctx, want); err != nil {
				return stats, fmt.Errorf("create source %q: %w", want.Name, err)
			}
			stats.Created++
			continue
		}

		if !sourceChanged(have, want) {
			continue
		}
		want.ID = have.ID
		want.LastCrawledAt = have.LastCrawledAt
		if err := s.SourceRepo.Update(ctx, want); err != nil {
			return stats, fmt.Errorf("update source %q: %w", want.Name, err)
		}
		stats.Updated++
	}

	for _, have := range existing {
		if declaredURLs[have.FeedURL] || !have.Active {
			continue
		}
		have.Active = false
		if err := s.SourceRepo.Update(ctx, have); err != nil {
			return stats, fmt.Errorf("deactivate source %q: %w", have.Name, err)
		}
		stats.Deactivated++
	}

	logger.Info("source sync completed",
		slog.Int("declared", len(declared)),
		slog.Int("created", stats.Created),
		slog.Int("updated", stats.Updated),
		slog.Int("deactivated", stats.Deactivated))

	return stats, nil
}

// sourceChanged reports whether the stored source differs from the declared
// one in any field the configuration owns.
func sourceChanged(have, want *entity.Source) bool {
	if have.Name != want.Name ||
		have.SourceType != want.SourceType ||
		have.Active != want.Active {
		return true
	}
	switch {
	case have.ScraperConfig == nil && want.ScraperConfig == nil:
		return false
	case have.ScraperConfig == nil || want.ScraperConfig == nil:
		return true
	default:
		return *have.ScraperConfig != *want.ScraperConfig
	}
}
