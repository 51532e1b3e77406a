package repository

import (
	"context"
	"time"

	"autotrade/internal/domain/entity"
)

// HeadlineWithSource represents a headline along with its source name.
type HeadlineWithSource struct {
	Headline   *entity.Headline
	SourceName string
}

// HeadlineRangeFilters contains optional filters for headline listing
type HeadlineRangeFilters struct {
	SourceID *int64     // Optional: Filter by source ID
	From     *time.Time // Optional: Filter headlines published >= this date
	To       *time.Time // Optional: Filter headlines published <= this date
}

type HeadlineRepository interface {
	Get(ctx context.Context, id int64) (*entity.Headline, error)
	// ListSince retrieves headlines published at or after since, newest
	// first, capped at limit. A limit <= 0 means no cap.
	ListSince(ctx context.Context, since time.Time, limit int) ([]*entity.Headline, error)
	// ListWithSource retrieves headlines with their source names using
	// optional filters, ordered by published_at DESC.
	// Parameters:
	//   - filters: optional source and date range restrictions
	//   - limit: Maximum number of rows to return, <= 0 for no cap
	ListWithSource(ctx context.Context, filters HeadlineRangeFilters, limit int) ([]HeadlineWithSource, error)
	// CountHeadlines returns the total number of headlines in the database.
	CountHeadlines(ctx context.Context) (int64, error)
	Create(ctx context.Context, headline *entity.Headline) error
	ExistsByURL(ctx context.Context, url string) (bool, error)
	// ExistsByURLBatch checks many URLs in one query instead of one query
	// per URL.
	ExistsByURLBatch(ctx context.Context, urls []string) (map[string]bool, error)
	// DeleteOlderThan removes headlines published before cutoff and returns
	// the number removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
