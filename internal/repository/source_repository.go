package repository

import (
	"context"
	"time"

	"autotrade/internal/domain/entity"
)

// SourceRepository stores the feeds and announcement pages the watcher polls.
// TouchCrawledAt records when a source was last polled, independent of
// whether any headline came out of the poll.
type SourceRepository interface {
	Get(ctx context.Context, id int64) (*entity.Source, error)
	List(ctx context.Context) ([]*entity.Source, error)
	ListActive(ctx context.Context) ([]*entity.Source, error)
	Create(ctx context.Context, source *entity.Source) error
	Update(ctx context.Context, source *entity.Source) error
	Delete(ctx context.Context, id int64) error
	TouchCrawledAt(ctx context.Context, id int64, t time.Time) error
}
