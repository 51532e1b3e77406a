// Package postgres provides PostgreSQL implementations of repository interfaces.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"autotrade/internal/domain/entity"
	"autotrade/internal/repository"
)

type HeadlineRepo struct{ db *sql.DB }

func NewHeadlineRepo(db *sql.DB) repository.HeadlineRepository {
	return &HeadlineRepo{db: db}
}

// buildHeadlineWhere builds the WHERE clause for optional range filters.
// Returns an empty clause when no filter is set. tableAlias prefixes the
// columns for joined queries.
func buildHeadlineWhere(filters repository.HeadlineRangeFilters, tableAlias string) (clause string, args []interface{}) {
	col := func(name string) string {
		if tableAlias == "" {
			return name
		}
		return tableAlias + "." + name
	}

	var conditions []string
	if filters.SourceID != nil {
		args = append(args, *filters.SourceID)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", col("source_id"), len(args)))
	}
	if filters.From != nil {
		args = append(args, *filters.From)
		conditions = append(conditions, fmt.Sprintf("%s >= $%d", col("published_at"), len(args)))
	}
	if filters.To != nil {
		args = append(args, *filters.To)
		conditions = append(conditions, fmt.Sprintf("%s <= $%d", col("published_at"), len(args)))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

func (repo *HeadlineRepo) Get(ctx context.Context, id int64) (*entity.Headline, error) {
	const query = `
SELECT id, source_id, title, url, summary, published_at, created_at
FROM headlines
WHERE id = $1
LIMIT 1`
	var headline entity.Headline
	err := repo.db.QueryRowContext(ctx, query, id).Scan(
		&headline.ID, &headline.SourceID, &headline.Title,
		&headline.URL, &headline.Summary, &headline.PublishedAt, &headline.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("Get: %w", entity.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return &headline, nil
}

func (repo *HeadlineRepo) ListSince(ctx context.Context, since time.Time, limit int) ([]*entity.Headline, error) {
	query := `
SELECT id, source_id, title, url, summary, published_at, created_at
FROM headlines
WHERE published_at >= $1
ORDER BY published_at DESC`
	args := []interface{}{since}
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf("\nLIMIT $%d", len(args))
	}

	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListSince: %w", err)
	}
	defer func() { _ = rows.Close() }()

	headlines := make([]*entity.Headline, 0, 100)
	for rows.Next() {
		var headline entity.Headline
		if err := rows.Scan(&headline.ID, &headline.SourceID, &headline.Title,
			&headline.URL, &headline.Summary, &headline.PublishedAt, &headline.CreatedAt); err != nil {
			return nil, fmt.Errorf("ListSince: Scan: %w", err)
		}
		headlines = append(headlines, &headline)
	}
	return headlines, rows.Err()
}

func (repo *HeadlineRepo) ListWithSource(ctx context.Context, filters repository.HeadlineRangeFilters, limit int) ([]repository.HeadlineWithSource, error) {
	query := `
SELECT h.id, h.source_id, h.title, h.url, h.summary, h.published_at, h.created_at, s.name AS source_name
FROM headlines h
INNER JOIN sources s ON h.source_id = s.id`
	where, args := buildHeadlineWhere(filters, "h")
	if where != "" {
		query += "\n" + where
	}
	query += "\nORDER BY h.published_at DESC"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf("\nLIMIT $%d", len(args))
	}

	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListWithSource: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := make([]repository.HeadlineWithSource, 0, 100)
	for rows.Next() {
		var headline entity.Headline
		var sourceName string
		if err := rows.Scan(&headline.ID, &headline.SourceID, &headline.Title,
			&headline.URL, &headline.Summary, &headline.PublishedAt, &headline.CreatedAt, &sourceName); err != nil {
			return nil, fmt.Errorf("ListWithSource: Scan: %w", err)
		}
		result = append(result, repository.HeadlineWithSource{
			Headline:   &headline,
			SourceName: sourceName,
		})
	}
	return result, rows.Err()
}

func (repo *HeadlineRepo) CountHeadlines(ctx context.Context) (int64, error) {
	const query = `SELECT COUNT(*) FROM headlines`
	var count int64
	err := repo.db.QueryRowContext(ctx, query).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("CountHeadlines: %w", err)
	}
	return count, nil
}

func (repo *HeadlineRepo) Create(ctx context.Context, headline *entity.Headline) error {
	const query = `
INSERT INTO headlines
	   (source_id, title, url, summary, published_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`
	err := repo.db.QueryRowContext(ctx, query,
		headline.SourceID, headline.Title, headline.URL,
		headline.Summary, headline.PublishedAt, headline.CreatedAt,
	).Scan(&headline.ID)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (repo *HeadlineRepo) ExistsByURL(ctx context.Context, url string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM headlines WHERE url = $1)`
	var existsFlag bool
	err := repo.db.QueryRowContext(ctx, query, url).Scan(&existsFlag)
	if err != nil {
		return false, fmt.Errorf("ExistsByURL: %w", err)
	}
	return existsFlag, nil
}

// ExistsByURLBatch checks many URLs in one query instead of one query per
// URL. The result map only holds entries for URLs that exist.
func (repo *HeadlineRepo) ExistsByURLBatch(ctx context.Context, urls []string) (map[string]bool, error) {
	if len(urls) == 0 {
		return make(map[string]bool), nil
	}

	const query = `SELECT url FROM headlines WHERE url = ANY($1)`
	rows, err := repo.db.QueryContext(ctx, query, pq.Array(urls))
	if err != nil {
		return nil, fmt.Errorf("ExistsByURLBatch: QueryContext: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := make(map[string]bool)
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("ExistsByURLBatch: Scan: %w", err)
		}
		result[url] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ExistsByURLBatch: rows.Err: %w", err)
	}

	return result, nil
}

func (repo *HeadlineRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM headlines WHERE published_at < $1`
	res, err := repo.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("DeleteOlderThan: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("DeleteOlderThan: %w", err)
	}
	return n, nil
}
