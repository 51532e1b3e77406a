package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"autotrade/internal/domain/entity"
	"autotrade/internal/repository"
)

const sourceColumns = "id, name, feed_url, last_crawled_at, active, source_type, scraper_config"

type SourceRepo struct{ db *sql.DB }

func NewSourceRepo(db *sql.DB) repository.SourceRepository {
	return &SourceRepo{db: db}
}

// scanSource reads one sources row from either a *sql.Row or *sql.Rows.
// The scraper_config column is JSON and only set for announcement sources.
func scanSource(row interface{ Scan(dest ...any) error }) (*entity.Source, error) {
	var source entity.Source
	var configJSON []byte
	if err := row.Scan(
		&source.ID, &source.Name, &source.FeedURL, &source.LastCrawledAt, &source.Active,
		&source.SourceType, &configJSON,
	); err != nil {
		return nil, err
	}

	if len(configJSON) > 0 {
		var config entity.AnnouncementCfg
		if err := json.Unmarshal(configJSON, &config); err != nil {
			return nil, fmt.Errorf("unmarshal scraper_config: %w", err)
		}
		source.ScraperConfig = &config
	}

	return &source, nil
}

// querySources runs a query returning full source rows and scans them all.
func (repo *SourceRepo) querySources(ctx context.Context, query string, args ...any) ([]*entity.Source, error) {
	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	sources := make([]*entity.Source, 0, 50)
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, source)
	}
	return sources, rows.Err()
}

// encodeScraperConfig marshals the source's selector config for storage
// and fills in the RSS default for sources created without a type.
func encodeScraperConfig(source *entity.Source) ([]byte, error) {
	if source.SourceType == "" {
		source.SourceType = "RSS"
	}
	if source.ScraperConfig == nil {
		return nil, nil
	}
	return json.Marshal(source.ScraperConfig)
}

func (repo *SourceRepo) Get(ctx context.Context, id int64) (*entity.Source, error) {
	query := fmt.Sprintf(`
SELECT %s
FROM sources
WHERE id = $1
LIMIT 1`, sourceColumns)
	source, err := scanSource(repo.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("Get: %w", entity.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return source, nil
}

func (repo *SourceRepo) List(ctx context.Context) ([]*entity.Source, error) {
	query := fmt.Sprintf(`
SELECT %s
FROM sources
ORDER BY id ASC`, sourceColumns)
	sources, err := repo.querySources(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return sources, nil
}

func (repo *SourceRepo) ListActive(ctx context.Context) ([]*entity.Source, error) {
	query := fmt.Sprintf(`
SELECT %s
FROM sources
WHERE active = TRUE
ORDER BY id ASC`, sourceColumns)
	sources, err := repo.querySources(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ListActive: %w", err)
	}
	return sources, nil
}

func (repo *SourceRepo) Create(ctx context.Context, source *entity.Source) error {
	configJSON, err := encodeScraperConfig(source)
	if err != nil {
		return fmt.Errorf("Create: marshal scraper_config: %w", err)
	}

	const query = `
INSERT INTO sources (name, feed_url, last_crawled_at, active, source_type, scraper_config)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`
	err = repo.db.QueryRowContext(ctx, query,
		source.Name, source.FeedURL,
		source.LastCrawledAt, source.Active,
		source.SourceType, configJSON,
	).Scan(&source.ID)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (repo *SourceRepo) Update(ctx context.Context, source *entity.Source) error {
	configJSON, err := encodeScraperConfig(source)
	if err != nil {
		return fmt.Errorf("Update: marshal scraper_config: %w", err)
	}

	const query = `
UPDATE sources SET
       name            = $1,
       feed_url        = $2,
       last_crawled_at = $3,
       active          = $4,
       source_type     = $5,
       scraper_config  = $6
WHERE id = $7`
	res, err := repo.db.ExecContext(ctx, query,
		source.Name, source.FeedURL,
		source.LastCrawledAt, source.Active,
		source.SourceType, configJSON, source.ID,
	)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("Update: %w", entity.ErrNotFound)
	}
	return nil
}

func (repo *SourceRepo) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM sources WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("Delete: %w", entity.ErrNotFound)
	}
	return nil
}

// TouchCrawledAt stamps the last poll time without rewriting the row.
func (repo *SourceRepo) TouchCrawledAt(ctx context.Context, id int64, t time.Time) error {
	const query = `UPDATE sources SET last_crawled_at = $1 WHERE id = $2`
	_, err := repo.db.ExecContext(ctx, query, t, id)
	return err
}
