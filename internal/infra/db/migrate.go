package db

import (
	"database/sql"
	_ "embed"
)

//go:embed seeds/sources.sql
var seedSourcesSQL string

// MigrateUp creates the news watch schema on PostgreSQL.
//
// Per-market price tables are not created here: the candle repository
// creates one table per market on demand.
func MigrateUp(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS sources (
    id              SERIAL PRIMARY KEY,
    name            TEXT NOT NULL,
    feed_url        TEXT NOT NULL UNIQUE,
    last_crawled_at TIMESTAMPTZ,
    active          BOOLEAN DEFAULT TRUE,
    source_type     VARCHAR(20) NOT NULL DEFAULT 'RSS',
    scraper_config  JSONB
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS headlines (
    id           SERIAL PRIMARY KEY,
    source_id    INTEGER REFERENCES sources(id),
    title        TEXT NOT NULL,
    url          TEXT UNIQUE,
    summary      TEXT,
    published_at TIMESTAMPTZ,
    created_at   TIMESTAMPTZ DEFAULT now()
)`); err != nil {
		return err
	}

	indexes := []string{
		// ORDER BY published_at DESC is on every listing query
		`CREATE INDEX IF NOT EXISTS idx_headlines_published_at ON headlines(published_at DESC)`,
		// Per-source lookups during collection
		`CREATE INDEX IF NOT EXISTS idx_headlines_source_id ON headlines(source_id)`,
		// Active source filtering (WHERE active = TRUE)
		`CREATE INDEX IF NOT EXISTS idx_sources_active ON sources(active) WHERE active = TRUE`,
		// Source type filtering for the scraper factory
		`CREATE INDEX IF NOT EXISTS idx_sources_source_type ON sources(source_type)`,
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return err
		}
	}

	// PostgreSQL-specific constraint syntax, ignore the error when the
	// constraint already exists.
	_, _ = db.Exec(`
DO $$
BEGIN
    IF NOT EXISTS (
        SELECT 1 FROM pg_constraint
        WHERE conname = 'chk_source_type'
    ) THEN
        ALTER TABLE sources ADD CONSTRAINT chk_source_type
        CHECK (source_type IN ('RSS', 'Announcement'));
    END IF;
END $$;
`)

	// Seed the default watch list, duplicates are skipped.
	if _, err := db.Exec(seedSourcesSQL); err != nil {
		return err
	}

	return nil
}

// MigrateDown removes the headlines table and its indexes.
// Use with caution: this deletes every collected headline. Sources and
// per-market price tables are kept.
func MigrateDown(db *sql.DB) error {
	dropStatements := []string{
		`DROP INDEX IF EXISTS idx_headlines_published_at`,
		`DROP INDEX IF EXISTS idx_headlines_source_id`,
		`DROP TABLE IF EXISTS headlines CASCADE`,
	}

	for _, stmt := range dropStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
