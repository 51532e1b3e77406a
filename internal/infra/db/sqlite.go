package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// OpenSQLite opens a file-backed SQLite price store at path, creating the
// file if it does not exist. The parent directory must exist.
func OpenSQLite(path string) *sql.DB {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)

	sdb, err := sql.Open("sqlite3", dsn)
	if err != nil {
		log.Fatal(err)
	}

	// SQLite allows a single writer at a time.
	sdb.SetMaxOpenConns(1)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sdb.PingContext(ctx); err != nil {
		log.Fatalf("failed to open sqlite store: %v", err)
	}

	slog.Info("sqlite price store opened", slog.String("path", path))
	return sdb
}
