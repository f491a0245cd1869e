package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

var sqliteDialect = sqlDialect{
	name: "sqlite",
	schema: []string{`CREATE TABLE IF NOT EXISTS ladder_state (
        id         TEXT PRIMARY KEY,
        version    INTEGER NOT NULL,
        body       TEXT NOT NULL,
        updated_at INTEGER NOT NULL
    )`},
	load:   `SELECT version, body FROM ladder_state WHERE id = ?`,
	insert: `INSERT INTO ladder_state (id, version, body, updated_at) VALUES (?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`,
	update: `UPDATE ladder_state SET version = ?, body = ?, updated_at = ? WHERE id = ? AND version = ?`,
	stamp:  func(t time.Time) any { return t.UTC().UnixMilli() },
}

// SQLite is the single-host database gateway.
type SQLite struct{ *sqlGateway }

func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("SQLITE_PATH is required for the sqlite backend")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	g := &sqlGateway{db: db, d: sqliteDialect, stateID: DefaultStateID, now: time.Now}
	if err := g.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{g}, nil
}
