package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

var postgresDialect = sqlDialect{
	name: "postgres",
	schema: []string{`CREATE TABLE IF NOT EXISTS ladder_state (
        id         TEXT PRIMARY KEY,
        version    BIGINT NOT NULL,
        body       JSONB NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL
    )`},
	load:   `SELECT version, body::text FROM ladder_state WHERE id = $1`,
	insert: `INSERT INTO ladder_state (id, version, body, updated_at) VALUES ($1, $2, $3::jsonb, $4) ON CONFLICT (id) DO NOTHING`,
	update: `UPDATE ladder_state SET version = $1, body = $2::jsonb, updated_at = $3 WHERE id = $4 AND version = $5`,
	stamp:  func(t time.Time) any { return t.UTC() },
}

// Postgres is the shared-database gateway.
type Postgres struct{ *sqlGateway }

func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for the postgres backend")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return newPostgresWithDB(ctx, db)
}

func newPostgresWithDB(ctx context.Context, db *sql.DB) (*Postgres, error) {
	g := &sqlGateway{db: db, d: postgresDialect, stateID: DefaultStateID, now: time.Now}
	if err := g.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Postgres{g}, nil
}
