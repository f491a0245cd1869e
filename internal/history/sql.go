package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

type dialect struct {
	name   string
	schema []string
	insert string
	query  string
	toDB   func(time.Time) any
}

var postgresDialect = dialect{
	name: "postgres",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS ladder_matches (
            match_id      TEXT PRIMARY KEY,
            winner_id     TEXT NOT NULL,
            winner_name   TEXT NOT NULL,
            loser_id      TEXT NOT NULL,
            loser_name    TEXT NOT NULL,
            delta         INTEGER NOT NULL,
            winner_before INTEGER NOT NULL,
            winner_after  INTEGER NOT NULL,
            loser_before  INTEGER NOT NULL,
            loser_after   INTEGER NOT NULL,
            reported_at   TIMESTAMPTZ NOT NULL,
            confirmed_at  TIMESTAMPTZ NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS ladder_matches_winner_idx ON ladder_matches (winner_id, confirmed_at DESC)`,
		`CREATE INDEX IF NOT EXISTS ladder_matches_loser_idx ON ladder_matches (loser_id, confirmed_at DESC)`,
	},
	insert: `INSERT INTO ladder_matches (
        match_id, winner_id, winner_name, loser_id, loser_name,
        delta, winner_before, winner_after, loser_before, loser_after,
        reported_at, confirmed_at
      ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
      ON CONFLICT (match_id) DO UPDATE SET
        winner_name=EXCLUDED.winner_name,
        loser_name=EXCLUDED.loser_name`,
	query: `SELECT match_id, winner_id, winner_name, loser_id, loser_name,
        delta, winner_before, winner_after, loser_before, loser_after,
        reported_at, confirmed_at
      FROM ladder_matches WHERE winner_id = $1 OR loser_id = $1
      ORDER BY confirmed_at DESC LIMIT $2`,
	toDB: func(t time.Time) any { return t.UTC() },
}

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS ladder_matches (
            match_id      TEXT PRIMARY KEY,
            winner_id     TEXT NOT NULL,
            winner_name   TEXT NOT NULL,
            loser_id      TEXT NOT NULL,
            loser_name    TEXT NOT NULL,
            delta         INTEGER NOT NULL,
            winner_before INTEGER NOT NULL,
            winner_after  INTEGER NOT NULL,
            loser_before  INTEGER NOT NULL,
            loser_after   INTEGER NOT NULL,
            reported_at   INTEGER NOT NULL,
            confirmed_at  INTEGER NOT NULL
        )`,
	},
	insert: `INSERT INTO ladder_matches (
        match_id, winner_id, winner_name, loser_id, loser_name,
        delta, winner_before, winner_after, loser_before, loser_after,
        reported_at, confirmed_at
      ) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
      ON CONFLICT (match_id) DO UPDATE SET
        winner_name=excluded.winner_name,
        loser_name=excluded.loser_name`,
	query: `SELECT match_id, winner_id, winner_name, loser_id, loser_name,
        delta, winner_before, winner_after, loser_before, loser_after,
        reported_at, confirmed_at
      FROM ladder_matches WHERE winner_id = ?1 OR loser_id = ?1
      ORDER BY confirmed_at DESC LIMIT ?2`,
	toDB: func(t time.Time) any { return t.UTC().UnixMilli() },
}

// Repository stores matches in postgres or sqlite.
type Repository struct {
	db *sql.DB
	d  dialect
}

func NewPostgres(ctx context.Context, databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)
	return open(ctx, db, postgresDialect)
}

func OpenSQLite(ctx context.Context, path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("SQLITE_PATH is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", filepath.Clean(path)+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	return open(ctx, db, sqliteDialect)
}

func open(ctx context.Context, db *sql.DB, d dialect) (*Repository, error) {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.name, err)
	}
	for _, stmt := range d.schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s migrate: %w", d.name, err)
		}
	}
	return &Repository{db: db, d: d}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Record upserts m by id.
func (r *Repository) Record(ctx context.Context, m Match) error {
	if r == nil || r.db == nil {
		return nil
	}
	_, err := r.db.ExecContext(ctx, r.d.insert,
		m.ID, m.WinnerID, m.WinnerName, m.LoserID, m.LoserName,
		m.Delta, m.WinnerBefore, m.WinnerAfter, m.LoserBefore, m.LoserAfter,
		r.d.toDB(m.ReportedAt), r.d.toDB(m.ConfirmedAt),
	)
	if err != nil {
		return fmt.Errorf("record match %s: %w", m.ID, err)
	}
	return nil
}

func (r *Repository) ForPlayer(ctx context.Context, playerID string, limit int) ([]Match, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := r.db.QueryContext(ctx, r.d.query, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		var m Match
		if r.d.name == "sqlite" {
			var rep, conf int64
			err = rows.Scan(&m.ID, &m.WinnerID, &m.WinnerName, &m.LoserID, &m.LoserName,
				&m.Delta, &m.WinnerBefore, &m.WinnerAfter, &m.LoserBefore, &m.LoserAfter, &rep, &conf)
			m.ReportedAt = time.UnixMilli(rep).UTC()
			m.ConfirmedAt = time.UnixMilli(conf).UTC()
		} else {
			err = rows.Scan(&m.ID, &m.WinnerID, &m.WinnerName, &m.LoserID, &m.LoserName,
				&m.Delta, &m.WinnerBefore, &m.WinnerAfter, &m.LoserBefore, &m.LoserAfter, &m.ReportedAt, &m.ConfirmedAt)
		}
		if err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
