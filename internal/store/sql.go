package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/park285/Cheese-Ladder-bot/internal/ladder"
)

// sqlDialect holds the statements that differ between postgres and sqlite.
type sqlDialect struct {
	name   string
	schema []string
	load   string
	insert string
	update string
	stamp  func(time.Time) any
}

// sqlGateway stores one row per ladder in ladder_state and uses the version
// column as a compare-and-swap guard.
type sqlGateway struct {
	db      *sql.DB
	d       sqlDialect
	stateID string
	now     func() time.Time
}

func (g *sqlGateway) migrate(ctx context.Context) error {
	for _, stmt := range g.d.schema {
		if _, err := g.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s migrate: %w", g.d.name, err)
		}
	}
	return nil
}

func (g *sqlGateway) Load(ctx context.Context) (*ladder.Snapshot, error) {
	var (
		version int64
		body    string
	)
	err := g.db.QueryRowContext(ctx, g.d.load, g.stateID).Scan(&version, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return emptySnapshot(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s load: %w", g.d.name, err)
	}
	snap, err := decode([]byte(body))
	if err != nil {
		return nil, err
	}
	snap.Version = version
	return snap, nil
}

func (g *sqlGateway) Save(ctx context.Context, snap *ladder.Snapshot) error {
	raw, next, err := encodeNext(snap)
	if err != nil {
		return err
	}
	stamp := g.d.stamp(g.now())
	var res sql.Result
	if snap.Version == 0 {
		res, err = g.db.ExecContext(ctx, g.d.insert, g.stateID, next, string(raw), stamp)
	} else {
		res, err = g.db.ExecContext(ctx, g.d.update, next, string(raw), stamp, g.stateID, snap.Version)
	}
	if err != nil {
		return fmt.Errorf("%s save: %w", g.d.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s save: %w", g.d.name, err)
	}
	if n == 0 {
		return ErrVersionConflict
	}
	snap.Version = next
	return nil
}

func (g *sqlGateway) Close() error {
	if g == nil || g.db == nil {
		return nil
	}
	return g.db.Close()
}
