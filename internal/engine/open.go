package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/park285/Cheese-Ladder-bot/internal/history"
	"github.com/park285/Cheese-Ladder-bot/internal/store"
)

// Open builds an Engine over the configured gateway. Match history goes to
// Postgres with the postgres backend, nowhere durable with the memory
// backend, and to SQLite at opts.SQLitePath otherwise.
func Open(ctx context.Context, opts store.Options, logger *zap.Logger) (*Engine, func() error, error) {
	gw, err := store.Open(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", opts.Backend, err)
	}

	var rec history.Recorder
	switch opts.Backend {
	case store.BackendPostgres:
		rec, err = history.NewPostgres(ctx, opts.DatabaseURL)
	case store.BackendMemory, "":
		rec = history.NewMemory()
	default:
		rec, err = history.OpenSQLite(ctx, opts.SQLitePath)
	}
	if err != nil {
		_ = gw.Close()
		return nil, nil, fmt.Errorf("open match history: %w", err)
	}

	closeAll := func() error {
		return errors.Join(rec.Close(), gw.Close())
	}
	return New(gw, WithRecorder(rec), WithLogger(logger)), closeAll, nil
}
