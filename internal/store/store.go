// Package store persists the whole ladder snapshot. Every backend follows the
// same contract: Load returns the latest snapshot (an empty one at version 0
// when nothing was saved yet) and Save writes snap only if the stored version
// still equals snap.Version, bumping snap.Version on success.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/park285/Cheese-Ladder-bot/internal/ladder"
)

var (
	ErrVersionConflict = errors.New("ladder snapshot changed since it was loaded")
	ErrUnknownBackend  = errors.New("unknown store backend")
)

type Gateway interface {
	Load(ctx context.Context) (*ladder.Snapshot, error)
	Save(ctx context.Context, snap *ladder.Snapshot) error
	Close() error
}

const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendS3       = "s3"
)

// Options selects and configures one backend.
type Options struct {
	Backend     string
	FilePath    string
	RedisURL    string
	RedisKey    string
	DatabaseURL string
	SQLitePath  string
	S3Bucket    string
	S3Key       string
}

const (
	DefaultRedisKey = "ladder:state"
	DefaultS3Key    = "ladder/state.json"
	DefaultStateID  = "default"
)

// Open builds the gateway named by opts.Backend.
func Open(ctx context.Context, opts Options) (Gateway, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendMemory:
		return NewMemory(), nil
	case BackendFile:
		return NewFile(opts.FilePath)
	case BackendRedis:
		return NewRedis(opts.RedisURL, opts.RedisKey)
	case BackendPostgres:
		return NewPostgres(ctx, opts.DatabaseURL)
	case BackendSQLite:
		return OpenSQLite(ctx, opts.SQLitePath)
	case BackendS3:
		return NewS3(ctx, opts.S3Bucket, opts.S3Key)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}

func emptySnapshot() *ladder.Snapshot {
	return &ladder.Snapshot{
		Players: map[string]ladder.Player{},
		Pending: map[string]ladder.PendingReport{},
	}
}

// encodeNext serializes snap as it will look once stored at the next version.
func encodeNext(snap *ladder.Snapshot) ([]byte, int64, error) {
	next := *snap
	next.Version = snap.Version + 1
	raw, err := next.Encode()
	if err != nil {
		return nil, 0, fmt.Errorf("encode snapshot: %w", err)
	}
	return raw, next.Version, nil
}

func decode(raw []byte) (*ladder.Snapshot, error) {
	snap, err := ladder.DecodeSnapshot(raw)
	if err != nil {
		return nil, err
	}
	if snap.Players == nil {
		snap.Players = map[string]ladder.Player{}
	}
	if snap.Pending == nil {
		snap.Pending = map[string]ladder.PendingReport{}
	}
	return snap, nil
}
