package store

import (
	"context"
	"sync"

	"github.com/park285/Cheese-Ladder-bot/internal/ladder"
)

// Memory keeps the encoded snapshot in process. Used by tests and local runs.
type Memory struct {
	mu      sync.Mutex
	raw     []byte
	version int64
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Load(ctx context.Context) (*ladder.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.raw == nil {
		return emptySnapshot(), nil
	}
	return decode(m.raw)
}

func (m *Memory) Save(ctx context.Context, snap *ladder.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if snap.Version != m.version {
		return ErrVersionConflict
	}
	raw, next, err := encodeNext(snap)
	if err != nil {
		return err
	}
	m.raw, m.version = raw, next
	snap.Version = next
	return nil
}

func (m *Memory) Close() error { return nil }
