// Package history keeps a log of confirmed matches. The ladder snapshot only
// holds current standings; this is where past results live.
package history

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Match is one confirmed result.
type Match struct {
	ID           string    `json:"id"`
	WinnerID     string    `json:"winner_id"`
	WinnerName   string    `json:"winner_name"`
	LoserID      string    `json:"loser_id"`
	LoserName    string    `json:"loser_name"`
	Delta        int       `json:"delta"`
	WinnerBefore int       `json:"winner_before"`
	WinnerAfter  int       `json:"winner_after"`
	LoserBefore  int       `json:"loser_before"`
	LoserAfter   int       `json:"loser_after"`
	ReportedAt   time.Time `json:"reported_at"`
	ConfirmedAt  time.Time `json:"confirmed_at"`
}

// Involves reports whether id played in m.
func (m Match) Involves(id string) bool { return m.WinnerID == id || m.LoserID == id }

const DefaultLimit = 10

type Recorder interface {
	Record(ctx context.Context, m Match) error
	ForPlayer(ctx context.Context, playerID string, limit int) ([]Match, error)
	Close() error
}

// Memory is an in-process recorder.
type Memory struct {
	mu      sync.RWMutex
	matches []Match
}

func NewMemory() *Memory { return &Memory{} }

func (r *Memory) Record(_ context.Context, m Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.matches {
		if r.matches[i].ID == m.ID {
			r.matches[i] = m
			return nil
		}
	}
	r.matches = append(r.matches, m)
	return nil
}

// ForPlayer returns the newest matches first.
func (r *Memory) ForPlayer(_ context.Context, playerID string, limit int) ([]Match, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Match
	for _, m := range r.matches {
		if m.Involves(playerID) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ConfirmedAt.After(out[j].ConfirmedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Memory) Close() error { return nil }
