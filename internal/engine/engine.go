// Package engine serializes every ladder command against the persisted state.
// Each call takes one process-wide lock, loads the snapshot, applies the
// command and saves before the lock is released.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/Cheese-Ladder-bot/internal/history"
	"github.com/park285/Cheese-Ladder-bot/internal/ladder"
	"github.com/park285/Cheese-Ladder-bot/internal/obslog"
	"github.com/park285/Cheese-Ladder-bot/internal/store"
)

const (
	DefaultLeaderboardSize = 10
	// conflictRetries bounds how often a command is replayed after another
	// process saved first.
	conflictRetries = 3
)

type Engine struct {
	mu     sync.Mutex
	gw     store.Gateway
	rec    history.Recorder
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

type Option func(*Engine)

func WithRecorder(r history.Recorder) Option { return func(e *Engine) { e.rec = r } }

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func New(gw store.Gateway, opts ...Option) *Engine {
	e := &Engine{
		gw:     gw,
		logger: obslog.L(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// view runs fn against a freshly loaded state without saving.
func (e *Engine) view(ctx context.Context, op string, fn func(*ladder.State) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, err := e.load(ctx, op)
	if err != nil {
		return err
	}
	return fn(st)
}

// update runs fn and saves the result. A validation error from fn discards the
// loaded copy without saving. A stale save replays fn on a fresh load.
func (e *Engine) update(ctx context.Context, op string, fn func(*ladder.State) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for attempt := 1; ; attempt++ {
		st, err := e.load(ctx, op)
		if err != nil {
			return err
		}
		if err := fn(st); err != nil {
			return err
		}
		snap := st.Snapshot()
		err = e.gw.Save(ctx, snap)
		if err == nil {
			return nil
		}
		if errors.Is(err, store.ErrVersionConflict) && attempt < conflictRetries {
			e.logger.Warn("ladder_save_retry", zap.String("op", op), zap.Int("attempt", attempt))
			continue
		}
		e.logger.Error("ladder_persist_error", zap.String("op", op), zap.String("phase", "save"), zap.Error(err))
		return fmt.Errorf("%w: save: %w", ladder.ErrPersistence, err)
	}
}

func (e *Engine) load(ctx context.Context, op string) (*ladder.State, error) {
	snap, err := e.gw.Load(ctx)
	if err == nil {
		var st *ladder.State
		if st, err = ladder.FromSnapshot(snap); err == nil {
			return st, nil
		}
	}
	e.logger.Error("ladder_persist_error", zap.String("op", op), zap.String("phase", "load"), zap.Error(err))
	return nil, fmt.Errorf("%w: load: %w", ladder.ErrPersistence, err)
}

// Register adds a player at the default rating.
func (e *Engine) Register(ctx context.Context, id, displayName, handle string) (*ladder.Player, error) {
	var out *ladder.Player
	err := e.update(ctx, "register", func(st *ladder.State) error {
		p, err := st.Registry.Register(id, displayName, handle, e.now())
		out = p
		return err
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("ladder_register", zap.String("player_id", out.ID), zap.String("handle", out.Handle))
	return out, nil
}

// UnregisterResult says what was removed along with the player.
type UnregisterResult struct {
	Player         *ladder.Player `json:"player"`
	WasQueued      bool           `json:"was_queued"`
	DroppedReports int            `json:"dropped_reports"`
}

// Unregister deletes the player, their queue slot and every report naming them.
func (e *Engine) Unregister(ctx context.Context, id string) (*UnregisterResult, error) {
	var out UnregisterResult
	err := e.update(ctx, "unregister", func(st *ladder.State) error {
		p, queued, dropped, err := st.Unregister(id)
		if err != nil {
			return err
		}
		out = UnregisterResult{Player: p, WasQueued: queued, DroppedReports: dropped}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("ladder_unregister", zap.String("player_id", id),
		zap.Bool("was_queued", out.WasQueued), zap.Int("dropped_reports", out.DroppedReports))
	return &out, nil
}

// Profile is a player record with its current leaderboard position.
type Profile struct {
	*ladder.Player
	Rank   int  `json:"rank"`
	Queued bool `json:"queued"`
}

func (e *Engine) Profile(ctx context.Context, id string) (*Profile, error) {
	var out *Profile
	err := e.view(ctx, "profile", func(st *ladder.State) error {
		p, err := st.Registry.Get(id)
		if err != nil {
			return err
		}
		out = &Profile{Player: p, Rank: st.Registry.Rank(id), Queued: st.Queue.Contains(id)}
		return nil
	})
	return out, err
}

// Leaderboard returns the top n players. n <= 0 means DefaultLeaderboardSize.
func (e *Engine) Leaderboard(ctx context.Context, n int) ([]*ladder.Player, error) {
	if n <= 0 {
		n = DefaultLeaderboardSize
	}
	var out []*ladder.Player
	err := e.view(ctx, "leaderboard", func(st *ladder.State) error {
		out = st.Registry.Top(n)
		return nil
	})
	return out, err
}

// History lists the most recent confirmed matches of a registered player.
func (e *Engine) History(ctx context.Context, id string, limit int) ([]history.Match, error) {
	err := e.view(ctx, "history", func(st *ladder.State) error {
		_, err := st.Registry.Get(id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if e.rec == nil {
		return nil, nil
	}
	matches, err := e.rec.ForPlayer(ctx, id, limit)
	if err != nil {
		e.logger.Error("ladder_history_error", zap.String("player_id", id), zap.Error(err))
		return nil, fmt.Errorf("%w: history: %w", ladder.ErrPersistence, err)
	}
	return matches, nil
}

// DisplayNames maps ids to display names. Unknown ids are left out.
func (e *Engine) DisplayNames(ctx context.Context, ids ...string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	err := e.view(ctx, "names", func(st *ladder.State) error {
		for _, id := range ids {
			if p, err := st.Registry.Get(id); err == nil {
				out[id] = p.Name()
			}
		}
		return nil
	})
	return out, err
}

// Resolve turns a chat mention (id, handle or display name) into a player.
func (e *Engine) Resolve(ctx context.Context, ref string) (*ladder.Player, error) {
	var out *ladder.Player
	err := e.view(ctx, "resolve", func(st *ladder.State) error {
		p, err := st.Registry.Lookup(ref)
		out = p
		return err
	})
	return out, err
}
