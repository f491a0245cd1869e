package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/park285/Cheese-Ladder-bot/internal/ladder"
)

type MatchStatus int

const (
	StatusQueued MatchStatus = iota + 1
	StatusMatchFound
)

func (s MatchStatus) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusMatchFound:
		return "match_found"
	}
	return "unknown"
}

func (s MatchStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// MatchmakeResult is either a queued player or a freshly made pair.
type MatchmakeResult struct {
	Status   MatchStatus    `json:"status"`
	Player   *ladder.Player `json:"player"`
	Opponent *ladder.Player `json:"opponent,omitempty"` // set when Status is StatusMatchFound
	Position int            `json:"position,omitempty"` // 1-based queue slot when Status is StatusQueued
}

// QueueEntry is one waiting player as shown to users.
type QueueEntry struct {
	Position int    `json:"position"`
	ID       string `json:"id"`
	Name     string `json:"name"`
	Rating   int    `json:"rating"`
}

// Matchmake queues id and immediately tries to pair them.
func (e *Engine) Matchmake(ctx context.Context, id string) (*MatchmakeResult, error) {
	var out MatchmakeResult
	err := e.update(ctx, "matchmake", func(st *ladder.State) error {
		p, err := st.Registry.Get(id)
		if err != nil {
			return err
		}
		if err := st.Queue.Join(id); err != nil {
			return err
		}
		out = MatchmakeResult{Status: StatusQueued, Player: p}
		oppID, ok := st.Queue.FindMatch(id, st.Registry)
		if !ok {
			out.Position = st.Queue.Len()
			return nil
		}
		opp, err := st.Registry.Get(oppID)
		if err != nil {
			return err
		}
		out.Status, out.Opponent = StatusMatchFound, opp
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out.Status == StatusMatchFound {
		e.logger.Info("ladder_match_found",
			zap.String("player_id", out.Player.ID), zap.Int("player_rating", out.Player.Rating),
			zap.String("opponent_id", out.Opponent.ID), zap.Int("opponent_rating", out.Opponent.Rating))
	} else {
		e.logger.Info("ladder_queued", zap.String("player_id", id), zap.Int("position", out.Position))
	}
	return &out, nil
}

func (e *Engine) CancelQueue(ctx context.Context, id string) error {
	err := e.update(ctx, "cancel_queue", func(st *ladder.State) error {
		return st.Queue.Leave(id)
	})
	if err == nil {
		e.logger.Info("ladder_queue_left", zap.String("player_id", id))
	}
	return err
}

// QueueStatus lists waiting players in join order.
func (e *Engine) QueueStatus(ctx context.Context) ([]QueueEntry, error) {
	var out []QueueEntry
	err := e.view(ctx, "queue_status", func(st *ladder.State) error {
		for i, id := range st.Queue.Snapshot() {
			p, err := st.Registry.Get(id)
			if err != nil {
				return err
			}
			out = append(out, QueueEntry{Position: i + 1, ID: p.ID, Name: p.Name(), Rating: p.Rating})
		}
		return nil
	})
	return out, err
}
