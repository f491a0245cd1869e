package ladder

import (
	"sort"
	"strings"
	"time"
)

// Registry holds every registered player keyed by id.
type Registry struct {
	players map[string]*Player
	lastSeq int64
}

func NewRegistry() *Registry {
	return &Registry{players: make(map[string]*Player)}
}

func (r *Registry) Register(id, displayName, handle string, now time.Time) (*Player, error) {
	p, err := NewPlayer(id, displayName, handle, r.lastSeq+1, now)
	if err != nil {
		return nil, err
	}
	if _, ok := r.players[p.ID]; ok {
		return nil, ErrAlreadyRegistered
	}
	r.lastSeq = p.Seq
	r.players[p.ID] = p
	return p.clone(), nil
}

// Unregister removes the record only. Queue and report cleanup belong to the caller.
func (r *Registry) Unregister(id string) (*Player, error) {
	p, ok := r.players[id]
	if !ok {
		return nil, ErrNotRegistered
	}
	delete(r.players, id)
	return p, nil
}

// Get returns a copy of the record.
func (r *Registry) Get(id string) (*Player, error) {
	p, ok := r.players[id]
	if !ok {
		return nil, ErrNotRegistered
	}
	return p.clone(), nil
}

func (r *Registry) Has(id string) bool {
	_, ok := r.players[id]
	return ok
}

// RatingOf satisfies RatingSource for the queue.
func (r *Registry) RatingOf(id string) (int, bool) {
	p, ok := r.players[id]
	if !ok {
		return 0, false
	}
	return p.Rating, true
}

// Lookup resolves a chat reference to a player: an exact id first, then a
// case-insensitive handle, then a display name. Earlier registrations win
// when names collide.
func (r *Registry) Lookup(ref string) (*Player, error) {
	ref = strings.TrimSpace(ref)
	if p, ok := r.players[ref]; ok {
		return p.clone(), nil
	}
	byHandle, byName := (*Player)(nil), (*Player)(nil)
	for _, p := range r.players {
		if strings.EqualFold(p.Handle, ref) && (byHandle == nil || p.Seq < byHandle.Seq) {
			byHandle = p
		}
		if strings.EqualFold(p.DisplayName, ref) && (byName == nil || p.Seq < byName.Seq) {
			byName = p
		}
	}
	switch {
	case byHandle != nil:
		return byHandle.clone(), nil
	case byName != nil:
		return byName.clone(), nil
	}
	return nil, ErrNotRegistered
}

func (r *Registry) Len() int { return len(r.players) }

// Top returns up to n players by rating, ties broken by registration order.
func (r *Registry) Top(n int) []*Player {
	all := r.sorted()
	if n >= 0 && n < len(all) {
		all = all[:n]
	}
	return all
}

// Rank is the 1-based leaderboard position of id, or 0 when unknown.
func (r *Registry) Rank(id string) int {
	for i, p := range r.sorted() {
		if p.ID == id {
			return i + 1
		}
	}
	return 0
}

func (r *Registry) sorted() []*Player {
	out := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

// mutable hands out the stored record so rating changes stick.
func (r *Registry) mutable(id string) (*Player, bool) {
	p, ok := r.players[id]
	return p, ok
}

func (r *Registry) put(p *Player) {
	r.players[p.ID] = p
	if p.Seq > r.lastSeq {
		r.lastSeq = p.Seq
	}
}
