package ladder

import (
	"encoding/json"
	"fmt"
)

// Snapshot is the persisted form of the whole ladder.
type Snapshot struct {
	Version int64                    `json:"version"`
	Players map[string]Player        `json:"players"`
	Queue   []string                 `json:"queue"`
	Pending map[string]PendingReport `json:"pending"`
}

// State is the live, mutable ladder built from one snapshot.
type State struct {
	Version  int64
	Registry *Registry
	Queue    *Queue
	Reports  *Reports
}

func NewState() *State {
	return &State{Registry: NewRegistry(), Queue: NewQueue(), Reports: NewReports()}
}

// Unregister removes id and everything that references it.
func (s *State) Unregister(id string) (*Player, bool, int, error) {
	p, err := s.Registry.Unregister(id)
	if err != nil {
		return nil, false, 0, err
	}
	wasQueued := s.Queue.Remove(id)
	dropped := s.Reports.DropPlayer(id)
	return p, wasQueued, dropped, nil
}

// Snapshot copies the state out. Version is carried unchanged.
func (s *State) Snapshot() *Snapshot {
	snap := &Snapshot{
		Version: s.Version,
		Players: make(map[string]Player, s.Registry.Len()),
		Queue:   s.Queue.Snapshot(),
		Pending: make(map[string]PendingReport, s.Reports.Len()),
	}
	for id, p := range s.Registry.players {
		snap.Players[id] = *p
	}
	for k, p := range s.Reports.byPair {
		snap.Pending[k.String()] = p
	}
	return snap
}

// FromSnapshot validates snap and rebuilds a State. A nil snapshot is an
// empty ladder.
func FromSnapshot(snap *Snapshot) (*State, error) {
	s := NewState()
	if snap == nil {
		return s, nil
	}
	s.Version = snap.Version
	for id, p := range snap.Players {
		p := p // per-iteration copy; go 1.21 loop semantics
		if p.ID != id {
			return nil, fmt.Errorf("%w: player key %q holds id %q", ErrCorruptSnapshot, id, p.ID)
		}
		if err := p.validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
		}
		s.Registry.put(&p)
	}
	for _, id := range snap.Queue {
		if !s.Registry.Has(id) {
			return nil, fmt.Errorf("%w: queued id %q is not registered", ErrCorruptSnapshot, id)
		}
		if err := s.Queue.Join(id); err != nil {
			return nil, fmt.Errorf("%w: queue lists %q twice", ErrCorruptSnapshot, id)
		}
	}
	for key, p := range snap.Pending {
		if got := p.Key().String(); got != key {
			return nil, fmt.Errorf("%w: pending key %q does not match pair %q", ErrCorruptSnapshot, key, got)
		}
		if p.Reporter == p.Opponent || !p.Outcome.Valid() {
			return nil, fmt.Errorf("%w: bad pending report %q", ErrCorruptSnapshot, key)
		}
		if !s.Registry.Has(p.Reporter) || !s.Registry.Has(p.Opponent) {
			return nil, fmt.Errorf("%w: pending report %q names an unknown player", ErrCorruptSnapshot, key)
		}
		s.Reports.byPair[p.Key()] = p
	}
	return s, nil
}

// Encode serializes a snapshot for byte-oriented stores.
func (snap *Snapshot) Encode() ([]byte, error) {
	return json.Marshal(snap)
}

// DecodeSnapshot parses bytes written by Encode. Empty input is an empty ladder.
func DecodeSnapshot(raw []byte) (*Snapshot, error) {
	snap := &Snapshot{}
	if len(raw) == 0 {
		return snap, nil
	}
	if err := json.Unmarshal(raw, snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	return snap, nil
}
