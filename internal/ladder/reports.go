package ladder

import (
	"sort"
	"strings"
	"time"

	"github.com/park285/Cheese-Ladder-bot/internal/rating"
)

// Outcome is a result claimed from the reporter's point of view.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLose Outcome = "lose"
)

// NormalizeOutcome lowercases user input without validating it.
func NormalizeOutcome(s string) Outcome {
	return Outcome(strings.ToLower(strings.TrimSpace(s)))
}

// ParseOutcome accepts win/lose in any case.
func ParseOutcome(s string) (Outcome, error) {
	o := NormalizeOutcome(s)
	if !o.Valid() {
		return "", ErrInvalidOutcome
	}
	return o, nil
}

func (o Outcome) Valid() bool { return o == OutcomeWin || o == OutcomeLose }

// Complement is the claim the opponent must make to agree.
func (o Outcome) Complement() Outcome {
	switch o {
	case OutcomeWin:
		return OutcomeLose
	case OutcomeLose:
		return OutcomeWin
	}
	return o
}

// PendingReport is a one-sided claim waiting for the opponent.
type PendingReport struct {
	Reporter string    `json:"reporter"`
	Opponent string    `json:"opponent"`
	Outcome  Outcome   `json:"outcome"`
	FiledAt  time.Time `json:"filed_at"`
}

func (p PendingReport) Key() PairKey { return NewPairKey(p.Reporter, p.Opponent) }

// Winner and Loser read the claim as if it were confirmed.
func (p PendingReport) Winner() string {
	if p.Outcome == OutcomeWin {
		return p.Reporter
	}
	return p.Opponent
}

func (p PendingReport) Loser() string {
	if p.Outcome == OutcomeWin {
		return p.Opponent
	}
	return p.Reporter
}

type ReportStatus int

const (
	StatusAwaiting ReportStatus = iota + 1
	StatusConfirmed
)

func (s ReportStatus) String() string {
	switch s {
	case StatusAwaiting:
		return "awaiting"
	case StatusConfirmed:
		return "confirmed"
	}
	return "unknown"
}

func (s ReportStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Resolution is the outcome of a successful Submit.
type Resolution struct {
	Status  ReportStatus
	Pending PendingReport
	Winner  string
	Loser   string
	Change  rating.Change
}

// PendingView splits the reports touching one player.
type PendingView struct {
	Submitted []PendingReport `json:"submitted"`
	Awaiting  []PendingReport `json:"awaiting"`
}

func (v *PendingView) Empty() bool { return len(v.Submitted) == 0 && len(v.Awaiting) == 0 }

// Reports is the two-party confirmation table, one entry per pair at most.
type Reports struct {
	byPair map[PairKey]PendingReport
}

func NewReports() *Reports {
	return &Reports{byPair: make(map[PairKey]PendingReport)}
}

// Submit files a claim or resolves the opposite side's claim.
func (r *Reports) Submit(reporter, opponent string, outcome Outcome, reg *Registry, now time.Time) (*Resolution, error) {
	if reporter == opponent {
		return nil, ErrSelfReport
	}
	if !reg.Has(reporter) || !reg.Has(opponent) {
		return nil, ErrNotRegistered
	}
	if !outcome.Valid() {
		return nil, ErrInvalidOutcome
	}

	key := NewPairKey(reporter, opponent)
	existing, ok := r.byPair[key]
	if !ok {
		p := PendingReport{Reporter: reporter, Opponent: opponent, Outcome: outcome, FiledAt: now}
		r.byPair[key] = p
		return &Resolution{Status: StatusAwaiting, Pending: p}, nil
	}
	if existing.Reporter == reporter {
		return nil, ErrDuplicateReport
	}
	if existing.Outcome.Complement() != outcome {
		return nil, &ConflictError{Standing: existing, Submitted: outcome}
	}

	winnerID, loserID := existing.Winner(), existing.Loser()
	w, _ := reg.mutable(winnerID)
	l, _ := reg.mutable(loserID)
	change := rating.Apply(&w.Standing, &l.Standing)
	delete(r.byPair, key)
	return &Resolution{Status: StatusConfirmed, Pending: existing, Winner: winnerID, Loser: loserID, Change: change}, nil
}

// Cancel removes every report id takes part in, on either side.
func (r *Reports) Cancel(id string) (int, error) {
	n := r.DropPlayer(id)
	if n == 0 {
		return 0, ErrNoPendingReport
	}
	return n, nil
}

// DropPlayer is Cancel without the empty check, used on unregistration.
func (r *Reports) DropPlayer(id string) int {
	n := 0
	for k := range r.byPair {
		if k.Has(id) {
			delete(r.byPair, k)
			n++
		}
	}
	return n
}

// Query lists claims by and against id, oldest first.
func (r *Reports) Query(id string) *PendingView {
	v := &PendingView{}
	for _, p := range r.sortedFor(id) {
		if p.Reporter == id {
			v.Submitted = append(v.Submitted, p)
		} else {
			v.Awaiting = append(v.Awaiting, p)
		}
	}
	return v
}

func (r *Reports) Get(a, b string) (PendingReport, bool) {
	p, ok := r.byPair[NewPairKey(a, b)]
	return p, ok
}

func (r *Reports) Len() int { return len(r.byPair) }

func (r *Reports) sortedFor(id string) []PendingReport {
	var out []PendingReport
	for k, p := range r.byPair {
		if id == "" || k.Has(id) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].FiledAt.Equal(out[j].FiledAt) {
			return out[i].FiledAt.Before(out[j].FiledAt)
		}
		return out[i].Key().String() < out[j].Key().String()
	})
	return out
}
