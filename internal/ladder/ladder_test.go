package ladder

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newRegistryWith(t *testing.T, ratings map[string]int, order ...string) *Registry {
	t.Helper()
	r := NewRegistry()
	for i, id := range order {
		_, err := r.Register(id, "name-"+id, "h-"+id, t0.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		if rt, ok := ratings[id]; ok {
			p, _ := r.mutable(id)
			p.Rating = rt
		}
	}
	return r
}

func TestRegisterDefaults(t *testing.T) {
	r := NewRegistry()
	p, err := r.Register("42", "Ash", "ashk", t0)
	require.NoError(t, err)
	assert.Equal(t, 1000, p.Rating)
	assert.Zero(t, p.Wins)
	assert.Zero(t, p.Losses)
	assert.Equal(t, int64(1), p.Seq)

	got, err := r.Get("42")
	require.NoError(t, err)
	assert.Equal(t, p, got)

	_, err = r.Register("42", "Ash again", "x", t0)
	assert.ErrorIs(t, err, ErrAlreadyRegistered)

	_, err = r.Register("  ", "blank", "x", t0)
	assert.ErrorIs(t, err, ErrInvalidPlayer)
}

func TestGetReturnsCopy(t *testing.T) {
	r := newRegistryWith(t, nil, "a")
	p, err := r.Get("a")
	require.NoError(t, err)
	p.Rating = 5000
	again, _ := r.Get("a")
	assert.Equal(t, 1000, again.Rating)
}

func TestUnregisterUnknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.Unregister("nobody")
	assert.ErrorIs(t, err, ErrNotRegistered)
	_, err = r.Get("nobody")
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestLookupByIDHandleThenName(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register("1", "Ash", "ashk", t0)
	require.NoError(t, err)
	_, err = r.Register("2", "Brock", "Ash", t0)
	require.NoError(t, err)
	_, err = r.Register("3", "brock", "rock", t0)
	require.NoError(t, err)

	p, err := r.Lookup("1")
	require.NoError(t, err)
	assert.Equal(t, "1", p.ID)

	// a handle beats a display name
	p, err = r.Lookup("ash")
	require.NoError(t, err)
	assert.Equal(t, "2", p.ID)

	// colliding names go to the earlier registration
	p, err = r.Lookup(" BROCK ")
	require.NoError(t, err)
	assert.Equal(t, "2", p.ID)

	_, err = r.Lookup("misty")
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestTopOrdersByRatingThenSeq(t *testing.T) {
	r := newRegistryWith(t, map[string]int{"a": 1000, "b": 1200, "c": 1200, "d": 900}, "a", "b", "c", "d")
	top := r.Top(3)
	require.Len(t, top, 3)
	assert.Equal(t, []string{"b", "c", "a"}, ids(top))
	assert.Len(t, r.Top(10), 4)
	assert.Equal(t, 2, r.Rank("c"))
	assert.Equal(t, 0, r.Rank("zzz"))
}

func ids(ps []*Player) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

func TestQueueJoinLeave(t *testing.T) {
	q := NewQueue()
	require.NoError(t, q.Join("a"))
	assert.ErrorIs(t, q.Join("a"), ErrAlreadyQueued)
	require.NoError(t, q.Leave("a"))
	assert.ErrorIs(t, q.Leave("a"), ErrNotQueued)
	assert.Zero(t, q.Len())
}

func TestFindMatchPicksClosestInWindow(t *testing.T) {
	r := newRegistryWith(t, map[string]int{"p1000": 1000, "p1100": 1100, "p1400": 1400, "new": 1090},
		"p1000", "p1100", "p1400", "new")
	q := NewQueue()
	for _, id := range []string{"p1000", "p1100", "p1400", "new"} {
		require.NoError(t, q.Join(id))
	}

	opp, ok := q.FindMatch("new", r)
	require.True(t, ok)
	assert.Equal(t, "p1100", opp)
	assert.Equal(t, []string{"p1000", "p1400"}, q.Snapshot())
}

func TestFindMatchTieGoesToEarliest(t *testing.T) {
	r := newRegistryWith(t, map[string]int{"lo": 950, "hi": 1050, "x": 1000}, "lo", "hi", "x")
	q := NewQueue()
	for _, id := range []string{"hi", "lo", "x"} {
		require.NoError(t, q.Join(id))
	}
	opp, ok := q.FindMatch("x", r)
	require.True(t, ok)
	assert.Equal(t, "hi", opp)
	assert.Equal(t, []string{"lo"}, q.Snapshot())
}

func TestFindMatchWindowBoundary(t *testing.T) {
	r := newRegistryWith(t, map[string]int{"a": 1150, "b": 849, "x": 1000}, "a", "b", "x")

	q := NewQueue()
	require.NoError(t, q.Join("b"))
	require.NoError(t, q.Join("x"))
	_, ok := q.FindMatch("x", r)
	assert.False(t, ok, "151 apart must not match")
	assert.Equal(t, []string{"b", "x"}, q.Snapshot())

	require.NoError(t, q.Join("a"))
	opp, ok := q.FindMatch("a", r)
	require.True(t, ok, "150 apart matches")
	assert.Equal(t, "x", opp)
	assert.Equal(t, []string{"b"}, q.Snapshot())
}

func TestSubmitValidation(t *testing.T) {
	r := newRegistryWith(t, nil, "a", "b")
	rep := NewReports()

	_, err := rep.Submit("a", "a", OutcomeWin, r, t0)
	assert.ErrorIs(t, err, ErrSelfReport)
	_, err = rep.Submit("a", "ghost", OutcomeWin, r, t0)
	assert.ErrorIs(t, err, ErrNotRegistered)
	_, err = rep.Submit("ghost", "a", OutcomeWin, r, t0)
	assert.ErrorIs(t, err, ErrNotRegistered)
	_, err = rep.Submit("a", "b", Outcome("draw"), r, t0)
	assert.ErrorIs(t, err, ErrInvalidOutcome)
	assert.Zero(t, rep.Len())
}

func TestSubmitConfirmAppliesRating(t *testing.T) {
	r := newRegistryWith(t, nil, "a", "b")
	rep := NewReports()

	res, err := rep.Submit("a", "b", OutcomeWin, r, t0)
	require.NoError(t, err)
	assert.Equal(t, StatusAwaiting, res.Status)

	res, err = rep.Submit("b", "a", OutcomeLose, r, t0.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, res.Status)
	assert.Equal(t, "a", res.Winner)
	assert.Equal(t, "b", res.Loser)
	assert.Equal(t, 16, res.Change.Delta)
	assert.Zero(t, rep.Len())

	a, _ := r.Get("a")
	b, _ := r.Get("b")
	assert.Equal(t, 1016, a.Rating)
	assert.Equal(t, 1, a.Wins)
	assert.Equal(t, 984, b.Rating)
	assert.Equal(t, 1, b.Losses)
}

func TestSubmitLoseFirstConfirmsOtherWay(t *testing.T) {
	r := newRegistryWith(t, nil, "a", "b")
	rep := NewReports()
	_, err := rep.Submit("a", "b", OutcomeLose, r, t0)
	require.NoError(t, err)
	res, err := rep.Submit("b", "a", OutcomeWin, r, t0)
	require.NoError(t, err)
	assert.Equal(t, "b", res.Winner)
	assert.Equal(t, "a", res.Loser)
}

func TestSubmitConflictLeavesEntry(t *testing.T) {
	r := newRegistryWith(t, nil, "a", "b")
	rep := NewReports()
	_, err := rep.Submit("a", "b", OutcomeWin, r, t0)
	require.NoError(t, err)

	_, err = rep.Submit("b", "a", OutcomeWin, r, t0.Add(time.Minute))
	require.ErrorIs(t, err, ErrReportConflict)
	var ce *ConflictError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "a", ce.Standing.Reporter)
	assert.Equal(t, OutcomeWin, ce.Standing.Outcome)

	view := rep.Query("a")
	require.Len(t, view.Submitted, 1)
	assert.Equal(t, PendingReport{Reporter: "a", Opponent: "b", Outcome: OutcomeWin, FiledAt: t0}, view.Submitted[0])

	a, _ := r.Get("a")
	assert.Equal(t, 1000, a.Rating)

	n, err := rep.Cancel("a")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	res, err := rep.Submit("a", "b", OutcomeWin, r, t0)
	require.NoError(t, err)
	assert.Equal(t, StatusAwaiting, res.Status)
}

func TestSubmitDuplicate(t *testing.T) {
	r := newRegistryWith(t, nil, "a", "b")
	rep := NewReports()
	_, err := rep.Submit("a", "b", OutcomeWin, r, t0)
	require.NoError(t, err)
	_, err = rep.Submit("a", "b", OutcomeLose, r, t0)
	assert.ErrorIs(t, err, ErrDuplicateReport)
	p, ok := rep.Get("b", "a")
	require.True(t, ok)
	assert.Equal(t, OutcomeWin, p.Outcome)
}

func TestCancelAndQuery(t *testing.T) {
	r := newRegistryWith(t, nil, "a", "b", "c")
	rep := NewReports()
	_, err := rep.Cancel("a")
	assert.ErrorIs(t, err, ErrNoPendingReport)

	_, err = rep.Submit("a", "b", OutcomeWin, r, t0)
	require.NoError(t, err)
	_, err = rep.Submit("c", "a", OutcomeLose, r, t0.Add(time.Second))
	require.NoError(t, err)

	view := rep.Query("a")
	require.Len(t, view.Submitted, 1)
	require.Len(t, view.Awaiting, 1)
	assert.Equal(t, "c", view.Awaiting[0].Reporter)
	assert.True(t, rep.Query("zzz").Empty())

	n, err := rep.Cancel("a")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Zero(t, rep.Len())
}

func TestStateUnregisterCascades(t *testing.T) {
	s := NewState()
	for _, id := range []string{"a", "b"} {
		_, err := s.Registry.Register(id, id, id, t0)
		require.NoError(t, err)
	}
	require.NoError(t, s.Queue.Join("a"))
	_, err := s.Reports.Submit("b", "a", OutcomeWin, s.Registry, t0)
	require.NoError(t, err)

	_, queued, dropped, err := s.Unregister("a")
	require.NoError(t, err)
	assert.True(t, queued)
	assert.Equal(t, 1, dropped)
	assert.Empty(t, s.Queue.Snapshot())
	assert.True(t, s.Reports.Query("b").Empty())
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := NewState()
	s.Version = 3
	for _, id := range []string{"42", "77"} {
		_, err := s.Registry.Register(id, "n"+id, "h"+id, t0)
		require.NoError(t, err)
	}
	require.NoError(t, s.Queue.Join("77"))
	_, err := s.Reports.Submit("77", "42", OutcomeLose, s.Registry, t0)
	require.NoError(t, err)

	raw, err := s.Snapshot().Encode()
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"42_77"`)
	assert.Contains(t, string(raw), `"rating":1000`)

	snap, err := DecodeSnapshot(raw)
	require.NoError(t, err)
	back, err := FromSnapshot(snap)
	require.NoError(t, err)
	assert.Equal(t, int64(3), back.Version)
	assert.Equal(t, []string{"77"}, back.Queue.Snapshot())
	p, ok := back.Reports.Get("42", "77")
	require.True(t, ok)
	assert.Equal(t, "77", p.Reporter)

	// seq keeps counting after reload
	np, err := back.Registry.Register("99", "n", "h", t0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), np.Seq)
}

func TestFromSnapshotRejectsBadPendingKey(t *testing.T) {
	snap := &Snapshot{
		Players: map[string]Player{
			"a": {ID: "a", Seq: 1},
			"b": {ID: "b", Seq: 2},
		},
		Pending: map[string]PendingReport{
			"b_a": {Reporter: "a", Opponent: "b", Outcome: OutcomeWin},
		},
	}
	_, err := FromSnapshot(snap)
	assert.ErrorIs(t, err, ErrCorruptSnapshot)

	_, err = DecodeSnapshot([]byte("{not json"))
	assert.ErrorIs(t, err, ErrCorruptSnapshot)

	empty, err := DecodeSnapshot(nil)
	require.NoError(t, err)
	st, err := FromSnapshot(empty)
	require.NoError(t, err)
	assert.Zero(t, st.Registry.Len())
}

func TestPairKey(t *testing.T) {
	k := NewPairKey("77", "42")
	assert.Equal(t, NewPairKey("42", "77"), k)
	assert.Equal(t, "42_77", k.String())
	assert.Equal(t, "77", k.Other("42"))
	assert.True(t, k.Has("77"))
	assert.False(t, k.Has("7"))
}

func TestParseOutcome(t *testing.T) {
	o, err := ParseOutcome(" WIN ")
	require.NoError(t, err)
	assert.Equal(t, OutcomeWin, o)
	assert.Equal(t, OutcomeLose, o.Complement())
	_, err = ParseOutcome("draw")
	assert.ErrorIs(t, err, ErrInvalidOutcome)
}
