package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/park285/Cheese-Ladder-bot/internal/history"
	"github.com/park285/Cheese-Ladder-bot/internal/ladder"
	"github.com/park285/Cheese-Ladder-bot/internal/store"
)

// flakyGateway wraps a real gateway and fails on demand.
type flakyGateway struct {
	store.Gateway
	mu       sync.Mutex
	failLoad bool
	failSave bool
	saves    int
}

var errDisk = errors.New("disk on fire")

func (f *flakyGateway) Load(ctx context.Context) (*ladder.Snapshot, error) {
	f.mu.Lock()
	fail := f.failLoad
	f.mu.Unlock()
	if fail {
		return nil, errDisk
	}
	return f.Gateway.Load(ctx)
}

func (f *flakyGateway) Save(ctx context.Context, snap *ladder.Snapshot) error {
	f.mu.Lock()
	fail := f.failSave
	f.saves++
	f.mu.Unlock()
	if fail {
		return errDisk
	}
	return f.Gateway.Save(ctx, snap)
}

func (f *flakyGateway) set(load, save bool) {
	f.mu.Lock()
	f.failLoad, f.failSave = load, save
	f.mu.Unlock()
}

func (f *flakyGateway) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

type failingRecorder struct{ history.Memory }

func (f *failingRecorder) Record(context.Context, history.Match) error { return errDisk }

type EngineSuite struct {
	suite.Suite
	ctx   context.Context
	gw    *flakyGateway
	rec   *history.Memory
	eng   *Engine
	clock time.Time
}

func (s *EngineSuite) SetupTest() {
	s.ctx = context.Background()
	s.gw = &flakyGateway{Gateway: store.NewMemory()}
	s.rec = history.NewMemory()
	s.clock = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.eng = New(s.gw, WithRecorder(s.rec), WithLogger(zap.NewNop()), WithClock(func() time.Time {
		s.clock = s.clock.Add(time.Second)
		return s.clock
	}))
}

func (s *EngineSuite) register(ids ...string) {
	for _, id := range ids {
		_, err := s.eng.Register(s.ctx, id, "name-"+id, "h-"+id)
		s.Require().NoError(err)
	}
}

// setRating edits the stored snapshot directly, the way an operator would.
func (s *EngineSuite) setRating(id string, r int) {
	snap, err := s.gw.Load(s.ctx)
	s.Require().NoError(err)
	p := snap.Players[id]
	p.Rating = r
	snap.Players[id] = p
	s.Require().NoError(s.gw.Save(s.ctx, snap))
}

func (s *EngineSuite) setQueue(ids ...string) {
	snap, err := s.gw.Load(s.ctx)
	s.Require().NoError(err)
	snap.Queue = ids
	s.Require().NoError(s.gw.Save(s.ctx, snap))
}

func (s *EngineSuite) TestRegisterThenProfile() {
	s.register("42")
	p, err := s.eng.Profile(s.ctx, "42")
	s.Require().NoError(err)
	s.Equal(1000, p.Rating)
	s.Zero(p.Wins)
	s.Zero(p.Losses)
	s.Equal("h-42", p.Handle)
	s.Equal(1, p.Rank)

	_, err = s.eng.Register(s.ctx, "42", "again", "x")
	s.ErrorIs(err, ladder.ErrAlreadyRegistered)
	_, err = s.eng.Profile(s.ctx, "nobody")
	s.ErrorIs(err, ladder.ErrNotRegistered)
}

func (s *EngineSuite) TestDisplayNames() {
	s.register("a", "b")
	names, err := s.eng.DisplayNames(s.ctx, "a", "b", "ghost")
	s.Require().NoError(err)
	s.Equal(map[string]string{"a": "name-a", "b": "name-b"}, names)

	p, err := s.eng.Resolve(s.ctx, "H-B")
	s.Require().NoError(err)
	s.Equal("b", p.ID)
	_, err = s.eng.Resolve(s.ctx, "ghost")
	s.ErrorIs(err, ladder.ErrNotRegistered)
}

func (s *EngineSuite) TestMatchmakeQueueScenario() {
	s.register("p1000", "p1100", "p1400", "joiner")
	s.setRating("p1100", 1100)
	s.setRating("p1400", 1400)
	s.setRating("joiner", 1090)

	// 1000 and 1100 would pair with each other on join, so seed the queue directly.
	s.setQueue("p1000", "p1100", "p1400")

	res, err := s.eng.Matchmake(s.ctx, "joiner")
	s.Require().NoError(err)
	s.Require().Equal(StatusMatchFound, res.Status)
	s.Equal("p1100", res.Opponent.ID)
	s.Equal(1090, res.Player.Rating)
	s.Equal(1100, res.Opponent.Rating)

	q, err := s.eng.QueueStatus(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(q, 2)
	s.Equal("p1000", q[0].ID)
	s.Equal("p1400", q[1].ID)
	s.Equal(2, q[1].Position)
}

func (s *EngineSuite) TestMatchmakeErrors() {
	s.register("a")
	_, err := s.eng.Matchmake(s.ctx, "ghost")
	s.ErrorIs(err, ladder.ErrNotRegistered)

	res, err := s.eng.Matchmake(s.ctx, "a")
	s.Require().NoError(err)
	s.Equal(1, res.Position)
	_, err = s.eng.Matchmake(s.ctx, "a")
	s.ErrorIs(err, ladder.ErrAlreadyQueued)

	s.Require().NoError(s.eng.CancelQueue(s.ctx, "a"))
	s.ErrorIs(s.eng.CancelQueue(s.ctx, "a"), ladder.ErrNotQueued)
}

func (s *EngineSuite) TestReportConfirmFlow() {
	s.register("a", "b")
	res, err := s.eng.Report(s.ctx, "a", "b", "win")
	s.Require().NoError(err)
	s.Equal(ladder.StatusAwaiting, res.Status)

	view, err := s.eng.PendingReports(s.ctx, "b")
	s.Require().NoError(err)
	s.Len(view.Awaiting, 1)

	res, err = s.eng.Report(s.ctx, "b", "a", "LOSE")
	s.Require().NoError(err)
	s.Require().Equal(ladder.StatusConfirmed, res.Status)
	s.Equal(16, res.Change.Delta)
	s.Equal(1016, res.Winner.Rating)
	s.Equal(984, res.Loser.Rating)
	s.Require().NotNil(res.Match)
	s.NotEmpty(res.Match.ID)

	a, err := s.eng.Profile(s.ctx, "a")
	s.Require().NoError(err)
	s.Equal(1016, a.Rating)
	s.Equal(1, a.Wins)
	b, err := s.eng.Profile(s.ctx, "b")
	s.Require().NoError(err)
	s.Equal(984, b.Rating)
	s.Equal(1, b.Losses)

	hist, err := s.eng.History(s.ctx, "b", 5)
	s.Require().NoError(err)
	s.Require().Len(hist, 1)
	s.Equal("a", hist[0].WinnerID)
	s.Equal(res.Match.ID, hist[0].ID)

	view, err = s.eng.PendingReports(s.ctx, "a")
	s.Require().NoError(err)
	s.True(view.Empty())

	board, err := s.eng.Leaderboard(s.ctx, 0)
	s.Require().NoError(err)
	s.Equal("a", board[0].ID)
}

func (s *EngineSuite) TestReportConflictThenCancel() {
	s.register("a", "b")
	_, err := s.eng.Report(s.ctx, "a", "b", "win")
	s.Require().NoError(err)

	_, err = s.eng.Report(s.ctx, "b", "a", "win")
	s.Require().ErrorIs(err, ladder.ErrReportConflict)
	var ce *ladder.ConflictError
	s.Require().True(errors.As(err, &ce))
	s.Equal("a", ce.Standing.Reporter)

	view, err := s.eng.PendingReports(s.ctx, "a")
	s.Require().NoError(err)
	s.Require().Len(view.Submitted, 1)
	s.Equal(ladder.OutcomeWin, view.Submitted[0].Outcome)

	n, err := s.eng.CancelReport(s.ctx, "a")
	s.Require().NoError(err)
	s.Equal(1, n)
	res, err := s.eng.Report(s.ctx, "a", "b", "win")
	s.Require().NoError(err)
	s.Equal(ladder.StatusAwaiting, res.Status)

	_, err = s.eng.Report(s.ctx, "a", "b", "win")
	s.ErrorIs(err, ladder.ErrDuplicateReport)
}

func (s *EngineSuite) TestReportValidation() {
	s.register("a", "b")
	_, err := s.eng.Report(s.ctx, "a", "a", "win")
	s.ErrorIs(err, ladder.ErrSelfReport)
	_, err = s.eng.Report(s.ctx, "a", "ghost", "win")
	s.ErrorIs(err, ladder.ErrNotRegistered)
	_, err = s.eng.Report(s.ctx, "a", "b", "draw")
	s.ErrorIs(err, ladder.ErrInvalidOutcome)
	_, err = s.eng.CancelReport(s.ctx, "a")
	s.ErrorIs(err, ladder.ErrNoPendingReport)
}

func (s *EngineSuite) TestUnregisterCascades() {
	s.register("a", "b")
	_, err := s.eng.Matchmake(s.ctx, "a")
	s.Require().NoError(err)
	_, err = s.eng.Report(s.ctx, "a", "b", "win")
	s.Require().NoError(err)

	res, err := s.eng.Unregister(s.ctx, "a")
	s.Require().NoError(err)
	s.True(res.WasQueued)
	s.Equal(1, res.DroppedReports)

	q, err := s.eng.QueueStatus(s.ctx)
	s.Require().NoError(err)
	s.Empty(q)
	view, err := s.eng.PendingReports(s.ctx, "b")
	s.Require().NoError(err)
	s.True(view.Empty())

	_, err = s.eng.Unregister(s.ctx, "a")
	s.ErrorIs(err, ladder.ErrNotRegistered)
	_, err = s.eng.History(s.ctx, "a", 5)
	s.ErrorIs(err, ladder.ErrNotRegistered)
}

func (s *EngineSuite) TestLoadFailureAbortsBeforeMutation() {
	s.register("a")
	s.gw.set(true, false)
	before := s.gw.saveCount()

	_, err := s.eng.Register(s.ctx, "b", "b", "b")
	s.ErrorIs(err, ladder.ErrPersistence)
	s.ErrorIs(err, errDisk)
	_, err = s.eng.Leaderboard(s.ctx, 5)
	s.ErrorIs(err, ladder.ErrPersistence)
	s.Equal(before, s.gw.saveCount())

	s.gw.set(false, false)
	_, err = s.eng.Profile(s.ctx, "b")
	s.ErrorIs(err, ladder.ErrNotRegistered)
}

func (s *EngineSuite) TestSaveFailureIsNotCommitted() {
	s.register("a", "b")
	_, err := s.eng.Report(s.ctx, "a", "b", "win")
	s.Require().NoError(err)

	s.gw.set(false, true)
	_, err = s.eng.Report(s.ctx, "b", "a", "lose")
	s.Require().ErrorIs(err, ladder.ErrPersistence)

	s.gw.set(false, false)
	a, err := s.eng.Profile(s.ctx, "a")
	s.Require().NoError(err)
	s.Equal(1000, a.Rating)
	view, err := s.eng.PendingReports(s.ctx, "a")
	s.Require().NoError(err)
	s.Len(view.Submitted, 1)
	hist, err := s.eng.History(s.ctx, "a", 5)
	s.Require().NoError(err)
	s.Empty(hist)

	res, err := s.eng.Report(s.ctx, "b", "a", "lose")
	s.Require().NoError(err)
	s.Equal(ladder.StatusConfirmed, res.Status)
}

func (s *EngineSuite) TestValidationErrorsDoNotSave() {
	s.register("a")
	before := s.gw.saveCount()
	_, err := s.eng.Register(s.ctx, "a", "a", "a")
	s.Require().Error(err)
	_, err = s.eng.Report(s.ctx, "a", "a", "win")
	s.Require().Error(err)
	_, err = s.eng.Profile(s.ctx, "a")
	s.Require().NoError(err)
	s.Equal(before, s.gw.saveCount())
}

func (s *EngineSuite) TestRecorderFailureIsLoggedOnly() {
	eng := New(s.gw, WithRecorder(&failingRecorder{}), WithLogger(zap.NewNop()))
	for _, id := range []string{"x", "y"} {
		_, err := eng.Register(s.ctx, id, id, id)
		s.Require().NoError(err)
	}
	_, err := eng.Report(s.ctx, "x", "y", "lose")
	s.Require().NoError(err)
	res, err := eng.Report(s.ctx, "y", "x", "win")
	s.Require().NoError(err)
	s.Equal(ladder.StatusConfirmed, res.Status)
	s.Equal("y", res.Winner.ID)
}

func (s *EngineSuite) TestStaleSaveIsReplayed() {
	s.register("a")
	other := New(s.gw.Gateway, WithLogger(zap.NewNop()))

	// Another engine on the same store commits between our load and save.
	racer := &racingGateway{Gateway: s.gw.Gateway, before: func() {
		_, err := other.Register(s.ctx, "z", "z", "z")
		s.Require().NoError(err)
	}}
	eng := New(racer, WithLogger(zap.NewNop()))
	_, err := eng.Register(s.ctx, "b", "b", "b")
	s.Require().NoError(err)

	board, err := eng.Leaderboard(s.ctx, 10)
	s.Require().NoError(err)
	s.Len(board, 3)
}

// racingGateway runs before once, right before the first save.
type racingGateway struct {
	store.Gateway
	once   sync.Once
	before func()
}

func (r *racingGateway) Save(ctx context.Context, snap *ladder.Snapshot) error {
	r.once.Do(r.before)
	return r.Gateway.Save(ctx, snap)
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func TestConcurrentReportsConfirmOnce(t *testing.T) {
	ctx := context.Background()
	eng := New(store.NewMemory(), WithLogger(zap.NewNop()))
	const pairs = 20
	for i := 0; i < pairs; i++ {
		for _, side := range []string{"w", "l"} {
			if _, err := eng.Register(ctx, fmt.Sprintf("%s%02d", side, i), "", side); err != nil {
				t.Fatalf("Register: %v", err)
			}
		}
	}

	var mu sync.Mutex
	confirmed := 0
	var g errgroup.Group
	for i := 0; i < pairs; i++ {
		w, l := fmt.Sprintf("w%02d", i), fmt.Sprintf("l%02d", i)
		for _, c := range [][3]string{{w, l, "win"}, {l, w, "lose"}} {
			c := c // per-iteration copy; go 1.21 loop semantics
			g.Go(func() error {
				res, err := eng.Report(ctx, c[0], c[1], c[2])
				if err != nil {
					return err
				}
				if res.Status == ladder.StatusConfirmed {
					mu.Lock()
					confirmed++
					mu.Unlock()
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("report: %v", err)
	}
	if confirmed != pairs {
		t.Fatalf("expected %d confirmations, got %d", pairs, confirmed)
	}
	board, err := eng.Leaderboard(ctx, 2*pairs)
	if err != nil {
		t.Fatalf("Leaderboard: %v", err)
	}
	for _, p := range board {
		if p.Games() != 1 {
			t.Fatalf("player %s played %d games", p.ID, p.Games())
		}
	}
}

func TestConcurrentMatchmakePairsEveryone(t *testing.T) {
	ctx := context.Background()
	eng := New(store.NewMemory(), WithLogger(zap.NewNop()))
	const n = 30
	for i := 0; i < n; i++ {
		if _, err := eng.Register(ctx, fmt.Sprintf("p%02d", i), "", ""); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	var g errgroup.Group
	var mu sync.Mutex
	paired := map[string]string{}
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("p%02d", i)
		g.Go(func() error {
			res, err := eng.Matchmake(ctx, id)
			if err != nil {
				return err
			}
			if res.Status == StatusMatchFound {
				mu.Lock()
				defer mu.Unlock()
				for _, seen := range []string{id, res.Opponent.ID} {
					if _, dup := paired[seen]; dup {
						return fmt.Errorf("%s paired twice", seen)
					}
				}
				paired[id], paired[res.Opponent.ID] = res.Opponent.ID, id
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("matchmake: %v", err)
	}
	q, err := eng.QueueStatus(ctx)
	if err != nil {
		t.Fatalf("QueueStatus: %v", err)
	}
	// everyone is rated 1000, so nobody should be left waiting
	if len(q) != 0 || len(paired) != n {
		t.Fatalf("queue=%d paired=%d", len(q), len(paired))
	}
}

func TestOpenKeepsStateAndHistoryAcrossRestarts(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	opts := store.Options{
		Backend:    store.BackendFile,
		FilePath:   dir + "/state/ladder.json",
		SQLitePath: dir + "/db/ladder.db",
	}

	eng, closeFn, err := Open(ctx, opts, zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for _, id := range []string{"a", "b"} {
		if _, err := eng.Register(ctx, id, id, id); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	if _, err := eng.Report(ctx, "a", "b", "win"); err != nil {
		t.Fatalf("Report: %v", err)
	}
	if _, err := eng.Report(ctx, "b", "a", "lose"); err != nil {
		t.Fatalf("Report: %v", err)
	}
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}

	eng, closeFn, err = Open(ctx, opts, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer closeFn()
	p, err := eng.Profile(ctx, "a")
	if err != nil || p.Rating != 1016 {
		t.Fatalf("profile after restart: %+v %v", p, err)
	}
	matches, err := eng.History(ctx, "b", 0)
	if err != nil || len(matches) != 1 || matches[0].WinnerID != "a" {
		t.Fatalf("history after restart: %+v %v", matches, err)
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, _, err := Open(context.Background(), store.Options{Backend: "floppy"}, nil); !errors.Is(err, store.ErrUnknownBackend) {
		t.Fatalf("want ErrUnknownBackend, got %v", err)
	}
}
