package engine

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/park285/Cheese-Ladder-bot/internal/history"
	"github.com/park285/Cheese-Ladder-bot/internal/ladder"
	"github.com/park285/Cheese-Ladder-bot/internal/rating"
)

// ReportResult is what a successful report produced.
type ReportResult struct {
	Status  ladder.ReportStatus  `json:"status"`
	Pending ladder.PendingReport `json:"pending"`
	// Set only when Status is ladder.StatusConfirmed.
	Winner *ladder.Player `json:"winner,omitempty"`
	Loser  *ladder.Player `json:"loser,omitempty"`
	Change rating.Change  `json:"change"`
	Match  *history.Match `json:"match,omitempty"`
}

// Report files reporter's claim about a match against opponent.
func (e *Engine) Report(ctx context.Context, reporter, opponent, outcome string) (*ReportResult, error) {
	var out ReportResult
	err := e.update(ctx, "report", func(st *ladder.State) error {
		res, err := st.Reports.Submit(reporter, opponent, ladder.NormalizeOutcome(outcome), st.Registry, e.now())
		if err != nil {
			return err
		}
		out = ReportResult{Status: res.Status, Pending: res.Pending}
		if res.Status != ladder.StatusConfirmed {
			return nil
		}
		if out.Winner, err = st.Registry.Get(res.Winner); err != nil {
			return err
		}
		if out.Loser, err = st.Registry.Get(res.Loser); err != nil {
			return err
		}
		out.Change = res.Change
		return nil
	})
	if err != nil {
		var ce *ladder.ConflictError
		if errors.As(err, &ce) {
			e.logger.Info("ladder_report_conflict", zap.String("reporter", reporter), zap.String("opponent", opponent),
				zap.String("standing_outcome", string(ce.Standing.Outcome)))
		}
		return nil, err
	}

	if out.Status != ladder.StatusConfirmed {
		e.logger.Info("ladder_report_filed", zap.String("reporter", reporter), zap.String("opponent", opponent),
			zap.String("outcome", string(out.Pending.Outcome)))
		return &out, nil
	}

	e.logger.Info("ladder_report_confirmed",
		zap.String("winner_id", out.Winner.ID), zap.String("loser_id", out.Loser.ID),
		zap.Int("delta", out.Change.Delta), zap.Int("winner_rating", out.Winner.Rating), zap.Int("loser_rating", out.Loser.Rating))
	out.Match = e.record(ctx, &out)
	return &out, nil
}

// record writes the confirmed match to history. The rating change is already
// committed, so a failure here is only logged.
func (e *Engine) record(ctx context.Context, r *ReportResult) *history.Match {
	m := history.Match{
		ID:           e.newID(),
		WinnerID:     r.Winner.ID,
		WinnerName:   r.Winner.Name(),
		LoserID:      r.Loser.ID,
		LoserName:    r.Loser.Name(),
		Delta:        r.Change.Delta,
		WinnerBefore: r.Change.WinnerBefore,
		WinnerAfter:  r.Change.WinnerAfter,
		LoserBefore:  r.Change.LoserBefore,
		LoserAfter:   r.Change.LoserAfter,
		ReportedAt:   r.Pending.FiledAt,
		ConfirmedAt:  e.now(),
	}
	if e.rec == nil {
		return &m
	}
	if err := e.rec.Record(ctx, m); err != nil {
		e.logger.Error("ladder_history_error", zap.String("match_id", m.ID), zap.Error(err))
	}
	return &m
}

// CancelReport withdraws every pending report id is part of.
func (e *Engine) CancelReport(ctx context.Context, id string) (int, error) {
	var n int
	err := e.update(ctx, "cancel_report", func(st *ladder.State) error {
		var err error
		n, err = st.Reports.Cancel(id)
		return err
	})
	if err != nil {
		return 0, err
	}
	e.logger.Info("ladder_report_cancelled", zap.String("player_id", id), zap.Int("removed", n))
	return n, nil
}

// PendingReports lists open claims made by and against id.
func (e *Engine) PendingReports(ctx context.Context, id string) (*ladder.PendingView, error) {
	var out *ladder.PendingView
	err := e.view(ctx, "pending_reports", func(st *ladder.State) error {
		out = st.Reports.Query(id)
		return nil
	})
	return out, err
}
