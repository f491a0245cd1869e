package ladderpresenter

import (
	"errors"
	"strings"

	"github.com/park285/Cheese-Ladder-bot/internal/engine"
	"github.com/park285/Cheese-Ladder-bot/internal/history"
	"github.com/park285/Cheese-Ladder-bot/internal/ladder"
	"github.com/park285/Cheese-Ladder-bot/internal/msgcat"
)

// PrefixProvider supplies the command prefix shown in help and usage lines.
type PrefixProvider interface {
	Prefix() string
}

// Names maps player ids to display names. Unknown ids render as themselves.
type Names map[string]string

func (n Names) Of(id string) string {
	if v, ok := n[id]; ok && v != "" {
		return v
	}
	return id
}

// Formatter turns engine results and errors into chat text.
type Formatter struct {
	cat    *msgcat.Catalog
	prefix PrefixProvider
}

func NewFormatter(cat *msgcat.Catalog, prefix PrefixProvider) *Formatter {
	return &Formatter{cat: cat, prefix: prefix}
}

func (f *Formatter) p() string {
	if f.prefix == nil {
		return ""
	}
	return f.prefix.Prefix()
}

func (f *Formatter) render(key string, data map[string]any) string {
	if data == nil {
		data = map[string]any{}
	}
	data["Prefix"] = f.p()
	out, err := f.cat.Render(key, data)
	if err != nil {
		if key != "error.internal" {
			return f.render("error.internal", nil)
		}
		return "Something went wrong."
	}
	return out
}

func (f *Formatter) Help() string { return f.render("ladder.help", nil) }

func (f *Formatter) Usage(cmd string) string { return f.render("error.usage."+cmd, nil) }

func (f *Formatter) UnknownCommand() string { return f.render("error.unknown_command", nil) }

func (f *Formatter) MissingUser() string { return f.render("error.missing_user", nil) }

func (f *Formatter) UnknownPlayer(ref string) string {
	return f.render("error.unknown_player", map[string]any{"Name": ref})
}

func (f *Formatter) Registered(p *ladder.Player) string {
	return f.render("ladder.register.ok", map[string]any{"Name": p.Name(), "Handle": p.Handle, "Rating": p.Rating})
}

func (f *Formatter) Unregistered(r *engine.UnregisterResult) string {
	return f.render("ladder.unregister.ok", map[string]any{
		"Name": r.Player.Name(), "WasQueued": r.WasQueued, "Dropped": r.DroppedReports,
	})
}

func (f *Formatter) Profile(p *engine.Profile) string {
	return f.render("ladder.profile.body", map[string]any{
		"Name": p.Name(), "Handle": p.Handle, "Rating": p.Rating, "Rank": p.Rank,
		"Wins": p.Wins, "Losses": p.Losses, "Queued": p.Queued,
	})
}

func (f *Formatter) Matchmake(r *engine.MatchmakeResult) string {
	if r.Status == engine.StatusMatchFound {
		return f.render("ladder.matchmake.found", map[string]any{
			"Name": r.Player.Name(), "Rating": r.Player.Rating,
			"OpponentName": r.Opponent.Name(), "OpponentRating": r.Opponent.Rating,
		})
	}
	return f.render("ladder.matchmake.queued", map[string]any{
		"Name": r.Player.Name(), "Rating": r.Player.Rating, "Position": r.Position, "Window": ladder.MatchWindow,
	})
}

func (f *Formatter) QueueLeft(name string) string {
	return f.render("ladder.cancelmatch.ok", map[string]any{"Name": name})
}

func (f *Formatter) Queue(entries []engine.QueueEntry) string {
	if len(entries) == 0 {
		return f.render("ladder.queue.empty", nil)
	}
	lines := []string{f.render("ladder.queue.header", map[string]any{"Count": len(entries)})}
	for _, e := range entries {
		lines = append(lines, f.render("ladder.queue.row", map[string]any{"Position": e.Position, "Name": e.Name, "Rating": e.Rating}))
	}
	return strings.Join(lines, "\n")
}

func (f *Formatter) Report(r *engine.ReportResult, names Names) string {
	if r.Status == ladder.StatusConfirmed {
		return f.render("ladder.report.confirmed", map[string]any{
			"Winner": r.Winner.Name(), "Loser": r.Loser.Name(),
			"WinnerRating": r.Winner.Rating, "LoserRating": r.Loser.Rating, "Delta": r.Change.Delta,
		})
	}
	return f.render("ladder.report.awaiting", map[string]any{
		"Reporter": names.Of(r.Pending.Reporter), "Opponent": names.Of(r.Pending.Opponent), "Outcome": string(r.Pending.Outcome),
	})
}

func (f *Formatter) ReportsCancelled(n int) string {
	return f.render("ladder.cancelreport.ok", map[string]any{"Count": n})
}

func (f *Formatter) Pending(v *ladder.PendingView, names Names) string {
	if v == nil || v.Empty() {
		return f.render("ladder.pending.empty", nil)
	}
	var lines []string
	if len(v.Submitted) > 0 {
		lines = append(lines, f.render("ladder.pending.submitted_header", nil))
		for _, p := range v.Submitted {
			lines = append(lines, f.render("ladder.pending.submitted_row", map[string]any{
				"Opponent": names.Of(p.Opponent), "Outcome": string(p.Outcome),
			}))
		}
	}
	if len(v.Awaiting) > 0 {
		lines = append(lines, f.render("ladder.pending.awaiting_header", nil))
		for _, p := range v.Awaiting {
			lines = append(lines, f.render("ladder.pending.awaiting_row", map[string]any{
				"Reporter": names.Of(p.Reporter), "Outcome": string(p.Outcome),
			}))
		}
	}
	return strings.Join(lines, "\n")
}

// Leaderboard renders the board and folds anything past the first few rows
// behind the chat client's "see more" fold.
func (f *Formatter) Leaderboard(players []*ladder.Player) string {
	if len(players) == 0 {
		return f.render("ladder.leaderboard.empty", nil)
	}
	header := f.render("ladder.leaderboard.header", map[string]any{"Count": len(players)})
	rows := make([]string, 0, len(players))
	for i, p := range players {
		rows = append(rows, f.render("ladder.leaderboard.row", map[string]any{
			"Rank": i + 1, "Name": p.Name(), "Rating": p.Rating, "Wins": p.Wins, "Losses": p.Losses,
		}))
	}
	if len(rows) <= foldAfter {
		return header + "\n" + strings.Join(rows, "\n")
	}
	return ApplySeeMorePadding(strings.Join(rows, "\n"), header)
}

func (f *Formatter) History(name, playerID string, matches []history.Match) string {
	if len(matches) == 0 {
		return f.render("ladder.history.empty", nil)
	}
	lines := []string{f.render("ladder.history.header", map[string]any{"Name": name})}
	for _, m := range matches {
		if m.WinnerID == playerID {
			lines = append(lines, f.render("ladder.history.win_row", map[string]any{
				"Opponent": m.LoserName, "Delta": m.Delta, "After": m.WinnerAfter,
			}))
			continue
		}
		lines = append(lines, f.render("ladder.history.loss_row", map[string]any{
			"Opponent": m.WinnerName, "Delta": m.Delta, "After": m.LoserAfter,
		}))
	}
	return strings.Join(lines, "\n")
}

// Error maps an engine error to exactly one user message.
func (f *Formatter) Error(err error, names Names) string {
	var ce *ladder.ConflictError
	switch {
	case errors.As(err, &ce):
		return f.render("error.report_conflict", map[string]any{
			"Reporter": names.Of(ce.Standing.Reporter), "Opponent": names.Of(ce.Standing.Opponent),
			"Outcome": string(ce.Standing.Outcome),
		})
	case errors.Is(err, ladder.ErrPersistence):
		return f.render("error.persistence", nil)
	case errors.Is(err, ladder.ErrNotRegistered):
		return f.render("error.not_registered", nil)
	case errors.Is(err, ladder.ErrAlreadyRegistered):
		return f.render("error.already_registered", nil)
	case errors.Is(err, ladder.ErrAlreadyQueued):
		return f.render("error.already_queued", nil)
	case errors.Is(err, ladder.ErrNotQueued):
		return f.render("error.not_queued", nil)
	case errors.Is(err, ladder.ErrSelfReport):
		return f.render("error.self_report", nil)
	case errors.Is(err, ladder.ErrInvalidOutcome):
		return f.render("error.invalid_outcome", nil)
	case errors.Is(err, ladder.ErrDuplicateReport):
		return f.render("error.duplicate_report", nil)
	case errors.Is(err, ladder.ErrNoPendingReport):
		return f.render("error.no_pending_report", nil)
	default:
		return f.render("error.internal", nil)
	}
}
