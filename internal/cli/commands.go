package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/park285/Cheese-Ladder-bot/internal/adapter/ladderpresenter"
	"github.com/park285/Cheese-Ladder-bot/internal/engine"
	"github.com/park285/Cheese-Ladder-bot/internal/history"
	"github.com/park285/Cheese-Ladder-bot/internal/ladder"
)

func (a *app) newRegisterCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "register <player-id> <handle>",
		Short: "Register a player at the default rating",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.eng.Register(cmd.Context(), args[0], name, args[1])
			if err != nil {
				return a.out.Fail(err, nil)
			}
			return a.out.Print(p, func(f *ladderpresenter.Formatter) string { return f.Registered(p) })
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name (defaults to the handle)")
	return cmd
}

func (a *app) newUnregisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unregister <player-id>",
		Short: "Remove a player with their queue slot and pending reports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.eng.Unregister(cmd.Context(), args[0])
			if err != nil {
				return a.out.Fail(err, nil)
			}
			return a.out.Print(r, func(f *ladderpresenter.Formatter) string { return f.Unregistered(r) })
		},
	}
}

func (a *app) newProfileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile <player>",
		Short: "Show rating, record and rank",
		Long:  "Show rating, record and rank. The player may be an id, handle or display name.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := a.eng.Resolve(cmd.Context(), args[0])
			if err != nil {
				return a.out.Fail(err, nil)
			}
			p, err := a.eng.Profile(cmd.Context(), ref.ID)
			if err != nil {
				return a.out.Fail(err, nil)
			}
			return a.out.Print(p, func(f *ladderpresenter.Formatter) string { return f.Profile(p) })
		},
	}
}

func (a *app) newMatchmakeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "matchmake <player-id>",
		Short: "Queue a player and try to pair them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.eng.Matchmake(cmd.Context(), args[0])
			if err != nil {
				return a.out.Fail(err, nil)
			}
			return a.out.Print(r, func(f *ladderpresenter.Formatter) string { return f.Matchmake(r) })
		},
	}
}

func (a *app) newCancelQueueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel-queue <player-id>",
		Short: "Take a player out of the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if err := a.eng.CancelQueue(cmd.Context(), id); err != nil {
				return a.out.Fail(err, nil)
			}
			names, err := a.eng.DisplayNames(cmd.Context(), id)
			if err != nil {
				return a.out.Fail(err, nil)
			}
			name := ladderpresenter.Names(names).Of(id)
			return a.out.Print(map[string]string{"id": id, "left": "queue"},
				func(f *ladderpresenter.Formatter) string { return f.QueueLeft(name) })
		},
	}
}

func (a *app) newQueueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "List waiting players in join order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := a.eng.QueueStatus(cmd.Context())
			if err != nil {
				return a.out.Fail(err, nil)
			}
			if entries == nil {
				entries = []engine.QueueEntry{}
			}
			return a.out.Print(entries, func(f *ladderpresenter.Formatter) string { return f.Queue(entries) })
		},
	}
}

func (a *app) newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report <reporter-id> <opponent-id> <win|lose>",
		Short: "File a result claim on behalf of reporter",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			reporter, opponent := args[0], args[1]
			r, err := a.eng.Report(cmd.Context(), reporter, opponent, args[2])
			names, nerr := a.eng.DisplayNames(cmd.Context(), reporter, opponent)
			if nerr != nil {
				names = nil
			}
			if err != nil {
				return a.out.Fail(err, names)
			}
			return a.out.Print(r, func(f *ladderpresenter.Formatter) string { return f.Report(r, names) })
		},
	}
}

func (a *app) newCancelReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel-report <player-id>",
		Short: "Withdraw every pending report filed by a player",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.eng.CancelReport(cmd.Context(), args[0])
			if err != nil {
				return a.out.Fail(err, nil)
			}
			return a.out.Print(map[string]int{"cancelled": n},
				func(f *ladderpresenter.Formatter) string { return f.ReportsCancelled(n) })
		},
	}
}

func (a *app) newPendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending <player-id>",
		Short: "Show reports filed by and awaiting a player",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.eng.PendingReports(cmd.Context(), args[0])
			if err != nil {
				return a.out.Fail(err, nil)
			}
			var ids []string
			for _, p := range v.Submitted {
				ids = append(ids, p.Opponent)
			}
			for _, p := range v.Awaiting {
				ids = append(ids, p.Reporter)
			}
			names, err := a.eng.DisplayNames(cmd.Context(), ids...)
			if err != nil {
				return a.out.Fail(err, nil)
			}
			return a.out.Print(v, func(f *ladderpresenter.Formatter) string { return f.Pending(v, names) })
		},
	}
}

func (a *app) newLeaderboardCmd() *cobra.Command {
	var n int
	var cardPath string

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the top players",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			players, err := a.eng.Leaderboard(cmd.Context(), n)
			if err != nil {
				return a.out.Fail(err, nil)
			}
			if cardPath != "" {
				if err := writeCard(cardPath, players); err != nil {
					return err
				}
			}
			if players == nil {
				players = []*ladder.Player{}
			}
			return a.out.Print(players, func(f *ladderpresenter.Formatter) string { return f.Leaderboard(players) })
		},
	}
	cmd.Flags().IntVarP(&n, "top", "n", engine.DefaultLeaderboardSize, "Number of players")
	cmd.Flags().StringVar(&cardPath, "card", "", "Also write the leaderboard card PNG to this path")
	return cmd
}

func (a *app) newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <player-id>",
		Short: "List a player's recent confirmed matches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			matches, err := a.eng.History(cmd.Context(), id, limit)
			if err != nil {
				return a.out.Fail(err, nil)
			}
			if matches == nil {
				matches = []history.Match{}
			}
			p, err := a.eng.Profile(cmd.Context(), id)
			if err != nil {
				return a.out.Fail(err, nil)
			}
			return a.out.Print(matches, func(f *ladderpresenter.Formatter) string { return f.History(p.Name(), id, matches) })
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", history.DefaultLimit, "Number of matches")
	return cmd
}

func writeCard(path string, players []*ladder.Player) error {
	png, err := ladderpresenter.RenderLeaderboardCard(fmt.Sprintf("Leaderboard · top %d", len(players)), players)
	if err != nil {
		return err
	}
	return os.WriteFile(path, png, 0o644)
}
