// Package cli is the ladderctl admin tool: every ladder operation against the
// configured store, without the chat transport.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/park285/Cheese-Ladder-bot/internal/config"
	"github.com/park285/Cheese-Ladder-bot/internal/engine"
	"github.com/park285/Cheese-Ladder-bot/internal/msgcat"
	"github.com/park285/Cheese-Ladder-bot/internal/obslog"
)

// Opener builds the engine a command runs against, plus its closer.
type Opener func(ctx context.Context) (*engine.Engine, func() error, error)

// OpenFromEnv opens the store named by STORE_BACKEND and friends.
func OpenFromEnv(ctx context.Context) (*engine.Engine, func() error, error) {
	opts, err := config.LoadStore()
	if err != nil {
		return nil, nil, err
	}
	logCfg := obslog.ConfigFromEnv()
	logCfg.Stderr = true
	if err := obslog.Init(logCfg); err != nil {
		return nil, nil, err
	}
	return engine.Open(ctx, *opts, obslog.L())
}

type app struct {
	open    Opener
	output  string
	eng     *engine.Engine
	closeFn func() error
	out     *Output
}

// NewRootCmd creates the ladderctl command tree. A nil opener means OpenFromEnv.
func NewRootCmd(open Opener) *cobra.Command {
	cmd, _ := newRoot(open)
	return cmd
}

// close releases the engine. Cobra skips PersistentPostRunE when RunE fails,
// so Execute calls this too.
func (a *app) close() error {
	if a.closeFn == nil {
		return nil
	}
	err := a.closeFn()
	a.closeFn = nil
	return err
}

func newRoot(open Opener) (*cobra.Command, *app) {
	if open == nil {
		open = OpenFromEnv
	}
	a := &app{open: open, output: "text"}

	rootCmd := &cobra.Command{
		Use:   "ladderctl",
		Short: "Admin tool for the ladder bot",
		Long: `ladderctl runs ladder operations directly against the configured store.

It reads the same environment as the bot (STORE_BACKEND, STATE_FILE, REDIS_URL,
DATABASE_URL, SQLITE_PATH, S3_BUCKET) and is safe to use while the bot runs.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.output != "text" && a.output != "json" {
				return fmt.Errorf("invalid output format %q (text, json)", a.output)
			}
			cat, err := msgcat.New(os.Getenv("MESSAGES_DIR"))
			if err != nil {
				return err
			}
			a.out = NewOutput(cmd.OutOrStdout(), a.output, cat)
			if cmd.Annotations["engine"] != "false" {
				eng, closeFn, err := a.open(cmd.Context())
				if err != nil {
					return err
				}
				a.eng, a.closeFn = eng, closeFn
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&a.output, "output", "o", a.output, "Output format: text, json")

	rootCmd.AddCommand(
		a.newRegisterCmd(),
		a.newUnregisterCmd(),
		a.newProfileCmd(),
		a.newMatchmakeCmd(),
		a.newCancelQueueCmd(),
		a.newQueueCmd(),
		a.newReportCmd(),
		a.newCancelReportCmd(),
		a.newPendingCmd(),
		a.newLeaderboardCmd(),
		a.newHistoryCmd(),
		newIrisCheckCmd(a),
	)
	return rootCmd, a
}

// Execute runs the root command.
func Execute() {
	rootCmd, a := newRoot(nil)
	err := rootCmd.Execute()
	if cerr := a.close(); cerr != nil {
		fmt.Fprintln(os.Stderr, "close store:", cerr)
	}
	// the engine logger may hold buffered entries
	_ = obslog.L().Sync()
	if err != nil {
		os.Exit(1)
	}
}
