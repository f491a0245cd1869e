// Package bot routes prefixed chat commands to the ladder engine and sends
// the rendered replies back to the room.
package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/Cheese-Ladder-bot/internal/adapter/ladderpresenter"
	"github.com/park285/Cheese-Ladder-bot/internal/engine"
	"github.com/park285/Cheese-Ladder-bot/internal/irisfast"
	"github.com/park285/Cheese-Ladder-bot/internal/ladder"
)

// Sender is the reply side; ladderpresenter.Presenter satisfies it.
type Sender interface {
	Text(room, message string) error
	WithImage(room, message string, png []byte) error
}

type Config struct {
	Prefix           string
	AllowedRooms     []string
	LeaderboardSize  int
	LeaderboardImage bool
}

// StaticPrefix is a fixed command prefix for the formatter.
type StaticPrefix string

func (p StaticPrefix) Prefix() string { return string(p) }

type Bot struct {
	eng    *engine.Engine
	fmt    *ladderpresenter.Formatter
	out    Sender
	cfg    Config
	logger *zap.Logger
	rooms  map[string]struct{}
}

func New(eng *engine.Engine, f *ladderpresenter.Formatter, out Sender, cfg Config, logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LeaderboardSize <= 0 {
		cfg.LeaderboardSize = engine.DefaultLeaderboardSize
	}
	b := &Bot{eng: eng, fmt: f, out: out, cfg: cfg, logger: logger}
	if len(cfg.AllowedRooms) > 0 {
		b.rooms = make(map[string]struct{}, len(cfg.AllowedRooms))
		for _, r := range cfg.AllowedRooms {
			b.rooms[r] = struct{}{}
		}
	}
	return b
}

// Accepts reports whether msg is a command for this bot in an allowed room.
func (b *Bot) Accepts(msg *irisfast.Message) bool {
	if msg == nil || strings.TrimSpace(msg.Msg) == "" {
		return false
	}
	if b.rooms != nil {
		if _, ok := b.rooms[msg.Room]; !ok {
			return false
		}
	}
	return strings.HasPrefix(strings.TrimSpace(msg.Msg), b.cfg.Prefix)
}

// command is one parsed chat line.
type command struct {
	room   string
	userID string
	sender string
	name   string
	args   []string
}

// Handle runs one message. The returned error is a reply delivery failure;
// ladder errors are answered in the room.
func (b *Bot) Handle(ctx context.Context, msg *irisfast.Message) error {
	if !b.Accepts(msg) {
		return nil
	}
	raw := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(msg.Msg), b.cfg.Prefix))
	parts := strings.Fields(raw)
	if len(parts) == 0 {
		return b.out.Text(msg.Room, b.fmt.Help())
	}
	cmd := command{
		room:   msg.Room,
		userID: msg.UserID(),
		sender: msg.SenderName(),
		name:   strings.ToLower(parts[0]),
		args:   parts[1:],
	}
	if cmd.name == "help" {
		return b.out.Text(cmd.room, b.fmt.Help())
	}
	h, ok := b.handlers()[cmd.name]
	if !ok {
		return b.out.Text(cmd.room, b.fmt.UnknownCommand())
	}
	if cmd.userID == "" {
		return b.out.Text(cmd.room, b.fmt.MissingUser())
	}
	b.logger.Debug("bot_command", zap.String("cmd", cmd.name), zap.String("room", cmd.room), zap.String("user_id", cmd.userID))
	return h(ctx, cmd)
}

type handler func(ctx context.Context, c command) error

func (b *Bot) handlers() map[string]handler {
	return map[string]handler{
		"register":     b.register,
		"unregister":   b.unregister,
		"profile":      b.profile,
		"matchmake":    b.matchmake,
		"cancelmatch":  b.cancelMatch,
		"queue":        b.queue,
		"report":       b.report,
		"cancelreport": b.cancelReport,
		"pending":      b.pending,
		"leaderboard":  b.leaderboard,
		"history":      b.history,
	}
}

// userErrors are answered in the room without an error log.
var userErrors = []error{
	ladder.ErrNotRegistered, ladder.ErrAlreadyRegistered, ladder.ErrAlreadyQueued, ladder.ErrNotQueued,
	ladder.ErrSelfReport, ladder.ErrInvalidOutcome, ladder.ErrDuplicateReport, ladder.ErrReportConflict,
	ladder.ErrNoPendingReport, ladder.ErrInvalidPlayer,
}

func (b *Bot) fail(c command, err error, names ladderpresenter.Names) error {
	expected := false
	for _, ue := range userErrors {
		if errors.Is(err, ue) {
			expected = true
			break
		}
	}
	if !expected {
		b.logger.Error("bot_command_failed", zap.String("cmd", c.name), zap.String("user_id", c.userID), zap.Error(err))
	}
	return b.out.Text(c.room, b.fmt.Error(err, names))
}

func (b *Bot) register(ctx context.Context, c command) error {
	if len(c.args) == 0 {
		return b.out.Text(c.room, b.fmt.Usage("register"))
	}
	handle := sanitizeUserArg(strings.Join(c.args, " "))
	display := c.sender
	if display == "" {
		display = handle
	}
	p, err := b.eng.Register(ctx, c.userID, display, handle)
	if err != nil {
		return b.fail(c, err, nil)
	}
	return b.out.Text(c.room, b.fmt.Registered(p))
}

func (b *Bot) unregister(ctx context.Context, c command) error {
	r, err := b.eng.Unregister(ctx, c.userID)
	if err != nil {
		return b.fail(c, err, nil)
	}
	return b.out.Text(c.room, b.fmt.Unregistered(r))
}

func (b *Bot) profile(ctx context.Context, c command) error {
	id := c.userID
	if len(c.args) > 0 {
		ref := sanitizeUserArg(strings.Join(c.args, " "))
		p, err := b.eng.Resolve(ctx, ref)
		if errors.Is(err, ladder.ErrNotRegistered) {
			return b.out.Text(c.room, b.fmt.UnknownPlayer(ref))
		}
		if err != nil {
			return b.fail(c, err, nil)
		}
		id = p.ID
	}
	p, err := b.eng.Profile(ctx, id)
	if err != nil {
		return b.fail(c, err, nil)
	}
	return b.out.Text(c.room, b.fmt.Profile(p))
}

func (b *Bot) matchmake(ctx context.Context, c command) error {
	r, err := b.eng.Matchmake(ctx, c.userID)
	if err != nil {
		return b.fail(c, err, nil)
	}
	return b.out.Text(c.room, b.fmt.Matchmake(r))
}

func (b *Bot) cancelMatch(ctx context.Context, c command) error {
	if err := b.eng.CancelQueue(ctx, c.userID); err != nil {
		return b.fail(c, err, nil)
	}
	return b.out.Text(c.room, b.fmt.QueueLeft(b.nameOf(ctx, c)))
}

func (b *Bot) queue(ctx context.Context, c command) error {
	entries, err := b.eng.QueueStatus(ctx)
	if err != nil {
		return b.fail(c, err, nil)
	}
	return b.out.Text(c.room, b.fmt.Queue(entries))
}

// report takes "win|lose @opponent"; the opponent may be an id, handle or
// display name.
func (b *Bot) report(ctx context.Context, c command) error {
	if len(c.args) < 2 {
		return b.out.Text(c.room, b.fmt.Usage("report"))
	}
	outcome := c.args[0]
	ref := sanitizeUserArg(strings.Join(c.args[1:], " "))
	opp, err := b.eng.Resolve(ctx, ref)
	if errors.Is(err, ladder.ErrNotRegistered) {
		return b.out.Text(c.room, b.fmt.UnknownPlayer(ref))
	}
	if err != nil {
		return b.fail(c, err, nil)
	}

	r, err := b.eng.Report(ctx, c.userID, opp.ID, outcome)
	names := ladderpresenter.Names{opp.ID: opp.Name()}
	if own, nerr := b.eng.DisplayNames(ctx, c.userID); nerr == nil {
		for k, v := range own {
			names[k] = v
		}
	}
	if err != nil {
		return b.fail(c, err, names)
	}
	return b.out.Text(c.room, b.fmt.Report(r, names))
}

func (b *Bot) cancelReport(ctx context.Context, c command) error {
	n, err := b.eng.CancelReport(ctx, c.userID)
	if err != nil {
		return b.fail(c, err, nil)
	}
	return b.out.Text(c.room, b.fmt.ReportsCancelled(n))
}

func (b *Bot) pending(ctx context.Context, c command) error {
	v, err := b.eng.PendingReports(ctx, c.userID)
	if err != nil {
		return b.fail(c, err, nil)
	}
	var ids []string
	for _, p := range v.Submitted {
		ids = append(ids, p.Opponent)
	}
	for _, p := range v.Awaiting {
		ids = append(ids, p.Reporter)
	}
	names, err := b.eng.DisplayNames(ctx, ids...)
	if err != nil {
		return b.fail(c, err, nil)
	}
	return b.out.Text(c.room, b.fmt.Pending(v, names))
}

func (b *Bot) leaderboard(ctx context.Context, c command) error {
	n := b.cfg.LeaderboardSize
	if len(c.args) > 0 {
		if v, err := strconv.Atoi(c.args[0]); err == nil && v > 0 {
			n = v
		}
	}
	players, err := b.eng.Leaderboard(ctx, n)
	if err != nil {
		return b.fail(c, err, nil)
	}
	text := b.fmt.Leaderboard(players)
	if !b.cfg.LeaderboardImage || len(players) == 0 {
		return b.out.Text(c.room, text)
	}
	png, err := ladderpresenter.RenderLeaderboardCard("Leaderboard · top "+strconv.Itoa(len(players)), players)
	if err != nil {
		b.logger.Warn("leaderboard_card_failed", zap.Error(err))
		return b.out.Text(c.room, text)
	}
	return b.out.WithImage(c.room, text, png)
}

func (b *Bot) history(ctx context.Context, c command) error {
	limit := 0
	if len(c.args) > 0 {
		if v, err := strconv.Atoi(c.args[0]); err == nil && v > 0 {
			limit = v
		}
	}
	matches, err := b.eng.History(ctx, c.userID, limit)
	if err != nil {
		return b.fail(c, err, nil)
	}
	return b.out.Text(c.room, b.fmt.History(b.nameOf(ctx, c), c.userID, matches))
}

// nameOf prefers the registered name over the chat sender name.
func (b *Bot) nameOf(ctx context.Context, c command) string {
	if names, err := b.eng.DisplayNames(ctx, c.userID); err == nil {
		if n, ok := names[c.userID]; ok {
			return n
		}
	}
	if c.sender != "" {
		return c.sender
	}
	return c.userID
}

func sanitizeUserArg(s string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "@"))
}
