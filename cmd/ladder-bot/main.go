package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/park285/Cheese-Ladder-bot/internal/adapter/ladderpresenter"
	"github.com/park285/Cheese-Ladder-bot/internal/bot"
	appcfg "github.com/park285/Cheese-Ladder-bot/internal/config"
	"github.com/park285/Cheese-Ladder-bot/internal/engine"
	"github.com/park285/Cheese-Ladder-bot/internal/irisfast"
	"github.com/park285/Cheese-Ladder-bot/internal/msgcat"
	"github.com/park285/Cheese-Ladder-bot/internal/obslog"
)

// maxInFlight bounds concurrent command handlers. The engine serializes
// state changes anyway; this only caps reply fan-out.
const maxInFlight = 16

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	cfg, err := appcfg.Load()
	if err != nil {
		logger.Fatal("config_error", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, closeStore, err := engine.Open(ctx, cfg.Store, logger)
	if err != nil {
		logger.Fatal("store_init_error", zap.String("backend", cfg.Store.Backend), zap.Error(err))
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("store_close_error", zap.Error(err))
		}
	}()

	cat, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		logger.Fatal("messages_init_error", zap.Error(err))
	}

	client := irisfast.NewClient(cfg.IrisBaseURL, irisfast.WithHeaderProvider(cfg.Headers))
	ws := irisfast.NewWebSocket(cfg.IrisWSURL, 5, logger)
	ws.SetHeaderProvider(cfg.Headers)
	ws.OnStateChange(func(state irisfast.WebSocketState) {
		logger.Info("ws_state", zap.Stringer("state", state))
	})

	egress, err := irisfast.NewEgress(cfg.EgressMode, cfg.DryRun, client, ws, logger)
	if err != nil {
		logger.Fatal("egress_init_error", zap.Error(err))
	}
	presenter := ladderpresenter.NewPresenter(
		func(room, message string) error { return egress.SendText(ctx, room, message) },
		func(room, imageBase64 string) error { return egress.SendImage(ctx, room, imageBase64) },
	)
	formatter := ladderpresenter.NewFormatter(cat, bot.StaticPrefix(cfg.BotPrefix))
	b := bot.New(eng, formatter, presenter, bot.Config{
		Prefix:           cfg.BotPrefix,
		AllowedRooms:     cfg.AllowedRooms,
		LeaderboardSize:  cfg.LeaderboardSize,
		LeaderboardImage: cfg.LeaderboardImage,
	}, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInFlight)
	ws.OnMessage(func(msg *irisfast.Message) {
		if !b.Accepts(msg) {
			return
		}
		// Go blocks once maxInFlight handlers run, which pushes back on the reader.
		g.Go(func() error {
			cmdCtx, cancel := context.WithTimeout(gctx, 30*time.Second)
			defer cancel()
			if err := b.Handle(cmdCtx, msg); err != nil {
				logger.Warn("reply_failed", zap.String("room", msg.Room), zap.Error(err))
			}
			return nil
		})
	})

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = ws.Connect(connectCtx)
	cancel()
	if err != nil {
		logger.Fatal("ws_connect_error", zap.String("url", cfg.IrisWSURL), zap.Error(err))
	}
	logger.Info("ladder_bot_started",
		zap.String("prefix", cfg.BotPrefix),
		zap.String("store", cfg.Store.Backend),
		zap.String("egress", cfg.EgressMode),
		zap.Bool("dry_run", cfg.DryRun))

	<-ctx.Done()
	logger.Info("ladder_bot_stopping")

	closeCtx, cancelClose := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelClose()
	if err := ws.Close(closeCtx); err != nil {
		logger.Warn("ws_close_error", zap.Error(err))
	}
	_ = g.Wait()
}
