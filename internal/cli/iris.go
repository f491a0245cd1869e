package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/park285/Cheese-Ladder-bot/internal/adapter/ladderpresenter"
	"github.com/park285/Cheese-Ladder-bot/internal/config"
	"github.com/park285/Cheese-Ladder-bot/internal/irisfast"
	"github.com/park285/Cheese-Ladder-bot/internal/obslog"
)

// irisReport is the iris-check result.
type irisReport struct {
	BaseURL   string           `json:"base_url"`
	Config    *irisfast.Config `json:"config,omitempty"`
	ConfigErr string           `json:"config_error,omitempty"`
	WSURL     string           `json:"ws_url,omitempty"`
	WSState   string           `json:"ws_state,omitempty"`
	WSErr     string           `json:"ws_error,omitempty"`
	Messages  int              `json:"messages"`
}

func (r *irisReport) text() string {
	s := fmt.Sprintf("iris %s\n", r.BaseURL)
	if r.Config != nil {
		s += fmt.Sprintf("/config ok: port=%d polling=%d rate=%d endpoint=%s\n",
			r.Config.Port, r.Config.PollingSpeed, r.Config.MessageRate, r.Config.WebserverEndpoint)
	} else {
		s += "/config error: " + r.ConfigErr + "\n"
	}
	switch {
	case r.WSURL == "":
		s += "ws: skipped (IRIS_WS_URL not set)"
	case r.WSErr != "":
		s += "ws: " + r.WSErr
	default:
		s += fmt.Sprintf("ws: %s, %d message(s) seen", r.WSState, r.Messages)
	}
	return s
}

func newIrisCheckCmd(a *app) *cobra.Command {
	iris := config.LoadIris()
	var watch time.Duration

	cmd := &cobra.Command{
		Use:         "iris-check",
		Short:       "Probe the Iris HTTP API and WebSocket",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"engine": "false"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if iris.IrisBaseURL == "" {
				return errors.New("IRIS_BASE_URL or --base-url is required")
			}
			rep := probeIris(cmd.Context(), iris, watch, func(msg *irisfast.Message) {
				if !a.out.JSON() {
					fmt.Fprintf(cmd.OutOrStdout(), "ws msg room=%s from=%s text=%q\n", msg.Room, msg.SenderName(), msg.Msg)
				}
			})
			if err := a.out.Print(rep, func(*ladderpresenter.Formatter) string { return rep.text() }); err != nil {
				return err
			}
			if rep.Config == nil {
				return errors.New("iris /config failed")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&iris.IrisBaseURL, "base-url", iris.IrisBaseURL, "Iris HTTP URL (env: IRIS_BASE_URL)")
	cmd.Flags().StringVar(&iris.IrisWSURL, "ws-url", iris.IrisWSURL, "Iris WebSocket URL (env: IRIS_WS_URL)")
	cmd.Flags().DurationVar(&watch, "watch", 10*time.Second, "How long to watch the WebSocket")
	return cmd
}

func probeIris(ctx context.Context, cfg *config.AppConfig, watch time.Duration, onMsg irisfast.MessageCallback) *irisReport {
	rep := &irisReport{BaseURL: cfg.IrisBaseURL, WSURL: cfg.IrisWSURL}

	client := irisfast.NewClient(cfg.IrisBaseURL,
		irisfast.WithHeaderProvider(cfg.Headers),
		irisfast.WithTimeout(8*time.Second),
		irisfast.WithRetry(1),
	)
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	ic, err := client.GetConfig(cctx)
	cancel()
	if err != nil {
		rep.ConfigErr = err.Error()
	} else {
		rep.Config = ic
	}

	if cfg.IrisWSURL == "" {
		return rep
	}
	ws := irisfast.NewWebSocket(cfg.IrisWSURL, 0, obslog.L())
	ws.SetHeaderProvider(cfg.Headers)
	seen := make(chan struct{}, 64)
	ws.OnMessage(func(msg *irisfast.Message) {
		if onMsg != nil {
			onMsg(msg)
		}
		select {
		case seen <- struct{}{}:
		default:
		}
	})

	wctx, wcancel := context.WithTimeout(ctx, 10*time.Second)
	err = ws.Connect(wctx)
	wcancel()
	if err != nil {
		rep.WSErr = err.Error()
		return rep
	}

	t := time.NewTimer(watch)
	defer t.Stop()
	for done := false; !done; {
		select {
		case <-seen:
			rep.Messages++
		case <-t.C:
			done = true
		case <-ctx.Done():
			done = true
		}
	}
	rep.WSState = ws.State().String()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCancel()
	_ = ws.Close(closeCtx)
	return rep
}
