package irisfast

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Egress sends replies back to a room.
type Egress interface {
	SendText(ctx context.Context, room, message string) error
	SendImage(ctx context.Context, room, imageBase64 string) error
}

const (
	ModeHTTP = "http"
	ModeWS   = "ws"
	ModeAuto = "auto"
)

// NewEgress picks the reply transport. Auto prefers the socket while it is
// connected and falls back to HTTP once per failed frame. Dry-run logs the
// reply instead of sending it.
func NewEgress(mode string, dryrun bool, c *Client, ws *WebSocket, logger *zap.Logger) (Egress, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dryrun {
		return &dryrunEgress{logger: logger}, nil
	}
	switch mode {
	case ModeHTTP, "":
		if c == nil {
			return nil, errors.New("http egress needs a client")
		}
		return &httpEgress{c: c}, nil
	case ModeWS:
		if ws == nil {
			return nil, errors.New("ws egress needs a websocket")
		}
		return &wsEgress{ws: ws}, nil
	case ModeAuto:
		if c == nil || ws == nil {
			return nil, errors.New("auto egress needs a client and a websocket")
		}
		return &autoEgress{ws: &wsEgress{ws: ws}, http: &httpEgress{c: c}, logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown egress mode %q", mode)
	}
}

type httpEgress struct{ c *Client }

func (h *httpEgress) SendText(ctx context.Context, room, message string) error {
	return h.c.SendMessage(ctx, room, message)
}

func (h *httpEgress) SendImage(ctx context.Context, room, imageBase64 string) error {
	return h.c.SendImage(ctx, room, imageBase64)
}

type wsEgress struct{ ws *WebSocket }

func (w *wsEgress) SendText(ctx context.Context, room, message string) error {
	return w.ws.WriteJSON(ctx, ReplyRequest{Type: "text", Room: room, Data: message})
}

func (w *wsEgress) SendImage(ctx context.Context, room, imageBase64 string) error {
	return w.ws.WriteJSON(ctx, ReplyRequest{Type: "image", Room: room, Data: imageBase64})
}

type autoEgress struct {
	ws     *wsEgress
	http   *httpEgress
	logger *zap.Logger
}

func (a *autoEgress) SendText(ctx context.Context, room, message string) error {
	if a.ws.ws.State() == WSStateConnected {
		err := a.ws.SendText(ctx, room, message)
		if err == nil {
			return nil
		}
		a.logger.Warn("egress_fallback", zap.String("type", "text"), zap.String("room", room), zap.Error(err))
	}
	return a.http.SendText(ctx, room, message)
}

func (a *autoEgress) SendImage(ctx context.Context, room, imageBase64 string) error {
	if a.ws.ws.State() == WSStateConnected {
		err := a.ws.SendImage(ctx, room, imageBase64)
		if err == nil {
			return nil
		}
		a.logger.Warn("egress_fallback", zap.String("type", "image"), zap.String("room", room), zap.Error(err))
	}
	return a.http.SendImage(ctx, room, imageBase64)
}

type dryrunEgress struct{ logger *zap.Logger }

func (d *dryrunEgress) SendText(_ context.Context, room, message string) error {
	d.logger.Info("egress_dryrun", zap.String("type", "text"), zap.String("room", room), zap.String("message", message))
	return nil
}

func (d *dryrunEgress) SendImage(_ context.Context, room, imageBase64 string) error {
	d.logger.Info("egress_dryrun", zap.String("type", "image"), zap.String("room", room), zap.Int("bytes", len(imageBase64)))
	return nil
}
