package ladderpresenter

import (
	"encoding/base64"
	"strings"
)

// Presenter delivers text and optional PNG images without knowing the transport.
type Presenter struct {
	sendMessage func(room, message string) error
	sendImage   func(room, imageBase64 string) error
}

func NewPresenter(sendMessage func(room, message string) error, sendImage func(room, imageBase64 string) error) *Presenter {
	return &Presenter{sendMessage: sendMessage, sendImage: sendImage}
}

func (p *Presenter) Text(room, message string) error {
	if p == nil || p.sendMessage == nil || strings.TrimSpace(message) == "" {
		return nil
	}
	return p.sendMessage(room, message)
}

// WithImage sends message first, then png when both a sender and bytes exist.
func (p *Presenter) WithImage(room, message string, png []byte) error {
	if p == nil {
		return nil
	}
	if err := p.Text(room, message); err != nil {
		return err
	}
	if len(png) == 0 || p.sendImage == nil {
		return nil
	}
	return p.sendImage(room, base64.StdEncoding.EncodeToString(png))
}
