package ladder

import (
	"fmt"
	"strings"
	"time"

	"github.com/park285/Cheese-Ladder-bot/internal/rating"
)

// Player is one registered ladder participant.
type Player struct {
	ID           string    `json:"id"`
	DisplayName  string    `json:"display_name"`
	Handle       string    `json:"handle"`
	Seq          int64     `json:"seq"`
	RegisteredAt time.Time `json:"registered_at"`
	rating.Standing
}

// NewPlayer builds a fresh record at the default rating.
func NewPlayer(id, displayName, handle string, seq int64, now time.Time) (*Player, error) {
	p := &Player{
		ID:           strings.TrimSpace(id),
		DisplayName:  strings.TrimSpace(displayName),
		Handle:       strings.TrimSpace(handle),
		Seq:          seq,
		RegisteredAt: now,
		Standing:     rating.NewStanding(),
	}
	if p.DisplayName == "" {
		p.DisplayName = p.Handle
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Player) validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidPlayer)
	}
	if p.Wins < 0 || p.Losses < 0 {
		return fmt.Errorf("%w: negative record for %s", ErrInvalidPlayer, p.ID)
	}
	if p.Seq < 0 {
		return fmt.Errorf("%w: negative seq for %s", ErrInvalidPlayer, p.ID)
	}
	return nil
}

// Name is what gets shown to other players.
func (p *Player) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	if p.Handle != "" {
		return p.Handle
	}
	return p.ID
}

// Games is the number of confirmed matches played.
func (p *Player) Games() int { return p.Wins + p.Losses }

func (p *Player) clone() *Player {
	c := *p
	return &c
}
