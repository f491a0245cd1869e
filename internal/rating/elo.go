package rating

import "math"

const (
	// DefaultRating is assigned to every newly registered player.
	DefaultRating = 1000
	// KFactor scales the rating movement of a single confirmed match.
	KFactor = 32
)

// Standing is the mutable competitive part of a player record.
type Standing struct {
	Rating int `json:"rating"`
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
}

// NewStanding returns the standing of a player who has not played yet.
func NewStanding() Standing { return Standing{Rating: DefaultRating} }

// Change describes one applied result.
type Change struct {
	Delta        int `json:"delta"`
	WinnerBefore int `json:"winner_before"`
	LoserBefore  int `json:"loser_before"`
	WinnerAfter  int `json:"winner_after"`
	LoserAfter   int `json:"loser_after"`
}

// ExpectedScore returns the chance of a player rated a beating one rated b.
func ExpectedScore(a, b int) float64 {
	return 1.0 / (1.0 + math.Pow(10, float64(b-a)/400.0))
}

// Delta is the number of points moved from loser to winner.
// Both sides move by the same amount, taken from the winner's expected score.
func Delta(winner, loser int) int {
	return int(math.RoundToEven(KFactor * (1 - ExpectedScore(winner, loser))))
}

// Apply moves Delta points from loser to winner and bumps the counters.
func Apply(winner, loser *Standing) Change {
	c := Change{WinnerBefore: winner.Rating, LoserBefore: loser.Rating}
	c.Delta = Delta(winner.Rating, loser.Rating)
	winner.Rating += c.Delta
	loser.Rating -= c.Delta
	winner.Wins++
	loser.Losses++
	c.WinnerAfter = winner.Rating
	c.LoserAfter = loser.Rating
	return c
}
