package logic

import (
	"errors"

	"github.com/cory-johannsen/retroarcade/internal/game/player"
)

// Base tracks turn order, pause and outcome for two-player games.
// Concrete games embed it and supply the board.
type Base struct {
	players [2]player.Handle
	current int
	over    bool
	winner  player.Handle
	paused  bool
}

// NewBase returns a Base for a and b; a moves first.
//
// Precondition: a and b must be non-nil and distinct.
func NewBase(a, b player.Handle) (Base, error) {
	if a == nil || b == nil {
		return Base{}, errors.New("both players are required")
	}
	if a == b {
		return Base{}, errors.New("players must be distinct")
	}
	return Base{players: [2]player.Handle{a, b}}, nil
}

// ResetTurns restores the opening position of turn tracking.
func (b *Base) ResetTurns() {
	b.current = 0
	b.over = false
	b.winner = nil
	b.paused = false
}

// CurrentPlayer returns the player to move.
func (b *Base) CurrentPlayer() player.Handle { return b.players[b.current] }

// IsOver reports whether the game has ended.
func (b *Base) IsOver() bool { return b.over }

// Winner returns the winner, or nil for a draw or an unfinished game.
func (b *Base) Winner() player.Handle { return b.winner }

// Pause blocks moves until Resume.
func (b *Base) Pause() { b.paused = true }

// Resume re-enables moves.
func (b *Base) Resume() { b.paused = false }

// Players returns both participants in turn order.
func (b *Base) Players() [2]player.Handle { return b.players }

// Seat returns 0 or 1 for a participant, -1 otherwise.
func (b *Base) Seat(p player.Handle) int {
	for i, q := range b.players {
		if q == p {
			return i
		}
	}
	return -1
}

// CanMove reports whether p may move now.
func (b *Base) CanMove(p player.Handle) bool {
	return !b.over && !b.paused && p == b.players[b.current]
}

// SwitchTurn hands the move to the other player.
func (b *Base) SwitchTurn() { b.current = 1 - b.current }

// End finishes the game; winner nil records a draw.
func (b *Base) End(winner player.Handle) {
	b.over = true
	b.winner = winner
}
