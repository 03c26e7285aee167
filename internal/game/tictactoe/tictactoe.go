// Package tictactoe implements the tic-tac-toe rules collaborator.
package tictactoe

import (
	"fmt"
	"math/rand/v2"

	"github.com/cory-johannsen/retroarcade/internal/game/logic"
	"github.com/cory-johannsen/retroarcade/internal/game/message"
	"github.com/cory-johannsen/retroarcade/internal/game/player"
)

// Size is the board edge length.
const Size = 3

// Piece marks.
const (
	Empty = ""
	X     = "X"
	O     = "O"
)

// Game is a 3x3 tic-tac-toe match. The first player plays X.
type Game struct {
	logic.Base
	board [Size][Size]string
	moves int
}

// New creates a Game for a and b.
func New(a, b player.Handle) (logic.Logic, error) {
	base, err := logic.NewBase(a, b)
	if err != nil {
		return nil, fmt.Errorf("tictactoe: %w", err)
	}
	return &Game{Base: base}, nil
}

// Definition registers tic-tac-toe with a logic.Registry.
func Definition() logic.Definition {
	return logic.Definition{
		Kind: logic.TicTacToe,
		New:  New,
		SampleMove: func(r *rand.Rand) message.Move {
			return message.Move{Coords: []int{r.IntN(Size), r.IntN(Size)}}
		},
	}
}

// Initialize clears the board and gives X the first move.
func (g *Game) Initialize() {
	g.ResetTurns()
	g.board = [Size][Size]string{}
	g.moves = 0
}

// Reset is Initialize with the same players.
func (g *Game) Reset() { g.Initialize() }

// Piece returns X or O for a participant, Empty otherwise.
func (g *Game) Piece(p player.Handle) string {
	switch g.Seat(p) {
	case 0:
		return X
	case 1:
		return O
	default:
		return Empty
	}
}

// ApplyMove places the mover's piece at [row, col].
func (g *Game) ApplyMove(p player.Handle, move message.Move) (bool, error) {
	if len(move.Coords) != 2 {
		return false, fmt.Errorf("%w: want [row, col], got %d coordinates", logic.ErrMalformedMove, len(move.Coords))
	}
	row, col := move.Coords[0], move.Coords[1]
	if row < 0 || row >= Size || col < 0 || col >= Size {
		return false, fmt.Errorf("%w: cell (%d, %d) is off the board", logic.ErrMalformedMove, row, col)
	}
	if !g.CanMove(p) || g.board[row][col] != Empty {
		return false, nil
	}

	piece := g.Piece(p)
	g.board[row][col] = piece
	g.moves++

	switch {
	case g.wins(piece):
		g.End(p)
	case g.moves == Size*Size:
		g.End(nil)
	default:
		g.SwitchTurn()
	}
	return true, nil
}

func (g *Game) wins(piece string) bool {
	b := &g.board
	for i := 0; i < Size; i++ {
		if b[i][0] == piece && b[i][1] == piece && b[i][2] == piece {
			return true
		}
		if b[0][i] == piece && b[1][i] == piece && b[2][i] == piece {
			return true
		}
	}
	if b[0][0] == piece && b[1][1] == piece && b[2][2] == piece {
		return true
	}
	return b[0][2] == piece && b[1][1] == piece && b[2][0] == piece
}

// State returns a copy of the board as rows of marks.
func (g *Game) State() any {
	out := make([][]string, Size)
	for i := range g.board {
		out[i] = append([]string(nil), g.board[i][:]...)
	}
	return out
}
