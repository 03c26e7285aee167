// Package connectfour implements the connect-four rules collaborator.
package connectfour

import (
	"fmt"
	"math/rand/v2"

	"github.com/cory-johannsen/retroarcade/internal/game/logic"
	"github.com/cory-johannsen/retroarcade/internal/game/message"
	"github.com/cory-johannsen/retroarcade/internal/game/player"
)

// Board dimensions.
const (
	Rows = 6
	Cols = 7
)

// Disc colours.
const (
	Empty  = ""
	Red    = "R"
	Yellow = "Y"
)

// Game is a 6x7 connect-four match. The first player drops red discs.
// Row 0 is the top of the board.
type Game struct {
	logic.Base
	board [Rows][Cols]string
	moves int
}

// New creates a Game for a and b.
func New(a, b player.Handle) (logic.Logic, error) {
	base, err := logic.NewBase(a, b)
	if err != nil {
		return nil, fmt.Errorf("connectfour: %w", err)
	}
	return &Game{Base: base}, nil
}

// Definition registers connect-four with a logic.Registry.
func Definition() logic.Definition {
	return logic.Definition{
		Kind: logic.ConnectFour,
		New:  New,
		SampleMove: func(r *rand.Rand) message.Move {
			return message.Move{Coords: []int{r.IntN(Cols)}}
		},
	}
}

// Initialize empties the board and gives red the first move.
func (g *Game) Initialize() {
	g.ResetTurns()
	g.board = [Rows][Cols]string{}
	g.moves = 0
}

// Reset is Initialize with the same players.
func (g *Game) Reset() { g.Initialize() }

// Piece returns the disc colour of a participant.
func (g *Game) Piece(p player.Handle) string {
	switch g.Seat(p) {
	case 0:
		return Red
	case 1:
		return Yellow
	default:
		return Empty
	}
}

// ApplyMove drops the mover's disc into column [col].
func (g *Game) ApplyMove(p player.Handle, move message.Move) (bool, error) {
	if len(move.Coords) != 1 {
		return false, fmt.Errorf("%w: want [col], got %d coordinates", logic.ErrMalformedMove, len(move.Coords))
	}
	col := move.Coords[0]
	if col < 0 || col >= Cols {
		return false, fmt.Errorf("%w: column %d is off the board", logic.ErrMalformedMove, col)
	}
	if !g.CanMove(p) {
		return false, nil
	}
	row := -1
	for r := Rows - 1; r >= 0; r-- {
		if g.board[r][col] == Empty {
			row = r
			break
		}
	}
	if row < 0 {
		return false, nil
	}

	disc := g.Piece(p)
	g.board[row][col] = disc
	g.moves++

	switch {
	case g.connects(row, col, disc):
		g.End(p)
	case g.moves == Rows*Cols:
		g.End(nil)
	default:
		g.SwitchTurn()
	}
	return true, nil
}

// connects reports whether the disc at (row, col) completes a line of four.
func (g *Game) connects(row, col int, disc string) bool {
	dirs := [][2]int{{0, 1}, {1, 0}, {1, 1}, {1, -1}}
	for _, d := range dirs {
		n := 1 + g.run(row, col, d[0], d[1], disc) + g.run(row, col, -d[0], -d[1], disc)
		if n >= 4 {
			return true
		}
	}
	return false
}

func (g *Game) run(row, col, dr, dc int, disc string) int {
	n := 0
	for r, c := row+dr, col+dc; r >= 0 && r < Rows && c >= 0 && c < Cols && g.board[r][c] == disc; r, c = r+dr, c+dc {
		n++
	}
	return n
}

// State returns a copy of the board as rows of discs.
func (g *Game) State() any {
	out := make([][]string, Rows)
	for i := range g.board {
		out[i] = append([]string(nil), g.board[i][:]...)
	}
	return out
}
