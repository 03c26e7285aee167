// Package logic defines the game-rules collaborator a session delegates to,
// and the registry that maps a game kind to its constructor.
package logic

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/cory-johannsen/retroarcade/internal/game/message"
	"github.com/cory-johannsen/retroarcade/internal/game/player"
)

// Kind names a game.
type Kind string

const (
	TicTacToe   Kind = "tictactoe"
	ConnectFour Kind = "connectfour"
	Checkers    Kind = "checkers"
)

var (
	// ErrUnsupportedKind is returned when no definition is registered for a kind.
	ErrUnsupportedKind = errors.New("unsupported game kind")
	// ErrMalformedMove is returned by ApplyMove when the move payload has the
	// wrong shape or references coordinates outside the board.
	ErrMalformedMove = errors.New("malformed move")
)

// Logic is the rules engine for one match. Implementations are owned by a
// single session worker and need no locking. They must never block.
type Logic interface {
	// Initialize sets up the board and the first turn.
	Initialize()
	// ApplyMove applies move for p. It returns (false, nil) when the move is
	// well formed but illegal, and an error wrapping ErrMalformedMove when the
	// payload cannot be interpreted. The state is unchanged unless it returns true.
	ApplyMove(p player.Handle, move message.Move) (bool, error)
	IsOver() bool
	// Winner returns nil for a draw or an unfinished game.
	Winner() player.Handle
	CurrentPlayer() player.Handle
	// State returns a serializable snapshot of the board.
	State() any
	Pause()
	Resume()
	Reset()
}

// PieceAssigner is implemented by games whose players own a piece identity.
type PieceAssigner interface {
	Piece(p player.Handle) string
}

// Factory constructs a Logic for two players; a moves first.
type Factory func(a, b player.Handle) (Logic, error)

// Definition registers a game kind.
type Definition struct {
	Kind Kind
	New  Factory
	// SampleMove draws a random well-formed move, used by simulated players.
	SampleMove func(r *rand.Rand) message.Move
}

// Registry maps kinds to definitions. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	defs  map[Kind]Definition
	order []Kind
}

// NewRegistry returns a registry holding defs.
//
// Postcondition: Returns an error if a definition is incomplete or a kind repeats.
func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{defs: make(map[Kind]Definition)}
	for _, d := range defs {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a definition.
func (r *Registry) Register(d Definition) error {
	if d.Kind == "" || d.New == nil {
		return fmt.Errorf("registering game: kind and constructor are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[d.Kind]; exists {
		return fmt.Errorf("game kind %q already registered", d.Kind)
	}
	r.defs[d.Kind] = d
	r.order = append(r.order, d.Kind)
	return nil
}

// Lookup returns the definition for kind.
func (r *Registry) Lookup(kind Kind) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[kind]
	return d, ok
}

// New constructs a Logic for kind.
//
// Postcondition: Returns an error wrapping ErrUnsupportedKind when kind is unknown.
func (r *Registry) New(kind Kind, a, b player.Handle) (Logic, error) {
	d, ok := r.Lookup(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, kind)
	}
	lg, err := d.New(a, b)
	if err != nil {
		return nil, fmt.Errorf("constructing %s: %w", kind, err)
	}
	return lg, nil
}

// Kinds returns registered kinds in registration order.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Kind, len(r.order))
	copy(out, r.order)
	return out
}
