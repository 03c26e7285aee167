// Package arcade is the entry point transports use to put players into
// matchmaking and route their messages to live sessions.
package arcade

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/retroarcade/internal/game/logic"
	"github.com/cory-johannsen/retroarcade/internal/game/matchmaking"
	"github.com/cory-johannsen/retroarcade/internal/game/message"
	"github.com/cory-johannsen/retroarcade/internal/game/player"
	"github.com/cory-johannsen/retroarcade/internal/game/session"
)

var (
	// ErrUnknownKind is returned when joining a kind with no queue or no rules.
	ErrUnknownKind = errors.New("unknown game kind")
	// ErrNoSession is returned when submitting for a player who is not seated.
	ErrNoSession = errors.New("player is not in a session")
)

// Server routes player actions to matchmaking and sessions.
type Server struct {
	games    *logic.Registry
	matches  *matchmaking.Manager
	registry *session.Registry
	logger   *zap.Logger
}

// NewServer wires a Server.
func NewServer(games *logic.Registry, matches *matchmaking.Manager, registry *session.Registry, logger *zap.Logger) *Server {
	return &Server{games: games, matches: matches, registry: registry, logger: logger.Named("arcade")}
}

// Kinds returns the kinds players can join, in matching order.
func (s *Server) Kinds() []logic.Kind {
	var kinds []logic.Kind
	for _, k := range s.matches.Kinds() {
		if _, ok := s.games.Lookup(k); ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// Join queues p for kind. A player waits in one queue at a time: joining a
// new kind leaves the others, and joining the queue p already waits in is a
// no-op that keeps its join time.
//
// Postcondition: Returns ErrUnknownKind or session.ErrPlayerSeated without queueing.
func (s *Server) Join(kind logic.Kind, p player.Handle) error {
	if _, ok := s.games.Lookup(kind); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	q, ok := s.matches.Queue(kind)
	if !ok {
		return fmt.Errorf("%w: %q has no queue", ErrUnknownKind, kind)
	}
	if sc, seated := s.registry.ByPlayer(p); seated {
		return fmt.Errorf("%w: player %d in %s", session.ErrPlayerSeated, p.ID(), sc.ID())
	}
	if q.Contains(p) {
		return nil
	}
	if left := s.matches.RemoveEverywhere(p); len(left) > 0 {
		s.logger.Debug("player switched queues", zap.Int64("player", p.ID()), zap.Int("left", len(left)))
	}
	if s.matches.Enqueue(kind, p) {
		s.logger.Debug("player queued", zap.Int64("player", p.ID()), zap.String("kind", string(kind)))
	}
	return nil
}

// Leave removes p from the kind queue and reports whether it was waiting.
func (s *Server) Leave(kind logic.Kind, p player.Handle) bool {
	return s.matches.Remove(kind, p)
}

// Submit forwards a player action to p's live session. The message is
// re-stamped with p as its origin.
func (s *Server) Submit(p player.Handle, t message.Type, payload any) error {
	sc, ok := s.registry.ByPlayer(p)
	if !ok {
		return fmt.Errorf("%w: player %d", ErrNoSession, p.ID())
	}
	return sc.Send(message.FromPlayer(t, p, payload))
}

// Move submits a move for p.
func (s *Server) Move(p player.Handle, coords ...int) error {
	return s.Submit(p, message.MoveMade, message.Move{Coords: coords})
}

// Disconnect removes p from every queue and ends its live session.
func (s *Server) Disconnect(p player.Handle) {
	if kinds := s.matches.RemoveEverywhere(p); len(kinds) > 0 {
		s.logger.Debug("player left queues", zap.Int64("player", p.ID()), zap.Int("queues", len(kinds)))
	}
	sc, ok := s.registry.ByPlayer(p)
	if !ok {
		return
	}
	if err := sc.Send(message.FromPlayer(message.Disconnect, p, nil)); err != nil {
		// The worker cannot see the disconnect, so stop it directly.
		s.logger.Warn("disconnect not queued, stopping session",
			zap.String("session", sc.ID()),
			zap.Int64("player", p.ID()),
			zap.Error(err),
		)
		sc.Stop()
	}
}

// SessionInfo is a read-only view of a live session.
type SessionInfo struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	State     string    `json:"state"`
	Players   []int64   `json:"players"`
	StartedAt time.Time `json:"started_at"`
}

// Sessions lists live sessions, oldest first.
func (s *Server) Sessions() []SessionInfo {
	live := s.registry.List()
	out := make([]SessionInfo, 0, len(live))
	for _, sc := range live {
		out = append(out, infoOf(sc))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Session returns one live session by id.
func (s *Server) Session(id string) (SessionInfo, bool) {
	sc, ok := s.registry.BySessionID(id)
	if !ok {
		return SessionInfo{}, false
	}
	return infoOf(sc), true
}

func infoOf(sc *session.Context) SessionInfo {
	ps := sc.Participants()
	return SessionInfo{
		ID:        sc.ID(),
		Kind:      string(sc.Kind()),
		State:     sc.State().String(),
		Players:   []int64{ps[0].ID(), ps[1].ID()},
		StartedAt: sc.StartTime(),
	}
}

// QueueSizes returns the waiting count per kind.
func (s *Server) QueueSizes() map[string]int {
	sizes := s.matches.Sizes()
	out := make(map[string]int, len(sizes))
	for k, n := range sizes {
		out[string(k)] = n
	}
	return out
}
