package matchmaking

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/retroarcade/internal/game/logic"
	"github.com/cory-johannsen/retroarcade/internal/game/player"
)

// Match is a pair tagged with the game it should play.
type Match struct {
	Pair
	Kind logic.Kind
}

// KindConfig declares one queue.
type KindConfig struct {
	Kind     logic.Kind
	Tunables Tunables
}

// Manager owns one Queue per game kind. The set of kinds is fixed at
// construction, so the manager itself needs no lock.
type Manager struct {
	kinds  []logic.Kind
	queues map[logic.Kind]*Queue
	logger *zap.Logger
}

// NewManager creates a queue for each kind, preserving the given order.
// A repeated kind keeps its first configuration.
//
// Precondition: logger must be non-nil.
func NewManager(logger *zap.Logger, kinds []KindConfig, opts ...QueueOption) *Manager {
	m := &Manager{
		queues: make(map[logic.Kind]*Queue, len(kinds)),
		logger: logger,
	}
	for _, kc := range kinds {
		if _, dup := m.queues[kc.Kind]; dup {
			logger.Warn("duplicate matchmaking kind ignored", zap.String("kind", string(kc.Kind)))
			continue
		}
		m.kinds = append(m.kinds, kc.Kind)
		m.queues[kc.Kind] = NewQueue(kc.Tunables, opts...)
	}
	return m
}

// Kinds returns the managed kinds in pass order.
func (m *Manager) Kinds() []logic.Kind {
	out := make([]logic.Kind, len(m.kinds))
	copy(out, m.kinds)
	return out
}

// Queue returns the queue for kind.
func (m *Manager) Queue(kind logic.Kind) (*Queue, bool) {
	q, ok := m.queues[kind]
	return q, ok
}

// Enqueue adds p to kind's queue. Unknown kinds are a no-op.
//
// Postcondition: Returns true only if p was newly queued.
func (m *Manager) Enqueue(kind logic.Kind, p player.Handle) bool {
	q, ok := m.queues[kind]
	if !ok {
		return false
	}
	added := q.Enqueue(p)
	if added {
		m.logger.Debug("player queued",
			zap.String("kind", string(kind)),
			zap.Int64("player", p.ID()),
			zap.Int("rating", p.Rating()),
		)
	}
	return added
}

// Remove takes p out of kind's queue. Unknown kinds are a no-op.
func (m *Manager) Remove(kind logic.Kind, p player.Handle) bool {
	q, ok := m.queues[kind]
	if !ok {
		return false
	}
	return q.Remove(p)
}

// RemoveEverywhere takes p out of every queue.
//
// Postcondition: Returns the kinds p was removed from.
func (m *Manager) RemoveEverywhere(p player.Handle) []logic.Kind {
	var removed []logic.Kind
	for _, kind := range m.kinds {
		if m.queues[kind].Remove(p) {
			removed = append(removed, kind)
		}
	}
	return removed
}

// Sizes returns the number of waiting players per kind.
func (m *Manager) Sizes() map[logic.Kind]int {
	out := make(map[logic.Kind]int, len(m.kinds))
	for _, kind := range m.kinds {
		out[kind] = m.queues[kind].Size()
	}
	return out
}

// CollectAllMatches runs TryMatch on every queue in kind order and
// concatenates the results. It never matches across kinds.
func (m *Manager) CollectAllMatches() []Match {
	var all []Match
	for _, kind := range m.kinds {
		for _, p := range m.queues[kind].TryMatch() {
			all = append(all, Match{Pair: p, Kind: kind})
		}
	}
	if len(all) > 0 {
		m.logger.Debug("matchmaking pass", zap.Int("matches", len(all)))
	}
	return all
}
