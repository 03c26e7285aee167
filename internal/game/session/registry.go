package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/retroarcade/internal/game/player"
)

var (
	// ErrDuplicateSession is returned when registering an id that is already live.
	ErrDuplicateSession = errors.New("session already registered")
	// ErrPlayerSeated is returned when a participant is already in a live session.
	ErrPlayerSeated = errors.New("player already in a session")
)

// Registry tracks live sessions by id and by participant.
// Both indexes are guarded by one lock, so a reader sees a session either
// with all of its player entries or with none of them.
// All methods are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Context      // session id → context
	byPlayer map[player.Handle]string // participant → session id
	now      func() time.Time
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Context),
		byPlayer: make(map[player.Handle]string),
		now:      time.Now,
	}
}

// Register inserts sc and a reverse entry for each participant.
//
// Precondition: sc must be non-nil.
// Postcondition: Returns ErrDuplicateSession or ErrPlayerSeated, registering
// nothing, if either index already holds an entry.
func (r *Registry) Register(sc *Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[sc.ID()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSession, sc.ID())
	}
	for _, p := range sc.Participants() {
		if sid, seated := r.byPlayer[p]; seated {
			return fmt.Errorf("%w: player %d in %s", ErrPlayerSeated, p.ID(), sid)
		}
	}

	r.sessions[sc.ID()] = sc
	for _, p := range sc.Participants() {
		r.byPlayer[p] = sc.ID()
	}
	return nil
}

// Deregister removes a session and all of its reverse entries.
//
// Postcondition: Returns false if id was not registered.
func (r *Registry) Deregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deregisterLocked(id) != nil
}

func (r *Registry) deregisterLocked(id string) *Context {
	sc, ok := r.sessions[id]
	if !ok {
		return nil
	}
	delete(r.sessions, id)
	for _, p := range sc.Participants() {
		if r.byPlayer[p] == id {
			delete(r.byPlayer, p)
		}
	}
	return sc
}

// BySessionID returns the live session with the given id.
func (r *Registry) BySessionID(id string) (*Context, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sc, ok := r.sessions[id]
	return sc, ok
}

// ByPlayer returns the live session p participates in.
func (r *Registry) ByPlayer(p player.Handle) (*Context, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byPlayer[p]
	if !ok {
		return nil, false
	}
	sc, ok := r.sessions[id]
	return sc, ok
}

// List returns every live session.
func (r *Registry) List() []*Context {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Context, 0, len(r.sessions))
	for _, sc := range r.sessions {
		out = append(out, sc)
	}
	return out
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// PurgeExpired deregisters every session that started more than maxAge ago
// and stops its worker. It is a safety net for sessions whose workers failed
// to deregister themselves.
//
// Postcondition: Returns the ids of purged sessions.
func (r *Registry) PurgeExpired(maxAge time.Duration) []string {
	cutoff := r.now().Add(-maxAge)

	r.mu.Lock()
	var purged []*Context
	for id, sc := range r.sessions {
		if sc.StartTime().Before(cutoff) {
			purged = append(purged, r.deregisterLocked(id))
		}
	}
	r.mu.Unlock()

	ids := make([]string, 0, len(purged))
	for _, sc := range purged {
		sc.Stop()
		ids = append(ids, sc.ID())
	}
	return ids
}

// RunPurger calls PurgeExpired every interval until ctx is cancelled.
// onPurge, if non-nil, receives the purged ids of each non-empty sweep.
//
// Precondition: interval must be > 0.
func (r *Registry) RunPurger(ctx context.Context, interval, maxAge time.Duration, logger *zap.Logger, onPurge func([]string)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ids := r.PurgeExpired(maxAge)
			if len(ids) == 0 {
				continue
			}
			logger.Warn("purged expired sessions",
				zap.Int("count", len(ids)),
				zap.Strings("sessions", ids),
				zap.Duration("max_age", maxAge),
			)
			if onPurge != nil {
				onPurge(ids)
			}
		}
	}
}
