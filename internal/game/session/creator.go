package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/retroarcade/internal/game/logic"
	"github.com/cory-johannsen/retroarcade/internal/game/matchmaking"
	"github.com/cory-johannsen/retroarcade/internal/game/message"
	"github.com/cory-johannsen/retroarcade/internal/game/player"
	"github.com/cory-johannsen/retroarcade/internal/observability"
)

// ErrCreatorClosed is returned by CreateSession after Close.
var ErrCreatorClosed = errors.New("session creator closed")

const reasonNotStarted = "match could not be started"

// Creator turns matchmaking results into running sessions.
//
// Invariant: a session is registered only once it is fully constructed,
// and its worker is started only once it is registered.
type Creator struct {
	matches  *matchmaking.Manager
	games    *logic.Registry
	registry *Registry
	logger   *zap.Logger
	metrics  *observability.Metrics

	tick      time.Duration
	inboxSize int
	newID     func() string
	now       func() time.Time

	// Sessions run under root, not under the scheduler's context.
	root   context.Context
	cancel context.CancelFunc

	mu     sync.Mutex // orders wg.Add against Close
	closed bool
	wg     sync.WaitGroup
}

// CreatorOption configures a Creator.
type CreatorOption func(*Creator)

// WithTickInterval sets the scheduler period (default 1s).
func WithTickInterval(d time.Duration) CreatorOption {
	return func(c *Creator) {
		if d > 0 {
			c.tick = d
		}
	}
}

// WithInboxSize sets the inbox buffer of new sessions.
func WithInboxSize(n int) CreatorOption {
	return func(c *Creator) { c.inboxSize = n }
}

// WithIDGenerator replaces the uuid session id source.
func WithIDGenerator(fn func() string) CreatorOption {
	return func(c *Creator) { c.newID = fn }
}

// WithStartClock sets the clock stamped on new sessions.
func WithStartClock(now func() time.Time) CreatorOption {
	return func(c *Creator) { c.now = now }
}

// NewCreator builds a Creator.
//
// Precondition: matches, games and registry must be non-nil.
func NewCreator(matches *matchmaking.Manager, games *logic.Registry, registry *Registry, logger *zap.Logger, metrics *observability.Metrics, opts ...CreatorOption) *Creator {
	root, cancel := context.WithCancel(context.Background())
	c := &Creator{
		matches:  matches,
		games:    games,
		registry: registry,
		logger:   logger.Named("creator"),
		metrics:  metrics,
		tick:     time.Second,
		newID:    uuid.NewString,
		now:      time.Now,
		root:     root,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateSession builds, registers and starts a session for a and b.
//
// Postcondition: On error nothing is registered and no worker is running.
func (c *Creator) CreateSession(a, b player.Handle, kind logic.Kind) (*Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrCreatorClosed
	}
	game, err := c.games.New(kind, a, b)
	if err != nil {
		return nil, err
	}
	sc, err := NewContext(c.newID(), kind, a, b, NewInbox(c.inboxSize), c.now())
	if err != nil {
		return nil, err
	}
	mgr := NewManager(sc, game, c.registry, c.logger.Named("session"), c.metrics)
	if err := c.registry.Register(sc); err != nil {
		return nil, err
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		mgr.Run(c.root)
	}()
	return sc, nil
}

// Tick runs one scheduling pass and returns the sessions it started.
// A failure on one pair never prevents the others from starting.
func (c *Creator) Tick() []*Context {
	matches := c.matches.CollectAllMatches()
	for kind, n := range c.matches.Sizes() {
		c.metrics.QueueWaiting(string(kind), n)
	}

	started := make([]*Context, 0, len(matches))
	for _, mt := range matches {
		if c.requeueIfSeated(mt) {
			continue
		}
		c.metrics.MatchMade(string(mt.Kind))
		sc, err := c.start(mt)
		c.metrics.SessionCreated(string(mt.Kind), err == nil)
		if err != nil {
			c.logger.Error("creating session",
				zap.String("kind", string(mt.Kind)),
				zap.Int64("player_a", mt.A.ID()),
				zap.Int64("player_b", mt.B.ID()),
				zap.Error(err),
			)
			c.reject(mt)
			continue
		}
		c.logger.Info("session created",
			zap.String("session", sc.ID()),
			zap.String("kind", string(mt.Kind)),
			zap.Int64("player_a", mt.A.ID()),
			zap.Int64("player_b", mt.B.ID()),
		)
		started = append(started, sc)
	}
	return started
}

// start isolates a panic in one pair's construction.
func (c *Creator) start(mt matchmaking.Match) (sc *Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			sc, err = nil, fmt.Errorf("panic creating session: %v", r)
		}
	}()
	return c.CreateSession(mt.A, mt.B, mt.Kind)
}

// requeueIfSeated drops a pair holding a player who already sits in a
// session, such as one matched by another kind earlier in the same pass.
// The free partner goes back to the kind queue and is not notified.
func (c *Creator) requeueIfSeated(mt matchmaking.Match) bool {
	_, aSeated := c.registry.ByPlayer(mt.A)
	_, bSeated := c.registry.ByPlayer(mt.B)
	switch {
	case aSeated && bSeated:
	case aSeated:
		c.matches.Enqueue(mt.Kind, mt.B)
	case bSeated:
		c.matches.Enqueue(mt.Kind, mt.A)
	default:
		return false
	}
	c.logger.Warn("pair holds a seated player, skipped",
		zap.String("kind", string(mt.Kind)),
		zap.Int64("player_a", mt.A.ID()),
		zap.Bool("a_seated", aSeated),
		zap.Int64("player_b", mt.B.ID()),
		zap.Bool("b_seated", bSeated),
	)
	return true
}

// reject tells both players their match failed. They are not re-queued.
func (c *Creator) reject(mt matchmaking.Match) {
	msg := message.System(message.Error, message.Failure{Reason: reasonNotStarted})
	for _, p := range []player.Handle{mt.A, mt.B} {
		if err := p.Deliver(msg); err != nil {
			c.metrics.DeliveryFailed()
			c.logger.Warn("notification not delivered", zap.Int64("player", p.ID()), zap.Error(err))
		}
	}
}

// Run ticks until ctx is cancelled. Cancelling ctx does not stop sessions
// already started; use Close for that.
//
// Postcondition: the tick in progress when ctx is cancelled runs to completion.
func (c *Creator) Run(ctx context.Context) {
	c.logger.Info("scheduler started", zap.Duration("tick", c.tick))
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			c.Tick()
		}
	}
}

// Close cancels every session this Creator started and waits for their
// workers to deregister. Idempotent.
func (c *Creator) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
	c.wg.Wait()
}
