// Package session runs live matches: one worker per session consuming its
// inbox, a registry of live sessions, and the scheduler that creates them
// from matchmaking results.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cory-johannsen/retroarcade/internal/game/logic"
	"github.com/cory-johannsen/retroarcade/internal/game/message"
	"github.com/cory-johannsen/retroarcade/internal/game/player"
)

// State is a session lifecycle state.
type State int

const (
	Initializing State = iota
	Running
	Paused
	Completed
	Cancelled
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether s is absorbing.
func (s State) Terminal() bool {
	return s == Completed || s == Cancelled
}

var (
	// ErrInboxFull is returned when a session inbox cannot accept more messages.
	ErrInboxFull = errors.New("session inbox full")
	// ErrInboxClosed is returned when sending to a finished session.
	ErrInboxClosed = errors.New("session inbox closed")
)

// Inbox is a FIFO of messages with many senders and one receiver.
// Send never blocks.
type Inbox struct {
	mu     sync.Mutex
	ch     chan message.Message
	closed bool
}

// NewInbox creates an inbox buffering up to size messages (64 when <= 0).
func NewInbox(size int) *Inbox {
	if size <= 0 {
		size = 64
	}
	return &Inbox{ch: make(chan message.Message, size)}
}

// Send enqueues msg.
//
// Postcondition: msg is queued, or ErrInboxClosed / ErrInboxFull is returned.
func (in *Inbox) Send(msg message.Message) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return ErrInboxClosed
	}
	select {
	case in.ch <- msg:
		return nil
	default:
		return ErrInboxFull
	}
}

// Receive returns the channel the session worker reads from.
func (in *Inbox) Receive() <-chan message.Message {
	return in.ch
}

// Close rejects further sends. Buffered messages are dropped with the
// session. Idempotent.
func (in *Inbox) Close() {
	in.mu.Lock()
	defer in.mu.Unlock()
	if !in.closed {
		in.closed = true
		close(in.ch)
	}
}

// Len returns the number of buffered messages.
func (in *Inbox) Len() int {
	return len(in.ch)
}

// Context is the identity and lifecycle state of one live match. Identity
// fields never change; state and winner are written only by the session's
// own worker and read by anyone.
type Context struct {
	id           string
	kind         logic.Kind
	participants [2]player.Handle
	inbox        *Inbox
	startTime    time.Time

	mu      sync.RWMutex
	state   State
	winner  player.Handle
	stop    context.CancelFunc
	stopped bool
}

// NewContext creates a Context in the Initializing state.
//
// Precondition: id must be non-empty; a and b must be distinct non-nil handles.
func NewContext(id string, kind logic.Kind, a, b player.Handle, inbox *Inbox, start time.Time) (*Context, error) {
	if id == "" {
		return nil, errors.New("session id must not be empty")
	}
	if a == nil || b == nil || a == b {
		return nil, fmt.Errorf("session %s: two distinct participants are required", id)
	}
	if inbox == nil {
		inbox = NewInbox(0)
	}
	return &Context{
		id:           id,
		kind:         kind,
		participants: [2]player.Handle{a, b},
		inbox:        inbox,
		startTime:    start,
		state:        Initializing,
	}, nil
}

// ID returns the session id.
func (c *Context) ID() string { return c.id }

// Kind returns the game kind.
func (c *Context) Kind() logic.Kind { return c.kind }

// Participants returns both players.
func (c *Context) Participants() [2]player.Handle { return c.participants }

// StartTime returns when the session was created.
func (c *Context) StartTime() time.Time { return c.startTime }

// Inbox returns the session inbox.
func (c *Context) Inbox() *Inbox { return c.inbox }

// Has reports whether p participates in the session.
func (c *Context) Has(p player.Handle) bool {
	return c.participants[0] == p || c.participants[1] == p
}

// Opponent returns the other participant, or nil if p is not seated here.
func (c *Context) Opponent(p player.Handle) player.Handle {
	switch p {
	case c.participants[0]:
		return c.participants[1]
	case c.participants[1]:
		return c.participants[0]
	default:
		return nil
	}
}

// Send enqueues msg on the session inbox.
func (c *Context) Send(msg message.Message) error {
	if err := c.inbox.Send(msg); err != nil {
		return fmt.Errorf("session %s: %w", c.id, err)
	}
	return nil
}

// State returns the lifecycle state.
func (c *Context) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Winner returns the winner of a completed session, or nil.
func (c *Context) Winner() player.Handle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.winner
}

// setState moves to next unless the session is already terminal.
//
// Postcondition: Returns false, leaving the state unchanged, if the current state is terminal.
func (c *Context) setState(next State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Terminal() {
		return false
	}
	c.state = next
	return true
}

// complete records the winner (nil for a draw) and enters Completed.
func (c *Context) complete(winner player.Handle) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Terminal() {
		return false
	}
	c.winner = winner
	c.state = Completed
	return true
}

// setStop installs the worker's cancel func, firing it at once if Stop
// already ran.
func (c *Context) setStop(stop context.CancelFunc) {
	c.mu.Lock()
	c.stop = stop
	early := c.stopped
	c.mu.Unlock()
	if early {
		stop()
	}
}

// Stop interrupts the session worker. The worker cancels the session and
// deregisters it; a worker that has not started yet stops as soon as it does.
func (c *Context) Stop() {
	c.mu.Lock()
	c.stopped = true
	stop := c.stop
	c.mu.Unlock()
	if stop != nil {
		stop()
	}
}
