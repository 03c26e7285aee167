// Package player provides the player handle consumed by matchmaking and
// sessions, and a channel-backed reference implementation.
package player

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cory-johannsen/retroarcade/internal/game/message"
)

// Handle is a connected player as seen by the core. Implementations must be
// pointer types: handles are compared and used as map keys by identity.
type Handle interface {
	ID() int64
	Name() string
	Rating() int
	// Deliver pushes an outbound notification without blocking.
	Deliver(msg message.Message) error
}

var (
	// ErrClosed is returned by Deliver after Close.
	ErrClosed = errors.New("player connection closed")
	// ErrOutboxFull is returned by Deliver when the outbox buffer is full.
	ErrOutboxFull = errors.New("player outbox full")
)

// Conn is a Handle whose notifications are queued on a buffered channel
// drained by the player's own worker.
type Conn struct {
	id     int64
	name   string
	rating int

	mu     sync.Mutex
	outbox chan message.Message
	closed bool
}

// NewConn creates a Conn.
//
// Precondition: name must be non-empty.
// Postcondition: Returns a Conn with an open outbox of bufferSize (64 when <= 0).
func NewConn(id int64, name string, rating, bufferSize int) *Conn {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Conn{
		id:     id,
		name:   name,
		rating: rating,
		outbox: make(chan message.Message, bufferSize),
	}
}

// ID returns the player's numeric identifier.
func (c *Conn) ID() int64 { return c.id }

// Name returns the display name.
func (c *Conn) Name() string { return c.name }

// Rating returns the matchmaking rating.
func (c *Conn) Rating() int { return c.rating }

// Deliver enqueues msg on the outbox.
//
// Postcondition: msg is queued, or ErrClosed / ErrOutboxFull is returned.
func (c *Conn) Deliver(msg message.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("player %d: %w", c.id, ErrClosed)
	}
	select {
	case c.outbox <- msg:
		return nil
	default:
		return fmt.Errorf("player %d: %w", c.id, ErrOutboxFull)
	}
}

// Outbox returns the channel the player's worker reads notifications from.
// It is closed by Close.
func (c *Conn) Outbox() <-chan message.Message {
	return c.outbox
}

// Close closes the outbox. Idempotent.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.outbox)
	}
}

// IsClosed reports whether Close has been called.
func (c *Conn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// String renders the player for logs.
func (c *Conn) String() string {
	return fmt.Sprintf("%s#%d(%d)", c.name, c.id, c.rating)
}
