package testutil

import (
	"testing"
	"time"

	"github.com/cory-johannsen/retroarcade/internal/game/message"
	"github.com/cory-johannsen/retroarcade/internal/game/player"
)

// ExpectTimeout bounds how long Expect waits for a notification.
const ExpectTimeout = 2 * time.Second

// Expect reads c's outbox, discarding other notifications, until a message
// of typ arrives.
//
// Postcondition: Returns the matching message, or fails the test after ExpectTimeout.
func Expect(t *testing.T, c *player.Conn, typ message.Type) message.Message {
	t.Helper()
	timeout := time.After(ExpectTimeout)
	var seen []message.Type
	for {
		select {
		case msg := <-c.Outbox():
			if msg.Type == typ {
				return msg
			}
			seen = append(seen, msg.Type)
		case <-timeout:
			t.Fatalf("player %d never received %s; saw %v", c.ID(), typ, seen)
			return message.Message{}
		}
	}
}

// Drain returns every notification currently buffered for c.
func Drain(c *player.Conn) []message.Message {
	var out []message.Message
	for {
		select {
		case msg := <-c.Outbox():
			out = append(out, msg)
		default:
			return out
		}
	}
}
