// Package matchmaking pairs waiting players by rating, widening the accepted
// rating gap the longer a player waits.
package matchmaking

import (
	"sync"
	"time"

	"github.com/cory-johannsen/retroarcade/internal/game/player"
)

// Tunables control how permissive a queue is.
type Tunables struct {
	// BaseDelta is the rating gap accepted at zero wait.
	BaseDelta int
	// ExpandInterval is how often the accepted gap widens.
	ExpandInterval time.Duration
	// ExpandAmount is added to the gap once per elapsed ExpandInterval.
	ExpandAmount int
}

// AllowedDelta returns the rating gap accepted after waiting for waited.
// It is monotonically non-decreasing in waited.
func (t Tunables) AllowedDelta(waited time.Duration) int {
	if waited < 0 || t.ExpandInterval <= 0 {
		return t.BaseDelta
	}
	return t.BaseDelta + int(waited/t.ExpandInterval)*t.ExpandAmount
}

// Pair is two players matched in one pass. A joined before B.
type Pair struct {
	A, B player.Handle
}

// Queue is a join-ordered waiting pool for one game kind.
// All methods are safe for concurrent use.
type Queue struct {
	tunables Tunables
	now      func() time.Time

	mu     sync.Mutex
	order  []player.Handle
	joined map[player.Handle]time.Time
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithClock replaces the wall clock used for join times and wait computation.
func WithClock(now func() time.Time) QueueOption {
	return func(q *Queue) { q.now = now }
}

// NewQueue creates an empty queue.
func NewQueue(t Tunables, opts ...QueueOption) *Queue {
	q := &Queue{
		tunables: t,
		now:      time.Now,
		joined:   make(map[player.Handle]time.Time),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Tunables returns the queue's configuration.
func (q *Queue) Tunables() Tunables { return q.tunables }

// Enqueue adds p and records its join time.
//
// Postcondition: Returns false, leaving the original join time, if p is already queued.
func (q *Queue) Enqueue(p player.Handle) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.joined[p]; ok {
		return false
	}
	q.joined[p] = q.now()
	q.order = append(q.order, p)
	return true
}

// Remove takes p out of the queue. Idempotent.
//
// Postcondition: Returns true if p was queued.
func (q *Queue) Remove(p player.Handle) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.removeLocked(p)
}

func (q *Queue) removeLocked(p player.Handle) bool {
	if _, ok := q.joined[p]; !ok {
		return false
	}
	delete(q.joined, p)
	for i, o := range q.order {
		if o == p {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	return true
}

// Size returns the number of waiting players.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}

// Contains reports whether p is waiting.
func (q *Queue) Contains(p player.Handle) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.joined[p]
	return ok
}

// Waiting returns the queued players in join order.
func (q *Queue) Waiting() []player.Handle {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]player.Handle, len(q.order))
	copy(out, q.order)
	return out
}

// TryMatch runs one greedy pass over the queue in join order. For each
// unmatched player it pairs the first later unmatched player whose rating is
// within the earlier player's allowed delta. Matched players are removed
// before the pairs are returned. The pass holds the queue lock, so a
// concurrent Remove either precedes the pass or finds the player gone.
//
// Postcondition: Returns nil when fewer than two players wait.
func (q *Queue) TryMatch() []Pair {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.order) < 2 {
		return nil
	}

	now := q.now()
	snapshot := make([]player.Handle, len(q.order))
	copy(snapshot, q.order)
	matched := make([]bool, len(snapshot))

	var pairs []Pair
	for i, p1 := range snapshot {
		if matched[i] {
			continue
		}
		allowed := q.tunables.AllowedDelta(now.Sub(q.joined[p1]))
		for j := i + 1; j < len(snapshot); j++ {
			if matched[j] {
				continue
			}
			p2 := snapshot[j]
			if abs(p1.Rating()-p2.Rating()) > allowed {
				continue
			}
			matched[i], matched[j] = true, true
			q.removeLocked(p1)
			q.removeLocked(p2)
			pairs = append(pairs, Pair{A: p1, B: p2})
			break
		}
	}
	return pairs
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
