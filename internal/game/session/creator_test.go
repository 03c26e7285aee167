package session

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/retroarcade/internal/game/connectfour"
	"github.com/cory-johannsen/retroarcade/internal/game/logic"
	"github.com/cory-johannsen/retroarcade/internal/game/matchmaking"
	"github.com/cory-johannsen/retroarcade/internal/game/message"
	"github.com/cory-johannsen/retroarcade/internal/game/player"
	"github.com/cory-johannsen/retroarcade/internal/game/tictactoe"
	"github.com/cory-johannsen/retroarcade/internal/observability"
	"github.com/cory-johannsen/retroarcade/internal/testutil"
)

type creatorFixture struct {
	mm      *matchmaking.Manager
	reg     *Registry
	creator *Creator
}

func newCreator(t *testing.T, defs ...logic.Definition) *creatorFixture {
	t.Helper()
	if len(defs) == 0 {
		defs = []logic.Definition{tictactoe.Definition()}
	}
	games, err := logic.NewRegistry(defs...)
	require.NoError(t, err)
	tun := matchmaking.Tunables{BaseDelta: 50, ExpandInterval: 5 * time.Second, ExpandAmount: 50}
	mm := matchmaking.NewManager(zaptest.NewLogger(t), []matchmaking.KindConfig{
		{Kind: logic.TicTacToe, Tunables: tun},
		{Kind: logic.ConnectFour, Tunables: tun},
	})
	reg := NewRegistry()
	var seq atomic.Int64
	c := NewCreator(mm, games, reg, zaptest.NewLogger(t), observability.NewMetrics(prometheus.NewRegistry()),
		WithTickInterval(5*time.Millisecond),
		WithIDGenerator(func() string { return fmt.Sprintf("s-%d", seq.Add(1)) }),
	)
	t.Cleanup(c.Close)
	return &creatorFixture{mm: mm, reg: reg, creator: c}
}

func TestCreator_CreateSessionRegistersAndStarts(t *testing.T) {
	f := newCreator(t)
	a, b := newPlayers()

	sc, err := f.creator.CreateSession(a, b, logic.TicTacToe)
	require.NoError(t, err)
	assert.Equal(t, "s-1", sc.ID())

	got, ok := f.reg.ByPlayer(a)
	require.True(t, ok)
	assert.Same(t, sc, got)
	testutil.Expect(t, a, message.YourTurn)
	assert.Equal(t, Running, sc.State())
}

func TestCreator_UnsupportedKindRegistersNothing(t *testing.T) {
	f := newCreator(t)
	a, b := newPlayers()

	_, err := f.creator.CreateSession(a, b, logic.ConnectFour)
	assert.ErrorIs(t, err, logic.ErrUnsupportedKind)
	assert.Equal(t, 0, f.reg.Count())
}

func TestCreator_TickStartsMatchedPairs(t *testing.T) {
	f := newCreator(t)
	a, b := newPlayers()
	f.mm.Enqueue(logic.TicTacToe, a)
	f.mm.Enqueue(logic.TicTacToe, b)

	started := f.creator.Tick()
	require.Len(t, started, 1)
	assert.Equal(t, 0, f.mm.Sizes()[logic.TicTacToe])
	assert.Equal(t, 1, f.reg.Count())
	testutil.Expect(t, b, message.OtherTurn)
}

func TestCreator_FailedPairIsNotifiedAndOthersProceed(t *testing.T) {
	f := newCreator(t)
	a, b := newPlayers()
	c, d := player.NewConn(3, "carol", 1000, 8), player.NewConn(4, "dave", 1010, 8)
	// No connectfour definition is registered, so that pair fails.
	f.mm.Enqueue(logic.ConnectFour, c)
	f.mm.Enqueue(logic.ConnectFour, d)
	f.mm.Enqueue(logic.TicTacToe, a)
	f.mm.Enqueue(logic.TicTacToe, b)

	started := f.creator.Tick()
	require.Len(t, started, 1)
	assert.Equal(t, logic.TicTacToe, started[0].Kind())

	failure := testutil.Expect(t, c, message.Error).Payload.(message.Failure)
	assert.Equal(t, reasonNotStarted, failure.Reason)
	testutil.Expect(t, d, message.Error)
	assert.False(t, f.mm.Sizes()[logic.ConnectFour] > 0, "failed players are not re-queued")
	_, ok := f.reg.ByPlayer(c)
	assert.False(t, ok)
}

func TestCreator_PairWithSeatedPlayerRequeuesPartner(t *testing.T) {
	f := newCreator(t, tictactoe.Definition(), connectfour.Definition())
	a, b := newPlayers()
	x := player.NewConn(3, "xavier", 1000, 8)
	// a waits in both queues, so one pass pairs it twice.
	f.mm.Enqueue(logic.TicTacToe, a)
	f.mm.Enqueue(logic.TicTacToe, b)
	f.mm.Enqueue(logic.ConnectFour, a)
	f.mm.Enqueue(logic.ConnectFour, x)

	started := f.creator.Tick()
	require.Len(t, started, 1)
	assert.Equal(t, logic.TicTacToe, started[0].Kind())

	q, ok := f.mm.Queue(logic.ConnectFour)
	require.True(t, ok)
	assert.True(t, q.Contains(x), "the free partner goes back to the queue")
	assert.False(t, q.Contains(a))
	_, seated := f.reg.ByPlayer(x)
	assert.False(t, seated)
	assert.Empty(t, testutil.Drain(x), "no failure notice for a skipped pair")
}

func TestCreator_PanicInConstructionIsIsolated(t *testing.T) {
	boom := logic.Definition{
		Kind: logic.ConnectFour,
		New:  func(a, b player.Handle) (logic.Logic, error) { panic("constructor exploded") },
	}
	f := newCreator(t, tictactoe.Definition(), boom)
	c, d := player.NewConn(3, "carol", 1000, 8), player.NewConn(4, "dave", 1010, 8)
	f.mm.Enqueue(logic.ConnectFour, c)
	f.mm.Enqueue(logic.ConnectFour, d)

	assert.NotPanics(t, func() { f.creator.Tick() })
	testutil.Expect(t, c, message.Error)
	assert.Equal(t, 0, f.reg.Count())
}

func TestCreator_RunCancelDoesNotStopSessions(t *testing.T) {
	f := newCreator(t)
	a, b := newPlayers()
	f.mm.Enqueue(logic.TicTacToe, a)
	f.mm.Enqueue(logic.TicTacToe, b)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.creator.Run(ctx)
		close(done)
	}()
	testutil.Expect(t, a, message.YourTurn)
	cancel()
	<-done

	sc, ok := f.reg.ByPlayer(a)
	require.True(t, ok)
	assert.Equal(t, Running, sc.State())

	f.creator.Close()
	assert.Equal(t, Cancelled, sc.State())
	assert.Equal(t, 0, f.reg.Count())

	_, err := f.creator.CreateSession(a, b, logic.TicTacToe)
	assert.ErrorIs(t, err, ErrCreatorClosed)
}
