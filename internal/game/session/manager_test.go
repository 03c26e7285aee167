package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/retroarcade/internal/game/logic"
	"github.com/cory-johannsen/retroarcade/internal/game/message"
	"github.com/cory-johannsen/retroarcade/internal/game/player"
	"github.com/cory-johannsen/retroarcade/internal/game/tictactoe"
	"github.com/cory-johannsen/retroarcade/internal/testutil"
)

const waitFor = 2 * time.Second

type running struct {
	reg  *Registry
	sc   *Context
	a, b *player.Conn
	done chan struct{}
}

func startSession(t *testing.T, wrap func(logic.Logic) logic.Logic) *running {
	t.Helper()
	a, b := newPlayers()
	game, err := tictactoe.New(a, b)
	require.NoError(t, err)
	if wrap != nil {
		game = wrap(game)
	}
	reg := NewRegistry()
	sc, err := NewContext("s-1", logic.TicTacToe, a, b, NewInbox(16), time.Now())
	require.NoError(t, err)
	require.NoError(t, reg.Register(sc))

	ctx, cancel := context.WithCancel(context.Background())
	r := &running{reg: reg, sc: sc, a: a, b: b, done: make(chan struct{})}
	mgr := NewManager(sc, game, reg, zaptest.NewLogger(t), nil)
	go func() {
		mgr.Run(ctx)
		close(r.done)
	}()
	t.Cleanup(func() {
		cancel()
		<-r.done
	})
	return r
}

func (r *running) send(t *testing.T, from *player.Conn, typ message.Type, payload any) {
	t.Helper()
	require.NoError(t, r.sc.Send(message.FromPlayer(typ, from, payload)))
}

func (r *running) move(t *testing.T, from *player.Conn, coords ...int) {
	t.Helper()
	r.send(t, from, message.MoveMade, message.Move{Coords: coords})
}

// sync waits until every message sent before it has been processed.
func (r *running) sync(t *testing.T, via *player.Conn) message.Snapshot {
	t.Helper()
	r.send(t, via, message.Connect, nil)
	return testutil.Expect(t, via, message.StateUpdate).Payload.(message.Snapshot)
}

func (r *running) waitDone(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(waitFor):
		t.Fatal("session worker did not exit")
	}
}

func TestManager_AttachSendsIdentityAndTurn(t *testing.T) {
	r := startSession(t, nil)

	ua := testutil.Expect(t, r.a, message.StateUpdate).Payload.(message.Snapshot)
	assert.Equal(t, int64(1), ua.PlayerID)
	assert.Equal(t, "X", ua.Piece)
	testutil.Expect(t, r.a, message.YourTurn)

	ub := testutil.Expect(t, r.b, message.StateUpdate).Payload.(message.Snapshot)
	assert.Equal(t, "O", ub.Piece)
	testutil.Expect(t, r.b, message.OtherTurn)

	assert.Equal(t, Running, r.sc.State())
}

func TestManager_PauseResume_ScenarioC(t *testing.T) {
	r := startSession(t, nil)
	testutil.Expect(t, r.a, message.YourTurn)

	r.send(t, r.a, message.PauseRequest, nil)
	paused := testutil.Expect(t, r.b, message.Paused)
	assert.Equal(t, message.Pause{ByPlayer: 1}, paused.Payload)
	assert.Equal(t, Paused, r.sc.State())

	r.send(t, r.b, message.ResumeRequest, nil)
	r.sync(t, r.b)
	assert.Equal(t, Paused, r.sc.State(), "resume from the other player is ignored")

	r.send(t, r.a, message.ResumeRequest, nil)
	testutil.Expect(t, r.b, message.Resumed)
	assert.Equal(t, Running, r.sc.State())
}

func TestManager_PauseFromWaitingPlayerIgnored(t *testing.T) {
	r := startSession(t, nil)
	testutil.Expect(t, r.b, message.OtherTurn)
	r.send(t, r.b, message.PauseRequest, nil)
	r.sync(t, r.b)
	assert.Equal(t, Running, r.sc.State())
}

func TestManager_MoveWhilePausedIsRejected(t *testing.T) {
	r := startSession(t, nil)
	r.send(t, r.a, message.PauseRequest, nil)
	testutil.Expect(t, r.a, message.Paused)

	r.move(t, r.a, 0, 0)
	failure := testutil.Expect(t, r.a, message.Error).Payload.(message.Failure)
	assert.Equal(t, reasonPaused, failure.Reason)
	assert.Equal(t, "", r.sync(t, r.a).Board.([][]string)[0][0])
}

func TestManager_NonTurnMoveNeverMutates(t *testing.T) {
	r := startSession(t, nil)
	r.move(t, r.b, 1, 1)
	testutil.Expect(t, r.b, message.NotYourTurn)

	board := r.sync(t, r.b).Board.([][]string)
	for _, row := range board {
		for _, cell := range row {
			assert.Empty(t, cell)
		}
	}
}

func TestManager_MalformedAndIllegalMoves(t *testing.T) {
	r := startSession(t, nil)

	r.move(t, r.a, 7, 7)
	failure := testutil.Expect(t, r.a, message.Error).Payload.(message.Failure)
	assert.Contains(t, failure.Reason, "malformed")

	r.send(t, r.a, message.MoveMade, "not a move")
	failure = testutil.Expect(t, r.a, message.Error).Payload.(message.Failure)
	assert.Equal(t, reasonNoMove, failure.Reason)

	r.move(t, r.a, 0, 0)
	testutil.Expect(t, r.b, message.YourTurn)
	r.move(t, r.b, 0, 0)
	failure = testutil.Expect(t, r.b, message.Error).Payload.(message.Failure)
	assert.Equal(t, reasonRejected, failure.Reason)
	assert.Equal(t, Running, r.sc.State())
}

func TestManager_NonParticipantGetsError(t *testing.T) {
	r := startSession(t, nil)
	testutil.Expect(t, r.a, message.YourTurn)
	stranger := player.NewConn(9, "mallory", 1000, 4)
	require.NoError(t, r.sc.Send(message.FromPlayer(message.MoveMade, stranger, message.Move{Coords: []int{0, 0}})))

	failure := testutil.Expect(t, stranger, message.Error).Payload.(message.Failure)
	assert.Equal(t, reasonNotParticipant, failure.Reason)
	assert.Equal(t, "", r.sync(t, r.a).Board.([][]string)[0][0])
}

func TestManager_WinCompletesAndDeregisters_ScenarioD(t *testing.T) {
	r := startSession(t, nil)
	// X takes the top row.
	for _, mv := range [][2]int{{0, 0}, {1, 0}, {0, 1}, {1, 1}} {
		p := r.a
		if mv[0] == 1 {
			p = r.b
		}
		r.move(t, p, mv[0], mv[1])
	}
	r.move(t, r.a, 0, 2)

	won := testutil.Expect(t, r.b, message.GameWon).Payload.(message.Outcome)
	assert.Equal(t, int64(1), won.WinnerID)
	assert.Equal(t, "alice", won.WinnerName)
	r.waitDone(t)

	assert.Equal(t, Completed, r.sc.State())
	assert.True(t, r.sc.Winner() == player.Handle(r.a))
	assert.Empty(t, r.reg.List())
	_, ok := r.reg.ByPlayer(r.a)
	assert.False(t, ok)
	_, ok = r.reg.ByPlayer(r.b)
	assert.False(t, ok)
	assert.ErrorIs(t, r.sc.Send(message.FromPlayer(message.Connect, r.a, nil)), ErrInboxClosed)
	for _, msg := range testutil.Drain(r.a) {
		assert.NotEqual(t, message.Disconnect, msg.Type, "a completed game is not reported as cancelled")
	}
}

func TestManager_Draw(t *testing.T) {
	r := startSession(t, nil)
	// X O X / X O O / O X X
	moves := []struct {
		p        *player.Conn
		row, col int
	}{
		{r.a, 0, 0}, {r.b, 0, 1}, {r.a, 0, 2},
		{r.b, 1, 1}, {r.a, 1, 0}, {r.b, 1, 2},
		{r.a, 2, 1}, {r.b, 2, 0}, {r.a, 2, 2},
	}
	for _, mv := range moves {
		r.move(t, mv.p, mv.row, mv.col)
	}
	testutil.Expect(t, r.a, message.GameDrawn)
	r.waitDone(t)
	assert.Equal(t, Completed, r.sc.State())
	assert.Nil(t, r.sc.Winner())
}

func TestManager_DisconnectCancelsAndNotifiesOpponent(t *testing.T) {
	r := startSession(t, nil)
	r.send(t, r.b, message.Disconnect, nil)

	left := testutil.Expect(t, r.a, message.Disconnect)
	assert.Equal(t, message.Departure{PlayerID: 2}, left.Payload)
	r.waitDone(t)
	assert.Equal(t, Cancelled, r.sc.State())
	assert.Equal(t, 0, r.reg.Count())
	for _, msg := range testutil.Drain(r.b) {
		assert.NotEqual(t, message.Disconnect, msg.Type, "the leaver is not told it left")
	}
}

func TestManager_StopCancels(t *testing.T) {
	r := startSession(t, nil)
	testutil.Expect(t, r.a, message.YourTurn)
	r.sc.Stop()
	r.waitDone(t)
	assert.Equal(t, Cancelled, r.sc.State())
	_, ok := r.reg.BySessionID("s-1")
	assert.False(t, ok)

	for _, p := range []*player.Conn{r.a, r.b} {
		ended := testutil.Expect(t, p, message.Disconnect)
		assert.Equal(t, "s-1", ended.SessionID)
		assert.Nil(t, ended.Payload)
	}
}

func TestManager_SystemDisconnectNotifiesBoth(t *testing.T) {
	r := startSession(t, nil)
	require.NoError(t, r.sc.Send(message.System(message.Disconnect, nil)))
	r.waitDone(t)
	assert.Equal(t, Cancelled, r.sc.State())
	testutil.Expect(t, r.a, message.Disconnect)
	testutil.Expect(t, r.b, message.Disconnect)
}

type panicOnMove struct{ logic.Logic }

func (panicOnMove) ApplyMove(player.Handle, message.Move) (bool, error) {
	panic("rules exploded")
}

func TestManager_PanicIsIsolated(t *testing.T) {
	r := startSession(t, func(g logic.Logic) logic.Logic { return panicOnMove{g} })
	r.move(t, r.a, 0, 0)
	r.waitDone(t)
	assert.Equal(t, Cancelled, r.sc.State())
	assert.Equal(t, 0, r.reg.Count())
	testutil.Expect(t, r.a, message.Disconnect)
	testutil.Expect(t, r.b, message.Disconnect)
}
