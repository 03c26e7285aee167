package bot_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/retroarcade/internal/arcade"
	"github.com/cory-johannsen/retroarcade/internal/bot"
	"github.com/cory-johannsen/retroarcade/internal/game/connectfour"
	"github.com/cory-johannsen/retroarcade/internal/game/logic"
	"github.com/cory-johannsen/retroarcade/internal/game/matchmaking"
	"github.com/cory-johannsen/retroarcade/internal/game/message"
	"github.com/cory-johannsen/retroarcade/internal/game/player"
	"github.com/cory-johannsen/retroarcade/internal/game/session"
	"github.com/cory-johannsen/retroarcade/internal/game/tictactoe"
)

func newArcade(t *testing.T) (*arcade.Server, *logic.Registry) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	games, err := logic.NewRegistry(tictactoe.Definition(), connectfour.Definition())
	require.NoError(t, err)
	tun := matchmaking.Tunables{BaseDelta: 50, ExpandInterval: time.Second, ExpandAmount: 50}
	mm := matchmaking.NewManager(logger, []matchmaking.KindConfig{
		{Kind: logic.TicTacToe, Tunables: tun},
		{Kind: logic.ConnectFour, Tunables: tun},
	})
	reg := session.NewRegistry()
	creator := session.NewCreator(mm, games, reg, logger, nil, session.WithTickInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		creator.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		creator.Close()
	})
	return arcade.NewServer(games, mm, reg, logger), games
}

func TestBotsPlayTheirQuota(t *testing.T) {
	for _, kind := range []string{"tictactoe", "connectfour"} {
		t.Run(kind, func(t *testing.T) {
			srv, games := newArcade(t)
			roster := &bot.Roster{Bots: []bot.Entry{
				{Name: "ada", Rating: 1000, Kind: kind, Games: 3},
				{Name: "grace", Rating: 1020, Kind: kind, Games: 3},
			}}
			bots, err := bot.FromRoster(roster, games, srv, 100, 64, zaptest.NewLogger(t))
			require.NoError(t, err)
			require.Len(t, bots, 2)

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
			defer cancel()
			require.NoError(t, bot.RunAll(ctx, bots))
			require.NoError(t, ctx.Err(), "bots did not finish their quota in time")

			for _, b := range bots {
				assert.Equal(t, 3, b.Played(), b.Player().Name())
			}
			assert.LessOrEqual(t, bots[0].Wins()+bots[1].Wins(), 3)
			require.Eventually(t, func() bool { return len(srv.Sessions()) == 0 }, 2*time.Second, 5*time.Millisecond)
			assert.Zero(t, srv.QueueSizes()[kind])
		})
	}
}

func TestFromRosterRejectsUnknownKind(t *testing.T) {
	srv, games := newArcade(t)
	roster := &bot.Roster{Bots: []bot.Entry{{Name: "ada", Kind: "chess"}}}
	_, err := bot.FromRoster(roster, games, srv, 1, 8, zaptest.NewLogger(t))
	assert.ErrorIs(t, err, logic.ErrUnsupportedKind)
}

func TestNewRequiresSampler(t *testing.T) {
	def := tictactoe.Definition()
	def.SampleMove = nil
	_, err := bot.New(1, bot.Entry{Name: "ada", Kind: "tictactoe"}, def, &recordingArcade{}, 8, zaptest.NewLogger(t))
	assert.Error(t, err)
}

// recordingArcade accepts everything and records what the bot asked for.
type recordingArcade struct {
	mu           sync.Mutex
	joins        int
	moves        []message.Move
	disconnected bool
}

func (r *recordingArcade) Join(logic.Kind, player.Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.joins++
	return nil
}

func (r *recordingArcade) Submit(_ player.Handle, _ message.Type, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.moves = append(r.moves, payload.(message.Move))
	return nil
}

func (r *recordingArcade) Disconnect(player.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnected = true
}

func (r *recordingArcade) snapshot() (int, int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.joins, len(r.moves), r.disconnected
}

func TestBotReactsToNotifications(t *testing.T) {
	rec := &recordingArcade{}
	b, err := bot.New(7, bot.Entry{Name: "ada", Kind: "tictactoe", Games: 1}, tictactoe.Definition(), rec, 8, zaptest.NewLogger(t))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- b.Run(context.Background()) }()

	out := b.Player()
	require.Eventually(t, func() bool { j, _, _ := rec.snapshot(); return j == 1 }, time.Second, time.Millisecond)

	// A pair that failed to start is not re-queued, so the bot joins again.
	require.NoError(t, out.Deliver(message.System(message.Error, message.Failure{Reason: "match could not be started"})))
	require.Eventually(t, func() bool { j, _, _ := rec.snapshot(); return j == 2 }, time.Second, time.Millisecond)

	require.NoError(t, out.Deliver(message.FromSession(message.YourTurn, "s1", nil)))
	require.Eventually(t, func() bool { _, m, _ := rec.snapshot(); return m == 1 }, time.Second, time.Millisecond)

	// A rejected move during the bot's turn is retried.
	require.NoError(t, out.Deliver(message.FromSession(message.Error, "s1", message.Failure{Reason: "move rejected"})))
	require.Eventually(t, func() bool { _, m, _ := rec.snapshot(); return m == 2 }, time.Second, time.Millisecond)

	require.NoError(t, out.Deliver(message.FromSession(message.GameWon, "s1", message.Outcome{WinnerID: 7, WinnerName: "ada"})))
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("bot did not stop after its quota")
	}
	_, _, left := rec.snapshot()
	assert.True(t, left)
	assert.Equal(t, 1, b.Played())
	assert.Equal(t, 1, b.Wins())
}
