package bot

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cory-johannsen/retroarcade/internal/game/logic"
	"github.com/cory-johannsen/retroarcade/internal/game/message"
	"github.com/cory-johannsen/retroarcade/internal/game/player"
	"github.com/cory-johannsen/retroarcade/internal/game/session"
)

// Arcade is the slice of the routing API a bot drives.
type Arcade interface {
	Join(kind logic.Kind, p player.Handle) error
	Submit(p player.Handle, t message.Type, payload any) error
	Disconnect(p player.Handle)
}

const (
	// maxAttempts bounds consecutive rejected moves within one turn.
	maxAttempts = 500
	// rejoinBackoff spaces Join retries while the finished session deregisters.
	rejoinBackoff = 10 * time.Millisecond
)

// Bot plays games as one simulated player. It is the player's message
// pump: it reads the player's outbox and answers through the Arcade.
type Bot struct {
	conn   *player.Conn
	kind   logic.Kind
	games  int
	think  time.Duration
	sample func(*rand.Rand) message.Move
	arcade Arcade
	rng    *rand.Rand
	logger *zap.Logger

	played   int
	wins     int
	myTurn   bool
	attempts int
}

// New creates a bot for entry e playing the game def describes.
//
// Precondition: e has passed Validate; def.SampleMove must be non-nil.
func New(id int64, e Entry, def logic.Definition, arcade Arcade, outboxSize int, logger *zap.Logger) (*Bot, error) {
	if def.SampleMove == nil {
		return nil, fmt.Errorf("bot %q: game %q has no move sampler", e.Name, def.Kind)
	}
	return &Bot{
		conn:   player.NewConn(id, e.Name, e.Rating, outboxSize),
		kind:   def.Kind,
		games:  e.Games,
		think:  e.Think(),
		sample: def.SampleMove,
		arcade: arcade,
		rng:    rand.New(rand.NewPCG(uint64(id), uint64(time.Now().UnixNano()))),
		logger: logger.With(zap.String("bot", e.Name), zap.Int64("player", id)),
	}, nil
}

// Player returns the bot's handle.
func (b *Bot) Player() *player.Conn { return b.conn }

// Played returns the number of finished games.
func (b *Bot) Played() int { return b.played }

// Wins returns the number of games won.
func (b *Bot) Wins() int { return b.wins }

// Run joins the queue and plays until the game quota is reached or ctx is
// cancelled.
//
// Postcondition: The bot has left every queue and session and its
// connection is closed.
func (b *Bot) Run(ctx context.Context) error {
	defer b.conn.Close()
	defer b.arcade.Disconnect(b.conn)

	if err := b.join(ctx); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-b.conn.Outbox():
			done, err := b.handle(ctx, msg)
			if err != nil || done {
				return err
			}
		}
	}
}

func (b *Bot) handle(ctx context.Context, msg message.Message) (bool, error) {
	switch msg.Type {
	case message.YourTurn:
		b.myTurn = true
		b.attempts = 0
		return false, b.move(ctx)
	case message.OtherTurn, message.NotYourTurn:
		b.myTurn = false
	case message.Error:
		if msg.SessionID == "" {
			// The match never started and the bot was not re-queued.
			b.logger.Debug("match failed, rejoining", zap.Any("reason", msg.Payload))
			return false, b.join(ctx)
		}
		if b.myTurn {
			return false, b.move(ctx)
		}
	case message.GameWon, message.GameDrawn, message.Disconnect:
		if out, ok := msg.Payload.(message.Outcome); ok && out.WinnerID == b.conn.ID() {
			b.wins++
		}
		b.played++
		b.myTurn = false
		b.logger.Debug("game over", zap.Stringer("result", msg.Type), zap.Int("played", b.played))
		if b.games > 0 && b.played >= b.games {
			return true, nil
		}
		return false, b.join(ctx)
	}
	return false, nil
}

func (b *Bot) move(ctx context.Context) error {
	b.attempts++
	if b.attempts > maxAttempts {
		return fmt.Errorf("bot %s: no legal move after %d attempts", b.conn.Name(), maxAttempts)
	}
	if b.think > 0 {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(b.think):
		}
	}
	if err := b.arcade.Submit(b.conn, message.MoveMade, b.sample(b.rng)); err != nil {
		// The session ended or is saturated; its next notification drives the bot.
		b.logger.Debug("move not submitted", zap.Error(err))
	}
	return nil
}

// join queues the bot, retrying while its last session is still registered.
func (b *Bot) join(ctx context.Context) error {
	for {
		err := b.arcade.Join(b.kind, b.conn)
		if err == nil || !errors.Is(err, session.ErrPlayerSeated) {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(rejoinBackoff):
		}
	}
}

// FromRoster builds one bot per roster entry with ids counting up from firstID.
//
// Postcondition: Returns an error wrapping logic.ErrUnsupportedKind when an
// entry names a game that is not registered.
func FromRoster(r *Roster, games *logic.Registry, arcade Arcade, firstID int64, outboxSize int, logger *zap.Logger) ([]*Bot, error) {
	bots := make([]*Bot, 0, len(r.Bots))
	for i, e := range r.Bots {
		def, ok := games.Lookup(logic.Kind(e.Kind))
		if !ok {
			return nil, fmt.Errorf("bot %q: %w: %q", e.Name, logic.ErrUnsupportedKind, e.Kind)
		}
		b, err := New(firstID+int64(i), e, def, arcade, outboxSize, logger)
		if err != nil {
			return nil, err
		}
		bots = append(bots, b)
	}
	return bots, nil
}

// RunAll runs every bot until each finishes or ctx is cancelled.
//
// Postcondition: Returns the first bot error; the remaining bots are stopped.
func RunAll(ctx context.Context, bots []*Bot) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, b := range bots {
		g.Go(func() error { return b.Run(ctx) })
	}
	return g.Wait()
}
