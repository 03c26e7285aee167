package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/retroarcade/internal/game/logic"
	"github.com/cory-johannsen/retroarcade/internal/game/message"
	"github.com/cory-johannsen/retroarcade/internal/game/player"
	"github.com/cory-johannsen/retroarcade/internal/observability"
)

// Notification texts sent with Error messages.
const (
	reasonPaused         = "game is paused"
	reasonRejected       = "move rejected"
	reasonNotParticipant = "not a participant in this session"
	reasonNoMove         = "malformed move: payload is not a move"
)

// Manager drives one session: it owns the game logic and is the only
// goroutine that mutates it.
type Manager struct {
	sc       *Context
	game     logic.Logic
	registry *Registry
	logger   *zap.Logger
	metrics  *observability.Metrics

	pausedBy player.Handle
	// told is set once participants have heard why the session ended.
	told bool
}

// NewManager wires a session worker.
//
// Precondition: sc, game and registry must be non-nil.
func NewManager(sc *Context, game logic.Logic, registry *Registry, logger *zap.Logger, metrics *observability.Metrics) *Manager {
	return &Manager{
		sc:       sc,
		game:     game,
		registry: registry,
		logger:   logger.With(zap.String("session", sc.ID()), zap.String("kind", string(sc.Kind()))),
		metrics:  metrics,
	}
}

// Context returns the managed session.
func (m *Manager) Context() *Context { return m.sc }

// Run attaches the session and processes its inbox until the session reaches
// a terminal state, the inbox is closed or ctx is cancelled.
//
// Postcondition: the session is terminal, its inbox is closed and it is no
// longer registered, however the loop exited.
func (m *Manager) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.sc.setStop(cancel)
	defer cancel()
	defer m.finish()

	m.attach()

	for {
		select {
		case <-ctx.Done():
			m.sc.setState(Cancelled)
			return
		case msg, ok := <-m.sc.Inbox().Receive():
			if !ok {
				m.sc.setState(Cancelled)
				return
			}
			m.metrics.MessageProcessed(msg.Type.String())
			if done := m.handle(msg); done {
				return
			}
		}
	}
}

// finish is the cleanup every exit path runs, including a panic in the
// game logic.
func (m *Manager) finish() {
	if r := recover(); r != nil {
		m.logger.Error("session worker panicked", zap.Any("panic", r), zap.Stack("stack"))
	}
	m.sc.setState(Cancelled)
	if !m.told && m.sc.State() == Cancelled {
		// No participant caused the cancellation, so nobody has been told.
		m.broadcast(m.notice(message.Disconnect, nil))
	}
	m.sc.Inbox().Close()
	m.registry.Deregister(m.sc.ID())

	state := m.sc.State()
	lived := time.Since(m.sc.StartTime())
	m.metrics.SessionEnded(string(m.sc.Kind()), state.String(), lived)

	fields := []zap.Field{zap.Stringer("state", state), zap.Duration("lived", lived)}
	if w := m.sc.Winner(); w != nil {
		fields = append(fields, zap.Int64("winner", w.ID()))
	}
	m.logger.Info("session ended", fields...)
}

func (m *Manager) attach() {
	if !m.sc.setState(Running) {
		return
	}
	m.game.Initialize()
	for _, p := range m.sc.Participants() {
		m.sendState(p)
	}
	m.announceTurn()
	m.logger.Info("session started",
		zap.Int64("first", m.game.CurrentPlayer().ID()),
		zap.Int64("second", m.sc.Opponent(m.game.CurrentPlayer()).ID()),
	)
}

// handle applies one inbox message and reports whether the session ended.
func (m *Manager) handle(msg message.Message) bool {
	if msg.From == nil {
		// Only a system disconnect is meaningful without a sender.
		if msg.Type == message.Disconnect {
			m.logger.Info("session cancelled by system")
			m.sc.setState(Cancelled)
			return true
		}
		m.logger.Debug("ignoring message without sender", zap.Stringer("msg", msg))
		return false
	}

	p := m.participant(msg.From)
	if p == nil {
		m.logger.Warn("message from non-participant", zap.Stringer("msg", msg))
		if h, ok := msg.From.(player.Handle); ok {
			m.deliver(h, m.failure(reasonNotParticipant))
		}
		return false
	}

	switch msg.Type {
	case message.MoveMade:
		return m.onMove(p, msg.Payload)
	case message.Disconnect:
		m.onDisconnect(p)
		return true
	case message.PauseRequest:
		m.onPause(p)
	case message.ResumeRequest:
		m.onResume(p)
	case message.Connect, message.StateUpdate:
		m.sendState(p)
	default:
		m.logger.Debug("ignoring message", zap.Stringer("msg", msg))
	}
	return false
}

func (m *Manager) participant(from message.Sender) player.Handle {
	for _, p := range m.sc.Participants() {
		if from == p {
			return p
		}
	}
	return nil
}

func (m *Manager) onMove(p player.Handle, payload any) bool {
	if m.sc.State() == Paused {
		m.deliver(p, m.failure(reasonPaused))
		return false
	}
	if p != m.game.CurrentPlayer() {
		m.deliver(p, m.notice(message.NotYourTurn, nil))
		return false
	}

	var move message.Move
	switch v := payload.(type) {
	case message.Move:
		move = v
	case *message.Move:
		if v == nil {
			m.deliver(p, m.failure(reasonNoMove))
			return false
		}
		move = *v
	default:
		m.deliver(p, m.failure(reasonNoMove))
		return false
	}

	accepted, err := m.game.ApplyMove(p, move)
	if err != nil {
		m.deliver(p, m.failure(err.Error()))
		return false
	}
	if !accepted {
		m.deliver(p, m.failure(reasonRejected))
		return false
	}

	m.deliver(m.sc.Opponent(p), m.notice(message.MoveMade, move))
	for _, q := range m.sc.Participants() {
		m.sendState(q)
	}

	if !m.game.IsOver() {
		m.announceTurn()
		return false
	}

	winner := m.game.Winner()
	m.sc.complete(winner)
	if winner == nil {
		m.broadcast(m.notice(message.GameDrawn, nil))
	} else {
		m.broadcast(m.notice(message.GameWon, message.Outcome{WinnerID: winner.ID(), WinnerName: winner.Name()}))
	}
	return true
}

func (m *Manager) onDisconnect(p player.Handle) {
	m.sc.setState(Cancelled)
	m.told = true
	m.logger.Info("participant disconnected", zap.Int64("player", p.ID()))
	m.deliver(m.sc.Opponent(p), m.notice(message.Disconnect, message.Departure{PlayerID: p.ID()}))
}

func (m *Manager) onPause(p player.Handle) {
	if m.sc.State() != Running || p != m.game.CurrentPlayer() {
		m.logger.Debug("pause ignored", zap.Int64("player", p.ID()), zap.Stringer("state", m.sc.State()))
		return
	}
	m.sc.setState(Paused)
	m.game.Pause()
	m.pausedBy = p
	m.broadcast(m.notice(message.Paused, message.Pause{ByPlayer: p.ID()}))
}

func (m *Manager) onResume(p player.Handle) {
	if m.sc.State() != Paused || p != m.pausedBy {
		m.logger.Debug("resume ignored", zap.Int64("player", p.ID()), zap.Stringer("state", m.sc.State()))
		return
	}
	m.sc.setState(Running)
	m.game.Resume()
	m.pausedBy = nil
	m.broadcast(m.notice(message.Resumed, nil))
	m.announceTurn()
}

func (m *Manager) announceTurn() {
	current := m.game.CurrentPlayer()
	m.deliver(current, m.notice(message.YourTurn, nil))
	m.deliver(m.sc.Opponent(current), m.notice(message.OtherTurn, nil))
}

func (m *Manager) sendState(p player.Handle) {
	update := message.Snapshot{Board: m.game.State(), PlayerID: p.ID()}
	if pa, ok := m.game.(logic.PieceAssigner); ok {
		update.Piece = pa.Piece(p)
	}
	m.deliver(p, m.notice(message.StateUpdate, update))
}

func (m *Manager) broadcast(msg message.Message) {
	for _, p := range m.sc.Participants() {
		m.deliver(p, msg)
	}
}

func (m *Manager) notice(t message.Type, payload any) message.Message {
	return message.FromSession(t, m.sc.ID(), payload)
}

func (m *Manager) failure(reason string) message.Message {
	return m.notice(message.Error, message.Failure{Reason: reason})
}

func (m *Manager) deliver(p player.Handle, msg message.Message) {
	if p == nil {
		return
	}
	if err := p.Deliver(msg); err != nil {
		m.metrics.DeliveryFailed()
		m.logger.Warn("notification not delivered",
			zap.Int64("player", p.ID()),
			zap.Stringer("type", msg.Type),
			zap.Error(err),
		)
	}
}
