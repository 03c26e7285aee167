// Package message defines the envelope exchanged between players, the
// matchmaking layer, and live game sessions.
package message

import "fmt"

// Type identifies the purpose of a Message.
type Type int

const (
	// Connect announces that a player has (re)attached to a session.
	Connect Type = iota
	// Disconnect announces that a player has left. Payload: Departure when a
	// session reports a departed participant, nil when sent by a player or
	// when a session was cancelled with both participants still seated.
	Disconnect
	// Error reports a rejected action. Payload: Failure.
	Error
	// PauseRequest asks the session to pause. Only the current-turn player may pause.
	PauseRequest
	// ResumeRequest asks the session to resume. Only the pausing player may resume.
	ResumeRequest
	// Paused acknowledges a pause to every participant. Payload: Pause.
	Paused
	// Resumed acknowledges a resume to every participant.
	Resumed
	// YourTurn tells a participant that it is their move.
	YourTurn
	// OtherTurn tells a participant that the opponent is to move.
	OtherTurn
	// NotYourTurn tells the sender that a move arrived out of turn.
	NotYourTurn
	// MoveMade carries a move from a player to a session. Payload: Move.
	MoveMade
	// GameWon announces the winner. Payload: Outcome.
	GameWon
	// GameDrawn announces a draw.
	GameDrawn
	// StateUpdate carries a board snapshot. Payload: Snapshot.
	StateUpdate
)

var typeNames = map[Type]string{
	Connect:       "connect",
	Disconnect:    "disconnect",
	Error:         "error",
	PauseRequest:  "pause_request",
	ResumeRequest: "resume_request",
	Paused:        "paused",
	Resumed:       "resumed",
	YourTurn:      "your_turn",
	OtherTurn:     "other_turn",
	NotYourTurn:   "not_your_turn",
	MoveMade:      "move_made",
	GameWon:       "game_won",
	GameDrawn:     "game_drawn",
	StateUpdate:   "state_update",
}

// String returns the snake_case name of the type.
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// TurnBound reports whether a message of this type is only admissible from
// the current-turn player. Every other type is accepted from any sender.
func (t Type) TurnBound() bool {
	return t == MoveMade
}

// Sender is the originating identity of a player-sent message.
// Player handles satisfy it; comparison is by reference identity.
type Sender interface {
	ID() int64
}

// Message is an immutable envelope. At most one of From and SessionID is set;
// a message with neither is a pure system message.
type Message struct {
	Type      Type
	From      Sender
	SessionID string
	Payload   any
}

// FromPlayer builds a message originating from a player.
func FromPlayer(t Type, from Sender, payload any) Message {
	return Message{Type: t, From: from, Payload: payload}
}

// FromSession builds a message originating from a session.
func FromSession(t Type, sessionID string, payload any) Message {
	return Message{Type: t, SessionID: sessionID, Payload: payload}
}

// System builds a message with no originating identity.
func System(t Type, payload any) Message {
	return Message{Type: t, Payload: payload}
}

// String renders the message for logs.
func (m Message) String() string {
	switch {
	case m.From != nil:
		return fmt.Sprintf("%s from player %d", m.Type, m.From.ID())
	case m.SessionID != "":
		return fmt.Sprintf("%s from session %s", m.Type, m.SessionID)
	default:
		return m.Type.String()
	}
}

// Move is the payload of a MoveMade message. Coords are game specific:
// [row, col] for grid placement games, [col] for drop games.
type Move struct {
	Coords []int
}

// Failure is the payload of an Error message.
type Failure struct {
	Reason string
}

// Pause is the payload of a Paused message.
type Pause struct {
	ByPlayer int64
}

// Departure is the payload of a session-sent Disconnect message.
type Departure struct {
	PlayerID int64
}

// Outcome is the payload of a GameWon message.
type Outcome struct {
	WinnerID   int64
	WinnerName string
}

// Snapshot is the payload of a StateUpdate message. PlayerID and Piece
// describe the recipient; Piece is empty when the game has no piece identity.
type Snapshot struct {
	Board    any
	PlayerID int64
	Piece    string
}
