// Package message defines the wire envelope exchanged between clients,
// server processes, and the pub/sub bus.
package message

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type identifies the kind of message carried by an Envelope.
type Type string

// Connection and chat message types.
const (
	TypeConnect         Type = "connect"
	TypeDisconnect      Type = "disconnect"
	TypeHeartbeat       Type = "heartbeat"
	TypeChatMessage     Type = "chat_message"
	TypeTypingIndicator Type = "typing_indicator"
	TypeNotification    Type = "notification"
	TypePresenceQuery   Type = "presence_query"
	TypeSubscribe       Type = "subscribe"
	TypeUnsubscribe     Type = "unsubscribe"
)

// Session operation types (inbound).
const (
	TypeCreateGame Type = "create_game"
	TypeJoinGame   Type = "join_game"
	TypeLeaveGame  Type = "leave_game"
	TypeStartGame  Type = "start_game"
	TypeGetState   Type = "get_state"
)

// Game action types (inbound).
const (
	TypeNightAction   Type = "night_action"
	TypeVote          Type = "vote"
	TypeResolveVoting Type = "resolve_voting"
)

// Game event types (outbound).
const (
	TypeRoleAssigned       Type = "role_assigned"
	TypePhaseChange        Type = "phase_change"
	TypeVotingStarted      Type = "voting_started"
	TypeVoteCast           Type = "vote_cast"
	TypePlayerEliminated   Type = "player_eliminated"
	TypeNightActionRequest Type = "night_action_request"
	TypeGameOver           Type = "game_over"
)

// Valid reports whether t is a recognised message type.
func (t Type) Valid() bool {
	switch t {
	case TypeConnect, TypeDisconnect, TypeHeartbeat, TypeChatMessage,
		TypeTypingIndicator, TypeNotification, TypePresenceQuery,
		TypeSubscribe, TypeUnsubscribe,
		TypeCreateGame, TypeJoinGame, TypeLeaveGame, TypeStartGame, TypeGetState,
		TypeNightAction, TypeVote, TypeResolveVoting,
		TypeRoleAssigned, TypePhaseChange, TypeVotingStarted, TypeVoteCast,
		TypePlayerEliminated, TypeNightActionRequest, TypeGameOver:
		return true
	}
	return false
}

// Envelope is the transport-agnostic wire message. It is constructed once
// and never mutated; serialization happens only at the transport and bus
// boundaries.
type Envelope struct {
	Type      Type            `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	SenderID  string          `json:"sender_id,omitempty"`
	Channel   string          `json:"channel,omitempty"`
	// Targets optionally restricts delivery to an explicit user list.
	Targets []string `json:"targets,omitempty"`
}

// New builds an Envelope of the given type with payload marshalled into Data
// and the timestamp set to the current time.
//
// Precondition: typ must be a valid Type; payload may be nil.
// Postcondition: Returns an Envelope with non-zero Timestamp, or an error.
func New(typ Type, payload any) (Envelope, error) {
	env := Envelope{Type: typ, Timestamp: time.Now().UTC()}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("marshalling %s payload: %w", typ, err)
		}
		env.Data = data
	}
	return env, nil
}

// WithSender returns a copy of the envelope with the sender id set.
func (e Envelope) WithSender(userID string) Envelope {
	e.SenderID = userID
	return e
}

// WithChannel returns a copy of the envelope with the channel set.
func (e Envelope) WithChannel(channel string) Envelope {
	e.Channel = channel
	return e
}

// WithTargets returns a copy of the envelope addressed to an explicit user list.
func (e Envelope) WithTargets(userIDs ...string) Envelope {
	e.Targets = userIDs
	return e
}

// Encode serializes the envelope to JSON.
func (e Envelope) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encoding envelope: %w", err)
	}
	return data, nil
}

// Decode parses an envelope from JSON.
//
// Postcondition: Returns a non-zero Envelope or an error if the data is not
// valid JSON or carries an unknown type.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decoding envelope: %w", err)
	}
	if !env.Type.Valid() {
		return Envelope{}, fmt.Errorf("unknown message type %q", env.Type)
	}
	return env, nil
}

// DecodeData unmarshals the envelope payload into out.
func (e Envelope) DecodeData(out any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("message %s has no payload", e.Type)
	}
	if err := json.Unmarshal(e.Data, out); err != nil {
		return fmt.Errorf("decoding %s payload: %w", e.Type, err)
	}
	return nil
}
