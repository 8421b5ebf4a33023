// Package gameserver wires the game engine, session registry, connection
// hub, and pub/sub bridge together behind the message dispatcher.
package gameserver

import (
	"context"
	"fmt"

	"github.com/tobyv/gamenight/internal/dispatch"
	"github.com/tobyv/gamenight/internal/game/mafia"
	"github.com/tobyv/gamenight/internal/game/registry"
	"github.com/tobyv/gamenight/internal/hub"
	"github.com/tobyv/gamenight/internal/message"
)

// SessionChannel returns the fan-out channel name for a game session.
func SessionChannel(sessionID string) string { return "session:" + sessionID }

// Broadcaster is the delivery surface the handlers fan events out through.
// bus.Bridge satisfies it; tests use the hub directly behind a local shim.
type Broadcaster interface {
	Broadcast(ctx context.Context, channel string, env message.Envelope) int
}

// RegisterHandlers attaches every gameserver handler to the dispatcher.
func RegisterHandlers(d *dispatch.Dispatcher, sessions *SessionHandler, games *GameHandler, chat *ChatHandler, presence *PresenceHandler) {
	d.Register(message.TypeCreateGame, sessions)
	d.Register(message.TypeJoinGame, sessions)
	d.Register(message.TypeLeaveGame, sessions)
	d.Register(message.TypeStartGame, sessions)
	d.Register(message.TypeGetState, sessions)
	d.Register(message.TypeNightAction, games)
	d.Register(message.TypeVote, games)
	d.Register(message.TypeResolveVoting, games)
	d.Register(message.TypeChatMessage, chat)
	d.Register(message.TypeTypingIndicator, chat)
	d.Register(message.TypePresenceQuery, presence)
	d.Register(message.TypeSubscribe, presence)
	d.Register(message.TypeUnsubscribe, presence)
}

// replyError sends a validation error back to the submitting connection
// only. It never reaches other players.
func replyError(conn *hub.Conn, cause error) error {
	env, err := message.New(message.TypeNotification, message.NotificationPayload{
		Event:  "error",
		Detail: cause.Error(),
	})
	if err != nil {
		return err
	}
	return conn.Push(env)
}

// wireEvent converts one engine event into its wire envelope.
func wireEvent(ev mafia.Event) (message.Envelope, error) {
	switch ev.Type {
	case mafia.EventRoleAssigned:
		return message.New(message.TypeRoleAssigned, ev.Payload)
	case mafia.EventPhaseChange:
		return message.New(message.TypePhaseChange, ev.Payload)
	case mafia.EventNightActionRequest:
		return message.New(message.TypeNightActionRequest, ev.Payload)
	case mafia.EventVotingStarted:
		return message.New(message.TypeVotingStarted, ev.Payload)
	case mafia.EventVoteCast:
		return message.New(message.TypeVoteCast, ev.Payload)
	case mafia.EventPlayerEliminated:
		return message.New(message.TypePlayerEliminated, ev.Payload)
	case mafia.EventGameOver:
		return message.New(message.TypeGameOver, ev.Payload)
	case mafia.EventPlayerProtected:
		return message.New(message.TypeNotification, message.NotificationPayload{
			Event: "player_protected",
		})
	case mafia.EventInvestigationResult:
		return message.New(message.TypeNotification, struct {
			Event string `json:"event"`
			mafia.InvestigationPayload
		}{Event: "investigation_result", InvestigationPayload: ev.Payload.(mafia.InvestigationPayload)})
	default:
		return message.Envelope{}, fmt.Errorf("unmapped engine event %q", ev.Type)
	}
}

// sessionRef extracts and validates the session reference from an inbound
// payload, confirming the session exists.
func sessionRef(reg *registry.Registry, env message.Envelope) (*registry.Session, error) {
	var ref message.SessionRefPayload
	if err := env.DecodeData(&ref); err != nil {
		return nil, err
	}
	return reg.Get(ref.SessionID)
}
