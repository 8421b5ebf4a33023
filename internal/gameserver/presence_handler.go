package gameserver

import (
	"context"
	"errors"

	"github.com/tobyv/gamenight/internal/hub"
	"github.com/tobyv/gamenight/internal/message"
)

// PresenceHandler answers presence queries and manages explicit channel
// subscriptions for a connection.
type PresenceHandler struct {
	hub *hub.Hub
}

// NewPresenceHandler creates a PresenceHandler.
//
// Precondition: h must be non-nil.
func NewPresenceHandler(h *hub.Hub) *PresenceHandler {
	return &PresenceHandler{hub: h}
}

// presenceReply is the presence_query response payload.
type presenceReply struct {
	User  *hub.Presence           `json:"user,omitempty"`
	Group map[string]hub.Presence `json:"group,omitempty"`
}

// Handle routes one presence or subscription message.
func (p *PresenceHandler) Handle(_ context.Context, sender *hub.Conn, env message.Envelope) error {
	switch env.Type {
	case message.TypePresenceQuery:
		return p.query(sender, env)
	case message.TypeSubscribe:
		return p.subscribe(sender, env, true)
	case message.TypeUnsubscribe:
		return p.subscribe(sender, env, false)
	default:
		return nil
	}
}

func (p *PresenceHandler) query(sender *hub.Conn, env message.Envelope) error {
	var payload message.PresenceQueryPayload
	if err := env.DecodeData(&payload); err != nil {
		return replyError(sender, err)
	}

	var reply presenceReply
	switch {
	case payload.UserID != "":
		presence := p.hub.UserPresence(payload.UserID)
		reply.User = &presence
	case payload.GroupID != "":
		reply.Group = p.hub.GroupPresence(payload.GroupID)
	default:
		return replyError(sender, errors.New("presence_query needs a user_id or group_id"))
	}

	out, err := message.New(message.TypePresenceQuery, reply)
	if err != nil {
		return err
	}
	return sender.Push(out)
}

func (p *PresenceHandler) subscribe(sender *hub.Conn, env message.Envelope, add bool) error {
	var payload message.ChannelPayload
	if err := env.DecodeData(&payload); err != nil {
		return replyError(sender, err)
	}
	if payload.Channel == "" {
		return replyError(sender, errors.New("channel must not be empty"))
	}
	if add {
		return p.hub.Subscribe(sender.ID(), payload.Channel)
	}
	return p.hub.Unsubscribe(sender.ID(), payload.Channel)
}
