package gameserver

import (
	"context"

	"github.com/tobyv/gamenight/internal/hub"
	"github.com/tobyv/gamenight/internal/message"
)

// ChatHandler relays chat messages and typing indicators to the sender's
// group channel, across processes.
type ChatHandler struct {
	broadcaster Broadcaster
}

// NewChatHandler creates a ChatHandler.
//
// Precondition: b must be non-nil.
func NewChatHandler(b Broadcaster) *ChatHandler {
	return &ChatHandler{broadcaster: b}
}

// Handle relays one chat or typing message. The envelope is re-stamped with
// the verified sender id; clients filter their own echoes by sender.
func (c *ChatHandler) Handle(ctx context.Context, sender *hub.Conn, env message.Envelope) error {
	var payload message.ChatPayload
	if env.Type == message.TypeChatMessage {
		if err := env.DecodeData(&payload); err != nil {
			return replyError(sender, err)
		}
	}

	channel := hub.GroupChannel(sender.GroupID())
	out, err := message.New(env.Type, payload)
	if err != nil {
		return err
	}
	c.broadcaster.Broadcast(ctx, channel, out.WithSender(sender.UserID()).WithChannel(channel))
	return nil
}
