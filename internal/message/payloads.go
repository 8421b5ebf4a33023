package message

// Payload shapes for the inbound operation messages. Outbound event payloads
// live with the components that produce them.

// ChatPayload carries a chat_message or typing_indicator body.
type ChatPayload struct {
	Text string `json:"text,omitempty"`
}

// CreateGamePayload carries a create_game request.
type CreateGamePayload struct {
	GameType string `json:"game_type"`
}

// SessionRefPayload carries any request addressed at an existing session.
type SessionRefPayload struct {
	SessionID string `json:"session_id"`
}

// NightActionPayload carries a night_action submission.
type NightActionPayload struct {
	SessionID string `json:"session_id"`
	Action    string `json:"action"`
	TargetID  string `json:"target_id"`
}

// VotePayload carries a vote submission.
type VotePayload struct {
	SessionID string `json:"session_id"`
	TargetID  string `json:"target_id"`
}

// ChannelPayload carries a subscribe or unsubscribe request.
type ChannelPayload struct {
	Channel string `json:"channel"`
}

// PresenceQueryPayload carries a presence_query request. Exactly one of
// UserID or GroupID should be set.
type PresenceQueryPayload struct {
	UserID  string `json:"user_id,omitempty"`
	GroupID string `json:"group_id,omitempty"`
}

// NotificationPayload carries a notification body.
type NotificationPayload struct {
	Event  string `json:"event"`
	UserID string `json:"user_id,omitempty"`
	Detail string `json:"detail,omitempty"`
}
