package gameserver

import (
	"context"

	"go.uber.org/zap"

	"github.com/tobyv/gamenight/internal/game/registry"
	"github.com/tobyv/gamenight/internal/hub"
	"github.com/tobyv/gamenight/internal/message"
)

// SessionHandler routes session lifecycle messages: creating, joining, and
// starting games, plus per-requester state snapshots.
type SessionHandler struct {
	registry    *registry.Registry
	hub         *hub.Hub
	broadcaster Broadcaster
	games       *GameHandler
	logger      *zap.Logger
}

// NewSessionHandler creates a SessionHandler with the given dependencies.
//
// Precondition: all arguments must be non-nil.
func NewSessionHandler(reg *registry.Registry, h *hub.Hub, b Broadcaster, games *GameHandler, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		registry:    reg,
		hub:         h,
		broadcaster: b,
		games:       games,
		logger:      logger,
	}
}

// Handle routes one inbound session operation message.
func (s *SessionHandler) Handle(ctx context.Context, sender *hub.Conn, env message.Envelope) error {
	switch env.Type {
	case message.TypeCreateGame:
		return s.create(ctx, sender, env)
	case message.TypeJoinGame:
		return s.join(ctx, sender, env)
	case message.TypeLeaveGame:
		return s.leave(ctx, sender, env)
	case message.TypeStartGame:
		return s.start(ctx, sender, env)
	case message.TypeGetState:
		return s.state(ctx, sender, env)
	default:
		return nil
	}
}

func (s *SessionHandler) create(_ context.Context, sender *hub.Conn, env message.Envelope) error {
	var payload message.CreateGamePayload
	if err := env.DecodeData(&payload); err != nil {
		return replyError(sender, err)
	}

	sess, err := s.registry.CreateSession(payload.GameType, sender.UserID(), sender.Name())
	if err != nil {
		return replyError(sender, err)
	}
	if err := s.hub.Subscribe(sender.ID(), SessionChannel(sess.ID)); err != nil {
		return err
	}

	s.logger.Info("session created",
		zap.String("session_id", sess.ID),
		zap.String("game_type", sess.GameType.ID),
		zap.String("host_id", sess.HostID),
	)
	return s.pushSnapshot(sender, sess.ID)
}

func (s *SessionHandler) join(ctx context.Context, sender *hub.Conn, env message.Envelope) error {
	var ref message.SessionRefPayload
	if err := env.DecodeData(&ref); err != nil {
		return replyError(sender, err)
	}

	sess, err := s.registry.Join(ref.SessionID, sender.UserID(), sender.Name())
	if err != nil {
		return replyError(sender, err)
	}
	if err := s.hub.Subscribe(sender.ID(), SessionChannel(sess.ID)); err != nil {
		return err
	}

	if joined, err := message.New(message.TypeNotification, message.NotificationPayload{
		Event:  "player_joined",
		UserID: sender.UserID(),
	}); err == nil {
		s.broadcaster.Broadcast(ctx, SessionChannel(sess.ID), joined.WithChannel(SessionChannel(sess.ID)))
	}
	return s.pushSnapshot(sender, sess.ID)
}

func (s *SessionHandler) leave(ctx context.Context, sender *hub.Conn, env message.Envelope) error {
	var ref message.SessionRefPayload
	if err := env.DecodeData(&ref); err != nil {
		return replyError(sender, err)
	}

	sess, cancelled, err := s.registry.Leave(ref.SessionID, sender.UserID())
	if err != nil {
		return replyError(sender, err)
	}

	event := "player_left"
	if cancelled {
		event = "session_cancelled"
		s.logger.Info("session cancelled by host leaving",
			zap.String("session_id", sess.ID),
		)
	}
	if note, err := message.New(message.TypeNotification, message.NotificationPayload{
		Event:  event,
		UserID: sender.UserID(),
	}); err == nil {
		s.broadcaster.Broadcast(ctx, SessionChannel(sess.ID), note.WithChannel(SessionChannel(sess.ID)))
	}
	return s.hub.Unsubscribe(sender.ID(), SessionChannel(sess.ID))
}

func (s *SessionHandler) start(ctx context.Context, sender *hub.Conn, env message.Envelope) error {
	var ref message.SessionRefPayload
	if err := env.DecodeData(&ref); err != nil {
		return replyError(sender, err)
	}

	sess, events, err := s.registry.Start(ref.SessionID, sender.UserID())
	if err != nil {
		return replyError(sender, err)
	}

	s.logger.Info("session started",
		zap.String("session_id", sess.ID),
		zap.Int("players", len(sess.Game.Players())),
	)
	s.games.AfterEngineEvents(ctx, sess, events)
	return nil
}

func (s *SessionHandler) state(_ context.Context, sender *hub.Conn, env message.Envelope) error {
	var ref message.SessionRefPayload
	if err := env.DecodeData(&ref); err != nil {
		return replyError(sender, err)
	}
	return s.pushSnapshot(sender, ref.SessionID)
}

// pushSnapshot sends the requester-scoped state view back on the
// requesting connection.
func (s *SessionHandler) pushSnapshot(sender *hub.Conn, sessionID string) error {
	snap, err := s.registry.SnapshotFor(sessionID, sender.UserID())
	if err != nil {
		return replyError(sender, err)
	}
	env, err := message.New(message.TypeGetState, snap)
	if err != nil {
		return err
	}
	return sender.Push(env)
}
