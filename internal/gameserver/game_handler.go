package gameserver

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tobyv/gamenight/internal/game/mafia"
	"github.com/tobyv/gamenight/internal/game/registry"
	"github.com/tobyv/gamenight/internal/hub"
	"github.com/tobyv/gamenight/internal/message"
)

// Summary is the record handed to the optional persistence collaborator
// when a session completes.
type Summary struct {
	SessionID   string
	GameType    string
	HostID      string
	Winner      string
	Rounds      int
	PlayerCount int
	StartedAt   time.Time
	EndedAt     time.Time
}

// Archiver is the optional persistence collaborator. A nil Archiver is
// valid and skips archiving entirely.
type Archiver interface {
	Append(ctx context.Context, s Summary) error
}

// GameHandler routes night actions, votes, and vote resolution to the
// owning session's engine, fans the resulting events out, and drives the
// per-session phase deadline timers.
type GameHandler struct {
	registry    *registry.Registry
	hub         *hub.Hub
	broadcaster Broadcaster
	archiver    Archiver
	logger      *zap.Logger

	timersMu sync.Mutex
	timers   map[string]*sessionTimer
}

// sessionTimer is the armed deadline for one session, tagged with the phase
// window it covers so repeat engine calls within the window never extend it.
type sessionTimer struct {
	timer *mafia.PhaseTimer
	phase mafia.Phase
	round int
}

// NewGameHandler creates a GameHandler with the given dependencies.
//
// Precondition: reg, h, b, and logger must be non-nil; archiver may be nil.
func NewGameHandler(reg *registry.Registry, h *hub.Hub, b Broadcaster, archiver Archiver, logger *zap.Logger) *GameHandler {
	return &GameHandler{
		registry:    reg,
		hub:         h,
		broadcaster: b,
		archiver:    archiver,
		logger:      logger,
		timers:      make(map[string]*sessionTimer),
	}
}

// Handle routes one inbound game action message.
func (g *GameHandler) Handle(ctx context.Context, sender *hub.Conn, env message.Envelope) error {
	switch env.Type {
	case message.TypeNightAction:
		return g.nightAction(ctx, sender, env)
	case message.TypeVote:
		return g.vote(ctx, sender, env)
	case message.TypeResolveVoting:
		return g.resolveVoting(ctx, sender, env)
	default:
		return nil
	}
}

func (g *GameHandler) nightAction(ctx context.Context, sender *hub.Conn, env message.Envelope) error {
	var payload message.NightActionPayload
	if err := env.DecodeData(&payload); err != nil {
		return replyError(sender, err)
	}
	sess, err := g.registry.Get(payload.SessionID)
	if err != nil {
		return replyError(sender, err)
	}

	events, err := g.resolveSafely(ctx, sess, func() ([]mafia.Event, error) {
		return sess.Game.SubmitNightAction(sender.UserID(), mafia.ActionKind(payload.Action), payload.TargetID)
	})
	if err != nil {
		return replyError(sender, err)
	}
	g.registry.Touch(sess.ID)
	g.AfterEngineEvents(ctx, sess, events)
	return nil
}

func (g *GameHandler) vote(ctx context.Context, sender *hub.Conn, env message.Envelope) error {
	var payload message.VotePayload
	if err := env.DecodeData(&payload); err != nil {
		return replyError(sender, err)
	}
	sess, err := g.registry.Get(payload.SessionID)
	if err != nil {
		return replyError(sender, err)
	}

	events, err := sess.Game.CastVote(sender.UserID(), payload.TargetID)
	if err != nil {
		return replyError(sender, err)
	}
	g.registry.Touch(sess.ID)
	g.AfterEngineEvents(ctx, sess, events)
	return nil
}

// resolveVoting handles the host-triggered early close of the voting window.
func (g *GameHandler) resolveVoting(ctx context.Context, sender *hub.Conn, env message.Envelope) error {
	sess, err := sessionRef(g.registry, env)
	if err != nil {
		return replyError(sender, err)
	}
	if sess.HostID != sender.UserID() {
		return replyError(sender, registry.ErrNotHost)
	}

	events, err := g.resolveSafely(ctx, sess, sess.Game.ResolveVoting)
	if err != nil {
		return replyError(sender, err)
	}
	g.registry.Touch(sess.ID)
	g.AfterEngineEvents(ctx, sess, events)
	return nil
}

// AfterEngineEvents finishes an engine call: opens the voting window when
// the day begins, fans all resulting events out, re-arms the phase deadline
// timer, and closes out the session on game over.
func (g *GameHandler) AfterEngineEvents(ctx context.Context, sess *registry.Session, events []mafia.Event) {
	// The day phase exists only to open the voting window.
	if sess.Game.Phase() == mafia.PhaseDay {
		votingEvents, err := sess.Game.StartVoting()
		if err == nil {
			events = append(events, votingEvents...)
		}
	}

	g.fanout(ctx, sess, events)
	g.armTimer(sess)

	if sess.Game.Phase() == mafia.PhaseGameOver {
		g.finishSession(ctx, sess)
	}
}

// fanout delivers events: public ones to the session channel across all
// processes, private ones to every connection of the addressed user.
func (g *GameHandler) fanout(ctx context.Context, sess *registry.Session, events []mafia.Event) {
	for _, ev := range events {
		env, err := wireEvent(ev)
		if err != nil {
			g.logger.Error("mapping engine event", zap.Error(err))
			continue
		}
		env = env.WithChannel(SessionChannel(sess.ID))
		if ev.Public {
			g.broadcaster.Broadcast(ctx, SessionChannel(sess.ID), env)
		} else {
			g.hub.SendToUser(ev.UserID, env.WithTargets(ev.UserID))
		}
	}
}

// armTimer points the session's deadline timer at the current phase. The
// timer guarantees forward progress when required actors never submit. The
// budget is fixed per phase window: submissions within an already-armed
// window leave its deadline untouched.
func (g *GameHandler) armTimer(sess *registry.Session) {
	phase := sess.Game.Phase()
	round := sess.Game.Round()

	var budget time.Duration
	var onDeadline func()
	switch phase {
	case mafia.PhaseNight:
		budget = sess.Game.NightBudget()
		onDeadline = func() { g.onNightDeadline(sess.ID) }
	case mafia.PhaseVoting:
		budget = sess.Game.VotingBudget()
		onDeadline = func() { g.onVotingDeadline(sess.ID) }
	default:
		g.stopTimer(sess.ID)
		return
	}

	g.timersMu.Lock()
	defer g.timersMu.Unlock()
	if st, ok := g.timers[sess.ID]; ok {
		if st.phase == phase && st.round == round {
			return
		}
		st.timer.Reset(budget, onDeadline)
		st.phase, st.round = phase, round
	} else {
		g.timers[sess.ID] = &sessionTimer{
			timer: mafia.NewPhaseTimer(budget, onDeadline),
			phase: phase,
			round: round,
		}
	}
}

func (g *GameHandler) stopTimer(sessionID string) {
	g.timersMu.Lock()
	defer g.timersMu.Unlock()
	if st, ok := g.timers[sessionID]; ok {
		st.timer.Stop()
		delete(g.timers, sessionID)
	}
}

// StopSessionTimer cancels the phase timer for one session, if any.
// Called when a session is swept while a phase deadline is pending.
func (g *GameHandler) StopSessionTimer(sessionID string) {
	g.stopTimer(sessionID)
}

// StopTimers cancels every phase timer. Called on shutdown.
func (g *GameHandler) StopTimers() {
	g.timersMu.Lock()
	defer g.timersMu.Unlock()
	for id, st := range g.timers {
		st.timer.Stop()
		delete(g.timers, id)
	}
}

// onNightDeadline force-resolves an overdue night, treating missing actions
// as no action taken.
func (g *GameHandler) onNightDeadline(sessionID string) {
	ctx := context.Background()
	sess, err := g.registry.Get(sessionID)
	if err != nil {
		return
	}
	events, err := g.resolveSafely(ctx, sess, sess.Game.ResolveNight)
	if err != nil {
		// The phase already advanced under us; nothing to do.
		return
	}
	g.logger.Info("night deadline reached, force-resolving",
		zap.String("session_id", sessionID),
	)
	g.AfterEngineEvents(ctx, sess, events)
}

// onVotingDeadline closes an overdue voting window.
func (g *GameHandler) onVotingDeadline(sessionID string) {
	ctx := context.Background()
	sess, err := g.registry.Get(sessionID)
	if err != nil {
		return
	}
	events, err := g.resolveSafely(ctx, sess, sess.Game.ResolveVoting)
	if err != nil {
		return
	}
	g.logger.Info("voting deadline reached, resolving",
		zap.String("session_id", sessionID),
	)
	g.AfterEngineEvents(ctx, sess, events)
}

// resolveSafely runs an engine call with panic containment: an unexpected
// failure during phase resolution cancels the session and notifies every
// participant rather than leaving the game silently stuck.
func (g *GameHandler) resolveSafely(ctx context.Context, sess *registry.Session, fn func() ([]mafia.Event, error)) (events []mafia.Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("session-fatal error during resolution",
				zap.String("session_id", sess.ID),
				zap.Any("panic", r),
			)
			g.abortSession(ctx, sess)
			events = nil
			err = errors.New("session cancelled due to internal error")
		}
	}()
	return fn()
}

// abortSession cancels a broken session and tells its participants.
func (g *GameHandler) abortSession(ctx context.Context, sess *registry.Session) {
	g.stopTimer(sess.ID)
	_ = g.registry.Cancel(sess.ID)
	if env, err := message.New(message.TypeNotification, message.NotificationPayload{
		Event:  "session_cancelled",
		Detail: "the session hit an internal error and was cancelled",
	}); err == nil {
		g.broadcaster.Broadcast(ctx, SessionChannel(sess.ID), env.WithChannel(SessionChannel(sess.ID)))
	}
}

// finishSession closes out a completed game and hands the summary to the
// archiver, when one is configured.
func (g *GameHandler) finishSession(ctx context.Context, sess *registry.Session) {
	g.stopTimer(sess.ID)
	_ = g.registry.Complete(sess.ID)

	g.logger.Info("session completed",
		zap.String("session_id", sess.ID),
		zap.String("winner", string(sess.Game.Winner())),
		zap.Int("rounds", sess.Game.Round()),
	)

	if g.archiver == nil {
		return
	}
	summary := Summary{
		SessionID:   sess.ID,
		GameType:    sess.GameType.ID,
		HostID:      sess.HostID,
		Winner:      string(sess.Game.Winner()),
		Rounds:      sess.Game.Round(),
		PlayerCount: len(sess.Game.Players()),
		StartedAt:   sess.CreatedAt,
		EndedAt:     time.Now().UTC(),
	}
	if err := g.archiver.Append(ctx, summary); err != nil {
		g.logger.Warn("archiving session summary failed",
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)
	}
}
