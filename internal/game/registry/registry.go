// Package registry manages game session lifecycle: creation, joining,
// starting, lookup, and garbage collection.
package registry

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tobyv/gamenight/internal/game/catalog"
	"github.com/tobyv/gamenight/internal/game/mafia"
)

// Session lifecycle errors.
var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrNotJoinable      = errors.New("session is not accepting players")
	ErrAlreadyJoined    = errors.New("player already joined")
	ErrSessionFull      = errors.New("session is full")
	ErrNotHost          = errors.New("only the host may do that")
	ErrNotEnoughPlayers = errors.New("not enough players to start")
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusStarting  Status = "starting"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Session is one running game instance with its own isolated state machine.
// The Game pointer is immutable after creation; Status and the timestamps
// are guarded by the owning Registry.
type Session struct {
	ID        string
	GameType  catalog.GameType
	HostID    string
	Status    Status
	Game      *mafia.Game
	CreatedAt time.Time
	UpdatedAt time.Time
	EndedAt   time.Time
}

// Registry tracks all live sessions in this process. All methods are safe
// for concurrent use.
//
// A session is owned by exactly one process: routing must be sticky on the
// session id so engine writes are never interleaved across processes.
type Registry struct {
	mu       sync.RWMutex
	types    *catalog.Registry
	src      mafia.Source
	sessions map[string]*Session
	// retention is how long completed/cancelled sessions linger for late
	// state queries before the sweep removes them.
	retention time.Duration
	// idleTTL is how long a session may go without any mutation before the
	// sweep removes it.
	idleTTL time.Duration
}

// Option configures a Registry.
type Option func(*Registry)

// WithRetention overrides the completed-session retention TTL.
func WithRetention(d time.Duration) Option {
	return func(r *Registry) { r.retention = d }
}

// WithIdleTTL overrides the inactivity TTL.
func WithIdleTTL(d time.Duration) Option {
	return func(r *Registry) { r.idleTTL = d }
}

// New creates an empty Registry.
//
// Precondition: types and src must be non-nil.
func New(types *catalog.Registry, src mafia.Source, opts ...Option) *Registry {
	r := &Registry{
		types:     types,
		src:       src,
		sessions:  make(map[string]*Session),
		retention: 10 * time.Minute,
		idleTTL:   2 * time.Hour,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateSession creates a session of the given game type with hostID as the
// host and first player.
//
// Precondition: hostID and hostName must be non-empty.
// Postcondition: Returns a waiting Session with the host joined, or an error
// wrapping catalog.ErrUnknownGameType.
func (r *Registry) CreateSession(gameType, hostID, hostName string) (*Session, error) {
	gt, err := r.types.Get(gameType)
	if err != nil {
		return nil, err
	}

	game := mafia.NewGame(r.src, mafia.Config{
		NightBudget:  gt.NightBudget,
		VotingBudget: gt.VotingBudget,
	})
	if err := game.AddPlayer(hostID, hostName); err != nil {
		return nil, fmt.Errorf("adding host: %w", err)
	}

	now := time.Now().UTC()
	sess := &Session{
		ID:        uuid.New().String(),
		GameType:  gt,
		HostID:    hostID,
		Status:    StatusWaiting,
		Game:      game,
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.mu.Lock()
	r.sessions[sess.ID] = sess
	r.mu.Unlock()
	return sess, nil
}

// Join adds a player to a waiting session.
//
// Postcondition: Returns ErrNotJoinable if the session left the waiting
// state, ErrAlreadyJoined on a duplicate join, or ErrSessionFull at capacity.
func (r *Registry) Join(sessionID, userID, name string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if sess.Status != StatusWaiting {
		return nil, ErrNotJoinable
	}
	players := sess.Game.Players()
	if len(players) >= sess.GameType.MaxPlayers {
		return nil, ErrSessionFull
	}
	for _, p := range players {
		if p.ID == userID {
			return nil, ErrAlreadyJoined
		}
	}
	if err := sess.Game.AddPlayer(userID, name); err != nil {
		return nil, err
	}
	sess.UpdatedAt = time.Now().UTC()
	return sess, nil
}

// Leave removes a player from a waiting session. The host leaving cancels
// the whole session; cancelled reports which case applied.
//
// Postcondition: Returns ErrNotJoinable once the session left the waiting
// state; players in a started game die, they do not leave.
func (r *Registry) Leave(sessionID, userID string) (sess *Session, cancelled bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return nil, false, ErrSessionNotFound
	}
	if sess.Status != StatusWaiting {
		return nil, false, ErrNotJoinable
	}

	now := time.Now().UTC()
	if userID == sess.HostID {
		sess.Status = StatusCancelled
		sess.UpdatedAt = now
		sess.EndedAt = now
		return sess, true, nil
	}
	if err := sess.Game.RemovePlayer(userID); err != nil {
		return nil, false, err
	}
	sess.UpdatedAt = now
	return sess, false, nil
}

// Start moves a waiting session to active: assigns roles and begins the
// first night. Only the host may start, and only with enough players.
//
// Postcondition: On success the session is active and the returned events
// include role assignments and the first night's phase change; on any
// failure the session stays waiting.
func (r *Registry) Start(sessionID, callerID string) (*Session, []mafia.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return nil, nil, ErrSessionNotFound
	}
	if sess.HostID != callerID {
		return nil, nil, ErrNotHost
	}
	if sess.Status != StatusWaiting {
		return nil, nil, ErrNotJoinable
	}
	if len(sess.Game.Players()) < sess.GameType.MinPlayers {
		return nil, nil, ErrNotEnoughPlayers
	}

	sess.Status = StatusStarting
	roleEvents, err := sess.Game.AssignRoles()
	if err != nil {
		sess.Status = StatusWaiting
		return nil, nil, err
	}
	nightEvents, err := sess.Game.StartNight()
	if err != nil {
		sess.Status = StatusWaiting
		return nil, nil, err
	}

	sess.Status = StatusActive
	sess.UpdatedAt = time.Now().UTC()
	return sess, append(roleEvents, nightEvents...), nil
}

// Get returns the session with the given id.
func (r *Registry) Get(sessionID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Touch records activity on a session so the idle sweep spares it.
func (r *Registry) Touch(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sess, ok := r.sessions[sessionID]; ok {
		sess.UpdatedAt = time.Now().UTC()
	}
}

// Complete marks a session completed.
//
// Postcondition: the session remains queryable until the retention sweep.
func (r *Registry) Complete(sessionID string) error {
	return r.finish(sessionID, StatusCompleted)
}

// Cancel marks a session cancelled. Used for host aborts and session-fatal
// errors during phase resolution.
func (r *Registry) Cancel(sessionID string) error {
	return r.finish(sessionID, StatusCancelled)
}

func (r *Registry) finish(sessionID string, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	now := time.Now().UTC()
	sess.Status = status
	sess.UpdatedAt = now
	sess.EndedAt = now
	return nil
}

// Count returns the number of tracked sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep removes finished sessions past the retention TTL and idle sessions
// past the inactivity TTL, returning the removed session ids.
func (r *Registry) Sweep(now time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []string
	for id, sess := range r.sessions {
		switch sess.Status {
		case StatusCompleted, StatusCancelled:
			if now.Sub(sess.EndedAt) > r.retention {
				delete(r.sessions, id)
				removed = append(removed, id)
			}
		default:
			if now.Sub(sess.UpdatedAt) > r.idleTTL {
				delete(r.sessions, id)
				removed = append(removed, id)
			}
		}
	}
	return removed
}
