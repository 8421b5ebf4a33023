package mafia

import (
	"sync"
	"time"
)

// MinPlayers is the smallest player count the role distribution supports.
const MinPlayers = 4

// Phase is the current step of the game state machine.
type Phase int

const (
	PhaseSetup Phase = iota
	PhaseNight
	PhaseDay
	PhaseVoting
	PhaseGameOver
)

// String returns a lower-case phase label for the wire format.
func (p Phase) String() string {
	switch p {
	case PhaseSetup:
		return "setup"
	case PhaseNight:
		return "night"
	case PhaseDay:
		return "day"
	case PhaseVoting:
		return "voting"
	case PhaseGameOver:
		return "game_over"
	default:
		return "unknown"
	}
}

// Winner identifies the winning faction, if any.
type Winner string

const (
	WinnerNone      Winner = ""
	WinnerMafia     Winner = "mafia"
	WinnerVillagers Winner = "villagers"
)

// Player is one participant in the game.
type Player struct {
	ID    string
	Name  string
	Role  Role
	Alive bool
}

// ActionKind is a night action variant.
type ActionKind string

const (
	ActionKill        ActionKind = "kill"
	ActionInvestigate ActionKind = "investigate"
	ActionProtect     ActionKind = "protect"
)

// canPerform reports whether role may submit kind.
func canPerform(role Role, kind ActionKind) bool {
	switch kind {
	case ActionKill:
		return role == RoleMafia
	case ActionInvestigate:
		return role == RoleDetective
	case ActionProtect:
		return role == RoleDoctor
	}
	return false
}

// NightAction is one recorded night action. One record per acting role per
// round.
type NightAction struct {
	ActorID  string
	Kind     ActionKind
	TargetID string
	At       time.Time

	// seq orders submissions within a game; the latest kill wins.
	seq int
}

// RequiredAction names an actor who must act this night and the action kind
// their role performs.
type RequiredAction struct {
	PlayerID string
	Kind     ActionKind
}

// HistoryEntry is one append-only log record of a state transition.
type HistoryEntry struct {
	Round  int
	Phase  Phase
	Kind   string
	Detail string
	At     time.Time
}

// DefaultNightBudget and DefaultVotingBudget are the phase time budgets used
// when the config leaves them unset.
const (
	DefaultNightBudget  = 60 * time.Second
	DefaultVotingBudget = 180 * time.Second
)

// Config holds per-game tuning.
type Config struct {
	// NightBudget is the time limit for the night phase before the deadline
	// timer force-resolves it.
	NightBudget time.Duration
	// VotingBudget is the time limit for the voting window.
	VotingBudget time.Duration
}

// withDefaults fills unset budgets.
func (c Config) withDefaults() Config {
	if c.NightBudget <= 0 {
		c.NightBudget = DefaultNightBudget
	}
	if c.VotingBudget <= 0 {
		c.VotingBudget = DefaultVotingBudget
	}
	return c
}

// Game is the state machine for a single session. All methods are safe for
// concurrent use; a Game must only ever be mutated by the process that owns
// its session.
type Game struct {
	mu        sync.Mutex
	src       Source
	cfg       Config
	players   map[string]*Player
	order     []string
	phase     Phase
	round     int
	assigned  bool
	actionSeq int
	actions   map[string]NightAction
	votes     map[string]string
	winner    Winner
	history   []HistoryEntry
}

// NewGame creates an empty game in the Setup phase.
//
// Precondition: src must be non-nil.
func NewGame(src Source, cfg Config) *Game {
	return &Game{
		src:     src,
		cfg:     cfg.withDefaults(),
		players: make(map[string]*Player),
		actions: make(map[string]NightAction),
		votes:   make(map[string]string),
	}
}

// NightBudget returns the night phase time budget.
func (g *Game) NightBudget() time.Duration { return g.cfg.NightBudget }

// VotingBudget returns the voting window time budget.
func (g *Game) VotingBudget() time.Duration { return g.cfg.VotingBudget }

// AddPlayer registers a player before roles are assigned.
//
// Precondition: id and name must be non-empty.
// Postcondition: Returns ErrWrongPhase if the game left Setup, or
// ErrRolesAlreadyAssigned if assignment already ran.
func (g *Game) AddPlayer(id, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhaseSetup {
		return ErrWrongPhase
	}
	if g.assigned {
		return ErrRolesAlreadyAssigned
	}
	if _, exists := g.players[id]; exists {
		return ErrDuplicatePlayer
	}
	g.players[id] = &Player{ID: id, Name: name, Alive: true}
	g.order = append(g.order, id)
	return nil
}

// RemovePlayer unregisters a player. Only possible before roles are
// assigned; once the game started, players die, they do not leave.
func (g *Game) RemovePlayer(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhaseSetup || g.assigned {
		return ErrWrongPhase
	}
	if _, exists := g.players[id]; !exists {
		return ErrUnknownPlayer
	}
	delete(g.players, id)
	for i, pid := range g.order {
		if pid == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	return nil
}

// AssignRoles computes the role distribution, shuffles it fairly, and
// assigns one role per player. Runs at most once per game.
//
// Precondition: at least MinPlayers players have been added.
// Postcondition: Every player has a non-unassigned role, or no state changed
// and a validation error is returned. Emits one private role_assigned event
// per player.
func (g *Game) AssignRoles() ([]Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.assigned {
		return nil, ErrRolesAlreadyAssigned
	}
	if len(g.players) < MinPlayers {
		return nil, ErrInsufficientPlayers
	}

	deck := roleDeck(CountsFor(len(g.players)))
	shuffle(deck, g.src)

	events := make([]Event, 0, len(g.order))
	for i, id := range g.order {
		p := g.players[id]
		p.Role = deck[i]
		events = append(events, privateEvent(EventRoleAssigned, id, RoleAssignedPayload{Role: p.Role.String()}))
	}
	g.assigned = true
	g.log("roles_assigned", "")
	return events, nil
}

// StartNight transitions Setup/Day to Night, increments the round, and
// clears the round's action ledger.
//
// Postcondition: Phase() == PhaseNight; emits a public phase_change event
// and one private night_action_request per required actor.
func (g *Game) StartNight() ([]Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.startNightLocked()
}

func (g *Game) startNightLocked() ([]Event, error) {
	if g.phase == PhaseGameOver {
		return nil, ErrGameOver
	}
	if g.phase != PhaseSetup && g.phase != PhaseDay {
		return nil, ErrWrongPhase
	}
	if !g.assigned {
		return nil, ErrWrongPhase
	}

	g.phase = PhaseNight
	g.round++
	g.actions = make(map[string]NightAction)
	g.votes = make(map[string]string)
	g.log("phase_change", "night")

	events := []Event{publicEvent(EventPhaseChange, PhaseChangePayload{
		Phase: g.phase.String(),
		Round: g.round,
		Alive: g.aliveIDsLocked(),
	})}
	for _, req := range g.requiredActorsLocked() {
		events = append(events, privateEvent(EventNightActionRequest, req.PlayerID, NightActionRequestPayload{
			Round:  g.round,
			Action: string(req.Kind),
		}))
	}
	return events, nil
}

// Phase returns the current phase.
func (g *Game) Phase() Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase
}

// Round returns the current round number. Round 0 means the first night has
// not started yet.
func (g *Game) Round() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.round
}

// Winner returns the winning faction, or WinnerNone while the game runs.
func (g *Game) Winner() Winner {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.winner
}

// Players returns a snapshot of all players in join order.
func (g *Game) Players() []Player {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]Player, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, *g.players[id])
	}
	return out
}

// RoleOf returns the role assigned to the given player.
//
// Postcondition: Returns ErrUnknownPlayer if the player is not in the game.
func (g *Game) RoleOf(id string) (Role, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.players[id]
	if !ok {
		return RoleUnassigned, ErrUnknownPlayer
	}
	return p.Role, nil
}

// History returns a copy of the append-only transition log.
func (g *Game) History() []HistoryEntry {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]HistoryEntry, len(g.history))
	copy(out, g.history)
	return out
}

// log appends a history entry stamped with the current round and phase.
func (g *Game) log(kind, detail string) {
	g.history = append(g.history, HistoryEntry{
		Round:  g.round,
		Phase:  g.phase,
		Kind:   kind,
		Detail: detail,
		At:     time.Now().UTC(),
	})
}

func (g *Game) aliveIDsLocked() []string {
	var out []string
	for _, id := range g.order {
		if g.players[id].Alive {
			out = append(out, id)
		}
	}
	return out
}

// checkWinLocked evaluates the win condition: no mafia alive means the
// villagers win; mafia matching or outnumbering the rest means mafia win.
// Runs after every elimination.
func (g *Game) checkWinLocked() Winner {
	var mafiaAlive, othersAlive int
	for _, p := range g.players {
		if !p.Alive {
			continue
		}
		if p.Role == RoleMafia {
			mafiaAlive++
		} else {
			othersAlive++
		}
	}
	switch {
	case mafiaAlive == 0:
		return WinnerVillagers
	case mafiaAlive >= othersAlive:
		return WinnerMafia
	default:
		return WinnerNone
	}
}

// endGameLocked transitions to GameOver and builds the reveal payload.
func (g *Game) endGameLocked(w Winner) Event {
	g.phase = PhaseGameOver
	g.winner = w
	g.log("game_over", string(w))

	roles := make(map[string]string, len(g.players))
	for id, p := range g.players {
		roles[id] = p.Role.String()
	}
	return publicEvent(EventGameOver, GameOverPayload{Winner: string(w), Roles: roles})
}
