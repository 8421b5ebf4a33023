package mafia

// EventType identifies a game event produced by the engine. The gameserver
// layer maps these onto wire envelopes; the engine never touches transport.
type EventType string

const (
	EventRoleAssigned        EventType = "role_assigned"
	EventPhaseChange         EventType = "phase_change"
	EventNightActionRequest  EventType = "night_action_request"
	EventPlayerProtected     EventType = "player_protected"
	EventInvestigationResult EventType = "investigation_result"
	EventVotingStarted       EventType = "voting_started"
	EventVoteCast            EventType = "vote_cast"
	EventPlayerEliminated    EventType = "player_eliminated"
	EventGameOver            EventType = "game_over"
)

// Event is one state change produced by an engine call. Public events are
// fanned out to every session participant; private events are delivered only
// to UserID.
type Event struct {
	Type    EventType
	Public  bool
	UserID  string
	Payload any
}

// RoleAssignedPayload is delivered privately to each player after assignment.
type RoleAssignedPayload struct {
	Role string `json:"role"`
}

// PhaseChangePayload announces a phase transition.
type PhaseChangePayload struct {
	Phase string   `json:"phase"`
	Round int      `json:"round"`
	Alive []string `json:"alive"`
}

// NightActionRequestPayload is delivered privately to each required actor.
type NightActionRequestPayload struct {
	Round  int    `json:"round"`
	Action string `json:"action"`
}

// ProtectedPayload announces that the night kill was cancelled. It carries
// no identities: neither the protector nor the protected player is named.
type ProtectedPayload struct {
	Round int `json:"round"`
}

// InvestigationPayload is delivered privately to the detective.
type InvestigationPayload struct {
	TargetID string `json:"target_id"`
	IsMafia  bool   `json:"is_mafia"`
}

// VotingStartedPayload announces the voting window.
type VotingStartedPayload struct {
	Round   int      `json:"round"`
	Alive   []string `json:"alive"`
	Seconds int      `json:"seconds"`
}

// VoteCastPayload announces a (possibly overwritten) vote.
type VoteCastPayload struct {
	VoterID  string `json:"voter_id"`
	TargetID string `json:"target_id"`
}

// EliminationPayload announces an elimination and reveals the role.
type EliminationPayload struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Cause    string `json:"cause"`
}

// GameOverPayload announces the winner and the full role reveal.
type GameOverPayload struct {
	Winner string            `json:"winner"`
	Roles  map[string]string `json:"roles"`
}

func publicEvent(typ EventType, payload any) Event {
	return Event{Type: typ, Public: true, Payload: payload}
}

func privateEvent(typ EventType, userID string, payload any) Event {
	return Event{Type: typ, UserID: userID, Payload: payload}
}
