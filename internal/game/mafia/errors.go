package mafia

import "errors"

// Validation errors. These are returned to the submitting caller only and
// never mutate game state.
var (
	// ErrInsufficientPlayers is returned when role assignment runs with
	// fewer than MinPlayers players.
	ErrInsufficientPlayers = errors.New("not enough players")
	// ErrRolesAlreadyAssigned is returned on a repeat AssignRoles call.
	ErrRolesAlreadyAssigned = errors.New("roles already assigned")
	// ErrNotYourTurn is returned when an action arrives in the wrong phase.
	ErrNotYourTurn = errors.New("action not allowed in current phase")
	// ErrWrongPhase is returned when a phase transition is requested from
	// an incompatible phase.
	ErrWrongPhase = errors.New("invalid phase transition")
	// ErrUnknownPlayer is returned when the actor or target is not in the game.
	ErrUnknownPlayer = errors.New("player not in game")
	// ErrDuplicatePlayer is returned when an id is added twice.
	ErrDuplicatePlayer = errors.New("player already in game")
	// ErrDeadActor is returned when a dead player submits an action or vote.
	ErrDeadActor = errors.New("dead players cannot act")
	// ErrDeadTarget is returned when an action or vote targets a dead player.
	ErrDeadTarget = errors.New("cannot target a dead player")
	// ErrRoleMismatch is returned when an actor's role cannot perform the
	// submitted action kind.
	ErrRoleMismatch = errors.New("role cannot perform this action")
	// ErrActionAlreadySubmitted is returned when an actor submits a second
	// night action in the same round.
	ErrActionAlreadySubmitted = errors.New("night action already submitted this round")
	// ErrGameOver is returned when any action arrives after the game ended.
	ErrGameOver = errors.New("game is over")
)
