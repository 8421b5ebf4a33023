package mafia

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestGame builds a game with n players p1..pn and predictable roles:
// with noShuffleSource the deck keeps its fixed order, so p1.. get mafia
// first, then the detective, then the doctor when present, then villagers.
func newTestGame(t *testing.T, n int) *Game {
	t.Helper()
	g := NewGame(noShuffleSource{}, Config{})
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("p%d", i)
		require.NoError(t, g.AddPlayer(id, "Player "+id))
	}
	return g
}

// startedGame assigns roles and starts the first night.
func startedGame(t *testing.T, n int) *Game {
	t.Helper()
	g := newTestGame(t, n)
	_, err := g.AssignRoles()
	require.NoError(t, err)
	_, err = g.StartNight()
	require.NoError(t, err)
	return g
}

func eventTypes(events []Event) []EventType {
	out := make([]EventType, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Type)
	}
	return out
}

func findEvent(events []Event, typ EventType) (Event, bool) {
	for _, ev := range events {
		if ev.Type == typ {
			return ev, true
		}
	}
	return Event{}, false
}

func TestAddPlayerDuplicate(t *testing.T) {
	g := newTestGame(t, 4)
	assert.ErrorIs(t, g.AddPlayer("p1", "again"), ErrDuplicatePlayer)
}

func TestResolveNightLatestKillWins(t *testing.T) {
	// Eight players: p1 and p2 are mafia, p3 detective, p4 doctor.
	g := startedGame(t, 8)

	// The mafia disagree; the kill submitted last is the one applied.
	_, err := g.SubmitNightAction("p1", ActionKill, "p5")
	require.NoError(t, err)
	_, err = g.SubmitNightAction("p2", ActionKill, "p6")
	require.NoError(t, err)
	_, err = g.SubmitNightAction("p3", ActionInvestigate, "p1")
	require.NoError(t, err)
	events, err := g.SubmitNightAction("p4", ActionProtect, "p8")
	require.NoError(t, err)

	elim, ok := findEvent(events, EventPlayerEliminated)
	require.True(t, ok)
	payload := elim.Payload.(EliminationPayload)
	assert.Equal(t, "p6", payload.PlayerID)

	alive := make(map[string]bool)
	for _, p := range g.Players() {
		alive[p.ID] = p.Alive
	}
	assert.True(t, alive["p5"])
	assert.False(t, alive["p6"])
}

func TestRemovePlayer(t *testing.T) {
	g := newTestGame(t, 4)
	require.NoError(t, g.RemovePlayer("p2"))
	assert.Len(t, g.Players(), 3)
	assert.ErrorIs(t, g.RemovePlayer("p2"), ErrUnknownPlayer)
}

func TestRemovePlayerAfterAssignment(t *testing.T) {
	g := newTestGame(t, 4)
	_, err := g.AssignRoles()
	require.NoError(t, err)
	assert.ErrorIs(t, g.RemovePlayer("p1"), ErrWrongPhase)
}

func TestAddPlayerAfterAssignment(t *testing.T) {
	g := newTestGame(t, 4)
	_, err := g.AssignRoles()
	require.NoError(t, err)
	assert.ErrorIs(t, g.AddPlayer("p5", "late"), ErrRolesAlreadyAssigned)
}

func TestAssignRolesTooFewPlayers(t *testing.T) {
	g := newTestGame(t, 3)
	_, err := g.AssignRoles()
	assert.ErrorIs(t, err, ErrInsufficientPlayers)
}

func TestAssignRolesRunsOnce(t *testing.T) {
	g := newTestGame(t, 4)
	_, err := g.AssignRoles()
	require.NoError(t, err)
	_, err = g.AssignRoles()
	assert.ErrorIs(t, err, ErrRolesAlreadyAssigned)
}

func TestAssignRolesEmitsPrivateEvents(t *testing.T) {
	g := newTestGame(t, 5)
	events, err := g.AssignRoles()
	require.NoError(t, err)
	require.Len(t, events, 5)

	seen := make(map[string]bool)
	for _, ev := range events {
		assert.Equal(t, EventRoleAssigned, ev.Type)
		assert.False(t, ev.Public, "role assignments must stay private")
		assert.NotEmpty(t, ev.UserID)
		seen[ev.UserID] = true
	}
	assert.Len(t, seen, 5, "one event per player")
}

func TestStartNightBeforeAssignment(t *testing.T) {
	g := newTestGame(t, 4)
	_, err := g.StartNight()
	assert.ErrorIs(t, err, ErrWrongPhase)
}

func TestStartNightEmitsActionRequests(t *testing.T) {
	g := newTestGame(t, 5)
	_, err := g.AssignRoles()
	require.NoError(t, err)

	events, err := g.StartNight()
	require.NoError(t, err)

	assert.Equal(t, PhaseNight, g.Phase())
	assert.Equal(t, 1, g.Round())

	change, ok := findEvent(events, EventPhaseChange)
	require.True(t, ok)
	assert.True(t, change.Public)

	// 5 players carry no doctor: one mafia kill plus one investigation.
	var requests []Event
	for _, ev := range events {
		if ev.Type == EventNightActionRequest {
			requests = append(requests, ev)
			assert.False(t, ev.Public)
		}
	}
	assert.Len(t, requests, 2)
	assert.Len(t, g.PendingActors(), 2)
}

func TestFirstNightResolvesWhenAllActionsIn(t *testing.T) {
	g := startedGame(t, 5)
	// p1 mafia, p2 detective, p3..p5 villagers.

	events, err := g.SubmitNightAction("p1", ActionKill, "p3")
	require.NoError(t, err)
	assert.Empty(t, events, "night must not resolve while the detective is pending")
	assert.Len(t, g.PendingActors(), 1)

	events, err = g.SubmitNightAction("p2", ActionInvestigate, "p1")
	require.NoError(t, err)

	inv, ok := findEvent(events, EventInvestigationResult)
	require.True(t, ok)
	assert.False(t, inv.Public)
	assert.Equal(t, "p2", inv.UserID)
	assert.True(t, inv.Payload.(InvestigationPayload).IsMafia)

	elim, ok := findEvent(events, EventPlayerEliminated)
	require.True(t, ok)
	assert.True(t, elim.Public)
	payload := elim.Payload.(EliminationPayload)
	assert.Equal(t, "p3", payload.PlayerID)
	assert.Equal(t, "night", payload.Cause)

	assert.Equal(t, PhaseDay, g.Phase())
}

func TestProtectCancelsKillAnonymously(t *testing.T) {
	g := startedGame(t, 6)
	// p1 mafia, p2 detective, p3 doctor, p4..p6 villagers.

	_, err := g.SubmitNightAction("p1", ActionKill, "p4")
	require.NoError(t, err)
	_, err = g.SubmitNightAction("p3", ActionProtect, "p4")
	require.NoError(t, err)
	events, err := g.SubmitNightAction("p2", ActionInvestigate, "p5")
	require.NoError(t, err)

	prot, ok := findEvent(events, EventPlayerProtected)
	require.True(t, ok)
	assert.True(t, prot.Public)
	// The payload must not identify the doctor, the attacker, or the target.
	assert.Equal(t, ProtectedPayload{Round: 1}, prot.Payload)

	_, eliminated := findEvent(events, EventPlayerEliminated)
	assert.False(t, eliminated)
	for _, p := range g.Players() {
		assert.True(t, p.Alive)
	}
	assert.Equal(t, PhaseDay, g.Phase())
}

func TestSubmitNightActionValidation(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T) *Game
		actor  string
		kind   ActionKind
		target string
		want   error
	}{
		{
			name:   "wrong phase",
			setup:  func(t *testing.T) *Game { return newTestGame(t, 5) },
			actor:  "p1",
			kind:   ActionKill,
			target: "p2",
			want:   ErrNotYourTurn,
		},
		{
			name:   "unknown actor",
			setup:  func(t *testing.T) *Game { return startedGame(t, 5) },
			actor:  "ghost",
			kind:   ActionKill,
			target: "p2",
			want:   ErrUnknownPlayer,
		},
		{
			name:   "villager cannot kill",
			setup:  func(t *testing.T) *Game { return startedGame(t, 5) },
			actor:  "p3",
			kind:   ActionKill,
			target: "p2",
			want:   ErrRoleMismatch,
		},
		{
			name:   "mafia cannot investigate",
			setup:  func(t *testing.T) *Game { return startedGame(t, 5) },
			actor:  "p1",
			kind:   ActionInvestigate,
			target: "p2",
			want:   ErrRoleMismatch,
		},
		{
			name:   "unknown target",
			setup:  func(t *testing.T) *Game { return startedGame(t, 5) },
			actor:  "p1",
			kind:   ActionKill,
			target: "ghost",
			want:   ErrUnknownPlayer,
		},
		{
			name: "dead actor",
			setup: func(t *testing.T) *Game {
				g := startedGame(t, 8)
				// p1, p2 mafia. Kill p2's fellow mafioso is not possible, so
				// eliminate p3 (detective) round one, then try acting as p3.
				_, err := g.SubmitNightAction("p1", ActionKill, "p3")
				require.NoError(t, err)
				_, err = g.SubmitNightAction("p2", ActionKill, "p3")
				require.NoError(t, err)
				_, err = g.SubmitNightAction("p3", ActionInvestigate, "p1")
				require.NoError(t, err)
				_, err = g.SubmitNightAction("p4", ActionProtect, "p5")
				require.NoError(t, err)
				_, err = g.StartVoting()
				require.NoError(t, err)
				_, err = g.ResolveVoting()
				require.NoError(t, err)
				return g
			},
			actor:  "p3",
			kind:   ActionInvestigate,
			target: "p1",
			want:   ErrDeadActor,
		},
		{
			name: "dead target",
			setup: func(t *testing.T) *Game {
				g := startedGame(t, 8)
				_, err := g.SubmitNightAction("p1", ActionKill, "p5")
				require.NoError(t, err)
				_, err = g.SubmitNightAction("p2", ActionKill, "p5")
				require.NoError(t, err)
				_, err = g.SubmitNightAction("p3", ActionInvestigate, "p1")
				require.NoError(t, err)
				_, err = g.SubmitNightAction("p4", ActionProtect, "p6")
				require.NoError(t, err)
				_, err = g.StartVoting()
				require.NoError(t, err)
				_, err = g.ResolveVoting()
				require.NoError(t, err)
				return g
			},
			actor:  "p1",
			kind:   ActionKill,
			target: "p5",
			want:   ErrDeadTarget,
		},
		{
			name: "duplicate submission",
			setup: func(t *testing.T) *Game {
				g := startedGame(t, 5)
				_, err := g.SubmitNightAction("p1", ActionKill, "p3")
				require.NoError(t, err)
				return g
			},
			actor:  "p1",
			kind:   ActionKill,
			target: "p4",
			want:   ErrActionAlreadySubmitted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := tt.setup(t)
			_, err := g.SubmitNightAction(tt.actor, tt.kind, tt.target)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestResolveNightTimeoutTreatsMissingAsNoAction(t *testing.T) {
	g := startedGame(t, 5)

	_, err := g.SubmitNightAction("p1", ActionKill, "p4")
	require.NoError(t, err)

	// Detective never acts; the deadline path resolves anyway.
	events, err := g.ResolveNight()
	require.NoError(t, err)

	elim, ok := findEvent(events, EventPlayerEliminated)
	require.True(t, ok)
	assert.Equal(t, "p4", elim.Payload.(EliminationPayload).PlayerID)
	_, investigated := findEvent(events, EventInvestigationResult)
	assert.False(t, investigated)
	assert.Equal(t, PhaseDay, g.Phase())
}

func TestResolveNightWrongPhase(t *testing.T) {
	g := newTestGame(t, 4)
	_, err := g.ResolveNight()
	assert.ErrorIs(t, err, ErrWrongPhase)
}

func TestStartVotingRequiresDay(t *testing.T) {
	g := startedGame(t, 5)
	_, err := g.StartVoting()
	assert.ErrorIs(t, err, ErrWrongPhase)
}

func TestCastVoteOverwrites(t *testing.T) {
	g := startedGame(t, 6)
	_, err := g.ResolveNight()
	require.NoError(t, err)
	_, err = g.StartVoting()
	require.NoError(t, err)

	_, err = g.CastVote("p4", "p5")
	require.NoError(t, err)
	events, err := g.CastVote("p4", "p6")
	require.NoError(t, err)

	cast, ok := findEvent(events, EventVoteCast)
	require.True(t, ok)
	assert.Equal(t, VoteCastPayload{VoterID: "p4", TargetID: "p6"}, cast.Payload)

	// Only the latest vote counts: p4 switched to p6, everyone else votes p6
	// except p6.
	_, err = g.CastVote("p1", "p6")
	require.NoError(t, err)
	_, err = g.CastVote("p2", "p6")
	require.NoError(t, err)
	_, err = g.CastVote("p3", "p6")
	require.NoError(t, err)

	events, err = g.ResolveVoting()
	require.NoError(t, err)
	elim, ok := findEvent(events, EventPlayerEliminated)
	require.True(t, ok)
	payload := elim.Payload.(EliminationPayload)
	assert.Equal(t, "p6", payload.PlayerID)
	assert.Equal(t, "vote", payload.Cause)
	assert.Equal(t, "villager", payload.Role, "vote eliminations reveal the role")
}

func TestResolveVotingTieEliminatesNobody(t *testing.T) {
	g := startedGame(t, 6)
	_, err := g.ResolveNight()
	require.NoError(t, err)
	_, err = g.StartVoting()
	require.NoError(t, err)

	_, err = g.CastVote("p1", "p5")
	require.NoError(t, err)
	_, err = g.CastVote("p2", "p6")
	require.NoError(t, err)

	events, err := g.ResolveVoting()
	require.NoError(t, err)

	_, eliminated := findEvent(events, EventPlayerEliminated)
	assert.False(t, eliminated)
	for _, p := range g.Players() {
		assert.True(t, p.Alive)
	}
	// The round loops straight into the next night.
	assert.Equal(t, PhaseNight, g.Phase())
	assert.Equal(t, 2, g.Round())
}

func TestResolveVotingLoopsIntoNextNight(t *testing.T) {
	g := startedGame(t, 6)
	_, err := g.ResolveNight()
	require.NoError(t, err)
	_, err = g.StartVoting()
	require.NoError(t, err)

	for _, voter := range []string{"p1", "p2", "p3"} {
		_, err = g.CastVote(voter, "p6")
		require.NoError(t, err)
	}

	events, err := g.ResolveVoting()
	require.NoError(t, err)

	types := eventTypes(events)
	assert.Contains(t, types, EventPlayerEliminated)
	assert.Contains(t, types, EventPhaseChange)
	assert.Contains(t, types, EventNightActionRequest)
	assert.Equal(t, PhaseNight, g.Phase())
	assert.Equal(t, 2, g.Round())
}

func TestVillagersWinWhenMafiaVotedOut(t *testing.T) {
	g := startedGame(t, 5)
	_, err := g.ResolveNight()
	require.NoError(t, err)
	_, err = g.StartVoting()
	require.NoError(t, err)

	for _, voter := range []string{"p2", "p3", "p4"} {
		_, err = g.CastVote(voter, "p1")
		require.NoError(t, err)
	}

	events, err := g.ResolveVoting()
	require.NoError(t, err)

	over, ok := findEvent(events, EventGameOver)
	require.True(t, ok)
	payload := over.Payload.(GameOverPayload)
	assert.Equal(t, "villagers", payload.Winner)
	assert.Len(t, payload.Roles, 5, "game over reveals every role")
	assert.Equal(t, "mafia", payload.Roles["p1"])

	assert.Equal(t, PhaseGameOver, g.Phase())
	assert.Equal(t, WinnerVillagers, g.Winner())
}

func TestMafiaWinWhenMatchingRemainder(t *testing.T) {
	g := startedGame(t, 4)
	// p1 mafia, p2 detective, p3 p4 villagers.

	_, err := g.SubmitNightAction("p1", ActionKill, "p3")
	require.NoError(t, err)
	_, err = g.SubmitNightAction("p2", ActionInvestigate, "p4")
	require.NoError(t, err)
	require.Equal(t, PhaseDay, g.Phase())

	_, err = g.StartVoting()
	require.NoError(t, err)
	for _, voter := range []string{"p1", "p4"} {
		_, err = g.CastVote(voter, "p2")
		require.NoError(t, err)
	}

	events, err := g.ResolveVoting()
	require.NoError(t, err)

	over, ok := findEvent(events, EventGameOver)
	require.True(t, ok)
	assert.Equal(t, "mafia", over.Payload.(GameOverPayload).Winner)
	assert.Equal(t, WinnerMafia, g.Winner())
}

func TestGameOverRejectsFurtherOperations(t *testing.T) {
	g := startedGame(t, 5)
	_, err := g.ResolveNight()
	require.NoError(t, err)
	_, err = g.StartVoting()
	require.NoError(t, err)
	for _, voter := range []string{"p2", "p3", "p4"} {
		_, err = g.CastVote(voter, "p1")
		require.NoError(t, err)
	}
	_, err = g.ResolveVoting()
	require.NoError(t, err)
	require.Equal(t, PhaseGameOver, g.Phase())

	_, err = g.StartNight()
	assert.ErrorIs(t, err, ErrGameOver)
	_, err = g.SubmitNightAction("p1", ActionKill, "p2")
	assert.ErrorIs(t, err, ErrGameOver)
	_, err = g.CastVote("p2", "p3")
	assert.ErrorIs(t, err, ErrGameOver)
	_, err = g.ResolveVoting()
	assert.ErrorIs(t, err, ErrGameOver)
}

func TestHistoryRecordsTransitions(t *testing.T) {
	g := startedGame(t, 5)
	_, err := g.SubmitNightAction("p1", ActionKill, "p3")
	require.NoError(t, err)
	_, err = g.ResolveNight()
	require.NoError(t, err)

	kinds := make(map[string]int)
	for _, h := range g.History() {
		kinds[h.Kind]++
	}
	assert.Equal(t, 1, kinds["roles_assigned"])
	assert.Equal(t, 1, kinds["night_action"])
	assert.Equal(t, 1, kinds["eliminated"])
	assert.GreaterOrEqual(t, kinds["phase_change"], 2)
}

func TestConfigDefaults(t *testing.T) {
	g := NewGame(noShuffleSource{}, Config{})
	assert.Equal(t, DefaultNightBudget, g.NightBudget())
	assert.Equal(t, DefaultVotingBudget, g.VotingBudget())

	g = NewGame(noShuffleSource{}, Config{NightBudget: 10, VotingBudget: 20})
	assert.Equal(t, time.Duration(10), g.NightBudget())
	assert.Equal(t, time.Duration(20), g.VotingBudget())
}
