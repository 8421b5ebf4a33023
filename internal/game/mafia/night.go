package mafia

import "time"

// requiredActorsLocked lists every alive player whose role must act this
// night: each mafia submits kill, the detective investigates, the doctor
// (when present) protects.
func (g *Game) requiredActorsLocked() []RequiredAction {
	var out []RequiredAction
	for _, id := range g.order {
		p := g.players[id]
		if !p.Alive {
			continue
		}
		switch p.Role {
		case RoleMafia:
			out = append(out, RequiredAction{PlayerID: id, Kind: ActionKill})
		case RoleDetective:
			out = append(out, RequiredAction{PlayerID: id, Kind: ActionInvestigate})
		case RoleDoctor:
			out = append(out, RequiredAction{PlayerID: id, Kind: ActionProtect})
		}
	}
	return out
}

// PendingActors lists the required actors who have not yet submitted their
// night action this round.
func (g *Game) PendingActors() []RequiredAction {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []RequiredAction
	for _, req := range g.requiredActorsLocked() {
		if _, done := g.actions[req.PlayerID]; !done {
			out = append(out, req)
		}
	}
	return out
}

// SubmitNightAction validates and records one night action. Once the last
// required actor has submitted, the night resolves in the same call and the
// resolution events are appended to the returned slice.
//
// Precondition: the game must be in the Night phase.
// Postcondition: On validation failure no state changes and a sentinel error
// is returned.
func (g *Game) SubmitNightAction(actorID string, kind ActionKind, targetID string) ([]Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase == PhaseGameOver {
		return nil, ErrGameOver
	}
	if g.phase != PhaseNight {
		return nil, ErrNotYourTurn
	}
	actor, ok := g.players[actorID]
	if !ok {
		return nil, ErrUnknownPlayer
	}
	if !actor.Alive {
		return nil, ErrDeadActor
	}
	if !canPerform(actor.Role, kind) {
		return nil, ErrRoleMismatch
	}
	target, ok := g.players[targetID]
	if !ok {
		return nil, ErrUnknownPlayer
	}
	if !target.Alive {
		return nil, ErrDeadTarget
	}
	if _, dup := g.actions[actorID]; dup {
		return nil, ErrActionAlreadySubmitted
	}

	g.actionSeq++
	g.actions[actorID] = NightAction{
		ActorID:  actorID,
		Kind:     kind,
		TargetID: targetID,
		At:       time.Now().UTC(),
		seq:      g.actionSeq,
	}
	g.log("night_action", string(kind))

	if g.allNightActionsInLocked() {
		return g.resolveNightLocked(), nil
	}
	return nil, nil
}

func (g *Game) allNightActionsInLocked() bool {
	for _, req := range g.requiredActorsLocked() {
		if _, done := g.actions[req.PlayerID]; !done {
			return false
		}
	}
	return true
}

// ResolveNight force-resolves the night phase, treating any missing required
// action as "no action taken". Used by the phase deadline timer.
//
// Precondition: the game must be in the Night phase.
func (g *Game) ResolveNight() ([]Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase == PhaseGameOver {
		return nil, ErrGameOver
	}
	if g.phase != PhaseNight {
		return nil, ErrWrongPhase
	}
	return g.resolveNightLocked(), nil
}

// resolveNightLocked applies the recorded actions: the kill lands unless it
// matches the protect target, in which case a public "protected" event fires
// without linking any identities; the detective privately learns whether
// their target is mafia. With several mafia the latest-submitted kill is the
// one applied. Transitions to Day, or GameOver if the kill decided the game.
func (g *Game) resolveNightLocked() []Event {
	var killTarget, protectTarget string
	var killSeq int
	var events []Event

	for _, id := range g.order {
		act, ok := g.actions[id]
		if !ok {
			continue
		}
		switch act.Kind {
		case ActionKill:
			if act.seq > killSeq {
				killTarget = act.TargetID
				killSeq = act.seq
			}
		case ActionProtect:
			protectTarget = act.TargetID
		case ActionInvestigate:
			target := g.players[act.TargetID]
			events = append(events, privateEvent(EventInvestigationResult, act.ActorID, InvestigationPayload{
				TargetID: act.TargetID,
				IsMafia:  target.Role == RoleMafia,
			}))
		}
	}

	if killTarget != "" {
		if killTarget == protectTarget {
			g.log("protected", "")
			events = append(events, publicEvent(EventPlayerProtected, ProtectedPayload{Round: g.round}))
		} else {
			victim := g.players[killTarget]
			victim.Alive = false
			g.log("eliminated", killTarget)
			events = append(events, publicEvent(EventPlayerEliminated, EliminationPayload{
				PlayerID: victim.ID,
				Name:     victim.Name,
				Role:     victim.Role.String(),
				Cause:    "night",
			}))
		}
	}

	if w := g.checkWinLocked(); w != WinnerNone {
		return append(events, g.endGameLocked(w))
	}

	g.phase = PhaseDay
	g.log("phase_change", "day")
	events = append(events, publicEvent(EventPhaseChange, PhaseChangePayload{
		Phase: g.phase.String(),
		Round: g.round,
		Alive: g.aliveIDsLocked(),
	}))
	return events
}
