package mafia

// StartVoting transitions Day to Voting and opens the voting window.
//
// Postcondition: Phase() == PhaseVoting; emits a public voting_started event
// listing the alive players and the window length.
func (g *Game) StartVoting() ([]Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase == PhaseGameOver {
		return nil, ErrGameOver
	}
	if g.phase != PhaseDay {
		return nil, ErrWrongPhase
	}

	g.phase = PhaseVoting
	g.votes = make(map[string]string)
	g.log("phase_change", "voting")

	return []Event{publicEvent(EventVotingStarted, VotingStartedPayload{
		Round:   g.round,
		Alive:   g.aliveIDsLocked(),
		Seconds: int(g.cfg.VotingBudget.Seconds()),
	})}, nil
}

// CastVote records voterID's vote against targetID, overwriting any prior
// vote by that voter in the current round.
//
// Precondition: the game must be in the Voting phase; voter and target must
// both be alive players.
// Postcondition: On validation failure no state changes and a sentinel error
// is returned. Emits a public vote_cast event on success.
func (g *Game) CastVote(voterID, targetID string) ([]Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase == PhaseGameOver {
		return nil, ErrGameOver
	}
	if g.phase != PhaseVoting {
		return nil, ErrNotYourTurn
	}
	voter, ok := g.players[voterID]
	if !ok {
		return nil, ErrUnknownPlayer
	}
	if !voter.Alive {
		return nil, ErrDeadActor
	}
	target, ok := g.players[targetID]
	if !ok {
		return nil, ErrUnknownPlayer
	}
	if !target.Alive {
		return nil, ErrDeadTarget
	}

	g.votes[voterID] = targetID
	g.log("vote_cast", voterID)

	return []Event{publicEvent(EventVoteCast, VoteCastPayload{
		VoterID:  voterID,
		TargetID: targetID,
	})}, nil
}

// ResolveVoting tallies the current round's votes. A unique maximum
// eliminates that player and reveals their role; a tie eliminates no one.
// After the win check the game either ends or loops back into the next
// night, whose events are appended to the returned slice.
//
// Precondition: the game must be in the Voting phase.
func (g *Game) ResolveVoting() ([]Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase == PhaseGameOver {
		return nil, ErrGameOver
	}
	if g.phase != PhaseVoting {
		return nil, ErrWrongPhase
	}

	var events []Event
	if victim := g.tallyLocked(); victim != "" {
		p := g.players[victim]
		p.Alive = false
		g.log("eliminated", victim)
		events = append(events, publicEvent(EventPlayerEliminated, EliminationPayload{
			PlayerID: p.ID,
			Name:     p.Name,
			Role:     p.Role.String(),
			Cause:    "vote",
		}))
	} else {
		g.log("no_elimination", "")
	}

	if w := g.checkWinLocked(); w != WinnerNone {
		return append(events, g.endGameLocked(w)), nil
	}

	// No game over: loop straight back into the next night.
	g.phase = PhaseDay
	nightEvents, err := g.startNightLocked()
	if err != nil {
		return events, err
	}
	return append(events, nightEvents...), nil
}

// tallyLocked counts only alive voters' most recent votes and returns the
// unique-maximum target, or "" on a tie or when no votes were cast.
func (g *Game) tallyLocked() string {
	counts := make(map[string]int)
	for voterID, targetID := range g.votes {
		if voter, ok := g.players[voterID]; !ok || !voter.Alive {
			continue
		}
		counts[targetID]++
	}

	var best string
	var bestCount int
	tied := false
	for targetID, n := range counts {
		switch {
		case n > bestCount:
			best, bestCount, tied = targetID, n, false
		case n == bestCount:
			tied = true
		}
	}
	if tied || bestCount == 0 {
		return ""
	}
	return best
}
