package registry

import "github.com/tobyv/gamenight/internal/game/mafia"

// PlayerView is the public view of one player. Role is populated only for
// eliminated players, whose role has been revealed.
type PlayerView struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Alive  bool   `json:"alive"`
	IsHost bool   `json:"is_host"`
	Role   string `json:"role,omitempty"`
}

// Snapshot is the per-requester state view: public state plus the
// requester's own role only. Other living players' roles are never exposed.
type Snapshot struct {
	SessionID  string       `json:"session_id"`
	GameType   string       `json:"game_type"`
	Status     string       `json:"status"`
	Phase      string       `json:"phase"`
	Round      int          `json:"round"`
	Players    []PlayerView `json:"players"`
	YourRole   string       `json:"your_role,omitempty"`
	Eliminated []string     `json:"eliminated"`
	Winner     string       `json:"winner,omitempty"`
}

// SnapshotFor builds the state view of sessionID addressed to requesterID.
//
// Postcondition: The snapshot carries requesterID's role in YourRole (when
// assigned) and reveals only eliminated players' roles in the player list.
func (r *Registry) SnapshotFor(sessionID, requesterID string) (Snapshot, error) {
	r.mu.RLock()
	sess, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if !ok {
		return Snapshot{}, ErrSessionNotFound
	}

	snap := Snapshot{
		SessionID:  sess.ID,
		GameType:   sess.GameType.ID,
		Status:     string(sess.Status),
		Phase:      sess.Game.Phase().String(),
		Round:      sess.Game.Round(),
		Winner:     string(sess.Game.Winner()),
		Eliminated: []string{},
	}

	gameOver := sess.Game.Phase() == mafia.PhaseGameOver
	for _, p := range sess.Game.Players() {
		view := PlayerView{
			ID:     p.ID,
			Name:   p.Name,
			Alive:  p.Alive,
			IsHost: p.ID == sess.HostID,
		}
		if !p.Alive || gameOver {
			view.Role = p.Role.String()
		}
		if p.ID == requesterID && p.Role != mafia.RoleUnassigned {
			snap.YourRole = p.Role.String()
		}
		if !p.Alive {
			snap.Eliminated = append(snap.Eliminated, p.ID)
		}
		snap.Players = append(snap.Players, view)
	}
	return snap, nil
}
