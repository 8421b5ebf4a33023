package hub

import "time"

// Status is a user's presence state.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// Presence is the queryable presence view for one user.
type Presence struct {
	Status   Status    `json:"status"`
	LastSeen time.Time `json:"last_seen"`
}

type presenceRecord struct {
	status   Status
	lastSeen time.Time
}

// setPresenceLocked updates the presence record for userID.
func (h *Hub) setPresenceLocked(userID string, status Status, at time.Time) {
	rec, ok := h.presence[userID]
	if !ok {
		rec = &presenceRecord{}
		h.presence[userID] = rec
	}
	rec.status = status
	rec.lastSeen = at
}

// UserPresence returns the presence of userID. Unknown users report offline
// with a zero last-seen time.
func (h *Hub) UserPresence(userID string) Presence {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rec, ok := h.presence[userID]
	if !ok {
		return Presence{Status: StatusOffline}
	}
	return Presence{Status: rec.status, LastSeen: rec.lastSeen}
}

// GroupPresence returns the presence of every user with a live connection
// in groupID. Users whose connections were all closed or swept no longer
// appear.
func (h *Hub) GroupPresence(groupID string) map[string]Presence {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]Presence)
	for _, conn := range h.byGroup[groupID] {
		if _, seen := out[conn.userID]; seen {
			continue
		}
		if rec, ok := h.presence[conn.userID]; ok {
			out[conn.userID] = Presence{Status: rec.status, LastSeen: rec.lastSeen}
		}
	}
	return out
}
