package hub

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tobyv/gamenight/internal/message"
)

// ErrConnNotFound is returned when a connection lookup misses.
var ErrConnNotFound = errors.New("connection not found")

// UserChannel returns the private channel name for a user.
func UserChannel(userID string) string { return "user:" + userID }

// GroupChannel returns the shared channel name for a group.
func GroupChannel(groupID string) string { return "group:" + groupID }

// WelcomePayload is the acknowledgment returned to a freshly connected client.
type WelcomePayload struct {
	ConnectionID string    `json:"connection_id"`
	UserID       string    `json:"user_id"`
	ServerTime   time.Time `json:"server_time"`
}

// Hub is the per-process connection registry. It maintains four indices
// (by connection id, by user, by group, by channel) that are mutated only
// under one lock, keeping them mutually consistent.
//
// All methods are safe for concurrent use.
type Hub struct {
	logger *zap.Logger

	mu        sync.RWMutex
	conns     map[string]*Conn
	byUser    map[string]map[string]*Conn
	byGroup   map[string]map[string]*Conn
	byChannel map[string]map[string]*Conn
	channels  map[string]map[string]bool // connID → channel set
	presence  map[string]*presenceRecord

	bufferSize int
}

// New creates an empty Hub.
//
// Precondition: logger must be non-nil.
func New(logger *zap.Logger) *Hub {
	return &Hub{
		logger:     logger,
		conns:      make(map[string]*Conn),
		byUser:     make(map[string]map[string]*Conn),
		byGroup:    make(map[string]map[string]*Conn),
		byChannel:  make(map[string]map[string]*Conn),
		channels:   make(map[string]map[string]bool),
		presence:   make(map[string]*presenceRecord),
		bufferSize: 64,
	}
}

// Connect registers a new connection for the verified (userID, groupID)
// pair: indexes it, auto-subscribes it to the user and group channels,
// marks the user online, and announces the user to the rest of the group.
// name is display metadata and defaults to the user id.
//
// Precondition: userID and groupID must be non-empty and already verified
// by the identity collaborator.
// Postcondition: Returns the live Conn and a welcome ack envelope carrying
// the connection id and server time.
func (h *Hub) Connect(userID, groupID, name string) (*Conn, message.Envelope, error) {
	conn := newConn(uuid.New().String(), userID, groupID, name, h.bufferSize)
	now := time.Now().UTC()

	h.mu.Lock()
	h.conns[conn.id] = conn
	h.indexLocked(h.byUser, userID, conn)
	h.indexLocked(h.byGroup, groupID, conn)
	h.subscribeLocked(conn, UserChannel(userID))
	h.subscribeLocked(conn, GroupChannel(groupID))
	firstConn := len(h.byUser[userID]) == 1
	h.setPresenceLocked(userID, StatusOnline, now)
	h.mu.Unlock()

	h.logger.Info("connection registered",
		zap.String("conn_id", conn.id),
		zap.String("user_id", userID),
		zap.String("group_id", groupID),
	)

	if firstConn {
		if online, err := message.New(message.TypeNotification, message.NotificationPayload{
			Event:  "online",
			UserID: userID,
		}); err == nil {
			h.BroadcastToGroup(groupID, online, userID)
		}
	}

	welcome, err := message.New(message.TypeConnect, WelcomePayload{
		ConnectionID: conn.id,
		UserID:       userID,
		ServerTime:   now,
	})
	if err != nil {
		return nil, message.Envelope{}, err
	}
	return conn, welcome, nil
}

// Disconnect removes the connection from every index and closes it. When it
// was the user's last connection the user goes offline and the group is
// notified.
func (h *Hub) Disconnect(connID string) error {
	h.mu.Lock()
	conn, ok := h.conns[connID]
	if !ok {
		h.mu.Unlock()
		return ErrConnNotFound
	}

	delete(h.conns, connID)
	h.unindexLocked(h.byUser, conn.userID, connID)
	h.unindexLocked(h.byGroup, conn.groupID, connID)
	for channel := range h.channels[connID] {
		h.unindexLocked(h.byChannel, channel, connID)
	}
	delete(h.channels, connID)

	lastConn := len(h.byUser[conn.userID]) == 0
	if lastConn {
		h.setPresenceLocked(conn.userID, StatusOffline, time.Now().UTC())
	}
	h.mu.Unlock()

	conn.Close()
	h.logger.Info("connection removed",
		zap.String("conn_id", connID),
		zap.String("user_id", conn.userID),
	)

	if lastConn {
		if offline, err := message.New(message.TypeNotification, message.NotificationPayload{
			Event:  "offline",
			UserID: conn.userID,
		}); err == nil {
			h.BroadcastToGroup(conn.groupID, offline, conn.userID)
		}
	}
	return nil
}

// Get returns the connection with the given id.
func (h *Hub) Get(connID string) (*Conn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conn, ok := h.conns[connID]
	return conn, ok
}

// ConnCount returns the number of live connections.
func (h *Hub) ConnCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Send delivers an envelope to a single connection. A delivery failure
// tears the connection down.
func (h *Hub) Send(connID string, env message.Envelope) error {
	h.mu.RLock()
	conn, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return ErrConnNotFound
	}
	if err := conn.Push(env); err != nil {
		h.dropFailed(conn)
		return err
	}
	return nil
}

// SendToUser fans an envelope out to every live connection of userID,
// returning the number of deliveries.
func (h *Hub) SendToUser(userID string, env message.Envelope) int {
	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.byUser[userID]))
	for _, conn := range h.byUser[userID] {
		targets = append(targets, conn)
	}
	h.mu.RUnlock()
	return h.deliver(targets, env, nil)
}

// BroadcastToGroup fans an envelope out to every connection in groupID,
// skipping connections owned by any user in exclude.
func (h *Hub) BroadcastToGroup(groupID string, env message.Envelope, exclude ...string) int {
	skip := make(map[string]bool, len(exclude))
	for _, userID := range exclude {
		skip[userID] = true
	}

	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.byGroup[groupID]))
	for _, conn := range h.byGroup[groupID] {
		targets = append(targets, conn)
	}
	h.mu.RUnlock()
	return h.deliver(targets, env, skip)
}

// BroadcastToChannel fans an envelope out to every connection subscribed to
// channel. This is also the re-injection point for envelopes arriving from
// other processes via the bus.
func (h *Hub) BroadcastToChannel(channel string, env message.Envelope) int {
	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.byChannel[channel]))
	for _, conn := range h.byChannel[channel] {
		targets = append(targets, conn)
	}
	h.mu.RUnlock()
	return h.deliver(targets, env, nil)
}

// Subscribe adds the connection to a channel.
func (h *Hub) Subscribe(connID, channel string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn, ok := h.conns[connID]
	if !ok {
		return ErrConnNotFound
	}
	h.subscribeLocked(conn, channel)
	return nil
}

// Unsubscribe removes the connection from a channel.
func (h *Hub) Unsubscribe(connID, channel string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[connID]; !ok {
		return ErrConnNotFound
	}
	delete(h.channels[connID], channel)
	h.unindexLocked(h.byChannel, channel, connID)
	return nil
}

// Subscriptions returns the channels the connection is subscribed to.
func (h *Hub) Subscriptions(connID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]string, 0, len(h.channels[connID]))
	for channel := range h.channels[connID] {
		out = append(out, channel)
	}
	return out
}

// Heartbeat refreshes the connection's last-seen timestamp.
func (h *Hub) Heartbeat(connID string) error {
	h.mu.RLock()
	conn, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return ErrConnNotFound
	}
	conn.touch(time.Now().UTC())
	return nil
}

// SweepStale disconnects every connection whose last heartbeat is older
// than timeout, running full disconnect cleanup for each. Returns the ids
// of the removed connections.
func (h *Hub) SweepStale(timeout time.Duration) []string {
	cutoff := time.Now().UTC().Add(-timeout)

	h.mu.RLock()
	var stale []string
	for id, conn := range h.conns {
		if conn.LastSeen().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range stale {
		if err := h.Disconnect(id); err == nil {
			h.logger.Info("stale connection swept", zap.String("conn_id", id))
		}
	}
	return stale
}

// deliver pushes env to every target whose user is not excluded. Failed
// connections are torn down after delivery; there is no per-message retry.
func (h *Hub) deliver(targets []*Conn, env message.Envelope, skipUsers map[string]bool) int {
	var delivered int
	var failed []*Conn
	for _, conn := range targets {
		if skipUsers[conn.userID] {
			continue
		}
		if err := conn.Push(env); err != nil {
			failed = append(failed, conn)
			continue
		}
		delivered++
	}
	for _, conn := range failed {
		h.dropFailed(conn)
	}
	return delivered
}

// dropFailed treats a failed send as an implicit disconnect.
func (h *Hub) dropFailed(conn *Conn) {
	h.logger.Warn("send failed, dropping connection",
		zap.String("conn_id", conn.id),
		zap.String("user_id", conn.userID),
	)
	_ = h.Disconnect(conn.id)
}

func (h *Hub) indexLocked(index map[string]map[string]*Conn, key string, conn *Conn) {
	if index[key] == nil {
		index[key] = make(map[string]*Conn)
	}
	index[key][conn.id] = conn
}

func (h *Hub) unindexLocked(index map[string]map[string]*Conn, key, connID string) {
	if set, ok := index[key]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(index, key)
		}
	}
}

func (h *Hub) subscribeLocked(conn *Conn, channel string) {
	if h.channels[conn.id] == nil {
		h.channels[conn.id] = make(map[string]bool)
	}
	h.channels[conn.id][channel] = true
	h.indexLocked(h.byChannel, channel, conn)
}
