// Package hub provides the per-process connection registry: point-to-point
// and fan-out delivery, channel subscriptions, presence tracking, and the
// stale-connection sweep.
package hub

import (
	"fmt"
	"sync"
	"time"

	"github.com/tobyv/gamenight/internal/message"
)

// Conn is one live client connection. Outbound envelopes are buffered on a
// channel that the transport's write loop drains.
type Conn struct {
	id      string
	userID  string
	groupID string
	name    string

	mu       sync.Mutex
	out      chan message.Envelope
	closed   bool
	lastSeen time.Time
}

func newConn(id, userID, groupID, name string, bufferSize int) *Conn {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	if name == "" {
		name = userID
	}
	return &Conn{
		id:       id,
		userID:   userID,
		groupID:  groupID,
		name:     name,
		out:      make(chan message.Envelope, bufferSize),
		lastSeen: time.Now().UTC(),
	}
}

// ID returns the connection id.
func (c *Conn) ID() string { return c.id }

// UserID returns the authenticated user this connection belongs to.
func (c *Conn) UserID() string { return c.userID }

// GroupID returns the group this connection belongs to.
func (c *Conn) GroupID() string { return c.groupID }

// Name returns the display name supplied at connect time.
func (c *Conn) Name() string { return c.name }

// Push enqueues an envelope for delivery.
//
// Postcondition: The envelope is buffered, or an error if the connection is
// closed or its buffer is full. Callers treat a Push error as an implicit
// disconnect.
func (c *Conn) Push(env message.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("connection %s is closed", c.id)
	}
	select {
	case c.out <- env:
		return nil
	default:
		return fmt.Errorf("connection %s send buffer full", c.id)
	}
}

// Events returns the read-only outbound channel. The transport's write loop
// reads from this channel until it is closed.
func (c *Conn) Events() <-chan message.Envelope {
	return c.out
}

// Close marks the connection closed and closes the outbound channel.
// Safe to call multiple times.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.out)
	}
}

// IsClosed reports whether the connection has been closed.
func (c *Conn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// touch refreshes the heartbeat timestamp.
func (c *Conn) touch(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSeen = now
}

// LastSeen returns the most recent heartbeat timestamp.
func (c *Conn) LastSeen() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen
}
