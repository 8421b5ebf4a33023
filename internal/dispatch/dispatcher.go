// Package dispatch routes inbound typed messages to their registered
// handlers.
package dispatch

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/tobyv/gamenight/internal/hub"
	"github.com/tobyv/gamenight/internal/message"
)

// Handler processes one inbound message from a live connection.
type Handler interface {
	Handle(ctx context.Context, sender *hub.Conn, env message.Envelope) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, sender *hub.Conn, env message.Envelope) error

// Handle calls the underlying function.
func (f HandlerFunc) Handle(ctx context.Context, sender *hub.Conn, env message.Envelope) error {
	return f(ctx, sender, env)
}

// Dispatcher maps message types to ordered handler lists. Handlers for a
// type run in registration order; a handler error is logged and does not
// stop later handlers. All methods are safe for concurrent use.
type Dispatcher struct {
	logger *zap.Logger
	hub    *hub.Hub

	mu       sync.RWMutex
	handlers map[message.Type][]Handler
}

// New creates an empty Dispatcher.
//
// Precondition: h and logger must be non-nil.
func New(h *hub.Hub, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		logger:   logger,
		hub:      h,
		handlers: make(map[message.Type][]Handler),
	}
}

// Register appends a handler for the given message type.
func (d *Dispatcher) Register(typ message.Type, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[typ] = append(d.handlers[typ], h)
}

// RegisterFunc appends a function handler for the given message type.
func (d *Dispatcher) RegisterFunc(typ message.Type, f HandlerFunc) {
	d.Register(typ, f)
}

// Dispatch refreshes the sender's heartbeat and invokes every handler
// registered for the envelope's type, in registration order. Messages with
// no registered handler are dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, sender *hub.Conn, env message.Envelope) {
	// Any inbound traffic proves the connection is alive.
	_ = d.hub.Heartbeat(sender.ID())

	d.mu.RLock()
	chain := d.handlers[env.Type]
	d.mu.RUnlock()

	if len(chain) == 0 {
		d.logger.Debug("no handler for message type",
			zap.String("type", string(env.Type)),
			zap.String("user_id", sender.UserID()),
		)
		return
	}

	for _, h := range chain {
		if err := h.Handle(ctx, sender, env); err != nil {
			d.logger.Warn("handler error",
				zap.String("type", string(env.Type)),
				zap.String("user_id", sender.UserID()),
				zap.Error(err),
			)
		}
	}
}
