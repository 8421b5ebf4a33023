package bus

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tobyv/gamenight/internal/message"
)

// DefaultNamespace prefixes every channel name before it is published so
// that unrelated bus traffic is never re-injected.
const DefaultNamespace = "gamenight"

// LocalBroadcaster is the hub-side surface the bridge re-injects into.
type LocalBroadcaster interface {
	BroadcastToChannel(channel string, env message.Envelope) int
}

// busFrame is the wire format used on the bus: the envelope plus the
// publishing process's origin id, used to suppress self-echo.
type busFrame struct {
	Origin   string           `json:"origin"`
	Envelope message.Envelope `json:"envelope"`
}

// Bridge forwards outbound channel broadcasts to the bus and re-injects
// inbound bus messages into the local hub. It is the only path by which
// state produced on one process becomes visible to clients connected to
// another; it never writes into engine state.
type Bridge struct {
	bus       Bus
	local     LocalBroadcaster
	logger    *zap.Logger
	namespace string
	origin    string

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewBridge creates a Bridge over the given bus and local hub.
//
// Precondition: b, local, and logger must be non-nil.
func NewBridge(b Bus, local LocalBroadcaster, logger *zap.Logger) *Bridge {
	return &Bridge{
		bus:       b,
		local:     local,
		logger:    logger,
		namespace: DefaultNamespace,
		origin:    uuid.New().String(),
	}
}

// topic maps a local channel name to its namespaced bus topic.
func (br *Bridge) topic(channel string) string {
	return br.namespace + ":" + channel
}

// Broadcast fans an envelope out to the local channel subscribers and
// publishes it for other processes. A publish failure degrades to
// local-only delivery and is never fatal.
func (br *Bridge) Broadcast(ctx context.Context, channel string, env message.Envelope) int {
	delivered := br.local.BroadcastToChannel(channel, env)

	frame, err := json.Marshal(busFrame{Origin: br.origin, Envelope: env})
	if err != nil {
		br.logger.Error("encoding bus frame", zap.Error(err))
		return delivered
	}
	if err := br.bus.Publish(ctx, br.topic(channel), frame); err != nil {
		br.logger.Warn("bus publish failed, local delivery only",
			zap.String("channel", channel),
			zap.Error(err),
		)
	}
	return delivered
}

// Start launches the background listener that re-injects inbound bus
// messages into the local hub.
//
// Postcondition: Returns once the subscription is established; the listener
// runs until Stop is called.
func (br *Bridge) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	msgs, err := br.bus.Subscribe(ctx, br.topic("*"))
	if err != nil {
		cancel()
		return err
	}

	done := make(chan struct{})
	br.mu.Lock()
	br.cancel = cancel
	br.done = done
	br.mu.Unlock()

	go func() {
		defer close(done)
		for msg := range msgs {
			br.handle(msg)
		}
	}()
	return nil
}

// handle decodes one inbound bus message, strips the namespace prefix, and
// re-injects the envelope locally. Messages this process published are
// dropped to avoid double delivery.
func (br *Bridge) handle(msg Message) {
	channel, ok := strings.CutPrefix(msg.Topic, br.namespace+":")
	if !ok {
		return
	}

	var frame busFrame
	if err := json.Unmarshal(msg.Payload, &frame); err != nil {
		br.logger.Warn("dropping malformed bus frame",
			zap.String("topic", msg.Topic),
			zap.Error(err),
		)
		return
	}
	if frame.Origin == br.origin {
		return
	}
	br.local.BroadcastToChannel(channel, frame.Envelope)
}

// Stop cancels the listener and waits for it to drain.
func (br *Bridge) Stop() {
	br.mu.Lock()
	cancel, done := br.cancel, br.done
	br.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}
