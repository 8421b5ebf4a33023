// Package bus abstracts the external pub/sub medium used to propagate
// envelopes across server processes, and provides the bridge that connects
// it to the local connection hub.
package bus

import "context"

// Message is one raw message received from the bus.
type Message struct {
	Topic   string
	Payload []byte
}

// Bus is the narrow publish/subscribe contract. Implementations must be
// safe for concurrent use. The bus is an append-only broadcast medium:
// nothing in this service ever mutates it concurrently.
type Bus interface {
	// Publish sends payload on topic.
	Publish(ctx context.Context, topic string, payload []byte) error
	// Subscribe returns a channel of messages for every topic matching
	// pattern (glob-style, trailing '*' wildcard). The channel is closed
	// when ctx is cancelled or the bus is closed.
	Subscribe(ctx context.Context, pattern string) (<-chan Message, error)
	// Close releases the underlying transport.
	Close() error
}

// NopBus is the degraded-mode bus: publishes are dropped and subscriptions
// never deliver. Local-only fan-out continues to work when the broker is
// unreachable.
type NopBus struct{}

var _ Bus = (*NopBus)(nil)

// NewNopBus returns a Bus that does nothing.
func NewNopBus() *NopBus { return &NopBus{} }

// Publish discards the payload.
func (n *NopBus) Publish(context.Context, string, []byte) error { return nil }

// Subscribe returns a channel that never delivers and closes with ctx.
func (n *NopBus) Subscribe(ctx context.Context, _ string) (<-chan Message, error) {
	ch := make(chan Message)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

// Close is a no-op.
func (n *NopBus) Close() error { return nil }
