package bus

import (
	"context"
	"strings"
	"sync"
)

// MemoryBus is an in-process Bus for tests and single-process deployments.
// Publishes fan out synchronously to every matching subscription.
type MemoryBus struct {
	mu     sync.Mutex
	subs   []*memorySub
	closed bool
}

var _ Bus = (*MemoryBus)(nil)

type memorySub struct {
	pattern string
	ch      chan Message
	done    <-chan struct{}
}

// NewMemoryBus creates an empty in-memory bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

// Publish delivers payload to every subscription whose pattern matches
// topic. Slow subscribers drop messages rather than block the publisher.
func (b *MemoryBus) Publish(_ context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		if !matchTopic(sub.pattern, topic) {
			continue
		}
		select {
		case sub.ch <- Message{Topic: topic, Payload: payload}:
		case <-sub.done:
		default:
		}
	}
	return nil
}

// Subscribe registers a pattern subscription tied to ctx.
func (b *MemoryBus) Subscribe(ctx context.Context, pattern string) (<-chan Message, error) {
	sub := &memorySub{
		pattern: pattern,
		ch:      make(chan Message, 64),
		done:    ctx.Done(),
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		for i, s := range b.subs {
			if s == sub {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				break
			}
		}
		b.mu.Unlock()
		close(sub.ch)
	}()
	return sub.ch, nil
}

// Close drops all subscriptions.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = nil
	return nil
}

// matchTopic supports exact matches and a single trailing '*' wildcard,
// mirroring the subset of Redis glob patterns the bridge uses.
func matchTopic(pattern, topic string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(topic, prefix)
	}
	return pattern == topic
}
