package bus

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisBus implements Bus on a Redis pub/sub broker.
type RedisBus struct {
	client *redis.Client
}

var _ Bus = (*RedisBus)(nil)

// NewRedisBus connects to Redis and verifies the connection with a ping.
//
// Precondition: addr must be a reachable "host:port" Redis address.
// Postcondition: Returns a connected RedisBus or a non-nil error; callers
// fall back to NopBus on error.
func NewRedisBus(ctx context.Context, addr, password string, db int) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", addr, err)
	}
	return &RedisBus{client: client}, nil
}

// Publish sends payload on topic.
func (b *RedisBus) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := b.client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

// Subscribe opens a pattern subscription and pumps messages onto the
// returned channel until ctx is cancelled.
func (b *RedisBus) Subscribe(ctx context.Context, pattern string) (<-chan Message, error) {
	pubsub := b.client.PSubscribe(ctx, pattern)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", pattern, err)
	}

	out := make(chan Message, 64)
	go func() {
		defer close(out)
		defer pubsub.Close()
		in := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- Message{Topic: msg.Channel, Payload: []byte(msg.Payload)}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close releases the Redis client.
func (b *RedisBus) Close() error {
	return b.client.Close()
}
