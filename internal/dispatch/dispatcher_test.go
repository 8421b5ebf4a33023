package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tobyv/gamenight/internal/hub"
	"github.com/tobyv/gamenight/internal/message"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *hub.Hub) {
	t.Helper()
	h := hub.New(zaptest.NewLogger(t))
	return New(h, zaptest.NewLogger(t)), h
}

func TestDispatchRunsHandlersInOrder(t *testing.T) {
	d, h := newTestDispatcher(t)
	conn, _, err := h.Connect("u1", "g1", "")
	require.NoError(t, err)

	var calls []string
	d.RegisterFunc(message.TypeChatMessage, func(ctx context.Context, sender *hub.Conn, env message.Envelope) error {
		calls = append(calls, "first")
		return nil
	})
	d.RegisterFunc(message.TypeChatMessage, func(ctx context.Context, sender *hub.Conn, env message.Envelope) error {
		calls = append(calls, "second")
		return nil
	})

	d.Dispatch(context.Background(), conn, message.Envelope{Type: message.TypeChatMessage})
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestDispatchContinuesAfterHandlerError(t *testing.T) {
	d, h := newTestDispatcher(t)
	conn, _, err := h.Connect("u1", "g1", "")
	require.NoError(t, err)

	var ran bool
	d.RegisterFunc(message.TypeVote, func(ctx context.Context, sender *hub.Conn, env message.Envelope) error {
		return errors.New("boom")
	})
	d.RegisterFunc(message.TypeVote, func(ctx context.Context, sender *hub.Conn, env message.Envelope) error {
		ran = true
		return nil
	})

	d.Dispatch(context.Background(), conn, message.Envelope{Type: message.TypeVote})
	assert.True(t, ran, "an earlier handler error must not stop the chain")
}

func TestDispatchUnknownTypeIsDropped(t *testing.T) {
	d, h := newTestDispatcher(t)
	conn, _, err := h.Connect("u1", "g1", "")
	require.NoError(t, err)

	// Nothing registered: must not panic.
	d.Dispatch(context.Background(), conn, message.Envelope{Type: message.TypeHeartbeat})
}

func TestDispatchRefreshesHeartbeat(t *testing.T) {
	d, h := newTestDispatcher(t)
	conn, _, err := h.Connect("u1", "g1", "")
	require.NoError(t, err)

	before := conn.LastSeen()
	time.Sleep(5 * time.Millisecond)
	d.Dispatch(context.Background(), conn, message.Envelope{Type: message.TypeHeartbeat})
	assert.True(t, conn.LastSeen().After(before))
}

func TestDispatchSeparatesTypes(t *testing.T) {
	d, h := newTestDispatcher(t)
	conn, _, err := h.Connect("u1", "g1", "")
	require.NoError(t, err)

	var votes, chats int
	d.RegisterFunc(message.TypeVote, func(ctx context.Context, sender *hub.Conn, env message.Envelope) error {
		votes++
		return nil
	})
	d.RegisterFunc(message.TypeChatMessage, func(ctx context.Context, sender *hub.Conn, env message.Envelope) error {
		chats++
		return nil
	})

	d.Dispatch(context.Background(), conn, message.Envelope{Type: message.TypeVote})
	d.Dispatch(context.Background(), conn, message.Envelope{Type: message.TypeVote})
	d.Dispatch(context.Background(), conn, message.Envelope{Type: message.TypeChatMessage})

	assert.Equal(t, 2, votes)
	assert.Equal(t, 1, chats)
}
