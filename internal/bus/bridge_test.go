package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tobyv/gamenight/internal/message"
)

// recordingHub captures channel broadcasts for assertions.
type recordingHub struct {
	mu     sync.Mutex
	events []broadcast
}

type broadcast struct {
	channel string
	env     message.Envelope
}

func (r *recordingHub) BroadcastToChannel(channel string, env message.Envelope) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, broadcast{channel: channel, env: env})
	return 1
}

func (r *recordingHub) broadcasts() []broadcast {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]broadcast, len(r.events))
	copy(out, r.events)
	return out
}

func TestBridgeBroadcastDeliversLocallyAndPublishes(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBus()
	local := &recordingHub{}
	bridge := NewBridge(b, local, zaptest.NewLogger(t))

	tap, err := b.Subscribe(ctx, "gamenight:*")
	require.NoError(t, err)

	env, err := message.New(message.TypeChatMessage, message.ChatPayload{Text: "hi"})
	require.NoError(t, err)

	n := bridge.Broadcast(ctx, "group:g1", env)
	assert.Equal(t, 1, n)

	events := local.broadcasts()
	require.Len(t, events, 1)
	assert.Equal(t, "group:g1", events[0].channel)

	msg := recvMessage(t, tap)
	assert.Equal(t, "gamenight:group:g1", msg.Topic)
}

func TestBridgeSuppressesOwnFrames(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBus()
	local := &recordingHub{}
	bridge := NewBridge(b, local, zaptest.NewLogger(t))

	require.NoError(t, bridge.Start(ctx))
	defer bridge.Stop()

	env, err := message.New(message.TypeChatMessage, message.ChatPayload{Text: "echo?"})
	require.NoError(t, err)

	bridge.Broadcast(ctx, "group:g1", env)

	// Give the listener a chance to (wrongly) re-inject.
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, local.broadcasts(), 1, "own frames must not be re-injected")
}

func TestBridgeReinjectsForeignFrames(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBus()

	localA := &recordingHub{}
	localB := &recordingHub{}
	bridgeA := NewBridge(b, localA, zaptest.NewLogger(t))
	bridgeB := NewBridge(b, localB, zaptest.NewLogger(t))

	require.NoError(t, bridgeA.Start(ctx))
	defer bridgeA.Stop()
	require.NoError(t, bridgeB.Start(ctx))
	defer bridgeB.Stop()

	env, err := message.New(message.TypeChatMessage, message.ChatPayload{Text: "cross"})
	require.NoError(t, err)
	bridgeA.Broadcast(ctx, "session:s1", env)

	assert.Eventually(t, func() bool {
		events := localB.broadcasts()
		return len(events) == 1 && events[0].channel == "session:s1"
	}, time.Second, 10*time.Millisecond)

	events := localB.broadcasts()
	require.Len(t, events, 1)
	assert.Equal(t, message.TypeChatMessage, events[0].env.Type)

	// The publisher's own hub saw exactly the one local delivery.
	assert.Len(t, localA.broadcasts(), 1)
}

func TestBridgeIgnoresForeignNamespaces(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBus()
	local := &recordingHub{}
	bridge := NewBridge(b, local, zaptest.NewLogger(t))

	require.NoError(t, bridge.Start(ctx))
	defer bridge.Stop()

	require.NoError(t, b.Publish(ctx, "gamenight:chan", []byte("not json")))
	require.NoError(t, b.Publish(ctx, "unrelated:chan", []byte(`{"origin":"x"}`)))

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, local.broadcasts(), "malformed and foreign traffic is dropped")
}

func TestBridgeStopDrainsListener(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBus()
	bridge := NewBridge(b, &recordingHub{}, zaptest.NewLogger(t))

	require.NoError(t, bridge.Start(ctx))
	bridge.Stop()
	// A second Stop must not hang or panic.
	bridge.Stop()
}

func TestBridgeDegradedModeStaysLocal(t *testing.T) {
	ctx := context.Background()
	local := &recordingHub{}
	bridge := NewBridge(NewNopBus(), local, zaptest.NewLogger(t))

	require.NoError(t, bridge.Start(ctx))
	defer bridge.Stop()

	env, err := message.New(message.TypeNotification, nil)
	require.NoError(t, err)

	n := bridge.Broadcast(ctx, "group:g1", env)
	assert.Equal(t, 1, n)
	assert.Len(t, local.broadcasts(), 1)
}
