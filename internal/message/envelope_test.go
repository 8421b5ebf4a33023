package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNewSetsTimestamp(t *testing.T) {
	env, err := New(TypeChatMessage, ChatPayload{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, TypeChatMessage, env.Type)
	assert.False(t, env.Timestamp.IsZero())
	assert.NotEmpty(t, env.Data)
}

func TestNewNilPayload(t *testing.T) {
	env, err := New(TypeHeartbeat, nil)
	require.NoError(t, err)
	assert.Empty(t, env.Data)
}

func TestBuildersDoNotMutateOriginal(t *testing.T) {
	env, err := New(TypeNotification, nil)
	require.NoError(t, err)

	stamped := env.WithSender("u1").WithChannel("group:g1").WithTargets("u2", "u3")

	assert.Empty(t, env.SenderID)
	assert.Empty(t, env.Channel)
	assert.Nil(t, env.Targets)

	assert.Equal(t, "u1", stamped.SenderID)
	assert.Equal(t, "group:g1", stamped.Channel)
	assert.Equal(t, []string{"u2", "u3"}, stamped.Targets)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	env, err := New(TypeVote, VotePayload{SessionID: "s1", TargetID: "u9"})
	require.NoError(t, err)
	env = env.WithSender("u1").WithChannel("session:s1")

	data, err := env.Encode()
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, env.Type, decoded.Type)
	assert.Equal(t, env.SenderID, decoded.SenderID)
	assert.Equal(t, env.Channel, decoded.Channel)

	var payload VotePayload
	require.NoError(t, decoded.DecodeData(&payload))
	assert.Equal(t, "s1", payload.SessionID)
	assert.Equal(t, "u9", payload.TargetID)
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"launch_missiles"}`))
	assert.Error(t, err)
}

func TestDecodeRejectsInvalidJSON(t *testing.T) {
	_, err := Decode([]byte(`{"type":`))
	assert.Error(t, err)
}

func TestDecodeDataEmptyPayload(t *testing.T) {
	env, err := New(TypeHeartbeat, nil)
	require.NoError(t, err)

	var out ChatPayload
	assert.Error(t, env.DecodeData(&out))
}

func TestTypeValid(t *testing.T) {
	assert.True(t, TypeNightAction.Valid())
	assert.True(t, TypeGameOver.Valid())
	assert.False(t, Type("").Valid())
	assert.False(t, Type("bogus").Valid())
}

func TestPropertyChatRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		text := rapid.String().Draw(t, "text")
		sender := rapid.StringMatching(`[a-z0-9]{1,16}`).Draw(t, "sender")

		env, err := New(TypeChatMessage, ChatPayload{Text: text})
		require.NoError(t, err)
		env = env.WithSender(sender)

		data, err := env.Encode()
		require.NoError(t, err)
		decoded, err := Decode(data)
		require.NoError(t, err)

		var payload ChatPayload
		require.NoError(t, decoded.DecodeData(&payload))
		assert.Equal(t, text, payload.Text)
		assert.Equal(t, sender, decoded.SenderID)
	})
}
