package signaling

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessage_Empty(t *testing.T) {
	_, err := ParseMessage("")
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestParseMessage_RoundTrip(t *testing.T) {
	raw := `{"action":"signal","to_peer_id":"peer-b","data":{"sdp":"v=0"}}`
	msg, err := ParseMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, ActionSignal, msg.Action)
	assert.Equal(t, "peer-b", msg.ToPeerID)
	assert.Empty(t, msg.From)
	assert.Empty(t, msg.Reason)
	assert.Nil(t, msg.Ver)

	out, err := json.Marshal(msg)
	require.NoError(t, err)
	// omitempty fields (to, from, from_peer_id, reason, ver) must not appear.
	assert.NotContains(t, string(out), `"to"`)
	assert.NotContains(t, string(out), `"from"`)
	assert.NotContains(t, string(out), `"from_peer_id"`)
	assert.NotContains(t, string(out), `"reason"`)
	assert.NotContains(t, string(out), `"ver"`)
}

func TestMessage_EffectiveDestination(t *testing.T) {
	t.Run("prefers to_peer_id", func(t *testing.T) {
		to, ok := Message{ToPeerID: "a", To: "b"}.EffectiveDestination()
		assert.True(t, ok)
		assert.Equal(t, "a", to)
	})
	t.Run("falls back to legacy to", func(t *testing.T) {
		to, ok := Message{To: "b"}.EffectiveDestination()
		assert.True(t, ok)
		assert.Equal(t, "b", to)
	})
	t.Run("neither set", func(t *testing.T) {
		_, ok := Message{}.EffectiveDestination()
		assert.False(t, ok)
	})
}

func TestEncodedVersion(t *testing.T) {
	cases := map[string]int{
		"1.4":     14,
		"1.4.0":   14,
		"2.0":     20,
		"0.9":     9,
		"garbage": 0,
	}
	for in, want := range cases {
		assert.Equal(t, want, EncodedVersion(in), "input %q", in)
	}
}

func TestVersionHello(t *testing.T) {
	payload, err := VersionHello(14)
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"ver","ver":14}`, string(payload))
}

func TestParseMessages_Batch(t *testing.T) {
	body := []byte(`[{"action":"signal","to":"a"},{"action":"ping"}]`)
	msgs, err := ParseMessages(body)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, ActionSignal, msgs[0].Action)
	assert.Equal(t, ActionPing, msgs[1].Action)
}
