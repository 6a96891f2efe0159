package signaling

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) *Hub {
	h := NewHub(nil)
	t.Cleanup(h.Stop)
	return h
}

func TestHub_RegisterUnregisterGet(t *testing.T) {
	h := newTestHub(t)
	c := NewPushClient("peer-a", make(chan string, 1))
	h.Register(c)

	got, ok := h.Get("peer-a")
	assert.True(t, ok)
	assert.Same(t, c, got)
	assert.Equal(t, 1, h.Count())

	assert.True(t, h.Unregister("peer-a"))
	assert.False(t, h.Unregister("peer-a"))
	assert.Equal(t, 0, h.Count())
}

func TestHub_Process_EmptyActionTouchesSender(t *testing.T) {
	h := newTestHub(t)
	c := NewPushClient("peer-a", make(chan string, 1))
	h.Register(c)

	before := c.lastActivityForTest()
	h.Process(Message{}, "peer-a")
	assert.True(t, c.lastActivityForTest().After(before) || c.lastActivityForTest().Equal(before))
}

func TestHub_Process_PingRepliesPong(t *testing.T) {
	h := newTestHub(t)
	sink := make(chan string, 1)
	c := NewPushClient("peer-a", sink)
	h.Register(c)

	h.Process(Message{Action: ActionPing}, "peer-a")

	payload := <-sink
	var msg Message
	require.NoError(t, json.Unmarshal([]byte(payload), &msg))
	assert.Equal(t, ActionPong, msg.Action)
}

func TestHub_Process_SignalForwardsFromPeerIDOnly(t *testing.T) {
	h := newTestHub(t)
	aSink := make(chan string, 1)
	bSink := make(chan string, 1)
	h.Register(NewPushClient("peer-a", aSink))
	h.Register(NewPushClient("peer-b", bSink))

	h.Process(Message{
		Action:   ActionSignal,
		ToPeerID: "peer-b",
		Reason:   "ignored",
		Data:     json.RawMessage(`{"sdp":"v=0"}`),
	}, "peer-a")

	payload := <-bSink
	var msg Message
	require.NoError(t, json.Unmarshal([]byte(payload), &msg))
	assert.Equal(t, ActionSignal, msg.Action)
	assert.Equal(t, "peer-a", msg.FromPeerID)
	assert.Empty(t, msg.Reason)
	assert.Empty(t, msg.ToPeerID)
	assert.JSONEq(t, `{"sdp":"v=0"}`, string(msg.Data))
}

func TestHub_Process_SignalToMissingPeerNotifiesSender(t *testing.T) {
	h := newTestHub(t)
	aSink := make(chan string, 1)
	h.Register(NewPushClient("peer-a", aSink))

	h.Process(Message{Action: ActionSignal, ToPeerID: "ghost"}, "peer-a")

	payload := <-aSink
	var msg Message
	require.NoError(t, json.Unmarshal([]byte(payload), &msg))
	assert.Equal(t, ActionSignal, msg.Action)
	assert.Equal(t, "ghost", msg.FromPeerID)

	assert.True(t, h.filter.Contains(FilterKey("peer-a", "ghost")))
}

func TestHub_Process_DuplicateNotFoundIsSuppressed(t *testing.T) {
	h := newTestHub(t)
	aSink := make(chan string, 2)
	h.Register(NewPushClient("peer-a", aSink))

	h.Process(Message{Action: ActionSignal, ToPeerID: "ghost"}, "peer-a")
	<-aSink
	h.Process(Message{Action: ActionSignal, ToPeerID: "ghost"}, "peer-a")

	select {
	case <-aSink:
		t.Fatal("second not-found notice should have been suppressed by the duplicate filter")
	default:
	}
}

func TestHub_Process_SignalsFanOut(t *testing.T) {
	h := newTestHub(t)
	bSink := make(chan string, 4)
	h.Register(NewPushClient("peer-a", make(chan string, 1)))
	h.Register(NewPushClient("peer-b", bSink))

	batch, err := json.Marshal([]json.RawMessage{
		json.RawMessage(`{"n":1}`),
		json.RawMessage(`{"n":2}`),
	})
	require.NoError(t, err)

	h.Process(Message{Action: ActionSignals, ToPeerID: "peer-b", Data: batch}, "peer-a")

	require.Len(t, bSink, 2)
	var first, second Message
	require.NoError(t, json.Unmarshal([]byte(<-bSink), &first))
	require.NoError(t, json.Unmarshal([]byte(<-bSink), &second))
	assert.JSONEq(t, `{"n":1}`, string(first.Data))
	assert.JSONEq(t, `{"n":2}`, string(second.Data))
}

func TestHub_Process_RejectDoesNothingForMissingPeer(t *testing.T) {
	h := newTestHub(t)
	aSink := make(chan string, 1)
	h.Register(NewPushClient("peer-a", aSink))

	h.Process(Message{Action: ActionReject, ToPeerID: "ghost"}, "peer-a")

	select {
	case <-aSink:
		t.Fatal("reject to a missing peer must not notify the sender")
	default:
	}
	assert.False(t, h.filter.Contains(FilterKey("peer-a", "ghost")))
}

func TestHub_DetachPull(t *testing.T) {
	h := newTestHub(t)
	wake := make(chan struct{}, 1)
	c := NewPullClient("peer-a", wake)
	h.Register(c)

	h.DetachPull(c)
	assert.True(t, c.Send(Message{Action: ActionSignal}))
	select {
	case <-wake:
		t.Fatal("wake should have been cleared by DetachPull")
	default:
	}
}

// lastActivityForTest exposes the unexported lastActivity field for assertions.
func (c *Client) lastActivityForTest() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}
