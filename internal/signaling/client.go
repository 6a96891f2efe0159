package signaling

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	// PollQueueSize is the maximum number of queued messages a pull client
	// carries before further sends are silently dropped.
	PollQueueSize = 30

	// PushSendBufferSize is the channel capacity backing a push client's
	// sink. It exists only to absorb momentary scheduling jitter between
	// Hub.Process and the websocket writer pump; Send never blocks on it
	// (see trySend), so a slow or wedged peer fills it and starts losing
	// sends instead of stalling the sender.
	PushSendBufferSize = 64

	// PollExpireLimit is how long a pull client may go without activity
	// before the sweeper considers it dead.
	PollExpireLimit = 3 * time.Minute

	// PushExpireLimit is the push-mode equivalent of PollExpireLimit.
	PushExpireLimit = 11 * time.Minute
)

// Mode is the transport discipline a Client currently uses.
type Mode int

const (
	// ModePush is a long-lived bidirectional stream (WebSocket): the hub
	// writes to pushSink immediately.
	ModePush Mode = iota
	// ModePull is HTTP long-polling: the hub buffers into queue and wakes
	// a waiting request via wake.
	ModePull
)

// Client is a handle to one attached peer. The hub holds Clients behind a
// map-level lock, but all of a Client's own mutable state (transport
// handles, queue, timestamp) is behind the Client's own mutex. The lock
// order is the hub's map lock first, then a Client's lock, never the
// reverse: the sweeper calls IsExpired and Mode while holding the map lock,
// and no Client method takes the hub's lock.
type Client struct {
	peerID string

	mu           sync.Mutex
	mode         Mode
	lastActivity time.Time
	queue        []Message
	pushSink     chan<- string // present iff mode == ModePush
	wake         chan struct{} // present iff mode == ModePull
}

// NewPushClient constructs a Client in push mode over the given outbound
// sink. The sink is a send-only channel; the websocket writer pump is the
// single consumer.
func NewPushClient(peerID string, sink chan<- string) *Client {
	return &Client{
		peerID:       peerID,
		mode:         ModePush,
		lastActivity: time.Now(),
		pushSink:     sink,
	}
}

// NewPullClient constructs a Client in pull mode with an empty queue and
// the given wake channel. wake must have capacity 1: producers use a
// non-blocking send, so a full channel just means "already signaled".
func NewPullClient(peerID string, wake chan struct{}) *Client {
	return &Client{
		peerID:       peerID,
		mode:         ModePull,
		lastActivity: time.Now(),
		wake:         wake,
	}
}

// PeerID returns the immutable registry key for this client.
func (c *Client) PeerID() string { return c.peerID }

// Mode reports the client's current transport discipline.
func (c *Client) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// SwitchToPush atomically replaces the transport with a push sink,
// preserving any queued messages and releasing the wake handle.
func (c *Client) SwitchToPush(sink chan<- string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = ModePush
	c.pushSink = sink
	c.wake = nil
}

// SwitchToPull atomically replaces the transport with a fresh wake
// channel, preserving any queued messages and releasing the push sink.
func (c *Client) SwitchToPull(wake chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = ModePull
	c.wake = wake
	c.pushSink = nil
}

// ReplaceWake swaps in a fresh wake channel for a pull client without
// touching anything else, so a previous waiter's channel can't be poked by
// a stale producer. No-op in push mode.
func (c *Client) ReplaceWake(wake chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == ModePull {
		c.wake = wake
	}
}

// ClearWake detaches the wake handle after a long-poll wait ends, leaving
// the client registered (but un-wakeable) until it either expires or a
// later request attaches a new wake channel.
func (c *Client) ClearWake() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wake = nil
}

// Send delivers msg to this client. In push mode it serializes msg and
// offers it to the push sink with a non-blocking try-send: a slow writer
// pump that has let the sink fill up is treated the same as a closed one
// (both report failure), so a stalled peer can never make Send block. In
// pull mode, a full queue drops the message and still reports success
// (intentional backpressure); otherwise the message is appended and, if
// the wake channel has room, a single non-blocking wake is sent. Either
// way, c.mu is only ever held across a non-blocking operation, never
// across a send that could itself wait on another goroutine.
func (c *Client) Send(msg Message) bool {
	raw, err := json.Marshal(msg)
	if err != nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode == ModePull {
		if len(c.queue) >= PollQueueSize {
			return true
		}
		c.queue = append(c.queue, msg)
		if c.wake != nil {
			select {
			case c.wake <- struct{}{}:
			default:
			}
		}
		return true
	}

	if c.pushSink == nil {
		return false
	}
	return trySend(c.pushSink, string(raw))
}

// trySend performs a non-blocking send guarded by a recover, so a send on a
// closed channel reports failure instead of panicking the caller, and a
// full channel reports failure instead of blocking the caller.
func trySend(sink chan<- string, payload string) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case sink <- payload:
		return true
	default:
		return false
	}
}

// Drain atomically takes the current queue and empties it, returning nil
// when the queue is empty. Push-mode sends never enqueue, so in push mode it
// only returns messages queued before a switch from pull mode.
func (c *Client) Drain() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return nil
	}
	out := c.queue
	c.queue = nil
	return out
}

// QueueLen reports the current queue depth (test/observability helper).
func (c *Client) QueueLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Touch sets last-activity to now.
func (c *Client) Touch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastActivity = time.Now()
}

// IsExpired reports whether this client has been silent longer than its
// mode-specific limit as of now.
func (c *Client) IsExpired(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	limit := PushExpireLimit
	if c.mode == ModePull {
		limit = PollExpireLimit
	}
	return now.Sub(c.lastActivity) > limit
}

// Close closes whichever transport handle is active. Idempotent: a second
// call observes a nil handle and does nothing.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == ModePush && c.pushSink != nil {
		closeSinkSafely(c.pushSink)
		c.pushSink = nil
		return
	}
	if c.wake != nil {
		closeWakeSafely(c.wake)
		c.wake = nil
	}
}

func closeSinkSafely(sink chan<- string) {
	defer func() { recover() }()
	close(sink)
}

func closeWakeSafely(wake chan struct{}) {
	defer func() { recover() }()
	close(wake)
}
