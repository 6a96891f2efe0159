package signaling

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SweepInterval is the period of the liveness sweeper. The first tick
// fires one interval after construction, not immediately.
const SweepInterval = 6 * time.Minute

// Hub is the process-wide registry of attached peers. It routes inbound
// messages, owns the duplicate filter, and runs the periodic expiry sweep.
// A Hub is meant to be constructed once per process via NewHub.
type Hub struct {
	log *zap.Logger

	mu      sync.RWMutex
	clients map[string]*Client

	filter *DuplicateFilter

	stopSweep chan struct{}
	sweepOnce sync.Once
}

// NewHub constructs a Hub and starts its background sweeper goroutine,
// which runs for the process lifetime (call Stop to end it, e.g. in tests).
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{
		log:       log.Named("hub"),
		clients:   make(map[string]*Client),
		filter:    NewDuplicateFilter(),
		stopSweep: make(chan struct{}),
	}
	go h.sweepLoop()
	return h
}

// Stop ends the sweeper goroutine. Safe to call more than once.
func (h *Hub) Stop() {
	h.sweepOnce.Do(func() { close(h.stopSweep) })
}

// Register inserts client into the registry, replacing any prior client
// for the same peer ID. The replaced client (if any) is not closed here:
// its own connection will observe EOF independently and unregister itself.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.PeerID()] = client
}

// Unregister removes the client for peerID, reporting whether one was
// present.
func (h *Hub) Unregister(peerID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[peerID]; ok {
		delete(h.clients, peerID)
		return true
	}
	return false
}

// Get returns the client registered for peerID, if any. The returned
// pointer is a shared handle (its inner state is guarded by its own
// mutex); callers must not hold Hub's lock while operating on it.
func (h *Hub) Get(peerID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[peerID]
	return c, ok
}

// Count returns the number of currently registered peers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// DetachPull clears a pull client's wake handle and leaves it registered,
// called by the long-poll handler once its wait ends.
func (h *Hub) DetachPull(client *Client) {
	client.ClearWake()
}

// Process is the router: it dispatches msg, understood to have arrived
// from the already-authenticated fromPeerID, per the algorithm in
// spec.md §4.4.
func (h *Hub) Process(msg Message, fromPeerID string) {
	if msg.Action == "" {
		if sender, ok := h.Get(fromPeerID); ok {
			sender.Touch()
		}
		return
	}

	switch msg.Action {
	case ActionPing, ActionHeartbeat:
		h.processPing(fromPeerID)
		return
	}

	to, ok := msg.EffectiveDestination()
	if !ok {
		return
	}

	forwarded := Message{
		Action:     msg.Action,
		FromPeerID: fromPeerID,
		Data:       msg.Data,
	}

	key := FilterKey(fromPeerID, to)
	if h.filter.Contains(key) {
		return
	}

	target, _ := h.Get(to)

	switch msg.Action {
	case ActionSignal:
		h.processSignal(target, forwarded, to, fromPeerID, key)
	case ActionSignals:
		h.processSignals(target, forwarded, to, fromPeerID, key)
	case ActionReject:
		h.processReject(target, forwarded, key)
	default:
		h.log.Warn("unknown action", zap.String("action", msg.Action))
	}
}

// processSignal attempts one delivery, reporting success so callers (e.g.
// processSignals) know whether to continue.
func (h *Hub) processSignal(target *Client, msg Message, toPeerID, fromPeerID, key string) bool {
	if target == nil {
		h.handlePeerNotFound(fromPeerID, toPeerID, key)
		return false
	}
	if !h.sendWithUnregister(target, msg) {
		h.handlePeerNotFound(fromPeerID, toPeerID, key)
		return false
	}
	return true
}

// processSignals fans a JSON array out to individual synthetic "signal"
// messages sharing one destination lookup, stopping at the first failed
// delivery so downstream elements are not attempted.
func (h *Hub) processSignals(target *Client, msg Message, toPeerID, fromPeerID, key string) {
	var items []json.RawMessage
	if err := json.Unmarshal(msg.Data, &items); err != nil {
		h.log.Warn("signals payload is not a JSON array", zap.Error(err))
		return
	}
	for _, item := range items {
		synthetic := Message{
			Action:     ActionSignal,
			FromPeerID: msg.FromPeerID,
			Data:       item,
		}
		if !h.processSignal(target, synthetic, toPeerID, fromPeerID, key) {
			return
		}
	}
}

// processReject installs the filter entry and forwards the reject notice,
// but only if the destination currently exists — unlike peer-not-found, a
// reject toward a vanished peer does nothing.
func (h *Hub) processReject(target *Client, msg Message, key string) {
	if target == nil {
		return
	}
	h.filter.Put(key)
	h.sendWithUnregister(target, msg)
}

// handlePeerNotFound installs the filter entry and, if the original sender
// is still registered, notifies it that toPeerID is unreachable. Send
// failures on the notice itself are ignored.
func (h *Hub) handlePeerNotFound(fromPeerID, toPeerID, key string) {
	h.filter.Put(key)
	notice := Message{Action: ActionSignal, FromPeerID: toPeerID}
	if sender, ok := h.Get(fromPeerID); ok {
		h.sendWithUnregister(sender, notice)
	}
}

// processPing touches the sender and replies with a pong; a failed pong
// send unregisters the sender (its transport has quietly closed).
func (h *Hub) processPing(peerID string) {
	peer, ok := h.Get(peerID)
	if !ok {
		return
	}
	peer.Touch()
	if !peer.Send(Message{Action: ActionPong}) {
		h.Unregister(peerID)
	}
}

// sendWithUnregister sends msg to target and, if the send reports failure,
// unregisters target from the hub. Returns the send result.
func (h *Hub) sendWithUnregister(target *Client, msg Message) bool {
	if target.Send(msg) {
		return true
	}
	h.Unregister(target.PeerID())
	return false
}

// sweepLoop wakes every SweepInterval, evicts expired clients, and logs a
// summary. The scan builds the to-remove list under the map lock, then
// closes and removes those clients after releasing it, so routing is never
// blocked by Close() calls.
func (h *Hub) sweepLoop() {
	ticker := time.NewTicker(SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-h.stopSweep:
			return
		case <-ticker.C:
			h.sweepOnceNow()
		}
	}
}

func (h *Hub) sweepOnceNow() {
	now := time.Now()
	var expired []*Client
	var pushAlive, pullAlive int

	h.mu.RLock()
	for _, c := range h.clients {
		if c.IsExpired(now) {
			expired = append(expired, c)
			continue
		}
		if c.Mode() == ModePush {
			pushAlive++
		} else {
			pullAlive++
		}
	}
	h.mu.RUnlock()

	for _, c := range expired {
		c.Close()
	}

	if len(expired) > 0 {
		h.mu.Lock()
		for _, c := range expired {
			delete(h.clients, c.PeerID())
		}
		h.mu.Unlock()
	}

	var pushRemoved, pullRemoved int
	for _, c := range expired {
		if c.Mode() == ModePush {
			pushRemoved++
		} else {
			pullRemoved++
		}
	}
	if pushRemoved > 0 || pullRemoved > 0 {
		h.log.Info("sweep removed expired clients",
			zap.Int("push_removed", pushRemoved), zap.Int("pull_removed", pullRemoved))
	}
	h.log.Info("sweep finished",
		zap.Int("push_alive", pushAlive), zap.Int("pull_alive", pullAlive))
}
