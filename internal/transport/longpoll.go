package transport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/swarm-cloud/signalhub/internal/signaling"
)

// longPollWait is how long a GET pull request blocks waiting for a wake
// before returning an empty queue, matching spec.md §4.6.
const longPollWait = 60 * time.Second

// serveLongPoll handles the pull-mode path of spec.md §4.6. A peer with no
// existing registration is registered fresh and falls through to the wait
// step; a peer already registered in push mode gets 409 Conflict (the two
// transports are mutually exclusive per id); a peer already in pull mode
// with a non-empty queue returns immediately, otherwise replaces its wake
// handle and falls through to wait.
func (s *Server) serveLongPoll(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	token := r.URL.Query().Get("token")

	if !validatePeerID(id) {
		http.Error(w, ErrUnauthorized.Error(), statusFor(ErrUnauthorized))
		return
	}

	if err := s.checkAuth(id, token); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	client, existed := s.Hub.Get(id)

	if existed && client.Mode() == signaling.ModePush {
		http.Error(w, ErrConflict.Error(), statusFor(ErrConflict))
		return
	}

	if existed {
		if queued := client.Drain(); len(queued) > 0 {
			writeMessages(w, queued)
			return
		}
	} else {
		client = signaling.NewPullClient(id, nil)
		s.Hub.Register(client)
	}

	wake := make(chan struct{}, 1)
	client.ReplaceWake(wake)
	defer s.Hub.DetachPull(client)

	select {
	case <-wake:
		writeMessages(w, client.Drain())
	case <-time.After(longPollWait):
		writeMessages(w, nil)
	case <-r.Context().Done():
		return
	}
}

func writeMessages(w http.ResponseWriter, msgs []signaling.Message) {
	if msgs == nil {
		msgs = []signaling.Message{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(msgs)
}
