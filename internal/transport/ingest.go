package transport

import (
	"io"
	"net/http"

	"github.com/swarm-cloud/signalhub/internal/signaling"
)

// serveIngest handles the POST path of spec.md §4.7: validate id/token/rate
// limit, reject if the id is already attached in push mode, answer a
// "hello" probe with the version frame, otherwise parse the body as a batch
// of messages and route each through Hub.Process. The handler always
// replies 200 once past validation, even if the body fails to parse.
func (s *Server) serveIngest(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	token := r.URL.Query().Get("token")
	_, isHello := r.URL.Query()["hello"]

	if !validatePeerID(id) {
		http.Error(w, ErrUnauthorized.Error(), statusFor(ErrUnauthorized))
		return
	}

	if err := s.checkAuth(id, token); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	if client, existed := s.Hub.Get(id); existed && client.Mode() == signaling.ModePush {
		http.Error(w, ErrConflict.Error(), statusFor(ErrConflict))
		return
	}

	if isHello {
		payload, err := signaling.VersionHello(s.VersionNumber)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(payload)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err == nil {
		if msgs, parseErr := signaling.ParseMessages(body); parseErr == nil {
			for _, msg := range msgs {
				s.Hub.Process(msg, id)
			}
		}
	}

	w.WriteHeader(http.StatusOK)
}
