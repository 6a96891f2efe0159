// Package transport implements the three external entry points onto the
// Hub: the WebSocket push handler (spec.md §4.5), the HTTP long-poll pull
// handler (§4.6), and the POST ingest handler (§4.7). All three share one
// route ("/") and the same id/token/rate-limit preconditions (§6/§7).
package transport

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/swarm-cloud/signalhub/internal/auth"
	"github.com/swarm-cloud/signalhub/internal/ratelimit"
	"github.com/swarm-cloud/signalhub/internal/signaling"
)

// MinPeerIDLength is the shortest id accepted for a peer (spec.md §6).
const MinPeerIDLength = 6

// Server wires the Hub to HTTP, applying the auth and rate-limit
// collaborators before any handler registers or routes a message.
type Server struct {
	Hub           *signaling.Hub
	Auth          auth.Config
	RateLimit     *ratelimit.Limiter
	VersionNumber int
	Log           *zap.Logger
}

// NewServer builds a Server. log may be nil, in which case logging is a
// no-op (convenient for tests).
func NewServer(hub *signaling.Hub, authCfg auth.Config, limiter *ratelimit.Limiter, versionNumber int, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if limiter == nil {
		limiter = ratelimit.New(false, 0)
	}
	return &Server{
		Hub:           hub,
		Auth:          authCfg,
		RateLimit:     limiter,
		VersionNumber: versionNumber,
		Log:           log.Named("transport"),
	}
}

// Handler returns the composed http.Handler for the single "/" route plus
// permissive CORS, matching the original's tower_http CorsLayer
// (allow-any-origin, GET+POST) for a browser-facing signaling endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.withCORS(s.serveRoot))
	return mux
}

func (s *Server) serveRoot(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if isWebSocketUpgrade(r) {
			s.serveWebSocket(w, r)
			return
		}
		s.serveLongPoll(w, r)
	case http.MethodPost:
		s.serveIngest(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) withCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next(w, r)
	}
}

func isWebSocketUpgrade(r *http.Request) bool {
	return httpHeaderContainsToken(r.Header.Get("Connection"), "upgrade") &&
		httpHeaderEqualFold(r.Header.Get("Upgrade"), "websocket")
}

// validatePeerID applies the common id precondition shared by all three
// handlers: present and at least MinPeerIDLength characters.
func validatePeerID(id string) bool {
	return len(id) >= MinPeerIDLength
}

// checkAuth applies the token and rate-limit collaborators shared by all
// three handlers, returning ErrUnauthorized or ErrRateLimited on failure.
func (s *Server) checkAuth(id, token string) error {
	if !auth.CheckToken(id, token, s.Auth) {
		return ErrUnauthorized
	}
	if !s.RateLimit.Allow() {
		return ErrRateLimited
	}
	return nil
}

// statusFor maps a transport sentinel error to the HTTP status the three
// handlers reply with.
func statusFor(err error) int {
	switch err {
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrRateLimited:
		return http.StatusInternalServerError
	case ErrConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
