package transport

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/swarm-cloud/signalhub/internal/signaling"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsMaxMessage = 8192
)

const (
	closeInvalidToken = 4000
	closeRateLimited  = 5000
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// serveWebSocket handles the push-mode path of spec.md §4.5: upgrade, check
// id/token/rate-limit, register a push Client, then run the reader and
// writer pumps adapted from the teacher's readPump/writePump.
func (s *Server) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	token := r.URL.Query().Get("token")

	if !validatePeerID(id) {
		http.Error(w, ErrUnauthorized.Error(), statusFor(ErrUnauthorized))
		return
	}

	authErr := s.checkAuth(id, token)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Debug("websocket upgrade failed", zap.String("id", id), zap.Error(err))
		return
	}

	if authErr != nil {
		code := closeInvalidToken
		reason := "invalid token"
		if authErr == ErrRateLimited {
			code = closeRateLimited
			reason = "rate limited"
		}
		closeWithCode(conn, code, reason)
		return
	}

	sink := make(chan string, signaling.PushSendBufferSize)
	client := signaling.NewPushClient(id, sink)
	s.Hub.Register(client)

	done := make(chan struct{})
	go s.wsWritePump(conn, sink, done)
	s.wsReadPump(conn, client, id)
	client.Close()

	<-done
	s.Hub.Unregister(id)
}

// wsReadPump mirrors the teacher's readPump: set the read deadline and the
// pong/ping handlers (both touch the client) once, then loop parsing text frames into Hub.Process. A binary
// frame or a read error ends the connection.
func (s *Server) wsReadPump(conn *websocket.Conn, client *signaling.Client, id string) {
	defer conn.Close()

	conn.SetReadLimit(wsMaxMessage)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		client.Touch()
		return nil
	})
	conn.SetPingHandler(func(appData string) error {
		client.Touch()
		_ = conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(wsWriteWait))
		return nil
	})

	for {
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.Log.Debug("websocket read error", zap.String("id", id), zap.Error(err))
			}
			return
		}
		if msgType != websocket.TextMessage {
			s.Log.Debug("unexpected binary frame, closing", zap.String("id", id))
			return
		}

		msg, err := signaling.ParseMessage(string(raw))
		if err != nil {
			s.Log.Debug("invalid signaling message", zap.String("id", id), zap.Error(err))
			continue
		}
		s.Hub.Process(msg, id)
	}
}

// wsWritePump mirrors the teacher's writePump: the first frame sent is the
// server's "ver" hello, then the pump drains sink until it is closed (by
// serveWebSocket once the read pump returns, or by the Hub sweeper closing
// an expired client), yields an empty string, or a write fails.
func (s *Server) wsWritePump(conn *websocket.Conn, sink <-chan string, done chan<- struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
		close(done)
	}()

	if err := s.writeHello(conn); err != nil {
		return
	}

	for {
		select {
		case payload, open := <-sink:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !open || payload == "" {
				conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeHello(conn *websocket.Conn) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	payload, err := signaling.VersionHello(s.VersionNumber)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func closeWithCode(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(wsWriteWait)
	msg := websocket.FormatCloseMessage(code, reason)
	conn.WriteControl(websocket.CloseMessage, msg, deadline)
	conn.Close()
}
