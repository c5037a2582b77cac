package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"whisper/auth"
	"whisper/contract"
	"whisper/domain"
	"whisper/domain/event"
	"whisper/services"
	"whisper/sink"
)

const (
	writeWait    = 10 * time.Second
	identifyWait = 30 * time.Second
)

// Server upgrades HTTP requests to WebSocket connections and bridges them
// to the presence registry. One connection gets one ConnSink; the sink's
// lifetime is exactly the connection's lifetime.
type Server struct {
	log      *slog.Logger
	registry contract.IPresenceRegistry
	chat     services.IChatService
	tokens   *auth.TokenManager
	upgrader websocket.Upgrader

	// sinkBuffer bounds how many undelivered events a slow connection can
	// hold before the broadcaster starts dropping for it.
	sinkBuffer int
}

func NewServer(log *slog.Logger, registry contract.IPresenceRegistry,
	chat services.IChatService, tokens *auth.TokenManager, sinkBuffer int) *Server {
	return &Server{
		log:      log,
		registry: registry,
		chat:     chat,
		tokens:   tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		sinkBuffer: sinkBuffer,
	}
}

// Handle is the /ws endpoint. The first frame must be an identify carrying
// a valid token; everything before identification is rejected by closing
// the connection.
func (s *Server) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	connID := uuid.NewString()
	connSink := sink.NewConnSink(s.log, s.sinkBuffer)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	userID, ok := s.identify(conn)
	if !ok {
		_ = conn.Close()
		return
	}

	s.registry.Register(userID, connID, connSink)
	s.log.Info("connection identified", "user_id", userID, "conn_id", connID)

	go s.writePump(ctx, conn, connSink)
	s.readLoop(conn, connID, userID)

	// The read loop returning means the connection is gone. Unregister
	// synchronously so presence is correct before the handler exits.
	cancel()
	s.registry.Unregister(connID)
	_ = conn.Close()
	s.log.Info("connection closed", "user_id", userID, "conn_id", connID)
}

// identify blocks on the first frame and validates its token.
func (s *Server) identify(conn *websocket.Conn) (string, bool) {
	_ = conn.SetReadDeadline(time.Now().Add(identifyWait))
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()

	var env Envelope
	if err := conn.ReadJSON(&env); err != nil {
		return "", false
	}
	if env.Event != EventIdentify {
		s.log.Warn("first frame was not identify", "event", env.Event)
		return "", false
	}

	var payload IdentifyPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return "", false
	}

	claims, err := s.tokens.Validate(payload.Token)
	if err != nil {
		s.log.Warn("identify rejected", "error", err)
		return "", false
	}
	return claims.UserID, true
}

// readLoop dispatches inbound frames until the connection dies. Malformed
// frames are skipped, not fatal: a buggy client loses its own events only.
func (s *Server) readLoop(conn *websocket.Conn, connID, userID string) {
	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("read failed", "conn_id", connID, "error", err)
			}
			return
		}

		switch env.Event {
		case EventJoin:
			var payload JoinPayload
			if err := json.Unmarshal(env.Data, &payload); err != nil {
				continue
			}
			s.registry.Join(connID, payload.ChatID)

		case event.NameTyping, event.NameStopTyping:
			var payload TypingPayload
			if err := json.Unmarshal(env.Data, &payload); err != nil {
				continue
			}
			s.chat.Typing(domain.TypingCommand{
				ChatID: payload.ChatID,
				UserID: userID,
				Active: env.Event == event.NameTyping,
			})

		default:
			s.log.Debug("unknown inbound event", "event", env.Event)
		}
	}
}

// writePump drains the connection's sink onto the wire.
func (s *Server) writePump(ctx context.Context, conn *websocket.Conn, connSink *sink.ConnSink) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-connSink.Events:
			env, err := EncodeEvent(evt)
			if err != nil {
				s.log.Warn("cannot encode event", "error", err)
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(env); err != nil {
				s.log.Debug("write failed, closing", "error", err)
				_ = conn.Close()
				return
			}
		}
	}
}
