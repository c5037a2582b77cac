package ws

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"whisper/auth"
	"whisper/domain"
	"whisper/domain/event"
	"whisper/mocks"
	"whisper/observability"
	"whisper/presence"
	"whisper/runtime"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type wsFixture struct {
	registry    *presence.Registry
	broadcaster *runtime.Broadcaster
	chat        *mocks.MockIChatService
	tokens      *auth.TokenManager
	url         string
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)

	registry := presence.NewRegistry(log)
	monitoring := observability.NewMonitoring()
	broadcaster := runtime.NewBroadcaster(log, registry, monitoring, 16)
	chat := mocks.NewMockIChatService(ctrl)
	tokens := auth.NewTokenManager("ws-test-secret", "whisper", time.Hour)

	srv := NewServer(log, registry, chat, tokens, 8)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", srv.Handle)
	httpSrv := httptest.NewServer(mux)
	t.Cleanup(httpSrv.Close)

	ctx := t.Context()
	go func() { _ = broadcaster.Run(ctx) }()

	return &wsFixture{
		registry:    registry,
		broadcaster: broadcaster,
		chat:        chat,
		tokens:      tokens,
		url:         "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws",
	}
}

func (f *wsFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(f.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (f *wsFixture) identify(t *testing.T, conn *websocket.Conn, userID string) {
	t.Helper()
	token, err := f.tokens.Generate(userID)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(identifyFrame(t, token)))

	require.Eventually(t, func() bool {
		_, ok := f.registry.Lookup(userID)
		return ok
	}, time.Second, 10*time.Millisecond)
}

func identifyFrame(t *testing.T, token string) Envelope {
	t.Helper()
	env, err := NewEnvelope(EventIdentify, IdentifyPayload{Token: token})
	require.NoError(t, err)
	return env
}

func TestServer_IdentifyThenReceiveMessage(t *testing.T) {
	req := require.New(t)
	f := newWSFixture(t)

	conn := f.dial(t)
	f.identify(t, conn, "alice")

	msg, err := domain.NewMessage(uuid.New(), "bob", "hi alice", time.Now())
	req.NoError(err)
	f.broadcaster.Publish(event.MessageSent{Message: msg, RecipientID: "alice"})

	req.NoError(conn.SetReadDeadline(time.Now().Add(time.Second)))
	var env Envelope
	req.NoError(conn.ReadJSON(&env))
	req.Equal(event.NameNewMessage, env.Event)
	req.Contains(string(env.Data), "hi alice")
}

func TestServer_RejectsBadToken(t *testing.T) {
	req := require.New(t)
	f := newWSFixture(t)

	conn := f.dial(t)
	req.NoError(conn.WriteJSON(identifyFrame(t, "not-a-token")))

	// The server closes the connection without registering anyone.
	req.NoError(conn.SetReadDeadline(time.Now().Add(time.Second)))
	var env Envelope
	req.Error(conn.ReadJSON(&env))

	_, online := f.registry.Lookup("alice")
	req.False(online)
}

func TestServer_RejectsFramesBeforeIdentify(t *testing.T) {
	req := require.New(t)
	f := newWSFixture(t)

	conn := f.dial(t)
	env, err := NewEnvelope(EventJoin, JoinPayload{ChatID: uuid.New()})
	req.NoError(err)
	req.NoError(conn.WriteJSON(env))

	req.NoError(conn.SetReadDeadline(time.Now().Add(time.Second)))
	req.Error(conn.ReadJSON(&env))
}

func TestServer_TypingIsForwardedToService(t *testing.T) {
	req := require.New(t)
	f := newWSFixture(t)
	chatID := uuid.New()

	conn := f.dial(t)
	f.identify(t, conn, "alice")

	done := make(chan struct{})
	f.chat.EXPECT().
		Typing(domain.TypingCommand{ChatID: chatID, UserID: "alice", Active: true}).
		Do(func(domain.TypingCommand) { close(done) }).
		Times(1)

	env, err := NewEnvelope(event.NameTyping, TypingPayload{ChatID: chatID})
	req.NoError(err)
	req.NoError(conn.WriteJSON(env))

	select {
	case <-done:
	case <-time.After(time.Second):
		req.Fail("typing command never reached the service")
	}
}

func TestServer_DisconnectDropsPresence(t *testing.T) {
	req := require.New(t)
	f := newWSFixture(t)

	conn := f.dial(t)
	f.identify(t, conn, "alice")
	req.NoError(conn.Close())

	req.Eventually(func() bool {
		_, ok := f.registry.Lookup("alice")
		return !ok
	}, time.Second, 10*time.Millisecond)
}
