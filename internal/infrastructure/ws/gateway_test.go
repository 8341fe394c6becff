package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hilthontt/huddle/internal/application/broadcast"
	"github.com/hilthontt/huddle/internal/domain"
	"github.com/hilthontt/huddle/internal/infrastructure/auth"
	"github.com/hilthontt/huddle/internal/infrastructure/logging"
	"github.com/hilthontt/huddle/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/huddle/internal/persistence/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frame struct {
	Type   string          `json:"type"`
	RoomID string          `json:"roomId"`
	Data   json.RawMessage `json:"data"`
}

type testServer struct {
	server *httptest.Server
	engine *broadcast.Engine
	tokens map[string]string
	issuer *auth.TokenIssuer
}

func newTestServer(t *testing.T, limiter ratelimiter.Limiter, opts Options) *testServer {
	t.Helper()

	users := repository.NewMemoryUserRepository()
	issuer := auth.NewTokenIssuer("test-secret-test-secret-test-secret", time.Hour)
	tokens := make(map[string]string)
	for _, name := range []string{"alice", "bob"} {
		user, err := domain.NewUser(name, "hash")
		require.NoError(t, err)
		require.NoError(t, users.Create(context.Background(), user))
		token, _, err := issuer.Issue(user.ID, user.Username)
		require.NoError(t, err)
		tokens[name] = token
	}

	engine := broadcast.NewEngine(
		broadcast.NewRegistry(),
		repository.NewMemoryMessageStore(100),
		users,
		logging.NewNop(),
		broadcast.Options{HistoryLimit: 10},
	)
	gateway := NewGateway(engine, auth.NewAuthenticator(issuer, users), limiter, logging.NewNop(), opts)

	server := httptest.NewServer(gateway)
	t.Cleanup(server.Close)

	return &testServer{server: server, engine: engine, tokens: tokens, issuer: issuer}
}

func (s *testServer) url() string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http")
}

func (s *testServer) dial(t *testing.T, user string) *websocket.Conn {
	t.Helper()

	header := http.Header{}
	if user != "" {
		header.Set("Authorization", "Bearer "+s.tokens[user])
	}
	conn, _, err := websocket.DefaultDialer.Dial(s.url(), header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	if user != "" {
		f := readFrame(t, conn)
		require.Equal(t, Authenticated, f.Type)
	}
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func send(t *testing.T, conn *websocket.Conn, eventType string, data any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"type": eventType, "data": data}))
}

func errorCode(t *testing.T, f frame) string {
	t.Helper()
	require.Equal(t, ErrorEvent, f.Type)
	var p ErrorPayload
	require.NoError(t, json.Unmarshal(f.Data, &p))
	return p.Code
}

func TestGateway_LobbyConversation(t *testing.T) {
	s := newTestServer(t, nil, Options{})
	alice := s.dial(t, "alice")
	bob := s.dial(t, "bob")

	send(t, alice, JoinRoom, RoomPayload{RoomID: "lobby"})
	f := readFrame(t, alice)
	assert.Equal(t, JoinRoomAnnouncement, f.Type)
	assert.Equal(t, "lobby", f.RoomID)

	send(t, bob, JoinRoom, RoomPayload{Username: "mallory", RoomID: "lobby"})
	for _, conn := range []*websocket.Conn{alice, bob} {
		f := readFrame(t, conn)
		require.Equal(t, JoinRoomAnnouncement, f.Type)
		var p AnnouncementPayload
		require.NoError(t, json.Unmarshal(f.Data, &p))
		assert.Equal(t, "bob", p.Username)
		assert.Equal(t, "lobby", p.RoomID)
	}

	send(t, alice, SendMessage, RoomPayload{RoomID: "lobby", Message: "hello"})
	for _, conn := range []*websocket.Conn{alice, bob} {
		f := readFrame(t, conn)
		require.Equal(t, ReceiveMessage, f.Type)
		var p MessagePayload
		require.NoError(t, json.Unmarshal(f.Data, &p))
		assert.Equal(t, "hello", p.Message)
		assert.Equal(t, "alice", p.Username)
		assert.Equal(t, "lobby", p.RoomID)
		assert.NotEmpty(t, p.ID)
	}

	send(t, bob, LeaveRoom, RoomPayload{RoomID: "lobby"})
	f = readFrame(t, alice)
	require.Equal(t, LeaveRoomAnnouncement, f.Type)
	var p AnnouncementPayload
	require.NoError(t, json.Unmarshal(f.Data, &p))
	assert.Equal(t, "bob", p.Username)
}

func TestGateway_HistoryOnJoin(t *testing.T) {
	s := newTestServer(t, nil, Options{})
	alice := s.dial(t, "alice")

	send(t, alice, JoinRoom, RoomPayload{RoomID: "lobby"})
	readFrame(t, alice)
	send(t, alice, SendMessage, RoomPayload{RoomID: "lobby", Message: "first"})
	readFrame(t, alice)

	bob := s.dial(t, "bob")
	send(t, bob, JoinRoom, RoomPayload{RoomID: "lobby"})
	assert.Equal(t, JoinRoomAnnouncement, readFrame(t, bob).Type)

	f := readFrame(t, bob)
	require.Equal(t, MessageHistory, f.Type)
	var p HistoryPayload
	require.NoError(t, json.Unmarshal(f.Data, &p))
	require.Len(t, p.Messages, 1)
	assert.Equal(t, "first", p.Messages[0].Message)
}

func TestGateway_UnauthenticatedSessionIsRejected(t *testing.T) {
	s := newTestServer(t, nil, Options{})
	conn := s.dial(t, "")

	send(t, conn, JoinRoom, RoomPayload{RoomID: "lobby"})
	assert.Equal(t, CodeUnauthorized, errorCode(t, readFrame(t, conn)))
	assert.Equal(t, 0, s.engine.MemberCount("lobby"))
}

func TestGateway_AuthenticateFrame(t *testing.T) {
	s := newTestServer(t, nil, Options{})
	conn := s.dial(t, "")

	send(t, conn, Authenticate, AuthenticatePayload{Token: "garbage"})
	assert.Equal(t, CodeUnauthorized, errorCode(t, readFrame(t, conn)))

	send(t, conn, Authenticate, AuthenticatePayload{Token: s.tokens["alice"]})
	f := readFrame(t, conn)
	require.Equal(t, Authenticated, f.Type)
	var p AuthenticatedPayload
	require.NoError(t, json.Unmarshal(f.Data, &p))
	assert.Equal(t, "alice", p.Username)

	send(t, conn, Authenticate, AuthenticatePayload{Token: s.tokens["bob"]})
	assert.Equal(t, CodeUnauthorized, errorCode(t, readFrame(t, conn)))
}

func TestGateway_TokenForUnknownUser(t *testing.T) {
	s := newTestServer(t, nil, Options{})
	token, _, err := s.issuer.Issue("ghost-id", "ghost")
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(s.url()+"?token="+token, nil)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, CodeUnauthorized, errorCode(t, readFrame(t, conn)))
}

func TestGateway_SendOutsideRoom(t *testing.T) {
	s := newTestServer(t, nil, Options{})
	alice := s.dial(t, "alice")

	send(t, alice, SendMessage, RoomPayload{RoomID: "lobby", Message: "hello"})
	f := readFrame(t, alice)
	assert.Equal(t, CodeNotInRoom, errorCode(t, f))
	assert.Equal(t, "lobby", f.RoomID)
}

func TestGateway_BadFrames(t *testing.T) {
	s := newTestServer(t, nil, Options{})
	alice := s.dial(t, "alice")

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("not json")))
	assert.Equal(t, CodeBadRequest, errorCode(t, readFrame(t, alice)))

	send(t, alice, "dance", map[string]string{})
	assert.Equal(t, CodeBadRequest, errorCode(t, readFrame(t, alice)))

	require.NoError(t, alice.WriteJSON(map[string]string{"type": JoinRoom}))
	assert.Equal(t, CodeBadRequest, errorCode(t, readFrame(t, alice)))

	send(t, alice, JoinRoom, RoomPayload{RoomID: ""})
	assert.Equal(t, CodeBadRequest, errorCode(t, readFrame(t, alice)))
}

func TestGateway_DisconnectAnnouncesLeave(t *testing.T) {
	s := newTestServer(t, nil, Options{})
	alice := s.dial(t, "alice")
	bob := s.dial(t, "bob")

	send(t, alice, JoinRoom, RoomPayload{RoomID: "lobby"})
	readFrame(t, alice)
	send(t, bob, JoinRoom, RoomPayload{RoomID: "lobby"})
	readFrame(t, alice)
	readFrame(t, bob)

	require.NoError(t, bob.Close())

	f := readFrame(t, alice)
	assert.Equal(t, LeaveRoomAnnouncement, f.Type)
	require.Eventually(t, func() bool {
		return s.engine.SessionCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, s.engine.MemberCount("lobby"))
}

func TestGateway_RateLimitsEvents(t *testing.T) {
	limiter := ratelimiter.New(ratelimiter.Options{MaxRatePerSecond: 1, MaxBurst: 1})
	s := newTestServer(t, limiter, Options{})
	alice := s.dial(t, "alice")

	send(t, alice, JoinRoom, RoomPayload{RoomID: "lobby"})
	assert.Equal(t, JoinRoomAnnouncement, readFrame(t, alice).Type)

	send(t, alice, SendMessage, RoomPayload{RoomID: "lobby", Message: "too fast"})
	assert.Equal(t, CodeRateLimited, errorCode(t, readFrame(t, alice)))
}

func TestGateway_CheckOrigin(t *testing.T) {
	s := newTestServer(t, nil, Options{AllowedOrigins: []string{"https://chat.example"}})

	header := http.Header{}
	header.Set("Origin", "https://evil.example")
	_, resp, err := websocket.DefaultDialer.Dial(s.url(), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "https://chat.example")
	conn, _, err := websocket.DefaultDialer.Dial(s.url(), header)
	require.NoError(t, err)
	_ = conn.Close()
}

func TestGateway_ShutdownClosesSockets(t *testing.T) {
	s := newTestServer(t, nil, Options{})
	alice := s.dial(t, "alice")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.engine.Shutdown(ctx))

	require.NoError(t, alice.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := alice.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestErrorCode(t *testing.T) {
	cases := map[error]string{
		domain.ErrUnauthorized:          CodeUnauthorized,
		domain.ErrNotInRoom:             CodeNotInRoom,
		domain.ErrPersistenceFailure:    CodePersistenceFailure,
		domain.ErrIdentityLookupFailure: CodeIdentityLookupFailure,
		domain.ErrInvalidInput:          CodeBadRequest,
		context.DeadlineExceeded:        CodeInternal,
	}
	for err, want := range cases {
		code, _ := ErrorCode(err)
		assert.Equal(t, want, code, err.Error())
	}
}
