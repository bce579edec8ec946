package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messenger-core/internal/apperr"
	"messenger-core/internal/auth"
	"messenger-core/internal/bus"
	"messenger-core/internal/config"
	"messenger-core/internal/logging"
	"messenger-core/internal/models"
	"messenger-core/internal/repositories"
	"messenger-core/internal/services"
	"messenger-core/internal/workerpool"
)

type fakeUsers map[string]models.User

func (f fakeUsers) GetUser(_ context.Context, id string) (models.User, error) {
	u, ok := f[id]
	if !ok {
		return models.User{}, repositories.ErrUserNotFound
	}
	return u, nil
}

type fakeMembers map[string][]string

func (f fakeMembers) IsMember(_ context.Context, roomID, userID string) bool {
	for _, id := range f[roomID] {
		if id == userID {
			return true
		}
	}
	return false
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []services.SendInput
	read    [][]string
	sendErr error
}

func (f *fakeSender) Send(_ context.Context, roomID, senderID string, in services.SendInput, _ ...bus.PublishOption) (models.MessageView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return models.MessageView{}, f.sendErr
	}
	f.sent = append(f.sent, in)
	return models.MessageView{ID: "m1", Room: roomID}, nil
}

func (f *fakeSender) MarkRead(_ context.Context, _, _ string, ids []string, _ ...bus.PublishOption) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.read = append(f.read, ids)
	return len(ids), nil
}

func (f *fakeSender) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type harness struct {
	srv    *httptest.Server
	bus    *bus.Bus
	tokens *auth.TokenParser
	sender *fakeSender
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := &harness{
		bus:    bus.New(logging.Discard()),
		tokens: auth.NewTokenParser("test-secret"),
		sender: &fakeSender{},
	}
	gw := NewGateway(Deps{
		Tokens: h.tokens,
		Users: fakeUsers{
			"u1": {ID: "u1", Name: "alice"},
			"u2": {ID: "u2", Name: "bob"},
			"u3": {ID: "u3", Name: "carol"},
		},
		Members:  fakeMembers{"r1": {"u1", "u2"}},
		Messages: h.sender,
		Hub:      h.bus,
		Pool:     workerpool.New(2),
		Config: config.WebSocket{
			PingInterval:   time.Second,
			PongTimeout:    5 * time.Second,
			WriteTimeout:   time.Second,
			MaxMessageSize: 4096,
			SendBuffer:     16,
		},
		Log: logging.Discard(),
	})

	r := gin.New()
	r.GET("/ws/chat/:room_id", gw.HandleChat)
	r.GET("/ws/notifications", gw.HandleNotifications)
	h.srv = httptest.NewServer(r)
	t.Cleanup(h.srv.Close)
	return h
}

func (h *harness) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := h.tokens.Sign(userID, time.Hour)
	require.NoError(t, err)
	return tok
}

func (h *harness) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (h *harness) join(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	before := h.bus.Subscribers(bus.RoomTopic("r1"))
	conn := h.dial(t, "/ws/chat/r1?token="+h.token(t, userID))
	require.Eventually(t, func() bool { return h.bus.Subscribers(bus.RoomTopic("r1")) == before+1 }, 2*time.Second, 10*time.Millisecond)
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var frame map[string]any
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, data, err := conn.ReadMessage()
	require.Error(t, err, "unexpected frame %s", data)
}

func expectClose(t *testing.T, conn *websocket.Conn, code int) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, code, closeErr.Code)
}

func TestHandshakeCloseCodes(t *testing.T) {
	h := newHarness(t)

	expectClose(t, h.dial(t, "/ws/chat/r1"), CloseNoToken)
	expectClose(t, h.dial(t, "/ws/chat/r1?token=garbage"), CloseInvalidToken)
	expectClose(t, h.dial(t, "/ws/chat/r1?token="+h.token(t, "ghost")), CloseUserNotFound)
	expectClose(t, h.dial(t, "/ws/chat/r1?token="+h.token(t, "u3")), CloseNotMember)
	expectClose(t, h.dial(t, "/ws/notifications"), CloseNoToken)
}

func TestCloseCodeFor(t *testing.T) {
	assert.Equal(t, CloseNoToken, CloseCodeFor(auth.ErrMissingToken))
	assert.Equal(t, CloseInvalidToken, CloseCodeFor(fmt.Errorf("%w: expired", auth.ErrInvalidToken)))
	assert.Equal(t, websocket.CloseInternalServerErr, CloseCodeFor(assert.AnError))
	assert.Equal(t, CloseUserNotFound, CloseCodeFor(ErrUnknownUser))
	assert.Equal(t, CloseNotMember, CloseCodeFor(ErrNotMember))
}

func TestPresenceAndTypingSkipTheOriginator(t *testing.T) {
	h := newHarness(t)
	a := h.join(t, "u1")
	b := h.join(t, "u2")

	online := readFrame(t, a)
	assert.Equal(t, models.FrameUserStatus, online["type"])
	assert.Equal(t, "u2", online["user_id"])
	assert.Equal(t, StatusOnline, online["status"])
	expectSilence(t, b)

	require.NoError(t, b.WriteJSON(map[string]any{"type": "typing", "is_typing": true}))
	typing := readFrame(t, a)
	assert.Equal(t, models.FrameTyping, typing["type"])
	assert.Equal(t, true, typing["is_typing"])
	assert.Equal(t, "bob", typing["user"].(map[string]any)["name"])
	expectSilence(t, b)

	require.NoError(t, b.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	offline := readFrame(t, a)
	assert.Equal(t, StatusOffline, offline["status"])
	assert.Equal(t, "u2", offline["user_id"])
}

func TestInboundFrameErrors(t *testing.T) {
	h := newHarness(t)
	a := h.join(t, "u1")

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte("{not json")))
	assert.Equal(t, map[string]any{"type": "error", "message": "invalid json"}, readFrame(t, a))

	require.NoError(t, a.WriteJSON(map[string]any{"type": "dance"}))
	assert.Equal(t, "unknown message type", readFrame(t, a)["message"])
}

func TestChatMessageGoesThroughSender(t *testing.T) {
	h := newHarness(t)
	a := h.join(t, "u1")

	require.NoError(t, a.WriteJSON(map[string]any{"type": "chat_message", "content": "hi", "reply_to": "m0"}))
	require.Eventually(t, func() bool { return h.sender.sentCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	h.sender.mu.Lock()
	in := h.sender.sent[0]
	h.sender.mu.Unlock()
	assert.Equal(t, "ws", in.Source)
	require.NotNil(t, in.Payload.Content)
	assert.Equal(t, "hi", *in.Payload.Content)
	require.NotNil(t, in.ReplyToID)
	assert.Equal(t, "m0", *in.ReplyToID)
}

func TestChatMessageFailureIsGeneric(t *testing.T) {
	h := newHarness(t)
	h.sender.sendErr = apperr.Internal("failed to create message", assert.AnError)
	a := h.join(t, "u1")

	require.NoError(t, a.WriteJSON(map[string]any{"type": "chat_message", "content": "hi"}))
	assert.Equal(t, "failed to create message", readFrame(t, a)["message"])
}

func TestChatMessageValidationIsReported(t *testing.T) {
	h := newHarness(t)
	h.sender.sendErr = apperr.Validation("content", "content is required for group messages")
	a := h.join(t, "u1")

	require.NoError(t, a.WriteJSON(map[string]any{"type": "chat_message"}))
	assert.Equal(t, "content is required for group messages", readFrame(t, a)["message"])
}

func TestNotificationsStream(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t, "/ws/notifications?token="+h.token(t, "u3"))
	require.Eventually(t, func() bool { return h.bus.Subscribers(bus.UserTopic("u3")) == 1 }, 2*time.Second, 10*time.Millisecond)

	frame := models.ServerFrame{Type: models.FrameNotification, Notification: &models.Notification{ID: "n1", Type: models.NotificationNewMessage}}
	require.NoError(t, h.bus.Publish(context.Background(), bus.UserTopic("u3"), frame))

	got := readFrame(t, conn)
	assert.Equal(t, models.FrameNotification, got["type"])
	assert.Equal(t, "n1", got["notification"].(map[string]any)["id"])

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return h.bus.Subscribers(bus.UserTopic("u3")) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestSlowConsumerIsClosed(t *testing.T) {
	cl := newClient(nil, ConnInfo{ConnID: "c1"}, models.UserSummary{}, config.WebSocket{SendBuffer: 1}, logging.Discard())

	assert.True(t, cl.Deliver([]byte("one")))
	assert.False(t, cl.Deliver([]byte("two")))
	select {
	case <-cl.done:
	default:
		t.Fatal("slow consumer was not closed")
	}
	assert.Equal(t, websocket.ClosePolicyViolation, cl.closeCode)
}

func TestRemovedMemberIsDisconnected(t *testing.T) {
	h := newHarness(t)
	a := h.join(t, "u1")
	b := h.join(t, "u2")
	assert.Equal(t, "online", readFrame(t, a)["status"])

	removed := models.ServerFrame{Type: models.FrameUserStatus, UserID: "u2", Status: "removed"}
	require.NoError(t, h.bus.Publish(context.Background(), bus.RoomTopic("r1"), removed, bus.EvictUser("u2")))

	assert.Equal(t, "removed", readFrame(t, b)["status"])
	expectClose(t, b, CloseNotMember)

	assert.Equal(t, "removed", readFrame(t, a)["status"])
	require.Eventually(t, func() bool { return h.bus.Subscribers(bus.RoomTopic("r1")) == 1 }, 2*time.Second, 10*time.Millisecond)
	expectSilence(t, a)
}
