package livesupport

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idfine/chatbot-platform/internal/conversation"
)

type fakeResponder struct {
	result *ChatResult
	err    error
	lastReq ChatRequest
}

func (r *fakeResponder) Respond(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	r.lastReq = req
	if r.err != nil {
		return nil, r.err
	}
	return r.result, nil
}

type wsFixture struct {
	store     *fakeStore
	registry  *Registry
	responder *fakeResponder
	server    *httptest.Server
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := newFakeStore()
	registry := NewRegistry(rdb, nil)
	queue := NewQueue(rdb, time.Hour, nil)
	responder := &fakeResponder{}
	h := NewWSHandler(store, registry, queue, responder, testJWTSecret, nil)

	router := chi.NewRouter()
	router.Get("/ws/widget/{sessionID}", h.ServeWidget)
	router.Get("/ws/live-support/notifications", h.ServeNotifications)
	router.Get("/ws/live-support/{conversationID}", h.ServeAgent)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &wsFixture{store: store, registry: registry, responder: responder, server: server}
}

func (f *wsFixture) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	var event map[string]any
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func TestWidgetPingPong(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, "/ws/widget/visitor-1")

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	event := readEvent(t, conn)
	assert.Equal(t, "pong", event["type"])
}

func TestWidgetMessageStreamsAIReply(t *testing.T) {
	f := newWSFixture(t)
	convID := uuid.NewString()
	f.responder.result = &ChatResult{
		ConversationID: convID,
		Reply:          "Merhaba! Size nasil yardimci olabilirim?",
		Intent:         "GENERAL_INFO",
	}

	conn := f.dial(t, "/ws/widget/visitor-1?sg=grp-1")
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "message", "content": "merhaba"}))

	start := readEvent(t, conn)
	assert.Equal(t, "stream_start", start["type"])
	assert.Equal(t, convID, start["conversation_id"])

	chunk := readEvent(t, conn)
	assert.Equal(t, "stream_chunk", chunk["type"])
	assert.Equal(t, "Merhaba! Size nasil yardimci olabilirim?", chunk["content"])

	end := readEvent(t, conn)
	assert.Equal(t, "stream_end", end["type"])
	assert.Equal(t, "GENERAL_INFO", end["intent"])

	assert.Equal(t, "visitor-1", f.responder.lastReq.VisitorID)
	assert.Equal(t, "grp-1", f.responder.lastReq.SourceGroupID)
	assert.Equal(t, "widget", f.responder.lastReq.Channel)
}

func TestWidgetMessageInHumanModeRelaysToAgent(t *testing.T) {
	f := newWSFixture(t)
	conv := f.store.addConversation("visitor-1")
	agentID := uuid.New()
	require.NoError(t, f.store.Assign(context.Background(), conv.ID, agentID))

	agentConn := &fakeConn{}
	f.registry.RegisterAgent(conv.ID.String(), agentConn)

	conn := f.dial(t, "/ws/widget/visitor-1")
	require.NoError(t, conn.WriteJSON(map[string]string{
		"type":            "message",
		"content":         "kargom nerede",
		"conversation_id": conv.ID.String(),
	}))

	ack := readEvent(t, conn)
	assert.Equal(t, "human_ack", ack["type"])
	assert.Equal(t, conv.ID.String(), ack["conversation_id"])

	saved := f.store.messagesFor(conv.ID)
	require.Len(t, saved, 1)
	assert.Equal(t, "user", saved[0].Role)
	assert.Equal(t, "user", saved[0].SenderType)

	require.Len(t, agentConn.events(), 1)
	relayed := agentConn.events()[0].(Event)
	assert.Equal(t, "customer_message", relayed["type"])
	assert.Equal(t, "kargom nerede", relayed["content"])
}

func TestAgentSocketRejectsMissingToken(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, "/ws/live-support/"+uuid.NewString())

	var event map[string]any
	err := conn.ReadJSON(&event)
	require.Error(t, err)
	closeErr, ok := err.(*websocket.CloseError)
	require.True(t, ok)
	assert.Equal(t, closeCodeUnauthorized, closeErr.Code)
}

func TestAgentSocketRequiresClaim(t *testing.T) {
	f := newWSFixture(t)
	conv := f.store.addConversation("visitor-1")

	token := agentToken(t, uuid.New(), "Agent")
	conn := f.dial(t, "/ws/live-support/"+conv.ID.String()+"?token="+token)

	event := readEvent(t, conn)
	assert.Equal(t, "error", event["type"])
	assert.Equal(t, "Bu sohbeti devralmaniz gerekiyor", event["content"])
}

func TestAgentSocketSendsHistoryAndRelaysMessages(t *testing.T) {
	f := newWSFixture(t)
	conv := f.store.addConversation("visitor-1")
	agentID := uuid.New()
	require.NoError(t, f.store.Assign(context.Background(), conv.ID, agentID))
	_, err := f.store.SaveMessage(context.Background(), conversation.Message{
		ConversationID: conv.ID, Role: "user", Content: "temsilci lutfen", SenderType: "user",
	})
	require.NoError(t, err)

	widget := &fakeConn{}
	f.registry.RegisterWidget(conv.ID.String(), widget)

	token := agentToken(t, agentID, "Ayse Demir")
	conn := f.dial(t, "/ws/live-support/"+conv.ID.String()+"?token="+token)

	history := readEvent(t, conn)
	require.Equal(t, "history", history["type"])
	assert.Equal(t, conv.ID.String(), history["conversation_id"])
	assert.Equal(t, "visitor-1", history["visitor_id"])
	msgs := history["messages"].([]any)
	require.Len(t, msgs, 1)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "message", "content": "Merhaba, size yardimci olacagim."}))

	// The reply is stored and streamed to the widget.
	require.Eventually(t, func() bool {
		return len(f.store.messagesFor(conv.ID)) == 2
	}, 2*time.Second, 10*time.Millisecond)
	saved := f.store.messagesFor(conv.ID)[1]
	assert.Equal(t, "assistant", saved.Role)
	assert.Equal(t, "human", saved.SenderType)

	require.Eventually(t, func() bool {
		return len(widget.events()) == 3
	}, 2*time.Second, 10*time.Millisecond)
	end := widget.events()[2].(Event)
	assert.Equal(t, "stream_end", end["type"])
	assert.Equal(t, "human_response", end["intent"])
}

func TestNotificationsSocketSendsInitialCount(t *testing.T) {
	f := newWSFixture(t)
	token := agentToken(t, uuid.New(), "Agent")
	conn := f.dial(t, "/ws/live-support/notifications?token="+token)

	event := readEvent(t, conn)
	assert.Equal(t, "queue_update", event["type"])
	assert.Equal(t, "connected", event["event"])
	assert.EqualValues(t, 0, event["waiting_count"])

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	pong := readEvent(t, conn)
	assert.Equal(t, "pong", pong["type"])
}
