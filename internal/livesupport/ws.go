package livesupport

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/idfine/chatbot-platform/internal/auth"
	"github.com/idfine/chatbot-platform/internal/conversation"
	"github.com/idfine/chatbot-platform/pkg/logging"
)

// Close code sent when the agent token is missing or invalid.
const closeCodeUnauthorized = 4001

// ChatRequest is a customer message handed to the AI responder.
type ChatRequest struct {
	VisitorID      string
	ConversationID string
	Message        string
	SourceGroupID  string
	Channel        string
}

// ChatResult is the AI responder's reply for a widget message.
type ChatResult struct {
	ConversationID string
	Reply          string
	Intent         string
}

// Responder produces the AI reply for widget messages that are not in
// human mode. Implemented by the chat orchestrator.
type Responder interface {
	Respond(ctx context.Context, req ChatRequest) (*ChatResult, error)
}

type wsFrame struct {
	Type           string `json:"type"`
	Content        string `json:"content"`
	ConversationID string `json:"conversation_id"`
}

// lockedConn serializes writes to one websocket. gorilla supports at most
// one concurrent writer per connection, and registry deliveries from HTTP
// handlers race the read loop's own replies without this. Every raw conn is
// wrapped before it is registered or written to.
type lockedConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newLockedConn(conn *websocket.Conn) *lockedConn {
	return &lockedConn{conn: conn}
}

func (c *lockedConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// WSHandler serves the widget, agent and notification websocket endpoints.
type WSHandler struct {
	store     ConversationStore
	registry  *Registry
	queue     *Queue
	responder Responder
	jwtSecret string
	upgrader  websocket.Upgrader
	logger    *logging.Logger
}

// NewWSHandler creates the websocket handler. CheckOrigin accepts every
// origin; the widget is embedded on customer sites we do not control.
func NewWSHandler(store ConversationStore, registry *Registry, queue *Queue, responder Responder, jwtSecret string, logger *logging.Logger) *WSHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &WSHandler{
		store:     store,
		registry:  registry,
		queue:     queue,
		responder: responder,
		jwtSecret: jwtSecret,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// ServeWidget handles the customer widget socket. The customer speaks to
// the AI until the conversation is in human mode, after which messages are
// relayed to the assigned agent instead.
func (h *WSHandler) ServeWidget(w http.ResponseWriter, r *http.Request) {
	visitorID := chi.URLParam(r, "sessionID")
	sourceGroupID := r.URL.Query().Get("sg")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("widget upgrade failed", "visitor_id", visitorID, "error", err)
		return
	}
	defer conn.Close()
	wc := newLockedConn(conn)

	// Conversation id is learned from the first AI reply, or supplied by
	// the widget when it reconnects.
	conversationID := ""
	defer func() {
		if conversationID != "" {
			h.registry.UnregisterWidget(conversationID)
		}
	}()

	for {
		var frame wsFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		if frame.ConversationID != "" && frame.ConversationID != conversationID {
			if conversationID != "" {
				h.registry.UnregisterWidget(conversationID)
			}
			conversationID = frame.ConversationID
			h.registry.RegisterWidget(conversationID, wc)
		}

		switch frame.Type {
		case "ping":
			_ = wc.WriteJSON(Event{"type": "pong"})
		case "typing":
			if conversationID != "" {
				h.registry.SendToAgent(conversationID, Event{"type": "typing", "sender": "customer"})
			}
		case "message":
			h.handleWidgetMessage(r.Context(), wc, visitorID, &conversationID, sourceGroupID, frame.Content)
		}
	}
}

func (h *WSHandler) handleWidgetMessage(ctx context.Context, conn Conn, visitorID string, conversationID *string, sourceGroupID, content string) {
	content = strings.TrimSpace(content)
	if content == "" {
		return
	}

	// In human mode the message goes to the agent, not the AI.
	if *conversationID != "" {
		if convID, err := uuid.Parse(*conversationID); err == nil {
			conv, err := h.store.Get(ctx, convID)
			if err == nil && conv.Mode == conversation.ModeHuman {
				h.relayToAgent(ctx, conn, conv, content)
				return
			}
		}
	}

	result, err := h.responder.Respond(ctx, ChatRequest{
		VisitorID:      visitorID,
		ConversationID: *conversationID,
		Message:        content,
		SourceGroupID:  sourceGroupID,
		Channel:        "widget",
	})
	if err != nil {
		h.logger.Error("chat pipeline failed", "visitor_id", visitorID, "error", err)
		_ = conn.WriteJSON(Event{
			"type":    "error",
			"content": "Bir hata olustu, lutfen tekrar deneyin.",
		})
		return
	}

	_ = conn.WriteJSON(Event{"type": "stream_start", "conversation_id": result.ConversationID})
	_ = conn.WriteJSON(Event{"type": "stream_chunk", "content": result.Reply})
	_ = conn.WriteJSON(Event{
		"type":            "stream_end",
		"conversation_id": result.ConversationID,
		"sources":         []string{},
		"intent":          result.Intent,
	})

	if result.ConversationID != *conversationID {
		if *conversationID != "" {
			h.registry.UnregisterWidget(*conversationID)
		}
		*conversationID = result.ConversationID
		h.registry.RegisterWidget(*conversationID, conn)
	}
}

func (h *WSHandler) relayToAgent(ctx context.Context, conn Conn, conv *conversation.Conversation, content string) {
	msg, err := h.store.SaveMessage(ctx, conversation.Message{
		ConversationID: conv.ID,
		Role:           "user",
		Content:        content,
		SenderType:     "user",
	})
	if err != nil {
		h.logger.Error("customer message save failed", "conversation_id", conv.ID, "error", err)
		return
	}
	h.registry.SendToAgent(conv.ID.String(), Event{
		"type":            "customer_message",
		"content":         content,
		"conversation_id": conv.ID.String(),
		"message_id":      msg.ID.String(),
	})
	_ = conn.WriteJSON(Event{
		"type":            "human_ack",
		"message_id":      msg.ID.String(),
		"conversation_id": conv.ID.String(),
	})
}

// ServeAgent handles the agent's per-conversation socket. The agent must
// have claimed the conversation first.
func (h *WSHandler) ServeAgent(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("agent upgrade failed", "conversation_id", conversationID, "error", err)
		return
	}
	defer conn.Close()
	wc := newLockedConn(conn)

	claims, ok := h.authorize(conn, r)
	if !ok {
		return
	}
	agentID, err := claims.AgentUUID()
	if err != nil {
		h.closeUnauthorized(conn)
		return
	}

	convID, err := uuid.Parse(conversationID)
	if err != nil {
		_ = wc.WriteJSON(Event{"type": "error", "content": detailConversationNotFound})
		return
	}
	conv, err := h.store.Get(r.Context(), convID)
	if err != nil {
		_ = wc.WriteJSON(Event{"type": "error", "content": detailConversationNotFound})
		return
	}
	if conv.Mode != conversation.ModeHuman || conv.AssignedAgentID == nil || *conv.AssignedAgentID != agentID {
		_ = wc.WriteJSON(Event{"type": "error", "content": "Bu sohbeti devralmaniz gerekiyor"})
		return
	}

	msgs, err := h.store.Messages(r.Context(), convID)
	if err != nil {
		h.logger.Error("history load failed", "conversation_id", convID, "error", err)
		msgs = nil
	}
	_ = wc.WriteJSON(Event{
		"type":            "history",
		"messages":        transcriptJSON(msgs),
		"conversation_id": conversationID,
		"visitor_id":      conv.VisitorID,
		"channel":         conv.Channel,
	})

	h.registry.RegisterAgent(conversationID, wc)
	defer h.registry.UnregisterAgent(conversationID)

	for {
		var frame wsFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		switch frame.Type {
		case "ping":
			_ = wc.WriteJSON(Event{"type": "pong"})
		case "typing":
			h.registry.SendToWidget(conversationID, Event{"type": "typing", "sender": "agent"})
		case "message":
			content := strings.TrimSpace(frame.Content)
			if content == "" {
				continue
			}
			if _, err := h.store.SaveMessage(r.Context(), conversation.Message{
				ConversationID: convID,
				Role:           "assistant",
				Content:        content,
				SenderType:     "human",
				AgentID:        &agentID,
			}); err != nil {
				h.logger.Error("agent message save failed", "conversation_id", convID, "error", err)
				continue
			}
			h.registry.SendToWidget(conversationID, Event{"type": "stream_start", "conversation_id": conversationID})
			h.registry.SendToWidget(conversationID, Event{"type": "stream_chunk", "content": content})
			h.registry.SendToWidget(conversationID, Event{
				"type":            "stream_end",
				"conversation_id": conversationID,
				"sources":         []string{},
				"intent":          "human_response",
			})
		}
	}
}

// ServeNotifications handles the dashboard's queue notification socket.
func (h *WSHandler) ServeNotifications(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("notifications upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	wc := newLockedConn(conn)

	if _, ok := h.authorize(conn, r); !ok {
		return
	}

	h.registry.RegisterListener(wc)
	defer h.registry.UnregisterListener(wc)

	waiting, err := h.queue.Count(r.Context())
	if err != nil {
		h.logger.Warn("queue count failed", "error", err)
		waiting = 0
	}
	_ = wc.WriteJSON(Event{
		"type":          "queue_update",
		"event":         "connected",
		"waiting_count": waiting,
	})

	for {
		var frame wsFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		if frame.Type == "ping" {
			_ = wc.WriteJSON(Event{"type": "pong"})
		}
	}
}

func (h *WSHandler) authorize(conn *websocket.Conn, r *http.Request) (*auth.AgentClaims, bool) {
	claims, err := auth.Parse(h.jwtSecret, r.URL.Query().Get("token"))
	if err != nil {
		h.closeUnauthorized(conn)
		return nil, false
	}
	return claims, true
}

func (h *WSHandler) closeUnauthorized(conn *websocket.Conn) {
	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(closeCodeUnauthorized, "Yetkilendirme hatasi"), deadline)
}
