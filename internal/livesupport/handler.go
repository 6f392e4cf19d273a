package livesupport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/idfine/chatbot-platform/internal/conversation"
	httpmiddleware "github.com/idfine/chatbot-platform/internal/http/middleware"
	"github.com/idfine/chatbot-platform/pkg/logging"
)

// Customer-facing system messages, sent over the widget socket.
const (
	msgAgentJoined     = "Bir temsilci sohbete katıldı."
	msgAgentConnected  = "Bir temsilciye bağlandınız."
	msgWaitingForAgent = "Bir temsilciye bağlanıyorsunuz, lütfen bekleyin..."
	msgAgentLeft       = "Temsilci sohbetten ayrıldı. AI asistan tekrar aktif."
	msgRatingRequest   = "Sohbet kapatildi. Hizmetimizi degerlendirin."
)

const detailConversationNotFound = "Sohbet bulunamadi"

// Handler serves the live-support REST surface: escalation, queue listing,
// and the agent claim/release/close lifecycle.
type Handler struct {
	store    ConversationStore
	queue    *Queue
	registry *Registry
	assigner *Assigner
	logger   *logging.Logger
}

// NewHandler creates the live-support handler.
func NewHandler(store ConversationStore, queue *Queue, registry *Registry, assigner *Assigner, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		store:    store,
		queue:    queue,
		registry: registry,
		assigner: assigner,
		logger:   logger,
	}
}

// Routes returns the agent-authenticated live-support routes. Escalation is
// registered separately because the widget calls it without agent auth.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/queue", h.GetQueue)
	r.Get("/active", h.GetActive)
	r.Get("/{conversationID}/messages", h.GetMessages)
	r.Post("/claim/{conversationID}", h.Claim)
	r.Post("/release/{conversationID}", h.Release)
	r.Post("/close/{conversationID}", h.Close)
	r.Post("/{conversationID}/note", h.AddNote)
	return r
}

// GetQueue lists conversations waiting for an agent, oldest first.
func (h *Handler) GetQueue(w http.ResponseWriter, r *http.Request) {
	entries, err := h.queue.Waiting(r.Context())
	if err != nil {
		h.logger.Error("queue listing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Kuyruk okunamadi")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversations": entries,
		"total":         len(entries),
	})
}

// GetActive lists the conversations currently assigned to the calling agent.
func (h *Handler) GetActive(w http.ResponseWriter, r *http.Request) {
	claims, ok := httpmiddleware.AgentClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Yetkilendirme hatasi")
		return
	}
	agentID, err := claims.AgentUUID()
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Yetkilendirme hatasi")
		return
	}

	convs, err := h.store.AssignedTo(r.Context(), agentID)
	if err != nil {
		h.logger.Error("active conversation listing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Sohbetler okunamadi")
		return
	}

	response := make([]map[string]any, 0, len(convs))
	for _, conv := range convs {
		item := map[string]any{
			"conversation_id": conv.ID.String(),
			"visitor_id":      conv.VisitorID,
			"channel":         conv.Channel,
			"status":          conv.Status,
		}
		if last, err := h.store.History(r.Context(), conv.ID, 1); err == nil && len(last) > 0 {
			item["last_message"] = truncate(last[0].Content, previewLimit)
		}
		response = append(response, item)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversations": response,
		"total":         len(response),
	})
}

// GetMessages returns the transcript without claiming (read-only view).
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.loadConversation(w, r)
	if !ok {
		return
	}

	msgs, err := h.store.Messages(r.Context(), conv.ID)
	if err != nil {
		h.logger.Error("transcript load failed", "conversation_id", conv.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Mesajlar okunamadi")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id":   conv.ID.String(),
		"status":            conv.Status,
		"mode":              conv.Mode,
		"assigned_agent_id": uuidOrNil(conv.AssignedAgentID),
		"visitor_id":        conv.VisitorID,
		"channel":           conv.Channel,
		"messages":          transcriptJSON(msgs),
	})
}

// Escalate moves a conversation toward a human: auto-assign when possible,
// otherwise queue it and announce the escalation. Called by the widget, so
// it carries no agent auth.
func (h *Handler) Escalate(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.loadConversation(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	convID := conv.ID.String()

	if err := h.store.MarkWaiting(ctx, conv.ID); err != nil {
		h.logger.Error("escalation update failed", "conversation_id", convID, "error", err)
		writeError(w, http.StatusInternalServerError, "Islem basarisiz")
		return
	}

	lastMessage := ""
	if last, err := h.store.History(ctx, conv.ID, 1); err == nil && len(last) > 0 {
		lastMessage = last[0].Content
	}

	assignment, err := h.assigner.TryAutoAssign(ctx, conv.ID)
	if err != nil {
		h.logger.Error("auto-assign failed", "conversation_id", convID, "error", err)
		writeError(w, http.StatusInternalServerError, "Islem basarisiz")
		return
	}

	if assignment != nil {
		h.notifyQueueUpdate(ctx, convID, "auto_assigned")
		h.registry.SendToWidget(convID, Event{
			"type":    "system",
			"content": msgAgentConnected,
			"event":   "agent_joined",
		})
		writeJSON(w, http.StatusOK, map[string]any{
			"status":          "assigned",
			"conversation_id": convID,
			"agent_name":      assignment.AgentName,
		})
		return
	}

	// No agent online: queue it.
	sourceGroup := ""
	if conv.SourceGroupID != nil {
		sourceGroup = conv.SourceGroupID.String()
	}
	if err := h.queue.Add(ctx, Entry{
		ConversationID: convID,
		VisitorID:      conv.VisitorID,
		LastMessage:    lastMessage,
		SourceGroupID:  sourceGroup,
		Channel:        conv.Channel,
	}); err != nil {
		h.logger.Error("enqueue failed", "conversation_id", convID, "error", err)
		writeError(w, http.StatusInternalServerError, "Islem basarisiz")
		return
	}
	if err := h.registry.NotifyNewEscalation(ctx, convID, lastMessage, sourceGroup); err != nil {
		h.logger.Error("escalation notify failed", "conversation_id", convID, "error", err)
	}
	h.registry.SendToWidget(convID, Event{
		"type":    "system",
		"content": msgWaitingForAgent,
		"event":   "escalated",
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "waiting",
		"conversation_id": convID,
	})
}

// Claim assigns a waiting conversation to the calling agent. Contested
// claims are rejected: a conversation already held by another agent in
// human mode returns a conflict.
func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	claims, ok := httpmiddleware.AgentClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Yetkilendirme hatasi")
		return
	}
	agentID, err := claims.AgentUUID()
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Yetkilendirme hatasi")
		return
	}

	conv, ok := h.loadConversation(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	convID := conv.ID.String()

	if conv.Mode == conversation.ModeHuman && conv.AssignedAgentID != nil && *conv.AssignedAgentID != agentID {
		writeError(w, http.StatusConflict, "Bu sohbet başka bir temsilci tarafından devralınmış")
		return
	}

	if err := h.store.Assign(ctx, conv.ID, agentID); err != nil {
		h.logger.Error("claim failed", "conversation_id", convID, "error", err)
		writeError(w, http.StatusInternalServerError, "Islem basarisiz")
		return
	}
	if err := h.queue.Remove(ctx, convID); err != nil {
		h.logger.Warn("queue cleanup after claim failed", "conversation_id", convID, "error", err)
	}

	h.registry.SendToWidget(convID, Event{
		"type":    "system",
		"content": msgAgentJoined,
		"event":   "agent_joined",
	})
	h.notifyQueueUpdate(ctx, convID, "claimed")

	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "assigned",
		"conversation_id": convID,
		"agent_id":        agentID.String(),
	})
}

// Release hands the conversation back to the AI responder.
func (h *Handler) Release(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.loadConversation(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	convID := conv.ID.String()

	if err := h.store.Release(ctx, conv.ID); err != nil {
		h.logger.Error("release failed", "conversation_id", convID, "error", err)
		writeError(w, http.StatusInternalServerError, "Islem basarisiz")
		return
	}

	h.registry.SendToWidget(convID, Event{
		"type":    "system",
		"content": msgAgentLeft,
		"event":   "agent_left",
	})
	h.notifyQueueUpdate(ctx, convID, "released")

	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "active",
		"conversation_id": convID,
	})
}

// Close terminates the conversation and asks the customer for a rating.
func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.loadConversation(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	convID := conv.ID.String()

	if err := h.store.Close(ctx, conv.ID); err != nil {
		h.logger.Error("close failed", "conversation_id", convID, "error", err)
		writeError(w, http.StatusInternalServerError, "Islem basarisiz")
		return
	}

	h.registry.SendToWidget(convID, Event{
		"type":            "system",
		"content":         msgRatingRequest,
		"event":           "request_rating",
		"conversation_id": convID,
	})
	h.notifyQueueUpdate(ctx, convID, "closed")

	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "closed",
		"conversation_id": convID,
	})
}

// AddNote stores an internal agent note and relays it to the agent socket.
// Notes never reach the customer.
func (h *Handler) AddNote(w http.ResponseWriter, r *http.Request) {
	claims, ok := httpmiddleware.AgentClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Yetkilendirme hatasi")
		return
	}
	agentID, err := claims.AgentUUID()
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Yetkilendirme hatasi")
		return
	}

	var body struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Gecersiz istek govdesi")
		return
	}
	content := strings.TrimSpace(body.Content)
	if content == "" {
		writeError(w, http.StatusBadRequest, "Not icerigi bos olamaz")
		return
	}

	conv, ok := h.loadConversation(w, r)
	if !ok {
		return
	}

	note, err := h.store.SaveMessage(r.Context(), conversation.Message{
		ConversationID: conv.ID,
		Role:           "assistant",
		Content:        content,
		SenderType:     "note",
		AgentID:        &agentID,
	})
	if err != nil {
		h.logger.Error("note save failed", "conversation_id", conv.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Not kaydedilemedi")
		return
	}

	h.registry.SendToAgent(conv.ID.String(), Event{
		"type":       "note",
		"content":    content,
		"agent_name": claims.FullName,
		"created_at": note.CreatedAt.Format(time.RFC3339),
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"note_id":    note.ID.String(),
		"content":    content,
		"agent_name": claims.FullName,
	})
}

func (h *Handler) loadConversation(w http.ResponseWriter, r *http.Request) (*conversation.Conversation, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		writeError(w, http.StatusNotFound, detailConversationNotFound)
		return nil, false
	}
	conv, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			writeError(w, http.StatusNotFound, detailConversationNotFound)
			return nil, false
		}
		h.logger.Error("conversation load failed", "conversation_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Islem basarisiz")
		return nil, false
	}
	return conv, true
}

func (h *Handler) notifyQueueUpdate(ctx context.Context, conversationID, event string) {
	if err := h.registry.NotifyQueueUpdate(ctx, conversationID, event); err != nil {
		h.logger.Error("queue update notify failed", "conversation_id", conversationID, "error", err)
	}
}

func transcriptJSON(msgs []conversation.Message) []map[string]any {
	out := make([]map[string]any, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, map[string]any{
			"id":          m.ID.String(),
			"role":        m.Role,
			"content":     m.Content,
			"sender_type": m.SenderType,
			"agent_id":    uuidOrNil(m.AgentID),
			"created_at":  m.CreatedAt.Format(time.RFC3339),
		})
	}
	return out
}

func uuidOrNil(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
