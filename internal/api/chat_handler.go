package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/idfine/chatbot-platform/internal/chat"
	"github.com/idfine/chatbot-platform/internal/observability/metrics"
	"github.com/idfine/chatbot-platform/pkg/logging"
)

// ChatHandler serves the REST chat surface for channels that cannot hold a
// websocket open (mobile apps, server-side integrations).
type ChatHandler struct {
	orchestrator *chat.Orchestrator
	metrics      *metrics.ChatMetrics
	logger       *logging.Logger
}

func NewChatHandler(orchestrator *chat.Orchestrator, m *metrics.ChatMetrics, logger *logging.Logger) *ChatHandler {
	if orchestrator == nil {
		panic("api: chat orchestrator cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ChatHandler{orchestrator: orchestrator, metrics: m, logger: logger}
}

type chatMessageRequest struct {
	VisitorID      string `json:"visitor_id"`
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
	SourceGroupID  string `json:"source_group_id"`
	Channel        string `json:"channel"`
}

type chatMessageResponse struct {
	ConversationID string        `json:"conversation_id"`
	Reply          string        `json:"reply"`
	Intent         string        `json:"intent"`
	Actions        []chat.Action `json:"actions,omitempty"`
}

func (h *ChatHandler) Message(w http.ResponseWriter, r *http.Request) {
	var req chatMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Gecersiz istek govdesi")
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.VisitorID == "" || req.Message == "" {
		writeError(w, http.StatusUnprocessableEntity, "visitor_id ve message alanlari zorunludur")
		return
	}
	if req.Channel == "" {
		req.Channel = "widget"
	}

	start := time.Now()
	reply, err := h.orchestrator.HandleMessage(r.Context(), req.ConversationID, req.VisitorID, req.Channel, req.SourceGroupID, req.Message)
	if err != nil {
		h.metrics.ObserveMessage("", req.Channel, "error")
		h.logger.Error("chat message failed", "visitor_id", req.VisitorID, "error", err)
		writeError(w, http.StatusInternalServerError, "Mesaj islenemedi")
		return
	}
	h.metrics.ObserveMessage(string(reply.Intent), req.Channel, "ok")
	h.metrics.ObserveTurnLatency(string(reply.Intent), time.Since(start).Seconds())

	writeJSON(w, http.StatusOK, chatMessageResponse{
		ConversationID: reply.ConversationID,
		Reply:          reply.Text,
		Intent:         string(reply.Intent),
		Actions:        reply.Actions,
	})
}

func (h *ChatHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
