package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/idfine/chatbot-platform/internal/chat"
	"github.com/idfine/chatbot-platform/internal/conversation"
	"github.com/idfine/chatbot-platform/internal/observability/metrics"
	"github.com/idfine/chatbot-platform/pkg/logging"
)

type memoryConvStore struct {
	conv     *conversation.Conversation
	messages []conversation.Message
}

func newMemoryConvStore() *memoryConvStore {
	return &memoryConvStore{conv: &conversation.Conversation{
		ID:        uuid.New(),
		VisitorID: "visitor-1",
		Channel:   "widget",
		Status:    conversation.StatusActive,
		Mode:      conversation.ModeAI,
	}}
}

func (s *memoryConvStore) GetOrCreate(_ context.Context, _, _, _ string, _ *uuid.UUID) (*conversation.Conversation, error) {
	return s.conv, nil
}

func (s *memoryConvStore) SaveMessage(_ context.Context, m conversation.Message) (*conversation.Message, error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	s.messages = append(s.messages, m)
	return &m, nil
}

func (s *memoryConvStore) History(_ context.Context, _ uuid.UUID, _ int) ([]conversation.HistoryEntry, error) {
	return nil, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	logger := logging.Default()
	orchestrator := chat.New(chat.Options{Store: newMemoryConvStore(), Logger: logger})
	reg := prometheus.NewRegistry()
	chatMetrics := metrics.NewChatMetrics(reg)

	return New(&Config{
		Logger:         logger,
		ChatHandler:    NewChatHandler(orchestrator, chatMetrics, logger),
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestRouterChatMessageEndpoint(t *testing.T) {
	router := newTestRouter(t)

	body, err := json.Marshal(chatMessageRequest{
		VisitorID: "visitor-1",
		Message:   "merhaba",
	})
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/chat/message", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}

	var resp chatMessageResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Reply == "" {
		t.Error("expected a non-empty reply")
	}
	if resp.Intent != "GENERAL_INFO" {
		t.Errorf("expected intent GENERAL_INFO, got %q", resp.Intent)
	}
	if resp.ConversationID == "" {
		t.Error("expected a conversation id")
	}
}

func TestRouterChatMessageValidation(t *testing.T) {
	router := newTestRouter(t)

	body, _ := json.Marshal(chatMessageRequest{VisitorID: "visitor-1"})
	req := httptest.NewRequest(http.MethodPost, "/api/chat/message", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status %d, got %d", http.StatusUnprocessableEntity, rr.Code)
	}
}

func TestRouterChatMessageBadJSON(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/chat/message", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
}

func TestRouterAgentRoutesRequireSecret(t *testing.T) {
	// Without an agent JWT secret the protected surface is never mounted.
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/live-support/queue", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound && rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 404/405 without agent routes, got %d", rr.Code)
	}
}
