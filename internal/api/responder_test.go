package api

import (
	"context"
	"testing"

	"github.com/idfine/chatbot-platform/internal/chat"
	"github.com/idfine/chatbot-platform/internal/livesupport"
)

func TestAIResponderRespond(t *testing.T) {
	orchestrator := chat.New(chat.Options{Store: newMemoryConvStore()})
	responder := NewAIResponder(orchestrator)

	result, err := responder.Respond(context.Background(), livesupport.ChatRequest{
		VisitorID: "visitor-1",
		Message:   "merhaba",
		Channel:   "widget",
	})
	if err != nil {
		t.Fatalf("respond failed: %v", err)
	}
	if result.Reply == "" {
		t.Error("expected a non-empty reply")
	}
	if result.Intent != "GENERAL_INFO" {
		t.Errorf("expected intent GENERAL_INFO, got %q", result.Intent)
	}
	if result.ConversationID == "" {
		t.Error("expected a conversation id")
	}
}
