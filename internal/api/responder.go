package api

import (
	"context"

	"github.com/idfine/chatbot-platform/internal/chat"
	"github.com/idfine/chatbot-platform/internal/livesupport"
)

// AIResponder adapts the chat orchestrator to the live-support widget
// socket, which hands AI-mode messages to a Responder.
type AIResponder struct {
	orchestrator *chat.Orchestrator
}

func NewAIResponder(orchestrator *chat.Orchestrator) *AIResponder {
	return &AIResponder{orchestrator: orchestrator}
}

func (a *AIResponder) Respond(ctx context.Context, req livesupport.ChatRequest) (*livesupport.ChatResult, error) {
	reply, err := a.orchestrator.HandleMessage(ctx, req.ConversationID, req.VisitorID, req.Channel, req.SourceGroupID, req.Message)
	if err != nil {
		return nil, err
	}
	return &livesupport.ChatResult{
		ConversationID: reply.ConversationID,
		Reply:          reply.Text,
		Intent:         string(reply.Intent),
	}, nil
}
