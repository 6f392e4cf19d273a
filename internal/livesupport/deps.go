package livesupport

import (
	"context"

	"github.com/google/uuid"

	"github.com/idfine/chatbot-platform/internal/conversation"
)

// ConversationStore is the slice of the conversation store the live-support
// surface consumes. *conversation.Store satisfies it.
type ConversationStore interface {
	Get(ctx context.Context, id uuid.UUID) (*conversation.Conversation, error)
	Messages(ctx context.Context, conversationID uuid.UUID) ([]conversation.Message, error)
	History(ctx context.Context, conversationID uuid.UUID, limit int) ([]conversation.HistoryEntry, error)
	SaveMessage(ctx context.Context, m conversation.Message) (*conversation.Message, error)
	MarkWaiting(ctx context.Context, conversationID uuid.UUID) error
	Assign(ctx context.Context, conversationID, agentID uuid.UUID) error
	Release(ctx context.Context, conversationID uuid.UUID) error
	Close(ctx context.Context, conversationID uuid.UUID) error
	AssignedTo(ctx context.Context, agentID uuid.UUID) ([]conversation.Conversation, error)
}
