package chat

import (
	"context"

	"github.com/google/uuid"

	"github.com/idfine/chatbot-platform/internal/catalog"
	"github.com/idfine/chatbot-platform/internal/conversation"
	"github.com/idfine/chatbot-platform/internal/flow"
	"github.com/idfine/chatbot-platform/internal/intent"
	"github.com/idfine/chatbot-platform/internal/odoo"
	"github.com/idfine/chatbot-platform/internal/session"
)

// The orchestrator depends on narrow slices of the surrounding services so
// tests can substitute fakes per concern.

// ConversationStore persists conversations and their messages.
type ConversationStore interface {
	GetOrCreate(ctx context.Context, id, visitorID, channel string, sourceGroupID *uuid.UUID) (*conversation.Conversation, error)
	SaveMessage(ctx context.Context, m conversation.Message) (*conversation.Message, error)
	History(ctx context.Context, conversationID uuid.UUID, limit int) ([]conversation.HistoryEntry, error)
}

// FlowEngine drives the multi-step flows.
type FlowEngine interface {
	ProcessStep(ctx context.Context, conversationID, userMessage, visitorID string) (*flow.StepResult, error)
	Start(ctx context.Context, conversationID string, t flow.Type, initialData map[string]any) (*flow.Flow, error)
}

// SessionStore resolves, extends and destroys verified customer sessions.
type SessionStore interface {
	Get(ctx context.Context, visitorID string) (*session.Session, error)
	Extend(ctx context.Context, visitorID string) (bool, error)
	Destroy(ctx context.Context, visitorID string) (bool, error)
}

// CustomerData is the ERP read surface behind the identity-requiring
// intents.
type CustomerData interface {
	GetPartner(ctx context.Context, partnerID int) (*odoo.Partner, error)
	PartnerOrders(ctx context.Context, partnerID, limit int) ([]odoo.OrderSummary, error)
	OrderDetails(ctx context.Context, orderID, partnerID int) (*odoo.OrderDetail, error)
	PartnerInvoices(ctx context.Context, partnerID, limit int) ([]odoo.InvoiceSummary, error)
	PartnerPayments(ctx context.Context, partnerID, limit int) ([]odoo.PaymentInfo, error)
	PartnerDeliveries(ctx context.Context, partnerID, limit int) ([]odoo.DeliverySummary, error)
	PartnerTickets(ctx context.Context, partnerID, limit int) ([]odoo.TicketSummary, error)
	GetSpendingReport(ctx context.Context, partnerID int) (*odoo.SpendingReport, error)
}

// ProductSearcher serves price, stock and product questions from the locally
// synced catalog.
type ProductSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]catalog.Product, error)
}

// GenerateRequest carries everything the responder may use to compose a
// reply: the question, the conversation so far, and the context blocks
// gathered for this turn.
type GenerateRequest struct {
	Message      string
	Intent       intent.Intent
	History      []conversation.HistoryEntry
	Context      string
	ProductData  string
	CustomerData string
}

// Generator produces the free-form answer for knowledge questions. The
// language-model backend sits behind this interface.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}
