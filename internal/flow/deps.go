package flow

import (
	"context"

	"github.com/idfine/chatbot-platform/internal/catalog"
	"github.com/idfine/chatbot-platform/internal/odoo"
	"github.com/idfine/chatbot-platform/internal/otp"
	"github.com/idfine/chatbot-platform/internal/session"
)

// The handlers depend on narrow slices of the surrounding services so tests
// can substitute fakes per flow.

// SessionReader resolves the visitor's verified session, nil when absent.
type SessionReader interface {
	Get(ctx context.Context, visitorID string) (*session.Session, error)
}

// SessionWriter creates a session after successful verification.
type SessionWriter interface {
	Create(ctx context.Context, sess session.Session) (*session.Session, error)
}

// CodeVerifier issues and checks one-time verification codes.
type CodeVerifier interface {
	Request(ctx context.Context, visitorID, email string) (otp.Result, error)
	Verify(ctx context.Context, visitorID, email, code string) (otp.Result, error)
}

// TicketCreator opens helpdesk tickets.
type TicketCreator interface {
	CreateTicket(ctx context.Context, partnerID int, subject, description, priority string) (int, error)
}

// QuotationCreator creates draft sale orders.
type QuotationCreator interface {
	CreateQuotation(ctx context.Context, partnerID int, lines []odoo.QuotationLine, notes string) (*odoo.Quotation, error)
}

// OrderReader lists a customer's orders.
type OrderReader interface {
	PartnerOrders(ctx context.Context, partnerID, limit int) ([]odoo.OrderSummary, error)
}

// OrderCanceller files a cancellation request for an order.
type OrderCanceller interface {
	RequestOrderCancellation(ctx context.Context, orderID, partnerID int, reason string) (bool, error)
}

// PartnerReader fetches a customer record.
type PartnerReader interface {
	GetPartner(ctx context.Context, partnerID int) (*odoo.Partner, error)
}

// PartnerUpdater writes contact fields on a customer record.
type PartnerUpdater interface {
	UpdatePartner(ctx context.Context, partnerID int, vals map[string]string) (bool, error)
}

// DealerDirectory serves the dealer finder: provinces, dealers per province,
// and lead creation.
type DealerDirectory interface {
	DealerCities(ctx context.Context) ([]string, error)
	DealersByCity(ctx context.Context, city string) ([]odoo.Dealer, error)
	CreateLead(ctx context.Context, lead odoo.Lead) (int, error)
}

// CodeResolver maps a product code to the locally synced catalog entry.
type CodeResolver interface {
	ResolveCode(ctx context.Context, code string) (*catalog.Product, error)
}
