package flow

import (
	"context"
	"errors"

	"github.com/idfine/chatbot-platform/internal/catalog"
	"github.com/idfine/chatbot-platform/internal/notify"
	"github.com/idfine/chatbot-platform/internal/odoo"
	"github.com/idfine/chatbot-platform/internal/otp"
	"github.com/idfine/chatbot-platform/internal/session"
)

// Shared fakes for the handler tests, one per interface in deps.go.

type fakeSessions struct {
	sess    *session.Session
	getErr  error
	created []session.Session
}

func (f *fakeSessions) Get(_ context.Context, _ string) (*session.Session, error) {
	return f.sess, f.getErr
}

func (f *fakeSessions) Create(_ context.Context, sess session.Session) (*session.Session, error) {
	f.created = append(f.created, sess)
	return &sess, nil
}

func verifiedSession() *fakeSessions {
	return &fakeSessions{sess: &session.Session{PartnerID: 42, Email: "ali@firma.com", Name: "Ali Yilmaz", VisitorID: "v-1"}}
}

type fakeCodes struct {
	requestResult otp.Result
	verifyResult  otp.Result
	requested     []string
	verified      []string
}

func (f *fakeCodes) Request(_ context.Context, _, email string) (otp.Result, error) {
	f.requested = append(f.requested, email)
	return f.requestResult, nil
}

func (f *fakeCodes) Verify(_ context.Context, _, email, code string) (otp.Result, error) {
	f.verified = append(f.verified, email+":"+code)
	return f.verifyResult, nil
}

type fakeTickets struct {
	id       int
	err      error
	subjects []string
	prios    []string
}

func (f *fakeTickets) CreateTicket(_ context.Context, _ int, subject, _, priority string) (int, error) {
	f.subjects = append(f.subjects, subject)
	f.prios = append(f.prios, priority)
	return f.id, f.err
}

type fakeQuotations struct {
	result *odoo.Quotation
	err    error
	lines  [][]odoo.QuotationLine
	notes  []string
}

func (f *fakeQuotations) CreateQuotation(_ context.Context, _ int, lines []odoo.QuotationLine, notes string) (*odoo.Quotation, error) {
	f.lines = append(f.lines, lines)
	f.notes = append(f.notes, notes)
	return f.result, f.err
}

type fakeOrders struct {
	orders []odoo.OrderSummary
	err    error
}

func (f *fakeOrders) PartnerOrders(_ context.Context, _, _ int) ([]odoo.OrderSummary, error) {
	return f.orders, f.err
}

type fakeCanceller struct {
	ok      bool
	err     error
	reasons []string
	ids     []int
}

func (f *fakeCanceller) RequestOrderCancellation(_ context.Context, orderID, _ int, reason string) (bool, error) {
	f.ids = append(f.ids, orderID)
	f.reasons = append(f.reasons, reason)
	return f.ok, f.err
}

type fakePartners struct {
	partner *odoo.Partner
	err     error
}

func (f *fakePartners) GetPartner(_ context.Context, _ int) (*odoo.Partner, error) {
	return f.partner, f.err
}

type fakeUpdater struct {
	ok     bool
	err    error
	values []map[string]string
}

func (f *fakeUpdater) UpdatePartner(_ context.Context, _ int, vals map[string]string) (bool, error) {
	f.values = append(f.values, vals)
	return f.ok, f.err
}

type fakeDealers struct {
	cities    []string
	citiesErr error
	byCity    map[string][]odoo.Dealer
	leadID    int
	leadErr   error
	leads     []odoo.Lead
}

func (f *fakeDealers) DealerCities(_ context.Context) ([]string, error) {
	return f.cities, f.citiesErr
}

func (f *fakeDealers) DealersByCity(_ context.Context, city string) ([]odoo.Dealer, error) {
	return f.byCity[city], nil
}

func (f *fakeDealers) CreateLead(_ context.Context, lead odoo.Lead) (int, error) {
	f.leads = append(f.leads, lead)
	return f.leadID, f.leadErr
}

type fakeResolver struct {
	products map[string]*catalog.Product
}

func (f *fakeResolver) ResolveCode(_ context.Context, code string) (*catalog.Product, error) {
	if p, ok := f.products[code]; ok {
		return p, nil
	}
	return nil, catalog.ErrNotFound
}

type fakeEmail struct {
	err  error
	sent []notify.EmailMessage
}

func (f *fakeEmail) Send(_ context.Context, msg notify.EmailMessage) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

var errBoom = errors.New("boom")

// newFlow builds an in-memory flow positioned at the handler's initial step.
func newFlow(h Handler, data map[string]any) *Flow {
	if data == nil {
		data = map[string]any{}
	}
	return &Flow{
		Type:           h.Type(),
		Step:           h.InitialStep(),
		Data:           data,
		ConversationID: "conv-1",
	}
}
