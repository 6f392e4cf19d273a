package odoo

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/idfine/chatbot-platform/pkg/logging"
)

// Caller abstracts the JSON-RPC client so the service can be tested against
// a fake.
type Caller interface {
	Call(ctx context.Context, model, method string, args []any, kwargs map[string]any, out any) error
}

// DealerCategoryIDs are the res.partner category ids that mark a partner as
// a reseller.
var DealerCategoryIDs = []int{28, 77, 78, 79, 83}

// partnerUpdateFields is the whitelist of fields the chat surface may write.
var partnerUpdateFields = map[string]struct{}{
	"phone": {}, "mobile": {}, "street": {}, "street2": {}, "city": {}, "zip": {}, "email": {},
}

var partnerFields = []string{
	"name", "email", "phone", "mobile", "street", "street2",
	"city", "state_id", "zip", "country_id", "vat",
	"company_name", "customer_rank",
}

// Service is the high-level ERP surface used by the flow handlers, with
// redis caching on the partner read paths.
type Service struct {
	caller      Caller
	cache       *Cache
	warehouseID int
	logger      *logging.Logger
	tracer      trace.Tracer
}

// NewService creates the ERP service. warehouseID may be zero; quotation
// creation then resolves the first active warehouse.
func NewService(caller Caller, cache *Cache, warehouseID int, logger *logging.Logger) *Service {
	if caller == nil {
		panic("odoo: caller cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		caller:      caller,
		cache:       cache,
		warehouseID: warehouseID,
		logger:      logger,
		tracer:      otel.Tracer("chatbot.internal.odoo"),
	}
}

func toPartner(r record) *Partner {
	return &Partner{
		ID:           r.intval("id"),
		Name:         r.str("name"),
		Email:        r.str("email"),
		Phone:        r.str("phone"),
		Mobile:       r.str("mobile"),
		Street:       r.str("street"),
		Street2:      r.str("street2"),
		City:         r.str("city"),
		State:        r.many2oneName("state_id"),
		Zip:          r.str("zip"),
		Country:      r.many2oneName("country_id"),
		VAT:          r.str("vat"),
		CompanyName:  r.str("company_name"),
		CustomerRank: r.intval("customer_rank"),
	}
}

// SearchPartnerByEmail finds the customer record matching an email, or nil.
func (s *Service) SearchPartnerByEmail(ctx context.Context, email string) (*Partner, error) {
	ctx, span := s.tracer.Start(ctx, "odoo.search_partner_by_email")
	defer span.End()

	email = strings.ToLower(strings.TrimSpace(email))
	key := cacheKey("partner", "email", email)
	var cached Partner
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	var records []record
	err := s.caller.Call(ctx, "res.partner", "search_read",
		[]any{[]any{
			[]any{"email", "=ilike", email},
			[]any{"customer_rank", ">", 0},
		}},
		map[string]any{"fields": partnerFields, "limit": 1},
		&records,
	)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	p := toPartner(records[0])
	s.cache.Set(ctx, key, p, PartnerCacheTTL)
	return p, nil
}

// FindPartnerByEmail adapts SearchPartnerByEmail to the narrow lookup used
// by code verification. A zero id means no record.
func (s *Service) FindPartnerByEmail(ctx context.Context, email string) (int, string, error) {
	p, err := s.SearchPartnerByEmail(ctx, email)
	if err != nil {
		return 0, "", err
	}
	if p == nil {
		return 0, "", nil
	}
	return p.ID, p.Name, nil
}

// GetPartner fetches a customer record by id, or nil when it is gone.
func (s *Service) GetPartner(ctx context.Context, partnerID int) (*Partner, error) {
	ctx, span := s.tracer.Start(ctx, "odoo.get_partner")
	defer span.End()

	key := cacheKey("partner", partnerID)
	var cached Partner
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	var records []record
	err := s.caller.Call(ctx, "res.partner", "read",
		[]any{[]any{partnerID}},
		map[string]any{"fields": partnerFields},
		&records,
	)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	p := toPartner(records[0])
	s.cache.Set(ctx, key, p, PartnerCacheTTL)
	return p, nil
}

// UpdatePartner writes whitelisted contact fields and invalidates the
// cached record. Returns false when nothing in vals was writable.
func (s *Service) UpdatePartner(ctx context.Context, partnerID int, vals map[string]string) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "odoo.update_partner")
	defer span.End()

	safe := make(map[string]any)
	for k, v := range vals {
		if _, ok := partnerUpdateFields[k]; ok {
			safe[k] = v
		}
	}
	if len(safe) == 0 {
		return false, nil
	}

	err := s.caller.Call(ctx, "res.partner", "write",
		[]any{[]any{partnerID}, safe}, nil, nil)
	if err != nil {
		span.RecordError(err)
		return false, err
	}

	s.cache.Delete(ctx, cacheKey("partner", partnerID))
	s.logger.Info("partner updated", "partner_id", partnerID, "fields", len(safe))
	return true, nil
}

// PartnerOrders lists a customer's sale orders, newest first. Never cached.
func (s *Service) PartnerOrders(ctx context.Context, partnerID, limit int) ([]OrderSummary, error) {
	ctx, span := s.tracer.Start(ctx, "odoo.partner_orders")
	defer span.End()

	if limit <= 0 {
		limit = 20
	}
	var records []record
	err := s.caller.Call(ctx, "sale.order", "search_read",
		[]any{[]any{[]any{"partner_id", "=", partnerID}}},
		map[string]any{
			"fields": []string{"name", "state", "date_order", "amount_total", "currency_id", "invoice_status"},
			"limit":  limit,
			"order":  "date_order desc",
		},
		&records,
	)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	orders := make([]OrderSummary, 0, len(records))
	for _, r := range records {
		currency := r.many2oneName("currency_id")
		if currency == "" {
			currency = "TRY"
		}
		orders = append(orders, OrderSummary{
			ID:            r.intval("id"),
			Name:          r.str("name"),
			State:         r.str("state"),
			DateOrder:     r.str("date_order"),
			AmountTotal:   r.num("amount_total"),
			Currency:      currency,
			InvoiceStatus: r.str("invoice_status"),
		})
	}
	return orders, nil
}

// RequestOrderCancellation posts the customer's reason on the order and
// cancels it outright while still draft/sent. Confirmed orders keep the
// note for manual review, which also counts as success. Returns false when
// the order does not belong to the partner.
func (s *Service) RequestOrderCancellation(ctx context.Context, orderID, partnerID int, reason string) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "odoo.request_order_cancellation")
	defer span.End()

	var records []record
	err := s.caller.Call(ctx, "sale.order", "search_read",
		[]any{[]any{
			[]any{"id", "=", orderID},
			[]any{"partner_id", "=", partnerID},
		}},
		map[string]any{"fields": []string{"state"}, "limit": 1},
		&records,
	)
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	if len(records) == 0 {
		return false, nil
	}
	state := records[0].str("state")

	err = s.caller.Call(ctx, "sale.order", "message_post",
		[]any{[]any{orderID}},
		map[string]any{
			"body":         fmt.Sprintf("Musteri iptal talebi: %s", reason),
			"message_type": "comment",
		}, nil)
	if err != nil {
		s.logger.Warn("cancellation note failed", "order_id", orderID, "error", err)
	}

	if state == "draft" || state == "sent" {
		if err := s.caller.Call(ctx, "sale.order", "action_cancel", []any{[]any{orderID}}, nil, nil); err != nil {
			span.RecordError(err)
			return false, err
		}
	}

	s.logger.Info("order cancellation requested", "order_id", orderID, "state", state)
	return true, nil
}

// CreateTicket opens a helpdesk ticket and returns its id.
func (s *Service) CreateTicket(ctx context.Context, partnerID int, subject, description, priority string) (int, error) {
	ctx, span := s.tracer.Start(ctx, "odoo.create_ticket")
	defer span.End()

	if priority == "" {
		priority = "1"
	}
	var ticketID int
	err := s.caller.Call(ctx, "helpdesk.ticket", "create",
		[]any{map[string]any{
			"name":        subject,
			"description": description,
			"partner_id":  partnerID,
			"priority":    priority,
		}}, nil, &ticketID)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	s.logger.Info("helpdesk ticket created", "ticket_id", ticketID, "partner_id", partnerID)
	return ticketID, nil
}

// CreateQuotation creates a draft sale order with the given lines and reads
// back the assigned reference and total.
func (s *Service) CreateQuotation(ctx context.Context, partnerID int, lines []QuotationLine, notes string) (*Quotation, error) {
	ctx, span := s.tracer.Start(ctx, "odoo.create_quotation")
	defer span.End()

	warehouseID := s.warehouseID
	if warehouseID == 0 {
		var warehouses []record
		err := s.caller.Call(ctx, "stock.warehouse", "search_read",
			[]any{[]any{[]any{"active", "=", true}}},
			map[string]any{"fields": []string{"id"}, "limit": 1, "order": "id asc"},
			&warehouses,
		)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		warehouseID = 1
		if len(warehouses) > 0 {
			warehouseID = warehouses[0].intval("id")
		}
	}

	orderLines := make([]any, 0, len(lines))
	for _, line := range lines {
		vals := map[string]any{
			"product_id":      line.ProductID,
			"product_uom_qty": line.Quantity,
		}
		if line.UnitPrice > 0 {
			vals["price_unit"] = line.UnitPrice
		}
		orderLines = append(orderLines, []any{0, 0, vals})
	}

	vals := map[string]any{
		"partner_id":   partnerID,
		"warehouse_id": warehouseID,
	}
	if len(orderLines) > 0 {
		vals["order_line"] = orderLines
	}
	if notes != "" {
		vals["note"] = notes
	}

	var orderID int
	if err := s.caller.Call(ctx, "sale.order", "create", []any{vals}, nil, &orderID); err != nil {
		span.RecordError(err)
		return nil, err
	}

	var orders []record
	err := s.caller.Call(ctx, "sale.order", "read",
		[]any{[]any{orderID}},
		map[string]any{"fields": []string{"name", "amount_total", "state"}},
		&orders,
	)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	q := &Quotation{OrderID: orderID, Status: "draft"}
	if len(orders) > 0 {
		q.OrderRef = orders[0].str("name")
		q.AmountTotal = orders[0].num("amount_total")
		if state := orders[0].str("state"); state != "" {
			q.Status = state
		}
	}

	s.logger.Info("quotation created", "order_id", orderID, "order_ref", q.OrderRef, "partner_id", partnerID)
	return q, nil
}

// DealerCities returns the distinct provinces with at least one dealer,
// sorted. Province display names like "Ankara (TR)" are trimmed to the bare
// name.
func (s *Service) DealerCities(ctx context.Context) ([]string, error) {
	ctx, span := s.tracer.Start(ctx, "odoo.dealer_cities")
	defer span.End()

	key := cacheKey("dealer", "cities")
	var cached []string
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	var records []record
	err := s.caller.Call(ctx, "res.partner", "search_read",
		[]any{[]any{
			[]any{"category_id", "in", DealerCategoryIDs},
			[]any{"state_id", "!=", false},
		}},
		map[string]any{"fields": []string{"state_id"}, "limit": 500},
		&records,
	)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	seen := make(map[string]struct{})
	cities := make([]string, 0, len(records))
	for _, r := range records {
		name := r.many2oneName("state_id")
		if i := strings.Index(name, "("); i >= 0 {
			name = name[:i]
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		cities = append(cities, name)
	}
	sort.Strings(cities)

	s.cache.Set(ctx, key, cities, ProductCacheTTL)
	return cities, nil
}

// DealersByCity returns the company dealers registered in a province.
func (s *Service) DealersByCity(ctx context.Context, city string) ([]Dealer, error) {
	ctx, span := s.tracer.Start(ctx, "odoo.dealers_by_city")
	defer span.End()

	var records []record
	err := s.caller.Call(ctx, "res.partner", "search_read",
		[]any{[]any{
			[]any{"category_id", "in", DealerCategoryIDs},
			[]any{"state_id.name", "ilike", city},
			[]any{"is_company", "=", true},
		}},
		map[string]any{
			"fields": []string{"name", "city", "phone", "mobile", "email", "street", "website"},
			"limit":  50,
		},
		&records,
	)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	dealers := make([]Dealer, 0, len(records))
	for _, r := range records {
		dealers = append(dealers, Dealer{
			ID:      r.intval("id"),
			Name:    r.str("name"),
			City:    r.str("city"),
			Phone:   r.str("phone"),
			Mobile:  r.str("mobile"),
			Email:   r.str("email"),
			Street:  r.str("street"),
			Website: r.str("website"),
		})
	}
	return dealers, nil
}

// CreateLead opens a CRM lead assigned to the chosen dealer so the dealer
// follows up with the customer.
func (s *Service) CreateLead(ctx context.Context, lead Lead) (int, error) {
	ctx, span := s.tracer.Start(ctx, "odoo.create_lead")
	defer span.End()

	vals := map[string]any{
		"name":         fmt.Sprintf("Chatbot Bayi Talebi - %s (%s)", lead.CustomerName, lead.City),
		"partner_id":   lead.DealerID,
		"contact_name": lead.CustomerName,
		"city":         lead.City,
		"type":         "lead",
		"description": fmt.Sprintf(
			"Chatbot uzerinden bayi bulma talebi.\nMusteri: %s\nTelefon: %s\nE-posta: %s\nSehir: %s\nSecilen Bayi: %s",
			lead.CustomerName, orUnspecified(lead.Phone), orUnspecified(lead.Email), lead.City, lead.DealerName,
		),
	}
	if lead.Email != "" {
		vals["email_from"] = lead.Email
	}
	if lead.Phone != "" {
		vals["phone"] = lead.Phone
	}

	// Tag the lead with the chatbot utm source when one exists.
	var sources []record
	err := s.caller.Call(ctx, "utm.source", "search_read",
		[]any{[]any{[]any{"name", "ilike", "chatbot"}}},
		map[string]any{"fields": []string{"id"}, "limit": 1},
		&sources,
	)
	if err == nil && len(sources) > 0 {
		vals["source_id"] = sources[0].intval("id")
	}

	var leadID int
	if err := s.caller.Call(ctx, "crm.lead", "create", []any{vals}, nil, &leadID); err != nil {
		span.RecordError(err)
		return 0, err
	}

	s.logger.Info("crm lead created", "lead_id", leadID, "dealer_id", lead.DealerID)
	return leadID, nil
}

func orUnspecified(s string) string {
	if s == "" {
		return "Belirtilmedi"
	}
	return s
}
