package odoo

// Customer-facing read paths behind the identity-requiring chat intents.
// Ownership is enforced in the domain filters: every query carries the
// partner id, so a customer can never read another customer's documents.

import (
	"context"
)

// OrderDetails fetches one sale order with its lines. Returns nil when the
// order does not exist or belongs to another partner.
func (s *Service) OrderDetails(ctx context.Context, orderID, partnerID int) (*OrderDetail, error) {
	ctx, span := s.tracer.Start(ctx, "odoo.order_details")
	defer span.End()

	var records []record
	err := s.caller.Call(ctx, "sale.order", "search_read",
		[]any{[]any{
			[]any{"id", "=", orderID},
			[]any{"partner_id", "=", partnerID},
		}},
		map[string]any{
			"fields": []string{
				"name", "state", "date_order", "amount_untaxed", "amount_tax",
				"amount_total", "currency_id", "invoice_status", "note", "order_line",
			},
			"limit": 1,
		},
		&records,
	)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	r := records[0]

	currency := r.many2oneName("currency_id")
	if currency == "" {
		currency = "TRY"
	}
	detail := &OrderDetail{
		ID:            r.intval("id"),
		Name:          r.str("name"),
		State:         r.str("state"),
		DateOrder:     r.str("date_order"),
		AmountUntaxed: r.num("amount_untaxed"),
		AmountTax:     r.num("amount_tax"),
		AmountTotal:   r.num("amount_total"),
		Currency:      currency,
		InvoiceStatus: r.str("invoice_status"),
		Note:          r.str("note"),
	}

	if lineIDs := r.idList("order_line"); len(lineIDs) > 0 {
		ids := make([]any, len(lineIDs))
		for i, id := range lineIDs {
			ids[i] = id
		}
		var lines []record
		err := s.caller.Call(ctx, "sale.order.line", "read",
			[]any{ids},
			map[string]any{"fields": []string{
				"name", "product_uom_qty", "price_unit", "price_subtotal", "product_uom",
			}},
			&lines,
		)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		for _, lr := range lines {
			detail.Lines = append(detail.Lines, OrderLine{
				ID:            lr.intval("id"),
				ProductName:   lr.str("name"),
				Quantity:      lr.num("product_uom_qty"),
				PriceUnit:     lr.num("price_unit"),
				PriceSubtotal: lr.num("price_subtotal"),
				UOM:           lr.many2oneName("product_uom"),
			})
		}
	}
	return detail, nil
}

// PartnerInvoices lists a customer's posted invoices and refunds, newest
// first.
func (s *Service) PartnerInvoices(ctx context.Context, partnerID, limit int) ([]InvoiceSummary, error) {
	ctx, span := s.tracer.Start(ctx, "odoo.partner_invoices")
	defer span.End()

	if limit <= 0 {
		limit = 20
	}
	var records []record
	err := s.caller.Call(ctx, "account.move", "search_read",
		[]any{[]any{
			[]any{"partner_id", "=", partnerID},
			[]any{"move_type", "in", []string{"out_invoice", "out_refund"}},
			[]any{"state", "!=", "draft"},
		}},
		map[string]any{
			"fields": []string{
				"name", "state", "move_type", "date", "invoice_date_due",
				"amount_total", "amount_residual", "currency_id", "payment_state",
			},
			"limit": limit,
			"order": "date desc",
		},
		&records,
	)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	invoices := make([]InvoiceSummary, 0, len(records))
	for _, r := range records {
		currency := r.many2oneName("currency_id")
		if currency == "" {
			currency = "TRY"
		}
		invoices = append(invoices, InvoiceSummary{
			ID:             r.intval("id"),
			Name:           r.str("name"),
			State:          r.str("state"),
			MoveType:       r.str("move_type"),
			Date:           r.str("date"),
			DateDue:        r.str("invoice_date_due"),
			AmountTotal:    r.num("amount_total"),
			AmountResidual: r.num("amount_residual"),
			Currency:       currency,
			PaymentState:   r.str("payment_state"),
		})
	}
	return invoices, nil
}

// PartnerPayments lists a customer's non-draft payments, newest first.
func (s *Service) PartnerPayments(ctx context.Context, partnerID, limit int) ([]PaymentInfo, error) {
	ctx, span := s.tracer.Start(ctx, "odoo.partner_payments")
	defer span.End()

	if limit <= 0 {
		limit = 20
	}
	var records []record
	err := s.caller.Call(ctx, "account.payment", "search_read",
		[]any{[]any{
			[]any{"partner_id", "=", partnerID},
			[]any{"state", "!=", "draft"},
		}},
		map[string]any{
			"fields": []string{"name", "date", "amount", "currency_id", "state", "payment_type"},
			"limit":  limit,
			"order":  "date desc",
		},
		&records,
	)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	payments := make([]PaymentInfo, 0, len(records))
	for _, r := range records {
		currency := r.many2oneName("currency_id")
		if currency == "" {
			currency = "TRY"
		}
		payments = append(payments, PaymentInfo{
			ID:          r.intval("id"),
			Name:        r.str("name"),
			Date:        r.str("date"),
			Amount:      r.num("amount"),
			Currency:    currency,
			State:       r.str("state"),
			PaymentType: r.str("payment_type"),
		})
	}
	return payments, nil
}

// PartnerDeliveries lists a customer's outgoing shipments, newest first.
func (s *Service) PartnerDeliveries(ctx context.Context, partnerID, limit int) ([]DeliverySummary, error) {
	ctx, span := s.tracer.Start(ctx, "odoo.partner_deliveries")
	defer span.End()

	if limit <= 0 {
		limit = 20
	}
	var records []record
	err := s.caller.Call(ctx, "stock.picking", "search_read",
		[]any{[]any{
			[]any{"partner_id", "=", partnerID},
			[]any{"picking_type_code", "=", "outgoing"},
		}},
		map[string]any{
			"fields": []string{
				"name", "state", "origin", "scheduled_date", "date_done",
				"carrier_id", "carrier_tracking_ref",
			},
			"limit": limit,
			"order": "scheduled_date desc",
		},
		&records,
	)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	deliveries := make([]DeliverySummary, 0, len(records))
	for _, r := range records {
		deliveries = append(deliveries, DeliverySummary{
			ID:            r.intval("id"),
			Name:          r.str("name"),
			State:         r.str("state"),
			Origin:        r.str("origin"),
			ScheduledDate: r.str("scheduled_date"),
			DateDone:      r.str("date_done"),
			Carrier:       r.many2oneName("carrier_id"),
			TrackingRef:   r.str("carrier_tracking_ref"),
		})
	}
	return deliveries, nil
}

// PartnerTickets lists a customer's helpdesk tickets, newest first. Returns
// an empty list when the helpdesk module is not installed.
func (s *Service) PartnerTickets(ctx context.Context, partnerID, limit int) ([]TicketSummary, error) {
	ctx, span := s.tracer.Start(ctx, "odoo.partner_tickets")
	defer span.End()

	if limit <= 0 {
		limit = 20
	}
	var records []record
	err := s.caller.Call(ctx, "helpdesk.ticket", "search_read",
		[]any{[]any{[]any{"partner_id", "=", partnerID}}},
		map[string]any{
			"fields": []string{"name", "stage_id", "priority", "create_date"},
			"limit":  limit,
			"order":  "create_date desc",
		},
		&records,
	)
	if err != nil {
		s.logger.Warn("ticket listing failed, helpdesk module may be missing", "error", err)
		return []TicketSummary{}, nil
	}

	tickets := make([]TicketSummary, 0, len(records))
	for _, r := range records {
		tickets = append(tickets, TicketSummary{
			ID:         r.intval("id"),
			Name:       r.str("name"),
			Stage:      r.many2oneName("stage_id"),
			Priority:   r.str("priority"),
			CreateDate: r.str("create_date"),
		})
	}
	return tickets, nil
}

// GetSpendingReport aggregates the customer's orders and invoices into
// lifetime totals. Spent counts confirmed and done orders only; the invoice
// figures count posted invoices.
func (s *Service) GetSpendingReport(ctx context.Context, partnerID int) (*SpendingReport, error) {
	ctx, span := s.tracer.Start(ctx, "odoo.spending_report")
	defer span.End()

	orders, err := s.PartnerOrders(ctx, partnerID, 500)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	invoices, err := s.PartnerInvoices(ctx, partnerID, 500)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	report := &SpendingReport{
		TotalOrders:   len(orders),
		Currency:      "TRY",
		OrdersByState: make(map[string]int),
	}
	for _, o := range orders {
		report.OrdersByState[o.State]++
		if o.State == "sale" || o.State == "done" {
			report.TotalSpent += o.AmountTotal
		}
	}
	for _, inv := range invoices {
		if inv.State != "posted" {
			continue
		}
		report.TotalInvoiced += inv.AmountTotal
		report.TotalPaid += inv.AmountTotal - inv.AmountResidual
		report.TotalOutstanding += inv.AmountResidual
	}
	return report, nil
}
