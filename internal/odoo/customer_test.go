package odoo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_OrderDetailsReadsLines(t *testing.T) {
	caller := newFakeCaller()
	caller.responses["sale.order.search_read"] = []map[string]any{{
		"id":             501,
		"name":           "S00501",
		"state":          "sale",
		"date_order":     "2026-03-10 14:22:00",
		"amount_untaxed": 1000.0,
		"amount_tax":     200.0,
		"amount_total":   1200.0,
		"currency_id":    []any{12, "TRY"},
		"invoice_status": "to invoice",
		"note":           false,
		"order_line":     []any{9001, 9002},
	}}
	caller.responses["sale.order.line.read"] = []map[string]any{
		{
			"id":              9001,
			"name":            "Bone China Tabak 27cm",
			"product_uom_qty": 10.0,
			"price_unit":      100.0,
			"price_subtotal":  1000.0,
			"product_uom":     []any{1, "Adet"},
		},
	}
	svc := NewService(caller, nil, 0, nil)

	detail, err := svc.OrderDetails(context.Background(), 501, 101)
	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Equal(t, "S00501", detail.Name)
	assert.Equal(t, 1200.0, detail.AmountTotal)
	assert.Equal(t, "TRY", detail.Currency)
	require.Len(t, detail.Lines, 1)
	assert.Equal(t, "Bone China Tabak 27cm", detail.Lines[0].ProductName)
	assert.Equal(t, 10.0, detail.Lines[0].Quantity)
	assert.Equal(t, "Adet", detail.Lines[0].UOM)
}

func TestService_OrderDetailsEnforcesOwnership(t *testing.T) {
	caller := newFakeCaller()
	caller.responses["sale.order.search_read"] = []map[string]any{}
	svc := NewService(caller, nil, 0, nil)

	detail, err := svc.OrderDetails(context.Background(), 501, 999)
	require.NoError(t, err)
	assert.Nil(t, detail)
	assert.Zero(t, caller.count("sale.order.line.read"))
}

func TestService_PartnerInvoices(t *testing.T) {
	caller := newFakeCaller()
	caller.responses["account.move.search_read"] = []map[string]any{{
		"id":               701,
		"name":             "INV/2026/0042",
		"state":            "posted",
		"move_type":        "out_invoice",
		"date":             "2026-02-01",
		"invoice_date_due": "2026-03-01",
		"amount_total":     5400.0,
		"amount_residual":  400.0,
		"currency_id":      false,
		"payment_state":    "partial",
	}}
	svc := NewService(caller, nil, 0, nil)

	invoices, err := svc.PartnerInvoices(context.Background(), 101, 0)
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, "INV/2026/0042", invoices[0].Name)
	assert.Equal(t, "partial", invoices[0].PaymentState)
	assert.Equal(t, "TRY", invoices[0].Currency)
	assert.Equal(t, 400.0, invoices[0].AmountResidual)
}

func TestService_PartnerDeliveries(t *testing.T) {
	caller := newFakeCaller()
	caller.responses["stock.picking.search_read"] = []map[string]any{{
		"id":                   801,
		"name":                 "WH/OUT/00081",
		"state":                "done",
		"origin":               "S00501",
		"scheduled_date":       "2026-03-12 09:00:00",
		"date_done":            "2026-03-13 16:40:00",
		"carrier_id":           []any{3, "Yurtici Kargo"},
		"carrier_tracking_ref": "YK123456789",
	}}
	svc := NewService(caller, nil, 0, nil)

	deliveries, err := svc.PartnerDeliveries(context.Background(), 101, 10)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Equal(t, "WH/OUT/00081", deliveries[0].Name)
	assert.Equal(t, "Yurtici Kargo", deliveries[0].Carrier)
	assert.Equal(t, "YK123456789", deliveries[0].TrackingRef)
}

func TestService_PartnerTicketsSwallowsMissingModule(t *testing.T) {
	caller := newFakeCaller()
	caller.errs["helpdesk.ticket.search_read"] = errors.New("Object helpdesk.ticket doesn't exist")
	svc := NewService(caller, nil, 0, nil)

	tickets, err := svc.PartnerTickets(context.Background(), 101, 10)
	require.NoError(t, err)
	assert.Empty(t, tickets)
}

func TestService_GetSpendingReport(t *testing.T) {
	caller := newFakeCaller()
	caller.responses["sale.order.search_read"] = []map[string]any{
		{"id": 1, "name": "S00001", "state": "sale", "amount_total": 1000.0},
		{"id": 2, "name": "S00002", "state": "done", "amount_total": 500.0},
		{"id": 3, "name": "S00003", "state": "cancel", "amount_total": 9000.0},
	}
	caller.responses["account.move.search_read"] = []map[string]any{
		{"id": 10, "name": "INV/1", "state": "posted", "amount_total": 1000.0, "amount_residual": 250.0},
		{"id": 11, "name": "INV/2", "state": "cancel", "amount_total": 700.0, "amount_residual": 700.0},
	}
	svc := NewService(caller, nil, 0, nil)

	report, err := svc.GetSpendingReport(context.Background(), 101)
	require.NoError(t, err)
	assert.Equal(t, 3, report.TotalOrders)
	assert.Equal(t, 1500.0, report.TotalSpent)
	assert.Equal(t, 1000.0, report.TotalInvoiced)
	assert.Equal(t, 750.0, report.TotalPaid)
	assert.Equal(t, 250.0, report.TotalOutstanding)
	assert.Equal(t, map[string]int{"sale": 1, "done": 1, "cancel": 1}, report.OrdersByState)
}
