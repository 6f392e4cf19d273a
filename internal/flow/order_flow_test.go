package flow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idfine/chatbot-platform/internal/odoo"
)

func TestOrderFlow_HappyPathWithNotes(t *testing.T) {
	quotations := &fakeQuotations{result: &odoo.Quotation{OrderID: 7, OrderRef: "S00321", Status: "draft"}}
	h := NewOrderFlow(quotations, verifiedSession())
	f := newFlow(h, nil)
	ctx := context.Background()

	_, err := h.ProcessStep(ctx, f, "PRS-1042 x 10\nID-2210 x 4", "v-1")
	require.NoError(t, err)
	require.Equal(t, "await_notes", f.Step)

	res, err := h.ProcessStep(ctx, f, "Mart ayinda teslim olsun", "v-1")
	require.NoError(t, err)
	assert.Contains(t, res.Message, "Mart ayinda teslim olsun")
	require.Equal(t, "await_confirm", f.Step)

	res, err = h.ProcessStep(ctx, f, "evet", "v-1")
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Contains(t, res.Message, "S00321")
	assert.Equal(t, "S00321", res.Data["order_ref"])

	require.Len(t, quotations.notes, 1)
	assert.Contains(t, quotations.notes[0], "Musteri Siparis Talebi:")
	assert.Contains(t, quotations.notes[0], "PRS-1042 x 10")
	assert.Contains(t, quotations.notes[0], "Musteri Notu: Mart ayinda teslim olsun")
}

func TestOrderFlow_SkippedNotes(t *testing.T) {
	quotations := &fakeQuotations{result: &odoo.Quotation{OrderID: 7, OrderRef: "S00322", Status: "draft"}}
	h := NewOrderFlow(quotations, verifiedSession())
	f := newFlow(h, nil)
	ctx := context.Background()

	_, err := h.ProcessStep(ctx, f, "10 adet kahve fincani", "v-1")
	require.NoError(t, err)

	res, err := h.ProcessStep(ctx, f, "yok", "v-1")
	require.NoError(t, err)
	assert.Contains(t, res.Message, "(Not eklenmedi)")

	_, err = h.ProcessStep(ctx, f, "tamam", "v-1")
	require.NoError(t, err)

	require.Len(t, quotations.notes, 1)
	assert.NotContains(t, quotations.notes[0], "Musteri Notu:")
}

func TestOrderFlow_ShortItemsReprompts(t *testing.T) {
	h := NewOrderFlow(&fakeQuotations{}, verifiedSession())
	f := newFlow(h, nil)

	res, err := h.ProcessStep(context.Background(), f, "x", "v-1")
	require.NoError(t, err)
	assert.Contains(t, res.Message, "urun bilgilerini yazin")
	assert.Equal(t, "await_items", f.Step)
}

func TestOrderFlow_SessionExpired(t *testing.T) {
	h := NewOrderFlow(&fakeQuotations{}, &fakeSessions{})
	f := newFlow(h, nil)
	ctx := context.Background()

	_, err := h.ProcessStep(ctx, f, "10 adet kahve fincani", "v-1")
	require.NoError(t, err)
	_, err = h.ProcessStep(ctx, f, "yok", "v-1")
	require.NoError(t, err)

	res, err := h.ProcessStep(ctx, f, "evet", "v-1")
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
	assert.Equal(t, msgSessionExpired, res.Message)
}
