package flow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// walkTicket drives the flow up to the confirmation step.
func walkTicket(t *testing.T, h *TicketFlow, f *Flow) {
	t.Helper()
	ctx := context.Background()

	_, err := h.ProcessStep(ctx, f, "Fatura sorunu", "v-1")
	require.NoError(t, err)
	_, err = h.ProcessStep(ctx, f, "Subat faturasinda iki kere kesinti var", "v-1")
	require.NoError(t, err)
	_, err = h.ProcessStep(ctx, f, "yuksek", "v-1")
	require.NoError(t, err)
	require.Equal(t, "await_confirm", f.Step)
}

func TestTicketFlow_HappyPath(t *testing.T) {
	tickets := &fakeTickets{id: 1881}
	h := NewTicketFlow(tickets, verifiedSession())
	f := newFlow(h, nil)
	walkTicket(t, h, f)

	res, err := h.ProcessStep(context.Background(), f, "evet", "v-1")
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Contains(t, res.Message, "#1881")
	assert.Equal(t, 1881, res.Data["ticket_id"])
	assert.Equal(t, []string{"Fatura sorunu"}, tickets.subjects)
	assert.Equal(t, []string{"3"}, tickets.prios)
}

func TestTicketFlow_Validation(t *testing.T) {
	h := NewTicketFlow(&fakeTickets{}, verifiedSession())
	f := newFlow(h, nil)
	ctx := context.Background()

	res, err := h.ProcessStep(ctx, f, "ab", "v-1")
	require.NoError(t, err)
	assert.Contains(t, res.Message, "en az 3 karakter")
	assert.Equal(t, "await_subject", f.Step)

	_, err = h.ProcessStep(ctx, f, "Fatura sorunu", "v-1")
	require.NoError(t, err)

	res, err = h.ProcessStep(ctx, f, "kisa", "v-1")
	require.NoError(t, err)
	assert.Contains(t, res.Message, "en az 10 karakter")
	assert.Equal(t, "await_description", f.Step)

	_, err = h.ProcessStep(ctx, f, "Subat faturasinda iki kere kesinti var", "v-1")
	require.NoError(t, err)

	res, err = h.ProcessStep(ctx, f, "belki", "v-1")
	require.NoError(t, err)
	assert.Contains(t, res.Message, "gecerli bir oncelik")
	assert.Equal(t, "await_priority", f.Step)
}

func TestTicketFlow_ConfirmBranches(t *testing.T) {
	t.Run("negative cancels without creating", func(t *testing.T) {
		tickets := &fakeTickets{id: 1}
		h := NewTicketFlow(tickets, verifiedSession())
		f := newFlow(h, nil)
		walkTicket(t, h, f)

		res, err := h.ProcessStep(context.Background(), f, "hayir", "v-1")
		require.NoError(t, err)
		assert.True(t, res.Cancelled)
		assert.Empty(t, tickets.subjects)
	})

	t.Run("unknown token reprompts", func(t *testing.T) {
		h := NewTicketFlow(&fakeTickets{id: 1}, verifiedSession())
		f := newFlow(h, nil)
		walkTicket(t, h, f)

		res, err := h.ProcessStep(context.Background(), f, "olabilir", "v-1")
		require.NoError(t, err)
		assert.Equal(t, msgConfirmYesOrNo, res.Message)
		assert.Equal(t, "await_confirm", f.Step)
	})

	t.Run("missing session cancels", func(t *testing.T) {
		h := NewTicketFlow(&fakeTickets{id: 1}, &fakeSessions{})
		f := newFlow(h, nil)
		walkTicket(t, h, f)

		res, err := h.ProcessStep(context.Background(), f, "evet", "v-1")
		require.NoError(t, err)
		assert.True(t, res.Cancelled)
		assert.Equal(t, msgSessionExpired, res.Message)
	})

	t.Run("erp failure surfaces as handler error", func(t *testing.T) {
		h := NewTicketFlow(&fakeTickets{err: errBoom}, verifiedSession())
		f := newFlow(h, nil)
		walkTicket(t, h, f)

		_, err := h.ProcessStep(context.Background(), f, "evet", "v-1")
		assert.ErrorIs(t, err, errBoom)
	})
}
