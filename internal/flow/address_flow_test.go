package flow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddressFlow_FieldSelection(t *testing.T) {
	cases := []struct {
		input string
		field string
	}{
		{"telefon", "phone"},
		{"telefonumu degistirmek istiyorum", "phone"},
		{"cep", "mobile"},
		{"e-posta adresimi guncelle", "email"},
		{"posta kodu", "zip"},
		{"adresim degisti", "street"},
		{"sehir", "city"},
	}

	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			h := NewAddressFlow(&fakeUpdater{}, verifiedSession())
			f := newFlow(h, nil)

			_, err := h.ProcessStep(context.Background(), f, tc.input, "v-1")
			require.NoError(t, err)
			assert.Equal(t, "await_value", f.Step)
			assert.Equal(t, tc.field, f.String("field_name"))
		})
	}

	t.Run("unknown field shows the menu", func(t *testing.T) {
		h := NewAddressFlow(&fakeUpdater{}, verifiedSession())
		f := newFlow(h, nil)

		res, err := h.ProcessStep(context.Background(), f, "dogum tarihim", "v-1")
		require.NoError(t, err)
		assert.Contains(t, res.Message, "guncellemek istediginiz alani secin")
		assert.Equal(t, "await_field", f.Step)
	})
}

func TestAddressFlow_ValueValidation(t *testing.T) {
	start := func(field string) (*AddressFlow, *Flow) {
		h := NewAddressFlow(&fakeUpdater{ok: true}, verifiedSession())
		f := newFlow(h, nil)
		_, err := h.ProcessStep(context.Background(), f, field, "v-1")
		require.NoError(t, err)
		return h, f
	}

	t.Run("bad email reprompts", func(t *testing.T) {
		h, f := start("email")
		res, err := h.ProcessStep(context.Background(), f, "firma.com", "v-1")
		require.NoError(t, err)
		assert.Contains(t, res.Message, "Gecerli bir e-posta")
		assert.Equal(t, "await_value", f.Step)
	})

	t.Run("bad phone reprompts", func(t *testing.T) {
		h, f := start("telefon")
		res, err := h.ProcessStep(context.Background(), f, "yarin ararim", "v-1")
		require.NoError(t, err)
		assert.Contains(t, res.Message, "Gecerli bir telefon")
	})

	t.Run("valid phone advances to confirm", func(t *testing.T) {
		h, f := start("telefon")
		res, err := h.ProcessStep(context.Background(), f, "+90 532 123 4567", "v-1")
		require.NoError(t, err)
		assert.Contains(t, res.Message, "Guncelleme ozeti")
		assert.Equal(t, "await_confirm", f.Step)
	})
}

func TestAddressFlow_Confirm(t *testing.T) {
	setup := func(updater *fakeUpdater, sessions *fakeSessions) (*AddressFlow, *Flow) {
		h := NewAddressFlow(updater, sessions)
		f := newFlow(h, nil)
		ctx := context.Background()
		_, err := h.ProcessStep(ctx, f, "email", "v-1")
		require.NoError(t, err)
		_, err = h.ProcessStep(ctx, f, "yeni@firma.com", "v-1")
		require.NoError(t, err)
		return h, f
	}

	t.Run("affirmative writes the field", func(t *testing.T) {
		updater := &fakeUpdater{ok: true}
		h, f := setup(updater, verifiedSession())

		res, err := h.ProcessStep(context.Background(), f, "evet", "v-1")
		require.NoError(t, err)
		assert.True(t, res.Completed)
		assert.Contains(t, res.Message, "E-posta")
		require.Len(t, updater.values, 1)
		assert.Equal(t, map[string]string{"email": "yeni@firma.com"}, updater.values[0])
	})

	t.Run("negative cancels without writing", func(t *testing.T) {
		updater := &fakeUpdater{ok: true}
		h, f := setup(updater, verifiedSession())

		res, err := h.ProcessStep(context.Background(), f, "hayir", "v-1")
		require.NoError(t, err)
		assert.True(t, res.Cancelled)
		assert.Empty(t, updater.values)
	})

	t.Run("expired session cancels", func(t *testing.T) {
		h, f := setup(&fakeUpdater{ok: true}, &fakeSessions{})

		res, err := h.ProcessStep(context.Background(), f, "evet", "v-1")
		require.NoError(t, err)
		assert.True(t, res.Cancelled)
		assert.Equal(t, msgSessionExpired, res.Message)
	})

	t.Run("write failure cancels with message", func(t *testing.T) {
		h, f := setup(&fakeUpdater{ok: false}, verifiedSession())

		res, err := h.ProcessStep(context.Background(), f, "evet", "v-1")
		require.NoError(t, err)
		assert.True(t, res.Cancelled)
		assert.Contains(t, res.Message, "hata olustu")
	})
}
