package chat

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idfine/chatbot-platform/internal/flow"
	"github.com/idfine/chatbot-platform/internal/odoo"
	"github.com/idfine/chatbot-platform/internal/otp"
	"github.com/idfine/chatbot-platform/internal/session"
)

type fakeCodes struct {
	requests int
	verifies int
}

func (f *fakeCodes) Request(_ context.Context, _, email string) (otp.Result, error) {
	f.requests++
	return otp.Result{
		Success: true,
		Message: "Dogrulama kodu " + email + " adresine gonderildi. Lutfen 6 haneli kodu girin.",
		Email:   email,
	}, nil
}

func (f *fakeCodes) Verify(_ context.Context, _, email, code string) (otp.Result, error) {
	f.verifies++
	if code != "123456" {
		return otp.Result{Success: false, Message: "Kod hatali. Kalan deneme: 4"}, nil
	}
	return otp.Result{
		Success:     true,
		Message:     "Kimliginiz dogrulandi!",
		PartnerID:   7,
		PartnerName: "Ayse Demir",
		Email:       email,
	}, nil
}

// TestVisitorVerificationJourney walks a guest from greeting through identity
// verification to their order history, with the real flow engine and session
// store behind the orchestrator.
func TestVisitorVerificationJourney(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	sessions := session.NewStore(rdb, time.Hour, nil)
	manager := flow.NewManager(rdb, 30*time.Minute, nil)
	codes := &fakeCodes{}
	manager.Register(flow.NewVerifyFlow(codes, sessions))

	store := newFakeConvStore()
	customers := &fakeCustomers{orders: []odoo.OrderSummary{
		{ID: 1, Name: "S00042", State: "sale", DateOrder: "2026-03-10 14:22:00", AmountTotal: 1500, Currency: "TRY"},
	}}
	orc := New(Options{
		Store:     store,
		Flows:     manager,
		Sessions:  sessions,
		Customers: customers,
	})

	ctx := context.Background()
	say := func(text string) *Reply {
		t.Helper()
		reply, err := orc.HandleMessage(ctx, "", "visitor-1", "widget", "", text)
		require.NoError(t, err)
		return reply
	}

	// Small talk first.
	reply := say("merhaba")
	assert.Contains(t, greetingResponses["tr"], reply.Text)

	// A private question from a guest opens the verification flow.
	reply = say("siparişlerim")
	assert.Equal(t, msgVerifyIntro, reply.Text)

	// Garbage instead of an email gets a reprompt, not a cancel.
	reply = say("not-an-email")
	assert.Contains(t, reply.Text, "Gecerli bir e-posta adresi giriniz.")

	// A real email triggers the one-time code.
	reply = say("ayse@firma.com")
	assert.Contains(t, reply.Text, "Dogrulama kodu ayse@firma.com adresine gonderildi.")
	assert.Equal(t, 1, codes.requests)

	// Wrong code, right format.
	reply = say("000000")
	assert.Contains(t, reply.Text, "Kod hatali. Kalan deneme: 4")

	// The right code verifies, creates the session and answers the original
	// question in the same turn.
	reply = say("123456")
	assert.Contains(t, reply.Text, "Kimliginiz dogrulandi!")
	assert.Contains(t, reply.Text, "Simdi talebinizi islemekteyim...")
	assert.Contains(t, reply.Text, "Musteri Siparisleri:")
	assert.Contains(t, reply.Text, "S00042")
	assert.Equal(t, 2, codes.verifies)

	sess, err := sessions.Get(ctx, "visitor-1")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, 7, sess.PartnerID)
	assert.Equal(t, "Ayse Demir", sess.Name)

	// The next private question is answered directly from the session.
	reply = say("siparişlerim")
	assert.Contains(t, reply.Text, "Musteri Siparisleri:")

	// Logout drops the session.
	reply = say("çıkış yap")
	assert.Equal(t, msgLogoutDone, reply.Text)
	sess, err = sessions.Get(ctx, "visitor-1")
	require.NoError(t, err)
	assert.Nil(t, sess)
}
