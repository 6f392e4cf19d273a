package flow

import (
	"context"
	"fmt"
	"strings"
)

// OrderFlow collects a free-text order request and files it as a draft
// quotation for the sales team.
// Steps: await_items → await_notes → await_confirm.
type OrderFlow struct {
	quotations QuotationCreator
	sessions   SessionReader
}

// NewOrderFlow creates the order request handler.
func NewOrderFlow(quotations QuotationCreator, sessions SessionReader) *OrderFlow {
	return &OrderFlow{quotations: quotations, sessions: sessions}
}

func (h *OrderFlow) Type() Type          { return TypeOrderCreate }
func (h *OrderFlow) InitialStep() string { return "await_items" }

func (h *OrderFlow) ProcessStep(ctx context.Context, f *Flow, userMessage, visitorID string) (StepResult, error) {
	switch f.Step {
	case "await_items":
		return h.handleItems(f, userMessage), nil
	case "await_notes":
		return h.handleNotes(f, userMessage), nil
	case "await_confirm":
		return h.handleConfirm(ctx, f, userMessage, visitorID)
	default:
		return brokenStep(), nil
	}
}

func (h *OrderFlow) handleItems(f *Flow, userMessage string) StepResult {
	text := strings.TrimSpace(userMessage)
	if len(text) < 3 {
		return StepResult{
			Message: "Siparis vermek icin urun bilgilerini yazin.\nOrnegin: **ABC123 x 10** veya urun adlarini ve miktarlari belirtin.\nBirden fazla urun icin her birini ayri satirda yazabilirsiniz.",
		}
	}

	// The raw request text goes on the quotation note; the sales team
	// interprets it.
	f.Step = "await_notes"
	f.Data["items_text"] = text
	return StepResult{
		Message: "Urun talebi alindi.\n\nEklemek istediginiz bir not var mi? (Teslimat tarihi, ozel istek vb.)\nNot eklemek istemiyorsaniz **yok** yazin.",
	}
}

func (h *OrderFlow) handleNotes(f *Flow, userMessage string) StepResult {
	switch strings.ToLower(strings.TrimSpace(userMessage)) {
	case "yok", "hayir", "hayır", "no", "-", "bos", "boş":
		f.Data["notes"] = ""
	default:
		f.Data["notes"] = strings.TrimSpace(userMessage)
	}
	f.Step = "await_confirm"

	notes := f.String("notes")
	if notes == "" {
		notes = "(Not eklenmedi)"
	}
	return StepResult{
		Message: fmt.Sprintf(
			"Siparis ozeti:\n- **Urunler:** %s\n- **Notlar:** %s\n\nBu siparis talebini gondermek istiyor musunuz? (**evet** / **hayir**)",
			f.String("items_text"), notes,
		),
	}
}

func (h *OrderFlow) handleConfirm(ctx context.Context, f *Flow, userMessage, visitorID string) (StepResult, error) {
	text := strings.ToLower(strings.TrimSpace(userMessage))
	if negative(text) {
		return StepResult{Message: "Siparis talebi iptal edildi.", Cancelled: true}, nil
	}
	if !affirmative(text) {
		return StepResult{Message: msgConfirmYesOrNo}, nil
	}

	sess, err := h.sessions.Get(ctx, visitorID)
	if err != nil {
		return StepResult{}, err
	}
	if sess == nil {
		return StepResult{Message: msgSessionExpired, Cancelled: true}, nil
	}

	note := "Musteri Siparis Talebi:\n" + f.String("items_text")
	if notes := f.String("notes"); notes != "" {
		note += "\n\nMusteri Notu: " + notes
	}

	quotation, err := h.quotations.CreateQuotation(ctx, sess.PartnerID, nil, note)
	if err != nil {
		return StepResult{}, err
	}

	return StepResult{
		Message: fmt.Sprintf(
			"Siparis talebiniz basariyla olusturuldu!\n- **Teklif No:** %s\n- **Durum:** %s\n\nSatis ekibimiz talebinizi inceleyip sizinle iletisime gececektir.",
			quotation.OrderRef, quotation.Status,
		),
		Completed: true,
		Data:      map[string]any{"order_id": quotation.OrderID, "order_ref": quotation.OrderRef},
	}, nil
}
