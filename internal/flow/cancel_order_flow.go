package flow

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/idfine/chatbot-platform/internal/odoo"
)

var orderRefRe = regexp.MustCompile(`(?i)S\d{5}|SO\d{4,}`)

// CancelOrderFlow files a cancellation request for one of the customer's
// own orders.
// Steps: await_order_ref → await_reason → await_confirm.
type CancelOrderFlow struct {
	orders    OrderReader
	canceller OrderCanceller
	sessions  SessionReader
}

// NewCancelOrderFlow creates the order cancellation handler.
func NewCancelOrderFlow(orders OrderReader, canceller OrderCanceller, sessions SessionReader) *CancelOrderFlow {
	return &CancelOrderFlow{orders: orders, canceller: canceller, sessions: sessions}
}

func (h *CancelOrderFlow) Type() Type          { return TypeOrderCancel }
func (h *CancelOrderFlow) InitialStep() string { return "await_order_ref" }

func (h *CancelOrderFlow) ProcessStep(ctx context.Context, f *Flow, userMessage, visitorID string) (StepResult, error) {
	switch f.Step {
	case "await_order_ref":
		return h.handleOrderRef(ctx, f, userMessage, visitorID)
	case "await_reason":
		return h.handleReason(f, userMessage), nil
	case "await_confirm":
		return h.handleConfirm(ctx, f, userMessage, visitorID)
	default:
		return brokenStep(), nil
	}
}

func (h *CancelOrderFlow) handleOrderRef(ctx context.Context, f *Flow, userMessage, visitorID string) (StepResult, error) {
	ref := orderRefRe.FindString(strings.TrimSpace(userMessage))
	if ref == "" {
		return StepResult{
			Message: "Lutfen iptal etmek istediginiz siparis numarasini yazin. Ornegin: **S00123** veya **SO0001**",
		}, nil
	}
	ref = strings.ToUpper(ref)

	sess, err := h.sessions.Get(ctx, visitorID)
	if err != nil {
		return StepResult{}, err
	}
	if sess == nil {
		return StepResult{Message: msgSessionExpired, Cancelled: true}, nil
	}

	orders, err := h.orders.PartnerOrders(ctx, sess.PartnerID, 100)
	if err != nil {
		return StepResult{}, err
	}

	var order *odoo.OrderSummary
	for i := range orders {
		if strings.Contains(strings.ToUpper(orders[i].Name), ref) {
			order = &orders[i]
			break
		}
	}
	if order == nil {
		return StepResult{
			Message: fmt.Sprintf("**%s** numarali siparis bulunamadi. Lutfen siparis numaranizi kontrol edip tekrar yazin.", ref),
		}, nil
	}

	if order.State == "done" || order.State == "cancel" {
		label := "tamamlanmis"
		if order.State == "cancel" {
			label = "zaten iptal edilmis"
		}
		return StepResult{
			Message:   fmt.Sprintf("**%s** siparisi %s durumda ve iptal edilemez.", order.Name, label),
			Cancelled: true,
		}, nil
	}

	f.Step = "await_reason"
	f.Data["order_id"] = order.ID
	f.Data["order_name"] = order.Name
	f.Data["order_amount"] = order.AmountTotal
	f.Data["order_currency"] = order.Currency

	return StepResult{
		Message: fmt.Sprintf(
			"Siparis bulundu: **%s** - %.2f %s\n\nLutfen iptal nedeninizi yazin.",
			order.Name, order.AmountTotal, order.Currency,
		),
	}, nil
}

func (h *CancelOrderFlow) handleReason(f *Flow, userMessage string) StepResult {
	reason := strings.TrimSpace(userMessage)
	if len(reason) < 5 {
		return StepResult{Message: "Lutfen iptal nedeninizi biraz daha detayli yazin (en az 5 karakter)."}
	}

	f.Step = "await_confirm"
	f.Data["reason"] = reason

	currency := f.String("order_currency")
	if currency == "" {
		currency = "TRY"
	}
	return StepResult{
		Message: fmt.Sprintf(
			"Iptal ozeti:\n- **Siparis:** %s (%.2f %s)\n- **Neden:** %s\n\nIptal talebini onayliyor musunuz? (**evet** / **hayir**)",
			f.String("order_name"), f.Float("order_amount"), currency, reason,
		),
	}
}

func (h *CancelOrderFlow) handleConfirm(ctx context.Context, f *Flow, userMessage, visitorID string) (StepResult, error) {
	text := strings.ToLower(strings.TrimSpace(userMessage))
	if negative(text) {
		return StepResult{Message: "Siparis iptal islemi vazgecildi.", Cancelled: true}, nil
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

	orderName := f.String("order_name")
	ok, err := h.canceller.RequestOrderCancellation(ctx, f.Int("order_id"), sess.PartnerID, f.String("reason"))
	if err != nil {
		return StepResult{}, err
	}
	if !ok {
		return StepResult{
			Message:   "Iptal talebi olusturulurken bir hata olustu. Lutfen musteri hizmetleri ile iletisime gecin.",
			Cancelled: true,
		}, nil
	}

	return StepResult{
		Message: fmt.Sprintf(
			"**%s** siparisi icin iptal talebi olusturuldu.\nTalebiniz incelendikten sonra size bilgi verilecektir.",
			orderName,
		),
		Completed: true,
		Data:      map[string]any{"order_id": f.Int("order_id"), "order_name": orderName},
	}, nil
}
