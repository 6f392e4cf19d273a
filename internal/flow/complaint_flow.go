package flow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/idfine/chatbot-platform/internal/notify"
	"github.com/idfine/chatbot-platform/pkg/logging"
)

// complaintInbox receives every complaint record regardless of whether a
// helpdesk ticket could be opened.
const complaintInbox = "destek@idfine.com.tr"

// ComplaintFlow collects a complaint, mails it to the support inbox and, for
// verified customers, additionally opens a helpdesk ticket.
// Steps: await_name → await_contact → await_description → await_confirm.
// Verified customers skip the name and contact steps.
type ComplaintFlow struct {
	partners PartnerReader
	tickets  TicketCreator
	sessions SessionReader
	email    notify.EmailSender
	logger   *logging.Logger
}

// NewComplaintFlow creates the complaint handler.
func NewComplaintFlow(partners PartnerReader, tickets TicketCreator, sessions SessionReader, email notify.EmailSender, logger *logging.Logger) *ComplaintFlow {
	if logger == nil {
		logger = logging.Default()
	}
	return &ComplaintFlow{
		partners: partners,
		tickets:  tickets,
		sessions: sessions,
		email:    email,
		logger:   logger.Named("complaint_flow"),
	}
}

func (h *ComplaintFlow) Type() Type          { return TypeComplaint }
func (h *ComplaintFlow) InitialStep() string { return "await_name" }

func (h *ComplaintFlow) ProcessStep(ctx context.Context, f *Flow, userMessage, visitorID string) (StepResult, error) {
	// On first entry, pre-fill name and contact from the verified session so
	// known customers go straight to the description.
	if f.Step == "await_name" {
		if _, checked := f.Data["auth_checked"]; !checked {
			f.Data["auth_checked"] = true
			f.Data["conversation_id"] = f.ConversationID
			if res, ok := h.prefillFromSession(ctx, f, visitorID); ok {
				return res, nil
			}
		}
	}

	switch f.Step {
	case "await_name":
		return h.handleName(f, userMessage), nil
	case "await_contact":
		return h.handleContact(f, userMessage), nil
	case "await_description":
		return h.handleDescription(f, userMessage), nil
	case "await_confirm":
		return h.handleConfirm(ctx, f, userMessage), nil
	default:
		return brokenStep(), nil
	}
}

// prefillFromSession fills name and contact from the Odoo partner record when
// the visitor is verified. Lookup failures fall back to asking.
func (h *ComplaintFlow) prefillFromSession(ctx context.Context, f *Flow, visitorID string) (StepResult, bool) {
	if visitorID == "" {
		return StepResult{}, false
	}
	sess, err := h.sessions.Get(ctx, visitorID)
	if err != nil || sess == nil {
		return StepResult{}, false
	}

	f.Data["partner_id"] = sess.PartnerID
	partner, err := h.partners.GetPartner(ctx, sess.PartnerID)
	if err != nil {
		h.logger.Warn("could not fetch partner for complaint pre-fill", "error", err, "partner_id", sess.PartnerID)
		return StepResult{}, false
	}
	if partner == nil {
		return StepResult{}, false
	}

	contact := partner.Email
	if contact == "" {
		contact = partner.Phone
	}
	f.Data["name"] = partner.Name
	f.Data["contact"] = contact
	if partner.Name == "" || contact == "" {
		return StepResult{}, false
	}

	f.Step = "await_description"
	return StepResult{
		Message: fmt.Sprintf(
			"Sayin **%s**, sikayetinizi almak istiyoruz.\nLutfen sikayetinizi detayli olarak yaziniz.",
			partner.Name,
		),
	}, true
}

func (h *ComplaintFlow) handleName(f *Flow, userMessage string) StepResult {
	name := strings.TrimSpace(userMessage)
	if len(name) < 2 {
		return StepResult{Message: "Lutfen adinizi ve soyadinizi yaziniz."}
	}

	f.Step = "await_contact"
	f.Data["name"] = name
	return StepResult{
		Message: fmt.Sprintf("Tesekkurler, **%s**.\nLutfen iletisim bilginizi yaziniz (e-posta veya telefon numarasi).", name),
	}
}

func (h *ComplaintFlow) handleContact(f *Flow, userMessage string) StepResult {
	contact := strings.TrimSpace(userMessage)
	if len(contact) < 5 {
		return StepResult{Message: "Lutfen gecerli bir e-posta adresi veya telefon numarasi yaziniz."}
	}

	f.Step = "await_description"
	f.Data["contact"] = contact
	return StepResult{Message: "Tesekkurler. Simdi lutfen sikayetinizi detayli olarak yaziniz."}
}

func (h *ComplaintFlow) handleDescription(f *Flow, userMessage string) StepResult {
	description := strings.TrimSpace(userMessage)
	if len(description) < 10 {
		return StepResult{Message: "Lutfen sikayetinizi biraz daha detayli aciklayiniz (en az 10 karakter)."}
	}

	f.Step = "await_confirm"
	f.Data["description"] = description

	preview := description
	if len(preview) > 150 {
		preview = preview[:150] + "..."
	}
	return StepResult{
		Message: fmt.Sprintf(
			"Sikayet ozeti:\n- **Ad Soyad:** %s\n- **Iletisim:** %s\n- **Sikayet:** %s\n\nGondermek istediginize emin misiniz? (**evet** / **hayir**)",
			f.String("name"), f.String("contact"), preview,
		),
	}
}

func (h *ComplaintFlow) handleConfirm(ctx context.Context, f *Flow, userMessage string) StepResult {
	text := strings.ToLower(strings.TrimSpace(userMessage))
	if negative(text) {
		return StepResult{Message: "Sikayet islemi iptal edildi.", Cancelled: true}
	}
	if !affirmative(text) {
		return StepResult{Message: msgConfirmYesOrNo}
	}

	name := f.String("name")
	if name == "" {
		name = "Bilinmiyor"
	}
	contact := f.String("contact")
	if contact == "" {
		contact = "Belirtilmedi"
	}
	description := f.String("description")
	convID := f.String("conversation_id")
	now := time.Now().UTC().Format("02.01.2006 15:04")

	// Known customers additionally get a helpdesk ticket. The complaint email
	// is the record of truth, so ticket failures are logged and skipped.
	var ticketID int
	if partnerID := f.Int("partner_id"); partnerID > 0 {
		id, err := h.tickets.CreateTicket(ctx, partnerID, "Musteri Sikayeti - "+name, description, "2")
		if err != nil {
			h.logger.Error("failed to create complaint ticket", "error", err, "partner_id", partnerID)
		} else {
			ticketID = id
		}
	}

	ticketInfo := ""
	if ticketID != 0 {
		ticketInfo = fmt.Sprintf("<p><strong>Talep No:</strong> #%d</p>", ticketID)
	}

	bodyHTML := fmt.Sprintf(
		"<h2>Yeni Musteri Sikayeti</h2>"+
			"<p><strong>Ad Soyad:</strong> %s</p>"+
			"<p><strong>Iletisim:</strong> %s</p>"+
			"<p><strong>Tarih:</strong> %s (UTC)</p>"+
			"<p><strong>Konusma ID:</strong> %s</p>"+
			"%s"+
			"<hr>"+
			"<p><strong>Sikayet Detayi:</strong></p>"+
			"<p>%s</p>",
		name, contact, now, convID, ticketInfo, description,
	)

	err := h.email.Send(ctx, notify.EmailMessage{
		To:      complaintInbox,
		Subject: "Yeni Musteri Sikayeti - " + name,
		Body:    fmt.Sprintf("Yeni musteri sikayeti\nAd Soyad: %s\nIletisim: %s\n\n%s", name, contact, description),
		HTML:    bodyHTML,
	})
	if err != nil {
		h.logger.Error("complaint email could not be sent", "error", err, "conversation_id", convID)
		return StepResult{
			Message: "Sikayetiniz iletilirken bir hata olustu. " +
				"Lutfen daha sonra tekrar deneyin veya destek@idfine.com.tr adresine e-posta gonderiniz.",
			Cancelled: true,
		}
	}

	response := "Sikayetiniz basariyla alindi ve destek ekibimize iletildi.\n" +
		"En kisa surede sizinle iletisime gecilebilmesi icin bilgileriniz kaydedilmistir."
	if ticketID != 0 {
		response += fmt.Sprintf("\n\n**Talep No:** #%d", ticketID)
	}

	return StepResult{
		Message:   response,
		Completed: true,
		Data:      map[string]any{"ticket_id": ticketID},
	}
}
