package flow

import (
	"context"
	"fmt"
	"strings"
)

// priorityChoices maps user input to the helpdesk priority code and its
// display label.
var priorityChoices = map[string]struct {
	label string
	code  string
}{
	"1":      {"Dusuk", "1"},
	"2":      {"Normal", "2"},
	"3":      {"Yuksek", "3"},
	"dusuk":  {"Dusuk", "1"},
	"düşük":  {"Dusuk", "1"},
	"normal": {"Normal", "2"},
	"orta":   {"Normal", "2"},
	"yuksek": {"Yuksek", "3"},
	"yüksek": {"Yuksek", "3"},
	"acil":   {"Yuksek", "3"},
	"low":    {"Dusuk", "1"},
	"medium": {"Normal", "2"},
	"high":   {"Yuksek", "3"},
	"urgent": {"Yuksek", "3"},
}

// TicketFlow collects a support request and opens a helpdesk ticket.
// Steps: await_subject → await_description → await_priority → await_confirm.
type TicketFlow struct {
	tickets  TicketCreator
	sessions SessionReader
}

// NewTicketFlow creates the support ticket handler.
func NewTicketFlow(tickets TicketCreator, sessions SessionReader) *TicketFlow {
	return &TicketFlow{tickets: tickets, sessions: sessions}
}

func (h *TicketFlow) Type() Type          { return TypeTicketCreate }
func (h *TicketFlow) InitialStep() string { return "await_subject" }

func (h *TicketFlow) ProcessStep(ctx context.Context, f *Flow, userMessage, visitorID string) (StepResult, error) {
	switch f.Step {
	case "await_subject":
		return h.handleSubject(f, userMessage), nil
	case "await_description":
		return h.handleDescription(f, userMessage), nil
	case "await_priority":
		return h.handlePriority(f, userMessage), nil
	case "await_confirm":
		return h.handleConfirm(ctx, f, userMessage, visitorID)
	default:
		return brokenStep(), nil
	}
}

func (h *TicketFlow) handleSubject(f *Flow, userMessage string) StepResult {
	subject := strings.TrimSpace(userMessage)
	if len(subject) < 3 {
		return StepResult{Message: "Lutfen destek talebiniz icin bir konu basligi yazin (en az 3 karakter)."}
	}

	f.Step = "await_description"
	f.Data["subject"] = subject
	return StepResult{
		Message: fmt.Sprintf("Konu: **%s**\n\nSimdi lutfen sorununuzu detayli olarak aciklayiniz.", subject),
	}
}

func (h *TicketFlow) handleDescription(f *Flow, userMessage string) StepResult {
	description := strings.TrimSpace(userMessage)
	if len(description) < 10 {
		return StepResult{Message: "Lutfen sorununuzu biraz daha detayli aciklayiniz (en az 10 karakter)."}
	}

	f.Step = "await_priority"
	f.Data["description"] = description
	return StepResult{
		Message: "Tesekkurler. Lutfen oncelik seviyesini secin:\n- **1** - Dusuk\n- **2** - Normal\n- **3** - Yuksek/Acil",
	}
}

func (h *TicketFlow) handlePriority(f *Flow, userMessage string) StepResult {
	choice, ok := priorityChoices[strings.ToLower(strings.TrimSpace(userMessage))]
	if !ok {
		return StepResult{Message: "Lutfen gecerli bir oncelik secin: **1** (Dusuk), **2** (Normal) veya **3** (Yuksek)."}
	}

	f.Step = "await_confirm"
	f.Data["priority"] = choice.code
	f.Data["priority_label"] = choice.label

	description := f.String("description")
	if len(description) > 100 {
		description = description[:100] + "..."
	}
	return StepResult{
		Message: fmt.Sprintf(
			"Destek talebi ozeti:\n- **Konu:** %s\n- **Aciklama:** %s\n- **Oncelik:** %s\n\nOnayliyor musunuz? (**evet** / **hayir**)",
			f.String("subject"), description, choice.label,
		),
	}
}

func (h *TicketFlow) handleConfirm(ctx context.Context, f *Flow, userMessage, visitorID string) (StepResult, error) {
	text := strings.ToLower(strings.TrimSpace(userMessage))
	if negative(text) {
		return StepResult{Message: "Destek talebi olusturma iptal edildi.", Cancelled: true}, nil
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

	ticketID, err := h.tickets.CreateTicket(ctx, sess.PartnerID, f.String("subject"), f.String("description"), f.String("priority"))
	if err != nil || ticketID == 0 {
		if err != nil {
			return StepResult{}, err
		}
		return StepResult{
			Message:   "Destek talebi olusturulurken bir hata olustu. Lutfen daha sonra tekrar deneyin.",
			Cancelled: true,
		}, nil
	}

	return StepResult{
		Message: fmt.Sprintf(
			"Destek talebiniz basariyla olusturuldu! (Talep No: #%d)\nTalebiniz en kisa surede degerlendirilecektir.",
			ticketID,
		),
		Completed: true,
		Data:      map[string]any{"ticket_id": ticketID},
	}, nil
}
