package flow

import (
	"context"
	"regexp"
	"strings"

	"github.com/idfine/chatbot-platform/internal/session"
)

var digitRe = regexp.MustCompile(`\d`)

// VerifyFlow authenticates a visitor: email → one-time code → session.
// Steps: await_email → await_code.
//
// Both steps carry an escape valve: input that reads like an ordinary chat
// message instead of an email/code attempt cancels silently, so the
// orchestrator can answer it in the same turn.
type VerifyFlow struct {
	codes    CodeVerifier
	sessions SessionWriter
}

// NewVerifyFlow creates the identity verification handler.
func NewVerifyFlow(codes CodeVerifier, sessions SessionWriter) *VerifyFlow {
	return &VerifyFlow{codes: codes, sessions: sessions}
}

func (h *VerifyFlow) Type() Type          { return TypeVerify }
func (h *VerifyFlow) InitialStep() string { return "await_email" }

func (h *VerifyFlow) ProcessStep(ctx context.Context, f *Flow, userMessage, visitorID string) (StepResult, error) {
	switch f.Step {
	case "await_email":
		return h.handleEmail(ctx, f, userMessage, visitorID)
	case "await_code":
		return h.handleCode(ctx, f, userMessage, visitorID)
	default:
		return brokenStep(), nil
	}
}

func (h *VerifyFlow) handleEmail(ctx context.Context, f *Flow, userMessage, visitorID string) (StepResult, error) {
	email := strings.ToLower(strings.TrimSpace(userMessage))
	if m := emailRe.FindString(email); m != "" {
		email = m
	}

	if !isExactEmail(email) {
		if len(strings.TrimSpace(userMessage)) > 15 && !strings.Contains(userMessage, "@") {
			// Reads like a regular question, hand the turn back.
			return StepResult{Cancelled: true}, nil
		}
		return StepResult{
			Message: "Gecerli bir e-posta adresi giriniz. Ornegin: isim@firma.com\nDogrulamayi iptal etmek icin 'iptal' yazin.",
		}, nil
	}

	result, err := h.codes.Request(ctx, visitorID, email)
	if err != nil {
		return StepResult{}, err
	}
	if !result.Success {
		return StepResult{Message: result.Message}, nil
	}

	f.Step = "await_code"
	f.Data["email"] = email
	return StepResult{Message: result.Message}, nil
}

func (h *VerifyFlow) handleCode(ctx context.Context, f *Flow, userMessage, visitorID string) (StepResult, error) {
	code := strings.TrimSpace(userMessage)
	if m := codeRe.FindString(code); m != "" {
		code = m
	}

	if len(code) != 6 || codeRe.FindString(code) != code {
		if len(strings.TrimSpace(userMessage)) > 10 && !digitRe.MatchString(userMessage) {
			return StepResult{Cancelled: true}, nil
		}
		return StepResult{
			Message: "Lutfen 6 haneli dogrulama kodunu giriniz. Dogrulamayi iptal etmek icin 'iptal' yazin.",
		}, nil
	}

	result, err := h.codes.Verify(ctx, visitorID, f.String("email"), code)
	if err != nil {
		return StepResult{}, err
	}
	if !result.Success {
		return StepResult{Message: result.Message}, nil
	}

	if _, err := h.sessions.Create(ctx, session.Session{
		VisitorID: visitorID,
		PartnerID: result.PartnerID,
		Email:     result.Email,
		Name:      result.PartnerName,
	}); err != nil {
		return StepResult{}, err
	}

	originalIntent := f.String("original_intent")
	message := result.Message
	if originalIntent != "" {
		message += " Simdi talebinizi islemekteyim..."
	}

	return StepResult{
		Message:   message,
		Completed: true,
		Data: map[string]any{
			"partner_id":      result.PartnerID,
			"partner_name":    result.PartnerName,
			"email":           result.Email,
			"original_intent": originalIntent,
		},
	}, nil
}
