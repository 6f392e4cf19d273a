package flow

import (
	"context"
	"fmt"
	"strings"
)

// updatableFields maps user vocabulary to the ERP field and display label.
var updatableFields = map[string]struct {
	field string
	label string
}{
	"telefon":    {"phone", "Telefon"},
	"phone":      {"phone", "Telefon"},
	"mobil":      {"mobile", "Mobil Telefon"},
	"cep":        {"mobile", "Mobil Telefon"},
	"mobile":     {"mobile", "Mobil Telefon"},
	"email":      {"email", "E-posta"},
	"e-posta":    {"email", "E-posta"},
	"eposta":     {"email", "E-posta"},
	"adres":      {"street", "Adres"},
	"sokak":      {"street", "Adres"},
	"cadde":      {"street", "Adres"},
	"street":     {"street", "Adres"},
	"adres2":     {"street2", "Adres (2. satir)"},
	"sehir":      {"city", "Sehir"},
	"şehir":      {"city", "Sehir"},
	"il":         {"city", "Sehir"},
	"city":       {"city", "Sehir"},
	"posta":      {"zip", "Posta Kodu"},
	"posta kodu": {"zip", "Posta Kodu"},
	"zip":        {"zip", "Posta Kodu"},
}

// fieldMatchOrder fixes the precedence of the partial match below; longer,
// more specific vocabulary first.
var fieldMatchOrder = []string{
	"posta kodu", "e-posta", "eposta", "email", "telefon", "mobil", "cep",
	"mobile", "phone", "adres2", "adres", "sokak", "cadde", "street",
	"sehir", "şehir", "city", "posta", "zip", "il",
}

// AddressFlow updates a single contact field on the customer record.
// Steps: await_field → await_value → await_confirm.
type AddressFlow struct {
	partners PartnerUpdater
	sessions SessionReader
}

// NewAddressFlow creates the profile update handler.
func NewAddressFlow(partners PartnerUpdater, sessions SessionReader) *AddressFlow {
	return &AddressFlow{partners: partners, sessions: sessions}
}

func (h *AddressFlow) Type() Type          { return TypeAddressUpdate }
func (h *AddressFlow) InitialStep() string { return "await_field" }

func (h *AddressFlow) ProcessStep(ctx context.Context, f *Flow, userMessage, visitorID string) (StepResult, error) {
	switch f.Step {
	case "await_field":
		return h.handleField(f, userMessage), nil
	case "await_value":
		return h.handleValue(f, userMessage), nil
	case "await_confirm":
		return h.handleConfirm(ctx, f, userMessage, visitorID)
	default:
		return brokenStep(), nil
	}
}

func (h *AddressFlow) handleField(f *Flow, userMessage string) StepResult {
	text := strings.ToLower(strings.TrimSpace(userMessage))

	choice, ok := updatableFields[text]
	if !ok {
		// Partial match: "telefonumu degistir" still selects telefon.
		for _, key := range fieldMatchOrder {
			if strings.Contains(text, key) {
				choice, ok = updatableFields[key], true
				break
			}
		}
	}
	if !ok {
		return StepResult{
			Message: "Lutfen guncellemek istediginiz alani secin:\n- **telefon** - Sabit telefon\n- **mobil** - Cep telefonu\n- **email** - E-posta adresi\n- **adres** - Sokak/cadde adresi\n- **sehir** - Sehir\n- **posta kodu** - Posta kodu",
		}
	}

	f.Step = "await_value"
	f.Data["field_name"] = choice.field
	f.Data["field_label"] = choice.label
	return StepResult{Message: fmt.Sprintf("Lutfen yeni **%s** bilginizi yazin.", choice.label)}
}

func (h *AddressFlow) handleValue(f *Flow, userMessage string) StepResult {
	value := strings.TrimSpace(userMessage)
	field := f.String("field_name")
	label := f.String("field_label")

	if value == "" {
		return StepResult{Message: fmt.Sprintf("Lutfen gecerli bir %s degeri girin.", label)}
	}
	if field == "email" && !isExactEmail(value) {
		return StepResult{Message: "Gecerli bir e-posta adresi giriniz. Ornegin: isim@firma.com"}
	}
	if (field == "phone" || field == "mobile") && !phoneRe.MatchString(value) {
		return StepResult{Message: "Gecerli bir telefon numarasi giriniz. Ornegin: +90 532 123 4567"}
	}

	f.Step = "await_confirm"
	f.Data["new_value"] = value
	return StepResult{
		Message: fmt.Sprintf(
			"Guncelleme ozeti:\n- **Alan:** %s\n- **Yeni deger:** %s\n\nOnayliyor musunuz? (**evet** / **hayir**)",
			label, value,
		),
	}
}

func (h *AddressFlow) handleConfirm(ctx context.Context, f *Flow, userMessage, visitorID string) (StepResult, error) {
	text := strings.ToLower(strings.TrimSpace(userMessage))
	if negative(text) {
		return StepResult{Message: "Guncelleme islemi iptal edildi.", Cancelled: true}, nil
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

	field := f.String("field_name")
	value := f.String("new_value")
	ok, err := h.partners.UpdatePartner(ctx, sess.PartnerID, map[string]string{field: value})
	if err != nil {
		return StepResult{}, err
	}
	if !ok {
		return StepResult{
			Message:   "Guncelleme sirasinda bir hata olustu. Lutfen daha sonra tekrar deneyin.",
			Cancelled: true,
		}, nil
	}

	return StepResult{
		Message:   fmt.Sprintf("**%s** bilginiz basariyla guncellendi.", f.String("field_label")),
		Completed: true,
		Data:      map[string]any{"field": field, "value": value},
	}, nil
}
