package flow

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/idfine/chatbot-platform/internal/notify"
	"github.com/idfine/chatbot-platform/internal/odoo"
	"github.com/idfine/chatbot-platform/pkg/logging"
)

var (
	// contactPhoneRe matches a phone number anywhere in free text, unlike
	// phoneRe which validates a whole message.
	contactPhoneRe = regexp.MustCompile(`[\d\s\-\+\(\)]{7,}`)
	separatorRe    = regexp.MustCompile(`[,;/\-]+`)
	whitespaceRe   = regexp.MustCompile(`\s+`)

	// trASCII folds Turkish letters so "İzmir", "izmir" and "Izmır" all
	// match the same province.
	trASCII = strings.NewReplacer(
		"ç", "c", "ğ", "g", "ı", "i", "ö", "o", "ş", "s", "ü", "u",
		"Ç", "C", "Ğ", "G", "İ", "I", "Ö", "O", "Ş", "S", "Ü", "U",
	)
)

func normalizeTurkish(s string) string {
	return strings.ToLower(trASCII.Replace(s))
}

// dealerEntry is the slice of a dealer record the flow keeps in its state.
type dealerEntry struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	Street       string `json:"street"`
	CityDistrict string `json:"city_district"`
}

// DealerFlow walks a visitor through the dealer directory: pick a province,
// pick a dealer, optionally leave contact details which become a CRM lead and
// a notification email to the dealer. No verification required.
// Steps: await_city → show_dealers → await_contact → await_confirm.
type DealerFlow struct {
	dealers DealerDirectory
	email   notify.EmailSender
	logger  *logging.Logger
}

// NewDealerFlow creates the dealer finder handler.
func NewDealerFlow(dealers DealerDirectory, email notify.EmailSender, logger *logging.Logger) *DealerFlow {
	if logger == nil {
		logger = logging.Default()
	}
	return &DealerFlow{dealers: dealers, email: email, logger: logger.Named("dealer_flow")}
}

func (h *DealerFlow) Type() Type          { return TypeFindDealer }
func (h *DealerFlow) InitialStep() string { return "await_city" }

func (h *DealerFlow) ProcessStep(ctx context.Context, f *Flow, userMessage, visitorID string) (StepResult, error) {
	// First entry presents the province list before reading any input.
	if f.Step == "await_city" {
		if _, loaded := f.Data["cities_loaded"]; !loaded {
			return h.loadCities(ctx, f), nil
		}
	}

	switch f.Step {
	case "await_city":
		return h.handleCitySelection(ctx, f, userMessage), nil
	case "show_dealers":
		return h.handleDealerSelection(ctx, f, userMessage), nil
	case "await_contact":
		return h.handleContact(f, userMessage), nil
	case "await_confirm":
		return h.handleConfirm(ctx, f, userMessage), nil
	default:
		return brokenStep(), nil
	}
}

func (h *DealerFlow) loadCities(ctx context.Context, f *Flow) StepResult {
	cities, err := h.dealers.DealerCities(ctx)
	if err != nil {
		h.logger.Error("failed to fetch dealer cities", "error", err)
		return StepResult{
			Message:   "Bayi bilgileri yuklenirken bir hata olustu. Lutfen daha sonra tekrar deneyin.",
			Cancelled: true,
		}
	}
	if len(cities) == 0 {
		return StepResult{
			Message:   "Su anda aktif bayi bilgisi bulunamadi. Lutfen daha sonra tekrar deneyin.",
			Cancelled: true,
		}
	}

	f.Data["cities"] = cities
	f.Data["cities_loaded"] = true

	var b strings.Builder
	for i, c := range cities {
		fmt.Fprintf(&b, "**%d.** %s\n", i+1, c)
	}
	return StepResult{
		Message: fmt.Sprintf(
			"Bayilerimizin bulundugu sehirler:\n\n%s\nLutfen bir sehir secin (numara veya sehir adi yazin).\nIptal icin **iptal** yazin.",
			b.String(),
		),
	}
}

func (h *DealerFlow) handleCitySelection(ctx context.Context, f *Flow, userMessage string) StepResult {
	text := strings.TrimSpace(userMessage)

	var cities []string
	Decode(f.Data["cities"], &cities)

	if n, err := strconv.Atoi(text); err == nil {
		if n >= 1 && n <= len(cities) {
			return h.showDealersForCity(ctx, f, cities[n-1])
		}
		return StepResult{
			Message: fmt.Sprintf("Gecersiz numara. Lutfen 1 ile %d arasinda bir sayi girin.", len(cities)),
		}
	}

	norm := normalizeTurkish(text)
	for _, city := range cities {
		cityNorm := normalizeTurkish(city)
		if norm == cityNorm || strings.Contains(cityNorm, norm) || strings.Contains(norm, cityNorm) {
			return h.showDealersForCity(ctx, f, city)
		}
	}

	return StepResult{
		Message: "Girdiginiz sehir listede bulunamadi. Lutfen listedeki bir sehir adi veya numarasi yazin.",
	}
}

func (h *DealerFlow) showDealersForCity(ctx context.Context, f *Flow, city string) StepResult {
	found, err := h.dealers.DealersByCity(ctx, city)
	if err != nil {
		h.logger.Error("failed to fetch dealers", "error", err, "city", city)
		return StepResult{
			Message:   "Bayi bilgileri yuklenirken bir hata olustu. Lutfen tekrar deneyin.",
			Cancelled: true,
		}
	}

	if len(found) == 0 {
		// Back to city selection on the next message.
		delete(f.Data, "cities_loaded")
		return StepResult{
			Message: fmt.Sprintf(
				"**%s** ilinde aktif bayi bulunamadi.\nBaska bir sehir secmek icin tekrar deneyin veya **iptal** yazin.",
				city,
			),
		}
	}

	entries := make([]dealerEntry, 0, len(found))
	for _, d := range found {
		phone := d.Phone
		if phone == "" {
			phone = d.Mobile
		}
		entries = append(entries, dealerEntry{
			ID:           d.ID,
			Name:         d.Name,
			Phone:        phone,
			Email:        d.Email,
			Street:       d.Street,
			CityDistrict: d.City,
		})
	}

	f.Data["selected_city"] = city
	f.Data["dealers"] = entries
	f.Step = "show_dealers"

	var blocks []string
	for i, d := range entries {
		parts := []string{fmt.Sprintf("**%d. %s**", i+1, d.Name)}
		if d.CityDistrict != "" {
			parts = append(parts, "   Ilce: "+d.CityDistrict)
		}
		if d.Street != "" {
			parts = append(parts, "   Adres: "+d.Street)
		}
		if d.Phone != "" {
			parts = append(parts, "   Tel: "+d.Phone)
		}
		blocks = append(blocks, strings.Join(parts, "\n"))
	}

	return StepResult{
		Message: fmt.Sprintf(
			"**%s** ilindeki bayilerimiz:\n\n%s\n\nIletisim bilgilerinizi birakmak ister misiniz?\nBayi numarasini yazin veya **hayir** yazin.",
			city, strings.Join(blocks, "\n\n"),
		),
	}
}

func (h *DealerFlow) handleDealerSelection(ctx context.Context, f *Flow, userMessage string) StepResult {
	text := strings.ToLower(strings.TrimSpace(userMessage))

	var entries []dealerEntry
	Decode(f.Data["dealers"], &entries)

	switch text {
	case "hayir", "hayır", "no", "yok":
		return StepResult{
			Message:   "Tamam, bayi listemizi incelediginiz icin tesekkurler! Baska bir konuda yardimci olabilir miyim?",
			Completed: true,
		}
	case "geri", "back", "baska", "başka":
		f.Step = "await_city"
		delete(f.Data, "cities_loaded")
		return h.loadCities(ctx, f)
	}

	if n, err := strconv.Atoi(text); err == nil {
		if n >= 1 && n <= len(entries) {
			selected := entries[n-1]
			f.Data["selected_dealer"] = selected
			f.Step = "await_contact"
			return StepResult{
				Message: fmt.Sprintf(
					"**%s** bayisi secildi.\n\nLutfen iletisim bilgilerinizi yazin:\n**Adiniz, telefon numaraniz ve e-posta adresiniz**\nOrnegin: Ali Yilmaz, 0532 123 4567, ali@firma.com",
					selected.Name,
				),
			}
		}
		return StepResult{
			Message: fmt.Sprintf("Gecersiz numara. Lutfen 1 ile %d arasinda bir sayi girin.", len(entries)),
		}
	}

	return StepResult{Message: "Lutfen bir bayi numarasi secin veya **hayir** yazin."}
}

func (h *DealerFlow) handleContact(f *Flow, userMessage string) StepResult {
	text := strings.TrimSpace(userMessage)

	email := emailRe.FindString(text)
	phone := strings.TrimSpace(contactPhoneRe.FindString(text))

	// Name is whatever remains after stripping the contact details.
	name := text
	if email != "" {
		name = strings.ReplaceAll(name, email, "")
	}
	if phone != "" {
		name = strings.ReplaceAll(name, phone, "")
	}
	name = strings.TrimSpace(separatorRe.ReplaceAllString(name, " "))
	name = whitespaceRe.ReplaceAllString(name, " ")

	if len(name) < 2 {
		return StepResult{
			Message: "Lutfen en az adinizi yazin.\nOrnegin: Ali Yilmaz, 0532 123 4567, ali@firma.com",
		}
	}
	if email == "" && phone == "" {
		return StepResult{
			Message: "Lutfen en az bir iletisim bilgisi girin (telefon veya e-posta).\nOrnegin: Ali Yilmaz, 0532 123 4567, ali@firma.com",
		}
	}

	f.Data["customer_name"] = name
	f.Data["customer_phone"] = phone
	f.Data["customer_email"] = email
	f.Step = "await_confirm"

	var dealer dealerEntry
	Decode(f.Data["selected_dealer"], &dealer)

	return StepResult{
		Message: fmt.Sprintf(
			"Bilgileriniz:\n- **Ad:** %s\n- **Telefon:** %s\n- **E-posta:** %s\n- **Bayi:** %s (%s)\n\nGondermek istiyor musunuz? (**evet** / **hayir**)",
			name, orPlaceholder(phone), orPlaceholder(email), dealer.Name, f.String("selected_city"),
		),
	}
}

func (h *DealerFlow) handleConfirm(ctx context.Context, f *Flow, userMessage string) StepResult {
	text := strings.ToLower(strings.TrimSpace(userMessage))
	if negative(text) {
		return StepResult{Message: "Iptal edildi. Baska bir konuda yardimci olabilir miyim?", Cancelled: true}
	}
	if !affirmative(text) {
		return StepResult{Message: msgConfirmYesOrNo}
	}

	var dealer dealerEntry
	Decode(f.Data["selected_dealer"], &dealer)

	name := f.String("customer_name")
	phone := f.String("customer_phone")
	email := f.String("customer_email")
	city := f.String("selected_city")

	// Lead creation and the dealer email are both best effort; the request
	// only fails when neither went through.
	leadID, err := h.dealers.CreateLead(ctx, odoo.Lead{
		DealerID:     dealer.ID,
		DealerName:   dealer.Name,
		CustomerName: name,
		Phone:        phone,
		Email:        email,
		City:         city,
	})
	if err != nil {
		h.logger.Error("failed to create CRM lead", "error", err, "dealer", dealer.Name)
		leadID = 0
	} else if leadID != 0 {
		h.logger.Info("CRM lead created", "lead_id", leadID, "dealer", dealer.Name, "customer", name)
	}

	emailSent := h.notifyDealer(ctx, dealer, name, phone, email, city)

	if leadID == 0 && !emailSent {
		return StepResult{
			Message:   "Talebiniz iletilirken bir hata olustu. Lutfen daha sonra tekrar deneyin.",
			Cancelled: true,
		}
	}

	return StepResult{
		Message: fmt.Sprintf(
			"Talebiniz basariyla iletildi!\n**%s** bayimiz en kisa surede sizinle iletisime gececektir.\nBaska bir konuda yardimci olabilir miyim?",
			dealer.Name,
		),
		Completed: true,
		Data: map[string]any{
			"lead_id":     leadID,
			"dealer_name": dealer.Name,
			"city":        city,
		},
	}
}

func (h *DealerFlow) notifyDealer(ctx context.Context, dealer dealerEntry, name, phone, email, city string) bool {
	if dealer.Email == "" {
		h.logger.Warn("dealer has no email, skipping notification", "dealer", dealer.Name)
		return false
	}

	bodyHTML := fmt.Sprintf(
		`<div style="font-family: Arial, sans-serif; max-width: 500px; margin: 0 auto; padding: 20px;">
  <div style="text-align: center; margin-bottom: 20px;">
    <h2 style="color: #231f20; margin: 0;">ID Fine</h2>
    <p style="color: #666; margin: 5px 0;">Yeni Musteri Talebi</p>
  </div>
  <div style="background: #f7f7f7; border-radius: 8px; padding: 24px;">
    <p><strong>Musteri Adi:</strong> %s</p>
    <p><strong>Telefon:</strong> %s</p>
    <p><strong>E-posta:</strong> %s</p>
    <p><strong>Sehir:</strong> %s</p>
  </div>
  <p style="color: #999; font-size: 11px; text-align: center; margin-top: 20px;">
    Bu talep ID Fine chatbot uzerinden otomatik olusturulmustur.
    Lutfen musteriye en kisa surede donus yapiniz.
  </p>
</div>`,
		name, orPlaceholder(phone), orPlaceholder(email), city,
	)

	err := h.email.Send(ctx, notify.EmailMessage{
		To:      dealer.Email,
		ToName:  dealer.Name,
		Subject: fmt.Sprintf("Yeni Musteri Talebi - %s (%s)", name, city),
		Body:    fmt.Sprintf("Yeni musteri talebi\nMusteri: %s\nTelefon: %s\nE-posta: %s\nSehir: %s", name, orPlaceholder(phone), orPlaceholder(email), city),
		HTML:    bodyHTML,
	})
	if err != nil {
		h.logger.Error("failed to send dealer notification", "error", err, "dealer", dealer.Name)
		return false
	}
	return true
}

func orPlaceholder(s string) string {
	if s == "" {
		return "Belirtilmedi"
	}
	return s
}
