package chat

import (
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"

	"github.com/idfine/chatbot-platform/internal/flow"
	"github.com/idfine/chatbot-platform/internal/intent"
)

// Canned greeting and farewell replies, picked at random so repeated hellos
// do not read like a broken record.
var greetingResponses = map[string][]string{
	"tr": {
		"Merhaba! Ben ID Fine AI asistanıyım. Size ürünlerimiz, fiyatlarımız veya stok durumu hakkında yardımcı olabilirim. Nasıl yardımcı olabilirim?",
		"Merhaba! ID Fine'a hoş geldiniz. Ürünler, fiyatlar veya sipariş hakkında sorularınızı yanıtlayabilirim. Size nasıl yardımcı olabilirim?",
		"Hoş geldiniz! Ben ID Fine müşteri destek asistanıyım. Ürün bilgisi, fiyat veya stok sorgulaması için buradayım. Buyurun, nasıl yardımcı olabilirim?",
	},
	"en": {
		"Hello! I'm the ID Fine AI assistant. I can help you with our products, prices, or stock availability. How can I assist you?",
		"Welcome to ID Fine! I can answer your questions about our porcelain products, pricing, and orders. How can I help?",
		"Hi there! I'm the ID Fine customer support assistant. I'm here for product info, pricing, or stock inquiries. What can I help you with?",
	},
}

var farewellResponses = map[string][]string{
	"tr": {
		"Rica ederim! Başka bir sorunuz olursa her zaman buradayım. İyi günler!",
		"Yardımcı olabildiysem ne mutlu! İyi günler dilerim.",
		"Her zaman buradayım. İyi günler!",
	},
	"en": {
		"You're welcome! If you have any other questions, I'm always here. Have a great day!",
		"Glad I could help! Have a wonderful day.",
		"I'm always here if you need anything. Take care!",
	},
}

// farewellWords distinguishes a goodbye from a hello inside the greeting
// fast path. Substring match on the lowercased message.
var farewellWords = []string{
	"teşekkür", "tesekkur", "sağ ol", "sag ol", "hoşça kal", "hosca kal",
	"görüşürüz", "gorusuruz", "güle güle", "gule gule",
	"thanks", "thank you", "bye", "goodbye", "see you", "take care",
}

// Turkish display names for ERP document states.
var orderStateTR = map[string]string{
	"draft": "Taslak", "sent": "Gonderildi", "sale": "Onaylandi",
	"done": "Tamamlandi", "cancel": "Iptal",
}

var invoiceStateTR = map[string]string{
	"draft": "Taslak", "posted": "Kesildi", "cancel": "Iptal",
}

var paymentStateTR = map[string]string{
	"paid": "Odendi", "not_paid": "Odenmedi", "partial": "Kismi Odendi",
	"in_payment": "Odeme Surecinde",
}

var deliveryStateTR = map[string]string{
	"draft": "Taslak", "waiting": "Beklemede", "confirmed": "Onaylandi",
	"assigned": "Hazir", "done": "Teslim Edildi", "cancel": "Iptal",
}

const (
	msgVerifyIntro = "Bu bilgilere erismek icin kimliginizi dogrulamam gerekiyor.\n" +
		"Lutfen ID Fine kayitlarimizda gecen **e-posta adresinizi** yazin."
	msgVerifyUnavailable = "Kimlik dogrulama sistemi su anda kullanilamamaktadir."
	msgLogoutDone        = "Basariyla cikis yapildi. Tekrar ihtiyaciniz olursa kimlik dogrulama yapabilirsiniz."
	msgNoActiveSession   = "Zaten aktif bir oturum bulunmuyor."
	msgERPUnavailable    = "ERP sistemi baglantisi yapilamiyor. Lutfen daha sonra tekrar deneyin."
	msgCustomerDataError = "<musteri_bilgisi>Musteri verileri alinirken bir hata olustu.</musteri_bilgisi>"
	msgOutOfScope        = "Uzgunum, bu konu hakkinda size yardimci olamam. " +
		"Ben sadece ID Fine urunleri ve hizmetleri hakkinda bilgi verebilirim."
	msgFlowStartedFallback = "Islem basladi. Lutfen bilgileri girin."
	msgNoAnswer            = "Bu konuda net bir bilgi bulamadim. Sorunuzu biraz daha detaylandirabilir misiniz?"

	priceGuestMsg = "Ürün fiyatları adet, kullanım alanı ve ürün tipine göre değişiklik göstermektedir. " +
		"Bu nedenle bireysel fiyat paylaşımı yapılmamaktadır.\n\n" +
		"Fiyat bilgisi almak için aşağıdaki seçeneklerden birini kullanabilirsiniz:"
)

// Action is a suggested quick reply the widget renders as a button.
type Action struct {
	Label   string `json:"label"`
	Message string `json:"message"`
}

var priceGuestActions = []Action{
	{Label: "Bayi Bul", Message: "Bayi bulmak istiyorum"},
	{Label: "Talep Bırak", Message: "Fiyat teklifi almak istiyorum"},
}

// flowIntents maps each flow-backed intent to its flow type.
var flowIntents = map[intent.Intent]flow.Type{
	intent.OrderCreate:         flow.TypeOrderCreate,
	intent.OrderCancel:         flow.TypeOrderCancel,
	intent.SupportTicketCreate: flow.TypeTicketCreate,
	intent.Complaint:           flow.TypeComplaint,
	intent.FindDealer:          flow.TypeFindDealer,
	intent.ProfileUpdate:       flow.TypeAddressUpdate,
	intent.AddressUpdate:       flow.TypeAddressUpdate,
	intent.QuoteRequest:        flow.TypeQuotationCreate,
}

// flowPrompts are the intro messages shown when a flow starts.
var flowPrompts = map[flow.Type]string{
	flow.TypeOrderCreate: "Siparis talebinizi almak istiyorum.\n" +
		"Lutfen siparis etmek istediginiz urunleri ve miktarlari yazin.\n" +
		"Ornegin: **ABC123 x 10** veya urun adlarini belirtin.",
	flow.TypeOrderCancel: "Siparis iptal islemi icin yardimci olabilirim.\n" +
		"Lutfen iptal etmek istediginiz siparis numarasini yazin. Ornegin: **S00123**",
	flow.TypeTicketCreate: "Destek talebi olusturmak icin size yardimci olacagim.\n" +
		"Lutfen talebiniz icin bir **konu basligi** yazin.",
	flow.TypeAddressUpdate: "Profil bilgilerinizi guncellemek icin yardimci olabilirim.\n" +
		"Lutfen guncellemek istediginiz alani secin:\n" +
		"- **telefon** - Sabit telefon\n" +
		"- **mobil** - Cep telefonu\n" +
		"- **email** - E-posta adresi\n" +
		"- **adres** - Sokak/cadde adresi\n" +
		"- **sehir** - Sehir\n" +
		"- **posta kodu** - Posta kodu",
	flow.TypeQuotationCreate: "Fiyat teklifi talebi olusturmak icin yardimci olacagim.\n\n" +
		"Lutfen teklif almak istediginiz **urun kodlarini ve miktarlari** asagidaki formatta girin " +
		"(her urunu ayri satira):\n\n" +
		"**urun\\_kodu, miktar**\n\n" +
		"Ornek:\n" +
		"20257-111030, 50\n" +
		"20257-111031, 10",
	flow.TypeComplaint: "Sikayetinizi almak icin size yardimci olacagim.\n" +
		"Lutfen adinizi ve soyadinizi yaziniz.",
	flow.TypeFindDealer: "Bayi bulma islemini baslatiyorum. Lutfen bekleyiniz...",
}

func isFarewell(message string) bool {
	lower := strings.ToLower(strings.TrimSpace(message))
	for _, w := range farewellWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func pickResponse(responses map[string][]string, lang string) string {
	list, ok := responses[lang]
	if !ok {
		list = responses["tr"]
	}
	return list[rand.Intn(len(list))]
}

var orderRefPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)S\d{5}`),
	regexp.MustCompile(`(?i)SO\d{4,}`),
	regexp.MustCompile(`#?\d{4,8}`),
}

// extractOrderRef pulls an order reference like S00123 out of a message.
func extractOrderRef(message string) string {
	for _, p := range orderRefPatterns {
		if m := p.FindString(message); m != "" {
			return strings.TrimPrefix(m, "#")
		}
	}
	return ""
}

var (
	englishMarkers = regexp.MustCompile(`\b(catalog|brochure|pdf|send|share|english|please|can you|could you|would you)\b`)
	turkishMarkers = regexp.MustCompile(`\b(katalog|bro[sş][uü]r|g[oö]nder|payla[sş]|t[uü]rk[cç]e|l[uü]tfen)\b`)
)

// isEnglishMessage guesses the catalog request language. Turkish markers
// win; without clear markers the answer is Turkish.
func isEnglishMessage(message string) bool {
	lower := strings.ToLower(message)
	if turkishMarkers.MatchString(lower) {
		return false
	}
	return englishMarkers.MatchString(lower)
}

// buildCatalogResponse hands out the PDF catalog link in the language of the
// request, falling back to the other language when only one link is
// configured.
func buildCatalogResponse(message, trURL, enURL string) string {
	trURL = strings.TrimSpace(trURL)
	enURL = strings.TrimSpace(enURL)

	if isEnglishMessage(message) {
		if enURL != "" {
			return "Here is our English catalog PDF link:\n" + enURL +
				"\n\nWould you like me to send the catalog to your email address as well?"
		}
		if trURL != "" {
			return "I currently don't have an English catalog file, so here is our Turkish catalog PDF link:\n" + trURL +
				"\n\nWould you like me to send the catalog to your email address as well?"
		}
		return "I don't have a catalog link configured right now.\n\n" +
			"Would you like me to send the catalog to your email address as well once it is available?"
	}

	if trURL != "" {
		return "PDF katalog linkimiz:\n" + trURL + "\n\nKatalogu e-posta adresinize de gondereyim mi?"
	}
	if enURL != "" {
		return "Turkce katalog dosyasi su an mevcut degil, bu nedenle Ingilizce katalog PDF linkini paylasiyorum:\n" + enURL +
			"\n\nKatalogu e-posta adresinize de gondereyim mi?"
	}
	return "Su anda katalog linki tanimli degil.\n\nKatalog hazir oldugunda e-posta adresinize gondermemi ister misiniz?"
}

// formatAmount renders a monetary amount with thousand separators and two
// decimals, e.g. 12,345.67.
func formatAmount(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	dot := strings.IndexByte(s, '.')
	intPart, fracPart := s[:dot], s[dot:]

	neg := strings.HasPrefix(intPart, "-")
	if neg {
		intPart = intPart[1:]
	}

	var b strings.Builder
	for i, d := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}

	out := b.String() + fracPart
	if neg {
		out = "-" + out
	}
	return out
}

// formatQty renders a line quantity without trailing zeros.
func formatQty(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func firstN(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func dateOnly(s string) string {
	if s == "" {
		return "-"
	}
	return firstN(s, 10)
}
