// Package intent classifies customer messages with anchored keyword
// patterns. Turkish patterns match both ASCII-folded and accented
// spellings, since widget users type either.
package intent

import (
	"regexp"
	"strings"
)

// Intent is the recognized purpose of a customer message.
type Intent string

const (
	ProductInfo  Intent = "PRODUCT_INFO"
	PriceInquiry Intent = "PRICE_INQUIRY"
	StockCheck   Intent = "STOCK_CHECK"
	OrderStatus  Intent = "ORDER_STATUS"
	QuoteRequest Intent = "QUOTE_REQUEST"
	GeneralInfo  Intent = "GENERAL_INFO"
	Hybrid       Intent = "HYBRID"
	OutOfScope   Intent = "OUT_OF_SCOPE"

	OrderHistory        Intent = "ORDER_HISTORY"
	OrderDetail         Intent = "ORDER_DETAIL"
	OrderCreate         Intent = "ORDER_CREATE"
	OrderCancel         Intent = "ORDER_CANCEL"
	InvoiceList         Intent = "INVOICE_LIST"
	InvoiceDetail       Intent = "INVOICE_DETAIL"
	InvoiceDownload     Intent = "INVOICE_DOWNLOAD"
	PaymentStatus       Intent = "PAYMENT_STATUS"
	PaymentHistory      Intent = "PAYMENT_HISTORY"
	DeliveryTracking    Intent = "DELIVERY_TRACKING"
	ProfileView         Intent = "PROFILE_VIEW"
	ProfileUpdate       Intent = "PROFILE_UPDATE"
	AddressUpdate       Intent = "ADDRESS_UPDATE"
	SupportTicketCreate Intent = "SUPPORT_TICKET_CREATE"
	SupportTicketList   Intent = "SUPPORT_TICKET_LIST"
	CatalogRequest      Intent = "CATALOG_REQUEST"
	SpendingReport      Intent = "SPENDING_REPORT"
	CustomerAuth        Intent = "CUSTOMER_AUTH"
	CustomerLogout      Intent = "CUSTOMER_LOGOUT"
	Complaint           Intent = "COMPLAINT"
	FindDealer          Intent = "FIND_DEALER"
)

// RequiresCustomerAuth reports whether the intent touches customer-private
// data and therefore needs a verified session.
func (i Intent) RequiresCustomerAuth() bool {
	switch i {
	case OrderHistory, OrderDetail, OrderCreate, OrderCancel,
		InvoiceList, InvoiceDetail, InvoiceDownload,
		PaymentStatus, PaymentHistory, DeliveryTracking,
		ProfileView, ProfileUpdate, AddressUpdate,
		SupportTicketCreate, SupportTicketList,
		SpendingReport, QuoteRequest:
		return true
	}
	return false
}

// NeedsKnowledgeBase reports whether the intent is answered from indexed
// product content.
func (i Intent) NeedsKnowledgeBase() bool {
	switch i {
	case ProductInfo, GeneralInfo, Hybrid:
		return true
	}
	return false
}

// NeedsERP reports whether the intent is answered from live ERP data.
func (i Intent) NeedsERP() bool {
	switch i {
	case PriceInquiry, StockCheck, OrderStatus, QuoteRequest, Hybrid:
		return true
	}
	return false
}

// Result carries the classified intent plus greeting metadata used by the
// chat fast path.
type Result struct {
	Intent   Intent
	Greeting bool
	Lang     string
}

var (
	greetingTR = regexp.MustCompile(`(?i)^(merhaba|selam|g[uü]nayd[iı]n|iyi\s*(g[uü]nler|ak[sş]amlar|geceler)|ho[sş]\s*geldin|nas[iı]ls[iı]n|naber|sa|selam[uü]n\s*aleyk[uü]m)\s*[!?.,]*$`)
	greetingEN = regexp.MustCompile(`(?i)^(hello|hi|hey|good\s*(morning|afternoon|evening)|howdy|greetings)\s*[!?.,]*$`)
	farewellTR = regexp.MustCompile(`(?i)^(te[sş]ekk[uü]r(ler)?|sa[gğ]\s*ol|eyvallah|ho[sş][cç]a\s*kal|g[oö]r[uü][sş][uü]r[uü]z|iyi\s*g[uü]nler|g[uü]le\s*g[uü]le|kendine\s*iyi\s*bak)\s*[!?.,]*$`)
	farewellEN = regexp.MustCompile(`(?i)^(thanks?|thank\s*you|bye|goodbye|see\s*you|take\s*care)\s*[!?.,]*$`)

	priceKeywords   = regexp.MustCompile(`(?i)\b(fiyat|[uü]cret|ka[cç]\s*(tl|lira|para)|ne\s*kadar|fiyat[iı]|pahal[iı]|ucuz|maliyet|price|cost|how\s*much|pricing)\b`)
	stockKeywords   = regexp.MustCompile(`(?i)\b(stok|stokta|mevcut|var\s*m[iı]|kalm[iı][sş]\s*m[iı]|bulunur|temin|teslimat\s*s[uü]resi|stock|availability|available|in\s*stock)\b`)
	orderKeywords   = regexp.MustCompile(`(?i)\b(sipari[sş]|kargo|takip|teslimat|S\d{5}|SO\d{4}|order|tracking|shipment)\b`)
	quoteKeywords   = regexp.MustCompile(`(?i)\b(teklif|fiyat\s*teklifi|toplu|toptan|indirim|anla[sş]ma|quote|quotation|bulk|wholesale)\b`)
	productKeywords = regexp.MustCompile(`(?i)\b([uü]r[uü]n|tabak|bardak|fincan|kase|porselen|bone\s*china|servis|koleksiyon|[cç]e[sş]it|boyut|[oö]zellik|malzeme|seri|plate|cup|bowl|porcelain|collection)\b`)

	orderHistoryKeywords    = regexp.MustCompile(`(?i)\b(sipari[sş]lerim|ge[cç]mi[sş]\s*sipari[sş]|sipari[sş]\s*ge[cç]mi[sş]i|sipari[sş]\s*listesi|my\s*orders|order\s*history|past\s*orders)\b`)
	orderDetailKeywords     = regexp.MustCompile(`(?i)\b(sipari[sş]\s*detay|sipari[sş]\s*bilgi|S\d{5}\s*(durumu|detay|bilgi)|SO\d{4,}\s*(durumu|detay|bilgi)|order\s*detail)\b`)
	orderCreateKeywords     = regexp.MustCompile(`(?i)\b(sipari[sş]\s*ver|sipari[sş]\s*olu[sş]tur|sipari[sş]\s*a[cç]|yeni\s*sipari[sş]|sat[iı]n\s*al|place\s*order|create\s*order|new\s*order)\b`)
	orderCancelKeywords     = regexp.MustCompile(`(?i)\b(sipari[sş]\s*iptal|iptal\s*et|iade|sipari[sş].*cancel|cancel\s*order)\b`)
	invoiceKeywords         = regexp.MustCompile(`(?i)\b(fatura|faturalar[iı]m|hesap\s*[oö]zeti|fatura\s*listesi|invoice|invoices|my\s*invoices|billing)\b`)
	invoiceDownloadKeywords = regexp.MustCompile(`(?i)\b(fatura\s*(indir|pdf|download|g[oö]nder)|pdf\s*fatura|download\s*invoice|invoice\s*pdf)\b`)
	paymentKeywords         = regexp.MustCompile(`(?i)\b([oö]deme|[oö]deme\s*durumu|[oö]deme\s*ge[cç]mi[sş]i|bor[cç]|bakiye|payment|balance|amount\s*due)\b`)
	deliveryKeywords        = regexp.MustCompile(`(?i)\b(kargo|kargo\s*takip|teslimat\s*durumu|sevk[iı]yat|g[oö]nderi|ne\s*zaman\s*gelecek|delivery|tracking|shipment\s*status)\b`)
	profileKeywords         = regexp.MustCompile(`(?i)\b(profil|hesab[iı]m|bilgilerim|ki[sş]isel\s*bilgi|m[uü][sş]teri\s*bilgi|my\s*profile|my\s*account|personal\s*info)\b`)
	profileUpdateKeywords   = regexp.MustCompile(`(?i)\b((telefon|adres|email|e-posta|isim|ad)\s*(g[uü]ncelle|de[gğ]i[sş]tir|d[uü]zelt)|g[uü]ncelle.*(telefon|adres|email|e-posta)|update\s*(phone|address|email))\b`)
	supportKeywords         = regexp.MustCompile(`(?i)\b(destek\s*talebi|sorun\s*bildir|[sş]ikayet|ticket|destek|talep\s*olu[sş]tur|support\s*ticket|create\s*ticket|report\s*issue)\b`)
	supportListKeywords     = regexp.MustCompile(`(?i)\b(taleplerim|ticket.*lar[iı]m|destek.*taleplerim|my\s*tickets)\b`)
	catalogKeywords         = regexp.MustCompile(`(?i)\b(katalog|pdf\s*katalog|bro[sş][uü]r|catalog|brochure)\b`)
	spendingKeywords        = regexp.MustCompile(`(?i)\b(harcama\s*rapor|istatistik|toplam\s*harcama|spending\s*report|purchase\s*summary)\b`)
	complaintKeywords       = regexp.MustCompile(`(?i)\b([sş]ikayet|memnun\s*de[gğ]il|complaint|complain)\b`)
	dealerKeywords          = regexp.MustCompile(`(?i)\b(bayi|en\s*yak[iı]n\s*bayi|sat[iı][sş]\s*noktas[iı]|dealer|reseller)\b`)
	authKeywords            = regexp.MustCompile(`(?i)\b(giri[sş]\s*yap|kimlik\s*do[gğ]rula|oturum\s*a[cç]|login|authenticate|sign\s*in)\b`)
	logoutKeywords          = regexp.MustCompile(`(?i)\b([cç][iı]k[iı][sş]\s*yap|oturum\s*kapat|logout|sign\s*out|[cç][iı]k[iı][sş])\b`)
)

// turkishFold maps Turkish letters to their ASCII bases. RE2's \b only
// understands ASCII word characters, so accented input must be folded
// before the keyword patterns see it.
var turkishFold = strings.NewReplacer(
	"ç", "c", "Ç", "c",
	"ğ", "g", "Ğ", "g",
	"ı", "i", "İ", "i",
	"ö", "o", "Ö", "o",
	"ş", "s", "Ş", "s",
	"ü", "u", "Ü", "u",
)

// Classify resolves the message to an intent. Greetings and farewells are
// flagged so the caller can answer them without touching any backend.
// Messages no pattern recognizes fall back to GeneralInfo.
func Classify(message string) Result {
	text := turkishFold.Replace(strings.TrimSpace(message))

	// Greetings and farewells short-circuit everything else.
	if greetingTR.MatchString(text) || farewellTR.MatchString(text) {
		return Result{Intent: GeneralInfo, Greeting: true, Lang: "tr"}
	}
	if greetingEN.MatchString(text) || farewellEN.MatchString(text) {
		return Result{Intent: GeneralInfo, Greeting: true, Lang: "en"}
	}

	// Customer patterns first; they are more specific than the generic
	// product/price/stock keywords.
	switch {
	case logoutKeywords.MatchString(text):
		return Result{Intent: CustomerLogout, Lang: "tr"}
	case authKeywords.MatchString(text):
		return Result{Intent: CustomerAuth, Lang: "tr"}
	case orderCancelKeywords.MatchString(text):
		return Result{Intent: OrderCancel, Lang: "tr"}
	case orderCreateKeywords.MatchString(text):
		return Result{Intent: OrderCreate, Lang: "tr"}
	case orderDetailKeywords.MatchString(text):
		return Result{Intent: OrderDetail, Lang: "tr"}
	case orderHistoryKeywords.MatchString(text):
		return Result{Intent: OrderHistory, Lang: "tr"}
	case invoiceDownloadKeywords.MatchString(text):
		return Result{Intent: InvoiceDownload, Lang: "tr"}
	case invoiceKeywords.MatchString(text):
		return Result{Intent: InvoiceList, Lang: "tr"}
	case paymentKeywords.MatchString(text):
		return Result{Intent: PaymentHistory, Lang: "tr"}
	case deliveryKeywords.MatchString(text):
		return Result{Intent: DeliveryTracking, Lang: "tr"}
	case profileUpdateKeywords.MatchString(text):
		return Result{Intent: ProfileUpdate, Lang: "tr"}
	case profileKeywords.MatchString(text):
		return Result{Intent: ProfileView, Lang: "tr"}
	case supportListKeywords.MatchString(text):
		return Result{Intent: SupportTicketList, Lang: "tr"}
	case complaintKeywords.MatchString(text):
		return Result{Intent: Complaint, Lang: "tr"}
	case supportKeywords.MatchString(text):
		return Result{Intent: SupportTicketCreate, Lang: "tr"}
	case dealerKeywords.MatchString(text):
		return Result{Intent: FindDealer, Lang: "tr"}
	case catalogKeywords.MatchString(text):
		return Result{Intent: CatalogRequest, Lang: "tr"}
	case spendingKeywords.MatchString(text):
		return Result{Intent: SpendingReport, Lang: "tr"}
	}

	hasPrice := priceKeywords.MatchString(text)
	hasStock := stockKeywords.MatchString(text)
	hasProduct := productKeywords.MatchString(text)

	if hasPrice && hasStock {
		return Result{Intent: Hybrid, Lang: "tr"}
	}
	if hasPrice && hasProduct {
		return Result{Intent: Hybrid, Lang: "tr"}
	}
	if orderKeywords.MatchString(text) {
		return Result{Intent: OrderHistory, Lang: "tr"}
	}
	if quoteKeywords.MatchString(text) {
		return Result{Intent: QuoteRequest, Lang: "tr"}
	}
	if hasPrice {
		return Result{Intent: PriceInquiry, Lang: "tr"}
	}
	if hasStock {
		return Result{Intent: StockCheck, Lang: "tr"}
	}
	if hasProduct {
		return Result{Intent: ProductInfo, Lang: "tr"}
	}

	return Result{Intent: GeneralInfo, Lang: "tr"}
}
