package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyGreetingsAndFarewells(t *testing.T) {
	tests := []struct {
		message string
		lang    string
	}{
		{"Merhaba", "tr"},
		{"selam!", "tr"},
		{"günaydın", "tr"},
		{"teşekkürler", "tr"},
		{"görüşürüz", "tr"},
		{"hello!", "en"},
		{"good morning", "en"},
		{"thanks", "en"},
		{"bye", "en"},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			result := Classify(tt.message)
			assert.True(t, result.Greeting)
			assert.Equal(t, GeneralInfo, result.Intent)
			assert.Equal(t, tt.lang, result.Lang)
		})
	}
}

func TestClassifyCustomerIntents(t *testing.T) {
	tests := []struct {
		message string
		want    Intent
	}{
		{"çıkış yap", CustomerLogout},
		{"logout", CustomerLogout},
		{"giriş yap", CustomerAuth},
		{"login", CustomerAuth},
		{"sipariş iptal", OrderCancel},
		{"siparişimi iptal et", OrderCancel},
		{"yeni sipariş", OrderCreate},
		{"sipariş detay", OrderDetail},
		{"sipariş geçmişi", OrderHistory},
		{"siparişlerim", OrderHistory},
		{"my orders", OrderHistory},
		{"fatura indir", InvoiceDownload},
		{"faturalarım", InvoiceList},
		{"ödeme durumu", PaymentHistory},
		{"kargo takip", DeliveryTracking},
		{"teslimat durumu", DeliveryTracking},
		{"telefon güncelle", ProfileUpdate},
		{"hesabım", ProfileView},
		{"taleplerim", SupportTicketList},
		{"destek talebi açmak istiyorum", SupportTicketCreate},
		{"şikayet etmek istiyorum", Complaint},
		{"Bayi bulmak istiyorum", FindDealer},
		{"en yakın bayi nerede", FindDealer},
		{"katalog", CatalogRequest},
		{"toplam harcama", SpendingReport},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			result := Classify(tt.message)
			assert.Equal(t, tt.want, result.Intent)
			assert.False(t, result.Greeting)
		})
	}
}

func TestClassifyProductPriceStock(t *testing.T) {
	tests := []struct {
		message string
		want    Intent
	}{
		{"fiyat nedir", PriceInquiry},
		{"stokta var mı", StockCheck},
		{"bone china koleksiyonu", ProductInfo},
		{"tabak fiyatı nedir", Hybrid},
		{"teklif almak istiyorum", QuoteRequest},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.message).Intent)
		})
	}
}

func TestClassifyUnknownFallsBackToGeneralInfo(t *testing.T) {
	result := Classify("bugün hava çok güzel")
	assert.Equal(t, GeneralInfo, result.Intent)
	assert.False(t, result.Greeting)
}

func TestRequiresCustomerAuth(t *testing.T) {
	assert.True(t, OrderHistory.RequiresCustomerAuth())
	assert.True(t, QuoteRequest.RequiresCustomerAuth())
	assert.True(t, ProfileUpdate.RequiresCustomerAuth())
	assert.False(t, PriceInquiry.RequiresCustomerAuth())
	assert.False(t, GeneralInfo.RequiresCustomerAuth())
	assert.False(t, CatalogRequest.RequiresCustomerAuth())
	assert.False(t, CustomerAuth.RequiresCustomerAuth())
}

func TestNeedsKnowledgeBaseAndERP(t *testing.T) {
	assert.True(t, ProductInfo.NeedsKnowledgeBase())
	assert.True(t, Hybrid.NeedsKnowledgeBase())
	assert.False(t, PriceInquiry.NeedsKnowledgeBase())

	assert.True(t, PriceInquiry.NeedsERP())
	assert.True(t, StockCheck.NeedsERP())
	assert.False(t, ProductInfo.NeedsERP())
}