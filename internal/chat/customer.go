package chat

import (
	"context"
	"strconv"
	"strings"

	"github.com/idfine/chatbot-platform/internal/intent"
	"github.com/idfine/chatbot-platform/internal/odoo"
)

// customerContext answers an identity-requiring intent from ERP data and
// formats it as a tagged context block for the responder. Errors degrade to
// a generic data-error block so the turn still produces a reply.
func (o *Orchestrator) customerContext(ctx context.Context, in intent.Intent, userMessage string, partnerID int) string {
	if o.customers == nil {
		return msgERPUnavailable
	}

	text, err := func() (string, error) {
		switch in {
		case intent.OrderHistory:
			return o.formatOrders(ctx, partnerID)
		case intent.OrderDetail:
			return o.formatOrderDetail(ctx, partnerID, userMessage)
		case intent.InvoiceList, intent.InvoiceDetail:
			return o.formatInvoices(ctx, partnerID)
		case intent.InvoiceDownload:
			return o.formatInvoiceDownload(ctx, partnerID)
		case intent.PaymentStatus, intent.PaymentHistory:
			return o.formatPayments(ctx, partnerID)
		case intent.DeliveryTracking:
			return o.formatDeliveries(ctx, partnerID)
		case intent.ProfileView:
			return o.formatProfile(ctx, partnerID)
		case intent.SupportTicketList:
			return o.formatTickets(ctx, partnerID)
		case intent.SpendingReport:
			return o.formatSpendingReport(ctx, partnerID)
		default:
			// Flow-backed intents never reach here; maybeStartFlow runs
			// first. An empty answer keeps the responder from inventing one.
			o.logger.Warn("customer context for flow intent", "intent", in)
			return "", nil
		}
	}()
	if err != nil {
		o.logger.Error("customer context failed", "intent", in, "error", err)
		return msgCustomerDataError
	}
	return text
}

func wrapCustomerData(lines []string) string {
	return "<musteri_verileri>\n" + strings.Join(lines, "\n") + "\n</musteri_verileri>"
}

func (o *Orchestrator) formatOrders(ctx context.Context, partnerID int) (string, error) {
	orders, err := o.customers.PartnerOrders(ctx, partnerID, 15)
	if err != nil {
		return "", err
	}
	if len(orders) == 0 {
		return "<musteri_verileri>Kayitli siparis bulunamadi.</musteri_verileri>", nil
	}

	lines := []string{"Musteri Siparisleri:"}
	for _, ord := range orders {
		state := orderStateTR[ord.State]
		if state == "" {
			state = ord.State
		}
		lines = append(lines, "- "+ord.Name+
			" | Tarih: "+dateOnly(ord.DateOrder)+
			" | Durum: "+state+
			" | Tutar: "+formatAmount(ord.AmountTotal)+" "+ord.Currency)
	}
	return wrapCustomerData(lines), nil
}

func (o *Orchestrator) formatOrderDetail(ctx context.Context, partnerID int, message string) (string, error) {
	if ref := extractOrderRef(message); ref != "" {
		orders, err := o.customers.PartnerOrders(ctx, partnerID, 100)
		if err != nil {
			return "", err
		}
		for _, ord := range orders {
			if !strings.Contains(strings.ToUpper(ord.Name), strings.ToUpper(ref)) {
				continue
			}
			detail, err := o.customers.OrderDetails(ctx, ord.ID, partnerID)
			if err != nil {
				return "", err
			}
			if detail != nil {
				return formatOrderDetailText(detail), nil
			}
			break
		}
	}

	// No usable reference: show the recent orders instead.
	return o.formatOrders(ctx, partnerID)
}

func formatOrderDetailText(detail *odoo.OrderDetail) string {
	state := orderStateTR[detail.State]
	if state == "" {
		state = detail.State
	}
	lines := []string{
		"Siparis Detayi: " + detail.Name,
		"Durum: " + state,
		"Tarih: " + dateOnly(detail.DateOrder),
		"Ara Toplam: " + formatAmount(detail.AmountUntaxed) + " " + detail.Currency,
		"KDV: " + formatAmount(detail.AmountTax) + " " + detail.Currency,
		"Toplam: " + formatAmount(detail.AmountTotal) + " " + detail.Currency,
		"",
		"Kalemler:",
	}
	for _, ln := range detail.Lines {
		lines = append(lines, "  - "+ln.ProductName+": "+
			formatQty(ln.Quantity)+" x "+formatAmount(ln.PriceUnit)+
			" = "+formatAmount(ln.PriceSubtotal))
	}
	return wrapCustomerData(lines)
}

func (o *Orchestrator) formatInvoices(ctx context.Context, partnerID int) (string, error) {
	invoices, err := o.customers.PartnerInvoices(ctx, partnerID, 15)
	if err != nil {
		return "", err
	}
	if len(invoices) == 0 {
		return "<musteri_verileri>Kayitli fatura bulunamadi.</musteri_verileri>", nil
	}

	lines := []string{"Musteri Faturalari:"}
	for _, inv := range invoices {
		state := invoiceStateTR[inv.State]
		if state == "" {
			state = inv.State
		}
		payState := paymentStateTR[inv.PaymentState]
		if payState == "" {
			payState = inv.PaymentState
			if payState == "" {
				payState = "-"
			}
		}
		lines = append(lines, "- "+inv.Name+
			" | Tarih: "+dateOnly(inv.Date)+
			" | Vade: "+dateOnly(inv.DateDue)+
			" | Durum: "+state+
			" | Odeme: "+payState+
			" | Tutar: "+formatAmount(inv.AmountTotal)+
			" | Kalan: "+formatAmount(inv.AmountResidual)+" "+inv.Currency)
	}
	return wrapCustomerData(lines), nil
}

func (o *Orchestrator) formatInvoiceDownload(ctx context.Context, partnerID int) (string, error) {
	invoices, err := o.customers.PartnerInvoices(ctx, partnerID, 10)
	if err != nil {
		return "", err
	}
	if len(invoices) == 0 {
		return "<musteri_verileri>Indirilecek fatura bulunamadi.</musteri_verileri>", nil
	}

	lines := []string{
		"Fatura PDF indirme icin asagidaki faturalariniz listelenmistir.",
		"Musteri, fatura indirmek istediginde /api/customer/invoice/token endpoint'ini " +
			"invoice_id parametresi ile cagirmali, donen token ile /api/customer/invoice/download " +
			"endpoint'inden PDF'i indirmelidir.",
		"",
		"Mevcut faturalar:",
	}
	for _, inv := range invoices {
		state := invoiceStateTR[inv.State]
		if state == "" {
			state = inv.State
		}
		lines = append(lines, "- "+inv.Name+" (ID: "+strconv.Itoa(inv.ID)+")"+
			" | Tarih: "+dateOnly(inv.Date)+
			" | Durum: "+state+
			" | Tutar: "+formatAmount(inv.AmountTotal)+" "+inv.Currency)
	}
	return wrapCustomerData(lines), nil
}

func (o *Orchestrator) formatPayments(ctx context.Context, partnerID int) (string, error) {
	payments, err := o.customers.PartnerPayments(ctx, partnerID, 15)
	if err != nil {
		return "", err
	}
	if len(payments) == 0 {
		return "<musteri_verileri>Kayitli odeme bulunamadi.</musteri_verileri>", nil
	}

	lines := []string{"Odeme Gecmisi:"}
	for _, p := range payments {
		direction := "Giden"
		if p.PaymentType == "inbound" {
			direction = "Gelen"
		}
		lines = append(lines, "- "+p.Name+
			" | Tarih: "+dateOnly(p.Date)+
			" | Tip: "+direction+
			" | Tutar: "+formatAmount(p.Amount)+" "+p.Currency+
			" | Durum: "+p.State)
	}
	return wrapCustomerData(lines), nil
}

func (o *Orchestrator) formatDeliveries(ctx context.Context, partnerID int) (string, error) {
	deliveries, err := o.customers.PartnerDeliveries(ctx, partnerID, 10)
	if err != nil {
		return "", err
	}
	if len(deliveries) == 0 {
		return "<musteri_verileri>Kayitli teslimat bulunamadi.</musteri_verileri>", nil
	}

	lines := []string{"Teslimat/Kargo Bilgileri:"}
	for _, d := range deliveries {
		state := deliveryStateTR[d.State]
		if state == "" {
			state = d.State
		}
		origin := d.Origin
		if origin == "" {
			origin = "-"
		}
		line := "- " + d.Name +
			" | Kaynak: " + origin +
			" | Durum: " + state +
			" | Plan: " + dateOnly(d.ScheduledDate) +
			" | Teslim: " + dateOnly(d.DateDone)
		if d.Carrier != "" {
			line += " | Kargo: " + d.Carrier
		}
		if d.TrackingRef != "" {
			line += " | Takip: " + d.TrackingRef
		}
		lines = append(lines, line)
	}
	return wrapCustomerData(lines), nil
}

func (o *Orchestrator) formatProfile(ctx context.Context, partnerID int) (string, error) {
	partner, err := o.customers.GetPartner(ctx, partnerID)
	if err != nil {
		return "", err
	}
	if partner == nil {
		return "<musteri_verileri>Profil bilgisi alinamadi.</musteri_verileri>", nil
	}

	lines := []string{
		"Musteri Profili:",
		"  Ad: " + partner.Name,
		"  E-posta: " + orDash(partner.Email),
		"  Telefon: " + orDash(partner.Phone),
		"  Mobil: " + orDash(partner.Mobile),
	}
	if partner.CompanyName != "" {
		lines = append(lines, "  Firma: "+partner.CompanyName)
	}
	if partner.VAT != "" {
		lines = append(lines, "  Vergi No: "+partner.VAT)
	}

	var addr []string
	for _, part := range []string{partner.Street, partner.Street2, partner.City, partner.State, partner.Zip, partner.Country} {
		if part != "" {
			addr = append(addr, part)
		}
	}
	if len(addr) > 0 {
		lines = append(lines, "  Adres: "+strings.Join(addr, ", "))
	}
	return wrapCustomerData(lines), nil
}

func (o *Orchestrator) formatTickets(ctx context.Context, partnerID int) (string, error) {
	tickets, err := o.customers.PartnerTickets(ctx, partnerID, 10)
	if err != nil {
		return "", err
	}
	if len(tickets) == 0 {
		return "<musteri_verileri>Kayitli destek talebi bulunamadi.</musteri_verileri>", nil
	}

	lines := []string{"Destek Talepleri:"}
	for _, t := range tickets {
		lines = append(lines, "- #"+strconv.Itoa(t.ID)+" "+t.Name+
			" | Asama: "+orDash(t.Stage)+
			" | Oncelik: "+orDash(t.Priority)+
			" | Tarih: "+dateOnly(t.CreateDate))
	}
	return wrapCustomerData(lines), nil
}

func (o *Orchestrator) formatSpendingReport(ctx context.Context, partnerID int) (string, error) {
	report, err := o.customers.GetSpendingReport(ctx, partnerID)
	if err != nil {
		return "", err
	}
	if report == nil {
		return "<musteri_verileri>Harcama raporu alinamadi.</musteri_verileri>", nil
	}

	lines := []string{
		"Harcama Raporu:",
		"  Toplam Siparis: " + strconv.Itoa(report.TotalOrders),
		"  Toplam Harcama: " + formatAmount(report.TotalSpent) + " " + report.Currency,
		"  Toplam Faturalanan: " + formatAmount(report.TotalInvoiced) + " " + report.Currency,
		"  Toplam Odenen: " + formatAmount(report.TotalPaid) + " " + report.Currency,
		"  Odenmemis Bakiye: " + formatAmount(report.TotalOutstanding) + " " + report.Currency,
	}
	if len(report.OrdersByState) > 0 {
		lines = append(lines, "  Siparis Durumlari:")
		for _, state := range []string{"draft", "sent", "sale", "done", "cancel"} {
			count, ok := report.OrdersByState[state]
			if !ok {
				continue
			}
			lines = append(lines, "  "+orderStateTR[state]+": "+strconv.Itoa(count))
		}
	}
	return wrapCustomerData(lines), nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
