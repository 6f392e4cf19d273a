package flow

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/idfine/chatbot-platform/internal/catalog"
	"github.com/idfine/chatbot-platform/internal/odoo"
	"github.com/idfine/chatbot-platform/pkg/logging"
)

// productLineRe recognizes one "code quantity" request line. The code is
// letters followed by digits (PRS-1042, ID.2210), the quantity is optional
// and may be separated by comma, colon, semicolon or whitespace.
var productLineRe = regexp.MustCompile(`(?i)^\s*([A-Z]{1,6}[-.]?\d{2,}[A-Z0-9.\-/]*)(?:[\s,;:]+(\d+(?:[.,]\d+)?))?\s*$`)

// quotationItem is a parsed and catalog-resolved request line.
type quotationItem struct {
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	Quantity  float64 `json:"quantity"`
	ProductID int     `json:"product_id"`
	UnitPrice float64 `json:"unit_price"`
}

// QuotationFlow collects a quotation request, resolves product codes against
// the local catalog and creates a draft sale order. Lines whose codes cannot
// be resolved are reported back but do not block the valid ones.
// Steps: await_details → await_confirm.
type QuotationFlow struct {
	quotations QuotationCreator
	sessions   SessionReader
	products   CodeResolver
	logger     *logging.Logger
}

// NewQuotationFlow creates the quotation request handler.
func NewQuotationFlow(quotations QuotationCreator, sessions SessionReader, products CodeResolver, logger *logging.Logger) *QuotationFlow {
	if logger == nil {
		logger = logging.Default()
	}
	return &QuotationFlow{
		quotations: quotations,
		sessions:   sessions,
		products:   products,
		logger:     logger.Named("quotation_flow"),
	}
}

func (h *QuotationFlow) Type() Type          { return TypeQuotationCreate }
func (h *QuotationFlow) InitialStep() string { return "await_details" }

func (h *QuotationFlow) ProcessStep(ctx context.Context, f *Flow, userMessage, visitorID string) (StepResult, error) {
	switch f.Step {
	case "await_details":
		return h.handleDetails(ctx, f, userMessage), nil
	case "await_confirm":
		return h.handleConfirm(ctx, f, userMessage, visitorID)
	default:
		return brokenStep(), nil
	}
}

func (h *QuotationFlow) handleDetails(ctx context.Context, f *Flow, userMessage string) StepResult {
	text := strings.TrimSpace(userMessage)
	if len(text) < 5 {
		return StepResult{
			Message: "Teklif almak icin ihtiyacinizi detayli olarak yazin.\n" +
				"Ornegin: urun adlari, miktarlar, teslimat kosullari, ozel istekler.\n" +
				"Urun kodu biliyorsaniz her satira bir kod ve adet yazabilirsiniz (ornek: PRS-1042, 12).",
		}
	}

	items, unresolved := h.parseItems(ctx, text)

	f.Step = "await_confirm"
	f.Data["details"] = text
	f.Data["items"] = items
	f.Data["unresolved"] = unresolved

	var b strings.Builder
	b.WriteString("Teklif talebi ozeti:\n")
	if len(items) > 0 {
		for _, it := range items {
			fmt.Fprintf(&b, "- **%s** (%s) x %s\n", it.Code, it.Name, formatQuantity(it.Quantity))
		}
	} else {
		fmt.Fprintf(&b, "**%s**\n", text)
	}
	if len(unresolved) > 0 {
		fmt.Fprintf(&b, "\nSu kodlar katalogda bulunamadi ve nota eklenecek: **%s**\n", strings.Join(unresolved, ", "))
	}
	b.WriteString("\nBu teklif talebini gondermek istiyor musunuz? (**evet** / **hayir**)")

	return StepResult{Message: b.String()}
}

// parseItems extracts product request lines from the free text and resolves
// them against the catalog. Lines that do not look like a code request are
// left for the order note; codes that miss the catalog come back in the
// second return value.
func (h *QuotationFlow) parseItems(ctx context.Context, text string) ([]quotationItem, []string) {
	var items []quotationItem
	var unresolved []string

	for _, line := range strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == ';' }) {
		m := productLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		code := strings.ToUpper(m[1])
		qty := 1.0
		if m[2] != "" {
			if v, err := strconv.ParseFloat(strings.ReplaceAll(m[2], ",", "."), 64); err == nil && v > 0 {
				qty = v
			}
		}

		product, err := h.products.ResolveCode(ctx, code)
		if err != nil {
			if !errors.Is(err, catalog.ErrNotFound) {
				h.logger.Warn("catalog lookup failed", "error", err, "code", code)
			}
			unresolved = append(unresolved, code)
			continue
		}

		items = append(items, quotationItem{
			Code:      product.Code,
			Name:      product.Name,
			Quantity:  qty,
			ProductID: product.OdooProductID,
			UnitPrice: product.ListPrice,
		})
	}

	return items, unresolved
}

func (h *QuotationFlow) handleConfirm(ctx context.Context, f *Flow, userMessage, visitorID string) (StepResult, error) {
	text := strings.ToLower(strings.TrimSpace(userMessage))
	if negative(text) {
		return StepResult{Message: "Teklif talebi iptal edildi.", Cancelled: true}, nil
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

	var items []quotationItem
	Decode(f.Data["items"], &items)
	var unresolved []string
	Decode(f.Data["unresolved"], &unresolved)

	lines := make([]odoo.QuotationLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, odoo.QuotationLine{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}

	note := "Musteri Teklif Talebi:\n" + f.String("details")
	if len(unresolved) > 0 {
		note += "\n\nKatalogda bulunamayan kodlar: " + strings.Join(unresolved, ", ")
	}

	created, err := h.quotations.CreateQuotation(ctx, sess.PartnerID, lines, note)
	if err != nil {
		h.logger.Error("quotation creation failed", "error", err, "partner_id", sess.PartnerID)
		return StepResult{
			Message:   "Teklif talebi olusturulurken bir hata olustu. Lutfen daha sonra tekrar deneyin.",
			Cancelled: true,
		}, nil
	}

	return StepResult{
		Message: fmt.Sprintf(
			"Teklif talebiniz basariyla olusturuldu!\n- **Teklif No:** %s\n\nSatis ekibimiz en kisa surede fiyat teklifinizi hazirlayacaktir.",
			created.OrderRef,
		),
		Completed: true,
		Data:      map[string]any{"order_id": created.OrderID, "order_ref": created.OrderRef},
	}, nil
}

func formatQuantity(q float64) string {
	if q == float64(int(q)) {
		return strconv.Itoa(int(q))
	}
	return strconv.FormatFloat(q, 'f', -1, 64)
}
