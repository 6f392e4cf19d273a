package odoo

// Partner is an ERP customer record.
type Partner struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	Email        string  `json:"email,omitempty"`
	Phone        string  `json:"phone,omitempty"`
	Mobile       string  `json:"mobile,omitempty"`
	Street       string  `json:"street,omitempty"`
	Street2      string  `json:"street2,omitempty"`
	City         string  `json:"city,omitempty"`
	State        string  `json:"state,omitempty"`
	Zip          string  `json:"zip,omitempty"`
	Country      string  `json:"country,omitempty"`
	VAT          string  `json:"vat,omitempty"`
	CompanyName  string  `json:"company_name,omitempty"`
	CustomerRank int     `json:"customer_rank"`
	Credit       float64 `json:"credit,omitempty"`
}

// OrderSummary is one row of a customer's sale order history.
type OrderSummary struct {
	ID            int     `json:"id"`
	Name          string  `json:"name"`
	State         string  `json:"state"`
	DateOrder     string  `json:"date_order,omitempty"`
	AmountTotal   float64 `json:"amount_total"`
	Currency      string  `json:"currency"`
	InvoiceStatus string  `json:"invoice_status,omitempty"`
}

// OrderLine is one line of a sale order detail.
type OrderLine struct {
	ID            int     `json:"id"`
	ProductName   string  `json:"product_name"`
	Quantity      float64 `json:"quantity"`
	PriceUnit     float64 `json:"price_unit"`
	PriceSubtotal float64 `json:"price_subtotal"`
	UOM           string  `json:"uom,omitempty"`
}

// OrderDetail is one sale order with its lines and tax breakdown.
type OrderDetail struct {
	ID            int         `json:"id"`
	Name          string      `json:"name"`
	State         string      `json:"state"`
	DateOrder     string      `json:"date_order,omitempty"`
	AmountUntaxed float64     `json:"amount_untaxed"`
	AmountTax     float64     `json:"amount_tax"`
	AmountTotal   float64     `json:"amount_total"`
	Currency      string      `json:"currency"`
	InvoiceStatus string      `json:"invoice_status,omitempty"`
	Note          string      `json:"note,omitempty"`
	Lines         []OrderLine `json:"lines"`
}

// InvoiceSummary is one row of a customer's posted invoice listing.
type InvoiceSummary struct {
	ID             int     `json:"id"`
	Name           string  `json:"name"`
	State          string  `json:"state"`
	MoveType       string  `json:"move_type"`
	Date           string  `json:"date,omitempty"`
	DateDue        string  `json:"invoice_date_due,omitempty"`
	AmountTotal    float64 `json:"amount_total"`
	AmountResidual float64 `json:"amount_residual"`
	Currency       string  `json:"currency"`
	PaymentState   string  `json:"payment_state,omitempty"`
}

// PaymentInfo is one customer payment record.
type PaymentInfo struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Date        string  `json:"date,omitempty"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	State       string  `json:"state"`
	PaymentType string  `json:"payment_type"`
}

// DeliverySummary is one outgoing shipment of a customer.
type DeliverySummary struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	State         string `json:"state"`
	Origin        string `json:"origin,omitempty"`
	ScheduledDate string `json:"scheduled_date,omitempty"`
	DateDone      string `json:"date_done,omitempty"`
	Carrier       string `json:"carrier,omitempty"`
	TrackingRef   string `json:"tracking_ref,omitempty"`
}

// TicketSummary is one helpdesk ticket of a customer.
type TicketSummary struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Stage      string `json:"stage,omitempty"`
	Priority   string `json:"priority,omitempty"`
	CreateDate string `json:"create_date,omitempty"`
}

// SpendingReport aggregates a customer's order and invoice totals.
type SpendingReport struct {
	TotalOrders      int            `json:"total_orders"`
	TotalSpent       float64        `json:"total_spent"`
	Currency         string         `json:"currency"`
	TotalInvoiced    float64        `json:"total_invoiced"`
	TotalPaid        float64        `json:"total_paid"`
	TotalOutstanding float64        `json:"total_outstanding"`
	OrdersByState    map[string]int `json:"orders_by_state"`
}

// QuotationLine is one order line of a draft quotation.
type QuotationLine struct {
	ProductID int     `json:"product_id"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unit_price,omitempty"`
}

// Quotation is the created draft sale order.
type Quotation struct {
	OrderID     int     `json:"order_id"`
	OrderRef    string  `json:"order_ref"`
	AmountTotal float64 `json:"amount_total"`
	Status      string  `json:"status"`
}

// Dealer is a reseller partner record shown by the dealer finder.
type Dealer struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	City    string `json:"city,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Mobile  string `json:"mobile,omitempty"`
	Email   string `json:"email,omitempty"`
	Street  string `json:"street,omitempty"`
	Website string `json:"website,omitempty"`
}

// Lead is a CRM lead created when a customer asks to be contacted by a
// dealer.
type Lead struct {
	DealerID     int
	DealerName   string
	CustomerName string
	Phone        string
	Email        string
	City         string
}
