package domain

import "time"

// OrderStatus enumerates the order lifecycle.
type OrderStatus string

const (
	// OrderStatusPending marks a freshly created, unconfirmed order.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed marks an order accepted for preparation.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusShipped marks an order handed to the carrier.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusCancelled marks a cancelled order whose stock was restored.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// IsCancellable reports whether a cancel request is valid from this status.
func (s OrderStatus) IsCancellable() bool {
	return s == OrderStatusPending || s == OrderStatusConfirmed
}

// IsFinal reports whether the status is terminal.
func (s OrderStatus) IsFinal() bool {
	return s == OrderStatusShipped || s == OrderStatusCancelled
}

// Order is the persisted outcome of a successful checkout. Amounts follow
// final = total + delivery fee - discount code amount, where total is already
// net of campaign discounts.
type Order struct {
	ID                     int64
	UserID                 *int64
	CustomerName           string
	CustomerPhone          string
	CustomerAddress        string
	DeliveryMethodID       int64
	DeliveryFee            int64
	TotalAmount            int64
	OriginalAmount         int64
	CampaignDiscountAmount int64
	DiscountCode           string
	DiscountAmount         int64
	FinalAmount            int64
	Status                 OrderStatus
	ReceiptPath            string
	Items                  []OrderItem
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// OrderItem is an immutable line snapshot. Product and campaign references
// are captured at creation time and never re-resolved.
type OrderItem struct {
	ID                     int64
	OrderID                int64
	ProductID              int64
	ProductVariantID       *int64
	ColorID                *int64
	SizeID                 *int64
	VariantDisplayName     string
	CampaignID             *int64
	OriginalPrice          int64
	CampaignDiscountAmount int64
	UnitPrice              int64
	Quantity               int
	LineTotal              int64
}

// InvoiceStatus enumerates the invoice payment lifecycle.
type InvoiceStatus string

const (
	// InvoiceStatusUnpaid marks an invoice awaiting payment.
	InvoiceStatusUnpaid InvoiceStatus = "unpaid"
	// InvoiceStatusPaid marks an invoice settled by a verified transaction.
	InvoiceStatusPaid InvoiceStatus = "paid"
	// InvoiceStatusCancelled marks an invoice abandoned after a rejected payment.
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// Invoice is the payable record created at checkout. OrderID stays nil until
// payment verification succeeds; invoice existence never depends on stock.
type Invoice struct {
	ID                     int64
	OrderID                *int64
	PaymentGatewayID       *int64
	InvoiceNumber          string
	Amount                 int64
	OriginalAmount         int64
	CampaignDiscountAmount int64
	DiscountCodeAmount     int64
	Currency               string
	Status                 InvoiceStatus
	PaidAt                 *time.Time
	CreatedAt              time.Time
}

// TransactionStatus enumerates one payment attempt's lifecycle.
type TransactionStatus string

const (
	// TransactionStatusPending marks an attempt awaiting gateway confirmation.
	TransactionStatusPending TransactionStatus = "pending"
	// TransactionStatusVerified marks a gateway-confirmed attempt.
	TransactionStatusVerified TransactionStatus = "verified"
	// TransactionStatusRejected marks an attempt the gateway declined.
	TransactionStatusRejected TransactionStatus = "rejected"
	// TransactionStatusFailed marks an attempt that never reached the gateway.
	TransactionStatusFailed TransactionStatus = "failed"
)

// Transaction is one attempt to pay an invoice through a gateway. An invoice
// may accumulate several attempts; at most one ends up verified.
type Transaction struct {
	ID                   int64
	InvoiceID            int64
	GatewayID            *int64
	Method               string
	Amount               int64
	Status               TransactionStatus
	GatewayTransactionID string
	Reference            string
	CallbackData         map[string]any
	VerifiedAt           *time.Time
	CreatedAt            time.Time
}

// CampaignSale is an append-only analytics row recorded per order item that
// benefited from a campaign. Never mutated after creation.
type CampaignSale struct {
	ID               int64
	CampaignID       int64
	OrderItemID      int64
	ProductID        int64
	ProductVariantID *int64
	Quantity         int
	DiscountAmount   int64
	SaleAmount       int64
	CreatedAt        time.Time
}

// OrderTotalsItem is the hand-off snapshot produced by totals calculation and
// persisted verbatim as an OrderItem during order creation. CartKey links the
// snapshot back to its originating cart line for stock adjustment.
type OrderTotalsItem struct {
	CartKey                string `json:"cart_key"`
	ProductID              int64  `json:"product_id"`
	ProductVariantID       *int64 `json:"product_variant_id,omitempty"`
	ColorID                *int64 `json:"color_id,omitempty"`
	SizeID                 *int64 `json:"size_id,omitempty"`
	VariantDisplayName     string `json:"variant_display_name,omitempty"`
	CampaignID             *int64 `json:"campaign_id,omitempty"`
	OriginalPrice          int64  `json:"original_price"`
	CampaignDiscountAmount int64  `json:"campaign_discount_amount"`
	UnitPrice              int64  `json:"unit_price"`
	Quantity               int    `json:"quantity"`
	LineTotal              int64  `json:"line_total"`
}

// PendingOrder is the checkout-time snapshot cached under the invoice id and
// consumed exactly once after payment verification to materialise the order.
type PendingOrder struct {
	SessionID              string            `json:"session_id,omitempty"`
	UserID                 *int64            `json:"user_id,omitempty"`
	CustomerName           string            `json:"customer_name"`
	CustomerPhone          string            `json:"customer_phone"`
	CustomerAddress        string            `json:"customer_address"`
	DeliveryMethodID       int64             `json:"delivery_method_id"`
	DeliveryFee            int64             `json:"delivery_fee"`
	TotalAmount            int64             `json:"total_amount"`
	OriginalAmount         int64             `json:"original_amount"`
	CampaignDiscountAmount int64             `json:"campaign_discount_amount"`
	DiscountCode           string            `json:"discount_code,omitempty"`
	DiscountAmount         int64             `json:"discount_amount"`
	FinalAmount            int64             `json:"final_amount"`
	ReceiptPath            string            `json:"receipt_path,omitempty"`
	Items                  []OrderTotalsItem `json:"items"`
	Cart                   Cart              `json:"cart"`
}
