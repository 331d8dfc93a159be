package services

import (
	"context"

	domain "github.com/velora-shop/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Product         = domain.Product
	ProductVariant  = domain.ProductVariant
	Campaign        = domain.Campaign
	PriceQuote      = domain.PriceQuote
	Cart            = domain.Cart
	CartLine        = domain.CartLine
	VariantSelector = domain.VariantSelector
	DiscountCode    = domain.DiscountCode
	DeliveryMethod  = domain.DeliveryMethod
	Order           = domain.Order
	OrderItem       = domain.OrderItem
	OrderTotalsItem = domain.OrderTotalsItem
	Invoice         = domain.Invoice
	Transaction     = domain.Transaction
	PendingOrder    = domain.PendingOrder
)

// EventPublisher delivers domain events to the notification sink. Publishing
// is best-effort: implementations log failures and never block core flows.
type EventPublisher interface {
	Publish(ctx context.Context, event string, payload map[string]any)
}

// IDGenerator mints opaque identifiers for invoice numbers and references.
type IDGenerator interface {
	NewID() string
}
