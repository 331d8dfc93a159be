package repositories

import (
	"context"
	"time"

	domain "github.com/velora-shop/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Products() ProductRepository
	Campaigns() CampaignRepository
	DiscountCodes() DiscountCodeRepository
	DeliveryMethods() DeliveryMethodRepository
	Orders() OrderRepository
	Invoices() InvoiceRepository
	Transactions() TransactionRepository
	CampaignSales() CampaignSaleRepository
	Gateways() GatewayRepository
	PendingOrders() PendingOrderStore
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork groups repository operations in a transactional boundary. RunInTx
// is reentrant: a call made inside an open transaction joins it instead of
// opening a nested one, so orchestrators compose without double-begin.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ProductRepository owns catalog products, their variants and stock rows.
type ProductRepository interface {
	FindByID(ctx context.Context, productID int64) (domain.Product, error)
	// ListActive returns up to limit active products with id greater than
	// afterID, ordered by id, for keyset pagination.
	ListActive(ctx context.Context, afterID int64, limit int) ([]domain.Product, error)
	FindVariant(ctx context.Context, productID int64, selector domain.VariantSelector) (domain.ProductVariant, error)
	// DecrementProductStock conditionally subtracts quantity from the product
	// row. The row must still hold at least quantity units or the call fails
	// with a conflict error; the caller reads back availability for reporting.
	DecrementProductStock(ctx context.Context, productID int64, quantity int) error
	DecrementVariantStock(ctx context.Context, variantID int64, quantity int) error
	IncrementProductStock(ctx context.Context, productID int64, quantity int) error
	IncrementVariantStock(ctx context.Context, variantID int64, quantity int) error
	ProductStock(ctx context.Context, productID int64) (int, error)
	VariantStock(ctx context.Context, variantID int64) (int, error)
}

// CampaignRepository resolves campaign coverage for pricing.
type CampaignRepository interface {
	// BestActiveForProduct returns the winning campaign for the product at the
	// given instant: highest priority first, lowest id on ties. A not-found
	// error means no campaign covers the product.
	BestActiveForProduct(ctx context.Context, productID int64, now time.Time) (domain.Campaign, error)
}

// DiscountCodeRepository persists order-level discount codes and their usage trail.
type DiscountCodeRepository interface {
	FindByCode(ctx context.Context, code string) (domain.DiscountCode, error)
	CountUsages(ctx context.Context, discountCodeID int64) (int, error)
	HasUserUsage(ctx context.Context, discountCodeID int64, userID int64) (bool, error)
	RecordUsage(ctx context.Context, usage domain.DiscountCodeUsage) error
}

// DeliveryMethodRepository resolves shipping options and fees.
type DeliveryMethodRepository interface {
	FindByID(ctx context.Context, deliveryMethodID int64) (domain.DeliveryMethod, error)
	// FirstActive returns the active method with the lowest sort order, used
	// as the verification-time fallback when a cached delivery choice has
	// gone stale.
	FirstActive(ctx context.Context) (domain.DeliveryMethod, error)
}

// OrderRepository persists orders with their item snapshots.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) (domain.Order, error)
	FindByID(ctx context.Context, orderID int64) (domain.Order, error)
	// MarkCancelled transitions the order to cancelled only while its status
	// still allows cancellation. It reports false when the order exists but
	// a concurrent transition already moved it to a final status.
	MarkCancelled(ctx context.Context, orderID int64) (bool, error)
}

// InvoiceRepository persists payable invoices. The ForUpdate variant takes a
// row lock held until the ambient transaction ends.
type InvoiceRepository interface {
	Insert(ctx context.Context, invoice domain.Invoice) (domain.Invoice, error)
	FindByID(ctx context.Context, invoiceID int64) (domain.Invoice, error)
	FindByIDForUpdate(ctx context.Context, invoiceID int64) (domain.Invoice, error)
	MarkPaid(ctx context.Context, invoiceID int64, orderID int64, paidAt time.Time) error
	MarkCancelled(ctx context.Context, invoiceID int64) error
}

// TransactionRepository persists payment attempts.
type TransactionRepository interface {
	Insert(ctx context.Context, txn domain.Transaction) (domain.Transaction, error)
	FindByID(ctx context.Context, transactionID int64) (domain.Transaction, error)
	FindByGatewayTransactionID(ctx context.Context, gatewayTransactionID string) (domain.Transaction, error)
	SetGatewayTransactionID(ctx context.Context, transactionID int64, gatewayTransactionID string) error
	MarkVerified(ctx context.Context, transactionID int64, reference string, verifiedAt time.Time) error
	MarkRejected(ctx context.Context, transactionID int64, callbackData map[string]any) error
	MarkFailed(ctx context.Context, transactionID int64) error
}

// CampaignSaleRepository appends campaign sale analytics rows.
type CampaignSaleRepository interface {
	Insert(ctx context.Context, sale domain.CampaignSale) error
}

// GatewayRepository resolves configured payment gateways.
type GatewayRepository interface {
	FindByID(ctx context.Context, gatewayID int64) (domain.PaymentGateway, error)
	FindByType(ctx context.Context, gatewayType string) (domain.PaymentGateway, error)
}

// PendingOrderStore holds checkout snapshots keyed by invoice id until payment
// verification consumes them. Entries expire after the configured TTL.
type PendingOrderStore interface {
	Put(ctx context.Context, invoiceID int64, pending domain.PendingOrder, ttl time.Duration) error
	Get(ctx context.Context, invoiceID int64) (domain.PendingOrder, error)
	Forget(ctx context.Context, invoiceID int64) error
}

// SessionCartStore persists session carts for the web layer with the same
// keyed-blob idiom as the pending order store.
type SessionCartStore interface {
	Get(ctx context.Context, sessionID string) (domain.Cart, error)
	Save(ctx context.Context, sessionID string, cart domain.Cart) error
	Clear(ctx context.Context, sessionID string) error
}
