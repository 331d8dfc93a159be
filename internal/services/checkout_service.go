package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/velora-shop/api/internal/domain"
	"github.com/velora-shop/api/internal/repositories"
)

var (
	// ErrCheckoutEmptyCart is returned when no cart line survives validation.
	ErrCheckoutEmptyCart = errors.New("checkout: cart is empty")
	// ErrCheckoutDeliveryMethodNotFound is returned for a missing or inactive delivery method.
	ErrCheckoutDeliveryMethodNotFound = errors.New("checkout: delivery method not found")
)

const defaultPendingOrderTTL = 24 * time.Hour

// OrderTotals is the complete calculation for one checkout: line snapshots
// plus the aggregate amounts the order and invoice are built from.
type OrderTotals struct {
	Items            []OrderTotalsItem
	TotalAmount      int64
	OriginalAmount   int64
	CampaignDiscount int64
	DeliveryFee      int64
}

// CheckoutService turns a session cart into an unpaid invoice plus a cached
// pending-order snapshot. No stock is touched here; inventory settles at
// payment verification.
type CheckoutService struct {
	products      repositories.ProductRepository
	delivery      repositories.DeliveryMethodRepository
	invoices      repositories.InvoiceRepository
	pendingOrders repositories.PendingOrderStore
	pricing       *PricingEngine
	discounts     *DiscountService
	ids           IDGenerator
	pendingTTL    time.Duration
	logger        func(context.Context, string, map[string]any)
}

// CheckoutServiceDeps carries the collaborators for NewCheckoutService.
type CheckoutServiceDeps struct {
	Products      repositories.ProductRepository
	Delivery      repositories.DeliveryMethodRepository
	Invoices      repositories.InvoiceRepository
	PendingOrders repositories.PendingOrderStore
	Pricing       *PricingEngine
	Discounts     *DiscountService
	IDs           IDGenerator
	PendingTTL    time.Duration
	Logger        func(context.Context, string, map[string]any)
}

// NewCheckoutService validates dependencies and constructs the service.
func NewCheckoutService(deps CheckoutServiceDeps) (*CheckoutService, error) {
	if deps.Products == nil {
		return nil, errors.New("checkout service: product repository is required")
	}
	if deps.Delivery == nil {
		return nil, errors.New("checkout service: delivery method repository is required")
	}
	if deps.Invoices == nil {
		return nil, errors.New("checkout service: invoice repository is required")
	}
	if deps.PendingOrders == nil {
		return nil, errors.New("checkout service: pending order store is required")
	}
	if deps.Pricing == nil {
		return nil, errors.New("checkout service: pricing engine is required")
	}
	if deps.Discounts == nil {
		return nil, errors.New("checkout service: discount service is required")
	}
	if deps.IDs == nil {
		return nil, errors.New("checkout service: id generator is required")
	}
	ttl := deps.PendingTTL
	if ttl <= 0 {
		ttl = defaultPendingOrderTTL
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &CheckoutService{
		products:      deps.Products,
		delivery:      deps.Delivery,
		invoices:      deps.Invoices,
		pendingOrders: deps.PendingOrders,
		pricing:       deps.Pricing,
		discounts:     deps.Discounts,
		ids:           deps.IDs,
		pendingTTL:    ttl,
		logger:        logger,
	}, nil
}

// CalculateOrderTotals prices every valid cart line fresh and resolves the
// delivery fee. A missing delivery method fails the whole calculation; bad
// cart lines are skipped. The calculation is pure with respect to inputs:
// the same cart and catalog state always produce identical totals.
func (s *CheckoutService) CalculateOrderTotals(ctx context.Context, cart Cart, deliveryMethodID int64) (OrderTotals, error) {
	method, err := s.delivery.FindByID(ctx, deliveryMethodID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return OrderTotals{}, ErrCheckoutDeliveryMethodNotFound
		}
		return OrderTotals{}, fmt.Errorf("checkout: load delivery method %d: %w", deliveryMethodID, err)
	}
	if !method.IsActive {
		return OrderTotals{}, ErrCheckoutDeliveryMethodNotFound
	}

	totals := OrderTotals{DeliveryFee: method.Fee}
	for _, key := range sortedCartKeys(cart) {
		line := cart[key]
		if line.Quantity <= 0 {
			continue
		}

		product, err := s.products.FindByID(ctx, line.ProductID)
		if err != nil {
			if repositories.IsNotFound(err) {
				s.logger(ctx, "checkout.totals.line_skipped", map[string]any{"key": key, "product_id": line.ProductID})
				continue
			}
			return OrderTotals{}, fmt.Errorf("checkout: load product %d: %w", line.ProductID, err)
		}
		if !product.IsActive {
			s.logger(ctx, "checkout.totals.line_skipped", map[string]any{"key": key, "product_id": line.ProductID})
			continue
		}

		item := OrderTotalsItem{
			CartKey:   key,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
		}
		item.ColorID, item.SizeID = selectorIDs(line.Selector)

		var quote PriceQuote
		if line.Selector.IsZero() {
			quote, err = s.pricing.PriceProduct(ctx, product)
			if err != nil {
				return OrderTotals{}, fmt.Errorf("checkout: price product %d: %w", product.ID, err)
			}
		} else {
			variant, err := s.products.FindVariant(ctx, line.ProductID, line.Selector)
			if err != nil {
				if repositories.IsNotFound(err) {
					s.logger(ctx, "checkout.totals.line_skipped", map[string]any{"key": key, "product_id": line.ProductID})
					continue
				}
				return OrderTotals{}, fmt.Errorf("checkout: load variant of product %d: %w", line.ProductID, err)
			}
			item.ProductVariantID = &variant.ID
			item.VariantDisplayName = variant.DisplayName
			quote, err = s.pricing.PriceVariant(ctx, variant, product)
			if err != nil {
				return OrderTotals{}, fmt.Errorf("checkout: price variant %d: %w", variant.ID, err)
			}
		}

		item.OriginalPrice = quote.OriginalPrice
		item.UnitPrice = quote.CampaignPrice
		item.CampaignDiscountAmount = quote.DiscountAmount
		if quote.Campaign != nil {
			item.CampaignID = &quote.Campaign.ID
		}
		item.LineTotal = item.UnitPrice * int64(item.Quantity)

		totals.Items = append(totals.Items, item)
		totals.TotalAmount += item.LineTotal
		totals.OriginalAmount += item.OriginalPrice * int64(item.Quantity)
		totals.CampaignDiscount += item.CampaignDiscountAmount * int64(item.Quantity)
	}

	if len(totals.Items) == 0 {
		return OrderTotals{}, ErrCheckoutEmptyCart
	}
	return totals, nil
}

// CheckoutCommand carries everything a checkout submission provides.
type CheckoutCommand struct {
	SessionID        string
	UserID           *int64
	CustomerName     string
	CustomerPhone    string
	CustomerAddress  string
	DeliveryMethodID int64
	DiscountCode     string
	ReceiptPath      string
}

// CheckoutResult summarises the created invoice for the payment step.
type CheckoutResult struct {
	Invoice     Invoice
	Totals      OrderTotals
	FinalAmount int64
}

// Checkout validates the cart, calculates totals, creates the unpaid invoice
// and stashes the pending-order snapshot under the invoice id. The invoice
// exists regardless of later stock outcomes; stock settles at verification.
func (s *CheckoutService) Checkout(ctx context.Context, cart Cart, cmd CheckoutCommand) (CheckoutResult, error) {
	if len(cart) == 0 {
		return CheckoutResult{}, ErrCheckoutEmptyCart
	}

	totals, err := s.CalculateOrderTotals(ctx, cart, cmd.DeliveryMethodID)
	if err != nil {
		return CheckoutResult{}, err
	}

	// Discount codes apply to the order amount including the delivery fee,
	// and only for known users: per-user reuse cannot be enforced for guests.
	var discountAmount int64
	discountCode := ""
	if cmd.DiscountCode != "" && cmd.UserID != nil {
		orderAmount := totals.TotalAmount + totals.DeliveryFee
		dc, err := s.discounts.Validate(ctx, cmd.DiscountCode, cmd.UserID, orderAmount)
		if err != nil {
			return CheckoutResult{}, err
		}
		discountAmount = s.discounts.Amount(dc, orderAmount)
		discountCode = dc.Code
	}

	finalAmount := totals.TotalAmount + totals.DeliveryFee - discountAmount
	if finalAmount < 0 {
		finalAmount = 0
	}

	invoice, err := s.invoices.Insert(ctx, Invoice{
		InvoiceNumber:          "INV-" + s.ids.NewID(),
		Amount:                 finalAmount,
		OriginalAmount:         totals.OriginalAmount,
		CampaignDiscountAmount: totals.CampaignDiscount,
		DiscountCodeAmount:     discountAmount,
		Currency:               "IRR",
		Status:                 domain.InvoiceStatusUnpaid,
	})
	if err != nil {
		return CheckoutResult{}, fmt.Errorf("checkout: create invoice: %w", err)
	}

	pending := PendingOrder{
		SessionID:              cmd.SessionID,
		UserID:                 cmd.UserID,
		CustomerName:           cmd.CustomerName,
		CustomerPhone:          cmd.CustomerPhone,
		CustomerAddress:        cmd.CustomerAddress,
		DeliveryMethodID:       cmd.DeliveryMethodID,
		DeliveryFee:            totals.DeliveryFee,
		TotalAmount:            totals.TotalAmount,
		OriginalAmount:         totals.OriginalAmount,
		CampaignDiscountAmount: totals.CampaignDiscount,
		DiscountCode:           discountCode,
		DiscountAmount:         discountAmount,
		FinalAmount:            finalAmount,
		ReceiptPath:            cmd.ReceiptPath,
		Items:                  totals.Items,
		Cart:                   cart,
	}
	if err := s.pendingOrders.Put(ctx, invoice.ID, pending, s.pendingTTL); err != nil {
		return CheckoutResult{}, fmt.Errorf("checkout: store pending order for invoice %d: %w", invoice.ID, err)
	}

	s.logger(ctx, "checkout.invoice_created", map[string]any{
		"invoice_id":     invoice.ID,
		"invoice_number": invoice.InvoiceNumber,
		"final_amount":   finalAmount,
	})
	return CheckoutResult{Invoice: invoice, Totals: totals, FinalAmount: finalAmount}, nil
}
