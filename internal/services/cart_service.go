package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	domain "github.com/velora-shop/api/internal/domain"
	"github.com/velora-shop/api/internal/repositories"
)

var (
	// ErrCartInvalidQuantity signals a non-positive quantity on add or a negative one on update.
	ErrCartInvalidQuantity = errors.New("cart: invalid quantity")
	// ErrCartProductNotFound is returned when the referenced product does not exist.
	ErrCartProductNotFound = errors.New("cart: product not found")
	// ErrCartProductInactive is returned when the referenced product is disabled.
	ErrCartProductInactive = errors.New("cart: product is not active")
	// ErrCartVariantNotFound is returned when the selector matches no variant.
	ErrCartVariantNotFound = errors.New("cart: variant not found")
	// ErrCartLineNotFound is returned when the addressed cart line does not exist.
	ErrCartLineNotFound = errors.New("cart: line not found")
)

// CartService owns session cart mutation and aggregation. The cart itself is
// a value passed in and returned; persistence stays with the caller.
type CartService struct {
	products repositories.ProductRepository
	pricing  *PricingEngine
	logger   func(context.Context, string, map[string]any)
}

// CartServiceDeps carries the collaborators for NewCartService.
type CartServiceDeps struct {
	Products repositories.ProductRepository
	Pricing  *PricingEngine
	Logger   func(context.Context, string, map[string]any)
}

// NewCartService validates dependencies and constructs the service.
func NewCartService(deps CartServiceDeps) (*CartService, error) {
	if deps.Products == nil {
		return nil, errors.New("cart service: product repository is required")
	}
	if deps.Pricing == nil {
		return nil, errors.New("cart service: pricing engine is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &CartService{products: deps.Products, pricing: deps.Pricing, logger: logger}, nil
}

// AddToCartCommand describes one add-to-cart request.
type AddToCartCommand struct {
	ProductID int64
	Selector  VariantSelector
	Quantity  int
}

// Add puts quantity units of the selected product into the cart. The stock
// check is cumulative: quantity already in the cart counts against
// availability. The stored price is a display snapshot of the current
// campaign price.
func (s *CartService) Add(ctx context.Context, cart Cart, cmd AddToCartCommand) (Cart, error) {
	if cmd.Quantity <= 0 {
		return cart, ErrCartInvalidQuantity
	}

	product, err := s.products.FindByID(ctx, cmd.ProductID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return cart, ErrCartProductNotFound
		}
		return cart, fmt.Errorf("cart: load product %d: %w", cmd.ProductID, err)
	}
	if !product.IsActive {
		return cart, ErrCartProductInactive
	}

	var (
		available   int
		price       int64
		displayName string
	)
	if cmd.Selector.IsZero() {
		available = product.Stock
		quote, err := s.pricing.PriceProduct(ctx, product)
		if err != nil {
			return cart, fmt.Errorf("cart: price product %d: %w", product.ID, err)
		}
		price = quote.CampaignPrice
	} else {
		variant, err := s.products.FindVariant(ctx, cmd.ProductID, cmd.Selector)
		if err != nil {
			if repositories.IsNotFound(err) {
				return cart, ErrCartVariantNotFound
			}
			return cart, fmt.Errorf("cart: load variant of product %d: %w", cmd.ProductID, err)
		}
		if !variant.IsActive {
			return cart, ErrCartVariantNotFound
		}
		available = variant.Stock
		quote, err := s.pricing.PriceVariant(ctx, variant, product)
		if err != nil {
			return cart, fmt.Errorf("cart: price variant %d: %w", variant.ID, err)
		}
		price = quote.CampaignPrice
		displayName = variant.DisplayName
	}

	key := domain.CartKey(cmd.ProductID, cmd.Selector)
	if cart == nil {
		cart = Cart{}
	}

	requested := cmd.Quantity
	if existing, ok := cart[key]; ok {
		requested += existing.Quantity
	}
	if requested > available {
		return cart, &domain.InsufficientStockError{
			ProductTitle: product.Title,
			Requested:    requested,
			Available:    available,
		}
	}

	colorID, sizeID := selectorIDs(cmd.Selector)
	cart[key] = CartLine{
		ProductID:          cmd.ProductID,
		Quantity:           requested,
		Selector:           cmd.Selector,
		ColorID:            colorID,
		SizeID:             sizeID,
		Price:              price,
		Title:              product.Title,
		Image:              product.ImagePath,
		VariantDisplayName: displayName,
	}
	return cart, nil
}

// UpdateQuantity sets the absolute quantity of a cart line. Zero removes the
// line; the stock check applies to the new absolute quantity.
func (s *CartService) UpdateQuantity(ctx context.Context, cart Cart, key string, quantity int) (Cart, error) {
	if quantity < 0 {
		return cart, ErrCartInvalidQuantity
	}
	line, ok := cart[key]
	if !ok {
		return cart, ErrCartLineNotFound
	}
	if quantity == 0 {
		delete(cart, key)
		return cart, nil
	}

	product, err := s.products.FindByID(ctx, line.ProductID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return cart, ErrCartProductNotFound
		}
		return cart, fmt.Errorf("cart: load product %d: %w", line.ProductID, err)
	}

	available := product.Stock
	if !line.Selector.IsZero() {
		variant, err := s.products.FindVariant(ctx, line.ProductID, line.Selector)
		if err != nil {
			if repositories.IsNotFound(err) {
				return cart, ErrCartVariantNotFound
			}
			return cart, fmt.Errorf("cart: load variant of product %d: %w", line.ProductID, err)
		}
		available = variant.Stock
	}
	if quantity > available {
		return cart, &domain.InsufficientStockError{
			ProductTitle: product.Title,
			Requested:    quantity,
			Available:    available,
		}
	}

	line.Quantity = quantity
	cart[key] = line
	return cart, nil
}

// Remove deletes a cart line. Removing an absent key is a no-op.
func (s *CartService) Remove(_ context.Context, cart Cart, key string) Cart {
	delete(cart, key)
	return cart
}

// CartTotalsLine is one aggregated line of a cart totals run.
type CartTotalsLine struct {
	Key            string
	ProductID      int64
	Title          string
	Image          string
	DisplayName    string
	Quantity       int
	UnitPrice      int64
	OriginalPrice  int64
	DiscountAmount int64
	LineTotal      int64
	HasDiscount    bool
	Campaign       *Campaign
}

// CartTotals is the aggregate view of a session cart priced against live
// catalog and campaign state.
type CartTotals struct {
	Items            []CartTotalsLine
	Subtotal         int64
	TotalItems       int
	OriginalTotal    int64
	CampaignDiscount int64
}

// Totals reprices every cart line fresh. Lines whose product has vanished or
// gone inactive are silently dropped rather than failing the whole cart; the
// final unit price is the live campaign price when a discount applies and the
// stored cart snapshot otherwise.
func (s *CartService) Totals(ctx context.Context, cart Cart) (CartTotals, error) {
	totals := CartTotals{}
	for _, key := range sortedCartKeys(cart) {
		line := cart[key]
		if line.Quantity <= 0 {
			continue
		}

		product, err := s.products.FindByID(ctx, line.ProductID)
		if err != nil {
			if repositories.IsNotFound(err) {
				s.logger(ctx, "cart.totals.line_dropped", map[string]any{"key": key, "product_id": line.ProductID})
				continue
			}
			return CartTotals{}, fmt.Errorf("cart: load product %d: %w", line.ProductID, err)
		}
		if !product.IsActive {
			s.logger(ctx, "cart.totals.line_dropped", map[string]any{"key": key, "product_id": line.ProductID})
			continue
		}

		var quote PriceQuote
		if line.Selector.IsZero() {
			quote, err = s.pricing.PriceProduct(ctx, product)
		} else {
			var variant ProductVariant
			variant, err = s.products.FindVariant(ctx, line.ProductID, line.Selector)
			if err != nil {
				if repositories.IsNotFound(err) {
					s.logger(ctx, "cart.totals.line_dropped", map[string]any{"key": key, "product_id": line.ProductID})
					continue
				}
				return CartTotals{}, fmt.Errorf("cart: load variant of product %d: %w", line.ProductID, err)
			}
			quote, err = s.pricing.PriceVariant(ctx, variant, product)
		}
		if err != nil {
			return CartTotals{}, fmt.Errorf("cart: price line %s: %w", key, err)
		}

		unitPrice := line.Price
		if quote.HasDiscount {
			unitPrice = quote.CampaignPrice
		}
		lineTotal := unitPrice * int64(line.Quantity)

		totals.Items = append(totals.Items, CartTotalsLine{
			Key:            key,
			ProductID:      line.ProductID,
			Title:          product.Title,
			Image:          line.Image,
			DisplayName:    line.VariantDisplayName,
			Quantity:       line.Quantity,
			UnitPrice:      unitPrice,
			OriginalPrice:  quote.OriginalPrice,
			DiscountAmount: quote.DiscountAmount,
			LineTotal:      lineTotal,
			HasDiscount:    quote.HasDiscount,
			Campaign:       quote.Campaign,
		})
		totals.Subtotal += lineTotal
		totals.TotalItems += line.Quantity
		totals.OriginalTotal += quote.OriginalPrice * int64(line.Quantity)
		totals.CampaignDiscount += quote.DiscountAmount * int64(line.Quantity)
	}
	return totals, nil
}

// sortedCartKeys fixes the iteration order so totals and downstream order
// items come out deterministic.
func sortedCartKeys(cart Cart) []string {
	keys := make([]string, 0, len(cart))
	for key := range cart {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func selectorIDs(selector VariantSelector) (colorID, sizeID *int64) {
	if id, ok := selector.ColorID(); ok {
		colorID = &id
	}
	if id, ok := selector.SizeID(); ok {
		sizeID = &id
	}
	return colorID, sizeID
}
