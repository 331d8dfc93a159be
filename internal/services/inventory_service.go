package services

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/velora-shop/api/internal/domain"
	"github.com/velora-shop/api/internal/repositories"
)

// ErrInventoryCartLineMissing is returned when an order item references a
// cart key the cart no longer holds.
var ErrInventoryCartLineMissing = errors.New("inventory: cart line missing for order item")

// InventoryService adjusts stock levels for order creation and cancellation.
// Reduce must run inside the caller's transaction so a shortfall on any line
// rolls back the decrements already applied.
type InventoryService struct {
	products repositories.ProductRepository
	logger   func(context.Context, string, map[string]any)
}

// InventoryServiceDeps carries the collaborators for NewInventoryService.
type InventoryServiceDeps struct {
	Products repositories.ProductRepository
	Logger   func(context.Context, string, map[string]any)
}

// NewInventoryService validates dependencies and constructs the service.
func NewInventoryService(deps InventoryServiceDeps) (*InventoryService, error) {
	if deps.Products == nil {
		return nil, errors.New("inventory service: product repository is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &InventoryService{products: deps.Products, logger: logger}, nil
}

// Reduce decrements stock for every order item. Each decrement is conditional
// at the storage layer, so two orders racing over the last units cannot both
// win; the loser surfaces an InsufficientStockError with the live
// availability.
func (s *InventoryService) Reduce(ctx context.Context, items []OrderTotalsItem, cart Cart) error {
	for _, item := range items {
		line, ok := cart[item.CartKey]
		if !ok {
			return fmt.Errorf("%w: %s", ErrInventoryCartLineMissing, item.CartKey)
		}

		var err error
		if item.ProductVariantID != nil {
			err = s.products.DecrementVariantStock(ctx, *item.ProductVariantID, item.Quantity)
		} else {
			err = s.products.DecrementProductStock(ctx, item.ProductID, item.Quantity)
		}
		if err == nil {
			continue
		}
		if !repositories.IsConflict(err) {
			return fmt.Errorf("inventory: decrement stock for %s: %w", item.CartKey, err)
		}

		available := s.availability(ctx, item)
		s.logger(ctx, "inventory.reduce.shortfall", map[string]any{
			"cart_key":  item.CartKey,
			"requested": item.Quantity,
			"available": available,
		})
		return &domain.InsufficientStockError{
			ProductTitle: line.Title,
			Requested:    item.Quantity,
			Available:    available,
		}
	}
	return nil
}

// Restore increments stock for every item of a cancelled order. There is no
// ceiling: restored units simply return to the pool.
func (s *InventoryService) Restore(ctx context.Context, order Order) error {
	for _, item := range order.Items {
		var err error
		if item.ProductVariantID != nil {
			err = s.products.IncrementVariantStock(ctx, *item.ProductVariantID, item.Quantity)
		} else {
			err = s.products.IncrementProductStock(ctx, item.ProductID, item.Quantity)
		}
		if err != nil {
			return fmt.Errorf("inventory: restore stock for order %d item %d: %w", order.ID, item.ID, err)
		}
	}
	return nil
}

// availability reads back current stock for error reporting. A read failure
// degrades to zero rather than masking the shortfall.
func (s *InventoryService) availability(ctx context.Context, item OrderTotalsItem) int {
	var (
		stock int
		err   error
	)
	if item.ProductVariantID != nil {
		stock, err = s.products.VariantStock(ctx, *item.ProductVariantID)
	} else {
		stock, err = s.products.ProductStock(ctx, item.ProductID)
	}
	if err != nil {
		return 0
	}
	return stock
}
