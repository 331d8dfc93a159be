package services

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/velora-shop/api/internal/domain"
	"github.com/velora-shop/api/internal/repositories"
)

var (
	// ErrOrderEmptyCart is returned when order creation starts from an empty cart.
	ErrOrderEmptyCart = errors.New("order: cart is empty")
	// ErrOrderNotFound is returned when the addressed order does not exist.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderNotCancellable is returned when the order status forbids cancellation.
	ErrOrderNotCancellable = errors.New("order: status is not cancellable")
)

// OrderTotalsCalculator is the slice of the checkout service order creation
// needs; split out so tests can fake it.
type OrderTotalsCalculator interface {
	CalculateOrderTotals(ctx context.Context, cart Cart, deliveryMethodID int64) (OrderTotals, error)
}

// OrderService orchestrates all-or-nothing order creation and cancellation.
type OrderService struct {
	totals        OrderTotalsCalculator
	discounts     *DiscountService
	inventory     *InventoryService
	orders        repositories.OrderRepository
	campaignSales repositories.CampaignSaleRepository
	discountCodes repositories.DiscountCodeRepository
	uow           repositories.UnitOfWork
	events        EventPublisher
	logger        func(context.Context, string, map[string]any)
}

// OrderServiceDeps carries the collaborators for NewOrderService.
type OrderServiceDeps struct {
	Totals        OrderTotalsCalculator
	Discounts     *DiscountService
	Inventory     *InventoryService
	Orders        repositories.OrderRepository
	CampaignSales repositories.CampaignSaleRepository
	DiscountCodes repositories.DiscountCodeRepository
	UnitOfWork    repositories.UnitOfWork
	Events        EventPublisher
	Logger        func(context.Context, string, map[string]any)
}

// NewOrderService validates dependencies and constructs the service.
func NewOrderService(deps OrderServiceDeps) (*OrderService, error) {
	if deps.Totals == nil {
		return nil, errors.New("order service: totals calculator is required")
	}
	if deps.Discounts == nil {
		return nil, errors.New("order service: discount service is required")
	}
	if deps.Inventory == nil {
		return nil, errors.New("order service: inventory service is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.CampaignSales == nil {
		return nil, errors.New("order service: campaign sale repository is required")
	}
	if deps.DiscountCodes == nil {
		return nil, errors.New("order service: discount code repository is required")
	}
	if deps.UnitOfWork == nil {
		return nil, errors.New("order service: unit of work is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	events := deps.Events
	if events == nil {
		events = noopPublisher{}
	}
	return &OrderService{
		totals:        deps.Totals,
		discounts:     deps.Discounts,
		inventory:     deps.Inventory,
		orders:        deps.Orders,
		campaignSales: deps.CampaignSales,
		discountCodes: deps.DiscountCodes,
		uow:           deps.UnitOfWork,
		events:        events,
		logger:        logger,
	}, nil
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, map[string]any) {}

// CreateOrderCommand carries everything needed to materialise an order.
type CreateOrderCommand struct {
	Cart             Cart
	UserID           *int64
	CustomerName     string
	CustomerPhone    string
	CustomerAddress  string
	DeliveryMethodID int64
	DiscountCode     string
	ReceiptPath      string
}

// Create runs the whole pipeline in one transaction: totals, optional
// discount validation, order plus item inserts, campaign sale rows, stock
// decrements and discount usage. Any failure rolls the lot back; there is no
// partial order. When the context already carries a transaction (payment
// verification) the pipeline joins it.
func (s *OrderService) Create(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	if len(cmd.Cart) == 0 {
		return Order{}, ErrOrderEmptyCart
	}

	var created Order
	err := s.uow.RunInTx(ctx, func(txCtx context.Context) error {
		totals, err := s.totals.CalculateOrderTotals(txCtx, cmd.Cart, cmd.DeliveryMethodID)
		if err != nil {
			if errors.Is(err, ErrCheckoutEmptyCart) {
				return ErrOrderEmptyCart
			}
			return err
		}

		var (
			discountAmount int64
			discountCode   DiscountCode
			discountUsed   bool
		)
		// The code base amount includes the delivery fee; guests never get a
		// code applied because the per-user usage check needs a user id.
		orderAmount := totals.TotalAmount + totals.DeliveryFee
		if cmd.DiscountCode != "" && cmd.UserID != nil {
			discountCode, err = s.discounts.Validate(txCtx, cmd.DiscountCode, cmd.UserID, orderAmount)
			if err != nil {
				return err
			}
			discountAmount = s.discounts.Amount(discountCode, orderAmount)
			discountUsed = true
		}

		finalAmount := totals.TotalAmount + totals.DeliveryFee - discountAmount
		if finalAmount < 0 {
			finalAmount = 0
		}

		order := Order{
			UserID:                 cmd.UserID,
			CustomerName:           cmd.CustomerName,
			CustomerPhone:          cmd.CustomerPhone,
			CustomerAddress:        cmd.CustomerAddress,
			DeliveryMethodID:       cmd.DeliveryMethodID,
			DeliveryFee:            totals.DeliveryFee,
			TotalAmount:            totals.TotalAmount,
			OriginalAmount:         totals.OriginalAmount,
			CampaignDiscountAmount: totals.CampaignDiscount,
			DiscountAmount:         discountAmount,
			FinalAmount:            finalAmount,
			Status:                 domain.OrderStatusPending,
			ReceiptPath:            cmd.ReceiptPath,
			Items:                  orderItemsFromTotals(totals.Items),
		}
		if discountUsed {
			order.DiscountCode = discountCode.Code
		}

		created, err = s.orders.Insert(txCtx, order)
		if err != nil {
			return fmt.Errorf("order: insert: %w", err)
		}

		for i, item := range created.Items {
			if item.CampaignID == nil {
				continue
			}
			sale := domain.CampaignSale{
				CampaignID:       *item.CampaignID,
				OrderItemID:      item.ID,
				ProductID:        item.ProductID,
				ProductVariantID: item.ProductVariantID,
				Quantity:         item.Quantity,
				DiscountAmount:   item.CampaignDiscountAmount * int64(item.Quantity),
				SaleAmount:       item.LineTotal,
			}
			if err := s.campaignSales.Insert(txCtx, sale); err != nil {
				return fmt.Errorf("order: record campaign sale for item %d: %w", i, err)
			}
		}

		if err := s.inventory.Reduce(txCtx, totals.Items, cmd.Cart); err != nil {
			return err
		}

		if discountUsed {
			usage := domain.DiscountCodeUsage{
				DiscountCodeID: discountCode.ID,
				UserID:         cmd.UserID,
				OrderID:        created.ID,
				DiscountAmount: discountAmount,
				OrderAmount:    orderAmount,
			}
			if err := s.discountCodes.RecordUsage(txCtx, usage); err != nil {
				return fmt.Errorf("order: record discount usage: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.events.Publish(ctx, "order.created", map[string]any{
		"order_id":     created.ID,
		"final_amount": created.FinalAmount,
	})
	s.logger(ctx, "order.created", map[string]any{"order_id": created.ID})
	return created, nil
}

// Cancel restores stock and marks the order cancelled. Only pending and
// confirmed orders qualify. The guarded status transition decides between
// concurrent cancels: the loser sees zero rows and never touches stock.
func (s *OrderService) Cancel(ctx context.Context, orderID int64) (Order, error) {
	var order Order
	err := s.uow.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		order, err = s.orders.FindByID(txCtx, orderID)
		if err != nil {
			if repositories.IsNotFound(err) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("order: load %d: %w", orderID, err)
		}
		if !order.Status.IsCancellable() {
			return ErrOrderNotCancellable
		}

		cancelled, err := s.orders.MarkCancelled(txCtx, order.ID)
		if err != nil {
			if repositories.IsNotFound(err) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("order: mark cancelled: %w", err)
		}
		if !cancelled {
			return ErrOrderNotCancellable
		}

		return s.inventory.Restore(txCtx, order)
	})
	if err != nil {
		return Order{}, err
	}

	order.Status = domain.OrderStatusCancelled
	s.events.Publish(ctx, "order.cancelled", map[string]any{"order_id": order.ID})
	return order, nil
}

func orderItemsFromTotals(items []OrderTotalsItem) []OrderItem {
	out := make([]OrderItem, 0, len(items))
	for _, item := range items {
		out = append(out, OrderItem{
			ProductID:              item.ProductID,
			ProductVariantID:       item.ProductVariantID,
			ColorID:                item.ColorID,
			SizeID:                 item.SizeID,
			VariantDisplayName:     item.VariantDisplayName,
			CampaignID:             item.CampaignID,
			OriginalPrice:          item.OriginalPrice,
			CampaignDiscountAmount: item.CampaignDiscountAmount,
			UnitPrice:              item.UnitPrice,
			Quantity:               item.Quantity,
			LineTotal:              item.LineTotal,
		})
	}
	return out
}
