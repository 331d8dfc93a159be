package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/velora-shop/api/internal/domain"
	"github.com/velora-shop/api/internal/payments"
	"github.com/velora-shop/api/internal/repositories"
)

var (
	// ErrPaymentTransactionNotFound is returned when the addressed attempt does not exist.
	ErrPaymentTransactionNotFound = errors.New("payment: transaction not found")
	// ErrPaymentInvoiceNotFound is returned when the transaction's invoice is missing.
	ErrPaymentInvoiceNotFound = errors.New("payment: invoice not found")
	// ErrPaymentInvoiceNotPayable is returned when the invoice is already paid or cancelled.
	ErrPaymentInvoiceNotPayable = errors.New("payment: invoice is not payable")
	// ErrPaymentGatewayNotFound is returned when no configured gateway matches.
	ErrPaymentGatewayNotFound = errors.New("payment: gateway not found")
	// ErrPaymentGatewayUnavailable is returned when the gateway is disabled or unreachable.
	ErrPaymentGatewayUnavailable = errors.New("payment: gateway is not available")
	// ErrPaymentGatewayRequired is returned when a transaction carries no gateway to verify against.
	ErrPaymentGatewayRequired = errors.New("payment: transaction has no gateway")
	// ErrPaymentInitiateFailed wraps gateway-side initiation failures.
	ErrPaymentInitiateFailed = errors.New("payment: initiation failed")
	// ErrPaymentRejected is the terminal outcome of a failed verification.
	ErrPaymentRejected = errors.New("payment: rejected by gateway")
	// ErrPaymentPendingOrderMissing signals a verified payment whose checkout
	// snapshot is gone. This is a data-integrity incident: money was taken
	// and no order can be created.
	ErrPaymentPendingOrderMissing = errors.New("payment: pending order payload missing for verified payment")
)

// PaymentService owns the payment attempt lifecycle: initiation, gateway
// callbacks and the verification state machine that creates the order
// exactly once.
type PaymentService struct {
	invoices      repositories.InvoiceRepository
	transactions  repositories.TransactionRepository
	gateways      repositories.GatewayRepository
	delivery      repositories.DeliveryMethodRepository
	pendingOrders repositories.PendingOrderStore
	sessionCarts  repositories.SessionCartStore
	orderRepo     repositories.OrderRepository
	orders        *OrderService
	manager       *payments.Manager
	uow           repositories.UnitOfWork
	events        EventPublisher
	pendingTTL    time.Duration
	now           func() time.Time
	logger        func(context.Context, string, map[string]any)
}

// PaymentServiceDeps carries the collaborators for NewPaymentService.
type PaymentServiceDeps struct {
	Invoices      repositories.InvoiceRepository
	Transactions  repositories.TransactionRepository
	Gateways      repositories.GatewayRepository
	Delivery      repositories.DeliveryMethodRepository
	PendingOrders repositories.PendingOrderStore
	SessionCarts  repositories.SessionCartStore
	OrderRepo     repositories.OrderRepository
	Orders        *OrderService
	Manager       *payments.Manager
	UnitOfWork    repositories.UnitOfWork
	Events        EventPublisher
	PendingTTL    time.Duration
	Now           func() time.Time
	Logger        func(context.Context, string, map[string]any)
}

// NewPaymentService validates dependencies and constructs the service.
func NewPaymentService(deps PaymentServiceDeps) (*PaymentService, error) {
	if deps.Invoices == nil {
		return nil, errors.New("payment service: invoice repository is required")
	}
	if deps.Transactions == nil {
		return nil, errors.New("payment service: transaction repository is required")
	}
	if deps.Gateways == nil {
		return nil, errors.New("payment service: gateway repository is required")
	}
	if deps.Delivery == nil {
		return nil, errors.New("payment service: delivery method repository is required")
	}
	if deps.PendingOrders == nil {
		return nil, errors.New("payment service: pending order store is required")
	}
	if deps.SessionCarts == nil {
		return nil, errors.New("payment service: session cart store is required")
	}
	if deps.OrderRepo == nil {
		return nil, errors.New("payment service: order repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("payment service: order service is required")
	}
	if deps.Manager == nil {
		return nil, errors.New("payment service: gateway manager is required")
	}
	if deps.UnitOfWork == nil {
		return nil, errors.New("payment service: unit of work is required")
	}
	events := deps.Events
	if events == nil {
		events = noopPublisher{}
	}
	ttl := deps.PendingTTL
	if ttl <= 0 {
		ttl = defaultPendingOrderTTL
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &PaymentService{
		invoices:      deps.Invoices,
		transactions:  deps.Transactions,
		gateways:      deps.Gateways,
		delivery:      deps.Delivery,
		pendingOrders: deps.PendingOrders,
		sessionCarts:  deps.SessionCarts,
		orderRepo:     deps.OrderRepo,
		orders:        deps.Orders,
		manager:       deps.Manager,
		uow:           deps.UnitOfWork,
		events:        events,
		pendingTTL:    ttl,
		now:           func() time.Time { return now().UTC() },
		logger:        logger,
	}, nil
}

// PaymentInitiation is the hand-off to the buyer after a successful initiation.
type PaymentInitiation struct {
	Transaction  Transaction
	RedirectURL  string
	ClientSecret string
}

// Initiate starts a payment attempt for an unpaid invoice through a
// configured gateway. The transaction row exists before the gateway call so
// a crash mid-flight leaves an auditable pending attempt.
func (s *PaymentService) Initiate(ctx context.Context, invoiceID, gatewayID int64) (PaymentInitiation, error) {
	invoice, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return PaymentInitiation{}, ErrPaymentInvoiceNotFound
		}
		return PaymentInitiation{}, fmt.Errorf("payment: load invoice %d: %w", invoiceID, err)
	}
	if invoice.Status != domain.InvoiceStatusUnpaid {
		return PaymentInitiation{}, ErrPaymentInvoiceNotPayable
	}

	gatewayRow, err := s.gateways.FindByID(ctx, gatewayID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return PaymentInitiation{}, ErrPaymentGatewayNotFound
		}
		return PaymentInitiation{}, fmt.Errorf("payment: load gateway %d: %w", gatewayID, err)
	}
	if !gatewayRow.IsActive {
		return PaymentInitiation{}, ErrPaymentGatewayUnavailable
	}
	adapter, err := s.manager.Resolve(gatewayRow.Type)
	if err != nil {
		return PaymentInitiation{}, ErrPaymentGatewayNotFound
	}
	if !adapter.IsAvailable(ctx) {
		return PaymentInitiation{}, ErrPaymentGatewayUnavailable
	}

	txn, err := s.transactions.Insert(ctx, Transaction{
		InvoiceID: invoice.ID,
		GatewayID: &gatewayRow.ID,
		Method:    gatewayRow.Type,
		Amount:    invoice.Amount,
		Status:    domain.TransactionStatusPending,
	})
	if err != nil {
		return PaymentInitiation{}, fmt.Errorf("payment: create transaction: %w", err)
	}

	result, err := adapter.Initiate(ctx, payments.InitiateRequest{
		Amount:        invoice.Amount,
		Currency:      invoice.Currency,
		InvoiceNumber: invoice.InvoiceNumber,
	})
	if err != nil {
		if markErr := s.transactions.MarkFailed(ctx, txn.ID); markErr != nil {
			s.logger(ctx, "payment.initiate.mark_failed_error", map[string]any{
				"transaction_id": txn.ID, "error": markErr.Error(),
			})
		}
		return PaymentInitiation{}, fmt.Errorf("%w: %v", ErrPaymentInitiateFailed, err)
	}

	if err := s.transactions.SetGatewayTransactionID(ctx, txn.ID, result.GatewayTransactionID); err != nil {
		return PaymentInitiation{}, fmt.Errorf("payment: store gateway transaction id: %w", err)
	}
	txn.GatewayTransactionID = result.GatewayTransactionID

	s.logger(ctx, "payment.initiated", map[string]any{
		"invoice_id":     invoice.ID,
		"transaction_id": txn.ID,
		"gateway":        gatewayRow.Type,
	})
	return PaymentInitiation{
		Transaction:  txn,
		RedirectURL:  result.RedirectURL,
		ClientSecret: result.ClientSecret,
	}, nil
}

// HandleCallback resolves a gateway callback payload to a transaction and
// delegates to Verify.
func (s *PaymentService) HandleCallback(ctx context.Context, gatewayType string, payload map[string]any) (Order, error) {
	adapter, err := s.manager.Resolve(gatewayType)
	if err != nil {
		return Order{}, ErrPaymentGatewayNotFound
	}
	callback, err := adapter.Callback(ctx, payload)
	if err != nil {
		return Order{}, fmt.Errorf("payment: parse callback: %w", err)
	}
	txn, err := s.transactions.FindByGatewayTransactionID(ctx, callback.GatewayTransactionID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return Order{}, ErrPaymentTransactionNotFound
		}
		return Order{}, fmt.Errorf("payment: resolve callback transaction: %w", err)
	}
	return s.Verify(ctx, txn.ID, callback.Raw)
}

// Verify drives one payment attempt to a terminal state and returns the
// resulting order. It is idempotent and crash-safe: an already verified and
// linked attempt returns the same order with no side effects, concurrent
// callbacks serialise on the invoice row lock, and the double-check inside
// the transaction catches the race between fast path and lock acquisition.
func (s *PaymentService) Verify(ctx context.Context, transactionID int64, callbackData map[string]any) (Order, error) {
	txn, err := s.transactions.FindByID(ctx, transactionID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return Order{}, ErrPaymentTransactionNotFound
		}
		return Order{}, fmt.Errorf("payment: load transaction %d: %w", transactionID, err)
	}
	if txn.GatewayID == nil {
		return Order{}, ErrPaymentGatewayRequired
	}
	if txn.Status == domain.TransactionStatusRejected || txn.Status == domain.TransactionStatusFailed {
		return Order{}, ErrPaymentRejected
	}

	gatewayRow, err := s.gateways.FindByID(ctx, *txn.GatewayID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return Order{}, ErrPaymentGatewayNotFound
		}
		return Order{}, fmt.Errorf("payment: load gateway %d: %w", *txn.GatewayID, err)
	}
	adapter, err := s.manager.Resolve(gatewayRow.Type)
	if err != nil {
		return Order{}, ErrPaymentGatewayNotFound
	}

	// Fast path: the attempt already settled and the order exists.
	if txn.Status == domain.TransactionStatusVerified {
		invoice, err := s.invoices.FindByID(ctx, txn.InvoiceID)
		if err != nil {
			return Order{}, fmt.Errorf("payment: load invoice %d: %w", txn.InvoiceID, err)
		}
		if invoice.OrderID != nil {
			order, err := s.orderRepo.FindByID(ctx, *invoice.OrderID)
			if err != nil {
				return Order{}, fmt.Errorf("payment: load order %d: %w", *invoice.OrderID, err)
			}
			return order, nil
		}
	}

	// The gateway round-trip stays outside the transaction: network calls
	// must not hold a row lock.
	result, err := adapter.Verify(ctx, payments.VerifyRequest{
		GatewayTransactionID: txn.GatewayTransactionID,
		Amount:               txn.Amount,
	})
	if err != nil {
		return Order{}, fmt.Errorf("payment: gateway verify: %w", err)
	}

	if !result.Verified {
		return Order{}, s.reject(ctx, txn, callbackData, result.Raw)
	}

	var order Order
	err = s.uow.RunInTx(ctx, func(txCtx context.Context) error {
		invoice, err := s.invoices.FindByIDForUpdate(txCtx, txn.InvoiceID)
		if err != nil {
			if repositories.IsNotFound(err) {
				return ErrPaymentInvoiceNotFound
			}
			return fmt.Errorf("payment: lock invoice %d: %w", txn.InvoiceID, err)
		}

		// Double-checked idempotency: a concurrent callback may have won the
		// lock first and created the order already.
		if invoice.OrderID != nil {
			order, err = s.orderRepo.FindByID(txCtx, *invoice.OrderID)
			if err != nil {
				return fmt.Errorf("payment: load order %d: %w", *invoice.OrderID, err)
			}
			return nil
		}

		pending, err := s.pendingOrders.Get(txCtx, invoice.ID)
		if err != nil {
			if repositories.IsNotFound(err) {
				s.logger(txCtx, "payment.verify.pending_order_missing", map[string]any{
					"invoice_id":     invoice.ID,
					"transaction_id": txn.ID,
					"severity":       "critical",
				})
				return ErrPaymentPendingOrderMissing
			}
			return fmt.Errorf("payment: load pending order for invoice %d: %w", invoice.ID, err)
		}

		pending, err = s.ensureDeliveryMethod(txCtx, invoice.ID, pending)
		if err != nil {
			return err
		}

		if err := s.transactions.MarkVerified(txCtx, txn.ID, result.Reference, s.now()); err != nil {
			return fmt.Errorf("payment: mark transaction verified: %w", err)
		}

		order, err = s.orders.Create(txCtx, CreateOrderCommand{
			Cart:             pending.Cart,
			UserID:           pending.UserID,
			CustomerName:     pending.CustomerName,
			CustomerPhone:    pending.CustomerPhone,
			CustomerAddress:  pending.CustomerAddress,
			DeliveryMethodID: pending.DeliveryMethodID,
			DiscountCode:     pending.DiscountCode,
			ReceiptPath:      pending.ReceiptPath,
		})
		if err != nil {
			return err
		}

		if err := s.invoices.MarkPaid(txCtx, invoice.ID, order.ID, s.now()); err != nil {
			return fmt.Errorf("payment: mark invoice paid: %w", err)
		}
		if err := s.pendingOrders.Forget(txCtx, invoice.ID); err != nil {
			return fmt.Errorf("payment: forget pending order: %w", err)
		}
		if pending.SessionID != "" {
			if err := s.sessionCarts.Clear(txCtx, pending.SessionID); err != nil {
				return fmt.Errorf("payment: clear session cart: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.events.Publish(ctx, "payment.verified", map[string]any{
		"invoice_id":     txn.InvoiceID,
		"transaction_id": txn.ID,
		"order_id":       order.ID,
	})
	return order, nil
}

// reject drives the attempt to its rejected terminal state. The invoice is
// cancelled only when no order hangs off it; the pending payload is purged so
// the snapshot cannot be replayed.
func (s *PaymentService) reject(ctx context.Context, txn Transaction, callbackData, raw map[string]any) error {
	data := callbackData
	if data == nil {
		data = raw
	}
	if err := s.transactions.MarkRejected(ctx, txn.ID, data); err != nil {
		return fmt.Errorf("payment: mark transaction rejected: %w", err)
	}

	invoice, err := s.invoices.FindByID(ctx, txn.InvoiceID)
	if err != nil {
		return fmt.Errorf("payment: load invoice %d: %w", txn.InvoiceID, err)
	}
	if invoice.OrderID == nil {
		if err := s.invoices.MarkCancelled(ctx, invoice.ID); err != nil {
			return fmt.Errorf("payment: cancel invoice: %w", err)
		}
		if err := s.pendingOrders.Forget(ctx, invoice.ID); err != nil {
			s.logger(ctx, "payment.reject.forget_pending_error", map[string]any{
				"invoice_id": invoice.ID, "error": err.Error(),
			})
		}
	}

	s.events.Publish(ctx, "payment.failed", map[string]any{
		"invoice_id":     invoice.ID,
		"transaction_id": txn.ID,
	})
	s.logger(ctx, "payment.rejected", map[string]any{
		"invoice_id":     invoice.ID,
		"transaction_id": txn.ID,
	})
	return ErrPaymentRejected
}

// ensureDeliveryMethod re-validates the cached delivery choice. A vanished or
// deactivated method falls back to the first active one and the patched
// snapshot is written back so retries see a consistent payload.
func (s *PaymentService) ensureDeliveryMethod(ctx context.Context, invoiceID int64, pending PendingOrder) (PendingOrder, error) {
	method, err := s.delivery.FindByID(ctx, pending.DeliveryMethodID)
	if err == nil && method.IsActive {
		return pending, nil
	}
	if err != nil && !repositories.IsNotFound(err) {
		return PendingOrder{}, fmt.Errorf("payment: load delivery method %d: %w", pending.DeliveryMethodID, err)
	}

	fallback, err := s.delivery.FirstActive(ctx)
	if err != nil {
		return PendingOrder{}, fmt.Errorf("payment: resolve fallback delivery method: %w", err)
	}
	s.logger(ctx, "payment.verify.delivery_fallback", map[string]any{
		"invoice_id": invoiceID,
		"from":       pending.DeliveryMethodID,
		"to":         fallback.ID,
	})
	pending.DeliveryMethodID = fallback.ID
	pending.DeliveryFee = fallback.Fee
	if err := s.pendingOrders.Put(ctx, invoiceID, pending, s.pendingTTL); err != nil {
		return PendingOrder{}, fmt.Errorf("payment: patch pending order: %w", err)
	}
	return pending, nil
}
