// Package di assembles the runtime dependency graph: database, repositories,
// services, payment gateways and the event publisher.
package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/velora-shop/api/internal/payments"
	"github.com/velora-shop/api/internal/platform/config"
	"github.com/velora-shop/api/internal/platform/events"
	"github.com/velora-shop/api/internal/platform/idempotency"
	"github.com/velora-shop/api/internal/platform/identifier"
	"github.com/velora-shop/api/internal/platform/observability"
	"github.com/velora-shop/api/internal/repositories"
	"github.com/velora-shop/api/internal/repositories/postgres"
	"github.com/velora-shop/api/internal/services"
)

// Services bundles the service layer the handlers rely upon.
type Services struct {
	Pricing   *services.PricingEngine
	Cart      *services.CartService
	Discounts *services.DiscountService
	Inventory *services.InventoryService
	Checkout  *services.CheckoutService
	Orders    *services.OrderService
	Payments  *services.PaymentService
}

// Container wires the database, repositories, services and supporting
// infrastructure for runtime use.
type Container struct {
	Config       config.Config
	DB           *postgres.DB
	Registry     *postgres.Registry
	SessionCarts repositories.SessionCartStore
	Idempotency  *idempotency.PostgresStore
	Manager      *payments.Manager
	Services     Services

	pubsubClient *pubsub.Client
}

// NewContainer connects to the database, optionally applies migrations and
// constructs the full service graph. The returned container owns the
// connections; callers must Close it.
func NewContainer(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := postgres.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.Database.MigrateOnStart {
		if err := postgres.Migrate(db, observability.NewPrintfAdapter(logger.Named("migrate"))); err != nil {
			_ = db.Close(ctx)
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
	}

	registry, err := postgres.NewRegistry(db)
	if err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("build registry: %w", err)
	}

	c := &Container{
		Config:       cfg,
		DB:           db,
		Registry:     registry,
		SessionCarts: postgres.NewSessionCartStore(db),
	}

	c.Idempotency, err = idempotency.NewPostgresStore(db.Pool())
	if err != nil {
		_ = c.Close(ctx)
		return nil, fmt.Errorf("build idempotency store: %w", err)
	}

	c.Manager, err = buildGatewayManager(cfg, logger)
	if err != nil {
		_ = c.Close(ctx)
		return nil, err
	}

	publisher, err := c.buildEventPublisher(ctx, cfg, logger)
	if err != nil {
		_ = c.Close(ctx)
		return nil, err
	}

	c.Services, err = buildServices(registry, c.SessionCarts, c.Manager, publisher, cfg, logger)
	if err != nil {
		_ = c.Close(ctx)
		return nil, err
	}

	return c, nil
}

// Close releases the database pool and the event publisher's client.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.pubsubClient != nil {
		if err := c.pubsubClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pubsub client: %w", err))
		}
	}
	if c.Registry != nil {
		if err := c.Registry.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close registry: %w", err))
		}
	} else if c.DB != nil {
		if err := c.DB.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}

func buildGatewayManager(cfg config.Config, logger *zap.Logger) (*payments.Manager, error) {
	gateways := make(map[string]payments.Gateway, len(cfg.PSP.EnabledGateways))
	for _, gatewayType := range cfg.PSP.EnabledGateways {
		switch gatewayType {
		case "stripe":
			gateway, err := payments.NewStripeGateway(payments.StripeGatewayConfig{
				APIKey:     cfg.PSP.StripeAPIKey,
				SuccessURL: cfg.PSP.StripeSuccessURL,
				CancelURL:  cfg.PSP.StripeCancelURL,
				Logger:     serviceLogger(logger.Named("stripe")),
				Clock:      time.Now,
			})
			if err != nil {
				return nil, fmt.Errorf("build stripe gateway: %w", err)
			}
			gateways[gatewayType] = gateway
		default:
			return nil, fmt.Errorf("unsupported payment gateway %q", gatewayType)
		}
	}
	manager, err := payments.NewManager(gateways)
	if err != nil {
		return nil, fmt.Errorf("build gateway manager: %w", err)
	}
	return manager, nil
}

// buildEventPublisher returns nil when no Pub/Sub project is configured;
// services fall back to their no-op publisher.
func (c *Container) buildEventPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (services.EventPublisher, error) {
	if cfg.Events.ProjectID == "" {
		return nil, nil
	}
	client, err := pubsub.NewClient(ctx, cfg.Events.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("build pubsub client: %w", err)
	}
	c.pubsubClient = client

	publisher, err := events.NewPublisher(client.Topic(cfg.Events.Topic), logger.Named("events"))
	if err != nil {
		return nil, fmt.Errorf("build event publisher: %w", err)
	}
	return publisher, nil
}

func buildServices(
	registry *postgres.Registry,
	sessionCarts repositories.SessionCartStore,
	manager *payments.Manager,
	publisher services.EventPublisher,
	cfg config.Config,
	logger *zap.Logger,
) (Services, error) {
	var svc Services
	var err error

	svc.Pricing, err = services.NewPricingEngine(services.PricingEngineDeps{
		Campaigns: registry.Campaigns(),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build pricing engine: %w", err)
	}

	svc.Cart, err = services.NewCartService(services.CartServiceDeps{
		Products: registry.Products(),
		Pricing:  svc.Pricing,
		Logger:   serviceLogger(logger.Named("cart")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart service: %w", err)
	}

	svc.Discounts, err = services.NewDiscountService(services.DiscountServiceDeps{
		Codes: registry.DiscountCodes(),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build discount service: %w", err)
	}

	svc.Inventory, err = services.NewInventoryService(services.InventoryServiceDeps{
		Products: registry.Products(),
		Logger:   serviceLogger(logger.Named("inventory")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build inventory service: %w", err)
	}

	svc.Checkout, err = services.NewCheckoutService(services.CheckoutServiceDeps{
		Products:      registry.Products(),
		Delivery:      registry.DeliveryMethods(),
		Invoices:      registry.Invoices(),
		PendingOrders: registry.PendingOrders(),
		Pricing:       svc.Pricing,
		Discounts:     svc.Discounts,
		IDs:           identifier.NewULIDGenerator(),
		PendingTTL:    cfg.Checkout.PendingOrderTTL,
		Logger:        serviceLogger(logger.Named("checkout")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build checkout service: %w", err)
	}

	svc.Orders, err = services.NewOrderService(services.OrderServiceDeps{
		Totals:        svc.Checkout,
		Discounts:     svc.Discounts,
		Inventory:     svc.Inventory,
		Orders:        registry.Orders(),
		CampaignSales: registry.CampaignSales(),
		DiscountCodes: registry.DiscountCodes(),
		UnitOfWork:    registry,
		Events:        publisher,
		Logger:        serviceLogger(logger.Named("orders")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}

	svc.Payments, err = services.NewPaymentService(services.PaymentServiceDeps{
		Invoices:      registry.Invoices(),
		Transactions:  registry.Transactions(),
		Gateways:      registry.Gateways(),
		Delivery:      registry.DeliveryMethods(),
		PendingOrders: registry.PendingOrders(),
		SessionCarts:  sessionCarts,
		OrderRepo:     registry.Orders(),
		Orders:        svc.Orders,
		Manager:       manager,
		UnitOfWork:    registry,
		Events:        publisher,
		PendingTTL:    cfg.Checkout.PendingOrderTTL,
		Logger:        serviceLogger(logger.Named("payments")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build payment service: %w", err)
	}

	return svc, nil
}

// serviceLogger adapts a zap logger to the services' event-style callback.
func serviceLogger(logger *zap.Logger) func(ctx context.Context, event string, fields map[string]any) {
	return func(_ context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields))
		for k, v := range fields {
			zFields = append(zFields, zap.Any(k, v))
		}
		logger.Debug(event, zFields...)
	}
}
