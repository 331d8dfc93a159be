package services

import (
	"context"
	"errors"
	"time"

	domain "github.com/velora-shop/api/internal/domain"
	"github.com/velora-shop/api/internal/repositories"
)

// PricingEngine resolves the effective price of products and variants against
// the live campaign state. It is read-only: callers decide what to do with
// the quote.
type PricingEngine struct {
	campaigns repositories.CampaignRepository
	now       func() time.Time
}

// PricingEngineDeps carries the collaborators for NewPricingEngine.
type PricingEngineDeps struct {
	Campaigns repositories.CampaignRepository
	Now       func() time.Time
}

// NewPricingEngine validates dependencies and constructs the engine.
func NewPricingEngine(deps PricingEngineDeps) (*PricingEngine, error) {
	if deps.Campaigns == nil {
		return nil, errors.New("pricing engine: campaign repository is required")
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &PricingEngine{
		campaigns: deps.Campaigns,
		now:       func() time.Time { return now().UTC() },
	}, nil
}

// PriceProduct quotes the product's own price row.
func (e *PricingEngine) PriceProduct(ctx context.Context, product Product) (PriceQuote, error) {
	return e.quote(ctx, product.ID, product.Price)
}

// PriceVariant quotes a variant, falling back to the product price when the
// variant carries no override. Campaigns attach to the product, so the
// variant inherits the product's campaign.
func (e *PricingEngine) PriceVariant(ctx context.Context, variant ProductVariant, product Product) (PriceQuote, error) {
	return e.quote(ctx, product.ID, variant.BasePrice(product))
}

func (e *PricingEngine) quote(ctx context.Context, productID int64, base int64) (PriceQuote, error) {
	campaign, err := e.campaigns.BestActiveForProduct(ctx, productID, e.now())
	if err != nil {
		if repositories.IsNotFound(err) {
			return domain.NewPriceQuote(base, nil), nil
		}
		return PriceQuote{}, err
	}
	return domain.NewPriceQuote(base, &campaign), nil
}
