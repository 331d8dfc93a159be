package services

import (
	"context"
	"testing"
	"time"

	domain "github.com/velora-shop/api/internal/domain"
)

var testNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func campaignWindow(priority int, id int64, kind domain.DiscountKind, value int64) domain.Campaign {
	return domain.Campaign{
		ID:            id,
		Type:          kind,
		DiscountValue: value,
		Priority:      priority,
		StartsAt:      testNow.Add(-time.Hour),
		EndsAt:        testNow.Add(time.Hour),
		IsActive:      true,
	}
}

func newTestPricingEngine(t *testing.T, campaigns *fakeCampaignRepo) *PricingEngine {
	t.Helper()
	engine, err := NewPricingEngine(PricingEngineDeps{
		Campaigns: campaigns,
		Now:       func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("NewPricingEngine: %v", err)
	}
	return engine
}

func TestPriceProductWithoutCampaign(t *testing.T) {
	engine := newTestPricingEngine(t, newFakeCampaignRepo())

	quote, err := engine.PriceProduct(context.Background(), Product{ID: 1, Price: 5000})
	if err != nil {
		t.Fatalf("PriceProduct: %v", err)
	}
	if quote.HasDiscount {
		t.Fatal("expected undiscounted quote")
	}
	if quote.CampaignPrice != 5000 {
		t.Fatalf("CampaignPrice = %d, want 5000", quote.CampaignPrice)
	}
}

func TestPriceProductAppliesBestCampaign(t *testing.T) {
	campaigns := newFakeCampaignRepo()
	campaigns.cover(1, campaignWindow(1, 10, domain.DiscountPercentage, 10))
	campaigns.cover(1, campaignWindow(5, 20, domain.DiscountPercentage, 30))
	engine := newTestPricingEngine(t, campaigns)

	quote, err := engine.PriceProduct(context.Background(), Product{ID: 1, Price: 1000})
	if err != nil {
		t.Fatalf("PriceProduct: %v", err)
	}
	if quote.Campaign == nil || quote.Campaign.ID != 20 {
		t.Fatalf("expected campaign 20 to win, got %+v", quote.Campaign)
	}
	if quote.CampaignPrice != 700 {
		t.Fatalf("CampaignPrice = %d, want 700", quote.CampaignPrice)
	}
}

func TestPriceProductPriorityTieBreaksOnLowestID(t *testing.T) {
	campaigns := newFakeCampaignRepo()
	campaigns.cover(1, campaignWindow(3, 42, domain.DiscountPercentage, 10))
	campaigns.cover(1, campaignWindow(3, 7, domain.DiscountPercentage, 20))
	engine := newTestPricingEngine(t, campaigns)

	quote, err := engine.PriceProduct(context.Background(), Product{ID: 1, Price: 1000})
	if err != nil {
		t.Fatalf("PriceProduct: %v", err)
	}
	if quote.Campaign == nil || quote.Campaign.ID != 7 {
		t.Fatalf("expected campaign 7 on priority tie, got %+v", quote.Campaign)
	}
}

func TestPriceProductIgnoresExpiredCampaign(t *testing.T) {
	campaigns := newFakeCampaignRepo()
	expired := campaignWindow(1, 1, domain.DiscountPercentage, 50)
	expired.EndsAt = testNow.Add(-time.Minute)
	campaigns.cover(1, expired)
	engine := newTestPricingEngine(t, campaigns)

	quote, err := engine.PriceProduct(context.Background(), Product{ID: 1, Price: 1000})
	if err != nil {
		t.Fatalf("PriceProduct: %v", err)
	}
	if quote.HasDiscount {
		t.Fatal("expired campaign must not discount")
	}
}

func TestPriceVariantUsesOverridePrice(t *testing.T) {
	campaigns := newFakeCampaignRepo()
	campaigns.cover(1, campaignWindow(1, 1, domain.DiscountFixed, 300))
	engine := newTestPricingEngine(t, campaigns)

	product := Product{ID: 1, Price: 1000}
	override := int64(2000)
	variant := ProductVariant{ID: 11, ProductID: 1, Price: &override}

	quote, err := engine.PriceVariant(context.Background(), variant, product)
	if err != nil {
		t.Fatalf("PriceVariant: %v", err)
	}
	if quote.OriginalPrice != 2000 {
		t.Fatalf("OriginalPrice = %d, want variant override 2000", quote.OriginalPrice)
	}
	if quote.CampaignPrice != 1700 {
		t.Fatalf("CampaignPrice = %d, want 1700", quote.CampaignPrice)
	}
}
