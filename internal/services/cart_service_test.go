package services

import (
	"context"
	"errors"
	"testing"

	domain "github.com/velora-shop/api/internal/domain"
)

func newTestCartService(t *testing.T, products *fakeProductRepo, campaigns *fakeCampaignRepo) *CartService {
	t.Helper()
	svc, err := NewCartService(CartServiceDeps{
		Products: products,
		Pricing:  newTestPricingEngine(t, campaigns),
	})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}
	return svc
}

func TestCartAddBareProduct(t *testing.T) {
	products := newFakeProductRepo()
	products.addProduct(domain.Product{ID: 7, Title: "Shirt", Price: 1000, Stock: 5, IsActive: true})
	svc := newTestCartService(t, products, newFakeCampaignRepo())

	cart, err := svc.Add(context.Background(), nil, AddToCartCommand{ProductID: 7, Quantity: 2})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	line, ok := cart["7"]
	if !ok {
		t.Fatalf("expected line under key 7, cart = %v", cart)
	}
	if line.Quantity != 2 || line.Price != 1000 || line.Title != "Shirt" {
		t.Fatalf("unexpected line: %+v", line)
	}
}

func TestCartAddVariantDerivesCompositeKey(t *testing.T) {
	products := newFakeProductRepo()
	products.addProduct(domain.Product{ID: 7, Title: "Shirt", Price: 1000, Stock: 0, IsActive: true, HasVariants: true})
	products.addVariant(domain.ProductVariant{
		ID: 71, ProductID: 7, ColorID: int64ptr(3), SizeID: int64ptr(9),
		Stock: 4, IsActive: true, DisplayName: "Red / L",
	})
	svc := newTestCartService(t, products, newFakeCampaignRepo())

	selector := domain.NewVariantSelector(int64ptr(3), int64ptr(9))
	cart, err := svc.Add(context.Background(), nil, AddToCartCommand{ProductID: 7, Selector: selector, Quantity: 1})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	line, ok := cart["7_3_9"]
	if !ok {
		t.Fatalf("expected line under key 7_3_9, cart = %v", cart)
	}
	if line.VariantDisplayName != "Red / L" {
		t.Fatalf("VariantDisplayName = %q", line.VariantDisplayName)
	}
	if line.Price != 1000 {
		t.Fatalf("Price = %d, want fallback product price 1000", line.Price)
	}
}

func TestCartAddCumulativeStockCheck(t *testing.T) {
	products := newFakeProductRepo()
	products.addProduct(domain.Product{ID: 7, Title: "Shirt", Price: 1000, Stock: 3, IsActive: true})
	svc := newTestCartService(t, products, newFakeCampaignRepo())

	cart, err := svc.Add(context.Background(), nil, AddToCartCommand{ProductID: 7, Quantity: 2})
	if err != nil {
		t.Fatalf("first Add: %v", err)
	}
	_, err = svc.Add(context.Background(), cart, AddToCartCommand{ProductID: 7, Quantity: 2})
	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if stockErr.Requested != 4 || stockErr.Available != 3 {
		t.Fatalf("unexpected shortfall detail: %+v", stockErr)
	}
}

func TestCartAddInactiveProduct(t *testing.T) {
	products := newFakeProductRepo()
	products.addProduct(domain.Product{ID: 7, Title: "Shirt", Price: 1000, Stock: 3})
	svc := newTestCartService(t, products, newFakeCampaignRepo())

	if _, err := svc.Add(context.Background(), nil, AddToCartCommand{ProductID: 7, Quantity: 1}); !errors.Is(err, ErrCartProductInactive) {
		t.Fatalf("expected ErrCartProductInactive, got %v", err)
	}
}

func TestCartUpdateQuantityZeroRemovesLine(t *testing.T) {
	products := newFakeProductRepo()
	products.addProduct(domain.Product{ID: 7, Title: "Shirt", Price: 1000, Stock: 5, IsActive: true})
	svc := newTestCartService(t, products, newFakeCampaignRepo())

	cart, err := svc.Add(context.Background(), nil, AddToCartCommand{ProductID: 7, Quantity: 2})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	cart, err = svc.UpdateQuantity(context.Background(), cart, "7", 0)
	if err != nil {
		t.Fatalf("UpdateQuantity: %v", err)
	}
	if len(cart) != 0 {
		t.Fatalf("expected empty cart, got %v", cart)
	}
}

func TestCartUpdateQuantityStockCheck(t *testing.T) {
	products := newFakeProductRepo()
	products.addProduct(domain.Product{ID: 7, Title: "Shirt", Price: 1000, Stock: 3, IsActive: true})
	svc := newTestCartService(t, products, newFakeCampaignRepo())

	cart, err := svc.Add(context.Background(), nil, AddToCartCommand{ProductID: 7, Quantity: 1})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	_, err = svc.UpdateQuantity(context.Background(), cart, "7", 5)
	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
}

func TestCartTotalsDropsVanishedProducts(t *testing.T) {
	products := newFakeProductRepo()
	products.addProduct(domain.Product{ID: 1, Title: "Kept", Price: 1000, Stock: 9, IsActive: true})
	products.addProduct(domain.Product{ID: 2, Title: "Inactive", Price: 500, Stock: 9})
	svc := newTestCartService(t, products, newFakeCampaignRepo())

	cart := Cart{
		"1": {ProductID: 1, Quantity: 2, Price: 1000},
		"2": {ProductID: 2, Quantity: 1, Price: 500},
		"3": {ProductID: 3, Quantity: 1, Price: 700},
	}
	totals, err := svc.Totals(context.Background(), cart)
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	if len(totals.Items) != 1 {
		t.Fatalf("expected 1 surviving line, got %d", len(totals.Items))
	}
	if totals.Subtotal != 2000 || totals.TotalItems != 2 {
		t.Fatalf("Subtotal = %d TotalItems = %d", totals.Subtotal, totals.TotalItems)
	}
}

func TestCartTotalsPrefersLiveCampaignPrice(t *testing.T) {
	products := newFakeProductRepo()
	products.addProduct(domain.Product{ID: 1, Title: "Shirt", Price: 1000, Stock: 9, IsActive: true})
	campaigns := newFakeCampaignRepo()
	campaigns.cover(1, campaignWindow(1, 1, domain.DiscountPercentage, 20))
	svc := newTestCartService(t, products, campaigns)

	// Stored cart price predates the campaign.
	cart := Cart{"1": {ProductID: 1, Quantity: 1, Price: 1000}}
	totals, err := svc.Totals(context.Background(), cart)
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	if totals.Subtotal != 800 {
		t.Fatalf("Subtotal = %d, want live campaign price 800", totals.Subtotal)
	}
	if totals.CampaignDiscount != 200 {
		t.Fatalf("CampaignDiscount = %d, want 200", totals.CampaignDiscount)
	}
	if totals.OriginalTotal != 1000 {
		t.Fatalf("OriginalTotal = %d, want 1000", totals.OriginalTotal)
	}
}

func TestCartTotalsKeepsStoredPriceWithoutDiscount(t *testing.T) {
	products := newFakeProductRepo()
	products.addProduct(domain.Product{ID: 1, Title: "Shirt", Price: 1200, Stock: 9, IsActive: true})
	svc := newTestCartService(t, products, newFakeCampaignRepo())

	// Catalog price moved to 1200 after the line was added at 1000; without a
	// campaign the stored snapshot wins.
	cart := Cart{"1": {ProductID: 1, Quantity: 1, Price: 1000}}
	totals, err := svc.Totals(context.Background(), cart)
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	if totals.Subtotal != 1000 {
		t.Fatalf("Subtotal = %d, want stored price 1000", totals.Subtotal)
	}
}
