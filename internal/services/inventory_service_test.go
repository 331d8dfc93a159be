package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	domain "github.com/velora-shop/api/internal/domain"
)

func newTestInventoryService(t *testing.T, products *fakeProductRepo) *InventoryService {
	t.Helper()
	svc, err := NewInventoryService(InventoryServiceDeps{Products: products})
	if err != nil {
		t.Fatalf("NewInventoryService: %v", err)
	}
	return svc
}

func TestInventoryReduceProductAndVariant(t *testing.T) {
	products := newFakeProductRepo()
	products.addProduct(domain.Product{ID: 1, Title: "Shirt", Price: 1000, Stock: 5, IsActive: true})
	products.addVariant(domain.ProductVariant{ID: 21, ProductID: 2, ColorID: int64ptr(3), Stock: 4, IsActive: true})
	svc := newTestInventoryService(t, products)

	cart := Cart{
		"1":   {ProductID: 1, Quantity: 2, Title: "Shirt"},
		"2_3": {ProductID: 2, Quantity: 3, Title: "Hat"},
	}
	items := []OrderTotalsItem{
		{CartKey: "1", ProductID: 1, Quantity: 2},
		{CartKey: "2_3", ProductID: 2, ProductVariantID: int64ptr(21), Quantity: 3},
	}
	if err := svc.Reduce(context.Background(), items, cart); err != nil {
		t.Fatalf("Reduce: %v", err)
	}

	if stock, _ := products.ProductStock(context.Background(), 1); stock != 3 {
		t.Fatalf("product stock = %d, want 3", stock)
	}
	if stock, _ := products.VariantStock(context.Background(), 21); stock != 1 {
		t.Fatalf("variant stock = %d, want 1", stock)
	}
}

func TestInventoryReduceShortfall(t *testing.T) {
	products := newFakeProductRepo()
	products.addProduct(domain.Product{ID: 1, Title: "Shirt", Price: 1000, Stock: 1, IsActive: true})
	svc := newTestInventoryService(t, products)

	cart := Cart{"1": {ProductID: 1, Quantity: 2, Title: "Shirt"}}
	items := []OrderTotalsItem{{CartKey: "1", ProductID: 1, Quantity: 2}}

	err := svc.Reduce(context.Background(), items, cart)
	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if stockErr.ProductTitle != "Shirt" || stockErr.Requested != 2 || stockErr.Available != 1 {
		t.Fatalf("unexpected shortfall detail: %+v", stockErr)
	}
	if stock, _ := products.ProductStock(context.Background(), 1); stock != 1 {
		t.Fatalf("stock changed on failed reduce: %d", stock)
	}
}

func TestInventoryReduceMissingCartLine(t *testing.T) {
	products := newFakeProductRepo()
	svc := newTestInventoryService(t, products)

	err := svc.Reduce(context.Background(), []OrderTotalsItem{{CartKey: "9", ProductID: 9, Quantity: 1}}, Cart{})
	if !errors.Is(err, ErrInventoryCartLineMissing) {
		t.Fatalf("expected ErrInventoryCartLineMissing, got %v", err)
	}
}

// Two buyers racing for the last units: the conditional decrement lets
// exactly one through and stock never goes negative.
func TestInventoryReduceConcurrentNeverNegative(t *testing.T) {
	products := newFakeProductRepo()
	products.addProduct(domain.Product{ID: 1, Title: "Shirt", Price: 1000, Stock: 3, IsActive: true})
	svc := newTestInventoryService(t, products)

	cart := Cart{"1": {ProductID: 1, Quantity: 2, Title: "Shirt"}}
	items := []OrderTotalsItem{{CartKey: "1", ProductID: 1, Quantity: 2}}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := svc.Reduce(context.Background(), items, cart); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 {
		t.Fatalf("succeeded = %d, want exactly 1", succeeded)
	}
	stock, _ := products.ProductStock(context.Background(), 1)
	if stock != 1 {
		t.Fatalf("stock = %d, want 1", stock)
	}
}

func TestInventoryRestore(t *testing.T) {
	products := newFakeProductRepo()
	products.addProduct(domain.Product{ID: 1, Title: "Shirt", Price: 1000, Stock: 0, IsActive: true})
	products.addVariant(domain.ProductVariant{ID: 21, ProductID: 2, ColorID: int64ptr(3), Stock: 1, IsActive: true})
	svc := newTestInventoryService(t, products)

	order := Order{
		ID: 4,
		Items: []OrderItem{
			{ID: 1, ProductID: 1, Quantity: 2},
			{ID: 2, ProductID: 2, ProductVariantID: int64ptr(21), Quantity: 1},
		},
	}
	if err := svc.Restore(context.Background(), order); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if stock, _ := products.ProductStock(context.Background(), 1); stock != 2 {
		t.Fatalf("product stock = %d, want 2", stock)
	}
	if stock, _ := products.VariantStock(context.Background(), 21); stock != 2 {
		t.Fatalf("variant stock = %d, want 2", stock)
	}
}
