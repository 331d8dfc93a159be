package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	domain "github.com/velora-shop/api/internal/domain"
)

type fakeIDs struct{ n int }

func (f *fakeIDs) NewID() string {
	f.n++
	return fmt.Sprintf("01TESTID%04d", f.n)
}

type checkoutFixture struct {
	products  *fakeProductRepo
	campaigns *fakeCampaignRepo
	delivery  *fakeDeliveryRepo
	invoices  *fakeInvoiceRepo
	pending   *fakePendingOrderStore
	codes     *fakeDiscountCodeRepo
	svc       *CheckoutService
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	fx := &checkoutFixture{
		products:  newFakeProductRepo(),
		campaigns: newFakeCampaignRepo(),
		delivery: newFakeDeliveryRepo(
			domain.DeliveryMethod{ID: 1, Title: "Courier", Fee: 5000, IsActive: true, SortOrder: 1},
			domain.DeliveryMethod{ID: 2, Title: "Retired", Fee: 2000, SortOrder: 2},
		),
		invoices: newFakeInvoiceRepo(),
		pending:  newFakePendingOrderStore(),
		codes:    newFakeDiscountCodeRepo(),
	}
	svc, err := NewCheckoutService(CheckoutServiceDeps{
		Products:      fx.products,
		Delivery:      fx.delivery,
		Invoices:      fx.invoices,
		PendingOrders: fx.pending,
		Pricing:       newTestPricingEngine(t, fx.campaigns),
		Discounts:     newTestDiscountService(t, fx.codes),
		IDs:           &fakeIDs{},
	})
	if err != nil {
		t.Fatalf("NewCheckoutService: %v", err)
	}
	fx.svc = svc
	return fx
}

func TestCalculateOrderTotalsSnapshotsItems(t *testing.T) {
	fx := newCheckoutFixture(t)
	fx.products.addProduct(domain.Product{ID: 1, Title: "Shirt", Price: 1000, Stock: 10, IsActive: true})
	fx.campaigns.cover(1, campaignWindow(1, 5, domain.DiscountPercentage, 20))

	cart := Cart{"1": {ProductID: 1, Quantity: 3, Price: 1000}}
	totals, err := fx.svc.CalculateOrderTotals(context.Background(), cart, 1)
	if err != nil {
		t.Fatalf("CalculateOrderTotals: %v", err)
	}
	if totals.DeliveryFee != 5000 {
		t.Fatalf("DeliveryFee = %d, want 5000", totals.DeliveryFee)
	}
	if len(totals.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(totals.Items))
	}
	item := totals.Items[0]
	if item.CartKey != "1" || item.UnitPrice != 800 || item.OriginalPrice != 1000 {
		t.Fatalf("unexpected item snapshot: %+v", item)
	}
	if item.CampaignID == nil || *item.CampaignID != 5 {
		t.Fatalf("expected campaign id 5 on item, got %v", item.CampaignID)
	}
	if totals.TotalAmount != 2400 || totals.CampaignDiscount != 600 || totals.OriginalAmount != 3000 {
		t.Fatalf("unexpected totals: %+v", totals)
	}
}

func TestCalculateOrderTotalsMissingDeliveryMethodFatal(t *testing.T) {
	fx := newCheckoutFixture(t)
	fx.products.addProduct(domain.Product{ID: 1, Title: "Shirt", Price: 1000, Stock: 10, IsActive: true})
	cart := Cart{"1": {ProductID: 1, Quantity: 1, Price: 1000}}

	if _, err := fx.svc.CalculateOrderTotals(context.Background(), cart, 99); !errors.Is(err, ErrCheckoutDeliveryMethodNotFound) {
		t.Fatalf("expected ErrCheckoutDeliveryMethodNotFound, got %v", err)
	}
	if _, err := fx.svc.CalculateOrderTotals(context.Background(), cart, 2); !errors.Is(err, ErrCheckoutDeliveryMethodNotFound) {
		t.Fatalf("inactive method: expected ErrCheckoutDeliveryMethodNotFound, got %v", err)
	}
}

func TestCalculateOrderTotalsAllLinesInvalid(t *testing.T) {
	fx := newCheckoutFixture(t)
	cart := Cart{
		"1": {ProductID: 1, Quantity: 1, Price: 1000},
		"2": {ProductID: 2, Quantity: 0, Price: 500},
	}
	if _, err := fx.svc.CalculateOrderTotals(context.Background(), cart, 1); !errors.Is(err, ErrCheckoutEmptyCart) {
		t.Fatalf("expected ErrCheckoutEmptyCart, got %v", err)
	}
}

func TestCalculateOrderTotalsIsPure(t *testing.T) {
	fx := newCheckoutFixture(t)
	fx.products.addProduct(domain.Product{ID: 1, Title: "Shirt", Price: 1000, Stock: 10, IsActive: true})
	fx.products.addProduct(domain.Product{ID: 2, Title: "Hat", Price: 300, Stock: 10, IsActive: true})
	fx.campaigns.cover(1, campaignWindow(2, 9, domain.DiscountFixed, 150))

	cart := Cart{
		"1": {ProductID: 1, Quantity: 2, Price: 1000},
		"2": {ProductID: 2, Quantity: 1, Price: 300},
	}
	first, err := fx.svc.CalculateOrderTotals(context.Background(), cart, 1)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := fx.svc.CalculateOrderTotals(context.Background(), cart, 1)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("totals differ across identical runs:\n%+v\n%+v", first, second)
	}
}

func TestCheckoutCreatesInvoiceAndPendingSnapshot(t *testing.T) {
	fx := newCheckoutFixture(t)
	fx.products.addProduct(domain.Product{ID: 1, Title: "Shirt", Price: 1000, Stock: 10, IsActive: true})
	fx.codes.codes["SAVE10"] = validCode()

	cart := Cart{"1": {ProductID: 1, Quantity: 2, Price: 1000}}
	result, err := fx.svc.Checkout(context.Background(), cart, CheckoutCommand{
		SessionID:        "sess-1",
		UserID:           int64ptr(9),
		CustomerName:     "Sara",
		CustomerPhone:    "0912",
		CustomerAddress:  "Tehran",
		DeliveryMethodID: 1,
		DiscountCode:     "SAVE10",
	})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	// 2000 total, 5000 fee, 10% code on 7000 = 700 off.
	if result.FinalAmount != 6300 {
		t.Fatalf("FinalAmount = %d, want 6300", result.FinalAmount)
	}
	if result.Invoice.Status != domain.InvoiceStatusUnpaid {
		t.Fatalf("invoice status = %s, want unpaid", result.Invoice.Status)
	}
	if result.Invoice.OrderID != nil {
		t.Fatal("fresh invoice must not reference an order")
	}
	if result.Invoice.InvoiceNumber == "" || result.Invoice.InvoiceNumber[:4] != "INV-" {
		t.Fatalf("invoice number = %q", result.Invoice.InvoiceNumber)
	}

	pending, err := fx.pending.Get(context.Background(), result.Invoice.ID)
	if err != nil {
		t.Fatalf("pending snapshot missing: %v", err)
	}
	if pending.SessionID != "sess-1" || pending.FinalAmount != 6300 || pending.DiscountAmount != 700 {
		t.Fatalf("unexpected pending snapshot: %+v", pending)
	}
	if len(pending.Items) != 1 || pending.Items[0].CartKey != "1" {
		t.Fatalf("pending items = %+v", pending.Items)
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	fx := newCheckoutFixture(t)
	if _, err := fx.svc.Checkout(context.Background(), Cart{}, CheckoutCommand{DeliveryMethodID: 1}); !errors.Is(err, ErrCheckoutEmptyCart) {
		t.Fatalf("expected ErrCheckoutEmptyCart, got %v", err)
	}
}

func TestCheckoutInvalidDiscountCodeAborts(t *testing.T) {
	fx := newCheckoutFixture(t)
	fx.products.addProduct(domain.Product{ID: 1, Title: "Shirt", Price: 1000, Stock: 10, IsActive: true})

	cart := Cart{"1": {ProductID: 1, Quantity: 1, Price: 1000}}
	_, err := fx.svc.Checkout(context.Background(), cart, CheckoutCommand{
		UserID:           int64ptr(4),
		DeliveryMethodID: 1,
		DiscountCode:     "NOPE",
	})
	if !errors.Is(err, ErrDiscountCodeNotFound) {
		t.Fatalf("expected ErrDiscountCodeNotFound, got %v", err)
	}
	if len(fx.invoices.invoices) != 0 {
		t.Fatal("no invoice may exist after a failed checkout")
	}
}

func TestCheckoutDiscountMinimumCountsDeliveryFee(t *testing.T) {
	fx := newCheckoutFixture(t)
	fx.products.addProduct(domain.Product{ID: 1, Title: "Coat", Price: 18000, Stock: 3, IsActive: true})

	code := validCode()
	code.MinOrderAmount = int64ptr(20000)
	fx.codes.codes["SAVE10"] = code

	// 18000 items + 5000 fee = 23000, which clears the 20000 minimum even
	// though the item total alone does not.
	cart := Cart{"1": {ProductID: 1, Quantity: 1, Price: 18000}}
	result, err := fx.svc.Checkout(context.Background(), cart, CheckoutCommand{
		UserID:           int64ptr(9),
		DeliveryMethodID: 1,
		DiscountCode:     "SAVE10",
	})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if result.Invoice.DiscountCodeAmount != 2300 {
		t.Fatalf("discount = %d, want 2300 (10%% of 23000)", result.Invoice.DiscountCodeAmount)
	}
	if result.FinalAmount != 20700 {
		t.Fatalf("FinalAmount = %d, want 20700", result.FinalAmount)
	}
}

func TestCheckoutIgnoresDiscountCodeForGuest(t *testing.T) {
	fx := newCheckoutFixture(t)
	fx.products.addProduct(domain.Product{ID: 1, Title: "Shirt", Price: 1000, Stock: 10, IsActive: true})
	fx.codes.codes["SAVE10"] = validCode()

	cart := Cart{"1": {ProductID: 1, Quantity: 2, Price: 1000}}
	result, err := fx.svc.Checkout(context.Background(), cart, CheckoutCommand{
		SessionID:        "sess-guest",
		DeliveryMethodID: 1,
		DiscountCode:     "SAVE10",
	})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if result.Invoice.DiscountCodeAmount != 0 {
		t.Fatalf("guest checkout applied a code: discount = %d", result.Invoice.DiscountCodeAmount)
	}
	if result.FinalAmount != 7000 {
		t.Fatalf("FinalAmount = %d, want 7000 (2000 + 5000 fee, no code)", result.FinalAmount)
	}
}
