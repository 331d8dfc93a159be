package domain

import (
	"testing"
	"time"
)

func TestDiscountKindPercentage(t *testing.T) {
	cases := []struct {
		name  string
		base  int64
		value int64
		want  int64
	}{
		{name: "floors fractional result", base: 999, value: 10, want: 99},
		{name: "full percent", base: 1000, value: 25, want: 250},
		{name: "zero base", base: 0, value: 50, want: 0},
		{name: "zero value", base: 1000, value: 0, want: 0},
		{name: "negative value", base: 1000, value: -5, want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DiscountPercentage.Discount(tc.base, tc.value); got != tc.want {
				t.Fatalf("Discount(%d, %d) = %d, want %d", tc.base, tc.value, got, tc.want)
			}
		})
	}
}

func TestDiscountKindFixedClampsToBase(t *testing.T) {
	if got := DiscountFixed.Discount(500, 800); got != 500 {
		t.Fatalf("Discount(500, 800) = %d, want 500", got)
	}
	if got := DiscountFixed.Discount(500, 300); got != 300 {
		t.Fatalf("Discount(500, 300) = %d, want 300", got)
	}
}

func TestFinalAmountNeverNegative(t *testing.T) {
	if got := DiscountFixed.FinalAmount(500, 800); got != 0 {
		t.Fatalf("FinalAmount(500, 800) = %d, want 0", got)
	}
	if got := DiscountPercentage.FinalAmount(1000, 100); got != 0 {
		t.Fatalf("FinalAmount(1000, 100) = %d, want 0", got)
	}
}

func TestCampaignActiveAt(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	campaign := Campaign{
		IsActive: true,
		StartsAt: now.Add(-time.Hour),
		EndsAt:   now.Add(time.Hour),
	}
	if !campaign.ActiveAt(now) {
		t.Fatal("expected campaign active inside its window")
	}
	if campaign.ActiveAt(now.Add(2 * time.Hour)) {
		t.Fatal("expected campaign inactive after its window")
	}
	if campaign.ActiveAt(now.Add(-2 * time.Hour)) {
		t.Fatal("expected campaign inactive before its window")
	}
	campaign.IsActive = false
	if campaign.ActiveAt(now) {
		t.Fatal("expected disabled campaign inactive")
	}
}

func TestVariantBasePriceFallsBackToProduct(t *testing.T) {
	product := Product{Price: 1200}
	variant := ProductVariant{}
	if got := variant.BasePrice(product); got != 1200 {
		t.Fatalf("BasePrice = %d, want 1200", got)
	}
	override := int64(1500)
	variant.Price = &override
	if got := variant.BasePrice(product); got != 1500 {
		t.Fatalf("BasePrice with override = %d, want 1500", got)
	}
}

func TestOrderStatusCancellable(t *testing.T) {
	cancellable := map[OrderStatus]bool{
		OrderStatusPending:   true,
		OrderStatusConfirmed: true,
		OrderStatusShipped:   false,
		OrderStatusCancelled: false,
	}
	for status, want := range cancellable {
		if got := status.IsCancellable(); got != want {
			t.Fatalf("IsCancellable(%s) = %v, want %v", status, got, want)
		}
	}
}
