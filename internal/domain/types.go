package domain

import (
	"time"
)

// DiscountKind enumerates how a campaign or discount code reduces a price.
type DiscountKind string

const (
	// DiscountPercentage applies value as a percentage of the base amount.
	DiscountPercentage DiscountKind = "percentage"
	// DiscountFixed subtracts value directly, clamped to the base amount.
	DiscountFixed DiscountKind = "fixed"
)

// Discount computes the discount amount for the given base using integer
// minor-unit arithmetic. Percentage discounts floor; fixed discounts never
// exceed the base.
func (k DiscountKind) Discount(base, value int64) int64 {
	switch k {
	case DiscountPercentage:
		if base <= 0 || value <= 0 {
			return 0
		}
		return base * value / 100
	case DiscountFixed:
		if value <= 0 {
			return 0
		}
		if value > base {
			return base
		}
		return value
	}
	return 0
}

// FinalAmount returns the base minus the computed discount, clamped to zero.
func (k DiscountKind) FinalAmount(base, value int64) int64 {
	final := base - k.Discount(base, value)
	if final < 0 {
		return 0
	}
	return final
}

// Product is a sellable catalog entry. Price and stock live on the product
// unless the buyer selects a variant, in which case the variant row is the
// stock and price unit.
type Product struct {
	ID          int64
	Title       string
	Slug        string
	Price       int64
	Stock       int
	IsActive    bool
	HasVariants bool
	HasColors   bool
	HasSizes    bool
	ImagePath   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProductVariant is a concrete color/size combination of a product. Price is
// an optional override; nil means the parent product price applies.
type ProductVariant struct {
	ID          int64
	ProductID   int64
	ColorID     *int64
	SizeID      *int64
	Price       *int64
	Stock       int
	IsActive    bool
	DisplayName string
}

// BasePrice resolves the effective base price of the variant, falling back to
// the owning product when no override is set.
func (v ProductVariant) BasePrice(product Product) int64 {
	if v.Price != nil {
		return *v.Price
	}
	return product.Price
}

// Color is a catalog color dimension used by variants.
type Color struct {
	ID   int64
	Name string
}

// Size is a catalog size dimension used by variants.
type Size struct {
	ID   int64
	Name string
}

// Campaign is a time-windowed automatic discount attached to specific
// products. When several campaigns cover one product the highest priority
// wins; ties break on the lowest campaign id.
type Campaign struct {
	ID            int64
	Title         string
	Type          DiscountKind
	DiscountValue int64
	Priority      int
	StartsAt      time.Time
	EndsAt        time.Time
	IsActive      bool
}

// ActiveAt reports whether the campaign window covers the given instant.
func (c Campaign) ActiveAt(now time.Time) bool {
	if !c.IsActive {
		return false
	}
	if !c.StartsAt.IsZero() && now.Before(c.StartsAt) {
		return false
	}
	if !c.EndsAt.IsZero() && now.After(c.EndsAt) {
		return false
	}
	return true
}

// DiscountCode is a user-entered order-level discount subject to activity
// window, usage caps and per-user reuse rules.
type DiscountCode struct {
	ID             int64
	Code           string
	Type           DiscountKind
	Value          int64
	MinOrderAmount *int64
	UsageLimit     *int
	StartsAt       *time.Time
	ExpiresAt      *time.Time
	IsActive       bool
}

// DiscountCodeUsage records one application of a code to an order. Existence
// of a row for (code, user) blocks reuse by that user.
type DiscountCodeUsage struct {
	ID             int64
	DiscountCodeID int64
	UserID         *int64
	OrderID        int64
	DiscountAmount int64
	OrderAmount    int64
	CreatedAt      time.Time
}

// DeliveryMethod is a shipping option with a flat fee. SortOrder drives the
// fallback pick during payment verification.
type DeliveryMethod struct {
	ID        int64
	Title     string
	Fee       int64
	IsActive  bool
	SortOrder int
}

// PaymentGateway is a configured gateway row; Type selects the adapter.
type PaymentGateway struct {
	ID       int64
	Title    string
	Type     string
	IsActive bool
}
