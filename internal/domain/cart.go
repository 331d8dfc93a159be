package domain

import (
	"strconv"
	"strings"
)

// VariantSelectorKind discriminates the variant selector union.
type VariantSelectorKind int

const (
	// SelectNone targets the bare product.
	SelectNone VariantSelectorKind = iota
	// SelectColor targets a variant by color only.
	SelectColor
	// SelectSize targets a variant by size only.
	SelectSize
	// SelectColorAndSize targets a variant by both dimensions.
	SelectColorAndSize
)

// VariantSelector identifies which variant of a product a cart line refers
// to. The zero value selects the bare product.
type VariantSelector struct {
	kind    VariantSelectorKind
	colorID int64
	sizeID  int64
}

// NewVariantSelector builds a selector from optional color and size ids.
func NewVariantSelector(colorID, sizeID *int64) VariantSelector {
	var s VariantSelector
	switch {
	case colorID != nil && sizeID != nil:
		s = VariantSelector{kind: SelectColorAndSize, colorID: *colorID, sizeID: *sizeID}
	case colorID != nil:
		s = VariantSelector{kind: SelectColor, colorID: *colorID}
	case sizeID != nil:
		s = VariantSelector{kind: SelectSize, sizeID: *sizeID}
	}
	return s
}

// Kind returns the selector discriminator.
func (s VariantSelector) Kind() VariantSelectorKind { return s.kind }

// IsZero reports whether the selector targets the bare product.
func (s VariantSelector) IsZero() bool { return s.kind == SelectNone }

// ColorID returns the color id and whether one is set.
func (s VariantSelector) ColorID() (int64, bool) {
	if s.kind == SelectColor || s.kind == SelectColorAndSize {
		return s.colorID, true
	}
	return 0, false
}

// SizeID returns the size id and whether one is set.
func (s VariantSelector) SizeID() (int64, bool) {
	if s.kind == SelectSize || s.kind == SelectColorAndSize {
		return s.sizeID, true
	}
	return 0, false
}

// CartKey derives the composite line key for a product plus selector:
// product id, color id and size id joined by underscores with empty
// segments omitted. The derivation is a wire contract shared with stored
// pending-order payloads and must not change.
func CartKey(productID int64, selector VariantSelector) string {
	parts := []string{strconv.FormatInt(productID, 10)}
	if colorID, ok := selector.ColorID(); ok {
		parts = append(parts, strconv.FormatInt(colorID, 10))
	}
	if sizeID, ok := selector.SizeID(); ok {
		parts = append(parts, strconv.FormatInt(sizeID, 10))
	}
	return strings.Join(parts, "_")
}

// CartLine is one entry of a session cart. Price, title and display name are
// display snapshots taken at add-to-cart time; totals always reprice against
// live catalog state.
type CartLine struct {
	ProductID          int64           `json:"product_id"`
	Quantity           int             `json:"quantity"`
	Selector           VariantSelector `json:"-"`
	ColorID            *int64          `json:"color_id,omitempty"`
	SizeID             *int64          `json:"size_id,omitempty"`
	Price              int64           `json:"price"`
	Title              string          `json:"title"`
	Image              string          `json:"image,omitempty"`
	VariantDisplayName string          `json:"variant_display_name,omitempty"`
}

// NormalizeSelector rebuilds the selector from the serialised color/size ids.
// Needed after JSON round-trips through the session store.
func (l CartLine) NormalizeSelector() CartLine {
	l.Selector = NewVariantSelector(l.ColorID, l.SizeID)
	return l
}

// Cart maps line keys to cart lines. It is session-scoped and ephemeral;
// the persisted order never references it after creation.
type Cart map[string]CartLine

// Normalize rebuilds every line's variant selector after deserialisation.
func (c Cart) Normalize() Cart {
	for key, line := range c {
		c[key] = line.NormalizeSelector()
	}
	return c
}
