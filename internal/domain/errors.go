package domain

import "fmt"

// InsufficientStockError reports a conditional stock decrement that could not
// be satisfied. It carries enough detail to tell the buyer which line failed.
type InsufficientStockError struct {
	ProductTitle string
	Requested    int
	Available    int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: requested %d, available %d", e.ProductTitle, e.Requested, e.Available)
}
