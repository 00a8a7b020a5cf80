package orders

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("orders: order not found")
	ErrEmptyOrder = errors.New("orders: order has no items")
	ErrInvalidQty = errors.New("orders: quantity must be at least 1")
)

// InsufficientStockError reports the part that could not cover the requested
// quantity. Placement fails as a whole when any item hits this.
type InsufficientStockError struct {
	PartName  string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("orders: insufficient stock for %s: requested %d, available %d",
		e.PartName, e.Requested, e.Available)
}

type PartNotFoundError struct {
	PartID string
}

func (e *PartNotFoundError) Error() string {
	return fmt.Sprintf("orders: part not found: %s", e.PartID)
}

type InvalidTransitionError struct {
	From, To Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("orders: invalid status transition %s -> %s", e.From, e.To)
}
