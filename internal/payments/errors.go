package payments

import "errors"

var (
	ErrNotFound       = errors.New("payments: payment not found")
	ErrOrderCompleted = errors.New("payments: order already completed")
	ErrEmptyOrder     = errors.New("payments: order has no items")

	// ErrGateway wraps checkout adapter failures so callers can classify
	// them without importing the adapter package.
	ErrGateway = errors.New("payments: gateway unavailable")
)
