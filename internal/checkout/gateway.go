// Package checkout is the thin adapter in front of the hosted payment
// provider: create a session, retrieve it, verify webhook signatures.
// Nothing in here touches local state.
package checkout

import (
	"context"
	"errors"
	"time"
)

const (
	// Session payment_status values the workflows care about.
	SessionPaid   = "paid"
	SessionUnpaid = "unpaid"

	// Event type delivered when a hosted session finishes.
	EventSessionCompleted = "checkout.session.completed"
)

var (
	ErrInvalidSignature = errors.New("checkout: invalid webhook signature")
	ErrUnavailable      = errors.New("checkout: gateway unavailable")
)

// Session mirrors the provider's checkout session object. PaymentIntent is
// the per-attempt transaction reference stored on our Payment rows.
type Session struct {
	ID                 string
	URL                string
	PaymentIntent      string
	PaymentStatus      string
	PaymentMethodTypes []string
	AmountTotal        int64
	Currency           string
	ExpiresAt          time.Time
	Metadata           map[string]string
}

// Event is a verified webhook delivery.
type Event struct {
	ID      string
	Type    string
	Session Session
}

type Gateway interface {
	CreateSession(ctx context.Context, orderID string, amountCents int64, currency string) (*Session, error)
	RetrieveSession(ctx context.Context, sessionID string) (*Session, error)
	// VerifyWebhook authenticates a raw delivery. It fails closed: any
	// signature problem returns ErrInvalidSignature and no event.
	VerifyWebhook(payload []byte, sigHeader string) (*Event, error)
}
