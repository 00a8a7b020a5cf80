package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hendraw/partshub/internal/checkout"
	"github.com/hendraw/partshub/internal/events"
	"github.com/hendraw/partshub/internal/orders"
	"github.com/hendraw/partshub/internal/postgres"
)

// Store is the persistence boundary of the reconciliation workflow. The
// Complete transition is conditional on the payment still being pending;
// that single rule is what makes every confirmation path idempotent.
type Store interface {
	CreatePending(ctx context.Context, p *Payment) error
	LatestByOrder(ctx context.Context, orderID string) (*Payment, error)
	FindByProviderRef(ctx context.Context, ref string) (*Payment, error)
	Complete(ctx context.Context, paymentID, method string, metadata map[string]string) (bool, error)
}

// OrderSource is the read side the link-creation entry needs.
type OrderSource interface {
	Get(ctx context.Context, id string) (*orders.Order, error)
}

// Deduper short-circuits webhook redeliveries whose confirmation already
// applied. Seen is a read; Mark runs only after the transition committed, so
// a half-processed event stays retryable. Purely an optimization: a miss (or
// a broken deduper) still converges through the conditional Complete
// transition.
type Deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

const conflictBackoff = 50 * time.Millisecond

type Workflow struct {
	store    Store
	orders   OrderSource
	gateway  checkout.Gateway
	currency string
	dedup    Deduper
	emit     events.Emitter
	log      *zap.Logger
}

func NewWorkflow(store Store, os OrderSource, gw checkout.Gateway, currency string, opts ...Option) *Workflow {
	w := &Workflow{
		store:    store,
		orders:   os,
		gateway:  gw,
		currency: currency,
		emit:     events.NopEmitter{},
		log:      zap.NewNop(),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

type Option func(*Workflow)

func WithEmitter(e events.Emitter) Option { return func(w *Workflow) { w.emit = e } }
func WithLogger(l *zap.Logger) Option     { return func(w *Workflow) { w.log = l } }
func WithDeduper(d Deduper) Option        { return func(w *Workflow) { w.dedup = d } }

// Link is the result of payment-link creation.
type Link struct {
	URL       string    `json:"payment_link"`
	PaymentID string    `json:"payment_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CreateLink opens a hosted checkout session for the order's derived total
// and records a pending payment attempt. The gateway call happens before any
// row is written; if it fails nothing is persisted.
func (w *Workflow) CreateLink(ctx context.Context, orderID string) (*Link, error) {
	order, err := w.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == orders.StatusCompleted {
		return nil, ErrOrderCompleted
	}
	if len(order.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	total := order.TotalCents()

	sess, err := w.gateway.CreateSession(ctx, order.ID, total, w.currency)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGateway, err)
	}

	p := &Payment{
		ID:            uuid.NewString(),
		OrderID:       order.ID,
		AmountCents:   total,
		Currency:      w.currency,
		SessionID:     sess.ID,
		TransactionID: sess.PaymentIntent,
		Status:        StatusPending,
		Metadata:      map[string]string{MetaSessionID: sess.ID},
	}
	if err := w.retryConflict(func() error { return w.store.CreatePending(ctx, p) }); err != nil {
		return nil, err
	}

	w.log.Info("payment link created",
		zap.String("order_id", order.ID),
		zap.String("payment_id", p.ID),
		zap.Int64("amount_cents", total),
	)
	return &Link{URL: sess.URL, PaymentID: p.ID, ExpiresAt: sess.ExpiresAt}, nil
}

// Confirmation is the outcome of either confirmation path.
type Confirmation struct {
	Completed bool   `json:"completed"`
	PaymentID string `json:"payment_id"`
	Status    Status `json:"status"`
}

// Verify is the synchronous confirmation path: fetch the order's latest
// payment attempt and ask the gateway for the session's current state.
func (w *Workflow) Verify(ctx context.Context, orderID string) (*Confirmation, error) {
	p, err := w.store.LatestByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if p.Status == StatusCompleted {
		return &Confirmation{Completed: true, PaymentID: p.ID, Status: p.Status}, nil
	}

	sess, err := w.gateway.RetrieveSession(ctx, p.SessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGateway, err)
	}
	return w.confirm(ctx, p, sess, "")
}

// HandleWebhook is the asynchronous confirmation path. Error classification
// matters to the sender: ErrInvalidSignature is terminal (4xx, no redelivery
// wanted), a nil return acknowledges the event, and any other error tells
// the provider to retry.
func (w *Workflow) HandleWebhook(ctx context.Context, payload []byte, sigHeader string) error {
	ev, err := w.gateway.VerifyWebhook(payload, sigHeader)
	if err != nil {
		return err
	}
	if ev.Type != checkout.EventSessionCompleted {
		return nil
	}
	if w.dedup != nil {
		if seen, err := w.dedup.Seen(ctx, ev.ID); err == nil && seen {
			return nil
		}
	}

	p, err := w.store.FindByProviderRef(ctx, ev.Session.PaymentIntent)
	if errors.Is(err, ErrNotFound) {
		// Permanently unmatchable; acknowledge so the provider stops
		// redelivering.
		w.log.Warn("webhook for unknown payment",
			zap.String("event_id", ev.ID),
			zap.String("transaction_id", ev.Session.PaymentIntent),
		)
		return nil
	}
	if err != nil {
		return err
	}

	if _, err := w.confirm(ctx, p, &ev.Session, ev.ID); err != nil {
		return err
	}
	// Marked only now that the confirmation went through; a failure above
	// leaves the event unmarked so the provider's redelivery can land.
	if w.dedup != nil {
		if derr := w.dedup.Mark(ctx, ev.ID); derr != nil {
			w.log.Warn("dedup mark failed", zap.String("event_id", ev.ID), zap.Error(derr))
		}
	}
	return nil
}

// confirm is the idempotent core both entry paths converge on. An unpaid
// session is an expected intermediate state, not an error.
func (w *Workflow) confirm(ctx context.Context, p *Payment, sess *checkout.Session, eventID string) (*Confirmation, error) {
	if sess.PaymentStatus != checkout.SessionPaid {
		return &Confirmation{Completed: false, PaymentID: p.ID, Status: p.Status}, nil
	}

	// The session retrieved at confirmation time is the canonical source for
	// the realized payment method, not whatever was cached at link creation.
	method := ""
	if len(sess.PaymentMethodTypes) > 0 {
		method = sess.PaymentMethodTypes[0]
	}
	meta := map[string]string{MetaPaymentStatus: sess.PaymentStatus}
	if eventID != "" {
		meta[MetaEventID] = eventID
	}
	for k, v := range sess.Metadata {
		meta[k] = v
	}

	var applied bool
	err := w.retryConflict(func() error {
		var cerr error
		applied, cerr = w.store.Complete(ctx, p.ID, method, meta)
		return cerr
	})
	if err != nil {
		return nil, err
	}

	if applied {
		w.emit.Emit(events.EventPaymentCompleted, p.OrderID, events.PaymentCompletedPayload{
			PaymentID:     p.ID,
			OrderID:       p.OrderID,
			AmountCents:   p.AmountCents,
			Currency:      p.Currency,
			PaymentMethod: method,
		})
		w.emit.Emit(events.EventOrderCompleted, p.OrderID, events.OrderCompletedPayload{
			OrderID:   p.OrderID,
			PaymentID: p.ID,
		})
		w.log.Info("payment completed",
			zap.String("order_id", p.OrderID),
			zap.String("payment_id", p.ID),
			zap.String("payment_method", method),
		)
	}
	return &Confirmation{Completed: true, PaymentID: p.ID, Status: StatusCompleted}, nil
}

func (w *Workflow) retryConflict(fn func() error) error {
	err := fn()
	if postgres.IsConflict(err) {
		w.log.Warn("persistence conflict, retrying once", zap.Error(err))
		time.Sleep(conflictBackoff)
		err = fn()
	}
	return err
}
