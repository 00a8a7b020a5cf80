package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hendraw/partshub/internal/checkout"
	"github.com/hendraw/partshub/internal/orders"
	"github.com/hendraw/partshub/internal/postgres"
)

// ---- fakes ----

type memOrders struct {
	mu sync.Mutex
	m  map[string]*orders.Order
}

func newMemOrders() *memOrders { return &memOrders{m: map[string]*orders.Order{}} }

func (s *memOrders) put(o *orders.Order) { s.m[o.ID] = o }

func (s *memOrders) Get(ctx context.Context, id string) (*orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.m[id]
	if !ok {
		return nil, orders.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *memOrders) statusOf(id string) orders.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[id].Status
}

// memPayments mirrors the conditional Complete transition of the pgx store:
// payment and order flip together, only from pending, under one lock.
type memPayments struct {
	mu          sync.Mutex
	list        []*Payment
	ords        *memOrders
	completions int

	conflictOnComplete bool  // fail the next Complete with a retryable conflict
	failComplete       error // returned once by the next Complete
}

func newMemPayments(o *memOrders) *memPayments { return &memPayments{ords: o} }

func (s *memPayments) CreatePending(ctx context.Context, p *Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.list = append(s.list, &cp)
	return nil
}

func (s *memPayments) LatestByOrder(ctx context.Context, orderID string) (*Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.list) - 1; i >= 0; i-- {
		if s.list[i].OrderID == orderID {
			cp := *s.list[i]
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memPayments) FindByProviderRef(ctx context.Context, ref string) (*Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.list {
		if p.TransactionID == ref {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memPayments) Complete(ctx context.Context, paymentID, method string, metadata map[string]string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conflictOnComplete {
		s.conflictOnComplete = false
		return false, postgres.ErrConflict
	}
	if s.failComplete != nil {
		err := s.failComplete
		s.failComplete = nil
		return false, err
	}
	for _, p := range s.list {
		if p.ID != paymentID {
			continue
		}
		if p.Status != StatusPending {
			return false, nil
		}
		p.Status = StatusCompleted
		p.Method = method
		if p.Metadata == nil {
			p.Metadata = map[string]string{}
		}
		for k, v := range metadata {
			p.Metadata[k] = v
		}
		s.completions++
		if o, ok := s.ords.m[p.OrderID]; ok && o.Status == orders.StatusPending {
			o.Status = orders.StatusCompleted
		}
		return true, nil
	}
	return false, ErrNotFound
}

func (s *memPayments) byID(id string) *Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.list {
		if p.ID == id {
			cp := *p
			return &cp
		}
	}
	return nil
}

// fakeGateway accepts "valid" as the only good signature; the event body is
// the payload itself.
type fakeGateway struct {
	mu        sync.Mutex
	seq       int
	sessions  map[string]*checkout.Session
	createErr error
}

func newFakeGateway() *fakeGateway { return &fakeGateway{sessions: map[string]*checkout.Session{}} }

func (g *fakeGateway) CreateSession(ctx context.Context, orderID string, amountCents int64, currency string) (*checkout.Session, error) {
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	s := &checkout.Session{
		ID:            fmt.Sprintf("cs_%d", g.seq),
		URL:           fmt.Sprintf("https://pay.example.com/cs_%d", g.seq),
		PaymentIntent: fmt.Sprintf("pi_%d", g.seq),
		PaymentStatus: checkout.SessionUnpaid,
		AmountTotal:   amountCents,
		Currency:      currency,
	}
	g.sessions[s.ID] = s
	return s, nil
}

func (g *fakeGateway) RetrieveSession(ctx context.Context, sessionID string) (*checkout.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.sessions[sessionID]
	if !ok {
		return nil, checkout.ErrUnavailable
	}
	cp := *s
	return &cp, nil
}

func (g *fakeGateway) VerifyWebhook(payload []byte, sigHeader string) (*checkout.Event, error) {
	if sigHeader != "valid" {
		return nil, checkout.ErrInvalidSignature
	}
	var ev checkout.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, checkout.ErrInvalidSignature
	}
	return &ev, nil
}

func (g *fakeGateway) markPaid(sessionID, method string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.sessions[sessionID]
	s.PaymentStatus = checkout.SessionPaid
	s.PaymentMethodTypes = []string{method}
}

// ---- fixtures ----

// pendingOrder matches the worked example: 2 x 50.00 + 1 x 30.00 = 130.00.
func pendingOrder(id string) *orders.Order {
	return &orders.Order{
		ID:     id,
		Status: orders.StatusPending,
		Items: []orders.LineItem{
			{ID: id + "-1", OrderID: id, PartID: "part-a", Qty: 2, TotalCents: 10000},
			{ID: id + "-2", OrderID: id, PartID: "part-b", Qty: 1, TotalCents: 3000},
		},
	}
}

func setup(t *testing.T) (*Workflow, *memOrders, *memPayments, *fakeGateway) {
	t.Helper()
	ords := newMemOrders()
	pays := newMemPayments(ords)
	gw := newFakeGateway()
	w := NewWorkflow(pays, ords, gw, "usd")
	return w, ords, pays, gw
}

func webhookBody(t *testing.T, ev *checkout.Event) []byte {
	t.Helper()
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	return b
}

// ---- link creation ----

func TestCreateLink(t *testing.T) {
	w, ords, pays, _ := setup(t)
	ords.put(pendingOrder("order-1"))

	link, err := w.CreateLink(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/cs_1", link.URL)

	p := pays.byID(link.PaymentID)
	require.NotNil(t, p)
	assert.Equal(t, StatusPending, p.Status)
	assert.Equal(t, int64(13000), p.AmountCents)
	assert.Equal(t, "usd", p.Currency)
	assert.Equal(t, "pi_1", p.TransactionID)
	assert.Equal(t, "cs_1", p.Metadata[MetaSessionID])
}

func TestCreateLink_OrderAlreadyCompleted(t *testing.T) {
	w, ords, pays, _ := setup(t)
	o := pendingOrder("order-1")
	o.Status = orders.StatusCompleted
	ords.put(o)

	_, err := w.CreateLink(context.Background(), "order-1")
	assert.ErrorIs(t, err, ErrOrderCompleted)
	assert.Empty(t, pays.list)
}

func TestCreateLink_EmptyOrder(t *testing.T) {
	w, ords, _, _ := setup(t)
	ords.put(&orders.Order{ID: "order-1", Status: orders.StatusPending})

	_, err := w.CreateLink(context.Background(), "order-1")
	assert.ErrorIs(t, err, ErrEmptyOrder)
}

func TestCreateLink_OrderMissing(t *testing.T) {
	w, _, _, _ := setup(t)
	_, err := w.CreateLink(context.Background(), "nope")
	assert.ErrorIs(t, err, orders.ErrNotFound)
}

func TestCreateLink_GatewayFailurePersistsNothing(t *testing.T) {
	w, ords, pays, gw := setup(t)
	ords.put(pendingOrder("order-1"))
	gw.createErr = checkout.ErrUnavailable

	_, err := w.CreateLink(context.Background(), "order-1")
	assert.ErrorIs(t, err, ErrGateway)
	assert.Empty(t, pays.list)
}

func TestCreateLink_SecondAttemptAfterFirstUnpaid(t *testing.T) {
	w, ords, pays, _ := setup(t)
	ords.put(pendingOrder("order-1"))

	first, err := w.CreateLink(context.Background(), "order-1")
	require.NoError(t, err)
	second, err := w.CreateLink(context.Background(), "order-1")
	require.NoError(t, err)
	require.NotEqual(t, first.PaymentID, second.PaymentID)

	// the latest attempt is the one reconciliation works on
	latest, err := pays.LatestByOrder(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, second.PaymentID, latest.ID)
}

// ---- synchronous verification ----

func TestVerify_UnpaidSessionChangesNothing(t *testing.T) {
	w, ords, pays, _ := setup(t)
	ords.put(pendingOrder("order-1"))
	link, err := w.CreateLink(context.Background(), "order-1")
	require.NoError(t, err)

	conf, err := w.Verify(context.Background(), "order-1")
	require.NoError(t, err)
	assert.False(t, conf.Completed)
	assert.Equal(t, StatusPending, pays.byID(link.PaymentID).Status)
	assert.Equal(t, orders.StatusPending, ords.statusOf("order-1"))
}

func TestVerify_PaidCompletesPaymentAndOrder(t *testing.T) {
	w, ords, pays, gw := setup(t)
	ords.put(pendingOrder("order-1"))
	link, err := w.CreateLink(context.Background(), "order-1")
	require.NoError(t, err)
	gw.markPaid("cs_1", "card")

	conf, err := w.Verify(context.Background(), "order-1")
	require.NoError(t, err)
	assert.True(t, conf.Completed)

	p := pays.byID(link.PaymentID)
	assert.Equal(t, StatusCompleted, p.Status)
	assert.Equal(t, "card", p.Method)
	assert.Equal(t, int64(13000), p.AmountCents)
	assert.Equal(t, orders.StatusCompleted, ords.statusOf("order-1"))
	assert.Equal(t, 1, pays.completions)
}

func TestVerify_IsIdempotent(t *testing.T) {
	w, ords, pays, gw := setup(t)
	ords.put(pendingOrder("order-1"))
	_, err := w.CreateLink(context.Background(), "order-1")
	require.NoError(t, err)
	gw.markPaid("cs_1", "card")

	for i := 0; i < 3; i++ {
		conf, err := w.Verify(context.Background(), "order-1")
		require.NoError(t, err)
		assert.True(t, conf.Completed)
	}
	assert.Equal(t, 1, pays.completions)
	assert.Equal(t, orders.StatusCompleted, ords.statusOf("order-1"))
}

func TestVerify_NoPaymentAttempt(t *testing.T) {
	w, ords, _, _ := setup(t)
	ords.put(pendingOrder("order-1"))

	_, err := w.Verify(context.Background(), "order-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVerify_RetriesConflictOnce(t *testing.T) {
	w, ords, pays, gw := setup(t)
	ords.put(pendingOrder("order-1"))
	_, err := w.CreateLink(context.Background(), "order-1")
	require.NoError(t, err)
	gw.markPaid("cs_1", "card")
	pays.conflictOnComplete = true

	conf, err := w.Verify(context.Background(), "order-1")
	require.NoError(t, err)
	assert.True(t, conf.Completed)
	assert.Equal(t, 1, pays.completions)
}

// ---- webhook ----

func paidEvent(sessionID, intent string) *checkout.Event {
	return &checkout.Event{
		ID:   "evt_" + sessionID,
		Type: checkout.EventSessionCompleted,
		Session: checkout.Session{
			ID:                 sessionID,
			PaymentIntent:      intent,
			PaymentStatus:      checkout.SessionPaid,
			PaymentMethodTypes: []string{"card"},
		},
	}
}

func TestWebhook_InvalidSignatureIsRejectedWithoutStateChange(t *testing.T) {
	w, ords, pays, _ := setup(t)
	ords.put(pendingOrder("order-1"))
	link, err := w.CreateLink(context.Background(), "order-1")
	require.NoError(t, err)

	body := webhookBody(t, paidEvent("cs_1", "pi_1"))
	err = w.HandleWebhook(context.Background(), body, "tampered")
	assert.ErrorIs(t, err, checkout.ErrInvalidSignature)

	assert.Equal(t, StatusPending, pays.byID(link.PaymentID).Status)
	assert.Equal(t, orders.StatusPending, ords.statusOf("order-1"))
}

func TestWebhook_UnknownPaymentIsAcknowledged(t *testing.T) {
	w, _, _, _ := setup(t)
	body := webhookBody(t, paidEvent("cs_404", "pi_404"))
	assert.NoError(t, w.HandleWebhook(context.Background(), body, "valid"))
}

func TestWebhook_UnpaidSessionIsAcknowledged(t *testing.T) {
	w, ords, pays, _ := setup(t)
	ords.put(pendingOrder("order-1"))
	link, err := w.CreateLink(context.Background(), "order-1")
	require.NoError(t, err)

	ev := paidEvent("cs_1", "pi_1")
	ev.Session.PaymentStatus = checkout.SessionUnpaid
	require.NoError(t, w.HandleWebhook(context.Background(), webhookBody(t, ev), "valid"))
	assert.Equal(t, StatusPending, pays.byID(link.PaymentID).Status)
}

func TestWebhook_IgnoresOtherEventTypes(t *testing.T) {
	w, ords, pays, _ := setup(t)
	ords.put(pendingOrder("order-1"))
	link, err := w.CreateLink(context.Background(), "order-1")
	require.NoError(t, err)

	ev := paidEvent("cs_1", "pi_1")
	ev.Type = "payment_intent.created"
	require.NoError(t, w.HandleWebhook(context.Background(), webhookBody(t, ev), "valid"))
	assert.Equal(t, StatusPending, pays.byID(link.PaymentID).Status)
}

func TestWebhook_PaidCompletesOnceAcrossRedeliveries(t *testing.T) {
	w, ords, pays, _ := setup(t)
	ords.put(pendingOrder("order-1"))
	link, err := w.CreateLink(context.Background(), "order-1")
	require.NoError(t, err)

	body := webhookBody(t, paidEvent("cs_1", "pi_1"))
	for i := 0; i < 3; i++ {
		require.NoError(t, w.HandleWebhook(context.Background(), body, "valid"))
	}

	p := pays.byID(link.PaymentID)
	assert.Equal(t, StatusCompleted, p.Status)
	assert.Equal(t, "card", p.Method)
	assert.Equal(t, "evt_cs_1", p.Metadata[MetaEventID])
	assert.Equal(t, orders.StatusCompleted, ords.statusOf("order-1"))
	assert.Equal(t, 1, pays.completions)
}

func TestWebhookAndVerify_RacingConfirmationsApplyOnce(t *testing.T) {
	w, ords, pays, gw := setup(t)
	ords.put(pendingOrder("order-1"))
	_, err := w.CreateLink(context.Background(), "order-1")
	require.NoError(t, err)
	gw.markPaid("cs_1", "card")

	body := webhookBody(t, paidEvent("cs_1", "pi_1"))
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			errs <- w.HandleWebhook(context.Background(), body, "valid")
		}()
		go func() {
			defer wg.Done()
			_, err := w.Verify(context.Background(), "order-1")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, 1, pays.completions)
	assert.Equal(t, orders.StatusCompleted, ords.statusOf("order-1"))
}

// ---- dedup ----

type memDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (d *memDeduper) Seen(ctx context.Context, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen[eventID], nil
}

func (d *memDeduper) Mark(ctx context.Context, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen == nil {
		d.seen = map[string]bool{}
	}
	d.seen[eventID] = true
	return nil
}

func TestWebhook_TransientFailureStaysRetryable(t *testing.T) {
	ords := newMemOrders()
	pays := newMemPayments(ords)
	gw := newFakeGateway()
	w := NewWorkflow(pays, ords, gw, "usd", WithDeduper(&memDeduper{}))

	ords.put(pendingOrder("order-1"))
	_, err := w.CreateLink(context.Background(), "order-1")
	require.NoError(t, err)

	body := webhookBody(t, paidEvent("cs_1", "pi_1"))
	pays.failComplete = errors.New("connection reset by peer")
	require.Error(t, w.HandleWebhook(context.Background(), body, "valid"))
	assert.Equal(t, 0, pays.completions)

	// the provider redelivers the same event after the 5xx; the deduper must
	// not have swallowed it
	require.NoError(t, w.HandleWebhook(context.Background(), body, "valid"))
	assert.Equal(t, 1, pays.completions)
	assert.Equal(t, orders.StatusCompleted, ords.statusOf("order-1"))
}

func TestWebhook_DeduperShortCircuitsRedelivery(t *testing.T) {
	ords := newMemOrders()
	pays := newMemPayments(ords)
	gw := newFakeGateway()
	w := NewWorkflow(pays, ords, gw, "usd", WithDeduper(&memDeduper{}))

	ords.put(pendingOrder("order-1"))
	_, err := w.CreateLink(context.Background(), "order-1")
	require.NoError(t, err)

	body := webhookBody(t, paidEvent("cs_1", "pi_1"))
	require.NoError(t, w.HandleWebhook(context.Background(), body, "valid"))
	require.NoError(t, w.HandleWebhook(context.Background(), body, "valid"))
	assert.Equal(t, 1, pays.completions)
}

func TestErrGatewayWrapsCause(t *testing.T) {
	w, ords, _, gw := setup(t)
	ords.put(pendingOrder("order-1"))
	cause := errors.New("connection refused")
	gw.createErr = cause

	_, err := w.CreateLink(context.Background(), "order-1")
	assert.ErrorIs(t, err, ErrGateway)
	assert.ErrorIs(t, err, cause)
}
