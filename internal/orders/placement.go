package orders

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hendraw/partshub/internal/events"
	"github.com/hendraw/partshub/internal/postgres"
)

// PlacementStore is the transactional boundary the workflow drives. The pgx
// Store implements it; tests substitute an in-memory one.
type PlacementStore interface {
	PlaceOrder(ctx context.Context, items []ItemRequest) (*Order, error)
}

const conflictBackoff = 50 * time.Millisecond

// Placement validates a request and creates the order atomically. Either
// every item's stock is reserved and the order lands in pending status, or
// nothing is persisted at all.
type Placement struct {
	store PlacementStore
	emit  events.Emitter
	log   *zap.Logger
}

func NewPlacement(store PlacementStore, emit events.Emitter, log *zap.Logger) *Placement {
	if emit == nil {
		emit = events.NopEmitter{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Placement{store: store, emit: emit, log: log}
}

func (p *Placement) Place(ctx context.Context, items []ItemRequest) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}
	for _, it := range items {
		if it.Qty < 1 {
			return nil, fmt.Errorf("%w: part %s", ErrInvalidQty, it.PartID)
		}
	}

	order, err := p.store.PlaceOrder(ctx, items)
	if postgres.IsConflict(err) {
		p.log.Warn("placement conflict, retrying once", zap.Error(err))
		time.Sleep(conflictBackoff)
		order, err = p.store.PlaceOrder(ctx, items)
	}
	if err != nil {
		return nil, err
	}

	lines := make([]events.ItemLine, 0, len(order.Items))
	for _, li := range order.Items {
		lines = append(lines, events.ItemLine{PartID: li.PartID, Qty: li.Qty, TotalCents: li.TotalCents})
	}
	p.emit.Emit(events.EventOrderCreated, order.ID, events.OrderCreatedPayload{
		OrderID:    order.ID,
		Items:      lines,
		TotalCents: order.TotalCents(),
	})
	p.log.Info("order placed",
		zap.String("order_id", order.ID),
		zap.Int("items", len(order.Items)),
		zap.Int64("total_cents", order.TotalCents()),
	)
	return order, nil
}
