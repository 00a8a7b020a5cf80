// Package statuscache keeps the Redis order-status cache in step with the
// event stream so status reads stay fast after completion.
package statuscache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/hendraw/partshub/internal/events"
	kafkax "github.com/hendraw/partshub/internal/kafka"
	"github.com/hendraw/partshub/internal/orders"
	"github.com/hendraw/partshub/internal/redisx"
)

type Service struct {
	Redis *redis.Client
	Log   *zap.Logger
}

// HandleOrderCompleted is installed as the consumer handler for the
// order.completed topic.
func (s *Service) HandleOrderCompleted(ctx context.Context, m kafkago.Message) error {
	var env events.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != events.EventOrderCompleted {
		return nil
	}

	// Dedup by event id; a replayed event would only rewrite the same value,
	// so a dedup miss is harmless.
	dkey := fmt.Sprintf(redisx.KeyDedup, "statuscache", env.EventID)
	if seen, _ := redisx.Exists(ctx, s.Redis, dkey); seen {
		return nil
	}

	p, err := kafkax.UnwrapPayload[events.OrderCompletedPayload](env.Payload)
	if err != nil {
		return err
	}

	key := fmt.Sprintf(redisx.KeyOrderStatus, p.OrderID)
	body, _ := json.Marshal(map[string]any{"status": orders.StatusCompleted})
	if err := s.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err(); err != nil {
		return err
	}
	// Marked only after the cache write so a failed event stays replayable.
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	s.Log.Info("order status cached",
		zap.String("order_id", p.OrderID),
		zap.String("payment_id", p.PaymentID),
	)
	return nil
}
