package payments

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/hendraw/partshub/internal/redisx"
)

// RedisDeduper remembers webhook event ids whose confirmation has been
// applied, so redeliveries are acknowledged without touching Postgres. The
// key is written by Mark after the transition committed, never before;
// failing open on a Redis error is fine here.
type RedisDeduper struct {
	Client *redis.Client
}

func (d *RedisDeduper) Seen(ctx context.Context, eventID string) (bool, error) {
	return redisx.Exists(ctx, d.Client, d.key(eventID))
}

func (d *RedisDeduper) Mark(ctx context.Context, eventID string) error {
	_, err := redisx.SetOnce(ctx, d.Client, d.key(eventID), redisx.TTLDedup)
	return err
}

func (d *RedisDeduper) key(eventID string) string {
	return fmt.Sprintf(redisx.KeyDedup, "webhook", eventID)
}
