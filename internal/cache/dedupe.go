package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Deduper remembers webhook delivery ids so retried deliveries are processed once.
type Deduper struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewDeduper(client *redis.Client, ttl time.Duration) *Deduper {
	return &Deduper{Client: client, TTL: ttl}
}

func deliveryKey(source, deliveryID string) string {
	return fmt.Sprintf("webhook:%s:%s", source, deliveryID)
}

// Claim returns false when the delivery was already claimed.
func (d *Deduper) Claim(ctx context.Context, source, deliveryID string) (bool, error) {
	ok, err := d.Client.SetNX(ctx, deliveryKey(source, deliveryID), time.Now().UTC().Format(time.RFC3339), d.TTL).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s delivery %s: %w", source, deliveryID, err)
	}
	return ok, nil
}

// Release forgets a claim so the sender's retry is processed.
func (d *Deduper) Release(ctx context.Context, source, deliveryID string) error {
	if err := d.Client.Del(ctx, deliveryKey(source, deliveryID)).Err(); err != nil {
		return fmt.Errorf("release %s delivery %s: %w", source, deliveryID, err)
	}
	return nil
}

// NopDeduper claims everything.
type NopDeduper struct{}

func (NopDeduper) Claim(context.Context, string, string) (bool, error) { return true, nil }

func (NopDeduper) Release(context.Context, string, string) error { return nil }
