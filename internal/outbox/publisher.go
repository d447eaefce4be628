package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	notificationsQueue = "notifications"
	dedupeTTL          = 24 * time.Hour
)

// Publisher delivers lifecycle events to external consumers.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// RedisPublisher pushes events onto a redis list, the same queue shape the
// email pipeline uses. A SETNX dedupe key keyed by (entity, new status)
// keeps at-least-once redelivery idempotent for consumers.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, evt Event) error {
	key := fmt.Sprintf("notify:%s:%d:%s", evt.EntityType, evt.EntityID, evt.NewStatus)
	set, err := p.client.SetNX(ctx, key, evt.EventID, dedupeTTL).Result()
	if err != nil {
		return fmt.Errorf("dedupe check: %w", err)
	}
	if !set {
		// Already delivered for this (entity, status); redelivery is a no-op.
		return nil
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.client.LPush(ctx, notificationsQueue, data).Err(); err != nil {
		return fmt.Errorf("queue event: %w", err)
	}
	return nil
}
