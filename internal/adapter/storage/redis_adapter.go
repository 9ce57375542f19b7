package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/craftly/cart-engine/internal/core/domain"
)

const (
	snapshotKeyPrefix = "cart:snapshot:"
	changeChanPrefix  = "cart:changed:"
	noticeKeyPrefix   = "cart:notice:"

	snapshotTTL = 7 * 24 * time.Hour
	noticeTTL   = 15 * time.Minute
)

// RedisAdapter is the session-local snapshot cache, the cross-session
// change signal, and the notice deduper.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) Load(ctx context.Context, cartID string) (*domain.CartSnapshot, error) {
	raw, err := r.client.Get(ctx, snapshotKeyPrefix+cartID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap domain.CartSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

func (r *RedisAdapter) Store(ctx context.Context, cartID string, snap domain.CartSnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return r.client.Set(ctx, snapshotKeyPrefix+cartID, raw, snapshotTTL).Err()
}

func (r *RedisAdapter) PublishChange(ctx context.Context, cartID string) error {
	return r.client.Publish(ctx, changeChanPrefix+cartID, time.Now().UnixNano()).Err()
}

// WatchChanges blocks delivering change signals until ctx ends.
func (r *RedisAdapter) WatchChanges(ctx context.Context, cartID string, onChange func()) error {
	sub := r.client.Subscribe(ctx, changeChanPrefix+cartID)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-ch:
			if !ok {
				return nil
			}
			onChange()
		}
	}
}

// FirstNotice reports whether key was seen for the first time inside
// the dedup window, using SetNX the same way idempotency keys do.
func (r *RedisAdapter) FirstNotice(ctx context.Context, key string) (bool, error) {
	return r.client.SetNX(ctx, noticeKeyPrefix+key, 1, noticeTTL).Result()
}
