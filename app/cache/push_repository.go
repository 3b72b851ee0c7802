package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/svdberg/atwood-monitor/app/database"
)

var _ database.PushRepository = (*PushRepository)(nil)

// PushRepository stores one key per subscription with EXPIREAT set to the
// subscription ttl, plus a set of ids used for scans. Ids whose key has
// expired are skipped on read and removed from the set by PurgeExpired.
type PushRepository struct {
	client *redis.Client
}

type pushRecord struct {
	Subscription json.RawMessage `json:"subscription"`
	TTL          int64           `json:"ttl"`
}

func NewPushRepository(client *redis.Client) *PushRepository {
	return &PushRepository{client: client}
}

func (r *PushRepository) UpsertSubscription(ctx context.Context, sub database.PushSubscription) error {
	data, err := json.Marshal(pushRecord{Subscription: sub.Payload, TTL: sub.ExpiresAt.Unix()})
	if err != nil {
		return fmt.Errorf("failed to encode push subscription: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, pushKey(sub.ID), data, 0)
		pipe.ExpireAt(ctx, pushKey(sub.ID), sub.ExpiresAt)
		pipe.SAdd(ctx, pushIndex, sub.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to upsert push subscription: %w", err)
	}
	return nil
}

func (r *PushRepository) DeleteSubscription(ctx context.Context, id string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, pushKey(id))
		pipe.SRem(ctx, pushIndex, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete push subscription: %w", err)
	}
	return nil
}

func (r *PushRepository) ListSubscriptions(ctx context.Context, now time.Time) ([]database.PushSubscription, error) {
	ids, err := r.client.SMembers(ctx, pushIndex).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list push subscriptions: %w", err)
	}

	subs := make([]database.PushSubscription, 0, len(ids))
	for _, id := range ids {
		sub, err := r.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if sub == nil || sub.Expired(now) {
			continue
		}
		subs = append(subs, *sub)
	}

	return subs, nil
}

func (r *PushRepository) CountSubscriptions(ctx context.Context, now time.Time) (int, error) {
	subs, err := r.ListSubscriptions(ctx, now)
	if err != nil {
		return 0, err
	}
	return len(subs), nil
}

// PurgeExpired removes index entries whose key Redis has already expired,
// and deletes records whose ttl has passed but whose key is still present.
func (r *PushRepository) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	ids, err := r.client.SMembers(ctx, pushIndex).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list push subscriptions: %w", err)
	}

	purged := 0
	for _, id := range ids {
		sub, err := r.load(ctx, id)
		if err != nil {
			return purged, err
		}
		if sub != nil && !sub.Expired(now) {
			continue
		}
		if err := r.DeleteSubscription(ctx, id); err != nil {
			return purged, err
		}
		purged++
	}

	return purged, nil
}

func (r *PushRepository) load(ctx context.Context, id string) (*database.PushSubscription, error) {
	data, err := r.client.Get(ctx, pushKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get push subscription %s: %w", id, err)
	}

	var record pushRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode push subscription %s: %w", id, err)
	}

	return &database.PushSubscription{
		ID:        id,
		Payload:   []byte(record.Subscription),
		ExpiresAt: time.Unix(record.TTL, 0).UTC(),
	}, nil
}
