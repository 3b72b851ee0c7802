package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/svdberg/atwood-monitor/app/database"
	"github.com/svdberg/atwood-monitor/app/feed"
)

var _ database.ItemRepository = (*ItemRepository)(nil)

// ItemRepository keeps items in one hash keyed by post id and the run
// metadata in a separate key, so HLEN never counts the metadata.
type ItemRepository struct {
	client *redis.Client
}

func NewItemRepository(client *redis.Client) *ItemRepository {
	return &ItemRepository{client: client}
}

func (r *ItemRepository) IsEmpty(ctx context.Context) (bool, error) {
	n, err := r.client.HLen(ctx, itemsKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check items: %w", err)
	}
	return n == 0, nil
}

func (r *ItemRepository) GetItem(ctx context.Context, id string) (*feed.Item, error) {
	data, err := r.client.HGet(ctx, itemsKey, id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item %s: %w", id, err)
	}

	var item feed.Item
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("failed to decode item %s: %w", id, err)
	}
	return &item, nil
}

func (r *ItemRepository) SaveItem(ctx context.Context, item feed.Item) error {
	if item.ID == database.MetaKey {
		return database.ErrReservedID
	}

	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to encode item %s: %w", item.ID, err)
	}

	if err := r.client.HSet(ctx, itemsKey, item.ID, data).Err(); err != nil {
		return fmt.Errorf("failed to save item %s: %w", item.ID, err)
	}
	return nil
}

func (r *ItemRepository) SaveMetadata(ctx context.Context, meta feed.RunMetadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	if err := r.client.Set(ctx, metaKey, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}
	return nil
}

func (r *ItemRepository) GetMetadata(ctx context.Context) (*feed.RunMetadata, error) {
	data, err := r.client.Get(ctx, metaKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata: %w", err)
	}

	var meta feed.RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return &meta, nil
}
