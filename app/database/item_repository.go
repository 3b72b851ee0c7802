package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/svdberg/atwood-monitor/app/feed"
)

var _ ItemRepository = (*SQLItemRepository)(nil)

// SQLItemRepository handles database operations for feed items and the run
// metadata record.
type SQLItemRepository struct {
	db *DB
}

func NewItemRepository(db *DB) *SQLItemRepository {
	return &SQLItemRepository{db: db}
}

func (r *SQLItemRepository) IsEmpty(ctx context.Context) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM items LIMIT 1`).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check items: %w", err)
	}
	return false, nil
}

func (r *SQLItemRepository) GetItem(ctx context.Context, id string) (*feed.Item, error) {
	var (
		item      feed.Item
		published string
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT post_id, title, url, published_at, image_url, sold
		FROM items
		WHERE post_id = ?
	`, id).Scan(&item.ID, &item.Title, &item.URL, &published, &item.ImageURL, &item.Sold)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	if item.Published, err = parseTime(published); err != nil {
		return nil, err
	}

	return &item, nil
}

// SaveItem stores an item, replacing any previous record with the same id.
func (r *SQLItemRepository) SaveItem(ctx context.Context, item feed.Item) error {
	if item.ID == MetaKey {
		return ErrReservedID
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO items (post_id, title, url, published_at, image_url, sold)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (post_id) DO UPDATE SET
			title = excluded.title,
			url = excluded.url,
			published_at = excluded.published_at,
			image_url = excluded.image_url,
			sold = excluded.sold
	`, item.ID, item.Title, item.URL, formatTime(item.Published), item.ImageURL, item.Sold)

	if err != nil {
		return fmt.Errorf("failed to save item: %w", err)
	}

	return nil
}

func (r *SQLItemRepository) SaveMetadata(ctx context.Context, meta feed.RunMetadata) error {
	snapshot, err := json.Marshal(meta.LastSeenPost)
	if err != nil {
		return fmt.Errorf("failed to encode last seen post: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO run_metadata (post_id, last_run_time, last_seen_post)
		VALUES (?, ?, ?)
		ON CONFLICT (post_id) DO UPDATE SET
			last_run_time = excluded.last_run_time,
			last_seen_post = excluded.last_seen_post
	`, MetaKey, formatTime(meta.LastRunTime), string(snapshot))

	if err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}

	return nil
}

func (r *SQLItemRepository) GetMetadata(ctx context.Context) (*feed.RunMetadata, error) {
	var lastRun, snapshot string

	err := r.db.QueryRowContext(ctx, `
		SELECT last_run_time, last_seen_post
		FROM run_metadata
		WHERE post_id = ?
	`, MetaKey).Scan(&lastRun, &snapshot)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata: %w", err)
	}

	var meta feed.RunMetadata
	if meta.LastRunTime, err = parseTime(lastRun); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(snapshot), &meta.LastSeenPost); err != nil {
		return nil, fmt.Errorf("failed to decode last seen post: %w", err)
	}

	return &meta, nil
}
