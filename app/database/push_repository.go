package database

import (
	"context"
	"fmt"
	"time"
)

var _ PushRepository = (*SQLPushRepository)(nil)

// SQLPushRepository stores web-push subscriptions. Expiry is passive: expired
// rows are hidden from reads and removed by PurgeExpired.
type SQLPushRepository struct {
	db *DB
}

func NewPushRepository(db *DB) *SQLPushRepository {
	return &SQLPushRepository{db: db}
}

func (r *SQLPushRepository) UpsertSubscription(ctx context.Context, sub PushSubscription) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO push_subscriptions (subscription_id, subscription, ttl)
		VALUES (?, ?, ?)
		ON CONFLICT (subscription_id) DO UPDATE SET
			subscription = excluded.subscription,
			ttl = excluded.ttl
	`, sub.ID, string(sub.Payload), sub.ExpiresAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert push subscription: %w", err)
	}
	return nil
}

func (r *SQLPushRepository) DeleteSubscription(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE subscription_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete push subscription: %w", err)
	}
	return nil
}

func (r *SQLPushRepository) ListSubscriptions(ctx context.Context, now time.Time) ([]PushSubscription, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT subscription_id, subscription, ttl
		FROM push_subscriptions
		WHERE ttl > ?
		ORDER BY subscription_id
	`, now.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to list push subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []PushSubscription
	for rows.Next() {
		var (
			sub     PushSubscription
			payload string
			ttl     int64
		)
		if err := rows.Scan(&sub.ID, &payload, &ttl); err != nil {
			return nil, fmt.Errorf("failed to scan push subscription row: %w", err)
		}
		sub.Payload = []byte(payload)
		sub.ExpiresAt = time.Unix(ttl, 0).UTC()
		subs = append(subs, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating push subscription rows: %w", err)
	}

	return subs, nil
}

func (r *SQLPushRepository) CountSubscriptions(ctx context.Context, now time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM push_subscriptions WHERE ttl > ?`, now.Unix()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count push subscriptions: %w", err)
	}
	return count, nil
}

func (r *SQLPushRepository) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE ttl <= ?`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired push subscriptions: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read purge result: %w", err)
	}

	return int(affected), nil
}
