package cache

import (
	"context"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/svdberg/atwood-monitor/app/database"
)

var _ database.EmailRepository = (*EmailRepository)(nil)

type EmailRepository struct {
	client *redis.Client
}

func NewEmailRepository(client *redis.Client) *EmailRepository {
	return &EmailRepository{client: client}
}

func (r *EmailRepository) UpsertEmail(ctx context.Context, email string) error {
	if err := r.client.SAdd(ctx, emailsKey, email).Err(); err != nil {
		return fmt.Errorf("failed to upsert email subscriber: %w", err)
	}
	return nil
}

func (r *EmailRepository) DeleteEmail(ctx context.Context, email string) error {
	if err := r.client.SRem(ctx, emailsKey, email).Err(); err != nil {
		return fmt.Errorf("failed to delete email subscriber: %w", err)
	}
	return nil
}

func (r *EmailRepository) ListEmails(ctx context.Context) ([]string, error) {
	emails, err := r.client.SMembers(ctx, emailsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list email subscribers: %w", err)
	}
	sort.Strings(emails)
	return emails, nil
}

func (r *EmailRepository) CountEmails(ctx context.Context) (int, error) {
	n, err := r.client.SCard(ctx, emailsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count email subscribers: %w", err)
	}
	return int(n), nil
}
