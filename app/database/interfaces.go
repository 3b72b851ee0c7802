package database

import (
	"context"
	"errors"
	"time"

	"github.com/svdberg/atwood-monitor/app/feed"
)

// MetaKey is the reserved record id holding the singleton RunMetadata. No
// feed item may use it.
const MetaKey = "__meta__"

var ErrReservedID = errors.New("item id is reserved for run metadata")

type ItemRepository interface {
	// IsEmpty reports whether no item has been stored yet. The metadata
	// record does not count as an item.
	IsEmpty(ctx context.Context) (bool, error)
	GetItem(ctx context.Context, id string) (*feed.Item, error)
	SaveItem(ctx context.Context, item feed.Item) error

	SaveMetadata(ctx context.Context, meta feed.RunMetadata) error
	GetMetadata(ctx context.Context) (*feed.RunMetadata, error)
}

type EmailRepository interface {
	UpsertEmail(ctx context.Context, email string) error
	DeleteEmail(ctx context.Context, email string) error
	ListEmails(ctx context.Context) ([]string, error)
	CountEmails(ctx context.Context) (int, error)
}

type PushRepository interface {
	UpsertSubscription(ctx context.Context, sub PushSubscription) error
	DeleteSubscription(ctx context.Context, id string) error
	// ListSubscriptions returns every subscription that has not expired at now.
	ListSubscriptions(ctx context.Context, now time.Time) ([]PushSubscription, error)
	CountSubscriptions(ctx context.Context, now time.Time) (int, error)
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}
