package api

import (
	"context"

	"github.com/svdberg/atwood-monitor/app/database"
	"github.com/svdberg/atwood-monitor/app/subscribers"
)

type EmailRegistryInterface interface {
	Register(ctx context.Context, email string) error
	Remove(ctx context.Context, email string) error
}

type PushRegistryInterface interface {
	Register(ctx context.Context, payload []byte) (string, error)
	Remove(ctx context.Context, id string) error
}

var (
	_ EmailRegistryInterface = (*subscribers.EmailRegistry)(nil)
	_ PushRegistryInterface  = (*subscribers.PushRegistry)(nil)
)

type Handler struct {
	itemRepo       database.ItemRepository
	emailRepo      database.EmailRepository
	pushRepo       database.PushRepository
	emails         EmailRegistryInterface
	pushes         PushRegistryInterface
	vapidPublicKey string
}

type subscribeRequest struct {
	Email string `json:"email"`
}

type deleteRequest struct {
	Email          string `json:"email"`
	SubscriptionID string `json:"subscription_id"`
}
