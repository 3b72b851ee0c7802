package broker

import (
	"context"
	"errors"
)

// Topics fed by the event publisher. The email relay consumes
// TopicNotifications; the web-push engine consumes TopicWebNotifications.
const (
	TopicNotifications    = "notifications"
	TopicWebNotifications = "web-notifications"
)

var ErrClosed = errors.New("bus is closed")

// Handler processes one message. Messages are delivered at least once, so
// handlers must tolerate duplicates.
type Handler func(ctx context.Context, payload []byte) error

type Bus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	// Subscribe registers a handler; it must be called before Start.
	Subscribe(topic string, handler Handler)
	Start(ctx context.Context) error
	Close() error
}
