package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key layout. Everything lives under a single prefix so the store can share
// a Redis instance.
const (
	keyPrefix   = "atwood:"
	itemsKey    = keyPrefix + "items"
	metaKey     = keyPrefix + "items:__meta__"
	emailsKey   = keyPrefix + "emails"
	pushIndex   = keyPrefix + "push"
	pushKeyFmt  = keyPrefix + "push:%s"
	dialTimeout = 5 * time.Second
)

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  dialTimeout,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("Connected to Redis", "addr", addr)

	return client, nil
}

func pushKey(id string) string {
	return fmt.Sprintf(pushKeyFmt, id)
}
