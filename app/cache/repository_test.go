package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svdberg/atwood-monitor/app/database"
	"github.com/svdberg/atwood-monitor/app/feed"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	server := miniredis.RunT(t)
	client, err := NewClient(context.Background(), server.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return server, client
}

func TestNewClientUnreachable(t *testing.T) {
	server := miniredis.RunT(t)
	addr := server.Addr()
	server.Close()

	_, err := NewClient(context.Background(), addr)
	assert.Error(t, err)
}

func TestItemRepository(t *testing.T) {
	ctx := context.Background()
	_, client := newTestClient(t)
	repo := NewItemRepository(client)

	empty, err := repo.IsEmpty(ctx)
	require.NoError(t, err)
	assert.True(t, empty)

	require.NoError(t, repo.SaveMetadata(ctx, feed.RunMetadata{
		LastRunTime:  time.Date(2024, 5, 6, 14, 1, 0, 0, time.UTC),
		LastSeenPost: feed.Snapshot{Title: "A"},
	}))

	empty, err = repo.IsEmpty(ctx)
	require.NoError(t, err)
	assert.True(t, empty, "metadata is not an item")

	item := feed.Item{ID: "post-1", Title: "Prybaby", URL: "https://example.com/p1", Published: time.Date(2024, 5, 6, 14, 0, 0, 0, time.UTC)}
	require.NoError(t, repo.SaveItem(ctx, item))

	stored, err := repo.GetItem(ctx, "post-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, item.Title, stored.Title)
	assert.True(t, item.Published.Equal(stored.Published))

	missing, err := repo.GetItem(ctx, "post-2")
	require.NoError(t, err)
	assert.Nil(t, missing)

	meta, err := repo.GetMetadata(ctx)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, "A", meta.LastSeenPost.Title)

	assert.ErrorIs(t, repo.SaveItem(ctx, feed.Item{ID: database.MetaKey}), database.ErrReservedID)
}

func TestEmailRepository(t *testing.T) {
	ctx := context.Background()
	_, client := newTestClient(t)
	repo := NewEmailRepository(client)

	require.NoError(t, repo.UpsertEmail(ctx, "b@example.com"))
	require.NoError(t, repo.UpsertEmail(ctx, "a@example.com"))
	require.NoError(t, repo.UpsertEmail(ctx, "a@example.com"))

	count, err := repo.CountEmails(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	emails, err := repo.ListEmails(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, emails)

	require.NoError(t, repo.DeleteEmail(ctx, "a@example.com"))
	count, err = repo.CountEmails(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPushRepositoryTTL(t *testing.T) {
	ctx := context.Background()
	server, client := newTestClient(t)
	repo := NewPushRepository(client)

	now := time.Now().UTC().Truncate(time.Second)
	sub := database.PushSubscription{
		ID:        "abc",
		Payload:   []byte(`{"endpoint":"https://push.test/1","keys":{"p256dh":"k","auth":"a"}}`),
		ExpiresAt: now.Add(30 * 24 * time.Hour),
	}
	require.NoError(t, repo.UpsertSubscription(ctx, sub))
	require.NoError(t, repo.UpsertSubscription(ctx, sub))

	subs, err := repo.ListSubscriptions(ctx, now)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "abc", subs[0].ID)
	assert.JSONEq(t, string(sub.Payload), string(subs[0].Payload))
	assert.Equal(t, sub.ExpiresAt, subs[0].ExpiresAt)
	assert.True(t, server.TTL(pushKey("abc")) > 0)

	// Redis drops the key once the ttl passes.
	server.FastForward(31 * 24 * time.Hour)

	subs, err = repo.ListSubscriptions(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, subs)

	purged, err := repo.PurgeExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	members, err := client.SMembers(ctx, pushIndex).Result()
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestPushRepositoryDelete(t *testing.T) {
	ctx := context.Background()
	_, client := newTestClient(t)
	repo := NewPushRepository(client)
	now := time.Now()

	for _, id := range []string{"a", "b"} {
		require.NoError(t, repo.UpsertSubscription(ctx, database.PushSubscription{
			ID: id, Payload: []byte(`{"endpoint":"https://push.test/` + id + `"}`), ExpiresAt: now.Add(time.Hour),
		}))
	}

	require.NoError(t, repo.DeleteSubscription(ctx, "a"))

	count, err := repo.CountSubscriptions(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
