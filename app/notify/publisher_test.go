package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svdberg/atwood-monitor/app/feed"
)

type published struct {
	topic   string
	payload []byte
}

type fakeBus struct {
	failTopic string
	sent      []published
}

func (b *fakeBus) Publish(_ context.Context, topic string, payload []byte) error {
	if topic == b.failTopic {
		return errors.New("broker unavailable")
	}
	b.sent = append(b.sent, published{topic: topic, payload: payload})
	return nil
}

func TestPublisherPublish(t *testing.T) {
	bus := &fakeBus{}
	publisher := NewPublisher(bus, "New Blog Post!", "notifications", "web-notifications")

	publisher.Publish(context.Background(), feed.Item{ID: "p1", Title: "Prybaby", URL: "https://example.com/p1"})

	require.Len(t, bus.sent, 2)
	assert.Equal(t, "notifications", bus.sent[0].topic)
	assert.Equal(t, "web-notifications", bus.sent[1].topic)
	assert.JSONEq(t, `{"title":"New Blog Post!","body":"Prybaby","url":"https://example.com/p1"}`, string(bus.sent[0].payload))

	event, err := DecodeEvent(bus.sent[1].payload)
	require.NoError(t, err)
	assert.Equal(t, Event{Title: "New Blog Post!", Body: "Prybaby", URL: "https://example.com/p1"}, event)
}

func TestPublisherSwallowsErrors(t *testing.T) {
	bus := &fakeBus{failTopic: "notifications"}
	publisher := NewPublisher(bus, "New Blog Post!", "notifications", "web-notifications")

	assert.NotPanics(t, func() {
		publisher.Publish(context.Background(), feed.Item{ID: "p1", Title: "Prybaby"})
	})

	require.Len(t, bus.sent, 1, "a failing topic does not block the others")
	assert.Equal(t, "web-notifications", bus.sent[0].topic)
}

func TestDecodeEventInvalid(t *testing.T) {
	_, err := DecodeEvent([]byte("not json"))
	assert.Error(t, err)
}
