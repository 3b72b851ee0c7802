package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/svdberg/atwood-monitor/app/feed"
)

// Event is the fan-out payload broadcast when a new item is detected.
type Event struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

func DecodeEvent(payload []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return Event{}, fmt.Errorf("failed to decode event: %w", err)
	}
	return event, nil
}

type BusInterface interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Publisher forwards new items to every configured topic.
type Publisher struct {
	bus    BusInterface
	title  string
	topics []string
}

func NewPublisher(bus BusInterface, title string, topics ...string) *Publisher {
	return &Publisher{bus: bus, title: title, topics: topics}
}

// Publish never fails: a broken fan-out channel must not stop the detector
// from recording the run.
func (p *Publisher) Publish(ctx context.Context, item feed.Item) {
	payload, err := json.Marshal(Event{Title: p.title, Body: item.Title, URL: item.URL})
	if err != nil {
		slog.Error("Failed to encode notification", "post_id", item.ID, "error", err)
		return
	}

	for _, topic := range p.topics {
		if err := p.bus.Publish(ctx, topic, payload); err != nil {
			slog.Error("Failed to send notification", "topic", topic, "post_id", item.ID, "error", err)
			continue
		}
		slog.Info("Notification sent", "topic", topic, "post_id", item.ID, "title", item.Title)
	}
}
