package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	minBytes = 1
	maxBytes = 10e6
)

var _ Bus = (*KafkaBus)(nil)

// messageReader is the part of *kafka.Reader a consumer loop uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaBus publishes through a single writer and consumes every subscribed
// topic with its own consumer-group reader. Offsets are committed only after
// the handler returns without error.
type KafkaBus struct {
	brokers  []string
	groupID  string
	writer   *kafka.Writer
	handlers map[string][]Handler
	readers  []messageReader
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewKafkaBus(brokers []string, groupID string) *KafkaBus {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}

	slog.Info("Kafka producer initialized", "brokers", brokers)

	return &KafkaBus{
		brokers:  brokers,
		groupID:  groupID,
		writer:   writer,
		handlers: make(map[string][]Handler),
	}
}

func (b *KafkaBus) Publish(ctx context.Context, topic string, payload []byte) error {
	err := b.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Value: payload,
		Time:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	slog.Debug("Message published", "topic", topic, "bytes", len(payload))
	return nil
}

func (b *KafkaBus) Subscribe(topic string, handler Handler) {
	b.handlers[topic] = append(b.handlers[topic], handler)
}

func (b *KafkaBus) Start(ctx context.Context) error {
	ctx, b.cancel = context.WithCancel(ctx)

	for topic, handlers := range b.handlers {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:     b.brokers,
			Topic:       topic,
			GroupID:     b.groupID,
			MinBytes:    minBytes,
			MaxBytes:    maxBytes,
			MaxWait:     3 * time.Second,
			StartOffset: kafka.LastOffset,
		})
		b.readers = append(b.readers, reader)

		slog.Info("Kafka consumer started", "topic", topic, "group_id", b.groupID)

		b.wg.Add(1)
		go b.consume(ctx, reader, topic, handlers)
	}

	return nil
}

func (b *KafkaBus) consume(ctx context.Context, reader messageReader, topic string, handlers []Handler) {
	defer b.wg.Done()

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("Failed to fetch message", "topic", topic, "error", err)
			continue
		}

		slog.Debug("Received message from Kafka", "topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)

		failed := false
		for _, handler := range handlers {
			if err := handler(ctx, msg.Value); err != nil {
				slog.Error("Message handler failed", "topic", topic, "offset", msg.Offset, "error", err)
				failed = true
			}
		}
		if failed {
			continue
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			slog.Error("Failed to commit message", "topic", topic, "offset", msg.Offset, "error", err)
		}
	}
}

func (b *KafkaBus) Close() error {
	if b.cancel != nil {
		b.cancel()
	}

	var firstErr error
	for _, reader := range b.readers {
		if err := reader.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close Kafka consumer: %w", err)
		}
	}
	b.wg.Wait()

	if err := b.writer.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to close Kafka producer: %w", err)
	}

	slog.Info("Kafka bus stopped")
	return firstErr
}
