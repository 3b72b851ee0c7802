package broker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	messages chan kafka.Message

	mu        sync.Mutex
	committed []kafka.Message
	fetched   int
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	r := &fakeReader{messages: make(chan kafka.Message, len(msgs))}
	for _, msg := range msgs {
		r.messages <- msg
	}
	return r
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case msg := <-r.messages:
		r.mu.Lock()
		r.fetched++
		r.mu.Unlock()
		return msg, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) counts() (fetched, committed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fetched, len(r.committed)
}

// runConsumer starts the consume loop and returns a stop function that
// cancels it and waits for it to exit.
func runConsumer(t *testing.T, reader messageReader, handlers ...Handler) func() {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	b := &KafkaBus{}
	b.wg.Add(1)
	go b.consume(ctx, reader, TopicWebNotifications, handlers)

	return func() {
		cancel()
		done := make(chan struct{})
		go func() {
			b.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("consumer did not stop after cancel")
		}
	}
}

func TestKafkaConsumeCommitsAfterSuccess(t *testing.T) {
	reader := newFakeReader(kafka.Message{Topic: TopicWebNotifications, Offset: 7, Value: []byte("a")})

	var calls int
	var mu sync.Mutex
	stop := runConsumer(t, reader, func(_ context.Context, payload []byte) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return nil
	})

	assert.Eventually(t, func() bool {
		_, committed := reader.counts()
		return committed == 1
	}, time.Second, 5*time.Millisecond)
	stop()

	reader.mu.Lock()
	defer reader.mu.Unlock()
	require.Len(t, reader.committed, 1)
	assert.Equal(t, int64(7), reader.committed[0].Offset)
	assert.Equal(t, 1, calls)
}

func TestKafkaConsumeSkipsCommitOnHandlerError(t *testing.T) {
	reader := newFakeReader(kafka.Message{Topic: TopicWebNotifications, Offset: 3, Value: []byte("a")})

	ok := func(context.Context, []byte) error { return nil }
	failing := func(context.Context, []byte) error { return errors.New("push service unavailable") }
	stop := runConsumer(t, reader, ok, failing)

	assert.Eventually(t, func() bool {
		fetched, _ := reader.counts()
		return fetched == 1
	}, time.Second, 5*time.Millisecond)
	stop()

	_, committed := reader.counts()
	assert.Zero(t, committed, "a failed message stays uncommitted for redelivery")
}

func TestKafkaConsumeStopsOnCancel(t *testing.T) {
	reader := newFakeReader()
	stop := runConsumer(t, reader, func(context.Context, []byte) error { return nil })

	stop()

	fetched, committed := reader.counts()
	assert.Zero(t, fetched)
	assert.Zero(t, committed)
}
