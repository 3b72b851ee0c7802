package broker

import (
	"context"
	"log/slog"
	"sync"
)

var _ Bus = (*MemoryBus)(nil)

// MemoryBus fans messages out to in-process handlers. Every handler runs in
// its own goroutine, so Publish never waits on a consumer.
type MemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	ctx      context.Context
	cancel   context.CancelFunc
	closed   bool
	wg       sync.WaitGroup
}

func NewMemoryBus() *MemoryBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &MemoryBus{
		handlers: make(map[string][]Handler),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (b *MemoryBus) Subscribe(topic string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], handler)
}

// Start ties handler contexts to ctx. Messages published before Start are
// still dispatched.
func (b *MemoryBus) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	b.cancel()
	b.ctx, b.cancel = context.WithCancel(ctx)
	return nil
}

func (b *MemoryBus) Publish(_ context.Context, topic string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}

	handlers := b.handlers[topic]
	if len(handlers) == 0 {
		slog.Debug("No subscribers for topic", "topic", topic)
		return nil
	}

	for _, handler := range handlers {
		msg := append([]byte(nil), payload...)
		b.wg.Add(1)
		go b.dispatch(b.ctx, topic, handler, msg)
	}

	return nil
}

func (b *MemoryBus) dispatch(ctx context.Context, topic string, handler Handler, payload []byte) {
	defer b.wg.Done()

	if err := handler(ctx, payload); err != nil {
		slog.Error("Message handler failed", "topic", topic, "error", err)
	}
}

// Close rejects further publishes and waits for in-flight handlers.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.wg.Wait()
	b.cancel()
	return nil
}
