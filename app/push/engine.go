package push

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/svdberg/atwood-monitor/app/database"
	"github.com/svdberg/atwood-monitor/app/metrics"
	"github.com/svdberg/atwood-monitor/app/notify"
)

const (
	DefaultConcurrency    = 8
	DefaultAttemptTimeout = 10 * time.Second
)

// SubscriptionStore is the part of the push registry the engine needs.
type SubscriptionStore interface {
	ListSubscriptions(ctx context.Context, now time.Time) ([]database.PushSubscription, error)
	DeleteSubscription(ctx context.Context, id string) error
}

// Fallback values fill in event fields that arrive empty.
type Fallback struct {
	Title string
	Body  string
	URL   string
}

type Options struct {
	Concurrency    int
	AttemptTimeout time.Duration
	Fallback       Fallback
}

// Report summarises one delivery run.
type Report struct {
	Attempted int
	Delivered int
	Failed    int
	Evicted   int
}

// Engine delivers one event to every registered subscription. Each
// subscription is handled independently: a failure is counted and, for
// 404/410, the subscription is evicted, but it never stops the others.
type Engine struct {
	store   SubscriptionStore
	sender  Sender
	sink    metrics.Sink
	options Options
	now     func() time.Time
}

func NewEngine(store SubscriptionStore, sender Sender, sink metrics.Sink, options Options) *Engine {
	if options.Concurrency <= 0 {
		options.Concurrency = DefaultConcurrency
	}
	if options.AttemptTimeout <= 0 {
		options.AttemptTimeout = DefaultAttemptTimeout
	}

	return &Engine{
		store:   store,
		sender:  sender,
		sink:    sink,
		options: options,
		now:     time.Now,
	}
}

// Deliver only returns an error when the subscription list cannot be loaded.
func (e *Engine) Deliver(ctx context.Context, event notify.Event) (Report, error) {
	subs, err := e.store.ListSubscriptions(ctx, e.now())
	if err != nil {
		return Report{}, fmt.Errorf("failed to load push subscriptions: %w", err)
	}

	if len(subs) == 0 {
		slog.Debug("No push subscriptions registered")
		return Report{}, nil
	}

	payload, err := json.Marshal(e.message(event))
	if err != nil {
		return Report{}, fmt.Errorf("failed to encode push message: %w", err)
	}

	var (
		mu     sync.Mutex
		report = Report{Attempted: len(subs)}
		group  errgroup.Group
	)
	group.SetLimit(e.options.Concurrency)

	for _, sub := range subs {
		group.Go(func() error {
			delivered, evicted := e.deliverOne(ctx, sub, payload)

			mu.Lock()
			defer mu.Unlock()
			if delivered {
				report.Delivered++
			} else {
				report.Failed++
			}
			if evicted {
				report.Evicted++
			}
			return nil
		})
	}
	_ = group.Wait()

	slog.Info("Push delivery completed",
		"attempted", report.Attempted,
		"delivered", report.Delivered,
		"failed", report.Failed,
		"evicted", report.Evicted)

	return report, nil
}

func (e *Engine) deliverOne(ctx context.Context, sub database.PushSubscription, payload []byte) (delivered, evicted bool) {
	result := e.attempt(ctx, sub, payload)

	if result.Delivered {
		e.sink.Emit(metrics.MetricPushSuccess, 1)
		return true, false
	}

	e.sink.Emit(metrics.MetricPushFailure, 1)
	slog.Warn("Push failed", "subscription_id", sub.ID, "status", result.StatusCode, "error", result.Message)

	if !result.Gone() {
		return false, false
	}

	if err := e.store.DeleteSubscription(ctx, sub.ID); err != nil {
		slog.Error("Failed to delete stale subscription", "subscription_id", sub.ID, "error", err)
		return false, false
	}

	slog.Info("Deleted stale subscription", "subscription_id", sub.ID, "status", result.StatusCode)
	return false, true
}

func (e *Engine) attempt(ctx context.Context, sub database.PushSubscription, payload []byte) Result {
	target, err := ParseTarget(sub.ID, sub.Payload)
	if err != nil {
		return Failed(0, err.Error())
	}

	attemptCtx, cancel := context.WithTimeout(ctx, e.options.AttemptTimeout)
	defer cancel()

	return e.sender.Send(attemptCtx, target, payload)
}

func (e *Engine) message(event notify.Event) Message {
	return Message{
		Title: cmp.Or(event.Title, e.options.Fallback.Title),
		Body:  cmp.Or(event.Body, e.options.Fallback.Body),
		URL:   cmp.Or(event.URL, e.options.Fallback.URL),
	}
}
