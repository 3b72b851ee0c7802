package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/svdberg/atwood-monitor/app/database"
)

// PurgeExpiredTask removes push subscriptions whose TTL has passed.
type PurgeExpiredTask struct {
	Task
	pushRepo database.PushRepository
	now      func() time.Time
}

func NewPurgeExpiredTask(pushRepo database.PushRepository) *PurgeExpiredTask {
	return &PurgeExpiredTask{
		Task:     NewTask(TaskTypePurgeExpired),
		pushRepo: pushRepo,
		now:      time.Now,
	}
}

func (t *PurgeExpiredTask) Execute(ctx context.Context) error {
	removed, err := t.pushRepo.PurgeExpired(ctx, t.now())
	if err != nil {
		return fmt.Errorf("failed to purge expired subscriptions: %w", err)
	}

	if removed > 0 {
		slog.Info("Expired push subscriptions purged", "count", removed)
	}
	return nil
}
