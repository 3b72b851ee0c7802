package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/svdberg/atwood-monitor/app/database"
)

const (
	taskTimeout   = 5 * time.Minute
	queueSize     = 300
	purgeSchedule = "@hourly"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

// Scheduler runs feed checks on a cron schedule and hands every task to a
// fixed pool of workers. A failed task is logged and dropped; the next
// scheduled run is the retry.
type Scheduler struct {
	cron          *cron.Cron
	schedule      string
	newDetectTask func() TaskInterface
	pushRepo      database.PushRepository
	workerCount   int
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	taskQueue     chan TaskInterface
}

func NewScheduler(schedule string, workerCount int, newDetectTask func() TaskInterface, pushRepo database.PushRepository) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:          cron.New(),
		schedule:      schedule,
		newDetectTask: newDetectTask,
		pushRepo:      pushRepo,
		workerCount:   workerCount,
		ctx:           ctx,
		cancel:        cancel,
		taskQueue:     make(chan TaskInterface, queueSize),
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.enqueueDetect); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.schedule, err)
	}
	if s.pushRepo != nil {
		if _, err := s.cron.AddFunc(purgeSchedule, s.enqueuePurge); err != nil {
			return fmt.Errorf("failed to schedule purge: %w", err)
		}
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.enqueueDetect()
	s.cron.Start()

	slog.Info("Scheduler started", "schedule", s.schedule, "workers", s.workerCount)
	return nil
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

// RunTask executes the task on the caller's goroutine under the same
// deadline and logging as queued tasks. Message consumers use it so the
// broker only acknowledges a message once its task has finished.
func (s *Scheduler) RunTask(ctx context.Context, task TaskInterface) error {
	return executeTask(ctx, task)
}

func (s *Scheduler) enqueueDetect() {
	if err := s.EnqueueTask(s.newDetectTask()); err != nil {
		slog.Warn("Failed to enqueue DetectTask", "error", err)
	}
}

func (s *Scheduler) enqueuePurge() {
	if err := s.EnqueueTask(NewPurgeExpiredTask(s.pushRepo)); err != nil {
		slog.Warn("Failed to enqueue PurgeExpiredTask", "error", err)
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			if err := executeTask(s.ctx, task); err != nil {
				slog.Error("Worker task execution failed", "worker_id", id, "type", string(task.GetType()), "id", task.GetID(), "error", err)
			}

		case <-s.ctx.Done():
			return
		}
	}
}

func executeTask(ctx context.Context, task TaskInterface) error {
	task.Start()

	taskCtx, cancel := context.WithTimeout(ctx, taskTimeout)
	defer cancel()

	if err := task.Execute(taskCtx); err != nil {
		return err
	}

	slog.Debug("Task completed", "type", string(task.GetType()), "id", task.GetID(), "duration", task.GetDuration().String())
	return nil
}
