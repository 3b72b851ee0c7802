package tasks

import (
	"context"

	"github.com/svdberg/atwood-monitor/app/monitor"
	"github.com/svdberg/atwood-monitor/app/notify"
	"github.com/svdberg/atwood-monitor/app/push"
)

// TaskSchedulerInterface is used by main to run the background workers.
//
//	scheduler := NewScheduler(schedule, workerCount, newDetectTask, pushRepo)
//	scheduler.Start()
//	defer scheduler.Stop()
type TaskSchedulerInterface interface {
	Start() error
	Stop()
	EnqueueTask(task TaskInterface) error
	RunTask(ctx context.Context, task TaskInterface) error
}

type DetectorInterface interface {
	Run(ctx context.Context) (monitor.Result, error)
}

type PushEngineInterface interface {
	Deliver(ctx context.Context, event notify.Event) (push.Report, error)
}

type MailerInterface interface {
	Deliver(ctx context.Context, event notify.Event) (int, error)
}
