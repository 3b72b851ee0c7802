package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/svdberg/atwood-monitor/app/notify"
)

// DeliverPushTask fans one notification payload out to every web push
// subscriber.
type DeliverPushTask struct {
	Task
	payload []byte
	engine  PushEngineInterface
}

func NewDeliverPushTask(payload []byte, engine PushEngineInterface) *DeliverPushTask {
	return &DeliverPushTask{
		Task:    NewTask(TaskTypeDeliverPush),
		payload: payload,
		engine:  engine,
	}
}

func (t *DeliverPushTask) Execute(ctx context.Context) error {
	event, err := notify.DecodeEvent(t.payload)
	if err != nil {
		// Redelivering a malformed message cannot succeed.
		slog.Error("Dropping undecodable push notification", "id", t.ID, "error", err)
		return nil
	}

	report, err := t.engine.Deliver(ctx, event)
	if err != nil {
		return fmt.Errorf("push delivery failed: %w", err)
	}

	slog.Debug("Push notification handled", "id", t.ID, "delivered", report.Delivered, "duration", t.GetDuration().String())

	return nil
}
