package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/svdberg/atwood-monitor/app/notify"
)

type RelayEmailTask struct {
	Task
	payload []byte
	mailer  MailerInterface
}

func NewRelayEmailTask(payload []byte, mailer MailerInterface) *RelayEmailTask {
	return &RelayEmailTask{
		Task:    NewTask(TaskTypeRelayEmail),
		payload: payload,
		mailer:  mailer,
	}
}

func (t *RelayEmailTask) Execute(ctx context.Context) error {
	event, err := notify.DecodeEvent(t.payload)
	if err != nil {
		slog.Error("Dropping undecodable email notification", "id", t.ID, "error", err)
		return nil
	}

	sent, err := t.mailer.Deliver(ctx, event)
	if err != nil {
		return fmt.Errorf("email relay failed: %w", err)
	}

	slog.Debug("Email notification relayed", "sent", sent, "duration", t.GetDuration().String())
	return nil
}
