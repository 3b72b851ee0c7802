package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

type DetectTask struct {
	Task
	detector DetectorInterface
}

func NewDetectTask(detector DetectorInterface) *DetectTask {
	return &DetectTask{
		Task:     NewTask(TaskTypeDetect),
		detector: detector,
	}
}

func (t *DetectTask) Execute(ctx context.Context) error {
	result, err := t.detector.Run(ctx)
	if err != nil {
		return fmt.Errorf("feed check failed: %w", err)
	}

	attrs := []any{"outcome", string(result.Outcome), "duration", t.GetDuration().String()}
	if result.Item != nil {
		attrs = append(attrs, "post_id", result.Item.ID, "sold", result.Item.Sold)
	}
	slog.Info("Feed check completed", attrs...)

	return nil
}
