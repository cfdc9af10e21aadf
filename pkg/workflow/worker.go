package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fluxcrm/automation/pkg/eventbus"
	"github.com/fluxcrm/automation/pkg/events"
)

// Worker consumes trigger events from the bus and hands them to the
// executor.
type Worker struct {
	bus      eventbus.EventBus
	executor *Executor
	logger   *slog.Logger
}

func NewWorker(bus eventbus.EventBus, executor *Executor, logger *slog.Logger) *Worker {
	return &Worker{
		bus:      bus,
		executor: executor,
		logger:   logger.With("module", "workflow_worker"),
	}
}

// Start subscribes to the trigger topic. The subscription lives until the
// context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	err := w.bus.Subscribe(ctx, events.TriggerTopic, w.handle)
	if err != nil {
		return fmt.Errorf("failed to subscribe to trigger topic: %w", err)
	}

	w.logger.InfoContext(ctx, "Worker started", "topic", events.TriggerTopic)

	return nil
}

func (w *Worker) handle(ctx context.Context, event events.Event) error {
	triggered, ok := event.(*events.WorkflowTriggered)
	if !ok {
		w.logger.WarnContext(ctx, "Ignoring unexpected event", "type", event.GetType())

		return nil
	}

	_, err := w.executor.ExecuteByID(ctx, triggered.WorkflowID, triggered.TriggerKind, triggered.Context)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to execute workflow",
			"workflow_id", triggered.WorkflowID, "error", err)

		return err
	}

	return nil
}
