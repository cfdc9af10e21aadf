// Package workflow contains the trigger dispatcher, the workflow executor
// and the validating workflow service.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fluxcrm/automation/pkg/eventbus"
	"github.com/fluxcrm/automation/pkg/events"
	"github.com/fluxcrm/automation/pkg/models"
	"github.com/fluxcrm/automation/pkg/otelhelper"
	"github.com/fluxcrm/automation/pkg/persistence"
	"github.com/fluxcrm/automation/pkg/runner"
)

// Executor runs a workflow's action chain against one entity and records the
// run in the execution ledger.
type Executor struct {
	persistence persistence.Persistence
	runner      *runner.Runner
	publisher   eventbus.EventPublisher
	tracer      trace.Tracer
	workerID    string
	logger      *slog.Logger
}

// NewExecutor wires an executor. The publisher may be nil; lifecycle events
// are then not emitted.
func NewExecutor(
	p persistence.Persistence,
	actionRunner *runner.Runner,
	publisher eventbus.EventPublisher,
	workerID string,
	logger *slog.Logger,
) *Executor {
	return &Executor{
		persistence: p,
		runner:      actionRunner,
		publisher:   publisher,
		workerID:    workerID,
		logger:      logger.With("module", "workflow_executor", "worker_id", workerID),
	}
}

// WithTracer enables span emission per execution.
func (e *Executor) WithTracer(tracer trace.Tracer) *Executor {
	e.tracer = tracer

	return e
}

// ExecuteByID loads a workflow and runs it. Used by the worker handler and
// the manual trigger path.
func (e *Executor) ExecuteByID(ctx context.Context, workflowID string, triggerKind models.TriggerKind, ectx models.EventContext) (*models.Execution, error) {
	workflow, err := e.persistence.Workflows().ByID(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow %s: %w", workflowID, err)
	}

	if !workflow.IsDispatchable() {
		return nil, fmt.Errorf("workflow %s is not active", workflowID)
	}

	return e.Execute(ctx, workflow, triggerKind, ectx)
}

// Execute creates an execution record in the running state, runs the
// workflow's top-level actions in position order and finalizes the record
// exactly once. A failed action stops the chain; a skipped action does not.
// Only successful actions count toward ActionsExecuted.
func (e *Executor) Execute(ctx context.Context, workflow *models.Workflow, triggerKind models.TriggerKind, ectx models.EventContext) (*models.Execution, error) {
	var span trace.Span

	if e.tracer != nil {
		ctx, span = otelhelper.StartSpan(ctx, e.tracer, "workflow.execute",
			attribute.String(otelhelper.WorkflowIDKey, workflow.ID),
			attribute.String(otelhelper.WorkflowNameKey, workflow.Name),
			attribute.String(otelhelper.TriggerKindKey, string(triggerKind)),
			attribute.String(otelhelper.EntityKindKey, ectx.EntityKind),
			attribute.String(otelhelper.EntityIDKey, ectx.EntityID),
		)
		defer span.End()
	}

	executionID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate execution ID: %w", err)
	}

	execution := &models.Execution{
		ID:          executionID.String(),
		WorkflowID:  workflow.ID,
		TriggerKind: triggerKind,
		TriggeredBy: ectx.ActorID,
		EntityKind:  ectx.EntityKind,
		EntityID:    ectx.EntityID,
		Status:      models.ExecutionRunning,
		StartedAt:   time.Now().UTC(),
	}

	err = e.persistence.Executions().Create(ctx, execution)
	if err != nil {
		return nil, fmt.Errorf("failed to create execution record: %w", err)
	}

	e.logger.InfoContext(ctx, "Execution started",
		"execution_id", execution.ID, "workflow_id", workflow.ID,
		"trigger_kind", triggerKind, "entity_kind", ectx.EntityKind,
		"entity_id", ectx.EntityID)

	e.runActions(ctx, workflow, execution, ectx)

	if span != nil && execution.Status == models.ExecutionFailed {
		otelhelper.SetError(span, fmt.Errorf("execution failed: %s", execution.Error),
			attribute.String(otelhelper.ExecutionIDKey, execution.ID))
	}

	finalized := e.finalize(ctx, workflow, execution)
	if finalized != nil {
		return execution, finalized
	}

	return execution, nil
}

// runActions walks the chain and fills the execution's results. A panicking
// action handler marks the execution failed instead of killing the worker.
func (e *Executor) runActions(ctx context.Context, workflow *models.Workflow, execution *models.Execution, ectx models.EventContext) {
	defer func() {
		if r := recover(); r != nil {
			execution.Status = models.ExecutionFailed
			execution.Error = fmt.Sprintf("panic during execution: %v", r)

			e.logger.ErrorContext(ctx, "Execution panicked",
				"execution_id", execution.ID, "workflow_id", workflow.ID,
				"panic", r)
		}
	}()

	for _, action := range workflow.TopLevelActions() {
		result := e.runner.Execute(ctx, *action, ectx)
		execution.Results = append(execution.Results, result)

		switch result.Status {
		case models.ActionResultSuccess:
			execution.ActionsExecuted++
		case models.ActionResultSkipped:
			// Skipped actions do not stop the chain.
		case models.ActionResultFailed:
			execution.Status = models.ExecutionFailed
			execution.Error = fmt.Sprintf("action %s (%s) failed: %s", action.ID, action.Kind, result.Error)

			return
		}
	}

	execution.Status = models.ExecutionCompleted
}

func (e *Executor) finalize(ctx context.Context, workflow *models.Workflow, execution *models.Execution) error {
	now := time.Now().UTC()
	execution.FinishedAt = &now

	err := e.persistence.Executions().Finalize(ctx, execution)
	if err != nil {
		return fmt.Errorf("failed to finalize execution %s: %w", execution.ID, err)
	}

	err = e.persistence.Workflows().RecordExecution(ctx, workflow.ID, now)
	if err != nil {
		return fmt.Errorf("failed to record execution on workflow %s: %w", workflow.ID, err)
	}

	e.logger.InfoContext(ctx, "Execution finished",
		"execution_id", execution.ID, "workflow_id", workflow.ID,
		"status", execution.Status, "actions_executed", execution.ActionsExecuted)

	e.publishOutcome(ctx, execution)

	return nil
}

// publishOutcome emits the lifecycle event. Failures here are logged and
// swallowed: the execution record is already final.
func (e *Executor) publishOutcome(ctx context.Context, execution *models.Execution) {
	if e.publisher == nil {
		return
	}

	duration := execution.FinishedAt.Sub(execution.StartedAt)
	base := events.BaseEvent{
		ID:         execution.ID,
		Timestamp:  time.Now().UTC(),
		WorkflowID: execution.WorkflowID,
		WorkerID:   e.workerID,
	}

	var event events.Event

	if execution.Status == models.ExecutionCompleted {
		base.Type = events.ExecutionCompletedEvent
		event = events.ExecutionCompleted{
			BaseEvent:       base,
			ExecutionID:     execution.ID,
			ActionsExecuted: execution.ActionsExecuted,
			Duration:        duration,
		}
	} else {
		base.Type = events.ExecutionFailedEvent
		event = events.ExecutionFailed{
			BaseEvent:   base,
			ExecutionID: execution.ID,
			Error:       execution.Error,
			Duration:    duration,
		}
	}

	err := e.publisher.Publish(ctx, event)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to publish execution outcome",
			"execution_id", execution.ID, "error", err)
	}
}
