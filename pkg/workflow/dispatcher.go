package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fluxcrm/automation/pkg/conditions"
	"github.com/fluxcrm/automation/pkg/eventbus"
	"github.com/fluxcrm/automation/pkg/events"
	"github.com/fluxcrm/automation/pkg/models"
	"github.com/fluxcrm/automation/pkg/persistence"
)

// defaultStageField is consulted by stage_changed triggers that do not name
// a field explicitly.
const defaultStageField = "stage"

// Dispatcher matches entity mutation events against active workflows and
// publishes a trigger event per match. Dispatch is fire-and-forget toward
// the CRM write path: per-workflow errors are logged and swallowed so one
// broken workflow never blocks a record save or the remaining workflows.
type Dispatcher struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
}

func NewDispatcher(p persistence.Persistence, publisher eventbus.EventPublisher, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		persistence: p,
		publisher:   publisher,
		logger:      logger.With("module", "trigger_dispatcher"),
	}
}

// RecordCreated dispatches workflows listening for record creation.
func (d *Dispatcher) RecordCreated(ctx context.Context, ectx models.EventContext) {
	d.dispatch(ctx, models.TriggerRecordCreated, ectx)
}

// RecordUpdated dispatches workflows listening for updates, including
// field_changed and stage_changed narrowing against the previous values.
func (d *Dispatcher) RecordUpdated(ctx context.Context, ectx models.EventContext) {
	d.dispatch(ctx, models.TriggerRecordUpdated, ectx)
}

func (d *Dispatcher) dispatch(ctx context.Context, eventKind models.TriggerKind, ectx models.EventContext) {
	workflows, err := d.persistence.Workflows().ActiveByEntityKind(ctx, ectx.EntityKind)
	if err != nil {
		d.logger.ErrorContext(ctx, "Failed to load workflows for dispatch",
			"entity_kind", ectx.EntityKind, "entity_id", ectx.EntityID,
			"event_kind", eventKind, "error", err)

		return
	}

	for _, workflow := range workflows {
		trigger := d.matchingTrigger(workflow, eventKind, ectx)
		if trigger == nil {
			continue
		}

		err := d.fire(ctx, workflow, trigger.Kind, ectx)
		if err != nil {
			d.logger.ErrorContext(ctx, "Failed to dispatch workflow",
				"workflow_id", workflow.ID, "trigger_kind", trigger.Kind,
				"entity_kind", ectx.EntityKind, "entity_id", ectx.EntityID,
				"error", err)
		}
	}
}

// Manual fires one workflow for one entity on explicit user request. Unlike
// the event paths, errors surface to the caller.
func (d *Dispatcher) Manual(ctx context.Context, workflowID string, ectx models.EventContext) error {
	workflow, err := d.persistence.Workflows().ByID(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("failed to load workflow %s: %w", workflowID, err)
	}

	if !workflow.IsDispatchable() {
		return fmt.Errorf("workflow %s is not active", workflowID)
	}

	if workflow.EntityKind != ectx.EntityKind {
		return fmt.Errorf("workflow %s targets %s, not %s", workflowID, workflow.EntityKind, ectx.EntityKind)
	}

	trigger := d.matchingTrigger(workflow, models.TriggerManual, ectx)
	if trigger == nil {
		return fmt.Errorf("workflow %s has no matching manual trigger", workflowID)
	}

	return d.fire(ctx, workflow, models.TriggerManual, ectx)
}

// DateBased fires one workflow whose date_based trigger came due. Called by
// the scheduler's scanner.
func (d *Dispatcher) DateBased(ctx context.Context, workflow *models.Workflow, ectx models.EventContext) error {
	return d.fire(ctx, workflow, models.TriggerDateBased, ectx)
}

// matchingTrigger returns the workflow's first trigger matching the event,
// or nil. A workflow fires at most once per event even when several of its
// triggers match.
func (d *Dispatcher) matchingTrigger(workflow *models.Workflow, eventKind models.TriggerKind, ectx models.EventContext) *models.Trigger {
	for _, trigger := range workflow.Triggers {
		if !d.triggerMatches(trigger, eventKind, ectx) {
			continue
		}

		if !conditions.Evaluate(trigger.Conditions, ectx.Entity) {
			continue
		}

		return trigger
	}

	return nil
}

func (d *Dispatcher) triggerMatches(trigger *models.Trigger, eventKind models.TriggerKind, ectx models.EventContext) bool {
	switch trigger.Kind {
	case models.TriggerRecordCreated, models.TriggerRecordUpdated, models.TriggerManual:
		return trigger.Kind == eventKind
	case models.TriggerFieldChanged:
		return eventKind == models.TriggerRecordUpdated &&
			trigger.Field != "" &&
			transitionMatches(trigger.Field, trigger.FromValue, trigger.ToValue, ectx)
	case models.TriggerStageChanged:
		field := trigger.Field
		if field == "" {
			field = defaultStageField
		}

		return eventKind == models.TriggerRecordUpdated &&
			transitionMatches(field, trigger.FromValue, trigger.ToValue, ectx)
	case models.TriggerDateBased:
		return eventKind == models.TriggerDateBased
	default:
		return false
	}
}

// transitionMatches reports whether the field actually changed in this write
// and the optional from/to narrowing holds. A nil narrowing value matches
// any value on that side. Callers may pass either a delta or a full previous
// snapshot; a field whose previous value equals its current one never fires.
func transitionMatches(field string, fromValue, toValue any, ectx models.EventContext) bool {
	previous, present := ectx.PreviousValues[field]
	if !present {
		return false
	}

	if valueEquals(previous, ectx.Entity[field]) {
		return false
	}

	if fromValue != nil && !valueEquals(previous, fromValue) {
		return false
	}

	if toValue != nil && !valueEquals(ectx.Entity[field], toValue) {
		return false
	}

	return true
}

func valueEquals(actual, expected any) bool {
	probe := models.Snapshot{"value": actual}
	predicate := []models.Condition{{Field: "value", Operator: models.OpEquals, Value: expected}}

	return conditions.Evaluate(predicate, probe)
}

// fire enforces run-once and publishes the trigger event for a worker to
// pick up.
func (d *Dispatcher) fire(ctx context.Context, workflow *models.Workflow, triggerKind models.TriggerKind, ectx models.EventContext) error {
	if workflow.RunOnce {
		done, err := d.persistence.Executions().HasCompleted(ctx, workflow.ID, ectx.EntityKind, ectx.EntityID)
		if err != nil {
			return fmt.Errorf("failed to check run-once state: %w", err)
		}

		if done {
			d.logger.DebugContext(ctx, "Run-once workflow already completed for entity",
				"workflow_id", workflow.ID, "entity_kind", ectx.EntityKind,
				"entity_id", ectx.EntityID)

			return nil
		}
	}

	event := events.WorkflowTriggered{
		BaseEvent: events.BaseEvent{
			Type:       events.WorkflowTriggeredEvent,
			Timestamp:  time.Now().UTC(),
			WorkflowID: workflow.ID,
		},
		TriggerKind: triggerKind,
		Context:     ectx,
	}

	err := d.publisher.Publish(ctx, event)
	if err != nil {
		return fmt.Errorf("failed to publish trigger event: %w", err)
	}

	d.logger.InfoContext(ctx, "Workflow triggered",
		"workflow_id", workflow.ID, "trigger_kind", triggerKind,
		"entity_kind", ectx.EntityKind, "entity_id", ectx.EntityID)

	return nil
}
