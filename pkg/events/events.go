// Package events defines the messages exchanged between the trigger
// dispatcher and the execution workers.
package events

import (
	"time"

	"github.com/fluxcrm/automation/pkg/models"
)

type EventType string

// Kafka topics.
const TriggerTopic = "automation.triggers"     // Dispatcher to workers
const ExecutionTopic = "automation.executions" // Execution lifecycle notifications

const EventTypeMetadataKey = "event_type"

const (
	WorkflowTriggeredEvent  EventType = "workflow.triggered"
	ExecutionCompletedEvent EventType = "workflow.execution.completed"
	ExecutionFailedEvent    EventType = "workflow.execution.failed"
)

// Event is anything publishable on the bus.
type Event interface {
	GetType() EventType
}

type BaseEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	WorkflowID string    `json:"workflow_id"`
	WorkerID   string    `json:"worker_id,omitempty"`
}

// WorkflowTriggered asks a worker to run one workflow against one record.
// The full trigger context rides along so the worker never has to refetch
// the entity that fired the trigger.
type WorkflowTriggered struct {
	BaseEvent

	TriggerKind models.TriggerKind  `json:"trigger_kind"`
	Context     models.EventContext `json:"context"`
}

func (w WorkflowTriggered) GetType() EventType {
	return WorkflowTriggeredEvent
}

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID     string        `json:"execution_id"`
	ActionsExecuted int           `json:"actions_executed"`
	Duration        time.Duration `json:"duration"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	Error       string        `json:"error"`
	Duration    time.Duration `json:"duration"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}
