package models

import "time"

// ExecutionStatus is the lifecycle state of one workflow run.
type ExecutionStatus string

const (
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
)

// ActionResultStatus is the outcome of a single action within a run.
type ActionResultStatus string

const (
	ActionResultSuccess ActionResultStatus = "success"
	ActionResultFailed  ActionResultStatus = "failed"
	ActionResultSkipped ActionResultStatus = "skipped"
)

// ActionResult is the immutable record of one action's outcome.
type ActionResult struct {
	ActionID string             `json:"action_id"`
	Kind     ActionKind         `json:"kind"`
	Status   ActionResultStatus `json:"status"`
	Output   map[string]any     `json:"output,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// Execution is the audit record of one run of a workflow for one target
// entity. It is created in ExecutionRunning and finalized exactly once to a
// terminal state; the engine never deletes executions.
type Execution struct {
	ID              string          `json:"id"`
	WorkflowID      string          `json:"workflow_id"`
	TriggerKind     TriggerKind     `json:"trigger_kind"`
	TriggeredBy     string          `json:"triggered_by,omitempty"` // actor id, empty for system
	EntityKind      string          `json:"entity_kind"`
	EntityID        string          `json:"entity_id"`
	Status          ExecutionStatus `json:"status"`
	ActionsExecuted int             `json:"actions_executed"`
	Results         []ActionResult  `json:"results,omitempty"`
	Error           string          `json:"error,omitempty"`
	StartedAt       time.Time       `json:"started_at"`
	FinishedAt      *time.Time      `json:"finished_at,omitempty"`
}

// EventContext carries the entity mutation that fired a trigger. Entity is
// the post-write snapshot; PreviousValues holds pre-write values for
// field_changed and stage_changed narrowing; ActorID identifies the user who
// performed the write, empty for system writes.
type EventContext struct {
	EntityKind     string   `json:"entity_kind"`
	EntityID       string   `json:"entity_id"`
	Entity         Snapshot `json:"entity"`
	PreviousValues Snapshot `json:"previous_values,omitempty"`
	ActorID        string   `json:"actor_id,omitempty"`
}
