// Package models defines the core domain models for CRM workflow automation.
package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusDraft    WorkflowStatus = "draft"    // Editable, not executable
	WorkflowStatusActive   WorkflowStatus = "active"   // Eligible for dispatch
	WorkflowStatusPaused   WorkflowStatus = "paused"   // Temporarily not executable
	WorkflowStatusArchived WorkflowStatus = "archived" // Historical, not executable
)

// Workflow is a trigger-condition-action automation rule owned by one CRM
// entity kind. Only workflows in WorkflowStatusActive are eligible for
// dispatch.
type Workflow struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"        validate:"required,min=3"`
	Description     string         `json:"description"`
	EntityKind      string         `json:"entity_kind" validate:"required"`
	Status          WorkflowStatus `json:"status"      validate:"required"`
	RunOnce         bool           `json:"run_once"`
	RunOrder        int            `json:"run_order"`
	Triggers        []*Trigger     `json:"triggers"    validate:"required,min=1,dive"`
	Actions         []*Action      `json:"actions"     validate:"dive"`
	TotalExecutions int            `json:"total_executions"`
	LastExecutedAt  *time.Time     `json:"last_executed_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       *time.Time     `json:"deleted_at,omitempty"`
}

// IsDispatchable reports whether the workflow may be handed to the executor.
func (w *Workflow) IsDispatchable() bool {
	return w.Status == WorkflowStatusActive && w.DeletedAt == nil
}

// TopLevelActions returns the workflow's actions without branch children
// (actions carrying a parent action id), ordered by position. The sort is
// stable so actions sharing a position keep their declared order.
func (w *Workflow) TopLevelActions() []*Action {
	actions := make([]*Action, 0, len(w.Actions))

	for _, action := range w.Actions {
		if action.ParentActionID == nil {
			actions = append(actions, action)
		}
	}

	sortActionsByPosition(actions)

	return actions
}

func sortActionsByPosition(actions []*Action) {
	// Insertion sort keeps the tie order stable; action lists are short.
	for i := 1; i < len(actions); i++ {
		for j := i; j > 0 && actions[j-1].Position > actions[j].Position; j-- {
			actions[j-1], actions[j] = actions[j], actions[j-1]
		}
	}
}
