package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ActionKind identifies the side effect an action performs.
type ActionKind string

const (
	ActionSendEmail        ActionKind = "send_email"
	ActionCreateTask       ActionKind = "create_task"
	ActionUpdateField      ActionKind = "update_field"
	ActionSendWebhook      ActionKind = "send_webhook"
	ActionAssignOwner      ActionKind = "assign_owner"
	ActionAddTag           ActionKind = "add_tag"
	ActionRemoveTag        ActionKind = "remove_tag"
	ActionCreateActivity   ActionKind = "create_activity"
	ActionSendNotification ActionKind = "send_notification"
	ActionWaitDelay        ActionKind = "wait_delay"
	ActionConditionBranch  ActionKind = "condition_branch"
)

// BranchType labels a branch child action relative to its parent
// condition_branch outcome.
type BranchType string

const (
	BranchTrue  BranchType = "true"
	BranchFalse BranchType = "false"
)

// Action is one side-effecting step in a workflow's ordered action list.
// Position orders execution within the workflow; positions are not required
// to be unique and ties keep declared order. ParentActionID and BranchType
// mark branch children, which the executor skips (branch continuation is not
// supported).
type Action struct {
	ID             string          `json:"id"`
	Kind           ActionKind      `json:"kind" validate:"required"`
	Position       int             `json:"position"`
	ParentActionID *string         `json:"parent_action_id,omitempty"`
	BranchType     BranchType      `json:"branch_type,omitempty"`
	Config         json.RawMessage `json:"config,omitempty"`
}

// Typed per-kind configurations. The raw JSON blob stored on an Action is
// decoded into exactly one of these by DecodeConfig.

type SendEmailConfig struct {
	RecipientField string `json:"recipient_field,omitempty"` // defaults to "email"
	Subject        string `json:"subject"`
	Body           string `json:"body"`
}

type CreateTaskConfig struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	DueInDays   int    `json:"due_in_days,omitempty"`
	AssigneeID  string `json:"assignee_id,omitempty"`
	Priority    string `json:"priority,omitempty"`
}

type UpdateFieldConfig struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

type SendWebhookConfig struct {
	URL          string            `json:"url"`
	Method       string            `json:"method,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
	BodyTemplate string            `json:"body_template,omitempty"`
}

type AssignOwnerConfig struct {
	RuleID     string `json:"rule_id"`
	OwnerField string `json:"owner_field,omitempty"` // defaults to "ownerId"
}

type TagConfig struct {
	Tag string `json:"tag"`
}

type CreateActivityConfig struct {
	ActivityType string `json:"activity_type"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
}

type SendNotificationConfig struct {
	UserIDField string `json:"user_id_field,omitempty"` // defaults to "ownerId"
	Title       string `json:"title"`
	Message     string `json:"message,omitempty"`
}

type WaitDelayConfig struct {
	Days  int `json:"days,omitempty"`
	Hours int `json:"hours,omitempty"`
}

type ConditionBranchConfig struct {
	Conditions []Condition `json:"conditions"`
}

// ErrUnknownActionKind is returned when decoding configuration for an action
// kind the engine does not recognize.
var ErrUnknownActionKind = errors.New("unknown action kind")

// DecodeConfig decodes the action's raw configuration blob into the typed
// config struct for its kind. A nil blob decodes to the kind's zero config.
func (a *Action) DecodeConfig() (any, error) {
	decode := func(target any) (any, error) {
		if len(a.Config) == 0 {
			return target, nil
		}

		err := json.Unmarshal(a.Config, target)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s config: %w", a.Kind, err)
		}

		return target, nil
	}

	switch a.Kind {
	case ActionSendEmail:
		return decode(&SendEmailConfig{})
	case ActionCreateTask:
		return decode(&CreateTaskConfig{})
	case ActionUpdateField:
		return decode(&UpdateFieldConfig{})
	case ActionSendWebhook:
		return decode(&SendWebhookConfig{})
	case ActionAssignOwner:
		return decode(&AssignOwnerConfig{})
	case ActionAddTag, ActionRemoveTag:
		return decode(&TagConfig{})
	case ActionCreateActivity:
		return decode(&CreateActivityConfig{})
	case ActionSendNotification:
		return decode(&SendNotificationConfig{})
	case ActionWaitDelay:
		return decode(&WaitDelayConfig{})
	case ActionConditionBranch:
		return decode(&ConditionBranchConfig{})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownActionKind, a.Kind)
	}
}
