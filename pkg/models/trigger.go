package models

// TriggerKind identifies the entity lifecycle event a trigger reacts to.
type TriggerKind string

const (
	TriggerRecordCreated TriggerKind = "record_created"
	TriggerRecordUpdated TriggerKind = "record_updated"
	TriggerFieldChanged  TriggerKind = "field_changed"
	TriggerStageChanged  TriggerKind = "stage_changed"
	TriggerDateBased     TriggerKind = "date_based"
	TriggerManual        TriggerKind = "manual"
)

// DateDirection says whether a date-based trigger fires before or after the
// date stored in the watched field.
type DateDirection string

const (
	DateDirectionBefore DateDirection = "before"
	DateDirectionAfter  DateDirection = "after"
)

// Trigger makes a workflow eligible to run for one event kind. Field,
// FromValue and ToValue narrow field_changed and stage_changed triggers;
// Conditions are ANDed on top of the value-transition check. DateField,
// DateOffsetDays and DateDirection configure date_based triggers, fired by
// the scheduler binary.
type Trigger struct {
	ID             string        `json:"id"`
	Kind           TriggerKind   `json:"kind" validate:"required"`
	Field          string        `json:"field,omitempty"`
	FromValue      any           `json:"from_value,omitempty"`
	ToValue        any           `json:"to_value,omitempty"`
	Conditions     []Condition   `json:"conditions,omitempty"`
	DateField      string        `json:"date_field,omitempty"`
	DateOffsetDays int           `json:"date_offset_days,omitempty"`
	DateDirection  DateDirection `json:"date_direction,omitempty"`
}
