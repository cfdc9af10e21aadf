package models

// ConditionOperator is the comparison applied by a single condition.
type ConditionOperator string

const (
	OpEquals              ConditionOperator = "equals"
	OpNotEquals           ConditionOperator = "not_equals"
	OpContains            ConditionOperator = "contains"
	OpNotContains         ConditionOperator = "not_contains"
	OpStartsWith          ConditionOperator = "starts_with"
	OpEndsWith            ConditionOperator = "ends_with"
	OpGreaterThan         ConditionOperator = "greater_than"
	OpLessThan            ConditionOperator = "less_than"
	OpGreaterThanOrEquals ConditionOperator = "greater_than_or_equals"
	OpLessThanOrEquals    ConditionOperator = "less_than_or_equals"
	OpIsEmpty             ConditionOperator = "is_empty"
	OpIsNotEmpty          ConditionOperator = "is_not_empty"
	OpIn                  ConditionOperator = "in"
	OpNotIn               ConditionOperator = "not_in"
)

// Condition is a single (field, operator, value) predicate evaluated against
// an entity snapshot.
type Condition struct {
	Field    string            `json:"field"    validate:"required"`
	Operator ConditionOperator `json:"operator" validate:"required"`
	Value    any               `json:"value,omitempty"`
}

// Snapshot is the materialized set of field values for the record that
// triggered or is targeted by a workflow run.
type Snapshot map[string]any
