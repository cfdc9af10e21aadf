package conditions

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fluxcrm/automation/pkg/models"
)

func cond(field string, op models.ConditionOperator, value any) models.Condition {
	return models.Condition{Field: field, Operator: op, Value: value}
}

func TestEvaluate_EmptyConditionListIsSatisfied(t *testing.T) {
	assert.True(t, Evaluate(nil, models.Snapshot{"status": "new"}))
	assert.True(t, Evaluate([]models.Condition{}, models.Snapshot{}))
}

func TestEvaluate_ConditionsAreANDed(t *testing.T) {
	entity := models.Snapshot{"status": "open", "amount": 500.0}

	assert.True(t, Evaluate([]models.Condition{
		cond("status", models.OpEquals, "open"),
		cond("amount", models.OpGreaterThan, 100),
	}, entity))

	assert.False(t, Evaluate([]models.Condition{
		cond("status", models.OpEquals, "open"),
		cond("amount", models.OpGreaterThan, 1000),
	}, entity))
}

func TestEvaluate_EqualsIsStrict(t *testing.T) {
	entity := models.Snapshot{"count": 5.0, "code": "5", "name": "Ada"}

	// JSON numbers decode as float64; an int condition value still matches.
	assert.True(t, Evaluate([]models.Condition{cond("count", models.OpEquals, 5)}, entity))

	// Strings never equal numbers.
	assert.False(t, Evaluate([]models.Condition{cond("code", models.OpEquals, 5)}, entity))
	assert.False(t, Evaluate([]models.Condition{cond("count", models.OpEquals, "5")}, entity))

	assert.True(t, Evaluate([]models.Condition{cond("name", models.OpNotEquals, "Grace")}, entity))
}

func TestEvaluate_StringOperatorsAreCaseInsensitive(t *testing.T) {
	entity := models.Snapshot{"email": "Ada@Example.COM"}

	assert.True(t, Evaluate([]models.Condition{cond("email", models.OpContains, "example")}, entity))
	assert.True(t, Evaluate([]models.Condition{cond("email", models.OpStartsWith, "ADA@")}, entity))
	assert.True(t, Evaluate([]models.Condition{cond("email", models.OpEndsWith, ".com")}, entity))
	assert.False(t, Evaluate([]models.Condition{cond("email", models.OpNotContains, "example")}, entity))
}

func TestEvaluate_OrderingCoercesNumericStrings(t *testing.T) {
	entity := models.Snapshot{"score": "42"}

	assert.True(t, Evaluate([]models.Condition{cond("score", models.OpGreaterThan, 40)}, entity))
	assert.True(t, Evaluate([]models.Condition{cond("score", models.OpLessThanOrEquals, "42")}, entity))
}

func TestEvaluate_OrderingOnNonNumericNeverMatches(t *testing.T) {
	entity := models.Snapshot{"score": "not a number"}

	assert.False(t, Evaluate([]models.Condition{cond("score", models.OpGreaterThan, 1)}, entity))
	assert.False(t, Evaluate([]models.Condition{cond("score", models.OpLessThan, 1)}, entity))
	assert.False(t, Evaluate([]models.Condition{cond("missing", models.OpGreaterThanOrEquals, 1)}, entity))
}

func TestEvaluate_IsEmpty(t *testing.T) {
	entity := models.Snapshot{"phone": "", "owner": nil, "name": "Ada", "amount": 0.0}

	assert.True(t, Evaluate([]models.Condition{cond("phone", models.OpIsEmpty, nil)}, entity))
	assert.True(t, Evaluate([]models.Condition{cond("owner", models.OpIsEmpty, nil)}, entity))
	assert.True(t, Evaluate([]models.Condition{cond("missing", models.OpIsEmpty, nil)}, entity))

	// Zero is a value, not emptiness.
	assert.False(t, Evaluate([]models.Condition{cond("amount", models.OpIsEmpty, nil)}, entity))
	assert.True(t, Evaluate([]models.Condition{cond("name", models.OpIsNotEmpty, nil)}, entity))
}

func TestEvaluate_InOperators(t *testing.T) {
	entity := models.Snapshot{"stage": "qualified", "count": 3.0}

	assert.True(t, Evaluate([]models.Condition{
		cond("stage", models.OpIn, []any{"new", "qualified"}),
	}, entity))
	assert.True(t, Evaluate([]models.Condition{
		cond("stage", models.OpIn, []string{"new", "qualified"}),
	}, entity))
	assert.True(t, Evaluate([]models.Condition{
		cond("count", models.OpIn, []any{1, 2, 3}),
	}, entity))
	assert.False(t, Evaluate([]models.Condition{
		cond("stage", models.OpIn, []any{"won", "lost"}),
	}, entity))

	// A non-list comparison value means no membership.
	assert.False(t, Evaluate([]models.Condition{cond("stage", models.OpIn, "qualified")}, entity))
	assert.True(t, Evaluate([]models.Condition{cond("stage", models.OpNotIn, "qualified")}, entity))
}

func TestEvaluate_UnknownOperatorFailsClosed(t *testing.T) {
	entity := models.Snapshot{"stage": "new"}

	assert.False(t, Evaluate([]models.Condition{cond("stage", "matches_regex", ".*")}, entity))
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "", Stringify(nil))
	assert.Equal(t, "ada", Stringify("ada"))
	assert.Equal(t, "42", Stringify(42))
	assert.Equal(t, "true", Stringify(true))
}
