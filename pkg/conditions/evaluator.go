// Package conditions evaluates declarative field predicates against entity
// snapshots. It is used by the workflow engine for trigger filtering and
// condition_branch actions, and exported standalone for non-workflow rule
// consumers such as SLA policies and saved-view filters.
package conditions

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/fluxcrm/automation/pkg/models"
)

// Evaluate reports whether the entity snapshot satisfies every condition in
// the list. An empty list is vacuously satisfied. Conditions are ANDed; there
// is no OR combinator at this layer.
//
// Type mismatches never raise an error: a comparison that cannot be performed
// evaluates to false, so a malformed rule silently never matches instead of
// breaking the dispatcher.
func Evaluate(conds []models.Condition, entity models.Snapshot) bool {
	for _, cond := range conds {
		if !evaluateOne(cond, entity) {
			return false
		}
	}

	return true
}

func evaluateOne(cond models.Condition, entity models.Snapshot) bool {
	fieldValue, exists := entity[cond.Field]
	if !exists {
		fieldValue = nil
	}

	switch cond.Operator {
	case models.OpEquals:
		return equalValues(fieldValue, cond.Value)
	case models.OpNotEquals:
		return !equalValues(fieldValue, cond.Value)
	case models.OpContains:
		return strings.Contains(lowerString(fieldValue), lowerString(cond.Value))
	case models.OpNotContains:
		return !strings.Contains(lowerString(fieldValue), lowerString(cond.Value))
	case models.OpStartsWith:
		return strings.HasPrefix(lowerString(fieldValue), lowerString(cond.Value))
	case models.OpEndsWith:
		return strings.HasSuffix(lowerString(fieldValue), lowerString(cond.Value))
	case models.OpGreaterThan:
		return compareNumbers(fieldValue, cond.Value, func(a, b float64) bool { return a > b })
	case models.OpLessThan:
		return compareNumbers(fieldValue, cond.Value, func(a, b float64) bool { return a < b })
	case models.OpGreaterThanOrEquals:
		return compareNumbers(fieldValue, cond.Value, func(a, b float64) bool { return a >= b })
	case models.OpLessThanOrEquals:
		return compareNumbers(fieldValue, cond.Value, func(a, b float64) bool { return a <= b })
	case models.OpIsEmpty:
		return isEmpty(fieldValue)
	case models.OpIsNotEmpty:
		return !isEmpty(fieldValue)
	case models.OpIn:
		return inList(fieldValue, cond.Value)
	case models.OpNotIn:
		return !inList(fieldValue, cond.Value)
	default:
		// Unknown operator: fail closed.
		return false
	}
}

// equalValues is strict equality on raw values. Numeric types are normalized
// so an int condition value matches a float64 snapshot value decoded from
// JSON, but strings never compare equal to numbers.
func equalValues(a, b any) bool {
	fa, aNum := asNumber(a)
	fb, bNum := asNumber(b)

	if aNum || bNum {
		return aNum && bNum && fa == fb
	}

	return reflect.DeepEqual(a, b)
}

// asNumber accepts only genuinely numeric types, unlike toFloat which also
// coerces numeric strings for the ordering operators.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func compareNumbers(a, b any, cmp func(a, b float64) bool) bool {
	fa, ok := toFloat(a)
	if !ok {
		return false
	}

	fb, ok := toFloat(b)
	if !ok {
		return false
	}

	return cmp(fa, fb)
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}

	s, ok := v.(string)

	return ok && s == ""
}

func inList(fieldValue, listValue any) bool {
	switch list := listValue.(type) {
	case []any:
		for _, item := range list {
			if equalValues(fieldValue, item) {
				return true
			}
		}
	case []string:
		for _, item := range list {
			if equalValues(fieldValue, item) {
				return true
			}
		}
	}

	// Non-list comparison value: membership is false.
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}

		return f, true
	default:
		return 0, false
	}
}

func lowerString(v any) string {
	return strings.ToLower(Stringify(v))
}

// Stringify renders a snapshot value the way the engine's string operators
// see it: nil becomes the empty string, everything else its default format.
func Stringify(v any) string {
	if v == nil {
		return ""
	}

	if s, ok := v.(string); ok {
		return s
	}

	return fmt.Sprintf("%v", v)
}
