// Package template substitutes entity snapshot fields into configured
// strings for dynamic action configuration.
package template

import (
	"regexp"
	"strings"

	"github.com/fluxcrm/automation/pkg/conditions"
	"github.com/fluxcrm/automation/pkg/models"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)(?:\.([A-Za-z_][A-Za-z0-9_]*))?\s*\}\}`)

// Render substitutes {{field}} and {{object.field}} placeholders using the
// entity snapshot. A placeholder whose field is missing, nil, or whose parent
// is not an object is left verbatim. There is no recursive evaluation and no
// escaping mechanism.
func Render(templateStr string, entity models.Snapshot) string {
	if !strings.Contains(templateStr, "{{") {
		return templateStr
	}

	return placeholderPattern.ReplaceAllStringFunc(templateStr, func(match string) string {
		groups := placeholderPattern.FindStringSubmatch(match)
		name, sub := groups[1], groups[2]

		value, exists := entity[name]
		if !exists || value == nil {
			return match
		}

		if sub == "" {
			return conditions.Stringify(value)
		}

		var nested map[string]any

		switch m := value.(type) {
		case map[string]any:
			nested = m
		case models.Snapshot:
			nested = m
		default:
			return match
		}

		subValue, exists := nested[sub]
		if !exists || subValue == nil {
			return match
		}

		return conditions.Stringify(subValue)
	})
}
