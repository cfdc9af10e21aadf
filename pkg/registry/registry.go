// Package registry holds the JSON schemas for action configurations and
// validates raw config blobs before a workflow is persisted or executed.
package registry

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/fluxcrm/automation/pkg/models"
)

// Registry maps action kinds to their config schemas.
type Registry struct {
	schemas map[models.ActionKind]*gojsonschema.Schema
}

func NewRegistry() (*Registry, error) {
	r := &Registry{schemas: make(map[models.ActionKind]*gojsonschema.Schema)}

	for kind, raw := range actionConfigSchemas {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema for action kind %s: %w", kind, err)
		}

		r.schemas[kind] = schema
	}

	return r, nil
}

// Kinds returns every action kind with a registered schema.
func (r *Registry) Kinds() []models.ActionKind {
	kinds := make([]models.ActionKind, 0, len(r.schemas))
	for kind := range r.schemas {
		kinds = append(kinds, kind)
	}

	return kinds
}

// ValidateAction checks an action's raw config against its kind's schema.
func (r *Registry) ValidateAction(action models.Action) error {
	schema, ok := r.schemas[action.Kind]
	if !ok {
		return fmt.Errorf("action kind %q not registered: %w", action.Kind, models.ErrUnknownActionKind)
	}

	config := action.Config
	if len(config) == 0 {
		config = json.RawMessage(`{}`)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(config))
	if err != nil {
		return fmt.Errorf("failed to validate config for action %s: %w", action.ID, err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, resultError := range result.Errors() {
			messages = append(messages, resultError.String())
		}

		return fmt.Errorf("invalid config for action %s (%s): %s",
			action.ID, action.Kind, strings.Join(messages, "; "))
	}

	return nil
}
