package registry

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxcrm/automation/pkg/models"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()

	reg, err := NewRegistry()
	require.NoError(t, err)

	return reg
}

func configuredAction(kind models.ActionKind, config string) models.Action {
	return models.Action{ID: "a-1", Kind: kind, Config: json.RawMessage(config)}
}

func TestNewRegistry_CoversEveryActionKind(t *testing.T) {
	reg := newTestRegistry(t)

	kinds := reg.Kinds()
	assert.Len(t, kinds, 11)
	assert.Contains(t, kinds, models.ActionSendEmail)
	assert.Contains(t, kinds, models.ActionConditionBranch)
}

func TestValidateAction_AcceptsValidConfigs(t *testing.T) {
	reg := newTestRegistry(t)

	valid := []models.Action{
		configuredAction(models.ActionSendEmail, `{"subject": "Hi {{firstName}}", "body": "Welcome"}`),
		configuredAction(models.ActionCreateTask, `{"title": "Call", "due_in_days": 2, "priority": "high"}`),
		configuredAction(models.ActionUpdateField, `{"field": "status", "value": 5}`),
		configuredAction(models.ActionSendWebhook, `{"url": "https://example.test/hook", "headers": {"X-Key": "v"}}`),
		configuredAction(models.ActionAssignOwner, `{"rule_id": "r-1"}`),
		configuredAction(models.ActionAddTag, `{"tag": "vip"}`),
		configuredAction(models.ActionCreateActivity, `{"activity_type": "note", "title": "Logged"}`),
		configuredAction(models.ActionSendNotification, `{"title": "Heads up"}`),
		configuredAction(models.ActionWaitDelay, `{"days": 1, "hours": 4}`),
		configuredAction(models.ActionWaitDelay, ``),
		configuredAction(models.ActionConditionBranch,
			`{"conditions": [{"field": "stage", "operator": "equals", "value": "won"}]}`),
	}

	for _, action := range valid {
		assert.NoError(t, reg.ValidateAction(action), "kind %s config %s", action.Kind, action.Config)
	}
}

func TestValidateAction_RejectsInvalidConfigs(t *testing.T) {
	reg := newTestRegistry(t)

	invalid := []models.Action{
		configuredAction(models.ActionSendEmail, `{"body": "no subject"}`),
		configuredAction(models.ActionCreateTask, `{"title": ""}`),
		configuredAction(models.ActionCreateTask, `{"title": "x", "priority": "whenever"}`),
		configuredAction(models.ActionCreateTask, `{"title": "x", "due_in_days": -1}`),
		configuredAction(models.ActionUpdateField, `{"value": 5}`),
		configuredAction(models.ActionSendWebhook, `{}`),
		configuredAction(models.ActionAssignOwner, `{"owner_field": "ownerId"}`),
		configuredAction(models.ActionAddTag, `{"tag": ""}`),
		configuredAction(models.ActionSendEmail, `{"subject": "x", "unexpected": true}`),
	}

	for _, action := range invalid {
		assert.Error(t, reg.ValidateAction(action), "kind %s config %s", action.Kind, action.Config)
	}
}

func TestValidateAction_UnknownKind(t *testing.T) {
	reg := newTestRegistry(t)

	err := reg.ValidateAction(models.Action{ID: "a-1", Kind: "teleport"})
	assert.ErrorIs(t, err, models.ErrUnknownActionKind)
}
