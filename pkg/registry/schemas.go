package registry

import "github.com/fluxcrm/automation/pkg/models"

// actionConfigSchemas describes the config shape each action kind accepts.
// Fields a kind defaults at decode time are optional here.
var actionConfigSchemas = map[models.ActionKind]string{
	models.ActionSendEmail: `{
		"type": "object",
		"properties": {
			"recipient_field": {"type": "string"},
			"subject": {"type": "string", "minLength": 1},
			"body": {"type": "string"}
		},
		"required": ["subject"],
		"additionalProperties": false
	}`,
	models.ActionCreateTask: `{
		"type": "object",
		"properties": {
			"title": {"type": "string", "minLength": 1},
			"description": {"type": "string"},
			"due_in_days": {"type": "integer", "minimum": 0},
			"assignee_id": {"type": "string"},
			"priority": {"type": "string", "enum": ["low", "normal", "high", "urgent"]}
		},
		"required": ["title"],
		"additionalProperties": false
	}`,
	models.ActionUpdateField: `{
		"type": "object",
		"properties": {
			"field": {"type": "string", "minLength": 1},
			"value": {}
		},
		"required": ["field"],
		"additionalProperties": false
	}`,
	models.ActionSendWebhook: `{
		"type": "object",
		"properties": {
			"url": {"type": "string", "format": "uri"},
			"method": {"type": "string"},
			"headers": {"type": "object", "additionalProperties": {"type": "string"}},
			"body_template": {"type": "string"}
		},
		"required": ["url"],
		"additionalProperties": false
	}`,
	models.ActionAssignOwner: `{
		"type": "object",
		"properties": {
			"rule_id": {"type": "string", "minLength": 1},
			"owner_field": {"type": "string"}
		},
		"required": ["rule_id"],
		"additionalProperties": false
	}`,
	models.ActionAddTag: tagConfigSchema,
	models.ActionRemoveTag: tagConfigSchema,
	models.ActionCreateActivity: `{
		"type": "object",
		"properties": {
			"activity_type": {"type": "string", "minLength": 1},
			"title": {"type": "string", "minLength": 1},
			"description": {"type": "string"}
		},
		"required": ["activity_type", "title"],
		"additionalProperties": false
	}`,
	models.ActionSendNotification: `{
		"type": "object",
		"properties": {
			"user_id_field": {"type": "string"},
			"title": {"type": "string", "minLength": 1},
			"message": {"type": "string"}
		},
		"required": ["title"],
		"additionalProperties": false
	}`,
	models.ActionWaitDelay: `{
		"type": "object",
		"properties": {
			"days": {"type": "integer", "minimum": 0},
			"hours": {"type": "integer", "minimum": 0}
		},
		"additionalProperties": false
	}`,
	models.ActionConditionBranch: `{
		"type": "object",
		"properties": {
			"conditions": {
				"type": "array",
				"items": {
					"type": "object",
					"properties": {
						"field": {"type": "string", "minLength": 1},
						"operator": {"type": "string"},
						"value": {}
					},
					"required": ["field", "operator"],
					"additionalProperties": false
				}
			}
		},
		"additionalProperties": false
	}`,
}

const tagConfigSchema = `{
	"type": "object",
	"properties": {
		"tag": {"type": "string", "minLength": 1}
	},
	"required": ["tag"],
	"additionalProperties": false
}`
