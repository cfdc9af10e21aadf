package template

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fluxcrm/automation/pkg/models"
)

func TestRender_SimplePlaceholders(t *testing.T) {
	entity := models.Snapshot{"firstName": "Ada", "amount": 1200.5}

	assert.Equal(t, "Hello Ada", Render("Hello {{firstName}}", entity))
	assert.Equal(t, "Deal worth 1200.5", Render("Deal worth {{amount}}", entity))
	assert.Equal(t, "no placeholders here", Render("no placeholders here", entity))
}

func TestRender_NestedPlaceholders(t *testing.T) {
	entity := models.Snapshot{
		"company": map[string]any{"name": "Initech"},
		"owner":   models.Snapshot{"email": "ada@initech.test"},
	}

	assert.Equal(t, "Initech", Render("{{company.name}}", entity))
	assert.Equal(t, "ada@initech.test", Render("{{owner.email}}", entity))
}

func TestRender_UnresolvedPlaceholdersStayVerbatim(t *testing.T) {
	entity := models.Snapshot{
		"name":  "Ada",
		"owner": nil,
		"plain": "string",
	}

	assert.Equal(t, "{{missing}}", Render("{{missing}}", entity))
	assert.Equal(t, "{{owner}}", Render("{{owner}}", entity))
	// Sub-field lookup through a non-object parent.
	assert.Equal(t, "{{plain.sub}}", Render("{{plain.sub}}", entity))
	assert.Equal(t, "{{name.sub}}", Render("{{name.sub}}", entity))
	assert.Equal(t, "Hi Ada, re {{missing}}", Render("Hi {{name}}, re {{missing}}", entity))
}

func TestRender_WhitespaceInsidePlaceholder(t *testing.T) {
	entity := models.Snapshot{"name": "Ada"}

	assert.Equal(t, "Ada", Render("{{ name }}", entity))
}
