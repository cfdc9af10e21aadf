package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxcrm/automation/pkg/crm"
	"github.com/fluxcrm/automation/pkg/models"
)

func newScanHarness(t *testing.T) (*dispatchHarness, *Scanner) {
	t.Helper()

	h := newDispatchHarness(t)
	scanner := NewScanner(h.persistence, h.collaborators.Adapters, h.dispatcher, testLogger())

	return h, scanner
}

func (h *dispatchHarness) putContact(t *testing.T, id string, snapshot map[string]any) {
	t.Helper()

	adapter, err := h.collaborators.Adapters.Get(crm.KindContacts)
	require.NoError(t, err)

	adapter.(*crm.CountingMemoryAdapter).Put(id, snapshot)
}

func dateWorkflow(offsetDays int, direction models.DateDirection) *models.Workflow {
	return &models.Workflow{
		Name:       "Renewal reminder",
		EntityKind: crm.KindContacts,
		Status:     models.WorkflowStatusActive,
		Triggers: []*models.Trigger{{
			ID:             "t-1",
			Kind:           models.TriggerDateBased,
			DateField:      "renewalDate",
			DateOffsetDays: offsetDays,
			DateDirection:  direction,
		}},
		Actions: []*models.Action{
			rawAction("a-1", 1, models.ActionCreateTask, `{"title": "Renewal for {{firstName}}"}`),
		},
	}
}

func TestScan_FiresBeforeOffset(t *testing.T) {
	h, scanner := newScanHarness(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	workflow := dateWorkflow(7, models.DateDirectionBefore)
	h.saveWorkflow(t, workflow)

	// Renewal in exactly seven days: the reminder is due today.
	h.putContact(t, "c-due", map[string]any{
		"firstName":   "Ada",
		"renewalDate": "2026-03-17",
	})
	// Renewal further out: not due.
	h.putContact(t, "c-later", map[string]any{
		"firstName":   "Grace",
		"renewalDate": "2026-03-25",
	})

	require.NoError(t, scanner.Scan(ctx, now))

	executions := h.executions(t, workflow.ID)
	require.Len(t, executions, 1)
	assert.Equal(t, "c-due", executions[0].EntityID)
	assert.Equal(t, models.TriggerDateBased, executions[0].TriggerKind)

	tasks := h.ledger.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "Renewal for Ada", tasks[0].Title)
}

func TestScan_FiresAfterOffset(t *testing.T) {
	h, scanner := newScanHarness(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	workflow := dateWorkflow(3, models.DateDirectionAfter)
	h.saveWorkflow(t, workflow)

	// Signed up three days ago: follow-up due today.
	h.putContact(t, "c-1", map[string]any{
		"firstName":   "Ada",
		"renewalDate": "2026-03-07T09:30:00Z",
	})

	require.NoError(t, scanner.Scan(ctx, now))

	assert.Len(t, h.executions(t, workflow.ID), 1)
}

func TestScan_SkipsUnparseableAndMissingDates(t *testing.T) {
	h, scanner := newScanHarness(t)
	ctx := context.Background()

	workflow := dateWorkflow(0, models.DateDirectionAfter)
	h.saveWorkflow(t, workflow)

	h.putContact(t, "c-bad", map[string]any{"renewalDate": "soon"})
	h.putContact(t, "c-none", map[string]any{"firstName": "Ada"})

	require.NoError(t, scanner.Scan(ctx, time.Now().UTC()))

	assert.Empty(t, h.executions(t, workflow.ID))
}

func TestScan_HonorsTriggerConditions(t *testing.T) {
	h, scanner := newScanHarness(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	workflow := dateWorkflow(0, models.DateDirectionAfter)
	workflow.Triggers[0].Conditions = []models.Condition{
		{Field: "tier", Operator: models.OpEquals, Value: "vip"},
	}
	h.saveWorkflow(t, workflow)

	h.putContact(t, "c-basic", map[string]any{"tier": "basic", "renewalDate": "2026-03-10"})
	h.putContact(t, "c-vip", map[string]any{"tier": "vip", "renewalDate": "2026-03-10"})

	require.NoError(t, scanner.Scan(ctx, now))

	executions := h.executions(t, workflow.ID)
	require.Len(t, executions, 1)
	assert.Equal(t, "c-vip", executions[0].EntityID)
}

func TestScan_RunOncePreventsDailyRefiring(t *testing.T) {
	h, scanner := newScanHarness(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	workflow := dateWorkflow(0, models.DateDirectionAfter)
	workflow.RunOnce = true
	h.saveWorkflow(t, workflow)

	h.putContact(t, "c-1", map[string]any{"renewalDate": "2026-03-10"})

	require.NoError(t, scanner.Scan(ctx, now))
	require.NoError(t, scanner.Scan(ctx, now))

	assert.Len(t, h.executions(t, workflow.ID), 1)
}
