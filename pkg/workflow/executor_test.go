package workflow

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxcrm/automation/pkg/assignment"
	"github.com/fluxcrm/automation/pkg/assignment/rotation"
	"github.com/fluxcrm/automation/pkg/crm"
	"github.com/fluxcrm/automation/pkg/models"
	"github.com/fluxcrm/automation/pkg/persistence/file"
	"github.com/fluxcrm/automation/pkg/runner"
	"github.com/fluxcrm/automation/pkg/webhook"
)

type executorHarness struct {
	persistence   *file.Persistence
	executor      *Executor
	collaborators *crm.Collaborators
	ledger        *crm.MemoryLedger
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newExecutorHarness(t *testing.T) *executorHarness {
	t.Helper()

	logger := testLogger()
	persistence := file.NewPersistence(t.TempDir())
	collaborators, ledger := crm.NewMemoryCollaborators()

	rotationStore := rotation.NewPersistenceStore(persistence.AssignmentRules())
	resolver := assignment.NewResolver(rotationStore, collaborators.Teams, collaborators.Adapters, logger)
	webhooks := webhook.NewDispatcher(webhook.Config{}, webhook.NewMemoryDeliveryLog(), logger)
	actionRunner := runner.NewRunner(collaborators, persistence.AssignmentRules(), resolver, webhooks, logger)

	return &executorHarness{
		persistence:   persistence,
		executor:      NewExecutor(persistence, actionRunner, nil, "test-worker", logger),
		collaborators: collaborators,
		ledger:        ledger,
	}
}

func rawAction(id string, position int, kind models.ActionKind, config string) *models.Action {
	return &models.Action{
		ID:       id,
		Kind:     kind,
		Position: position,
		Config:   json.RawMessage(config),
	}
}

func (h *executorHarness) saveWorkflow(t *testing.T, workflow *models.Workflow) {
	t.Helper()
	require.NoError(t, h.persistence.Workflows().Save(context.Background(), workflow))
}

func contactEvent(id string, entity models.Snapshot) models.EventContext {
	return models.EventContext{EntityKind: crm.KindContacts, EntityID: id, Entity: entity}
}

func TestExecute_CompletedRun(t *testing.T) {
	h := newExecutorHarness(t)
	ctx := context.Background()

	workflow := &models.Workflow{
		Name:       "Welcome sequence",
		EntityKind: crm.KindContacts,
		Status:     models.WorkflowStatusActive,
		Triggers:   []*models.Trigger{{ID: "t-1", Kind: models.TriggerRecordCreated}},
		Actions: []*models.Action{
			rawAction("a-1", 1, models.ActionSendEmail, `{"subject": "Welcome", "body": "Hi {{firstName}}"}`),
			rawAction("a-2", 2, models.ActionCreateTask, `{"title": "Follow up"}`),
		},
	}
	h.saveWorkflow(t, workflow)

	ectx := contactEvent("c-1", models.Snapshot{"email": "a@b.test", "firstName": "Ada"})

	execution, err := h.executor.Execute(ctx, workflow, models.TriggerRecordCreated, ectx)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionCompleted, execution.Status)
	assert.Equal(t, 2, execution.ActionsExecuted)
	assert.Len(t, execution.Results, 2)
	require.NotNil(t, execution.FinishedAt)

	// Ledger record is persisted and final.
	stored, err := h.persistence.Executions().ByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionCompleted, stored.Status)

	// The workflow's run counter advanced.
	saved, err := h.persistence.Workflows().ByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, saved.TotalExecutions)
	require.NotNil(t, saved.LastExecutedAt)

	assert.Len(t, h.ledger.Emails(), 1)
	assert.Len(t, h.ledger.Tasks(), 1)
}

func TestExecute_FailedActionStopsChain(t *testing.T) {
	h := newExecutorHarness(t)

	workflow := &models.Workflow{
		Name:       "Broken chain",
		EntityKind: crm.KindContacts,
		Status:     models.WorkflowStatusActive,
		Triggers:   []*models.Trigger{{ID: "t-1", Kind: models.TriggerRecordCreated}},
		Actions: []*models.Action{
			// No email field on the entity, so the first action fails.
			rawAction("a-1", 1, models.ActionSendEmail, `{"subject": "Hi", "body": "x"}`),
			rawAction("a-2", 2, models.ActionCreateTask, `{"title": "Never created"}`),
		},
	}
	h.saveWorkflow(t, workflow)

	execution, err := h.executor.Execute(context.Background(), workflow,
		models.TriggerRecordCreated, contactEvent("c-1", models.Snapshot{}))
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionFailed, execution.Status)
	assert.Equal(t, 0, execution.ActionsExecuted)
	assert.Len(t, execution.Results, 1)
	assert.Contains(t, execution.Error, "a-1")

	// The chain stopped before the task action.
	assert.Empty(t, h.ledger.Tasks())
}

func TestExecute_SkippedActionContinuesChain(t *testing.T) {
	h := newExecutorHarness(t)

	workflow := &models.Workflow{
		Name:       "Delayed follow up",
		EntityKind: crm.KindContacts,
		Status:     models.WorkflowStatusActive,
		Triggers:   []*models.Trigger{{ID: "t-1", Kind: models.TriggerRecordCreated}},
		Actions: []*models.Action{
			rawAction("a-1", 1, models.ActionWaitDelay, `{"days": 1}`),
			rawAction("a-2", 2, models.ActionCreateTask, `{"title": "Follow up"}`),
		},
	}
	h.saveWorkflow(t, workflow)

	execution, err := h.executor.Execute(context.Background(), workflow,
		models.TriggerRecordCreated, contactEvent("c-1", models.Snapshot{}))
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionCompleted, execution.Status)
	// Only the successful action counts.
	assert.Equal(t, 1, execution.ActionsExecuted)
	assert.Len(t, execution.Results, 2)
	assert.Equal(t, models.ActionResultSkipped, execution.Results[0].Status)
	assert.Len(t, h.ledger.Tasks(), 1)
}

func TestExecute_UnknownActionKindContinuesChain(t *testing.T) {
	h := newExecutorHarness(t)

	workflow := &models.Workflow{
		Name:       "Forward compatible",
		EntityKind: crm.KindContacts,
		Status:     models.WorkflowStatusActive,
		Triggers:   []*models.Trigger{{ID: "t-1", Kind: models.TriggerRecordCreated}},
		Actions: []*models.Action{
			// A kind this engine version does not know.
			rawAction("a-1", 1, "enrich_profile", `{"provider": "x"}`),
			rawAction("a-2", 2, models.ActionCreateTask, `{"title": "Still created"}`),
		},
	}
	h.saveWorkflow(t, workflow)

	execution, err := h.executor.Execute(context.Background(), workflow,
		models.TriggerRecordCreated, contactEvent("c-1", models.Snapshot{}))
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionCompleted, execution.Status)
	assert.Equal(t, 1, execution.ActionsExecuted)
	require.Len(t, execution.Results, 2)
	assert.Equal(t, models.ActionResultSkipped, execution.Results[0].Status)
	assert.Len(t, h.ledger.Tasks(), 1)
}

func TestExecute_ActionsRunInPositionOrder(t *testing.T) {
	h := newExecutorHarness(t)

	workflow := &models.Workflow{
		Name:       "Ordered",
		EntityKind: crm.KindContacts,
		Status:     models.WorkflowStatusActive,
		Triggers:   []*models.Trigger{{ID: "t-1", Kind: models.TriggerRecordCreated}},
		Actions: []*models.Action{
			rawAction("second", 5, models.ActionCreateTask, `{"title": "second"}`),
			rawAction("first", 1, models.ActionCreateTask, `{"title": "first"}`),
		},
	}
	h.saveWorkflow(t, workflow)

	execution, err := h.executor.Execute(context.Background(), workflow,
		models.TriggerRecordCreated, contactEvent("c-1", models.Snapshot{}))
	require.NoError(t, err)

	require.Len(t, execution.Results, 2)
	assert.Equal(t, "first", execution.Results[0].ActionID)
	assert.Equal(t, "second", execution.Results[1].ActionID)

	tasks := h.ledger.Tasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, "first", tasks[0].Title)
}

func TestExecute_BranchChildrenAreNotExecuted(t *testing.T) {
	h := newExecutorHarness(t)

	parent := "branch"
	workflow := &models.Workflow{
		Name:       "Branching",
		EntityKind: crm.KindContacts,
		Status:     models.WorkflowStatusActive,
		Triggers:   []*models.Trigger{{ID: "t-1", Kind: models.TriggerRecordCreated}},
		Actions: []*models.Action{
			rawAction(parent, 1, models.ActionConditionBranch,
				`{"conditions": [{"field": "status", "operator": "equals", "value": "vip"}]}`),
			{
				ID:             "child",
				Kind:           models.ActionCreateTask,
				Position:       2,
				ParentActionID: &parent,
				BranchType:     models.BranchTrue,
				Config:         json.RawMessage(`{"title": "vip task"}`),
			},
		},
	}
	h.saveWorkflow(t, workflow)

	execution, err := h.executor.Execute(context.Background(), workflow,
		models.TriggerRecordCreated, contactEvent("c-1", models.Snapshot{"status": "vip"}))
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionCompleted, execution.Status)
	require.Len(t, execution.Results, 1)
	assert.Equal(t, parent, execution.Results[0].ActionID)
	assert.Empty(t, h.ledger.Tasks())
}

func TestExecuteByID_RejectsInactiveWorkflow(t *testing.T) {
	h := newExecutorHarness(t)
	ctx := context.Background()

	workflow := &models.Workflow{
		Name:       "Paused one",
		EntityKind: crm.KindContacts,
		Status:     models.WorkflowStatusPaused,
		Triggers:   []*models.Trigger{{ID: "t-1", Kind: models.TriggerRecordCreated}},
	}
	h.saveWorkflow(t, workflow)

	_, err := h.executor.ExecuteByID(ctx, workflow.ID, models.TriggerRecordCreated,
		contactEvent("c-1", models.Snapshot{}))
	assert.ErrorContains(t, err, "not active")
}
