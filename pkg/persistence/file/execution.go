package file

import (
	"context"

	"github.com/google/uuid"

	"github.com/fluxcrm/automation/pkg/models"
	"github.com/fluxcrm/automation/pkg/persistence"
)

// ExecutionRepository stores the execution ledger as JSON documents.
type ExecutionRepository struct {
	col *collection
}

func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{col: newCollection(root, "executions")}
}

func (r *ExecutionRepository) Create(_ context.Context, execution *models.Execution) error {
	r.col.mu.Lock()
	defer r.col.mu.Unlock()

	if execution.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return persistence.NewStoreError("Create", "execution", "", err)
		}

		execution.ID = id.String()
	}

	return r.col.write(execution.ID, execution)
}

func (r *ExecutionRepository) Finalize(_ context.Context, execution *models.Execution) error {
	r.col.mu.Lock()
	defer r.col.mu.Unlock()

	var existing models.Execution

	found, err := r.col.read(execution.ID, &existing)
	if err != nil {
		return err
	}

	if !found {
		return persistence.NewStoreError("Finalize", "execution", execution.ID, persistence.ErrExecutionNotFound)
	}

	return r.col.write(execution.ID, execution)
}

func (r *ExecutionRepository) ByID(_ context.Context, id string) (*models.Execution, error) {
	r.col.mu.Lock()
	defer r.col.mu.Unlock()

	var execution models.Execution

	found, err := r.col.read(id, &execution)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.NewStoreError("ByID", "execution", id, persistence.ErrExecutionNotFound)
	}

	return &execution, nil
}

func (r *ExecutionRepository) ByWorkflow(_ context.Context, workflowID string) ([]*models.Execution, error) {
	r.col.mu.Lock()
	defer r.col.mu.Unlock()

	executions, err := r.allExecutions()
	if err != nil {
		return nil, err
	}

	matched := make([]*models.Execution, 0)

	for _, execution := range executions {
		if execution.WorkflowID == workflowID {
			matched = append(matched, execution)
		}
	}

	return matched, nil
}

func (r *ExecutionRepository) HasCompleted(_ context.Context, workflowID, entityKind, entityID string) (bool, error) {
	r.col.mu.Lock()
	defer r.col.mu.Unlock()

	executions, err := r.allExecutions()
	if err != nil {
		return false, err
	}

	for _, execution := range executions {
		if execution.WorkflowID == workflowID &&
			execution.EntityKind == entityKind &&
			execution.EntityID == entityID &&
			execution.Status == models.ExecutionCompleted {
			return true, nil
		}
	}

	return false, nil
}

func (r *ExecutionRepository) allExecutions() ([]*models.Execution, error) {
	ids, err := r.col.ids()
	if err != nil {
		return nil, err
	}

	executions := make([]*models.Execution, 0, len(ids))

	for _, id := range ids {
		var execution models.Execution

		found, err := r.col.read(id, &execution)
		if err != nil {
			return nil, err
		}

		if found {
			executions = append(executions, &execution)
		}
	}

	return executions, nil
}
