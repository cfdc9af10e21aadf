package file

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fluxcrm/automation/pkg/models"
	"github.com/fluxcrm/automation/pkg/persistence"
)

// WorkflowRepository stores workflows as JSON documents.
type WorkflowRepository struct {
	col *collection
}

func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{col: newCollection(root, "workflows")}
}

func (r *WorkflowRepository) All(ctx context.Context) ([]*models.Workflow, error) {
	r.col.mu.Lock()
	defer r.col.mu.Unlock()

	return r.all(ctx)
}

func (r *WorkflowRepository) all(_ context.Context) ([]*models.Workflow, error) {
	ids, err := r.col.ids()
	if err != nil {
		return nil, err
	}

	workflows := make([]*models.Workflow, 0, len(ids))

	for _, id := range ids {
		var workflow models.Workflow

		found, err := r.col.read(id, &workflow)
		if err != nil {
			return nil, err
		}

		if found && workflow.DeletedAt == nil {
			workflows = append(workflows, &workflow)
		}
	}

	return workflows, nil
}

func (r *WorkflowRepository) ByID(_ context.Context, id string) (*models.Workflow, error) {
	r.col.mu.Lock()
	defer r.col.mu.Unlock()

	var workflow models.Workflow

	found, err := r.col.read(id, &workflow)
	if err != nil {
		return nil, err
	}

	if !found || workflow.DeletedAt != nil {
		return nil, persistence.NewStoreError("ByID", "workflow", id, persistence.ErrWorkflowNotFound)
	}

	return &workflow, nil
}

func (r *WorkflowRepository) ActiveByEntityKind(ctx context.Context, kind string) ([]*models.Workflow, error) {
	r.col.mu.Lock()
	defer r.col.mu.Unlock()

	all, err := r.all(ctx)
	if err != nil {
		return nil, err
	}

	matched := make([]*models.Workflow, 0)

	for _, workflow := range all {
		if workflow.EntityKind == kind && workflow.IsDispatchable() {
			matched = append(matched, workflow)
		}
	}

	sortWorkflowsByRunOrder(matched)

	return matched, nil
}

func (r *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	r.col.mu.Lock()
	defer r.col.mu.Unlock()

	now := time.Now().UTC()

	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return persistence.NewStoreError("Save", "workflow", "", err)
		}

		workflow.ID = id.String()
	}

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	return r.col.write(workflow.ID, workflow)
}

func (r *WorkflowRepository) Delete(_ context.Context, id string) error {
	r.col.mu.Lock()
	defer r.col.mu.Unlock()

	var workflow models.Workflow

	found, err := r.col.read(id, &workflow)
	if err != nil {
		return err
	}

	if !found {
		return persistence.NewStoreError("Delete", "workflow", id, persistence.ErrWorkflowNotFound)
	}

	now := time.Now().UTC()
	workflow.DeletedAt = &now

	return r.col.write(id, &workflow)
}

func (r *WorkflowRepository) RecordExecution(_ context.Context, id string, at time.Time) error {
	r.col.mu.Lock()
	defer r.col.mu.Unlock()

	var workflow models.Workflow

	found, err := r.col.read(id, &workflow)
	if err != nil {
		return err
	}

	if !found {
		return persistence.NewStoreError("RecordExecution", "workflow", id, persistence.ErrWorkflowNotFound)
	}

	workflow.TotalExecutions++
	workflow.LastExecutedAt = &at

	return r.col.write(id, &workflow)
}

func sortWorkflowsByRunOrder(workflows []*models.Workflow) {
	for i := 1; i < len(workflows); i++ {
		for j := i; j > 0 && workflows[j-1].RunOrder > workflows[j].RunOrder; j-- {
			workflows[j-1], workflows[j] = workflows[j], workflows[j-1]
		}
	}
}
