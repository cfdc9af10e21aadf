// Package persistence provides the storage abstraction for workflows,
// executions and assignment rules.
package persistence

import (
	"context"
	"time"

	"github.com/fluxcrm/automation/pkg/models"
)

// WorkflowRepository stores workflow definitions and their run counters.
type WorkflowRepository interface {
	All(ctx context.Context) ([]*models.Workflow, error)
	ByID(ctx context.Context, id string) (*models.Workflow, error)
	// ActiveByEntityKind returns dispatchable workflows for one entity kind,
	// ordered by run order.
	ActiveByEntityKind(ctx context.Context, kind string) ([]*models.Workflow, error)
	Save(ctx context.Context, workflow *models.Workflow) error
	Delete(ctx context.Context, id string) error
	// RecordExecution increments the workflow's total execution counter and
	// stamps its last execution time.
	RecordExecution(ctx context.Context, id string, at time.Time) error
}

// ExecutionRepository is the execution ledger. Executions are created in the
// running state and finalized exactly once; the engine never deletes them.
type ExecutionRepository interface {
	Create(ctx context.Context, execution *models.Execution) error
	Finalize(ctx context.Context, execution *models.Execution) error
	ByID(ctx context.Context, id string) (*models.Execution, error)
	ByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error)
	// HasCompleted reports whether any completed execution exists for the
	// workflow and target entity pair. Run-once enforcement depends on it.
	HasCompleted(ctx context.Context, workflowID, entityKind, entityID string) (bool, error)
}

// AssignmentRuleRepository stores assignment rules, including the persisted
// round-robin cursor.
type AssignmentRuleRepository interface {
	ByID(ctx context.Context, id string) (*models.AssignmentRule, error)
	ActiveByEntityKind(ctx context.Context, kind string) ([]*models.AssignmentRule, error)
	Save(ctx context.Context, rule *models.AssignmentRule) error
	// NextRotationIndex advances the rule's rotation cursor as one atomic
	// step and returns the new index, already reduced modulo poolSize.
	// Concurrent callers must never observe the same index for the same pool.
	NextRotationIndex(ctx context.Context, id string, poolSize int) (int, error)
}

// Persistence is the root storage interface implemented by the file and
// PostgreSQL backends.
type Persistence interface {
	Workflows() WorkflowRepository
	Executions() ExecutionRepository
	AssignmentRules() AssignmentRuleRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
