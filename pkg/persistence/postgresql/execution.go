package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/fluxcrm/automation/pkg/models"
	"github.com/fluxcrm/automation/pkg/persistence"
)

// ExecutionRepository persists the execution ledger.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

const executionColumns = `
	id
  , workflow_id
  , trigger_kind
  , triggered_by
  , entity_kind
  , entity_id
  , status
  , actions_executed
  , results
  , error
  , started_at
  , finished_at
`

func (r *ExecutionRepository) Create(ctx context.Context, execution *models.Execution) error {
	if execution.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate execution ID: %w", err)
		}

		execution.ID = id.String()
	}

	resultsJSON, err := json.Marshal(execution.Results)
	if err != nil {
		return fmt.Errorf("failed to marshal action results: %w", err)
	}

	query := `
		INSERT INTO executions (
			id, workflow_id, trigger_kind, triggered_by, entity_kind, entity_id,
			status, actions_executed, results, error, started_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = r.db.ExecContext(ctx, query,
		execution.ID, execution.WorkflowID, execution.TriggerKind,
		nullString(execution.TriggeredBy), execution.EntityKind, execution.EntityID,
		execution.Status, execution.ActionsExecuted, resultsJSON,
		nullString(execution.Error), execution.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create execution: %w", err)
	}

	return nil
}

// Finalize writes the terminal state of a run. It only touches rows still in
// the running state so a finalized execution is never mutated again.
func (r *ExecutionRepository) Finalize(ctx context.Context, execution *models.Execution) error {
	resultsJSON, err := json.Marshal(execution.Results)
	if err != nil {
		return fmt.Errorf("failed to marshal action results: %w", err)
	}

	query := `
		UPDATE executions
		SET status = $2, actions_executed = $3, results = $4, error = $5, finished_at = $6
		WHERE id = $1 AND status = 'running'
	`

	result, err := r.db.ExecContext(ctx, query,
		execution.ID, execution.Status, execution.ActionsExecuted,
		resultsJSON, nullString(execution.Error), execution.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to finalize execution: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check finalize result: %w", err)
	}

	if affected == 0 {
		return persistence.NewStoreError("Finalize", "execution", execution.ID, persistence.ErrExecutionNotFound)
	}

	return nil
}

func (r *ExecutionRepository) ByID(ctx context.Context, id string) (*models.Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM executions WHERE id = $1`

	execution, err := scanExecution(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("ByID", "execution", id, persistence.ErrExecutionNotFound)
		}

		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}

	return execution, nil
}

func (r *ExecutionRepository) ByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error) {
	query := `SELECT ` + executionColumns + `
		FROM executions
		WHERE workflow_id = $1
		ORDER BY started_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	executions := make([]*models.Execution, 0)

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

func (r *ExecutionRepository) HasCompleted(ctx context.Context, workflowID, entityKind, entityID string) (bool, error) {
	var exists bool

	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM executions
			WHERE workflow_id = $1 AND entity_kind = $2 AND entity_id = $3 AND status = 'completed'
		)
	`, workflowID, entityKind, entityID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check completed executions: %w", err)
	}

	return exists, nil
}

func scanExecution(row rowScanner) (*models.Execution, error) {
	var (
		execution   models.Execution
		triggeredBy sql.NullString
		resultsJSON []byte
		errMessage  sql.NullString
		finishedAt  sql.NullTime
	)

	err := row.Scan(
		&execution.ID, &execution.WorkflowID, &execution.TriggerKind,
		&triggeredBy, &execution.EntityKind, &execution.EntityID,
		&execution.Status, &execution.ActionsExecuted, &resultsJSON,
		&errMessage, &execution.StartedAt, &finishedAt,
	)
	if err != nil {
		return nil, err
	}

	execution.TriggeredBy = triggeredBy.String
	execution.Error = errMessage.String

	if finishedAt.Valid {
		execution.FinishedAt = &finishedAt.Time
	}

	err = json.Unmarshal(resultsJSON, &execution.Results)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal action results: %w", err)
	}

	return &execution, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
