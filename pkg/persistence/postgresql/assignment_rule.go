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

// AssignmentRuleRepository persists assignment rules. The rotation cursor is
// advanced inside the database so concurrent resolutions of the same rule
// never observe the same index.
type AssignmentRuleRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewAssignmentRuleRepository(db *sql.DB, logger *slog.Logger) *AssignmentRuleRepository {
	return &AssignmentRuleRepository{db: db, logger: logger}
}

const assignmentRuleColumns = `
	id
  , name
  , entity_kind
  , active
  , priority
  , method
  , user_id
  , user_ids
  , team_id
  , territory_field
  , territory_map
  , last_assigned_index
`

func (r *AssignmentRuleRepository) ByID(ctx context.Context, id string) (*models.AssignmentRule, error) {
	query := `SELECT ` + assignmentRuleColumns + ` FROM assignment_rules WHERE id = $1`

	rule, err := scanAssignmentRule(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("ByID", "assignment rule", id, persistence.ErrAssignmentRuleNotFound)
		}

		return nil, fmt.Errorf("failed to scan assignment rule: %w", err)
	}

	return rule, nil
}

func (r *AssignmentRuleRepository) ActiveByEntityKind(ctx context.Context, kind string) ([]*models.AssignmentRule, error) {
	query := `SELECT ` + assignmentRuleColumns + `
		FROM assignment_rules
		WHERE entity_kind = $1 AND active
		ORDER BY priority ASC
	`

	rows, err := r.db.QueryContext(ctx, query, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignment rules: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	rules := make([]*models.AssignmentRule, 0)

	for rows.Next() {
		rule, err := scanAssignmentRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment rule: %w", err)
		}

		rules = append(rules, rule)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating assignment rules: %w", err)
	}

	return rules, nil
}

func (r *AssignmentRuleRepository) Save(ctx context.Context, rule *models.AssignmentRule) error {
	if rule.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate assignment rule ID: %w", err)
		}

		rule.ID = id.String()
		rule.LastAssignedIndex = -1
	}

	userIDsJSON, err := json.Marshal(rule.UserIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal user ids: %w", err)
	}

	territoryJSON, err := json.Marshal(rule.TerritoryMap)
	if err != nil {
		return fmt.Errorf("failed to marshal territory map: %w", err)
	}

	query := `
		INSERT INTO assignment_rules (
			id, name, entity_kind, active, priority, method, user_id,
			user_ids, team_id, territory_field, territory_map, last_assigned_index
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			entity_kind = EXCLUDED.entity_kind,
			active = EXCLUDED.active,
			priority = EXCLUDED.priority,
			method = EXCLUDED.method,
			user_id = EXCLUDED.user_id,
			user_ids = EXCLUDED.user_ids,
			team_id = EXCLUDED.team_id,
			territory_field = EXCLUDED.territory_field,
			territory_map = EXCLUDED.territory_map
	`

	_, err = r.db.ExecContext(ctx, query,
		rule.ID, rule.Name, rule.EntityKind, rule.Active, rule.Priority,
		rule.Method, nullString(rule.UserID), userIDsJSON,
		nullString(rule.TeamID), nullString(rule.TerritoryField),
		territoryJSON, rule.LastAssignedIndex,
	)
	if err != nil {
		return fmt.Errorf("failed to save assignment rule: %w", err)
	}

	return nil
}

// NextRotationIndex advances the cursor with a single UPDATE so the
// read-modify-write happens inside the database's row lock. The modulo uses
// the caller's current pool size; a stored index from a larger former pool
// wraps into range.
func (r *AssignmentRuleRepository) NextRotationIndex(ctx context.Context, id string, poolSize int) (int, error) {
	if poolSize <= 0 {
		return 0, persistence.NewStoreError("NextRotationIndex", "assignment rule", id, persistence.ErrEmptyRotationPool)
	}

	var next int

	err := r.db.QueryRowContext(ctx, `
		UPDATE assignment_rules
		SET last_assigned_index = MOD(MOD(last_assigned_index + 1, $2) + $2, $2)
		WHERE id = $1
		RETURNING last_assigned_index
	`, id, poolSize).Scan(&next)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, persistence.NewStoreError("NextRotationIndex", "assignment rule", id, persistence.ErrAssignmentRuleNotFound)
		}

		return 0, fmt.Errorf("failed to advance rotation index: %w", err)
	}

	return next, nil
}

func scanAssignmentRule(row rowScanner) (*models.AssignmentRule, error) {
	var (
		rule           models.AssignmentRule
		userID         sql.NullString
		userIDsJSON    []byte
		teamID         sql.NullString
		territoryField sql.NullString
		territoryJSON  []byte
	)

	err := row.Scan(
		&rule.ID, &rule.Name, &rule.EntityKind, &rule.Active, &rule.Priority,
		&rule.Method, &userID, &userIDsJSON, &teamID, &territoryField,
		&territoryJSON, &rule.LastAssignedIndex,
	)
	if err != nil {
		return nil, err
	}

	rule.UserID = userID.String
	rule.TeamID = teamID.String
	rule.TerritoryField = territoryField.String

	err = json.Unmarshal(userIDsJSON, &rule.UserIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal user ids: %w", err)
	}

	err = json.Unmarshal(territoryJSON, &rule.TerritoryMap)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal territory map: %w", err)
	}

	return &rule, nil
}
