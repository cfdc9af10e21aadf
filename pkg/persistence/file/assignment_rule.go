package file

import (
	"context"

	"github.com/google/uuid"

	"github.com/fluxcrm/automation/pkg/models"
	"github.com/fluxcrm/automation/pkg/persistence"
)

// AssignmentRuleRepository stores assignment rules as JSON documents. The
// collection mutex makes NextRotationIndex a single atomic step for this
// process, which is the strongest guarantee a file backend can give.
type AssignmentRuleRepository struct {
	col *collection
}

func NewAssignmentRuleRepository(root string) *AssignmentRuleRepository {
	return &AssignmentRuleRepository{col: newCollection(root, "assignment_rules")}
}

func (r *AssignmentRuleRepository) ByID(_ context.Context, id string) (*models.AssignmentRule, error) {
	r.col.mu.Lock()
	defer r.col.mu.Unlock()

	return r.byID(id)
}

func (r *AssignmentRuleRepository) byID(id string) (*models.AssignmentRule, error) {
	var rule models.AssignmentRule

	found, err := r.col.read(id, &rule)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.NewStoreError("ByID", "assignment rule", id, persistence.ErrAssignmentRuleNotFound)
	}

	return &rule, nil
}

func (r *AssignmentRuleRepository) ActiveByEntityKind(_ context.Context, kind string) ([]*models.AssignmentRule, error) {
	r.col.mu.Lock()
	defer r.col.mu.Unlock()

	ids, err := r.col.ids()
	if err != nil {
		return nil, err
	}

	matched := make([]*models.AssignmentRule, 0)

	for _, id := range ids {
		rule, err := r.byID(id)
		if err != nil {
			return nil, err
		}

		if rule.Active && rule.EntityKind == kind {
			matched = append(matched, rule)
		}
	}

	sortRulesByPriority(matched)

	return matched, nil
}

func (r *AssignmentRuleRepository) Save(_ context.Context, rule *models.AssignmentRule) error {
	r.col.mu.Lock()
	defer r.col.mu.Unlock()

	if rule.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return persistence.NewStoreError("Save", "assignment rule", "", err)
		}

		rule.ID = id.String()
		rule.LastAssignedIndex = -1
	}

	return r.col.write(rule.ID, rule)
}

func (r *AssignmentRuleRepository) NextRotationIndex(_ context.Context, id string, poolSize int) (int, error) {
	if poolSize <= 0 {
		return 0, persistence.NewStoreError("NextRotationIndex", "assignment rule", id, persistence.ErrEmptyRotationPool)
	}

	r.col.mu.Lock()
	defer r.col.mu.Unlock()

	rule, err := r.byID(id)
	if err != nil {
		return 0, err
	}

	next := (rule.LastAssignedIndex + 1) % poolSize
	if next < 0 {
		next += poolSize
	}

	rule.LastAssignedIndex = next

	err = r.col.write(id, rule)
	if err != nil {
		return 0, err
	}

	return next, nil
}

func sortRulesByPriority(rules []*models.AssignmentRule) {
	for i := 1; i < len(rules); i++ {
		for j := i; j > 0 && rules[j-1].Priority > rules[j].Priority; j-- {
			rules[j-1], rules[j] = rules[j], rules[j-1]
		}
	}
}
