package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/fluxcrm/automation/pkg/models"
	"github.com/fluxcrm/automation/pkg/persistence"
	"github.com/fluxcrm/automation/pkg/registry"
)

// Service is the validating front door for workflow definitions. Nothing
// reaches the repository without passing struct validation, trigger shape
// checks and per-kind action config schemas.
type Service struct {
	workflows persistence.WorkflowRepository
	registry  *registry.Registry
	validate  *validator.Validate
}

func NewService(workflows persistence.WorkflowRepository, reg *registry.Registry) *Service {
	return &Service{
		workflows: workflows,
		registry:  reg,
		validate:  validator.New(),
	}
}

func (s *Service) All(ctx context.Context) ([]*models.Workflow, error) {
	return s.workflows.All(ctx)
}

func (s *Service) ByID(ctx context.Context, id string) (*models.Workflow, error) {
	return s.workflows.ByID(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.workflows.Delete(ctx, id)
}

// Save validates and persists a workflow, assigning ids to triggers and
// actions that lack them.
func (s *Service) Save(ctx context.Context, workflow *models.Workflow) error {
	if workflow.Status == "" {
		workflow.Status = models.WorkflowStatusDraft
	}

	err := s.Validate(workflow)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	for _, trigger := range workflow.Triggers {
		if trigger.ID == "" {
			trigger.ID = uuid.New().String()
		}
	}

	for _, action := range workflow.Actions {
		if action.ID == "" {
			action.ID = uuid.New().String()
		}
	}

	return s.workflows.Save(ctx, workflow)
}

// Validate checks the whole definition without persisting it.
func (s *Service) Validate(workflow *models.Workflow) error {
	err := s.validate.Struct(workflow)
	if err != nil {
		return fmt.Errorf("invalid workflow: %w", err)
	}

	for _, trigger := range workflow.Triggers {
		err = validateTrigger(trigger)
		if err != nil {
			return err
		}
	}

	for _, action := range workflow.Actions {
		err = s.registry.ValidateAction(*action)
		if err != nil {
			return err
		}
	}

	return validateBranchReferences(workflow.Actions)
}

func validateTrigger(trigger *models.Trigger) error {
	switch trigger.Kind {
	case models.TriggerFieldChanged:
		if trigger.Field == "" {
			return fmt.Errorf("field_changed trigger %s requires a field", trigger.ID)
		}
	case models.TriggerDateBased:
		if trigger.DateField == "" {
			return fmt.Errorf("date_based trigger %s requires a date field", trigger.ID)
		}

		if trigger.DateDirection != models.DateDirectionBefore && trigger.DateDirection != models.DateDirectionAfter {
			return fmt.Errorf("date_based trigger %s requires direction %q or %q",
				trigger.ID, models.DateDirectionBefore, models.DateDirectionAfter)
		}

		if trigger.DateOffsetDays < 0 {
			return fmt.Errorf("date_based trigger %s requires a non-negative day offset", trigger.ID)
		}
	case models.TriggerRecordCreated, models.TriggerRecordUpdated,
		models.TriggerStageChanged, models.TriggerManual:
	default:
		return fmt.Errorf("unknown trigger kind %q", trigger.Kind)
	}

	return nil
}

// validateBranchReferences checks that every branch child points at a
// condition_branch action in the same workflow and carries a branch type.
func validateBranchReferences(actions []*models.Action) error {
	kinds := make(map[string]models.ActionKind, len(actions))
	for _, action := range actions {
		kinds[action.ID] = action.Kind
	}

	for _, action := range actions {
		if action.ParentActionID == nil {
			continue
		}

		parentKind, ok := kinds[*action.ParentActionID]
		if !ok {
			return fmt.Errorf("action %s references missing parent %s", action.ID, *action.ParentActionID)
		}

		if parentKind != models.ActionConditionBranch {
			return fmt.Errorf("action %s has parent %s of kind %s, want %s",
				action.ID, *action.ParentActionID, parentKind, models.ActionConditionBranch)
		}

		if action.BranchType != models.BranchTrue && action.BranchType != models.BranchFalse {
			return fmt.Errorf("branch child %s requires a branch type", action.ID)
		}
	}

	return nil
}
