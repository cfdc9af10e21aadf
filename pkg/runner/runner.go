// Package runner executes individual workflow actions. Every action outcome
// is reported as an ActionResult; handler errors are captured into failed
// results and never propagate as Go errors, so the executor decides what a
// failure means for the rest of the run.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fluxcrm/automation/pkg/assignment"
	"github.com/fluxcrm/automation/pkg/conditions"
	"github.com/fluxcrm/automation/pkg/crm"
	"github.com/fluxcrm/automation/pkg/models"
	"github.com/fluxcrm/automation/pkg/persistence"
	"github.com/fluxcrm/automation/pkg/template"
	"github.com/fluxcrm/automation/pkg/webhook"
)

// Runner dispatches an action to its kind's handler.
type Runner struct {
	collaborators *crm.Collaborators
	rules         persistence.AssignmentRuleRepository
	assignments   *assignment.Resolver
	webhooks      *webhook.Dispatcher
	logger        *slog.Logger
}

func NewRunner(
	collaborators *crm.Collaborators,
	rules persistence.AssignmentRuleRepository,
	assignments *assignment.Resolver,
	webhooks *webhook.Dispatcher,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		collaborators: collaborators,
		rules:         rules,
		assignments:   assignments,
		webhooks:      webhooks,
		logger:        logger.With("module", "action_runner"),
	}
}

// Execute runs one action against the trigger context and returns its result.
// It never returns an error: handler failures become failed results.
func (r *Runner) Execute(ctx context.Context, action models.Action, ectx models.EventContext) models.ActionResult {
	result := models.ActionResult{
		ActionID: action.ID,
		Kind:     action.Kind,
	}

	config, err := action.DecodeConfig()
	if err != nil {
		// An unrecognized kind is skipped, not failed, so workflows authored
		// against a newer action catalog still run their remaining actions.
		if errors.Is(err, models.ErrUnknownActionKind) {
			result.Status = models.ActionResultSkipped
			result.Error = err.Error()

			r.logger.WarnContext(ctx, "Skipping unknown action kind",
				"action_id", action.ID, "kind", action.Kind)

			return result
		}

		result.Status = models.ActionResultFailed
		result.Error = err.Error()

		return result
	}

	var (
		output map[string]any
		status = models.ActionResultSuccess
	)

	switch cfg := config.(type) {
	case *models.SendEmailConfig:
		output, err = r.sendEmail(ctx, cfg, ectx)
	case *models.CreateTaskConfig:
		output, err = r.createTask(ctx, cfg, ectx)
	case *models.UpdateFieldConfig:
		output, err = r.updateField(ctx, cfg, ectx)
	case *models.SendWebhookConfig:
		output, err = r.sendWebhook(cfg, ectx)
	case *models.AssignOwnerConfig:
		output, err = r.assignOwner(ctx, cfg, ectx)
	case *models.TagConfig:
		output, err = r.applyTag(ctx, action.Kind, cfg, ectx)
	case *models.CreateActivityConfig:
		output, err = r.createActivity(ctx, cfg, ectx)
	case *models.SendNotificationConfig:
		output, err = r.sendNotification(ctx, cfg, ectx)
	case *models.WaitDelayConfig:
		output = map[string]any{"days": cfg.Days, "hours": cfg.Hours}
		status = models.ActionResultSkipped
	case *models.ConditionBranchConfig:
		output = map[string]any{"matched": conditions.Evaluate(cfg.Conditions, ectx.Entity)}
	default:
		err = fmt.Errorf("%w: %q", models.ErrUnknownActionKind, action.Kind)
	}

	if err != nil {
		result.Status = models.ActionResultFailed
		result.Error = err.Error()

		r.logger.WarnContext(ctx, "Action failed",
			"action_id", action.ID, "kind", action.Kind,
			"entity_kind", ectx.EntityKind, "entity_id", ectx.EntityID,
			"error", err)

		return result
	}

	result.Status = status
	result.Output = output

	return result
}

func (r *Runner) sendEmail(ctx context.Context, cfg *models.SendEmailConfig, ectx models.EventContext) (map[string]any, error) {
	field := cfg.RecipientField
	if field == "" {
		field = "email"
	}

	recipient := conditions.Stringify(ectx.Entity[field])
	if recipient == "" {
		return nil, fmt.Errorf("no recipient: entity field %q is empty", field)
	}

	email := crm.OutboundEmail{
		Recipient:   recipient,
		Subject:     template.Render(cfg.Subject, ectx.Entity),
		Body:        template.Render(cfg.Body, ectx.Entity),
		RelatedKind: ectx.EntityKind,
		RelatedID:   ectx.EntityID,
	}

	emailID, err := r.collaborators.Email.LogOutboundEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to log outbound email: %w", err)
	}

	return map[string]any{"email_id": emailID, "recipient": recipient}, nil
}

func (r *Runner) createTask(ctx context.Context, cfg *models.CreateTaskConfig, ectx models.EventContext) (map[string]any, error) {
	task := crm.NewTask{
		Title:       template.Render(cfg.Title, ectx.Entity),
		Description: template.Render(cfg.Description, ectx.Entity),
		AssigneeID:  cfg.AssigneeID,
		Priority:    cfg.Priority,
		RelatedKind: ectx.EntityKind,
		RelatedID:   ectx.EntityID,
	}

	// Assignee falls back to the actor who triggered the run, then to the
	// system sentinel.
	if task.AssigneeID == "" {
		task.AssigneeID = ectx.ActorID
	}

	if task.AssigneeID == "" {
		task.AssigneeID = crm.SystemActorID
	}

	if cfg.DueInDays > 0 {
		dueAt := time.Now().UTC().AddDate(0, 0, cfg.DueInDays)
		task.DueAt = &dueAt
	}

	taskID, err := r.collaborators.Tasks.CreateTask(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	return map[string]any{"task_id": taskID}, nil
}

func (r *Runner) updateField(ctx context.Context, cfg *models.UpdateFieldConfig, ectx models.EventContext) (map[string]any, error) {
	adapter, err := r.collaborators.Adapters.Get(ectx.EntityKind)
	if err != nil {
		return nil, err
	}

	value := cfg.Value
	if s, ok := value.(string); ok {
		value = template.Render(s, ectx.Entity)
	}

	err = adapter.PatchField(ctx, ectx.EntityID, cfg.Field, value)
	if err != nil {
		return nil, fmt.Errorf("failed to update field %s: %w", cfg.Field, err)
	}

	return map[string]any{"field": cfg.Field, "value": value}, nil
}

// sendWebhook hands the call to the dispatcher and reports success at enqueue
// time. Delivery outcome lands in the dispatcher's delivery log, not in the
// execution record. Without a body template the raw entity snapshot is
// serialized as the payload.
func (r *Runner) sendWebhook(cfg *models.SendWebhookConfig, ectx models.EventContext) (map[string]any, error) {
	var body string

	if cfg.BodyTemplate == "" {
		payload, err := json.Marshal(ectx.Entity)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize entity snapshot: %w", err)
		}

		body = string(payload)
	} else {
		body = template.Render(cfg.BodyTemplate, ectx.Entity)
	}

	deliveryID := r.webhooks.Enqueue(webhook.Request{
		URL:     cfg.URL,
		Method:  cfg.Method,
		Headers: cfg.Headers,
		Body:    body,
	})

	return map[string]any{"delivery_id": deliveryID, "url": cfg.URL}, nil
}

func (r *Runner) assignOwner(ctx context.Context, cfg *models.AssignOwnerConfig, ectx models.EventContext) (map[string]any, error) {
	rule, err := r.rules.ByID(ctx, cfg.RuleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load assignment rule %s: %w", cfg.RuleID, err)
	}

	ownerID, err := r.assignments.Resolve(ctx, rule, ectx)
	if err != nil {
		return nil, err
	}

	// No candidate is a valid outcome, not a failure. The record keeps its
	// current owner.
	if ownerID == "" {
		return map[string]any{"assigned": false}, nil
	}

	ownerField := cfg.OwnerField
	if ownerField == "" {
		ownerField = "ownerId"
	}

	adapter, err := r.collaborators.Adapters.Get(ectx.EntityKind)
	if err != nil {
		return nil, err
	}

	err = adapter.PatchField(ctx, ectx.EntityID, ownerField, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to set owner: %w", err)
	}

	return map[string]any{"assigned": true, "owner_id": ownerID}, nil
}

func (r *Runner) applyTag(ctx context.Context, kind models.ActionKind, cfg *models.TagConfig, ectx models.EventContext) (map[string]any, error) {
	if ectx.EntityKind != crm.KindContacts {
		return nil, fmt.Errorf("tags are only supported for contacts, got %q", ectx.EntityKind)
	}

	tagID, err := r.collaborators.Tags.UpsertTag(ctx, cfg.Tag)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert tag %q: %w", cfg.Tag, err)
	}

	if kind == models.ActionAddTag {
		err = r.collaborators.Tags.ConnectTag(ctx, ectx.EntityID, tagID)
	} else {
		err = r.collaborators.Tags.DisconnectTag(ctx, ectx.EntityID, tagID)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to apply tag %q: %w", cfg.Tag, err)
	}

	return map[string]any{"tag": cfg.Tag, "tag_id": tagID}, nil
}

func (r *Runner) createActivity(ctx context.Context, cfg *models.CreateActivityConfig, ectx models.EventContext) (map[string]any, error) {
	actorID := ectx.ActorID
	if actorID == "" {
		actorID = crm.SystemActorID
	}

	activity := crm.NewActivity{
		ActivityType: cfg.ActivityType,
		Title:        template.Render(cfg.Title, ectx.Entity),
		Description:  template.Render(cfg.Description, ectx.Entity),
		ActorID:      actorID,
		RelatedKind:  ectx.EntityKind,
		RelatedID:    ectx.EntityID,
	}

	activityID, err := r.collaborators.Activities.CreateActivity(ctx, activity)
	if err != nil {
		return nil, fmt.Errorf("failed to create activity: %w", err)
	}

	return map[string]any{"activity_id": activityID}, nil
}

func (r *Runner) sendNotification(ctx context.Context, cfg *models.SendNotificationConfig, ectx models.EventContext) (map[string]any, error) {
	field := cfg.UserIDField
	if field == "" {
		field = "ownerId"
	}

	userID := conditions.Stringify(ectx.Entity[field])
	if userID == "" {
		return nil, fmt.Errorf("no notification target: entity field %q is empty", field)
	}

	notification := crm.Notification{
		UserID:      userID,
		Title:       template.Render(cfg.Title, ectx.Entity),
		Message:     template.Render(cfg.Message, ectx.Entity),
		RelatedKind: ectx.EntityKind,
		RelatedID:   ectx.EntityID,
	}

	notificationID, err := r.collaborators.Notifier.Notify(ctx, notification)
	if err != nil {
		return nil, fmt.Errorf("failed to send notification: %w", err)
	}

	return map[string]any{"notification_id": notificationID, "user_id": userID}, nil
}
