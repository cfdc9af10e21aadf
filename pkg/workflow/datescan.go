package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fluxcrm/automation/pkg/conditions"
	"github.com/fluxcrm/automation/pkg/crm"
	"github.com/fluxcrm/automation/pkg/models"
	"github.com/fluxcrm/automation/pkg/persistence"
)

// EntityEnumerator is the adapter capability the scanner needs on top of
// snapshots. Adapters without it cannot serve date_based triggers.
type EntityEnumerator interface {
	EntityIDs(ctx context.Context) ([]string, error)
}

// Scanner sweeps entity records for date_based triggers that are due today.
// The scheduler binary runs it once per day; run-once enforcement in the
// dispatcher keeps repeated sweeps from re-firing run-once workflows.
type Scanner struct {
	persistence persistence.Persistence
	adapters    *crm.AdapterRegistry
	dispatcher  *Dispatcher
	logger      *slog.Logger
}

func NewScanner(p persistence.Persistence, adapters *crm.AdapterRegistry, dispatcher *Dispatcher, logger *slog.Logger) *Scanner {
	return &Scanner{
		persistence: p,
		adapters:    adapters,
		dispatcher:  dispatcher,
		logger:      logger.With("module", "date_scanner"),
	}
}

// Scan fires every workflow whose date_based trigger is due on the given
// day. Per-record errors are logged and do not stop the sweep.
func (s *Scanner) Scan(ctx context.Context, now time.Time) error {
	workflows, err := s.persistence.Workflows().All(ctx)
	if err != nil {
		return fmt.Errorf("failed to load workflows for date scan: %w", err)
	}

	for _, workflow := range workflows {
		if !workflow.IsDispatchable() {
			continue
		}

		for _, trigger := range workflow.Triggers {
			if trigger.Kind != models.TriggerDateBased {
				continue
			}

			s.scanTrigger(ctx, workflow, trigger, now)
		}
	}

	return nil
}

func (s *Scanner) scanTrigger(ctx context.Context, workflow *models.Workflow, trigger *models.Trigger, now time.Time) {
	adapter, err := s.adapters.Get(workflow.EntityKind)
	if err != nil {
		s.logger.ErrorContext(ctx, "No adapter for date scan",
			"workflow_id", workflow.ID, "entity_kind", workflow.EntityKind, "error", err)

		return
	}

	enumerator, ok := adapter.(EntityEnumerator)
	if !ok {
		s.logger.WarnContext(ctx, "Entity kind cannot be enumerated for date scan",
			"workflow_id", workflow.ID, "entity_kind", workflow.EntityKind)

		return
	}

	ids, err := enumerator.EntityIDs(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to enumerate entities",
			"workflow_id", workflow.ID, "entity_kind", workflow.EntityKind, "error", err)

		return
	}

	for _, id := range ids {
		snapshot, err := adapter.Snapshot(ctx, id)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to snapshot entity",
				"entity_kind", workflow.EntityKind, "entity_id", id, "error", err)

			continue
		}

		if !dueToday(trigger, snapshot, now) {
			continue
		}

		if !conditions.Evaluate(trigger.Conditions, snapshot) {
			continue
		}

		ectx := models.EventContext{
			EntityKind: workflow.EntityKind,
			EntityID:   id,
			Entity:     snapshot,
		}

		err = s.dispatcher.DateBased(ctx, workflow, ectx)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to dispatch date-based trigger",
				"workflow_id", workflow.ID, "entity_kind", workflow.EntityKind,
				"entity_id", id, "error", err)
		}
	}
}

// dueToday reports whether the trigger's fire date falls on the same UTC
// calendar day as now. Records without a parseable date never fire.
func dueToday(trigger *models.Trigger, snapshot models.Snapshot, now time.Time) bool {
	date, ok := parseDate(snapshot[trigger.DateField])
	if !ok {
		return false
	}

	fireAt := date
	if trigger.DateDirection == models.DateDirectionBefore {
		fireAt = date.AddDate(0, 0, -trigger.DateOffsetDays)
	} else {
		fireAt = date.AddDate(0, 0, trigger.DateOffsetDays)
	}

	y1, m1, d1 := fireAt.UTC().Date()
	y2, m2, d2 := now.UTC().Date()

	return y1 == y2 && m1 == m2 && d1 == d2
}

func parseDate(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t, true
			}
		}
	}

	return time.Time{}, false
}
