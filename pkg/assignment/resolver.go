// Package assignment resolves record ownership from assignment rules using
// specific-user, round-robin, territory and load-balanced strategies.
package assignment

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/fluxcrm/automation/pkg/assignment/rotation"
	"github.com/fluxcrm/automation/pkg/conditions"
	"github.com/fluxcrm/automation/pkg/crm"
	"github.com/fluxcrm/automation/pkg/models"
)

// Resolver picks an owner user id for a record given an assignment rule and
// the trigger context. An empty returned id means the rule produced no
// candidate; that is not an error.
type Resolver struct {
	rotation rotation.Store
	teams    crm.TeamResolver
	adapters *crm.AdapterRegistry
	logger   *slog.Logger
}

func NewResolver(rotationStore rotation.Store, teams crm.TeamResolver, adapters *crm.AdapterRegistry, logger *slog.Logger) *Resolver {
	return &Resolver{
		rotation: rotationStore,
		teams:    teams,
		adapters: adapters,
		logger:   logger.With("module", "assignment_resolver"),
	}
}

// Resolve applies the rule's strategy against the trigger context.
func (r *Resolver) Resolve(ctx context.Context, rule *models.AssignmentRule, ectx models.EventContext) (string, error) {
	switch rule.Method {
	case models.AssignSpecificUser:
		return rule.UserID, nil
	case models.AssignRoundRobin:
		return r.resolveRoundRobin(ctx, rule)
	case models.AssignTerritory:
		return r.resolveTerritory(rule, ectx), nil
	case models.AssignLoadBalanced:
		return r.resolveLoadBalanced(ctx, rule, ectx)
	default:
		return "", fmt.Errorf("unknown assignment method %q", rule.Method)
	}
}

func (r *Resolver) resolveRoundRobin(ctx context.Context, rule *models.AssignmentRule) (string, error) {
	pool, err := r.candidatePool(ctx, rule)
	if err != nil {
		return "", err
	}

	if len(pool) == 0 {
		return "", nil
	}

	next, err := r.rotation.Next(ctx, rule.ID, len(pool))
	if err != nil {
		return "", fmt.Errorf("failed to advance rotation for rule %s: %w", rule.ID, err)
	}

	r.logger.DebugContext(ctx, "Round-robin rotation advanced",
		"rule_id", rule.ID, "index", next, "pool_size", len(pool))

	return pool[next], nil
}

func (r *Resolver) resolveTerritory(rule *models.AssignmentRule, ectx models.EventContext) string {
	value := conditions.Stringify(ectx.Entity[rule.TerritoryField])

	return rule.TerritoryMap[value]
}

func (r *Resolver) resolveLoadBalanced(ctx context.Context, rule *models.AssignmentRule, ectx models.EventContext) (string, error) {
	pool, err := r.candidatePool(ctx, rule)
	if err != nil {
		return "", err
	}

	if len(pool) == 0 {
		return "", nil
	}

	counter, err := r.adapters.OwnerCounter(ectx.EntityKind)
	if err != nil {
		return "", err
	}

	type load struct {
		userID string
		count  int
	}

	loads := make([]load, 0, len(pool))

	for _, userID := range pool {
		count, err := counter.CountOwnedBy(ctx, userID)
		if err != nil {
			return "", fmt.Errorf("failed to count records owned by %s: %w", userID, err)
		}

		loads = append(loads, load{userID: userID, count: count})
	}

	// Stable sort: ties resolve to pool order.
	sort.SliceStable(loads, func(i, j int) bool {
		return loads[i].count < loads[j].count
	})

	return loads[0].userID, nil
}

// candidatePool returns the rule's user id list, falling back to the rule's
// team membership when the list is empty.
func (r *Resolver) candidatePool(ctx context.Context, rule *models.AssignmentRule) ([]string, error) {
	if len(rule.UserIDs) > 0 {
		return rule.UserIDs, nil
	}

	if rule.TeamID == "" {
		return nil, nil
	}

	members, err := r.teams.ResolveTeamMembers(ctx, rule.TeamID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve team %s: %w", rule.TeamID, err)
	}

	return members, nil
}
