package assignment

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxcrm/automation/pkg/assignment/rotation"
	"github.com/fluxcrm/automation/pkg/crm"
	"github.com/fluxcrm/automation/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestResolver(t *testing.T) (*Resolver, *crm.Collaborators) {
	t.Helper()

	collaborators, _ := crm.NewMemoryCollaborators()

	resolver := NewResolver(rotation.NewMemory(), collaborators.Teams, collaborators.Adapters, testLogger())

	return resolver, collaborators
}

func contactContext(id string) models.EventContext {
	return models.EventContext{
		EntityKind: crm.KindContacts,
		EntityID:   id,
		Entity:     models.Snapshot{},
	}
}

func TestResolve_SpecificUser(t *testing.T) {
	resolver, _ := newTestResolver(t)

	rule := &models.AssignmentRule{
		ID:     "rule-1",
		Method: models.AssignSpecificUser,
		UserID: "user-7",
	}

	owner, err := resolver.Resolve(context.Background(), rule, contactContext("c-1"))
	require.NoError(t, err)
	assert.Equal(t, "user-7", owner)
}

func TestResolve_RoundRobinCyclesThroughPool(t *testing.T) {
	resolver, _ := newTestResolver(t)
	ctx := context.Background()

	rule := &models.AssignmentRule{
		ID:      "rule-rr",
		Method:  models.AssignRoundRobin,
		UserIDs: []string{"u1", "u2", "u3"},
	}

	got := make([]string, 0, 6)

	for range 6 {
		owner, err := resolver.Resolve(ctx, rule, contactContext("c-1"))
		require.NoError(t, err)

		got = append(got, owner)
	}

	assert.Equal(t, []string{"u1", "u2", "u3", "u1", "u2", "u3"}, got)
}

func TestResolve_RoundRobinFallsBackToTeamMembers(t *testing.T) {
	collaborators, _ := crm.NewMemoryCollaborators()
	collaborators.Teams = crm.NewMemoryTeamResolver(map[string][]string{
		"team-1": {"t1", "t2"},
	})

	resolver := NewResolver(rotation.NewMemory(), collaborators.Teams, collaborators.Adapters, testLogger())

	rule := &models.AssignmentRule{
		ID:     "rule-team",
		Method: models.AssignRoundRobin,
		TeamID: "team-1",
	}

	first, err := resolver.Resolve(context.Background(), rule, contactContext("c-1"))
	require.NoError(t, err)
	assert.Equal(t, "t1", first)

	second, err := resolver.Resolve(context.Background(), rule, contactContext("c-1"))
	require.NoError(t, err)
	assert.Equal(t, "t2", second)
}

func TestResolve_RoundRobinEmptyPoolYieldsNoCandidate(t *testing.T) {
	resolver, _ := newTestResolver(t)

	rule := &models.AssignmentRule{
		ID:     "rule-empty",
		Method: models.AssignRoundRobin,
	}

	owner, err := resolver.Resolve(context.Background(), rule, contactContext("c-1"))
	require.NoError(t, err)
	assert.Empty(t, owner)
}

func TestResolve_TerritoryMapsFieldValue(t *testing.T) {
	resolver, _ := newTestResolver(t)

	rule := &models.AssignmentRule{
		ID:             "rule-territory",
		Method:         models.AssignTerritory,
		TerritoryField: "region",
		TerritoryMap:   map[string]string{"emea": "user-emea", "apac": "user-apac"},
	}

	ectx := contactContext("c-1")
	ectx.Entity = models.Snapshot{"region": "emea"}

	owner, err := resolver.Resolve(context.Background(), rule, ectx)
	require.NoError(t, err)
	assert.Equal(t, "user-emea", owner)

	// Unmapped territory produces no candidate.
	ectx.Entity = models.Snapshot{"region": "latam"}

	owner, err = resolver.Resolve(context.Background(), rule, ectx)
	require.NoError(t, err)
	assert.Empty(t, owner)
}

func TestResolve_LoadBalancedPicksLeastLoaded(t *testing.T) {
	resolver, collaborators := newTestResolver(t)

	adapter, err := collaborators.Adapters.Get(crm.KindContacts)
	require.NoError(t, err)

	contacts, ok := adapter.(*crm.CountingMemoryAdapter)
	require.True(t, ok)

	contacts.Put("c-1", map[string]any{"ownerId": "u1"})
	contacts.Put("c-2", map[string]any{"ownerId": "u1"})
	contacts.Put("c-3", map[string]any{"ownerId": "u2"})

	rule := &models.AssignmentRule{
		ID:      "rule-lb",
		Method:  models.AssignLoadBalanced,
		UserIDs: []string{"u1", "u2", "u3"},
	}

	owner, err := resolver.Resolve(context.Background(), rule, contactContext("c-4"))
	require.NoError(t, err)
	assert.Equal(t, "u3", owner)
}

func TestResolve_LoadBalancedTieKeepsPoolOrder(t *testing.T) {
	resolver, _ := newTestResolver(t)

	rule := &models.AssignmentRule{
		ID:      "rule-tie",
		Method:  models.AssignLoadBalanced,
		UserIDs: []string{"u2", "u1"},
	}

	owner, err := resolver.Resolve(context.Background(), rule, contactContext("c-1"))
	require.NoError(t, err)
	assert.Equal(t, "u2", owner)
}

func TestResolve_LoadBalancedUnsupportedKind(t *testing.T) {
	resolver, _ := newTestResolver(t)

	rule := &models.AssignmentRule{
		ID:      "rule-lb-tasks",
		Method:  models.AssignLoadBalanced,
		UserIDs: []string{"u1"},
	}

	ectx := models.EventContext{EntityKind: crm.KindTasks, EntityID: "t-1", Entity: models.Snapshot{}}

	_, err := resolver.Resolve(context.Background(), rule, ectx)
	assert.ErrorIs(t, err, crm.ErrCountingUnsupported)
}

func TestResolve_UnknownMethod(t *testing.T) {
	resolver, _ := newTestResolver(t)

	rule := &models.AssignmentRule{ID: "rule-x", Method: "coin_flip"}

	_, err := resolver.Resolve(context.Background(), rule, contactContext("c-1"))
	assert.Error(t, err)
}
