package models

// AssignmentMethod selects the strategy an assignment rule uses to pick an
// owner.
type AssignmentMethod string

const (
	AssignSpecificUser AssignmentMethod = "specific_user"
	AssignRoundRobin   AssignmentMethod = "round_robin"
	AssignTerritory    AssignmentMethod = "territory"
	AssignLoadBalanced AssignmentMethod = "load_balanced"
)

// AssignmentRule is a policy for selecting an owner user id for a record.
// UserIDs is the candidate pool for round_robin and load_balanced; when it is
// empty the rule's team is resolved into member ids instead. TerritoryField
// and TerritoryMap drive territory assignment. LastAssignedIndex is the
// persisted round-robin cursor; it is only meaningful modulo the current pool
// size and must be advanced through the rotation store's atomic step, never a
// plain read-then-write.
type AssignmentRule struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"        validate:"required,min=3"`
	EntityKind        string            `json:"entity_kind" validate:"required"`
	Active            bool              `json:"active"`
	Priority          int               `json:"priority"`
	Method            AssignmentMethod  `json:"method"      validate:"required"`
	UserID            string            `json:"user_id,omitempty"` // specific_user
	UserIDs           []string          `json:"user_ids,omitempty"`
	TeamID            string            `json:"team_id,omitempty"`
	TerritoryField    string            `json:"territory_field,omitempty"`
	TerritoryMap      map[string]string `json:"territory_map,omitempty"`
	LastAssignedIndex int               `json:"last_assigned_index"`
}
