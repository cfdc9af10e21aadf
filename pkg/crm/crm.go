// Package crm defines the collaborator interfaces the automation engine
// requires from the surrounding CRM application. The engine does not own the
// CRM domain schemas; it consumes entity snapshots and emits field updates
// and record creations through these interfaces.
package crm

import (
	"context"
	"errors"
	"time"
)

// SystemActorID is the sentinel actor recorded when no user triggered a
// side effect.
const SystemActorID = "system"

// Entity kinds the stock CRM ships with. The adapter registry accepts any
// kind; these constants only name the built-in ones.
const (
	KindContacts  = "contacts"
	KindDeals     = "deals"
	KindTasks     = "tasks"
	KindCompanies = "companies"
)

var (
	// ErrUnknownEntityKind is returned when no adapter is registered for a kind.
	ErrUnknownEntityKind = errors.New("unknown entity kind")
	// ErrEntityNotFound is returned when an entity id does not resolve.
	ErrEntityNotFound = errors.New("entity not found")
	// ErrCountingUnsupported is returned when an adapter cannot count owned records.
	ErrCountingUnsupported = errors.New("entity kind does not support ownership counting")
)

// EntityAdapter is the per-entity-kind capability interface. One adapter is
// registered per supported kind; the engine never switches on kind strings
// outside the registry lookup.
type EntityAdapter interface {
	Kind() string
	Snapshot(ctx context.Context, id string) (map[string]any, error)
	PatchField(ctx context.Context, id, field string, value any) error
}

// OwnerCounter is an optional adapter capability used by load-balanced
// assignment. Contacts and deals implement it; kinds without it cannot be
// load-balanced.
type OwnerCounter interface {
	CountOwnedBy(ctx context.Context, userID string) (int, error)
}

// NewTask is the engine's request to create a task record linked back to the
// triggering entity.
type NewTask struct {
	Title       string
	Description string
	DueAt       *time.Time
	AssigneeID  string
	Priority    string
	RelatedKind string
	RelatedID   string
}

// NewActivity is an activity log entry of a configured sub-type.
type NewActivity struct {
	ActivityType string
	Title        string
	Description  string
	ActorID      string
	RelatedKind  string
	RelatedID    string
}

// OutboundEmail is an outbound email log entry. Transmission is the email
// subsystem's responsibility, not the engine's.
type OutboundEmail struct {
	Recipient   string
	Subject     string
	Body        string
	RelatedKind string
	RelatedID   string
}

// Notification is an in-app notification addressed to one user.
type Notification struct {
	UserID      string
	Title       string
	Message     string
	RelatedKind string
	RelatedID   string
}

type TaskCreator interface {
	CreateTask(ctx context.Context, task NewTask) (string, error)
}

type ActivityLogger interface {
	CreateActivity(ctx context.Context, activity NewActivity) (string, error)
}

type EmailLogger interface {
	LogOutboundEmail(ctx context.Context, email OutboundEmail) (string, error)
}

type Notifier interface {
	Notify(ctx context.Context, notification Notification) (string, error)
}

// TagStore manages contact tags. Tags only exist for the contacts kind.
type TagStore interface {
	UpsertTag(ctx context.Context, name string) (string, error)
	ConnectTag(ctx context.Context, contactID, tagID string) error
	DisconnectTag(ctx context.Context, contactID, tagID string) error
}

type TeamResolver interface {
	ResolveTeamMembers(ctx context.Context, teamID string) ([]string, error)
}

// Collaborators bundles every external dependency the action runner needs.
type Collaborators struct {
	Adapters   *AdapterRegistry
	Tasks      TaskCreator
	Activities ActivityLogger
	Email      EmailLogger
	Notifier   Notifier
	Tags       TagStore
	Teams      TeamResolver
}
