package crm

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// In-memory collaborator implementations. They back the engine's tests and
// the development binaries; production deployments wire the real CRM stores
// instead.

// MemoryAdapter is a map-backed entity store for one kind.
type MemoryAdapter struct {
	kind       string
	ownerField string

	mu      sync.RWMutex
	records map[string]map[string]any
}

func NewMemoryAdapter(kind string) *MemoryAdapter {
	return &MemoryAdapter{
		kind:       kind,
		ownerField: "ownerId",
		records:    make(map[string]map[string]any),
	}
}

func (a *MemoryAdapter) Kind() string {
	return a.kind
}

// Put stores or replaces a record snapshot.
func (a *MemoryAdapter) Put(id string, snapshot map[string]any) {
	a.mu.Lock()
	defer a.mu.Unlock()

	stored := make(map[string]any, len(snapshot))
	for k, v := range snapshot {
		stored[k] = v
	}

	a.records[id] = stored
}

func (a *MemoryAdapter) Snapshot(_ context.Context, id string) (map[string]any, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	record, ok := a.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrEntityNotFound, a.kind, id)
	}

	snapshot := make(map[string]any, len(record))
	for k, v := range record {
		snapshot[k] = v
	}

	return snapshot, nil
}

// EntityIDs lists every stored record id. The date scanner uses it to sweep
// a kind's records.
func (a *MemoryAdapter) EntityIDs(_ context.Context) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	ids := make([]string, 0, len(a.records))
	for id := range a.records {
		ids = append(ids, id)
	}

	return ids, nil
}

func (a *MemoryAdapter) PatchField(_ context.Context, id, field string, value any) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	record, ok := a.records[id]
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrEntityNotFound, a.kind, id)
	}

	record[field] = value

	return nil
}

// CountingMemoryAdapter adds ownership counting on top of MemoryAdapter,
// mirroring the contacts and deals stores.
type CountingMemoryAdapter struct {
	*MemoryAdapter
}

func NewCountingMemoryAdapter(kind string) *CountingMemoryAdapter {
	return &CountingMemoryAdapter{MemoryAdapter: NewMemoryAdapter(kind)}
}

func (a *CountingMemoryAdapter) CountOwnedBy(_ context.Context, userID string) (int, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	count := 0

	for _, record := range a.records {
		if owner, ok := record[a.ownerField].(string); ok && owner == userID {
			count++
		}
	}

	return count, nil
}

// MemoryLedger records every task, activity, email and notification the
// engine emits, for inspection by tests and the dev CLI.
type MemoryLedger struct {
	mu            sync.Mutex
	tasks         []NewTask
	activities    []NewActivity
	emails        []OutboundEmail
	notifications []Notification
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{}
}

func (l *MemoryLedger) CreateTask(_ context.Context, task NewTask) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.tasks = append(l.tasks, task)

	return uuid.New().String(), nil
}

func (l *MemoryLedger) CreateActivity(_ context.Context, activity NewActivity) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.activities = append(l.activities, activity)

	return uuid.New().String(), nil
}

func (l *MemoryLedger) LogOutboundEmail(_ context.Context, email OutboundEmail) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.emails = append(l.emails, email)

	return uuid.New().String(), nil
}

func (l *MemoryLedger) Notify(_ context.Context, notification Notification) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.notifications = append(l.notifications, notification)

	return uuid.New().String(), nil
}

func (l *MemoryLedger) Tasks() []NewTask {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]NewTask(nil), l.tasks...)
}

func (l *MemoryLedger) Activities() []NewActivity {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]NewActivity(nil), l.activities...)
}

func (l *MemoryLedger) Emails() []OutboundEmail {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]OutboundEmail(nil), l.emails...)
}

func (l *MemoryLedger) Notifications() []Notification {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]Notification(nil), l.notifications...)
}

// MemoryTagStore keeps contact tags and their connections in maps.
type MemoryTagStore struct {
	mu          sync.Mutex
	tagsByName  map[string]string
	connections map[string]map[string]bool // contactID -> tagID set
}

func NewMemoryTagStore() *MemoryTagStore {
	return &MemoryTagStore{
		tagsByName:  make(map[string]string),
		connections: make(map[string]map[string]bool),
	}
}

func (s *MemoryTagStore) UpsertTag(_ context.Context, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.tagsByName[name]; ok {
		return id, nil
	}

	id := uuid.New().String()
	s.tagsByName[name] = id

	return id, nil
}

func (s *MemoryTagStore) ConnectTag(_ context.Context, contactID, tagID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connections[contactID] == nil {
		s.connections[contactID] = make(map[string]bool)
	}

	s.connections[contactID][tagID] = true

	return nil
}

func (s *MemoryTagStore) DisconnectTag(_ context.Context, contactID, tagID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.connections[contactID], tagID)

	return nil
}

// Connected reports whether the contact currently carries the tag.
func (s *MemoryTagStore) Connected(contactID, tagID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.connections[contactID][tagID]
}

// MemoryTeamResolver resolves team ids from a static membership map.
type MemoryTeamResolver struct {
	members map[string][]string
}

func NewMemoryTeamResolver(members map[string][]string) *MemoryTeamResolver {
	if members == nil {
		members = make(map[string][]string)
	}

	return &MemoryTeamResolver{members: members}
}

func (r *MemoryTeamResolver) ResolveTeamMembers(_ context.Context, teamID string) ([]string, error) {
	return append([]string(nil), r.members[teamID]...), nil
}

// NewMemoryCollaborators wires a complete in-memory collaborator set with
// counting adapters for contacts and deals and plain adapters for tasks and
// companies.
func NewMemoryCollaborators() (*Collaborators, *MemoryLedger) {
	adapters := NewAdapterRegistry()
	adapters.Register(NewCountingMemoryAdapter(KindContacts))
	adapters.Register(NewCountingMemoryAdapter(KindDeals))
	adapters.Register(NewMemoryAdapter(KindTasks))
	adapters.Register(NewMemoryAdapter(KindCompanies))

	ledger := NewMemoryLedger()

	return &Collaborators{
		Adapters:   adapters,
		Tasks:      ledger,
		Activities: ledger,
		Email:      ledger,
		Notifier:   ledger,
		Tags:       NewMemoryTagStore(),
		Teams:      NewMemoryTeamResolver(nil),
	}, ledger
}
