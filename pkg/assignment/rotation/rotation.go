// Package rotation provides the atomic round-robin cursor used by assignment
// resolution. Advancing the cursor is a single logical read-modify-write:
// concurrent resolutions of the same rule must never observe the same index,
// or two triggers would assign the same candidate twice.
package rotation

import (
	"context"
	"errors"
	"sync"
)

// ErrEmptyPool is returned when an advance is requested for an empty pool.
var ErrEmptyPool = errors.New("rotation pool is empty")

// Store advances a rule's rotation cursor and returns the new index, already
// reduced modulo poolSize.
type Store interface {
	Next(ctx context.Context, ruleID string, poolSize int) (int, error)
}

// Memory is a mutex-guarded in-process store. Cursors start at -1 so the
// first advance lands on candidate 0.
type Memory struct {
	mu      sync.Mutex
	cursors map[string]int
}

func NewMemory() *Memory {
	return &Memory{cursors: make(map[string]int)}
}

func (m *Memory) Next(_ context.Context, ruleID string, poolSize int) (int, error) {
	if poolSize <= 0 {
		return 0, ErrEmptyPool
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	last, ok := m.cursors[ruleID]
	if !ok {
		last = -1
	}

	next := (last + 1) % poolSize
	m.cursors[ruleID] = next

	return next, nil
}

// Cursor is the subset of the assignment rule repository the persistence
// store needs. It is satisfied by persistence.AssignmentRuleRepository.
type Cursor interface {
	NextRotationIndex(ctx context.Context, id string, poolSize int) (int, error)
}

// PersistenceStore advances the cursor through the rule store's atomic
// increment, keeping the persisted last_assigned_index authoritative.
type PersistenceStore struct {
	cursor Cursor
}

func NewPersistenceStore(cursor Cursor) *PersistenceStore {
	return &PersistenceStore{cursor: cursor}
}

func (s *PersistenceStore) Next(ctx context.Context, ruleID string, poolSize int) (int, error) {
	if poolSize <= 0 {
		return 0, ErrEmptyPool
	}

	return s.cursor.NextRotationIndex(ctx, ruleID, poolSize)
}
