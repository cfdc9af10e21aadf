// Package file provides file-based persistence for development and tests.
// Each record is stored as one JSON document under the root directory.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fluxcrm/automation/pkg/persistence"
)

// Persistence implements persistence.Persistence on the local file system.
type Persistence struct {
	root           string
	workflowRepo   *WorkflowRepository
	executionRepo  *ExecutionRepository
	assignmentRepo *AssignmentRuleRepository
}

// NewPersistence creates a file persistence layer rooted at the given
// directory. A "file://" prefix on the path is accepted and stripped.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.TrimPrefix(root, "file://")

	return &Persistence{
		root:           cleanRoot,
		workflowRepo:   NewWorkflowRepository(cleanRoot),
		executionRepo:  NewExecutionRepository(cleanRoot),
		assignmentRepo: NewAssignmentRuleRepository(cleanRoot),
	}
}

func (p *Persistence) Workflows() persistence.WorkflowRepository {
	return p.workflowRepo
}

func (p *Persistence) Executions() persistence.ExecutionRepository {
	return p.executionRepo
}

func (p *Persistence) AssignmentRules() persistence.AssignmentRuleRepository {
	return p.assignmentRepo
}

// HealthCheck verifies the root directory is usable.
func (p *Persistence) HealthCheck(_ context.Context) error {
	err := os.MkdirAll(p.root, 0o755)
	if err != nil {
		return fmt.Errorf("file persistence root unavailable: %w", err)
	}

	return nil
}

// Close is a no-op for file persistence.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// collection serializes access to one directory of JSON documents. File
// persistence is process-local, so a mutex is enough to keep the rotation
// cursor's read-modify-write atomic.
type collection struct {
	mu  sync.Mutex
	dir string
}

func newCollection(root, name string) *collection {
	return &collection{dir: filepath.Join(root, name)}
}

func (c *collection) path(id string) string {
	return filepath.Join(c.dir, id+".json")
}

func (c *collection) read(id string, target any) (bool, error) {
	data, err := os.ReadFile(c.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, fmt.Errorf("failed to read %s: %w", c.path(id), err)
	}

	err = json.Unmarshal(data, target)
	if err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", c.path(id), err)
	}

	return true, nil
}

func (c *collection) write(id string, record any) error {
	err := os.MkdirAll(c.dir, 0o755)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", c.dir, err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", id, err)
	}

	err = os.WriteFile(c.path(id), data, 0o644)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", c.path(id), err)
	}

	return nil
}

func (c *collection) remove(id string) error {
	err := os.Remove(c.path(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", c.path(id), err)
	}

	return nil
}

func (c *collection) ids() ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to list %s: %w", c.dir, err)
	}

	ids := make([]string, 0, len(entries))

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}

		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}

	return ids, nil
}
