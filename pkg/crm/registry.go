package crm

import (
	"fmt"
	"sync"
)

// AdapterRegistry maps entity kinds to their adapters. Registration happens
// at wiring time; lookups are concurrent-safe because dispatch runs on many
// goroutines.
type AdapterRegistry struct {
	mu       sync.RWMutex
	adapters map[string]EntityAdapter
}

func NewAdapterRegistry() *AdapterRegistry {
	return &AdapterRegistry{
		adapters: make(map[string]EntityAdapter),
	}
}

func (r *AdapterRegistry) Register(adapter EntityAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.adapters[adapter.Kind()] = adapter
}

func (r *AdapterRegistry) Get(kind string) (EntityAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, ok := r.adapters[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntityKind, kind)
	}

	return adapter, nil
}

// OwnerCounter returns the kind's adapter as an OwnerCounter when it supports
// ownership counting.
func (r *AdapterRegistry) OwnerCounter(kind string) (OwnerCounter, error) {
	adapter, err := r.Get(kind)
	if err != nil {
		return nil, err
	}

	counter, ok := adapter.(OwnerCounter)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrCountingUnsupported, kind)
	}

	return counter, nil
}
