// Package backend holds the registry that turns a backend configuration into
// a calculation backend.
package backend

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/propest/internal/core/domain"
	"github.com/custodia-labs/propest/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.BackendFactory = (*Registry)(nil)

// Registry maps backend types to their builders.
type Registry struct {
	mu       sync.RWMutex
	builders map[domain.BackendType]driven.BackendBuilder
}

// NewRegistry creates an empty backend registry.
func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[domain.BackendType]driven.BackendBuilder),
	}
}

// Register adds a builder for the backend type, replacing any previous one.
func (r *Registry) Register(backendType domain.BackendType, builder driven.BackendBuilder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[backendType] = builder
}

// Create validates the configuration and builds a backend for it.
func (r *Registry) Create(ctx context.Context, cfg domain.BackendConfig) (driven.CalculationBackend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	builder, ok := r.builders[cfg.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no %s backend registered", domain.ErrUnsupportedType, cfg.Type)
	}
	return builder(ctx, cfg)
}

// SupportedTypes returns the registered backend types, sorted.
func (r *Registry) SupportedTypes() []domain.BackendType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]domain.BackendType, 0, len(r.builders))
	for t := range r.builders {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
