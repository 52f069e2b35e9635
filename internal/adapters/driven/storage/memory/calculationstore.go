package memory

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/propest/internal/core/domain"
	"github.com/custodia-labs/propest/internal/core/ports/driven"
)

// Ensure CalculationStore implements the interface.
var _ driven.CalculationStore = (*CalculationStore)(nil)

// CalculationStore is an in-memory implementation of driven.CalculationStore.
type CalculationStore struct {
	mu    sync.RWMutex
	calcs []domain.StoredCalculation
}

// NewCalculationStore creates a new in-memory calculation store.
func NewCalculationStore() *CalculationStore {
	return &CalculationStore{}
}

// SaveCalculation stores an estimate.
func (s *CalculationStore) SaveCalculation(_ context.Context, calc *domain.StoredCalculation) error {
	if calc == nil || calc.ID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calcs = append(s.calcs, *calc)
	return nil
}

// FindCalculation returns the most recent matching estimate, or nil.
func (s *CalculationStore) FindCalculation(_ context.Context, fingerprint, checksum string) (*domain.StoredCalculation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *domain.StoredCalculation
	for i := range s.calcs {
		c := &s.calcs[i]
		if c.Fingerprint != fingerprint || c.ParameterSetChecksum != checksum {
			continue
		}
		if found == nil || !c.CreatedAt.Before(found.CreatedAt) {
			found = c
		}
	}
	if found == nil {
		return nil, nil
	}
	out := *found
	return &out, nil
}

// PruneCalculations removes estimates created before the cutoff.
func (s *CalculationStore) PruneCalculations(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.calcs[:0]
	removed := 0
	for _, c := range s.calcs {
		if c.CreatedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	s.calcs = kept
	return removed, nil
}

// Len returns the number of stored calculations.
func (s *CalculationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.calcs)
}
