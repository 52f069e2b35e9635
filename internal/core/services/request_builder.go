package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/propest/internal/core/domain"
)

// RequestBuilder pairs every property of a dataset with every parameter set.
type RequestBuilder struct {
	now   func() time.Time
	newID func() string
}

// NewRequestBuilder creates a request builder.
func NewRequestBuilder() *RequestBuilder {
	return &RequestBuilder{
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Build creates a queued request. Tasks are ordered property-major:
// task i*len(sets)+j pairs property i with parameter set j.
func (b *RequestBuilder) Build(
	dataset *domain.PhysicalPropertyDataSet,
	sets []domain.ParameterSet,
	opts domain.RequestOptions,
) (*domain.EstimationRequest, error) {
	if len(sets) == 0 {
		return nil, domain.ErrNoParameterSets
	}
	if dataset.Len() == 0 {
		return nil, domain.ErrEmptyDataset
	}
	if err := dataset.Validate(); err != nil {
		return nil, fmt.Errorf("validate dataset: %w", err)
	}

	seen := make(map[string]bool, len(sets))
	for i := range sets {
		if sets[i].ID == "" {
			return nil, fmt.Errorf("%w: parameter set at index %d has no id", domain.ErrInvalidInput, i)
		}
		if seen[sets[i].ID] {
			return nil, fmt.Errorf("%w: duplicate parameter set %s", domain.ErrInvalidInput, sets[i].ID)
		}
		seen[sets[i].ID] = true
	}

	normalised, err := opts.Normalise()
	if err != nil {
		return nil, err
	}

	properties := dataset.Properties()
	tasks := make([]domain.EstimationTask, 0, len(properties)*len(sets))
	for i := range properties {
		for j := range sets {
			tasks = append(tasks, domain.EstimationTask{
				Index:        len(tasks),
				Property:     properties[i].Clone(),
				ParameterSet: sets[j],
			})
		}
	}

	now := b.now()
	return &domain.EstimationRequest{
		ID:            b.newID(),
		CreatedAt:     now,
		UpdatedAt:     now,
		Options:       normalised,
		Properties:    properties,
		ParameterSets: append([]domain.ParameterSet(nil), sets...),
		Tasks:         tasks,
		Status:        domain.RequestQueued,
	}, nil
}
