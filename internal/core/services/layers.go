package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/propest/internal/core/domain"
	"github.com/custodia-labs/propest/internal/core/ports/driven"
	"github.com/custodia-labs/propest/internal/logger"
)

// Ensure layers implement the interface.
var (
	_ driven.CalculationLayer = (*StoredLayer)(nil)
	_ driven.CalculationLayer = (*BackendLayer)(nil)
)

// StoredLayer reuses previous estimates of the same property under the same
// parameter set. It never touches the backend.
type StoredLayer struct {
	store driven.CalculationStore
}

// NewStoredLayer creates the stored calculation layer.
func NewStoredLayer(store driven.CalculationStore) *StoredLayer {
	return &StoredLayer{store: store}
}

// Name returns the layer name.
func (l *StoredLayer) Name() string { return domain.LayerStored }

// Estimate looks every job up in the calculation store.
func (l *StoredLayer) Estimate(ctx context.Context, _ driven.CalculationBackend, jobs []domain.Job) ([]domain.LayerResult, error) {
	results := make([]domain.LayerResult, 0, len(jobs))
	for i := range jobs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		task := &jobs[i].Task
		result := domain.LayerResult{
			TaskIndex: task.Index,
			Layer:     domain.LayerStored,
			Status:    domain.OutcomeUnsupported,
		}
		if l.store == nil {
			results = append(results, result)
			continue
		}

		calc, err := l.store.FindCalculation(ctx, task.Property.Fingerprint(), task.ParameterSet.Checksum)
		switch {
		case err != nil:
			logger.Warn("stored layer: lookup for task %d failed: %v", task.Index, err)
		case calc != nil:
			result.Status = domain.OutcomeEstimated
			result.Value = calc.Value
			result.Uncertainty = calc.Uncertainty
			logger.Debug("stored layer: reusing %s for task %d", calc.ID, task.Index)
		}
		results = append(results, result)
	}
	return results, nil
}

// BackendLayer submits jobs to the calculation backend under its layer name.
// The backend's estimators decide which jobs they can handle.
type BackendLayer struct {
	name string
}

// NewBackendLayer creates a backend-backed layer, e.g. "reweighting" or "simulation".
func NewBackendLayer(name string) *BackendLayer {
	return &BackendLayer{name: name}
}

// Name returns the layer name.
func (l *BackendLayer) Name() string { return l.name }

// Estimate submits the jobs and waits for every outcome.
//
//nolint:gocognit // Drains two channels until both close.
func (l *BackendLayer) Estimate(ctx context.Context, backend driven.CalculationBackend, jobs []domain.Job) ([]domain.LayerResult, error) {
	if backend == nil || !backend.Capabilities().SupportsLayer(l.name) {
		return unsupported(l.name, jobs), nil
	}

	byID := make(map[string]int, len(jobs))
	for i := range jobs {
		byID[jobs[i].ID] = jobs[i].Task.Index
	}

	outcomes, errs := backend.Submit(ctx, jobs)
	results := make([]domain.LayerResult, 0, len(jobs))
	var submitErr error
	for outcomes != nil || errs != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil && submitErr == nil {
				submitErr = err
			}

		case outcome, ok := <-outcomes:
			if !ok {
				outcomes = nil
				continue
			}
			index, known := byID[outcome.JobID]
			if !known {
				logger.Warn("%s layer: ignoring outcome for unknown job %s", l.name, outcome.JobID)
				continue
			}
			delete(byID, outcome.JobID)
			results = append(results, fromOutcome(l.name, index, outcome))
		}
	}

	if submitErr != nil {
		if errors.Is(submitErr, context.Canceled) || errors.Is(submitErr, context.DeadlineExceeded) {
			return nil, submitErr
		}
		return results, fmt.Errorf("%s layer: %w", l.name, submitErr)
	}
	return results, nil
}

func fromOutcome(layer string, index int, outcome domain.JobOutcome) domain.LayerResult {
	result := domain.LayerResult{
		TaskIndex:   index,
		Layer:       layer,
		Status:      outcome.Status,
		Value:       outcome.Value,
		Uncertainty: outcome.Uncertainty,
	}
	if outcome.Status == domain.OutcomeFailed {
		msg := outcome.Error
		if msg == "" {
			msg = "estimator failed"
		}
		result.Err = errors.New(msg)
	}
	return result
}

func unsupported(layer string, jobs []domain.Job) []domain.LayerResult {
	results := make([]domain.LayerResult, len(jobs))
	for i := range jobs {
		results[i] = domain.LayerResult{
			TaskIndex: jobs[i].Task.Index,
			Layer:     layer,
			Status:    domain.OutcomeUnsupported,
		}
	}
	return results
}
