package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/propest/internal/core/domain"
	"github.com/custodia-labs/propest/internal/core/ports/driven"
	"github.com/custodia-labs/propest/internal/logger"
)

// Collector turns gateway results into computed properties: exactly one per
// task, in task order, expressed in the unit of the measured property.
type Collector struct {
	store driven.CalculationStore
	now   func() time.Time
	newID func() string
}

// NewCollector creates a result collector. Estimates are saved to store for
// reuse by the stored layer; store may be nil.
func NewCollector(store driven.CalculationStore) *Collector {
	return &Collector{
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Collect builds the result of a request. Results may arrive in any order;
// a task with no result, or with a value that cannot be expressed in the
// measurement's unit, is reported as failed in its slot.
func (c *Collector) Collect(ctx context.Context, req *domain.EstimationRequest, results []domain.LayerResult) *domain.EstimationResult {
	byIndex := make(map[int]domain.LayerResult, len(results))
	for _, r := range results {
		if _, dup := byIndex[r.TaskIndex]; dup {
			logger.Warn("collector: duplicate result for task %d ignored", r.TaskIndex)
			continue
		}
		byIndex[r.TaskIndex] = r
	}

	now := c.now()
	out := &domain.EstimationResult{
		RequestID:   req.ID,
		Properties:  make([]domain.ComputedProperty, len(req.Tasks)),
		CompletedAt: now,
	}

	for i := range req.Tasks {
		task := &req.Tasks[i]
		computed := domain.ComputedProperty{
			ID:             c.newID(),
			TaskIndex:      task.Index,
			PropertyID:     task.Property.ID,
			ParameterSetID: task.ParameterSet.ID,
			Type:           task.Property.Type,
			EstimatedAt:    now,
		}

		r, ok := byIndex[task.Index]
		var err error
		switch {
		case !ok:
			err = fmt.Errorf("task %d: no result was returned", task.Index)
		case r.Status != domain.OutcomeEstimated:
			err = r.Err
			if err == nil {
				err = domain.ErrNoCapableLayer
			}
		default:
			computed.Layer = r.Layer
			err = c.fill(&computed, task, r)
		}

		if err != nil {
			computed.Status = domain.ComputedFailed
			computed.Error = err.Error()
			computed.Value = domain.Quantity{Unit: task.Property.Value.Unit}
			computed.Uncertainty = domain.Quantity{Unit: task.Property.Value.Unit}
			out.Exceptions = append(out.Exceptions,
				fmt.Sprintf("%s with %s: %s", task.Property.ID, task.ParameterSet.ID, err))
		} else {
			computed.Status = domain.ComputedEstimated
			c.remember(ctx, task, &computed)
		}
		out.Properties[i] = computed
	}
	return out
}

// fill converts the estimate into the measurement's unit.
func (c *Collector) fill(computed *domain.ComputedProperty, task *domain.EstimationTask, r domain.LayerResult) error {
	unit := task.Property.Value.Unit

	value, err := domain.Convert(r.Value, unit)
	if err != nil {
		return fmt.Errorf("value: %w", err)
	}

	uncertainty := domain.Quantity{Unit: unit}
	if !r.Uncertainty.IsZero() {
		uncertainty, err = domain.ConvertUncertainty(r.Uncertainty, unit)
		if err != nil {
			return fmt.Errorf("uncertainty: %w", err)
		}
	}

	computed.Value = value
	computed.Uncertainty = uncertainty
	return nil
}

// remember stores a fresh estimate for reuse. Estimates that came from the
// stored layer are already there.
func (c *Collector) remember(ctx context.Context, task *domain.EstimationTask, computed *domain.ComputedProperty) {
	if c.store == nil || computed.Layer == domain.LayerStored {
		return
	}
	calc := &domain.StoredCalculation{
		ID:                   computed.ID,
		Fingerprint:          task.Property.Fingerprint(),
		ParameterSetChecksum: task.ParameterSet.Checksum,
		Type:                 computed.Type,
		Value:                computed.Value,
		Uncertainty:          computed.Uncertainty,
		Layer:                computed.Layer,
		CreatedAt:            computed.EstimatedAt,
	}
	if err := c.store.SaveCalculation(ctx, calc); err != nil {
		logger.Warn("collector: store estimate for task %d: %v", task.Index, err)
	}
}
