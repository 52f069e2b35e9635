package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/custodia-labs/propest/internal/core/domain"
	"github.com/custodia-labs/propest/internal/core/ports/driven"
	"github.com/custodia-labs/propest/internal/logger"
)

// Gateway dispatches the tasks of a request through the calculation layers.
// Which backend runs the jobs is decided by the backend factory from the
// configuration; callers never see it.
type Gateway struct {
	factory driven.BackendFactory
	layers  map[string]driven.CalculationLayer
}

// NewGateway creates a dispatch gateway with the given calculation layers.
func NewGateway(factory driven.BackendFactory, layers ...driven.CalculationLayer) *Gateway {
	g := &Gateway{
		factory: factory,
		layers:  make(map[string]driven.CalculationLayer, len(layers)),
	}
	for _, l := range layers {
		g.layers[l.Name()] = l
	}
	return g
}

// Dispatch estimates every task of the request and returns one result per
// task, indexed by task index.
//
// Layers are tried in the order of the request options. A task falls through
// to the next layer when a layer cannot handle it, or when its estimate is
// less certain than the target and a later layer exists.
//
//nolint:gocognit // Layer fall-through is a single loop over tasks and layers.
func (g *Gateway) Dispatch(ctx context.Context, req *domain.EstimationRequest, cfg domain.BackendConfig) ([]domain.LayerResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Options.Workers > 0 {
		cfg.Workers = req.Options.Workers
	}

	backend, err := g.factory.Create(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create backend: %w", err)
	}
	defer func() {
		if cerr := backend.Close(); cerr != nil {
			logger.Warn("close backend: %v", cerr)
		}
	}()

	n := len(req.Tasks)
	final := make([]domain.LayerResult, n)
	settled := make([]bool, n)
	candidates := make(map[int]domain.LayerResult)
	pending := n

	layers := req.Options.Layers
	last := -1
	for li, name := range layers {
		if _, ok := g.layers[name]; ok {
			last = li
		}
	}
	for li, name := range layers {
		if pending == 0 {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		layer, ok := g.layers[name]
		if !ok {
			logger.Debug("gateway: no %s layer registered, skipping", name)
			continue
		}

		jobs := make([]domain.Job, 0, pending)
		for i := range req.Tasks {
			if settled[i] {
				continue
			}
			task := req.Tasks[i]
			jobs = append(jobs, domain.Job{
				ID:                uuid.NewString(),
				Layer:             name,
				Task:              task,
				Options:           req.Options,
				TargetUncertainty: task.TargetUncertainty(req.Options.RelativeUncertaintyTolerance),
			})
		}

		logger.Section(fmt.Sprintf("Layer %s", name))
		logger.Debug("gateway: %d tasks submitted to the %s layer", len(jobs), name)

		results, err := layer.Estimate(ctx, backend, jobs)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err != nil {
			// The layer could not run; every task it was given fails.
			logger.Warn("gateway: %s layer failed: %v", name, err)
			reported := make(map[int]bool, len(results))
			for _, r := range results {
				reported[r.TaskIndex] = true
			}
			for i := range jobs {
				if !reported[jobs[i].Task.Index] {
					results = append(results, domain.LayerResult{
						TaskIndex: jobs[i].Task.Index,
						Layer:     name,
						Status:    domain.OutcomeFailed,
						Err:       err,
					})
				}
			}
		}

		lastLayer := li == last
		for _, r := range results {
			if r.TaskIndex < 0 || r.TaskIndex >= n || settled[r.TaskIndex] {
				continue
			}
			switch r.Status {
			case domain.OutcomeEstimated:
				task := &req.Tasks[r.TaskIndex]
				target := task.TargetUncertainty(req.Options.RelativeUncertaintyTolerance)
				if !lastLayer && exceedsTarget(r.Uncertainty, target) {
					logger.WithFields(logger.Fields{"task": r.TaskIndex, "layer": name}).
						Debug("estimate above the uncertainty target, trying the next layer")
					candidates[r.TaskIndex] = r
					continue
				}
			case domain.OutcomeFailed:
				if r.Err == nil {
					r.Err = fmt.Errorf("%s layer failed", name)
				}
			default:
				continue
			}
			final[r.TaskIndex] = r
			settled[r.TaskIndex] = true
			pending--
		}
	}

	for i := range final {
		if settled[i] {
			continue
		}
		if c, ok := candidates[i]; ok {
			final[i] = c
			continue
		}
		final[i] = domain.LayerResult{
			TaskIndex: i,
			Status:    domain.OutcomeFailed,
			Err:       domain.ErrNoCapableLayer,
		}
	}
	return final, nil
}

// exceedsTarget reports whether an uncertainty is above the target.
// A zero target means the measurement gave no uncertainty to aim for.
func exceedsTarget(uncertainty, target domain.Quantity) bool {
	if target.IsZero() {
		return false
	}
	u, err := domain.ConvertUncertainty(uncertainty, target.Unit)
	if err != nil {
		return false
	}
	return u.Value > target.Value
}
