// Package local runs estimation jobs in-process on a bounded worker pool.
package local

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/propest/internal/core/domain"
	"github.com/custodia-labs/propest/internal/core/ports/driven"
	"github.com/custodia-labs/propest/internal/logger"
)

// Ensure Backend implements the interface.
var _ driven.CalculationBackend = (*Backend)(nil)

// Backend runs jobs on registered estimators. A job whose layer and property
// type no estimator serves is reported as unsupported.
type Backend struct {
	workers    int
	estimators []driven.Estimator

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// New creates a local backend. workers <= 0 uses the number of CPUs.
func New(workers int, estimators ...driven.Estimator) *Backend {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Backend{
		workers:    workers,
		estimators: estimators,
	}
}

// Builder returns a backend builder creating local backends over the
// estimators returned by load.
func Builder(load func(cfg domain.BackendConfig) ([]driven.Estimator, error)) driven.BackendBuilder {
	return func(_ context.Context, cfg domain.BackendConfig) (driven.CalculationBackend, error) {
		estimators, err := load(cfg)
		if err != nil {
			return nil, err
		}
		return New(cfg.Workers, estimators...), nil
	}
}

// Capabilities returns the worker limit and the layers the estimators serve,
// in layer order.
func (b *Backend) Capabilities() domain.BackendCapabilities {
	served := make(map[string]bool)
	for _, e := range b.estimators {
		served[e.Layer()] = true
	}
	var layers []string
	for _, l := range domain.KnownLayers() {
		if served[l] {
			layers = append(layers, l)
		}
	}
	return domain.BackendCapabilities{MaxWorkers: b.workers, Layers: layers}
}

// Submit runs the jobs with at most workers running at once.
func (b *Backend) Submit(ctx context.Context, jobs []domain.Job) (<-chan domain.JobOutcome, <-chan error) {
	outcomes := make(chan domain.JobOutcome)
	errs := make(chan error, 1)

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		errs <- domain.ErrBackendClosed
		close(outcomes)
		close(errs)
		return outcomes, errs
	}
	b.wg.Add(1)
	b.mu.RUnlock()

	go func() {
		defer b.wg.Done()
		defer close(errs)
		defer close(outcomes)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(b.workers)
		for i := range jobs {
			if gctx.Err() != nil {
				break
			}
			job := jobs[i]
			g.Go(func() error {
				outcome := b.run(gctx, job)
				select {
				case outcomes <- outcome:
					return nil
				case <-gctx.Done():
					return gctx.Err()
				}
			})
		}
		if err := g.Wait(); err != nil {
			errs <- err
			return
		}
		if err := ctx.Err(); err != nil {
			errs <- err
		}
	}()

	return outcomes, errs
}

// run estimates one job and always produces an outcome for it.
func (b *Backend) run(ctx context.Context, job domain.Job) domain.JobOutcome {
	outcome := domain.JobOutcome{
		JobID:     job.ID,
		TaskIndex: job.Task.Index,
		Status:    domain.OutcomeUnsupported,
	}

	estimator := b.estimatorFor(job)
	if estimator == nil {
		return outcome
	}

	result, err := estimator.Estimate(ctx, job)
	if err != nil {
		outcome.Status = domain.OutcomeFailed
		outcome.Error = err.Error()
		if !errors.Is(err, context.Canceled) {
			logger.Warn("local backend: job %s (%s) failed: %v", job.ID, job.Layer, err)
		}
		return outcome
	}
	result.JobID = job.ID
	result.TaskIndex = job.Task.Index
	if result.Status == "" {
		result.Status = domain.OutcomeEstimated
	}
	return result
}

func (b *Backend) estimatorFor(job domain.Job) driven.Estimator {
	for _, e := range b.estimators {
		if e.Layer() == job.Layer && e.Supports(job.Task.Property.Type) {
			return e
		}
	}
	return nil
}

// Close stops accepting jobs and waits for running submissions to finish.
func (b *Backend) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.wg.Wait()
	return nil
}
