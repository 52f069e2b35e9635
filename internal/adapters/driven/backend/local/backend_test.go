package local

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/propest/internal/core/domain"
	"github.com/custodia-labs/propest/internal/core/ports/driven"
)

// fakeEstimator estimates densities at one layer, tracking concurrency.
type fakeEstimator struct {
	layer   string
	err     error
	delay   time.Duration
	active  atomic.Int32
	maxSeen atomic.Int32
	calls   atomic.Int32
}

func (e *fakeEstimator) Layer() string { return e.layer }

func (e *fakeEstimator) Supports(t domain.PropertyType) bool {
	return t == domain.PropertyDensity
}

func (e *fakeEstimator) Estimate(ctx context.Context, job domain.Job) (domain.JobOutcome, error) {
	e.calls.Add(1)
	n := e.active.Add(1)
	defer e.active.Add(-1)
	for {
		m := e.maxSeen.Load()
		if n <= m || e.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return domain.JobOutcome{}, ctx.Err()
		}
	}
	if e.err != nil {
		return domain.JobOutcome{}, e.err
	}
	return domain.JobOutcome{
		Value:       domain.Q(float64(1000+job.Task.Index), "kg/m**3"),
		Uncertainty: domain.Q(1, "kg/m**3"),
		Provenance:  e.layer,
	}, nil
}

var _ driven.Estimator = (*fakeEstimator)(nil)

func makeJobs(layer string, n int, propertyType domain.PropertyType) []domain.Job {
	jobs := make([]domain.Job, n)
	for i := range jobs {
		jobs[i] = domain.Job{
			ID:    "job-" + string(rune('a'+i)),
			Layer: layer,
			Task: domain.EstimationTask{
				Index:    i,
				Property: domain.PhysicalProperty{ID: "p", Type: propertyType},
			},
		}
	}
	return jobs
}

func drain(outcomes <-chan domain.JobOutcome, errs <-chan error) (map[string]domain.JobOutcome, error) {
	got := make(map[string]domain.JobOutcome)
	for o := range outcomes {
		got[o.JobID] = o
	}
	var err error
	for e := range errs {
		err = e
	}
	return got, err
}

func TestBackend_Capabilities(t *testing.T) {
	b := New(3,
		&fakeEstimator{layer: domain.LayerSimulation},
		&fakeEstimator{layer: domain.LayerReweighting},
		&fakeEstimator{layer: domain.LayerSimulation},
	)
	caps := b.Capabilities()
	assert.Equal(t, 3, caps.MaxWorkers)
	assert.Equal(t, []string{domain.LayerReweighting, domain.LayerSimulation}, caps.Layers)
}

func TestBackend_DefaultWorkers(t *testing.T) {
	assert.Positive(t, New(0).Capabilities().MaxWorkers)
}

func TestBackend_Submit_OneOutcomePerJob(t *testing.T) {
	est := &fakeEstimator{layer: domain.LayerSimulation, delay: 5 * time.Millisecond}
	b := New(2, est)
	defer b.Close()

	jobs := makeJobs(domain.LayerSimulation, 8, domain.PropertyDensity)
	got, err := drain(b.Submit(context.Background(), jobs))
	require.NoError(t, err)

	require.Len(t, got, 8)
	for _, job := range jobs {
		o := got[job.ID]
		assert.Equal(t, domain.OutcomeEstimated, o.Status)
		assert.Equal(t, job.Task.Index, o.TaskIndex)
		assert.InDelta(t, float64(1000+job.Task.Index), o.Value.Value, 1e-12)
	}
	assert.LessOrEqual(t, est.maxSeen.Load(), int32(2))
}

func TestBackend_Submit_Unsupported(t *testing.T) {
	est := &fakeEstimator{layer: domain.LayerSimulation}
	b := New(2, est)
	defer b.Close()

	jobs := append(
		makeJobs(domain.LayerReweighting, 1, domain.PropertyDensity),
		makeJobs(domain.LayerSimulation, 1, domain.PropertyEnthalpyOfMixing)...,
	)
	jobs[1].ID = "other"

	got, err := drain(b.Submit(context.Background(), jobs))
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, o := range got {
		assert.Equal(t, domain.OutcomeUnsupported, o.Status)
	}
	assert.Zero(t, est.calls.Load())
}

func TestBackend_Submit_EstimatorError(t *testing.T) {
	b := New(1, &fakeEstimator{layer: domain.LayerSimulation, err: errors.New("engine crashed")})
	defer b.Close()

	got, err := drain(b.Submit(context.Background(), makeJobs(domain.LayerSimulation, 2, domain.PropertyDensity)))
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, o := range got {
		assert.Equal(t, domain.OutcomeFailed, o.Status)
		assert.Equal(t, "engine crashed", o.Error)
	}
}

func TestBackend_Submit_Cancelled(t *testing.T) {
	b := New(1, &fakeEstimator{layer: domain.LayerSimulation, delay: time.Minute})
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	outcomes, errs := b.Submit(ctx, makeJobs(domain.LayerSimulation, 4, domain.PropertyDensity))
	cancel()

	_, err := drain(outcomes, errs)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackend_Submit_AfterClose(t *testing.T) {
	b := New(1)
	require.NoError(t, b.Close())

	got, err := drain(b.Submit(context.Background(), makeJobs(domain.LayerSimulation, 1, domain.PropertyDensity)))
	assert.Empty(t, got)
	assert.ErrorIs(t, err, domain.ErrBackendClosed)
}

func TestBuilder(t *testing.T) {
	est := &fakeEstimator{layer: domain.LayerSimulation}
	build := Builder(func(cfg domain.BackendConfig) ([]driven.Estimator, error) {
		return []driven.Estimator{est}, nil
	})

	backend, err := build(context.Background(), domain.BackendConfig{Type: domain.BackendLocal, Workers: 5})
	require.NoError(t, err)
	assert.Equal(t, 5, backend.Capabilities().MaxWorkers)

	failing := Builder(func(domain.BackendConfig) ([]driven.Estimator, error) {
		return nil, domain.ErrNotFound
	})
	_, err = failing(context.Background(), domain.BackendConfig{Type: domain.BackendLocal})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
