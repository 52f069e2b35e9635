package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/propest/internal/core/domain"
	"github.com/custodia-labs/propest/internal/core/ports/driven"
)

// --- Mock implementations for estimation testing ---

// mockBackend implements driven.CalculationBackend. estimate decides the
// outcome of every job; layers lists the layers it accepts.
type mockBackend struct {
	layers    []string
	estimate  func(job domain.Job) domain.JobOutcome
	submitErr error
	block     chan struct{}

	mu     sync.Mutex
	jobs   []domain.Job
	closed bool
}

func (b *mockBackend) Capabilities() domain.BackendCapabilities {
	return domain.BackendCapabilities{MaxWorkers: 2, Layers: b.layers}
}

func (b *mockBackend) Submit(ctx context.Context, jobs []domain.Job) (<-chan domain.JobOutcome, <-chan error) {
	b.mu.Lock()
	b.jobs = append(b.jobs, jobs...)
	b.mu.Unlock()

	outcomes := make(chan domain.JobOutcome)
	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		defer close(outcomes)
		if b.block != nil {
			select {
			case <-b.block:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if b.submitErr != nil {
			errs <- b.submitErr
			return
		}
		for _, job := range jobs {
			outcome := domain.JobOutcome{JobID: job.ID, TaskIndex: job.Task.Index, Status: domain.OutcomeUnsupported}
			if b.estimate != nil {
				outcome = b.estimate(job)
				outcome.JobID = job.ID
				outcome.TaskIndex = job.Task.Index
			}
			select {
			case outcomes <- outcome:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()
	return outcomes, errs
}

func (b *mockBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *mockBackend) submitted() []domain.Job {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.Job(nil), b.jobs...)
}

// mockBackendFactory implements driven.BackendFactory, always returning backend.
type mockBackendFactory struct {
	backend   *mockBackend
	createErr error

	mu      sync.Mutex
	configs []domain.BackendConfig
}

func (f *mockBackendFactory) Create(_ context.Context, cfg domain.BackendConfig) (driven.CalculationBackend, error) {
	f.mu.Lock()
	f.configs = append(f.configs, cfg)
	f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.backend, nil
}

func (f *mockBackendFactory) SupportedTypes() []domain.BackendType {
	return []domain.BackendType{domain.BackendLocal}
}

// Ensure mocks implement interfaces
var _ driven.CalculationBackend = (*mockBackend)(nil)
var _ driven.BackendFactory = (*mockBackendFactory)(nil)

// --- Fixtures ---

func waterMixture(t *testing.T, fraction float64) domain.Substance {
	t.Helper()
	var s domain.Substance
	water, err := domain.NewComponent("O", "", domain.RoleSolvent)
	require.NoError(t, err)
	require.NoError(t, s.AddComponent(water, domain.Amount{Kind: domain.AmountMoleFraction, Value: fraction}))
	if fraction < 1 {
		ethanol, err := domain.NewComponent("CCO", "", domain.RoleSolvent)
		require.NoError(t, err)
		require.NoError(t, s.AddComponent(ethanol, domain.Amount{Kind: domain.AmountMoleFraction, Value: 1 - fraction}))
	}
	return s
}

func density(t *testing.T, id string, kelvin float64) domain.PhysicalProperty {
	t.Helper()
	return domain.PhysicalProperty{
		ID:          id,
		Type:        domain.PropertyDensity,
		Phase:       domain.PhaseLiquid,
		State:       domain.ThermodynamicState{Temperature: domain.Q(kelvin, "K"), Pressure: domain.Q(101.325, "kPa")},
		Substance:   waterMixture(t, 1.0),
		Value:       domain.Q(0.997, "g/mL"),
		Uncertainty: domain.Q(0.002, "g/mL"),
	}
}

func enthalpyOfMixing(t *testing.T, id string) domain.PhysicalProperty {
	t.Helper()
	return domain.PhysicalProperty{
		ID:          id,
		Type:        domain.PropertyEnthalpyOfMixing,
		Phase:       domain.PhaseLiquid,
		State:       domain.ThermodynamicState{Temperature: domain.Q(298.15, "K"), Pressure: domain.Q(1, "atm")},
		Substance:   waterMixture(t, 0.5),
		Value:       domain.Q(-0.75, "kJ/mol"),
		Uncertainty: domain.Q(0.01, "kJ/mol"),
	}
}

func parameterSets(names ...string) []domain.ParameterSet {
	sets := make([]domain.ParameterSet, 0, len(names))
	for _, n := range names {
		sets = append(sets, domain.NewParameterSet(n+".offxml", n, []byte("<SMIRNOFF name=\""+n+"\"/>")))
	}
	return sets
}

// estimateInKgPerM3 reports every density as 1000 kg/m**3 +- 1 and every
// other property in its measured unit.
func estimateInKgPerM3(job domain.Job) domain.JobOutcome {
	p := job.Task.Property
	if p.Type == domain.PropertyDensity {
		return domain.JobOutcome{
			Status:      domain.OutcomeEstimated,
			Value:       domain.Q(1000, "kg/m**3"),
			Uncertainty: domain.Q(1, "kg/m**3"),
		}
	}
	return domain.JobOutcome{
		Status:      domain.OutcomeEstimated,
		Value:       p.Value,
		Uncertainty: p.Uncertainty,
	}
}
