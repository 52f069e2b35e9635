package services

import (
	"context"

	"github.com/custodia-labs/propest/internal/core/domain"
	"github.com/custodia-labs/propest/internal/core/ports/driven"
	"github.com/custodia-labs/propest/internal/core/ports/driving"
)

// Ensure JobRunner implements the interface.
var _ driving.JobRunner = (*JobRunner)(nil)

// JobRunner runs jobs received from remote clients on a local backend.
type JobRunner struct {
	backend driven.CalculationBackend
}

// NewJobRunner creates a job runner on top of a backend.
func NewJobRunner(backend driven.CalculationBackend) *JobRunner {
	return &JobRunner{backend: backend}
}

// Run executes the jobs and streams their outcomes.
func (r *JobRunner) Run(ctx context.Context, jobs []domain.Job) (<-chan domain.JobOutcome, <-chan error) {
	return r.backend.Submit(ctx, jobs)
}

// Capabilities reports the backend's capabilities.
func (r *JobRunner) Capabilities() domain.BackendCapabilities {
	return r.backend.Capabilities()
}

// Close closes the backend.
func (r *JobRunner) Close() error {
	return r.backend.Close()
}
