package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/propest/internal/core/domain"
)

// PropertyEstimator is the client entry point: it turns a dataset and a set of
// force fields into one computed property per (property, parameter set) pair.
type PropertyEstimator interface {
	// Estimate builds, dispatches and collects a request synchronously.
	Estimate(ctx context.Context, dataset *domain.PhysicalPropertyDataSet, sets []domain.ParameterSet, opts domain.RequestOptions) (*domain.EstimationResult, error)

	// Submit builds a request and estimates it in the background.
	// Returns the request ID.
	Submit(ctx context.Context, dataset *domain.PhysicalPropertyDataSet, sets []domain.ParameterSet, opts domain.RequestOptions) (string, error)

	// Status returns the current request summary.
	Status(ctx context.Context, id string) (*domain.RequestSummary, error)

	// Result returns the result of a finished request.
	// Returns ErrRequestNotFinished while the request is queued or running.
	Result(ctx context.Context, id string) (*domain.EstimationResult, error)

	// Wait polls until the request finishes and returns its result.
	Wait(ctx context.Context, id string, poll time.Duration) (*domain.EstimationResult, error)

	// List returns summaries of all requests, newest first.
	List(ctx context.Context) ([]domain.RequestSummary, error)

	// Cancel stops a queued or running request.
	Cancel(ctx context.Context, id string) error

	// ResumePending dispatches queued requests and running requests whose
	// owner stopped refreshing them, e.g. a process that exited.
	// Returns the number of requests resumed.
	ResumePending(ctx context.Context) (int, error)
}

// JobRunner runs jobs on the local backend on behalf of a remote client.
type JobRunner interface {
	// Run executes the jobs and streams their outcomes.
	Run(ctx context.Context, jobs []domain.Job) (<-chan domain.JobOutcome, <-chan error)

	// Capabilities reports what the underlying backend can run.
	Capabilities() domain.BackendCapabilities

	// Close releases the underlying backend.
	Close() error
}
