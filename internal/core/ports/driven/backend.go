package driven

import (
	"context"

	"github.com/custodia-labs/propest/internal/core/domain"
)

// CalculationBackend runs estimation jobs. Its implementation is opaque to
// callers of the estimation flow: they only supply a BackendConfig.
type CalculationBackend interface {
	// Capabilities returns what this backend supports.
	Capabilities() domain.BackendCapabilities

	// Submit runs the jobs and streams one outcome per job.
	// The outcome channel is closed when every job has reported. A fatal
	// error is sent on the error channel, which is closed after the outcome channel.
	Submit(ctx context.Context, jobs []domain.Job) (<-chan domain.JobOutcome, <-chan error)

	// Close releases resources. Submit fails with ErrBackendClosed afterwards.
	Close() error
}

// BackendFactory creates calculation backends from configuration.
type BackendFactory interface {
	// Create returns a backend for the configuration.
	// Returns ErrUnsupportedType if the backend type is unknown.
	Create(ctx context.Context, cfg domain.BackendConfig) (CalculationBackend, error)

	// SupportedTypes returns all registered backend types.
	SupportedTypes() []domain.BackendType
}

// BackendBuilder creates a backend of one type.
type BackendBuilder func(ctx context.Context, cfg domain.BackendConfig) (CalculationBackend, error)

// Estimator runs a single job at one calculation layer.
// Backends hold a registry of estimators and pick one per job.
type Estimator interface {
	// Layer returns the calculation layer the estimator serves.
	Layer() string

	// Supports reports whether the estimator can handle the property type.
	Supports(propertyType domain.PropertyType) bool

	// Estimate runs the job. A failed estimate is reported in the outcome,
	// an error is only returned when the job could not be attempted.
	Estimate(ctx context.Context, job domain.Job) (domain.JobOutcome, error)
}
