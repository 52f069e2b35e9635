package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/propest/internal/core/domain"
)

// RequestStore persists estimation requests and their results.
type RequestStore interface {
	// SaveRequest creates or updates a request.
	SaveRequest(ctx context.Context, req *domain.EstimationRequest) error

	// GetRequest retrieves a request by ID.
	// Returns ErrNotFound if the request does not exist.
	GetRequest(ctx context.Context, id string) (*domain.EstimationRequest, error)

	// ListRequests returns summaries of all requests, newest first.
	ListRequests(ctx context.Context) ([]domain.RequestSummary, error)

	// ListByStatus returns the requests with the given status, oldest first.
	ListByStatus(ctx context.Context, status domain.RequestStatus) ([]domain.EstimationRequest, error)

	// UpdateStatus sets the status and error message of a request.
	UpdateStatus(ctx context.Context, id string, status domain.RequestStatus, errMsg string) error

	// Touch refreshes UpdatedAt of a running request in one step.
	// Returns false if the request is no longer running, ErrNotFound if it does not exist.
	Touch(ctx context.Context, id string) (bool, error)

	// SaveResult stores the result of a request.
	SaveResult(ctx context.Context, result *domain.EstimationResult) error

	// GetResult retrieves the result of a request.
	// Returns ErrNotFound if no result has been stored.
	GetResult(ctx context.Context, requestID string) (*domain.EstimationResult, error)

	// DeleteRequest removes a request and its result.
	DeleteRequest(ctx context.Context, id string) error
}

// CalculationStore keeps previous estimates so they can be reused.
type CalculationStore interface {
	// SaveCalculation stores an estimate.
	SaveCalculation(ctx context.Context, calc *domain.StoredCalculation) error

	// FindCalculation returns the most recent estimate matching the property
	// fingerprint and parameter set checksum, or nil if there is none.
	FindCalculation(ctx context.Context, fingerprint, checksum string) (*domain.StoredCalculation, error)

	// PruneCalculations removes estimates created before the cutoff.
	// Returns the number removed.
	PruneCalculations(ctx context.Context, before time.Time) (int, error)
}
