package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown backend, format or reference scheme.
	ErrUnsupportedType = errors.New("unsupported type")

	// Estimation Errors.

	// ErrIncompatibleUnits indicates a conversion between units of different dimensions.
	ErrIncompatibleUnits = errors.New("incompatible units")

	// ErrNoParameterSets indicates a request was built without any parameter set.
	ErrNoParameterSets = errors.New("at least one parameter set is required")

	// ErrEmptyDataset indicates a request was built from a dataset with no properties.
	ErrEmptyDataset = errors.New("dataset contains no properties")

	// ErrNoCapableLayer indicates no calculation layer could estimate a property.
	ErrNoCapableLayer = errors.New("no calculation layer could estimate the property")

	// ErrRequestNotFinished indicates the results of a request are not available yet.
	ErrRequestNotFinished = errors.New("request has not finished")

	// Backend Errors.

	// ErrBackendClosed indicates the calculation backend has been closed.
	ErrBackendClosed = errors.New("backend closed")

	// ErrRateLimited indicates the remote backend rejected a submission.
	ErrRateLimited = errors.New("rate limited")
)
