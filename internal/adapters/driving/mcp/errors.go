// Package mcp provides an MCP (Model Context Protocol) server adapter for propest.
// It lets AI assistants submit estimation requests and read their results.
package mcp

import "errors"

// ErrMissingEstimator is returned when the property estimator is not provided.
var ErrMissingEstimator = errors.New("mcp: property estimator is required")

// ErrMissingDatasetService is returned when the dataset service is not provided.
var ErrMissingDatasetService = errors.New("mcp: dataset service is required")

// ErrMissingParameterSetService is returned when the parameter set service is not provided.
var ErrMissingParameterSetService = errors.New("mcp: parameter set service is required")
