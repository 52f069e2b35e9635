package mcp

import (
	"github.com/custodia-labs/propest/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
type Ports struct {
	// Estimator submits requests and reports their results.
	Estimator driving.PropertyEstimator

	// Datasets loads dataset files named by tool calls.
	Datasets driving.DatasetService

	// ParameterSets resolves parameter set references named by tool calls.
	ParameterSets driving.ParameterSetService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	switch {
	case p.Estimator == nil:
		return ErrMissingEstimator
	case p.Datasets == nil:
		return ErrMissingDatasetService
	case p.ParameterSets == nil:
		return ErrMissingParameterSetService
	}
	return nil
}
