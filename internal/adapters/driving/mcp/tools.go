package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/propest/internal/core/domain"
)

// EstimateInput is the input schema for the estimate tool.
type EstimateInput struct {
	Dataset       string   `json:"dataset" jsonschema:"path or http(s) URL of a JSON, YAML or CSV dataset file"`
	ParameterSets []string `json:"parameter_sets" jsonschema:"parameter set references: paths, http(s)://, github:// or gs:// URLs"`
	Layers        []string `json:"layers,omitempty" jsonschema:"calculation layers to try, in order (default: stored, reweighting, simulation)"`
	Tolerance     float64  `json:"relative_uncertainty_tolerance,omitempty" jsonschema:"scale applied to measured uncertainties (default 1)"`
	Wait          bool     `json:"wait,omitempty" jsonschema:"wait for the request to finish and return its result"`
}

// RequestInput identifies a request.
type RequestInput struct {
	RequestID string `json:"request_id" jsonschema:"the request ID returned by estimate"`
}

// RequestOutput summarises a request.
type RequestOutput struct {
	RequestID     string `json:"request_id"`
	Status        string `json:"status"`
	Properties    int    `json:"properties"`
	ParameterSets int    `json:"parameter_sets"`
	Tasks         int    `json:"tasks"`
	Error         string `json:"error,omitempty"`
}

// EstimateOutput is the output schema for the estimate tool.
// Result is set only when the caller waited.
type EstimateOutput struct {
	Request RequestOutput `json:"request"`
	Result  *ResultOutput `json:"result,omitempty"`
}

// ResultOutput is the output schema for a finished request.
type ResultOutput struct {
	RequestID  string           `json:"request_id"`
	Properties []PropertyOutput `json:"properties"`
	Estimated  int              `json:"estimated"`
	Failed     int              `json:"failed"`
	Exceptions []string         `json:"exceptions,omitempty"`
}

// PropertyOutput is one computed property.
type PropertyOutput struct {
	PropertyID     string  `json:"property_id"`
	ParameterSetID string  `json:"parameter_set_id"`
	Type           string  `json:"type"`
	Status         string  `json:"status"`
	Value          float64 `json:"value"`
	Uncertainty    float64 `json:"uncertainty"`
	Unit           string  `json:"unit"`
	Layer          string  `json:"layer,omitempty"`
	Error          string  `json:"error,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "estimate",
		Description: "Estimate every property of a dataset with every given parameter set",
	}, s.handleEstimate)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "request_status",
		Description: "Report the status of an estimation request",
	}, s.handleStatus)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "request_result",
		Description: "Return the computed properties of a finished estimation request",
	}, s.handleResult)
}

// handleEstimate loads the dataset and parameter sets, then submits a request.
func (s *Server) handleEstimate(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input EstimateInput,
) (*mcp.CallToolResult, EstimateOutput, error) {
	if input.Dataset == "" {
		return nil, EstimateOutput{}, fmt.Errorf("%w: dataset is required", domain.ErrInvalidInput)
	}

	dataset, err := s.loadDataset(ctx, input.Dataset)
	if err != nil {
		return nil, EstimateOutput{}, err
	}
	sets, err := s.ports.ParameterSets.Resolve(ctx, input.ParameterSets...)
	if err != nil {
		return nil, EstimateOutput{}, err
	}

	opts := domain.DefaultRequestOptions()
	if len(input.Layers) > 0 {
		opts.Layers = input.Layers
	}
	if input.Tolerance > 0 {
		opts.RelativeUncertaintyTolerance = input.Tolerance
	}

	if input.Wait {
		result, err := s.ports.Estimator.Estimate(ctx, dataset, sets, opts)
		if err != nil {
			return nil, EstimateOutput{}, err
		}
		out := toResultOutput(result)
		return nil, EstimateOutput{
			Request: RequestOutput{
				RequestID:     result.RequestID,
				Status:        string(domain.RequestCompleted),
				Properties:    dataset.Len(),
				ParameterSets: len(sets),
				Tasks:         len(result.Properties),
			},
			Result: &out,
		}, nil
	}

	id, err := s.ports.Estimator.Submit(ctx, dataset, sets, opts)
	if err != nil {
		return nil, EstimateOutput{}, err
	}
	summary, err := s.ports.Estimator.Status(ctx, id)
	if err != nil {
		return nil, EstimateOutput{}, err
	}
	return nil, EstimateOutput{Request: toRequestOutput(summary)}, nil
}

// handleStatus reports a request's status.
func (s *Server) handleStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RequestInput,
) (*mcp.CallToolResult, RequestOutput, error) {
	summary, err := s.ports.Estimator.Status(ctx, input.RequestID)
	if err != nil {
		return nil, RequestOutput{}, err
	}
	return nil, toRequestOutput(summary), nil
}

// handleResult returns a finished request's computed properties.
func (s *Server) handleResult(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RequestInput,
) (*mcp.CallToolResult, ResultOutput, error) {
	result, err := s.ports.Estimator.Result(ctx, input.RequestID)
	if err != nil {
		return nil, ResultOutput{}, err
	}
	return nil, toResultOutput(result), nil
}

func (s *Server) loadDataset(ctx context.Context, ref string) (*domain.PhysicalPropertyDataSet, error) {
	if isURL(ref) {
		return s.ports.Datasets.LoadURL(ctx, ref)
	}
	return s.ports.Datasets.LoadFile(ref)
}

func isURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

func toRequestOutput(s *domain.RequestSummary) RequestOutput {
	return RequestOutput{
		RequestID:     s.ID,
		Status:        string(s.Status),
		Properties:    s.Properties,
		ParameterSets: s.ParameterSets,
		Tasks:         s.Tasks,
		Error:         s.Error,
	}
}

func toResultOutput(r *domain.EstimationResult) ResultOutput {
	out := ResultOutput{
		RequestID:  r.RequestID,
		Properties: make([]PropertyOutput, len(r.Properties)),
		Exceptions: r.Exceptions,
	}
	for i, p := range r.Properties {
		out.Properties[i] = PropertyOutput{
			PropertyID:     p.PropertyID,
			ParameterSetID: p.ParameterSetID,
			Type:           string(p.Type),
			Status:         string(p.Status),
			Value:          p.Value.Value,
			Uncertainty:    p.Uncertainty.Value,
			Unit:           p.Value.Unit,
			Layer:          p.Layer,
			Error:          p.Error,
		}
		if p.Succeeded() {
			out.Estimated++
		} else {
			out.Failed++
		}
	}
	return out
}
