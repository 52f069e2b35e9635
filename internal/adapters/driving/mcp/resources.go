package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// uriScheme is the custom URI scheme for propest resources.
	uriScheme = "propest://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "requests",
		Name:        "requests",
		Description: "Estimation requests, newest first",
		MIMEType:    "application/json",
	}, s.handleRequestsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "requests/{requestId}/result",
		Name:        "request-result",
		Description: "Computed properties of a finished request",
		MIMEType:    "application/json",
	}, s.handleResultResource)
}

// handleRequestsResource lists every request.
func (s *Server) handleRequestsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	summaries, err := s.ports.Estimator.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing requests: %w", err)
	}

	type requestInfo struct {
		RequestOutput
		CreatedAt time.Time `json:"created_at"`
	}

	infos := make([]requestInfo, len(summaries))
	for i := range summaries {
		infos[i] = requestInfo{
			RequestOutput: toRequestOutput(&summaries[i]),
			CreatedAt:     summaries[i].CreatedAt,
		}
	}
	return jsonContents(req.Params.URI, infos)
}

// handleResultResource returns the result of one request.
func (s *Server) handleResultResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	id := extractRequestID(req.Params.URI)
	if id == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	result, err := s.ports.Estimator.Result(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting request result: %w", err)
	}
	return jsonContents(req.Params.URI, toResultOutput(result))
}

func jsonContents(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractRequestID extracts the request ID from a URI like propest://requests/{requestId}/result.
func extractRequestID(uri string) string {
	const prefix = uriScheme + "requests/"
	const suffix = "/result"

	if !strings.HasPrefix(uri, prefix) || !strings.HasSuffix(uri, suffix) {
		return ""
	}
	id := strings.TrimSuffix(strings.TrimPrefix(uri, prefix), suffix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}
