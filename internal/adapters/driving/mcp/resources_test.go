package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/propest/internal/core/domain"
)

func TestExtractRequestID(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected string
	}{
		{"valid result URI", "propest://requests/req-123/result", "req-123"},
		{"invalid prefix", "file://requests/req-123/result", ""},
		{"missing result suffix", "propest://requests/req-123", ""},
		{"nested path", "propest://requests/a/b/result", ""},
		{"empty URI", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractRequestID(tt.uri))
		})
	}
}

// Helper to create a ReadResourceRequest with the given URI.
func makeReadResourceRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func TestServer_handleRequestsResource(t *testing.T) {
	ports, est, _, _ := newTestPorts()
	est.summaries = []domain.RequestSummary{
		{ID: "req-2", Status: domain.RequestRunning, CreatedAt: time.Now(), Tasks: 4},
		{ID: "req-1", Status: domain.RequestCompleted, CreatedAt: time.Now().Add(-time.Hour), Tasks: 2},
	}
	server, err := NewServer(ports)
	require.NoError(t, err)

	result, err := server.handleRequestsResource(context.Background(), makeReadResourceRequest("propest://requests"))
	require.NoError(t, err)
	require.Len(t, result.Contents, 1)
	assert.Equal(t, "application/json", result.Contents[0].MIMEType)

	var infos []map[string]any
	require.NoError(t, json.Unmarshal([]byte(result.Contents[0].Text), &infos))
	require.Len(t, infos, 2)
	assert.Equal(t, "req-2", infos[0]["request_id"])
	assert.Equal(t, "running", infos[0]["status"])
	assert.Contains(t, infos[0], "created_at")
}

func TestServer_handleResultResource(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the result", func(t *testing.T) {
		ports, est, _, _ := newTestPorts()
		est.result = testResult()
		server, err := NewServer(ports)
		require.NoError(t, err)

		result, err := server.handleResultResource(ctx, makeReadResourceRequest("propest://requests/req-1/result"))
		require.NoError(t, err)

		var out ResultOutput
		require.NoError(t, json.Unmarshal([]byte(result.Contents[0].Text), &out))
		assert.Equal(t, "req-1", out.RequestID)
		assert.Equal(t, 1, out.Estimated)
	})

	t.Run("unknown URI is not found", func(t *testing.T) {
		ports, _, _, _ := newTestPorts()
		server, err := NewServer(ports)
		require.NoError(t, err)

		_, err = server.handleResultResource(ctx, makeReadResourceRequest("propest://requests"))
		assert.Error(t, err)
	})

	t.Run("unfinished request is reported", func(t *testing.T) {
		ports, est, _, _ := newTestPorts()
		est.err = domain.ErrRequestNotFinished
		server, err := NewServer(ports)
		require.NoError(t, err)

		_, err = server.handleResultResource(ctx, makeReadResourceRequest("propest://requests/req-1/result"))
		assert.ErrorIs(t, err, domain.ErrRequestNotFinished)
	})
}
