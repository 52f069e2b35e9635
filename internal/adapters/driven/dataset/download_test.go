package dataset

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/propest/internal/core/domain"
)

func TestHTTPDownloader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/data.json":
			_, _ = w.Write([]byte(jsonDataset))
		case "/broken.json":
			http.Error(w, "boom", http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	d := NewHTTPDownloader(nil)
	ctx := context.Background()

	body, err := d.Download(ctx, server.URL+"/data.json")
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, body.Close())
	require.NoError(t, err)
	assert.Equal(t, jsonDataset, string(data))

	_, err = d.Download(ctx, server.URL+"/missing.json")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = d.Download(ctx, server.URL+"/broken.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")

	_, err = d.Download(ctx, "://bad")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
