package dataset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/custodia-labs/propest/internal/core/domain"
	"github.com/custodia-labs/propest/internal/core/ports/driven"
)

// Ensure HTTPDownloader implements the interface.
var _ driven.Downloader = (*HTTPDownloader)(nil)

// DefaultDownloadTimeout bounds a dataset download.
const DefaultDownloadTimeout = 2 * time.Minute

// HTTPDownloader fetches datasets over HTTP(S).
type HTTPDownloader struct {
	client *http.Client
}

// NewHTTPDownloader creates a downloader. A nil client uses one with
// DefaultDownloadTimeout.
func NewHTTPDownloader(client *http.Client) *HTTPDownloader {
	if client == nil {
		client = &http.Client{Timeout: DefaultDownloadTimeout}
	}
	return &HTTPDownloader{client: client}
}

// Download opens the resource at url. Non-2xx responses are errors.
func (d *HTTPDownloader) Download(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, url)
		}
		return nil, fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	return resp.Body, nil
}
