package driven

import (
	"context"
	"io"

	"github.com/custodia-labs/propest/internal/core/domain"
)

// DatasetReader parses a dataset file format.
type DatasetReader interface {
	// Format returns the format name, e.g. "json".
	Format() string

	// Extensions returns the file extensions handled, including the dot.
	Extensions() []string

	// Read parses properties from r.
	Read(r io.Reader) ([]domain.PhysicalProperty, error)
}

// ParameterSetResolver fetches parameter sets for one reference scheme.
type ParameterSetResolver interface {
	// Scheme returns the reference scheme, e.g. "file", "https", "github" or "gs".
	Scheme() string

	// Resolve fetches the parameter set a reference points at.
	Resolve(ctx context.Context, ref string) (domain.ParameterSet, error)
}

// Downloader fetches remote resources.
type Downloader interface {
	// Download opens the resource at url. The caller closes the reader.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}
