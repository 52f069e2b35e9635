package paramsource

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"

	"github.com/custodia-labs/propest/internal/core/domain"
	"github.com/custodia-labs/propest/internal/core/ports/driven"
)

// Ensure HTTPResolver implements the interface.
var _ driven.ParameterSetResolver = (*HTTPResolver)(nil)

// MaxParameterSetSize bounds a downloaded parameter set.
const MaxParameterSetSize = 64 << 20

// HTTPResolver downloads parameter sets over HTTP or HTTPS.
type HTTPResolver struct {
	scheme     string
	downloader driven.Downloader
}

// NewHTTPResolver creates a resolver for the "http" or "https" scheme.
func NewHTTPResolver(scheme string, downloader driven.Downloader) *HTTPResolver {
	return &HTTPResolver{scheme: scheme, downloader: downloader}
}

// Scheme returns the scheme the resolver was created for.
func (r *HTTPResolver) Scheme() string { return r.scheme }

// Resolve downloads the parameter set. Its name is the last path element.
func (r *HTTPResolver) Resolve(ctx context.Context, ref string) (domain.ParameterSet, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return domain.ParameterSet{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	name := path.Base(u.Path)
	if name == "/" || name == "." {
		return domain.ParameterSet{}, fmt.Errorf("%w: %s does not name a file", domain.ErrInvalidInput, ref)
	}

	body, err := r.downloader.Download(ctx, ref)
	if err != nil {
		return domain.ParameterSet{}, err
	}
	defer body.Close()

	content, err := io.ReadAll(io.LimitReader(body, MaxParameterSetSize+1))
	if err != nil {
		return domain.ParameterSet{}, fmt.Errorf("read parameter set: %w", err)
	}
	if len(content) > MaxParameterSetSize {
		return domain.ParameterSet{}, fmt.Errorf("%w: parameter set %s is larger than %d bytes",
			domain.ErrInvalidInput, ref, MaxParameterSetSize)
	}
	return newParameterSet(name, ref, content)
}
