package paramsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"

	"github.com/custodia-labs/propest/internal/core/domain"
	"github.com/custodia-labs/propest/internal/core/ports/driven"
)

// Ensure GCSResolver implements the interface.
var _ driven.ParameterSetResolver = (*GCSResolver)(nil)

// GCSResolver fetches parameter sets from Google Cloud Storage.
type GCSResolver struct {
	svc *storage.Service
}

// NewGCSResolver creates a resolver. With no credentials file the
// application default credentials are used.
func NewGCSResolver(ctx context.Context, credentialsFile string, opts ...option.ClientOption) (*GCSResolver, error) {
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	opts = append([]option.ClientOption{option.WithScopes(storage.DevstorageReadOnlyScope)}, opts...)
	svc, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage service: %w", err)
	}
	return &GCSResolver{svc: svc}, nil
}

// Scheme returns "gs".
func (r *GCSResolver) Scheme() string { return "gs" }

// ParseGCSRef splits gs://bucket/object.
func ParseGCSRef(ref string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(ref, "gs://")
	if !ok {
		return "", "", fmt.Errorf("%w: %q is not a gs reference", domain.ErrInvalidInput, ref)
	}
	bucket, object, _ = strings.Cut(rest, "/")
	if bucket == "" || object == "" || strings.HasSuffix(object, "/") {
		return "", "", fmt.Errorf("%w: %q should be gs://bucket/object", domain.ErrInvalidInput, ref)
	}
	return bucket, object, nil
}

// Resolve downloads the object.
func (r *GCSResolver) Resolve(ctx context.Context, ref string) (domain.ParameterSet, error) {
	bucket, object, err := ParseGCSRef(ref)
	if err != nil {
		return domain.ParameterSet{}, err
	}

	resp, err := r.svc.Objects.Get(bucket, object).Context(ctx).Download()
	if err != nil {
		return domain.ParameterSet{}, wrapGCSError(err)
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(io.LimitReader(resp.Body, MaxParameterSetSize))
	if err != nil {
		return domain.ParameterSet{}, fmt.Errorf("read parameter set: %w", err)
	}
	return newParameterSet(path.Base(object), ref, content)
}

// wrapGCSError maps Google API errors onto domain errors.
func wrapGCSError(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return fmt.Errorf("download object: %w", err)
	}
	switch gerr.Code {
	case http.StatusNotFound:
		return fmt.Errorf("download object: %w", domain.ErrNotFound)
	case http.StatusTooManyRequests:
		return fmt.Errorf("download object: %w", domain.ErrRateLimited)
	default:
		return fmt.Errorf("download object: %w", err)
	}
}
