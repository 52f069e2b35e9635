package paramsource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/propest/internal/core/domain"
	"github.com/custodia-labs/propest/internal/core/ports/driven"
)

// Ensure FileResolver implements the interface.
var _ driven.ParameterSetResolver = (*FileResolver)(nil)

// FileResolver reads parameter sets from the local filesystem.
type FileResolver struct{}

// NewFileResolver creates a file resolver.
func NewFileResolver() *FileResolver {
	return &FileResolver{}
}

// Scheme returns "file".
func (r *FileResolver) Scheme() string { return "file" }

// Resolve reads a plain path or a file:// reference.
func (r *FileResolver) Resolve(_ context.Context, ref string) (domain.ParameterSet, error) {
	p := ref
	if i := strings.Index(ref, "://"); i > 0 {
		p = ref[i+3:]
	}
	if p == "" {
		return domain.ParameterSet{}, fmt.Errorf("%w: empty path", domain.ErrInvalidInput)
	}
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, p[2:])
		}
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return domain.ParameterSet{}, fmt.Errorf("resolve path: %w", err)
	}

	content, err := os.ReadFile(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.ParameterSet{}, fmt.Errorf("%w: %s", domain.ErrNotFound, abs)
	}
	if err != nil {
		return domain.ParameterSet{}, fmt.Errorf("read parameter set: %w", err)
	}
	return newParameterSet(filepath.Base(abs), "file://"+filepath.ToSlash(abs), content)
}

// newParameterSet rejects empty content.
func newParameterSet(name, source string, content []byte) (domain.ParameterSet, error) {
	if len(content) == 0 {
		return domain.ParameterSet{}, fmt.Errorf("%w: parameter set %s is empty", domain.ErrInvalidInput, source)
	}
	return domain.NewParameterSet(name, source, content), nil
}
