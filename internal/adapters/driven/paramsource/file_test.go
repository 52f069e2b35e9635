package paramsource

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/propest/internal/core/domain"
)

const offxml = `<SMIRNOFF version="0.3"><Author>test</Author></SMIRNOFF>`

func TestFileResolver(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "openff-2.0.0.offxml")
	require.NoError(t, os.WriteFile(path, []byte(offxml), 0o600))

	r := NewFileResolver()
	assert.Equal(t, "file", r.Scheme())

	for _, ref := range []string{path, "file://" + path} {
		set, err := r.Resolve(context.Background(), ref)
		require.NoError(t, err)
		assert.Equal(t, "openff-2.0.0.offxml", set.Name)
		assert.Equal(t, "offxml", set.Format)
		assert.Equal(t, "file://"+filepath.ToSlash(path), set.Source)
		assert.Equal(t, []byte(offxml), set.Content)
		assert.Equal(t, domain.NewParameterSet("x", "y", []byte(offxml)).Checksum, set.Checksum)
	}
}

func TestFileResolver_Errors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.offxml")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	r := NewFileResolver()

	_, err := r.Resolve(context.Background(), filepath.Join(dir, "missing.offxml"))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = r.Resolve(context.Background(), empty)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = r.Resolve(context.Background(), "file://")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
