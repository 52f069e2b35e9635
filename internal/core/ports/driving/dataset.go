package driving

import (
	"context"

	"github.com/custodia-labs/propest/internal/core/domain"
)

// DatasetService loads measured property datasets.
type DatasetService interface {
	// LoadFile reads and validates a dataset file. The format is chosen by extension.
	LoadFile(path string) (*domain.PhysicalPropertyDataSet, error)

	// LoadURL downloads and validates a dataset.
	LoadURL(ctx context.Context, url string) (*domain.PhysicalPropertyDataSet, error)

	// Formats returns the supported file extensions.
	Formats() []string
}

// ParameterSetService resolves parameter set references.
type ParameterSetService interface {
	// Resolve fetches every reference, in order.
	// Returns ErrInvalidInput if two references resolve to the same content.
	Resolve(ctx context.Context, refs ...string) ([]domain.ParameterSet, error)

	// Schemes returns the supported reference schemes.
	Schemes() []string
}
