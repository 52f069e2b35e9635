package driven

import (
	"context"

	"github.com/custodia-labs/propest/internal/core/domain"
)

// CalculationLayer estimates tasks at one level of fidelity.
type CalculationLayer interface {
	// Name returns the layer name, e.g. "stored" or "simulation".
	Name() string

	// Estimate returns one result per task, in any order.
	// Tasks the layer cannot handle are reported as OutcomeUnsupported.
	Estimate(ctx context.Context, backend CalculationBackend, jobs []domain.Job) ([]domain.LayerResult, error)
}
