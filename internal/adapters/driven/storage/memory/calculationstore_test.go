package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/propest/internal/core/domain"
)

func TestCalculationStore_FindMostRecent(t *testing.T) {
	store := NewCalculationStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveCalculation(ctx, &domain.StoredCalculation{
		ID: "c1", Fingerprint: "fp", ParameterSetChecksum: "sum",
		Value: domain.Q(997, "kg/m**3"), CreatedAt: base,
	}))
	require.NoError(t, store.SaveCalculation(ctx, &domain.StoredCalculation{
		ID: "c2", Fingerprint: "fp", ParameterSetChecksum: "sum",
		Value: domain.Q(998, "kg/m**3"), CreatedAt: base.Add(time.Hour),
	}))
	require.NoError(t, store.SaveCalculation(ctx, &domain.StoredCalculation{
		ID: "c3", Fingerprint: "fp", ParameterSetChecksum: "other", CreatedAt: base.Add(2 * time.Hour),
	}))

	found, err := store.FindCalculation(ctx, "fp", "sum")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "c2", found.ID)

	missing, err := store.FindCalculation(ctx, "fp", "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	assert.ErrorIs(t, store.SaveCalculation(ctx, &domain.StoredCalculation{}), domain.ErrInvalidInput)
}

func TestCalculationStore_Prune(t *testing.T) {
	store := NewCalculationStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.SaveCalculation(ctx, &domain.StoredCalculation{ID: "old", CreatedAt: now.Add(-48 * time.Hour)}))
	require.NoError(t, store.SaveCalculation(ctx, &domain.StoredCalculation{ID: "new", CreatedAt: now}))

	removed, err := store.PruneCalculations(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, store.Len())
}
