package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/propest/internal/core/domain"
	"github.com/custodia-labs/propest/internal/core/ports/driven"
)

// calculationStore implements driven.CalculationStore.
type calculationStore struct {
	store *Store
}

var _ driven.CalculationStore = (*calculationStore)(nil)

// SaveCalculation stores an estimate.
func (s *calculationStore) SaveCalculation(ctx context.Context, calc *domain.StoredCalculation) error {
	if calc == nil || calc.ID == "" {
		return domain.ErrInvalidInput
	}
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO calculations (id, fingerprint, parameter_set_checksum, property_type,
			value, unit, uncertainty, uncertainty_unit, layer, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			value = excluded.value,
			unit = excluded.unit,
			uncertainty = excluded.uncertainty,
			uncertainty_unit = excluded.uncertainty_unit,
			layer = excluded.layer,
			created_at = excluded.created_at
	`, calc.ID, calc.Fingerprint, calc.ParameterSetChecksum, string(calc.Type),
		calc.Value.Value, calc.Value.Unit, calc.Uncertainty.Value, calc.Uncertainty.Unit,
		calc.Layer, calc.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("saving calculation: %w", err)
	}
	return nil
}

// FindCalculation returns the most recent matching estimate, or nil.
func (s *calculationStore) FindCalculation(ctx context.Context, fingerprint, checksum string) (*domain.StoredCalculation, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, fingerprint, parameter_set_checksum, property_type,
			value, unit, uncertainty, uncertainty_unit, layer, created_at
		FROM calculations
		WHERE fingerprint = ? AND parameter_set_checksum = ?
		ORDER BY created_at DESC
		LIMIT 1
	`, fingerprint, checksum)

	var calc domain.StoredCalculation
	var propertyType string
	var createdAt int64
	err := row.Scan(&calc.ID, &calc.Fingerprint, &calc.ParameterSetChecksum, &propertyType,
		&calc.Value.Value, &calc.Value.Unit, &calc.Uncertainty.Value, &calc.Uncertainty.Unit,
		&calc.Layer, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning calculation: %w", err)
	}
	calc.Type = domain.PropertyType(propertyType)
	calc.CreatedAt = time.Unix(0, createdAt)
	return &calc, nil
}

// PruneCalculations removes estimates created before the cutoff.
func (s *calculationStore) PruneCalculations(ctx context.Context, before time.Time) (int, error) {
	res, err := s.store.db.ExecContext(ctx, "DELETE FROM calculations WHERE created_at < ?", before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("pruning calculations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned calculations: %w", err)
	}
	return int(n), nil
}
