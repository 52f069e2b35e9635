package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/custodia-labs/propest/internal/core/domain"
	"github.com/custodia-labs/propest/internal/core/ports/driven"
)

// Ensure CSVReader implements the interface.
var _ driven.DatasetReader = (*CSVReader)(nil)

// CSV column names. Matching is case-insensitive.
const (
	ColumnID              = "id"
	ColumnType            = "type"
	ColumnPhase           = "phase"
	ColumnTemperature     = "temperature"
	ColumnTemperatureUnit = "temperature_unit"
	ColumnPressure        = "pressure"
	ColumnPressureUnit    = "pressure_unit"
	ColumnValue           = "value"
	ColumnUncertainty     = "uncertainty"
	ColumnUnit            = "unit"
	ColumnDOI             = "doi"
)

// maxComponents is the number of component column groups read per row.
const maxComponents = 2

var requiredColumns = []string{ColumnType, ColumnTemperature, componentColumn(1), ColumnValue, ColumnUnit}

func componentColumn(n int) string    { return fmt.Sprintf("component_%d", n) }
func roleColumn(n int) string         { return fmt.Sprintf("role_%d", n) }
func moleFractionColumn(n int) string { return fmt.Sprintf("mole_fraction_%d", n) }

// CSVReader reads one single-component or binary-mixture property per row.
//
// Required columns are type, temperature, component_1 (a SMILES pattern),
// value and unit. Optional columns are id, phase, temperature_unit (K),
// pressure, pressure_unit (kPa), role_N, mole_fraction_N, component_2,
// uncertainty and doi. A missing mole fraction is whatever remains of 1.0.
type CSVReader struct{}

// NewCSVReader creates a CSV dataset reader.
func NewCSVReader() *CSVReader {
	return &CSVReader{}
}

// Format returns "csv".
func (r *CSVReader) Format() string { return "csv" }

// Extensions returns the CSV file extensions.
func (r *CSVReader) Extensions() []string { return []string{".csv"} }

// Read parses the rows. Blank cells are treated as missing.
func (r *CSVReader) Read(in io.Reader) ([]domain.PhysicalProperty, error) {
	cr := csv.NewReader(in)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", domain.ErrInvalidInput, err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", domain.ErrInvalidInput, name)
		}
	}

	var properties []domain.PhysicalProperty
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		row := csvRow{columns: columns, record: record}
		p, err := row.property()
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		properties = append(properties, p)
	}
	return properties, nil
}

type csvRow struct {
	columns map[string]int
	record  []string
}

func (r csvRow) get(name string) string {
	i, ok := r.columns[name]
	if !ok || i >= len(r.record) {
		return ""
	}
	return strings.TrimSpace(r.record[i])
}

func (r csvRow) float(name string) (float64, bool, error) {
	s := r.get(name)
	if s == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%w: column %s: %q is not a number", domain.ErrInvalidInput, name, s)
	}
	return v, true, nil
}

func (r csvRow) property() (domain.PhysicalProperty, error) {
	p := domain.PhysicalProperty{
		ID:     r.get(ColumnID),
		Type:   domain.PropertyType(r.get(ColumnType)),
		Phase:  domain.Phase(r.get(ColumnPhase)),
		Source: domain.Source{DOI: r.get(ColumnDOI)},
	}
	unit := r.get(ColumnUnit)

	value, ok, err := r.float(ColumnValue)
	if err != nil {
		return p, err
	}
	if !ok {
		return p, fmt.Errorf("%w: no value", domain.ErrInvalidInput)
	}
	p.Value = domain.Q(value, unit)

	if u, ok, err := r.float(ColumnUncertainty); err != nil {
		return p, err
	} else if ok {
		p.Uncertainty = domain.Q(u, unit)
	}

	t, ok, err := r.float(ColumnTemperature)
	if err != nil {
		return p, err
	}
	if !ok {
		return p, fmt.Errorf("%w: no temperature", domain.ErrInvalidInput)
	}
	p.State.Temperature = domain.Q(t, withDefault(r.get(ColumnTemperatureUnit), "K"))

	if pr, ok, err := r.float(ColumnPressure); err != nil {
		return p, err
	} else if ok {
		p.State.Pressure = domain.Q(pr, withDefault(r.get(ColumnPressureUnit), "kPa"))
	}

	substance, err := r.substance()
	if err != nil {
		return p, err
	}
	p.Substance = substance
	return p, nil
}

func (r csvRow) substance() (domain.Substance, error) {
	var substance domain.Substance
	remaining := 1.0
	for n := 1; n <= maxComponents; n++ {
		smiles := r.get(componentColumn(n))
		if smiles == "" {
			continue
		}
		component, err := domain.NewComponent(smiles, "", domain.ComponentRole(r.get(roleColumn(n))))
		if err != nil {
			return substance, err
		}

		x, ok, err := r.float(moleFractionColumn(n))
		if err != nil {
			return substance, err
		}
		if !ok {
			x = math.Round(remaining*1e6) / 1e6
		}
		remaining -= x

		amount, err := domain.MoleFraction(x)
		if err != nil {
			return substance, fmt.Errorf("component %s: %w", smiles, err)
		}
		if err := substance.AddComponent(component, amount); err != nil {
			return substance, err
		}
	}
	return substance, nil
}

func withDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
