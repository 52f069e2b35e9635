package domain

import (
	"fmt"
	"math"
	"strconv"
)

// Dimension identifies the physical dimension of a unit.
type Dimension string

// Supported dimensions.
const (
	DimensionNone        Dimension = "dimensionless"
	DimensionTemperature Dimension = "temperature"
	DimensionPressure    Dimension = "pressure"
	DimensionDensity     Dimension = "density"
	DimensionMolarEnergy Dimension = "molar_energy"
	DimensionMolarVolume Dimension = "molar_volume"
)

// unitDef converts a unit to its dimension's base unit: base = value*scale + offset.
type unitDef struct {
	dimension Dimension
	scale     float64
	offset    float64
}

// Base units: K, Pa, kg/m**3, J/mol, m**3/mol.
var units = map[string]unitDef{
	"":          {DimensionNone, 1, 0},
	"K":         {DimensionTemperature, 1, 0},
	"degC":      {DimensionTemperature, 1, 273.15},
	"Pa":        {DimensionPressure, 1, 0},
	"kPa":       {DimensionPressure, 1e3, 0},
	"MPa":       {DimensionPressure, 1e6, 0},
	"bar":       {DimensionPressure, 1e5, 0},
	"atm":       {DimensionPressure, 101325, 0},
	"kg/m**3":   {DimensionDensity, 1, 0},
	"g/mL":      {DimensionDensity, 1e3, 0},
	"g/cm**3":   {DimensionDensity, 1e3, 0},
	"J/mol":     {DimensionMolarEnergy, 1, 0},
	"kJ/mol":    {DimensionMolarEnergy, 1e3, 0},
	"kcal/mol":  {DimensionMolarEnergy, 4184, 0},
	"m**3/mol":  {DimensionMolarVolume, 1, 0},
	"cm**3/mol": {DimensionMolarVolume, 1e-6, 0},
	"mL/mol":    {DimensionMolarVolume, 1e-6, 0},
}

// Quantity is a value with a physical unit.
type Quantity struct {
	Value float64 `json:"value" yaml:"value"`
	Unit  string  `json:"unit" yaml:"unit"`
}

// Q is shorthand for constructing a Quantity.
func Q(value float64, unit string) Quantity {
	return Quantity{Value: value, Unit: unit}
}

// IsZero reports whether the quantity was never set.
func (q Quantity) IsZero() bool {
	return q.Value == 0 && q.Unit == ""
}

// Dimension returns the dimension of the quantity's unit.
func (q Quantity) Dimension() (Dimension, error) {
	return UnitDimension(q.Unit)
}

// String renders the quantity as "<value> <unit>".
func (q Quantity) String() string {
	v := strconv.FormatFloat(q.Value, 'g', -1, 64)
	if q.Unit == "" {
		return v
	}
	return v + " " + q.Unit
}

// UnitDimension returns the dimension of a registered unit.
func UnitDimension(unit string) (Dimension, error) {
	def, ok := units[unit]
	if !ok {
		return "", fmt.Errorf("%w: unknown unit %q", ErrIncompatibleUnits, unit)
	}
	return def.dimension, nil
}

// KnownUnit reports whether a unit is registered.
func KnownUnit(unit string) bool {
	_, ok := units[unit]
	return ok
}

// Convert returns q expressed in the target unit.
func Convert(q Quantity, target string) (Quantity, error) {
	from, to, err := unitPair(q.Unit, target)
	if err != nil {
		return Quantity{}, err
	}
	base := q.Value*from.scale + from.offset
	return Quantity{Value: (base - to.offset) / to.scale, Unit: target}, nil
}

// ConvertUncertainty converts a difference or uncertainty, which ignores unit offsets.
func ConvertUncertainty(q Quantity, target string) (Quantity, error) {
	from, to, err := unitPair(q.Unit, target)
	if err != nil {
		return Quantity{}, err
	}
	return Quantity{Value: math.Abs(q.Value * from.scale / to.scale), Unit: target}, nil
}

func unitPair(from, to string) (unitDef, unitDef, error) {
	f, ok := units[from]
	if !ok {
		return unitDef{}, unitDef{}, fmt.Errorf("%w: unknown unit %q", ErrIncompatibleUnits, from)
	}
	t, ok := units[to]
	if !ok {
		return unitDef{}, unitDef{}, fmt.Errorf("%w: unknown unit %q", ErrIncompatibleUnits, to)
	}
	if f.dimension != t.dimension {
		return unitDef{}, unitDef{}, fmt.Errorf("%w: %s (%s) to %s (%s)",
			ErrIncompatibleUnits, from, f.dimension, to, t.dimension)
	}
	return f, t, nil
}
