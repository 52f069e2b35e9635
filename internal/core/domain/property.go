package domain

import (
	"fmt"
	"strings"
)

// PropertyType identifies the kind of physical property.
type PropertyType string

// Supported property types.
const (
	PropertyDensity                PropertyType = "Density"
	PropertyDielectricConstant     PropertyType = "DielectricConstant"
	PropertyEnthalpyOfMixing       PropertyType = "EnthalpyOfMixing"
	PropertyExcessMolarVolume      PropertyType = "ExcessMolarVolume"
	PropertyEnthalpyOfVaporization PropertyType = "EnthalpyOfVaporization"
)

var propertyDimensions = map[PropertyType]Dimension{
	PropertyDensity:                DimensionDensity,
	PropertyDielectricConstant:     DimensionNone,
	PropertyEnthalpyOfMixing:       DimensionMolarEnergy,
	PropertyExcessMolarVolume:      DimensionMolarVolume,
	PropertyEnthalpyOfVaporization: DimensionMolarEnergy,
}

// PropertyTypes returns every supported property type.
func PropertyTypes() []PropertyType {
	return []PropertyType{
		PropertyDensity,
		PropertyDielectricConstant,
		PropertyEnthalpyOfMixing,
		PropertyExcessMolarVolume,
		PropertyEnthalpyOfVaporization,
	}
}

// IsValid returns true if the property type is recognised.
func (t PropertyType) IsValid() bool {
	_, ok := propertyDimensions[t]
	return ok
}

// Dimension returns the physical dimension values of this type must carry.
func (t PropertyType) Dimension() Dimension {
	return propertyDimensions[t]
}

// String returns the string representation.
func (t PropertyType) String() string {
	return string(t)
}

// Phase is the phase a property was measured in.
type Phase string

// Available phases.
const (
	PhaseLiquid Phase = "Liquid"
	PhaseGas    Phase = "Gas"
	PhaseSolid  Phase = "Solid"
)

// Source records where a measurement was published.
type Source struct {
	DOI       string `json:"doi,omitempty" yaml:"doi,omitempty"`
	Reference string `json:"reference,omitempty" yaml:"reference,omitempty"`
}

// PhysicalProperty is a measured physical property: a value with units and an
// uncertainty, measured for a substance at a thermodynamic state.
type PhysicalProperty struct {
	// ID uniquely identifies the property within a dataset.
	ID string `json:"id" yaml:"id"`

	// Type is the kind of property.
	Type PropertyType `json:"type" yaml:"type"`

	// Phase is the phase the property was measured in. Defaults to liquid.
	Phase Phase `json:"phase,omitempty" yaml:"phase,omitempty"`

	// State is the temperature and pressure of the measurement.
	State ThermodynamicState `json:"thermodynamic_state" yaml:"thermodynamic_state"`

	// Substance is the measured system.
	Substance Substance `json:"substance" yaml:"substance"`

	// Value is the measured value.
	Value Quantity `json:"value" yaml:"value"`

	// Uncertainty of the measured value, in the same unit as Value.
	Uncertainty Quantity `json:"uncertainty" yaml:"uncertainty"`

	// Source is where the measurement was published.
	Source Source `json:"source,omitempty" yaml:"source,omitempty"`
}

// Validate checks the property type, units and substance.
func (p *PhysicalProperty) Validate() error {
	if !p.Type.IsValid() {
		return fmt.Errorf("%w: unknown property type %q", ErrInvalidInput, p.Type)
	}
	dim, err := p.Value.Dimension()
	if err != nil {
		return fmt.Errorf("property %s: %w", p.ID, err)
	}
	if dim != p.Type.Dimension() {
		return fmt.Errorf("%w: property %s of type %s cannot have unit %q",
			ErrIncompatibleUnits, p.ID, p.Type, p.Value.Unit)
	}
	if !p.Uncertainty.IsZero() && p.Uncertainty.Unit != p.Value.Unit {
		return fmt.Errorf("%w: property %s uncertainty unit %q differs from value unit %q",
			ErrIncompatibleUnits, p.ID, p.Uncertainty.Unit, p.Value.Unit)
	}
	if p.Uncertainty.Value < 0 {
		return fmt.Errorf("%w: property %s has a negative uncertainty", ErrInvalidInput, p.ID)
	}
	if err := p.State.Validate(); err != nil {
		return fmt.Errorf("property %s: %w", p.ID, err)
	}
	if err := p.Substance.Validate(); err != nil {
		return fmt.Errorf("property %s: %w", p.ID, err)
	}
	return nil
}

// Fingerprint identifies what is being measured independently of the
// measured value. Two properties with the same fingerprint can share an estimate.
func (p *PhysicalProperty) Fingerprint() string {
	phase := p.Phase
	if phase == "" {
		phase = PhaseLiquid
	}
	return strings.Join([]string{
		string(p.Type),
		string(phase),
		p.Substance.Identifier(),
		p.State.Identifier(),
	}, "|")
}

// Clone returns a deep copy of the property.
func (p *PhysicalProperty) Clone() PhysicalProperty {
	out := *p
	out.Substance = p.Substance.Clone()
	return out
}
