package domain

import (
	"fmt"
	"strconv"
)

// ThermodynamicState is the temperature and pressure at which a property is measured.
type ThermodynamicState struct {
	// Temperature of the system.
	Temperature Quantity `json:"temperature" yaml:"temperature"`

	// Pressure of the system. May be zero for properties that do not depend on it.
	Pressure Quantity `json:"pressure" yaml:"pressure"`
}

// Validate checks the units and range of the state.
func (s ThermodynamicState) Validate() error {
	dim, err := s.Temperature.Dimension()
	if err != nil || dim != DimensionTemperature {
		return fmt.Errorf("%w: temperature unit %q", ErrInvalidInput, s.Temperature.Unit)
	}
	kelvin, err := s.TemperatureKelvin()
	if err != nil {
		return err
	}
	if kelvin <= 0 {
		return fmt.Errorf("%w: temperature must be above absolute zero", ErrInvalidInput)
	}

	if s.Pressure.IsZero() {
		return nil
	}
	dim, err = s.Pressure.Dimension()
	if err != nil || dim != DimensionPressure {
		return fmt.Errorf("%w: pressure unit %q", ErrInvalidInput, s.Pressure.Unit)
	}
	if s.Pressure.Value <= 0 {
		return fmt.Errorf("%w: pressure must be positive", ErrInvalidInput)
	}
	return nil
}

// TemperatureKelvin returns the temperature in kelvin.
func (s ThermodynamicState) TemperatureKelvin() (float64, error) {
	q, err := Convert(s.Temperature, "K")
	if err != nil {
		return 0, err
	}
	return q.Value, nil
}

// PressureKilopascal returns the pressure in kPa, or zero when the pressure is unset.
func (s ThermodynamicState) PressureKilopascal() (float64, error) {
	if s.Pressure.IsZero() {
		return 0, nil
	}
	q, err := Convert(s.Pressure, "kPa")
	if err != nil {
		return 0, err
	}
	return q.Value, nil
}

// Identifier renders the state in canonical units, e.g. "298.15 K|101.325 kPa".
func (s ThermodynamicState) Identifier() string {
	t, err := s.TemperatureKelvin()
	if err != nil {
		return s.Temperature.String()
	}
	id := strconv.FormatFloat(t, 'f', 3, 64) + " K"

	p, err := s.PressureKilopascal()
	if err != nil || p == 0 {
		return id
	}
	return id + "|" + strconv.FormatFloat(p, 'f', 3, 64) + " kPa"
}
