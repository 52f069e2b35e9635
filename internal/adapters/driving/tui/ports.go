// Package tui provides an interactive terminal dashboard for propest requests.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/propest/internal/core/ports/driving"
)

// Ports aggregates the driving ports used by the TUI.
type Ports struct {
	// Estimator lists, inspects and cancels requests.
	Estimator driving.PropertyEstimator

	// Settings reads and changes application settings.
	Settings driving.SettingsService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Estimator == nil {
		return ErrMissingEstimator
	}
	if p.Settings == nil {
		return ErrMissingSettingsService
	}
	return nil
}
