// Package domain defines the core business entities for propest.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - PhysicalProperty: A measured property of a substance at a thermodynamic state
//   - PhysicalPropertyDataSet: An ordered collection of measured properties
//   - ParameterSet: An opaque force field parameterisation
//   - EstimationRequest: Every (property, parameter set) pair to estimate
//   - ComputedProperty: The estimate produced for one pair
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
