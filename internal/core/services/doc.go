// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The estimation flow is Request Builder -> Dispatch Gateway -> Result
// Collector. The Client ties them together behind driving.PropertyEstimator.
//
// Services are pure Go with no CGO.
package services
