// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - CalculationBackend: Runs estimation jobs (local worker pool or remote worker)
//   - BackendFactory: Creates the backend from configuration
//   - RequestStore: Request and result persistence
//   - CalculationStore: Stored calculations reused by the stored layer
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - Estimator: Runs a job at one layer. A backend without estimators reports every job unsupported.
//   - DatasetReader: Parses one dataset file format.
//   - ParameterSetResolver: Fetches parameter sets for one reference scheme.
//   - SchedulerStore: Scheduler state. Without it the scheduler keeps state in memory.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
