package domain

import (
	"fmt"
	"time"
)

// Calculation layer names, in increasing order of cost.
const (
	LayerStored      = "stored"
	LayerReweighting = "reweighting"
	LayerSimulation  = "simulation"
)

// KnownLayers returns every calculation layer name.
func KnownLayers() []string {
	return []string{LayerStored, LayerReweighting, LayerSimulation}
}

// IsKnownLayer reports whether name is a calculation layer.
func IsKnownLayer(name string) bool {
	for _, l := range KnownLayers() {
		if l == name {
			return true
		}
	}
	return false
}

// RequestOptions control how a request is estimated.
type RequestOptions struct {
	// Layers are the calculation layers to try, in order.
	Layers []string `json:"layers"`

	// RelativeUncertaintyTolerance scales the measured uncertainty to give
	// the uncertainty an estimate must reach before later layers are skipped.
	RelativeUncertaintyTolerance float64 `json:"relative_uncertainty_tolerance"`

	// AllowProtocolMerging lets identical workflow steps shared between
	// tasks run once.
	AllowProtocolMerging bool `json:"allow_protocol_merging"`

	// Workers is a hint for the number of concurrent jobs. Zero uses the backend default.
	Workers int `json:"workers,omitempty"`
}

// DefaultRequestOptions returns the options used when none are given.
func DefaultRequestOptions() RequestOptions {
	return RequestOptions{
		Layers:                       KnownLayers(),
		RelativeUncertaintyTolerance: 1.0,
		AllowProtocolMerging:         true,
	}
}

// Normalise fills in defaults and validates the options.
func (o RequestOptions) Normalise() (RequestOptions, error) {
	out := o
	if len(out.Layers) == 0 {
		out.Layers = KnownLayers()
	} else {
		out.Layers = append([]string(nil), o.Layers...)
	}
	seen := make(map[string]bool, len(out.Layers))
	for _, l := range out.Layers {
		if !IsKnownLayer(l) {
			return RequestOptions{}, fmt.Errorf("%w: unknown calculation layer %q", ErrInvalidInput, l)
		}
		if seen[l] {
			return RequestOptions{}, fmt.Errorf("%w: calculation layer %q listed twice", ErrInvalidInput, l)
		}
		seen[l] = true
	}
	if out.RelativeUncertaintyTolerance < 0 {
		return RequestOptions{}, fmt.Errorf("%w: relative uncertainty tolerance must not be negative", ErrInvalidInput)
	}
	if out.RelativeUncertaintyTolerance == 0 {
		out.RelativeUncertaintyTolerance = 1.0
	}
	if out.Workers < 0 {
		return RequestOptions{}, fmt.Errorf("%w: workers must not be negative", ErrInvalidInput)
	}
	return out, nil
}

// EstimationTask is one (measured property, parameter set) pair to estimate.
type EstimationTask struct {
	// Index is the position of the task in its request.
	Index int `json:"index"`

	// Property is the measured property to estimate.
	Property PhysicalProperty `json:"property"`

	// ParameterSet is the force field to estimate it with.
	ParameterSet ParameterSet `json:"parameter_set"`
}

// TargetUncertainty is the uncertainty an estimate must reach for the task,
// or a zero Quantity when the measurement has no uncertainty.
func (t EstimationTask) TargetUncertainty(tolerance float64) Quantity {
	u := t.Property.Uncertainty
	if u.Value <= 0 {
		return Quantity{}
	}
	return Quantity{Value: u.Value * tolerance, Unit: u.Unit}
}

// RequestStatus is the lifecycle state of a request.
type RequestStatus string

// Request statuses.
const (
	RequestQueued    RequestStatus = "queued"
	RequestRunning   RequestStatus = "running"
	RequestCompleted RequestStatus = "completed"
	RequestFailed    RequestStatus = "failed"
	RequestCancelled RequestStatus = "cancelled"
)

// IsTerminal returns true if the request will not change status again.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestCompleted || s == RequestFailed || s == RequestCancelled
}

// EstimationRequest pairs every property of a dataset with every parameter set.
type EstimationRequest struct {
	ID            string             `json:"id"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
	Options       RequestOptions     `json:"options"`
	Properties    []PhysicalProperty `json:"properties"`
	ParameterSets []ParameterSet     `json:"parameter_sets"`
	Tasks         []EstimationTask   `json:"tasks"`
	Status        RequestStatus      `json:"status"`

	// Error is set when Status is RequestFailed.
	Error string `json:"error,omitempty"`
}

// RequestSummary is a lightweight view of a request for listings.
type RequestSummary struct {
	ID            string
	Status        RequestStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Properties    int
	ParameterSets int
	Tasks         int
	Error         string
}

// Summary returns the summary of the request.
func (r *EstimationRequest) Summary() RequestSummary {
	return RequestSummary{
		ID:            r.ID,
		Status:        r.Status,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		Properties:    len(r.Properties),
		ParameterSets: len(r.ParameterSets),
		Tasks:         len(r.Tasks),
		Error:         r.Error,
	}
}
