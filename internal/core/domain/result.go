package domain

import "time"

// ComputedStatus is the state of a computed property.
type ComputedStatus string

// Computed property statuses.
const (
	ComputedEstimated ComputedStatus = "estimated"
	ComputedFailed    ComputedStatus = "failed"
)

// ComputedProperty is an estimate of one measured property under one
// parameter set, expressed in the measurement's unit.
type ComputedProperty struct {
	ID             string         `json:"id"`
	TaskIndex      int            `json:"task_index"`
	PropertyID     string         `json:"property_id"`
	ParameterSetID string         `json:"parameter_set_id"`
	Type           PropertyType   `json:"type"`
	Value          Quantity       `json:"value"`
	Uncertainty    Quantity       `json:"uncertainty"`
	Layer          string         `json:"layer,omitempty"`
	Status         ComputedStatus `json:"status"`
	Error          string         `json:"error,omitempty"`
	EstimatedAt    time.Time      `json:"estimated_at"`
}

// Succeeded returns true if the property was estimated.
func (c ComputedProperty) Succeeded() bool {
	return c.Status == ComputedEstimated
}

// EstimationResult holds one computed property per task of a request, in task order.
type EstimationResult struct {
	RequestID   string             `json:"request_id"`
	Properties  []ComputedProperty `json:"properties"`
	Exceptions  []string           `json:"exceptions,omitempty"`
	CompletedAt time.Time          `json:"completed_at"`
}

// Estimated returns the successfully estimated properties.
func (r *EstimationResult) Estimated() []ComputedProperty {
	var out []ComputedProperty
	for _, p := range r.Properties {
		if p.Succeeded() {
			out = append(out, p)
		}
	}
	return out
}

// Unsuccessful returns the properties that could not be estimated.
func (r *EstimationResult) Unsuccessful() []ComputedProperty {
	var out []ComputedProperty
	for _, p := range r.Properties {
		if !p.Succeeded() {
			out = append(out, p)
		}
	}
	return out
}

// StoredCalculation is a previous estimate kept for reuse.
type StoredCalculation struct {
	ID                   string       `json:"id"`
	Fingerprint          string       `json:"fingerprint"`
	ParameterSetChecksum string       `json:"parameter_set_checksum"`
	Type                 PropertyType `json:"type"`
	Value                Quantity     `json:"value"`
	Uncertainty          Quantity     `json:"uncertainty"`
	Layer                string       `json:"layer"`
	CreatedAt            time.Time    `json:"created_at"`
}
