package domain

import (
	"fmt"
	"time"
)

// BackendType identifies a calculation backend implementation.
type BackendType string

// Available backend types.
const (
	// BackendLocal runs jobs in-process on a worker pool.
	BackendLocal BackendType = "local"

	// BackendRemote sends jobs to a propest worker over HTTP.
	BackendRemote BackendType = "remote"
)

// IsValid returns true if the backend type is recognised.
func (t BackendType) IsValid() bool {
	return t == BackendLocal || t == BackendRemote
}

// BackendConfig describes the backend to dispatch to. Callers only supply it;
// they never see which implementation it produced.
type BackendConfig struct {
	Type BackendType

	// Workers bounds the number of concurrent jobs. Zero uses the number of CPUs.
	Workers int

	// Remote backend settings.
	Endpoint          string
	Token             string
	RequestsPerSecond float64
	Burst             int
	BatchSize         int
	Timeout           time.Duration

	// OAuth2 client credentials for the remote backend.
	TokenURL     string
	ClientID     string
	ClientSecret string
}

// Validate checks the backend configuration.
func (c BackendConfig) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("%w: backend %q", ErrUnsupportedType, c.Type)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative", ErrInvalidInput)
	}
	if c.Type == BackendRemote && c.Endpoint == "" {
		return fmt.Errorf("%w: remote backend needs an endpoint", ErrInvalidInput)
	}
	return nil
}

// BackendCapabilities describes what a backend can do.
type BackendCapabilities struct {
	MaxWorkers int      `json:"max_workers"`
	Layers     []string `json:"layers"`
}

// SupportsLayer reports whether the backend can run jobs of the layer.
func (c BackendCapabilities) SupportsLayer(layer string) bool {
	for _, l := range c.Layers {
		if l == layer {
			return true
		}
	}
	return false
}

// Job is a unit of work submitted to a backend: one task at one layer.
type Job struct {
	ID                string         `json:"id"`
	Layer             string         `json:"layer"`
	Task              EstimationTask `json:"task"`
	Options           RequestOptions `json:"options"`
	TargetUncertainty Quantity       `json:"target_uncertainty"`
}

// OutcomeStatus is the result of running a job.
type OutcomeStatus string

// Job outcome statuses.
const (
	OutcomeEstimated   OutcomeStatus = "estimated"
	OutcomeUnsupported OutcomeStatus = "unsupported"
	OutcomeFailed      OutcomeStatus = "failed"
)

// JobOutcome is what a backend reports for a job.
type JobOutcome struct {
	JobID       string        `json:"job_id"`
	TaskIndex   int           `json:"task_index"`
	Status      OutcomeStatus `json:"status"`
	Value       Quantity      `json:"value"`
	Uncertainty Quantity      `json:"uncertainty"`
	Error       string        `json:"error,omitempty"`
	Provenance  string        `json:"provenance,omitempty"`
}

// LayerResult is a calculation layer's answer for one task.
type LayerResult struct {
	TaskIndex   int
	Layer       string
	Status      OutcomeStatus
	Value       Quantity
	Uncertainty Quantity
	Err         error
}

// WireJob is a job as sent to a remote worker. It carries the parameter set
// content, which is not part of the job's own JSON form.
type WireJob struct {
	Job
	ParameterSetContent []byte `json:"parameter_set_content,omitempty"`
}

// Wire returns the job in its remote form.
func (j Job) Wire() WireJob {
	return WireJob{Job: j, ParameterSetContent: j.Task.ParameterSet.Content}
}

// Unwrap restores the job, including its parameter set content.
func (w WireJob) Unwrap() Job {
	j := w.Job
	j.Task.ParameterSet.Content = w.ParameterSetContent
	return j
}
