package domain

import "time"

const unknownDescription = "Unknown"

// Description returns a human-readable description of the backend type.
func (t BackendType) Description() string {
	switch t {
	case BackendLocal:
		return "Local (in-process worker pool)"
	case BackendRemote:
		return "Remote (propest worker over HTTP)"
	default:
		return unknownDescription
	}
}

// AllBackendTypes returns every backend type.
func AllBackendTypes() []BackendType {
	return []BackendType{BackendLocal, BackendRemote}
}

// EstimationSettings holds the defaults applied to new requests.
type EstimationSettings struct {
	// Layers are the calculation layers to try, in order.
	Layers []string

	// RelativeUncertaintyTolerance scales the measured uncertainty target.
	RelativeUncertaintyTolerance float64

	// AllowProtocolMerging lets identical workflow steps run once.
	AllowProtocolMerging bool
}

// Options converts the settings into request options.
func (e EstimationSettings) Options() RequestOptions {
	return RequestOptions{
		Layers:                       append([]string(nil), e.Layers...),
		RelativeUncertaintyTolerance: e.RelativeUncertaintyTolerance,
		AllowProtocolMerging:         e.AllowProtocolMerging,
	}
}

// StorageSettings holds storage configuration.
type StorageSettings struct {
	// Retention is how long stored calculations are kept for reuse.
	Retention time.Duration
}

// SourceSettings holds credentials used to resolve parameter sets.
type SourceSettings struct {
	// GitHubToken authenticates github:// references. Optional for public repositories.
	GitHubToken string

	// GCSCredentialsFile is a service account key for gs:// references.
	GCSCredentialsFile string
}

// AppSettings holds all application settings.
type AppSettings struct {
	// Backend selects and configures the calculation backend.
	Backend BackendConfig

	// Estimation holds request defaults.
	Estimation EstimationSettings

	// WorkflowsDir holds the workflow definitions used by the local backend.
	WorkflowsDir string

	// Storage holds storage settings.
	Storage StorageSettings

	// Sources holds parameter set source credentials.
	Sources SourceSettings
}

// DefaultAppSettings returns settings with sensible defaults.
// The workflows directory is resolved relative to the home directory by the caller.
func DefaultAppSettings() AppSettings {
	opts := DefaultRequestOptions()
	return AppSettings{
		Backend: BackendConfig{
			Type:              BackendLocal,
			RequestsPerSecond: 10,
			Burst:             20,
			BatchSize:         32,
			Timeout:           30 * time.Minute,
		},
		Estimation: EstimationSettings{
			Layers:                       opts.Layers,
			RelativeUncertaintyTolerance: opts.RelativeUncertaintyTolerance,
			AllowProtocolMerging:         opts.AllowProtocolMerging,
		},
		Storage: StorageSettings{
			Retention: 30 * 24 * time.Hour,
		},
	}
}

// IsSecretSetting reports whether a setting key holds a credential that
// should be masked when shown.
func IsSecretSetting(key string) bool {
	switch key {
	case "backend.token", "backend.client_secret", "sources.github_token":
		return true
	}
	return false
}
