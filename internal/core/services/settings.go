package services

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/propest/internal/core/domain"
	"github.com/custodia-labs/propest/internal/core/ports/driven"
	"github.com/custodia-labs/propest/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyBackendType       = "backend.type"
	keyBackendWorkers    = "backend.workers"
	keyBackendEndpoint   = "backend.endpoint"
	keyBackendToken      = "backend.token"
	keyBackendRPS        = "backend.requests_per_second"
	keyBackendBurst      = "backend.burst"
	keyBackendBatchSize  = "backend.batch_size"
	keyBackendTimeout    = "backend.timeout"
	keyBackendTokenURL   = "backend.token_url"
	keyBackendClientID   = "backend.client_id"
	keyBackendSecret     = "backend.client_secret"
	keyEstimationLayers  = "estimation.layers"
	keyEstimationTol     = "estimation.relative_uncertainty_tolerance"
	keyEstimationMerge   = "estimation.allow_protocol_merging"
	keyWorkflowsDir      = "workflows.dir"
	keyStorageRetention  = "storage.retention"
	keySourcesGitHub     = "sources.github_token"
	keySourcesGCSKeyFile = "sources.gcs_credentials_file"
)

type settingKind int

const (
	kindString settingKind = iota
	kindInt
	kindFloat
	kindBool
	kindDuration
	kindList
)

var settingKinds = map[string]settingKind{
	keyBackendType:       kindString,
	keyBackendWorkers:    kindInt,
	keyBackendEndpoint:   kindString,
	keyBackendToken:      kindString,
	keyBackendRPS:        kindFloat,
	keyBackendBurst:      kindInt,
	keyBackendBatchSize:  kindInt,
	keyBackendTimeout:    kindDuration,
	keyBackendTokenURL:   kindString,
	keyBackendClientID:   kindString,
	keyBackendSecret:     kindString,
	keyEstimationLayers:  kindList,
	keyEstimationTol:     kindFloat,
	keyEstimationMerge:   kindBool,
	keyWorkflowsDir:      kindString,
	keyStorageRetention:  kindDuration,
	keySourcesGitHub:     kindString,
	keySourcesGCSKeyFile: kindString,
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Backend: domain.BackendConfig{
			Type:              s.getBackendType(defaults.Backend.Type),
			Workers:           s.getInt(keyBackendWorkers, defaults.Backend.Workers),
			Endpoint:          s.getString(keyBackendEndpoint, ""),
			Token:             s.getString(keyBackendToken, ""),
			RequestsPerSecond: s.getFloat(keyBackendRPS, defaults.Backend.RequestsPerSecond),
			Burst:             s.getInt(keyBackendBurst, defaults.Backend.Burst),
			BatchSize:         s.getInt(keyBackendBatchSize, defaults.Backend.BatchSize),
			Timeout:           s.getDuration(keyBackendTimeout, defaults.Backend.Timeout),
			TokenURL:          s.getString(keyBackendTokenURL, ""),
			ClientID:          s.getString(keyBackendClientID, ""),
			ClientSecret:      s.getString(keyBackendSecret, ""),
		},
		Estimation: domain.EstimationSettings{
			Layers:                       s.getLayers(defaults.Estimation.Layers),
			RelativeUncertaintyTolerance: s.getFloat(keyEstimationTol, defaults.Estimation.RelativeUncertaintyTolerance),
			AllowProtocolMerging:         s.getBool(keyEstimationMerge, defaults.Estimation.AllowProtocolMerging),
		},
		WorkflowsDir: s.getString(keyWorkflowsDir, defaults.WorkflowsDir),
		Storage: domain.StorageSettings{
			Retention: s.getDuration(keyStorageRetention, defaults.Storage.Retention),
		},
		Sources: domain.SourceSettings{
			GitHubToken:        s.getString(keySourcesGitHub, ""),
			GCSCredentialsFile: s.getString(keySourcesGCSKeyFile, ""),
		},
	}

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyBackendType, string(settings.Backend.Type)},
		{keyBackendWorkers, settings.Backend.Workers},
		{keyBackendEndpoint, settings.Backend.Endpoint},
		{keyBackendRPS, settings.Backend.RequestsPerSecond},
		{keyBackendBurst, settings.Backend.Burst},
		{keyBackendBatchSize, settings.Backend.BatchSize},
		{keyBackendTimeout, settings.Backend.Timeout.String()},
		{keyBackendTokenURL, settings.Backend.TokenURL},
		{keyBackendClientID, settings.Backend.ClientID},
		{keyEstimationLayers, settings.Estimation.Layers},
		{keyEstimationTol, settings.Estimation.RelativeUncertaintyTolerance},
		{keyEstimationMerge, settings.Estimation.AllowProtocolMerging},
		{keyWorkflowsDir, settings.WorkflowsDir},
		{keyStorageRetention, settings.Storage.Retention.String()},
		{keySourcesGCSKeyFile, settings.Sources.GCSCredentialsFile},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	// Secrets are only written when set so an empty form never clears them.
	secrets := map[string]string{
		keyBackendToken:  settings.Backend.Token,
		keyBackendSecret: settings.Backend.ClientSecret,
		keySourcesGitHub: settings.Sources.GitHubToken,
	}
	for key, value := range secrets {
		if value == "" {
			continue
		}
		if err := s.configStore.Set(key, value); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
	}

	return nil
}

// Set updates a single setting, parsing the value for the key's type.
// An empty value removes the setting so its default applies again.
func (s *SettingsService) Set(key, value string) error {
	kind, ok := settingKinds[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}
	if value == "" {
		return s.configStore.Unset(key)
	}

	var parsed any
	switch kind {
	case kindString:
		if key == keyBackendType && !domain.BackendType(value).IsValid() {
			return fmt.Errorf("%w: backend %q", domain.ErrUnsupportedType, value)
		}
		parsed = value
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: %s must be a non-negative integer", domain.ErrInvalidInput, key)
		}
		parsed = n
	case kindFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("%w: %s must be a non-negative number", domain.ErrInvalidInput, key)
		}
		parsed = f
	case kindBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: %s must be true or false", domain.ErrInvalidInput, key)
		}
		parsed = b
	case kindDuration:
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, key, err)
		}
		parsed = d.String()
	case kindList:
		var layers []string
		for _, l := range strings.Split(value, ",") {
			if l = strings.TrimSpace(l); l != "" {
				layers = append(layers, l)
			}
		}
		if _, err := (domain.RequestOptions{Layers: layers}).Normalise(); err != nil {
			return err
		}
		parsed = layers
	}

	return s.configStore.Set(key, parsed)
}

// Value returns the effective value of a setting, in the form Set accepts.
// Unset keys report their default.
func (s *SettingsService) Value(key string) (string, error) {
	if _, ok := settingKinds[key]; !ok {
		return "", fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}
	settings, err := s.Get()
	if err != nil {
		return "", err
	}

	b := settings.Backend
	switch key {
	case keyBackendType:
		return string(b.Type), nil
	case keyBackendWorkers:
		return strconv.Itoa(b.Workers), nil
	case keyBackendEndpoint:
		return b.Endpoint, nil
	case keyBackendToken:
		return b.Token, nil
	case keyBackendRPS:
		return strconv.FormatFloat(b.RequestsPerSecond, 'g', -1, 64), nil
	case keyBackendBurst:
		return strconv.Itoa(b.Burst), nil
	case keyBackendBatchSize:
		return strconv.Itoa(b.BatchSize), nil
	case keyBackendTimeout:
		return b.Timeout.String(), nil
	case keyBackendTokenURL:
		return b.TokenURL, nil
	case keyBackendClientID:
		return b.ClientID, nil
	case keyBackendSecret:
		return b.ClientSecret, nil
	case keyEstimationLayers:
		return strings.Join(settings.Estimation.Layers, ","), nil
	case keyEstimationTol:
		return strconv.FormatFloat(settings.Estimation.RelativeUncertaintyTolerance, 'g', -1, 64), nil
	case keyEstimationMerge:
		return strconv.FormatBool(settings.Estimation.AllowProtocolMerging), nil
	case keyWorkflowsDir:
		return settings.WorkflowsDir, nil
	case keyStorageRetention:
		return settings.Storage.Retention.String(), nil
	case keySourcesGitHub:
		return settings.Sources.GitHubToken, nil
	default:
		return settings.Sources.GCSCredentialsFile, nil
	}
}

// Keys returns the recognised setting keys, sorted.
func (s *SettingsService) Keys() []string {
	keys := make([]string, 0, len(settingKinds))
	for k := range settingKinds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate checks if current settings are usable.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	if err := settings.Backend.Validate(); err != nil {
		return err
	}
	if _, err := settings.Estimation.Options().Normalise(); err != nil {
		return err
	}
	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// Typed reads with defaults. Values of the wrong type fall back to the
// default; TOML integers arrive as int64 and arrays as []any.

func (s *SettingsService) getString(key, defaultVal string) string {
	if v, ok := s.configStore.Get(key); ok {
		if str, ok := v.(string); ok && str != "" {
			return str
		}
	}
	return defaultVal
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	v, _ := s.configStore.Get(key)
	switch n := v.(type) {
	case int:
		if n != 0 {
			return n
		}
	case int64:
		if n != 0 {
			return int(n)
		}
	}
	return defaultVal
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	v, _ := s.configStore.Get(key)
	switch n := v.(type) {
	case float64:
		if n != 0 {
			return n
		}
	case int64:
		if n != 0 {
			return float64(n)
		}
	case int:
		if n != 0 {
			return float64(n)
		}
	}
	return defaultVal
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if v, ok := s.configStore.Get(key); ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultVal
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(s.getString(key, ""))
	if err != nil {
		return defaultVal
	}
	return d
}

func (s *SettingsService) getStrings(key string) []string {
	v, _ := s.configStore.Get(key)
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...)
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

func (s *SettingsService) getBackendType(defaultVal domain.BackendType) domain.BackendType {
	t := domain.BackendType(s.getString(keyBackendType, ""))
	if !t.IsValid() {
		return defaultVal
	}
	return t
}

func (s *SettingsService) getLayers(defaultVal []string) []string {
	layers := s.getStrings(keyEstimationLayers)
	if len(layers) == 0 {
		return defaultVal
	}
	if _, err := (domain.RequestOptions{Layers: layers}).Normalise(); err != nil {
		return defaultVal
	}
	return layers
}

// schedulerTaskKeys maps task IDs to their config table under "scheduler".
var schedulerTaskKeys = map[string]string{
	domain.TaskIDRequestResume: "request_resume",
	domain.TaskIDStoragePrune:  "storage_prune",
}

// GetSchedulerConfig returns the scheduler configuration, starting from the
// defaults and applying whatever is set under "scheduler".
func (s *SettingsService) GetSchedulerConfig() domain.SchedulerConfig {
	cfg := domain.DefaultSchedulerConfig()
	cfg.Enabled = s.getBool("scheduler.enabled", cfg.Enabled)

	for taskID, name := range schedulerTaskKeys {
		prefix := "scheduler." + name + "."
		task := cfg.TaskConfigs[taskID]
		task.Enabled = s.getBool(prefix+"enabled", task.Enabled)
		task.Interval = s.getDuration(prefix+"interval", task.Interval)
		cfg.TaskConfigs[taskID] = task
	}
	return cfg
}
