package driving

import "github.com/custodia-labs/propest/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings.
	Get() (*domain.AppSettings, error)

	// Save persists application settings.
	Save(settings *domain.AppSettings) error

	// Set updates a single setting by key, e.g. "backend.type".
	Set(key, value string) error

	// Value returns the effective value of a setting, in the form Set accepts.
	Value(key string) (string, error)

	// Keys returns the recognised setting keys.
	Keys() []string

	// Validate checks if current settings are usable.
	Validate() error

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings
}
