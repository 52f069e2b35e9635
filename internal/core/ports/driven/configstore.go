package driven

// ConfigStore persists flat, dot-separated configuration keys such as
// "backend.type". Values keep the type they were decoded or set with;
// callers convert them.
type ConfigStore interface {
	// Get returns the raw value for key and whether it is set.
	Get(key string) (any, bool)

	// Set stores a value and persists it immediately.
	Set(key string, value any) error

	// Unset removes key. Removing a missing key is not an error.
	Unset(key string) error

	// Keys returns every key that is set, sorted.
	Keys() []string

	// Save persists the current configuration.
	Save() error

	// Load re-reads the configuration, replacing what is held.
	Load() error

	// Path returns where the configuration lives.
	Path() string
}
