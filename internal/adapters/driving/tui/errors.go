package tui

import "errors"

// ErrMissingEstimator is returned when the property estimator is not provided.
var ErrMissingEstimator = errors.New("tui: property estimator is required")

// ErrMissingSettingsService is returned when the settings service is not provided.
var ErrMissingSettingsService = errors.New("tui: settings service is required")
