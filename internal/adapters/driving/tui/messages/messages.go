// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"time"

	"github.com/custodia-labs/propest/internal/core/domain"
)

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewMenu is the main navigation menu.
	ViewMenu ViewType = iota
	// ViewRequests lists estimation requests.
	ViewRequests
	// ViewResult shows the computed properties of one request.
	ViewResult
	// ViewSettings is the settings view.
	ViewSettings
	// ViewHelp is the help/keybindings view.
	ViewHelp
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewMenu:
		return "menu"
	case ViewRequests:
		return "requests"
	case ViewResult:
		return "result"
	case ViewSettings:
		return "settings"
	case ViewHelp:
		return "help"
	default:
		return "unknown"
	}
}

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}

// Quit signals the application should exit.
type Quit struct{}

// RequestsLoaded carries the request summaries, newest first.
type RequestsLoaded struct {
	Requests []domain.RequestSummary
	Err      error
}

// RequestSelected signals a request was chosen for the result view.
type RequestSelected struct {
	Request domain.RequestSummary
}

// RequestCancelled signals a cancel finished.
type RequestCancelled struct {
	ID  string
	Err error
}

// ResultLoaded carries the result of a request. Err wraps
// domain.ErrRequestNotFinished while the request is still running.
type ResultLoaded struct {
	RequestID string
	Result    *domain.EstimationResult
	Err       error
}

// RefreshTick triggers a periodic reload while requests are in flight.
type RefreshTick struct {
	At time.Time
}

// SettingsLoaded carries every setting key with its current value.
type SettingsLoaded struct {
	Keys   []string
	Values map[string]string
	Err    error
}

// SettingSaved signals a setting was written.
type SettingSaved struct {
	Key string
	Err error
}
