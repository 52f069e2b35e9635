package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/propest/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/propest/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/propest/internal/core/domain"
	"github.com/custodia-labs/propest/internal/core/ports/driving"
	"github.com/custodia-labs/propest/internal/core/services"
)

type mockEstimator struct {
	driving.PropertyEstimator
	requests []domain.RequestSummary
	result   *domain.EstimationResult
	listErr  error
}

func (m *mockEstimator) List(_ context.Context) ([]domain.RequestSummary, error) {
	return m.requests, m.listErr
}

func (m *mockEstimator) Result(_ context.Context, _ string) (*domain.EstimationResult, error) {
	if m.result == nil {
		return nil, domain.ErrRequestNotFinished
	}
	return m.result, nil
}

func (m *mockEstimator) Cancel(_ context.Context, _ string) error {
	return nil
}

func newTestApp(t *testing.T, est *mockEstimator) *App {
	t.Helper()
	app, err := NewApp(&Ports{
		Estimator: est,
		Settings:  services.NewSettingsService(memory.NewConfigStore()),
	})
	require.NoError(t, err)
	app.SetDimensions(140, 40)
	return app
}

// drive feeds msg to the app and runs the returned command chain once,
// ignoring batches and ticks.
func drive(app *App, msg tea.Msg) *App {
	model, cmd := app.Update(msg)
	app = model.(*App)
	if cmd == nil {
		return app
	}
	next := cmd()
	switch next.(type) {
	case tea.BatchMsg, nil:
		return app
	}
	model, _ = app.Update(next)
	return model.(*App)
}

func TestPorts_Validate(t *testing.T) {
	assert.ErrorIs(t, (&Ports{}).Validate(), ErrMissingEstimator)
	assert.ErrorIs(t, (&Ports{Estimator: &mockEstimator{}}).Validate(), ErrMissingSettingsService)
}

func TestNewApp_Errors(t *testing.T) {
	_, err := NewApp(nil)
	assert.ErrorIs(t, err, ErrMissingEstimator)

	_, err = NewApp(&Ports{Estimator: &mockEstimator{}})
	assert.ErrorIs(t, err, ErrMissingSettingsService)
}

func TestApp_InitialState(t *testing.T) {
	app, err := NewApp(&Ports{
		Estimator: &mockEstimator{},
		Settings:  services.NewSettingsService(memory.NewConfigStore()),
	})
	require.NoError(t, err)
	assert.False(t, app.Ready())
	assert.Equal(t, "Initialising...", app.View())
	assert.NotNil(t, app.Init())

	model, _ := app.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	app = model.(*App)
	assert.True(t, app.Ready())
	assert.Equal(t, messages.ViewMenu, app.CurrentView())
	assert.Contains(t, app.View(), "Requests")
}

func TestApp_RequestsFlow(t *testing.T) {
	est := &mockEstimator{
		requests: []domain.RequestSummary{
			{ID: "req-1", Status: domain.RequestCompleted, CreatedAt: time.Now()},
		},
		result: &domain.EstimationResult{
			RequestID: "req-1",
			Properties: []domain.ComputedProperty{{
				PropertyID: "rho-1", ParameterSetID: "ff", Type: domain.PropertyDensity,
				Value: domain.Q(1.01, "g/ml"), Status: domain.ComputedEstimated,
			}},
		},
	}
	app := newTestApp(t, est)

	app = drive(app, messages.ViewChanged{View: messages.ViewRequests})
	assert.Equal(t, messages.ViewRequests, app.CurrentView())
	assert.Contains(t, app.View(), "req-1")

	model, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	app = model.(*App)
	require.NotNil(t, cmd)
	app = drive(app, cmd())
	assert.Equal(t, messages.ViewResult, app.CurrentView())
	assert.Contains(t, app.View(), "1.01 g/ml")

	app = drive(app, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, messages.ViewRequests, app.CurrentView())
}

func TestApp_ActiveRequestsInStatusBar(t *testing.T) {
	est := &mockEstimator{requests: []domain.RequestSummary{
		{ID: "a", Status: domain.RequestRunning},
		{ID: "b", Status: domain.RequestQueued},
	}}
	app := newTestApp(t, est)

	model, _ := app.Update(messages.RequestsLoaded{Requests: est.requests})
	app = model.(*App)
	app = drive(app, messages.ViewChanged{View: messages.ViewRequests})
	assert.Contains(t, app.View(), "2 requests in flight")
}

func TestApp_ListErrorShown(t *testing.T) {
	app := newTestApp(t, &mockEstimator{listErr: errors.New("database is locked")})
	app = drive(app, messages.ViewChanged{View: messages.ViewRequests})
	require.Error(t, app.Err())
	assert.Contains(t, app.View(), "database is locked")
}

func TestApp_Settings(t *testing.T) {
	app := newTestApp(t, &mockEstimator{})
	app = drive(app, messages.ViewChanged{View: messages.ViewSettings})
	assert.Equal(t, messages.ViewSettings, app.CurrentView())
	assert.Contains(t, app.View(), "backend.type")

	app = drive(app, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, messages.ViewMenu, app.CurrentView())
}

func TestApp_Help(t *testing.T) {
	app := newTestApp(t, &mockEstimator{})
	app = drive(app, messages.ViewChanged{View: messages.ViewHelp})
	assert.Contains(t, app.View(), "cancel request")

	app = drive(app, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, messages.ViewMenu, app.CurrentView())
}

func TestApp_Quit(t *testing.T) {
	app := newTestApp(t, &mockEstimator{})

	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())

	_, cmd = app.Update(messages.Quit{})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestApp_ErrorOccurred(t *testing.T) {
	app := newTestApp(t, &mockEstimator{})
	app = drive(app, messages.ViewChanged{View: messages.ViewHelp})
	model, _ := app.Update(messages.ErrorOccurred{Err: errors.New("boom")})
	app = model.(*App)
	assert.EqualError(t, app.Err(), "boom")
	assert.Contains(t, app.View(), "Error: boom")
}

func TestApp_WithContext(t *testing.T) {
	app := newTestApp(t, &mockEstimator{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	assert.Same(t, app, app.WithContext(ctx))
}
