package styles

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/propest/internal/core/domain"
)

func TestDefaultTheme(t *testing.T) {
	theme := DefaultTheme()

	require.NotNil(t, theme)
	colours := []lipgloss.Color{
		theme.Primary, theme.Secondary, theme.Success, theme.Warning, theme.Error,
	}
	seen := make(map[lipgloss.Color]bool)
	for _, c := range colours {
		assert.NotEmpty(t, string(c))
		assert.False(t, seen[c], "duplicate colour %s", c)
		seen[c] = true
	}
}

func TestNewStyles(t *testing.T) {
	theme := DefaultTheme()
	assert.Equal(t, theme, NewStyles(theme).Theme())
	assert.NotNil(t, NewStyles(nil).Theme())
	assert.NotNil(t, DefaultStyles().Theme())
}

func TestStyles_RequestStatus(t *testing.T) {
	s := DefaultStyles()
	theme := s.Theme()

	tests := []struct {
		status domain.RequestStatus
		want   lipgloss.TerminalColor
	}{
		{domain.RequestCompleted, theme.Success},
		{domain.RequestFailed, theme.Error},
		{domain.RequestCancelled, theme.Warning},
		{domain.RequestRunning, theme.Secondary},
		{domain.RequestQueued, theme.Muted},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, s.RequestStatus(tt.status).GetForeground())
		})
	}
}

func TestStyles_ComputedStatus(t *testing.T) {
	s := DefaultStyles()
	assert.Equal(t, lipgloss.TerminalColor(s.Theme().Success), s.ComputedStatus(domain.ComputedEstimated).GetForeground())
	assert.Equal(t, lipgloss.TerminalColor(s.Theme().Error), s.ComputedStatus(domain.ComputedFailed).GetForeground())
}
