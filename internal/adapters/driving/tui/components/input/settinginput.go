// Package input provides text input components for the TUI.
package input

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/propest/internal/adapters/driving/tui/styles"
)

// SettingInput wraps a bubbles textinput for editing a single setting.
type SettingInput struct {
	textinput textinput.Model
	styles    *styles.Styles
	key       string
	width     int
}

// NewSettingInput creates a new setting input component.
func NewSettingInput(s *styles.Styles) *SettingInput {
	if s == nil {
		s = styles.DefaultStyles()
	}

	ti := textinput.New()
	ti.CharLimit = 1024
	ti.Width = 50

	return &SettingInput{
		textinput: ti,
		styles:    s,
		width:     50,
	}
}

// Init initialises the input.
func (s *SettingInput) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles input messages.
func (s *SettingInput) Update(msg tea.Msg) (*SettingInput, tea.Cmd) {
	var cmd tea.Cmd
	s.textinput, cmd = s.textinput.Update(msg)
	return s, cmd
}

// View renders the input with the key being edited as its label.
func (s *SettingInput) View() string {
	label := s.styles.Title.Render(s.key + ": ")
	//nolint:misspell // lipgloss.Center is the correct constant from the library
	return lipgloss.JoinHorizontal(lipgloss.Center, label, s.styles.Input.Render(s.textinput.View()))
}

// Edit starts editing key. Secret values are masked and start empty.
func (s *SettingInput) Edit(key, value string, secret bool) tea.Cmd {
	s.key = key
	s.textinput.Reset()
	if secret {
		s.textinput.EchoMode = textinput.EchoPassword
		s.textinput.Placeholder = "enter new value"
	} else {
		s.textinput.EchoMode = textinput.EchoNormal
		s.textinput.Placeholder = ""
		s.textinput.SetValue(value)
	}
	return s.textinput.Focus()
}

// Key returns the key being edited.
func (s *SettingInput) Key() string {
	return s.key
}

// Value returns the current input value.
func (s *SettingInput) Value() string {
	return s.textinput.Value()
}

// SetValue sets the input value.
func (s *SettingInput) SetValue(value string) {
	s.textinput.SetValue(value)
}

// Focused returns whether the input is focused.
func (s *SettingInput) Focused() bool {
	return s.textinput.Focused()
}

// Blur stops editing.
func (s *SettingInput) Blur() {
	s.textinput.Blur()
}

// Masked returns whether the input hides what is typed.
func (s *SettingInput) Masked() bool {
	return s.textinput.EchoMode == textinput.EchoPassword
}

// SetWidth sets the width of the input.
func (s *SettingInput) SetWidth(width int) {
	s.width = width
	inputWidth := width - len(s.key) - 6
	if inputWidth < 20 {
		inputWidth = 20
	}
	s.textinput.Width = inputWidth
}
