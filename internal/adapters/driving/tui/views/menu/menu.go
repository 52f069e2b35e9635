// Package menu provides the top-level navigation of the dashboard.
package menu

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/propest/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/propest/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/propest/internal/adapters/driving/tui/styles"
)

// Item is one entry of the menu. Items without a view quit the app.
type Item struct {
	Label       string
	Description string
	View        messages.ViewType
	Quit        bool
}

// View is the main menu.
type View struct {
	styles   *styles.Styles
	keymap   *keymap.KeyMap
	items    []Item
	selected int
	width    int
	ready    bool
}

// NewView creates the menu.
func NewView(s *styles.Styles) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{
		styles: s,
		keymap: keymap.DefaultKeyMap(),
		items: []Item{
			{Label: "Requests", Description: "follow, inspect and cancel estimation requests", View: messages.ViewRequests},
			{Label: "Settings", Description: "backend, estimation defaults and credentials", View: messages.ViewSettings},
			{Label: "Help", Description: "key bindings", View: messages.ViewHelp},
			{Label: "Quit", Quit: true},
		},
	}
}

// Init does nothing; the menu has no data to load.
func (v *View) Init() tea.Cmd {
	return nil
}

// Update moves the selection and opens the selected view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
	case tea.KeyMsg:
		return v.handleKey(msg.String())
	}
	return v, nil
}

func (v *View) handleKey(k string) (*View, tea.Cmd) {
	switch {
	case k == "q":
		return v, tea.Quit
	case keymap.Matches(k, v.keymap.Up):
		v.selected = max(v.selected-1, 0)
	case keymap.Matches(k, v.keymap.Down):
		v.selected = min(v.selected+1, len(v.items)-1)
	case keymap.Matches(k, v.keymap.Select):
		item := v.items[v.selected]
		if item.Quit {
			return v, tea.Quit
		}
		return v, func() tea.Msg { return messages.ViewChanged{View: item.View} }
	}
	return v, nil
}

// View renders the menu.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	var b strings.Builder
	b.WriteString(v.styles.Title.Render("propest"))
	b.WriteString("\n")
	b.WriteString(v.styles.Muted.Render("Physical property estimation"))
	b.WriteString("\n\n")

	for i, item := range v.items {
		label := fmt.Sprintf("%-10s", item.Label)
		if i == v.selected {
			b.WriteString("> " + v.styles.Selected.Render(label))
		} else {
			b.WriteString("  " + v.styles.Normal.Render(label))
		}
		if item.Description != "" && v.width >= 60 {
			b.WriteString(" " + v.styles.Muted.Render(item.Description))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// SetDimensions sets the view size. The menu renders once it is known.
func (v *View) SetDimensions(width, _ int) {
	v.width = width
	v.ready = true
}

// Selected returns the selected index.
func (v *View) Selected() int {
	return v.selected
}

// Items returns the menu items.
func (v *View) Items() []Item {
	return v.items
}
