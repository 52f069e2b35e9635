// Package list provides list display components for the TUI.
package list

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/propest/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/propest/internal/core/domain"
)

// PropertyList displays computed properties in a navigable table.
type PropertyList struct {
	properties []domain.ComputedProperty
	selected   int
	styles     *styles.Styles
	width      int
	height     int
}

// NewPropertyList creates a new property list component.
func NewPropertyList(s *styles.Styles) *PropertyList {
	if s == nil {
		s = styles.DefaultStyles()
	}

	return &PropertyList{
		styles: s,
		width:  80,
		height: 10,
	}
}

// Init initialises the property list.
func (p *PropertyList) Init() tea.Cmd {
	return nil
}

// Update handles list navigation messages.
func (p *PropertyList) Update(msg tea.Msg) (*PropertyList, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			p.MoveUp()
		case "down", "j":
			p.MoveDown()
		}
	}
	return p, nil
}

// View renders the property table.
func (p *PropertyList) View() string {
	if len(p.properties) == 0 {
		return p.styles.Muted.Render("No computed properties")
	}

	lines := make([]string, 0, len(p.properties)+3)
	lines = append(lines,
		p.styles.Subtitle.Render(fmt.Sprintf("Computed properties (%d)", len(p.properties))),
		"",
		p.styles.Header.Render(fmt.Sprintf("  %-24s %-16s %-28s %-12s %s",
			"Property", "Parameter set", "Value", "Layer", "Status")),
	)

	// One line per row, minus the header block.
	visible := p.height - 4
	if visible < 1 {
		visible = 1
	}
	start := 0
	if p.selected >= visible {
		start = p.selected - visible + 1
	}
	end := start + visible
	if end > len(p.properties) {
		end = len(p.properties)
	}

	for i := start; i < end; i++ {
		lines = append(lines, p.renderRow(i, &p.properties[i]))
	}
	return strings.Join(lines, "\n")
}

func (p *PropertyList) renderRow(index int, prop *domain.ComputedProperty) string {
	indicator := "  "
	if index == p.selected {
		indicator = "> "
	}

	value := "-"
	if prop.Succeeded() {
		value = prop.Value.String()
		if !prop.Uncertainty.IsZero() {
			value = fmt.Sprintf("%s ± %g", value, prop.Uncertainty.Value)
		}
	}
	layer := prop.Layer
	if layer == "" {
		layer = "-"
	}

	row := fmt.Sprintf("%s%-24s %-16s %-28s %-12s ", indicator,
		truncate(string(prop.Type)+" "+prop.PropertyID, 24),
		truncate(prop.ParameterSetID, 16),
		truncate(value, 28),
		layer)
	status := p.styles.ComputedStatus(prop.Status).Render(string(prop.Status))

	if index == p.selected {
		return p.styles.Selected.Render(row) + status
	}
	return p.styles.Normal.Render(row) + status
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// SetProperties replaces the listed properties and resets the selection.
func (p *PropertyList) SetProperties(props []domain.ComputedProperty) {
	p.properties = props
	p.selected = 0
}

// Properties returns the listed properties.
func (p *PropertyList) Properties() []domain.ComputedProperty {
	return p.properties
}

// Selected returns the index of the selected row.
func (p *PropertyList) Selected() int {
	return p.selected
}

// SelectedProperty returns the currently selected property, or nil if none.
func (p *PropertyList) SelectedProperty() *domain.ComputedProperty {
	if p.selected < 0 || p.selected >= len(p.properties) {
		return nil
	}
	return &p.properties[p.selected]
}

// MoveUp moves selection up.
func (p *PropertyList) MoveUp() {
	if p.selected > 0 {
		p.selected--
	}
}

// MoveDown moves selection down.
func (p *PropertyList) MoveDown() {
	if p.selected < len(p.properties)-1 {
		p.selected++
	}
}

// SetDimensions sets the component dimensions.
func (p *PropertyList) SetDimensions(width, height int) {
	p.width = width
	p.height = height
}

// Count returns the number of properties.
func (p *PropertyList) Count() int {
	return len(p.properties)
}
