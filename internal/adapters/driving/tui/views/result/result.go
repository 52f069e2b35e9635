// Package result shows the computed properties of a finished request.
package result

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/propest/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/propest/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/propest/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/propest/internal/core/domain"
	"github.com/custodia-labs/propest/internal/core/ports/driving"
)

// View displays one request's result.
type View struct {
	styles    *styles.Styles
	estimator driving.PropertyEstimator
	ctx       context.Context

	request domain.RequestSummary
	result  *domain.EstimationResult
	pending bool
	err     error
	table   *list.PropertyList
	width   int
	height  int
}

// NewView creates a new result view.
func NewView(s *styles.Styles, estimator driving.PropertyEstimator) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{
		styles:    s,
		estimator: estimator,
		ctx:       context.Background(),
		table:     list.NewPropertyList(s),
		width:     80,
		height:    24,
	}
}

// WithContext sets the context used for service calls.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// SetRequest switches the view to req and loads its result.
func (v *View) SetRequest(req domain.RequestSummary) tea.Cmd {
	v.request = req
	v.result = nil
	v.pending = false
	v.err = nil
	v.table.SetProperties(nil)
	return v.load()
}

func (v *View) load() tea.Cmd {
	id := v.request.ID
	return func() tea.Msg {
		if v.estimator == nil {
			return messages.ResultLoaded{RequestID: id, Err: fmt.Errorf("estimator not available")}
		}
		res, err := v.estimator.Result(v.ctx, id)
		return messages.ResultLoaded{RequestID: id, Result: res, Err: err}
	}
}

// Update handles messages for the result view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case messages.ResultLoaded:
		if msg.RequestID != v.request.ID {
			return v, nil
		}
		v.pending = errors.Is(msg.Err, domain.ErrRequestNotFinished)
		if msg.Err != nil && !v.pending {
			v.err = msg.Err
			return v, nil
		}
		v.err = nil
		v.result = msg.Result
		if msg.Result != nil {
			v.table.SetProperties(msg.Result.Properties)
		}
		return v, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return v, func() tea.Msg { return messages.ViewChanged{View: messages.ViewRequests} }
		case "r":
			return v, v.load()
		}
		var cmd tea.Cmd
		v.table, cmd = v.table.Update(msg)
		return v, cmd
	}
	return v, nil
}

// View renders the result.
func (v *View) View() string {
	var b strings.Builder
	b.WriteString(v.styles.Title.Render("Request " + v.request.ID))
	b.WriteString("\n")
	b.WriteString(v.styles.RequestStatus(v.request.Status).Render(string(v.request.Status)))
	b.WriteString("\n\n")

	switch {
	case v.err != nil:
		b.WriteString(v.styles.Error.Render("Error: " + v.err.Error()))
	case v.pending:
		b.WriteString(v.styles.Running.Render("Request is still running. Press r to check again."))
	case v.result == nil:
		b.WriteString(v.styles.Muted.Render("Loading result..."))
	default:
		b.WriteString(v.styles.Normal.Render(fmt.Sprintf("%d estimated, %d failed",
			len(v.result.Estimated()), len(v.result.Unsuccessful()))))
		b.WriteString("\n\n")
		b.WriteString(v.table.View())
		if sel := v.table.SelectedProperty(); sel != nil && sel.Error != "" {
			b.WriteString("\n\n")
			b.WriteString(v.styles.Error.Render(sel.Error))
		}
		for _, e := range v.result.Exceptions {
			b.WriteString("\n")
			b.WriteString(v.styles.Warning.Render("! " + e))
		}
	}

	b.WriteString("\n\n")
	b.WriteString(v.styles.Help.Render("[j/k] Navigate  [r] Reload  [esc] Back"))
	return b.String()
}

// Result returns the loaded result, or nil.
func (v *View) Result() *domain.EstimationResult {
	return v.result
}

// Pending returns true if the request had not finished when last loaded.
func (v *View) Pending() bool {
	return v.pending
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.table.SetDimensions(width, height-10)
}
