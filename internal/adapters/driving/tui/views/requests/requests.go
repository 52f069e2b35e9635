// Package requests provides the estimation request dashboard for the TUI.
package requests

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/propest/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/propest/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/propest/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/propest/internal/core/domain"
	"github.com/custodia-labs/propest/internal/core/ports/driving"
)

// DefaultRefreshInterval is how often the list reloads while requests are in flight.
const DefaultRefreshInterval = 2 * time.Second

// View lists estimation requests and lets the user inspect or cancel them.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	estimator driving.PropertyEstimator
	ctx       context.Context

	requests []domain.RequestSummary
	selected int
	loading  bool
	err      error

	spinner  spinner.Model
	spinning bool
	interval time.Duration

	width  int
	height int
}

// NewView creates a new requests view.
func NewView(s *styles.Styles, estimator driving.PropertyEstimator) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{
		styles:    s,
		keymap:    keymap.DefaultKeyMap(),
		estimator: estimator,
		ctx:       context.Background(),
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(s.Running)),
		interval:  DefaultRefreshInterval,
		width:     80,
		height:    24,
	}
}

// WithContext sets the context used for service calls.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// SetRefreshInterval changes the auto-refresh interval.
func (v *View) SetRefreshInterval(d time.Duration) {
	v.interval = d
}

// Init loads the request list.
func (v *View) Init() tea.Cmd {
	v.loading = true
	return v.load()
}

func (v *View) load() tea.Cmd {
	return func() tea.Msg {
		if v.estimator == nil {
			return messages.RequestsLoaded{Err: fmt.Errorf("estimator not available")}
		}
		reqs, err := v.estimator.List(v.ctx)
		return messages.RequestsLoaded{Requests: reqs, Err: err}
	}
}

func (v *View) cancel(id string) tea.Cmd {
	return func() tea.Msg {
		return messages.RequestCancelled{ID: id, Err: v.estimator.Cancel(v.ctx, id)}
	}
}

func (v *View) tick() tea.Cmd {
	return tea.Tick(v.interval, func(t time.Time) tea.Msg {
		return messages.RefreshTick{At: t}
	})
}

// Update handles messages for the requests view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case messages.RequestsLoaded:
		v.loading = false
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.err = nil
		v.requests = msg.Requests
		if v.selected >= len(v.requests) {
			v.selected = max(len(v.requests)-1, 0)
		}
		if v.Active() == 0 {
			return v, nil
		}
		cmds := []tea.Cmd{v.tick()}
		if !v.spinning {
			v.spinning = true
			cmds = append(cmds, v.spinner.Tick)
		}
		return v, tea.Batch(cmds...)

	case messages.RefreshTick:
		return v, v.load()

	case messages.RequestCancelled:
		if msg.Err != nil {
			v.err = fmt.Errorf("cancel %s: %w", msg.ID, msg.Err)
			return v, nil
		}
		return v, v.load()

	case spinner.TickMsg:
		if v.Active() == 0 {
			v.spinning = false
			return v, nil
		}
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd

	case tea.KeyMsg:
		return v.handleKey(msg)
	}
	return v, nil
}

func (v *View) handleKey(msg tea.KeyMsg) (*View, tea.Cmd) {
	k := msg.String()
	switch {
	case keymap.Matches(k, v.keymap.Back):
		return v, func() tea.Msg { return messages.ViewChanged{View: messages.ViewMenu} }
	case keymap.Matches(k, v.keymap.Up):
		if v.selected > 0 {
			v.selected--
		}
	case keymap.Matches(k, v.keymap.Down):
		if v.selected < len(v.requests)-1 {
			v.selected++
		}
	case keymap.Matches(k, v.keymap.Refresh):
		v.loading = true
		return v, v.load()
	case keymap.Matches(k, v.keymap.Select):
		if req := v.SelectedRequest(); req != nil {
			selected := *req
			return v, func() tea.Msg { return messages.RequestSelected{Request: selected} }
		}
	case keymap.Matches(k, v.keymap.CancelRequest):
		if req := v.SelectedRequest(); req != nil && !req.Status.IsTerminal() {
			return v, v.cancel(req.ID)
		}
	}
	return v, nil
}

// View renders the request list.
func (v *View) View() string {
	var b strings.Builder
	b.WriteString(v.styles.Title.Render("Requests"))
	b.WriteString("\n\n")

	if v.err != nil {
		b.WriteString(v.styles.Error.Render("Error: " + v.err.Error()))
		b.WriteString("\n\n")
	}

	switch {
	case v.loading && len(v.requests) == 0:
		b.WriteString(v.styles.Muted.Render("Loading requests..."))
	case len(v.requests) == 0:
		b.WriteString(v.styles.Muted.Render("No requests yet. Submit one with `propest estimate`."))
	default:
		b.WriteString(v.styles.Header.Render(fmt.Sprintf("  %-38s %-12s %6s %6s %6s  %s",
			"ID", "Status", "Props", "Sets", "Tasks", "Created")))
		b.WriteString("\n")
		for i := range v.requests {
			b.WriteString(v.renderRow(i, &v.requests[i]))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(v.styles.Help.Render("[enter] Result  [c] Cancel  [r] Refresh  [esc] Back"))
	return b.String()
}

func (v *View) renderRow(index int, req *domain.RequestSummary) string {
	cursor := "  "
	if index == v.selected {
		cursor = "> "
	}
	status := string(req.Status)
	if !req.Status.IsTerminal() {
		status = v.spinner.View() + status
	}
	id := req.ID
	if index == v.selected {
		id = v.styles.Selected.Render(fmt.Sprintf("%-38s", id))
	} else {
		id = v.styles.Normal.Render(fmt.Sprintf("%-38s", id))
	}
	row := fmt.Sprintf("%s%s %s %6d %6d %6d  %s", cursor, id,
		v.styles.RequestStatus(req.Status).Render(fmt.Sprintf("%-12s", status)),
		req.Properties, req.ParameterSets, req.Tasks,
		req.CreatedAt.Local().Format("2006-01-02 15:04"))
	if req.Status == domain.RequestFailed && req.Error != "" {
		row += "\n    " + v.styles.Error.Render(req.Error)
	}
	return row
}

// Requests returns the loaded requests.
func (v *View) Requests() []domain.RequestSummary {
	return v.requests
}

// Selected returns the selected index.
func (v *View) Selected() int {
	return v.selected
}

// SelectedRequest returns the selected request, or nil if none.
func (v *View) SelectedRequest() *domain.RequestSummary {
	if v.selected < 0 || v.selected >= len(v.requests) {
		return nil
	}
	return &v.requests[v.selected]
}

// Active returns the number of queued or running requests.
func (v *View) Active() int {
	n := 0
	for _, r := range v.requests {
		if !r.Status.IsTerminal() {
			n++
		}
	}
	return n
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
}
