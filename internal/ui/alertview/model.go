// Package alertview shows pending alerts one at a time as a modal with
// two choices: dismiss, or open the booking list.
package alertview

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/shuttledesk/internal/alert"
	"github.com/nhle/shuttledesk/internal/theme"
)

// ResolvedMsg is sent when the user answers the front alert.
type ResolvedMsg struct {
	Alert  alert.Alert
	Action alert.Action
}

// Model queues alerts and shows the oldest one.
type Model struct {
	queue    []alert.Alert
	form     *huh.Form
	navigate *bool
	width    int
}

// New creates an empty alert queue.
func New(width int) Model {
	return Model{width: width}
}

// Push appends a to the queue. When nothing was showing, a is shown now.
func (m *Model) Push(a alert.Alert) tea.Cmd {
	m.queue = append(m.queue, a)
	if len(m.queue) == 1 {
		return m.showFront()
	}
	return nil
}

// Active reports whether an alert is on screen.
func (m Model) Active() bool {
	return len(m.queue) > 0
}

// Pending returns the number of queued alerts, including the one shown.
func (m Model) Pending() int {
	return len(m.queue)
}

// DismissAll drops every queued alert, as on logout.
func (m *Model) DismissAll() {
	m.queue = nil
	m.form = nil
}

func (m *Model) showFront() tea.Cmd {
	if len(m.queue) == 0 {
		m.form = nil
		return nil
	}
	a := m.queue[0]
	nav := true
	m.navigate = &nav
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(a.Title).
				Description(body(a)).
				Affirmative(a.NavigateLabel).
				Negative(a.DismissLabel).
				Value(m.navigate),
		),
	).WithWidth(m.formWidth()).WithShowHelp(false)
	return m.form.Init()
}

// Update handles messages while an alert is shown.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	if km, ok := msg.(tea.KeyMsg); ok {
		switch km.String() {
		case "esc":
			return m.resolve(alert.ActionDismiss)
		case "o":
			return m.resolve(alert.ActionNavigate)
		}
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		action := alert.ActionDismiss
		if *m.navigate {
			action = alert.ActionNavigate
		}
		return m.resolve(action)
	case huh.StateAborted:
		return m.resolve(alert.ActionDismiss)
	}
	return m, cmd
}

func (m Model) resolve(action alert.Action) (Model, tea.Cmd) {
	a := m.queue[0]
	m.queue = m.queue[1:]
	next := m.showFront()
	resolved := func() tea.Msg { return ResolvedMsg{Alert: a, Action: action} }
	return m, tea.Batch(resolved, next)
}

// View renders the front alert.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}
	content := m.form.View()
	if more := len(m.queue) - 1; more > 0 {
		content = lipgloss.JoinVertical(lipgloss.Left, content,
			theme.HelpStyle.Render(fmt.Sprintf("%d more alert(s) waiting", more)))
	}
	content = lipgloss.JoinVertical(lipgloss.Left, content,
		theme.HelpStyle.Render("o open · esc dismiss"))
	return theme.AlertPanelStyle.Render(content)
}

// SetSize updates the modal width.
func (m *Model) SetSize(width int) {
	m.width = width
}

func (m Model) formWidth() int {
	return min(max(m.width-8, 30), 60)
}

func body(a alert.Alert) string {
	lines := make([]string, len(a.Lines))
	for i, l := range a.Lines {
		lines[i] = l.Label + ": " + l.Value
	}
	return strings.Join(lines, "\n")
}
