package feed

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/shuttledesk/internal/keys"
	"github.com/nhle/shuttledesk/internal/model"
	"github.com/nhle/shuttledesk/internal/notify"
	"github.com/nhle/shuttledesk/internal/theme"
)

// MarkAllReadMsg asks the app to mark the feed read.
type MarkAllReadMsg struct{}

// DeleteMsg asks the app to delete one entry.
type DeleteMsg struct {
	EventID string
}

// ClearAllMsg asks the app to empty the feed.
type ClearAllMsg struct{}

// OpenMsg is sent when an entry is selected; the app navigates to the
// role's booking list.
type OpenMsg struct {
	Event model.ChangeEvent
}

// Model is the notification feed view.
type Model struct {
	list   list.Model
	keys   *keys.KeyMap
	events []model.ChangeEvent
	role   model.Role
	width  int
	height int
}

// New creates a feed view.
func New(k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, Delegate{}, width, height)
	l.Title = "Notifications"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle
	l.SetStatusBarItemName("notification", "notifications")
	l.KeyMap.Quit.SetEnabled(false)

	return Model{
		list:   l,
		keys:   k,
		width:  width,
		height: height,
	}
}

// SetEvents replaces the entries, labelling them relative to now. The
// selection stays on the same event when it still exists.
func (m *Model) SetEvents(events []model.ChangeEvent, role model.Role, now time.Time) tea.Cmd {
	selected := ""
	if it, ok := m.list.SelectedItem().(Item); ok {
		selected = it.Event.ID
	}

	m.events = events
	m.role = role
	items := make([]list.Item, len(events))
	index := 0
	for i, e := range events {
		items[i] = Item{Event: e, When: notify.EventTime(e, now), ShowPatient: role.SeesAll()}
		if e.ID == selected {
			index = i
		}
	}
	cmd := m.list.SetItems(items)
	m.list.Select(index)
	return cmd
}

// Relabel recomputes the relative time labels.
func (m *Model) Relabel(now time.Time) tea.Cmd {
	return m.SetEvents(m.events, m.role, now)
}

// Len returns the number of entries shown.
func (m Model) Len() int {
	return len(m.events)
}

// Update handles messages for the feed view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.MarkAllRead):
			return m, func() tea.Msg { return MarkAllReadMsg{} }

		case key.Matches(msg, m.keys.ClearAll):
			if len(m.events) == 0 {
				return m, nil
			}
			return m, func() tea.Msg { return ClearAllMsg{} }

		case key.Matches(msg, m.keys.Delete):
			it, ok := m.list.SelectedItem().(Item)
			if !ok {
				return m, nil
			}
			return m, func() tea.Msg { return DeleteMsg{EventID: it.Event.ID} }

		case key.Matches(msg, m.keys.Select):
			it, ok := m.list.SelectedItem().(Item)
			if !ok {
				return m, nil
			}
			return m, func() tea.Msg { return OpenMsg{Event: it.Event} }
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the feed.
func (m Model) View() string {
	if len(m.events) == 0 {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No notifications yet.\n\nNew bookings and status changes appear here.")
	}
	return m.list.View()
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height)
}
