package bookings

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/shuttledesk/internal/keys"
	"github.com/nhle/shuttledesk/internal/model"
	"github.com/nhle/shuttledesk/internal/theme"
)

// Filters cycled by tab. "" shows every status.
var Filters = []string{
	"",
	model.StatusPending,
	model.StatusApproved,
	model.StatusRejected,
	model.StatusCancelled,
}

// Item wraps an appointment for a bubbles/list.
type Item struct {
	Appt        model.Appointment
	ShowPatient bool
}

// FilterValue returns the string used for fuzzy filtering.
func (i Item) FilterValue() string { return i.Appt.PatientName() + " " + i.Appt.Hospital }

type delegate struct{}

func (delegate) Height() int                             { return 1 }
func (delegate) Spacing() int                            { return 0 }
func (delegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (delegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(Item)
	if !ok {
		return
	}
	a := it.Appt
	parts := []string{fmt.Sprintf("#%d", a.ID)}
	if it.ShowPatient {
		parts = append(parts, a.PatientName())
	}
	parts = append(parts,
		a.Hospital,
		strings.TrimSpace(model.FormatDate(a.AppointmentDate)+" "+a.AppointmentTime),
	)
	line := strings.Join(parts, " · ") + " " + theme.StatusStyle(a.Status).Render(model.StatusLabel(a.Status))

	if index == m.Index() {
		fmt.Fprint(w, theme.SelectedItemStyle.Render(line))
		return
	}
	fmt.Fprint(w, theme.ListItemStyle.Render(line))
}

// Model is the role's booking list, the target of an alert's navigate
// action.
type Model struct {
	list      list.Model
	keys      *keys.KeyMap
	snapshot  model.Snapshot
	role      model.Role
	filterIdx int
	width     int
	height    int
}

// New creates a bookings view.
func New(k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, delegate{}, width, height-1)
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle
	l.SetStatusBarItemName("booking", "bookings")
	l.KeyMap.Quit.SetEnabled(false)

	return Model{
		list:   l,
		keys:   k,
		role:   model.RoleUser,
		width:  width,
		height: height,
	}
}

// SetSnapshot replaces the shown appointments.
func (m *Model) SetSnapshot(snap model.Snapshot, role model.Role) tea.Cmd {
	m.snapshot = snap
	m.role = role
	return m.refresh()
}

// Filter returns the active status filter, "" for all.
func (m Model) Filter() string {
	return Filters[m.filterIdx]
}

// SetFilter selects a status filter. Unknown tokens select all.
func (m *Model) SetFilter(status string) tea.Cmd {
	m.filterIdx = 0
	for i, f := range Filters {
		if f == status {
			m.filterIdx = i
		}
	}
	return m.refresh()
}

// Focus selects the appointment with the given id, clearing a filter
// that hides it.
func (m *Model) Focus(appointmentID int) tea.Cmd {
	var cmd tea.Cmd
	if !m.visible(appointmentID) {
		cmd = m.SetFilter("")
	}
	for i, it := range m.list.Items() {
		if bi, ok := it.(Item); ok && bi.Appt.ID == appointmentID {
			m.list.Select(i)
		}
	}
	return cmd
}

func (m Model) visible(appointmentID int) bool {
	for _, it := range m.list.Items() {
		if bi, ok := it.(Item); ok && bi.Appt.ID == appointmentID {
			return true
		}
	}
	return false
}

func (m *Model) refresh() tea.Cmd {
	status := m.Filter()
	items := make([]list.Item, 0, len(m.snapshot))
	for _, a := range m.snapshot {
		if status != "" && a.Status != status {
			continue
		}
		items = append(items, Item{Appt: a, ShowPatient: m.role.SeesAll()})
	}
	m.list.Title = m.title()
	return m.list.SetItems(items)
}

func (m Model) title() string {
	base := "My bookings"
	switch m.role {
	case model.RoleAdmin:
		base = "Admin dashboard"
	case model.RoleStaff:
		base = "All bookings"
	}
	if f := m.Filter(); f != "" {
		base += " · " + model.StatusLabel(f)
	}
	return base
}

// Summary renders per-status counts for the admin dashboard.
func Summary(snap model.Snapshot) string {
	counts := snap.CountByStatus()
	parts := []string{fmt.Sprintf("%d total", len(snap))}
	for _, status := range Filters[1:] {
		parts = append(parts, theme.StatusStyle(status).Render(
			fmt.Sprintf("%s %d", model.StatusLabel(status), counts[status])))
	}
	return strings.Join(parts, "  ")
}

// Update handles messages for the bookings view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, m.keys.CycleFilter) {
		m.filterIdx = (m.filterIdx + 1) % len(Filters)
		return m, m.refresh()
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the bookings list.
func (m Model) View() string {
	var header string
	if m.role == model.RoleAdmin {
		header = Summary(m.snapshot)
	}

	var body string
	if len(m.list.Items()) == 0 {
		text := "No bookings yet."
		if m.Filter() != "" {
			text = "No bookings with this status.\nPress tab to change the filter."
		}
		body = lipgloss.NewStyle().
			Width(m.width).
			Height(m.height - 1).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render(text)
	} else {
		body = m.list.View()
	}

	if header == "" {
		return body
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, body)
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-1)
}
