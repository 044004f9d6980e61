package feed

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/shuttledesk/internal/model"
	"github.com/nhle/shuttledesk/internal/theme"
)

// Item wraps a feed entry for a bubbles/list. When is the relative time
// label computed when the list was last refreshed.
type Item struct {
	Event model.ChangeEvent
	When  string

	// ShowPatient is set for roles whose alerts name the patient.
	ShowPatient bool
}

// FilterValue returns the string used for fuzzy filtering.
func (i Item) FilterValue() string {
	if i.Event.Change == nil {
		return ""
	}
	ref := i.Event.Change.Ref()
	return ref.PatientName + " " + ref.Hospital
}

// Headline is the first line of the entry.
func (i Item) Headline() string {
	if i.Event.Change == nil {
		return "Booking update"
	}
	ref := i.Event.Change.Ref()

	var b strings.Builder
	switch c := i.Event.Change.(type) {
	case model.NewAppointment:
		b.WriteString("New booking")
	case model.StatusChange:
		fmt.Fprintf(&b, "%s → %s", model.StatusLabel(c.OldStatus), model.StatusLabel(c.NewStatus))
	}
	if i.ShowPatient && ref.PatientName != "" {
		b.WriteString(" · ")
		b.WriteString(ref.PatientName)
	}
	b.WriteString(" · ")
	b.WriteString(ref.Hospital)
	return b.String()
}

// Detail is the second line: schedule, status and detection time.
func (i Item) Detail() string {
	if i.Event.Change == nil {
		return i.When
	}
	ref := i.Event.Change.Ref()
	status := ""
	switch c := i.Event.Change.(type) {
	case model.NewAppointment:
		status = c.Status
	case model.StatusChange:
		status = c.NewStatus
	}
	return strings.Join([]string{
		strings.TrimSpace(model.FormatDate(ref.AppointmentDate) + " " + ref.AppointmentTime),
		theme.StatusStyle(status).Render(model.StatusLabel(status)),
		i.When,
	}, " · ")
}

// Delegate implements list.ItemDelegate for feed entries.
type Delegate struct{}

// Height returns the number of lines each item takes.
func (d Delegate) Height() int { return 2 }

// Spacing returns the number of blank lines between items.
func (d Delegate) Spacing() int { return 1 }

// Update handles per-item messages (unused).
func (d Delegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

// Render draws one entry.
func (d Delegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(Item)
	if !ok {
		return
	}

	mark := "  "
	if !it.Event.Read {
		mark = theme.UnreadMarkStyle.Render("●") + " "
	}
	line := mark + it.Headline() + "\n   " + it.Detail()

	if index == m.Index() {
		fmt.Fprint(w, theme.SelectedItemStyle.Render(line))
		return
	}
	fmt.Fprint(w, theme.ListItemStyle.Render(line))
}
