package bookings_test

import (
	"testing"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"

	"github.com/nhle/shuttledesk/internal/keys"
	"github.com/nhle/shuttledesk/internal/model"
	"github.com/nhle/shuttledesk/internal/ui/bookings"
	"github.com/nhle/shuttledesk/tests/testutil"
)

func snapshot() model.Snapshot {
	return model.Snapshot{
		testutil.Appt(1, 7, model.StatusPending),
		testutil.Appt(2, 7, model.StatusApproved),
		testutil.Appt(3, 8, model.StatusPending),
		testutil.Appt(4, 8, "unknown"),
	}
}

func TestCycleFilter(t *testing.T) {
	m := bookings.New(keys.DefaultKeyMap(), 100, 20)
	m.SetSnapshot(snapshot(), model.RoleStaff)
	assert.Equal(t, "", m.Filter())

	tab := tea.KeyMsg{Type: tea.KeyTab}
	m, _ = m.Update(tab)
	assert.Equal(t, model.StatusPending, m.Filter())
	assert.Contains(t, m.View(), "Patient B")
	assert.NotContains(t, m.View(), "Patient C")

	for range len(bookings.Filters) - 1 {
		m, _ = m.Update(tab)
	}
	assert.Equal(t, "", m.Filter(), "filter wraps around to all")
}

func TestFocusClearsHidingFilter(t *testing.T) {
	m := bookings.New(keys.DefaultKeyMap(), 100, 20)
	m.SetSnapshot(snapshot(), model.RoleAdmin)
	m.SetFilter(model.StatusApproved)

	m.Focus(3)
	assert.Equal(t, "", m.Filter())
}

func TestSetFilterUnknownSelectsAll(t *testing.T) {
	m := bookings.New(keys.DefaultKeyMap(), 100, 20)
	m.SetFilter("on hold")
	assert.Equal(t, "", m.Filter())
}

func TestSummary(t *testing.T) {
	s := bookings.Summary(snapshot())
	assert.Contains(t, s, "4 total")
	assert.Contains(t, s, "awaiting approval 2")
	assert.Contains(t, s, "approved 1")
	assert.Contains(t, s, "cancelled 0")
}

func TestPatientViewOmitsNames(t *testing.T) {
	m := bookings.New(keys.DefaultKeyMap(), 100, 20)
	m.SetSnapshot(snapshot().OwnedBy(7), model.RoleUser)
	out := m.View()
	assert.Contains(t, out, "My bookings")
	assert.NotContains(t, out, "Patient B")
	assert.Contains(t, out, "#1")
}

var _ list.Item = bookings.Item{}
