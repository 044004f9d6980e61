package feed_test

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/shuttledesk/internal/keys"
	"github.com/nhle/shuttledesk/internal/model"
	"github.com/nhle/shuttledesk/internal/ui/feed"
	"github.com/nhle/shuttledesk/tests/testutil"
)

var now = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

func events() []model.ChangeEvent {
	a := testutil.Appt(3, testutil.Patient.ID, model.StatusApproved)
	return []model.ChangeEvent{
		model.NewEvent(model.StatusChange{AppointmentRef: model.RefOf(a), OldStatus: model.StatusPending, NewStatus: model.StatusApproved}, now.Add(-5*time.Minute)),
		model.NewEvent(model.NewAppointment{AppointmentRef: model.RefOf(a), Status: model.StatusPending}, now.Add(-2*time.Hour)),
	}
}

func press(m feed.Model, k string) tea.Msg {
	var msg tea.KeyMsg
	switch k {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
	_, cmd := m.Update(msg)
	if cmd == nil {
		return nil
	}
	return cmd()
}

func TestKeysEmitFeedActions(t *testing.T) {
	m := feed.New(keys.DefaultKeyMap(), 80, 20)
	evs := events()
	m.SetEvents(evs, model.RoleStaff, now)

	assert.Equal(t, feed.MarkAllReadMsg{}, press(m, "m"))
	assert.Equal(t, feed.ClearAllMsg{}, press(m, "C"))
	assert.Equal(t, feed.DeleteMsg{EventID: evs[0].ID}, press(m, "d"))

	open, ok := press(m, "enter").(feed.OpenMsg)
	require.True(t, ok)
	assert.Equal(t, evs[0].ID, open.Event.ID)
}

func TestEmptyFeedIgnoresEntryKeys(t *testing.T) {
	m := feed.New(keys.DefaultKeyMap(), 80, 20)
	m.SetEvents(nil, model.RoleUser, now)

	assert.Nil(t, press(m, "d"))
	assert.Nil(t, press(m, "C"))
	assert.Contains(t, m.View(), "No notifications yet.")
}

func TestItemText(t *testing.T) {
	evs := events()
	staff := feed.Item{Event: evs[0], When: "5 minutes ago", ShowPatient: true}
	assert.Equal(t, "awaiting approval → approved · Patient D · Siriraj Hospital", staff.Headline())
	assert.Contains(t, staff.Detail(), "14 Mar 2026 09:30")
	assert.Contains(t, staff.Detail(), "5 minutes ago")

	patient := feed.Item{Event: evs[1], When: "2 hours ago"}
	assert.Equal(t, "New booking · Siriraj Hospital", patient.Headline())
}

func TestSetEventsKeepsSelection(t *testing.T) {
	m := feed.New(keys.DefaultKeyMap(), 80, 20)
	evs := events()
	m.SetEvents(evs, model.RoleAdmin, now)
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})

	// A new entry arrives at the head.
	a := testutil.Appt(9, 1, model.StatusPending)
	head := model.NewEvent(model.NewAppointment{AppointmentRef: model.RefOf(a), Status: a.Status}, now)
	m.SetEvents(append([]model.ChangeEvent{head}, evs...), model.RoleAdmin, now)

	assert.Equal(t, feed.DeleteMsg{EventID: evs[1].ID}, press(m, "d"))
}
