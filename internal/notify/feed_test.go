package notify_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/shuttledesk/internal/model"
	"github.com/nhle/shuttledesk/internal/notify"
	"github.com/nhle/shuttledesk/tests/testutil"
)

var now = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

func created(id int) model.ChangeEvent {
	a := testutil.Appt(id, testutil.Patient.ID, model.StatusPending)
	return model.NewEvent(model.NewAppointment{AppointmentRef: model.RefOf(a), Status: a.Status}, now)
}

func changed(id int, from, to string) model.ChangeEvent {
	a := testutil.Appt(id, testutil.Patient.ID, to)
	return model.NewEvent(model.StatusChange{AppointmentRef: model.RefOf(a), OldStatus: from, NewStatus: to}, now)
}

func appointmentIDs(events []model.ChangeEvent) []int {
	ids := make([]int, len(events))
	for i, e := range events {
		ids[i] = e.AppointmentID()
	}
	return ids
}

func TestFeedPrependKeepsBatchOrderAtHead(t *testing.T) {
	f := notify.NewFeed(nil)
	f.Prepend([]model.ChangeEvent{created(1), created(2)})

	old := created(3)
	old.Read = true
	f.Prepend([]model.ChangeEvent{old, created(4)})

	assert.Equal(t, []int{3, 4, 1, 2}, appointmentIDs(f.Events()))
	assert.Equal(t, 4, f.Unread(), "prepended entries are always unread")
}

func TestFeedPrependEmpty(t *testing.T) {
	f := notify.NewFeed([]model.ChangeEvent{created(1)})
	assert.Nil(t, f.Prepend(nil))
	assert.Equal(t, 1, f.Len())
}

func TestFeedMarkAllRead(t *testing.T) {
	f := notify.NewFeed(nil)
	f.Prepend([]model.ChangeEvent{created(1), created(2)})

	assert.Equal(t, 2, f.MarkAllRead())
	assert.Equal(t, 0, f.Unread())
	assert.Equal(t, 0, f.MarkAllRead())
	assert.Equal(t, 2, f.Len())
}

func TestFeedDeleteByEventID(t *testing.T) {
	first := created(5)
	second := changed(5, model.StatusPending, model.StatusApproved)
	f := notify.NewFeed([]model.ChangeEvent{second, first})

	require.True(t, f.Delete(first.ID))
	events := f.Events()
	require.Len(t, events, 1)
	assert.Equal(t, second.ID, events[0].ID, "entries sharing an appointment id are deleted individually")

	assert.False(t, f.Delete(first.ID))
	assert.False(t, f.Delete("missing"))
}

func TestFeedEventsIsACopy(t *testing.T) {
	f := notify.NewFeed([]model.ChangeEvent{created(1)})
	events := f.Events()
	events[0].Read = true
	assert.Equal(t, 1, f.Unread())
}

func TestFeedClear(t *testing.T) {
	f := notify.NewFeed([]model.ChangeEvent{created(1), created(2)})
	f.Clear()
	assert.Equal(t, 0, f.Len())
	assert.Equal(t, 0, f.Unread())
}

func TestBadgeLabel(t *testing.T) {
	assert.Equal(t, "", notify.BadgeLabel(0))
	assert.Equal(t, "1", notify.BadgeLabel(1))
	assert.Equal(t, "9", notify.BadgeLabel(9))
	assert.Equal(t, "9+", notify.BadgeLabel(10))
	assert.Equal(t, "9+", notify.BadgeLabel(250))
}
