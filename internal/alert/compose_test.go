package alert_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/shuttledesk/internal/alert"
	"github.com/nhle/shuttledesk/internal/model"
	"github.com/nhle/shuttledesk/tests/testutil"
)

var detected = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

func newBooking(id int) model.ChangeEvent {
	a := testutil.Appt(id, testutil.Patient.ID, model.StatusPending)
	return model.NewEvent(model.NewAppointment{AppointmentRef: model.RefOf(a), Status: a.Status}, detected)
}

func statusChange(id int, from, to string) model.ChangeEvent {
	a := testutil.Appt(id, testutil.Patient.ID, to)
	return model.NewEvent(model.StatusChange{AppointmentRef: model.RefOf(a), OldStatus: from, NewStatus: to}, detected)
}

func lineValue(a alert.Alert, label string) (string, bool) {
	for _, l := range a.Lines {
		if l.Label == label {
			return l.Value, true
		}
	}
	return "", false
}

func TestComposeNewBookingForAdmin(t *testing.T) {
	a := alert.Composer{}.Compose(testutil.Admin, newBooking(3))

	assert.Equal(t, "New booking!", a.Title)
	assert.Equal(t, "Manage bookings", a.NavigateLabel)
	assert.Equal(t, "/admin/dashboard", a.Route)
	assert.Equal(t, "Dismiss", a.DismissLabel)

	name, ok := lineValue(a, "Patient")
	assert.True(t, ok)
	assert.Equal(t, "Patient D", name)

	status, _ := lineValue(a, "Status")
	assert.Equal(t, "awaiting approval", status)
	hospital, _ := lineValue(a, "Hospital")
	assert.Equal(t, "Siriraj Hospital", hospital)
}

func TestComposeStatusChangeForStaff(t *testing.T) {
	a := alert.Composer{}.Compose(testutil.Staff, statusChange(4, model.StatusPending, model.StatusApproved))

	assert.Equal(t, "Booking status changed", a.Title)
	assert.Equal(t, "View bookings", a.NavigateLabel)
	assert.Equal(t, "/staff/bookings", a.Route)

	_, ok := lineValue(a, "Patient")
	assert.True(t, ok)
	status, _ := lineValue(a, "Status")
	assert.Equal(t, "has been approved", status)
}

func TestComposeStatusChangeForPatientOmitsName(t *testing.T) {
	a := alert.Composer{}.Compose(testutil.Patient, statusChange(4, model.StatusPending, model.StatusCancelled))

	assert.Equal(t, "Your booking was updated", a.Title)
	assert.Equal(t, "/user/bookings", a.Route)

	_, ok := lineValue(a, "Patient")
	assert.False(t, ok)
	status, _ := lineValue(a, "Status")
	assert.Equal(t, "has been cancelled", status)
}

func TestComposeUnknownStatusPassesThrough(t *testing.T) {
	a := alert.Composer{}.Compose(testutil.Patient, statusChange(4, model.StatusPending, "on hold"))

	status, _ := lineValue(a, "Status")
	assert.Equal(t, "on hold", status)
}

func TestComposeFormatsDate(t *testing.T) {
	c := alert.Composer{FormatDate: model.FormatDate}
	a := c.Compose(testutil.Staff, newBooking(5))

	date, _ := lineValue(a, "Date")
	assert.Equal(t, "14 Mar 2026", date)
}

func TestComposeEmptyEvent(t *testing.T) {
	a := alert.Composer{}.Compose(testutil.Staff, model.ChangeEvent{ID: "x"})

	assert.Equal(t, "Booking update", a.Title)
	assert.Empty(t, a.Lines)
	assert.Equal(t, "/staff/bookings", a.Route)
}
