package alert

import (
	"github.com/nhle/shuttledesk/internal/model"
)

// DateFormatter renders the backend appointment date for display.
type DateFormatter func(string) string

// Composer builds alerts. The zero value formats dates verbatim.
type Composer struct {
	FormatDate DateFormatter
}

// statusPhrase words an appointment's new status for a status alert.
func statusPhrase(status string) string {
	switch status {
	case model.StatusPending:
		return "awaiting approval"
	case model.StatusApproved:
		return "has been approved"
	case model.StatusRejected:
		return "has been rejected"
	case model.StatusCancelled:
		return "has been cancelled"
	default:
		return status
	}
}

// Compose renders e for id. Staff and admin alerts name the patient;
// a patient's own alerts do not. The navigate action always leads to the
// recipient's booking list.
func (c Composer) Compose(id model.Identity, e model.ChangeEvent) Alert {
	format := c.FormatDate
	if format == nil {
		format = func(s string) string { return s }
	}

	a := Alert{
		Event:        e,
		Recipient:    id,
		Route:        id.Role.ListRoute(),
		DismissLabel: "Dismiss",
	}
	if e.Change == nil {
		a.Title = "Booking update"
		a.NavigateLabel = "View bookings"
		return a
	}

	ref := e.Change.Ref()
	if id.Role.SeesAll() {
		name := ref.PatientName
		if name == "" {
			name = "unknown"
		}
		a.Lines = append(a.Lines, Line{Label: "Patient", Value: name})
	}
	a.Lines = append(a.Lines,
		Line{Label: "Hospital", Value: ref.Hospital},
		Line{Label: "Date", Value: format(ref.AppointmentDate)},
		Line{Label: "Time", Value: ref.AppointmentTime},
	)

	switch ch := e.Change.(type) {
	case model.NewAppointment:
		a.Title = "New booking!"
		a.Lines = append(a.Lines, Line{Label: "Status", Value: model.StatusLabel(ch.Status)})
	case model.StatusChange:
		if id.Role == model.RoleUser {
			a.Title = "Your booking was updated"
		} else {
			a.Title = "Booking status changed"
		}
		a.Lines = append(a.Lines, Line{Label: "Status", Value: statusPhrase(ch.NewStatus)})
	}

	switch id.Role {
	case model.RoleAdmin:
		a.NavigateLabel = "Manage bookings"
	default:
		a.NavigateLabel = "View bookings"
	}
	return a
}
