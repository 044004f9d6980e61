package model

import (
	"strings"
	"time"
)

// Backend status tokens. The booking API stores them in Thai; they are
// compared verbatim and never translated before diffing.
const (
	StatusPending   = "รอการอนุมัติ"
	StatusApproved  = "อนุมัติแล้ว"
	StatusRejected  = "ปฏิเสธ"
	StatusCancelled = "ยกเลิกการจอง"
)

// StatusLabel returns the English label for a backend status token.
// Unknown tokens are returned unchanged.
func StatusLabel(status string) string {
	switch status {
	case StatusPending:
		return "awaiting approval"
	case StatusApproved:
		return "approved"
	case StatusRejected:
		return "rejected"
	case StatusCancelled:
		return "cancelled"
	default:
		return status
	}
}

// Appointment is the denormalized booking projection returned by
// GET /appointments. The client holds it as a read-only cached copy.
type Appointment struct {
	// ID identifies the appointment and is the only join key when diffing.
	ID int `json:"id"`

	// UserID is the patient account that owns the booking.
	UserID int `json:"user_id"`

	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`

	// Hospital is the destination of the shuttle trip.
	Hospital string `json:"hospital"`

	// Status is the backend status token (see Status* constants).
	Status string `json:"status"`

	// AppointmentDate is the date as sent by the backend, either a plain
	// date or an RFC 3339 timestamp.
	AppointmentDate string `json:"appointment_date"`

	// AppointmentTime is a free-form time of day such as "09:30".
	AppointmentTime string `json:"appointment_time"`

	// CreatedAt is when the booking was made, as sent by the backend.
	CreatedAt string `json:"created_at"`
}

// PatientName joins the first and last name.
func (a Appointment) PatientName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// Date parses AppointmentDate. ok is false when the backend value is in
// neither supported layout.
func (a Appointment) Date() (t time.Time, ok bool) {
	return ParseDate(a.AppointmentDate)
}

// ParseDate accepts "2006-01-02" and RFC 3339 timestamps.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// FormatDate renders a backend date as "2 Jan 2006", falling back to the
// raw value when it cannot be parsed.
func FormatDate(s string) string {
	t, ok := ParseDate(s)
	if !ok {
		return s
	}
	return t.Format("2 Jan 2006")
}

// Snapshot is the set of appointments visible to one identity at one poll.
// Ids are unique within a snapshot; see NewSnapshot.
type Snapshot []Appointment

// NewSnapshot builds a snapshot from a fetched list, keeping the first
// occurrence of each id. dropped counts the duplicates removed.
func NewSnapshot(list []Appointment) (snap Snapshot, dropped int) {
	seen := make(map[int]struct{}, len(list))
	snap = make(Snapshot, 0, len(list))
	for _, a := range list {
		if _, ok := seen[a.ID]; ok {
			dropped++
			continue
		}
		seen[a.ID] = struct{}{}
		snap = append(snap, a)
	}
	return snap, dropped
}

// OwnedBy returns the appointments whose UserID matches userID.
func (s Snapshot) OwnedBy(userID int) Snapshot {
	out := make(Snapshot, 0, len(s))
	for _, a := range s {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out
}

// Index maps appointment id to appointment.
func (s Snapshot) Index() map[int]Appointment {
	idx := make(map[int]Appointment, len(s))
	for _, a := range s {
		idx[a.ID] = a
	}
	return idx
}

// CountByStatus tallies appointments per status token.
func (s Snapshot) CountByStatus() map[string]int {
	counts := make(map[string]int)
	for _, a := range s {
		counts[a.Status]++
	}
	return counts
}
