package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventKind discriminates the two change variants on the wire.
type EventKind string

const (
	EventNewAppointment EventKind = "new_appointment"
	EventStatusChange   EventKind = "status_change"
)

// ErrUnknownEventKind is returned when a persisted event carries a type
// this build does not know.
var ErrUnknownEventKind = errors.New("unknown event kind")

// ParseEventKind validates a kind name from configuration.
func ParseEventKind(s string) (EventKind, error) {
	switch k := EventKind(s); k {
	case EventNewAppointment, EventStatusChange:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEventKind, s)
}

// AppointmentRef holds the appointment fields shown by every change.
type AppointmentRef struct {
	AppointmentID   int
	PatientName     string
	Hospital        string
	AppointmentDate string
	AppointmentTime string
}

// RefOf projects an appointment into an AppointmentRef.
func RefOf(a Appointment) AppointmentRef {
	return AppointmentRef{
		AppointmentID:   a.ID,
		PatientName:     a.PatientName(),
		Hospital:        a.Hospital,
		AppointmentDate: a.AppointmentDate,
		AppointmentTime: a.AppointmentTime,
	}
}

// Change is implemented by NewAppointment and StatusChange only.
type Change interface {
	Kind() EventKind
	Ref() AppointmentRef
	isChange()
}

// NewAppointment reports an id that was absent from the previous snapshot.
type NewAppointment struct {
	AppointmentRef
	Status string
}

func (NewAppointment) Kind() EventKind       { return EventNewAppointment }
func (c NewAppointment) Ref() AppointmentRef { return c.AppointmentRef }
func (NewAppointment) isChange()             {}

// StatusChange reports an appointment whose status differs from the
// previous snapshot.
type StatusChange struct {
	AppointmentRef
	OldStatus string
	NewStatus string
}

func (StatusChange) Kind() EventKind       { return EventStatusChange }
func (c StatusChange) Ref() AppointmentRef { return c.AppointmentRef }
func (StatusChange) isChange()             {}

// ChangeEvent is one entry of the notification feed.
type ChangeEvent struct {
	// ID is a synthetic unique key. Several events can share an
	// appointment id, so deletion and selection use this instead.
	ID string

	// Change is the variant payload.
	Change Change

	// Timestamp is the absolute detection time as stored (RFC 3339).
	// It is kept raw so a corrupted value degrades at render time
	// instead of failing the whole feed.
	Timestamp string

	// Read is flipped in place by mark-as-read.
	Read bool
}

// NewEvent wraps c with a fresh id and the given detection time.
func NewEvent(c Change, at time.Time) ChangeEvent {
	return ChangeEvent{
		ID:        uuid.New().String(),
		Change:    c,
		Timestamp: at.UTC().Format(time.RFC3339Nano),
	}
}

// Kind returns the variant kind, or "" for an empty event.
func (e ChangeEvent) Kind() EventKind {
	if e.Change == nil {
		return ""
	}
	return e.Change.Kind()
}

// AppointmentID returns the id of the appointment the event is about.
func (e ChangeEvent) AppointmentID() int {
	if e.Change == nil {
		return 0
	}
	return e.Change.Ref().AppointmentID
}

// OccurredAt parses Timestamp. ok is false for missing or invalid values.
func (e ChangeEvent) OccurredAt() (time.Time, bool) {
	if e.Timestamp == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, e.Timestamp)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// eventJSON is the persisted layout. Field names follow the feed format
// the web client wrote to local storage, so feeds exported from it load.
type eventJSON struct {
	EventID         string          `json:"event_id,omitempty"`
	Type            EventKind       `json:"type"`
	ID              int             `json:"id"`
	PatientName     string          `json:"patientName,omitempty"`
	Hospital        string          `json:"hospital"`
	AppointmentDate string          `json:"appointmentDate"`
	AppointmentTime string          `json:"appointmentTime"`
	Status          string          `json:"status,omitempty"`
	OldStatus       string          `json:"oldStatus,omitempty"`
	NewStatus       string          `json:"newStatus,omitempty"`
	Timestamp       json.RawMessage `json:"timestamp,omitempty"`
	Read            bool            `json:"read"`
}

// MarshalJSON flattens the variant into the persisted layout.
func (e ChangeEvent) MarshalJSON() ([]byte, error) {
	if e.Change == nil {
		return nil, fmt.Errorf("marshaling event %s: no change payload", e.ID)
	}

	ts, err := json.Marshal(e.Timestamp)
	if err != nil {
		return nil, err
	}

	ref := e.Change.Ref()
	w := eventJSON{
		EventID:         e.ID,
		Type:            e.Change.Kind(),
		ID:              ref.AppointmentID,
		PatientName:     ref.PatientName,
		Hospital:        ref.Hospital,
		AppointmentDate: ref.AppointmentDate,
		AppointmentTime: ref.AppointmentTime,
		Timestamp:       ts,
		Read:            e.Read,
	}

	switch c := e.Change.(type) {
	case NewAppointment:
		w.Status = c.Status
	case StatusChange:
		w.OldStatus = c.OldStatus
		w.NewStatus = c.NewStatus
	}

	return json.Marshal(w)
}

// UnmarshalJSON rebuilds the variant from the persisted layout. A
// non-string timestamp is kept as its raw text so it renders with the
// fallback label.
func (e *ChangeEvent) UnmarshalJSON(data []byte) error {
	var w eventJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	ref := AppointmentRef{
		AppointmentID:   w.ID,
		PatientName:     w.PatientName,
		Hospital:        w.Hospital,
		AppointmentDate: w.AppointmentDate,
		AppointmentTime: w.AppointmentTime,
	}

	var c Change
	switch w.Type {
	case EventNewAppointment:
		c = NewAppointment{AppointmentRef: ref, Status: w.Status}
	case EventStatusChange:
		c = StatusChange{AppointmentRef: ref, OldStatus: w.OldStatus, NewStatus: w.NewStatus}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEventKind, w.Type)
	}

	var ts string
	if len(w.Timestamp) > 0 {
		if err := json.Unmarshal(w.Timestamp, &ts); err != nil {
			ts = string(w.Timestamp)
		}
	}

	*e = ChangeEvent{
		ID:        w.EventID,
		Change:    c,
		Timestamp: ts,
		Read:      w.Read,
	}
	return nil
}
