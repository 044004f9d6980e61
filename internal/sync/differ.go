package sync

import (
	"time"

	"github.com/nhle/shuttledesk/internal/model"
)

// Diff compares two snapshots of the same identity and returns the change
// events in the order of next. An id absent from prev is a new
// appointment; an id whose status differs is a status change. Ids that
// disappeared produce nothing, and an empty prev produces nothing so the
// first load of a session never alerts.
func Diff(prev, next model.Snapshot, now time.Time) []model.ChangeEvent {
	if len(prev) == 0 {
		return nil
	}

	idx := prev.Index()
	var events []model.ChangeEvent
	for _, a := range next {
		old, seen := idx[a.ID]
		switch {
		case !seen:
			events = append(events, model.NewEvent(model.NewAppointment{
				AppointmentRef: model.RefOf(a),
				Status:         a.Status,
			}, now))
		case old.Status != a.Status:
			events = append(events, model.NewEvent(model.StatusChange{
				AppointmentRef: model.RefOf(a),
				OldStatus:      old.Status,
				NewStatus:      a.Status,
			}, now))
		}
	}
	return events
}

// KindFilter selects which event kinds reach the feed. The zero value
// passes everything.
type KindFilter map[model.EventKind]bool

// NewKindFilter builds a filter from kind names. Unknown names are
// ignored; an empty list passes everything.
func NewKindFilter(kinds []string) KindFilter {
	if len(kinds) == 0 {
		return nil
	}
	f := make(KindFilter, len(kinds))
	for _, k := range kinds {
		if kind, err := model.ParseEventKind(k); err == nil {
			f[kind] = true
		}
	}
	return f
}

// Allows reports whether kind passes the filter.
func (f KindFilter) Allows(kind model.EventKind) bool {
	return len(f) == 0 || f[kind]
}

// Apply returns the events whose kind passes the filter.
func (f KindFilter) Apply(events []model.ChangeEvent) []model.ChangeEvent {
	if len(f) == 0 {
		return events
	}
	out := events[:0:0]
	for _, e := range events {
		if f.Allows(e.Kind()) {
			out = append(out, e)
		}
	}
	return out
}
