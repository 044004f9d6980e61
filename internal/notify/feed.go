// Package notify holds the per-identity notification feed: recording
// detected changes, read state, deletion, and relative time labels.
package notify

import (
	"strconv"

	"github.com/nhle/shuttledesk/internal/model"
)

// Feed is an ordered list of events, most recent first. It is not safe
// for concurrent use; Notifier guards it.
type Feed struct {
	events []model.ChangeEvent
}

// NewFeed returns a feed holding a copy of events.
func NewFeed(events []model.ChangeEvent) *Feed {
	return &Feed{events: append([]model.ChangeEvent(nil), events...)}
}

// Events returns a copy of the entries, most recent first.
func (f *Feed) Events() []model.ChangeEvent {
	return append([]model.ChangeEvent(nil), f.events...)
}

// Len returns the number of entries.
func (f *Feed) Len() int { return len(f.events) }

// Unread counts entries not yet marked read.
func (f *Feed) Unread() int {
	n := 0
	for _, e := range f.events {
		if !e.Read {
			n++
		}
	}
	return n
}

// Prepend inserts batch, unread and in batch order, ahead of the existing
// entries. It returns the inserted entries.
func (f *Feed) Prepend(batch []model.ChangeEvent) []model.ChangeEvent {
	if len(batch) == 0 {
		return nil
	}
	added := make([]model.ChangeEvent, len(batch))
	for i, e := range batch {
		e.Read = false
		added[i] = e
	}
	next := make([]model.ChangeEvent, 0, len(added)+len(f.events))
	next = append(next, added...)
	f.events = append(next, f.events...)
	return append([]model.ChangeEvent(nil), added...)
}

// MarkAllRead flips every entry to read and reports how many changed.
func (f *Feed) MarkAllRead() int {
	n := 0
	for i := range f.events {
		if !f.events[i].Read {
			f.events[i].Read = true
			n++
		}
	}
	return n
}

// Delete removes the entry with the given event id.
func (f *Feed) Delete(eventID string) bool {
	for i, e := range f.events {
		if e.ID == eventID {
			f.events = append(f.events[:i:i], f.events[i+1:]...)
			return true
		}
	}
	return false
}

// Clear removes every entry.
func (f *Feed) Clear() {
	f.events = nil
}

// BadgeLabel renders an unread count for the header badge: empty for
// zero, "9+" beyond nine.
func BadgeLabel(unread int) string {
	switch {
	case unread <= 0:
		return ""
	case unread > 9:
		return "9+"
	default:
		return strconv.Itoa(unread)
	}
}
