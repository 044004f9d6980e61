package store

import (
	"encoding/json"
	"fmt"

	"github.com/nhle/shuttledesk/internal/model"
)

// Scope names one kind of per-identity record.
type Scope string

const (
	// ScopeNotifications holds the serialized feed.
	ScopeNotifications Scope = "notifications"

	// ScopeAppointments holds the snapshot baseline of the last poll.
	ScopeAppointments Scope = "appointments"
)

// LegacyAdminKey is the global admin baseline written by the web client.
// It is only read, as a fallback for admins with no scoped baseline yet.
const LegacyAdminKey = "all_appointments"

// Key addresses a record in the key-value table.
type Key struct {
	Scope      Scope
	IdentityID int
	Role       model.Role
}

// String renders the storage key. Feeds are keyed by identity only, so a
// role change keeps the feed. Baselines include the role because the
// visible set differs between roles.
func (k Key) String() string {
	switch k.Scope {
	case ScopeAppointments:
		return fmt.Sprintf("appointments_%s_%d", k.Role, k.IdentityID)
	default:
		return fmt.Sprintf("%s_%d", k.Scope, k.IdentityID)
	}
}

// FeedKey returns the feed key of id.
func FeedKey(id model.Identity) Key {
	return Key{Scope: ScopeNotifications, IdentityID: id.ID, Role: id.Role}
}

// SnapshotKey returns the baseline key of id.
func SnapshotKey(id model.Identity) Key {
	return Key{Scope: ScopeAppointments, IdentityID: id.ID, Role: id.Role}
}

// Entry is one key/value pair of a transactional commit.
type Entry struct {
	Key   string
	Value []byte
}

// FeedEntry serializes a feed for Commit.
func FeedEntry(id model.Identity, events []model.ChangeEvent) (Entry, error) {
	if events == nil {
		events = []model.ChangeEvent{}
	}
	data, err := json.Marshal(events)
	if err != nil {
		return Entry{}, fmt.Errorf("marshaling feed for identity %d: %w", id.ID, err)
	}
	return Entry{Key: FeedKey(id).String(), Value: data}, nil
}

// SnapshotEntry serializes a baseline for Commit.
func SnapshotEntry(id model.Identity, snap model.Snapshot) (Entry, error) {
	if snap == nil {
		snap = model.Snapshot{}
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return Entry{}, fmt.Errorf("marshaling snapshot for identity %d: %w", id.ID, err)
	}
	return Entry{Key: SnapshotKey(id).String(), Value: data}, nil
}
