package store

import (
	"context"
	"errors"
	"time"

	"github.com/nhle/shuttledesk/internal/model"
)

// ErrNotFound is returned by Get when a key has no value.
var ErrNotFound = errors.New("key not found")

// KV is the namespaced key-value abstraction every persisted record goes
// through.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error

	// Commit writes all entries in one transaction.
	Commit(ctx context.Context, entries ...Entry) error
}

// FeedStore loads and saves the per-identity records of the notification
// core. Loads never fail on bad data: malformed values load as empty.
type FeedStore interface {
	KV

	LoadFeed(ctx context.Context, id model.Identity) ([]model.ChangeEvent, error)
	LoadSnapshot(ctx context.Context, id model.Identity) (model.Snapshot, error)
}

// DispatchLog remembers which alerts an outbound channel already sent so
// processes sharing a database do not send the same alert twice.
type DispatchLog interface {
	// ClaimDispatch records a send of contentHash on channel and reports
	// true, unless one was recorded within window, in which case it
	// reports false and records nothing.
	ClaimDispatch(ctx context.Context, channel, contentHash, eventID string, window time.Duration) (bool, error)

	// PruneDispatches removes records older than before.
	PruneDispatches(ctx context.Context, before time.Time) error
}

// Store is the full persistence interface.
type Store interface {
	FeedStore
	DispatchLog
	Close() error
}
