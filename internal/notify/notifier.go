package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	gosync "sync"

	"github.com/nhle/shuttledesk/internal/alert"
	"github.com/nhle/shuttledesk/internal/logging"
	"github.com/nhle/shuttledesk/internal/model"
	"github.com/nhle/shuttledesk/internal/store"
)

var (
	// ErrEntryNotFound is returned by DeleteOne for an unknown event id.
	ErrEntryNotFound = errors.New("notification not found")

	// ErrNoIdentity is returned when no feed is open.
	ErrNoIdentity = errors.New("no identity signed in")
)

// State is a point-in-time copy of the open feed.
type State struct {
	Identity *model.Identity
	Events   []model.ChangeEvent
	Unread   int

	// PersistErr is the last storage write failure, cleared by the next
	// successful write. The in-memory feed stays authoritative meanwhile.
	PersistErr error
}

// Options configures a Notifier.
type Options struct {
	Dispatcher alert.Dispatcher
	Composer   alert.Composer
	Logger     *slog.Logger
}

// Notifier owns the feed of the signed-in identity. Every mutation is
// persisted best-effort: a failed write is logged and kept in State.
type Notifier struct {
	store      store.FeedStore
	dispatcher alert.Dispatcher
	composer   alert.Composer
	logger     *slog.Logger

	mu         gosync.Mutex
	identity   *model.Identity
	feed       *Feed
	persistErr error

	// version counts in-memory mutations, so a reload that raced one
	// can be dropped.
	version uint64
}

// New returns a Notifier persisting to s.
func New(s store.FeedStore, opts Options) *Notifier {
	d := opts.Dispatcher
	if d == nil {
		d = alert.Discard
	}
	return &Notifier{
		store:      s,
		dispatcher: d,
		composer:   opts.Composer,
		logger:     logging.OrDiscard(opts.Logger),
		feed:       NewFeed(nil),
	}
}

// Open loads the feed of id, replacing whatever was open.
func (n *Notifier) Open(ctx context.Context, id model.Identity) error {
	if err := id.Validate(); err != nil {
		return err
	}
	events, err := n.store.LoadFeed(ctx, id)
	if err != nil {
		return fmt.Errorf("loading feed for %d: %w", id.ID, err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.identity = &id
	n.feed = NewFeed(events)
	n.persistErr = nil
	n.version++
	return nil
}

// Close forgets the open feed. Persisted data is kept.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.identity = nil
	n.feed = NewFeed(nil)
	n.persistErr = nil
	n.version++
}

// Reload re-reads the open feed from storage, replacing the in-memory
// copy. It runs when another process changed the database. The reload is
// dropped when the feed changed while it was reading, or when the last
// write failed and memory is ahead of storage.
func (n *Notifier) Reload(ctx context.Context) error {
	n.mu.Lock()
	id := n.identity
	version := n.version
	n.mu.Unlock()
	if id == nil {
		return ErrNoIdentity
	}

	events, err := n.store.LoadFeed(ctx, *id)
	if err != nil {
		return fmt.Errorf("reloading feed for %d: %w", id.ID, err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.identity == nil || n.identity.ID != id.ID {
		return nil
	}
	if n.version != version || n.persistErr != nil {
		n.logger.DebugContext(ctx, "reload skipped, feed changed locally", "identity", id.ID)
		return nil
	}
	n.feed = NewFeed(events)
	return nil
}

// Record prepends events and persists the feed together with extra in
// one commit. It returns the events as stored.
func (n *Notifier) Record(ctx context.Context, events []model.ChangeEvent, extra ...store.Entry) []model.ChangeEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.identity == nil {
		return nil
	}

	added := n.feed.Prepend(events)
	n.persistLocked(ctx, extra...)
	if len(added) > 0 {
		n.logger.InfoContext(ctx, "recorded notifications",
			"identity", n.identity.ID, "count", len(added), "unread", n.feed.Unread())
	}
	return added
}

// Dispatch raises one alert per event, in order, for the open identity.
// Delivery failures are logged.
func (n *Notifier) Dispatch(ctx context.Context, events []model.ChangeEvent) {
	n.mu.Lock()
	id := n.identity
	n.mu.Unlock()
	if id == nil {
		return
	}

	for _, e := range events {
		a := n.composer.Compose(*id, e)
		if err := n.dispatcher.Dispatch(ctx, a); err != nil {
			n.logger.WarnContext(ctx, "dispatching alert failed",
				"identity", id.ID, "event", e.ID, "err", err)
		}
	}
}

// RecordEvents records events and then dispatches their alerts.
func (n *Notifier) RecordEvents(ctx context.Context, events []model.ChangeEvent) []model.ChangeEvent {
	added := n.Record(ctx, events)
	n.Dispatch(ctx, added)
	return added
}

// MarkAllRead marks every entry read and reports how many changed.
func (n *Notifier) MarkAllRead(ctx context.Context) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.identity == nil {
		return 0, ErrNoIdentity
	}

	changed := n.feed.MarkAllRead()
	if changed > 0 {
		n.persistLocked(ctx)
	}
	return changed, nil
}

// DeleteOne removes the entry with the given event id.
func (n *Notifier) DeleteOne(ctx context.Context, eventID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.identity == nil {
		return ErrNoIdentity
	}

	if !n.feed.Delete(eventID) {
		return fmt.Errorf("deleting %s: %w", eventID, ErrEntryNotFound)
	}
	n.persistLocked(ctx)
	return nil
}

// ClearAll empties the feed.
func (n *Notifier) ClearAll(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.identity == nil {
		return ErrNoIdentity
	}

	n.feed.Clear()
	n.persistLocked(ctx)
	return nil
}

// State returns a copy of the open feed.
func (n *Notifier) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()

	s := State{
		Events:     n.feed.Events(),
		Unread:     n.feed.Unread(),
		PersistErr: n.persistErr,
	}
	if n.identity != nil {
		id := *n.identity
		s.Identity = &id
	}
	return s
}

// Unread returns the unread count of the open feed.
func (n *Notifier) Unread() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.feed.Unread()
}

func (n *Notifier) persistLocked(ctx context.Context, extra ...store.Entry) {
	n.version++
	entries := append([]store.Entry(nil), extra...)
	feedEntry, err := store.FeedEntry(*n.identity, n.feed.events)
	if err != nil {
		n.logger.ErrorContext(ctx, "encoding feed failed", "identity", n.identity.ID, "err", err)
	} else {
		entries = append(entries, feedEntry)
	}
	if len(entries) == 0 {
		n.persistErr = err
		return
	}

	if cerr := n.store.Commit(ctx, entries...); cerr != nil {
		n.logger.WarnContext(ctx, "persisting feed failed",
			"identity", n.identity.ID, "err", cerr)
		err = errors.Join(err, cerr)
	}
	n.persistErr = err
}
