package store

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nhle/shuttledesk/internal/logging"
)

// defaultDebounce coalesces the bursts of writes SQLite makes per commit.
const defaultDebounce = 250 * time.Millisecond

// Watcher reports changes to a database file made by any process. The
// WAL sidecar files count as the database.
type Watcher struct {
	fw       *fsnotify.Watcher
	base     string
	debounce time.Duration
	changes  chan struct{}
	logger   *slog.Logger
}

// NewWatcher watches dbPath. The parent directory is watched, since WAL
// mode writes to "<db>-wal" and SQLite recreates sidecars freely.
func NewWatcher(dbPath string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(dbPath)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(dbPath), err)
	}

	return &Watcher{
		fw:       fw,
		base:     filepath.Base(dbPath),
		debounce: debounce,
		changes:  make(chan struct{}, 1),
		logger:   logging.OrDiscard(logger),
	}, nil
}

// Changes delivers one signal per debounced burst of changes. A pending
// signal is never duplicated.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Run forwards file events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	var timer *time.Timer
	var fire <-chan time.Time

	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("database watcher error", "err", err)

		case <-fire:
			fire = nil
			select {
			case w.changes <- struct{}{}:
			default:
			}
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fw.Close()
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return false
	}
	name := filepath.Base(ev.Name)
	return name == w.base || strings.HasPrefix(name, w.base+"-")
}
