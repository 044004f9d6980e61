package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/nhle/shuttledesk/internal/alert"
	"github.com/nhle/shuttledesk/internal/credential"
	"github.com/nhle/shuttledesk/internal/logging"
	"github.com/nhle/shuttledesk/internal/model"
	"github.com/nhle/shuttledesk/internal/notify"
	"github.com/nhle/shuttledesk/internal/source"
	"github.com/nhle/shuttledesk/internal/store"
	appsync "github.com/nhle/shuttledesk/internal/sync"
)

// Backend is the booking API as the application drives it.
type Backend interface {
	source.AppointmentSource
	source.Authenticator

	// Resume reuses a remembered identity's token without signing in.
	Resume(id model.Identity)
	Logout()
}

// CoreOptions configures a Core.
type CoreOptions struct {
	Config     *model.AppConfig
	Backend    Backend
	Store      store.FeedStore
	Dispatcher alert.Dispatcher
	Ring       credential.Ring
	Metrics    *appsync.PollMetrics
	Logger     *slog.Logger
	Now        func() time.Time
}

// Core wires the poller and the notification feed to one signed-in
// identity. The TUI and the headless watch mode both drive it.
type Core struct {
	backend  Backend
	ring     credential.Ring
	logger   *slog.Logger
	now      func() time.Time
	Notifier *notify.Notifier
	Poller   *appsync.Poller

	mu       gosync.Mutex
	identity *model.Identity
}

// NewCore builds the notification core from cfg.
func NewCore(opts CoreOptions) *Core {
	cfg := opts.Config
	logger := logging.OrDiscard(opts.Logger)
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	composer := alert.Composer{}
	if cfg.Display.LocaleDates {
		composer.FormatDate = model.FormatDate
	}

	n := notify.New(opts.Store, notify.Options{
		Dispatcher: opts.Dispatcher,
		Composer:   composer,
		Logger:     logger.With("component", "notify"),
	})

	kinds := map[model.Role]appsync.KindFilter{}
	for _, role := range []model.Role{model.RoleUser, model.RoleStaff, model.RoleAdmin} {
		kinds[role] = appsync.NewKindFilter(cfg.Notify.KindsFor(role))
	}

	p := appsync.New(opts.Backend, opts.Store, n, appsync.Options{
		Interval:     cfg.PollInterval(),
		PageLimit:    cfg.Poll.PageLimit,
		FetchTimeout: cfg.APITimeout(),
		Kinds:        kinds,
		Logger:       logger.With("component", "poller"),
		Metrics:      opts.Metrics,
		Now:          now,
	})

	ring := opts.Ring
	if ring == nil {
		ring = credential.Memory{}
	}

	return &Core{
		backend:  opts.Backend,
		ring:     ring,
		logger:   logger,
		now:      now,
		Notifier: n,
		Poller:   p,
	}
}

// SignIn authenticates creds and starts the session. With remember set
// the identity is kept in the keyring for the next launch; otherwise any
// remembered identity is forgotten.
func (c *Core) SignIn(ctx context.Context, creds source.Credentials, remember bool) (*model.Identity, error) {
	id, err := c.backend.Login(ctx, creds)
	if err != nil {
		return nil, err
	}

	if remember {
		if err := credential.SaveSession(c.ring, *id); err != nil {
			c.logger.Warn("remembering session failed", "identity", id.ID, "err", err)
		}
	} else if err := credential.ClearSession(c.ring); err != nil {
		c.logger.Warn("forgetting session failed", "err", err)
	}

	if err := c.Begin(ctx, *id); err != nil {
		return nil, err
	}
	return id, nil
}

// Resume starts the session of the remembered identity, if any.
func (c *Core) Resume(ctx context.Context) (*model.Identity, error) {
	id, err := credential.LoadSession(c.ring, c.now())
	if err != nil {
		return nil, err
	}
	c.backend.Resume(*id)
	if err := c.Begin(ctx, *id); err != nil {
		return nil, err
	}
	return id, nil
}

// Begin opens the feed of id and starts polling for it. A running
// session is stopped first.
func (c *Core) Begin(ctx context.Context, id model.Identity) error {
	// The old session must not deliver into the new feed.
	c.Poller.Stop()

	if err := c.Notifier.Open(ctx, id); err != nil {
		return fmt.Errorf("opening feed: %w", err)
	}

	// Set before the first cycle can report.
	c.mu.Lock()
	c.identity = &id
	c.mu.Unlock()

	if err := c.Poller.Start(ctx, id); err != nil {
		c.mu.Lock()
		c.identity = nil
		c.mu.Unlock()
		c.Notifier.Close()
		return err
	}

	c.logger.Info("session started", "identity", id.ID, "role", id.Role)
	return nil
}

// SignOut stops polling, closes the feed, and forgets the remembered
// identity. The persisted feed and baseline are kept.
func (c *Core) SignOut() {
	c.End()
	c.backend.Logout()
	if err := credential.ClearSession(c.ring); err != nil && !errors.Is(err, credential.ErrNotFound) {
		c.logger.Warn("forgetting session failed", "err", err)
	}
}

// End stops the session without forgetting it, as on exit.
func (c *Core) End() {
	c.Poller.Stop()
	c.Notifier.Close()

	c.mu.Lock()
	id := c.identity
	c.identity = nil
	c.mu.Unlock()

	if id != nil {
		c.logger.Info("session ended", "identity", id.ID)
	}
}

// Identity returns the signed-in identity, or nil.
func (c *Core) Identity() *model.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity == nil {
		return nil
	}
	id := *c.identity
	return &id
}
