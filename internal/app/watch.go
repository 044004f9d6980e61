package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nhle/shuttledesk/internal/alert"
	"github.com/nhle/shuttledesk/internal/credential"
	"github.com/nhle/shuttledesk/internal/logging"
	"github.com/nhle/shuttledesk/internal/model"
	"github.com/nhle/shuttledesk/internal/source"
	"github.com/nhle/shuttledesk/internal/store"
	appsync "github.com/nhle/shuttledesk/internal/sync"
)

// pruneInterval is how often expired dispatch records are removed.
const pruneInterval = time.Hour

// ErrNoCredentials is returned by Watch when there is no remembered
// session and no credentials were given.
var ErrNoCredentials = errors.New("no remembered session and no login credentials")

// WatchOptions configures the headless watch mode.
type WatchOptions struct {
	Config  *model.AppConfig
	Backend Backend
	Store   store.Store
	Ring    credential.Ring

	// Credentials sign in when no remembered session resumes.
	Credentials *source.Credentials

	// Forward receives every alert after it is logged.
	Forward alert.Dispatcher

	Changes ChangeNotifier

	// MetricsAddr, when set, serves /healthz and /metrics there.
	MetricsAddr string
	Metrics     *appsync.PollMetrics
	Gatherer    prometheus.Gatherer

	Logger *slog.Logger
	Now    func() time.Time
}

// Watch runs the notification core without a terminal: every alert is
// logged and forwarded, until ctx is done.
func Watch(ctx context.Context, opts WatchOptions) error {
	logger := logging.OrDiscard(opts.Logger)
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	core := NewCore(CoreOptions{
		Config:     opts.Config,
		Backend:    opts.Backend,
		Store:      opts.Store,
		Dispatcher: alert.Multi{alert.NewLogDispatcher(logger.With("component", "alert")), opts.Forward},
		Ring:       opts.Ring,
		Metrics:    opts.Metrics,
		Logger:     logger,
		Now:        now,
	})

	id, err := startWatchSession(ctx, core, opts.Credentials, logger)
	if err != nil {
		return err
	}
	defer core.End()
	logger.Info("watching appointments", "identity", id.ID, "role", id.Role,
		"interval", opts.Config.PollInterval())

	if opts.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              opts.MetricsAddr,
			Handler:           NewStatusRouter(core, opts.Gatherer),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("status server listening", "addr", opts.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("status server failed", "err", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	var changes <-chan struct{}
	if opts.Changes != nil {
		changes = opts.Changes.Changes()
	}

	prune := time.NewTicker(pruneInterval)
	defer prune.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("watch stopped")
			return nil

		case res := <-core.Poller.Results():
			logPollResult(logger, res)
			if res.AuthExpired {
				return fmt.Errorf("session of %d expired: %w", res.Identity.ID, res.Error)
			}

		case <-changes:
			if err := core.Notifier.Reload(ctx); err != nil {
				logger.Warn("reloading feed failed", "err", err)
			}

		case <-prune.C:
			if err := opts.Store.PruneDispatches(ctx, now().Add(-alert.DefaultDedupeWindow)); err != nil {
				logger.Warn("pruning dispatch log failed", "err", err)
			}
		}
	}
}

func startWatchSession(ctx context.Context, core *Core, creds *source.Credentials, logger *slog.Logger) (*model.Identity, error) {
	id, err := core.Resume(ctx)
	if err == nil {
		return id, nil
	}
	if creds == nil || creds.Email == "" {
		return nil, fmt.Errorf("%w: %v", ErrNoCredentials, err)
	}

	logger.Info("remembered session not resumed, signing in", "email", creds.Email, "err", err)
	id, err = core.SignIn(ctx, *creds, true)
	if err != nil {
		return nil, fmt.Errorf("signing in as %s: %w", creds.Email, err)
	}
	return id, nil
}

func logPollResult(logger *slog.Logger, res appsync.PollResultMsg) {
	if res.Error != nil {
		logger.Warn("poll failed", "trigger", res.Trigger, "err", res.Error, "auth_expired", res.AuthExpired)
		return
	}
	logger.Debug("poll completed", "trigger", res.Trigger,
		"appointments", len(res.Snapshot), "events", len(res.Events))
}
