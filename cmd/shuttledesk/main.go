// Command shuttledesk watches a hospital shuttle booking backend and
// notifies the signed-in user about new bookings and status changes.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/nhle/shuttledesk/internal/alert"
	"github.com/nhle/shuttledesk/internal/app"
	"github.com/nhle/shuttledesk/internal/credential"
	"github.com/nhle/shuttledesk/internal/logging"
	"github.com/nhle/shuttledesk/internal/model"
	"github.com/nhle/shuttledesk/internal/source"
	"github.com/nhle/shuttledesk/internal/source/shuttle"
	"github.com/nhle/shuttledesk/internal/store"
	appsync "github.com/nhle/shuttledesk/internal/sync"
	"github.com/nhle/shuttledesk/internal/theme"
)

type flags struct {
	configPath  string
	watch       bool
	email       bool
	metricsAddr string
	logLevel    string
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "shuttledesk:", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (flags, error) {
	var f flags
	set := pflag.NewFlagSet("shuttledesk", pflag.ContinueOnError)
	set.StringVarP(&f.configPath, "config", "c", model.DefaultConfigPath(), "path to the config file")
	set.BoolVar(&f.watch, "watch", false, "run without a terminal UI, logging every alert")
	set.BoolVar(&f.email, "email", false, "forward alerts by email regardless of email.enabled")
	set.StringVar(&f.metricsAddr, "metrics-addr", "", "serve /healthz and /metrics on this address (watch mode)")
	set.StringVar(&f.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
	return f, set.Parse(args)
}

func run(args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	// A .env next to the binary may carry SHUTTLEDESK_* overrides.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := model.LoadConfig(f.configPath)
	if err != nil {
		return err
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.email {
		cfg.Email.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := theme.Apply(cfg.Display.Theme); err != nil {
		return err
	}

	logger, closeLog, err := openLogger(cfg, f.watch)
	if err != nil {
		return err
	}
	defer closeLog.Close()

	st, err := store.NewSQLiteStore(cfg.Storage.DBPath, store.WithLogger(logger.With("component", "store")))
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var changes app.ChangeNotifier
	if cfg.Storage.Watch {
		w, err := store.NewWatcher(st.Path(), 0, logger.With("component", "watcher"))
		if err != nil {
			logger.Warn("database watch disabled", "err", err)
		} else {
			defer w.Close()
			go w.Run(ctx)
			changes = w
		}
	}

	ring := credential.NewKeyring()
	backend := shuttle.NewAdapter(cfg.API.BaseURL, cfg.APITimeout(), cfg.Poll.PageLimit)

	forward, err := emailForwarder(cfg, ring, st, logger)
	if err != nil {
		return err
	}

	if f.watch {
		reg := prometheus.NewRegistry()
		return app.Watch(ctx, app.WatchOptions{
			Config:      cfg,
			Backend:     backend,
			Store:       st,
			Ring:        ring,
			Credentials: envCredentials(),
			Forward:     forward,
			Changes:     changes,
			MetricsAddr: f.metricsAddr,
			Metrics:     appsync.NewPollMetrics(reg),
			Gatherer:    reg,
			Logger:      logger,
		})
	}

	m := app.New(app.Options{
		Config:  cfg,
		Backend: backend,
		Store:   st,
		Ring:    ring,
		Changes: changes,
		Forward: forward,
		Logger:  logger,
	})
	defer m.Core().End()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("running TUI: %w", err)
	}
	return nil
}

// openLogger logs to stderr in watch mode and to the log file while the
// TUI owns the terminal.
func openLogger(cfg *model.AppConfig, watch bool) (*slog.Logger, io.Closer, error) {
	if watch {
		return logging.New(cfg.Log.Level, os.Stderr), io.NopCloser(nil), nil
	}
	return logging.OpenFile(cfg.Log.Level, cfg.Log.File)
}

// emailForwarder returns the email dispatcher, or nil when forwarding is
// off. The SMTP password is read from the keyring, falling back to
// SHUTTLEDESK_SMTP_PASSWORD.
func emailForwarder(cfg *model.AppConfig, ring credential.Ring, st store.Store, logger *slog.Logger) (alert.Dispatcher, error) {
	if !cfg.Email.Enabled {
		return nil, nil
	}

	password, err := ring.Get(credential.KeySMTPPassword)
	if errors.Is(err, credential.ErrNotFound) {
		password, err = os.Getenv(model.EnvPrefix+"_SMTP_PASSWORD"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading SMTP password: %w", err)
	}

	sender := &alert.SMTPSender{Config: alert.SMTPConfig{
		Host:     cfg.Email.SMTPHost,
		Port:     cfg.Email.SMTPPort,
		Username: cfg.Email.Username,
		Password: password,
	}}
	return alert.NewEmailDispatcher(cfg.Email, sender,
		alert.WithDispatchLog(st, alert.DefaultDedupeWindow),
		alert.WithEmailLogger(logger.With("component", "email")),
	), nil
}

// envCredentials reads the watch-mode login from the environment.
func envCredentials() *source.Credentials {
	email := os.Getenv(model.EnvPrefix + "_LOGIN_EMAIL")
	if email == "" {
		return nil
	}
	return &source.Credentials{
		Email:    email,
		Password: os.Getenv(model.EnvPrefix + "_LOGIN_PASSWORD"),
	}
}
