package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// SHUTTLEDESK_API_BASE_URL.
const EnvPrefix = "SHUTTLEDESK"

// APIConfig locates the booking backend.
type APIConfig struct {
	// BaseURL is the root of the booking REST API.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TimeoutSec bounds every HTTP request, including a hung poll.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// PollConfig controls the change-detection loop.
type PollConfig struct {
	IntervalSec int `mapstructure:"interval_sec" yaml:"interval_sec"`

	// PageLimit is the page size requested for the single-page fetch.
	PageLimit int `mapstructure:"page_limit" yaml:"page_limit"`
}

// StorageConfig locates the local database.
type StorageConfig struct {
	DBPath string `mapstructure:"db_path" yaml:"db_path"`

	// Watch re-reads the feed when another process changes the database.
	Watch bool `mapstructure:"watch" yaml:"watch"`
}

// NotifyConfig restricts which event kinds each role is alerted about.
// An empty list means every kind.
type NotifyConfig struct {
	AdminKinds []string `mapstructure:"admin_kinds" yaml:"admin_kinds"`
	StaffKinds []string `mapstructure:"staff_kinds" yaml:"staff_kinds"`
	UserKinds  []string `mapstructure:"user_kinds" yaml:"user_kinds"`
}

// KindsFor returns the configured kinds for role.
func (n NotifyConfig) KindsFor(role Role) []string {
	switch role {
	case RoleAdmin:
		return n.AdminKinds
	case RoleStaff:
		return n.StaffKinds
	default:
		return n.UserKinds
	}
}

// EmailConfig enables forwarding alerts by SMTP.
type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	SMTPHost string `mapstructure:"smtp_host" yaml:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port" yaml:"smtp_port"`
	Username string `mapstructure:"username" yaml:"username"`
	From     string `mapstructure:"from" yaml:"from"`
	To       string `mapstructure:"to" yaml:"to"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`

	// File receives log output while the TUI owns the terminal.
	File string `mapstructure:"file" yaml:"file"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`

	// LocaleDates renders appointment dates as "2 Jan 2006" instead of
	// the raw backend value.
	LocaleDates bool `mapstructure:"locale_dates" yaml:"locale_dates"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API     APIConfig     `mapstructure:"api" yaml:"api"`
	Poll    PollConfig    `mapstructure:"poll" yaml:"poll"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Notify  NotifyConfig  `mapstructure:"notify" yaml:"notify"`
	Email   EmailConfig   `mapstructure:"email" yaml:"email"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`
}

// PollInterval returns the poll interval as a duration.
func (c *AppConfig) PollInterval() time.Duration {
	return time.Duration(c.Poll.IntervalSec) * time.Second
}

// APITimeout returns the per-request timeout as a duration.
func (c *AppConfig) APITimeout() time.Duration {
	return time.Duration(c.API.TimeoutSec) * time.Second
}

// Validate rejects settings the core cannot run with.
func (c *AppConfig) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if c.Poll.IntervalSec <= 0 {
		return fmt.Errorf("poll.interval_sec must be positive, got %d", c.Poll.IntervalSec)
	}
	if c.Poll.PageLimit <= 0 {
		return fmt.Errorf("poll.page_limit must be positive, got %d", c.Poll.PageLimit)
	}
	for _, kinds := range [][]string{c.Notify.AdminKinds, c.Notify.StaffKinds, c.Notify.UserKinds} {
		for _, k := range kinds {
			if _, err := ParseEventKind(k); err != nil {
				return fmt.Errorf("notify: %w", err)
			}
		}
	}
	if c.Email.Enabled && (c.Email.SMTPHost == "" || c.Email.To == "") {
		return errors.New("email.smtp_host and email.to are required when email is enabled")
	}
	return nil
}

// configDir returns ~/.config/shuttledesk, or "." when there is no home.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "shuttledesk")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/shuttledesk/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultDBPath returns ~/.config/shuttledesk/shuttledesk.db.
func DefaultDBPath() string {
	return filepath.Join(configDir(), "shuttledesk.db")
}

// DefaultLogPath returns ~/.config/shuttledesk/shuttledesk.log.
func DefaultLogPath() string {
	return filepath.Join(configDir(), "shuttledesk.log")
}

var allKinds = []string{string(EventNewAppointment), string(EventStatusChange)}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:3001")
	v.SetDefault("api.timeout_sec", 30)
	v.SetDefault("poll.interval_sec", 30)
	v.SetDefault("poll.page_limit", 1000)
	v.SetDefault("storage.db_path", DefaultDBPath())
	v.SetDefault("storage.watch", true)
	v.SetDefault("notify.admin_kinds", allKinds)
	v.SetDefault("notify.staff_kinds", allKinds)
	v.SetDefault("notify.user_kinds", allKinds)
	v.SetDefault("email.enabled", false)
	v.SetDefault("email.smtp_port", 587)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", DefaultLogPath())
	v.SetDefault("display.theme", "default")
	v.SetDefault("display.locale_dates", true)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// A missing file yields the defaults. Environment variables prefixed with
// SHUTTLEDESK_ override both.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.Storage.DBPath = expandHome(cfg.Storage.DBPath)
	cfg.Log.File = expandHome(cfg.Log.File)

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("poll", cfg.Poll)
	v.Set("storage", cfg.Storage)
	v.Set("notify", cfg.Notify)
	v.Set("email", cfg.Email)
	v.Set("log", cfg.Log)
	v.Set("display", cfg.Display)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
